package sync

import (
	"context"

	"github.com/meshcore-dev/meshclient/store"
	"github.com/meshcore-dev/meshclient/wire"
)

// syncContacts implements spec.md §4.6 phase 1: incremental
// get_contacts since the device's last_contact_sync, upsert each
// returned record, then archive every local non-discovered contact
// whose key was not in the returned set (spec.md §8 scenario 5).
func (c *Coordinator) syncContacts(ctx context.Context, device *store.Device) (*PhaseResult, error) {
	result := &PhaseResult{Phase: PhaseContacts}

	records, err := c.session.GetContacts(ctx, device.LastContactSync)
	if err != nil {
		return result, phaseError(PhaseContacts, err)
	}

	keep := make(map[[32]byte]bool, len(records))
	var maxAdvert uint32
	for _, rec := range records {
		keep[rec.PublicKey] = true
		if rec.LastAdvertUnix > maxAdvert {
			maxAdvert = rec.LastAdvertUnix
		}
		if err := c.upsertContact(ctx, device.ID, rec); err != nil {
			result.recordErr(err)
			continue
		}
		result.recordOK()
	}

	if err := c.store.MarkContactsArchived(ctx, device.ID, keep); err != nil {
		result.recordErr(err)
	}

	if maxAdvert > device.LastContactSync {
		device.LastContactSync = maxAdvert
		if err := c.store.SaveDevice(ctx, device); err != nil {
			result.recordErr(err)
		}
	}

	return result, nil
}

func (c *Coordinator) upsertContact(ctx context.Context, deviceID string, rec *wire.ContactRecord) error {
	existing, err := c.store.FetchContact(ctx, deviceID, rec.PublicKey)
	contact := &store.Contact{}
	if err == nil {
		contact = existing
	} else if err != store.ErrNotFound {
		return err
	}

	contact.DeviceID = deviceID
	contact.PublicKey = rec.PublicKey
	contact.Name = rec.Name
	contact.NodeType = store.NodeKind(rec.NodeType)
	contact.Flags = rec.Flags
	contact.OutPathLength = rec.OutPathLength
	contact.OutPath = rec.OutPath
	contact.LastAdvertTimestamp = rec.LastAdvertUnix
	contact.LatMicroDeg = rec.LatMicroDeg
	contact.LonMicroDeg = rec.LonMicroDeg
	contact.LastModified = rec.LastModifiedUnix
	contact.IsArchived = false

	_, err = c.store.SaveContact(ctx, contact)
	return err
}
