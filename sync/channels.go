package sync

import (
	"context"

	"github.com/meshcore-dev/meshclient/store"
	"github.com/meshcore-dev/meshclient/wire"
)

// defaultChannelSecret is installed for slot 0 when the device has no
// record of it yet (spec.md §4.6 phase 2: "Ensure slot 0 exists; if
// not, create with device defaults"). MeshCore's own firmware ships a
// well-known public default secret for the public channel; this
// module does not hardcode that value (it is a device concern), so an
// all-zero secret stands in as the placeholder until the device's own
// set_channel_info call supplies the real one.
var defaultChannelSecret [16]byte

// syncChannels implements spec.md §4.6 phase 2: query channel_info
// for every slot up to the device's max_channels, upserting non-empty
// responses and leaving absent ones at their prior stored state.
func (c *Coordinator) syncChannels(ctx context.Context, device *store.Device) (*PhaseResult, error) {
	result := &PhaseResult{Phase: PhaseChannels}

	slots := device.MaxChannels
	if slots < 1 {
		slots = 1
	}

	for slot := 0; slot < slots; slot++ {
		info, err := c.session.GetChannelInfo(ctx, uint8(slot))
		if err != nil {
			result.recordErr(err)
			continue
		}
		if info.Name == "" && slot != 0 {
			// Absent slot: retain whatever is already stored.
			result.recordOK()
			continue
		}
		if err := c.upsertChannel(ctx, device.ID, info); err != nil {
			result.recordErr(err)
			continue
		}
		result.recordOK()
	}

	if err := c.ensureSlotZero(ctx, device); err != nil {
		result.recordErr(err)
	}

	return result, nil
}

func (c *Coordinator) upsertChannel(ctx context.Context, deviceID string, info *wire.ChannelInfo) error {
	existing, err := c.store.FetchChannel(ctx, deviceID, info.Index)
	channel := &store.Channel{}
	if err == nil {
		channel = existing
	} else if err != store.ErrNotFound {
		return err
	}
	channel.DeviceID = deviceID
	channel.SlotIndex = info.Index
	channel.Name = info.Name
	channel.Secret = info.Secret
	channel.IsEnabled = true
	_, err = c.store.SaveChannel(ctx, channel)
	return err
}

func (c *Coordinator) ensureSlotZero(ctx context.Context, device *store.Device) error {
	_, err := c.store.FetchChannel(ctx, device.ID, 0)
	if err == nil {
		return nil
	}
	if err != store.ErrNotFound {
		return err
	}
	_, err = c.store.SaveChannel(ctx, &store.Channel{
		DeviceID:  device.ID,
		SlotIndex: 0,
		Name:      "Public",
		Secret:    defaultChannelSecret,
		IsEnabled: true,
	})
	return err
}
