// Package sync implements the three-phase (contacts -> channels ->
// messages) synchronization run on every transition to ready (spec.md
// §4.6), owning nothing of the wire or persistence contracts itself
// but orchestrating both through the narrow syncSession/store.Store
// interfaces.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/meshcore-dev/meshclient/delivery"
	"github.com/meshcore-dev/meshclient/event"
	"github.com/meshcore-dev/meshclient/store"
	"github.com/meshcore-dev/meshclient/wire"
)

// Event types this package dispatches (spec.md §4.6: "emit
// sync_started(phase) and sync_ended(phase, result)").
const (
	EventSyncStarted = "sync_started"
	EventSyncEnded   = "sync_ended"
)

const (
	PhaseContacts = "contacts"
	PhaseChannels = "channels"
	PhaseMessages = "messages"
)

// PhaseResult records per-item outcomes for one sync phase (spec.md
// §4.6: "Partial failures in a phase are recorded per item; the phase
// as a whole succeeds iff any item succeeded").
type PhaseResult struct {
	Phase     string
	Succeeded int
	Failed    int
	Errors    []error
}

func (r *PhaseResult) ok(total int) bool {
	if total == 0 {
		return true
	}
	return r.Succeeded > 0
}

func (r *PhaseResult) recordOK() { r.Succeeded++ }
func (r *PhaseResult) recordErr(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err)
}

// syncSession is the slice of session.Session the coordinator drives.
// Declared locally (rather than importing session) to keep the
// dependency direction the same as delivery's deviceSession.
type syncSession interface {
	GetContacts(ctx context.Context, since uint32) ([]*wire.ContactRecord, error)
	GetChannelInfo(ctx context.Context, slot uint8) (*wire.ChannelInfo, error)
	SetChannelInfo(ctx context.Context, c *wire.ChannelInfo) error
	GetNextMessage(ctx context.Context) (*wire.Frame, error)
}

// Coordinator runs the three sync phases against one active Device.
type Coordinator struct {
	session         syncSession
	store           store.Store
	disp            *event.Dispatcher
	log             *log.Logger
	metrics         *Metrics
	deliveryMetrics *delivery.Metrics
	dedup           *delivery.Dedup
}

func New(session syncSession, st store.Store, disp *event.Dispatcher, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.NewWithOptions(nil, log.Options{})
	}
	c := &Coordinator{
		session: session,
		store:   st,
		disp:    disp,
		log:     logger.WithPrefix("sync"),
		dedup:   delivery.NewDedup(),
	}
	c.autoRun()
	return c
}

// WithMetrics attaches Prometheus instrumentation; nil by default so
// tests can construct a Coordinator without a registry.
func (c *Coordinator) WithMetrics(m *Metrics) *Coordinator {
	c.metrics = m
	return c
}

// WithDeliveryMetrics attaches the delivery package's counters so the
// dedup path in messages.go can increment HeardRepeats; nil by default.
func (c *Coordinator) WithDeliveryMetrics(m *delivery.Metrics) *Coordinator {
	c.deliveryMetrics = m
	return c
}

// eventConnectionState/stateReady mirror session.EventConnectionState
// and state.String() for StateReady (session/session.go). Declared
// locally rather than importing session to keep the dependency
// direction one-way.
const (
	eventConnectionState = "connection_state"
	stateReady           = "ready"
)

func syncStrPtr(s string) *string { return &s }

// autoRun wires spec.md §4.6's "on each transition to ready" trigger:
// the coordinator subscribes to its own session's connection-state
// events and re-runs the three phases against the currently active
// device every time the transport reaches ready, not just once.
func (c *Coordinator) autoRun() {
	c.disp.Subscribe(syncStrPtr(eventConnectionState), map[string]string{"state": stateReady}, func(ev event.Event) {
		ctx := context.Background()
		device, err := c.store.FetchActiveDevice(ctx)
		if err != nil {
			c.log.Warnf("sync: fetch active device on ready: %v", err)
			return
		}
		if _, err := c.Run(ctx, device); err != nil {
			c.log.Warnf("sync: auto-run on ready: %v", err)
		}
	})
}

// Run executes all three phases sequentially against device, stopping
// early (but still returning prior phase results) if a phase cannot
// even begin (e.g. the device query itself errors out, as opposed to
// a per-item failure within a phase).
func (c *Coordinator) Run(ctx context.Context, device *store.Device) ([]*PhaseResult, error) {
	var results []*PhaseResult

	contactsResult, err := c.runPhase(ctx, PhaseContacts, func() (*PhaseResult, error) {
		return c.syncContacts(ctx, device)
	})
	results = append(results, contactsResult)
	if err != nil {
		return results, err
	}

	channelsResult, err := c.runPhase(ctx, PhaseChannels, func() (*PhaseResult, error) {
		return c.syncChannels(ctx, device)
	})
	results = append(results, channelsResult)
	if err != nil {
		return results, err
	}

	messagesResult, err := c.runPhase(ctx, PhaseMessages, func() (*PhaseResult, error) {
		return c.syncMessages(ctx, device)
	})
	results = append(results, messagesResult)
	return results, err
}

func (c *Coordinator) runPhase(ctx context.Context, phase string, fn func() (*PhaseResult, error)) (*PhaseResult, error) {
	c.disp.Dispatch(event.Event{Type: EventSyncStarted, Attrs: map[string]string{"phase": phase}})
	start := time.Now()
	result, err := fn()
	if c.metrics != nil {
		c.metrics.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}
	if result == nil {
		result = &PhaseResult{Phase: phase}
	}
	if c.metrics != nil && result.Failed > 0 {
		c.metrics.PhaseErrors.WithLabelValues(phase).Add(float64(result.Failed))
	}
	status := "ok"
	if err != nil || !result.ok(result.Succeeded+result.Failed) {
		status = "error"
	}
	c.disp.Dispatch(event.Event{
		Type:    EventSyncEnded,
		Attrs:   map[string]string{"phase": phase, "status": status},
		Payload: result,
	})
	if err != nil {
		c.log.Warnf("sync phase %s aborted: %v", phase, err)
	}
	return result, err
}

func phaseError(phase string, err error) error {
	return fmt.Errorf("sync: phase %s: %w", phase, err)
}
