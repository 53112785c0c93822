// Package event implements the broadcast point described in spec.md
// §4.3: typed events, filter-based subscriptions, and a one-shot
// wait_for whose registration is synchronous with dispatch ordering.
package event

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	channels "gopkg.in/eapache/channels.v1"

	"github.com/meshcore-dev/meshclient/internal/worker"
)

// ErrDispatcherClosed is returned by WaitFor when the Dispatcher is
// closed while a caller is waiting.
var ErrDispatcherClosed = errors.New("event: dispatcher closed")

// queueCapacity is the bounded queue depth from spec.md §4.3: "Queue
// policy: newest-first with bounded capacity (100). Overflow drops
// oldest events and logs."
const queueCapacity = 100

// Event is a single typed occurrence. Attrs is matched against
// subscription filters as an exact string/string map: every filter
// entry must match.
type Event struct {
	Type    string
	Attrs   map[string]string
	Payload interface{}
}

func (e Event) matches(eventType *string, filters map[string]string) bool {
	if eventType != nil && *eventType != e.Type {
		return false
	}
	for k, v := range filters {
		if e.Attrs[k] != v {
			return false
		}
	}
	return true
}

type subscription struct {
	id        string
	eventType *string
	filters   map[string]string
	callback  func(Event)
}

// Dispatcher is a single logical broadcast point. Subscriber callbacks
// are launched as independent goroutines and MUST NOT block dispatch.
type Dispatcher struct {
	worker.Worker

	log *log.Logger

	// queue is an eapache/channels RingChannel: its documented
	// fixed-capacity behavior (oldest evicted, newest retained once
	// full) is exactly the overflow policy spec.md §4.3 calls for, so
	// no hand-rolled ring buffer is needed.
	queue channels.Channel

	mu   sync.Mutex
	subs map[string]*subscription
}

// NewDispatcher starts the dispatch loop and returns a ready Dispatcher.
func NewDispatcher(logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NewWithOptions(nil, log.Options{})
	}
	d := &Dispatcher{
		log:   logger.WithPrefix("event"),
		queue: channels.NewRingChannel(channels.BufferCap(queueCapacity)),
		subs:  make(map[string]*subscription),
	}
	d.Go(d.driveLoop)
	return d
}

func (d *Dispatcher) driveLoop() {
	out := d.queue.Out()
	for {
		select {
		case raw, ok := <-out:
			if !ok {
				return
			}
			ev := raw.(Event)
			d.deliver(ev)
		case <-d.HaltCh():
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	d.mu.Lock()
	matched := make([]*subscription, 0, len(d.subs))
	for _, s := range d.subs {
		if ev.matches(s.eventType, s.filters) {
			matched = append(matched, s)
		}
	}
	d.mu.Unlock()

	for _, s := range matched {
		cb := s.callback
		go cb(ev)
	}
}

// Dispatch enqueues ev for delivery. It never blocks: under overflow
// the RingChannel drops the oldest queued event and Dispatch logs it.
func (d *Dispatcher) Dispatch(ev Event) {
	if d.queue.Len() >= queueCapacity {
		d.log.Warnf("event queue full (%d); dropping oldest event", queueCapacity)
	}
	d.queue.In() <- ev
}

// Subscribe registers callback for events matching eventType (nil
// matches every type) and filters (every entry must match). Returns a
// subscription id usable with Unsubscribe.
func (d *Dispatcher) Subscribe(eventType *string, filters map[string]string, callback func(Event)) string {
	id := randomID()
	d.mu.Lock()
	d.subs[id] = &subscription{id: id, eventType: eventType, filters: filters, callback: callback}
	d.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription. A no-op if id is unknown.
func (d *Dispatcher) Unsubscribe(id string) {
	d.mu.Lock()
	delete(d.subs, id)
	d.mu.Unlock()
}

// WaitFor blocks until a matching event is dispatched, ctx is
// cancelled, or the Dispatcher halts. Subscription registration
// completes before WaitFor returns control to the caller via the
// initial lock acquisition in Subscribe, so any event dispatched after
// Subscribe's return is guaranteed observable here: there is no window
// where a matching event can be dispatched and missed.
func (d *Dispatcher) WaitFor(ctx context.Context, eventType *string, filters map[string]string) (*Event, error) {
	resultCh := make(chan Event, 1)
	id := d.Subscribe(eventType, filters, func(ev Event) {
		select {
		case resultCh <- ev:
		default:
		}
	})
	defer d.Unsubscribe(id)

	select {
	case ev := <-resultCh:
		return &ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.HaltCh():
		return nil, ErrDispatcherClosed
	}
}

// Close stops the dispatch loop.
func (d *Dispatcher) Close() { d.Halt() }

func randomID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
