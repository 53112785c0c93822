// Package delivery implements the reliable direct-message delivery
// engine described in spec.md §4.5: a direct-to-flood retry state
// machine driven off an in-memory ack tracker, with duplicate flood
// suppression and prometheus counters alongside it.
package delivery

import (
	"sync"
	"time"

	"gitlab.com/yawning/avl.git"
)

// Mode is which transport flag a send attempt used.
type Mode int

const (
	ModeDirect Mode = iota
	ModeFlood
)

func (m Mode) String() string {
	if m == ModeFlood {
		return "flood"
	}
	return "direct"
}

// ackEntry is one outstanding ack_code awaiting either the device's
// "send confirmed" push or its own deadline (spec.md §3 AckTracking).
type ackEntry struct {
	ackCode    uint32
	messageID  string
	contactKey [6]byte
	attempt    int
	mode       Mode
	deadline   time.Time
	node       *avl.Node
}

// AckTracker is the process-memory-only ack_code -> tracking-entry
// table (spec.md §3's AckTracking). Deadlines are kept in an AVL tree
// ordered by (deadline, ack_code), grounded on
// server/internal/decoy.decoy's surbETAs tree, so a sweep only visits
// entries that have actually expired instead of scanning the whole
// map every tick.
type AckTracker struct {
	mu         sync.Mutex
	byCode     map[uint32]*ackEntry
	byDeadline *avl.Tree
	retired    map[uint32]time.Time
	retention  time.Duration
}

func ackCmp(a, b interface{}) int {
	ea, eb := a.(*ackEntry), b.(*ackEntry)
	switch {
	case ea.deadline.Before(eb.deadline):
		return -1
	case ea.deadline.After(eb.deadline):
		return 1
	case ea.ackCode < eb.ackCode:
		return -1
	case ea.ackCode > eb.ackCode:
		return 1
	default:
		return 0
	}
}

// NewAckTracker builds a tracker whose resolved entries are still
// remembered for retention, so a late duplicate "send confirmed" push
// is silently absorbed rather than treated as an error (spec.md §4.5:
// "ACKs for unknown codes are accepted and ignored after a 5-minute
// retention window").
func NewAckTracker(retention time.Duration) *AckTracker {
	return &AckTracker{
		byCode:     make(map[uint32]*ackEntry),
		byDeadline: avl.New(ackCmp),
		retired:    make(map[uint32]time.Time),
		retention:  retention,
	}
}

// Track begins tracking ackCode for a newly issued send attempt.
func (t *AckTracker) Track(ackCode uint32, messageID string, contactKey [6]byte, attempt int, mode Mode, deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &ackEntry{
		ackCode:    ackCode,
		messageID:  messageID,
		contactKey: contactKey,
		attempt:    attempt,
		mode:       mode,
		deadline:   deadline,
	}
	e.node = t.byDeadline.Insert(e)
	t.byCode[ackCode] = e
}

// Resolve removes tracking for ackCode on a confirmed ack, reporting
// whether it was a known, still-pending entry. A code that is unknown
// but was resolved or expired within the retention window is also
// reported as not-ok, but without logging-worthy surprise: it is an
// expected duplicate push.
func (t *AckTracker) Resolve(ackCode uint32) (messageID string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, found := t.byCode[ackCode]
	if !found {
		return "", false
	}
	delete(t.byCode, ackCode)
	t.byDeadline.Remove(e.node)
	t.retired[ackCode] = time.Now()
	return e.messageID, true
}

// Expired pops every entry whose deadline has passed, in deadline
// order, for the ARQ to act on.
func (t *AckTracker) Expired(now time.Time) []*ackEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*ackEntry
	iter := t.byDeadline.Iterator(avl.Forward)
	for node := iter.First(); node != nil; node = iter.Next() {
		e := node.Value.(*ackEntry)
		if e.deadline.After(now) {
			break
		}
		out = append(out, e)
	}
	for _, e := range out {
		delete(t.byCode, e.ackCode)
		t.byDeadline.Remove(e.node)
	}
	t.gcRetired(now)
	return out
}

func (t *AckTracker) gcRetired(now time.Time) {
	for code, at := range t.retired {
		if now.Sub(at) > t.retention {
			delete(t.retired, code)
		}
	}
}

// Clear drops every tracked entry and returns them, for the
// transport-disconnect contract (spec.md §4.5: "the ACK tracker is
// cleared").
func (t *AckTracker) Clear() []*ackEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*ackEntry, 0, len(t.byCode))
	for _, e := range t.byCode {
		out = append(out, e)
	}
	t.byCode = make(map[uint32]*ackEntry)
	t.byDeadline = avl.New(ackCmp)
	return out
}

// Len reports the number of entries currently tracked.
func (t *AckTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byCode)
}
