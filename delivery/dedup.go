package delivery

import (
	"fmt"
	"sync"
	"time"

	"github.com/yawning/bloom"
)

const (
	bloomM         = 1 << 16
	bloomK         = 4
	rotateInterval = 10 * time.Minute
)

// Dedup is a probable-duplicate fast path for incoming flood
// rebroadcasts of a message already heard directly or via an earlier
// flood copy (spec.md §4.5 "deduplication"). A rotating pair of Bloom
// filters flags keys likely already seen within the last two rotation
// windows; callers still confirm a hit with an exact store lookup
// before incrementing Message.HeardRepeats, since a Bloom filter can
// false-positive but never false-negative.
type Dedup struct {
	mu        sync.Mutex
	current   *bloom.Filter
	previous  *bloom.Filter
	rotatedAt time.Time
}

func NewDedup() *Dedup {
	return &Dedup{
		current:   bloom.New(bloomM, bloomK),
		previous:  bloom.New(bloomM, bloomK),
		rotatedAt: time.Now(),
	}
}

// Key builds the dedup fingerprint for an incoming message: the
// sender (as sync builds it: the stored contact ID for direct, and
// "channel:<index>:<sender name>" for channel),
// device-domain timestamp, and text, mirroring the fields the device
// itself uses to recognize a repeated flood copy.
func Key(sender string, timestamp uint32, text string) []byte {
	return []byte(fmt.Sprintf("%s|%d|%s", sender, timestamp, text))
}

// Probably reports whether key was likely seen in the current or
// previous rotation window.
func (d *Dedup) Probably(key []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maybeRotate()
	return d.current.Test(key) || d.previous.Test(key)
}

// Mark records key as seen in the current rotation window.
func (d *Dedup) Mark(key []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maybeRotate()
	d.current.Add(key)
}

func (d *Dedup) maybeRotate() {
	if time.Since(d.rotatedAt) < rotateInterval {
		return
	}
	d.previous = d.current
	d.current = bloom.New(bloomM, bloomK)
	d.rotatedAt = time.Now()
}
