// Package worker provides the halt-channel goroutine-lifecycle helper
// used throughout this module's actors (frame transports, the session
// loop, the delivery engine). The pattern is the teacher's own
// (client2/connection.go embeds an equivalent type from the katzenpost
// core/worker package, which is not part of this retrieval pack): a
// WaitGroup-tracked set of goroutines that all select on a single
// close-once channel.
package worker

import "sync"

// Worker is meant to be embedded. Call Go to launch tracked goroutines
// and Halt to request and await their termination.
type Worker struct {
	haltOnce sync.Once
	haltCh   chan struct{}
	wg       sync.WaitGroup
	initOnce sync.Once
}

func (w *Worker) init() {
	w.initOnce.Do(func() {
		w.haltCh = make(chan struct{})
	})
}

// Go launches fn as a tracked goroutine.
func (w *Worker) Go(fn func()) {
	w.init()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// HaltCh returns the channel that closes when Halt is called.
func (w *Worker) HaltCh() <-chan struct{} {
	w.init()
	return w.haltCh
}

// Halt closes HaltCh (idempotently) and waits for every goroutine
// launched via Go to return.
func (w *Worker) Halt() {
	w.init()
	w.haltOnce.Do(func() { close(w.haltCh) })
	w.wg.Wait()
}
