// Package status owns the widget's status slot.
package status

import (
	"sync"
	"time"

	"github.com/tuannvm/ticket-actions/internal/models"
)

// DefaultClearAfter is how long a transient message stays visible
const DefaultClearAfter = 5 * time.Second

// Snapshot is the slot content at a given generation
type Snapshot struct {
	Message    models.StatusMessage `json:"message"`
	Generation uint64               `json:"generation"`
}

// Reporter holds the single current status message. Every change bumps the
// generation; a scheduled clear only applies if no newer message was shown
// in the meantime.
type Reporter struct {
	clearAfter time.Duration

	mu      sync.Mutex
	current models.StatusMessage
	gen     uint64
	timer   *time.Timer
	closed  bool
	nextSub int
	subs    map[int]func(Snapshot)
}

// NewReporter creates a Reporter. A non-positive clearAfter uses DefaultClearAfter.
func NewReporter(clearAfter time.Duration) *Reporter {
	if clearAfter <= 0 {
		clearAfter = DefaultClearAfter
	}
	return &Reporter{
		clearAfter: clearAfter,
		subs:       make(map[int]func(Snapshot)),
	}
}

// Show replaces the current message and cancels any pending clear
func (r *Reporter) Show(msg models.StatusMessage) uint64 {
	snap, subs := r.set(msg, false)
	notify(subs, snap)
	return snap.Generation
}

// ShowTransient replaces the current message and clears it after the
// configured delay unless superseded
func (r *Reporter) ShowTransient(msg models.StatusMessage) uint64 {
	snap, subs := r.set(msg, true)
	notify(subs, snap)
	return snap.Generation
}

func (r *Reporter) set(msg models.StatusMessage, transient bool) (Snapshot, []func(Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gen++
	r.current = msg
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if transient && !r.closed {
		gen := r.gen
		r.timer = time.AfterFunc(r.clearAfter, func() { r.clear(gen) })
	}
	return Snapshot{Message: r.current, Generation: r.gen}, r.subscribers()
}

func (r *Reporter) clear(gen uint64) {
	r.mu.Lock()
	if r.gen != gen || r.closed {
		r.mu.Unlock()
		return
	}
	r.gen++
	r.current = models.StatusMessage{}
	r.timer = nil
	snap := Snapshot{Message: r.current, Generation: r.gen}
	subs := r.subscribers()
	r.mu.Unlock()

	notify(subs, snap)
}

// Current returns the slot content
func (r *Reporter) Current() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{Message: r.current, Generation: r.gen}
}

// Subscribe registers fn for every change. The returned func unregisters it.
func (r *Reporter) Subscribe(fn func(Snapshot)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// Close stops any pending clear. The reporter keeps accepting messages but
// no longer schedules clears.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// subscribers must be called with r.mu held
func (r *Reporter) subscribers() []func(Snapshot) {
	if len(r.subs) == 0 {
		return nil
	}
	out := make([]func(Snapshot), 0, len(r.subs))
	for _, fn := range r.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
