package connection

import (
	"context"
	"errors"
	"strconv"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

var errLoopStopped = errors.New("loop stopped")

// loop is one timer-driven task bound to a connection (QR acquisition,
// pairing poll, or both in sequence). Its persistence writes go through
// commit, which refuses to run once stop has returned.
type loop struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool

	// retired marks the tombstone of a deleted connection.
	retired bool
}

func newLoop(parent context.Context) *loop {
	ctx, cancel := context.WithCancel(parent)
	return &loop{ctx: ctx, cancel: cancel}
}

func (l *loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.cancel()
	l.mu.Unlock()
}

func (l *loop) commit(fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return errLoopStopped
	}
	return fn(l.ctx)
}

// loopRegistry keeps at most one live loop per connection.
type loopRegistry struct {
	loops cmap.ConcurrentMap[string, *loop]
}

func newLoopRegistry() *loopRegistry {
	return &loopRegistry{loops: cmap.New[*loop]()}
}

func loopKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// begin registers a new loop for id and stops the one it replaces. For a
// retired id the returned loop is already stopped.
func (r *loopRegistry) begin(parent context.Context, id uint) *loop {
	l := newLoop(parent)
	var prev *loop
	refused := false
	r.loops.Upsert(loopKey(id), l, func(exist bool, inMap, nl *loop) *loop {
		if exist && inMap.retired {
			refused = true
			return inMap
		}
		if exist {
			prev = inMap
		}
		return nl
	})
	if prev != nil {
		prev.stop()
	}
	if refused {
		l.stop()
	}
	return l
}

// end stops l and drops it, unless it has already been replaced.
func (r *loopRegistry) end(id uint, l *loop) {
	l.stop()
	r.loops.RemoveCb(loopKey(id), func(_ string, v *loop, exists bool) bool {
		return exists && v == l
	})
}

func (r *loopRegistry) cancel(id uint) bool {
	var stopped *loop
	r.loops.RemoveCb(loopKey(id), func(_ string, v *loop, exists bool) bool {
		if !exists || v.retired {
			return false
		}
		stopped = v
		return true
	})
	if stopped == nil {
		return false
	}
	stopped.stop()
	return true
}

// retire stops the running loop of id and blocks new ones.
func (r *loopRegistry) retire(id uint) {
	t := newLoop(context.Background())
	t.retired = true
	t.stop()

	var prev *loop
	r.loops.Upsert(loopKey(id), t, func(exist bool, inMap, nl *loop) *loop {
		if exist && inMap.retired {
			return inMap
		}
		if exist {
			prev = inMap
		}
		return nl
	})
	if prev != nil {
		prev.stop()
	}
}

// unretire lifts a retire whose delete did not go through.
func (r *loopRegistry) unretire(id uint) {
	r.loops.RemoveCb(loopKey(id), func(_ string, v *loop, exists bool) bool {
		return exists && v.retired
	})
}

func (r *loopRegistry) active(id uint) bool {
	l, ok := r.loops.Get(loopKey(id))
	return ok && !l.retired
}

func (r *loopRegistry) cancelAll() {
	for _, key := range r.loops.Keys() {
		if l, ok := r.loops.Pop(key); ok {
			l.stop()
		}
	}
}
