package sessions

import (
	"context"
	"sync"

	"github.com/kartoza/movie-predict/internal/simulation"
)

// Broadcaster is a simulation.Renderer that keeps the latest view and wakes
// long-polling readers whenever it changes.
type Broadcaster struct {
	mu      sync.Mutex
	view    simulation.View
	version uint64
	changed chan struct{}
}

// NewBroadcaster creates a broadcaster at version 0
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{changed: make(chan struct{})}
}

// Render implements simulation.Renderer
func (b *Broadcaster) Render(v simulation.View) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view = v
	b.version++
	close(b.changed)
	b.changed = make(chan struct{})
}

// Latest returns the current view and its version
func (b *Broadcaster) Latest() (simulation.View, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view, b.version
}

// Wait blocks until the version moves past since or ctx is done. On ctx
// expiry it returns the current view together with ctx's error.
func (b *Broadcaster) Wait(ctx context.Context, since uint64) (simulation.View, uint64, error) {
	for {
		b.mu.Lock()
		if b.version > since {
			v, n := b.view, b.version
			b.mu.Unlock()
			return v, n, nil
		}
		ch := b.changed
		b.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			v, n := b.Latest()
			return v, n, ctx.Err()
		}
	}
}
