// Package sessions keeps the live simulation sessions served over HTTP.
package sessions

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kartoza/movie-predict/internal/simulation"
)

// ErrNotFound is returned for an unknown session id
var ErrNotFound = eris.New("sessions: session not found")

// Entry is one registered simulation session
type Entry struct {
	ID        string
	CreatedAt time.Time
	Session   *simulation.Session
	Views     *Broadcaster

	lastSeen atomic.Int64
}

// LastSeen is when the session was created or last looked up
func (e *Entry) LastSeen() time.Time {
	return time.Unix(0, e.lastSeen.Load()).UTC()
}

func (e *Entry) touch(now time.Time) {
	e.lastSeen.Store(now.UnixNano())
}

// Summary describes a session for listings
type Summary struct {
	ID        string  `json:"id"`
	CreatedAt string  `json:"createdAt"`
	State     string  `json:"state"`
	Score     string  `json:"score"`
	Baseline  float64 `json:"baselineProbability"`
}

// Registry holds sessions in memory. Nothing survives a restart; sessions
// nobody looks up are evicted by Sweep.
type Registry struct {
	predictor simulation.Predictor
	opts      []simulation.Option
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates a registry whose sessions recompute against predictor.
// opts are applied to every session it creates.
func NewRegistry(predictor simulation.Predictor, logger *zap.Logger, opts ...simulation.Option) *Registry {
	if logger == nil {
		logger = zap.L().Named("sessions")
	}
	return &Registry{
		predictor: predictor,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[string]*Entry),
	}
}

// Create opens a new session on baseline
func (r *Registry) Create(b simulation.Baseline) (*Entry, error) {
	id := uuid.New().String()
	views := NewBroadcaster()

	opts := append([]simulation.Option{
		simulation.WithLogger(r.logger.With(zap.String("session", id))),
	}, r.opts...)
	s := simulation.NewSession(r.predictor, views, opts...)
	if err := s.Open(b); err != nil {
		return nil, eris.Wrap(err, "sessions: open")
	}

	now := r.now()
	e := &Entry{ID: id, CreatedAt: now.UTC(), Session: s, Views: views}
	e.touch(now)

	r.mu.Lock()
	r.entries[id] = e
	r.mu.Unlock()

	r.logger.Info("session created", zap.String("session", id), zap.Int("active", r.Len()))
	return e, nil
}

// Get looks up a session and marks it as in use
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "id %q", id)
	}
	e.touch(r.now())
	return e, nil
}

// Reopen replaces the baseline of an existing session
func (r *Registry) Reopen(id string, b simulation.Baseline) (*Entry, error) {
	e, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if err := e.Session.Open(b); err != nil {
		return nil, eris.Wrap(err, "sessions: reopen")
	}
	return e, nil
}

// Delete closes and forgets a session
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if !ok {
		return eris.Wrapf(ErrNotFound, "id %q", id)
	}
	e.Session.Close()
	r.logger.Info("session deleted", zap.String("session", id))
	return nil
}

// List returns all sessions, newest first
func (r *Registry) List() []Summary {
	r.mu.RLock()
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		sum := Summary{
			ID:        e.ID,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
			State:     e.Session.State().String(),
			Score:     e.Session.View().Score,
		}
		if b, ok := e.Session.Baseline(); ok {
			sum.Baseline = b.SuccessProbability
		}
		out = append(out, sum)
	}
	return out
}

// Len returns the number of sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sweep closes and forgets sessions not looked up within maxIdle. It returns
// how many were evicted.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var idle []*Entry
	for id, e := range r.entries {
		if e.LastSeen().Before(cutoff) {
			idle = append(idle, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range idle {
		e.Session.Close()
		r.logger.Info("session evicted", zap.String("session", e.ID), zap.Time("last_seen", e.LastSeen()))
	}
	return len(idle)
}

// Run sweeps idle sessions until ctx is done. A non-positive maxIdle keeps
// sessions until they are deleted.
func (r *Registry) Run(ctx context.Context, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	interval := maxIdle / 4
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}

// Close closes every session
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*Entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.Session.Close()
	}
}
