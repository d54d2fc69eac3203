package simulation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kartoza/movie-predict/internal/models"
)

// fakeClock is a virtual timer source. Advance fires due timers on the
// calling goroutine in deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.fn()
	}
}

// active counts timers that are scheduled and not yet fired or stopped
func (c *fakeClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// stubPredictor answers from a queue of canned results and records payloads
type stubPredictor struct {
	mu       sync.Mutex
	payloads []map[string]any
	results  []stubResult
	// block, when set, makes each call wait for a value before answering
	block chan stubResult
}

type stubResult struct {
	resp *models.PredictResponse
	err  error
}

func okResult(p float64) stubResult {
	return stubResult{resp: &models.PredictResponse{
		Success:    true,
		Prediction: &models.Prediction{SuccessProbability: &p},
	}}
}

func (s *stubPredictor) Predict(ctx context.Context, payload map[string]any) (*models.PredictResponse, error) {
	s.mu.Lock()
	s.payloads = append(s.payloads, payload)
	block := s.block
	var r stubResult
	if block == nil && len(s.results) > 0 {
		r = s.results[0]
		s.results = s.results[1:]
	}
	s.mu.Unlock()

	if block != nil {
		select {
		case r = <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.resp, r.err
}

func (s *stubPredictor) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func (s *stubPredictor) payload(i int) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloads[i]
}

// recordingRenderer keeps every rendered view
type recordingRenderer struct {
	mu    sync.Mutex
	views []View
}

func (r *recordingRenderer) Render(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recordingRenderer) last() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return View{}
	}
	return r.views[len(r.views)-1]
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
