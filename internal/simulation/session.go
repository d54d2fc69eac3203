package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kartoza/movie-predict/internal/models"
	"github.com/kartoza/movie-predict/internal/predict"
)

// DefaultQuietPeriod is how long sliders must settle before recomputing
const DefaultQuietPeriod = 500 * time.Millisecond

// State is the session lifecycle state
type State int

const (
	Inactive State = iota
	Active
	Recomputing
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Recomputing:
		return "recomputing"
	}
	return "inactive"
}

var (
	// ErrInactive is returned for operations that need an open session
	ErrInactive = eris.New("simulation: session is not open")
	// ErrStale marks a response superseded by a newer request or baseline
	ErrStale = eris.New("simulation: response superseded")
)

// Predictor is the prediction client a session recomputes against
type Predictor interface {
	Predict(ctx context.Context, payload map[string]any) (*models.PredictResponse, error)
}

// Session runs what-if simulations against a captured baseline prediction.
//
// Slider drags only refresh labels. Commits update the slider state and, once
// input settles for the quiet period, send one recompute request. Every
// request carries an increasing id and only the newest one may update the
// view, so a slow stale response can never overwrite a fresher score.
type Session struct {
	predictor Predictor
	renderer  Renderer
	logger    *zap.Logger
	format    *Formatter
	quiet     time.Duration
	after     AfterFunc
	baseCtx   context.Context
	debounce  *Debouncer[uint64]

	mu       sync.Mutex
	state    State
	baseline *Baseline
	sliders  SliderState
	view     View
	lastErr  error
	epoch    uint64
	seq      uint64
	epochCtx context.Context
	cancel   context.CancelFunc
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithQuietPeriod overrides the 500ms commit debounce
func WithQuietPeriod(d time.Duration) Option {
	return func(s *Session) {
		s.quiet = d
	}
}

// WithFormatter sets the label formatter
func WithFormatter(f *Formatter) Option {
	return func(s *Session) {
		s.format = f
	}
}

// WithTimer replaces the debounce timer source
func WithTimer(fn AfterFunc) Option {
	return func(s *Session) {
		s.after = fn
	}
}

// WithContext sets the parent context of debounced recompute requests
func WithContext(ctx context.Context) Option {
	return func(s *Session) {
		s.baseCtx = ctx
	}
}

// NewSession creates an inactive session. renderer may be nil.
func NewSession(predictor Predictor, renderer Renderer, opts ...Option) *Session {
	s := &Session{
		predictor: predictor,
		renderer:  renderer,
		logger:    zap.L().Named("simulation"),
		format:    defaultFormatter,
		quiet:     DefaultQuietPeriod,
		after:     realAfterFunc,
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debounce = NewDebouncer(s.quiet, s.onSettled, WithAfterFunc(s.after))
	return s
}

// Open captures baseline and shows its score with a cleared delta. Opening
// an already open session replaces the baseline wholesale; pending commits
// and in-flight responses for the old baseline are discarded.
func (s *Session) Open(b Baseline) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b = b.clone()

	s.debounce.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetEpoch()
	s.epochCtx, s.cancel = context.WithCancel(s.baseCtx)
	s.baseline = &b
	s.sliders = b.Sliders()
	s.state = Active
	s.lastErr = nil

	pct, score := scoreText(b.SuccessProbability)
	s.view = View{
		Visible: true,
		Percent: pct,
		Score:   score,
		Labels:  s.labelsFor(s.sliders),
	}
	s.render()

	s.logger.Debug("simulation opened",
		zap.Float64("baseline_probability", b.SuccessProbability),
		zap.Uint64("epoch", s.epoch),
	)
	return nil
}

// OnSliderDrag refreshes the label of field for an in-progress drag. It
// never changes slider state or reaches the network.
func (s *Session) OnSliderDrag(field Field, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Inactive {
		return
	}
	s.view.Labels.set(field, s.format.Label(field, raw))
	s.render()
}

// OnSliderCommit records a finalized slider value and schedules a debounced
// recompute. Invalid input keeps the last valid value.
func (s *Session) OnSliderCommit(field Field, raw string) error {
	s.mu.Lock()
	if s.state == Inactive {
		s.mu.Unlock()
		return ErrInactive
	}
	if !s.sliders.Apply(field, raw) {
		s.logger.Debug("ignoring invalid slider value",
			zap.String("field", string(field)),
			zap.String("raw", raw),
		)
	}
	s.view.Labels.set(field, s.format.Label(field, s.sliders.Raw(field)))
	s.render()
	epoch := s.epoch
	s.mu.Unlock()

	s.debounce.Trigger(epoch)
	return nil
}

func (s *Session) onSettled(epoch uint64) {
	// Failures are logged by recompute; superseded runs need nothing.
	_ = s.recompute(s.baseCtx, epoch)
}

// Recompute sends the current slider state to the predictor and updates the
// score and delta. Closing or reopening the session cancels the request.
func (s *Session) Recompute(ctx context.Context) error {
	return s.recompute(ctx, 0)
}

// recompute runs one request. A non-zero epoch must still be current.
func (s *Session) recompute(ctx context.Context, epoch uint64) error {
	s.mu.Lock()
	if s.state == Inactive {
		s.mu.Unlock()
		return ErrInactive
	}
	if epoch != 0 && epoch != s.epoch {
		s.mu.Unlock()
		return ErrStale
	}

	s.seq++
	id := s.seq
	payload := s.baseline.Payload(s.sliders)
	baseProb := s.baseline.SuccessProbability
	epochCtx := s.epochCtx

	s.state = Recomputing
	s.view.Dimmed = true
	s.view.Labels = s.labelsFor(s.sliders)
	s.render()
	s.mu.Unlock()

	reqCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(epochCtx, cancel)
	defer stop()
	defer cancel()

	resp, err := s.predictor.Predict(reqCtx, payload)
	var prob float64
	if err == nil {
		prob, err = predict.Probability(resp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id != s.seq {
		s.logger.Debug("discarding stale simulation response",
			zap.Uint64("request", id),
			zap.Uint64("latest", s.seq),
			zap.Error(err),
		)
		return ErrStale
	}

	s.state = Active
	s.view.Dimmed = false

	if err != nil {
		s.lastErr = err
		s.logger.Error("simulation recompute failed", zap.Uint64("request", id), zap.Error(err))
		s.render()
		return err
	}

	s.lastErr = nil
	s.view.Percent, s.view.Score = scoreText(prob)
	s.view.Delta = Classify(prob - baseProb)
	s.render()

	s.logger.Debug("simulation recomputed",
		zap.Uint64("request", id),
		zap.Float64("probability", prob),
		zap.String("delta", s.view.Delta.Label),
	)
	return nil
}

// Close hides the panel and discards the baseline and slider state
func (s *Session) Close() {
	s.debounce.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Inactive {
		return
	}
	s.resetEpoch()
	s.epochCtx, s.cancel = nil, nil
	s.baseline = nil
	s.sliders = SliderState{}
	s.state = Inactive
	s.lastErr = nil
	s.view = View{}
	s.render()
	s.logger.Debug("simulation closed")
}

// resetEpoch cancels in-flight work of the current baseline. Caller holds mu.
func (s *Session) resetEpoch() {
	if s.cancel != nil {
		s.cancel()
	}
	s.epoch++
	s.seq++
}

// render pushes the view to the renderer. Caller holds mu, so renders are
// serialized and the renderer must not call back into the session.
func (s *Session) render() {
	if s.renderer != nil {
		s.renderer.Render(s.view)
	}
}

func (s *Session) labelsFor(st SliderState) Labels {
	var l Labels
	for _, f := range Fields {
		l.set(f, s.format.Label(f, st.Raw(f)))
	}
	return l
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns the current rendered view
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Sliders returns the current slider state
func (s *Session) Sliders() SliderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sliders
}

// Baseline returns a copy of the active baseline
func (s *Session) Baseline() (Baseline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseline == nil {
		return Baseline{}, false
	}
	return s.baseline.clone(), true
}

// LastError returns the error of the latest failed recompute, nil after a
// success or a reopen
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Pending reports whether a committed change is waiting out the quiet period
func (s *Session) Pending() bool {
	return s.debounce.Pending()
}
