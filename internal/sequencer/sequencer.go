// Package sequencer runs date-keyed reading loads and makes sure only the most
// recently issued load may change the visible state.
//
// Every load takes a generation token when it starts. Each later mutation
// compares that token with the current generation under the same lock as the
// mutation itself, so a superseded load can never overwrite the result of a
// newer one, whatever order the fetches finish in.
package sequencer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/typikon/internal/models"
)

// Event kinds passed to an Observer.
const (
	EventStarted   = "load.started"
	EventCommitted = "load.committed"
	EventFailed    = "load.failed"
)

// Loader produces the reconciled readings for a day.
type Loader interface {
	Readings(ctx context.Context, day time.Time) ([]models.UnifiedReading, error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc func(ctx context.Context, day time.Time) ([]models.UnifiedReading, error)

// Readings calls f.
func (f LoaderFunc) Readings(ctx context.Context, day time.Time) ([]models.UnifiedReading, error) {
	return f(ctx, day)
}

// Observer is told about every state change that was actually applied.
type Observer func(kind string, st State)

// State is the visible result of the latest load.
type State struct {
	Date       string                  `json:"date,omitempty"`
	Generation uint64                  `json:"generation"`
	Readings   []models.UnifiedReading `json:"readings"`
	Loading    bool                    `json:"loading"`
	Error      string                  `json:"error,omitempty"`
}

// Sequencer owns the visible State.
type Sequencer struct {
	loader   Loader
	logger   *slog.Logger
	observer Observer
	baseCtx  context.Context

	gen atomic.Uint64

	mu    sync.Mutex
	state State

	wg sync.WaitGroup
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

// WithObserver registers fn for applied state changes.
func WithObserver(fn Observer) Option {
	return func(s *Sequencer) { s.observer = fn }
}

// WithContext sets the context used by loads started with Start.
func WithContext(ctx context.Context) Option {
	return func(s *Sequencer) { s.baseCtx = ctx }
}

// New creates a Sequencer around loader.
func New(loader Loader, opts ...Option) *Sequencer {
	s := &Sequencer{
		loader:  loader,
		logger:  slog.Default(),
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generation returns the token of the most recently issued load.
func (s *Sequencer) Generation() uint64 {
	return s.gen.Load()
}

// State returns a copy of the visible state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Load runs one load cycle for day and blocks until it finishes. It returns
// the cycle's token and whether the cycle's outcome was applied.
func (s *Sequencer) Load(ctx context.Context, day time.Time) (uint64, bool) {
	token := s.begin(day)
	return token, s.run(ctx, token, day)
}

// Start issues a load for day and runs it in the background. Earlier loads
// that are still in flight are not cancelled; they just lose.
func (s *Sequencer) Start(day time.Time) uint64 {
	token := s.begin(day)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(s.baseCtx, token, day)
	}()
	return token
}

// Wait blocks until every load issued with Start has finished.
func (s *Sequencer) Wait() {
	s.wg.Wait()
}

func (s *Sequencer) begin(day time.Time) uint64 {
	s.mu.Lock()
	token := s.gen.Add(1)
	s.state.Generation = token
	s.state.Date = day.Format(models.DateLayout)
	s.state.Loading = true
	s.state.Error = ""
	st := s.snapshot()
	s.mu.Unlock()

	s.logger.Debug("sequencer: load started",
		slog.Uint64("generation", token),
		slog.String("date", st.Date))
	s.notify(EventStarted, st)
	return token
}

func (s *Sequencer) run(ctx context.Context, token uint64, day time.Time) bool {
	readings, err := s.loader.Readings(ctx, day)
	if err != nil {
		return s.fail(token, err)
	}
	return s.commit(token, readings)
}

// commit applies readings only when token is still current. Readings are
// left untouched on failure so the previous result stays visible.
func (s *Sequencer) commit(token uint64, readings []models.UnifiedReading) bool {
	s.mu.Lock()
	if token != s.gen.Load() {
		s.mu.Unlock()
		s.superseded(token)
		return false
	}
	s.state.Readings = readings
	s.state.Loading = false
	st := s.snapshot()
	s.mu.Unlock()

	s.logger.Debug("sequencer: load committed",
		slog.Uint64("generation", token),
		slog.Int("readings", len(readings)))
	s.notify(EventCommitted, st)
	return true
}

func (s *Sequencer) fail(token uint64, err error) bool {
	s.mu.Lock()
	if token != s.gen.Load() {
		s.mu.Unlock()
		s.superseded(token)
		return false
	}
	s.state.Error = err.Error()
	s.state.Loading = false
	st := s.snapshot()
	s.mu.Unlock()

	s.logger.Warn("sequencer: load failed",
		slog.Uint64("generation", token),
		slog.String("error", err.Error()))
	s.notify(EventFailed, st)
	return true
}

func (s *Sequencer) superseded(token uint64) {
	s.logger.Debug("sequencer: load superseded", slog.Uint64("generation", token))
}

func (s *Sequencer) snapshot() State {
	st := s.state
	if st.Readings != nil {
		st.Readings = append([]models.UnifiedReading(nil), st.Readings...)
	}
	return st
}

func (s *Sequencer) notify(kind string, st State) {
	if s.observer != nil {
		s.observer(kind, st)
	}
}
