// Package engine drives practice attempts. Each action composes the
// difficulty adapter, escalation queue, review scheduler, blank generator
// and mastery tracker inside one store transaction; the components never
// call each other.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/abhisek/mathprogress/internal/concepts"
	"github.com/abhisek/mathprogress/internal/hints"
	"github.com/abhisek/mathprogress/internal/spacedrep"
	"github.com/abhisek/mathprogress/internal/store"
)

const tracerName = "github.com/abhisek/mathprogress/internal/engine"

// DefaultTotalCount is the number of new questions in an attempt when the
// caller does not say.
const DefaultTotalCount = 10

var (
	// ErrAttemptCompleted is returned for actions on a finished attempt.
	ErrAttemptCompleted = errors.New("attempt already completed")

	// ErrNotServed is returned when an answer is submitted for a question
	// that is not the one currently served.
	ErrNotServed = errors.New("question is not the one currently served")

	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConceptLocked is matched by *LockedError.
	ErrConceptLocked = errors.New("concept is locked")
)

// LockedError is returned when an attempt names a concept whose direct
// prerequisites are not all mastered yet.
type LockedError struct {
	ConceptID string
	Unmet     []string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("concept %q is locked: prerequisites %v not mastered", e.ConceptID, e.Unmet)
}

func (e *LockedError) Is(target error) bool { return target == ErrConceptLocked }

// Service is safe for concurrent use; actions are serialized by the store.
type Service struct {
	store *store.Store

	mu    sync.RWMutex
	graph *concepts.Graph

	rngMu sync.Mutex
	rng   *rand.Rand

	cal          *spacedrep.Calendar
	hints        hints.Provider
	defaultTotal int
	now          func() time.Time
	newID        func() string

	logger  *zap.Logger
	metrics *metrics
	tracer  trace.Tracer
}

type settings struct {
	logger       *zap.Logger
	registerer   prometheus.Registerer
	tracing      trace.TracerProvider
	cal          *spacedrep.Calendar
	rng          *rand.Rand
	hints        hints.Provider
	defaultTotal int
	now          func() time.Time
	newID        func() string
}

// Option configures a Service.
type Option func(*settings)

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRegisterer registers the engine metrics with r. Without it they are
// kept in a private registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = r }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) { s.tracing = tp }
}

// WithCalendar sets the calendar that dates spaced reviews.
func WithCalendar(c *spacedrep.Calendar) Option {
	return func(s *settings) { s.cal = c }
}

// WithRand seeds question selection.
func WithRand(r *rand.Rand) Option {
	return func(s *settings) { s.rng = r }
}

// WithHints sets the provider used to resolve hint text after a miss.
func WithHints(p hints.Provider) Option {
	return func(s *settings) { s.hints = p }
}

// WithDefaultTotal sets the attempt length used when StartInput has none.
func WithDefaultTotal(n int) Option {
	return func(s *settings) { s.defaultTotal = n }
}

// WithClock overrides the time source for attempt and mastery timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithIDGenerator overrides uuid generation for attempts and focus checks.
func WithIDGenerator(f func() string) Option {
	return func(s *settings) { s.newID = f }
}

// New builds a Service over st and loads the concept graph.
func New(ctx context.Context, st *store.Store, opts ...Option) (*Service, error) {
	cfg := settings{
		logger:       zap.NewNop(),
		registerer:   prometheus.NewRegistry(),
		tracing:      otel.GetTracerProvider(),
		cal:          spacedrep.NewCalendar(spacedrep.DefaultUTCOffset),
		hints:        hints.StaticProvider{},
		defaultTotal: DefaultTotalCount,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	m, err := newMetrics(cfg.registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	s := &Service{
		store:        st,
		rng:          cfg.rng,
		cal:          cfg.cal,
		hints:        cfg.hints,
		defaultTotal: cfg.defaultTotal,
		now:          cfg.now,
		newID:        cfg.newID,
		logger:       cfg.logger,
		metrics:      m,
		tracer:       cfg.tracing.Tracer(tracerName),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rebuilds the concept graph from the store.
func (s *Service) Reload(ctx context.Context) error {
	all, err := s.store.Concepts().All(ctx)
	if err != nil {
		return fmt.Errorf("load concepts: %w", err)
	}
	g := concepts.NewGraph(all)

	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()

	s.logger.Debug("concept graph loaded", zap.Int("concepts", len(all)))
	return nil
}

// Graph returns the loaded concept graph.
func (s *Service) Graph() *concepts.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

func (s *Service) id() string {
	if s.newID != nil {
		return s.newID()
	}
	return uuid.NewString()
}

// childRand forks a private source so components never share one.
func (s *Service) childRand() *rand.Rand {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
}

// update runs fn in a store transaction and counts conflict retries.
func (s *Service) update(ctx context.Context, fn func(tx *store.Tx) error) error {
	runs := 0
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		runs++
		return fn(tx)
	})
	if runs > 1 {
		s.metrics.conflictRetries.Add(float64(runs - 1))
	}
	return err
}

// span starts a span for an engine action. The returned func ends it,
// recording err and the action duration.
func (s *Service) span(ctx context.Context, action string, attrs ...attribute.KeyValue) (context.Context, func(err *error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "engine."+action, trace.WithAttributes(attrs...))
	return ctx, func(err *error) {
		if err != nil && *err != nil {
			span.RecordError(*err)
			span.SetStatus(codes.Error, (*err).Error())
		}
		span.End()
		s.metrics.duration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	}
}
