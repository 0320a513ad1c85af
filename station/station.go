// Package station implements the per-train runtime pipeline (C5):
// layout -> window -> trigger -> transform -> emit, wired from a validated
// plan.Plan. Lifecycle follows the teacher's component.LifecycleComponent
// pattern (Initialize/Start/Stop) verbatim.
package station

import (
	"context"
	goerrors "errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/data-tracks/DataTracks/component"
	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/metric"
	"github.com/data-tracks/DataTracks/transform"
	"github.com/data-tracks/DataTracks/value"
	"github.com/data-tracks/DataTracks/window"
)

// Option configures a Station using the functional options pattern
// (grounded on pkg/buffer's Option[T]).
type Option func(*Station)

// WithLayout sets the station's layout coercion.
func WithLayout(l Layout) Option {
	return func(s *Station) { s.layout = l }
}

// WithWindow sets the station's window spec and triggers. A zero Spec
// (spec.HasWindow() == false) leaves the station unwindowed: every train
// fires immediately.
func WithWindow(spec window.Spec, triggers []window.Trigger) Option {
	return func(s *Station) {
		s.windowSpec = spec
		if spec.HasWindow() {
			s.windowMgr = window.NewManager(spec, triggers)
			s.triggers = triggers
		}
	}
}

// WithTransform sets the station's transform driver. A nil driver makes
// the station a pass-through.
func WithTransform(d transform.Driver) Option {
	return func(s *Station) { s.driver = d }
}

// WithDeadLetter routes layout-mismatch trains, and every train of a batch
// whose transform returns an error, to dl instead of silently dropping them.
func WithDeadLetter(dl *Line) Option {
	return func(s *Station) { s.deadLetter = dl }
}

// Recorder durably records a train this station emitted, before fan-out
// to Sinks, returning the sequence number it was assigned (a WAL LSN).
// Wiring a Recorder is how emitted trains reach the write-ahead log and,
// from there, a bound engine persister.
type Recorder func(stationID string, t *value.Train) (uint64, error)

// WithRecorder attaches a Recorder called once per emitted train, before
// it is sent to any Sink. A nil Recorder (the default) records nothing.
func WithRecorder(r Recorder) Option {
	return func(s *Station) { s.recorder = r }
}

// WithLogger attaches a logger; defaults to slog.Default() otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Station) { s.logger = logger }
}

// WithMetrics attaches the platform's core metrics recorder. Without one,
// the station still runs correctly but reports no Prometheus metrics.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Station) { s.metrics = m }
}

// Station runs one node of a plan.Plan: it reads trains from its Sources,
// pushes them through layout coercion, windowing/triggers, the transform
// driver, and emits the results onto its Sinks in sorted line-id order.
type Station struct {
	ID      string
	Sources []*Line
	Sinks   []*Line

	layout     Layout
	windowSpec window.Spec
	windowMgr  *window.Manager
	triggers   []window.Trigger
	driver     transform.Driver
	deadLetter *Line
	recorder   Recorder
	logger     *slog.Logger
	metrics    *metric.Metrics

	state  component.State
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New constructs a Station in StateCreated; call Initialize then Start to
// run it.
func New(id string, sources, sinks []*Line, opts ...Option) *Station {
	s := &Station{ID: id, Sources: sources, Sinks: sinks, state: component.StateCreated}
	sort.Slice(s.Sinks, func(i, j int) bool { return s.Sinks[i].ID < s.Sinks[j].ID })
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Initialize validates the station is ready to run (e.g. at least one
// source), transitioning StateCreated -> StateInitialized.
func (s *Station) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != component.StateCreated {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "station", "Initialize", s.ID)
	}
	if len(s.Sources) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "station", "Initialize", "station "+s.ID+" has no sources")
	}
	s.state = component.StateInitialized
	return nil
}

// Start launches one goroutine per source Line that reads trains and feeds
// them through the pipeline until ctx is canceled or Stop is called.
func (s *Station) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != component.StateInitialized {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "station", "Start", s.ID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = component.StateStarted
	s.mu.Unlock()

	for _, src := range s.Sources {
		s.wg.Add(1)
		go s.run(runCtx, src)
	}
	return nil
}

// Stop cancels the pipeline and waits up to timeout for in-flight trains to
// drain.
func (s *Station) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.state != component.StateStarted {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.state = component.StateStopped
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrBackpressureTimeout, "station", "Stop", s.ID)
	}
}

func (s *Station) run(ctx context.Context, src *Line) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case train, ok := <-src.Receive():
			if !ok {
				return
			}
			s.process(ctx, train)
		}
	}
}

func (s *Station) process(ctx context.Context, train *value.Train) {
	for _, w := range train.Wagons() {
		if err := s.layout.Coerce(w); err != nil {
			s.logger.Warn("layout mismatch", "station", s.ID, "error", err)
			s.toDeadLetter(ctx, train, err)
			return
		}
	}

	var batches []window.Batch
	if s.windowMgr != nil {
		fired, late := s.windowMgr.Add(train)
		if late != nil {
			if goerrors.Is(late, errors.ErrWindowLateDiscarded) {
				s.logger.Info("late train discarded", "station", s.ID, "error", late)
				if s.metrics != nil {
					s.metrics.RecordTrainLateDiscard(s.ID)
				}
			} else {
				s.logger.Info("late train", "station", s.ID, "error", late)
			}
		}
		batches = fired
	} else {
		batches = []window.Batch{{Trains: []*value.Train{train}}}
	}

	for _, batch := range batches {
		s.runBatch(ctx, batch)
	}
}

func (s *Station) runBatch(ctx context.Context, batch window.Batch) {
	trains := batch.Trains
	if s.driver != nil {
		out, err := s.driver.Run(ctx, trains)
		if err != nil {
			s.logger.Error("transform failed", "station", s.ID, "error", err)
			for _, t := range trains {
				s.toDeadLetter(ctx, t, err)
			}
			return
		}
		trains = out
	}
	for _, t := range trains {
		s.emit(ctx, t)
	}
}

// emit records t (if a Recorder is attached) and sends it to every sink,
// in sorted line-id order, blocking on a full outgoing queue
// (backpressure) per the emit invariant.
func (s *Station) emit(ctx context.Context, t *value.Train) {
	if s.recorder != nil {
		if _, err := s.recorder(s.ID, t); err != nil {
			s.logger.Error("record failed", "station", s.ID, "error", err)
		}
	}
	for _, sink := range s.Sinks {
		if err := sink.Send(ctx, t); err != nil {
			s.logger.Error("emit blocked past deadline", "station", s.ID, "sink", sink.ID, "error", err)
		}
	}
}

func (s *Station) toDeadLetter(ctx context.Context, t *value.Train, cause error) {
	if s.deadLetter == nil {
		return
	}
	if err := s.deadLetter.Send(ctx, t); err != nil {
		s.logger.Error("dead-letter send failed", "station", s.ID, "error", err, "cause", cause)
	}
}
