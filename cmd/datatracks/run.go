package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/data-tracks/DataTracks/config"
	"github.com/data-tracks/DataTracks/egress"
	"github.com/data-tracks/DataTracks/health"
	"github.com/data-tracks/DataTracks/ingress"
	"github.com/data-tracks/DataTracks/metric"
	"github.com/data-tracks/DataTracks/persist"
	_ "github.com/data-tracks/DataTracks/persist/drivers"
	"github.com/data-tracks/DataTracks/plan"
	"github.com/data-tracks/DataTracks/planstore"
	"github.com/data-tracks/DataTracks/station"
	"github.com/data-tracks/DataTracks/transform"
	_ "github.com/data-tracks/DataTracks/transform/sql"
	"github.com/data-tracks/DataTracks/value"
	"github.com/data-tracks/DataTracks/wal"
	"github.com/data-tracks/DataTracks/window"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "load every plan in the plan directory and run it until signaled",
	RunE:  runRun,
}

// engineRuntime is everything started for one process invocation, torn
// down in reverse order on shutdown.
type engineRuntime struct {
	logger       *slog.Logger
	w            *wal.WAL
	offsets      *persist.Offsets
	manager      *persist.Manager
	metrics      *metric.MetricsRegistry
	metricServer *metric.Server
	health       *health.Monitor
	lines        map[string]*station.Line
	stations     []*station.Station
	ingress      []*ingress.WebSocket
	egress       []*egress.WebSocket
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntimeConfig()
	if err != nil {
		return withExitCode(exitBadConfigOrPlan, err)
	}

	rt := &engineRuntime{
		logger:  logger,
		lines:   map[string]*station.Line{},
		metrics: metric.NewMetricsRegistry(),
		health:  health.NewMonitor(),
	}

	rt.metricServer = metric.NewServer(cfg.MetricsPort, "/metrics", rt.metrics)
	rt.metricServer.SetHealthCheck(func() (bool, any) {
		agg := rt.health.AggregateHealth("datatracks")
		return agg.IsHealthy(), rt.health.GetAll()
	})
	go func() {
		if err := rt.metricServer.Start(); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	rt.w = wal.Open(cfg.WAL.Dir, wal.WithDelayRingSize(cfg.WAL.DelayRingSize), wal.WithLogger(logger))
	if err := rt.w.Initialize(); err != nil {
		rt.health.UpdateUnhealthy("wal", err.Error())
		return withExitCode(exitWalCorrupt, fmt.Errorf("wal initialize: %w", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.w.Start(ctx); err != nil {
		rt.health.UpdateUnhealthy("wal", err.Error())
		return withExitCode(exitWalCorrupt, fmt.Errorf("wal start: %w", err))
	}
	rt.health.UpdateHealthy("wal", "started")

	rt.offsets, err = persist.OpenOffsets(cfg.OffsetsDB)
	if err != nil {
		return withExitCode(exitFatalEngineInit, fmt.Errorf("open offsets: %w", err))
	}

	retryCfg, err := cfg.Retry.ToRetryConfig()
	if err != nil {
		return withExitCode(exitBadConfigOrPlan, err)
	}
	rt.manager = persist.NewManager(rt.offsets, persist.WithRetryConfig(retryCfg), persist.WithLogger(logger))
	if err := rt.manager.Initialize(); err != nil {
		return withExitCode(exitFatalEngineInit, err)
	}

	for _, eb := range cfg.Engines {
		engine, err := persist.BuildEngine(eb.Kind, eb.DSN)
		if err != nil {
			return withExitCode(exitFatalEngineInit, fmt.Errorf("build engine %s: %w", eb.EngineID, err))
		}
		binding := persist.Binding{EngineID: eb.EngineID, DefinitionID: eb.DefinitionID}
		if err := rt.manager.Bind(ctx, binding, engine); err != nil {
			return withExitCode(exitFatalEngineInit, fmt.Errorf("bind engine %s: %w", eb.EngineID, err))
		}
		rt.health.UpdateHealthy("engine:"+eb.EngineID+"/"+eb.DefinitionID, "bound")
	}
	if err := rt.manager.Start(ctx); err != nil {
		return withExitCode(exitFatalEngineInit, err)
	}
	rt.health.UpdateHealthy("persist-manager", "started")

	store, err := planstore.New(cfg.PlanDir)
	if err != nil {
		return withExitCode(exitBadConfigOrPlan, err)
	}
	ids, err := store.List()
	if err != nil {
		return withExitCode(exitBadConfigOrPlan, err)
	}
	if len(ids) == 0 {
		logger.Warn("no plans found", "plan_dir", cfg.PlanDir)
	}

	for _, id := range ids {
		rec, err := store.Get(id)
		if err != nil {
			return withExitCode(exitBadConfigOrPlan, err)
		}
		built, err := plan.Build(rec.Spec)
		if err != nil {
			return withExitCode(exitBadConfigOrPlan, fmt.Errorf("plan %s: %w", id, err))
		}
		if err := rt.wirePlan(ctx, built, cfg); err != nil {
			return withExitCode(exitFatalEngineInit, fmt.Errorf("plan %s: %w", id, err))
		}
	}

	for _, s := range rt.stations {
		if err := s.Initialize(); err != nil {
			return withExitCode(exitFatalEngineInit, err)
		}
	}
	for _, s := range rt.stations {
		if err := s.Start(ctx); err != nil {
			return withExitCode(exitFatalEngineInit, err)
		}
		rt.health.UpdateHealthy("station:"+s.ID, "started")
	}
	for i, w := range rt.ingress {
		if err := w.Start(ctx); err != nil {
			return withExitCode(exitFatalEngineInit, err)
		}
		rt.health.UpdateHealthy(fmt.Sprintf("ingress:%d", i), "started")
	}
	for i, e := range rt.egress {
		if err := e.Start(ctx); err != nil {
			return withExitCode(exitFatalEngineInit, err)
		}
		rt.health.UpdateHealthy(fmt.Sprintf("egress:%d", i), "started")
	}

	go rt.watchDegradedEngines(ctx, cfg)

	logger.Info("datatracks running", "plans", len(ids), "stations", len(rt.stations))
	<-ctx.Done()
	logger.Info("shutting down")
	return rt.shutdown()
}

// wirePlan constructs the Lines and Stations for one built plan and adds
// them to rt, in the plan's topological order.
func (rt *engineRuntime) wirePlan(ctx context.Context, p *plan.Plan, cfg config.Config) error {
	for _, ln := range p.Lines {
		capacity := ln.Spec.Capacity
		if capacity <= 0 {
			capacity = 256
		}
		rt.lines[ln.Spec.ID] = station.NewLine(ln.Spec.ID, capacity)
	}

	planIDNum := uint16(plan.InternID(p.ID))

	for _, id := range p.Order {
		node := p.Stations[id]
		spec := node.Spec

		sources := make([]*station.Line, 0, len(node.InLines))
		for _, lineID := range node.InLines {
			sources = append(sources, rt.lines[lineID])
		}
		if node.IsIngress {
			extLine := station.NewLine(spec.ID+".ingress", cfg.WAL.DelayRingSize)
			rt.lines[extLine.ID] = extLine
			sources = append(sources, extLine)
		}

		sinks := make([]*station.Line, 0, len(node.OutLines))
		for _, lineID := range node.OutLines {
			sinks = append(sinks, rt.lines[lineID])
		}
		if node.IsEgress {
			extLine := station.NewLine(spec.ID+".egress", cfg.WAL.DelayRingSize)
			rt.lines[extLine.ID] = extLine
			sinks = append(sinks, extLine)
		}

		opts := []station.Option{station.WithLogger(rt.logger), station.WithMetrics(rt.metrics.CoreMetrics())}
		if spec.Layout != nil {
			opts = append(opts, station.WithLayout(station.NewLayout(spec.Layout)))
		}
		if spec.Window != "" {
			winSpec, err := window.ParseSpec(spec.Window, spec.Lateness)
			if err != nil {
				return fmt.Errorf("station %s: %w", spec.ID, err)
			}
			triggers, err := window.ParseTriggers(spec.Triggers)
			if err != nil {
				return fmt.Errorf("station %s: %w", spec.ID, err)
			}
			opts = append(opts, station.WithWindow(winSpec, triggers))
		}
		if spec.Transform != nil {
			driver, err := transform.Build(spec.Transform.Language, spec.Transform.Query)
			if err != nil {
				return fmt.Errorf("station %s: %w", spec.ID, err)
			}
			opts = append(opts, station.WithTransform(driver))
		}
		if spec.DeadLetter != "" {
			dl, ok := rt.lines[spec.DeadLetter]
			if !ok {
				return fmt.Errorf("station %s: unknown dead-letter line %q", spec.ID, spec.DeadLetter)
			}
			opts = append(opts, station.WithDeadLetter(dl))
		}

		if binding, engine := engineBindingFor(cfg, spec.ID); engine {
			stationIDNum := uint32(plan.InternID(spec.ID))
			opts = append(opts, station.WithRecorder(rt.recorderFor(planIDNum, stationIDNum, binding)))
		}

		rt.stations = append(rt.stations, station.New(spec.ID, sources, sinks, opts...))

		if node.IsIngress {
			if ib, ok := ingressBindingFor(cfg, spec.ID); ok {
				extLine := rt.lines[spec.ID+".ingress"]
				chBinding := ingress.NewChannelBinding(cfg.WAL.DelayRingSize)
				ws, err := ingress.NewWebSocket(spec.ID, ingress.Config{
					Path: ib.Path, HTTPPort: ib.HTTPPort, LineID: uint32(plan.InternID(extLine.ID)), QueueSize: cfg.WAL.DelayRingSize,
				}, chBinding, rt.metrics)
				if err != nil {
					return fmt.Errorf("station %s: ingress websocket: %w", spec.ID, err)
				}
				go forwardIngress(ctx, chBinding, extLine, rt.logger)
				rt.ingress = append(rt.ingress, ws)
			}
		}
		if node.IsEgress {
			if eb, ok := egressBindingFor(cfg, spec.ID); ok {
				extLine := rt.lines[spec.ID+".egress"]
				ws := egress.NewWebSocket(spec.ID, egress.Config{Path: eb.Path, HTTPPort: eb.HTTPPort, Topic: spec.ID}, rt.metrics)
				go forwardEgress(ctx, extLine, ws.Binding(), rt.logger)
				rt.egress = append(rt.egress, ws)
			}
		}
	}
	return nil
}

// recorderFor returns a station.Recorder that appends every emitted
// train to the WAL and, if an engine is bound to this station's
// definition, submits the resulting record to the persister pool.
func (rt *engineRuntime) recorderFor(planIDNum uint16, stationIDNum uint32, binding persist.Binding) station.Recorder {
	return func(stationID string, t *value.Train) (uint64, error) {
		lsn, err := rt.w.Append(planIDNum, stationIDNum, t)
		if err != nil {
			return 0, err
		}
		rec := wal.Record{LSN: lsn, PlanID: planIDNum, StationID: stationIDNum, Train: t}
		if err := rt.manager.Submit(binding, rec); err != nil {
			return lsn, err
		}
		return lsn, nil
	}
}

func forwardIngress(ctx context.Context, src *ingress.ChannelBinding, dst *station.Line, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-src.Trains():
			if !ok {
				return
			}
			if err := dst.Send(ctx, t); err != nil {
				logger.Error("ingress forward blocked", "line", dst.ID, "error", err)
			}
		}
	}
}

func forwardEgress(ctx context.Context, src *station.Line, dst egress.Binding, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-src.Receive():
			if !ok {
				return
			}
			if err := dst.Publish(t); err != nil {
				logger.Warn("egress publish dropped", "line", src.ID, "error", err)
			}
		}
	}
}

// watchDegradedEngines polls each bound engine's Degraded state and
// mirrors it into the health monitor, so /health reflects a persister
// stuck retrying without requiring engines to push their own status.
func (rt *engineRuntime) watchDegradedEngines(ctx context.Context, cfg config.Config) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, eb := range cfg.Engines {
				name := "engine:" + eb.EngineID + "/" + eb.DefinitionID
				binding := persist.Binding{EngineID: eb.EngineID, DefinitionID: eb.DefinitionID}
				if rt.manager.Degraded(binding) {
					rt.health.UpdateDegraded(name, "persister retrying, not keeping up with WAL")
				} else {
					rt.health.UpdateHealthy(name, "applying")
				}
			}
		}
	}
}

func engineBindingFor(cfg config.Config, stationID string) (persist.Binding, bool) {
	for _, e := range cfg.Engines {
		if e.DefinitionID == stationID {
			return persist.Binding{EngineID: e.EngineID, DefinitionID: e.DefinitionID}, true
		}
	}
	return persist.Binding{}, false
}

func ingressBindingFor(cfg config.Config, stationID string) (config.IngressBinding, bool) {
	for _, i := range cfg.Ingress {
		if i.StationID == stationID {
			return i, true
		}
	}
	return config.IngressBinding{}, false
}

func egressBindingFor(cfg config.Config, stationID string) (config.EgressBinding, bool) {
	for _, e := range cfg.Egress {
		if e.StationID == stationID {
			return e, true
		}
	}
	return config.EgressBinding{}, false
}

// shutdown tears down every component in reverse of its startup order,
// aggregating (not short-circuiting on) the first error encountered.
func (rt *engineRuntime) shutdown() error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, e := range rt.egress {
		note(e.Stop(shutdownTimeout))
	}
	for _, w := range rt.ingress {
		note(w.Stop(shutdownTimeout))
	}
	for i := len(rt.stations) - 1; i >= 0; i-- {
		note(rt.stations[i].Stop(shutdownTimeout))
	}
	if rt.manager != nil {
		note(rt.manager.Stop(shutdownTimeout))
	}
	if rt.offsets != nil {
		note(rt.offsets.Close())
	}
	if rt.w != nil {
		note(rt.w.Stop(shutdownTimeout))
	}
	if rt.metricServer != nil {
		note(rt.metricServer.Stop())
	}
	return withExitCode(exitFatalEngineInit, firstErr)
}

func loadRuntimeConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	return cfg, setupLogger(cfg.LogLevel, cfg.LogFormat), nil
}
