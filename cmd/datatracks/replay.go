package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/data-tracks/DataTracks/config"
	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/persist"
	_ "github.com/data-tracks/DataTracks/persist/drivers"
	"github.com/data-tracks/DataTracks/plan"
	"github.com/data-tracks/DataTracks/wal"
)

var (
	replayEngineID     string
	replayDefinitionID string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "re-scan the write-ahead log and redispatch trains to one engine binding",
	Long: "replay reads every WAL record addressed to the given (engine-id, definition-id) " +
		"binding starting just after its last applied LSN (recorded in offsets.db) and " +
		"applies each one to the bound engine in order, advancing the cursor as it goes. " +
		"Used to catch an engine back up after extended downtime exceeds the delay ring's retention.",
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayEngineID, "engine-id", "", "engine binding to replay into (required)")
	replayCmd.Flags().StringVar(&replayDefinitionID, "definition-id", "", "definition (station) id to replay (required)")
	_ = replayCmd.MarkFlagRequired("engine-id")
	_ = replayCmd.MarkFlagRequired("definition-id")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntimeConfig()
	if err != nil {
		return withExitCode(exitBadConfigOrPlan, err)
	}

	var binding config.EngineBinding
	found := false
	for _, e := range cfg.Engines {
		if e.EngineID == replayEngineID && e.DefinitionID == replayDefinitionID {
			binding, found = e, true
			break
		}
	}
	if !found {
		return withExitCode(exitBadConfigOrPlan,
			fmt.Errorf("no engine binding for engine-id=%s definition-id=%s", replayEngineID, replayDefinitionID))
	}

	offsets, err := persist.OpenOffsets(cfg.OffsetsDB)
	if err != nil {
		return withExitCode(exitFatalEngineInit, err)
	}
	defer offsets.Close()

	lastApplied, err := offsets.Load(binding.EngineID, binding.DefinitionID)
	if err != nil {
		return withExitCode(exitFatalEngineInit, err)
	}

	w := wal.Open(cfg.WAL.Dir, wal.WithDelayRingSize(cfg.WAL.DelayRingSize), wal.WithLogger(logger))
	if err := w.Initialize(); err != nil {
		return withExitCode(exitWalCorrupt, err)
	}

	records, err := w.Scan(lastApplied + 1)
	if err != nil {
		return withExitCode(exitWalCorrupt, err)
	}

	engine, err := persist.BuildEngine(binding.Kind, binding.DSN)
	if err != nil {
		return withExitCode(exitFatalEngineInit, err)
	}
	defer engine.Close()

	stationIDNum := uint32(plan.InternID(binding.DefinitionID))
	ctx := context.Background()
	applied := 0
	for _, rec := range records {
		if rec.StationID != stationIDNum {
			continue
		}
		if err := engine.Apply(ctx, rec.Train); err != nil {
			if errors.IsFatal(err) {
				logger.Error("replay: fatal apply error, stopping", "lsn", rec.LSN, "error", err)
				return withExitCode(exitFatalEngineInit, err)
			}
			return withExitCode(exitFatalEngineInit, fmt.Errorf("replay: apply lsn %d: %w", rec.LSN, err))
		}
		if err := offsets.Save(binding.EngineID, binding.DefinitionID, rec.LSN); err != nil {
			return withExitCode(exitFatalEngineInit, err)
		}
		applied++
	}

	logger.Info("replay complete", "engine_id", binding.EngineID, "definition_id", binding.DefinitionID,
		"records_scanned", len(records), "records_applied", applied, "resumed_from_lsn", lastApplied+1)
	fmt.Printf("replayed %d record(s) for %s/%s\n", applied, binding.EngineID, binding.DefinitionID)
	return nil
}
