package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/data-tracks/DataTracks/config"
	"github.com/data-tracks/DataTracks/plan"
	"github.com/data-tracks/DataTracks/planstore"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "validate the config and every plan in the plan directory without running anything",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return withExitCode(exitBadConfigOrPlan, err)
	}

	store, err := planstore.New(cfg.PlanDir)
	if err != nil {
		return withExitCode(exitBadConfigOrPlan, err)
	}
	ids, err := store.List()
	if err != nil {
		return withExitCode(exitBadConfigOrPlan, err)
	}
	for _, id := range ids {
		rec, err := store.Get(id)
		if err != nil {
			return withExitCode(exitBadConfigOrPlan, err)
		}
		if _, err := plan.Build(rec.Spec); err != nil {
			return withExitCode(exitBadConfigOrPlan, fmt.Errorf("plan %s: %w", id, err))
		}
		fmt.Printf("plan %s: ok\n", id)
	}
	fmt.Printf("%d plan(s) valid\n", len(ids))
	return nil
}
