package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meltforce/garmsync/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync ledger counts and recent failures",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	userID, err := resolveUserID(ctx, cfg, log)
	if err != nil {
		return err
	}

	counts, err := store.CountsByState(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Printf("Sync status for %s\n\n", userID)
	total := 0
	for _, state := range []string{storage.StatusCompleted, storage.StatusSkipped, storage.StatusFailed, storage.StatusPending} {
		fmt.Printf("  %-10s %d\n", state, counts[state])
		total += counts[state]
	}
	fmt.Printf("  %-10s %d\n", "total", total)

	failures, err := store.RecentFailures(ctx, userID, 10)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		fmt.Printf("\nRecent failures:\n")
		for _, f := range failures {
			msg := ""
			if f.ErrorMessage != nil {
				msg = *f.ErrorMessage
			}
			fmt.Printf("  %s  %-20s %s\n", f.SyncDate, f.MetricKind, msg)
		}
	}

	recent, err := store.RecentSyncs(ctx, userID, 5)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		fmt.Printf("\nMost recent syncs:\n")
		for _, r := range recent {
			syncedAt := ""
			if r.SyncedAt != nil {
				syncedAt = *r.SyncedAt
			}
			fmt.Printf("  %s  %s  %-20s %s\n", syncedAt, r.SyncDate, r.MetricKind, r.State)
		}
	}
	return nil
}
