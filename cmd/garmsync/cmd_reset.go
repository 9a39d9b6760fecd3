package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var flagForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Move failed ledger entries back to pending so the next sync retries them",
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&flagForce, "force", false, "skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
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

	if !flagForce {
		fmt.Printf("Reset all failed sync entries for %s? [y/N] ", userID)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading confirmation: %w", err)
		}
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	n, err := store.ResetFailed(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Printf("Reset %d entries to pending.\n", n)
	return nil
}
