package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meltforce/garmsync/internal/api"
	"github.com/meltforce/garmsync/internal/auth"
	"github.com/meltforce/garmsync/internal/config"
	"github.com/meltforce/garmsync/internal/metrics"
	"github.com/meltforce/garmsync/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	flagConfig  string
	flagDBPath  string
	flagUserID  string
	flagVerbose bool

	rootCmd = &cobra.Command{
		Use:           "garmsync",
		Short:         "Sync Garmin Connect health data into a local SQLite database",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "interrupted")
		os.Exit(130)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "path to the SQLite database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagUserID, "user-id", "", "Garmin display name (fetched from the API when omitted)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(loginCmd, syncCmd, statusCmd, resetCmd, backfillCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}
	return cfg, nil
}

func openStore(cfg *config.Config, log *slog.Logger) (*storage.Store, error) {
	dbPath, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, err
	}
	return storage.Open(dbPath, log)
}

// newAuthClient builds the SSO client over the profile's token store and
// loads any persisted tokens.
func newAuthClient(cfg *config.Config, log *slog.Logger) (*auth.Client, error) {
	profileDir, err := cfg.ResolveProfilePath()
	if err != nil {
		return nil, err
	}
	authClient := auth.NewClient(cfg, auth.NewStore(profileDir, log), log)
	if err := authClient.LoadTokens(); err != nil {
		return nil, err
	}
	return authClient, nil
}

func newAccessor(cfg *config.Config, log *slog.Logger) (*metrics.Accessor, error) {
	authClient, err := newAuthClient(cfg, log)
	if err != nil {
		return nil, err
	}
	return metrics.NewAccessor(api.NewClient(cfg, authClient, log), log), nil
}

// resolveUserID returns the --user-id flag value, or asks the API for the
// authenticated profile's display name.
func resolveUserID(ctx context.Context, cfg *config.Config, log *slog.Logger) (string, error) {
	if flagUserID != "" {
		return flagUserID, nil
	}
	accessor, err := newAccessor(cfg, log)
	if err != nil {
		return "", err
	}
	userID, err := accessor.UserID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving user id (pass --user-id to skip the lookup): %w", err)
	}
	return userID, nil
}
