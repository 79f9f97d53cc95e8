// Package main resets every user's quarterly points at the start of a new
// leaderboard season. Run it while the bot is stopped or idle; it takes a
// snapshot first when object storage is configured.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/logger"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/r2client"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/snapshot"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/storage"
)

type options struct {
	yes        bool
	dryRun     bool
	skipBackup bool
	dataDir    string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "resetquarter",
		Short: "Reset quarterly leaderboard points",
		Long: `Sets quarterly_points to zero for every profile. Total points, levels and
achievements are not touched. Requires --yes unless --dry-run is given.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), out, opts)
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "confirm the reset")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report what would be reset and exit")
	cmd.Flags().BoolVar(&opts.skipBackup, "skip-backup", false, "do not upload a snapshot before resetting")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "data directory (overrides "+config.EnvDataDir+")")
	return cmd
}

func run(ctx context.Context, out io.Writer, opts options) error {
	if !opts.yes && !opts.dryRun {
		return errors.New("refusing to reset without --yes (use --dry-run to preview)")
	}

	cfg, err := config.LoadForMaintenance()
	if err != nil {
		return err
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	log := logger.NewWithWriter(cfg.LogLevel, out).WithModule("resetquarter")

	path := cfg.SQLitePath()
	if _, statErr := os.Stat(path); statErr != nil {
		return fmt.Errorf("database %s: %w", filepath.Clean(path), statErr)
	}
	db, err := storage.New(ctx, path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	profiles, err := db.CountProfiles(ctx)
	if err != nil {
		return err
	}
	if opts.dryRun {
		_, _ = fmt.Fprintf(out, "dry run: quarterly points of %d profiles would be reset\n", profiles)
		return nil
	}

	if cfg.SnapshotEnabled() && !opts.skipBackup {
		if err := backup(ctx, cfg, db, log); err != nil {
			return fmt.Errorf("backup before reset: %w", err)
		}
	}

	n, err := db.ResetQuarterlyPoints(ctx)
	if err != nil {
		return err
	}
	log.Info("quarterly points reset", "profiles", n)
	_, _ = fmt.Fprintf(out, "reset quarterly points of %d profiles\n", n)
	return nil
}

func backup(ctx context.Context, cfg *config.Config, db *storage.DB, log *logger.Logger) error {
	store, err := r2client.New(ctx, r2client.Config{
		Endpoint:    cfg.SnapshotEndpoint,
		AccessKeyID: cfg.SnapshotAccessKey,
		SecretKey:   cfg.SnapshotSecretKey,
		BucketName:  cfg.SnapshotBucket,
	})
	if err != nil {
		return err
	}
	uploadCtx, cancel := context.WithTimeout(ctx, config.SnapshotUploadTimeout)
	defer cancel()
	_, err = snapshot.New(store, snapshot.Config{
		Key:     cfg.SnapshotKey,
		TempDir: cfg.DataDir,
		Logger:  log,
	}).Upload(uploadCtx, db)
	return err
}
