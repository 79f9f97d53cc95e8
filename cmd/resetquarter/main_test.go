package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/storage"
)

func seed(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvSnapshotEndpoint, "")
	t.Setenv(config.EnvLogLevel, "error")

	dir := t.TempDir()
	ctx := context.Background()
	db, err := storage.New(ctx, filepath.Join(dir, "eco.db"))
	require.NoError(t, err)
	defer db.Close()
	for id, pts := range map[string]int{"U1": 40, "U2": 15} {
		_, err := db.GetOrCreateProfile(ctx, id, "")
		require.NoError(t, err)
		_, err = db.AddPoints(ctx, id, pts)
		require.NoError(t, err)
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResetQuarter_RequiresConfirmation(t *testing.T) {
	dir := seed(t)

	_, err := execute(t, "--data-dir", dir)
	require.ErrorContains(t, err, "--yes")
}

func TestResetQuarter_DryRun(t *testing.T) {
	dir := seed(t)

	out, err := execute(t, "--data-dir", dir, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "quarterly points of 2 profiles would be reset")

	db, err := storage.New(context.Background(), filepath.Join(dir, "eco.db"))
	require.NoError(t, err)
	defer db.Close()
	top, err := db.Leaderboard(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestResetQuarter_Reset(t *testing.T) {
	dir := seed(t)

	out, err := execute(t, "--data-dir", dir, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "reset quarterly points of 2 profiles")

	ctx := context.Background()
	db, err := storage.New(ctx, filepath.Join(dir, "eco.db"))
	require.NoError(t, err)
	defer db.Close()
	top, err := db.Leaderboard(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, top)

	p, err := db.GetOrCreateProfile(ctx, "U1", "")
	require.NoError(t, err)
	assert.Equal(t, 40, p.TotalPoints)
	assert.Zero(t, p.QuarterlyPoints)
}

func TestResetQuarter_MissingDatabase(t *testing.T) {
	t.Setenv(config.EnvSnapshotEndpoint, "")

	_, err := execute(t, "--data-dir", t.TempDir(), "--yes")
	require.ErrorContains(t, err, "eco.db")
}

func TestResetQuarter_RejectsArgs(t *testing.T) {
	_, err := execute(t, "now")
	require.Error(t, err)
}
