// Package snapshot uploads compressed copies of the SQLite database to
// object storage and restores the latest one into an empty data directory.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/logger"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/r2client"
)

const contentType = "application/zstd"

// Store is the object storage the snapshots live in.
type Store interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Source produces a consistent copy of the live database.
type Source interface {
	BackupTo(ctx context.Context, dst string) error
}

// Config holds manager settings.
type Config struct {
	Key     string // object key, e.g. "snapshots/eco.db.zst"
	TempDir string
	Logger  *logger.Logger
}

// Manager moves snapshots between the database and the store.
type Manager struct {
	store   Store
	key     string
	tempDir string
	logger  *logger.Logger
}

// Result describes an uploaded snapshot.
type Result struct {
	ETag           string
	RawBytes       int64
	CompressedSize int64
}

// ErrNotFound means the store holds no snapshot yet.
var ErrNotFound = errors.New("snapshot: not found")

// New creates a manager.
func New(store Store, cfg Config) *Manager {
	m := &Manager{store: store, key: cfg.Key, tempDir: cfg.TempDir, logger: cfg.Logger}
	if m.tempDir == "" {
		m.tempDir = os.TempDir()
	}
	if m.logger == nil {
		m.logger = logger.New("error")
	}
	return m
}

// Upload copies src, compresses the copy with zstd and uploads it.
func (m *Manager) Upload(ctx context.Context, src Source) (Result, error) {
	var res Result
	raw := filepath.Join(m.tempDir, fmt.Sprintf("snapshot_%d.db", time.Now().UnixNano()))
	if err := src.BackupTo(ctx, raw); err != nil {
		return res, fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(raw)

	compressed := raw + ".zst"
	n, err := compressFile(raw, compressed)
	if err != nil {
		return res, fmt.Errorf("compress snapshot: %w", err)
	}
	defer os.Remove(compressed)
	res.RawBytes = n

	f, err := os.Open(compressed)
	if err != nil {
		return res, fmt.Errorf("open compressed snapshot: %w", err)
	}
	defer f.Close()
	if info, statErr := f.Stat(); statErr == nil {
		res.CompressedSize = info.Size()
	}

	if res.ETag, err = m.store.Upload(ctx, m.key, f, contentType); err != nil {
		return res, fmt.Errorf("upload snapshot: %w", err)
	}
	m.logger.InfoContext(ctx, "snapshot uploaded",
		"key", m.key, "etag", res.ETag,
		"raw_bytes", res.RawBytes, "compressed_bytes", res.CompressedSize)
	return res, nil
}

// Restore downloads the latest snapshot into dst. dst is replaced only
// after the whole snapshot has been decompressed. Returns ErrNotFound when
// the store is empty.
func (m *Manager) Restore(ctx context.Context, dst string) (string, error) {
	body, etag, err := m.store.Download(ctx, m.key)
	if err != nil {
		if r2client.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("download snapshot: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	tmp := dst + ".restore"
	if err := decompressTo(body, tmp); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("decompress snapshot: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("install snapshot: %w", err)
	}
	m.logger.InfoContext(ctx, "snapshot restored", "key", m.key, "etag", etag, "path", dst)
	return etag, nil
}

func compressFile(srcPath, dstPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(enc, src)
	if err != nil {
		_ = enc.Close()
		return n, err
	}
	if err := enc.Close(); err != nil {
		return n, err
	}
	return n, dst.Sync()
}

func decompressTo(r io.Reader, dstPath string) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, dec); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
