/*
scheduler.go - Automated backup scheduler

PURPOSE:
  Periodically exports the full data set to a JSON file so a broken store
  can be restored with `shiftbook import`.

DESIGN:
  - gocron duration job, one run right after Start
  - Files are <dir>/shiftbook-<UTC timestamp>.json, written to a temp file
    and renamed so a crash never leaves a truncated backup
  - After each run only the newest Keep backups are kept

USAGE:
  bs, err := NewBackupScheduler(manager, BackupConfig{Dir: "backups", Interval: 24 * time.Hour, Keep: 7})
  bs.Start()
  // ... later
  bs.Stop()

SEE ALSO:
  - transfer/manager.go: ExportAll
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/warp/shiftbook/logfields"
	"github.com/warp/shiftbook/metrics"
	"github.com/warp/shiftbook/transfer"
)

const (
	backupPrefix     = "shiftbook-"
	backupSuffix     = ".json"
	backupTimeLayout = "20060102T150405Z"
	backupTimeout    = time.Minute
)

// BackupConfig configures a BackupScheduler.
type BackupConfig struct {
	Dir      string
	Interval time.Duration
	Keep     int
}

// BackupScheduler writes export snapshots on an interval.
type BackupScheduler struct {
	scheduler gocron.Scheduler
	manager   *transfer.Manager
	cfg       BackupConfig

	Logger   *slog.Logger
	Recorder metrics.Recorder
	Now      func() time.Time
}

// NewBackupScheduler creates a stopped scheduler.
func NewBackupScheduler(manager *transfer.Manager, cfg BackupConfig) (*BackupScheduler, error) {
	if cfg.Dir == "" {
		return nil, errors.New("backup directory is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("invalid backup interval %s", cfg.Interval)
	}
	if cfg.Keep < 1 {
		cfg.Keep = 1
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &BackupScheduler{
		scheduler: s,
		manager:   manager,
		cfg:       cfg,
		Logger:    slog.Default(),
		Recorder:  metrics.NoopRecorder{},
		Now:       time.Now,
	}, nil
}

// Start registers the backup job and starts the scheduler.
func (b *BackupScheduler) Start() error {
	_, err := b.scheduler.NewJob(
		gocron.DurationJob(b.cfg.Interval),
		gocron.NewTask(b.runScheduled),
		gocron.WithName("backup-export"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create backup job: %w", err)
	}
	b.scheduler.Start()
	b.Logger.Info("Backup scheduler started",
		logfields.Path(b.cfg.Dir),
		slog.Duration("interval", b.cfg.Interval))
	return nil
}

// Stop shuts the scheduler down, waiting for a running backup.
func (b *BackupScheduler) Stop() error {
	b.Logger.Info("Stopping backup scheduler")
	return b.scheduler.Shutdown()
}

func (b *BackupScheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()
	if _, err := b.RunOnce(ctx); err != nil {
		b.Logger.Error("Backup failed", logfields.Error(err))
	}
}

// RunOnce writes one backup and prunes old ones. It returns the new file's
// path.
func (b *BackupScheduler) RunOnce(ctx context.Context) (path string, err error) {
	defer func() { b.Recorder.IncBackup(err == nil) }()

	doc, err := b.manager.ExportAll(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(b.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	path = filepath.Join(b.cfg.Dir, backupPrefix+b.Now().UTC().Format(backupTimeLayout)+backupSuffix)
	if err := writeFileAtomic(path, doc); err != nil {
		return "", err
	}

	removed, err := pruneBackups(b.cfg.Dir, b.cfg.Keep)
	if err != nil {
		b.Logger.Warn("Failed to prune backups", logfields.Path(b.cfg.Dir), logfields.Error(err))
	}
	b.Logger.Info("Backup written", logfields.Path(path), logfields.Count(removed))
	return path, nil
}

func writeFileAtomic(path string, doc transfer.Document) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".shiftbook-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := transfer.Encode(tmp, doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move backup into place: %w", err)
	}
	return nil
}

// pruneBackups deletes all but the newest keep backups in dir and returns
// how many it removed.
func pruneBackups(dir string, keep int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix) {
			names = append(names, name)
		}
	}
	if len(names) <= keep {
		return 0, nil
	}

	// timestamps sort lexically
	sort.Strings(names)
	var errs []error
	removed := 0
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
