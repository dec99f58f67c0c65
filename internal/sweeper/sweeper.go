// Package sweeper enforces the artifact retention window and reclaims disk
// space in emergencies.
package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pocketvid/pocketvid/internal/config"
	"github.com/pocketvid/pocketvid/internal/job"
	"github.com/pocketvid/pocketvid/internal/store"
)

// Sweeper periodically removes expired job artifacts, prunes their records
// and clears orphaned files by modification time.
type Sweeper struct {
	logger    hclog.Logger
	cfg       *config.Config
	jobs      store.Store[job.Record]
	playlists store.Store[job.PlaylistRecord]
	splits    store.Store[job.SplitRecord]

	now func() time.Time
}

// New creates a sweeper over the three category stores.
func New(logger hclog.Logger, cfg *config.Config,
	jobs store.Store[job.Record],
	playlists store.Store[job.PlaylistRecord],
	splits store.Store[job.SplitRecord],
) *Sweeper {
	return &Sweeper{
		logger:    logger.Named("sweeper"),
		cfg:       cfg,
		jobs:      jobs,
		playlists: playlists,
		splits:    splits,
		now:       time.Now,
	}
}

// SetNow replaces the clock, for tests.
func (s *Sweeper) SetNow(fn func() time.Time) { s.now = fn }

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval())
	defer ticker.Stop()

	s.logger.Info("sweeper started",
		"interval", s.cfg.CleanupInterval().String(),
		"retention", s.cfg.Retention().String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			removed := s.SweepOnce()
			if removed > 0 {
				s.logger.Info("cleanup completed", "deleted", removed)
			}
		}
	}
}

// SweepOnce removes artifacts and records past the retention window, then
// clears orphaned files older than the window. Returns files deleted.
func (s *Sweeper) SweepOnce() int {
	cutoff := s.now().Add(-s.cfg.Retention())
	deleted := 0

	var expired []string
	for fileID, rec := range s.jobs.Read() {
		if s.expired(rec, cutoff) {
			deleted += s.removeArtifacts(fileID)
			expired = append(expired, fileID)
		}
	}
	if len(expired) > 0 {
		if err := s.jobs.Delete(expired...); err != nil {
			s.logger.Error("could not prune job records", "error", err)
		}
	}

	deleted += s.pruneSplits(cutoff)
	s.prunePlaylists(cutoff)
	deleted += s.sweepOrphans(cutoff)
	return deleted
}

// expired applies the retention rule: completed jobs age from their
// completion time, stuck or failed jobs from their start time.
func (s *Sweeper) expired(rec job.Record, cutoff time.Time) bool {
	if t, ok := parseTime(rec.CompletedAt); ok {
		return t.Before(cutoff)
	}
	if t, ok := parseTime(rec.Timestamp); ok && t.Before(cutoff) {
		switch rec.Status {
		case job.StatusFailed, job.StatusDownloading, job.StatusConverting, job.StatusBurningSubtitles:
			return true
		}
	}
	return false
}

// removeArtifacts deletes every file derived from a fingerprint: the
// artifact itself, subtitled and temp intermediates, caption files and
// split parts.
func (s *Sweeper) removeArtifacts(fileID string) int {
	matches, err := filepath.Glob(filepath.Join(s.cfg.DownloadDir, fileID+"*"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err == nil {
			removed++
		} else {
			s.logger.Warn("could not remove artifact", "path", path, "error", err)
		}
	}
	return removed
}

func (s *Sweeper) pruneSplits(cutoff time.Time) int {
	deleted := 0
	var stale []string
	for splitID, rec := range s.splits.Read() {
		if t, ok := parseTime(rec.Timestamp); ok && t.Before(cutoff) {
			// Parts share the parent fingerprint prefix and go with it,
			// but remove them here too in case the parent job is gone.
			if rec.FileID != "" {
				matches, _ := filepath.Glob(filepath.Join(s.cfg.DownloadDir, rec.FileID+"_part*"))
				for _, path := range matches {
					if os.Remove(path) == nil {
						deleted++
					}
				}
			}
			stale = append(stale, splitID)
		}
	}
	if len(stale) > 0 {
		s.splits.Delete(stale...)
	}
	return deleted
}

func (s *Sweeper) prunePlaylists(cutoff time.Time) {
	var stale []string
	for playlistID, rec := range s.playlists.Read() {
		if t, ok := parseTime(rec.Timestamp); ok && t.Before(cutoff) {
			if rec.Status == "completed" || rec.Status == "failed" {
				stale = append(stale, playlistID)
			}
		}
	}
	if len(stale) > 0 {
		s.playlists.Delete(stale...)
	}
}

// sweepOrphans removes files nothing references once their mtime passes
// the retention window.
func (s *Sweeper) sweepOrphans(cutoff time.Time) int {
	entries, err := os.ReadDir(s.cfg.DownloadDir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.cfg.DownloadDir, entry.Name())
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	return removed
}

// EmergencyReclaim deletes finished artifacts in the download directory
// when disk space is critically low. Records survive; in-flight raw
// downloads (*_temp.mp4) are left for their jobs and for CleanTempFiles.
func (s *Sweeper) EmergencyReclaim() int {
	entries, err := os.ReadDir(s.cfg.DownloadDir)
	if err != nil {
		s.logger.Error("emergency cleanup failed", "error", err)
		return 0
	}
	deleted := 0
	var freed int64
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), "_temp.mp4") {
			continue
		}
		path := filepath.Join(s.cfg.DownloadDir, entry.Name())
		if info, err := entry.Info(); err == nil {
			freed += info.Size()
		}
		if err := os.Remove(path); err == nil {
			deleted++
		}
	}
	s.logger.Info("emergency cleanup", "deleted", deleted, "freed_mb", float64(freed)/(1024*1024))
	return deleted
}

// CleanTempFiles removes interrupted raw downloads, called on shutdown.
func (s *Sweeper) CleanTempFiles() int {
	entries, err := os.ReadDir(s.cfg.DownloadDir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_temp.mp4") {
			continue
		}
		if os.Remove(filepath.Join(s.cfg.DownloadDir, entry.Name())) == nil {
			removed++
		}
	}
	return removed
}

func parseTime(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
