package job

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pocketvid/pocketvid/internal/acquire"
	"github.com/pocketvid/pocketvid/internal/config"
	"github.com/pocketvid/pocketvid/internal/ffmpeg"
	"github.com/pocketvid/pocketvid/internal/store"
	"github.com/pocketvid/pocketvid/internal/subtitle"
)

// Runtime bundles everything an orchestrator needs: configuration, the
// category stores and the tool adapters. One Runtime serves the whole
// process; workers share it freely.
type Runtime struct {
	Logger hclog.Logger
	Cfg    *config.Config

	Jobs      store.Store[Record]
	Playlists store.Store[PlaylistRecord]
	Splits    store.Store[SplitRecord]

	FFmpeg    *ffmpeg.Runner
	Selector  *acquire.Selector
	Fetcher   acquire.Fetcher
	Subtitles *subtitle.Pipeline
	Cookies   *acquire.CookieJar
	Disk      *DiskMonitor
	Active    *ActiveCounter

	// Reclaim frees disk space in an emergency and returns the number of
	// artifacts removed. Wired to the sweeper at startup; may be nil.
	Reclaim func() int

	sleep func(time.Duration)
}

// NewRuntime assembles a runtime. Collaborators are passed pre-built so
// tests can substitute fakes.
func NewRuntime(logger hclog.Logger, cfg *config.Config) *Runtime {
	return &Runtime{
		Logger: logger.Named("job"),
		Cfg:    cfg,
		Active: &ActiveCounter{},
		sleep:  time.Sleep,
	}
}

// SetSleep replaces pacing sleeps, for tests.
func (rt *Runtime) SetSleep(fn func(time.Duration)) { rt.sleep = fn }

func (rt *Runtime) now() string {
	return time.Now().Format(time.RFC3339)
}

// setStatus advances a job's lifecycle state, enforcing forward-only
// transitions, and updates the progress message.
func (rt *Runtime) setStatus(fileID string, next Status, progress string) {
	err := rt.Jobs.Upsert(fileID, func(r *Record) {
		if !r.Status.CanAdvance(next) {
			rt.Logger.Warn("refusing backward status transition",
				"file_id", fileID, "from", string(r.Status), "to", string(next))
			return
		}
		r.Status = next
		if progress != "" {
			r.Progress = progress
		}
		if next.Terminal() {
			r.CompletedAt = rt.now()
		}
	})
	if err != nil {
		rt.Logger.Error("status update failed", "file_id", fileID, "error", err)
	}
}

// fail marks a job failed with a bounded diagnostic.
func (rt *Runtime) fail(fileID, msg string) {
	rt.Logger.Error("job failed", "file_id", fileID, "reason", TruncateMessage(msg, 200))
	rt.setStatus(fileID, StatusFailed, TruncateMessage(msg, 300))
}
