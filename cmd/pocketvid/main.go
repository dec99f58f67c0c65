package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"

	"github.com/pocketvid/pocketvid/internal/acquire"
	"github.com/pocketvid/pocketvid/internal/config"
	"github.com/pocketvid/pocketvid/internal/ffmpeg"
	"github.com/pocketvid/pocketvid/internal/job"
	"github.com/pocketvid/pocketvid/internal/server"
	"github.com/pocketvid/pocketvid/internal/store"
	"github.com/pocketvid/pocketvid/internal/subtitle"
	"github.com/pocketvid/pocketvid/internal/sweeper"
)

func main() {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "pocketvid",
		Level:      hclog.LevelFromString(envOr("LOG_LEVEL", "info")),
		JSONFormat: envOr("LOG_FORMAT", "") == "json",
	})

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	for _, dir := range []string{cfg.DownloadDir, cfg.CookiesDir, cfg.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("could not create directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	ffmpegPath, err := ffmpeg.Discover(cfg.FFmpegPath, "ffmpeg", "/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg")
	if err != nil {
		logger.Error("ffmpeg not found", "error", err)
		os.Exit(1)
	}
	ffprobePath, err := ffmpeg.Discover(cfg.FFprobePath, "ffprobe", "/usr/bin/ffprobe", "/usr/local/bin/ffprobe")
	if err != nil {
		// Duration checks degrade to zero without ffprobe.
		logger.Warn("ffprobe not found, duration checks disabled", "error", err)
	}
	ytdlpPath, err := ffmpeg.Discover(cfg.YTDLPPath, "yt-dlp", "/usr/bin/yt-dlp", "/usr/local/bin/yt-dlp")
	if err != nil {
		logger.Error("yt-dlp not found", "error", err)
		os.Exit(1)
	}
	logger.Info("tools discovered", "ffmpeg", ffmpegPath, "ffprobe", ffprobePath, "yt_dlp", ytdlpPath)

	jobs, playlists, splits, err := openStores(logger, cfg)
	if err != nil {
		logger.Error("could not open stores", "error", err)
		os.Exit(1)
	}

	rt := job.NewRuntime(logger, cfg)
	rt.Jobs = jobs
	rt.Playlists = playlists
	rt.Splits = splits
	rt.FFmpeg = ffmpeg.NewRunner(logger, ffmpegPath, ffprobePath, cfg.FFmpegThreads)
	rt.Fetcher = acquire.NewYTDLP(logger, &execRunner{}, ytdlpPath, cfg.SocketTimeout)
	rt.Selector = acquire.NewSelector(logger, rt.Fetcher)
	rt.Subtitles = subtitle.NewPipeline(logger, rt.Fetcher, cfg.DownloadDir)
	rt.Cookies = acquire.NewCookieJar(logger, cfg.CookiesDir)
	rt.Disk = job.NewDiskMonitor(logger, cfg.DownloadDir, cfg.DiskThresholdMB, cfg.DiskMonitoring)

	sw := sweeper.New(logger, cfg, jobs, playlists, splits)
	rt.Reclaim = sw.EmergencyReclaim

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sw.Run(ctx)
	go func() {
		if err := rt.Cookies.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("cookie watcher exited", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(logger, cfg, rt, ctx).Handler(),
	}
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}

	if removed := sw.CleanTempFiles(); removed > 0 {
		logger.Info("removed interrupted downloads", "count", removed)
	}
}

// openStores selects the persistence backend. The file backend keeps one
// JSON document per category with atomic rename publishing; the SQL
// backend stores the same records as rows behind the identical contract.
func openStores(logger hclog.Logger, cfg *config.Config) (
	store.Store[job.Record],
	store.Store[job.PlaylistRecord],
	store.Store[job.SplitRecord],
	error,
) {
	if cfg.StoreBackend == "sql" {
		db, err := store.OpenDB(cfg.StoreDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		jobs, err := store.NewSQL[job.Record](db, "jobs", logger)
		if err != nil {
			return nil, nil, nil, err
		}
		playlists, err := store.NewSQL[job.PlaylistRecord](db, "playlists", logger)
		if err != nil {
			return nil, nil, nil, err
		}
		splits, err := store.NewSQL[job.SplitRecord](db, "splits", logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return jobs, playlists, splits, nil
	}

	jobs := store.NewFile[job.Record](filepath.Join(cfg.StateDir, "conversion_status.json"), logger)
	playlists := store.NewFile[job.PlaylistRecord](filepath.Join(cfg.StateDir, "playlist_status.json"), logger)
	splits := store.NewFile[job.SplitRecord](filepath.Join(cfg.StateDir, "split_status.json"), logger)
	return jobs, playlists, splits, nil
}

// execRunner is the production command runner for yt-dlp.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, cmd, args...).CombinedOutput()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
