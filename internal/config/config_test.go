package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"empty download dir", func(c *Config) { c.DownloadDir = "" }, "download_dir"},
		{"zero retention", func(c *Config) { c.RetentionHours = 0 }, "retention_hours"},
		{"zero threads", func(c *Config) { c.FFmpegThreads = 0 }, "ffmpeg_threads"},
		{"zero playlist concurrency", func(c *Config) { c.PlaylistConcurrency = 0 }, "playlist_concurrency"},
		{"bad filesize", func(c *Config) { c.MaxFilesize = "lots" }, "max_filesize"},
		{"bad backend", func(c *Config) { c.StoreBackend = "redis" }, "store_backend"},
		{"sql without dsn", func(c *Config) { c.StoreBackend = "sql" }, "store_dsn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mod(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"2G", 2 << 30, false},
		{"500M", 500 << 20, false},
		{"1.5G", int64(1.5 * float64(1<<30)), false},
		{"128k", 128 << 10, false},
		{"1048576", 1 << 20, false},
		{"", 0, true},
		{"huge", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoadAppliesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"listen_addr: \":9999\"\nretention_hours: 48\n"), 0o644))

	t.Setenv("POCKETVID_CONFIG", path)
	t.Setenv("FILE_RETENTION_HOURS", "72")
	t.Setenv("ENABLE_SUBTITLE_BURNING", "false")
	t.Setenv("FFMPEG_THREADS", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr, "file overrides defaults")
	assert.Equal(t, 72, cfg.RetentionHours, "env overrides file")
	assert.False(t, cfg.SubtitleBurning)
	assert.Equal(t, 2, cfg.FFmpegThreads)
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	cfg.MaxVideoDurationSec = 3600
	cfg.RetentionHours = 24
	cfg.CleanupIntervalMin = 30

	assert.Equal(t, time.Hour, cfg.MaxVideoDuration())
	assert.Equal(t, 24*time.Hour, cfg.Retention())
	assert.Equal(t, 30*time.Minute, cfg.CleanupInterval())
}
