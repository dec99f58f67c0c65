package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration. Values come from an optional
// YAML file, overridden by POCKETVID_* environment variables.
type Config struct {
	// Paths
	ListenAddr  string `yaml:"listen_addr"`
	DownloadDir string `yaml:"download_dir"`
	CookiesDir  string `yaml:"cookies_dir"`
	StateDir    string `yaml:"state_dir"`

	// Resource limits
	MaxVideoDurationSec int    `yaml:"max_video_duration_sec"`
	MaxFilesize         string `yaml:"max_filesize"` // e.g. "2G", "500M"
	RetentionHours      int    `yaml:"retention_hours"`
	DiskMonitoring      bool   `yaml:"disk_monitoring"`
	DiskThresholdMB     int    `yaml:"disk_threshold_mb"`
	MaxConcurrentJobs   int    `yaml:"max_concurrent_jobs"`

	// Subtitle burning
	SubtitleBurning        bool `yaml:"subtitle_burning"`
	SubtitleMaxDurationMin int  `yaml:"subtitle_max_duration_min"`
	SubtitleMaxFilesizeMB  int  `yaml:"subtitle_max_filesize_mb"`

	// Codec engine
	FFmpegPath    string `yaml:"ffmpeg_path"`
	FFprobePath   string `yaml:"ffprobe_path"`
	FFmpegThreads int    `yaml:"ffmpeg_threads"`

	// Acquisition
	YTDLPPath       string `yaml:"ytdlp_path"`
	CustomUserAgent string `yaml:"custom_user_agent"`
	ProxyURL        string `yaml:"proxy_url"`
	ForceIPv6       bool   `yaml:"force_ipv6"`
	SocketTimeout   int    `yaml:"socket_timeout_sec"`

	// Playlist processing
	PlaylistMaxVideos   int `yaml:"playlist_max_videos"`
	PlaylistConcurrency int `yaml:"playlist_concurrency"`
	PlaylistPacingSec   int `yaml:"playlist_pacing_sec"`
	PlaylistSoftLimit   int `yaml:"playlist_soft_limit_sec"`

	// Cleanup
	CleanupIntervalMin int `yaml:"cleanup_interval_min"`

	// Status store: "file" (default) or "sql" with a DSN
	// (sqlite file path, or a postgres:// URL).
	StoreBackend string `yaml:"store_backend"`
	StoreDSN     string `yaml:"store_dsn"`
}

// Default returns a configuration tuned for a small single-core deployment.
func Default() *Config {
	return &Config{
		ListenAddr:  ":8080",
		DownloadDir: "/tmp/downloads",
		CookiesDir:  "/tmp/cookies",
		StateDir:    "/tmp",

		MaxVideoDurationSec: 86400,
		MaxFilesize:         "2G",
		RetentionHours:      24,
		DiskMonitoring:      true,
		DiskThresholdMB:     50,
		MaxConcurrentJobs:   1,

		SubtitleBurning:        true,
		SubtitleMaxDurationMin: 246000,
		SubtitleMaxFilesizeMB:  2000,

		FFmpegThreads: 1,
		SocketTimeout: 60,

		PlaylistMaxVideos:   50,
		PlaylistConcurrency: 1,
		PlaylistPacingSec:   1,
		PlaylistSoftLimit:   862400,

		CleanupIntervalMin: 30,

		StoreBackend: "file",
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("POCKETVID_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envString(&c.ListenAddr, "POCKETVID_LISTEN_ADDR")
	envString(&c.DownloadDir, "POCKETVID_DOWNLOAD_DIR")
	envString(&c.CookiesDir, "POCKETVID_COOKIES_DIR")
	envString(&c.StateDir, "POCKETVID_STATE_DIR")

	envInt(&c.MaxVideoDurationSec, "MAX_VIDEO_DURATION")
	envString(&c.MaxFilesize, "MAX_FILESIZE")
	envInt(&c.RetentionHours, "FILE_RETENTION_HOURS")
	envBool(&c.DiskMonitoring, "ENABLE_DISK_SPACE_MONITORING")
	envInt(&c.DiskThresholdMB, "DISK_SPACE_THRESHOLD_MB")
	envInt(&c.MaxConcurrentJobs, "MAX_CONCURRENT_DOWNLOADS")

	envBool(&c.SubtitleBurning, "ENABLE_SUBTITLE_BURNING")
	envInt(&c.SubtitleMaxDurationMin, "SUBTITLE_MAX_DURATION_MINS")
	envInt(&c.SubtitleMaxFilesizeMB, "SUBTITLE_MAX_FILESIZE_MB")

	envString(&c.FFmpegPath, "FFMPEG_PATH")
	envString(&c.FFprobePath, "FFPROBE_PATH")
	envInt(&c.FFmpegThreads, "FFMPEG_THREADS")

	envString(&c.YTDLPPath, "YTDLP_PATH")
	envString(&c.CustomUserAgent, "CUSTOM_USER_AGENT")
	envString(&c.ProxyURL, "PROXY_URL")
	envBool(&c.ForceIPv6, "USE_IPV6")
	envInt(&c.SocketTimeout, "SOCKET_TIMEOUT")

	envInt(&c.PlaylistMaxVideos, "PLAYLIST_MAX_VIDEOS")
	envInt(&c.PlaylistConcurrency, "PLAYLIST_CONCURRENCY")
	envInt(&c.PlaylistSoftLimit, "PLAYLIST_VIDEO_TIMEOUT")

	envInt(&c.CleanupIntervalMin, "CLEANUP_INTERVAL_MIN")

	envString(&c.StoreBackend, "POCKETVID_STORE_BACKEND")
	envString(&c.StoreDSN, "POCKETVID_STORE_DSN")
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	if c.DownloadDir == "" {
		return &ValidationError{Field: "download_dir", Message: "must not be empty"}
	}
	if c.RetentionHours < 1 {
		return &ValidationError{Field: "retention_hours", Message: "must be at least 1"}
	}
	if c.FFmpegThreads < 1 {
		return &ValidationError{Field: "ffmpeg_threads", Message: "must be at least 1"}
	}
	if c.PlaylistConcurrency < 1 {
		return &ValidationError{Field: "playlist_concurrency", Message: "must be at least 1"}
	}
	if c.PlaylistMaxVideos < 1 {
		return &ValidationError{Field: "playlist_max_videos", Message: "must be at least 1"}
	}
	if _, err := ParseSize(c.MaxFilesize); err != nil {
		return &ValidationError{Field: "max_filesize", Message: err.Error()}
	}
	switch c.StoreBackend {
	case "file", "sql":
	default:
		return &ValidationError{Field: "store_backend", Message: "must be \"file\" or \"sql\""}
	}
	if c.StoreBackend == "sql" && c.StoreDSN == "" {
		return &ValidationError{Field: "store_dsn", Message: "required when store_backend is \"sql\""}
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error in field '" + e.Field + "': " + e.Message
}

// ParseSize parses a human size string like "500M" or "2G" into bytes.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	multipliers := map[byte]int64{'K': 1 << 10, 'M': 1 << 20, 'G': 1 << 30}
	if mult, ok := multipliers[s[len(s)-1]]; ok {
		n, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q", s)
		}
		return int64(n * float64(mult)), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n, nil
}

// Helper methods for duration conversion

func (c *Config) MaxVideoDuration() time.Duration {
	return time.Duration(c.MaxVideoDurationSec) * time.Second
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMin) * time.Minute
}

func (c *Config) PlaylistPacing() time.Duration {
	return time.Duration(c.PlaylistPacingSec) * time.Second
}

func (c *Config) PlaylistSoftDeadline() time.Duration {
	return time.Duration(c.PlaylistSoftLimit) * time.Second
}

func (c *Config) MaxFilesizeBytes() int64 {
	n, _ := ParseSize(c.MaxFilesize)
	return n
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}
