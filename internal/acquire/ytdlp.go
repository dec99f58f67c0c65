package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/pocketvid/pocketvid/internal/media"
)

// CommandRunner interface for command execution (enables mocking in tests)
type CommandRunner interface {
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
}

// Format selectors. Audio grabs the best audio stream in any container;
// video prefers small sub-480p streams with progressively looser fallbacks
// so feature-phone targets never fail on format availability.
const (
	audioFormat = "bestaudio/best"
	videoFormat = "worst[height<=480]+worstaudio/bestvideo[height<=480]+bestaudio/best[height<=480]/worst+worstaudio/best"
)

// YTDLP shells out to the yt-dlp binary.
type YTDLP struct {
	logger        hclog.Logger
	execer        CommandRunner
	path          string
	socketTimeout int
}

// NewYTDLP creates the production fetcher. socketTimeout is in seconds.
func NewYTDLP(logger hclog.Logger, execer CommandRunner, path string, socketTimeout int) *YTDLP {
	if socketTimeout <= 0 {
		socketTimeout = 60
	}
	return &YTDLP{
		logger:        logger.Named("ytdlp"),
		execer:        execer,
		path:          path,
		socketTimeout: socketTimeout,
	}
}

// Fetch downloads one video using a single ladder strategy.
func (y *YTDLP) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	format := videoFormat
	if req.Kind == media.KindAudio {
		format = audioFormat
	}

	args := []string{
		"-f", format,
		"--merge-output-format", "mp4",
		"-o", req.DestPath,
		"--no-playlist",
		"--no-check-certificates",
		"--retries", "10",
		"--fragment-retries", "10",
		"--extractor-retries", "8",
		"--sleep-requests", "2",
		"--sleep-interval", "3",
		"--max-sleep-interval", "10",
		"--concurrent-fragments", "10",
		"--socket-timeout", strconv.Itoa(y.socketTimeout),
		"--newline",
		"--no-simulate",
		"--print", "after_move:title",
	}
	if req.MaxFilesize != "" {
		args = append(args, "--max-filesize", req.MaxFilesize)
	}
	if req.ForceIPv6 {
		args = append(args, "--force-ipv6")
	} else {
		args = append(args, "--force-ipv4")
	}
	if ea := extractorArgs(req.Strategy); ea != "" {
		args = append(args, "--extractor-args", ea)
	}
	for _, h := range strategyHeaders(req.Strategy, req.UserAgent) {
		args = append(args, "--add-headers", h)
	}
	if req.CookieFile != "" {
		args = append(args, "--cookies", req.CookieFile)
	}
	if req.ProxyURL != "" {
		args = append(args, "--proxy", req.ProxyURL)
	}
	args = append(args, req.URL)

	y.logger.Debug("running yt-dlp", "strategy", req.Strategy.Name, "url", req.URL)
	out, err := y.execer.Run(ctx, y.path, args...)
	if err != nil {
		if ctx.Err() != nil {
			return FetchResult{}, ctx.Err()
		}
		return FetchResult{}, NewError(strings.TrimSpace(string(out)))
	}
	return FetchResult{Title: parseTitle(string(out))}, nil
}

// ExtractPlaylist flat-extracts the entries of a playlist URL.
func (y *YTDLP) ExtractPlaylist(ctx context.Context, url, cookieFile string) (PlaylistInfo, error) {
	args := []string{
		"--flat-playlist",
		"-J",
		"--no-check-certificates",
		"--socket-timeout", strconv.Itoa(y.socketTimeout),
	}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	args = append(args, url)

	out, err := y.execer.Run(ctx, y.path, args...)
	if err != nil {
		if ctx.Err() != nil {
			return PlaylistInfo{}, ctx.Err()
		}
		return PlaylistInfo{}, NewError(strings.TrimSpace(string(out)))
	}

	var raw struct {
		Type    string `json:"_type"`
		Title   string `json:"title"`
		Entries []struct {
			ID       string  `json:"id"`
			Title    string  `json:"title"`
			URL      string  `json:"url"`
			Duration float64 `json:"duration"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return PlaylistInfo{}, fmt.Errorf("parse playlist extraction: %w", err)
	}
	if raw.Type != "playlist" {
		return PlaylistInfo{IsPlaylist: false}, nil
	}

	info := PlaylistInfo{IsPlaylist: true, Title: raw.Title}
	if info.Title == "" {
		info.Title = "Playlist"
	}
	for _, e := range raw.Entries {
		if e.ID == "" {
			continue
		}
		title := e.Title
		if title == "" {
			title = "Unknown"
		}
		info.Videos = append(info.Videos, PlaylistEntry{
			ID:       e.ID,
			Title:    title,
			URL:      "https://www.youtube.com/watch?v=" + e.ID,
			Duration: e.Duration,
		})
	}
	info.VideoCount = len(info.Videos)
	return info, nil
}

// FetchSubtitles grabs English subtitles (manual or auto-generated) without
// downloading the video. The caller probes for the .en.srt / .en.vtt files.
func (y *YTDLP) FetchSubtitles(ctx context.Context, url, basePath, cookieFile string) error {
	args := []string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", "en",
		"-o", basePath,
		"--no-check-certificates",
		"--retries", "10",
		"--sleep-interval", "2",
		"--max-sleep-interval", "5",
		"--socket-timeout", strconv.Itoa(y.socketTimeout),
		"--quiet",
		"--no-warnings",
	}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	args = append(args, url)

	out, err := y.execer.Run(ctx, y.path, args...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewError(strings.TrimSpace(string(out)))
	}
	return nil
}

// extractorArgs renders the youtube extractor tuning for a strategy.
func extractorArgs(s Strategy) string {
	if s.PlayerClient == "" {
		return ""
	}
	parts := []string{"player_client=" + s.PlayerClient}
	if s.SkipPlayer {
		parts = append(parts, "player_skip=configs,webpage")
	}
	return "youtube:" + strings.Join(parts, ";")
}

// Browser-mimicking headers applied when the strategy does not pin them.
var defaultHeaders = map[string]string{
	"DNT":                       "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Upgrade-Insecure-Requests": "1",
}

// headerOrder keeps the rendered header list deterministic for tests.
var headerOrder = []string{
	"User-Agent",
	"X-YouTube-Client-Name",
	"X-YouTube-Client-Version",
	"Accept-Language",
	"DNT",
	"Sec-Fetch-Dest",
	"Sec-Fetch-Mode",
	"Sec-Fetch-Site",
	"Upgrade-Insecure-Requests",
}

func strategyHeaders(s Strategy, customUA string) []string {
	merged := make(map[string]string, len(s.Headers)+len(defaultHeaders))
	for k, v := range s.Headers {
		merged[k] = v
	}
	for k, v := range defaultHeaders {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	if customUA != "" {
		merged["User-Agent"] = customUA
	}

	out := make([]string, 0, len(merged))
	for _, k := range headerOrder {
		if v, ok := merged[k]; ok {
			out = append(out, k+":"+v)
		}
	}
	return out
}

var unsafeTitleChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// parseTitle pulls the printed video title out of mixed progress output and
// sanitizes it for filesystem use.
func parseTitle(out string) string {
	title := ""
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") ||
			strings.HasPrefix(line, "WARNING") || strings.HasPrefix(line, "ERROR") {
			continue
		}
		title = line
	}
	title = unsafeTitleChars.ReplaceAllString(title, "_")
	if len(title) > 50 {
		title = title[:50]
	}
	return title
}
