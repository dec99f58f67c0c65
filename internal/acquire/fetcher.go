package acquire

import (
	"context"

	"github.com/pocketvid/pocketvid/internal/media"
)

// FetchRequest describes one acquisition attempt for a single video.
type FetchRequest struct {
	URL      string
	DestPath string
	Kind     media.Kind
	Strategy Strategy

	CookieFile string
	UserAgent  string
	ProxyURL   string
	ForceIPv6  bool

	MaxFilesize string
}

// FetchResult carries the metadata captured during a successful fetch.
type FetchResult struct {
	Title string
}

// PlaylistEntry is one flat entry of an extracted playlist.
type PlaylistEntry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

// PlaylistInfo is the flat extraction of a playlist URL.
type PlaylistInfo struct {
	IsPlaylist bool            `json:"is_playlist"`
	Title      string          `json:"title"`
	VideoCount int             `json:"video_count"`
	Videos     []PlaylistEntry `json:"videos"`
}

// Fetcher is the tool boundary of the acquisition layer. The production
// implementation shells out to yt-dlp; tests substitute fakes.
type Fetcher interface {
	// Fetch downloads one video with a single strategy. A nil error does
	// not guarantee an artifact: the selector verifies the dest file.
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)

	// ExtractPlaylist flat-extracts playlist entries without downloading.
	ExtractPlaylist(ctx context.Context, url, cookieFile string) (PlaylistInfo, error)

	// FetchSubtitles writes English subtitles for the URL under the
	// basePath prefix and returns nothing; the caller checks for
	// <basePath>.en.srt and <basePath>.en.vtt.
	FetchSubtitles(ctx context.Context, url, basePath, cookieFile string) error
}
