// Package job orchestrates conversion, playlist and split work over the
// acquisition, subtitle and transcode layers.
package job

import (
	"fmt"
	"unicode/utf8"

	"github.com/pocketvid/pocketvid/internal/media"
)

// Status is the lifecycle state of a conversion job. Transitions only move
// forward; failed is reachable from any non-terminal state.
type Status string

const (
	StatusQueued           Status = "queued"
	StatusDownloading      Status = "downloading"
	StatusConverting       Status = "converting"
	StatusBurningSubtitles Status = "burning_subtitles"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

var statusRank = map[Status]int{
	StatusQueued:           0,
	StatusDownloading:      1,
	StatusConverting:       2,
	StatusBurningSubtitles: 3,
	StatusCompleted:        4,
	StatusFailed:           4,
}

// Terminal reports whether no further automatic transition occurs.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanAdvance reports whether next is a legal forward transition from s.
// A terminal status never changes again.
func (s Status) CanAdvance(next Status) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	cur, ok := statusRank[s]
	if !ok {
		return true
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// Record is the persisted state of one conversion job, keyed by its
// fingerprint in the job store.
type Record struct {
	Status        Status     `json:"status"`
	Progress      string     `json:"progress"`
	URL           string     `json:"url"`
	OutputKind    media.Kind `json:"output_kind"`
	Quality       string     `json:"quality"`
	BurnSubtitles bool       `json:"burn_subtitles"`
	VideoTitle    string     `json:"video_title,omitempty"`
	Filename      string     `json:"filename,omitempty"`
	FileSize      int64      `json:"file_size,omitempty"`
	FileSizeHuman string     `json:"file_size_human,omitempty"`
	Duration      float64    `json:"duration,omitempty"`
	Timestamp     string     `json:"timestamp,omitempty"`
	CompletedAt   string     `json:"completed_at,omitempty"`
}

// Per-entry playlist states.
const (
	EntryPending    = "pending"
	EntryProcessing = "processing"
	EntryCompleted  = "completed"
	EntryFailed     = "failed"
)

// VideoEntry is one video inside a playlist record.
type VideoEntry struct {
	Index    int     `json:"index"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration,omitempty"`
	Status   string  `json:"status"`
	FileID   string  `json:"file_id,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// PlaylistRecord is the persisted state of one playlist fan-out.
type PlaylistRecord struct {
	Status         string                `json:"status"`
	Progress       string                `json:"progress"`
	URL            string                `json:"url"`
	Title          string                `json:"title"`
	OutputKind     media.Kind            `json:"output_kind"`
	Quality        string                `json:"quality"`
	BurnSubtitles  bool                  `json:"burn_subtitles"`
	Videos         map[string]VideoEntry `json:"videos"`
	CompletedCount int                   `json:"completed_count"`
	FailedCount    int                   `json:"failed_count"`
	CurrentVideo   string                `json:"current_video,omitempty"`
	Warning        string                `json:"warning,omitempty"`
	Error          string                `json:"error,omitempty"`
	Timestamp      string                `json:"timestamp,omitempty"`
}

// Part describes one completed slice of a split job.
type Part struct {
	Index     int    `json:"index"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
}

// SplitRecord is the persisted state of one split job. CompletedParts
// equals len(Parts) after every update and never decreases.
type SplitRecord struct {
	Status              string  `json:"status"`
	FileID              string  `json:"file_id"`
	Filename            string  `json:"filename"`
	TotalParts          int     `json:"total_parts"`
	CompletedParts      int     `json:"completed_parts"`
	CurrentPart         int     `json:"current_part,omitempty"`
	CurrentPartProgress string  `json:"current_part_progress,omitempty"`
	Parts               []Part  `json:"parts"`
	Error               string  `json:"error,omitempty"`
	Timestamp           string  `json:"timestamp,omitempty"`
}

// HumanSize renders a byte count as megabytes for progress messages.
func HumanSize(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/(1024*1024))
}

// TruncateMessage bounds a diagnostic for storage in a progress field,
// cutting on a rune boundary.
func TruncateMessage(msg string, n int) string {
	if len(msg) <= n {
		return msg
	}
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}
