// Package media defines the immutable quality presets and artifact naming
// shared by the conversion, split and subtitle pipelines.
package media

import (
	"strconv"
	"strings"
)

// Kind selects the target shape of a conversion.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Ext returns the artifact extension for the kind.
func (k Kind) Ext() string {
	if k == KindAudio {
		return "mp3"
	}
	return "3gp"
}

// DisplayName returns the user-facing format name for the kind.
func (k Kind) DisplayName() string {
	if k == KindAudio {
		return "MP3 audio"
	}
	return "3GP video"
}

// AudioPreset is an immutable bundle of MP3 encoder parameters.
// Bitrates start at 128kbps: lower rates trip source-side download errors.
type AudioPreset struct {
	Key         string
	Name        string
	Bitrate     string
	SampleRate  string
	VBRQuality  string
	Description string
}

// VideoPreset is an immutable bundle of constrained-video encoder parameters.
// UltraLow selects the H.263/AMR pipeline for 2G-era handsets; every other
// preset encodes MPEG-4 at 176x144.
type VideoPreset struct {
	Key             string
	Name            string
	VideoBitrate    string
	AudioBitrate    string
	AudioSampleRate string
	FPS             string
	Description     string
	UltraLow        bool
}

var AudioPresets = map[string]AudioPreset{
	"medium": {
		Key: "medium", Name: "128 kbps (Good Quality - Recommended)",
		Bitrate: "128k", SampleRate: "44100", VBRQuality: "4",
		Description: "~5 MB per 5 min",
	},
	"high": {
		Key: "high", Name: "192 kbps (High Quality)",
		Bitrate: "192k", SampleRate: "44100", VBRQuality: "2",
		Description: "~7 MB per 5 min",
	},
	"veryhigh": {
		Key: "veryhigh", Name: "256 kbps (Very High Quality)",
		Bitrate: "256k", SampleRate: "48000", VBRQuality: "0",
		Description: "~9 MB per 5 min",
	},
	"extreme": {
		Key: "extreme", Name: "320 kbps (Maximum Quality)",
		Bitrate: "320k", SampleRate: "48000", VBRQuality: "0",
		Description: "~12 MB per 5 min",
	},
}

var VideoPresets = map[string]VideoPreset{
	"ultralow": {
		Key: "ultralow", Name: "Ultra Low (2G Networks)",
		VideoBitrate: "40k", AudioBitrate: "12.2k", AudioSampleRate: "8000",
		FPS: "8", Description: "Under 14MB for 30min", UltraLow: true,
	},
	"low": {
		Key: "low", Name: "Low (Recommended for Feature Phones)",
		VideoBitrate: "200k", AudioBitrate: "96k", AudioSampleRate: "44100",
		FPS: "12", Description: "~3 MB per 5 min",
	},
	"medium": {
		Key: "medium", Name: "Medium (Better Quality)",
		VideoBitrate: "300k", AudioBitrate: "256k", AudioSampleRate: "44100",
		FPS: "15", Description: "~4 MB per 5 min",
	},
	"high": {
		Key: "high", Name: "High (Best Quality)",
		VideoBitrate: "400k", AudioBitrate: "320k", AudioSampleRate: "48000",
		FPS: "18", Description: "~5 MB per 5 min",
	},
}

// DefaultAudioKey and DefaultVideoKey are used when the caller asks for
// "auto" or names an unknown preset.
const (
	DefaultAudioKey = "medium"
	DefaultVideoKey = "low"
)

// LookupAudio resolves a preset key for audio output, falling back to the
// default for "auto" or unknown keys.
func LookupAudio(key string) AudioPreset {
	if p, ok := AudioPresets[key]; ok {
		return p
	}
	return AudioPresets[DefaultAudioKey]
}

// LookupVideo resolves a preset key for video output, falling back to the
// default for "auto" or unknown keys.
func LookupVideo(key string) VideoPreset {
	if p, ok := VideoPresets[key]; ok {
		return p
	}
	return VideoPresets[DefaultVideoKey]
}

// NormalizeQuality maps "auto" and unknown keys to the kind's default key.
func NormalizeQuality(kind Kind, key string) string {
	if kind == KindAudio {
		if _, ok := AudioPresets[key]; ok {
			return key
		}
		return DefaultAudioKey
	}
	if _, ok := VideoPresets[key]; ok {
		return key
	}
	return DefaultVideoKey
}

// Kbps parses a bitrate string like "200k" into its numeric kbps value.
func Kbps(bitrate string) int {
	n, _ := strconv.Atoi(strings.TrimSuffix(bitrate, "k"))
	return n
}

// Derived encoder parameters. The ratios are fixed design constants.

// MaxRate is 1.25x the nominal video bitrate.
func (p VideoPreset) MaxRate() string {
	return strconv.Itoa(Kbps(p.VideoBitrate)*5/4) + "k"
}

// BufSize is 2x the nominal video bitrate.
func (p VideoPreset) BufSize() string {
	return strconv.Itoa(Kbps(p.VideoBitrate)*2) + "k"
}

// SplitMaxRate is 1.5x the nominal video bitrate, used by the split pipeline.
func (p VideoPreset) SplitMaxRate() string {
	return strconv.Itoa(Kbps(p.VideoBitrate)*3/2) + "k"
}

// SplitBufSize is 0.75x the nominal video bitrate, used by the split pipeline.
func (p VideoPreset) SplitBufSize() string {
	return strconv.Itoa(Kbps(p.VideoBitrate)*3/4) + "k"
}

// GOPSize keys a frame group every 10 seconds of video.
func (p VideoPreset) GOPSize() int {
	fps, _ := strconv.Atoi(p.FPS)
	return fps * 10
}
