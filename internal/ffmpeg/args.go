package ffmpeg

import (
	"strconv"
	"strings"

	"github.com/pocketvid/pocketvid/internal/media"
)

// Scaling filters shared by the encode pipelines. Conversion upscales and
// relies on the encoder's frame size, the split re-encode letterboxes.
const (
	scaleFill = "scale=176:144:force_original_aspect_ratio=increase,setsar=1"
	scalePad  = "scale=176:144:force_original_aspect_ratio=decrease,pad=176:144:(ow-iw)/2:(oh-ih)/2"
)

// AudioArgs builds the MP3 extraction vector for a preset.
func AudioArgs(input, output string, p media.AudioPreset) []string {
	return []string{
		"-i", input,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", p.SampleRate,
		"-b:a", p.Bitrate,
		"-ac", "2",
		"-q:a", p.VBRQuality,
		"-compression_level", "9",
		"-joint_stereo", "1",
		"-y",
		output,
	}
}

// AudioArgsSimplified drops the tuning flags that some lame builds reject.
func AudioArgsSimplified(input, output string, p media.AudioPreset) []string {
	return []string{
		"-i", input,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", p.SampleRate,
		"-b:a", p.Bitrate,
		"-ac", "2",
		"-y",
		output,
	}
}

// VideoArgs builds the full-compression 3GP vector for a preset. The
// ultra-low preset targets H.263/AMR instead of MPEG-4/AAC.
func VideoArgs(input, output string, p media.VideoPreset) []string {
	if p.UltraLow {
		return []string{
			"-i", input,
			"-vf", "scale=176:144,fps=" + p.FPS,
			"-c:v", "h263",
			"-b:v", p.VideoBitrate,
			"-g", strconv.Itoa(p.GOPSize()),
			"-c:a", "amr_nb",
			"-b:a", p.AudioBitrate,
			"-ac", "1",
			"-ar", p.AudioSampleRate,
			"-f", "3gp",
			"-y",
			output,
		}
	}
	return []string{
		"-i", input,
		"-vf", scaleFill,
		"-vcodec", "mpeg4",
		"-r", p.FPS,
		"-b:v", p.VideoBitrate,
		"-maxrate", p.MaxRate(),
		"-bufsize", p.BufSize(),
		"-qmin", "2",
		"-qmax", "31",
		"-mbd", "rd",
		"-flags", "+cgop",
		"-g", strconv.Itoa(p.GOPSize()),
		"-trellis", "2",
		"-cmp", "2",
		"-subcmp", "2",
		"-me_method", "hex",
		"-acodec", "aac",
		"-ar", p.AudioSampleRate,
		"-b:a", p.AudioBitrate,
		"-ac", "1",
		"-y",
		output,
	}
}

// VideoArgsSimplified drops the advanced rate-control and motion flags that
// older ffmpeg builds reject.
func VideoArgsSimplified(input, output string, p media.VideoPreset) []string {
	return []string{
		"-i", input,
		"-vf", scaleFill,
		"-vcodec", "mpeg4",
		"-r", p.FPS,
		"-b:v", p.VideoBitrate,
		"-acodec", "aac",
		"-ar", p.AudioSampleRate,
		"-b:a", p.AudioBitrate,
		"-ac", "1",
		"-y",
		output,
	}
}

// BurnFilter composes the subtitle overlay filter chain. The frame is padded
// to 320x240 with an 8px caption band at the bottom.
func BurnFilter(assPath string) string {
	return "scale=320:236:force_original_aspect_ratio=increase,crop=320:232,pad=320:240:0:0,setsar=1,subtitles=" + EscapeFilterPath(assPath)
}

// EscapeFilterPath escapes a filesystem path for use inside an ffmpeg
// filter expression.
func EscapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.ReplaceAll(p, ":", `\:`)
}

// BurnArgs builds the full-compression subtitle burn vector.
func BurnArgs(input, output, assPath string, p media.VideoPreset) []string {
	return []string{
		"-i", input,
		"-vf", BurnFilter(assPath),
		"-vcodec", "mpeg4",
		"-r", p.FPS,
		"-b:v", p.VideoBitrate,
		"-maxrate", p.MaxRate(),
		"-bufsize", p.BufSize(),
		"-qmin", "2",
		"-qmax", "31",
		"-mbd", "rd",
		"-flags", "+cgop",
		"-sc_threshold", "1000000000",
		"-g", strconv.Itoa(p.GOPSize()),
		"-trellis", "2",
		"-cmp", "2",
		"-subcmp", "2",
		"-me_method", "hex",
		"-acodec", "aac",
		"-ar", p.AudioSampleRate,
		"-b:a", p.AudioBitrate,
		"-ac", "1",
		"-y",
		output,
	}
}

// BurnArgsSimplified keeps the overlay filter but drops the tuning flags.
func BurnArgsSimplified(input, output, assPath string, p media.VideoPreset) []string {
	return []string{
		"-i", input,
		"-vf", BurnFilter(assPath),
		"-vcodec", "mpeg4",
		"-r", p.FPS,
		"-b:v", p.VideoBitrate,
		"-acodec", "aac",
		"-ar", p.AudioSampleRate,
		"-b:a", p.AudioBitrate,
		"-ac", "1",
		"-y",
		output,
	}
}

// SplitAudioArgs re-encodes one MP3 slice with the preset the artifact was
// produced with. Xing headers are suppressed so players report slice
// durations correctly.
func SplitAudioArgs(input, output string, start, duration float64, p media.AudioPreset) []string {
	return []string{
		"-ss", formatSeconds(start),
		"-i", input,
		"-t", formatSeconds(duration),
		"-c:a", "libmp3lame",
		"-ar", p.SampleRate,
		"-b:a", p.Bitrate,
		"-q:a", p.VBRQuality,
		"-ac", "2",
		"-write_xing", "0",
		"-y",
		output,
	}
}

// SplitVideoArgs re-encodes one 3GP slice. libx264 ultrafast keeps the split
// pipeline fast on constrained hosts; rate control uses the wider split
// ratios.
func SplitVideoArgs(input, output string, start, duration float64, p media.VideoPreset) []string {
	return []string{
		"-ss", formatSeconds(start),
		"-i", input,
		"-t", formatSeconds(duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-vf", scalePad,
		"-r", p.FPS,
		"-b:v", p.VideoBitrate,
		"-maxrate", p.SplitMaxRate(),
		"-bufsize", p.SplitBufSize(),
		"-c:a", "aac",
		"-ar", p.AudioSampleRate,
		"-b:a", p.AudioBitrate,
		"-ac", "1",
		"-movflags", "+faststart",
		"-max_muxing_queue_size", "1024",
		"-f", "3gp",
		"-y",
		output,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
