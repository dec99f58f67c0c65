package subtitle

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Styles target a 320x240 feature-phone frame: bold white Arial with a
// thick black outline and shadow.
const singleLineHeader = `[Script Info]
Title: Feature Phone Subtitles
ScriptType: v4.00+
WrapStyle: 0
PlayResX: 320
PlayResY: 240
Collisions: Normal
PlayDepth: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,16,&H00FFFFFF,&H000000FF,&H00000000,&HC0000000,-1,0,0,0,100,100,0,0,1,3,2,2,5,5,8,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

const dualLineHeader = `[Script Info]
Title: 3GP Dual-Line Subtitles
ScriptType: v4.00+
WrapStyle: 0
PlayResX: 320
PlayResY: 240
Collisions: Normal

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Line1,Arial,14,&H00FFFFFF,&H000000FF,&H00000000,&HC0000000,-1,0,0,0,100,100,0,0,1,3,2,2,0,0,0,1
Style: Line2,Arial,14,&H00FFFFFF,&H000000FF,&H00000000,&HC0000000,-1,0,0,0,100,100,0,0,1,3,2,8,0,0,0,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

// srtToASSTime converts an SRT timestamp (HH:MM:SS,mmm) to ASS form
// (H:MM:SS.cc). Inputs that do not look like timestamps pass through.
func srtToASSTime(t string) string {
	t = strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
	parts := strings.SplitN(t, ":", 3)
	if len(parts) != 3 {
		return t
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return t
	}
	s := parts[2]
	if len(s) > 5 {
		s = s[:5]
	}
	return fmt.Sprintf("%d:%s:%s", h, parts[1], s)
}

type srtCue struct {
	start string
	end   string
	lines []string
}

func parseSRT(content string) []srtCue {
	var cues []srtCue
	blocks := strings.Split(strings.ReplaceAll(strings.TrimSpace(content), "\r\n", "\n"), "\n\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 || !strings.Contains(lines[1], "-->") {
			continue
		}
		timing := strings.SplitN(lines[1], "-->", 2)
		cues = append(cues, srtCue{
			start: srtToASSTime(timing[0]),
			end:   srtToASSTime(timing[1]),
			lines: lines[2:],
		})
	}
	return cues
}

// RenderSingleLineASS converts an SRT file to an ASS track where each cue
// collapses to one centered line.
func RenderSingleLineASS(srtPath, assPath string) error {
	data, err := os.ReadFile(srtPath)
	if err != nil {
		return fmt.Errorf("read srt: %w", err)
	}

	var events []string
	for _, cue := range parseSRT(string(data)) {
		text := strings.ReplaceAll(strings.Join(cue.lines, " "), `\N`, " ")
		events = append(events, fmt.Sprintf("Dialogue: 0,%s,%s,Default,,0,0,0,,%s", cue.start, cue.end, text))
	}

	return os.WriteFile(assPath, []byte(singleLineHeader+strings.Join(events, "\n")), 0o644)
}

// RenderDualLineASS converts an SRT file to an ASS track with the first cue
// line pinned to the bottom of the frame and the second, when present, to
// the top. This is the style burned into 3GP output.
func RenderDualLineASS(srtPath, assPath string) error {
	data, err := os.ReadFile(srtPath)
	if err != nil {
		return fmt.Errorf("read srt: %w", err)
	}

	var events []string
	for _, cue := range parseSRT(string(data)) {
		if len(cue.lines) == 0 {
			continue
		}
		events = append(events, fmt.Sprintf("Dialogue: 0,%s,%s,Line1,,0,0,0,,%s", cue.start, cue.end, cue.lines[0]))
		if len(cue.lines) > 1 && strings.TrimSpace(cue.lines[1]) != "" {
			events = append(events, fmt.Sprintf("Dialogue: 0,%s,%s,Line2,,0,0,0,,%s", cue.start, cue.end, cue.lines[1]))
		}
	}

	return os.WriteFile(assPath, []byte(dualLineHeader+strings.Join(events, "\n")), 0o644)
}
