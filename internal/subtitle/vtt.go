// Package subtitle converts caption formats and prepares styled ASS tracks
// for burning into constrained video.
package subtitle

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	vttTimingRe = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}\.\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}\.\d{3})`)
	markupTagRe = regexp.MustCompile(`<[^>]+>`)
	cssTagRe    = regexp.MustCompile(`\{[^}]+\}`)
	alignTagRe  = regexp.MustCompile(`align:start|align:middle|align:end`)
)

// ConvertVTTToSRT rewrites a WebVTT caption file as numbered SRT cues next
// to the input, returning the SRT path. The encoder's subtitle filter only
// accepts well-formed SRT, so header lines, cue identifiers and inline
// markup are stripped.
func ConvertVTTToSRT(vttPath string) (string, error) {
	data, err := os.ReadFile(vttPath)
	if err != nil {
		return "", fmt.Errorf("read vtt: %w", err)
	}

	srtPath := strings.TrimSuffix(vttPath, ".vtt") + ".srt"
	lines := strings.Split(string(data), "\n")

	var out []string
	cue := 1
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "WEBVTT") ||
			strings.HasPrefix(line, "Kind:") || strings.HasPrefix(line, "Language:") ||
			strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "Style:") ||
			strings.HasPrefix(line, "STYLE") {
			continue
		}

		m := vttTimingRe.FindStringSubmatch(line)
		if m == nil {
			// Cue identifier or stray metadata.
			continue
		}

		out = append(out, strconv.Itoa(cue))
		cue++
		out = append(out, strings.ReplaceAll(m[1], ".", ",")+" --> "+strings.ReplaceAll(m[2], ".", ","))

		for i++; i < len(lines); i++ {
			text := strings.TrimSpace(lines[i])
			if text == "" {
				break
			}
			text = markupTagRe.ReplaceAllString(text, "")
			text = cssTagRe.ReplaceAllString(text, "")
			text = alignTagRe.ReplaceAllString(text, "")
			text = strings.TrimSpace(text)
			if text != "" {
				out = append(out, text)
			}
		}
		out = append(out, "")
	}

	if cue == 1 {
		return "", fmt.Errorf("no subtitle cues found in %s", vttPath)
	}
	if err := os.WriteFile(srtPath, []byte(strings.Join(out, "\n")), 0o644); err != nil {
		return "", fmt.Errorf("write srt: %w", err)
	}
	return srtPath, nil
}
