package subtitle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVTT = `WEBVTT
Kind: captions
Language: en

00:00:01.000 --> 00:00:03.500 align:start position:0%
<c.yellow>Hello</c> world

cue-2
00:00:04.000 --> 00:00:06.000
Second line one
Second line two

NOTE this is a comment

00:00:07.250 --> 00:00:09.000
{an drawing}Third cue
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConvertVTTToSRT(t *testing.T) {
	dir := t.TempDir()
	vttPath := filepath.Join(dir, "video.en.vtt")
	writeFile(t, vttPath, sampleVTT)

	srtPath, err := ConvertVTTToSRT(vttPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "video.en.srt"), srtPath)

	data, err := os.ReadFile(srtPath)
	require.NoError(t, err)
	srt := string(data)

	cues := parseSRT(srt)
	require.Len(t, cues, 3, "three cues survive conversion")

	assert.Contains(t, srt, "00:00:01,000 --> 00:00:03,500", "dots become commas")
	assert.Contains(t, srt, "Hello world", "inline markup stripped")
	assert.NotContains(t, srt, "align:start")
	assert.NotContains(t, srt, "<c.yellow>")
	assert.NotContains(t, srt, "{an drawing}")
	assert.NotContains(t, srt, "cue-2", "cue identifiers dropped")

	assert.Equal(t, []string{"Second line one", "Second line two"}, cues[1].lines)
	assert.Equal(t, []string{"Third cue"}, cues[2].lines)
}

func TestConvertVTTToSRTNoCues(t *testing.T) {
	dir := t.TempDir()
	vttPath := filepath.Join(dir, "empty.en.vtt")
	writeFile(t, vttPath, "WEBVTT\nKind: captions\n")

	_, err := ConvertVTTToSRT(vttPath)
	assert.Error(t, err)
}

func TestSRTToASSTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"00:00:01,000", "0:00:01.00"},
		{"01:23:45,678", "1:23:45.67"},
		{"10:00:00,500", "10:00:00.50"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, srtToASSTime(tt.in), tt.in)
	}
}

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
First top
First bottom

2
00:00:04,000 --> 00:00:06,000
Only line
`

func TestRenderDualLineASS(t *testing.T) {
	dir := t.TempDir()
	srtPath := filepath.Join(dir, "subs.srt")
	assPath := filepath.Join(dir, "subs.ass")
	writeFile(t, srtPath, sampleSRT)

	require.NoError(t, RenderDualLineASS(srtPath, assPath))

	data, err := os.ReadFile(assPath)
	require.NoError(t, err)
	ass := string(data)

	assert.Contains(t, ass, "PlayResX: 320")
	assert.Contains(t, ass, "PlayResY: 240")
	assert.Contains(t, ass, "Style: Line1,Arial,14")
	assert.Contains(t, ass, "Style: Line2,Arial,14")
	assert.Contains(t, ass, "Dialogue: 0,0:00:01.00,0:00:03.50,Line1,,0,0,0,,First top")
	assert.Contains(t, ass, "Dialogue: 0,0:00:01.00,0:00:03.50,Line2,,0,0,0,,First bottom")
	assert.Contains(t, ass, "Dialogue: 0,0:00:04.00,0:00:06.00,Line1,,0,0,0,,Only line")
	assert.Equal(t, 0, strings.Count(ass, "0:00:04.00,0:00:06.00,Line2"), "single-line cue emits no empty Line2")
}

func TestRenderSingleLineASS(t *testing.T) {
	dir := t.TempDir()
	srtPath := filepath.Join(dir, "subs.srt")
	assPath := filepath.Join(dir, "subs.ass")
	writeFile(t, srtPath, sampleSRT)

	require.NoError(t, RenderSingleLineASS(srtPath, assPath))

	data, err := os.ReadFile(assPath)
	require.NoError(t, err)
	ass := string(data)

	assert.Contains(t, ass, "Style: Default,Arial,16")
	assert.Contains(t, ass, "Dialogue: 0,0:00:01.00,0:00:03.50,Default,,0,0,0,,First top First bottom")
}
