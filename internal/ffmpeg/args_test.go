package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pocketvid/pocketvid/internal/media"
)

func indexOf(args []string, flag string) int {
	for i, a := range args {
		if a == flag {
			return i
		}
	}
	return -1
}

func flagValue(t *testing.T, args []string, flag string) string {
	t.Helper()
	i := indexOf(args, flag)
	if i < 0 || i+1 >= len(args) {
		t.Fatalf("flag %s not found in %v", flag, args)
	}
	return args[i+1]
}

func TestVideoArgsDerivedRateControl(t *testing.T) {
	p := media.VideoPresets["low"]
	args := VideoArgs("in.mp4", "out.3gp", p)

	assert.Equal(t, "mpeg4", flagValue(t, args, "-vcodec"))
	assert.Equal(t, "200k", flagValue(t, args, "-b:v"))
	assert.Equal(t, "250k", flagValue(t, args, "-maxrate"))
	assert.Equal(t, "400k", flagValue(t, args, "-bufsize"))
	assert.Equal(t, "120", flagValue(t, args, "-g"))
	assert.Equal(t, "1", flagValue(t, args, "-ac"))
	assert.Equal(t, "out.3gp", args[len(args)-1])
}

func TestVideoArgsSimplifiedDropsTuningFlags(t *testing.T) {
	p := media.VideoPresets["medium"]
	args := VideoArgsSimplified("in.mp4", "out.3gp", p)

	for _, flag := range []string{"-maxrate", "-bufsize", "-mbd", "-trellis", "-me_method", "-qmin", "-qmax"} {
		assert.Equal(t, -1, indexOf(args, flag), "simplified vector must not carry %s", flag)
	}
	assert.Equal(t, "300k", flagValue(t, args, "-b:v"))
	assert.Equal(t, "15", flagValue(t, args, "-r"))
}

func TestVideoArgsUltraLowUsesH263Pipeline(t *testing.T) {
	p := media.VideoPresets["ultralow"]
	args := VideoArgs("in.mp4", "out.3gp", p)

	assert.Equal(t, "h263", flagValue(t, args, "-c:v"))
	assert.Equal(t, "amr_nb", flagValue(t, args, "-c:a"))
	assert.Equal(t, "8000", flagValue(t, args, "-ar"))
	assert.Equal(t, "3gp", flagValue(t, args, "-f"))
}

func TestAudioArgs(t *testing.T) {
	p := media.AudioPresets["high"]
	args := AudioArgs("in.mp4", "out.mp3", p)

	assert.NotEqual(t, -1, indexOf(args, "-vn"))
	assert.Equal(t, "libmp3lame", flagValue(t, args, "-acodec"))
	assert.Equal(t, "192k", flagValue(t, args, "-b:a"))
	assert.Equal(t, "2", flagValue(t, args, "-q:a"))
	assert.Equal(t, "2", flagValue(t, args, "-ac"))
}

func TestSplitArgsUseSplitRatios(t *testing.T) {
	p := media.VideoPresets["low"]
	args := SplitVideoArgs("in.3gp", "part1.3gp", 30, 60, p)

	assert.Equal(t, "30", flagValue(t, args, "-ss"))
	assert.Equal(t, "60", flagValue(t, args, "-t"))
	assert.Equal(t, "libx264", flagValue(t, args, "-c:v"))
	assert.Equal(t, "ultrafast", flagValue(t, args, "-preset"))
	assert.Equal(t, "300k", flagValue(t, args, "-maxrate"))
	assert.Equal(t, "150k", flagValue(t, args, "-bufsize"))
}

func TestSplitAudioArgsSuppressXing(t *testing.T) {
	p := media.AudioPresets["medium"]
	args := SplitAudioArgs("in.mp3", "part1.mp3", 0, 45.5, p)

	assert.Equal(t, "0", flagValue(t, args, "-write_xing"))
	assert.Equal(t, "45.5", flagValue(t, args, "-t"))
}

func TestEscapeFilterPath(t *testing.T) {
	assert.Equal(t, `C\:/subs/a.ass`, EscapeFilterPath(`C:\subs\a.ass`))
	assert.Equal(t, `/tmp/downloads/abc_subs.ass`, EscapeFilterPath("/tmp/downloads/abc_subs.ass"))
}

func TestBurnFilterEmbedsEscapedPath(t *testing.T) {
	filter := BurnFilter("/tmp/x:y.ass")
	assert.Contains(t, filter, `subtitles=/tmp/x\:y.ass`)
	assert.Contains(t, filter, "pad=320:240")
}
