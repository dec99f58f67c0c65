package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoPresetDerivedParams(t *testing.T) {
	tests := []struct {
		key      string
		maxRate  string
		bufSize  string
		splitMax string
		splitBuf string
		gop      int
	}{
		{"ultralow", "50k", "80k", "60k", "30k", 80},
		{"low", "250k", "400k", "300k", "150k", 120},
		{"medium", "375k", "600k", "450k", "225k", 150},
		{"high", "500k", "800k", "600k", "300k", 180},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			p := VideoPresets[tt.key]
			assert.Equal(t, tt.maxRate, p.MaxRate())
			assert.Equal(t, tt.bufSize, p.BufSize())
			assert.Equal(t, tt.splitMax, p.SplitMaxRate())
			assert.Equal(t, tt.splitBuf, p.SplitBufSize())
			assert.Equal(t, tt.gop, p.GOPSize())
		})
	}
}

func TestNormalizeQuality(t *testing.T) {
	assert.Equal(t, "medium", NormalizeQuality(KindAudio, "auto"))
	assert.Equal(t, "medium", NormalizeQuality(KindAudio, "nonsense"))
	assert.Equal(t, "extreme", NormalizeQuality(KindAudio, "extreme"))

	assert.Equal(t, "low", NormalizeQuality(KindVideo, "auto"))
	assert.Equal(t, "low", NormalizeQuality(KindVideo, "nonsense"))
	assert.Equal(t, "ultralow", NormalizeQuality(KindVideo, "ultralow"))
}

func TestLookupFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "128k", LookupAudio("bogus").Bitrate)
	assert.Equal(t, "200k", LookupVideo("bogus").VideoBitrate)
}

func TestKindExt(t *testing.T) {
	assert.Equal(t, "mp3", KindAudio.Ext())
	assert.Equal(t, "3gp", KindVideo.Ext())
}

func TestFingerprintShapeAndUniqueness(t *testing.T) {
	a := Fingerprint("https://example.com/watch?v=abc")
	assert.Len(t, a, 16)
	for _, c := range a {
		assert.Contains(t, "0123456789abcdef", string(c))
	}
}

func TestSplitIDIncludesParent(t *testing.T) {
	id := SplitID("abc123")
	assert.Contains(t, id, "split_abc123_")
}
