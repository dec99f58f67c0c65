package acquire

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher scripts per-attempt outcomes for the ladder.
type fakeFetcher struct {
	results []error
	writeOn int // 1-based attempt that produces the dest file, 0 = never
	calls   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	attempt := len(f.calls) + 1
	f.calls = append(f.calls, req.Strategy.Name)
	if f.writeOn == attempt {
		os.WriteFile(req.DestPath, []byte("media"), 0o644)
	}
	var err error
	if attempt-1 < len(f.results) {
		err = f.results[attempt-1]
	}
	if err != nil {
		return FetchResult{}, err
	}
	return FetchResult{Title: "A Title"}, nil
}

func (f *fakeFetcher) ExtractPlaylist(ctx context.Context, url, cookieFile string) (PlaylistInfo, error) {
	return PlaylistInfo{}, nil
}

func (f *fakeFetcher) FetchSubtitles(ctx context.Context, url, basePath, cookieFile string) error {
	return nil
}

func TestDownloadRateLimitThenSuccess(t *testing.T) {
	fetcher := &fakeFetcher{
		results: []error{NewError("HTTP Error 429: Too Many Requests"), nil},
		writeOn: 2,
	}
	s := NewSelector(hclog.NewNullLogger(), fetcher)

	var slept []time.Duration
	s.SetSleep(func(d time.Duration) { slept = append(slept, d) })

	dest := filepath.Join(t.TempDir(), "abc_temp.mp4")
	res, err := s.Download(context.Background(), DownloadRequest{
		URL: "https://example.com/v", DestPath: dest,
	})

	require.NoError(t, err)
	assert.Equal(t, "A Title", res.Title)
	assert.Equal(t, []string{"Android (Primary)", "iOS (Fallback)"}, fetcher.calls)
	// The rate-limit cooldown plus the second rung's backoff must both be
	// observed.
	assert.Contains(t, slept, RateLimitCooldown)
	assert.Contains(t, slept, 1*time.Second)
}

func TestDownloadTerminalShortCircuits(t *testing.T) {
	fetcher := &fakeFetcher{
		results: []error{NewError("HTTP Error 404: Not Found")},
	}
	s := NewSelector(hclog.NewNullLogger(), fetcher)
	s.SetSleep(func(time.Duration) {})

	_, err := s.Download(context.Background(), DownloadRequest{
		URL: "https://example.com/v", DestPath: filepath.Join(t.TempDir(), "x.mp4"),
	})

	require.Error(t, err)
	assert.Len(t, fetcher.calls, 1, "remaining strategies must not run after a terminal failure")
}

func TestDownloadCleanExitWithoutArtifactFails(t *testing.T) {
	fetcher := &fakeFetcher{results: []error{nil, nil, nil}}
	s := NewSelector(hclog.NewNullLogger(), fetcher)
	s.SetSleep(func(time.Duration) {})

	_, err := s.Download(context.Background(), DownloadRequest{
		URL: "https://example.com/v", DestPath: filepath.Join(t.TempDir(), "x.mp4"),
	})

	require.Error(t, err)
	assert.Len(t, fetcher.calls, 3, "every strategy runs when none leaves a file")
}

func TestDownloadReportsAttempts(t *testing.T) {
	fetcher := &fakeFetcher{
		results: []error{NewError("read timed out"), nil},
		writeOn: 2,
	}
	s := NewSelector(hclog.NewNullLogger(), fetcher)
	s.SetSleep(func(time.Duration) {})

	var attempts []int
	_, err := s.Download(context.Background(), DownloadRequest{
		URL:      "https://example.com/v",
		DestPath: filepath.Join(t.TempDir(), "x.mp4"),
		OnAttempt: func(attempt, total int, name string, delay time.Duration) {
			attempts = append(attempts, attempt)
			assert.Equal(t, 3, total)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDownloadCancelledContext(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := NewSelector(hclog.NewNullLogger(), fetcher)
	s.SetSleep(func(time.Duration) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Download(ctx, DownloadRequest{
		URL: "https://example.com/v", DestPath: filepath.Join(t.TempDir(), "x.mp4"),
	})
	assert.ErrorIs(t, err, context.Canceled)
}
