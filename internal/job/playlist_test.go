package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketvid/pocketvid/internal/acquire"
	"github.com/pocketvid/pocketvid/internal/media"
)

func playlistInfo(entries ...acquire.PlaylistEntry) acquire.PlaylistInfo {
	return acquire.PlaylistInfo{
		IsPlaylist: true,
		Title:      "Test Playlist",
		VideoCount: len(entries),
		Videos:     entries,
	}
}

func TestEnqueuePlaylistCapsVideoCount(t *testing.T) {
	exec := &fakeExec{probeOutput: "60"}
	rt := newTestRuntime(t, exec, &fakeJobFetcher{})
	rt.Cfg.PlaylistMaxVideos = 2

	info := playlistInfo(
		acquire.PlaylistEntry{ID: "v1", Title: "One", URL: "https://example.com/1"},
		acquire.PlaylistEntry{ID: "v2", Title: "Two", URL: "https://example.com/2"},
		acquire.PlaylistEntry{ID: "v3", Title: "Three", URL: "https://example.com/3"},
	)
	count := rt.EnqueuePlaylist("pl1", "https://example.com/list", info, ConvertRequest{Kind: media.KindAudio})

	assert.Equal(t, 2, count)
	rec, ok := rt.Playlists.Get("pl1")
	require.True(t, ok)
	assert.Contains(t, rec.Warning, "first 2 videos")
	assert.Len(t, rec.Videos, 2)
	assert.Equal(t, "Test Playlist", rec.Title)
}

func TestProcessPlaylistMixedOutcome(t *testing.T) {
	exec := &fakeExec{probeOutput: "60"}
	rt := newTestRuntime(t, exec, &fakeJobFetcher{})

	info := playlistInfo(
		acquire.PlaylistEntry{ID: "v1", Title: "Good", URL: "https://example.com/good1"},
		acquire.PlaylistEntry{ID: "v2", Title: "Gone", URL: "https://example.com/bad"},
		acquire.PlaylistEntry{ID: "v3", Title: "Also Good", URL: "https://example.com/good2"},
	)
	rt.EnqueuePlaylist("pl2", "https://example.com/list", info, ConvertRequest{Kind: media.KindAudio})
	rt.ProcessPlaylist(context.Background(), "pl2")

	rec, _ := rt.Playlists.Get("pl2")
	assert.Equal(t, "completed", rec.Status)
	assert.Equal(t, 2, rec.CompletedCount)
	assert.Equal(t, 1, rec.FailedCount)

	assert.Equal(t, EntryCompleted, rec.Videos["v1"].Status)
	assert.Equal(t, EntryFailed, rec.Videos["v2"].Status)
	assert.NotEmpty(t, rec.Videos["v2"].Error)
	assert.Equal(t, EntryCompleted, rec.Videos["v3"].Status)

	// Every processed entry got its own conversion record.
	for _, id := range []string{"v1", "v3"} {
		entry := rec.Videos[id]
		require.NotEmpty(t, entry.FileID)
		job, ok := rt.Jobs.Get(entry.FileID)
		require.True(t, ok)
		assert.Equal(t, StatusCompleted, job.Status)
	}
}

func TestProcessPlaylistAbortsOnDiskExhaustion(t *testing.T) {
	exec := &fakeExec{probeOutput: "60"}
	rt := newTestRuntime(t, exec, &fakeJobFetcher{})
	rt.Disk = NewDiskMonitor(rt.Logger, rt.Cfg.DownloadDir, 50, true)
	rt.Disk.SetUsage(fixedUsage(10))

	info := playlistInfo(
		acquire.PlaylistEntry{ID: "v1", Title: "One", URL: "https://example.com/1"},
	)
	rt.EnqueuePlaylist("pl3", "https://example.com/list", info, ConvertRequest{Kind: media.KindAudio})
	rt.ProcessPlaylist(context.Background(), "pl3")

	rec, _ := rt.Playlists.Get("pl3")
	assert.Equal(t, "failed", rec.Status)
	assert.Contains(t, rec.Error, "storage full")
	assert.Equal(t, EntryPending, rec.Videos["v1"].Status, "entry never dispatched")
}
