package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pocketvid/pocketvid/internal/acquire"
	"github.com/pocketvid/pocketvid/internal/media"
)

// EnqueuePlaylist records a new playlist fan-out from a flat extraction and
// returns the entry count that will actually be processed.
func (rt *Runtime) EnqueuePlaylist(playlistID, url string, info acquire.PlaylistInfo, req ConvertRequest) int {
	req.Quality = media.NormalizeQuality(req.Kind, req.Quality)

	entries := info.Videos
	warning := ""
	if len(entries) > rt.Cfg.PlaylistMaxVideos {
		warning = fmt.Sprintf("Processing first %d videos only", rt.Cfg.PlaylistMaxVideos)
		entries = entries[:rt.Cfg.PlaylistMaxVideos]
	}

	videos := make(map[string]VideoEntry, len(entries))
	for i, e := range entries {
		videos[e.ID] = VideoEntry{
			Index:    i,
			Title:    e.Title,
			URL:      e.URL,
			Duration: e.Duration,
			Status:   EntryPending,
		}
	}

	rt.Playlists.Upsert(playlistID, func(r *PlaylistRecord) {
		r.Status = "processing"
		r.Progress = fmt.Sprintf("Queued %d videos", len(videos))
		r.URL = url
		r.Title = info.Title
		r.OutputKind = req.Kind
		r.Quality = req.Quality
		r.BurnSubtitles = req.BurnSubtitles
		r.Videos = videos
		r.Warning = warning
		r.Timestamp = rt.now()
	})
	return len(videos)
}

// ProcessPlaylist fans out over a playlist's pending entries with the
// configured concurrency degree (default 1, which preserves strict input
// order with a pacing delay). Per-entry failures are recorded and skipped;
// only disk exhaustion aborts the remaining queue.
func (rt *Runtime) ProcessPlaylist(ctx context.Context, playlistID string) {
	rt.Active.Register()
	defer rt.Active.Unregister()

	rec, ok := rt.Playlists.Get(playlistID)
	if !ok {
		rt.Logger.Error("unknown playlist", "playlist_id", playlistID)
		return
	}

	ordered := orderedEntries(rec.Videos)
	total := len(ordered)

	degree := rt.Cfg.PlaylistConcurrency
	if degree < 1 {
		degree = 1
	}

	work := make(chan string)
	var wg sync.WaitGroup
	for w := 0; w < degree; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for videoID := range work {
				rt.processEntry(ctx, playlistID, videoID)
			}
		}()
	}

	aborted := false
	dispatched := 0
	for _, videoID := range ordered {
		if ctx.Err() != nil {
			aborted = true
			break
		}
		entry := rec.Videos[videoID]
		if entry.Status != EntryPending {
			continue
		}
		if !rt.ensureDiskFloor() {
			_, free := rt.Disk.Check()
			rt.Playlists.Upsert(playlistID, func(r *PlaylistRecord) {
				r.Status = "failed"
				r.Error = fmt.Sprintf("Server storage full (%.0fMB free). Processed %d videos.", free, dispatched)
			})
			aborted = true
			break
		}

		rt.Playlists.Upsert(playlistID, func(r *PlaylistRecord) {
			r.CurrentVideo = entry.Title
			r.Progress = fmt.Sprintf("Processing video %d/%d", dispatched+1, total)
		})
		work <- videoID
		dispatched++

		// Pacing between entries keeps the source from throttling us.
		if pacing := rt.Cfg.PlaylistPacing(); pacing > 0 {
			rt.sleep(pacing)
		}
	}
	close(work)
	wg.Wait()

	if aborted {
		return
	}
	final, _ := rt.Playlists.Get(playlistID)
	rt.Playlists.Upsert(playlistID, func(r *PlaylistRecord) {
		r.Status = "completed"
		r.Progress = fmt.Sprintf("Completed! %d successful, %d failed", final.CompletedCount, final.FailedCount)
	})
	rt.Logger.Info("playlist completed", "playlist_id", playlistID,
		"completed", final.CompletedCount, "failed", final.FailedCount)
}

// processEntry converts one playlist video, isolating its failure from the
// rest of the queue.
func (rt *Runtime) processEntry(ctx context.Context, playlistID, videoID string) {
	rec, ok := rt.Playlists.Get(playlistID)
	if !ok {
		return
	}
	entry, ok := rec.Videos[videoID]
	if !ok {
		return
	}

	fileID := media.Fingerprint(entry.URL)
	rt.Playlists.Upsert(playlistID, func(r *PlaylistRecord) {
		e := r.Videos[videoID]
		e.Status = EntryProcessing
		e.FileID = fileID
		r.Videos[videoID] = e
	})

	req := rt.Enqueue(fileID, ConvertRequest{
		URL:           entry.URL,
		Kind:          rec.OutputKind,
		Quality:       rec.Quality,
		BurnSubtitles: rec.BurnSubtitles,
	})

	started := time.Now()
	rt.Convert(ctx, fileID, req)
	if soft := rt.Cfg.PlaylistSoftDeadline(); soft > 0 && time.Since(started) > soft {
		rt.Logger.Warn("playlist entry exceeded soft deadline",
			"playlist_id", playlistID, "video_id", videoID, "elapsed", time.Since(started))
	}

	job, _ := rt.Jobs.Get(fileID)
	rt.Playlists.Upsert(playlistID, func(r *PlaylistRecord) {
		e := r.Videos[videoID]
		if job.Status == StatusCompleted {
			e.Status = EntryCompleted
			r.CompletedCount++
		} else {
			e.Status = EntryFailed
			e.Error = TruncateMessage(job.Progress, 100)
			r.FailedCount++
		}
		r.Videos[videoID] = e
	})
}

func orderedEntries(videos map[string]VideoEntry) []string {
	ids := make([]string, 0, len(videos))
	for id := range videos {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return videos[ids[i]].Index < videos[ids[j]].Index
	})
	return ids
}
