package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pocketvid/pocketvid/internal/acquire"
	"github.com/pocketvid/pocketvid/internal/ffmpeg"
	"github.com/pocketvid/pocketvid/internal/media"
)

// ConvertRequest describes one conversion submission.
type ConvertRequest struct {
	URL           string
	Kind          media.Kind
	Quality       string
	BurnSubtitles bool
}

// Enqueue creates the queued record for a new conversion and returns its
// normalized request. The caller then runs Convert on a worker goroutine.
func (rt *Runtime) Enqueue(fileID string, req ConvertRequest) ConvertRequest {
	req.Quality = media.NormalizeQuality(req.Kind, req.Quality)
	err := rt.Jobs.Upsert(fileID, func(r *Record) {
		r.Status = StatusQueued
		r.Progress = "Queued for processing..."
		r.URL = req.URL
		r.OutputKind = req.Kind
		r.Quality = req.Quality
		r.BurnSubtitles = req.BurnSubtitles
		r.Timestamp = rt.now()
	})
	if err != nil {
		rt.Logger.Error("enqueue failed", "file_id", fileID, "error", err)
	}
	return req
}

// Convert runs the full single-job sequence: disk precheck, acquisition,
// policy checks, optional captions, transcode, finalization. It never
// panics past the worker; every failure lands in the record.
func (rt *Runtime) Convert(ctx context.Context, fileID string, req ConvertRequest) {
	rt.Active.Register()
	defer rt.Active.Unregister()

	req.Quality = media.NormalizeQuality(req.Kind, req.Quality)

	// Disk precheck happens before any network traffic.
	if !rt.ensureDiskFloor() {
		_, free := rt.Disk.Check()
		rt.fail(fileID, fmt.Sprintf("Server storage full (%.0fMB free). Try again later.", free))
		return
	}

	tempPath := filepath.Join(rt.Cfg.DownloadDir, fileID+"_temp.mp4")
	outputPath := filepath.Join(rt.Cfg.DownloadDir, fileID+"."+req.Kind.Ext())
	defer os.Remove(tempPath)

	formatName := req.Kind.DisplayName()
	presetName := rt.presetName(req)
	rt.setStatus(fileID, StatusDownloading, fmt.Sprintf(
		"Downloading for %s conversion (%s)... (this may take several minutes for long videos)",
		formatName, presetName))

	res, err := rt.Selector.Download(ctx, acquire.DownloadRequest{
		URL:         req.URL,
		DestPath:    tempPath,
		Kind:        req.Kind,
		CookieFile:  rt.Cookies.Valid(),
		UserAgent:   rt.Cfg.CustomUserAgent,
		ProxyURL:    rt.Cfg.ProxyURL,
		ForceIPv6:   rt.Cfg.ForceIPv6,
		MaxFilesize: rt.Cfg.MaxFilesize,
		OnAttempt: func(attempt, total int, name string, delay time.Duration) {
			if attempt == 1 {
				return
			}
			rt.setStatus(fileID, StatusDownloading, fmt.Sprintf(
				"Retrying with %s client... (attempt %d/%d, waiting %ds to avoid rate limits)",
				name, attempt, total, int(delay.Seconds())))
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			rt.fail(fileID, "Processing aborted by shutdown.")
			return
		}
		rt.fail(fileID, rt.remediate(err))
		return
	}
	if res.Title != "" {
		rt.Jobs.Upsert(fileID, func(r *Record) { r.VideoTitle = res.Title })
	}

	// Policy checks on the raw download.
	duration := rt.FFmpeg.ProbeDuration(ctx, tempPath)
	if max := rt.Cfg.MaxVideoDuration(); max > 0 && duration > max.Seconds() {
		os.Remove(tempPath)
		rt.fail(fileID, fmt.Sprintf("Video is %.1f hours long. Maximum allowed is %.0f hours.",
			duration/3600, max.Hours()))
		return
	}
	info, err := os.Stat(tempPath)
	if err != nil {
		rt.fail(fileID, "Download finished but the file disappeared.")
		return
	}
	if maxBytes := rt.Cfg.MaxFilesizeBytes(); maxBytes > 0 && info.Size() > maxBytes {
		os.Remove(tempPath)
		rt.fail(fileID, fmt.Sprintf("Video file is too large (%s). Maximum allowed is %s.",
			HumanSize(info.Size()), HumanSize(maxBytes)))
		return
	}

	// Transcoding needs headroom on top of the raw download. No reclaim
	// here: it would take the download itself with it.
	if ok, free := rt.Disk.CheckFor(info.Size()); !ok {
		os.Remove(tempPath)
		rt.fail(fileID, fmt.Sprintf("Not enough storage to convert (%.0fMB free).", free))
		return
	}

	// Captions are fetched up front so the burn stage never waits on the
	// network with a finished encode in hand. A skip on the size or
	// duration limits is not a failure and gets its own message.
	srtPath := ""
	subtitleNote := ""
	if req.BurnSubtitles && req.Kind == media.KindVideo && rt.Cfg.SubtitleBurning {
		if reason := rt.subtitleSkipReason(duration, info.Size()); reason != "" {
			rt.Logger.Warn("subtitle burning skipped", "file_id", fileID, "reason", reason)
			rt.setStatus(fileID, StatusDownloading, "Subtitle burning skipped: "+reason+".")
			subtitleNote = " (subtitles skipped: " + reason + ")"
		} else {
			rt.setStatus(fileID, StatusDownloading, "Fetching English subtitles...")
			srtPath, err = rt.Subtitles.Fetch(ctx, req.URL, fileID, rt.Cookies.Valid())
			if err != nil {
				if ctx.Err() != nil {
					rt.fail(fileID, "Processing aborted by shutdown.")
					return
				}
				rt.Logger.Warn("captions unavailable, continuing without", "file_id", fileID, "error", err)
				srtPath = ""
				subtitleNote = " (without subtitles - burning failed)"
			}
		}
	}

	sizeMB := float64(info.Size()) / (1024 * 1024)
	rt.setStatus(fileID, StatusConverting, fmt.Sprintf(
		"Converting to %s (%s)... Duration: %.1f minutes, Size: %.1f MB.",
		formatName, presetName, duration/60, sizeMB))

	if err := rt.transcode(ctx, req, tempPath, outputPath); err != nil {
		if ctx.Err() != nil {
			rt.fail(fileID, "Processing aborted by shutdown.")
			return
		}
		rt.fail(fileID, "Conversion failed: "+TruncateMessage(err.Error(), 250))
		return
	}
	os.Remove(tempPath)
	if !fileHasContent(outputPath) {
		rt.fail(fileID, "Conversion failed: output file not created.")
		return
	}

	// Burn after the clean encode so the unsubtitled artifact survives a
	// failed burn.
	if srtPath != "" {
		if burned := rt.burn(ctx, fileID, req, outputPath, srtPath); !burned {
			subtitleNote = " (without subtitles - burning failed)"
		}
	}

	final, err := os.Stat(outputPath)
	if err != nil {
		rt.fail(fileID, "Finalization failed: output file missing.")
		return
	}
	message := fmt.Sprintf("Conversion complete! Duration: %.1f min, File size: %s",
		duration/60, HumanSize(final.Size()))
	message += subtitleNote
	rt.Jobs.Upsert(fileID, func(r *Record) {
		r.Filename = fileID + "." + req.Kind.Ext()
		r.FileSize = final.Size()
		r.FileSizeHuman = HumanSize(final.Size())
		r.Duration = duration
	})
	rt.setStatus(fileID, StatusCompleted, message)
	rt.Logger.Info("job completed", "file_id", fileID, "size", final.Size(), "duration", duration)
}

// transcode runs the two-tier encode for the requested shape.
func (rt *Runtime) transcode(ctx context.Context, req ConvertRequest, input, output string) error {
	if req.Kind == media.KindAudio {
		p := media.LookupAudio(req.Quality)
		return rt.FFmpeg.RunWithFallback(ctx,
			ffmpeg.AudioArgs(input, output, p),
			ffmpeg.AudioArgsSimplified(input, output, p))
	}
	p := media.LookupVideo(req.Quality)
	return rt.FFmpeg.RunWithFallback(ctx,
		ffmpeg.VideoArgs(input, output, p),
		ffmpeg.VideoArgsSimplified(input, output, p))
}

// burn overlays captions onto a finished 3GP. Returns true when the
// subtitled artifact replaced the original.
func (rt *Runtime) burn(ctx context.Context, fileID string, req ConvertRequest, outputPath, srtPath string) bool {
	defer os.Remove(srtPath)

	rt.setStatus(fileID, StatusBurningSubtitles, "Burning subtitles into 3GP... This may take a few minutes.")

	assPath, err := rt.Subtitles.PrepareASS(ctx, srtPath, req.URL, fileID, rt.Cookies.Valid())
	if err != nil {
		rt.Logger.Warn("subtitle track preparation failed", "file_id", fileID, "error", err)
		return false
	}
	defer os.Remove(assPath)

	withSubs := filepath.Join(rt.Cfg.DownloadDir, fileID+"_with_subs.3gp")
	p := media.LookupVideo(req.Quality)
	err = rt.FFmpeg.RunWithFallback(ctx,
		ffmpeg.BurnArgs(outputPath, withSubs, assPath, p),
		ffmpeg.BurnArgsSimplified(outputPath, withSubs, assPath, p))
	if err != nil || !fileHasContent(withSubs) {
		rt.Logger.Warn("subtitle burn failed, keeping unsubtitled artifact", "file_id", fileID, "error", err)
		os.Remove(withSubs)
		return false
	}

	if err := os.Rename(withSubs, outputPath); err != nil {
		rt.Logger.Warn("could not publish subtitled artifact", "file_id", fileID, "error", err)
		os.Remove(withSubs)
		return false
	}
	rt.Logger.Info("subtitles burned", "file_id", fileID)
	return true
}

// ensureDiskFloor verifies the free-space floor, attempting one emergency
// reclaim before giving up.
func (rt *Runtime) ensureDiskFloor() bool {
	ok, free := rt.Disk.Check()
	if ok {
		return true
	}
	rt.Logger.Warn("low disk space, attempting cleanup", "free_mb", free)
	if rt.Reclaim != nil {
		rt.Reclaim()
	}
	ok, _ = rt.Disk.Check()
	return ok
}

// subtitleSkipReason reports why burning is out of reach for this video,
// or "" when it is allowed to proceed.
func (rt *Runtime) subtitleSkipReason(durationSec float64, sizeBytes int64) string {
	if rt.Cfg.SubtitleMaxDurationMin > 0 && durationSec > float64(rt.Cfg.SubtitleMaxDurationMin)*60 {
		return fmt.Sprintf("video is %.1f minutes (limit: %d minutes)",
			durationSec/60, rt.Cfg.SubtitleMaxDurationMin)
	}
	if rt.Cfg.SubtitleMaxFilesizeMB > 0 && sizeBytes > int64(rt.Cfg.SubtitleMaxFilesizeMB)*1024*1024 {
		return fmt.Sprintf("video is %.1f MB (limit: %d MB)",
			float64(sizeBytes)/(1024*1024), rt.Cfg.SubtitleMaxFilesizeMB)
	}
	return ""
}

// remediate maps an acquisition failure to its user-facing message.
func (rt *Runtime) remediate(err error) string {
	var aerr *acquire.Error
	if errors.As(err, &aerr) {
		return acquire.Remediation(aerr.Kind, rt.Cookies.Present())
	}
	return "Download failed: " + TruncateMessage(err.Error(), 250)
}

func (rt *Runtime) presetName(req ConvertRequest) string {
	if req.Kind == media.KindAudio {
		return media.LookupAudio(req.Quality).Name
	}
	return media.LookupVideo(req.Quality).Name
}

func fileHasContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
