package subtitle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pocketvid/pocketvid/internal/acquire"
)

// ErrNoUsableSubtitles reports that no English captions could be fetched
// or converted for a video. Callers treat it as a soft failure: the video
// ships without burned captions.
var ErrNoUsableSubtitles = errors.New("no usable subtitles")

const fetchAttempts = 3

// Pipeline fetches English captions and prepares SRT files for rendering.
type Pipeline struct {
	logger      hclog.Logger
	fetcher     acquire.Fetcher
	downloadDir string
	sleep       func(time.Duration)
}

// NewPipeline creates a caption pipeline writing under downloadDir.
func NewPipeline(logger hclog.Logger, fetcher acquire.Fetcher, downloadDir string) *Pipeline {
	return &Pipeline{
		logger:      logger.Named("subtitle"),
		fetcher:     fetcher,
		downloadDir: downloadDir,
		sleep:       time.Sleep,
	}
}

// SetSleep replaces the retry pause, for tests.
func (p *Pipeline) SetSleep(fn func(time.Duration)) { p.sleep = fn }

// Fetch downloads English captions for a video and returns the SRT path.
// Auto-captions arrive as VTT and are converted. Three attempts with
// exponential backoff, then ErrNoUsableSubtitles.
func (p *Pipeline) Fetch(ctx context.Context, url, fileID, cookieFile string) (string, error) {
	base := filepath.Join(p.downloadDir, fileID)
	srtPath := base + ".en.srt"
	vttPath := base + ".en.vtt"

	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			p.logger.Info("retrying subtitle fetch", "file_id", fileID, "attempt", attempt+1)
			os.Remove(srtPath)
			os.Remove(vttPath)
		}

		if err := p.fetcher.FetchSubtitles(ctx, url, base, cookieFile); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			var aerr *acquire.Error
			if errors.As(err, &aerr) && aerr.Kind == acquire.KindRateLimited {
				p.logger.Warn("rate limited fetching subtitles, cookies may help", "file_id", fileID, "attempt", attempt+1)
			} else {
				p.logger.Warn("subtitle fetch failed", "file_id", fileID, "attempt", attempt+1, "error", err)
			}
			p.backoff(attempt)
			continue
		}

		if fileHasContent(srtPath) {
			p.logger.Info("subtitles fetched", "file_id", fileID, "format", "srt")
			return srtPath, nil
		}
		if fileHasContent(vttPath) {
			converted, err := ConvertVTTToSRT(vttPath)
			if err == nil && fileHasContent(converted) {
				os.Remove(vttPath)
				p.logger.Info("subtitles fetched", "file_id", fileID, "format", "vtt")
				return converted, nil
			}
			p.logger.Warn("vtt conversion failed", "file_id", fileID, "attempt", attempt+1, "error", err)
			os.Remove(vttPath)
			p.backoff(attempt)
			continue
		}

		p.logger.Info("no subtitles available", "file_id", fileID, "attempt", attempt+1)
		p.backoff(attempt)
	}

	return "", fmt.Errorf("%w for %s", ErrNoUsableSubtitles, fileID)
}

// PrepareASS renders the dual-line burn track for an SRT file. Rendering
// failures escalate: retry once, then re-fetch fresh captions (covering a
// corrupted download) and retry a final time.
func (p *Pipeline) PrepareASS(ctx context.Context, srtPath, url, fileID, cookieFile string) (string, error) {
	assPath := filepath.Join(p.downloadDir, fileID+"_subs.ass")

	if err := RenderDualLineASS(srtPath, assPath); err == nil {
		return assPath, nil
	}
	p.logger.Warn("subtitle render failed, retrying", "file_id", fileID)
	if err := RenderDualLineASS(srtPath, assPath); err == nil {
		return assPath, nil
	}

	p.logger.Warn("subtitle render failed again, re-fetching captions", "file_id", fileID)
	freshSRT, err := p.Fetch(ctx, url, fileID, cookieFile)
	if err != nil {
		return "", fmt.Errorf("%w: re-fetch for render failed", ErrNoUsableSubtitles)
	}
	if err := RenderDualLineASS(freshSRT, assPath); err != nil {
		return "", fmt.Errorf("%w: render failed after re-fetch: %v", ErrNoUsableSubtitles, err)
	}
	return assPath, nil
}

// backoff sleeps 1s, 2s, 4s between attempts. The final attempt does not
// sleep.
func (p *Pipeline) backoff(attempt int) {
	if attempt < fetchAttempts-1 {
		p.sleep(time.Duration(1<<attempt) * time.Second)
	}
}

func fileHasContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
