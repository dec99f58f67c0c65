package acquire

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pocketvid/pocketvid/internal/media"
)

// DownloadRequest describes one full ladder acquisition.
type DownloadRequest struct {
	URL      string
	DestPath string
	Kind     media.Kind

	CookieFile  string
	UserAgent   string
	ProxyURL    string
	ForceIPv6   bool
	MaxFilesize string

	// OnAttempt is invoked before each ladder rung, after the backoff
	// delay has been decided but before it is slept. Used for progress
	// reporting. May be nil.
	OnAttempt func(attempt, total int, strategyName string, delay time.Duration)
}

// Selector walks the strategy ladder for one acquisition. Success requires
// both a clean tool exit and a non-empty destination file; a clean exit with
// no artifact counts as a failed rung.
type Selector struct {
	logger  hclog.Logger
	fetcher Fetcher
	sleep   func(time.Duration)
}

// NewSelector creates a ladder selector over a fetcher.
func NewSelector(logger hclog.Logger, fetcher Fetcher) *Selector {
	return &Selector{
		logger:  logger.Named("acquire"),
		fetcher: fetcher,
		sleep:   time.Sleep,
	}
}

// SetSleep replaces the inter-attempt pause, for tests.
func (s *Selector) SetSleep(fn func(time.Duration)) { s.sleep = fn }

// Download runs the ladder until a strategy produces an artifact. Terminal
// failures short-circuit the remaining rungs.
func (s *Selector) Download(ctx context.Context, req DownloadRequest) (FetchResult, error) {
	strategies := Strategies(req.CookieFile != "")

	var lastErr error
	for i, strat := range strategies {
		delay := DelayFor(i)
		if req.OnAttempt != nil {
			req.OnAttempt(i+1, len(strategies), strat.Name, delay)
		}
		if delay > 0 {
			s.sleep(delay)
		}
		if ctx.Err() != nil {
			return FetchResult{}, ctx.Err()
		}

		res, err := s.fetcher.Fetch(ctx, FetchRequest{
			URL:         req.URL,
			DestPath:    req.DestPath,
			Kind:        req.Kind,
			Strategy:    strat,
			CookieFile:  req.CookieFile,
			UserAgent:   req.UserAgent,
			ProxyURL:    req.ProxyURL,
			ForceIPv6:   req.ForceIPv6,
			MaxFilesize: req.MaxFilesize,
		})
		if err == nil {
			if fileHasContent(req.DestPath) {
				s.logger.Info("download succeeded", "strategy", strat.Name, "url", req.URL)
				return res, nil
			}
			s.logger.Warn("strategy exited clean but produced no artifact", "strategy", strat.Name)
			lastErr = &Error{Kind: KindUnknown, Detail: "file not created or empty"}
			continue
		}
		if ctx.Err() != nil {
			return FetchResult{}, ctx.Err()
		}

		lastErr = err
		var aerr *Error
		if errors.As(err, &aerr) {
			switch {
			case !aerr.Kind.Retryable():
				s.logger.Error("terminal acquisition failure", "strategy", strat.Name, "kind", aerr.Kind.String())
				return FetchResult{}, lastErr
			case aerr.Kind == KindBlocked || aerr.Kind == KindRateLimited:
				s.logger.Warn("rate limited or blocked, cooling down", "strategy", strat.Name, "kind", aerr.Kind.String())
				s.sleep(RateLimitCooldown)
			default:
				s.logger.Warn("strategy failed", "strategy", strat.Name, "kind", aerr.Kind.String())
			}
			continue
		}
		s.logger.Error("strategy failed with unexpected error", "strategy", strat.Name, "error", err)
	}

	if lastErr == nil {
		lastErr = &Error{Kind: KindUnknown, Detail: "all download strategies failed"}
	}
	return FetchResult{}, lastErr
}

func fileHasContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
