package acquire

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// CookieFileName is the fixed jar name inside the cookies directory.
const CookieFileName = "youtube_cookies.txt"

// CookieHealth summarizes the state of an uploaded Netscape cookie jar.
type CookieHealth struct {
	CookieCount    int      `json:"cookie_count"`
	YouTubeCookies int      `json:"youtube_cookies"`
	ExpiredCount   int      `json:"expired_count"`
	EarliestExpiry int64    `json:"earliest_expiry,omitempty"`
	ExpiringSoon   bool     `json:"expiring_soon"`
	MalformedLines int      `json:"malformed_lines"`
	SessionCookies []string `json:"session_cookies"`
}

var sessionCookieKeys = []string{"PSID", "LOGIN", "SAPISID", "SSID", "HSID", "SID", "APISID"}

// ValidateCookies parses a Netscape-format jar and reports its health.
// A jar with no usable lines is invalid; expired cookies degrade health but
// do not invalidate the jar.
func ValidateCookies(path string) (bool, string, CookieHealth) {
	var health CookieHealth

	f, err := os.Open(path)
	if err != nil {
		return false, "No cookies file found", health
	}
	defer f.Close()

	now := time.Now().Unix()
	hasYouTube := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			health.MalformedLines++
			continue
		}
		health.CookieCount++

		domain := strings.ToLower(parts[0])
		expiry := parts[4]
		name := parts[5]

		if strings.Contains(domain, "youtube.com") || strings.Contains(domain, "google.com") {
			hasYouTube = true
			health.YouTubeCookies++
		}
		for _, key := range sessionCookieKeys {
			if strings.Contains(name, key) {
				health.SessionCookies = append(health.SessionCookies, name)
				break
			}
		}
		if exp, err := strconv.ParseInt(expiry, 10, 64); err == nil && exp > 0 {
			if exp < now {
				health.ExpiredCount++
			} else {
				if health.EarliestExpiry == 0 || exp < health.EarliestExpiry {
					health.EarliestExpiry = exp
				}
				if exp-now < 7*86400 {
					health.ExpiringSoon = true
				}
			}
		}
	}

	if health.CookieCount == 0 {
		return false, "No valid cookie lines found", health
	}
	if !hasYouTube {
		return true, "Found cookies, but none for YouTube. Downloads might still fail.", health
	}
	if health.ExpiredCount > 0 {
		return true, "Some YouTube cookies are expired.", health
	}
	return true, "Cookies validated.", health
}

// CookieJar resolves the jar path for downloads and reacts to jar changes
// on disk. Validation results are cached until the file changes.
type CookieJar struct {
	logger hclog.Logger
	path   string

	mu    sync.Mutex
	dirty bool
}

// NewCookieJar binds a jar to <dir>/youtube_cookies.txt.
func NewCookieJar(logger hclog.Logger, dir string) *CookieJar {
	return &CookieJar{
		logger: logger.Named("cookies"),
		path:   filepath.Join(dir, CookieFileName),
		dirty:  true,
	}
}

// Path returns the jar location regardless of validity.
func (j *CookieJar) Path() string { return j.path }

// Present reports whether a non-empty jar file exists.
func (j *CookieJar) Present() bool {
	info, err := os.Stat(j.path)
	return err == nil && info.Size() > 0
}

// Valid returns the jar path when it passes the health check, or empty.
// Health warnings are logged once per on-disk change.
func (j *CookieJar) Valid() string {
	if !j.Present() {
		return ""
	}
	if info, err := os.Stat(j.path); err != nil || info.Size() < 10 {
		j.logger.Warn("cookie file is suspiciously small")
		return ""
	}

	ok, msg, health := ValidateCookies(j.path)
	if !ok {
		j.logger.Warn("cookie validation failed", "reason", msg)
		return ""
	}

	j.mu.Lock()
	logHealth := j.dirty
	j.dirty = false
	j.mu.Unlock()
	if logHealth {
		if health.ExpiredCount > 0 {
			j.logger.Warn("expired cookies detected, downloads may fail", "expired", health.ExpiredCount)
		}
		if health.ExpiringSoon {
			j.logger.Warn("some cookies expire within a week")
		}
		if health.MalformedLines > 0 {
			j.logger.Info("skipped malformed cookie lines", "count", health.MalformedLines)
		}
		j.logger.Info("using cookies", "youtube", health.YouTubeCookies, "session", len(health.SessionCookies))
	}
	return j.path
}

// Watch re-arms health logging whenever the jar file changes on disk. Runs
// until the context is cancelled.
func (j *CookieJar) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(j.path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != j.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0 {
				j.mu.Lock()
				j.dirty = true
				j.mu.Unlock()
				j.logger.Info("cookie jar changed on disk", "op", event.Op.String())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			j.logger.Warn("cookie watcher error", "error", err)
		}
	}
}
