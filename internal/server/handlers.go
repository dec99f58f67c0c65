package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pocketvid/pocketvid/internal/acquire"
	"github.com/pocketvid/pocketvid/internal/job"
	"github.com/pocketvid/pocketvid/internal/media"
)

type convertRequest struct {
	URL           string `json:"url" binding:"required"`
	Format        string `json:"format"`
	Quality       string `json:"quality"`
	BurnSubtitles bool   `json:"burn_subtitles"`
}

func parseKind(format string) media.Kind {
	if strings.EqualFold(format, "mp3") || strings.EqualFold(format, "audio") {
		return media.KindAudio
	}
	return media.KindVideo
}

func (s *Server) handleConvert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	fileID := media.Fingerprint(req.URL)
	jr := s.rt.Enqueue(fileID, job.ConvertRequest{
		URL:           req.URL,
		Kind:          parseKind(req.Format),
		Quality:       req.Quality,
		BurnSubtitles: req.BurnSubtitles,
	})
	go s.rt.Convert(s.baseCtx, fileID, jr)

	c.JSON(http.StatusAccepted, gin.H{
		"file_id": fileID,
		"status":  string(job.StatusQueued),
		"quality": jr.Quality,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	rec, ok := s.rt.Jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDownload(c *gin.Context) {
	fileID := c.Param("id")
	rec, ok := s.rt.Jobs.Get(fileID)
	if !ok || rec.Status != job.StatusCompleted || rec.Filename == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed artifact for this job"})
		return
	}
	path := filepath.Join(s.cfg.DownloadDir, rec.Filename)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusGone, gin.H{"error": "artifact expired"})
		return
	}

	name := rec.Filename
	if rec.VideoTitle != "" {
		name = rec.VideoTitle + filepath.Ext(rec.Filename)
	}
	c.FileAttachment(path, name)
}

func (s *Server) handleHistory(c *gin.Context) {
	type item struct {
		FileID           string `json:"file_id"`
		ExpiresInSeconds int64  `json:"expires_in_sec"`
		job.Record
	}
	now := time.Now()
	retention := s.cfg.Retention()
	var items []item
	for id, rec := range s.rt.Jobs.Read() {
		items = append(items, item{
			FileID:           id,
			ExpiresInSeconds: expiresIn(rec, retention, now),
			Record:           rec,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Timestamp > items[j].Timestamp })
	c.JSON(http.StatusOK, gin.H{"jobs": items})
}

// expiresIn is the time left before the retention sweeper removes the
// record's artifacts, zero once expired or when the timestamps are
// unreadable. Jobs that never completed count from their start time, the
// same base the sweeper uses.
func expiresIn(rec job.Record, retention time.Duration, now time.Time) int64 {
	base := rec.CompletedAt
	if base == "" {
		base = rec.Timestamp
	}
	t, err := time.Parse(time.RFC3339, base)
	if err != nil {
		return 0
	}
	remaining := t.Add(retention).Sub(now)
	if remaining < 0 {
		return 0
	}
	return int64(remaining.Seconds())
}

func (s *Server) handlePlaylist(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	info, err := s.rt.Fetcher.ExtractPlaylist(c.Request.Context(), req.URL, s.rt.Cookies.Valid())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "playlist extraction failed"})
		return
	}
	if !info.IsPlaylist || len(info.Videos) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is not a playlist"})
		return
	}

	playlistID := media.Fingerprint(req.URL)
	count := s.rt.EnqueuePlaylist(playlistID, req.URL, info, job.ConvertRequest{
		URL:           req.URL,
		Kind:          parseKind(req.Format),
		Quality:       req.Quality,
		BurnSubtitles: req.BurnSubtitles,
	})
	go s.rt.ProcessPlaylist(s.baseCtx, playlistID)

	c.JSON(http.StatusAccepted, gin.H{
		"playlist_id": playlistID,
		"title":       info.Title,
		"video_count": count,
	})
}

func (s *Server) handlePlaylistStatus(c *gin.Context) {
	rec, ok := s.rt.Playlists.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown playlist"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type splitRequest struct {
	FileID string `json:"file_id" binding:"required"`
	Parts  int    `json:"parts"`
}

func (s *Server) handleSplit(c *gin.Context) {
	var req splitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_id is required"})
		return
	}
	if req.Parts < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parts must be at least 2"})
		return
	}

	rec, ok := s.rt.Jobs.Get(req.FileID)
	if !ok || rec.Status != job.StatusCompleted || rec.Filename == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed artifact for this job"})
		return
	}

	splitID := media.SplitID(req.FileID)
	s.rt.EnqueueSplit(splitID, req.FileID, rec.Filename, req.Parts)
	go s.rt.ProcessSplit(s.baseCtx, splitID, req.FileID, req.Parts)

	c.JSON(http.StatusAccepted, gin.H{"split_id": splitID})
}

func (s *Server) handleSplitStatus(c *gin.Context) {
	rec, ok := s.rt.Splits.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown split job"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleSplitDownload(c *gin.Context) {
	rec, ok := s.rt.Splits.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown split job"})
		return
	}
	partNum, err := strconv.Atoi(c.Param("part"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid part number"})
		return
	}
	for _, part := range rec.Parts {
		if part.Index == partNum {
			path := filepath.Join(s.cfg.DownloadDir, part.Filename)
			if _, err := os.Stat(path); err != nil {
				c.JSON(http.StatusGone, gin.H{"error": "part expired"})
				return
			}
			c.FileAttachment(path, part.Filename)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "part not available"})
}

func (s *Server) handleCookieHealth(c *gin.Context) {
	if !s.rt.Cookies.Present() {
		c.JSON(http.StatusOK, gin.H{"present": false})
		return
	}
	ok, msg, health := acquire.ValidateCookies(s.rt.Cookies.Path())
	c.JSON(http.StatusOK, gin.H{
		"present": true,
		"valid":   ok,
		"message": msg,
		"health":  health,
	})
}

// handleCookieUpload accepts a Netscape cookie jar either as a multipart
// file field named "cookies" or as the raw request body.
func (s *Server) handleCookieUpload(c *gin.Context) {
	var data []byte
	if file, err := c.FormFile("cookies"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
			return
		}
		defer f.Close()
		data, err = io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
			return
		}
	} else {
		var err error
		data, err = io.ReadAll(c.Request.Body)
		if err != nil || len(data) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty cookie payload"})
			return
		}
	}

	path := s.rt.Cookies.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store cookies"})
		return
	}
	tmp := path + ".upload"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store cookies"})
		return
	}

	ok, msg, health := acquire.ValidateCookies(tmp)
	if !ok {
		os.Remove(tmp)
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store cookies"})
		return
	}
	s.logger.Info("cookie jar uploaded", "youtube_cookies", health.YouTubeCookies)
	c.JSON(http.StatusOK, gin.H{"message": msg, "health": health})
}

func (s *Server) handleCookieDelete(c *gin.Context) {
	if err := os.Remove(s.rt.Cookies.Path()); err != nil && !os.IsNotExist(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete cookies"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cookies deleted"})
}
