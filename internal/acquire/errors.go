// Package acquire fetches remote media through yt-dlp using a ladder of
// client-impersonation strategies with structured failure classification.
package acquire

import (
	"fmt"
	"strings"
)

// Kind classifies an acquisition failure. The selector uses it to decide
// between retrying the next strategy and aborting the ladder, and the API
// layer maps it to a remediation message.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindBlocked
	KindTokenRequired
	KindRateLimited
	KindTimeout
	KindAgeRestricted
	KindPrivate
	KindGeoRestricted
	KindRemoved
	KindLiveStream
	KindAuthRequired
	KindFilesizeExceeded
	KindDurationExceeded
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindBlocked:
		return "blocked"
	case KindTokenRequired:
		return "token_required"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindAgeRestricted:
		return "age_restricted"
	case KindPrivate:
		return "private"
	case KindGeoRestricted:
		return "geo_restricted"
	case KindRemoved:
		return "removed"
	case KindLiveStream:
		return "live_stream"
	case KindAuthRequired:
		return "auth_required"
	case KindFilesizeExceeded:
		return "filesize_exceeded"
	case KindDurationExceeded:
		return "duration_exceeded"
	default:
		return "unknown"
	}
}

// Retryable reports whether another strategy in the ladder could still
// succeed after this failure.
func (k Kind) Retryable() bool {
	switch k {
	case KindNotFound, KindRemoved, KindDurationExceeded, KindFilesizeExceeded, KindLiveStream:
		return false
	default:
		return true
	}
}

// Error carries a classified acquisition failure with the raw tool output.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// NewError builds a classified error from raw yt-dlp output.
func NewError(detail string) *Error {
	return &Error{Kind: Classify(detail), Detail: detail}
}

// Classify maps raw tool output to a failure kind. The order matters:
// specific restrictions are checked before the generic auth and block
// buckets.
func Classify(detail string) Kind {
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(detail, "404") || strings.Contains(detail, "410"):
		return KindNotFound
	case strings.Contains(lower, "po token") || strings.Contains(lower, "po_token"):
		return KindTokenRequired
	case strings.Contains(detail, "429") || strings.Contains(lower, "too many requests") ||
		strings.Contains(detail, "503") || strings.Contains(detail, "504"):
		return KindRateLimited
	case strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout"):
		return KindTimeout
	case strings.Contains(lower, "age") && strings.Contains(lower, "restricted"):
		return KindAgeRestricted
	case strings.Contains(lower, "private") || strings.Contains(lower, "members-only"):
		return KindPrivate
	case strings.Contains(lower, "geo") || strings.Contains(lower, "not available in your country"):
		return KindGeoRestricted
	case strings.Contains(lower, "copyright") || strings.Contains(lower, "removed"):
		return KindRemoved
	case strings.Contains(lower, "live") && strings.Contains(lower, "stream"):
		return KindLiveStream
	case strings.Contains(detail, "403") || strings.Contains(lower, "forbidden") || strings.Contains(lower, "bot"):
		return KindBlocked
	case strings.Contains(lower, "sign in") || strings.Contains(lower, "login"):
		return KindAuthRequired
	case strings.Contains(lower, "filesize") || strings.Contains(lower, "too large"):
		return KindFilesizeExceeded
	default:
		return KindUnknown
	}
}

// Remediation returns the user-facing guidance for a failure kind.
func Remediation(k Kind, cookiesPresent bool) string {
	cookieHint := ""
	if !cookiesPresent {
		cookieHint = " Uploading cookies may help if this persists."
	}
	switch k {
	case KindNotFound, KindRemoved:
		return "Video not found. It may have been removed or the URL is wrong."
	case KindTokenRequired:
		return "The source requires a verification token for this client." + cookieHint
	case KindRateLimited:
		return "The source is rate limiting downloads. Wait 10-15 minutes before retrying."
	case KindTimeout:
		return "The download timed out. Try again in a few minutes."
	case KindAgeRestricted:
		return "Video is age-restricted. Upload cookies to access it."
	case KindPrivate:
		return "Video is private or members-only. Cannot download."
	case KindGeoRestricted:
		return "Video is geo-restricted and not available in this region."
	case KindLiveStream:
		return "Cannot download live streams. Try again after the stream ends."
	case KindAuthRequired:
		return "The source requires a signed-in session for this video. Upload cookies to proceed."
	case KindFilesizeExceeded:
		return "Video file is too large for this service."
	case KindDurationExceeded:
		return "Video is too long for this service."
	case KindBlocked:
		return "Access was blocked by the source." + cookieHint
	default:
		return "Download failed after trying every client strategy. Wait 10-15 minutes before retrying." + cookieHint
	}
}
