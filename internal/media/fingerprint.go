package media

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// Fingerprint derives a 16-hex-char job identifier from the source URL and
// the current wall clock. Re-submitting the same URL yields a distinct ID.
func Fingerprint(url string) string {
	seed := fmt.Sprintf("%s%d", url, time.Now().UnixMilli())
	sum := md5.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}

// SplitID derives a split-operation identifier bound to its parent job.
func SplitID(jobID string) string {
	return fmt.Sprintf("split_%s_%d", jobID, time.Now().Unix())
}
