package poller

import (
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/costwise/internal/storage/s3"
)

// Fingerprint derives the dedup identity of a polled object from its listing
// metadata. Any change to key, size or last-modified yields a new fingerprint
// and therefore a fresh ingestion.
func Fingerprint(key string, size int64, lastModified time.Time) string {
	return key + "|" + strconv.FormatInt(size, 10) + "|" + lastModified.UTC().Format(time.RFC3339)
}

// SleepFor computes how long to wait after a tick that took elapsed. The
// interval is measured start-to-start, floored at min so a slow tick cannot
// collapse the loop into a hot spin.
func SleepFor(interval, elapsed, min time.Duration) time.Duration {
	d := interval - elapsed
	if d < min {
		return min
	}
	return d
}

// Candidate reports whether a listed object is worth fingerprinting.
// Directory markers, empty keys and entries without a last-modified timestamp
// are skipped without logging; listings are full of them.
func Candidate(info s3.ObjectInfo) bool {
	if info.Key == "" || strings.HasSuffix(info.Key, "/") {
		return false
	}
	if info.LastModified == nil {
		return false
	}
	lower := strings.ToLower(info.Key)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".csv.gz")
}
