// Package payload validates object-created event envelopes before any
// ingestion work starts.
package payload

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

const (
	defaultMaxObjectSize = int64(10) << 30 // 10 GiB
	defaultMaxKeyLength  = 1024
)

// Limits bounds inbound objects. Zero values fall back to the defaults so a
// partially configured deployment keeps the safe caps.
type Limits struct {
	MaxObjectSize int64
	MaxKeyLength  int
}

// DefaultLimits returns the built-in object caps.
func DefaultLimits() Limits {
	return Limits{MaxObjectSize: defaultMaxObjectSize, MaxKeyLength: defaultMaxKeyLength}
}

func (l Limits) maxObjectSize() int64 {
	if l.MaxObjectSize <= 0 {
		return defaultMaxObjectSize
	}
	return l.MaxObjectSize
}

func (l Limits) maxKeyLength() int {
	if l.MaxKeyLength <= 0 {
		return defaultMaxKeyLength
	}
	return l.MaxKeyLength
}

var (
	ErrInvalidBody           = errors.New("invalid_event_body")
	ErrInvalidAccount        = errors.New("invalid_account_id")
	ErrInvalidRegion         = errors.New("invalid_region")
	ErrInvalidBucket         = errors.New("invalid_bucket_name")
	ErrInvalidObjectSize     = errors.New("invalid_object_size")
	ErrInvalidObjectKey      = errors.New("invalid_object_key")
	ErrUnsupportedObjectType = errors.New("unsupported_object_type")
)

var (
	accountPattern = regexp.MustCompile(`^\d{12}$`)
	regionPattern  = regexp.MustCompile(`^[a-z]{2}-[a-z-]+-\d$`)
	bucketPattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
)

// Event is the inbound object-created envelope (EventBridge shape).
type Event struct {
	Account string `json:"account"`
	Region  string `json:"region"`
	Detail  struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key       string `json:"key"`
			Size      *int64 `json:"size"`
			ETag      string `json:"etag"`
			Sequencer string `json:"sequencer"`
		} `json:"object"`
	} `json:"detail"`
}

// Payload is the normalized result of a successful validation.
type Payload struct {
	Account   string `json:"account"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	S3Key     string `json:"s3Key"`
	Size      int64  `json:"size"`
	ETag      string `json:"etag"`
	Sequencer string `json:"sequencer"`
}

// Fingerprint derives the stable per-object identity used for event dedup.
// Empty etag or sequencer still produce a valid, distinguishable value.
func (p Payload) Fingerprint() string {
	return p.ETag + ":" + p.Sequencer
}

// Validate checks the event shape and normalizes it. Every rejection happens
// before any I/O; the returned errors are sentinel values the HTTP layer maps
// to 400 responses.
func Validate(evt Event, limits Limits) (Payload, error) {
	if !accountPattern.MatchString(evt.Account) {
		return Payload{}, ErrInvalidAccount
	}
	if !regionPattern.MatchString(evt.Region) {
		return Payload{}, ErrInvalidRegion
	}
	if !bucketPattern.MatchString(evt.Detail.Bucket.Name) {
		return Payload{}, ErrInvalidBucket
	}
	if evt.Detail.Object.Size == nil || *evt.Detail.Object.Size < 0 || *evt.Detail.Object.Size > limits.maxObjectSize() {
		return Payload{}, ErrInvalidObjectSize
	}

	key, err := normalizeKey(evt.Detail.Object.Key, limits.maxKeyLength())
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		Account:   evt.Account,
		Region:    evt.Region,
		Bucket:    evt.Detail.Bucket.Name,
		S3Key:     key,
		Size:      *evt.Detail.Object.Size,
		ETag:      strings.Trim(evt.Detail.Object.ETag, `"`),
		Sequencer: evt.Detail.Object.Sequencer,
	}, nil
}

// normalizeKey URL-decodes, trims and caps the object key, then enforces the
// CSV extension gate. Anything that is not .csv or .csv.gz is a hard stop
// before provider detection ever runs.
func normalizeKey(raw string, maxLength int) (string, error) {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return "", ErrInvalidObjectKey
	}
	if strings.ContainsRune(decoded, 0) {
		return "", ErrInvalidObjectKey
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" || len(decoded) > maxLength {
		return "", ErrInvalidObjectKey
	}

	lower := strings.ToLower(decoded)
	if !strings.HasSuffix(lower, ".csv") && !strings.HasSuffix(lower, ".csv.gz") {
		return "", ErrUnsupportedObjectType
	}
	return decoded, nil
}
