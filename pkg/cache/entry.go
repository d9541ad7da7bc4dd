package cache

import (
	"fmt"
	"strconv"
	"time"
)

// Hash fields of a stored entry.
const (
	fieldBody        = "body"
	fieldStatus      = "status"
	fieldContentType = "content_type"
	fieldStoredAt    = "stored_at"
	fieldExpires     = "expires"
)

// Entry is one cached Data Garden response. Only what the JSON decoders need
// is kept: the body, its status and its content type.
type Entry struct {
	Body        []byte
	Status      int
	ContentType string
	StoredAt    time.Time
	Expires     time.Time
}

// FreshAt reports whether the entry can still be served at now.
func (e *Entry) FreshAt(now time.Time) bool {
	return now.Before(e.Expires)
}

// Remaining returns how long the entry stays fresh after now, or 0.
func (e *Entry) Remaining(now time.Time) time.Duration {
	if d := e.Expires.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

func (e *Entry) fields() map[string]any {
	return map[string]any{
		fieldBody:        e.Body,
		fieldStatus:      e.Status,
		fieldContentType: e.ContentType,
		fieldStoredAt:    e.StoredAt.UnixMilli(),
		fieldExpires:     e.Expires.UnixMilli(),
	}
}

// entryFromFields rebuilds an entry from a Redis hash. An empty hash is a miss.
func entryFromFields(h map[string]string) (*Entry, error) {
	if len(h) == 0 {
		return nil, ErrCacheMiss
	}

	body, ok := h[fieldBody]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidEntry, fieldBody)
	}
	status, err := strconv.Atoi(h[fieldStatus])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, fieldStatus, err)
	}
	storedAt, err := strconv.ParseInt(h[fieldStoredAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, fieldStoredAt, err)
	}
	expires, err := strconv.ParseInt(h[fieldExpires], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, fieldExpires, err)
	}

	return &Entry{
		Body:        []byte(body),
		Status:      status,
		ContentType: h[fieldContentType],
		StoredAt:    time.UnixMilli(storedAt),
		Expires:     time.UnixMilli(expires),
	}, nil
}
