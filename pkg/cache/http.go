package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when no expires header is present
	DefaultTTL = 15 * time.Minute

	// HeaderCache marks responses served from the cache.
	HeaderCache = "X-Datagarden-Cache"

	// HeaderAge is the age of a cached response in whole seconds.
	HeaderAge = "Age"
)

// EntryFromResponse reads resp into an Entry stored at now. The expiry comes
// from the Expires header, or now + fallbackTTL without one. The response
// body is restored for the caller.
func EntryFromResponse(resp *http.Response, fallbackTTL time.Duration, now time.Time) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &Entry{
		Body:        body,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		StoredAt:    now,
		Expires:     expiresAt(resp.Header, fallbackTTL, now),
	}, nil
}

// Response rebuilds the HTTP response served from e at now.
func (e *Entry) Response(now time.Time) *http.Response {
	headers := http.Header{}
	if e.ContentType != "" {
		headers.Set("Content-Type", e.ContentType)
	}
	headers.Set(HeaderCache, "hit")
	headers.Set(HeaderAge, fmt.Sprintf("%d", int64(e.Age(now)/time.Second)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        headers,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
	}
}

// expiresAt returns the Expires header time, or now + fallbackTTL when the
// header is missing or unparsable. A past Expires yields now.
func expiresAt(headers http.Header, fallbackTTL time.Duration, now time.Time) time.Time {
	if fallbackTTL <= 0 {
		fallbackTTL = DefaultTTL
	}

	expires, err := http.ParseTime(headers.Get("Expires"))
	if err != nil {
		return now.Add(fallbackTTL)
	}
	if expires.Before(now) {
		return now
	}
	return expires
}
