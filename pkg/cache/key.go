package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix starts every cache key.
const KeyPrefix = "datagarden"

// CacheKey identifies a cached Data Garden response.
type CacheKey struct {
	// Method is the HTTP method (GET or POST).
	Method string

	// Endpoint is the URL path (e.g. "/api/country/netherlands/regional_data/").
	Endpoint string

	// QueryParams are the query parameters (e.g. {"include_statistics": "true"}).
	QueryParams url.Values

	// Payload is the encoded request body; only its digest enters the key.
	Payload []byte

	// Scope separates responses fetched by different accounts.
	Scope string
}

// String generates a deterministic cache key string.
// Format: datagarden:METHOD:endpoint:query1=val1:body=digest:scope=user
//
// Example:
//
//	datagarden:POST:api/country/netherlands/regional_data:body=1f0c...:scope=me@example.com
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	if k.Method != "" {
		parts = append(parts, strings.ToUpper(k.Method))
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	if len(k.Payload) > 0 {
		sum := sha256.Sum256(k.Payload)
		parts = append(parts, "body="+hex.EncodeToString(sum[:16]))
	}

	if k.Scope != "" {
		parts = append(parts, "scope="+k.Scope)
	}

	return strings.Join(parts, ":")
}
