// Package cache provides a Redis-backed response cache for the Data Garden client.
//
// Regional statistics change slowly, so the client can keep raw responses in
// Redis and serve repeated identical requests without a round trip.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Method:   http.MethodPost,
//		Endpoint: "/api/country/netherlands/regional_data/",
//		Payload:  body,
//		Scope:    "me@example.com",
//	}
//
//	entry, err := manager.Lookup(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then:
//		entry, _ = cache.EntryFromResponse(resp, cache.DefaultTTL, time.Now())
//		_ = manager.Store(ctx, key, entry)
//	}
//
//	// drop everything cached for the account
//	n, err := manager.Clear(ctx, "me@example.com")
//
// # Storage
//
// Each response is one Redis hash (body, status, content type, store and
// expiry times) with a PEXPIREAT matching the response's Expires header or
// the fallback TTL.
//
// # Keys
//
// Keys are deterministic: query parameters are sorted and request bodies
// enter the key as a SHA-256 digest, so the same request always maps to the
// same key. Scope separates accounts sharing one Redis and is the unit Clear
// works on.
//
// # Metrics
//
//   - datagarden_cache_lookups_total{result} - hit, miss or stale lookups
//   - datagarden_cache_stored_bytes_total - Body bytes written
//   - datagarden_cache_cleared_entries_total - Entries removed by Clear
//   - datagarden_cache_errors_total{operation} - Cache operation errors
package cache
