// Package testutil provides testing utilities for the Data Garden client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Credentials accepted by the mock token endpoint.
const (
	TestEmail    = "tester@example.com"
	TestPassword = "secret"
	TestToken    = "test-access-token"
)

// MockAPI is a configurable mock Data Garden server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requests    map[string]int
	payloads    map[string][]map[string]any
	tokenIssued int
	lastHeader  http.Header
}

// NewMockAPI starts a mock server. Every path except the token endpoint
// requires the bearer token handed out by the token endpoint.
func NewMockAPI() *MockAPI {
	m := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string]int),
		payloads: make(map[string][]map[string]any),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user/token/" {
			m.tokenHandler(w, r)
			return
		}

		if r.Header.Get("Authorization") != "Bearer "+TestToken {
			WriteJSON(w, http.StatusUnauthorized, map[string]any{"detail": "not authenticated"})
			return
		}

		var payload map[string]any
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			r.Body.Close()
			if len(body) > 0 {
				_ = json.Unmarshal(body, &payload)
			}
		}

		m.mu.Lock()
		m.requests[r.URL.Path]++
		m.lastHeader = r.Header.Clone()
		if payload != nil {
			m.payloads[r.URL.Path] = append(m.payloads[r.URL.Path], payload)
		}
		handler, exists := m.handlers[r.URL.Path]
		m.mu.Unlock()

		if !exists {
			WriteJSON(w, http.StatusNotFound, map[string]any{"detail": "not found"})
			return
		}
		ctx := withPayload(r.Context(), payload)
		handler(w, r.WithContext(ctx))
	}))

	return m
}

func (m *MockAPI) tokenHandler(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email != TestEmail || creds.Password != TestPassword {
		WriteJSON(w, http.StatusUnauthorized, map[string]any{"detail": "invalid credentials"})
		return
	}
	m.mu.Lock()
	m.tokenIssued++
	m.mu.Unlock()
	WriteJSON(w, http.StatusOK, map[string]any{"access": TestToken, "refresh": "test-refresh-token"})
}

// URL returns the mock server base URL with a trailing slash.
func (m *MockAPI) URL() string {
	return m.server.URL + "/"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetJSON configures a fixed JSON response for a path.
func (m *MockAPI) SetJSON(path string, status int, body any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// SetListPages serves results split over pages linked by absolute "next"
// URLs, the way list endpoints paginate.
func (m *MockAPI) SetListPages(path string, pages ...[]map[string]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if n < 1 {
			n = 1
		}
		if n > len(pages) {
			WriteJSON(w, http.StatusNotFound, map[string]any{"detail": "invalid page"})
			return
		}
		var next any
		if n < len(pages) {
			next = fmt.Sprintf("%s%s?page=%d", m.server.URL, path, n+1)
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"count":   len(pages),
			"next":    next,
			"results": pages[n-1],
		})
	})
}

// SetRegionalDataPages serves regional data query pages. The first page is
// returned for a payload without pagination; later pages are selected by
// the payload's pagination.page cursor ("2", "3", ...).
func (m *MockAPI) SetRegionalDataPages(path string, pages ...[]map[string]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		n := 1
		if p, ok := payloadFrom(r.Context())["pagination"].(map[string]any); ok {
			if cursor, ok := p["page"].(string); ok {
				n, _ = strconv.Atoi(cursor)
			}
		}
		if n < 1 || n > len(pages) {
			WriteJSON(w, http.StatusNotFound, map[string]any{"detail": "invalid page"})
			return
		}
		var next any
		if n < len(pages) {
			next = strconv.Itoa(n + 1)
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"data_by_region": pages[n-1],
			"pagination":     map[string]any{"next_page": next},
		})
	})
}

// RequestCount returns the number of authenticated requests made to path.
func (m *MockAPI) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[path]
}

// TotalRequests returns the number of authenticated requests to all paths.
func (m *MockAPI) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

// TokensIssued returns how often the token endpoint handed out a token.
func (m *MockAPI) TokensIssued() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokenIssued
}

// Payloads returns the decoded POST payloads received on path, in order.
func (m *MockAPI) Payloads(path string) []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]map[string]any(nil), m.payloads[path]...)
}

// LastHeader returns the headers of the latest authenticated request.
func (m *MockAPI) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader.Clone()
}

// WriteJSON writes body as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// RegionData builds one data_by_region entry for a country.
func RegionData(name, isoCC2 string, objects ...map[string]any) map[string]any {
	return map[string]any{
		"region_name":             name,
		"region_type":             "country",
		"un_region_code":          nil,
		"iso_cc_2":                isoCC2,
		"local_region_code":       strings.ToLower(isoCC2),
		"local_region_code_type":  "iso_cc_2",
		"parent_region_code":      "150",
		"parent_region_code_type": "un_region_code",
		"parent_region_type":      "continent",
		"region_level":            0,
		"data_objects_for_region": objects,
	}
}

// DataObject builds one data_objects_for_region entry.
func DataObject(dataType, source, period, periodType string, data map[string]any) map[string]any {
	return map[string]any{
		"data_type":   dataType,
		"source_name": source,
		"period":      period,
		"period_type": periodType,
		"data":        data,
	}
}
