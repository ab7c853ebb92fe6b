package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockTikTokServer creates a test server that mocks the upstream video API.
type MockTikTokServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTikTokServer creates a new mock video API server.
func NewMockTikTokServer(t *testing.T) *MockTikTokServer {
	t.Helper()
	m := &MockTikTokServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockAwemeDetail adds a handler for the aweme detail endpoint returning the
// given detail object with status_code 0.
func (m *MockTikTokServer) MockAwemeDetail(detail map[string]any) {
	m.Handlers["/aweme/v1/aweme/detail/"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"status_code":  0,
			"aweme_detail": detail,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockAwemeNotFound makes the detail endpoint report a missing video.
func (m *MockTikTokServer) MockAwemeNotFound() {
	m.Handlers["/aweme/v1/aweme/detail/"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{"status_code": 2053}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockMusicDetail adds a handler for the music detail endpoint.
func (m *MockTikTokServer) MockMusicDetail(musicInfo map[string]any) {
	m.Handlers["/music/detail/"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"statusCode": 0,
			"musicInfo":  musicInfo,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockRedirect adds a handler that answers a short-link path with a redirect
// to the given location.
func (m *MockTikTokServer) MockRedirect(path, location string) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", location)
		w.WriteHeader(http.StatusMovedPermanently)
	}
}

// MockShortenerServer mocks the upstream shortening service.
type MockShortenerServer struct {
	*httptest.Server
	Calls int
	Slug  string
	Fail  bool
}

// NewMockShortenerServer creates a shortener mock returning the given slug.
func NewMockShortenerServer(t *testing.T, slug string) *MockShortenerServer {
	t.Helper()
	m := &MockShortenerServer{Slug: slug}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Calls++
		if m.Fail {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck // test mock response
			"slug":      m.Slug,
			"shortened": "https://tiktoker.win/" + m.Slug,
		})
	}))
	t.Cleanup(m.Close)
	return m
}
