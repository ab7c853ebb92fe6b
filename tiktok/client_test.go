package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func detailPayload(urlList []string) map[string]any {
	return map[string]any{
		"status_code": 0,
		"aweme_detail": map[string]any{
			"aweme_id":    "7068971038273423621",
			"desc":        "cool dance #fyp #viral",
			"create_time": 1645000000,
			"share_url":   "https://www.tiktok.com/@someone/video/7068971038273423621.html?sender_device=pc&u_code=xyz",
			"video": map[string]any{
				"play_addr": map[string]any{
					"uri":      "v09044g40000c8abcdefg",
					"url_list": urlList,
				},
				"cover": map[string]any{"url_list": []string{"https://cdn.example/cover.jpg"}},
			},
			"statistics": map[string]any{
				"play_count":     1000,
				"digg_count":     200,
				"comment_count":  30,
				"share_count":    4,
				"download_count": 5,
			},
			"text_extra": []map[string]any{
				{"hashtag_name": "fyp", "type": 1},
				{"hashtag_name": "viral", "type": 1},
			},
			"music": map[string]any{
				"id":           7000000000000000000,
				"title":        "original sound",
				"author":       "someone",
				"owner_handle": "someone",
				"play_url":     map[string]any{"url_list": []string{"https://cdn.example/sound.mp3"}},
			},
			"author": map[string]any{
				"nickname":     "Some One",
				"unique_id":    "someone",
				"avatar_thumb": map[string]any{"url_list": []string{"https://cdn.example/avatar.jpg"}},
			},
		},
	}
}

func newDetailServer(t *testing.T, payload any, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/aweme/v1/aweme/detail/" {
			t.Errorf("path = %q, want /aweme/v1/aweme/detail/", r.URL.Path)
		}
		if r.URL.Query().Get("aweme_id") == "" {
			t.Error("missing aweme_id query param")
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchVideoMapsDetail(t *testing.T) {
	urls := []string{"https://cdn0.example/a", "https://cdn1.example/a", "https://cdn2.example/a"}
	server := newDetailServer(t, detailPayload(urls), http.StatusOK)

	c := NewClient(server.URL, server.URL, 5*time.Second, 2)
	v, err := c.FetchVideo(context.Background(), 7068971038273423621)
	if err != nil {
		t.Fatalf("FetchVideo() error = %v", err)
	}

	if v.ID != 7068971038273423621 {
		t.Errorf("ID = %d", v.ID)
	}
	if v.DownloadURL != "https://cdn2.example/a" {
		t.Errorf("DownloadURL = %q, want ordinal 2 entry", v.DownloadURL)
	}
	if v.Degraded {
		t.Error("Degraded = true, want false with a full CDN list")
	}
	if v.VideoURI != "v09044g40000c8abcdefg" {
		t.Errorf("VideoURI = %q", v.VideoURI)
	}
	if v.ShareURL != "https://www.tiktok.com/@someone/video/7068971038273423621" {
		t.Errorf("ShareURL = %q, want .html suffix stripped", v.ShareURL)
	}
	if !v.Created.Equal(time.Unix(1645000000, 0).UTC()) {
		t.Errorf("Created = %v", v.Created)
	}
	if v.Statistics.LikeCount != 200 || v.Statistics.PlayCount != 1000 || v.Statistics.DownloadCount != 5 {
		t.Errorf("Statistics = %+v", v.Statistics)
	}
	if v.Author.URL != "https://www.tiktok.com/@someone" {
		t.Errorf("Author.URL = %q", v.Author.URL)
	}
	if v.Music == nil || v.Music.PlayURL != "https://cdn.example/sound.mp3" {
		t.Errorf("Music = %+v", v.Music)
	}
	if v.Music.WebsiteURL != "https://www.tiktok.com/music/id-7000000000000000000" {
		t.Errorf("Music.WebsiteURL = %q", v.Music.WebsiteURL)
	}
}

func TestFetchVideoHashtagStripping(t *testing.T) {
	server := newDetailServer(t, detailPayload([]string{"a", "b", "c"}), http.StatusOK)
	c := NewClient(server.URL, server.URL, 5*time.Second, 2)
	v, err := c.FetchVideo(context.Background(), 1)
	if err != nil {
		t.Fatalf("FetchVideo() error = %v", err)
	}
	if v.Description.Cleaned != "cool dance" {
		t.Errorf("Cleaned = %q, want %q", v.Description.Cleaned, "cool dance")
	}
	if len(v.Description.Tags) != 2 || v.Description.Tags[0] != "fyp" || v.Description.Tags[1] != "viral" {
		t.Errorf("Tags = %v, want [fyp viral] in upstream order", v.Description.Tags)
	}
	if v.Description.Raw != "cool dance #fyp #viral" {
		t.Errorf("Raw = %q", v.Description.Raw)
	}
}

func TestFetchVideoShortCDNListFallsBack(t *testing.T) {
	server := newDetailServer(t, detailPayload([]string{"https://cdn0.example/a", "https://cdn1.example/a"}), http.StatusOK)
	c := NewClient(server.URL, server.URL, 5*time.Second, 2)
	v, err := c.FetchVideo(context.Background(), 1)
	if err != nil {
		t.Fatalf("FetchVideo() error = %v", err)
	}
	if v.DownloadURL != "https://cdn1.example/a" {
		t.Errorf("DownloadURL = %q, want last available entry", v.DownloadURL)
	}
	if !v.Degraded {
		t.Error("Degraded = false, want true when falling back")
	}
}

func TestFetchVideoEmptyCDNList(t *testing.T) {
	server := newDetailServer(t, detailPayload(nil), http.StatusOK)
	c := NewClient(server.URL, server.URL, 5*time.Second, 2)
	if _, err := c.FetchVideo(context.Background(), 1); err == nil {
		t.Error("FetchVideo() with empty url list expected error")
	}
}

func TestFetchVideoNotFound(t *testing.T) {
	payloads := []any{
		map[string]any{"status_code": 2053},
		map[string]any{"status_code": 0}, // detail absent
	}
	for _, payload := range payloads {
		server := newDetailServer(t, payload, http.StatusOK)
		c := NewClient(server.URL, server.URL, 5*time.Second, 2)
		_, err := c.FetchVideo(context.Background(), 42)
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("FetchVideo() error = %v, want *NotFoundError", err)
		}
		if nf.VideoID != 42 {
			t.Errorf("NotFoundError.VideoID = %d, want 42", nf.VideoID)
		}
	}
}

func TestFetchVideoTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := NewClient(server.URL, server.URL, 50*time.Millisecond, 2)
	_, err := c.FetchVideo(context.Background(), 1)
	var terr *TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("FetchVideo() error = %v, want *TimeoutError", err)
	}
}

func TestFetchMusicDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/music/detail/" {
			t.Errorf("path = %q, want /music/detail/", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != browserUserAgent {
			t.Error("missing browser user-agent header")
		}
		if r.URL.Query().Get("language") != "en" {
			t.Errorf("language = %q, want en", r.URL.Query().Get("language"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"statusCode": 0,
			"musicInfo": map[string]any{
				"music": map[string]any{"title": "original sound", "authorName": "someone"},
				"stats": map[string]any{"videoCount": 12345},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, server.URL, 5*time.Second, 2)
	stats, err := c.FetchMusicDetail(context.Background(), 7000000000000000000)
	if err != nil {
		t.Fatalf("FetchMusicDetail() error = %v", err)
	}
	if stats == nil || stats.VideoCount != 12345 || stats.Title != "original sound" {
		t.Errorf("FetchMusicDetail() = %+v", stats)
	}
}

func TestFetchMusicDetailSoftFail(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload any
	}{
		{"non-200", http.StatusNotFound, nil},
		{"sentinel", http.StatusOK, map[string]any{"statusCode": 10218}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.payload != nil {
					_ = json.NewEncoder(w).Encode(tt.payload)
				}
			}))
			defer server.Close()

			c := NewClient(server.URL, server.URL, 5*time.Second, 2)
			stats, err := c.FetchMusicDetail(context.Background(), 1)
			if err != nil {
				t.Fatalf("FetchMusicDetail() error = %v, want soft nil", err)
			}
			if stats != nil {
				t.Errorf("FetchMusicDetail() = %+v, want nil", stats)
			}
		})
	}
}
