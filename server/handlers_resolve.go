package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mineralsss/tiktoker/pipeline"
	"github.com/mineralsss/tiktoker/telemetry"
	"github.com/mineralsss/tiktoker/tiktok"
)

// resolveRequest carries the raw text to scan for a video link.
type resolveRequest struct {
	Text string `json:"text"`
}

type resolveResponse struct {
	NoLink   bool          `json:"no_link,omitempty"`
	ShortURL string        `json:"short_url,omitempty"`
	Degraded bool          `json:"degraded,omitempty"`
	Video    *videoPayload `json:"video,omitempty"`
	Music    *musicPayload `json:"music,omitempty"`
}

// videoPayload is the wire view of a resolved video.
type videoPayload struct {
	ID          int64     `json:"id"`
	ShareURL    string    `json:"share_url"`
	DownloadURL string    `json:"download_url"`
	CoverURL    string    `json:"cover_url,omitempty"`
	Created     time.Time `json:"created"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags,omitempty"`
	Author      struct {
		Nickname  string `json:"nickname"`
		Handle    string `json:"handle"`
		URL       string `json:"url"`
		AvatarURL string `json:"avatar_url,omitempty"`
	} `json:"author"`
	Stats struct {
		Plays     int64 `json:"plays"`
		Likes     int64 `json:"likes"`
		Comments  int64 `json:"comments"`
		Shares    int64 `json:"shares"`
		Downloads int64 `json:"downloads"`
	} `json:"stats"`
}

type musicPayload struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author,omitempty"`
	WebsiteURL string `json:"website_url,omitempty"`
	VideoCount int64  `json:"video_count,omitempty"`
}

// HandleResolve runs the resolution pipeline on the posted text and returns
// the short URL plus video metadata.
//
// Status codes: 200 on success or when no link is present (no_link set),
// 404 when the video is gone upstream, 422 when a short link cannot be
// resolved to a video, 504 on upstream timeout.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		http.Error(w, "invalid json: expected {\"text\": ...}", http.StatusBadRequest)
		return
	}

	res, err := h.pipeline.Run(r.Context(), req.Text)
	if err != nil {
		status := resolveErrorStatus(err)
		telemetry.LoggerWithCorr(r.Context()).Warn("resolve request failed",
			slog.Int("status", status),
			slog.String("class", pipeline.ClassifyResolveError(err).String()),
			slog.Any("error", err),
			slog.String("component", "http"))
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if res == nil {
		_ = json.NewEncoder(w).Encode(resolveResponse{NoLink: true})
		return
	}
	_ = json.NewEncoder(w).Encode(buildResolveResponse(res))
}

func resolveErrorStatus(err error) int {
	var notFound *tiktok.NotFoundError
	var redirect *tiktok.RedirectError
	var timeout *tiktok.TimeoutError
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &redirect):
		return http.StatusUnprocessableEntity
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func buildResolveResponse(res *pipeline.Result) resolveResponse {
	v := res.Video
	vp := &videoPayload{
		ID:          v.ID,
		ShareURL:    v.ShareURL,
		DownloadURL: v.DownloadURL,
		CoverURL:    v.CoverURL,
		Created:     v.Created,
		Description: v.Description.Cleaned,
		Tags:        v.Description.Tags,
	}
	vp.Author.Nickname = v.Author.Nickname
	vp.Author.Handle = v.Author.Handle
	vp.Author.URL = v.Author.URL
	vp.Author.AvatarURL = v.Author.AvatarURL
	vp.Stats.Plays = v.Statistics.PlayCount
	vp.Stats.Likes = v.Statistics.LikeCount
	vp.Stats.Comments = v.Statistics.CommentCount
	vp.Stats.Shares = v.Statistics.ShareCount
	vp.Stats.Downloads = v.Statistics.DownloadCount

	out := resolveResponse{
		ShortURL: res.ShortURL,
		Degraded: res.Degraded,
		Video:    vp,
	}
	if v.Music != nil {
		out.Music = &musicPayload{
			ID:         v.Music.ID,
			Title:      v.Music.Title,
			Author:     v.Music.Author,
			WebsiteURL: v.Music.WebsiteURL,
		}
		if res.Music != nil {
			out.Music.VideoCount = res.Music.VideoCount
		}
	}
	return out
}
