package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mineralsss/tiktoker/db"
)

// HandleConfig handles GET and PUT requests for safe configuration keys.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	// Only allow GET/PUT for known keys; secrets must not be exposed here.
	safeKeys := map[string]bool{
		"LOG_LEVEL":        true,
		"LOG_FORMAT":       true,
		"UPSTREAM_TIMEOUT": true,
		"CDN_INDEX":        true,
		"SHORTLINK_TTL":    true,
		"SLUG_LENGTH":      true,
		"PUBLIC_BASE":      true,
	}
	switch r.Method {
	case http.MethodGet:
		// Return safe keys with values from kv override if present, else env
		out := map[string]string{}
		for k := range safeKeys {
			v, err := db.GetKV(r.Context(), h.db, "cfg:"+k)
			if err != nil {
				slog.Warn("config read failed", slog.String("key", k), slog.Any("err", err))
			}
			if v == "" {
				v = os.Getenv(k)
			}
			if v != "" {
				out[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPut:
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		for k, v := range body {
			if !safeKeys[k] {
				continue
			}
			if err := db.SetKV(r.Context(), h.db, "cfg:"+k, strings.TrimSpace(v)); err != nil {
				slog.Error("failed to update config", slog.String("key", k), slog.Any("err", err))
				http.Error(w, "failed to update config", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleChannelConfig flips the per-channel switches. GET ?channel=name
// returns the current state; PUT {"channel","auto_resolve","reply_info"}
// updates it.
func (h *Handlers) HandleChannelConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			http.Error(w, "missing channel", http.StatusBadRequest)
			return
		}
		settings, err := db.GetChannelSettings(r.Context(), h.db, channel)
		if err != nil {
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"channel":      channel,
			"auto_resolve": settings.AutoResolve,
			"reply_info":   settings.ReplyInfo,
		})
	case http.MethodPut:
		var body struct {
			Channel     string `json:"channel"`
			AutoResolve *bool  `json:"auto_resolve"`
			ReplyInfo   *bool  `json:"reply_info"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Channel == "" {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		settings, err := db.GetChannelSettings(r.Context(), h.db, body.Channel)
		if err != nil {
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		if body.AutoResolve != nil {
			settings.AutoResolve = *body.AutoResolve
		}
		if body.ReplyInfo != nil {
			settings.ReplyInfo = *body.ReplyInfo
		}
		if err := db.SetChannelSettings(r.Context(), h.db, body.Channel, settings); err != nil {
			slog.Error("failed to update channel config", slog.String("channel", body.Channel), slog.Any("err", err))
			http.Error(w, "failed to update channel config", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleStatus returns a lightweight status summary: stored link counts and
// recent usage.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := db.GetStats(r.Context(), h.db)
	if err != nil {
		slog.Error("status query failed", slog.Any("err", err))
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"uptime": time.Since(startTime).Round(time.Second).String(),
		"stats":  stats,
	})
}
