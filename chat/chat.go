package chat

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/mineralsss/tiktoker/config"
	"github.com/mineralsss/tiktoker/db"
	"github.com/mineralsss/tiktoker/pipeline"
	"github.com/mineralsss/tiktoker/tiktok"
)

// resolveTimeout bounds one message's pipeline run; chat replies past this
// point would land long after the conversation moved on.
const resolveTimeout = 15 * time.Second

// Gate answers the per-channel and per-user questions the responder asks
// before and after resolving. *sql.DB deployments use DBGate.
type Gate interface {
	ChannelSettings(ctx context.Context, channel string) (db.ChannelSettings, error)
	IsOptedOut(ctx context.Context, username string) (bool, error)
	SetOptOut(ctx context.Context, username string, optedOut bool) error
	RecordUsage(ctx context.Context, channel, username string, videoID int64, slug string) error
}

// DBGate implements Gate on the channel_config, opted_out, and usage_events
// tables.
type DBGate struct{ DB *sql.DB }

func (g *DBGate) ChannelSettings(ctx context.Context, channel string) (db.ChannelSettings, error) {
	return db.GetChannelSettings(ctx, g.DB, channel)
}

func (g *DBGate) IsOptedOut(ctx context.Context, username string) (bool, error) {
	return db.IsOptedOut(ctx, g.DB, username)
}

func (g *DBGate) SetOptOut(ctx context.Context, username string, optedOut bool) error {
	return db.SetOptOut(ctx, g.DB, username, optedOut)
}

func (g *DBGate) RecordUsage(ctx context.Context, channel, username string, videoID int64, slug string) error {
	return db.RecordUsage(ctx, g.DB, channel, username, videoID, slug)
}

// Responder resolves TikTok links posted in a Twitch channel and replies
// with the short URL.
type Responder struct {
	Pipeline *pipeline.Pipeline
	Gate     Gate
	Channel  string
	Bot      string
}

// Start connects the responder to Twitch IRC and blocks until ctx is done.
func Start(ctx context.Context, dbx *sql.DB, cfg *config.Config, p *pipeline.Pipeline) {
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Info("twitch creds not set; skipping chat responder", slog.Any("reason", err))
		return
	}
	r := &Responder{
		Pipeline: p,
		Gate:     &DBGate{DB: dbx},
		Channel:  cfg.TwitchChannel,
		Bot:      cfg.TwitchBotUsername,
	}
	client := twitch.NewClient(cfg.TwitchBotUsername, cfg.TwitchOAuthToken)

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		reply := r.HandleMessage(ctx, msg.User.Name, msg.Message)
		if reply != "" {
			client.Say(r.Channel, reply)
		}
	})

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		client.Disconnect()
		close(done)
	}()

	client.Join(r.Channel)
	if err := client.Connect(); err != nil {
		slog.Error("twitch chat connect error", slog.Any("err", err))
	}
	<-done
}

// HandleMessage processes one chat line and returns the reply to send, or
// empty string when the message needs no response.
func (r *Responder) HandleMessage(ctx context.Context, username, text string) string {
	if strings.EqualFold(username, r.Bot) {
		return ""
	}

	if reply, handled := r.handleCommand(ctx, username, text); handled {
		return reply
	}

	if tiktok.Classify(text) == nil {
		return ""
	}

	optedOut, err := r.Gate.IsOptedOut(ctx, username)
	if err != nil {
		slog.Warn("opt-out lookup failed", slog.Any("err", err), slog.String("component", "chat"))
		return ""
	}
	if optedOut {
		return ""
	}

	settings, err := r.Gate.ChannelSettings(ctx, r.Channel)
	if err != nil {
		slog.Warn("channel config lookup failed", slog.Any("err", err), slog.String("component", "chat"))
		return ""
	}
	if !settings.AutoResolve {
		return ""
	}

	rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	res, err := r.Pipeline.Run(rctx, text)
	if err != nil {
		slog.Warn("resolve failed",
			slog.String("user", username),
			slog.String("class", pipeline.ClassifyResolveError(err).String()),
			slog.Any("err", err),
			slog.String("component", "chat"))
		return ""
	}
	if res == nil {
		return ""
	}

	if err := r.Gate.RecordUsage(ctx, r.Channel, username, res.Video.ID, slugOf(res.ShortURL)); err != nil {
		slog.Warn("usage record failed", slog.Any("err", err), slog.String("component", "chat"))
	}
	return FormatReply(username, res, settings.ReplyInfo)
}

func (r *Responder) handleCommand(ctx context.Context, username, text string) (string, bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) != 2 || fields[0] != "!tiktoker" {
		return "", false
	}
	switch fields[1] {
	case "optout":
		if err := r.Gate.SetOptOut(ctx, username, true); err != nil {
			slog.Warn("opt-out failed", slog.Any("err", err), slog.String("component", "chat"))
			return "", true
		}
		return fmt.Sprintf("@%s your links will no longer be resolved", username), true
	case "optin":
		if err := r.Gate.SetOptOut(ctx, username, false); err != nil {
			slog.Warn("opt-in failed", slog.Any("err", err), slog.String("component", "chat"))
			return "", true
		}
		return fmt.Sprintf("@%s your links will be resolved again", username), true
	}
	return "", false
}

// FormatReply renders the single-line chat reply for a resolved video. When
// withInfo is false the author and caption are left out and only the short
// URL is posted.
func FormatReply(username string, res *pipeline.Result, withInfo bool) string {
	v := res.Video
	var b strings.Builder
	fmt.Fprintf(&b, "@%s", username)
	if withInfo {
		fmt.Fprintf(&b, " %s (@%s)", v.Author.Nickname, v.Author.Handle)
		if v.Description.Cleaned != "" {
			fmt.Fprintf(&b, " - %s", truncate(v.Description.Cleaned, 80))
		}
		b.WriteString(" |")
	}
	fmt.Fprintf(&b, " %s", res.ShortURL)
	if res.Degraded {
		b.WriteString(" (direct link, may expire)")
	}
	return b.String()
}

// slugOf pulls the path token out of a short URL for usage accounting; a
// degraded direct URL yields empty.
func slugOf(shortURL string) string {
	i := strings.LastIndex(shortURL, "/")
	if i < 0 || strings.Contains(shortURL, "?") {
		return ""
	}
	slug := shortURL[i+1:]
	if len(slug) > 16 || strings.Contains(slug, ".") {
		return ""
	}
	return slug
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "…"
}
