package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mineralsss/tiktoker/db"
	"github.com/mineralsss/tiktoker/pipeline"
	"github.com/mineralsss/tiktoker/shortener"
	"github.com/mineralsss/tiktoker/testutil"
	"github.com/mineralsss/tiktoker/tiktok"
)

type fakeGate struct {
	settings db.ChannelSettings
	optedOut map[string]bool
	usage    []string
}

func newFakeGate() *fakeGate {
	return &fakeGate{settings: db.ChannelSettings{AutoResolve: true, ReplyInfo: true}, optedOut: map[string]bool{}}
}

func (g *fakeGate) ChannelSettings(ctx context.Context, channel string) (db.ChannelSettings, error) {
	return g.settings, nil
}

func (g *fakeGate) IsOptedOut(ctx context.Context, username string) (bool, error) {
	return g.optedOut[username], nil
}

func (g *fakeGate) SetOptOut(ctx context.Context, username string, optedOut bool) error {
	g.optedOut[username] = optedOut
	return nil
}

func (g *fakeGate) RecordUsage(ctx context.Context, channel, username string, videoID int64, slug string) error {
	g.usage = append(g.usage, username)
	return nil
}

type memStore struct {
	byID  map[int64]*shortener.Entry
	byURI map[string]*shortener.Entry
}

func (m *memStore) GetByVideoID(ctx context.Context, videoID int64) (*shortener.Entry, error) {
	return m.byID[videoID], nil
}

func (m *memStore) GetByURI(ctx context.Context, videoURI string) (*shortener.Entry, error) {
	return m.byURI[videoURI], nil
}

func (m *memStore) SlugExists(ctx context.Context, slug string) (bool, error) { return false, nil }

func (m *memStore) Upsert(ctx context.Context, e *shortener.Entry) error {
	cp := *e
	m.byID[e.VideoID] = &cp
	m.byURI[e.VideoURI] = &cp
	return nil
}

func testResponder(t *testing.T) (*Responder, *fakeGate) {
	t.Helper()
	api := testutil.NewMockTikTokServer(t)
	api.MockAwemeDetail(map[string]any{
		"aweme_id": "7068971038273423621",
		"desc":     "a dance #fyp",
		"video": map[string]any{
			"play_addr": map[string]any{
				"uri":      "v09044g40000c8abcdefg",
				"url_list": []string{"https://cdn.example/a", "https://cdn.example/b", "https://cdn.example/direct.mp4"},
			},
		},
		"text_extra": []map[string]any{{"hashtag_name": "fyp", "type": 1}},
		"author":     map[string]any{"nickname": "Some One", "unique_id": "someone"},
	})
	sh := testutil.NewMockShortenerServer(t, "abc12345")

	gate := newFakeGate()
	r := &Responder{
		Pipeline: &pipeline.Pipeline{
			Resolver:  tiktok.NewResolver(),
			TikTok:    tiktok.NewClient(api.URL, api.URL, 2*time.Second, 2),
			Shortener: &shortener.Service{Store: &memStore{byID: map[int64]*shortener.Entry{}, byURI: map[string]*shortener.Entry{}}, Client: &shortener.Client{BaseURL: sh.URL, Token: "test-token"}},
		},
		Gate:    gate,
		Channel: "somechannel",
		Bot:     "tiktoker_bot",
	}
	return r, gate
}

const linkMessage = "omg https://www.tiktok.com/@someone/video/7068971038273423621"

func TestHandleMessageResolves(t *testing.T) {
	r, gate := testResponder(t)

	reply := r.HandleMessage(context.Background(), "viewer1", linkMessage)
	if reply == "" {
		t.Fatal("HandleMessage() = empty, want reply")
	}
	if !strings.Contains(reply, "https://tiktoker.win/abc12345") {
		t.Errorf("reply %q missing short URL", reply)
	}
	if !strings.Contains(reply, "@viewer1") {
		t.Errorf("reply %q missing mention", reply)
	}
	if len(gate.usage) != 1 || gate.usage[0] != "viewer1" {
		t.Errorf("usage = %v, want one record for viewer1", gate.usage)
	}
}

func TestHandleMessageIgnoresSelf(t *testing.T) {
	r, _ := testResponder(t)
	if reply := r.HandleMessage(context.Background(), "TikToker_Bot", linkMessage); reply != "" {
		t.Errorf("reply to own message = %q, want empty", reply)
	}
}

func TestHandleMessageNoLink(t *testing.T) {
	r, gate := testResponder(t)
	if reply := r.HandleMessage(context.Background(), "viewer1", "just chatting"); reply != "" {
		t.Errorf("reply = %q, want empty for link-free text", reply)
	}
	if len(gate.usage) != 0 {
		t.Error("usage recorded for link-free message")
	}
}

func TestHandleMessageOptedOut(t *testing.T) {
	r, gate := testResponder(t)
	gate.optedOut["viewer1"] = true
	if reply := r.HandleMessage(context.Background(), "viewer1", linkMessage); reply != "" {
		t.Errorf("reply = %q, want empty for opted-out user", reply)
	}
}

func TestHandleMessageChannelDisabled(t *testing.T) {
	r, gate := testResponder(t)
	gate.settings.AutoResolve = false
	if reply := r.HandleMessage(context.Background(), "viewer1", linkMessage); reply != "" {
		t.Errorf("reply = %q, want empty when channel disabled", reply)
	}
}

func TestOptOutCommand(t *testing.T) {
	r, gate := testResponder(t)

	reply := r.HandleMessage(context.Background(), "viewer1", "!tiktoker optout")
	if !strings.Contains(reply, "no longer") {
		t.Errorf("optout reply = %q", reply)
	}
	if !gate.optedOut["viewer1"] {
		t.Error("user not recorded as opted out")
	}

	reply = r.HandleMessage(context.Background(), "viewer1", "!TikToker OptIn")
	if !strings.Contains(reply, "resolved again") {
		t.Errorf("optin reply = %q", reply)
	}
	if gate.optedOut["viewer1"] {
		t.Error("user still opted out after optin")
	}
}

func TestFormatReply(t *testing.T) {
	res := &pipeline.Result{
		Video: &tiktok.Video{
			Author:      tiktok.Author{Nickname: "Some One", Handle: "someone"},
			Description: tiktok.Description{Cleaned: "a dance"},
		},
		ShortURL: "https://tiktoker.win/abc12345",
	}
	got := FormatReply("viewer1", res, true)
	want := "@viewer1 Some One (@someone) - a dance | https://tiktoker.win/abc12345"
	if got != want {
		t.Errorf("FormatReply() = %q, want %q", got, want)
	}

	if got := FormatReply("viewer1", res, false); got != "@viewer1 https://tiktoker.win/abc12345" {
		t.Errorf("FormatReply(withInfo=false) = %q", got)
	}

	res.Degraded = true
	if got := FormatReply("viewer1", res, true); !strings.Contains(got, "may expire") {
		t.Errorf("degraded reply %q missing disclaimer", got)
	}
}

func TestHandleMessageInfoDisabled(t *testing.T) {
	r, gate := testResponder(t)
	gate.settings.ReplyInfo = false

	reply := r.HandleMessage(context.Background(), "viewer1", linkMessage)
	if reply == "" {
		t.Fatal("HandleMessage() = empty, want reply")
	}
	if strings.Contains(reply, "Some One") {
		t.Errorf("reply %q includes author info with reply_info off", reply)
	}
	if !strings.Contains(reply, "https://tiktoker.win/abc12345") {
		t.Errorf("reply %q missing short URL", reply)
	}
}

func TestSlugOf(t *testing.T) {
	if got := slugOf("https://tiktoker.win/abc12345"); got != "abc12345" {
		t.Errorf("slugOf(short) = %q", got)
	}
	if got := slugOf("https://v16.tiktokcdn.com/aweme/v1/play/?video_id=v0904abc"); got != "" {
		t.Errorf("slugOf(direct) = %q, want empty", got)
	}
}
