package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Sent on music detail requests; the endpoint rejects non-browser agents.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/98.0.4758.102 Safari/537.36"

// musicNotFoundCode is the upstream's in-band "music not found" sentinel,
// delivered with HTTP 200.
const musicNotFoundCode = 10218

// Client fetches video metadata from the TikTok detail API and optional
// audio-track stats from the music detail endpoint.
type Client struct {
	BaseURL      string // detail API origin, e.g. https://api2.musical.ly
	MusicBaseURL string // music detail origin, e.g. https://www.tiktok.com
	HTTPClient   *http.Client
	// CDNIndex is the preferred ordinal in play_addr.url_list. NewClient
	// sets it from configuration; the zero value selects ordinal 0.
	CDNIndex int
}

// NewClient builds a Client with redirects disabled and a bounded timeout,
// which is how every upstream call here must behave: a slow upstream fails
// fast instead of hanging the pipeline.
func NewClient(baseURL, musicBaseURL string, timeout time.Duration, cdnIndex int) *Client {
	return &Client{
		BaseURL:      baseURL,
		MusicBaseURL: musicBaseURL,
		CDNIndex:     cdnIndex,
		HTTPClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Video is the canonical video record. Constructed fresh on every fetch and
// never mutated afterwards.
type Video struct {
	ID          int64
	DownloadURL string
	// Degraded is set when the CDN list had fewer entries than the
	// preferred ordinal and the last entry was used instead.
	Degraded    bool
	VideoURI    string
	CoverURL    string
	ShareURL    string
	Created     time.Time
	Statistics  Statistics
	Author      Author
	Music       *Music
	Description Description
}

// Statistics carries the engagement counters reported by the upstream.
type Statistics struct {
	PlayCount     int64
	LikeCount     int64
	CommentCount  int64
	ShareCount    int64
	DownloadCount int64
}

type Author struct {
	Nickname  string
	Handle    string
	URL       string
	AvatarURL string
}

// Music is the embedded audio-track reference on a video.
type Music struct {
	ID            int64
	Title         string
	PlayURL       string
	WebsiteURL    string
	CoverURL      string
	Author        string
	OwnerNickname string
	OwnerHandle   string
	OwnerURL      string
	AvatarURL     string
}

// Description holds the raw caption, the caption with hashtag tokens
// stripped, and the hashtag names in upstream-reported order.
type Description struct {
	Raw     string
	Cleaned string
	Tags    []string
}

// MusicStats is the optional payload of the secondary music detail call.
type MusicStats struct {
	ID         int64
	Title      string
	AuthorName string
	VideoCount int64
}

type urlList struct {
	URI     string   `json:"uri"`
	URLList []string `json:"url_list"`
}

type textExtra struct {
	HashtagName string `json:"hashtag_name"`
	Type        int    `json:"type"`
}

type awemeDetailResponse struct {
	StatusCode  int          `json:"status_code"`
	AwemeDetail *awemeDetail `json:"aweme_detail"`
}

type awemeDetail struct {
	AwemeID    string `json:"aweme_id"`
	Desc       string `json:"desc"`
	CreateTime int64  `json:"create_time"`
	ShareURL   string `json:"share_url"`
	Video      struct {
		PlayAddr    urlList `json:"play_addr"`
		Cover       urlList `json:"cover"`
		OriginCover urlList `json:"origin_cover"`
	} `json:"video"`
	Statistics struct {
		PlayCount     int64 `json:"play_count"`
		DiggCount     int64 `json:"digg_count"`
		CommentCount  int64 `json:"comment_count"`
		ShareCount    int64 `json:"share_count"`
		DownloadCount int64 `json:"download_count"`
	} `json:"statistics"`
	TextExtra []textExtra `json:"text_extra"`
	Music     *struct {
		ID            int64   `json:"id"`
		Title         string  `json:"title"`
		Author        string  `json:"author"`
		OwnerNickname string  `json:"owner_nickname"`
		OwnerHandle   string  `json:"owner_handle"`
		PlayURL       urlList `json:"play_url"`
		CoverMedium   urlList `json:"cover_medium"`
		AvatarThumb   urlList `json:"avatar_thumb"`
	} `json:"music"`
	Author struct {
		Nickname    string  `json:"nickname"`
		UniqueID    string  `json:"unique_id"`
		AvatarThumb urlList `json:"avatar_thumb"`
	} `json:"author"`
}

// FetchVideo retrieves and maps the detail payload for a video id.
// Returns *NotFoundError when the upstream reports the video absent.
func (c *Client) FetchVideo(ctx context.Context, videoID int64) (*Video, error) {
	u := fmt.Sprintf("%s/aweme/v1/aweme/detail/?aweme_id=%d", strings.TrimRight(c.BaseURL, "/"), videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, wrapTimeout("metadata fetch", err)
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detail request failed: %s", resp.Status)
	}
	var body awemeDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode detail response: %w", err)
	}
	if body.StatusCode != 0 || body.AwemeDetail == nil {
		return nil, &NotFoundError{VideoID: videoID}
	}
	return c.mapVideo(videoID, body.AwemeDetail)
}

func (c *Client) mapVideo(videoID int64, d *awemeDetail) (*Video, error) {
	id := videoID
	if d.AwemeID != "" {
		if parsed, err := strconv.ParseInt(d.AwemeID, 10, 64); err == nil {
			id = parsed
		}
	}

	download, degraded, err := selectCDNURL(d.Video.PlayAddr.URLList, c.CDNIndex)
	if err != nil {
		return nil, fmt.Errorf("video %d: %w", id, err)
	}

	v := &Video{
		ID:          id,
		DownloadURL: download,
		Degraded:    degraded,
		VideoURI:    d.Video.PlayAddr.URI,
		CoverURL:    first(d.Video.Cover.URLList),
		ShareURL:    canonicalShareURL(d.ShareURL),
		Created:     time.Unix(d.CreateTime, 0).UTC(),
		Statistics: Statistics{
			PlayCount:     d.Statistics.PlayCount,
			LikeCount:     d.Statistics.DiggCount,
			CommentCount:  d.Statistics.CommentCount,
			ShareCount:    d.Statistics.ShareCount,
			DownloadCount: d.Statistics.DownloadCount,
		},
		Author: Author{
			Nickname:  d.Author.Nickname,
			Handle:    d.Author.UniqueID,
			URL:       "https://www.tiktok.com/@" + d.Author.UniqueID,
			AvatarURL: first(d.Author.AvatarThumb.URLList),
		},
		Description: describeVideo(d.Desc, d.TextExtra),
	}

	if m := d.Music; m != nil {
		v.Music = &Music{
			ID:            m.ID,
			Title:         m.Title,
			PlayURL:       first(m.PlayURL.URLList),
			WebsiteURL:    fmt.Sprintf("https://www.tiktok.com/music/id-%d", m.ID),
			CoverURL:      first(m.CoverMedium.URLList),
			Author:        m.Author,
			OwnerNickname: m.OwnerNickname,
			OwnerHandle:   m.OwnerHandle,
			OwnerURL:      "https://www.tiktok.com/@" + m.OwnerHandle,
			AvatarURL:     first(m.AvatarThumb.URLList),
		}
	}
	return v, nil
}

// selectCDNURL picks the entry at the preferred ordinal. When the list is
// shorter the last entry is used and the selection is flagged degraded; an
// empty list cannot be served at all.
func selectCDNURL(urls []string, preferred int) (string, bool, error) {
	if len(urls) == 0 {
		return "", false, fmt.Errorf("empty play url list")
	}
	if preferred < len(urls) {
		return urls[preferred], false, nil
	}
	return urls[len(urls)-1], true, nil
}

// canonicalShareURL truncates the share link at the trailing HTML page
// suffix, dropping the rotating query parameters after it.
func canonicalShareURL(shareURL string) string {
	if before, _, found := strings.Cut(shareURL, ".html"); found {
		return before
	}
	return shareURL
}

// describeVideo strips each reported hashtag token from the caption exactly
// once, in upstream order, and collects the names whose type marker is 1.
func describeVideo(desc string, extras []textExtra) Description {
	cleaned := desc
	var tags []string
	for _, tag := range extras {
		if tag.HashtagName != "" {
			cleaned = strings.Replace(cleaned, "#"+tag.HashtagName, "", 1)
		}
		if tag.Type == 1 {
			tags = append(tags, tag.HashtagName)
		}
	}
	return Description{Raw: desc, Cleaned: strings.TrimSpace(cleaned), Tags: tags}
}

type musicDetailResponse struct {
	StatusCode int `json:"statusCode"`
	MusicInfo  struct {
		Music struct {
			Title      string `json:"title"`
			AuthorName string `json:"authorName"`
		} `json:"music"`
		Stats struct {
			VideoCount int64 `json:"videoCount"`
		} `json:"stats"`
	} `json:"musicInfo"`
}

// FetchMusicDetail retrieves usage stats for an audio track. This is a
// soft-fail path: a non-200 response or the upstream's own not-found
// sentinel yields (nil, nil) rather than an error.
func (c *Client) FetchMusicDetail(ctx context.Context, musicID int64) (*MusicStats, error) {
	q := url.Values{}
	q.Set("language", "en")
	q.Set("musicId", strconv.FormatInt(musicID, 10))
	u := fmt.Sprintf("%s/music/detail/?%s", strings.TrimRight(c.MusicBaseURL, "/"), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, wrapTimeout("music detail fetch", err)
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	var body musicDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode music detail response: %w", err)
	}
	if body.StatusCode == musicNotFoundCode {
		return nil, nil
	}
	return &MusicStats{
		ID:         musicID,
		Title:      body.MusicInfo.Music.Title,
		AuthorName: body.MusicInfo.Music.AuthorName,
		VideoCount: body.MusicInfo.Stats.VideoCount,
	}, nil
}

func first(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}
