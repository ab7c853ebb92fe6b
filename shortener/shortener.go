// Package shortener maps direct-media URLs to durable short slugs with a
// bounded lifetime, memoized in a persistent store so repeated requests for
// the same video avoid redundant upstream calls.
package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mineralsss/tiktoker/telemetry"
)

const (
	// DefaultTTL matches the expiry horizon of the signed CDN URL a slug
	// ultimately points at.
	DefaultTTL = 72 * time.Hour

	// DefaultSlugLength gives 62^8 possible tokens, so a random mint
	// collides with a stored slug only in a vanishing fraction of calls
	// and the retry loop terminates on the first attempt in practice.
	DefaultSlugLength = 8

	// mintAttempts bounds the collision-retry loop. Reaching it means the
	// slug space is effectively exhausted or the store is misbehaving.
	mintAttempts = 10

	// signedPlayPath is the CDN play endpoint whose query string carries
	// large rotating signing tokens.
	signedPlayPath = "/aweme/v1/play/"
)

// ErrSlugTaken is reported by Store.Upsert when the entry's slug is already
// used by a different mapping. Implementations must enforce this at write
// time so concurrent minting cannot store duplicate slugs.
var ErrSlugTaken = errors.New("slug already in use")

// Entry is a persistent cache row mapping a video to its short URL.
// An entry is valid for lookup only while now < ExpiresAt; a stale entry is
// treated as a miss and replaced, never served.
type Entry struct {
	VideoID      int64
	VideoURI     string
	Slug         string
	ShortenedURL string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Store is the persistent mapping behind the cache. Get methods return
// (nil, nil) when no row exists.
type Store interface {
	GetByVideoID(ctx context.Context, videoID int64) (*Entry, error)
	GetByURI(ctx context.Context, videoURI string) (*Entry, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// Upsert inserts or replaces the entry keyed by VideoID and returns
	// ErrSlugTaken when Slug collides with a different row.
	Upsert(ctx context.Context, e *Entry) error
}

// Service implements lookup-or-create over a Store. When Client is set,
// slugs come from the upstream shortening service; otherwise they are
// minted locally and served from PublicBase.
type Service struct {
	Store      Store
	Client     *Client
	PublicBase string
	TTL        time.Duration
	SlugLength int

	// Now allows tests to control expiry; defaults to time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

func (s *Service) slugLength() int {
	if s.SlugLength > 0 {
		return s.SlugLength
	}
	return DefaultSlugLength
}

// GetOrCreate returns the shortened URL for a video's direct download URL,
// reusing a valid cached mapping when one exists. videoURI is the stable
// media URI (independent of rotating signed query parameters) and keys the
// idempotency check; downloadURL is what the shortening backend receives,
// normalized first.
func (s *Service) GetOrCreate(ctx context.Context, videoID int64, videoURI, downloadURL string) (string, error) {
	now := s.now()

	e, err := s.getRetry(ctx, func() (*Entry, error) { return s.Store.GetByVideoID(ctx, videoID) })
	if err != nil {
		return "", fmt.Errorf("shortlink lookup: %w", err)
	}
	if e != nil && now.Before(e.ExpiresAt) {
		telemetry.Inc(telemetry.CacheHits)
		return e.ShortenedURL, nil
	}
	telemetry.Inc(telemetry.CacheMisses)

	normalized := NormalizeURI(downloadURL)
	uriKey := videoURI
	if uriKey == "" {
		uriKey = normalized
	}

	// Never mint a second slug for a URI we already mapped, even when the
	// id-keyed row was absent or expired under a different video id.
	e, err = s.getRetry(ctx, func() (*Entry, error) { return s.Store.GetByURI(ctx, uriKey) })
	if err != nil {
		return "", fmt.Errorf("shortlink lookup by uri: %w", err)
	}
	if e != nil && now.Before(e.ExpiresAt) {
		telemetry.Inc(telemetry.CacheHits)
		return e.ShortenedURL, nil
	}

	entry := &Entry{
		VideoID:   videoID,
		VideoURI:  uriKey,
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}

	if s.Client != nil {
		var slug, shortened string
		telemetry.TimeFunc(telemetry.ShortenDuration, func() {
			slug, shortened, err = s.Client.Shorten(ctx, normalized)
		})
		if err != nil {
			return "", err
		}
		entry.Slug = slug
		entry.ShortenedURL = shortened
		if err := s.upsertRetry(ctx, entry); err != nil {
			return "", fmt.Errorf("shortlink store: %w", err)
		}
		return entry.ShortenedURL, nil
	}

	return s.mintAndStore(ctx, entry)
}

// mintAndStore generates a local slug, retrying on collision. Uniqueness is
// checked against the store before the write and enforced again at write
// time by the slug's unique constraint, which keeps concurrent minting safe.
func (s *Service) mintAndStore(ctx context.Context, entry *Entry) (string, error) {
	base := strings.TrimRight(s.PublicBase, "/")
	for attempt := 0; attempt < mintAttempts; attempt++ {
		slug, err := mintSlug(s.slugLength())
		if err != nil {
			return "", fmt.Errorf("mint slug: %w", err)
		}
		exists, err := s.getBoolRetry(ctx, func() (bool, error) { return s.Store.SlugExists(ctx, slug) })
		if err != nil {
			return "", fmt.Errorf("slug uniqueness check: %w", err)
		}
		if exists {
			telemetry.Inc(telemetry.SlugCollisions)
			continue
		}
		entry.Slug = slug
		entry.ShortenedURL = base + "/" + slug
		err = s.upsertRetry(ctx, entry)
		if errors.Is(err, ErrSlugTaken) {
			telemetry.Inc(telemetry.SlugCollisions)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("shortlink store: %w", err)
		}
		return entry.ShortenedURL, nil
	}
	return "", fmt.Errorf("no unique slug found after %d attempts", mintAttempts)
}

// Store failures are retried once before surfacing; the persistent store is
// the only shared resource on this path and a single transient hiccup
// should not fail a user-visible request.

func (s *Service) getRetry(ctx context.Context, fn func() (*Entry, error)) (*Entry, error) {
	e, err := fn()
	if err == nil || ctx.Err() != nil {
		return e, err
	}
	slog.Warn("shortlink store read failed, retrying once", slog.Any("err", err), slog.String("component", "shortener"))
	return fn()
}

func (s *Service) getBoolRetry(ctx context.Context, fn func() (bool, error)) (bool, error) {
	v, err := fn()
	if err == nil || ctx.Err() != nil {
		return v, err
	}
	slog.Warn("shortlink store read failed, retrying once", slog.Any("err", err), slog.String("component", "shortener"))
	return fn()
}

func (s *Service) upsertRetry(ctx context.Context, e *Entry) error {
	err := s.Store.Upsert(ctx, e)
	if err == nil || errors.Is(err, ErrSlugTaken) || ctx.Err() != nil {
		return err
	}
	slog.Warn("shortlink store write failed, retrying once", slog.Any("err", err), slog.String("component", "shortener"))
	return s.Store.Upsert(ctx, e)
}

// NormalizeURI strips all query parameters except the embedded video_id
// when the URL is the signed play endpoint, so large rotating signing
// tokens are not forwarded to the shortening backend. Other URLs pass
// through unchanged.
func NormalizeURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Path != signedPlayPath {
		return raw
	}
	q := url.Values{}
	if vid := u.Query().Get("video_id"); vid != "" {
		q.Set("video_id", vid)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String()
}
