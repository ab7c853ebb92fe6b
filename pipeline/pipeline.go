// Package pipeline chains link classification, redirect resolution, metadata
// fetching, and short-link caching into a single resolve operation.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mineralsss/tiktoker/config"
	"github.com/mineralsss/tiktoker/shortener"
	"github.com/mineralsss/tiktoker/telemetry"
	"github.com/mineralsss/tiktoker/tiktok"
)

// Pipeline owns the upstream clients for one resolve flow. All stages share
// the caller's context, so one deadline bounds the whole flow.
type Pipeline struct {
	Resolver  *tiktok.Resolver
	TikTok    *tiktok.Client
	Shortener *shortener.Service
}

// New wires a pipeline from config. store persists the shortlink cache; the
// upstream shortening client is attached only when a token is configured,
// otherwise slugs are minted locally.
func New(cfg *config.Config, store shortener.Store) *Pipeline {
	svc := &shortener.Service{
		Store:      store,
		PublicBase: cfg.PublicBase,
		TTL:        cfg.ShortlinkTTL,
		SlugLength: cfg.SlugLength,
	}
	if cfg.UpstreamShortenerEnabled() {
		svc.Client = &shortener.Client{BaseURL: cfg.ShortenerBase, Token: cfg.ShortenerToken}
	}
	return &Pipeline{
		Resolver:  tiktok.NewResolver(),
		TikTok:    tiktok.NewClient(cfg.TikTokAPIBase, cfg.MusicAPIBase, cfg.UpstreamTimeout, cfg.CDNIndex),
		Shortener: svc,
	}
}

// Result is the outcome of a successful resolution.
type Result struct {
	Video    *tiktok.Video
	Music    *tiktok.MusicStats
	ShortURL string
	// Degraded is set when either the CDN entry was a fallback pick or the
	// shortening step failed and ShortURL carries the raw download URL.
	Degraded bool
}

// Run resolves the first recognizable video link in text. It returns
// (nil, nil) when text contains no link; errors surface only when the video
// itself cannot be resolved. A shortening failure degrades the result to the
// raw download URL instead of failing the resolve.
func (p *Pipeline) Run(ctx context.Context, text string) (*Result, error) {
	log := telemetry.LoggerWithCorr(ctx)

	link := tiktok.Classify(text)
	if link == nil {
		telemetry.Inc(telemetry.NoLinkFound)
		return nil, nil
	}

	telemetry.Inc(telemetry.ResolvesStarted)
	ctx, span := telemetry.StartSpan(ctx, "pipeline", "resolve")
	defer span.End()

	var res *Result
	var runErr error
	telemetry.TimeFunc(telemetry.PipelineDuration, func() {
		res, runErr = p.run(ctx, log, link)
	})
	if runErr != nil {
		telemetry.Inc(telemetry.ResolvesFailed)
		telemetry.RecordError(span, runErr)
		return nil, runErr
	}
	telemetry.Inc(telemetry.ResolvesSucceeded)
	telemetry.SetSpanSuccess(span)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, link *tiktok.Link) (*Result, error) {
	videoID, err := p.Resolver.Resolve(ctx, link)
	if err != nil {
		log.Warn("link resolution failed",
			slog.String("url", link.URL),
			slog.String("kind", link.Kind.String()),
			slog.String("class", ClassifyResolveError(err).String()),
			slog.Any("error", err),
			slog.String("component", "pipeline"))
		return nil, err
	}

	var video *tiktok.Video
	telemetry.TimeFunc(telemetry.MetadataFetchDuration, func() {
		video, err = p.TikTok.FetchVideo(ctx, videoID)
	})
	if err != nil {
		log.Warn("metadata fetch failed",
			slog.Int64("video_id", videoID),
			slog.String("class", ClassifyResolveError(err).String()),
			slog.Any("error", err),
			slog.String("component", "pipeline"))
		return nil, err
	}
	telemetry.UpdateDegradedGauge(video.Degraded)

	res := &Result{Video: video, Degraded: video.Degraded}

	// Music stats are decoration; a miss never fails the resolve.
	if video.Music != nil {
		stats, err := p.TikTok.FetchMusicDetail(ctx, video.Music.ID)
		if err != nil {
			log.Warn("music detail fetch failed",
				slog.Int64("music_id", video.Music.ID),
				slog.Any("error", err),
				slog.String("component", "pipeline"))
		}
		res.Music = stats
	}

	shortURL, err := p.Shortener.GetOrCreate(ctx, videoID, video.VideoURI, video.DownloadURL)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Warn("shortening failed, falling back to direct url",
			slog.Int64("video_id", videoID),
			slog.Any("error", err),
			slog.String("component", "pipeline"))
		res.ShortURL = video.DownloadURL
		res.Degraded = true
		return res, nil
	}
	res.ShortURL = shortURL
	return res, nil
}
