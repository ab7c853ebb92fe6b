// Command resolve runs the resolution pipeline once over text supplied on
// the command line and prints the outcome as JSON. It talks to the same
// Postgres-backed shortlink cache as the service.
//
// Usage:
//
//	resolve "check this https://vm.tiktok.com/ZMabc123/"
//
// Environment Variables:
//
//	DB_DSN: Database connection string (required)
//	SHORTENER_TOKEN, PUBLIC_BASE, etc. as for the service
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mineralsss/tiktoker/config"
	"github.com/mineralsss/tiktoker/db"
	"github.com/mineralsss/tiktoker/pipeline"
)

func main() {
	_ = godotenv.Load(".env")
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: resolve <text containing a video link>")
		os.Exit(2)
	}
	text := strings.Join(os.Args[1:], " ")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx, database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	p := pipeline.New(cfg, &db.ShortlinkStore{DB: database})
	res, err := p.Run(ctx, text)
	if err != nil {
		slog.Error("resolve failed",
			slog.String("class", pipeline.ClassifyResolveError(err).String()),
			slog.Any("err", err))
		os.Exit(1)
	}
	if res == nil {
		fmt.Fprintln(os.Stderr, "no video link found")
		os.Exit(1)
	}

	out := map[string]any{
		"short_url": res.ShortURL,
		"degraded":  res.Degraded,
		"video_id":  res.Video.ID,
		"share_url": res.Video.ShareURL,
		"author":    res.Video.Author.Handle,
		"caption":   res.Video.Description.Cleaned,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
