// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/mineralsss/tiktoker/pipeline"
)

var startTime = time.Now()

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db       *sql.DB
	ctx      context.Context
	pipeline *pipeline.Pipeline
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, db *sql.DB, p *pipeline.Pipeline) *Handlers {
	return &Handlers{
		db:       db,
		ctx:      ctx,
		pipeline: p,
	}
}
