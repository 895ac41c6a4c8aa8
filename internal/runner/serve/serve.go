// Package serve runs the HTTP API until its context is cancelled.
package serve

import (
	"context"
	"time"

	"github.com/kittclouds/bookshelf/internal/httpapi"
	"github.com/kittclouds/bookshelf/internal/logger"
)

// Serve configures `bookshelf serve`.
type Serve struct {
	Addr            string
	Deps            httpapi.Deps
	ShutdownTimeout time.Duration
	Log             logger.Logger
}

// Do starts the server and shuts it down gracefully once ctx is done.
func (s *Serve) Do(ctx context.Context) error {
	if s.Log == nil {
		s.Log = logger.Nop()
	}
	if s.Deps.Logger == nil {
		s.Deps.Logger = s.Log
	}
	if s.Deps.StartTime.IsZero() {
		s.Deps.StartTime = time.Now()
	}
	srv := httpapi.New(s.Addr, s.Deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Log.Info("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		s.Log.Error("graceful shutdown failed", logger.Error(err))
		return err
	}
	return <-errCh
}
