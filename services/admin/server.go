// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package admin serves the operational HTTP surface: health, metrics,
// and a read-only view of the registered reaction menus.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kinokolab/semesterd/services/reactionroles"
)

// Server is the admin HTTP server.
type Server struct {
	addr     string
	registry *reactionroles.Registry
	log      *slog.Logger
	http     *http.Server
}

// New builds the admin server. Passing an empty addr disables it.
func New(addr string, registry *reactionroles.Registry, log *slog.Logger) *Server {
	return &Server{addr: addr, registry: registry, log: log}
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/menus", func(c *gin.Context) {
		menus := s.registry.Menus()
		out := make([]gin.H, 0, len(menus))
		for _, m := range menus {
			out = append(out, gin.H{
				"message_id": m.MessageID,
				"channel_id": m.ChannelID,
				"cohort":     m.Cohort,
				"bindings":   m.Bindings,
			})
		}
		c.JSON(http.StatusOK, gin.H{"menus": out})
	})
	return r
}

// Run serves until ctx is cancelled. A disabled server blocks until
// cancellation so callers can treat it uniformly.
func (s *Server) Run(ctx context.Context) error {
	if s.addr == "" {
		<-ctx.Done()
		return nil
	}

	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()
	s.log.Info("admin server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
