// Package server wraps the HTTP server lifecycle with functional options.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const shutdownTimeout = 10 * time.Second

type HTTPServer interface {
	Run() error
	Shutdown() error
}

type httpServer struct {
	srv *http.Server
}

type Option func(*http.Server)

func WithAddr(host string, port uint16) Option {
	return func(srv *http.Server) {
		srv.Addr = fmt.Sprintf("%s:%d", host, port)
	}
}

func WithTimeout(read, write, idle time.Duration) Option {
	return func(srv *http.Server) {
		srv.ReadTimeout = read
		srv.WriteTimeout = write
		srv.IdleTimeout = idle
	}
}

func WithHandler(handler http.Handler) Option {
	return func(srv *http.Server) {
		srv.Handler = handler
	}
}

func NewHTTPServer(opts ...Option) HTTPServer {
	srv := &http.Server{}

	for _, opt := range opts {
		opt(srv)
	}

	return &httpServer{srv: srv}
}

func (s *httpServer) Run() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *httpServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.srv.Shutdown(ctx)
}
