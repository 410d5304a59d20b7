package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github/chapool/twap-rebalancer/internal/metrics"
	"github/chapool/twap-rebalancer/internal/rebalance"
)

// ProgressSource reports where the rebalance run currently is.
type ProgressSource interface {
	Progress() rebalance.Progress
}

type Router struct {
	Routes     []*echo.Route
	Root       *echo.Group
	Management *echo.Group
	APIV1      *echo.Group
}

// Server is the operator facing HTTP surface next to a rebalance run:
// health probes, the progress of the run and the prometheus metrics.
//
// Components labeled as `wire:"-"` are initialized by Init after construction.
type Server struct {
	Echo   *echo.Echo `wire:"-"`
	Router *Router    `wire:"-"`

	ListenAddress string
	Metrics       *metrics.Service
	Progress      ProgressSource
}

func NewServer(listenAddress string, m *metrics.Service, progress ProgressSource) *Server {
	s := &Server{
		ListenAddress: listenAddress,
		Metrics:       m,
		Progress:      progress,
	}

	s.Init()

	return s
}

// Ready reports whether all components are set and the run has not failed.
func (s *Server) Ready() bool {
	if s.Echo == nil || s.Metrics == nil || s.Progress == nil {
		log.Debug().Msg("Server is not fully initialized")
		return false
	}

	return s.Progress.Progress().State != rebalance.StateFailed
}

// Listen binds the listen address, so requests are accepted as soon as Start runs.
func (s *Server) Listen() error {
	if s.Echo == nil {
		return errors.New("server is not initialized")
	}

	l, err := net.Listen("tcp", s.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.ListenAddress, err)
	}
	s.Echo.Listener = l

	return nil
}

// Addr is nil until the server listens.
func (s *Server) Addr() net.Addr {
	if s.Echo == nil {
		return nil
	}

	return s.Echo.ListenerAddr()
}

// Start blocks serving HTTP until Shutdown is called. It listens first unless Listen was called.
func (s *Server) Start() error {
	if s.Echo == nil {
		return errors.New("server is not initialized")
	}

	if err := s.Echo.Start(s.ListenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start echo server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.Echo == nil {
		return nil
	}

	log.Debug().Msg("Shutting down echo server")

	if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Failed to shutdown echo server")
		return err
	}

	return nil
}
