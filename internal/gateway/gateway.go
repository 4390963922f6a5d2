// ABOUTME: Gateway orchestrator tying route loading, session dispatch, and HTTP serving
// ABOUTME: Runs the background refresh loop and coordinates graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/relay-gateway/internal/config"
	"github.com/2389/relay-gateway/internal/manager"
	"github.com/2389/relay-gateway/internal/metrics"
	"github.com/2389/relay-gateway/internal/route"
	"github.com/2389/relay-gateway/internal/session"
	"github.com/2389/relay-gateway/internal/sign"
)

// Service is the inbound boundary of the gateway. It decodes submit
// requests, dispatches them through the session manager, and keeps the
// routing table fresh from the configured source.
type Service struct {
	cfg        *config.Config
	manager    *manager.Manager
	source     route.Source
	signer     *sign.Protocol
	nonces     *sign.NonceCache
	httpServer *http.Server
	logger     *slog.Logger

	// done stops the refresh loop; closed exactly once in Run's shutdown path
	done chan struct{}
}

// New builds a Service from configuration. The initial route table is
// loaded eagerly: a malformed batch or unreachable backend at startup is
// fatal rather than absorbed, so a misconfigured gateway never starts.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	signer, err := sign.New(cfg.Signing.PublicID, []byte(cfg.Signing.PrivateSecret), time.Duration(cfg.Signing.AllowedDeltaSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("configuring signing: %w", err)
	}

	var nonces *sign.NonceCache
	if signer.Enabled() && cfg.Signing.AllowedDeltaSeconds > 0 {
		// Nonces outside the window are already rejected by the timestamp
		// check, so the cache TTL matches the window.
		nonces = sign.NewNonceCache(time.Duration(cfg.Signing.AllowedDeltaSeconds)*time.Second, 65536)
		signer.AttachNonceCache(nonces)
	}

	source, err := route.Open(ctx, cfg.Routes.Backend, cfg.Routes.Connection)
	if err != nil {
		return nil, fmt.Errorf("opening route source: %w", err)
	}

	deps := session.Deps{
		Signer:        signer,
		ForwardSigned: cfg.Signing.ForwardSigned,
		Logger:        logger,
	}

	s := &Service{
		cfg:     cfg,
		manager: manager.New(deps, logger),
		source:  source,
		signer:  signer,
		nonces:  nonces,
		logger:  logger.With("component", "gateway"),
		done:    make(chan struct{}),
	}

	profiles, err := source.Load(ctx)
	if err != nil {
		s.closeSource()
		return nil, fmt.Errorf("loading initial routes: %w", err)
	}
	if err := s.manager.Reload(s.applyDefaults(profiles)); err != nil {
		s.closeSource()
		return nil, fmt.Errorf("installing initial routes: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Run serves HTTP and drives the refresh loop until ctx is canceled or the
// server fails. Shutdown is cooperative: the refresh loop's pending sleep is
// interrupted promptly, in-flight dispatches complete.
func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Server.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go s.refreshLoop()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case serverErr = <-errCh:
		s.logger.Error("http server failed", "error", serverErr)
	}

	shutdownErr := s.shutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// refreshLoop periodically reloads the route table. A load or reload
// failure is logged and absorbed: the service keeps serving the last
// known-good table.
func (s *Service) refreshLoop() {
	interval := s.cfg.Routes.RefreshInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-timer.C:
		}

		s.refresh()
		timer.Reset(interval)
	}
}

// applyDefaults fills empty per-route fields from the configured fallbacks
// before the profiles are validated and installed.
func (s *Service) applyDefaults(profiles []route.Profile) []route.Profile {
	for i := range profiles {
		if profiles[i].UserAgent == "" {
			profiles[i].UserAgent = s.cfg.Defaults.UserAgent
		}
		if profiles[i].Timeout == 0 {
			profiles[i].Timeout = s.cfg.Defaults.TimeoutMs
		}
	}
	return profiles
}

// refresh performs one load-and-install cycle.
func (s *Service) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Routes.RefreshInterval)
	defer cancel()

	profiles, err := s.source.Load(ctx)
	if err != nil {
		metrics.ReloadTotal.WithLabelValues("load_error").Inc()
		s.logger.Warn("route load failed, keeping current table", "error", err)
		return
	}

	if err := s.manager.Reload(s.applyDefaults(profiles)); err != nil {
		metrics.ReloadTotal.WithLabelValues("reload_error").Inc()
		s.logger.Warn("route reload rejected, keeping current table", "error", err)
		return
	}

	metrics.ReloadTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("route table refreshed", "routes", s.manager.Len())
}

// shutdown stops the refresh loop, drains the HTTP server, and releases
// every session and backend resource deterministically.
func (s *Service) shutdown() error {
	close(s.done)

	// The original context is already canceled; shutdown gets a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)

	s.manager.Close()
	s.closeSource()
	if s.nonces != nil {
		s.nonces.Close()
	}

	s.logger.Info("gateway stopped")
	return err
}

func (s *Service) closeSource() {
	if closer, ok := s.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn("closing route source", "error", err)
		}
	}
}
