package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/formbridge/formbridge/pkg/config"
	"github.com/formbridge/formbridge/pkg/health"
	"github.com/formbridge/formbridge/pkg/logger"
)

// Service wraps the engine with the lifecycle the entrypoint drives.
type Service struct {
	engine *Engine
	config *config.Config
	logger *logger.Logger
}

// NewService creates the service wrapper.
func NewService() *Service {
	return &Service{}
}

// SetLogger sets the logger for the service and its engine.
func (s *Service) SetLogger(log *logger.Logger) {
	s.logger = log
	if s.engine != nil {
		s.engine.SetLogger(log)
	}
}

// Initialize prepares the engine from configuration.
func (s *Service) Initialize(ctx context.Context, cfg *config.Config) error {
	s.config = cfg

	cfg.SetRestartKeys([]string{
		"services.formbridge.http_port",
		"storage.backend",
		"storage.path",
		"storage.dsn",
	})

	s.engine = NewEngine(cfg)
	if s.logger != nil {
		s.engine.SetLogger(s.logger)
	}
	return nil
}

// Start runs the engine.
func (s *Service) Start(ctx context.Context) error {
	return s.engine.Start(ctx)
}

// Stop shuts the engine down within the grace period.
func (s *Service) Stop(ctx context.Context, gracePeriod time.Duration) error {
	if s.engine == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, gracePeriod)
	defer cancel()
	return s.engine.Stop(shutdownCtx)
}

// CollectMetrics returns engine counters.
func (s *Service) CollectMetrics() map[string]int64 {
	if s.engine == nil {
		return nil
	}
	return s.engine.GetMetrics()
}

// HealthChecks returns the service's health check set.
func (s *Service) HealthChecks() map[string]health.CheckFunc {
	return map[string]health.CheckFunc{
		"http_server": s.checkHTTPServer,
		"storage":     s.checkStorage,
	}
}

func (s *Service) checkHTTPServer() error {
	if s.engine == nil {
		return fmt.Errorf("service not initialized")
	}
	return s.engine.CheckHTTPServer()
}

func (s *Service) checkStorage() error {
	if s.engine == nil {
		return fmt.Errorf("service not initialized")
	}
	return s.engine.CheckStorage()
}
