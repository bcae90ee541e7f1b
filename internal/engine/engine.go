package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/formbridge/formbridge/internal/formapi"
	"github.com/formbridge/formbridge/internal/services/mapping"
	"github.com/formbridge/formbridge/internal/services/question"
	"github.com/formbridge/formbridge/internal/services/source"
	"github.com/formbridge/formbridge/internal/storage"
	"github.com/formbridge/formbridge/internal/tabular"
	"github.com/formbridge/formbridge/pkg/config"
	"github.com/formbridge/formbridge/pkg/health"
	"github.com/formbridge/formbridge/pkg/logger"
)

// Engine wires the storage, collaborators and services together and runs the
// HTTP API.
type Engine struct {
	config  *config.Config
	logger  *logger.Logger
	server  *http.Server
	checker *health.Checker

	store      storage.Store
	sources    *source.Service
	questions  *question.Service
	mappings   *mapping.Service
	formClient *formapi.Client

	state struct {
		sync.Mutex
		isRunning         bool
		ongoingOperations int32
	}
	metrics struct {
		requestsProcessed int64
		errors            int64
	}
}

// NewEngine creates an engine for the given configuration.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		config:  cfg,
		checker: health.NewChecker(),
	}
}

// SetLogger sets the logger for the engine
func (e *Engine) SetLogger(log *logger.Logger) {
	e.logger = log
}

// initialize opens storage, builds the collaborators and services, and
// hydrates persisted state. Split from Start so tests can exercise the
// handlers without a listening server.
func (e *Engine) initialize(ctx context.Context) error {
	backend := e.config.GetDefault("storage.backend", "sqlite")
	location := e.config.Get("storage.path")
	if backend == "postgres" {
		location = e.config.Get("storage.dsn")
	}

	store, err := storage.Open(ctx, backend, location)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	e.store = store
	e.logger.Infof("Opened %s storage backend", backend)

	fetchTimeout := 30 * time.Second
	if raw := e.config.Get("fetch.timeout_seconds"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			fetchTimeout = time.Duration(seconds) * time.Second
		}
	}

	e.formClient = formapi.NewClient(
		e.config.GetDefault("form.base_url", "https://api.jotform.com"),
		e.config.Get("form.form_id"),
		e.config.Get("form.api_key"),
		fetchTimeout,
	)
	if !e.formClient.Configured() {
		e.logger.Warnf("Form API not configured: remote question loading and submission creation are unavailable")
	}

	e.sources = source.NewService(store, tabular.NewFetcher(fetchTimeout), e.logger)
	e.questions = question.NewService(e.formClient, e.logger)
	e.mappings = mapping.NewService(store, e.logger)

	if err := e.sources.Load(ctx); err != nil {
		return err
	}
	if err := e.mappings.Load(ctx); err != nil {
		return err
	}
	return nil
}

// Start initializes the engine and serves the HTTP API.
func (e *Engine) Start(ctx context.Context) error {
	e.state.Lock()
	if e.state.isRunning {
		e.state.Unlock()
		return fmt.Errorf("engine is already running")
	}
	e.state.isRunning = true
	e.state.Unlock()

	e.logger.Infof("Starting FormBridge engine...")

	if err := e.initialize(ctx); err != nil {
		return err
	}

	portStr := os.Getenv("FORMBRIDGE_HTTP_PORT")
	if portStr == "" {
		portStr = e.config.GetDefault("services.formbridge.http_port", "8090")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port configuration: %w", err)
	}

	e.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: NewServer(e),
	}

	e.logger.Infof("Starting HTTP server on port: %d", port)
	go func() {
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Errorf("HTTP server error: %v", err)
			atomic.AddInt64(&e.metrics.errors, 1)
		}
	}()

	e.logger.Infof("FormBridge engine started successfully")
	return nil
}

// Stop shuts the HTTP server down and closes storage.
func (e *Engine) Stop(ctx context.Context) error {
	e.state.Lock()
	if !e.state.isRunning {
		e.state.Unlock()
		return nil
	}
	e.state.isRunning = false
	e.state.Unlock()

	if e.server != nil {
		if err := e.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// GetMetrics returns request counters.
func (e *Engine) GetMetrics() map[string]int64 {
	return map[string]int64{
		"requests_processed": atomic.LoadInt64(&e.metrics.requestsProcessed),
		"errors":             atomic.LoadInt64(&e.metrics.errors),
	}
}

// CheckHTTPServer verifies the HTTP server exists.
func (e *Engine) CheckHTTPServer() error {
	e.state.Lock()
	defer e.state.Unlock()

	if !e.state.isRunning {
		return fmt.Errorf("service not initialized")
	}
	if e.server == nil {
		return fmt.Errorf("HTTP server not initialized")
	}
	return nil
}

// RunHealthChecks executes every health check and returns the recorded
// results.
func (e *Engine) RunHealthChecks() (bool, []health.Check) {
	e.checker.RunCheck("storage", e.CheckStorage)
	return e.checker.IsHealthy(), e.checker.Checks()
}

// CheckStorage verifies the key-value store is reachable.
func (e *Engine) CheckStorage() error {
	if e.store == nil {
		return fmt.Errorf("storage not initialized")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.store.Ping(ctx)
}

func (e *Engine) TrackOperation() {
	atomic.AddInt32(&e.state.ongoingOperations, 1)
	atomic.AddInt64(&e.metrics.requestsProcessed, 1)
}

func (e *Engine) UntrackOperation() {
	atomic.AddInt32(&e.state.ongoingOperations, -1)
}
