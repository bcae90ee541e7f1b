package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/formbridge/formbridge/internal/engine"
	"github.com/formbridge/formbridge/pkg/config"
	"github.com/formbridge/formbridge/pkg/health"
	"github.com/formbridge/formbridge/pkg/logger"
)

var (
	configFile     = flag.String("config", "formbridge.yaml", "Path to the config file")
	logLevel       = flag.String("log-level", "info", "Minimum log level (debug, info, warn, error)")
	serviceVersion = "1.0.0"
)

func main() {
	flag.Parse()

	log := logger.New("formbridge", serviceVersion)
	log.SetLevel(logger.ParseLevel(*logLevel))

	cfg := config.New()
	if _, err := os.Stat(*configFile); err == nil {
		if err := cfg.LoadFile(*configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Infof("Loaded configuration from %s", *configFile)
	} else {
		log.Warnf("Config file %s not found, using defaults", *configFile)
	}

	svc := engine.NewService()
	svc.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Initialize(ctx, cfg); err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	if err := svc.Start(ctx); err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}

	go watchConfig(ctx, log, cfg, *configFile)
	go monitorHealth(ctx, log, svc)

	<-ctx.Done()
	log.Infof("Shutting down...")

	if err := svc.Stop(context.Background(), 10*time.Second); err != nil {
		log.Errorf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// watchConfig reloads the config file on SIGHUP. Changes to restart-only keys
// are reported but not applied to the running service.
func watchConfig(ctx context.Context, log *logger.Logger, cfg *config.Config, path string) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
			previous := cfg.GetAll()
			if err := cfg.LoadFile(path); err != nil {
				log.Errorf("Config reload failed: %v", err)
				continue
			}
			if cfg.RequiresRestart(previous) {
				log.Warnf("Config reloaded from %s, but changed keys require a restart to take effect", path)
			} else {
				log.Infof("Config reloaded from %s", path)
			}
		}
	}
}

// monitorHealth periodically runs the service's health checks, reporting
// degradation and recovery transitions.
func monitorHealth(ctx context.Context, log *logger.Logger, svc *engine.Service) {
	checker := health.NewChecker()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	wasHealthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, check := range svc.HealthChecks() {
				checker.RunCheck(name, check)
			}
			healthy := checker.IsHealthy()
			if !healthy {
				for _, check := range checker.Checks() {
					if check.Status != health.StatusHealthy {
						log.Warnf("Health check %s failed: %s (last healthy %s)",
							check.Name, check.Message, checker.LastHealthy().Format(time.RFC3339))
					}
				}
			} else if !wasHealthy {
				log.Infof("All health checks recovered")
			}
			wasHealthy = healthy

			metrics := svc.CollectMetrics()
			log.Debugf("Processed %d requests (%d errors)", metrics["requests_processed"], metrics["errors"])
		}
	}
}
