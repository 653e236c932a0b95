package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aegis-gate/aegis/internal/adapter/outbound/memory"
	"github.com/aegis-gate/aegis/internal/adapter/outbound/sqlite"
	"github.com/aegis-gate/aegis/internal/config"
	"github.com/aegis-gate/aegis/internal/domain/audit"
	"github.com/aegis-gate/aegis/internal/domain/policy"
	"github.com/aegis-gate/aegis/internal/service"
	"github.com/aegis-gate/aegis/internal/telemetry"
)

// engine bundles the wired services for one CLI invocation.
type engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	policies policy.Store
	auditLog *service.AuditLogger
	perms    *service.PermissionService

	async         *service.AsyncAppender
	auditStore    audit.Store
	stopTelemetry telemetry.ShutdownFunc
}

// buildEngine loads configuration and wires stores and services.
// Callers must Close the engine to flush audit buffers.
func buildEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	var stopTelemetry telemetry.ShutdownFunc
	if cfg.Telemetry {
		stopTelemetry, err = telemetry.Setup(ctx, "aegis", Version)
		if err != nil {
			return nil, fmt.Errorf("failed to set up telemetry: %w", err)
		}
	}

	var auditStore audit.Store
	if path := cfg.Audit.SQLitePath(); path != "" {
		auditStore, err = sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		logger.Debug("audit persistence", "backend", "sqlite", "path", path)
	} else {
		auditStore = memory.NewAuditStore()
		logger.Debug("audit persistence", "backend", "memory")
	}

	metrics := service.NewMetrics(prometheus.NewRegistry())

	var async *service.AsyncAppender
	logStore := auditStore
	if cfg.Audit.Async {
		async = service.NewAsyncAppender(auditStore, logger,
			service.WithChannelSize(cfg.Audit.ChannelSize),
			service.WithBatchSize(cfg.Audit.BatchSize),
			service.WithFlushInterval(parseDuration(cfg.Audit.FlushInterval, time.Second)),
			service.WithSendTimeout(parseDuration(cfg.Audit.SendTimeout, 100*time.Millisecond)),
			service.WithDropCounter(metrics.AuditDropsTotal),
		)
		async.Start(ctx)
		logStore = async
	}

	policies := memory.NewPolicyStore()
	if err := seedPolicies(ctx, cfg, policies, logger); err != nil {
		return nil, err
	}

	eval := service.NewEvaluationService(policies, logger,
		service.WithCacheSize(cfg.Cache.Size))
	auditLog := service.NewAuditLogger(logStore, logger, metrics)
	perms := service.NewPermissionService(eval, auditLog, service.Config{
		DefaultDeny: cfg.Engine.DefaultDeny,
		AuditAll:    cfg.Engine.AuditAll,
	}, logger, metrics)

	return &engine{
		cfg:           cfg,
		logger:        logger,
		policies:      policies,
		auditLog:      auditLog,
		perms:         perms,
		async:         async,
		auditStore:    auditStore,
		stopTelemetry: stopTelemetry,
	}, nil
}

// seedPolicies creates built-in and declarative policies from config.
func seedPolicies(ctx context.Context, cfg *config.Config, store policy.Store, logger *slog.Logger) error {
	if cfg.Engine.SeedBuiltins {
		for _, tenant := range cfg.Engine.SeedTenants {
			if err := service.SeedBuiltinPolicies(ctx, store, tenant, logger); err != nil {
				return fmt.Errorf("failed to seed built-in policies: %w", err)
			}
		}
	}
	for i, pc := range cfg.Policies {
		in, err := pc.ToCreateInput()
		if err != nil {
			return fmt.Errorf("policies[%d]: %w", i, err)
		}
		if _, err := store.Create(ctx, in); err != nil {
			return fmt.Errorf("policies[%d] (%s): %w", i, pc.Name, err)
		}
	}
	if len(cfg.Policies) > 0 {
		logger.Debug("seeded declarative policies", "count", len(cfg.Policies))
	}
	return nil
}

// Close flushes the async appender, closes the audit store, and stops
// telemetry.
func (e *engine) Close(ctx context.Context) error {
	if e.async != nil {
		e.async.Stop()
	}
	err := e.auditStore.Close()
	if e.stopTelemetry != nil {
		if terr := e.stopTelemetry(ctx); err == nil {
			err = terr
		}
	}
	return err
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
