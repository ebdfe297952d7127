// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/api"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/apply"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/audit"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/auth"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/config"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/health"
	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/metrics"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/overlay"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/platform/httpx"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/reconnect"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/restream"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/rtmp"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/sysmetrics"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/telemetry"
)

const serviceName = "restreamd"

// liveEndpoints resolves the control candidates from the current snapshot on
// every call.
type liveEndpoints struct {
	holder *config.Holder
}

func (e liveEndpoints) StatURLs() []string {
	return rtmp.NewResolver(e.holder.Get().ResolverConfig()).StatURLs()
}

func (e liveEndpoints) DropURLs(app, name string) []string {
	return rtmp.NewResolver(e.holder.Get().ResolverConfig()).DropURLs(app, name)
}

// Runtime is the wired daemon.
type Runtime struct {
	App     *App
	Manager *Manager
	API     *api.Server
}

// Build wires every component from the current snapshot of holder. Resources
// opened here are released by the manager's shutdown hooks; on error they are
// released before returning.
func Build(ctx context.Context, holder *config.Holder) (_ *Runtime, err error) {
	cfg := holder.Get()
	logger := xglog.WithComponent("daemon")

	var cleanups []namedHook
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanups) - 1; i >= 0; i-- {
			_ = cleanups[i].hook(context.Background())
		}
	}()

	if err := health.PerformStartupChecks(ctx, health.StartupOptions{
		DataDir:      cfg.DataDir,
		TemplatePath: cfg.TemplatePath(),
		ApplyScript:  cfg.Apply.Script,
	}); err != nil {
		return nil, err
	}

	traceCfg := telemetry.Config{
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
	}
	provider, err := telemetry.NewProvider(ctx, traceCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	cleanups = append(cleanups, namedHook{"tracing", provider.Shutdown})

	store := restream.NewStore(restream.Options{
		DataDir:      cfg.DataDir,
		TemplatePath: cfg.TemplatePath(),
		MaxOverlays:  cfg.Overlay.MaxCount,
	})
	if err := store.EnsureArtifacts(ctx); err != nil {
		return nil, fmt.Errorf("write initial artifacts: %w", err)
	}
	rec, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load restream config: %w", err)
	}
	store.Files().Migrate(rec.Overlays)

	var sessions auth.SessionStore
	if cfg.API.SessionRedisAddr != "" {
		redisStore, err := auth.NewRedisStore(ctx, auth.RedisConfig{
			Addr:     cfg.API.SessionRedisAddr,
			Password: cfg.API.SessionRedisPassword,
			TTL:      cfg.API.SessionTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("connect session store: %w", err)
		}
		cleanups = append(cleanups, namedHook{"session_store", func(context.Context) error { return redisStore.Close() }})
		sessions = redisStore
	} else {
		sessions = auth.NewMemoryStore(cfg.API.SessionTTL)
	}

	probes := health.NewManager(cfg.Version)
	probes.RegisterChecker(health.NewDirChecker("data_dir", cfg.DataDir))

	var sink audit.Sink
	if cfg.Audit.DB != "" {
		sqliteSink, err := audit.OpenSQLiteSink(ctx, cfg.Audit.DB)
		if err != nil {
			return nil, fmt.Errorf("open audit db: %w", err)
		}
		cleanups = append(cleanups, namedHook{"audit_db", func(context.Context) error { return sqliteSink.Close() }})
		probes.RegisterChecker(health.NewFuncChecker("audit_db", health.StatusDegraded, sqliteSink.Check))
		sink = sqliteSink
	}
	auditLog := audit.NewLogger(sink)

	var source sysmetrics.Source
	if procSource, err := sysmetrics.NewProcSource(""); err != nil {
		logger.Info().Err(err).Str(xglog.FieldEvent, "sysmetrics.unsupported").Msg("host metrics unavailable")
	} else {
		source = procSource
	}
	sampler := sysmetrics.NewSampler(source, cfg.DataDir)

	control := rtmp.NewClient(liveEndpoints{holder: holder},
		httpx.NewLiveClient(func() time.Duration { return holder.Get().Control.Timeout }))
	probes.RegisterChecker(health.NewStatsChecker(control))

	evaluator := health.NewEvaluator(store, sampler, control, health.EvaluatorOptions{
		IngestApp:  cfg.Stream.IngestApp,
		LiveApp:    cfg.Stream.App,
		StreamName: cfg.Stream.Name,
		Thresholds: func() health.Thresholds { return holder.Get().HealthThresholds() },
	})
	coordinator := reconnect.New(control, reconnect.Options{
		IngestApp:   cfg.Stream.IngestApp,
		LiveApp:     cfg.Stream.App,
		StreamName:  cfg.Stream.Name,
		MinInterval: cfg.Reconnect.MinInterval,
	})

	verifier := auth.NewVerifier(cfg.CredentialsPath(), cfg.HtpasswdPath())
	if !verifier.Configured() {
		logger.Warn().
			Str(xglog.FieldEvent, "auth.credentials_missing").
			Str(xglog.FieldPath, cfg.CredentialsPath()).
			Msg("no admin credentials configured; every login will be rejected")
	}

	tracing := ""
	if traceCfg.Enabled() {
		tracing = serviceName
	}
	server := api.New(api.Deps{
		Config:    store,
		Status:    store.Status(),
		Overlays:  overlay.NewManager(store, store.Files(), store.Sanitizer()),
		Images:    store.Files(),
		Verifier:  verifier,
		Sessions:  sessions,
		Sampler:   sampler,
		Health:    evaluator,
		Applier:   apply.NewRunner(cfg.Apply.Script, cfg.Apply.Timeout),
		Reconnect: coordinator,
		Audit:     auditLog,
		Probes:    probes,
		Settings: func() api.Settings {
			c := holder.Get()
			return api.Settings{SessionCookie: c.API.SessionCookie, SessionTTL: c.API.SessionTTL}
		},
		LoginRateLimit: cfg.API.LoginRateLimit,
		TracingService: tracing,
	})

	mgr, err := NewManager(
		DefaultServerConfig(cfg.ListenAddr(), cfg.API.MetricsAddr, cfg.Apply.Timeout),
		Deps{Logger: logger, APIHandler: server.Handler(), MetricsHandler: promhttp.Handler()},
	)
	if err != nil {
		return nil, err
	}
	for _, c := range cleanups {
		mgr.RegisterShutdownHook(c.name, c.hook)
	}

	holder.OnReload(func(ctx context.Context, source string, prev, next config.AppConfig, err error) {
		metrics.IncConfigReload(err == nil)
		auditLog.ConfigReload(ctx, source, err, prev != next)
		if err == nil && restartRequired(prev, next) {
			logger.Warn().
				Str(xglog.FieldEvent, "config.restart_required").
				Msg("listener, storage or session settings changed; restart the daemon to apply them")
		}
	})

	logger.Info().
		Str(xglog.FieldEvent, "daemon.built").
		Str("listen", cfg.ListenAddr()).
		Str("metrics", cfg.API.MetricsAddr).
		Str(xglog.FieldPath, cfg.DataDir).
		Bool("audit_db", sink != nil).
		Bool("redis_sessions", cfg.API.SessionRedisAddr != "").
		Msg("daemon wired")

	return &Runtime{App: NewApp(logger, mgr, holder), Manager: mgr, API: server}, nil
}

// restartRequired reports changes that only take effect on startup.
func restartRequired(prev, next config.AppConfig) bool {
	return prev.ListenAddr() != next.ListenAddr() ||
		prev.API.MetricsAddr != next.API.MetricsAddr ||
		prev.API.SessionRedisAddr != next.API.SessionRedisAddr ||
		prev.API.LoginRateLimit != next.API.LoginRateLimit ||
		prev.DataDir != next.DataDir ||
		prev.Stream != next.Stream ||
		prev.Apply != next.Apply ||
		prev.Audit != next.Audit ||
		prev.Telemetry != next.Telemetry
}
