// Command server runs the verification gateway: the HTTP API the dashboard
// host embeds to walk participants through identity verification.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"fieldgate/internal/camera"
	"fieldgate/internal/identity"
	"fieldgate/internal/location"
	"fieldgate/internal/platform/config"
	"fieldgate/internal/platform/httpserver"
	"fieldgate/internal/platform/logger"
	"fieldgate/internal/platform/metrics"
	"fieldgate/internal/platform/postgres"
	redisplatform "fieldgate/internal/platform/redis"
	"fieldgate/internal/profile"
	profilememory "fieldgate/internal/profile/store/memory"
	profilepostgres "fieldgate/internal/profile/store/postgres"
	transporthttp "fieldgate/internal/transport/http"
	"fieldgate/internal/verification"
	sessionmemory "fieldgate/internal/verification/store/memory"
	sessionredis "fieldgate/internal/verification/store/redis"
	"fieldgate/pkg/platform/audit/publisher"
	auditkafka "fieldgate/pkg/platform/audit/publishers/kafka"
	auditmemory "fieldgate/pkg/platform/audit/store/memory"
	auditpostgres "fieldgate/pkg/platform/audit/store/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)
	m := metrics.New()

	// Session store: Redis when configured, in-process memory otherwise.
	var sessionStore verification.SessionStore
	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessionStore = sessionredis.NewStore(redisClient.Client)
		log.Info("using redis session store")
	} else {
		sessionStore = sessionmemory.NewStore()
		log.Info("using in-memory session store")
	}

	// Profile sink: Postgres when configured.
	pool, err := postgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	var sink profile.Sink
	if pool != nil {
		defer pool.Close()
		sink = profilepostgres.NewStore(pool)
		log.Info("delivering profiles to postgres")
	} else {
		sink = profilememory.NewStore()
		log.Info("delivering profiles to the in-memory store")
	}
	retrySink := profile.NewRetrySink(sink,
		profile.WithRetryLogger(log),
		profile.WithOnRetry(m.HandoffRetries.Inc),
	)

	// Audit pipeline: Kafka when brokers are configured, otherwise an async
	// publisher over the Postgres outbox or the in-memory store.
	auditor, closeAudit, err := buildAuditor(cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	locator := location.NewProvider(
		location.NewSimulatedSource(),
		location.WithTimeouts(cfg.FixTimeout, cfg.QuickFixTimeout),
	)
	// Each session gets its own camera so one session's teardown cannot
	// close another's live stream.
	newCamera := func() verification.Camera {
		return camera.NewProvider(camera.NewSimulatedFrameSource())
	}
	bridge := identity.New(cfg.SSOClientID)

	service := verification.NewService(
		sessionStore,
		locator,
		newCamera,
		bridge,
		retrySink,
		cfg.AdminPassphraseHash,
		verification.WithLogger(log),
		verification.WithAuditPublisher(auditor),
		verification.WithMetrics(m),
		verification.WithSessionTTL(cfg.SessionTTL),
		verification.WithBypassAfter(cfg.BypassAfter),
		verification.WithScanDuration(cfg.ScanDuration),
		verification.WithSyncDelay(cfg.SyncDelay),
	)

	handler := transporthttp.New(service, log)
	srv := httpserver.New(cfg.Addr, transporthttp.NewRouter(handler, log, m))
	janitor := verification.NewJanitor(sessionStore, time.Minute,
		verification.WithJanitorLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := janitor.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

func buildAuditor(cfg config.Server, log *slog.Logger) (verification.AuditPublisher, func(), error) {
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := auditkafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, auditkafka.WithLogger(log))
		if err != nil {
			return nil, nil, fmt.Errorf("connect kafka: %w", err)
		}
		log.Info("publishing audit events to kafka", "topic", cfg.Kafka.Topic)
		return pub, pub.Close, nil
	}

	if cfg.Postgres.URL != "" {
		pgStore, err := auditpostgres.Open(cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit outbox: %w", err)
		}
		log.Info("writing audit events to the postgres outbox")
		pub := publisher.NewPublisher(pgStore,
			publisher.WithLogger(log),
			publisher.WithAsyncBuffer(256),
		)
		return pub, func() {
			pub.Close()
			_ = pgStore.Close()
		}, nil
	}

	pub := publisher.NewPublisher(auditmemory.NewInMemoryStore(),
		publisher.WithLogger(log),
		publisher.WithAsyncBuffer(256),
	)
	return pub, pub.Close, nil
}
