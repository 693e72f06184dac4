// Command server runs the registration identity and sequence integrity
// engine: the public registration API, the operator reconciliation API, and
// the audit outbox relay.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	exhibitioncache "gatepass/internal/exhibition/cache"
	exhibitionstore "gatepass/internal/exhibition/store"
	httpapi "gatepass/internal/http"
	"gatepass/internal/jwttoken"
	operatorhandler "gatepass/internal/operator/handler"
	"gatepass/internal/platform/config"
	"gatepass/internal/platform/httpserver"
	"gatepass/internal/platform/kafka"
	"gatepass/internal/platform/logger"
	platformmetrics "gatepass/internal/platform/metrics"
	platformpg "gatepass/internal/platform/postgres"
	platformredis "gatepass/internal/platform/redis"
	reconhandler "gatepass/internal/reconciler/handler"
	reconmetrics "gatepass/internal/reconciler/metrics"
	reconservice "gatepass/internal/reconciler/service"
	reghandler "gatepass/internal/registration/handler"
	regmetrics "gatepass/internal/registration/metrics"
	regservice "gatepass/internal/registration/service"
	regstore "gatepass/internal/registration/store"
	"gatepass/internal/sequence"
	visitorservice "gatepass/internal/visitor/service"
	visitorstore "gatepass/internal/visitor/store"
	"gatepass/migrations"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/audit"
	"gatepass/pkg/platform/audit/consumer"
	auditmemory "gatepass/pkg/platform/audit/store/memory"
	auditpg "gatepass/pkg/platform/audit/store/postgres"
	"gatepass/pkg/platform/audit/worker"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = platformpg.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrations.Apply(ctx, db); err != nil {
			return err
		}
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Store selection: Postgres when a database is configured, in-memory
	// otherwise (dev mode and tests).
	type registrationStore interface {
		regservice.Store
		reconservice.RegistrationStore
		visitorservice.RegistrationStore
	}
	var (
		visitors      visitorservice.Store
		registrations registrationStore
		exhibitions   interface {
			regservice.ExhibitionStore
			reconservice.ExhibitionStore
		}
		auditStore audit.Store
	)
	if db != nil {
		visitors = visitorstore.NewPostgres(db)
		registrations = regstore.NewPostgres(db)
		exhibitions = exhibitionstore.NewPostgres(db)
		auditStore = auditpg.New(db)
	} else {
		visitors = visitorstore.NewInMemory()
		registrations = regstore.NewInMemory()
		exhibitions = exhibitionstore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
	}

	var seqStore sequence.Store
	switch {
	case cfg.SequenceBackend == "redis":
		if redisClient == nil {
			return errors.New("redis sequence backend requires GATEPASS_REDIS_URL")
		}
		seqStore = sequence.NewRedis(redisClient)
	case cfg.SequenceBackend == "postgres" && db != nil:
		seqStore = sequence.NewPostgres(db)
	default:
		if cfg.SequenceBackend == "postgres" {
			log.Warn("no database configured, sequence counters are in-memory")
		}
		seqStore = sequence.NewInMemoryStore()
	}
	allocator := sequence.NewAllocator(seqStore, cfg.SequenceWidth)

	var writeCache regservice.CountCache
	var sweepCache reconservice.CountCache
	if redisClient != nil {
		cache := exhibitioncache.NewCountCache(redisClient)
		writeCache, sweepCache = cache, cache
	}

	auditPublisher := audit.NewPublisher(auditStore, audit.WithLogger(log))
	regMetrics := regmetrics.New(prometheus.DefaultRegisterer)
	sweepMetrics := reconmetrics.New(prometheus.DefaultRegisterer)

	visitorSvc := visitorservice.New(visitors, registrations, auditPublisher, log)
	registrationSvc := regservice.New(registrations, exhibitions, writeCache, visitorSvc, allocator, auditPublisher, regMetrics, log)
	reconcilerSvc := reconservice.New(visitors, registrations, exhibitions, sweepCache, visitorSvc, auditPublisher, sweepMetrics, log)

	jwtService := jwttoken.NewService(cfg.JWTSigningKey, "gatepass")

	router := httpapi.NewRouter(httpapi.Deps{
		Public: reghandler.NewHandler(registrationSvc, visitorSvc, log),
		Auth: operatorhandler.NewHandler(cfg.Operator.Email, cfg.Operator.PasswordHash,
			cfg.Operator.TokenTTL, jwtService, log),
		Admin: reconhandler.NewHandler(reconcilerSvc,
			func(ctx context.Context, keepID, mergeID id.VisitorID) error {
				_, err := visitorSvc.MergeDuplicate(ctx, keepID, mergeID)
				return err
			}, log),
		TokenValidator: jwtService,
		Metrics:        platformmetrics.Handler(),
		Health: func(ctx context.Context) error {
			if db != nil {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(ctx)
			}
			return nil
		},
		Logger: log,
	})

	// Audit pipeline: relay the outbox to Kafka and materialize it back into
	// queryable rows. Both need the database and a broker list.
	if db != nil && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer producer.Close()
		relay := worker.NewRelay(db, producer, log)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox relay stopped", "error", err)
			}
		}()

		materialize := consumer.NewMaterializeHandler(auditpg.New(db), log)
		topicRouter := consumer.NewRouter(log, nil)
		integrityTopic := worker.TopicFor(audit.CategoryIntegrity)
		operationsTopic := worker.TopicFor(audit.CategoryOperations)
		topicRouter.Register(integrityTopic, materialize)
		topicRouter.Register(operationsTopic, materialize)
		auditConsumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
			[]string{integrityTopic, operationsTopic}, topicRouter, log)
		if err != nil {
			return err
		}
		go func() {
			if err := auditConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	srv := httpserver.New(cfg.Addr, router)
	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting gatepass", "addr", cfg.Addr, "sequence_backend", cfg.SequenceBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
