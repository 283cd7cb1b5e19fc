package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"payshield/backend/internal/analytics"
	"payshield/backend/internal/audit"
	auditrepo "payshield/backend/internal/audit/repository"
	"payshield/backend/internal/authorization/service"
	"payshield/backend/internal/config"
	"payshield/backend/internal/db"
	"payshield/backend/internal/devotp"
	"payshield/backend/internal/fraud"
	fraudrepo "payshield/backend/internal/fraud/repository"
	"payshield/backend/internal/ledger"
	"payshield/backend/internal/ledger/evm"
	"payshield/backend/internal/mfa"
	"payshield/backend/internal/mfa/delivery"
	"payshield/backend/internal/platform/retry"
	"payshield/backend/internal/policy/engine"
	receiptrepo "payshield/backend/internal/receipt/repository"
	"payshield/backend/internal/server"
	"payshield/backend/internal/server/middleware"
	telemetryotel "payshield/backend/internal/telemetry/otel"
	"payshield/backend/internal/telemetry/producer"
)

const (
	janitorInterval = time.Minute
	// orderStateMaxAge bounds how long per-order flow state is kept.
	orderStateMaxAge = 24 * time.Hour
	shutdownTimeout  = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	otelProviders, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, telemetryotel.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	otelProviders.SetGlobal()

	// Storage: Postgres when configured, otherwise in-memory.
	var (
		database  *sql.DB
		receipts  receiptrepo.Repository = receiptrepo.NewMemoryRepository()
		events    fraud.Log              = fraud.NewMemoryLog()
		auditLogs auditrepo.Repository   = auditrepo.NewMemoryRepository()
	)
	if cfg.DatabaseURL != "" {
		database, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		receipts = receiptrepo.NewPostgresRepository(database)
		events = fraudrepo.NewPostgresRepository(database)
		auditLogs = auditrepo.NewPostgresRepository(database)
	} else {
		log.Println("server: DATABASE_URL not set; receipts, fraud events and audit logs are in memory")
	}

	// Challenges: Redis when configured, otherwise in-memory.
	var (
		challenges mfa.Store
		memStore   *mfa.MemoryStore
		rdb        *redis.Client
		redisStore *mfa.RedisStore
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rdb = redis.NewClient(opts)
		redisStore = mfa.NewRedisStore(rdb, cfg.ChallengeTTLDuration())
		challenges = redisStore
	} else {
		memStore = mfa.NewMemoryStore(cfg.ChallengeTTLDuration())
		challenges = memStore
	}

	// Threshold policy.
	policyEval, err := engine.NewOPAEvaluatorFromFile(ctx, cfg.Thresholds(), cfg.ThresholdPolicyFile)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	// Ledger.
	var (
		ledgerBackend ledger.Backend
		evmBackend    *evm.Backend
	)
	if cfg.LedgerEnabled() {
		dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		evmBackend, err = evm.Dial(dialCtx, evm.Config{
			RPCURL:          cfg.LedgerRPCURL,
			PrivateKey:      cfg.LedgerPrivateKey,
			ContractAddress: cfg.LedgerContractAddress,
			QueryBlocks:     cfg.LedgerQueryBlocks,
		})
		cancel()
		if err != nil {
			log.Fatalf("ledger: %v", err)
		}
		ledgerBackend = evmBackend
		log.Printf("server: ledger anchoring enabled (contract %s)", cfg.LedgerContractAddress)
	} else {
		log.Println("server: ledger anchoring disabled; receipts are issued without a ledger reference")
	}
	ledgerClient := ledger.NewClient(ledgerBackend, ledger.Config{
		ExplorerBase: cfg.LedgerExplorerBase,
		CacheTTL:     cfg.LedgerCacheTTLDuration(),
		Retry:        cfg.LedgerRetryPolicy(),
	})

	// Code delivery.
	var (
		deliverer delivery.Deliverer = delivery.LogDeliverer{}
		devCodes  devotp.Store
		devMem    *devotp.MemoryStore
	)
	if cfg.ChallengeWebhookURL != "" {
		deliverer = delivery.NewWebhookClient(cfg.ChallengeWebhookURL, cfg.ChallengeWebhookToken)
	}
	if cfg.OTPReturnToClient && !cfg.IsProduction() {
		devMem = devotp.NewMemoryStore()
		devCodes = devMem
		deliverer = delivery.Multi{deliverer, delivery.DevStoreDeliverer{Store: devCodes}}
		log.Println("server: DEV MODE codes retrievable at GET /dev/otp/{orderId}")
	}

	// Fraud event fan-out.
	sinks := []fraud.Sink{
		fraud.NewAlertWatcher(events, func(merchantID string, p fraud.Pattern) {
			log.Printf("fraud: %s pattern for merchant %s (%d events, severity %s)", p.Type, merchantID, p.Count, p.Severity)
		}),
		telemetryotel.NewFraudSink(otelProviders.LoggerProvider),
	}
	kafkaPublisher := producer.NewKafkaPublisher(cfg.KafkaBrokersList(), cfg.FraudKafkaTopic)
	if kafkaPublisher != nil {
		sinks = append(sinks, kafkaPublisher)
		log.Printf("server: publishing fraud events to kafka topic %s", kafkaPublisher.Topic())
	}
	notifier := fraud.NewNotifier(fraud.DefaultQueueSize, retry.DefaultPolicy(), sinks...)
	notifyCtx, stopNotifier := context.WithCancel(ctx)
	go notifier.Run(notifyCtx)

	svc, err := service.New(service.Deps{
		Policy:         policyEval,
		Challenges:     challenges,
		Delivery:       deliverer,
		Ledger:         ledgerClient,
		Receipts:       receipts,
		Events:         events,
		Notifier:       notifier,
		MeterProvider:  otelProviders.MeterProvider,
		TracerProvider: otelProviders.TracerProvider,
	})
	if err != nil {
		log.Fatalf("authorization: %v", err)
	}

	deps := server.Deps{
		Authorization:       svc,
		Analytics:           analytics.NewService(events, ledgerClient, cfg.AnalyticsWindowDuration()),
		Ledger:              ledgerClient,
		Receipts:            receipts,
		AuditRepo:           auditLogs,
		AuditLogger:         audit.NewLogger(auditLogs, middleware.ClientIPFromContext),
		HealthPolicyChecker: policyEval,
		DevOTP:              devCodes,
		MeterProvider:       otelProviders.MeterProvider,
		TracerProvider:      otelProviders.TracerProvider,
	}
	if database != nil {
		deps.HealthPinger = database
	}
	if redisStore != nil {
		deps.HealthChallenges = redisStore
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	go runJanitor(janitorCtx, janitor{
		challenges: memStore,
		devCodes:   devMem,
		svc:        svc,
		events:     events,
		retention:  cfg.FraudRetentionDuration(),
	})

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server: shutdown: %v", err)
	}
	stopJanitor()
	if err := ledgerClient.Wait(shutdownCtx); err != nil {
		log.Printf("ledger: pending anchors abandoned: %v", err)
	}
	stopNotifier()
	select {
	case <-notifier.Done():
	case <-shutdownCtx.Done():
		log.Println("fraud: notifier did not drain before shutdown deadline")
	}
	if err := kafkaPublisher.Close(); err != nil {
		log.Printf("kafka: close: %v", err)
	}
	if err := otelProviders.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel: shutdown: %v", err)
	}
	if evmBackend != nil {
		evmBackend.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if database != nil {
		_ = database.Close()
	}
	log.Println("HTTP server stopped")
}
