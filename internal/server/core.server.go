package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"reconciliation-service/internal/config"
	hrest "reconciliation-service/internal/handler/rest"
	publisher "reconciliation-service/internal/pub"
	"reconciliation-service/internal/repository"
	"reconciliation-service/internal/service"
	"reconciliation-service/internal/usecase"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewReconciliationServer wires the service together and runs it:
// REST on cfg.HTTPAddr, gRPC health/reflection on cfg.GRPCAddr.
func NewReconciliationServer(cfg config.AppConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync()

	// --- DB connection ---
	dbpool, err := config.ConnectDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("✅ Database connected",
		zap.Int32("max_conns", dbpool.Config().MaxConns),
		zap.Int32("min_conns", dbpool.Config().MinConns),
	)

	// --- Redis client ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("⚠️ Redis connection failed, caching disabled", zap.Error(err))
		rdb = nil // usecases run without caching (degraded mode)
	} else {
		logger.Info("✅ Redis connected", zap.String("addr", cfg.RedisAddr))
	}

	// --- Kafka writer ---
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		MaxAttempts:  3,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Compression:  kafka.Snappy,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...))
		}),
	}
	defer writer.Close()
	logger.Info("✅ Kafka writer initialized",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
	)

	// --- Repositories ---
	accountRepo := repository.NewAccountRepo(dbpool)
	runRepo := repository.NewRunRepo(dbpool)
	txnRepo := repository.NewTransactionRepo(dbpool)
	resultRepo := repository.NewResultRepo(dbpool)
	auditRepo := repository.NewAuditRepo(dbpool)
	txRunner := repository.NewTxRunner(dbpool)

	// --- Usecases ---
	accountUC := usecase.NewAccountUsecase(accountRepo, rdb)
	eventPub := publisher.NewRunEventPublisher(writer, logger)
	reconUC := usecase.NewReconciliationUsecase(
		runRepo, txnRepo, resultRepo, auditRepo,
		accountUC, txRunner, eventPub, rdb,
		usecase.RunDefaults{
			ToleranceDays:    cfg.ToleranceDays,
			AmountEpsilon:    cfg.AmountEpsilon,
			GlobalEpsilon:    cfg.GlobalEpsilon,
			DefaultThreshold: cfg.DefaultThreshold,
			Workers:          cfg.MatchWorkers,
		},
		logger,
	)

	// --- Seed clearing accounts in a goroutine (non-blocking) ---
	systemSeeder := service.NewSystemSeeder(accountRepo, dbpool)
	go func() {
		if err := systemSeeder.SeedSystem(context.Background()); err != nil {
			logger.Warn("⚠️ System seeding failed", zap.Error(err))
		}
	}()

	// --- REST server ---
	restHandler := hrest.NewReconRestHandler(reconUC, accountUC)
	go restHandler.Start(cfg.HTTPAddr)

	// --- gRPC server (health + reflection; run submission is REST-only) ---
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	logger.Info("🚀 Reconciliation gRPC server listening", zap.String("addr", cfg.GRPCAddr))
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("gRPC server failed: %w", err)
	}
	return nil
}
