package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"meetdesk/backend/internal/cache"
	"meetdesk/backend/internal/clock"
	"meetdesk/backend/internal/config"
	"meetdesk/backend/internal/events"
	"meetdesk/backend/internal/identity"
	"meetdesk/backend/internal/otelx"
	"meetdesk/backend/internal/service/appointments"
	"meetdesk/backend/internal/service/availability"
	"meetdesk/backend/internal/service/scheduling"
	"meetdesk/backend/internal/store"
	"meetdesk/backend/internal/store/memory"
	"meetdesk/backend/internal/store/postgres"
	grpcTransport "meetdesk/backend/internal/transport/grpc"
)

const serviceName = "meetdesk-server"

type repositories interface {
	store.AppointmentRepository
	store.AvailabilityRepository
	scheduling.ReadModel
}

// pgRepositories joins the two postgres repos behind one value.
type pgRepositories struct {
	*postgres.AppointmentRepo
	*postgres.AvailabilityRepo
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("log_level", cfg.LogLevel),
		slog.String("store", cfg.StoreBackend),
		slog.String("cache", cfg.CacheBackend),
	)

	loc, err := clock.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}
	clk := clock.NewSystem(loc)

	shutdownTracing, err := otelx.Setup(ctx, otelx.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", slog.Any("err", err))
		}
	}()

	repos, closeRepos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepos()

	windowCache, closeCache, err := openWindowCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	publisher, closePublisher := openPublisher(cfg, log)
	defer closePublisher()
	dispatcher := events.NewDispatcher(publisher, cfg.EventsBuffer, log)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := dispatcher.Close(drainCtx); err != nil {
			log.Warn("event dispatcher drain incomplete", slog.Any("err", err))
		}
	}()

	registry := availability.NewRegistry(repos, windowCache, log)
	appts := appointments.NewService(repos, registry, clk, appointments.Options{
		EnforceAvailability: cfg.EnforceAvailability,
		PageSize:            cfg.PageSize,
	}, log)
	facade := scheduling.NewFacade(appts, registry, repos, dispatcher, clk, log)
	auth := identity.NewAuthenticator(cfg.JWTSecret)

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcTransport.UnaryRequestIDInterceptor(),
			grpcTransport.UnaryAuthInterceptor(auth),
			grpcTransport.UnaryTimeoutInterceptor(cfg.GRPCRequestTimeout),
		),
		grpc.ChainStreamInterceptor(
			grpcTransport.StreamRequestIDInterceptor(),
			grpcTransport.StreamAuthInterceptor(auth),
		),
	)
	grpcTransport.RegisterSchedulingServiceServer(grpcServer, grpcTransport.NewSchedulingServer(facade, log))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		return fmt.Errorf("grpc listen on %s: %w", cfg.GRPCAddr(), err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcTransport.SchedulingServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		healthServer.Shutdown()
		shutdown(log, grpcServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server stopped: %w", err)
		}
	}
	return nil
}

func openRepositories(ctx context.Context, cfg config.Config, log *slog.Logger) (repositories, func(), error) {
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := postgres.Open(connectCtx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, nil, err
	}

	closeDB := func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}
	return pgRepositories{
		AppointmentRepo:  postgres.NewAppointmentRepo(db),
		AvailabilityRepo: postgres.NewAvailabilityRepo(db),
	}, closeDB, nil
}

func openWindowCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.WindowCache, func(), error) {
	switch cfg.CacheBackend {
	case "lru":
		c, err := cache.NewLRU(cfg.CacheSize, log)
		if err != nil {
			return nil, nil, fmt.Errorf("cache.size: %w", err)
		}
		return c, func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		closeClient := func() {
			if err := client.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}
		return cache.NewRedis(client, cfg.CacheTTL, log), closeClient, nil
	}
	return cache.Nop{}, func() {}, nil
}

func openPublisher(cfg config.Config, log *slog.Logger) (events.Publisher, func()) {
	brokers := events.SplitBrokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		log.Info("no kafka brokers configured; events go to the log")
		return events.LogPublisher{Logger: log.With(slog.String("component", "events"))}, func() {}
	}

	p := events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
	log.Info("publishing events to kafka", slog.Any("brokers", brokers), slog.String("topic", cfg.KafkaTopic))
	return p, func() {
		if err := p.Close(); err != nil {
			log.Warn("kafka writer close failed", slog.Any("err", err))
		}
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
