package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime"

	"github.com/hilthontt/interchange/internal/domain"
	"github.com/hilthontt/interchange/internal/infrastructure/adapter"
	"github.com/hilthontt/interchange/internal/infrastructure/configs"
	"github.com/hilthontt/interchange/internal/infrastructure/eventlog"
	"github.com/hilthontt/interchange/internal/infrastructure/logging"
	"github.com/hilthontt/interchange/internal/infrastructure/metrics"
	"github.com/hilthontt/interchange/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/interchange/internal/infrastructure/repository"
	"github.com/hilthontt/interchange/internal/infrastructure/tracing"
	"github.com/hilthontt/interchange/internal/infrastructure/ws"
	"github.com/hilthontt/interchange/internal/interchange"
	"github.com/hilthontt/interchange/internal/presentation/api"
	"github.com/hilthontt/interchange/internal/presentation/handler/health"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath, err := configs.DetermineConfigPath(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(logging.LoggerConfig{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		FilePath: cfg.Logger.FilePath,
	})
	if err != nil {
		log.Fatalf("Failed to initialize the logger: %v", err)
	}
	defer logger.Sync()

	startup := logging.With(logger, logging.General, logging.Startup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh, err := tracing.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		startup.Fatalw("failed to initialize the tracer", "error", err)
	}
	defer sh(context.Background())

	m := metrics.New()

	clients := newRedisClients(logger)
	defer clients.close()

	eventLog, err := openEventLog(ctx, cfg, clients, logger)
	if err != nil {
		startup.Fatalw("failed to open shared log", "driver", cfg.EventLog.Driver, "error", err)
	}
	defer eventLog.Close()

	store, err := openMembershipStore(ctx, cfg, clients)
	if err != nil {
		startup.Fatalw("failed to open membership store", "backend", cfg.Membership.Backend, "error", err)
	}

	rooms := ws.NewRoomManager()
	roomAdapter := adapter.New(eventLog, rooms, logger)

	ic := interchange.New(roomAdapter, store, *cfg, logger, m)
	ic.SetAdapterEvents()
	if err := ic.Start(ctx); err != nil {
		startup.Fatalw("failed to start interchange", "error", err)
	}

	var limiter ratelimiter.Limiter
	if cfg.RateLimiter.Enabled {
		rl := ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)
		defer rl.Close()
		limiter = rl
	}

	healthHandler := health.NewHandler(logger, map[string]health.Pinger{"eventlog": eventLog})
	app := api.NewApplication(*cfg, http.HandlerFunc(ic.Gateway().ServeWS), healthHandler, m.Handler(), logger, limiter)
	app.OnShutdown(rooms.DisconnectAll)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	startup.Infow("node ready",
		"config", configPath,
		string(logging.NodeID), roomAdapter.NodeID(),
		"eventlog", cfg.EventLog.Driver,
		"membership", cfg.Membership.Backend,
		"forgetOnDisconnect", cfg.Membership.ForgetOnDisconnect,
	)

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		startup.Errorw("server stopped with error", "error", err)
	}
}

// redisClients shares one client per URL between the log and the membership store.
type redisClients struct {
	logger  *zap.SugaredLogger
	clients map[string]*redis.Client
}

func newRedisClients(logger *zap.SugaredLogger) *redisClients {
	return &redisClients{
		logger:  logging.With(logger, logging.Redis, logging.Startup),
		clients: make(map[string]*redis.Client),
	}
}

func (c *redisClients) get(ctx context.Context, url string) (*redis.Client, error) {
	if client, ok := c.clients[url]; ok {
		return client, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrLogUnavailable, err)
	}

	c.logger.Infow("connected to redis", "addr", opts.Addr, "db", opts.DB)
	c.clients[url] = client
	return client, nil
}

func (c *redisClients) close() {
	for _, client := range c.clients {
		_ = client.Close()
	}
}

func openEventLog(ctx context.Context, cfg *configs.Config, clients *redisClients, logger *zap.SugaredLogger) (eventlog.Log, error) {
	switch cfg.EventLog.Driver {
	case configs.EventLogRedis:
		client, err := clients.get(ctx, cfg.EventLog.URL)
		if err != nil {
			return nil, err
		}
		return eventlog.NewRedisStream(client, eventlog.RedisStreamOptions{
			Stream:       cfg.EventLog.Stream,
			MaxLen:       cfg.EventLog.MaxLen,
			BlockTimeout: cfg.EventLog.BlockTimeout,
			BatchSize:    cfg.EventLog.BatchSize,
		}, logging.With(logger, logging.Redis, logging.Delivery)), nil
	case configs.EventLogAMQP:
		rmq, err := eventlog.NewRabbitMQ(cfg.EventLog.URL, cfg.EventLog.Stream, logging.With(logger, logging.RabbitMQ, logging.Delivery))
		if err != nil {
			return nil, err
		}
		return rmq, nil
	case configs.EventLogMemory:
		return eventlog.NewMemory(cfg.EventLog.Stream, logging.With(logger, logging.Internal, logging.Delivery)), nil
	default:
		return nil, fmt.Errorf("unknown eventlog driver %q", cfg.EventLog.Driver)
	}
}

func openMembershipStore(ctx context.Context, cfg *configs.Config, clients *redisClients) (domain.MembershipStore, error) {
	switch cfg.Membership.Backend {
	case configs.MembershipRedis:
		client, err := clients.get(ctx, cfg.Membership.RedisURL)
		if err != nil {
			return nil, err
		}
		return repository.NewRedisMembershipStore(client, cfg.Membership.Key), nil
	default:
		return repository.NewMembershipStore(), nil
	}
}
