// @title           Plan2Bill Access Service
// @version         1.0
// @description     Authentication, role-based authorization and role-change requests.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	_ "github.com/plan2bill/access-service/docs"
	"github.com/plan2bill/access-service/internal/api"
	"github.com/plan2bill/access-service/internal/api/middleware"
	"github.com/plan2bill/access-service/internal/auth"
	"github.com/plan2bill/access-service/internal/core/ports"
	"github.com/plan2bill/access-service/internal/core/service"
	"github.com/plan2bill/access-service/internal/infrastructure/config"
	mongostore "github.com/plan2bill/access-service/internal/infrastructure/db/mongo"
	"github.com/plan2bill/access-service/internal/infrastructure/db/postgres"
	redisstore "github.com/plan2bill/access-service/internal/infrastructure/db/redis"
	"github.com/plan2bill/access-service/internal/infrastructure/http/handlers"
	"github.com/plan2bill/access-service/internal/infrastructure/queue"
	"github.com/plan2bill/access-service/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	loadLocalEnv()

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "access-service",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// stores is the persistence wiring for one driver.
type stores struct {
	users     ports.UserRepository
	requests  ports.RoleRequestRepository
	events    ports.RoleRequestEventRepository
	readiness map[string]handlers.PingFunc
	close     func()
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled && cfg.Redis.Addr != "" {
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		limiter = redisstore.NewFixedWindowLimiter(client)
		st.readiness["redis"] = redisstore.Ping(client)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("rate limiting enabled")
	} else {
		log.Warn().Msg("rate limiting disabled")
	}

	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	if err != nil {
		return err
	}

	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, st.events, cfg.Store.Timeout, logger.Component("audit"))
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	dispatcher.Start(workerCtx)
	defer dispatcher.Close()

	e := api.NewRouter(api.Dependencies{
		Auth:         service.NewAuthService(st.users, tokens, logger.Component("auth")),
		RoleRequests: service.NewRoleRequestService(st.requests, dispatcher, logger.Component("role_requests")),
		Tokens:       tokens,
		Profiles:     st.users,
		SessionTTL:   tokens.TTL(),
		Limiter:      limiter,
		RateLimits: api.RateLimits{
			LoginPerMinute:        cfg.RateLimit.LoginPerMinute,
			RoleRequestsPerMinute: cfg.RateLimit.RoleRequestsPerMinute,
		},
		Readiness:         st.readiness,
		ExposeErrorDetail: !cfg.IsProduction(),
		Log:               logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("driver", cfg.Store.Driver).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	timeout := cfg.Store.Timeout

	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongo")
		users := mongostore.NewUserRepository(db, timeout)
		return &stores{
			users:     users,
			requests:  mongostore.NewRoleRequestRepository(db, timeout),
			events:    mongostore.NewEventRepository(db, timeout),
			readiness: map[string]handlers.PingFunc{"mongo": mongostore.Ping(db)},
			close: func() {
				disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(disconnectCtx)
			},
		}, nil

	default:
		pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL})
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("connected to postgres")
		return &stores{
			users:     postgres.NewUserRepository(pool, timeout),
			requests:  postgres.NewRoleRequestRepository(pool, timeout),
			events:    postgres.NewEventRepository(pool, timeout),
			readiness: map[string]handlers.PingFunc{"postgres": postgres.Ping(pool)},
			close:     pool.Close,
		}, nil
	}
}

// loadLocalEnv reads a .env file when present. Deployed environments set
// variables directly.
func loadLocalEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
}
