package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/loop-dev/loop-battle/internal/auth"
	"github.com/loop-dev/loop-battle/internal/auth/jwt"
	"github.com/loop-dev/loop-battle/internal/config"
	"github.com/loop-dev/loop-battle/internal/db/queries"
	"github.com/loop-dev/loop-battle/internal/db/repository"
	"github.com/loop-dev/loop-battle/internal/logging"
	"github.com/loop-dev/loop-battle/internal/match"
	"github.com/loop-dev/loop-battle/internal/match/scoring"
	"github.com/loop-dev/loop-battle/internal/metrics"
	"github.com/loop-dev/loop-battle/internal/problem"
	"github.com/loop-dev/loop-battle/internal/room"
	"github.com/loop-dev/loop-battle/internal/server"
	"github.com/loop-dev/loop-battle/pkg/http/ws"
)

const limiterPruneInterval = 5 * time.Minute

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	matches     *match.Service
	broadcaster *match.Broadcaster
	limiter     *server.RateLimiter
}

// New bootstraps logger, Postgres, Redis, restores live rooms and matches, and builds the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	policy, err := match.ParseTimeoutPolicy(cfg.Battle.CodeTestTimeoutPolicy)
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = cfg.Postgres.MaxConns
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	q := queries.New(pool)
	roomRepo := repository.NewRoomRepository(q)
	problemRepo := repository.NewProblemRepository(q)
	matchRepo := repository.NewMatchRepository(q)

	tokens := jwt.NewManager(jwt.TokenConfig{
		AccessSecret: []byte(cfg.Security.JWTSecret),
		Issuer:       cfg.Security.JWTIssuer,
	})

	problems := problem.NewService(problemRepo, problem.NewCache(redisClient, cfg.Battle.ProblemCacheTTL), logger)
	rooms := room.NewStore(
		roomRepo,
		problems,
		auth.NewPasswordHasher(cfg.Battle.BcryptCost),
		room.Options{MaxProblems: cfg.Battle.MaxProblems},
		logger,
	)
	if err := rooms.Load(ctx); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}

	collectors := metrics.New(prometheus.DefaultRegisterer)
	state := match.NewStateManager(redisClient, cfg.Battle.ResultCacheTTL, logger)
	hub := ws.NewHub(logger)

	matchSvc := match.NewService(rooms, problems, matchRepo, state, collectors, match.ServiceOptions{
		CodeTestDuration:      cfg.Battle.CodeTestDuration,
		MiniQuizDuration:      cfg.Battle.MiniQuizDuration,
		Grace:                 cfg.Battle.Grace,
		CodeTestTimeoutPolicy: policy,
		ResultRetention:       cfg.Battle.ResultRetention,
		Scoring:               scoring.Config{IncludeSubjective: cfg.Battle.IncludeSubjective},
	}, logger)
	if err := matchSvc.Recover(ctx); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("recover matches: %w", err)
	}

	limiter := server.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	handlers := match.NewHTTPHandlers(matchSvc, problems, logger)
	wsHandler := match.NewWSHandler(matchSvc, hub, tokens, server.NewUpgrader(cfg.CORS.AllowedOrigins), logger)

	ready := []server.Pinger{
		pool.Ping,
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}
	apiServer := server.NewHTTPServer(cfg, logger, tokens, ready, server.Routes{
		API: func(r chi.Router) {
			handlers.Register(r, limiter.Middleware)
		},
		WebSocket: wsHandler.ServeHTTP,
	})

	return &Application{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		redis:       redisClient,
		http:        apiServer,
		matches:     matchSvc,
		broadcaster: match.NewBroadcaster(redisClient, hub, logger),
		limiter:     limiter,
	}, nil
}

// Run serves HTTP and the background workers until SIGINT/SIGTERM or a worker fails.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(a.broadcaster.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(a.limiter.Run(gctx, limiterPruneInterval))
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
		defer cancel()
		if err := a.http.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("http shutdown error")
		}
		return nil
	})

	err := g.Wait()

	a.matches.Shutdown()
	a.pool.Close()
	if cerr := a.redis.Close(); cerr != nil {
		a.logger.Error().Err(cerr).Msg("redis shutdown error")
	}
	a.logger.Info().Msg("shutdown complete")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
