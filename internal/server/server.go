package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/aslahtp/menti-clone/internal/api"
	"github.com/aslahtp/menti-clone/internal/auth"
	"github.com/aslahtp/menti-clone/internal/db"
	"github.com/aslahtp/menti-clone/internal/event"
	"github.com/aslahtp/menti-clone/internal/leaderboard"
	"github.com/aslahtp/menti-clone/internal/live"
	"github.com/aslahtp/menti-clone/internal/quiz"
	"github.com/aslahtp/menti-clone/internal/score"
	"github.com/aslahtp/menti-clone/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	JWT struct {
		Secret     string
		Issuer     string
		TTLMinutes int
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}

	Live struct {
		AllowedOrigins []string
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	service struct {
		auth        *auth.Service
		quiz        *quiz.Service
		score       *score.Service
		leaderboard *leaderboard.Service
	}

	live struct {
		coordinator *live.Coordinator
		gateway     *live.Gateway
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initLive()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s",
		s.c.Postgres.User, s.c.Postgres.Pass, s.c.Postgres.Addr, s.c.Postgres.Name)

	if err := db.Migrate(dsn); err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}

	if err := pool.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres = pool
	return nil
}

func (s *Server) initService() {
	tokens := auth.NewTokenProvider(
		s.c.JWT.Secret,
		s.c.JWT.Issuer,
		time.Duration(s.c.JWT.TTLMinutes)*time.Minute,
	)

	s.service.auth = auth.NewService(auth.Config{
		DB:     s.infra.postgres,
		Tokens: tokens,
	})

	s.service.quiz = quiz.NewService(quiz.Config{
		DB: s.infra.postgres,
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis,
		Prefix:   s.c.Redis.Prefix,
	})
}

func (s *Server) initLive() {
	s.live.coordinator = live.New(live.Config{
		Quizzes:  s.service.quiz,
		Results:  s.service.score,
		Verifier: s.service.auth,
		EventBus: s.eb,
	})

	s.live.gateway = live.NewGateway(live.GatewayConfig{
		Coordinator:    s.live.coordinator,
		OriginPatterns: s.c.Live.AllowedOrigins,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Engine:      e,
		Auth:        s.service.auth,
		Quiz:        s.service.quiz,
		Score:       s.service.score,
		Leaderboard: s.service.leaderboard,
		Verifier:    s.service.auth,
		Gateway:     s.live.gateway,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.live.coordinator.Close()
	s.eb.Stop()

	s.infra.postgres.Close()
	if err := s.infra.redis.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
