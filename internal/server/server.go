package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/arcadehub/apiserver/config"
	"github.com/arcadehub/apiserver/internal/cache"
	"github.com/arcadehub/apiserver/internal/db"
	"github.com/arcadehub/apiserver/internal/handlers"
	"github.com/arcadehub/apiserver/internal/mq"
	"github.com/arcadehub/apiserver/internal/services"
	"github.com/arcadehub/apiserver/internal/storage"
	"github.com/arcadehub/apiserver/internal/store"
	"github.com/arcadehub/apiserver/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and router together with the optional
// backing services (cache, object storage, message queue, websocket hub).
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	logger     *slog.Logger

	hub              *ws.Hub
	leaderboardCache *cache.LeaderboardCache
	queue            *mq.MQ
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	userRepo := store.NewUserRepository(dbConn)
	gameRepo := store.NewGameRepository(dbConn)
	scoreRepo := store.NewScoreRepository(dbConn)

	tokens := services.NewTokenIssuer(jwtSecret, cfg.Auth.TokenTTL)
	userService := services.NewUserService(userRepo, tokens, cfg.Auth.BcryptCost)

	objectStorage, err := newObjectStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if objectStorage != nil {
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("ensuring storage bucket: %w", err)
		}
	}
	gameService := services.NewGameService(gameRepo, objectStorage)

	var leaderboardCache *cache.LeaderboardCache
	if cfg.Redis.Addr != "" {
		leaderboardCache, err = cache.NewLeaderboardCache(cfg.Redis, logger)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
	}

	queue, err := newQueue(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	hub := ws.NewHub(logger)
	go hub.Run()

	// The cache interface is satisfied by *LeaderboardCache, but a typed
	// nil must not end up behind the interface.
	var cacheForService services.LeaderboardCache
	if leaderboardCache != nil {
		cacheForService = leaderboardCache
	}
	leaderboardService := services.NewLeaderboardService(scoreRepo, userRepo, cacheForService)

	sink := newScoreEventFanout(queue, cfg.MQ.Topic, leaderboardCache, leaderboardService, hub, logger)
	scoreService := services.NewScoreService(scoreRepo, userRepo, gameRepo, sink)

	if err := userService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Warn("admin seeding failed", "error", err)
	}

	authMiddleware := handlers.RequireAuth(tokens, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, tokens, logger)
	})
	router.Route("/games", func(r chi.Router) {
		handlers.GameRouter(r, gameService, userService, authMiddleware)
	})
	router.Group(func(r chi.Router) {
		handlers.ScoreRouter(r, scoreService, leaderboardService, authMiddleware)
	})
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, logger, w, r)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer:       httpServer,
		router:           router,
		db:               dbConn,
		logger:           logger,
		hub:              hub,
		leaderboardCache: leaderboardCache,
		queue:            queue,
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch cfg.Backend {
	case "minio":
		if cfg.Minio.Endpoint == "" {
			return nil, nil
		}
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("connecting to minio: %w", err)
		}
		return storage.NewStorage(client), nil
	case "gcs":
		if cfg.GCS.Bucket == "" {
			return nil, nil
		}
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("connecting to gcs: %w", err)
		}
		return storage.NewStorage(client), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newQueue(ctx context.Context, cfg config.MQConfig) (*mq.MQ, error) {
	switch cfg.Backend {
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connecting to pubsub: %w", err)
		}
		return mq.New(client), nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
		}
		return mq.New(client), nil
	case "kafka":
		client, err := mq.NewKafkaClient(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("connecting to kafka: %w", err)
		}
		return mq.New(client), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.hub != nil {
		s.hub.Stop()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.leaderboardCache != nil {
		_ = s.leaderboardCache.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
