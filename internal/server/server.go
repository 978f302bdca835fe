package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "kanbandash/docs"
	"kanbandash/internal/auth"
	"kanbandash/internal/config"
	"kanbandash/internal/events"
	"kanbandash/internal/handler"
	"kanbandash/internal/middleware"
	"kanbandash/internal/migrations"
	"kanbandash/internal/repository"
	"kanbandash/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// EventsChannel is the Redis pub/sub channel carrying board invalidations.
const EventsChannel = "kanban:board-events"

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
	Hub    *events.Hub
	Config *config.Config
	Logger *log.Logger
}

// Deps are the collaborators NewRouter wires into routes.
type Deps struct {
	Users    repository.UserRepositoryInterface
	Boards   handler.BoardService
	Tokens   *auth.TokenManager
	Hub      *events.Hub
	Registry *prometheus.Registry
	Logger   log.FieldLogger
}

func Init(cfg *config.Config, logger *log.Logger) (*Server, error) {
	if cfg.MigrateOnStart {
		if err := migrations.Up(cfg.MigrationURL(), logger); err != nil {
			return nil, fmt.Errorf("❌ migrations failed: %w", err)
		}
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("❌ failed to connect to DB: %w", err)
	}
	logger.Info("✅ Connected to database")

	hub := events.NewHub(logger)
	opts := []service.Option{service.WithLogger(logger)}
	var invalidator service.Invalidator = hub

	var rc *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("❌ invalid REDIS_URL: %w", err)
		}
		rc = redis.NewClient(redisOpts)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rc.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("❌ failed to connect to redis: %w", err)
		}
		logger.Info("✅ Connected to redis")
		opts = append(opts, service.WithSnapshotCache(service.NewSnapshotCache(rc, cfg.SnapshotTTL)))
		// Replicas learn about each other's writes through Relay.
		invalidator = service.NewRedisInvalidator(rc, EventsChannel)
	}
	opts = append(opts, service.WithInvalidator(invalidator))

	svc := service.NewBoardService(
		repository.NewBoardRepository(db),
		repository.NewColumnRepository(db),
		repository.NewTaskRepository(db),
		opts...,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine := NewRouter(Deps{
		Users:    repository.NewUserRepository(db),
		Boards:   svc,
		Tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry),
		Hub:      hub,
		Registry: registry,
		Logger:   logger,
	})

	return &Server{
		Engine: engine,
		DB:     db,
		Redis:  rc,
		Hub:    hub,
		Config: cfg,
		Logger: logger,
	}, nil
}

// NewRouter builds the gin engine with every route of the API.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Logger), middleware.NewHTTPMetrics(d.Registry).Handler())

	userHandler := handler.NewUserHandler(d.Users, d.Tokens)
	boardHandler := handler.NewBoardHandler(d.Boards)
	taskHandler := handler.NewTaskHandler(d.Boards)
	eventsHandler := handler.NewEventsHandler(d.Hub)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Public routes
	r.POST("/register", userHandler.Register)
	r.POST("/login", userHandler.Login)

	// Protected routes - require authentication
	api := r.Group("/api")
	api.Use(middleware.JWTAuthMiddleware(d.Tokens))
	{
		api.GET("/board", boardHandler.Get)
		api.GET("/board/events", eventsHandler.Stream)

		api.GET("/tasks", taskHandler.List)
		api.POST("/tasks", taskHandler.Create)
		api.DELETE("/tasks/:id", taskHandler.Archive)
		api.PATCH("/tasks/:id/move", taskHandler.Move)
	}
	return r
}

func (s *Server) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.Redis != nil {
		go events.Relay(ctx, s.Redis, EventsChannel, s.Hub, s.Logger)
	}

	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	go func() {
		s.Logger.Infof("🚀 Server running on port %s", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Fatalf("❌ Failed to listen: %s", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	s.Logger.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.Logger.Fatalf("❌ Server forced to shutdown: %s", err)
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	s.Logger.Info("✅ Server exited properly")
}
