// Package server contains the HTTP handlers and wiring for the posts API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	_ "postdesk/docs" // swagger docs
	"postdesk/internal/config"
	"postdesk/internal/database"
	"postdesk/internal/middleware"
	"postdesk/internal/models"
	"postdesk/internal/redisclient"
	"postdesk/internal/repository"
	"postdesk/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "postdesk-api"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	postRepo       repository.PostRepository
	postService    *service.PostService

	mu       sync.Mutex
	listener net.Listener
	closing  bool
}

// NewServer connects to the database and Redis described by cfg, applies the
// schema and returns a ready Server.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("schema apply failed: %w", err)
	}

	redisClient, err := redisclient.Connect(ctx, cfg.RedisURL)
	if err != nil {
		// The write limiter degrades to its in-process bucket.
		middleware.Logger.Warn("Redis unavailable, continuing without it", slog.String("error", err.Error()))
		redisClient = nil
	}

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}

	postRepo := repository.NewPostRepository(db, middleware.Logger)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(serviceName),
		postRepo:       postRepo,
		postService:    service.NewPostService(postRepo),
	}, nil
}

// NewApp builds the fiber app with the shared error envelope, middleware
// and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Postdesk API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: s.ErrorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// ErrorHandler writes any error that escapes a handler with the standard
// envelope. Unexpected errors are logged and masked.
func (s *Server) ErrorHandler(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return models.RespondWithError(c, status, err, !s.config.IsProduction())
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))

	app.Use(middleware.TracingMiddleware())

	// Copies request and trace IDs into the context the logger reads.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.allowedOrigins(),
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		MaxAge:       86400,
	}))

	// Global rate limiting (300 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				fiber.NewError(fiber.StatusTooManyRequests, "Too Many Attempts."), false)
		},
	}))
}

func (s *Server) allowedOrigins() string {
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://localhost:5173"
	}
	return origins
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	writeLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Redis:    s.redis,
		Limit:    s.config.RateLimitWritesPerMinute,
		Window:   time.Minute,
		Policy:   middleware.FailOpen,
		Resource: "posts:write",
	})

	posts := api.Group("/posts")
	posts.Get("/", s.ListPosts)
	posts.Post("/", writeLimit, s.StorePost)
	posts.Get("/:id", s.ShowPost)
	posts.Put("/:id", writeLimit, s.UpdatePost)
	posts.Delete("/:id", writeLimit, s.DestroyPost)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis only counts when it
// is configured.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Listen serves the app on the configured port until Shutdown. It returns nil
// without serving when Shutdown has already run.
func (s *Server) Listen() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	if s.app == nil {
		s.NewApp()
	}
	ln, err := net.Listen("tcp", ":"+s.config.Port)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on port %s: %w", s.config.Port, err)
	}
	s.listener = ln
	app := s.app
	s.mu.Unlock()

	middleware.Logger.Info("Server starting", slog.String("addr", ln.Addr().String()))
	if err := app.Listener(ln); err != nil && !s.isClosing() {
		return err
	}
	return nil
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Shutdown gracefully shuts down the server. A Listen that has not started
// serving yet is stopped as well.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	s.mu.Lock()
	s.closing = true
	app, ln := s.app, s.listener
	s.mu.Unlock()

	if app != nil {
		if err := app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
	}
	if ln != nil {
		// fasthttp may already have closed it.
		_ = ln.Close()
	}

	if err := database.Close(s.db); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return errors.Join(errs...)
}
