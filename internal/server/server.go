package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"

	"github.com/sitedesk/apiserver/config"
	"github.com/sitedesk/apiserver/internal/auth"
	"github.com/sitedesk/apiserver/internal/db"
	"github.com/sitedesk/apiserver/internal/handlers"
	"github.com/sitedesk/apiserver/internal/mail"
	"github.com/sitedesk/apiserver/internal/mq"
	"github.com/sitedesk/apiserver/internal/notify"
	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/internal/storage"
	"github.com/sitedesk/apiserver/internal/store"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Notifier receives the events raised by request handling.
type Notifier interface {
	services.ContactNotifier
	services.DeliveryNotifier
}

// Dependencies are the collaborators the HTTP handler is built from.
type Dependencies struct {
	Config   config.Config
	Logger   *slog.Logger
	DB       *sqlx.DB
	Objects  services.ObjectStore
	Notifier Notifier
}

// NewHandler assembles the router with every route and middleware.
func NewHandler(deps Dependencies) (http.Handler, error) {
	cfg := deps.Config
	logger := deps.Logger

	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.Algorithm, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	adminRepo := store.NewAdminRepository(deps.DB)
	authService := services.NewAuthService(adminRepo, hasher, tokens, logger)
	blogService := services.NewBlogService(store.NewBlogRepository(deps.DB))
	newsletterService := services.NewNewsletterService(store.NewNewsletterRepository(deps.DB), deps.Notifier)
	contactService := services.NewContactService(store.NewContactRepository(deps.DB), deps.Notifier, logger)
	fileService := services.NewFileService(store.NewFileRepository(deps.DB), deps.Objects, logger)
	sectionService := services.NewSectionService(store.NewSectionRepository(deps.DB))

	requireAdmin := handlers.RequireAdmin(auth.NewGuard(tokens, adminRepo), logger)
	loginLimit := rateLimit(cfg.RateLimit.LoginPerMinute)
	publicLimit := rateLimit(cfg.RateLimit.PublicPerMinute)
	fileHandler := handlers.NewFileHandler(fileService, cfg.Storage.MaxUploadBytes, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(logger),
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			ExposedHeaders:   []string{"X-Request-Id", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.Timeout(requestTimeout),
	)

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"message": "Personal Website API"})
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.PingContext(r.Context()); err != nil {
			logger.WarnContext(r.Context(), "readiness check failed", "error", err)
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, requireAdmin, loginLimit, logger)
	})
	router.Route("/blog", func(r chi.Router) {
		handlers.BlogRouter(r, blogService, requireAdmin, logger)
	})
	router.Route("/newsletter", func(r chi.Router) {
		handlers.NewsletterRouter(r, newsletterService, requireAdmin, publicLimit, logger)
	})
	router.Route("/contact", func(r chi.Router) {
		handlers.ContactRouter(r, contactService, requireAdmin, publicLimit, logger)
	})
	router.Route("/files", func(r chi.Router) {
		handlers.FileRouter(r, fileHandler, requireAdmin)
	})
	router.Route("/uploads", func(r chi.Router) {
		handlers.UploadsRouter(r, fileHandler)
	})
	router.Route("/sections", func(r chi.Router) {
		handlers.SectionRouter(r, sectionService, requireAdmin, logger)
	})

	return router, nil
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	db         *sqlx.DB
	queue      *mq.MQ
	dispatcher *notify.Dispatcher
}

// New opens the database, object storage and message queue and builds the
// HTTP server on top of them.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := db.MigrateUp(dbConn, cfg.Database); err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}

	handler, err := NewHandler(Dependencies{
		Config:   cfg,
		Logger:   logger,
		DB:       dbConn,
		Objects:  objects,
		Notifier: notify.NewNotifier(queue),
	})
	if err != nil {
		_ = queue.Close()
		_ = dbConn.Close()
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * requestTimeout,
			IdleTimeout:  120 * time.Second,
		},
		db:         dbConn,
		queue:      queue,
		dispatcher: notify.NewDispatcher(mail.New(cfg.Mail, logger), cfg.Mail.AdminEmail, logger),
	}, nil
}

// Handler exposes the router, useful for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe runs the HTTP server until ctx is cancelled and then shuts
// down gracefully. With the in-process queue, notifications are delivered by
// a dispatcher running alongside the server.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if s.queue.Local() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.dispatcher.Run(ctx, s.queue); err != nil {
				s.logger.Error("notification dispatcher stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		serveErr = fmt.Errorf("server listen: %w", serveErr)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("server shutdown: %w", err)
	}

	cancel()
	wg.Wait()
	return errors.Join(serveErr, s.Close())
}

// Close releases the queue and the database.
func (s *Server) Close() error {
	var errs []error
	if s.queue != nil {
		errs = append(errs, s.queue.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	s.logger.Info("server stopped")
	return errors.Join(errs...)
}
