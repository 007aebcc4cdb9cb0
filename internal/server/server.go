package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/wanderlog/apiserver/config"
	"github.com/wanderlog/apiserver/internal/db"
	"github.com/wanderlog/apiserver/internal/handlers"
	"github.com/wanderlog/apiserver/internal/logging"
	"github.com/wanderlog/apiserver/internal/mq"
	"github.com/wanderlog/apiserver/internal/services"
	"github.com/wanderlog/apiserver/internal/storage"
	"github.com/wanderlog/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	storage    *storage.Storage
	mq         *mq.MQ
	log        logrus.FieldLogger
}

// New opens the database, object storage and, when configured, the
// message broker, then wires the HTTP routes.
func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = objects.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	storyRepo := store.NewStoryRepository(dbConn)

	imageService := services.NewImageService(objects)
	var releaser services.ImageReleaser = imageService
	if cfg.ImageReleaseMode == config.ImageReleaseQueue && broker != nil {
		releaser = mq.NewImageReleasePublisher(broker, cfg.MQ.ImageReleaseChannel)
	}

	userService := services.NewUserService(userRepo)
	storyService := services.NewStoryService(storyRepo, userRepo, releaser, cfg.PlaceholderImageURL, log)

	authHandler := handlers.NewAuthHandler(userService, cfg.JWTSecret, cfg.TokenTTL, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(log),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	handlers.AuthRouter(router, authHandler)
	handlers.StoryRouter(router, handlers.NewStoryHandler(storyService, log), authHandler.RequireAuth)
	handlers.ImageRouter(router, handlers.NewImageHandler(imageService, log), authHandler.RequireAuth)

	port := cfg.ServerPort
	if port == 0 {
		port = 8000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		db:         dbConn,
		storage:    objects,
		mq:         broker,
		log:        log,
	}, nil
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker, storage
// client and connection pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if cerr := s.mq.Close(); cerr != nil {
			s.log.WithError(cerr).Warn("failed to close mq")
		}
	}
	if s.storage != nil {
		if cerr := s.storage.Close(); cerr != nil {
			s.log.WithError(cerr).Warn("failed to close storage")
		}
	}
	if s.db != nil {
		if cerr := s.db.Close(); cerr != nil {
			s.log.WithError(cerr).Warn("failed to close database")
		}
	}
	return err
}
