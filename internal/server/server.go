// Package server is the composition root: it opens the datastore, builds the
// service and handler layers, and wires every route behind the right
// middleware.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ymatsuda/quillpost/internal/auth"
	"github.com/ymatsuda/quillpost/internal/handler"
	"github.com/ymatsuda/quillpost/internal/identity"
	"github.com/ymatsuda/quillpost/internal/middleware"
	"github.com/ymatsuda/quillpost/internal/repository"
	"github.com/ymatsuda/quillpost/internal/repository/postgres"
	sqliteRepo "github.com/ymatsuda/quillpost/internal/repository/sqlite"
	"github.com/ymatsuda/quillpost/internal/service"
	"github.com/ymatsuda/quillpost/internal/storage"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port int

	// DatabaseURL selects the Postgres backend when set; otherwise the
	// embedded SQLite database at DBPath is used.
	DatabaseURL string
	DBPath      string

	AuthSecret string
	AuthIssuer string

	// WebhookSecret signs identity provider deliveries ("whsec_..."). When
	// empty the webhook endpoint rejects all deliveries.
	WebhookSecret string

	// IdentityAPIURL and IdentityAPIKey enable on-demand profile fetches
	// from the identity provider's management API. Both optional.
	IdentityAPIURL string
	IdentityAPIKey string

	Storage storage.Config
}

// Server owns the router and the datastore it was built around.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  repository.Store
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (repository.Store, error) {
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres database: %w", err)
		}
		logger.Info("using postgres datastore")
		return db, nil
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	logger.Info("using sqlite datastore", slog.String("path", cfg.DBPath))
	return db, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.RequestLogger(s.logger))

	tokens, err := auth.NewTokenService(s.config.AuthSecret, s.config.AuthIssuer)
	if err != nil {
		return fmt.Errorf("configuring token verification: %w", err)
	}

	// The profile fetcher is optional; without it /api/me serves only users
	// already synced locally.
	var provider service.ProfileFetcher
	if s.config.IdentityAPIURL != "" && s.config.IdentityAPIKey != "" {
		provider = identity.NewClient(s.config.IdentityAPIURL, s.config.IdentityAPIKey)
	}

	postService := service.NewPostService(s.store, s.store, s.logger)
	tagService := service.NewTagService(s.store, s.logger)
	favoriteService := service.NewFavoriteService(s.store, s.store, s.logger)
	userService := service.NewUserService(s.store, provider, s.logger)

	postHandler := handler.NewPostHandler(postService, s.logger)
	tagHandler := handler.NewTagHandler(tagService, s.logger)
	favoriteHandler := handler.NewFavoriteHandler(favoriteService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.config.WebhookSecret, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Route("/api", func(r chi.Router) {
		// Unauthenticated surface.
		r.Route("/public", func(r chi.Router) {
			r.Get("/posts", postHandler.HandlePublicList)
			r.Get("/posts/{id}", postHandler.HandlePublicGet)
			r.Get("/tags", tagHandler.HandleList)
		})
		r.Post("/webhooks/identity", userHandler.HandleIdentityWebhook)

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/posts", postHandler.HandleList)
			r.Post("/posts", postHandler.HandleCreate)
			r.Get("/posts/{id}", postHandler.HandleGet)
			r.Put("/posts/{id}", postHandler.HandleUpdate)
			r.Delete("/posts/{id}", postHandler.HandleDelete)

			r.Get("/tags", tagHandler.HandleList)
			r.Post("/tags", tagHandler.HandleCreate)

			r.Get("/favorites", favoriteHandler.HandleList)
			r.Post("/favorites", favoriteHandler.HandleAdd)
			r.Delete("/favorites", favoriteHandler.HandleRemove)

			r.Post("/sync-user", userHandler.HandleSync)
			r.Get("/me", userHandler.HandleMe)

			if s.config.Storage.Endpoint != "" {
				images, err := storage.NewMinioStore(s.config.Storage, s.logger)
				if err != nil {
					s.logger.Error("object storage unavailable, image routes disabled",
						slog.String("error", err.Error()))
					return
				}
				imageHandler := handler.NewImageHandler(images, s.logger)
				r.Post("/images", imageHandler.HandleUpload)
				r.Delete("/images", imageHandler.HandleDelete)
			}
		})
	})

	return nil
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until a shutdown signal arrives, then drains
// in-flight requests and closes the datastore.
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.Int("port", s.config.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
