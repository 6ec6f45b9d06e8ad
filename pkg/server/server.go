// Package server mounts navdb's REST, GraphQL, and WebSocket surfaces
// over a pkg/engine.Engine, grounded on the teacher's pkg/server (chi
// router, middleware stack, graceful shutdown) but routed against
// SPEC_FULL.md's §4.12 endpoint table instead of the teacher's
// page-store API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/navdb/navdb/pkg/auth"
	"github.com/navdb/navdb/pkg/backup"
	"github.com/navdb/navdb/pkg/database"
	"github.com/navdb/navdb/pkg/engine"
	gql "github.com/navdb/navdb/pkg/graphql"
	"github.com/navdb/navdb/pkg/logging"
)

// Server is the HTTP server for navdb.
type Server struct {
	config      *Config
	engine      *engine.Engine
	authManager *auth.Manager
	broadcaster *logging.Broadcaster
	router      *chi.Mux
	httpSrv     *http.Server
	startTime   time.Time
}

// New builds a Server over a fresh Engine rooted at config.DataDir.
func New(config *Config) (*Server, error) {
	registry := database.NewRegistry(config.DataDir)
	authManager := auth.NewManager()
	guard := auth.NewGuard(authManager)
	backups := backup.NewManager(config.DataDir)
	broadcaster := logging.NewBroadcaster()
	log := logging.NewMulti(logging.NewStdout(), broadcaster)
	eng := engine.New(registry, guard, backups, log)

	srv := &Server{
		config:      config,
		engine:      eng,
		authManager: authManager,
		broadcaster: broadcaster,
		router:      chi.NewRouter(),
		startTime:   time.Now(),
	}

	srv.setupMiddleware()
	if err := srv.setupRoutes(); err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return srv, nil
}

// AuthManager exposes the server's account store, e.g. for an
// administrator to provision users before exposing the port.
func (s *Server) AuthManager() *auth.Manager { return s.authManager }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}
	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}
	s.router.Use(s.requestSizeLimitMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.config.AllowedOrigins) > 0 {
			origin = s.config.AllowedOrigins[0]
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setupRoutes() error {
	s.router.Get("/_health", s.handleHealth)
	s.router.Get("/v1/events", s.broadcaster.ServeHTTP)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/databases/{db}", func(r chi.Router) {
			r.Post("/", s.handleCreateDatabase)
			r.Delete("/", s.handleDropDatabase)

			r.Route("/collections/{coll}", func(r chi.Router) {
				r.Post("/", s.handleCreateCollection)
				r.Delete("/", s.handleDropCollection)

				r.Route("/documents", func(r chi.Router) {
					r.Post("/", s.handleInsert)
					r.Get("/", s.handleFind)
					r.Patch("/", s.handleUpdate)
					r.Delete("/", s.handleDelete)
					r.Get("/count", s.handleCount)
				})
				r.Post("/aggregate", s.handleAggregate)
				r.Post("/indexes", s.handleCreateIndex)
				r.Get("/indexes", s.handleListIndexes)
				r.Post("/indexing", s.handleEnableIndexing)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Post("/", s.handleBeginTx)
				r.Post("/commit", s.handleCommit)
				r.Post("/rollback", s.handleRollback)
			})
		})

		r.Post("/backups/{db}", s.handleBackup)
		r.Post("/restores/{db}", s.handleRestore)
	})

	if s.config.EnableGraphQL {
		handler, err := gql.NewHandler(s.engine)
		if err != nil {
			return fmt.Errorf("failed to build GraphQL handler: %w", err)
		}
		s.router.With(s.authenticate).Post("/graphql", handler.ServeHTTP)
		s.router.Get("/graphiql", gql.GraphiQLHandler())
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]interface{}{"uptime": time.Since(s.startTime).String()})
}

// Start runs the HTTP server until an OS signal or a listener error.
func (s *Server) Start() error {
	fmt.Printf("navdb server starting on http://%s:%d\n", s.config.Host, s.config.Port)
	fmt.Printf("data directory: %s\n", s.config.DataDir)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, result interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "result": result})
}
