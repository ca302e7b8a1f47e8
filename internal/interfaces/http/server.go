// Package http exposes the approval services over a gin JSON API.
// Handlers only bind, call one service and map the result.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/service"
	"github.com/garyjia/approval-workflow/pkg/utils"
)

// Logger is the key-value logger the handlers write to
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Services are the application services exposed over HTTP
type Services struct {
	Applications service.ApplicationService
	Decisions    service.DecisionService
	Tasks        service.TaskService
	History      service.HistoryService
	// Directory authorizes the admin routes; it should not be cached
	Directory port.DirectoryReader
	// Exporter names the download format; xlsx when nil
	Exporter port.HistoryExporter
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := utils.RegisterValidations(v); err != nil {
			logger.Error("Failed to register request validations", "error", err)
		}
	}

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery(), requestIDMiddleware(), accessLogMiddleware(s.logger))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.services, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api", identityMiddleware())
	{
		api.POST("/applications/leave", handlers.SubmitLeave)
		api.POST("/applications/reimburse", handlers.SubmitReimburse)
		api.GET("/applications", handlers.ListMyApplications)
		api.GET("/applications/:id", handlers.GetApplication)
		api.POST("/applications/:id/withdraw", handlers.Withdraw)

		api.GET("/tasks/todo", handlers.ListTodoTasks)
		api.GET("/tasks/done", handlers.ListDoneTasks)
		api.POST("/tasks/:id/decision", handlers.Decide)

		api.GET("/history", handlers.ListHistory)
		api.GET("/history/export", handlers.ExportHistory)
		api.GET("/summary", handlers.Summary)

		admin := api.Group("/admin", adminMiddleware(s.services.Directory))
		admin.GET("/applications", handlers.ListAllApplications)
		admin.GET("/applications/:id", handlers.AdminGetApplication)
	}
}

// Start binds the listen address and serves until ctx is cancelled or the
// server fails. A bind error is returned before anything is served.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Address())
	if err != nil {
		s.logger.Error("Failed to bind HTTP listener", "address", s.Address(), "error", err)
		return fmt.Errorf("failed to listen on %s: %w", s.Address(), err)
	}

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.logger.Info("HTTP server listening", "address", ln.Addr().String())

	served := make(chan error, 1)
	go func() { served <- s.httpServer.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("HTTP server failed", "error", err)
		return err
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop drains in-flight requests for at most ShutdownTimeout
func (s *Server) Stop() error {
	srv := s.httpServer
	if srv == nil {
		return nil
	}
	s.httpServer = nil

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shut down HTTP server", "error", err)
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the gin engine; tests drive it with httptest
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
