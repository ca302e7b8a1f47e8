package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/service"
	"github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	"github.com/garyjia/approval-workflow/internal/infrastructure/cache"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/garyjia/approval-workflow/internal/interfaces/http"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	directory    *cache.DirectoryCache
	exporter     port.HistoryExporter

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   workflow.WorkflowEngine
	services   *ServiceBundle

	// Interfaces
	httpServer *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Application port.ApplicationRepository
	Detail      port.DetailRepository
	Task        port.TaskRepository
	History     port.HistoryRepository
	Sequence    port.SequenceRepository
	Directory   *repository.DirectoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Applications service.ApplicationService
	Decisions    service.DecisionService
	Tasks        service.TaskService
	History      service.HistoryService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Directory cache and exporter
// 3. Event dispatcher and workflow engine
// 4. Application services
// 5. HTTP server
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initInfrastructure(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize infrastructure: %w", err)
	}
	c.logger.Info("Directory cache and exporter initialized")

	if err := c.initDispatcherAndWorkflow(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize dispatcher and workflow: %w", err)
	}
	c.logger.Info("Dispatcher and workflow engine initialized",
		zap.Int("nodes", c.workflow.Chain().Len()))

	if err := c.initServices(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initHTTPServer(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize http server: %w", err)
	}
	c.logger.Info("HTTP server initialized", zap.String("address", c.httpServer.Address()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Step 1: Stop HTTP server (reverse of step 5)
	if c.httpServer != nil {
		if err := c.httpServer.Stop(); err != nil {
			c.logger.Error("Failed to stop http server", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}

	// Step 2: Drop cached directory entries (reverse of step 2)
	if c.directory != nil {
		c.directory.Flush()
	}

	// Step 3: Close database (reverse of step 1)
	if err := c.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeDatabase() error {
	if c.sqlDB == nil {
		return nil
	}
	err := c.sqlDB.Close()
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	} else {
		c.logger.Info("Database closed")
	}
	c.sqlDB = nil
	return err
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	check := func(name string, ok bool, message string) {
		status.Components[name] = ComponentHealth{Healthy: ok, Message: message}
		if !ok {
			status.Overall = false
		}
	}

	// Check database
	switch {
	case c.sqlDB == nil:
		check("database", false, "not initialized")
	default:
		if err := c.sqlDB.Ping(); err != nil {
			check("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			check("database", true, "")
		}
	}

	if c.directory != nil {
		check("directory", true, fmt.Sprintf("cached entries: %d", c.directory.ItemCount()))
	} else {
		check("directory", false, "not initialized")
	}

	if c.dispatcher != nil {
		handlers := 0
		for _, t := range event.AllTypes() {
			handlers += len(c.dispatcher.ListHandlers(t))
		}
		check("dispatcher", true, fmt.Sprintf("handlers: %d", handlers))
	} else {
		check("dispatcher", false, "not initialized")
	}

	if c.workflow != nil {
		check("workflow", true, fmt.Sprintf("nodes: %d", c.workflow.Chain().Len()))
	} else {
		check("workflow", false, "not initialized")
	}

	if c.repositories != nil {
		check("repositories", true, "")
	} else {
		check("repositories", false, "not initialized")
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}

	c.repositories = repos
	return nil
}

// initInfrastructure initializes the directory cache and the history exporter.
func (c *Container) initInfrastructure() error {
	directory, err := ProvideDirectory(c.repositories.Directory, &c.config.Directory, c.logger)
	if err != nil {
		return err
	}
	c.directory = directory
	c.exporter = ProvideExporter(c.logger)
	return nil
}

// initDispatcherAndWorkflow initializes the event dispatcher and workflow engine using providers.
func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideWorkflowEngine(&c.config.Workflow, c.directory)
	if err != nil {
		return err
	}
	c.workflow = engine

	return nil
}

// initServices initializes all application services using providers.
func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:         c.repositories,
		Directory:     c.directory,
		TxManager:     c.db,
		Dispatcher:    c.dispatcher,
		Engine:        c.workflow,
		Exporter:      c.exporter,
		AppNoStrategy: c.config.Workflow.AppNoStrategy,
		Logger:        c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

func (c *Container) initHTTPServer() error {
	// Admin checks read the directory uncached so a revoked role takes effect at once
	server, err := ProvideHTTPServer(&c.config.Server, c.services, c.repositories.Directory, c.exporter, c.logger)
	if err != nil {
		return err
	}
	c.httpServer = server
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Directory returns the cached directory reader.
func (c *Container) Directory() port.DirectoryReader {
	return c.directory
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// HTTPServer returns the HTTP adapter.
func (c *Container) HTTPServer() *httpapi.Server {
	return c.httpServer
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
