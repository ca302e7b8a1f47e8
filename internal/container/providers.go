package container

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/service"
	"github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/cache"
	"github.com/garyjia/approval-workflow/internal/infrastructure/export"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/garyjia/approval-workflow/internal/interfaces/http"
	"github.com/garyjia/approval-workflow/pkg/database"
	"github.com/garyjia/approval-workflow/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite database, applies the embedded migrations
// and wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).Run()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Database migrations completed", zap.Int("applied", applied))

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repository instances.
func ProvideRepositories(db *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Application: repository.NewApplicationRepository(db, logger),
		Detail:      repository.NewDetailRepository(db, logger),
		Task:        repository.NewTaskRepository(db, logger),
		History:     repository.NewHistoryRepository(db, logger),
		Sequence:    repository.NewSequenceRepository(db, logger),
		Directory:   repository.NewDirectoryRepository(db, logger),
	}, nil
}

// ProvideDirectory wraps the directory repository with the lookup cache.
func ProvideDirectory(inner port.DirectoryReader, cfg *DirectoryConfig, logger *zap.Logger) (*cache.DirectoryCache, error) {
	if inner == nil {
		return nil, fmt.Errorf("directory reader is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("directory config is required")
	}

	return cache.NewDirectoryCache(inner, cfg.CacheTTL, logger.Named("directory")), nil
}

// ProvideDispatcher creates the event dispatcher with the audit log subscribed.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	d := dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewServiceLogger(logger.Named("dispatcher"))))
	dispatcher.SubscribeAudit(d, logger.Named("audit"))
	return d, nil
}

// ProvideWorkflowEngine builds the approval chain and its engine.
func ProvideWorkflowEngine(cfg *WorkflowConfig, directory port.DirectoryReader) (workflow.WorkflowEngine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow config is required")
	}

	chain, err := workflow.NewChain(cfg.Nodes, cfg.EndLabel, directory)
	if err != nil {
		return nil, fmt.Errorf("failed to build approval chain: %w", err)
	}

	return workflow.NewEngine(chain), nil
}

// ServiceDeps holds dependencies needed to create services.
type ServiceDeps struct {
	Repos         *RepositoryBundle
	Directory     port.DirectoryReader
	TxManager     port.TransactionManager
	Dispatcher    dispatcher.Dispatcher
	Engine        workflow.WorkflowEngine
	Exporter      port.HistoryExporter
	AppNoStrategy string
	Logger        *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("workflow engine is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	appNo, err := service.NewAppNoGenerator(deps.AppNoStrategy, deps.Repos.Sequence, deps.Repos.Application)
	if err != nil {
		return nil, err
	}

	logger := utils.NewServiceLogger(deps.Logger.Named("service"))
	repos := deps.Repos

	tasks := service.NewTaskService(
		repos.Task,
		repos.Application,
		repos.History,
		deps.Directory,
		deps.Engine,
		logger,
	)

	applications := service.NewApplicationService(
		repos.Application,
		repos.Detail,
		repos.History,
		repos.Task,
		deps.Directory,
		tasks,
		deps.Engine,
		appNo,
		deps.TxManager,
		deps.Dispatcher,
		logger,
	)

	decisions := service.NewDecisionService(
		repos.Task,
		repos.Application,
		repos.History,
		deps.Directory,
		tasks,
		deps.Engine,
		deps.TxManager,
		deps.Dispatcher,
		logger,
	)

	history := service.NewHistoryService(
		repos.Application,
		repos.Detail,
		repos.History,
		deps.Directory,
		deps.Exporter,
		logger,
	)

	return &ServiceBundle{
		Applications: applications,
		Decisions:    decisions,
		Tasks:        tasks,
		History:      history,
	}, nil
}

// ProvideExporter creates the history exporter.
func ProvideExporter(logger *zap.Logger) port.HistoryExporter {
	return export.NewExcelExporter(logger.Named("export"))
}

// ProvideHTTPServer creates the HTTP adapter over the application services.
func ProvideHTTPServer(cfg *ServerConfig, services *ServiceBundle, directory port.DirectoryReader, exporter port.HistoryExporter, logger *zap.Logger) (*httpapi.Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config is required")
	}
	if services == nil {
		return nil, fmt.Errorf("services are required")
	}

	return httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, httpapi.Services{
		Applications: services.Applications,
		Decisions:    services.Decisions,
		Tasks:        services.Tasks,
		History:      services.History,
		Directory:    directory,
		Exporter:     exporter,
	}, utils.NewServiceLogger(logger.Named("http"))), nil
}
