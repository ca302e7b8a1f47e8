// Package container provides dependency injection and lifecycle management
// for the approval workflow system following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/approval-workflow/internal/application/service"
	"github.com/garyjia/approval-workflow/internal/application/workflow"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Server configuration
	Server ServerConfig

	// Workflow configuration
	Workflow WorkflowConfig

	// Directory configuration
	Directory DirectoryConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits on a locked database
	BusyTimeout time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// WorkflowConfig holds the approval chain settings.
type WorkflowConfig struct {
	// Nodes is the ordered approval chain
	Nodes []workflow.NodeSpec

	// EndLabel is recorded as the next node of a finishing decision
	EndLabel string

	// AppNoStrategy is daily or legacy
	AppNoStrategy string
}

// DirectoryConfig holds directory lookup settings.
type DirectoryConfig struct {
	// CacheTTL is how long user, dept, post and role lookups are cached
	CacheTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/approval.db",
			MaxOpenConns: 4,
			MaxIdleConns: 4,
			BusyTimeout:  5 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Workflow: WorkflowConfig{
			Nodes:         workflow.DefaultNodes(),
			EndLabel:      workflow.DefaultEndLabel,
			AppNoStrategy: service.AppNoStrategyDaily,
		},
		Directory: DirectoryConfig{
			CacheTTL: 5 * time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port is required")
	}

	if len(c.Workflow.Nodes) == 0 {
		return fmt.Errorf("workflow.nodes is required")
	}

	return nil
}
