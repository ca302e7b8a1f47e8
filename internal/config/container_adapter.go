package config

import (
	"github.com/garyjia/approval-workflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
		Workflow: container.WorkflowConfig{
			Nodes:         c.Workflow.NodeSpecs(),
			EndLabel:      c.Workflow.EndNodeLabel,
			AppNoStrategy: c.Workflow.AppNoStrategy,
		},
		Directory: container.DirectoryConfig{
			CacheTTL: c.Directory.CacheTTL,
		},
	}
}
