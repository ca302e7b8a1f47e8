package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/approval-workflow/internal/application/service"
	"github.com/garyjia/approval-workflow/internal/application/workflow"
)

// EnvPrefix prefixes every environment override, e.g. APPROVAL_SERVER_PORT
const EnvPrefix = "APPROVAL"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Directory DirectoryConfig `mapstructure:"directory"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkflowConfig describes the approval chain and application numbering
type WorkflowConfig struct {
	Nodes         []NodeConfig `mapstructure:"nodes"`
	EndNodeLabel  string       `mapstructure:"end_node_label"`
	AppNoStrategy string       `mapstructure:"app_no_strategy"`
}

// NodeConfig is one approval node. UserID and UserName apply to the fixed strategy, Role to the role strategy.
type NodeConfig struct {
	Name     string `mapstructure:"name"`
	Strategy string `mapstructure:"strategy"`
	UserID   int64  `mapstructure:"user_id"`
	UserName string `mapstructure:"user_name"`
	Role     string `mapstructure:"role"`
}

// DirectoryConfig holds the directory lookup cache settings
type DirectoryConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Load loads configuration from an optional .env file, the config file and environment variables.
// An empty configPath runs on defaults and environment only.
func Load(configPath string) (*Config, error) {
	return LoadWithEnvFile(configPath, ".env")
}

// LoadWithEnvFile is Load with an explicit dotenv file; a missing file is skipped
func LoadWithEnvFile(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Workflow.Nodes) == 0 {
		cfg.Workflow.Nodes = defaultNodes()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/approval.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Workflow defaults; nodes fall back to the department manager hop after unmarshal
	v.SetDefault("workflow.end_node_label", workflow.DefaultEndLabel)
	v.SetDefault("workflow.app_no_strategy", service.AppNoStrategyDaily)

	v.SetDefault("directory.cache_ttl", 5*time.Minute)
}

// bindEnvVars binds the short environment names used by deployments
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.port":   {"APPROVAL_SERVER_PORT", "PORT"},
		"database.path": {"APPROVAL_DATABASE_PATH", "APPROVAL_DB_PATH"},
		"logger.level":  {"APPROVAL_LOGGER_LEVEL", "LOG_LEVEL"},
	}
	for key, names := range bindings {
		input := append([]string{key}, names...)
		if err := v.BindEnv(input...); err != nil {
			return err
		}
	}
	return nil
}

func defaultNodes() []NodeConfig {
	specs := workflow.DefaultNodes()
	nodes := make([]NodeConfig, 0, len(specs))
	for _, s := range specs {
		nodes = append(nodes, NodeConfig{
			Name:     s.Name,
			Strategy: s.Strategy,
			UserID:   s.UserID,
			UserName: s.UserName,
			Role:     s.Role,
		})
	}
	return nodes
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Workflow.AppNoStrategy {
	case service.AppNoStrategyDaily, service.AppNoStrategyLegacy:
	default:
		return fmt.Errorf("workflow.app_no_strategy must be %q or %q, got %q",
			service.AppNoStrategyDaily, service.AppNoStrategyLegacy, c.Workflow.AppNoStrategy)
	}

	if len(c.Workflow.Nodes) == 0 {
		return fmt.Errorf("workflow.nodes must not be empty")
	}
	for i, n := range c.Workflow.Nodes {
		if err := n.validate(); err != nil {
			return fmt.Errorf("workflow.nodes[%d]: %w", i, err)
		}
	}

	if c.Directory.CacheTTL < 0 {
		return fmt.Errorf("directory.cache_ttl must not be negative")
	}

	return nil
}

func (n NodeConfig) validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("name is required")
	}
	switch n.Strategy {
	case workflow.StrategyFixed:
		if n.UserID <= 0 {
			return fmt.Errorf("fixed node %q needs user_id", n.Name)
		}
	case workflow.StrategyRole:
		if n.Role == "" {
			return fmt.Errorf("role node %q needs role", n.Name)
		}
	case workflow.StrategyDeptLeader:
	default:
		return fmt.Errorf("unknown strategy %q", n.Strategy)
	}
	return nil
}

// NodeSpecs converts the configured nodes for the workflow chain
func (c WorkflowConfig) NodeSpecs() []workflow.NodeSpec {
	specs := make([]workflow.NodeSpec, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		specs = append(specs, workflow.NodeSpec{
			Name:     n.Name,
			Strategy: n.Strategy,
			UserID:   n.UserID,
			UserName: n.UserName,
			Role:     n.Role,
		})
	}
	return specs
}
