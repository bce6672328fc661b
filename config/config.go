// Package config loads the CLI configuration from YAML with ${VAR}
// substitution and CONNECTOR_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Skryldev/sql-connector/db"
	"github.com/Skryldev/sql-connector/logging"
)

// Config is the connector's runtime configuration.
type Config struct {
	// Connection is the orchestrator configuration string, e.g.
	// ConnectionString='...';Provider='PostgreSQL.9.5';
	Connection string         `yaml:"connection"`
	Connector  ConnectorConfig `yaml:"connector"`
	Pool       PoolConfig      `yaml:"pool"`
	Retry      RetryConfig     `yaml:"retry"`
	Log        logging.Config  `yaml:"log"`
}

// ConnectorConfig names the connector and toggles start-up behaviour.
type ConnectorConfig struct {
	Name        string `yaml:"name"`
	AutoMigrate bool   `yaml:"auto_migrate"`
	// LogFile, when set, sends connector messages to a flat file instead
	// of the zap outputs.
	LogFile            string        `yaml:"log_file"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

// PoolConfig mirrors the pool fields of db.Config.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	DefaultTimeout  time.Duration `yaml:"default_timeout"`
}

// RetryConfig mirrors db.RetryConfig.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Connector: ConnectorConfig{
			Name:               "sql-connector",
			SlowQueryThreshold: 200 * time.Millisecond,
		},
		Pool: PoolConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			DefaultTimeout:  10 * time.Second,
		},
		Retry: RetryConfig{MaxAttempts: 1},
		Log:   logging.Config{Level: "info", Encoding: "json"},
	}
}

// Load reads the YAML file at path on top of Default and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		content := substituteEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first missing required setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Connection) == "" {
		return fmt.Errorf("config: connection is required (set it in the file or CONNECTOR_CONNECTION)")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("config: retry.max_attempts must not be negative")
	}
	return nil
}

// DBConfig converts the pool section into db.Config. Hooks are added by
// the caller.
func (c Config) DBConfig() db.Config {
	return db.Config{
		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifetime: c.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: c.Pool.ConnMaxIdleTime,
		DefaultTimeout:  c.Pool.DefaultTimeout,
	}
}

// RetryConfig converts the retry section into db.RetryConfig.
func (c Config) RetryConfig() db.RetryConfig {
	return db.RetryConfig{MaxAttempts: c.Retry.MaxAttempts, Delay: c.Retry.Delay}
}

// envOverrides maps environment variables onto fields.
var envOverrides = []struct {
	name  string
	apply func(*Config, string) error
}{
	{"CONNECTOR_CONNECTION", func(c *Config, v string) error { c.Connection = v; return nil }},
	{"CONNECTOR_NAME", func(c *Config, v string) error { c.Connector.Name = v; return nil }},
	{"CONNECTOR_LOG_FILE", func(c *Config, v string) error { c.Connector.LogFile = v; return nil }},
	{"CONNECTOR_LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"CONNECTOR_AUTO_MIGRATE", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Connector.AutoMigrate = b
		return nil
	}},
	{"CONNECTOR_RETRY_ATTEMPTS", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Retry.MaxAttempts = n
		return nil
	}},
	{"CONNECTOR_QUERY_TIMEOUT", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Pool.DefaultTimeout = d
		return nil
	}},
}

func applyEnv(cfg *Config) error {
	for _, o := range envOverrides {
		v, ok := os.LookupEnv(o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			return fmt.Errorf("config: %s: %w", o.name, err)
		}
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		content = content[:start] + os.Getenv(varName) + content[end+1:]
	}
	return content
}
