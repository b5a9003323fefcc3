// Package config provides configuration management for the topicscope CLI.
// Settings come from a YAML file (~/.topicscope/config.yaml by default),
// TOPICSCOPE_* environment variables and built-in defaults, in that order of
// precedence below explicit flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coregx/topicscope/model"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// BaseDirName is the directory under the user's home holding the config file
// and the default SQLite database.
const BaseDirName = ".topicscope"

// EnvPrefix prefixes every environment override, e.g. TOPICSCOPE_DATABASE_DRIVER.
const EnvPrefix = "TOPICSCOPE"

// Config holds all configuration for the topicscope CLI.
type Config struct {
	Server     ServerConfig           `mapstructure:"server"`
	Database   DatabaseConfig         `mapstructure:"database"`
	Log        LogConfig              `mapstructure:"log"`
	Client     ClientConfig           `mapstructure:"client"`
	Connection model.ConnectionConfig `mapstructure:"connection"`
}

// ServerConfig holds the HTTP control API configuration.
type ServerConfig struct {
	Listen string `mapstructure:"listen"` // host:port, empty disables the API
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // mysql, postgres, sqlite3
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"` // Database name, or file path for sqlite3
	Prefix   string `mapstructure:"prefix"`   // Table prefix (default: "topicscope_")
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// ClientConfig holds client tuning knobs.
type ClientConfig struct {
	IdleCheckInterval int  `mapstructure:"idle_check_interval"` // Milliseconds
	MaxLogs           int  `mapstructure:"max_logs"`            // Per new session, 0 = default
	QoS               int  `mapstructure:"qos"`                 // Subscription QoS of new sessions
	Notifications     bool `mapstructure:"notifications"`       // Log state changes when no console runs
}

// BaseDir returns $HOME/.topicscope, or .topicscope when the home directory
// is unknown.
func BaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return BaseDirName
	}
	return filepath.Join(home, BaseDirName)
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", filepath.Join(BaseDir(), "topicscope.db"))
	v.SetDefault("database.prefix", "topicscope_")

	v.SetDefault("log.level", "info")

	v.SetDefault("client.idle_check_interval", 1000)
	v.SetDefault("client.max_logs", model.DefaultMaxLogs)
	v.SetDefault("client.qos", 0)
	v.SetDefault("client.notifications", true)

	conn := model.DefaultConnectionConfig()
	v.SetDefault("connection.mode", string(conn.Mode))
	v.SetDefault("connection.client_id", "")
	v.SetDefault("connection.protocol", conn.Protocol)
	v.SetDefault("connection.host", "")
	v.SetDefault("connection.port", conn.Port)
	v.SetDefault("connection.path", conn.Path)
	v.SetDefault("connection.ssl", false)
	v.SetDefault("connection.username", "")
	v.SetDefault("connection.password", "")
	v.SetDefault("connection.pub_topic", "")
	v.SetDefault("connection.auto_reconnect", false)
	v.SetDefault("connection.keep_alive", conn.KeepAlive)
}

// Load reads configuration into v and returns the validated result.
//
// With cfgFile set that file must exist; otherwise config.yaml is looked up
// in BaseDir and a missing file is not an error.
//
// Example:
//
//	cfg, err := config.Load(viper.New(), "")
//	if err != nil {
//	    return err
//	}
//	db, err := sql.Open(cfg.Database.Driver, cfg.Database.GetDSN())
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(BaseDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Database),
		validation.Field(&c.Log),
		validation.Field(&c.Client),
		validation.Field(&c.Connection),
	)
}

// Validate checks the driver and the fields it needs.
func (c DatabaseConfig) Validate() error {
	networked := c.Driver == "mysql" || c.Driver == "postgres"
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In("mysql", "postgres", "sqlite3")),
		validation.Field(&c.Database, validation.Required),
		validation.Field(&c.Host, validation.When(networked, validation.Required)),
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	)
}

// Validate checks the level name.
func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
	)
}

// Validate checks client knobs.
func (c ClientConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.IdleCheckInterval, validation.Required, validation.Min(10)),
		validation.Field(&c.MaxLogs, validation.Min(0)),
		validation.Field(&c.QoS, validation.Min(0), validation.Max(model.MaxQoS)),
	)
}

// GetDSN returns the database connection string based on driver.
func (c *DatabaseConfig) GetDSN() string {
	switch strings.ToLower(c.Driver) {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.port(3306), c.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.port(5432), c.User, c.Password, c.Database)
	case "sqlite3":
		return c.Database // SQLite uses file path as DSN
	default:
		return ""
	}
}

func (c *DatabaseConfig) port(fallback int) int {
	if c.Port > 0 {
		return c.Port
	}
	return fallback
}
