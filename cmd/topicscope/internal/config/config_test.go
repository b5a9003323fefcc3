package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/coregx/topicscope/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "topicscope.db", filepath.Base(cfg.Database.Database))
	assert.Equal(t, "topicscope_", cfg.Database.Prefix)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Server.Listen)
	assert.Equal(t, 1000, cfg.Client.IdleCheckInterval)
	assert.Equal(t, model.DefaultMaxLogs, cfg.Client.MaxLogs)
	assert.True(t, cfg.Client.Notifications)
	assert.Equal(t, model.DefaultConnectionConfig(), cfg.Connection)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: 127.0.0.1:8088
log:
  level: debug
connection:
  mode: stream
  host: broker.local
  port: 9001
  pub_topic: cmd/out
  auto_reconnect: true
client:
  qos: 1
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8088", cfg.Server.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, model.ModeStream, cfg.Connection.Mode)
	assert.Equal(t, "broker.local", cfg.Connection.Host)
	assert.Equal(t, 9001, cfg.Connection.Port)
	assert.Equal(t, "cmd/out", cfg.Connection.PubTopic)
	assert.True(t, cfg.Connection.AutoReconnect)
	assert.Equal(t, model.DefaultPath, cfg.Connection.Path, "unset keys keep defaults")
	assert.Equal(t, 1, cfg.Client.QoS)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("TOPICSCOPE_LOG_LEVEL", "warn")
	t.Setenv("TOPICSCOPE_CONNECTION_HOST", "env.local")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "env.local", cfg.Connection.Host)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown driver", body: "database:\n  driver: oracle\n"},
		{name: "mysql without host", body: "database:\n  driver: mysql\n  host: \"\"\n"},
		{name: "bad level", body: "log:\n  level: loud\n"},
		{name: "bad qos", body: "client:\n  qos: 3\n"},
		{name: "bad mode", body: "connection:\n  mode: carrier-pigeon\n"},
		{name: "tiny idle interval", body: "client:\n  idle_check_interval: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "mysql default port",
			cfg:  DatabaseConfig{Driver: "mysql", Host: "db", User: "u", Password: "p", Database: "ts"},
			want: "u:p@tcp(db:3306)/ts?parseTime=true",
		},
		{
			name: "postgres",
			cfg:  DatabaseConfig{Driver: "postgres", Host: "db", Port: 6543, User: "u", Password: "p", Database: "ts"},
			want: "host=db port=6543 user=u password=p dbname=ts sslmode=disable",
		},
		{
			name: "sqlite3",
			cfg:  DatabaseConfig{Driver: "sqlite3", Database: "/tmp/ts.db"},
			want: "/tmp/ts.db",
		},
		{
			name: "unknown",
			cfg:  DatabaseConfig{Driver: "oracle"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.GetDSN())
		})
	}
}
