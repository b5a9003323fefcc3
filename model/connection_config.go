package model

import (
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Mode selects the transport a Client dials.
type Mode string

const (
	// ModeMQTT is a publish/subscribe broker link (MQTT over ws, wss or tcp).
	ModeMQTT Mode = "mqtt"

	// ModeStream is a plain websocket stream without topics on the wire.
	ModeStream Mode = "stream"
)

// Connection defaults used when the config leaves a field empty.
const (
	DefaultProtocol  = "ws"
	DefaultPort      = 8884
	DefaultPath      = "/mqtt"
	DefaultKeepAlive = 60
)

// ConnectionConfig describes where and how to connect.
//
// BuildURL composes the URL from Protocol, Host, Port and Path. A FormState
// URL, when set, takes precedence over the composed one.
type ConnectionConfig struct {
	Mode          Mode   `json:"mode" yaml:"mode" mapstructure:"mode"`
	ClientID      string `json:"clientId" yaml:"clientId" mapstructure:"client_id"`
	Protocol      string `json:"protocol" yaml:"protocol" mapstructure:"protocol"` // ws, wss, mqtt, mqtts or tcp
	Host          string `json:"host" yaml:"host" mapstructure:"host"`
	Port          int    `json:"port" yaml:"port" mapstructure:"port"`
	Path          string `json:"path" yaml:"path" mapstructure:"path"`
	SSL           bool   `json:"ssl" yaml:"ssl" mapstructure:"ssl"` // Forces wss
	Username      string `json:"username" yaml:"username" mapstructure:"username"`
	Password      string `json:"password" yaml:"password" mapstructure:"password"`
	PubTopic      string `json:"pubTopic" yaml:"pubTopic" mapstructure:"pub_topic"` // Publish target for Send in MQTT mode
	AutoReconnect bool   `json:"autoReconnect" yaml:"autoReconnect" mapstructure:"auto_reconnect"`
	KeepAlive     int    `json:"keepAlive" yaml:"keepAlive" mapstructure:"keep_alive"` // Seconds
}

// DefaultConnectionConfig returns the config of a fresh install.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Mode:      ModeMQTT,
		Protocol:  DefaultProtocol,
		Port:      DefaultPort,
		Path:      DefaultPath,
		KeepAlive: DefaultKeepAlive,
	}
}

// EffectiveProtocol returns the scheme BuildURL uses.
func (c ConnectionConfig) EffectiveProtocol() string {
	if c.SSL {
		return "wss"
	}
	if c.Protocol == "" {
		return DefaultProtocol
	}
	return c.Protocol
}

// BuildURL composes protocol://host[:port][/path]. A path without a leading
// slash gets one. An empty host yields an empty URL.
//
// Example:
//
//	cfg := model.ConnectionConfig{Host: "broker.local", Port: 8884, Path: "mqtt"}
//	cfg.BuildURL() // "ws://broker.local:8884/mqtt"
func (c ConnectionConfig) BuildURL() string {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(c.EffectiveProtocol())
	b.WriteString("://")
	b.WriteString(host)
	if c.Port > 0 {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(c.Port))
	}
	if path := strings.TrimSpace(c.Path); path != "" {
		if !strings.HasPrefix(path, "/") {
			b.WriteString("/")
		}
		b.WriteString(path)
	}
	return b.String()
}

// Validate checks field ranges. Host is optional because a FormState URL may
// replace the composed one.
func (c ConnectionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.In(ModeMQTT, ModeStream)),
		validation.Field(&c.Protocol, validation.In("ws", "wss", "mqtt", "mqtts", "tcp")),
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&c.ClientID, validation.Length(0, 128)),
		validation.Field(&c.PubTopic, validation.Length(0, 255)),
		validation.Field(&c.KeepAlive, validation.Min(0), validation.Max(65535)),
	)
}
