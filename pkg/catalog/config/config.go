// Package config reads the connection configuration of a catalog client.
// Keys are accepted in any case; values are read once at client
// construction.
package config

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	DefaultScheme = "http"
	DefaultHost   = "localhost"
	DefaultPort   = 9999
)

// Connection is the resolved configuration of one endpoint.
type Connection struct {
	Scheme string
	Host   string
	Port   int
	APIKey string
	Logger zerolog.Logger
}

// FromMap resolves a configuration from a settings map with
// case-insensitive keys (Scheme, Host, Port, ApiKey).
func FromMap(settings map[string]any) (Connection, error) {
	v := viper.New()
	v.SetDefault("scheme", DefaultScheme)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)

	if err := v.MergeConfigMap(settings); err != nil {
		return Connection{}, fmt.Errorf("invalid connection settings: %w", err)
	}

	conn := Connection{
		Scheme: v.GetString("scheme"),
		Host:   v.GetString("host"),
		Port:   v.GetInt("port"),
		APIKey: v.GetString("apikey"),
		Logger: zerolog.Nop(),
	}

	if logger, ok := v.Get("logger").(zerolog.Logger); ok {
		conn.Logger = logger
	}

	return conn, conn.validate()
}

func (c Connection) validate() error {
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("invalid scheme %q: want http or https", c.Scheme)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: want 0-65535", c.Port)
	}
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	return nil
}

// BaseURL renders the endpoint root the client posts to.
func (c Connection) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Scheme, c.Host, c.Port)
}
