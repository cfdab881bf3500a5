package config

import (
	"testing"

	"github.com/matryer/is"
)

func TestKeysAreCaseInsensitive(t *testing.T) {
	is := is.New(t)

	conn, err := FromMap(map[string]any{
		"SCHEME": "https",
		"Host":   "catalog.local",
		"pOrT":   8443,
		"ApiKey": "secret",
	})

	is.NoErr(err)
	is.Equal(conn.Scheme, "https")
	is.Equal(conn.Host, "catalog.local")
	is.Equal(conn.Port, 8443)
	is.Equal(conn.APIKey, "secret")
}

func TestDefaultsApply(t *testing.T) {
	is := is.New(t)

	conn, err := FromMap(map[string]any{})

	is.NoErr(err)
	is.Equal(conn.Scheme, "http")
	is.Equal(conn.Host, "localhost")
	is.Equal(conn.Port, 9999)
	is.Equal(conn.BaseURL(), "http://localhost:9999")
}

func TestInvalidSchemeIsRejected(t *testing.T) {
	is := is.New(t)

	_, err := FromMap(map[string]any{"scheme": "ftp"})
	is.True(err != nil)
}

func TestOutOfRangePortIsRejected(t *testing.T) {
	is := is.New(t)

	_, err := FromMap(map[string]any{"port": 70000})
	is.True(err != nil)
}

func TestBaseURL(t *testing.T) {
	is := is.New(t)

	conn, err := FromMap(map[string]any{"scheme": "https", "host": "10.0.0.5", "port": 443})
	is.NoErr(err)
	is.Equal(conn.BaseURL(), "https://10.0.0.5:443")
}
