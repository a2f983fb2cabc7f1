package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
format_version = "0.1"

[server]
port = "9000"
handle_cors = true
cors_allowed_origins = ["http://localhost:3000"]
request_timeout = "10s"

[db]
dialect = "postgresql"
host = "localhost"
port = 5432
dbname = "jokizilla"
user = "jokizilla"
password = "from-file"
sslmode = "disable"

[auth]
authority = "https://login.example.com/tenant"
audience = "jokizilla-api"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "jokizillasrv.conf")
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(EnvDBPassword, "from-env")
	require.NoError(t, LoadConfig(writeConfig(t, sampleConfig)))

	c := Config()
	assert.Equal(t, "9000", c.Server.Port)
	assert.True(t, c.Server.HandleCORS)
	assert.Equal(t, 10*time.Second, c.Server.GetRequestTimeout())
	assert.Equal(t, "from-env", c.DB.Password)
	assert.Equal(t, 16, c.DB.MaxOpenConns)
	assert.Equal(t, uint(10), c.DB.MaxRetryCount)
	assert.Equal(t, 30*time.Second, c.DB.GetMaxRetryDelay())
	assert.Equal(t, "api", c.API.RoutePrefix)
	assert.Equal(t, 50, c.API.MaxTop)
	assert.Equal(t, "role", c.Auth.RoleClaim)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ConfigParam)
		errMsg string
	}{
		{"valid sqlite", func(c *ConfigParam) {}, ""},
		{"bad format version", func(c *ConfigParam) { c.FormatVersion = "9" }, "format version"},
		{"bad dialect", func(c *ConfigParam) { c.DB.Dialect = "oracle" }, "db.dialect"},
		{"missing sqlite path", func(c *ConfigParam) { c.DB.Path = "" }, "db.path"},
		{"mysql without host", func(c *ConfigParam) { c.DB.Dialect = DialectMySQL }, "db.host"},
		{"no auth source", func(c *ConfigParam) { c.Auth.SigningKey = "" }, "auth.authority"},
		{"short signing key", func(c *ConfigParam) { c.Auth.SigningKey = "short" }, "32 bytes"},
		{"bad duration", func(c *ConfigParam) { c.Server.RequestTimeout = "soon" }, "server.request_timeout"},
		{"bad port", func(c *ConfigParam) { c.Server.Port = "http" }, "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.DB.Dialect = DialectSQLite
			c.DB.Path = "file::memory:"
			c.Auth.SigningKey = "0123456789abcdef0123456789abcdef"
			tt.mutate(c)
			err := ValidateConfig(c)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
