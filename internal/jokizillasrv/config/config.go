package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/srvcommon"
)

// Version of the configuration file format understood by this build.
const Version = srvcommon.ConfigVersion

const (
	DialectPostgres = "postgresql"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite3"
)

// Environment variables that override values from the configuration file.
const (
	EnvDBPassword     = "JOKIZILLA_DB_PASSWORD"
	EnvDBHost         = "JOKIZILLA_DB_HOST"
	EnvAuthSigningKey = "JOKIZILLA_AUTH_SIGNING_KEY"
)

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	HostName           string   `toml:"hostname"`
	Port               string   `toml:"port"`
	HandleCORS         bool     `toml:"handle_cors"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	MaxRequestBodySize int64    `toml:"max_request_body_size"` // bytes
	RequestTimeout     string   `toml:"request_timeout"`
}

func (s *ServerConfig) GetRequestTimeout() time.Duration {
	return mustDuration(s.RequestTimeout)
}

// APIConfig holds settings of the OData surface
type APIConfig struct {
	RoutePrefix       string   `toml:"route_prefix"`
	SupportedVersions []string `toml:"supported_versions"`
	BaseURL           string   `toml:"base_url"` // absolute service root used in @odata.context; derived from the request when empty
	MaxTop            int      `toml:"max_top"`
	PageSize          int      `toml:"page_size"`
}

// DBConfig holds database connection and pool settings
type DBConfig struct {
	Dialect          string `toml:"dialect"`
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	DBName           string `toml:"dbname"`
	User             string `toml:"user"`
	Password         string `toml:"password"`
	SSLMode          string `toml:"sslmode"`
	Path             string `toml:"path"` // sqlite3 database file or DSN
	MaxOpenConns     int    `toml:"max_open_conns"`
	MaxIdleConns     int    `toml:"max_idle_conns"`
	ConnMaxLifetime  string `toml:"conn_max_lifetime"`
	MaxRetryCount    uint   `toml:"max_retry_count"`
	MaxRetryDelay    string `toml:"max_retry_delay"`
	StatementTimeout string `toml:"statement_timeout"`
}

func (d *DBConfig) GetConnMaxLifetime() time.Duration {
	return mustDuration(d.ConnMaxLifetime)
}

func (d *DBConfig) GetMaxRetryDelay() time.Duration {
	return mustDuration(d.MaxRetryDelay)
}

func (d *DBConfig) GetStatementTimeout() time.Duration {
	return mustDuration(d.StatementTimeout)
}

// AuthConfig holds bearer token validation settings. Tokens are verified against the JWKS
// published by Authority, or against SigningKey (HS256) when no authority is configured.
type AuthConfig struct {
	Authority  string `toml:"authority"`
	Audience   string `toml:"audience"`
	SigningKey string `toml:"signing_key"`
	RoleClaim  string `toml:"role_claim"`
	ClockSkew  string `toml:"clock_skew"`
}

func (a *AuthConfig) GetClockSkew() time.Duration {
	return mustDuration(a.ClockSkew)
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// ConfigParam holds all configuration parameters for the Jokizilla server
type ConfigParam struct {
	FormatVersion string `toml:"format_version"`

	Server ServerConfig `toml:"server"`
	API    APIConfig    `toml:"api"`
	DB     DBConfig     `toml:"db"`
	Auth   AuthConfig   `toml:"auth"`
	Log    LogConfig    `toml:"log"`
}

var cfg *ConfigParam

// Config returns the current configuration
func Config() *ConfigParam {
	return cfg
}

// SetConfig installs c as the current configuration after applying defaults and validating it.
func SetConfig(c *ConfigParam) error {
	applyDefaults(c)
	if err := ValidateConfig(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = c
	return nil
}

// Default returns a configuration with every optional value set to its default. Dialect
// specific connection settings are left empty.
func Default() *ConfigParam {
	c := &ConfigParam{FormatVersion: Version}
	applyDefaults(c)
	return c
}

func applyDefaults(c *ConfigParam) {
	if c.Server.Port == "" {
		c.Server.Port = "8678"
	}
	if c.Server.MaxRequestBodySize == 0 {
		c.Server.MaxRequestBodySize = 1 << 20
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = "30s"
	}
	if c.API.RoutePrefix == "" {
		c.API.RoutePrefix = "api"
	}
	if len(c.API.SupportedVersions) == 0 {
		c.API.SupportedVersions = []string{srvcommon.ApiVersion}
	}
	if c.API.MaxTop == 0 {
		c.API.MaxTop = 50
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = 50
	}
	if c.DB.MaxOpenConns == 0 {
		c.DB.MaxOpenConns = 16
	}
	if c.DB.MaxIdleConns == 0 {
		c.DB.MaxIdleConns = c.DB.MaxOpenConns
	}
	if c.DB.ConnMaxLifetime == "" {
		c.DB.ConnMaxLifetime = "30m"
	}
	if c.DB.MaxRetryCount == 0 {
		c.DB.MaxRetryCount = 10
	}
	if c.DB.MaxRetryDelay == "" {
		c.DB.MaxRetryDelay = "30s"
	}
	if c.DB.StatementTimeout == "" {
		c.DB.StatementTimeout = "5s"
	}
	if c.Auth.RoleClaim == "" {
		c.Auth.RoleClaim = "role"
	}
	if c.Auth.ClockSkew == "" {
		c.Auth.ClockSkew = "1m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ValidateConfig checks if all required configuration values are present and valid
func ValidateConfig(cfg *ConfigParam) error {
	if err := validateConfigFormatVersion(cfg); err != nil {
		return err
	}
	if err := validateServerConfig(cfg); err != nil {
		return err
	}
	if err := validateAPIConfig(cfg); err != nil {
		return err
	}
	if err := validateDBConfig(cfg); err != nil {
		return err
	}
	if err := validateAuthConfig(cfg); err != nil {
		return err
	}
	return nil
}

func validateConfigFormatVersion(cfg *ConfigParam) error {
	if cfg.FormatVersion != Version {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	return nil
}

func validateServerConfig(cfg *ConfigParam) error {
	if _, err := strconv.Atoi(cfg.Server.Port); err != nil {
		return fmt.Errorf("server.port must be numeric: %s", cfg.Server.Port)
	}
	if cfg.Server.MaxRequestBodySize < 0 {
		return fmt.Errorf("server.max_request_body_size must not be negative")
	}
	if err := validateDuration("server.request_timeout", cfg.Server.RequestTimeout); err != nil {
		return err
	}
	return nil
}

func validateAPIConfig(cfg *ConfigParam) error {
	if cfg.API.MaxTop < 1 || cfg.API.PageSize < 1 {
		return fmt.Errorf("api.max_top and api.page_size must be positive")
	}
	return nil
}

func validateDBConfig(cfg *ConfigParam) error {
	switch cfg.DB.Dialect {
	case DialectPostgres, DialectMySQL:
		if cfg.DB.Host == "" {
			return fmt.Errorf("db.host is required")
		}
		if cfg.DB.Port <= 0 {
			return fmt.Errorf("db.port must be positive")
		}
		if cfg.DB.DBName == "" {
			return fmt.Errorf("db.dbname is required")
		}
		if cfg.DB.User == "" {
			return fmt.Errorf("db.user is required")
		}
		if cfg.DB.Dialect == DialectPostgres && cfg.DB.SSLMode == "" {
			return fmt.Errorf("db.sslmode is required")
		}
	case DialectSQLite:
		if cfg.DB.Path == "" {
			return fmt.Errorf("db.path is required")
		}
	default:
		return fmt.Errorf("unsupported db.dialect: %q", cfg.DB.Dialect)
	}
	if cfg.DB.MaxOpenConns < 1 {
		return fmt.Errorf("db.max_open_conns must be positive")
	}
	for name, v := range map[string]string{
		"db.conn_max_lifetime": cfg.DB.ConnMaxLifetime,
		"db.max_retry_delay":   cfg.DB.MaxRetryDelay,
		"db.statement_timeout": cfg.DB.StatementTimeout,
	} {
		if err := validateDuration(name, v); err != nil {
			return err
		}
	}
	return nil
}

func validateAuthConfig(cfg *ConfigParam) error {
	if cfg.Auth.Authority == "" && cfg.Auth.SigningKey == "" {
		return fmt.Errorf("either auth.authority or auth.signing_key is required")
	}
	if cfg.Auth.SigningKey != "" && len(cfg.Auth.SigningKey) < 32 {
		return fmt.Errorf("auth.signing_key must be at least 32 bytes")
	}
	return validateDuration("auth.clock_skew", cfg.Auth.ClockSkew)
}

func validateDuration(name, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %v", name, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative", name)
	}
	return nil
}

// mustDuration parses a value that ValidateConfig already accepted
func mustDuration(v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Sprintf("invalid duration %q: %v", v, err))
	}
	return d
}

// LoadConfig loads configuration from a file. A .env file in the working directory, when
// present, is loaded into the environment first so that its values take part in the
// environment overrides.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env file: %v", err)
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	c := &ConfigParam{}
	if _, err := toml.Decode(string(content), c); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}
	applyEnvOverrides(c)

	return SetConfig(c)
}

func applyEnvOverrides(c *ConfigParam) {
	if v, ok := os.LookupEnv(EnvDBPassword); ok {
		c.DB.Password = v
	}
	if v, ok := os.LookupEnv(EnvDBHost); ok {
		c.DB.Host = v
	}
	if v, ok := os.LookupEnv(EnvAuthSigningKey); ok {
		c.Auth.SigningKey = v
	}
}
