package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultJWTSecret     = "defaultsecret"
	defaultAdminPassword = "admin"
)

// Config holds the configuration of the ledger server and its dependencies.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string `mapstructure:"listen"`
	// JWT configures the bearer tokens issued at login.
	JWT JWTConfig `mapstructure:"jwt"`
	// Database selects and configures the backing SQL database.
	Database DatabaseConfig `mapstructure:"database"`
	// Redis configures the optional Redis connection used for idempotency keys.
	Redis RedisConfig `mapstructure:"redis"`
	// Bootstrap holds the credentials of the administrator created on first start.
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	// Ledger holds behavior switches of the ledger service.
	Ledger LedgerConfig `mapstructure:"ledger"`
	// Log configures the process logger.
	Log LogConfig `mapstructure:"log"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type DatabaseConfig struct {
	// Driver is either "pgx" (PostgreSQL) or "sqlite".
	Driver string `mapstructure:"driver"`
	// DSN overrides the connection string assembled from the fields below.
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	// Path is the SQLite database file.
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BootstrapConfig struct {
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
}

type LedgerConfig struct {
	// EnforceOwnership restricts balance, deposit and withdraw to the account
	// owner or an admin. Off by default, matching the legacy API.
	EnforceOwnership bool `mapstructure:"enforce_ownership"`
	// AllowCallerParams lets requests without a bearer token name their caller
	// through the user_id/admin_id parameters.
	AllowCallerParams bool `mapstructure:"allow_caller_params"`
	// TxTimeout bounds every store operation.
	TxTimeout time.Duration `mapstructure:"tx_timeout"`
	// IdempotencyTTL is how long a claimed Idempotency-Key stays reserved.
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads .env (if present), the optional YAML config file at path and
// LEDGER_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, relying on environment variables")
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/bank-ledger")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}
	warnInsecureDefaults(&c)

	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")

	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.expiration", 72*time.Hour)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "bank_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/bank.db")
	v.SetDefault("database.max_open_conns", 25)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("bootstrap.admin_username", "admin")
	v.SetDefault("bootstrap.admin_password", defaultAdminPassword)

	v.SetDefault("ledger.enforce_ownership", false)
	v.SetDefault("ledger.allow_caller_params", true)
	v.SetDefault("ledger.tx_timeout", 5*time.Second)
	v.SetDefault("ledger.idempotency_ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

func sanitizeConfig(c *Config) {
	c.Listen = strings.TrimSpace(c.Listen)
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Bootstrap.AdminUsername = strings.TrimSpace(c.Bootstrap.AdminUsername)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

func validateConfig(c *Config) error {
	switch c.Database.Driver {
	case "pgx", "postgres":
		c.Database.Driver = "pgx"
	case "sqlite":
		if c.Database.Path == "" && c.Database.DSN == "" {
			return fmt.Errorf("database.path is required when database.driver is sqlite")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q (want pgx or sqlite)", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret must not be empty")
	}
	if c.JWT.Expiration <= 0 {
		return fmt.Errorf("jwt.expiration must be positive")
	}
	if c.Bootstrap.AdminUsername == "" || c.Bootstrap.AdminPassword == "" {
		return fmt.Errorf("bootstrap.admin_username and bootstrap.admin_password must be set")
	}
	if c.Ledger.TxTimeout <= 0 {
		return fmt.Errorf("ledger.tx_timeout must be positive")
	}
	if c.Ledger.IdempotencyTTL <= 0 {
		return fmt.Errorf("ledger.idempotency_ttl must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}

func warnInsecureDefaults(c *Config) {
	if c.JWT.Secret == defaultJWTSecret {
		log.Warn("jwt.secret uses the built-in default; set LEDGER_JWT_SECRET")
	}
	if c.Bootstrap.AdminPassword == defaultAdminPassword {
		log.Warn("bootstrap admin uses the default password; set LEDGER_BOOTSTRAP_ADMIN_PASSWORD")
	}
}

// PostgresConnString assembles a key/value connection string unless DSN is set.
func (d DatabaseConfig) PostgresConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}
