// Package config loads forumdb configuration.
//
// Values are resolved in this order, later sources winning:
//  1. Defaults
//  2. YAML file, when a path is given
//  3. A .env file in the working directory, when present
//  4. FORUM_* environment variables
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"

	"github.com/mickamy/forumdb/orm"
	"github.com/mickamy/forumdb/pool"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Forum    ForumConfig    `yaml:"forum"`
}

// DatabaseConfig describes the store and the connection pool.
type DatabaseConfig struct {
	// Dialect is "postgres" or "mysql".
	Dialect  string `yaml:"dialect"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// SSLMode is passed to PostgreSQL. Ignored for MySQL.
	SSLMode string `yaml:"ssl_mode"`

	MinConns       int           `yaml:"min_conns"`
	MaxConns       int           `yaml:"max_conns"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
}

// LoggingConfig controls log level and the optional rotating log file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ForumConfig holds forum content settings.
type ForumConfig struct {
	// Boards are created by the seed-boards command.
	Boards            []string `yaml:"boards"`
	MaxThreadsPerPage int      `yaml:"max_threads_per_page"`
}

// DefaultBoards is the board list a fresh forum is seeded with.
var DefaultBoards = []string{
	"Python", "Javascript", "C++", "C",
	"Flask", "Django", "Rails", "Express",
	"Malware", "0 Days", "Risk Management", "Threat Intelligence",
	"Compiler Design", "Operating Systems", "Artificial Intelligence", "Mathematics",
}

// Default returns a Config with defaults for a local PostgreSQL server.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect:        orm.PostgreSQL.Name(),
			Host:           "127.0.0.1",
			Name:           "programming_forum",
			User:           "postgres",
			SSLMode:        "disable",
			MinConns:       pool.DefaultMinConns,
			MaxConns:       pool.DefaultMaxConns,
			AcquireTimeout: pool.DefaultAcquireTimeout,
			QueryTimeout:   orm.DefaultQueryTimeout,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Forum: ForumConfig{
			Boards:            append([]string(nil), DefaultBoards...),
			MaxThreadsPerPage: 10,
		},
	}
}

// envOverrides lists the environment variables that override file values.
// Unset variables leave the loaded value untouched.
type envOverrides struct {
	Dialect  string `env:"FORUM_DB_DIALECT"`
	Host     string `env:"FORUM_DB_HOST"`
	Port     int    `env:"FORUM_DB_PORT"`
	Name     string `env:"FORUM_DB_NAME"`
	User     string `env:"FORUM_DB_USER"`
	Password string `env:"FORUM_DB_PASSWORD"`
	SSLMode  string `env:"FORUM_DB_SSL_MODE"`
	MaxConns int    `env:"FORUM_DB_MAX_CONNS"`

	LogLevel string `env:"FORUM_LOG_LEVEL"`
	LogFile  string `env:"FORUM_LOG_FILE"`
}

func (o envOverrides) apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Database.Dialect, o.Dialect)
	set(&cfg.Database.Host, o.Host)
	set(&cfg.Database.Name, o.Name)
	set(&cfg.Database.User, o.User)
	set(&cfg.Database.Password, o.Password)
	set(&cfg.Database.SSLMode, o.SSLMode)
	set(&cfg.Logging.Level, o.LogLevel)
	set(&cfg.Logging.File, o.LogFile)
	if o.Port != 0 {
		cfg.Database.Port = o.Port
	}
	if o.MaxConns != 0 {
		cfg.Database.MaxConns = o.MaxConns
	}
}

// Load reads configuration from path (optional), .env and the environment,
// then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var ov envOverrides
	if err := env.Load(&ov, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}
	ov.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if _, err := orm.DialectByName(c.Database.Dialect); err != nil {
		errs = append(errs, fmt.Errorf("database.dialect: %w", err))
	} else if c.Database.Dialect == orm.SQLite.Name() {
		errs = append(errs, errors.New("database.dialect: the forum schema requires postgres or mysql"))
	}
	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Database.Name == "" {
		errs = append(errs, errors.New("database.name is required"))
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Errorf("database.port %d out of range", c.Database.Port))
	}
	if err := c.Database.Pool().Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of trace, debug, info, warn, error", c.Logging.Level))
	}

	if c.Forum.MaxThreadsPerPage < 1 {
		errs = append(errs, fmt.Errorf("forum.max_threads_per_page must be positive, got %d", c.Forum.MaxThreadsPerPage))
	}

	return errors.Join(errs...)
}

// OrmDialect returns the configured dialect.
func (d DatabaseConfig) OrmDialect() (orm.Dialect, error) {
	return orm.DialectByName(d.Dialect) //nolint:wrapcheck // pass through
}

func (d DatabaseConfig) port() int {
	if d.Port != 0 {
		return d.Port
	}
	if d.Dialect == orm.MySQL.Name() {
		return 3306
	}
	return 5432
}

// DSN builds the driver connection string for the configured dialect.
func (d DatabaseConfig) DSN() (string, error) {
	addr := net.JoinHostPort(d.Host, strconv.Itoa(d.port()))

	switch d.Dialect {
	case orm.MySQL.Name():
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = d.Name
		mc.ParseTime = true
		// Report matched rather than changed rows, so an update that
		// rewrites the same value still counts as a hit.
		mc.ClientFoundRows = true
		return mc.FormatDSN(), nil

	case orm.PostgreSQL.Name():
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   addr,
			Path:   "/" + d.Name,
		}
		if d.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
		}
		dsn := u.String()
		if _, err := pgx.ParseConfig(dsn); err != nil {
			return "", fmt.Errorf("invalid postgres connection settings: %w", err)
		}
		return dsn, nil

	default:
		return "", fmt.Errorf("%w: no DSN format for dialect %q", orm.ErrInvalidArgument, d.Dialect)
	}
}

// Pool returns the pool sizing part of the configuration. Driver and DSN
// are left for the caller.
func (d DatabaseConfig) Pool() pool.Config {
	return pool.Config{
		MinConns:       d.MinConns,
		MaxConns:       d.MaxConns,
		AcquireTimeout: d.AcquireTimeout,
	}
}
