// Package config loads pipeline settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"github.com/malbeclabs/electionlake/pipeline/pkg/clickhouse"
	"github.com/malbeclabs/electionlake/pipeline/pkg/extract"
	"github.com/malbeclabs/electionlake/pipeline/pkg/schema"
	"github.com/malbeclabs/electionlake/pipeline/pkg/store/postgres"
)

const (
	FactSinkRelational = "relational"
	FactSinkClickHouse = "clickhouse"

	DefaultMetricsAddr = "127.0.0.1:9090"
)

type Config struct {
	DBConnection schema.Dialect
	DBHost       string
	DBPort       string
	DBDatabase   string
	DBUsername   string
	DBPassword   string
	DBSSLMode    string
	// DatabaseURL overrides the DB_* parts when set.
	DatabaseURL string

	DataDir string
	Extract extract.Config

	FactSink   string
	ClickHouse clickhouse.ClientConfig

	MetricsAddr string
	SentryDSN   string
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// FromEnv reads the process environment.
func FromEnv() (*Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup reads settings through lookup and validates them.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := &Config{
		DBConnection: schema.Dialect(get("DB_CONNECTION")),
		DBHost:       get("DB_HOST"),
		DBPort:       get("DB_PORT"),
		DBDatabase:   get("DB_DATABASE"),
		DBUsername:   get("DB_USERNAME"),
		DBPassword:   get("DB_PASSWORD"),
		DBSSLMode:    get("DB_SSLMODE"),
		DatabaseURL:  get("DATABASE_URL"),
		DataDir:      get("DATA_DIR"),
		Extract: extract.Config{
			Encoding: get("CSV_ENCODING"),
		},
		FactSink: get("FACT_SINK"),
		ClickHouse: clickhouse.ClientConfig{
			Addr:     get("CLICKHOUSE_ADDR_TCP"),
			Database: get("CLICKHOUSE_DATABASE"),
			Username: get("CLICKHOUSE_USERNAME"),
			Password: get("CLICKHOUSE_PASSWORD"),
		},
		MetricsAddr: get("METRICS_ADDR"),
		SentryDSN:   get("SENTRY_DSN"),
	}
	// Passwords may legitimately carry surrounding spaces.
	if v, ok := lookup("DB_PASSWORD"); ok {
		cfg.DBPassword = v
	}

	if v := get("CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CHUNK_SIZE %q: %w", v, err)
		}
		cfg.Extract.ChunkSize = n
	}
	if v, ok := lookup("CSV_SEPARATOR"); ok && v != "" {
		r, size := utf8.DecodeRuneInString(v)
		if size != len(v) {
			return nil, fmt.Errorf("CSV_SEPARATOR must be a single character, got %q", v)
		}
		cfg.Extract.Separator = r
	}
	if v := get("CLICKHOUSE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CLICKHOUSE_SECURE %q: %w", v, err)
		}
		cfg.ClickHouse.Secure = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.DBConnection == "" {
		cfg.DBConnection = schema.DialectMySQL
	}
	switch cfg.DBConnection {
	case schema.DialectPostgres, schema.DialectMySQL, schema.DialectSQLite3:
	default:
		return fmt.Errorf("unsupported DB_CONNECTION %q", cfg.DBConnection)
	}
	if cfg.DBHost == "" {
		cfg.DBHost = "127.0.0.1"
	}
	if cfg.DBPort == "" {
		switch cfg.DBConnection {
		case schema.DialectPostgres:
			cfg.DBPort = "5432"
		default:
			cfg.DBPort = "3306"
		}
	}
	if cfg.DBDatabase == "" {
		cfg.DBDatabase = "eleicoes"
	}
	if cfg.DBUsername == "" {
		cfg.DBUsername = "root"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if err := cfg.Extract.Validate(); err != nil {
		return err
	}

	if cfg.FactSink == "" {
		cfg.FactSink = FactSinkRelational
	}
	switch cfg.FactSink {
	case FactSinkRelational:
	case FactSinkClickHouse:
		if err := cfg.ClickHouse.Validate(); err != nil {
			return fmt.Errorf("invalid clickhouse config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported FACT_SINK %q", cfg.FactSink)
	}

	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = DefaultMetricsAddr
	}
	return nil
}

// DSN returns the connection string for DBConnection.
func (cfg *Config) DSN() (string, error) {
	switch cfg.DBConnection {
	case schema.DialectPostgres:
		if cfg.DatabaseURL != "" {
			return cfg.DatabaseURL, nil
		}
		return postgres.ConnString(cfg.DBHost, cfg.DBPort, cfg.DBDatabase, cfg.DBUsername, cfg.DBPassword, cfg.DBSSLMode), nil
	case schema.DialectMySQL:
		var mc *mysql.Config
		if cfg.DatabaseURL != "" {
			var err error
			mc, err = mysql.ParseDSN(cfg.DatabaseURL)
			if err != nil {
				return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
			}
		} else {
			mc = mysql.NewConfig()
			mc.User = cfg.DBUsername
			mc.Passwd = cfg.DBPassword
			mc.Net = "tcp"
			mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
			mc.DBName = cfg.DBDatabase
		}
		// Timestamps are scanned into time.Time.
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	case schema.DialectSQLite3:
		if cfg.DatabaseURL != "" {
			return cfg.DatabaseURL, nil
		}
		return "file:" + cfg.DBDatabase + "?_busy_timeout=5000&_foreign_keys=on", nil
	default:
		return "", fmt.Errorf("unsupported DB_CONNECTION %q", cfg.DBConnection)
	}
}

// Redacted returns the settings safe to log.
func (cfg *Config) Redacted() []any {
	return []any{
		"db_connection", string(cfg.DBConnection),
		"db_host", cfg.DBHost,
		"db_database", cfg.DBDatabase,
		"data_dir", cfg.DataDir,
		"chunk_size", cfg.Extract.ChunkSize,
		"encoding", cfg.Extract.Encoding,
		"fact_sink", cfg.FactSink,
	}
}
