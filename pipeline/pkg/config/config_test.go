package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/electionlake/pipeline/pkg/config"
	"github.com/malbeclabs/electionlake/pipeline/pkg/extract"
	"github.com/malbeclabs/electionlake/pipeline/pkg/schema"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestElectionLake_Config_FromLookup(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.FromLookup(lookup(nil))
		require.NoError(t, err)
		require.Equal(t, schema.DialectMySQL, cfg.DBConnection)
		require.Equal(t, "127.0.0.1", cfg.DBHost)
		require.Equal(t, "3306", cfg.DBPort)
		require.Equal(t, "eleicoes", cfg.DBDatabase)
		require.Equal(t, "root", cfg.DBUsername)
		require.Equal(t, ".", cfg.DataDir)
		require.Equal(t, extract.DefaultChunkSize, cfg.Extract.ChunkSize)
		require.Equal(t, ';', cfg.Extract.Separator)
		require.Equal(t, extract.EncodingLatin1, cfg.Extract.Encoding)
		require.Equal(t, config.FactSinkRelational, cfg.FactSink)
		require.Equal(t, config.DefaultMetricsAddr, cfg.MetricsAddr)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.FromLookup(lookup(map[string]string{
			"DB_CONNECTION":       "postgres",
			"DB_HOST":             "db.internal",
			"DATA_DIR":            "s3://results/2024",
			"CHUNK_SIZE":          "1000",
			"CSV_SEPARATOR":       ",",
			"CSV_ENCODING":        "utf-8",
			"FACT_SINK":           "clickhouse",
			"CLICKHOUSE_ADDR_TCP": "ch:9440",
			"CLICKHOUSE_SECURE":   "true",
		}))
		require.NoError(t, err)
		require.Equal(t, schema.DialectPostgres, cfg.DBConnection)
		require.Equal(t, "5432", cfg.DBPort)
		require.Equal(t, 1000, cfg.Extract.ChunkSize)
		require.Equal(t, ',', cfg.Extract.Separator)
		require.Equal(t, extract.EncodingUTF8, cfg.Extract.Encoding)
		require.Equal(t, config.FactSinkClickHouse, cfg.FactSink)
		require.True(t, cfg.ClickHouse.Secure)
		require.Equal(t, "default", cfg.ClickHouse.Username)
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Parallel()
		for name, env := range map[string]map[string]string{
			"dialect":        {"DB_CONNECTION": "oracle"},
			"chunk size":     {"CHUNK_SIZE": "lots"},
			"separator":      {"CSV_SEPARATOR": ";;"},
			"encoding":       {"CSV_ENCODING": "ebcdic"},
			"sink":           {"FACT_SINK": "kafka"},
			"clickhouse":     {"FACT_SINK": "clickhouse"},
			"secure":         {"CLICKHOUSE_SECURE": "maybe"},
			"negative chunk": {"CHUNK_SIZE": "-5"},
		} {
			_, err := config.FromLookup(lookup(env))
			require.Error(t, err, name)
		}
	})
}

func TestElectionLake_Config_DSN(t *testing.T) {
	t.Parallel()

	t.Run("mysql from parts", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.FromLookup(lookup(map[string]string{"DB_PASSWORD": "s3cret"}))
		require.NoError(t, err)
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		require.Contains(t, dsn, "root:s3cret@tcp(127.0.0.1:3306)/eleicoes")
		require.Contains(t, dsn, "parseTime=true")
	})

	t.Run("mysql url gains parseTime", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.FromLookup(lookup(map[string]string{"DATABASE_URL": "u:p@tcp(db:3306)/votes"}))
		require.NoError(t, err)
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		require.Contains(t, dsn, "u:p@tcp(db:3306)/votes")
		require.Contains(t, dsn, "parseTime=true")
	})

	t.Run("postgres", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.FromLookup(lookup(map[string]string{"DB_CONNECTION": "postgres", "DB_USERNAME": "lake", "DB_PASSWORD": "pw"}))
		require.NoError(t, err)
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		require.Equal(t, "postgres://lake:pw@127.0.0.1:5432/eleicoes?sslmode=disable", dsn)
	})

	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.FromLookup(lookup(map[string]string{"DB_CONNECTION": "sqlite3", "DB_DATABASE": "/tmp/votes.db"}))
		require.NoError(t, err)
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		require.Equal(t, "file:/tmp/votes.db?_busy_timeout=5000&_foreign_keys=on", dsn)
	})
}

func TestElectionLake_Config_LoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ELECTIONLAKE_TEST_DOTENV=from-file\n"), 0o600))

	require.NoError(t, config.LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("ELECTIONLAKE_TEST_DOTENV") })
	require.Equal(t, "from-file", os.Getenv("ELECTIONLAKE_TEST_DOTENV"))

	require.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, config.LoadDotEnv(""))
}
