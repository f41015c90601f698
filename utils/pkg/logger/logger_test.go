package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestElectionLake_Logger_ParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatText, f)

	f, err = ParseFormat("json")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestElectionLake_Logger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithOptions(Options{Format: FormatJSON, Output: &buf})
	log.Info("runner: file processed", "file", "bweb_1t_SP.csv", "empty", "")
	log.Debug("hidden at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "runner: file processed", entry["msg"])
	require.Equal(t, "bweb_1t_SP.csv", entry["file"])
	require.NotContains(t, entry, "empty")

	ts, ok := entry["time"].(string)
	require.True(t, ok)
	require.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, ts)
}

func TestElectionLake_Logger_Verbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithOptions(Options{Verbose: true, Output: &buf, NoColor: true})
	log.Debug("dimension: cache miss", "type", "state")
	require.Contains(t, buf.String(), "dimension: cache miss")
}

func TestElectionLake_Logger_FormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	ts := time.Date(2022, 10, 2, 17, 4, 5, 123_456_789, time.FixedZone("BRT", -3*3600))
	require.Equal(t, "2022-10-02T20:04:05.123Z", formatRFC3339Millis(ts))
}
