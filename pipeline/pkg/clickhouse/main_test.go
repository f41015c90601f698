package clickhouse_test

import (
	"context"
	"flag"
	"os"
	"testing"

	"github.com/malbeclabs/electionlake/pipeline/pkg/clickhouse/chtesting"
	electiontesting "github.com/malbeclabs/electionlake/utils/pkg/testing"
)

var sharedDB *chtesting.DB

func TestMain(m *testing.M) {
	flag.Parse()
	log := electiontesting.NewLogger()

	if !testing.Short() {
		db, err := chtesting.NewDB(context.Background(), log, nil)
		if err != nil {
			log.Warn("clickhouse container unavailable, skipping container tests", "error", err)
		} else {
			sharedDB = db
		}
	}

	code := m.Run()
	if sharedDB != nil {
		sharedDB.Close()
	}
	os.Exit(code)
}

func requireDB(t *testing.T) *chtesting.DB {
	t.Helper()
	if sharedDB == nil {
		t.Skip("clickhouse container not available")
	}
	return sharedDB
}
