package postgres_test

import (
	"context"
	"flag"
	"os"
	"testing"

	"github.com/malbeclabs/electionlake/pipeline/pkg/store/postgres/pgtesting"
	electiontesting "github.com/malbeclabs/electionlake/utils/pkg/testing"
)

var sharedDB *pgtesting.DB

func TestMain(m *testing.M) {
	flag.Parse()
	log := electiontesting.NewLogger()

	if !testing.Short() {
		db, err := pgtesting.NewDB(context.Background(), log, nil)
		if err != nil {
			log.Warn("postgres container unavailable, skipping container tests", "error", err)
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

func requireDB(t *testing.T) *pgtesting.DB {
	t.Helper()
	if sharedDB == nil {
		t.Skip("postgres container not available")
	}
	return sharedDB
}
