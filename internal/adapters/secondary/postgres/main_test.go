package postgres

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	// testPool is shared by all tests in this package. It is nil when no
	// container could be started.
	testPool *pgxpool.Pool
	testURL  string
)

// TestMain starts a PostgreSQL container, applies the embedded migrations
// and opens the shared pool.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	log.Println("Setting up PostgreSQL container...")
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Printf("could not start postgres container, database tests will be skipped: %v", err)
		os.Exit(m.Run())
	}

	code := func() int {
		defer func() {
			if err := pgContainer.Terminate(ctx); err != nil {
				log.Printf("could not terminate postgres container: %v", err)
			}
		}()

		testURL, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			log.Printf("could not get connection string: %v", err)
			return 1
		}

		if err := RunMigrations(testURL, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
			log.Printf("could not run migrations: %v", err)
			return 1
		}

		testPool, err = pgxpool.New(ctx, testURL)
		if err != nil {
			log.Printf("could not create connection pool: %v", err)
			return 1
		}
		defer testPool.Close()

		return m.Run()
	}()

	os.Exit(code)
}

func requirePool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testPool == nil {
		t.Skip("postgres container not available")
	}
	return testPool
}
