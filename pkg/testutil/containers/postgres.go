//go:build integration

package containers

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"kycproxy/internal/platform/database"
	"kycproxy/migrations"
)

// applicationTables are cleared by TruncateAll.
var applicationTables = []string{"verification_records"}

type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres, opens it through database.Open and
// runs the embedded migrations, the same path the server takes at startup.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:18-alpine",
		postgres.WithDatabase("kycproxy_test"),
		postgres.WithUsername("kycproxy"),
		postgres.WithPassword("kycproxy_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	fail := func(format string, args ...any) {
		_ = container.Terminate(ctx)
		t.Fatalf(format, args...)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fail("postgres connection string: %v", err)
	}

	pool, err := database.Open(ctx, database.Config{
		URL:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnectAttempts: 3,
		RetryDelay:      time.Second,
	})
	if err != nil {
		fail("open postgres: %v", err)
	}
	if err := database.Migrate(migrations.FS, dsn, nil); err != nil {
		_ = pool.Close()
		fail("migrate postgres: %v", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, DB: pool.DB()}
}

// TruncateTables empties tables in one statement.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	quoted := make([]string, len(tables))
	for i, table := range tables {
		quoted[i] = pgx.Identifier{table}.Sanitize()
	}
	_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+strings.Join(quoted, ", ")+" RESTART IDENTITY CASCADE")
	return err
}

func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	return p.TruncateTables(ctx, applicationTables...)
}
