// Package dbtest provides shared PostgreSQL test infrastructure: a single
// testcontainer started once per test binary, with each test running
// against its own freshly created database for isolation (avoids paying
// container startup cost per test function across pkg/database,
// pkg/verdictstore, pkg/evidencestore).
package dbtest

import (
	"context"
	"crypto/rand"
	stdsql "database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/truthgraph/pkg/database"
)

var (
	sharedConnStr string
	containerOnce sync.Once
	containerErr  error
)

// NewDB starts (or reuses) the shared container, creates a fresh database
// for the calling test, runs the embedded migrations against it, and
// returns a ready connection pool. The database is dropped on cleanup.
func NewDB(t *testing.T) *stdsql.DB {
	ctx := context.Background()

	baseConnStr := sharedConnString(t)
	host, port := mustParseHostPort(t, baseConnStr)
	dbName := uniqueName(t)

	admin, err := stdsql.Open("pgx", baseConnStr)
	require.NoError(t, err)
	defer admin.Close()

	_, err = admin.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName))
	require.NoError(t, err)

	t.Cleanup(func() {
		cleanup, err := stdsql.Open("pgx", baseConnStr)
		if err != nil {
			t.Logf("dbtest: failed to reopen for database drop: %v", err)
			return
		}
		defer cleanup.Close()
		if _, err := cleanup.ExecContext(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName)); err != nil {
			t.Logf("dbtest: failed to drop database %s: %v", dbName, err)
		}
	})

	db, err := database.NewClient(ctx, database.Config{
		Host:            host,
		Port:            port,
		User:            "test",
		Password:        "test",
		Database:        dbName,
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func sharedConnString(t *testing.T) string {
	containerOnce.Do(func() {
		ctx := context.Background()
		pgContainer, err := postgres.Run(ctx,
			"pgvector/pgvector:pg16",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("start postgres container: %w", err)
			return
		}
		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = fmt.Errorf("get connection string: %w", err)
			return
		}
		sharedConnStr = connStr
	})
	require.NoError(t, containerErr, "dbtest: failed to start shared container")
	return sharedConnStr
}

// uniqueName returns a unique, PostgreSQL-safe identifier for the test.
func uniqueName(t *testing.T) string {
	name := strings.ToLower(t.Name())
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)
	if len(name) > 40 {
		name = name[:40]
	}
	suffix := make([]byte, 4)
	_, err := rand.Read(suffix)
	require.NoError(t, err)
	return fmt.Sprintf("test_%s_%s", name, hex.EncodeToString(suffix))
}

// mustParseHostPort extracts host/port from a postgres:// connection string
// (the testcontainers module always returns one in this form).
func mustParseHostPort(t *testing.T, connStr string) (string, int) {
	rest, ok := strings.CutPrefix(connStr, "postgres://")
	require.True(t, ok, "unexpected connection string format: %s", connStr)
	afterAt := rest
	if idx := strings.Index(rest, "@"); idx >= 0 {
		afterAt = rest[idx+1:]
	}
	hostPort := afterAt
	if idx := strings.IndexAny(afterAt, "/?"); idx >= 0 {
		hostPort = afterAt[:idx]
	}
	host, portStr, ok := strings.Cut(hostPort, ":")
	require.True(t, ok, "unexpected host:port in connection string: %s", connStr)
	var port int
	_, err := fmt.Sscanf(portStr, "%d", &port)
	require.NoError(t, err)
	return host, port
}
