package testutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/data/db"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	pgOnce  sync.Once
	pgStore *db.Store
	pgErr   error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// Store opens a fresh SQLite store with the schema applied in a per-test temp dir.
func Store(tb testing.TB) *db.Store {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "questions.db")
	s, err := db.Open(context.Background(), path, db.Options{Create: true, Log: Logger(tb)})
	if err != nil {
		tb.Fatalf("open test store: %v", err)
	}
	tb.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// PostgresStore connects to TEST_POSTGRES_DSN once per process and skips the test when it is unset.
func PostgresStore(tb testing.TB) *db.Store {
	tb.Helper()
	pgOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			pgErr = errMissingDSN
			return
		}
		pgStore, pgErr = db.Open(context.Background(), dsn, db.Options{Log: logger.Nop()})
	})
	if errors.Is(pgErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run postgres integration tests")
	}
	if pgErr != nil {
		tb.Fatalf("failed to init test db: %v", pgErr)
	}
	return pgStore
}

// Tx begins a transaction that is rolled back when the test ends.
func Tx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
