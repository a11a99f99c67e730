// Package storetest sets up temporary sqlite databases for tests.
package storetest

import (
	"os"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/edulab/buildci/pkg/store"
)

// NewStore opens a migrated store backed by a temporary sqlite file.
func NewStore(t *testing.T) *store.Store {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "buildci-testdb")
	if err != nil {
		t.Fatalf("failed to create temp file for db: %v", err)
	}
	t.Cleanup(func() {
		tmpfile.Close()
		os.Remove(tmpfile.Name())
	})

	db, err := gorm.Open(sqlite.Open(tmpfile.Name()), &gorm.Config{
		Logger: logger.New(&testLogger{t: t}, logger.Config{
			LogLevel: logger.Warn,
		}),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	s, err := store.New(db)
	if err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	return s
}

type testLogger struct {
	t *testing.T
}

func (l *testLogger) Printf(format string, args ...any) {
	l.t.Logf(format, args...)
}
