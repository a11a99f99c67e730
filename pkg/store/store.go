package store

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/edulab/buildci/pkg/log"
	"github.com/edulab/buildci/pkg/utils"
)

// Store wraps the backing database.
type Store struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(log.NewLogger(), logger.Config{
			LogLevel: logger.Warn,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrStorageUnavailable, err)
	}

	return New(db)
}

// New wraps an existing database handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	err := db.AutoMigrate(
		&BuildJob{},
		&BuildJobResultMapping{},
		&Result{},
		&BuildLogStatisticsEntry{},
		&DockerImageBuild{},
		&ParticipationVCSAccessToken{},
		&VCSAccessLog{},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: migration failed: %v", utils.ErrStorageUnavailable, err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for aggregate queries in tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Translate a gorm error into one of the sentinel errors.
func dbError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return utils.ErrDuplicateCompletion
	default:
		return fmt.Errorf("%w: %v", utils.ErrStorageUnavailable, err)
	}
}
