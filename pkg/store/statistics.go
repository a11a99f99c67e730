package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/edulab/buildci/pkg/utils"
)

// CreateStatistics writes the single statistics row of a completed job.
// Calling it twice for the same job is a programming error and is
// surfaced as a duplicate.
func (s *Store) CreateStatistics(entry *BuildLogStatisticsEntry) error {
	var count int64
	if err := s.db.Model(&BuildLogStatisticsEntry{}).
		Where("build_job_id = ?", entry.BuildJobID).
		Count(&count).Error; err != nil {
		return dbError(err)
	}
	if count > 0 {
		return utils.ErrDuplicateCompletion
	}
	if err := s.db.Create(entry).Error; err != nil {
		return dbError(err)
	}
	return nil
}

// AverageDurations holds mean per-phase durations across an exercise.
type AverageDurations struct {
	AgentSetupSeconds         *float64
	TestSeconds               *float64
	StaticCodeAnalysisSeconds *float64
	TotalSeconds              *float64
	JobCount                  int64
}

// AverageDurationsForExercise computes the mean per-phase build duration
// across all statistics rows of an exercise.
func (s *Store) AverageDurationsForExercise(exerciseID int64) (*AverageDurations, error) {
	var avg AverageDurations
	err := s.db.Model(&BuildLogStatisticsEntry{}).
		Select(
			"avg(agent_setup_seconds) as agent_setup_seconds",
			"avg(test_seconds) as test_seconds",
			"avg(static_code_analysis_seconds) as static_code_analysis_seconds",
			"avg(total_seconds) as total_seconds",
			"count(*) as job_count",
		).
		Where("exercise_id = ?", exerciseID).
		Scan(&avg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &AverageDurations{}, nil
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrStorageUnavailable, err)
	}
	return &avg, nil
}
