package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/utils"
)

// FinalizeBuildJob marks a job terminal, creates its Result and writes the
// result id into the mapping row, all in one transaction. The mapping row
// accepts exactly one non-nil result id; losing a race surfaces as
// ErrDuplicateCompletion and leaves the database untouched.
func (s *Store) FinalizeBuildJob(jobID string, status protocol.BuildStatus, result *Result, completedAt time.Time) error {
	if !status.IsTerminal() {
		return utils.ErrBadRequest
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&BuildJob{}).
			Where("id = ? AND status IN ?", jobID,
				[]protocol.BuildStatus{protocol.BuildStatusQueued, protocol.BuildStatusAssigned, protocol.BuildStatusRunning}).
			Updates(map[string]interface{}{
				"status":                status,
				"build_completion_date": completedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&BuildJob{}).Where("id = ?", jobID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return utils.ErrUnknownBuildJob
			}
			return utils.ErrDuplicateCompletion
		}

		if err := tx.Create(result).Error; err != nil {
			return err
		}

		mapping := tx.Model(&BuildJobResultMapping{}).
			Where("build_job_id = ? AND result_id IS NULL", jobID).
			Update("result_id", result.ID)
		if mapping.Error != nil {
			return mapping.Error
		}
		if mapping.RowsAffected == 0 {
			// A result already exists for this job. Abort so the
			// duplicate result row is rolled back.
			return utils.ErrDuplicateCompletion
		}

		return nil
	})

	switch err {
	case nil, utils.ErrUnknownBuildJob, utils.ErrDuplicateCompletion:
		return err
	default:
		return dbError(err)
	}
}

// GetResult returns a result by id.
func (s *Store) GetResult(id int64) (*Result, error) {
	var result Result
	if err := s.db.First(&result, "id = ?", id).Error; err != nil {
		return nil, dbError(err)
	}
	return &result, nil
}

// ResultForBuildJob resolves the mapping from a build job to its result.
// Returns ErrNotFound while the job has not produced a result yet.
func (s *Store) ResultForBuildJob(jobID string) (*Result, error) {
	var mapping BuildJobResultMapping
	if err := s.db.First(&mapping, "build_job_id = ?", jobID).Error; err != nil {
		return nil, dbError(err)
	}
	if mapping.ResultID == nil {
		return nil, utils.ErrNotFound
	}
	return s.GetResult(*mapping.ResultID)
}

// BuildJobForResult resolves the reverse mapping, for diagnostics.
func (s *Store) BuildJobForResult(resultID int64) (*BuildJob, error) {
	var mapping BuildJobResultMapping
	if err := s.db.First(&mapping, "result_id = ?", resultID).Error; err != nil {
		return nil, dbError(err)
	}
	return s.GetBuildJob(mapping.BuildJobID)
}
