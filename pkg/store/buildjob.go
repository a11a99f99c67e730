package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/utils"
)

// CreateBuildJob persists a new QUEUED job together with its empty
// result mapping row, atomically.
func (s *Store) CreateBuildJob(job *BuildJob) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		return tx.Create(&BuildJobResultMapping{BuildJobID: job.ID}).Error
	})
	return dbError(err)
}

// GetBuildJob returns the job with the given id.
func (s *Store) GetBuildJob(id string) (*BuildJob, error) {
	var job BuildJob
	if err := s.db.First(&job, "id = ?", id).Error; err != nil {
		return nil, dbError(err)
	}
	return &job, nil
}

// ListBuildJobs returns all jobs in enqueue order, optionally filtered
// by status.
func (s *Store) ListBuildJobs(status protocol.BuildStatus) ([]BuildJob, error) {
	var jobs []BuildJob
	query := s.db.Order("sequence")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, dbError(err)
	}
	return jobs, nil
}

// MaxSequence returns the highest sequence number ever assigned,
// or zero when no jobs exist. Used to seed the allocator after restart.
func (s *Store) MaxSequence() (int64, error) {
	var seq *int64
	if err := s.db.Model(&BuildJob{}).Select("max(sequence)").Scan(&seq).Error; err != nil {
		return 0, dbError(err)
	}
	if seq == nil {
		return 0, nil
	}
	return *seq, nil
}

// MarkAssigned transitions a QUEUED job to ASSIGNED on the given agent.
func (s *Store) MarkAssigned(id, agentAddress string, deadline time.Time) error {
	return s.transition(id, protocol.BuildStatusAssigned, map[string]interface{}{
		"status":              protocol.BuildStatusAssigned,
		"build_agent_address": agentAddress,
		"deadline":            deadline,
	}, protocol.BuildStatusQueued)
}

// MarkRunning transitions an ASSIGNED job to RUNNING and records the
// build start time.
func (s *Store) MarkRunning(id string, startedAt time.Time) error {
	return s.transition(id, protocol.BuildStatusRunning, map[string]interface{}{
		"status":           protocol.BuildStatusRunning,
		"build_start_date": startedAt,
	}, protocol.BuildStatusAssigned)
}

// RequeueForDispatch returns an ASSIGNED job to QUEUED after a failed
// dispatch attempt.
func (s *Store) RequeueForDispatch(id string) error {
	return s.transition(id, protocol.BuildStatusQueued, map[string]interface{}{
		"status":              protocol.BuildStatusQueued,
		"build_agent_address": nil,
		"deadline":            nil,
		"dispatch_retries":    gorm.Expr("dispatch_retries + 1"),
	}, protocol.BuildStatusAssigned)
}

// MarkCancelled transitions a non-terminal job to CANCELLED. Queued and
// assigned jobs are cancelled by the dispatcher directly; running jobs
// only via the agent's acknowledgement.
func (s *Store) MarkCancelled(id string, completedAt time.Time) error {
	return s.transition(id, protocol.BuildStatusCancelled, map[string]interface{}{
		"status":                protocol.BuildStatusCancelled,
		"build_completion_date": completedAt,
	}, protocol.BuildStatusQueued, protocol.BuildStatusAssigned, protocol.BuildStatusRunning)
}

// MarkError transitions a non-terminal job to ERROR.
func (s *Store) MarkError(id string, completedAt time.Time) error {
	return s.transition(id, protocol.BuildStatusError, map[string]interface{}{
		"status":                protocol.BuildStatusError,
		"build_completion_date": completedAt,
	}, protocol.BuildStatusQueued, protocol.BuildStatusAssigned, protocol.BuildStatusRunning)
}

// transition performs a guarded status update. The update only applies
// while the job is in one of the expected states, which keeps terminal
// states immutable even under concurrent writers.
func (s *Store) transition(id string, to protocol.BuildStatus, updates map[string]interface{}, from ...protocol.BuildStatus) error {
	res := s.db.Model(&BuildJob{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return dbError(res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the job does not exist or it already left the
		// expected state.
		var count int64
		if err := s.db.Model(&BuildJob{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return dbError(err)
		}
		if count == 0 {
			return utils.ErrUnknownBuildJob
		}
		return utils.ErrTerminalJob
	}
	return nil
}
