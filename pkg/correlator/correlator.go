// Package correlator maps asynchronous build completion notifications
// back to the submission they belong to and produces the grading Result
// exactly once, tolerating duplicate, out-of-order and late delivery.
package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/edulab/buildci/pkg/log"
	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/store"
	"github.com/edulab/buildci/pkg/utils"
)

// SlotReleaser frees the agent capacity slot of a terminal job.
type SlotReleaser interface {
	Release(jobID string, status protocol.BuildStatus)
}

// ImageTracker records image usage timestamps, best effort.
type ImageTracker interface {
	RecordUse(image string, ts time.Time)
}

// StatisticsRecorder persists the per-job timing breakdown.
type StatisticsRecorder interface {
	RecordStatistics(jobID string, exerciseID int64, durations protocol.StageDurations, dependenciesDownloaded *int) error
}

type Correlator struct {
	store      *store.Store
	releaser   SlotReleaser
	images     ImageTracker
	statistics StatisticsRecorder

	// Delay between attempts of the result-creation transaction.
	// Losing a result silently is unacceptable, so storage failures
	// are retried until the context is cancelled.
	retryInterval time.Duration
}

func New(s *store.Store, releaser SlotReleaser, images ImageTracker, statistics StatisticsRecorder) *Correlator {
	return &Correlator{
		store:         s,
		releaser:      releaser,
		images:        images,
		statistics:    statistics,
		retryInterval: time.Second,
	}
}

// ReportCompletion is the single entry point for build outcomes, from
// agents and from the orchestrator's own timeout and dispatch-failure
// paths. Safe under arbitrary concurrent invocation; calling it twice
// for the same job produces exactly one Result.
func (c *Correlator) ReportCompletion(ctx context.Context, buildJobID string, outcome protocol.BuildOutcome) error {
	job, err := c.store.GetBuildJob(buildJobID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			// Cannot be a duplicate of something that never
			// existed; likely a malformed agent message.
			log.Warnf("err - result - unknown job - id: %s", buildJobID)
			return utils.ErrUnknownBuildJob
		}
		return err
	}

	if job.Status.IsTerminal() {
		c.logDuplicate(job, outcome)
		return utils.ErrDuplicateCompletion
	}

	status := terminalStatus(outcome.Status)

	if status == protocol.BuildStatusCancelled {
		// Agent acknowledged a cancellation. No result is produced.
		if err := c.store.MarkCancelled(buildJobID, completedAt(outcome)); err != nil {
			log.Debugf("int - result - cancel ack dropped - id: %s: %v", buildJobID, err)
		}
		c.releaser.Release(buildJobID, protocol.BuildStatusCancelled)
		log.Infof("int - job - cancelled by agent - id: %s", buildJobID)
		return nil
	}

	result := buildResult(job, status, outcome)

	if err := c.finalize(ctx, job.ID, status, result, completedAt(outcome)); err != nil {
		switch {
		case errors.Is(err, utils.ErrDuplicateCompletion):
			c.logDuplicate(job, outcome)
			c.releaser.Release(job.ID, status)
			return utils.ErrDuplicateCompletion
		default:
			return err
		}
	}

	log.Infof("end - job - id: %s, status: %s, result: %d", job.ID, status, result.ID)

	c.recordStatistics(job, outcome)
	c.recordImageUse(job, outcome)

	c.releaser.Release(job.ID, status)
	return nil
}

// finalize runs the all-or-nothing triple write: terminal job status,
// Result row, mapping update. Transient storage failures are retried; a
// duplicate or unknown job aborts immediately.
func (c *Correlator) finalize(ctx context.Context, jobID string, status protocol.BuildStatus, result *store.Result, at time.Time) error {
	for {
		err := c.store.FinalizeBuildJob(jobID, status, result, at)
		if !errors.Is(err, utils.ErrStorageUnavailable) {
			return err
		}

		log.Errorf("err - result - finalize failed, retrying - id: %s: %v", jobID, err)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(c.retryInterval):
		}
	}
}

func (c *Correlator) recordStatistics(job *store.BuildJob, outcome protocol.BuildOutcome) {
	if outcome.Durations.TotalSeconds <= 0 {
		return
	}

	err := c.statistics.RecordStatistics(job.ID, job.ExerciseID, outcome.Durations, outcome.DependenciesDownloaded)
	if err != nil {
		log.Warnf("err - result - statistics dropped - id: %s: %v", job.ID, err)
	}
}

func (c *Correlator) recordImageUse(job *store.BuildJob, outcome protocol.BuildOutcome) {
	ts := completedAt(outcome)
	if job.BuildStartDate != nil {
		ts = *job.BuildStartDate
	}
	c.images.RecordUse(job.DockerImage, ts)
}

// logDuplicate compares a late or repeated outcome against the stored
// result, best effort, for diagnostics only.
func (c *Correlator) logDuplicate(job *store.BuildJob, outcome protocol.BuildOutcome) {
	stored, err := c.store.ResultForBuildJob(job.ID)
	if err != nil {
		log.Infof("dup - result - dropped - id: %s, status: %s, late status: %s",
			job.ID, job.Status, outcome.Status)
		return
	}

	late := outcome.Status == protocol.BuildStatusSuccessful
	if stored.Successful != late {
		log.Warnf("dup - result - dropped, outcome differs from stored result - id: %s, stored successful: %v, late status: %s",
			job.ID, stored.Successful, outcome.Status)
		return
	}

	log.Infof("dup - result - dropped - id: %s, status: %s", job.ID, job.Status)
}

// terminalStatus normalizes an outcome status to a terminal job status.
// Unknown or non-terminal statuses from agents become ERROR.
func terminalStatus(status protocol.BuildStatus) protocol.BuildStatus {
	switch status {
	case protocol.BuildStatusSuccessful, protocol.BuildStatusFailed,
		protocol.BuildStatusError, protocol.BuildStatusCancelled,
		protocol.BuildStatusTimedOut:
		return status
	default:
		return protocol.BuildStatusError
	}
}

func completedAt(outcome protocol.BuildOutcome) time.Time {
	if outcome.CompletedAt.IsZero() {
		return time.Now()
	}
	return outcome.CompletedAt
}

// buildResult derives the grading Result row from an outcome.
func buildResult(job *store.BuildJob, status protocol.BuildStatus, outcome protocol.BuildOutcome) *store.Result {
	successful := 0
	for _, task := range outcome.TaskResults {
		if task.Passed {
			successful++
		}
	}

	feedback, err := json.Marshal(outcome.TaskResults)
	if err != nil {
		feedback = nil
	}

	return &store.Result{
		ParticipationID: job.ParticipationID,
		ExerciseID:      job.ExerciseID,
		CommitHash:      job.CommitHash,
		Successful:      status == protocol.BuildStatusSuccessful,
		TimedOut:        status == protocol.BuildStatusTimedOut,
		SuccessfulTasks: successful,
		TotalTasks:      len(outcome.TaskResults),
		Feedback:        feedback,
		CompletionDate:  completedAt(outcome),
	}
}
