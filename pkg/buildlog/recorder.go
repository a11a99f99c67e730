package buildlog

import (
	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/store"
)

// Recorder persists build logs and per-stage timing statistics.
type Recorder struct {
	stash *Stash
	store *store.Store
}

func NewRecorder(stash *Stash, s *store.Store) *Recorder {
	return &Recorder{stash: stash, store: s}
}

// Append stores log lines for a job, preserving their order.
func (r *Recorder) Append(buildJobID string, lines []protocol.LogLine) error {
	return r.stash.Append(buildJobID, lines)
}

// Read returns a job's log lines.
func (r *Recorder) Read(buildJobID string) ([]protocol.LogLine, error) {
	return r.stash.Read(buildJobID)
}

// Purge deletes a job's logs in bulk.
func (r *Recorder) Purge(buildJobID string) error {
	return r.stash.Purge(buildJobID)
}

// RecordStatistics writes exactly one statistics row per job. The
// result correlator guarantees it is called once per job.
func (r *Recorder) RecordStatistics(buildJobID string, exerciseID int64, durations protocol.StageDurations, dependenciesDownloaded *int) error {
	entry := &store.BuildLogStatisticsEntry{
		BuildJobID:             buildJobID,
		ExerciseID:             exerciseID,
		TestSeconds:            durations.TestSeconds,
		DependenciesDownloaded: dependenciesDownloaded,
	}

	if durations.SetupSeconds > 0 {
		setup := durations.SetupSeconds
		entry.AgentSetupSeconds = &setup
	}
	if durations.SCASeconds != nil {
		entry.StaticCodeAnalysisSeconds = durations.SCASeconds
	}
	if durations.TotalSeconds > 0 {
		total := durations.TotalSeconds
		entry.TotalSeconds = &total
	}

	return r.store.CreateStatistics(entry)
}

// AverageDurations computes mean per-phase durations across all
// statistics rows of an exercise.
func (r *Recorder) AverageDurations(exerciseID int64) (*store.AverageDurations, error) {
	return r.store.AverageDurationsForExercise(exerciseID)
}
