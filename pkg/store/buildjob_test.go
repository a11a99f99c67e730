package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/store"
	"github.com/edulab/buildci/pkg/store/storetest"
	"github.com/edulab/buildci/pkg/utils"
)

func newJob(id string, sequence int64) *store.BuildJob {
	return &store.BuildJob{
		ID:              id,
		Sequence:        sequence,
		Name:            "exercise-1-student-1",
		ParticipationID: 100,
		CourseID:        10,
		ExerciseID:      1,
		CommitHash:      "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		DockerImage:     "eclipse-temurin:21",
		SpecVersion:     1,
		Status:          protocol.BuildStatusQueued,
		RepositoryType:  protocol.RepositoryTypeAssignment,
		EnqueuedAt:      time.Now(),
	}
}

func TestCreateAndGetBuildJob(t *testing.T) {
	s := storetest.NewStore(t)

	require.NoError(t, s.CreateBuildJob(newJob("job-1", 1)))

	job, err := s.GetBuildJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, protocol.BuildStatusQueued, job.Status)
	assert.Equal(t, int64(1), job.Sequence)

	_, err = s.GetBuildJob("no-such-job")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestListBuildJobsInSequenceOrder(t *testing.T) {
	s := storetest.NewStore(t)

	require.NoError(t, s.CreateBuildJob(newJob("job-2", 2)))
	require.NoError(t, s.CreateBuildJob(newJob("job-1", 1)))
	require.NoError(t, s.CreateBuildJob(newJob("job-3", 3)))

	jobs, err := s.ListBuildJobs(protocol.BuildStatusQueued)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.Equal(t, "job-2", jobs[1].ID)
	assert.Equal(t, "job-3", jobs[2].ID)
}

func TestMaxSequence(t *testing.T) {
	s := storetest.NewStore(t)

	seq, err := s.MaxSequence()
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.CreateBuildJob(newJob("job-1", 7)))

	seq, err = s.MaxSequence()
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
}

func TestLifecycleTransitions(t *testing.T) {
	s := storetest.NewStore(t)
	require.NoError(t, s.CreateBuildJob(newJob("job-1", 1)))

	deadline := time.Now().Add(2 * time.Minute)
	require.NoError(t, s.MarkAssigned("job-1", "agent-1", deadline))

	job, err := s.GetBuildJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, protocol.BuildStatusAssigned, job.Status)
	require.NotNil(t, job.BuildAgentAddress)
	assert.Equal(t, "agent-1", *job.BuildAgentAddress)

	started := time.Now()
	require.NoError(t, s.MarkRunning("job-1", started))

	job, err = s.GetBuildJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, protocol.BuildStatusRunning, job.Status)
	assert.NotNil(t, job.BuildStartDate)
}

func TestTransitionGuards(t *testing.T) {
	s := storetest.NewStore(t)
	require.NoError(t, s.CreateBuildJob(newJob("job-1", 1)))

	// RUNNING requires ASSIGNED.
	err := s.MarkRunning("job-1", time.Now())
	assert.ErrorIs(t, err, utils.ErrTerminalJob)

	// Unknown jobs are distinguished from wrong-state jobs.
	err = s.MarkAssigned("no-such-job", "agent-1", time.Now())
	assert.ErrorIs(t, err, utils.ErrUnknownBuildJob)
}

func TestTerminalStateIsImmutable(t *testing.T) {
	s := storetest.NewStore(t)
	require.NoError(t, s.CreateBuildJob(newJob("job-1", 1)))
	require.NoError(t, s.MarkCancelled("job-1", time.Now()))

	err := s.MarkAssigned("job-1", "agent-1", time.Now())
	assert.ErrorIs(t, err, utils.ErrTerminalJob)

	err = s.MarkCancelled("job-1", time.Now())
	assert.ErrorIs(t, err, utils.ErrTerminalJob)

	job, err := s.GetBuildJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, protocol.BuildStatusCancelled, job.Status)
}

func TestRequeueForDispatch(t *testing.T) {
	s := storetest.NewStore(t)
	require.NoError(t, s.CreateBuildJob(newJob("job-1", 1)))
	require.NoError(t, s.MarkAssigned("job-1", "agent-1", time.Now().Add(time.Minute)))
	require.NoError(t, s.RequeueForDispatch("job-1"))

	job, err := s.GetBuildJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, protocol.BuildStatusQueued, job.Status)
	assert.Nil(t, job.BuildAgentAddress)
	assert.Equal(t, 1, job.DispatchRetries)
}
