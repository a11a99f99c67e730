package correlator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/store"
	"github.com/edulab/buildci/pkg/store/storetest"
	"github.com/edulab/buildci/pkg/utils"
)

type fakeReleaser struct {
	mu       sync.Mutex
	released []string
}

func (f *fakeReleaser) Release(jobID string, status protocol.BuildStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, jobID)
}

func (f *fakeReleaser) releasedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.released...)
}

type fakeImages struct {
	mu       sync.Mutex
	recorded map[string]time.Time
}

func (f *fakeImages) RecordUse(image string, ts time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recorded == nil {
		f.recorded = map[string]time.Time{}
	}
	f.recorded[image] = ts
}

type statsCall struct {
	jobID      string
	exerciseID int64
	durations  protocol.StageDurations
}

type fakeStats struct {
	mu    sync.Mutex
	calls []statsCall
}

func (f *fakeStats) RecordStatistics(jobID string, exerciseID int64, durations protocol.StageDurations, dependenciesDownloaded *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, statsCall{jobID: jobID, exerciseID: exerciseID, durations: durations})
	return nil
}

type CorrelatorTestSuite struct {
	suite.Suite

	store    *store.Store
	releaser *fakeReleaser
	images   *fakeImages
	stats    *fakeStats
	corr     *Correlator
}

func (suite *CorrelatorTestSuite) SetupTest() {
	suite.store = storetest.NewStore(suite.T())
	suite.releaser = &fakeReleaser{}
	suite.images = &fakeImages{}
	suite.stats = &fakeStats{}
	suite.corr = New(suite.store, suite.releaser, suite.images, suite.stats)
}

func (suite *CorrelatorTestSuite) createRunningJob(id string) {
	suite.Require().NoError(suite.store.CreateBuildJob(&store.BuildJob{
		ID:              id,
		Sequence:        time.Now().UnixNano(),
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
	}))
	suite.Require().NoError(suite.store.MarkAssigned(id, "agent-1", time.Now().Add(time.Minute)))
	suite.Require().NoError(suite.store.MarkRunning(id, time.Now()))
}

func successfulOutcome() protocol.BuildOutcome {
	test := 10.0
	return protocol.BuildOutcome{
		Status: protocol.BuildStatusSuccessful,
		TaskResults: []protocol.TaskResult{
			{Name: "testAdd", Stage: "build", Passed: true},
			{Name: "testSub", Stage: "build", Passed: true},
			{Name: "testMul", Stage: "build", Passed: false, Message: "expected 6, got 5"},
		},
		Durations: protocol.StageDurations{
			SetupSeconds: 2,
			TestSeconds:  &test,
			TotalSeconds: 12,
		},
		CompletedAt: time.Now(),
	}
}

func (suite *CorrelatorTestSuite) TestSuccessfulCompletion() {
	suite.createRunningJob("job-1")

	err := suite.corr.ReportCompletion(context.Background(), "job-1", successfulOutcome())
	suite.Require().NoError(err)

	job, err := suite.store.GetBuildJob("job-1")
	suite.Require().NoError(err)
	suite.Equal(protocol.BuildStatusSuccessful, job.Status)

	result, err := suite.store.ResultForBuildJob("job-1")
	suite.Require().NoError(err)
	suite.True(result.Successful)
	suite.Equal(2, result.SuccessfulTasks)
	suite.Equal(3, result.TotalTasks)

	var feedback []protocol.TaskResult
	suite.Require().NoError(json.Unmarshal(result.Feedback, &feedback))
	suite.Len(feedback, 3)

	suite.Equal([]string{"job-1"}, suite.releaser.releasedIDs())
	suite.Len(suite.stats.calls, 1)
	suite.Equal(int64(1), suite.stats.calls[0].exerciseID)
	suite.Contains(suite.images.recorded, "eclipse-temurin:21")
}

func (suite *CorrelatorTestSuite) TestDuplicateCompletionIsDropped() {
	suite.createRunningJob("job-1")

	suite.Require().NoError(suite.corr.ReportCompletion(context.Background(), "job-1", successfulOutcome()))

	failed := successfulOutcome()
	failed.Status = protocol.BuildStatusFailed

	err := suite.corr.ReportCompletion(context.Background(), "job-1", failed)
	suite.ErrorIs(err, utils.ErrDuplicateCompletion)

	// The first result stands.
	result, err := suite.store.ResultForBuildJob("job-1")
	suite.Require().NoError(err)
	suite.True(result.Successful)

	var count int64
	suite.Require().NoError(suite.store.DB().Model(&store.Result{}).Count(&count).Error)
	suite.Equal(int64(1), count)

	// Statistics were only recorded once.
	suite.Len(suite.stats.calls, 1)
}

func (suite *CorrelatorTestSuite) TestUnknownJob() {
	err := suite.corr.ReportCompletion(context.Background(), "no-such-job", successfulOutcome())
	suite.ErrorIs(err, utils.ErrUnknownBuildJob)
}

func (suite *CorrelatorTestSuite) TestTimeoutProducesResult() {
	suite.createRunningJob("job-1")

	err := suite.corr.ReportCompletion(context.Background(), "job-1", protocol.BuildOutcome{
		Status:      protocol.BuildStatusTimedOut,
		CompletedAt: time.Now(),
	})
	suite.Require().NoError(err)

	job, err := suite.store.GetBuildJob("job-1")
	suite.Require().NoError(err)
	suite.Equal(protocol.BuildStatusTimedOut, job.Status)

	result, err := suite.store.ResultForBuildJob("job-1")
	suite.Require().NoError(err)
	suite.False(result.Successful)
	suite.True(result.TimedOut)
	suite.Equal(0, result.TotalTasks)

	// No timing statistics for a build that never finished.
	suite.Empty(suite.stats.calls)
}

func (suite *CorrelatorTestSuite) TestLateCompletionAfterTimeout() {
	suite.createRunningJob("job-1")

	suite.Require().NoError(suite.corr.ReportCompletion(context.Background(), "job-1", protocol.BuildOutcome{
		Status:      protocol.BuildStatusTimedOut,
		CompletedAt: time.Now(),
	}))

	// The agent finishes after the deadline; its outcome is dropped.
	err := suite.corr.ReportCompletion(context.Background(), "job-1", successfulOutcome())
	suite.ErrorIs(err, utils.ErrDuplicateCompletion)

	result, err := suite.store.ResultForBuildJob("job-1")
	suite.Require().NoError(err)
	suite.True(result.TimedOut)
	suite.False(result.Successful)
}

func (suite *CorrelatorTestSuite) TestCancelAcknowledgement() {
	suite.createRunningJob("job-1")

	err := suite.corr.ReportCompletion(context.Background(), "job-1", protocol.BuildOutcome{
		Status:      protocol.BuildStatusCancelled,
		CompletedAt: time.Now(),
	})
	suite.Require().NoError(err)

	job, err := suite.store.GetBuildJob("job-1")
	suite.Require().NoError(err)
	suite.Equal(protocol.BuildStatusCancelled, job.Status)

	// Cancellation produces no result.
	_, err = suite.store.ResultForBuildJob("job-1")
	suite.ErrorIs(err, utils.ErrNotFound)

	suite.Equal([]string{"job-1"}, suite.releaser.releasedIDs())
}

func (suite *CorrelatorTestSuite) TestUnknownStatusBecomesError() {
	suite.createRunningJob("job-1")

	err := suite.corr.ReportCompletion(context.Background(), "job-1", protocol.BuildOutcome{
		Status:      protocol.BuildStatus("EXPLODED"),
		CompletedAt: time.Now(),
	})
	suite.Require().NoError(err)

	job, err := suite.store.GetBuildJob("job-1")
	suite.Require().NoError(err)
	suite.Equal(protocol.BuildStatusError, job.Status)
}

func (suite *CorrelatorTestSuite) TestConcurrentCompletions() {
	suite.createRunningJob("job-1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := suite.corr.ReportCompletion(context.Background(), "job-1", successfulOutcome()); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	suite.Equal(1, winners)

	var count int64
	suite.Require().NoError(suite.store.DB().Model(&store.Result{}).Count(&count).Error)
	suite.Equal(int64(1), count)
}

func TestCorrelatorTestSuite(t *testing.T) {
	suite.Run(t, new(CorrelatorTestSuite))
}
