package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulab/buildci/pkg/store"
	"github.com/edulab/buildci/pkg/store/storetest"
	"github.com/edulab/buildci/pkg/utils"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestCreateStatisticsOncePerJob(t *testing.T) {
	s := storetest.NewStore(t)

	entry := &store.BuildLogStatisticsEntry{
		BuildJobID:   "job-1",
		ExerciseID:   1,
		TotalSeconds: floatPtr(12.5),
	}
	require.NoError(t, s.CreateStatistics(entry))

	err := s.CreateStatistics(&store.BuildLogStatisticsEntry{BuildJobID: "job-1"})
	assert.ErrorIs(t, err, utils.ErrDuplicateCompletion)
}

func TestAverageDurationsForExercise(t *testing.T) {
	s := storetest.NewStore(t)

	require.NoError(t, s.CreateStatistics(&store.BuildLogStatisticsEntry{
		BuildJobID:        "job-1",
		ExerciseID:        1,
		AgentSetupSeconds: floatPtr(2),
		TestSeconds:       floatPtr(10),
		TotalSeconds:      floatPtr(12),
	}))
	require.NoError(t, s.CreateStatistics(&store.BuildLogStatisticsEntry{
		BuildJobID:        "job-2",
		ExerciseID:        1,
		AgentSetupSeconds: floatPtr(4),
		TestSeconds:       floatPtr(20),
		TotalSeconds:      floatPtr(24),
	}))
	require.NoError(t, s.CreateStatistics(&store.BuildLogStatisticsEntry{
		BuildJobID:   "job-3",
		ExerciseID:   2,
		TotalSeconds: floatPtr(100),
	}))

	avg, err := s.AverageDurationsForExercise(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), avg.JobCount)
	require.NotNil(t, avg.AgentSetupSeconds)
	assert.InDelta(t, 3.0, *avg.AgentSetupSeconds, 0.001)
	require.NotNil(t, avg.TestSeconds)
	assert.InDelta(t, 15.0, *avg.TestSeconds, 0.001)
	require.NotNil(t, avg.TotalSeconds)
	assert.InDelta(t, 18.0, *avg.TotalSeconds, 0.001)
	assert.Nil(t, avg.StaticCodeAnalysisSeconds)
}

func TestAverageDurationsForUnknownExercise(t *testing.T) {
	s := storetest.NewStore(t)

	avg, err := s.AverageDurationsForExercise(99)
	require.NoError(t, err)
	assert.Equal(t, int64(0), avg.JobCount)
	assert.Nil(t, avg.TotalSeconds)
}
