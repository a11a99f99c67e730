package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulab/buildci/pkg/store/storetest"
	"github.com/edulab/buildci/pkg/utils"
)

func TestRecordImageUse(t *testing.T) {
	s := storetest.NewStore(t)

	first := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, s.RecordImageUse("eclipse-temurin:21", first))

	row, err := s.GetImageUse("eclipse-temurin:21")
	require.NoError(t, err)
	assert.WithinDuration(t, first, row.LastUsed, time.Second)

	_, err = s.GetImageUse("no-such-image")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestRecordImageUseIsMonotonic(t *testing.T) {
	s := storetest.NewStore(t)

	newer := time.Now().UTC()
	older := newer.Add(-time.Hour)

	require.NoError(t, s.RecordImageUse("eclipse-temurin:21", newer))

	// An out-of-order report must not move the timestamp backwards.
	require.NoError(t, s.RecordImageUse("eclipse-temurin:21", older))

	row, err := s.GetImageUse("eclipse-temurin:21")
	require.NoError(t, err)
	assert.WithinDuration(t, newer, row.LastUsed, time.Second)

	// A newer report advances it.
	newest := newer.Add(time.Hour)
	require.NoError(t, s.RecordImageUse("eclipse-temurin:21", newest))

	row, err = s.GetImageUse("eclipse-temurin:21")
	require.NoError(t, err)
	assert.WithinDuration(t, newest, row.LastUsed, time.Second)
}

func TestListImagesStaleSince(t *testing.T) {
	s := storetest.NewStore(t)

	now := time.Now().UTC()
	require.NoError(t, s.RecordImageUse("old-image", now.Add(-48*time.Hour)))
	require.NoError(t, s.RecordImageUse("older-image", now.Add(-96*time.Hour)))
	require.NoError(t, s.RecordImageUse("fresh-image", now))

	stale, err := s.ListImagesStaleSince(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, "older-image", stale[0].Image)
	assert.Equal(t, "old-image", stale[1].Image)
}
