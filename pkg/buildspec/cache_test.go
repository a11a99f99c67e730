package buildspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheResolveMemoizes(t *testing.T) {
	cache := NewCache()

	first, err := cache.Resolve(validConfig())
	assert.NoError(t, err)

	second, err := cache.Resolve(validConfig())
	assert.NoError(t, err)

	// Same configuration version yields the identical spec.
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheNewVersionCompilesNewSpec(t *testing.T) {
	cache := NewCache()

	first, err := cache.Resolve(validConfig())
	assert.NoError(t, err)

	config := validConfig()
	config.ConfigVersion = 2
	config.DockerImage = "eclipse-temurin:22"

	second, err := cache.Resolve(config)
	assert.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, "eclipse-temurin:21", first.DockerImage)
	assert.Equal(t, "eclipse-temurin:22", second.DockerImage)
	assert.Equal(t, 2, cache.Len())
}

func TestCacheEvict(t *testing.T) {
	cache := NewCache()

	_, err := cache.Resolve(validConfig())
	assert.NoError(t, err)

	other := validConfig()
	other.ExerciseID = 43
	_, err = cache.Resolve(other)
	assert.NoError(t, err)

	cache.Evict(42)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	cache := NewCache()

	config := validConfig()
	config.DockerImage = ""

	_, err := cache.Resolve(config)
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}
