package buildspec

import (
	"sync"

	"github.com/edulab/buildci/pkg/log"
)

type cacheKey struct {
	exerciseID int64
	version    int64
}

// Cache memoizes compiled specifications per exercise configuration
// version, so unchanged configurations are not recompiled.
type Cache struct {
	mu    sync.Mutex
	specs map[cacheKey]*CompiledSpec
}

func NewCache() *Cache {
	return &Cache{
		specs: map[cacheKey]*CompiledSpec{},
	}
}

// Resolve returns the cached spec for the configuration version, or
// compiles and caches it.
func (c *Cache) Resolve(config ExerciseConfig) (*CompiledSpec, error) {
	key := cacheKey{exerciseID: config.ExerciseID, version: config.ConfigVersion}

	c.mu.Lock()
	defer c.mu.Unlock()

	if spec, ok := c.specs[key]; ok {
		return spec, nil
	}

	spec, err := Compile(config)
	if err != nil {
		return nil, err
	}

	log.Debugf("new - spec - exercise: %d, version: %d, image: %s",
		spec.ExerciseID, spec.Version, spec.DockerImage)

	c.specs[key] = spec
	return spec, nil
}

// Evict drops all cached versions of an exercise.
func (c *Cache) Evict(exerciseID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.specs {
		if key.exerciseID == exerciseID {
			delete(c.specs, key)
		}
	}
}

// Len returns the number of cached specifications.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.specs)
}
