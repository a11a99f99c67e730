// Package imagecache tracks when Docker images were last used by build
// jobs, to drive pre-pull and eviction on build agent nodes.
package imagecache

import (
	"context"
	"sync"
	"time"

	"github.com/edulab/buildci/pkg/log"
	"github.com/edulab/buildci/pkg/store"
)

// Tracker records image usage timestamps. Updates are best effort: a
// failed write is parked and retried in the background, never blocking
// a build's progress.
type Tracker struct {
	store *store.Store

	mu      sync.Mutex
	pending map[string]time.Time

	retryInterval time.Duration
}

func NewTracker(s *store.Store, retryInterval time.Duration) *Tracker {
	if retryInterval <= 0 {
		retryInterval = 10 * time.Second
	}
	return &Tracker{
		store:         s,
		pending:       map[string]time.Time{},
		retryInterval: retryInterval,
	}
}

// RecordUse advances the last-used timestamp of an image. On storage
// failure the update is parked for the retry loop.
func (t *Tracker) RecordUse(image string, ts time.Time) {
	if image == "" {
		return
	}

	if err := t.store.RecordImageUse(image, ts); err != nil {
		log.Warnf("err - image - deferred update - image: %s: %v", image, err)
		t.park(image, ts)
		return
	}

	log.Tracef("use - image - image: %s, ts: %s", image, ts.Format(time.RFC3339))
}

// ListStaleSince returns all images last used before the threshold, for
// an external eviction process.
func (t *Tracker) ListStaleSince(threshold time.Time) ([]store.DockerImageBuild, error) {
	return t.store.ListImagesStaleSince(threshold)
}

// Run retries parked updates until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Flush()
		}
	}
}

// Flush attempts to write all parked updates. Failures are parked again.
func (t *Tracker) Flush() {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return
	}
	batch := t.pending
	t.pending = map[string]time.Time{}
	t.mu.Unlock()

	for image, ts := range batch {
		if err := t.store.RecordImageUse(image, ts); err != nil {
			log.Debugf("err - image - retry failed - image: %s: %v", image, err)
			t.park(image, ts)
		}
	}
}

func (t *Tracker) park(image string, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.pending[image]; !ok || existing.Before(ts) {
		t.pending[image] = ts
	}
}

// PendingCount returns the number of parked updates.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
