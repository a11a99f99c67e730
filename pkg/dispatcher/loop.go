package dispatcher

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/edulab/buildci/pkg/log"
	"github.com/edulab/buildci/pkg/protocol"
)

// Reschedule asks the dispatch loop to run another assignment pass.
func (d *Dispatcher) Reschedule() {
	select {
	case d.rescheduleChan <- true:
	default:
	}
}

// Run drives assignment and the timeout sweep until ctx is cancelled.
// The sweep is the single source of truth for timeout transitions;
// agents do not self-report timeouts.
func (d *Dispatcher) Run(ctx context.Context) {
	sweep := time.NewTicker(d.config.SweepInterval)
	defer sweep.Stop()

	log.Info("starting")
	for {
		select {
		case <-ctx.Done():
			return

		case <-sweep.C:
			d.sweepExpired()

		case <-d.rescheduleChan:
			log.Trace("rescheduling")
			d.assignJobs(ctx)
		}
	}
}

type assignment struct {
	job   *job
	agent string
}

// assignJobs pairs eligible queued jobs with free agent slots. Selection
// happens under the lock; the dispatch messages are sent outside it.
func (d *Dispatcher) assignJobs(ctx context.Context) {
	start := time.Now()
	defer func() {
		log.Trace("assign pass - elapsed:", time.Since(start))
	}()

	var assignments []assignment

	d.Lock()
	for {
		j, a := d.selectJobAndAgentNoLock()
		if j == nil {
			break
		}

		d.queue.Remove(j)
		j.status = protocol.BuildStatusAssigned
		j.agent = a.address
		j.deadline = time.Now().Add(j.timeout)
		a.busy++
		d.courseBusy[j.courseID]++

		assignments = append(assignments, assignment{job: j, agent: a.address})
	}
	d.Unlock()

	for _, as := range assignments {
		d.dispatch(ctx, as.job, as.agent)
	}
}

// selectJobAndAgentNoLock returns the oldest eligible queued job and an
// agent with a free slot, or nil when nothing can be assigned.
func (d *Dispatcher) selectJobAndAgentNoLock() (*job, *agent) {
	a := d.freeAgentNoLock()
	if a == nil {
		return nil, nil
	}

	for _, j := range d.queuedJobsInOrderNoLock() {
		if d.config.MaxJobsPerCourse > 0 && d.courseBusy[j.courseID] >= d.config.MaxJobsPerCourse {
			continue
		}
		return j, a
	}

	return nil, nil
}

// freeAgentNoLock returns the least loaded agent with spare capacity.
func (d *Dispatcher) freeAgentNoLock() *agent {
	var best *agent
	for _, a := range d.agents {
		if a.busy >= a.capacity {
			continue
		}
		if best == nil || a.busy < best.busy {
			best = a
		}
	}
	return best
}

// queuedJobsInOrderNoLock returns the queued jobs sorted by sequence.
func (d *Dispatcher) queuedJobsInOrderNoLock() []*job {
	jobs := append([]*job{}, d.queue.Items()...)
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].sequence < jobs[k].sequence
	})
	return jobs
}

// dispatch persists the assignment and fires the dispatch message.
func (d *Dispatcher) dispatch(ctx context.Context, j *job, agentAddress string) {
	if err := d.store.MarkAssigned(j.id, agentAddress, j.deadline); err != nil {
		log.Warnf("err - job - assignment not persisted - id: %s: %v", j.id, err)
	}

	msg := &protocol.DispatchMessage{
		BuildJobID:            j.id,
		Stages:                j.spec.Stages,
		SpecVersion:           j.spec.Version,
		DockerImage:           j.spec.DockerImage,
		RepositoryURI:         j.repositoryURI,
		RepositoryAccessToken: j.accessToken,
		CommitHash:            j.commitHash,
		Deadline:              j.deadline,
	}

	if err := d.transport.Dispatch(ctx, agentAddress, msg); err != nil {
		log.Warnf("err - job - dispatch failed - id: %s, agent: %s: %v", j.id, agentAddress, err)
		atomic.AddInt64(&d.numDispatchErrors, 1)
		d.requeue(ctx, j)
		return
	}

	log.Infof("run - job - dispatched - id: %s, agent: %s", j.id, agentAddress)
}

// requeue returns a job to the queue after a failed dispatch, or marks
// it ERROR once the retry budget is spent.
func (d *Dispatcher) requeue(ctx context.Context, j *job) {
	d.Lock()
	if _, ok := d.jobs[j.id]; !ok {
		d.Unlock()
		return
	}

	if j.agent != "" {
		if a, ok := d.agents[j.agent]; ok && a.busy > 0 {
			a.busy--
		}
		if n := d.courseBusy[j.courseID]; n > 1 {
			d.courseBusy[j.courseID] = n - 1
		} else {
			delete(d.courseBusy, j.courseID)
		}
		j.agent = ""
	}

	j.retries++
	exhausted := j.retries >= d.config.MaxDispatchRetries

	if !exhausted {
		j.status = protocol.BuildStatusQueued
		j.deadline = time.Time{}
		d.queue.Push(j)
	}
	d.Unlock()

	if exhausted {
		log.Errorf("err - job - dispatch retries exhausted - id: %s", j.id)
		if d.completions != nil {
			d.completions(j.id, protocol.BuildOutcome{
				Status:      protocol.BuildStatusError,
				CompletedAt: time.Now(),
			})
		}
		return
	}

	if err := d.store.RequeueForDispatch(j.id); err != nil {
		log.Warnf("err - job - requeue not persisted - id: %s: %v", j.id, err)
	}

	d.Reschedule()
}

// sweepExpired transitions jobs past their deadline to TIMED_OUT by
// feeding a synthetic timeout outcome to the completion sink, so grading
// is not left pending forever.
func (d *Dispatcher) sweepExpired() {
	now := time.Now()

	var expired []*job

	d.RLock()
	for _, j := range d.jobs {
		switch j.status {
		case protocol.BuildStatusAssigned, protocol.BuildStatusRunning:
			if !j.deadline.IsZero() && j.deadline.Before(now) {
				expired = append(expired, j)
			}
		}
	}
	d.RUnlock()

	for _, j := range expired {
		log.Warnf("int - job - deadline exceeded - id: %s, agent: %s", j.id, j.agent)
		if d.completions != nil {
			d.completions(j.id, protocol.BuildOutcome{
				Status:      protocol.BuildStatusTimedOut,
				CompletedAt: now,
			})
		}
	}
}
