// Package dispatcher owns the build queue: it accepts build requests,
// assigns them to build agents in enqueue order under per-agent and
// per-course concurrency caps, and tracks every job's lifecycle state.
package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/edulab/buildci/pkg/buildspec"
	"github.com/edulab/buildci/pkg/log"
	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/store"
	"github.com/edulab/buildci/pkg/utils"
)

// AgentTransport delivers fire-and-forget messages to build agents.
type AgentTransport interface {
	Dispatch(ctx context.Context, agentAddress string, msg *protocol.DispatchMessage) error
	Cancel(ctx context.Context, agentAddress string, msg *protocol.CancelMessage) error
}

// CompletionSink receives outcomes produced inside the orchestrator,
// such as synthetic timeout and dispatch-failure outcomes.
type CompletionSink func(buildJobID string, outcome protocol.BuildOutcome)

type Config struct {
	// Maximum number of concurrently assigned or running jobs per agent.
	MaxJobsPerAgent int `mapstructure:"max_jobs_per_agent"`

	// Maximum number of concurrently running jobs per course.
	// Zero means unlimited.
	MaxJobsPerCourse int `mapstructure:"max_jobs_per_course"`

	// Deadline applied to assigned and running jobs when the exercise
	// does not configure its own.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`

	// Number of dispatch attempts before a job is marked ERROR.
	MaxDispatchRetries int `mapstructure:"max_dispatch_retries"`

	// Interval of the timeout sweep.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func (c *Config) SetDefaults() {
	if c.MaxJobsPerAgent <= 0 {
		c.MaxJobsPerAgent = 4
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 2 * time.Minute
	}
	if c.MaxDispatchRetries <= 0 {
		c.MaxDispatchRetries = 3
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Second
	}
}

// EnqueueRequest describes a gradable submission that needs a build.
type EnqueueRequest struct {
	ParticipationID int64
	CourseID        int64
	ExerciseID      int64
	CommitHash      string
	RepositoryType  protocol.RepositoryType
	RepositoryURI   string
	AccessToken     string
	Name            string

	Spec *buildspec.CompiledSpec

	// Per-exercise build deadline. Zero applies the configured default.
	Timeout time.Duration
}

// In-memory handle of a non-terminal job.
type job struct {
	id       string
	sequence int64

	participationID int64
	courseID        int64
	exerciseID      int64
	commitHash      string
	repositoryType  protocol.RepositoryType
	repositoryURI   string
	accessToken     string
	name            string

	spec    *buildspec.CompiledSpec
	timeout time.Duration

	status   protocol.BuildStatus
	agent    string
	deadline time.Time
	retries  int
}

type agent struct {
	address  string
	capacity int

	// Number of jobs currently assigned or running on the agent.
	busy int
}

// Dispatcher statistics for the metrics endpoint.
type Statistics struct {
	Agents         int64
	QueuedJobs     int64
	RunningJobs    int64
	CompletedJobs  int64
	FailedJobs     int64
	TimedOutJobs   int64
	CancelledJobs  int64
	DispatchErrors int64
}

type Dispatcher struct {
	sync.RWMutex

	store     *store.Store
	transport AgentTransport
	config    Config

	// Channel used to trigger a dispatch pass.
	rescheduleChan chan bool

	// Map of job id to in-memory handle, non-terminal jobs only.
	jobs map[string]*job

	// Jobs eligible for assignment, FIFO by sequence.
	queue *utils.PriorityQueue[*job]

	// Map of agent address to agent.
	agents map[string]*agent

	// Number of assigned or running jobs per course.
	courseBusy map[int64]int

	// Sink for synthetic outcomes. Set before Run is called.
	completions CompletionSink

	sequence int64

	numCompleted      int64
	numFailed         int64
	numTimedOut       int64
	numCancelled      int64
	numDispatchErrors int64
}

func New(s *store.Store, transport AgentTransport, config Config) (*Dispatcher, error) {
	config.SetDefaults()

	d := &Dispatcher{
		store:          s,
		transport:      transport,
		config:         config,
		rescheduleChan: make(chan bool, 1),
		jobs:           map[string]*job{},
		queue:          utils.NewPriorityQueue(jobOrderFunc, jobEqualityFunc),
		agents:         map[string]*agent{},
		courseBusy:     map[int64]int{},
	}

	if err := d.recover(); err != nil {
		return nil, err
	}

	return d, nil
}

// Jobs are dispatched in enqueue order.
func jobOrderFunc(a, b *job) int {
	switch {
	case a.sequence < b.sequence:
		return -1
	case a.sequence > b.sequence:
		return 1
	default:
		return 0
	}
}

func jobEqualityFunc(a, b *job) bool {
	return a.id == b.id
}

// SetCompletionSink installs the receiver of synthetic outcomes.
func (d *Dispatcher) SetCompletionSink(sink CompletionSink) {
	d.completions = sink
}

// recover reloads non-terminal jobs from the store after a restart.
// Assigned and running jobs are left to the timeout sweep; their agents
// will report completion or the deadline will expire.
func (d *Dispatcher) recover() error {
	maxSeq, err := d.store.MaxSequence()
	if err != nil {
		return err
	}
	d.sequence = maxSeq

	queued, err := d.store.ListBuildJobs(protocol.BuildStatusQueued)
	if err != nil {
		return err
	}

	for i := range queued {
		row := &queued[i]
		j := &job{
			id:              row.ID,
			sequence:        row.Sequence,
			participationID: row.ParticipationID,
			courseID:        row.CourseID,
			exerciseID:      row.ExerciseID,
			commitHash:      row.CommitHash,
			repositoryType:  row.RepositoryType,
			name:            row.Name,
			status:          protocol.BuildStatusQueued,
			timeout:         d.config.DefaultTimeout,
			spec: &buildspec.CompiledSpec{
				ExerciseID:  row.ExerciseID,
				Version:     row.SpecVersion,
				DockerImage: row.DockerImage,
			},
		}
		d.jobs[j.id] = j
		d.queue.Push(j)
	}

	if len(queued) > 0 {
		log.Infof("recovered %d queued jobs from store", len(queued))
	}

	return nil
}

// Enqueue durably persists a new QUEUED job and returns its id. It never
// blocks on agent availability; assignment happens asynchronously.
func (d *Dispatcher) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if req.Spec == nil {
		return "", utils.NewDetailedError(utils.ErrInvalidConfiguration, "no compiled specification")
	}
	if req.CommitHash == "" {
		return "", utils.NewDetailedError(utils.ErrBadRequest, "empty commit hash")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = d.config.DefaultTimeout
	}

	uid, _ := uuid.NewRandom()

	d.Lock()
	d.sequence++
	j := &job{
		id:              uid.String(),
		sequence:        d.sequence,
		participationID: req.ParticipationID,
		courseID:        req.CourseID,
		exerciseID:      req.ExerciseID,
		commitHash:      req.CommitHash,
		repositoryType:  req.RepositoryType,
		repositoryURI:   req.RepositoryURI,
		accessToken:     req.AccessToken,
		name:            req.Name,
		spec:            req.Spec,
		timeout:         timeout,
		status:          protocol.BuildStatusQueued,
	}
	d.Unlock()

	row := &store.BuildJob{
		ID:              j.id,
		Sequence:        j.sequence,
		Name:            j.name,
		ParticipationID: j.participationID,
		CourseID:        j.courseID,
		ExerciseID:      j.exerciseID,
		CommitHash:      j.commitHash,
		DockerImage:     j.spec.DockerImage,
		SpecVersion:     j.spec.Version,
		Status:          protocol.BuildStatusQueued,
		RepositoryType:  j.repositoryType,
		EnqueuedAt:      time.Now(),
	}
	if err := d.store.CreateBuildJob(row); err != nil {
		return "", err
	}

	d.Lock()
	d.jobs[j.id] = j
	d.queue.Push(j)
	d.Unlock()

	log.Infof("new - job - id: %s, course: %d, exercise: %d, commit: %.8s",
		j.id, j.courseID, j.exerciseID, j.commitHash)

	d.Reschedule()
	return j.id, nil
}

// Cancel cancels a job. Queued and assigned jobs transition immediately;
// running jobs get a best-effort cancel request forwarded to their agent
// and stay RUNNING until the agent acknowledges with a completion.
func (d *Dispatcher) Cancel(ctx context.Context, jobID string) error {
	d.Lock()
	j, ok := d.jobs[jobID]
	if !ok {
		d.Unlock()
		return utils.ErrNotFound
	}

	switch j.status {
	case protocol.BuildStatusQueued, protocol.BuildStatusAssigned:
		d.queue.Remove(j)
		agentAddress := j.agent
		d.finishJobNoLock(j, protocol.BuildStatusCancelled)
		d.Unlock()

		if err := d.store.MarkCancelled(jobID, time.Now()); err != nil {
			log.Warnf("err - job - cancel not persisted - id: %s: %v", jobID, err)
		}
		log.Infof("int - job - cancelled - id: %s", jobID)

		if agentAddress != "" {
			d.forwardCancel(ctx, agentAddress, jobID)
		}
		return nil

	case protocol.BuildStatusRunning:
		agentAddress := j.agent
		d.Unlock()

		log.Infof("int - job - cancel requested from agent - id: %s", jobID)
		d.forwardCancel(ctx, agentAddress, jobID)
		return nil

	default:
		d.Unlock()
		return utils.ErrTerminalJob
	}
}

func (d *Dispatcher) forwardCancel(ctx context.Context, agentAddress, jobID string) {
	err := d.transport.Cancel(ctx, agentAddress, &protocol.CancelMessage{BuildJobID: jobID})
	if err != nil {
		log.Warnf("err - job - cancel not delivered - id: %s, agent: %s: %v", jobID, agentAddress, err)
	}
}

// MarkRunning records that an agent has started executing a job.
func (d *Dispatcher) MarkRunning(jobID, agentAddress string, startedAt time.Time) error {
	d.Lock()
	j, ok := d.jobs[jobID]
	if !ok || j.status != protocol.BuildStatusAssigned {
		d.Unlock()
		if !ok {
			return utils.ErrUnknownBuildJob
		}
		return utils.ErrTerminalJob
	}
	j.status = protocol.BuildStatusRunning
	j.deadline = startedAt.Add(j.timeout)
	d.Unlock()

	if err := d.store.MarkRunning(jobID, startedAt); err != nil {
		log.Warnf("err - job - start not persisted - id: %s: %v", jobID, err)
	}

	log.Debugf("run - job - id: %s, agent: %s", jobID, agentAddress)
	return nil
}

// Release frees the capacity slot of a terminal job. Called by the
// result correlator after it has persisted the outcome.
func (d *Dispatcher) Release(jobID string, status protocol.BuildStatus) {
	d.Lock()
	j, ok := d.jobs[jobID]
	if !ok {
		d.Unlock()
		return
	}
	d.queue.Remove(j)
	d.finishJobNoLock(j, status)
	d.Unlock()

	d.Reschedule()
}

// finishJobNoLock removes a job from tracking and releases its slots.
// Counters never go negative, even if called twice by mistake.
func (d *Dispatcher) finishJobNoLock(j *job, status protocol.BuildStatus) {
	delete(d.jobs, j.id)

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

	j.status = status

	switch status {
	case protocol.BuildStatusSuccessful:
		atomic.AddInt64(&d.numCompleted, 1)
	case protocol.BuildStatusFailed, protocol.BuildStatusError:
		atomic.AddInt64(&d.numCompleted, 1)
		atomic.AddInt64(&d.numFailed, 1)
	case protocol.BuildStatusTimedOut:
		atomic.AddInt64(&d.numCompleted, 1)
		atomic.AddInt64(&d.numTimedOut, 1)
	case protocol.BuildStatusCancelled:
		atomic.AddInt64(&d.numCancelled, 1)
	}
}

// RegisterAgent adds a build agent to the pool.
func (d *Dispatcher) RegisterAgent(address string, capacity int) {
	if capacity <= 0 {
		capacity = d.config.MaxJobsPerAgent
	}

	d.Lock()
	if a, ok := d.agents[address]; ok {
		a.capacity = capacity
	} else {
		d.agents[address] = &agent{address: address, capacity: capacity}
	}
	d.Unlock()

	log.Infof("new - agent - address: %s, capacity: %d", address, capacity)
	d.Reschedule()
}

// UnregisterAgent removes an agent. Jobs assigned to it are left to the
// timeout sweep.
func (d *Dispatcher) UnregisterAgent(address string) {
	d.Lock()
	delete(d.agents, address)
	d.Unlock()

	log.Infof("del - agent - address: %s", address)
}

// AgentInfo describes a registered agent for operators.
type AgentInfo struct {
	Address  string `json:"address"`
	Capacity int    `json:"capacity"`
	Busy     int    `json:"busy"`
}

// ListAgents returns the registered agents.
func (d *Dispatcher) ListAgents() []AgentInfo {
	d.RLock()
	defer d.RUnlock()

	infos := make([]AgentInfo, 0, len(d.agents))
	for _, a := range d.agents {
		infos = append(infos, AgentInfo{Address: a.address, Capacity: a.capacity, Busy: a.busy})
	}
	return infos
}

// JobInfo describes a tracked job for operators.
type JobInfo struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	CourseID      int64                `json:"courseId"`
	ExerciseID    int64                `json:"exerciseId"`
	CommitHash    string               `json:"commitHash"`
	Status        protocol.BuildStatus `json:"status"`
	Agent         string               `json:"agent,omitempty"`
	QueuePosition int                  `json:"queuePosition,omitempty"`
}

// ListJobs returns all non-terminal jobs, queued jobs first in queue
// order.
func (d *Dispatcher) ListJobs() []JobInfo {
	d.RLock()
	defer d.RUnlock()

	position := map[string]int{}
	for i, j := range d.queuedJobsInOrderNoLock() {
		position[j.id] = i + 1
	}

	infos := make([]JobInfo, 0, len(d.jobs))
	for _, j := range d.jobs {
		infos = append(infos, JobInfo{
			ID:            j.id,
			Name:          j.name,
			CourseID:      j.courseID,
			ExerciseID:    j.exerciseID,
			CommitHash:    j.commitHash,
			Status:        j.status,
			Agent:         j.agent,
			QueuePosition: position[j.id],
		})
	}
	return infos
}

// Statistics returns dispatcher counters for the metrics endpoint.
func (d *Dispatcher) Statistics() *Statistics {
	d.RLock()
	defer d.RUnlock()

	stats := &Statistics{
		Agents:         int64(len(d.agents)),
		QueuedJobs:     int64(d.queue.Len()),
		CompletedJobs:  atomic.LoadInt64(&d.numCompleted),
		FailedJobs:     atomic.LoadInt64(&d.numFailed),
		TimedOutJobs:   atomic.LoadInt64(&d.numTimedOut),
		CancelledJobs:  atomic.LoadInt64(&d.numCancelled),
		DispatchErrors: atomic.LoadInt64(&d.numDispatchErrors),
	}

	for _, j := range d.jobs {
		if j.status == protocol.BuildStatusAssigned || j.status == protocol.BuildStatusRunning {
			stats.RunningJobs++
		}
	}

	return stats
}
