// Package protocol defines the message shapes exchanged with build agents.
//
// All messages are JSON encoded. The schema evolves additively only, so
// agents and orchestrators of different versions stay compatible.
package protocol

import (
	"time"
)

// A compiled build stage, an ordered list of tasks of known kinds.
type BuildStage struct {
	Name  string      `json:"name"`
	Tasks []BuildTask `json:"tasks"`
}

// One task within a stage.
type BuildTask struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	// Optional shell command for kind "script".
	Command string `json:"command,omitempty"`
}

// DispatchMessage is sent to a build agent when a job is assigned to it.
type DispatchMessage struct {
	BuildJobID string `json:"buildJobId"`

	// The immutable, compiled build specification.
	Stages      []BuildStage `json:"stages"`
	SpecVersion int64        `json:"specVersion"`
	DockerImage string       `json:"dockerImage"`

	// Repository to clone and the token to clone it with.
	RepositoryURI         string `json:"repositoryUri"`
	RepositoryAccessToken string `json:"repositoryAccessToken"`
	CommitHash            string `json:"commitHash"`

	Deadline time.Time `json:"deadline"`
}

// CancelMessage asks an agent to abort a running job. Best effort; the
// agent's completion notice performs the actual state transition.
type CancelMessage struct {
	BuildJobID string `json:"buildJobId"`
}

// StartedMessage is sent by an agent when it begins executing a job.
type StartedMessage struct {
	BuildJobID   string    `json:"buildJobId"`
	AgentAddress string    `json:"agentAddress"`
	StartedAt    time.Time `json:"startedAt"`
}

// LogMessage carries a batch of log lines produced by a running job.
// Batches for one job arrive in submission order.
type LogMessage struct {
	BuildJobID string    `json:"buildJobId"`
	Lines      []LogLine `json:"lines"`
}

// CompletionMessage is sent by an agent exactly once per build attempt.
// Agent-side retries are expected and tolerated as duplicates.
type CompletionMessage struct {
	BuildJobID string       `json:"buildJobId"`
	Outcome    BuildOutcome `json:"outcome"`
}

// BuildOutcome carries the structured result of one build attempt.
type BuildOutcome struct {
	Status      BuildStatus  `json:"status"`
	TaskResults []TaskResult `json:"taskResults,omitempty"`

	// Identifier of the log stream the agent appended its output to.
	LogRef string `json:"logRef,omitempty"`

	Durations              StageDurations `json:"durations"`
	DependenciesDownloaded *int           `json:"dependenciesDownloaded,omitempty"`

	CompletedAt time.Time `json:"completedAt"`
}

// Per-task pass/fail detail inside an outcome.
type TaskResult struct {
	Name    string `json:"name"`
	Stage   string `json:"stage"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// StageDurations is the per-phase timing breakdown of a build job.
// A nil phase did not run.
type StageDurations struct {
	SetupSeconds float64  `json:"setupSeconds"`
	TestSeconds  *float64 `json:"testSeconds,omitempty"`
	SCASeconds   *float64 `json:"scaSeconds,omitempty"`
	TotalSeconds float64  `json:"totalSeconds"`
}

// A single structured log line produced by an agent.
type LogLine struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}
