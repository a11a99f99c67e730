// Package store persists build jobs, results and their correlation state.
package store

import (
	"time"

	"github.com/edulab/buildci/pkg/protocol"
)

// BuildJob is the database model of one build attempt.
type BuildJob struct {
	ID string `gorm:"primaryKey;size:36"`

	// Monotonic enqueue order, used for FIFO dispatch and tie breaking.
	Sequence int64 `gorm:"uniqueIndex"`

	Name            string `gorm:"size:255"`
	ParticipationID int64  `gorm:"index"`
	CourseID        int64  `gorm:"index"`
	ExerciseID      int64  `gorm:"index"`
	CommitHash      string `gorm:"size:40"`

	DockerImage       string  `gorm:"size:255"`
	SpecVersion       int64
	BuildAgentAddress *string `gorm:"size:255"`

	Status         protocol.BuildStatus    `gorm:"size:16;index"`
	RepositoryType protocol.RepositoryType `gorm:"size:16"`

	EnqueuedAt          time.Time
	BuildStartDate      *time.Time
	BuildCompletionDate *time.Time
	Deadline            *time.Time

	DispatchRetries int
}

// BuildJobResultMapping links a build job to the result it produced.
// ResultID is written exactly once; a second write is a duplicate completion.
type BuildJobResultMapping struct {
	BuildJobID string `gorm:"primaryKey;size:36"`
	ResultID   *int64 `gorm:"uniqueIndex"`
}

// Result is the grading result produced for a completed build job.
type Result struct {
	ID              int64 `gorm:"primaryKey;autoIncrement"`
	ParticipationID int64 `gorm:"index"`
	ExerciseID      int64 `gorm:"index"`
	CommitHash      string `gorm:"size:40"`

	Successful bool
	TimedOut   bool

	SuccessfulTasks int
	TotalTasks      int

	// Per-task pass/fail details, JSON encoded.
	Feedback []byte `gorm:"type:jsonb"`

	CompletionDate time.Time
}

// BuildLogStatisticsEntry holds the per-phase timing breakdown of one
// completed build job. Written once, never updated.
type BuildLogStatisticsEntry struct {
	BuildJobID string `gorm:"primaryKey;size:36"`
	ExerciseID int64  `gorm:"index"`

	AgentSetupSeconds         *float64
	TestSeconds               *float64
	StaticCodeAnalysisSeconds *float64
	TotalSeconds              *float64

	DependenciesDownloaded *int

	CreatedAt time.Time
}

// DockerImageBuild tracks the most recent build start time per image.
type DockerImageBuild struct {
	Image    string    `gorm:"primaryKey;size:255"`
	LastUsed time.Time `gorm:"index"`
}

// ParticipationVCSAccessToken is a short-lived repository access credential.
// At most one live token exists per (user, participation) pair.
type ParticipationVCSAccessToken struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	UserID          int64  `gorm:"uniqueIndex:vcs_tokens_by_pair,priority:1"`
	ParticipationID int64  `gorm:"uniqueIndex:vcs_tokens_by_pair,priority:2"`
	Token           string `gorm:"uniqueIndex;size:64"`

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// VCSAccessLog is one audit row per repository access. CommitHash is
// attached after the fact, once known.
type VCSAccessLog struct {
	ID              int64   `gorm:"primaryKey;autoIncrement"`
	ParticipationID int64   `gorm:"index"`
	Direction       string  `gorm:"size:8"`
	CommitHash      *string `gorm:"size:40"`
	AccessedAt      time.Time
}
