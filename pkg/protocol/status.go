package protocol

// Lifecycle status of a build job.
type BuildStatus string

const (
	BuildStatusQueued     BuildStatus = "QUEUED"
	BuildStatusAssigned   BuildStatus = "ASSIGNED"
	BuildStatusRunning    BuildStatus = "RUNNING"
	BuildStatusSuccessful BuildStatus = "SUCCESSFUL"
	BuildStatusFailed     BuildStatus = "FAILED"
	BuildStatusError      BuildStatus = "ERROR"
	BuildStatusCancelled  BuildStatus = "CANCELLED"
	BuildStatusTimedOut   BuildStatus = "TIMED_OUT"
)

// Should return true if the job is no longer in progress.
// Terminal jobs are immutable, any further transition is rejected.
func (status BuildStatus) IsTerminal() bool {
	switch status {
	case BuildStatusQueued, BuildStatusAssigned, BuildStatusRunning:
		return false
	default:
		return true
	}
}

// Should return true if the job can be cancelled without agent cooperation.
func (status BuildStatus) IsCancellable() bool {
	switch status {
	case BuildStatusQueued, BuildStatusAssigned:
		return true
	default:
		return false
	}
}

// The repository whose push triggered the build.
type RepositoryType string

const (
	RepositoryTypeAssignment RepositoryType = "ASSIGNMENT"
	RepositoryTypeTests      RepositoryType = "TESTS"
	RepositoryTypeSolution   RepositoryType = "SOLUTION"
	RepositoryTypeTemplate   RepositoryType = "TEMPLATE"
)
