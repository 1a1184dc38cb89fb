package status

import "time"

// RebuildPhase represents the current phase of the rebuild command
type RebuildPhase string

const (
	// RebuildPhaseRunning means the rebuild command has been launched and has not exited
	RebuildPhaseRunning RebuildPhase = "Running"

	// RebuildPhaseComplete means the last rebuild command exited successfully
	RebuildPhaseComplete RebuildPhase = "Complete"

	// RebuildPhaseFailed means the last rebuild command could not start or exited with an error
	RebuildPhaseFailed RebuildPhase = "Failed"

	// RebuildPhaseInterrupted means this process was replaced while the rebuild was running.
	// This is the expected outcome when the command restarts the service.
	RebuildPhaseInterrupted RebuildPhase = "Interrupted"
)

// RebuildStatus represents the last known state of the rebuild command
type RebuildStatus struct {
	// Phase represents the current rebuild phase. Empty when no rebuild was ever requested.
	Phase RebuildPhase `json:"phase,omitempty"`

	// Message provides additional information about the rebuild status
	Message string `json:"message,omitempty"`

	// RequestID identifies the request that launched the last run
	RequestID string `json:"requestId,omitempty"`

	// Command is the shell-quoted rebuild command, for display only
	Command string `json:"command,omitempty"`

	// LastRequested is the timestamp of the last rebuild request
	LastRequested *time.Time `json:"lastRequested,omitempty"`

	// LastStarted is the timestamp the last run was launched
	LastStarted *time.Time `json:"lastStarted,omitempty"`

	// LastFinished is the timestamp the last run exited
	LastFinished *time.Time `json:"lastFinished,omitempty"`

	// ExitCode of the last finished run, nil when it never started
	ExitCode *int `json:"exitCode,omitempty"`

	// RunCount is the number of runs launched by this state directory
	RunCount int `json:"runCount,omitempty"`

	// FailureCount is the number of consecutive failed runs
	FailureCount int `json:"failureCount,omitempty"`
}
