package domain

import "time"

// JobKind enumerates the remote generation job categories the poller drives.
type JobKind string

const (
	JobKindImage     JobKind = "image_generation"
	JobKindVideo     JobKind = "video_generation"
	JobKindImageEdit JobKind = "image_edit"
)

// DefaultPollInterval returns how often remote status is checked for the
// kind. Image generations settle quickly; video renders and edits take
// noticeably longer, so they are polled at a slower cadence.
func (k JobKind) DefaultPollInterval() time.Duration {
	switch k {
	case JobKindVideo, JobKindImageEdit:
		return 10 * time.Second
	default:
		return 5 * time.Second
	}
}

// Label returns the kind's human name for log and event prose.
func (k JobKind) Label() string {
	switch k {
	case JobKindImage:
		return "image generation"
	case JobKindVideo:
		return "video generation"
	case JobKindImageEdit:
		return "image edit"
	default:
		return string(k)
	}
}

// JobStatus enumerates job lifecycle states. TIMED_OUT is assigned locally
// when the wait budget runs out; remote vendors never report it.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusTimedOut  JobStatus = "TIMED_OUT"
)

// Terminal reports whether the remote side is finished with the job.
// Statuses outside the known set count as still in flight; the wait budget
// bounds how long they are tolerated.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Job describes one remote generation task being driven to completion.
type Job struct {
	ID           string
	Kind         JobKind
	SubmittedAt  time.Time
	PollInterval time.Duration
	WaitBudget   time.Duration
}

// JobResult captures a successful terminal outcome: the ordered output
// locators reported by the vendor plus polling telemetry.
type JobResult struct {
	JobID   string
	Output  []string
	Polls   int
	Elapsed time.Duration
}

// First returns the primary output locator, the one callers download.
func (r JobResult) First() string {
	if len(r.Output) == 0 {
		return ""
	}
	return r.Output[0]
}
