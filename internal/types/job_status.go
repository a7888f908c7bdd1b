// SPDX-License-Identifier: MIT

package types

import (
	"encoding/json"
	"fmt"
)

// JobStatus represents the current state of a background job.
type JobStatus string

// Job status constants define all possible states of a background job.
const (
	// JobPending indicates the job is queued but not yet started.
	JobPending JobStatus = "pending"

	// JobRunning indicates the job is currently executing.
	JobRunning JobStatus = "running"

	// JobSuccess indicates the job finished successfully.
	JobSuccess JobStatus = "success"

	// JobFailure indicates the job encountered an error and terminated.
	JobFailure JobStatus = "failure"
)

// String implements fmt.Stringer for better logging and debugging.
func (s JobStatus) String() string {
	return string(s)
}

// IsValid checks whether the job status is one of the defined constants.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobRunning, JobSuccess, JobFailure:
		return true
	default:
		return false
	}
}

// IsTerminal checks whether the job status represents a final state.
// A job in a terminal state will not transition to another state.
func (s JobStatus) IsTerminal() bool {
	return s == JobSuccess || s == JobFailure
}

// CanTransitionTo checks whether this status can transition to the target.
//
// Valid transitions:
//   - Pending → Running
//   - Running → Success, Failure
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case JobPending:
		return target == JobRunning
	case JobRunning:
		return target == JobSuccess || target == JobFailure
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler for JobStatus.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler for JobStatus.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := JobStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid job status: %q", str)
	}
	*s = status
	return nil
}

// JobKind identifies the kind of pipeline work a job performs.
type JobKind string

// Job kinds accepted by the worker pool.
const (
	JobTranscode        JobKind = "transcode"
	JobDetectSubtitle   JobKind = "detect_subtitle"
	JobGenerateCaptions JobKind = "generate_captions"
	JobModerate         JobKind = "moderate"
	JobExtractMetadata  JobKind = "extract_metadata"
)

// IsValid checks whether the job kind is one of the defined constants.
func (k JobKind) IsValid() bool {
	switch k {
	case JobTranscode, JobDetectSubtitle, JobGenerateCaptions, JobModerate, JobExtractMetadata:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (k JobKind) String() string {
	return string(k)
}
