/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1

import (
	"time"

	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
)

const (
	MinShots = 1
	MaxShots = 1_000_000
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobQueued     JobStatus = "queued"
	JobRunning    JobStatus = "running"
	JobCancelling JobStatus = "cancelling"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
	JobTimeout    JobStatus = "timeout"
)

// Terminal reports whether the status can never change again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled, JobTimeout:
		return true
	}
	return false
}

type JobPriority string

const (
	PriorityLow    JobPriority = "low"
	PriorityNormal JobPriority = "normal"
	PriorityHigh   JobPriority = "high"
	PriorityUrgent JobPriority = "urgent"
)

// JobParameters tune a single submission.
type JobParameters struct {
	OptimizationLevel int
	Memory            bool
	SimulatorSeed     int64
	TranspilerSeed    int64
	MaxCredits        float64
}

// SchedulingInfo is filled in by the scheduler when a decision is made.
type SchedulingInfo struct {
	EstimatedStart      time.Time
	EstimatedCompletion time.Time
	Score               float64
	QueuePosition       int
}

// JobResults is the normalized outcome of a completed execution. Counts
// keys are bitstrings normalized to big-endian (qubit 0 leftmost); the
// vendor's native ordering is recorded in Metadata under "bit_order".
type JobResults struct {
	Shots       int
	Counts      map[string]int
	ExecutionMs float64
	QueueMs     float64
	Metadata    map[string]string
}

// Job is the scheduling unit. The circuit is owned by the job from
// submission onward and treated as immutable; Device is a snapshot assigned
// by the scheduler.
type Job struct {
	ID      string
	Circuit *circuit.Circuit
	Device  *Device

	Shots      int
	Priority   JobPriority
	Parameters JobParameters
	UserID     string

	Scheduling    *SchedulingInfo
	ProviderJobID string
	Results       *JobResults
	Cost          float64
	Currency      string

	Status       JobStatus
	ErrorMessage string
	ErrorDetails string

	SubmittedAt time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// ExecutionTime is CompletedAt - StartedAt when both are set.
func (j *Job) ExecutionTime() time.Duration {
	if j.StartedAt.IsZero() || j.CompletedAt.IsZero() {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}

// QueueTime is StartedAt - SubmittedAt when both are set.
func (j *Job) QueueTime() time.Duration {
	if j.SubmittedAt.IsZero() || j.StartedAt.IsZero() {
		return 0
	}
	return j.StartedAt.Sub(j.SubmittedAt)
}

// PriorityWeight orders jobs within a device queue.
func (j *Job) PriorityWeight() int {
	switch j.Priority {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 0
	default:
		return 1
	}
}
