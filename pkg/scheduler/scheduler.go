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

// Package scheduler owns jobs from submission to terminal state. A job is
// validated, scored against every eligible device, enqueued on the chosen
// device's queue, dispatched by the periodic dispatcher, and then driven
// by a per-job poller until the provider reports a terminal status.
//
// Job state transitions are serialized under the scheduler's lock; at any
// moment a job is advanced by exactly one task. Provider calls never run
// under the lock.
package scheduler

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/samber/lo"
	"k8s.io/utils/clock"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/events"
	"github.com/amirewontmiss/eigenos/pkg/logging"
	"github.com/amirewontmiss/eigenos/pkg/metrics"
	"github.com/amirewontmiss/eigenos/pkg/repository"
	"github.com/amirewontmiss/eigenos/pkg/scheduler/predictor"
	"github.com/amirewontmiss/eigenos/pkg/scheduler/pricing"
	"github.com/amirewontmiss/eigenos/pkg/supervisor"
)

const (
	DefaultDispatchInterval  = 5 * time.Second
	DefaultPollInterval      = 10 * time.Second
	DefaultPollTimeout       = time.Hour
	DefaultRetryBaseDelay    = time.Second
	DefaultMaxConcurrentJobs = 10
	DefaultAverageJobTimeMs  = 60_000

	// Hard limits on what the scheduler accepts.
	MaxCircuitQubits = 100
	MaxCircuitGates  = 10_000

	// DefaultConfidence applies until prediction accuracy tracking exists.
	DefaultConfidence = 0.8
)

// Decision is the outcome of scoring one job against the device fleet.
type Decision struct {
	Device              *v1.Device
	EstimatedStart      time.Time
	EstimatedCompletion time.Time
	EstimatedQueueMs    float64
	Priority            float64
	Cost                float64
	Currency            string
	Confidence          float64
}

// Stats is a point-in-time summary for the stats endpoint.
type Stats struct {
	Queued   int
	Running  int
	ByStatus map[v1.JobStatus]int
}

type Scheduler struct {
	log      *logging.Logger
	clock    clock.Clock
	recorder events.Recorder

	supervisor *supervisor.Supervisor
	predictor  *predictor.Predictor
	history    *metrics.History
	store      repository.Store

	DispatchInterval  time.Duration
	PollInterval      time.Duration
	PollTimeout       time.Duration
	RetryBaseDelay    time.Duration
	// MaxConcurrentJobs caps in-flight jobs across all devices; zero
	// disables the cap.
	MaxConcurrentJobs int
	AverageJobTimeMs  float64

	mu      sync.Mutex
	queues  map[string]*deviceQueue // deviceID -> waiting jobs
	running map[string]string       // deviceID -> jobID occupying the slot
	jobs    map[string]*v1.Job
	dirty   map[string]struct{} // jobs whose last persistence write failed
}

func New(sup *supervisor.Supervisor, pred *predictor.Predictor, history *metrics.History,
	store repository.Store, recorder events.Recorder, log *logging.Logger, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if recorder == nil {
		recorder = events.NopRecorder()
	}
	return &Scheduler{
		log:               log.Named("scheduler"),
		clock:             clk,
		recorder:          recorder,
		supervisor:        sup,
		predictor:         pred,
		history:           history,
		store:             store,
		DispatchInterval:  DefaultDispatchInterval,
		PollInterval:      DefaultPollInterval,
		PollTimeout:       DefaultPollTimeout,
		RetryBaseDelay:    DefaultRetryBaseDelay,
		MaxConcurrentJobs: DefaultMaxConcurrentJobs,
		AverageJobTimeMs:  DefaultAverageJobTimeMs,
		queues:            map[string]*deviceQueue{},
		running:           map[string]string{},
		jobs:              map[string]*v1.Job{},
		dirty:             map[string]struct{}{},
	}
}

func (s *Scheduler) validate(job *v1.Job) error {
	if job == nil || job.Circuit == nil {
		return qerrors.New(qerrors.KindInvalidJob, "job has no circuit")
	}
	if job.Shots < v1.MinShots || job.Shots > v1.MaxShots {
		return qerrors.New(qerrors.KindInvalidJob, "shots %d outside [%d, %d]", job.Shots, v1.MinShots, v1.MaxShots)
	}
	if job.Circuit.Qubits() > MaxCircuitQubits {
		return qerrors.New(qerrors.KindInvalidJob, "circuit uses %d qubits, limit is %d", job.Circuit.Qubits(), MaxCircuitQubits)
	}
	if job.Circuit.GateCount() > MaxCircuitGates {
		return qerrors.New(qerrors.KindInvalidJob, "circuit has %d gates, limit is %d", job.Circuit.GateCount(), MaxCircuitGates)
	}
	if err := job.Circuit.Validate(); err != nil {
		return qerrors.Wrap(qerrors.KindInvalidJob, err)
	}
	return nil
}

// scored pairs a decision with the figures the selection filters need.
type scored struct {
	decision Decision
	queueMs  float64
}

// Schedule scores the job against every eligible device and returns the
// winning decision without mutating any scheduler state.
func (s *Scheduler) Schedule(ctx context.Context, job *v1.Job, user *v1.User) (Decision, error) {
	start := s.clock.Now()
	defer func() {
		metrics.SchedulingDuration.Observe(s.clock.Since(start).Seconds())
	}()

	if err := s.validate(job); err != nil {
		return Decision{}, err
	}

	devices := lo.Filter(s.supervisor.GetAllDevices(ctx), func(d *v1.Device, _ int) bool {
		return s.eligible(d, job, user)
	})
	if len(devices) == 0 {
		return Decision{}, qerrors.New(qerrors.KindNoEligibleDevice,
			"no eligible device for %d qubits with gates %v", job.Circuit.Qubits(), job.Circuit.GateNames())
	}

	now := s.clock.Now()
	weights := user.SchedulingWeights()
	budget := user.CostBudget()

	candidates := lo.Map(devices, func(d *v1.Device, _ int) scored {
		return s.score(job, user, d, now, weights, budget)
	})
	// Priority descending; stability keeps provider listing order on ties.
	sort.SliceStable(candidates, func(i, k int) bool {
		return candidates[i].decision.Priority > candidates[k].decision.Priority
	})

	// Hard constraints filter; the top-scored decision wins if nothing
	// survives.
	survivors := lo.Filter(candidates, func(c scored, _ int) bool {
		if c.decision.Cost > budget {
			return false
		}
		if user != nil && user.MaxWaitTimeMs > 0 && c.queueMs > user.MaxWaitTimeMs {
			return false
		}
		return true
	})
	if len(survivors) > 0 {
		return survivors[0].decision, nil
	}
	return candidates[0].decision, nil
}

func (s *Scheduler) eligible(d *v1.Device, job *v1.Job, user *v1.User) bool {
	if d.Status == v1.DeviceOffline || d.Status == v1.DeviceError {
		return false
	}
	if d.QubitCount() < job.Circuit.Qubits() {
		return false
	}
	if !d.SupportsGates(job.Circuit.GateNames()) {
		return false
	}
	if user != nil && len(user.PreferredProviders) > 0 && !lo.Contains(user.PreferredProviders, d.ProviderID) {
		return false
	}
	return true
}

func (s *Scheduler) score(job *v1.Job, user *v1.User, d *v1.Device, now time.Time,
	weights v1.SchedulingWeights, budget float64) scored {
	queueMs := float64(d.QueueInfo.PendingJobs+s.queueDepth(d.ID)) * s.AverageJobTimeMs
	execMs := s.predictor.PredictMs(job.Circuit, d)
	health := d.HealthScore(now)

	estimate := pricing.EstimateCost(d, job.Shots, execMs)

	widthFit := math.Min(float64(job.Circuit.Qubits())/float64(d.QubitCount()), 1)
	performance := health * (0.5 + 0.5*widthFit) * (1 - d.AvgGateError())
	cost := pricing.CostScore(estimate, budget)
	reliability := health * (1 - d.AvgReadoutError())
	availability := math.Max(0, 1-queueMs/3_600_000)

	priority := weights.Performance*performance +
		weights.Cost*cost +
		weights.Reliability*reliability +
		weights.Availability*availability

	estStart := now.Add(time.Duration(queueMs) * time.Millisecond)
	return scored{
		queueMs: queueMs,
		decision: Decision{
			Device:              d,
			EstimatedStart:      estStart,
			EstimatedCompletion: estStart.Add(time.Duration(execMs) * time.Millisecond),
			EstimatedQueueMs:    queueMs,
			Priority:            priority,
			Cost:                estimate.Total,
			Currency:            estimate.Currency,
			Confidence:          DefaultConfidence,
		},
	}
}

// Submit schedules the job and enqueues it on the chosen device. The
// dispatcher picks it up on the next tick.
func (s *Scheduler) Submit(ctx context.Context, job *v1.Job, user *v1.User) (Decision, error) {
	decision, err := s.Schedule(ctx, job, user)
	if err != nil {
		return Decision{}, err
	}

	now := s.clock.Now()
	s.mu.Lock()
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = now
	}
	job.Device = decision.Device
	job.Status = v1.JobQueued
	job.Cost = decision.Cost
	job.Currency = decision.Currency
	job.Scheduling = &v1.SchedulingInfo{
		EstimatedStart:      decision.EstimatedStart,
		EstimatedCompletion: decision.EstimatedCompletion,
		Score:               decision.Priority,
	}
	queue := s.queue(decision.Device.ID)
	queue.Push(job, decision.Priority, job.SubmittedAt)
	job.Scheduling.QueuePosition = queue.Len()
	s.jobs[job.ID] = job
	metrics.QueueDepth.WithLabelValues(decision.Device.ID).Set(float64(queue.Len()))
	s.mu.Unlock()

	s.persist(ctx, job)
	s.recorder.Publish(events.Event{
		Type:     events.TypeNormal,
		Reason:   events.JobScheduled,
		JobID:    job.ID,
		DeviceID: decision.Device.ID,
		Message:  "job scheduled",
	})
	s.log.Info().Str("job", job.ID).Str("device", decision.Device.ID).
		Float64("priority", decision.Priority).Msg("job enqueued")
	return decision, nil
}

// queue returns the device's queue, creating it on first use. Caller
// holds the lock.
func (s *Scheduler) queue(deviceID string) *deviceQueue {
	q, ok := s.queues[deviceID]
	if !ok {
		q = newDeviceQueue()
		s.queues[deviceID] = q
	}
	return q
}

func (s *Scheduler) queueDepth(deviceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[deviceID]; ok {
		return q.Len()
	}
	return 0
}

// QueueDepth reports how many jobs wait on the device.
func (s *Scheduler) QueueDepth(deviceID string) int {
	return s.queueDepth(deviceID)
}

// Job returns the scheduler's live view of the job.
func (s *Scheduler) Job(jobID string) (*v1.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, qerrors.New(qerrors.KindNotFound, "job %q not known to the scheduler", jobID)
	}
	return job, nil
}

// Results returns the job's results once it has completed.
func (s *Scheduler) Results(jobID string) (*v1.JobResults, error) {
	job, err := s.Job(jobID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.Status != v1.JobCompleted || job.Results == nil {
		return nil, qerrors.New(qerrors.KindNotFound, "job %q has no results (status %s)", jobID, job.Status)
	}
	return job.Results, nil
}

// Cancel stops a job in any non-terminal state. Queued jobs leave the
// queue synchronously; running jobs are cancelled at the provider and
// marked cancelling until the poller confirms.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return qerrors.New(qerrors.KindNotFound, "job %q not known to the scheduler", jobID)
	}
	if job.Status.Terminal() {
		s.mu.Unlock()
		return qerrors.New(qerrors.KindInvalidJob, "job %q is already %s", jobID, job.Status)
	}

	switch job.Status {
	case v1.JobPending, v1.JobQueued:
		if job.Device != nil {
			if q, qok := s.queues[job.Device.ID]; qok && q.Remove(jobID) {
				metrics.QueueDepth.WithLabelValues(job.Device.ID).Set(float64(q.Len()))
			}
		}
		s.markTerminalLocked(job, v1.JobCancelled, "cancelled before dispatch")
		s.mu.Unlock()
		s.persist(ctx, job)
		return nil
	case v1.JobCancelling:
		s.mu.Unlock()
		return nil
	default: // running
		job.Status = v1.JobCancelling
		device := job.Device
		providerJobID := job.ProviderJobID
		s.mu.Unlock()

		adapter, err := s.supervisor.GetProvider(device.ProviderID)
		if err != nil {
			return err
		}
		cancelCtx, cancel := context.WithTimeout(ctx, providersCancelTimeout)
		defer cancel()
		ok, err := adapter.CancelJob(cancelCtx, providerJobID)
		if err != nil {
			return err
		}
		if ok {
			s.mu.Lock()
			if !job.Status.Terminal() {
				s.markTerminalLocked(job, v1.JobCancelled, "cancelled at provider")
			}
			s.mu.Unlock()
			s.persist(ctx, job)
		}
		// When the provider reports it was too late, the poller observes
		// the true terminal state.
		return nil
	}
}

const providersCancelTimeout = 10 * time.Second

// markTerminalLocked finalizes a job. Caller holds the lock.
func (s *Scheduler) markTerminalLocked(job *v1.Job, status v1.JobStatus, message string) {
	if job.Status.Terminal() {
		return
	}
	job.Status = status
	job.CompletedAt = s.clock.Now()
	if message != "" && status != v1.JobCompleted {
		job.ErrorMessage = message
	}
	device := ""
	provider := ""
	if job.Device != nil {
		device = job.Device.ID
		provider = job.Device.ProviderID
	}
	metrics.JobsTerminal.WithLabelValues(provider, device, string(status)).Inc()

	reason := events.JobCompleted
	evtType := events.TypeNormal
	switch status {
	case v1.JobFailed:
		reason, evtType = events.JobFailed, events.TypeWarning
	case v1.JobCancelled:
		reason = events.JobCancelled
	case v1.JobTimeout:
		reason, evtType = events.JobTimedOut, events.TypeWarning
	}
	s.recorder.Publish(events.Event{
		Type:     evtType,
		Reason:   reason,
		JobID:    job.ID,
		DeviceID: device,
		Message:  message,
	})
}

// persist writes the job through the repository. Failures are logged and
// retried on the next dispatcher tick; in-memory state is authoritative.
func (s *Scheduler) persist(ctx context.Context, job *v1.Job) {
	if s.store == nil {
		return
	}
	if err := s.store.Repositories().Jobs.Save(ctx, job); err != nil {
		s.log.Warn().Str("job", job.ID).Err(err).Msg("job persistence failed, will retry")
		s.mu.Lock()
		s.dirty[job.ID] = struct{}{}
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	delete(s.dirty, job.ID)
	s.mu.Unlock()
}

// Stats summarizes the scheduler's current population.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{ByStatus: map[v1.JobStatus]int{}}
	for _, job := range s.jobs {
		stats.ByStatus[job.Status]++
	}
	stats.Queued = stats.ByStatus[v1.JobQueued]
	stats.Running = stats.ByStatus[v1.JobRunning] + stats.ByStatus[v1.JobCancelling]
	return stats
}

// retryTransient wraps provider calls that may hit transient network
// failures: up to 3 retries with exponential backoff (1s, 2s, 4s at the
// default base delay).
func (s *Scheduler) retryTransient(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(s.RetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(qerrors.IsTransient),
	)
}
