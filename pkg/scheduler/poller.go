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

package scheduler

import (
	"context"
	"time"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/metrics"
	"github.com/amirewontmiss/eigenos/pkg/providers"
	"github.com/amirewontmiss/eigenos/pkg/scheduler/predictor"
)

// poll owns the job from dispatch to terminal state. It asks the provider
// for status on an interval, pulls results on completion, and forces a
// timeout at the 1 hour cap.
func (s *Scheduler) poll(ctx context.Context, job *v1.Job, adapter providers.Provider) {
	deadline := s.clock.Now().Add(s.PollTimeout)
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if job.Status.Terminal() {
			// Cancel confirmed out of band; just free the device.
			s.releaseLocked(job)
			s.mu.Unlock()
			metrics.JobsInFlight.Dec()
			return
		}
		providerJobID := job.ProviderJobID
		s.mu.Unlock()

		if s.clock.Now().After(deadline) {
			s.timeout(ctx, job, adapter, providerJobID)
			return
		}

		var status providers.NormalizedStatus
		err := s.retryTransient(ctx, func() error {
			callCtx, cancel := context.WithTimeout(ctx, providers.GetJobStatusTimeout)
			defer cancel()
			var err error
			status, err = adapter.GetJobStatus(callCtx, providerJobID)
			return err
		})
		if err != nil {
			metrics.ProviderAPIErrors.WithLabelValues(adapter.ID(), string(qerrors.KindOf(err))).Inc()
			s.log.Warn().Str("job", job.ID).Err(err).Msg("status poll failed, will retry next tick")
			continue
		}
		if !status.Terminal() {
			continue
		}

		switch status {
		case providers.StatusCompleted:
			s.complete(ctx, job, adapter, providerJobID)
		case providers.StatusCancelled:
			s.finish(ctx, job, v1.JobCancelled, "cancelled at provider")
		default:
			s.finish(ctx, job, v1.JobFailed, "provider reported failure")
		}
		return
	}
}

// complete pulls results and finalizes the job. A results fetch that still
// fails after retries marks the job failed; the provider said completed
// but the outcome is unusable.
func (s *Scheduler) complete(ctx context.Context, job *v1.Job, adapter providers.Provider, providerJobID string) {
	var results *v1.JobResults
	err := s.retryTransient(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, providers.GetJobResultsTimeout)
		defer cancel()
		var err error
		results, err = adapter.GetJobResults(callCtx, providerJobID)
		return err
	})
	if err != nil {
		metrics.ProviderAPIErrors.WithLabelValues(adapter.ID(), string(qerrors.KindOf(err))).Inc()
		s.finish(ctx, job, v1.JobFailed, "results fetch failed: "+err.Error())
		return
	}

	s.mu.Lock()
	job.Results = results
	s.markTerminalLocked(job, v1.JobCompleted, "")
	s.releaseLocked(job)
	s.mu.Unlock()
	metrics.JobsInFlight.Dec()

	if job.Device != nil {
		metrics.JobExecutionDuration.WithLabelValues(job.Device.ID).Observe(results.ExecutionMs / 1000)
		metrics.JobQueueDuration.WithLabelValues(job.Device.ID).Observe(job.QueueTime().Seconds())
		if s.history != nil {
			s.history.Add(metrics.ExecutionRecord{
				JobID:        job.ID,
				DeviceID:     job.Device.ID,
				CircuitClass: predictor.Classify(job.Circuit),
				Fingerprint:  metrics.Fingerprint(job.Circuit),
				ExecutionMs:  results.ExecutionMs,
				QueueMs:      results.QueueMs,
				Shots:        results.Shots,
				CompletedAt:  job.CompletedAt,
			})
		}
	}
	s.persist(ctx, job)
	s.log.Info().Str("job", job.ID).Float64("execution_ms", results.ExecutionMs).Msg("job completed")
}

// finish records a non-completed terminal state reported by the provider.
func (s *Scheduler) finish(ctx context.Context, job *v1.Job, status v1.JobStatus, message string) {
	s.mu.Lock()
	s.markTerminalLocked(job, status, message)
	s.releaseLocked(job)
	s.mu.Unlock()
	metrics.JobsInFlight.Dec()
	s.persist(ctx, job)
	s.log.Info().Str("job", job.ID).Str("status", string(status)).Msg("job finished")
}

// timeout forces the terminal state after the polling cap and makes a
// best-effort attempt to cancel the provider-side job.
func (s *Scheduler) timeout(ctx context.Context, job *v1.Job, adapter providers.Provider, providerJobID string) {
	cancelCtx, cancel := context.WithTimeout(ctx, providersCancelTimeout)
	_, _ = adapter.CancelJob(cancelCtx, providerJobID)
	cancel()

	s.finish(ctx, job, v1.JobTimeout, "no terminal status within polling window")
}

// releaseLocked frees the device slot the job occupied. Caller holds the
// lock.
func (s *Scheduler) releaseLocked(job *v1.Job) {
	if job.Device == nil {
		return
	}
	if s.running[job.Device.ID] == job.ID {
		delete(s.running, job.Device.ID)
	}
}
