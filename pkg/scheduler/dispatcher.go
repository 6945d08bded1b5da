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

	"github.com/samber/lo"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/events"
	"github.com/amirewontmiss/eigenos/pkg/metrics"
	"github.com/amirewontmiss/eigenos/pkg/providers"
)

// Run drives the dispatch loop until the context is cancelled. One
// dispatcher owns every device queue; dispatch across devices is
// independent but serialized within a tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.DispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick is a single dispatcher pass: retry failed persistence writes, then
// hand the top job of every idle online device to its adapter.
func (s *Scheduler) tick(ctx context.Context) {
	s.retryDirty(ctx)

	catalog := lo.SliceToMap(s.supervisor.GetAllDevices(ctx), func(d *v1.Device) (string, *v1.Device) {
		return d.ID, d
	})

	for {
		job, device := s.claimNext(catalog)
		if job == nil {
			return
		}
		s.dispatch(ctx, job, device)
	}
}

// claimNext pops the next dispatchable job and marks its device occupied,
// or returns nil when no queue can make progress.
func (s *Scheduler) claimNext(catalog map[string]*v1.Device) (*v1.Job, *v1.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MaxConcurrentJobs > 0 && len(s.running) >= s.MaxConcurrentJobs {
		return nil, nil
	}
	for deviceID, queue := range s.queues {
		if queue.Len() == 0 {
			continue
		}
		if _, occupied := s.running[deviceID]; occupied {
			continue
		}
		device, ok := catalog[deviceID]
		if !ok || device.Status != v1.DeviceOnline {
			continue
		}
		for queue.Len() > 0 {
			job := queue.Pop()
			metrics.QueueDepth.WithLabelValues(deviceID).Set(float64(queue.Len()))
			if job.Status != v1.JobQueued {
				// Cancelled while queued; skip it.
				continue
			}
			s.running[deviceID] = job.ID
			// Refresh the device snapshot the job carries.
			job.Device = device
			return job, device
		}
	}
	return nil, nil
}

// dispatch submits the claimed job to its provider and starts the poller.
func (s *Scheduler) dispatch(ctx context.Context, job *v1.Job, device *v1.Device) {
	adapter, err := s.supervisor.GetProvider(device.ProviderID)
	if err != nil {
		s.failDispatch(ctx, job, device, err)
		return
	}

	// Transient failures get the bounded backoff budget; a provider still
	// failing after that fails the job.
	var receipt providers.SubmitReceipt
	err = s.retryTransient(ctx, func() error {
		submitCtx, cancel := context.WithTimeout(ctx, providers.SubmitJobTimeout)
		defer cancel()
		var err error
		receipt, err = adapter.SubmitJob(submitCtx, job)
		return err
	})
	if err != nil {
		metrics.ProviderAPIErrors.WithLabelValues(device.ProviderID, string(qerrors.KindOf(err))).Inc()
		s.failDispatch(ctx, job, device, err)
		return
	}

	s.mu.Lock()
	job.ProviderJobID = receipt.ProviderJobID
	job.Status = v1.JobRunning
	job.StartedAt = s.clock.Now()
	s.mu.Unlock()
	metrics.JobsSubmitted.WithLabelValues(device.ProviderID, device.ID).Inc()
	metrics.JobsInFlight.Inc()

	s.persist(ctx, job)
	s.recorder.Publish(events.Event{
		Type:       events.TypeNormal,
		Reason:     events.JobDispatched,
		JobID:      job.ID,
		DeviceID:   device.ID,
		ProviderID: device.ProviderID,
		Message:    "job dispatched to provider",
	})
	s.log.Info().Str("job", job.ID).Str("device", device.ID).
		Str("provider_job", receipt.ProviderJobID).Msg("job dispatched")

	go s.poll(ctx, job, adapter)
}

func (s *Scheduler) failDispatch(ctx context.Context, job *v1.Job, device *v1.Device, err error) {
	s.mu.Lock()
	delete(s.running, device.ID)
	s.markTerminalLocked(job, v1.JobFailed, err.Error())
	s.mu.Unlock()
	s.persist(ctx, job)
	s.log.Error().Str("job", job.ID).Str("device", device.ID).Err(err).Msg("dispatch failed")
}

func (s *Scheduler) retryDirty(ctx context.Context) {
	s.mu.Lock()
	ids := lo.Keys(s.dirty)
	s.mu.Unlock()
	for _, id := range ids {
		if job, err := s.Job(id); err == nil {
			s.persist(ctx, job)
		}
	}
}
