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

// Package supervisor owns the provider adapter table and the device
// catalog. It initializes adapters in parallel at startup, re-checks them
// on an interval, and serves device snapshots to the scheduler.
package supervisor

import (
	"context"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"k8s.io/utils/clock"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/events"
	"github.com/amirewontmiss/eigenos/pkg/logging"
	"github.com/amirewontmiss/eigenos/pkg/metrics"
	"github.com/amirewontmiss/eigenos/pkg/providers"
	"github.com/amirewontmiss/eigenos/pkg/scheduler/pricing"
)

const (
	DefaultHealthCheckInterval = 5 * time.Minute

	deviceCacheKey = "devices"
	deviceCacheTTL = 30 * time.Second
)

// ProviderStatus is the supervisor's view of one adapter.
type ProviderStatus struct {
	ID            string
	Name          string
	Available     bool
	Authenticated bool
	DeviceCount   int
	Error         string
	LastChecked   time.Time
}

type Health string

const (
	Healthy   Health = "healthy"
	Degraded  Health = "degraded"
	Unhealthy Health = "unhealthy"
)

// HealthReport aggregates per-provider status into an overall verdict.
type HealthReport struct {
	Overall   Health
	Providers []ProviderStatus
}

// Constraints narrow device selection for direct submission.
type Constraints struct {
	MinQubits          int
	MaxCost            float64
	PreferredProviders []string
	// Simulator restricts to simulators when true, to hardware when false.
	Simulator *bool
}

type registration struct {
	adapter providers.Provider
	creds   providers.Credentials
}

type Supervisor struct {
	log      *logging.Logger
	clock    clock.Clock
	recorder events.Recorder

	HealthCheckInterval time.Duration

	mu sync.RWMutex
	// registrations keeps insertion order; device selection ties break by
	// provider registration order.
	registrations []registration
	status        map[string]*ProviderStatus

	deviceCache *gocache.Cache
}

func New(log *logging.Logger, clk clock.Clock, recorder events.Recorder) *Supervisor {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if recorder == nil {
		recorder = events.NopRecorder()
	}
	return &Supervisor{
		log:                 log.Named("supervisor"),
		clock:               clk,
		recorder:            recorder,
		HealthCheckInterval: DefaultHealthCheckInterval,
		status:              map[string]*ProviderStatus{},
		deviceCache:         gocache.New(deviceCacheTTL, 2*deviceCacheTTL),
	}
}

// Register adds an adapter before Initialize. Not safe to call after
// startup.
func (s *Supervisor) Register(adapter providers.Provider, creds providers.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations = append(s.registrations, registration{adapter: adapter, creds: creds})
	s.status[adapter.ID()] = &ProviderStatus{ID: adapter.ID(), Name: adapter.Name()}
}

// Initialize brings every registered adapter up in parallel. A failing
// adapter is recorded as unavailable and does not stop the others.
func (s *Supervisor) Initialize(ctx context.Context) {
	s.mu.RLock()
	regs := append([]registration{}, s.registrations...)
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, reg := range regs {
		wg.Add(1)
		go func(reg registration) {
			defer wg.Done()
			s.initAdapter(ctx, reg)
		}(reg)
	}
	wg.Wait()
	s.log.Info().Int("providers", len(regs)).Msg("provider initialization complete")
}

func (s *Supervisor) initAdapter(ctx context.Context, reg registration) {
	id := reg.adapter.ID()
	status := ProviderStatus{ID: id, Name: reg.adapter.Name(), LastChecked: s.clock.Now()}

	authCtx, cancel := context.WithTimeout(ctx, providers.AuthenticateTimeout)
	_, err := reg.adapter.Authenticate(authCtx, reg.creds)
	cancel()
	if err != nil {
		status.Error = err.Error()
		s.setStatus(id, status)
		metrics.ProviderUp.WithLabelValues(id).Set(0)
		metrics.ProviderAPIErrors.WithLabelValues(id, string(qerrors.KindOf(err))).Inc()
		s.log.Warn().Str("provider", id).Err(err).Msg("provider authentication failed")
		return
	}
	status.Authenticated = true

	devCtx, cancel := context.WithTimeout(ctx, providers.GetDevicesTimeout)
	devices, err := reg.adapter.GetDevices(devCtx)
	cancel()
	if err != nil {
		status.Error = err.Error()
		s.setStatus(id, status)
		metrics.ProviderUp.WithLabelValues(id).Set(0)
		metrics.ProviderAPIErrors.WithLabelValues(id, string(qerrors.KindOf(err))).Inc()
		s.log.Warn().Str("provider", id).Err(err).Msg("provider device listing failed")
		return
	}

	status.Available = true
	status.DeviceCount = len(devices)
	s.setStatus(id, status)
	metrics.ProviderUp.WithLabelValues(id).Set(1)
	s.log.Info().Str("provider", id).Int("devices", len(devices)).Msg("provider initialized")
}

func (s *Supervisor) setStatus(id string, status ProviderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.status[id]
	s.status[id] = &status
	if prev != nil && prev.Available != status.Available {
		s.recorder.Publish(events.Event{
			Type:       lo.Ternary(status.Available, events.TypeNormal, events.TypeWarning),
			Reason:     events.ProviderStatusChanged,
			ProviderID: id,
			Message:    lo.Ternary(status.Available, "provider became available", "provider became unavailable"),
		})
	}
}

// Run re-checks provider health until the context is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PerformHealthCheck(ctx)
		}
	}
}

// GetProvider returns the adapter registered under id.
func (s *Supervisor) GetProvider(id string) (providers.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, reg := range s.registrations {
		if reg.adapter.ID() == id {
			return reg.adapter, nil
		}
	}
	return nil, qerrors.New(qerrors.KindNotFound, "provider %q not registered", id)
}

// ProviderStatuses returns a snapshot of every adapter's status in
// registration order.
func (s *Supervisor) ProviderStatuses() []ProviderStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.registrations, func(reg registration, _ int) ProviderStatus {
		return *s.status[reg.adapter.ID()]
	})
}

// GetAllDevices lists devices across every available adapter, swallowing
// per-adapter failures. Results are cached briefly; scoring runs on the
// snapshot.
func (s *Supervisor) GetAllDevices(ctx context.Context) []*v1.Device {
	if cached, ok := s.deviceCache.Get(deviceCacheKey); ok {
		return cached.([]*v1.Device)
	}

	s.mu.RLock()
	regs := append([]registration{}, s.registrations...)
	s.mu.RUnlock()

	var out []*v1.Device
	for _, reg := range regs {
		devCtx, cancel := context.WithTimeout(ctx, providers.GetDevicesTimeout)
		devices, err := reg.adapter.GetDevices(devCtx)
		cancel()
		if err != nil {
			metrics.ProviderAPIErrors.WithLabelValues(reg.adapter.ID(), string(qerrors.KindOf(err))).Inc()
			s.log.Warn().Str("provider", reg.adapter.ID()).Err(err).Msg("skipping provider during device listing")
			continue
		}
		out = append(out, devices...)
	}
	s.deviceCache.SetDefault(deviceCacheKey, out)
	return out
}

// InvalidateDeviceCache forces the next GetAllDevices to refetch.
func (s *Supervisor) InvalidateDeviceCache() {
	s.deviceCache.Delete(deviceCacheKey)
}

// PerformHealthCheck re-probes every adapter and reports the aggregate.
func (s *Supervisor) PerformHealthCheck(ctx context.Context) HealthReport {
	s.mu.RLock()
	regs := append([]registration{}, s.registrations...)
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, reg := range regs {
		wg.Add(1)
		go func(reg registration) {
			defer wg.Done()
			id := reg.adapter.ID()

			s.mu.RLock()
			status := *s.status[id]
			s.mu.RUnlock()
			status.LastChecked = s.clock.Now()

			if !status.Authenticated {
				// A provider that never authenticated gets a full retry.
				s.initAdapter(ctx, reg)
				return
			}

			devCtx, cancel := context.WithTimeout(ctx, providers.GetDevicesTimeout)
			devices, err := reg.adapter.GetDevices(devCtx)
			cancel()
			if err != nil {
				status.Available = false
				status.Error = err.Error()
				metrics.ProviderUp.WithLabelValues(id).Set(0)
				metrics.ProviderAPIErrors.WithLabelValues(id, string(qerrors.KindOf(err))).Inc()
			} else {
				status.Available = true
				status.Error = ""
				status.DeviceCount = len(devices)
				metrics.ProviderUp.WithLabelValues(id).Set(1)
			}
			s.setStatus(id, status)
		}(reg)
	}
	wg.Wait()
	s.InvalidateDeviceCache()

	statuses := s.ProviderStatuses()
	available := lo.CountBy(statuses, func(st ProviderStatus) bool { return st.Available })
	overall := Unhealthy
	switch {
	case len(statuses) > 0 && available == len(statuses):
		overall = Healthy
	case available > 0:
		overall = Degraded
	}
	return HealthReport{Overall: overall, Providers: statuses}
}

// SubmitJobToOptimalDevice bypasses the queueing scheduler: it picks the
// best eligible device under the constraints and submits immediately.
// Devices rank by the inverse of their reported average wait; ties break
// by provider registration order, which sort stability preserves.
func (s *Supervisor) SubmitJobToOptimalDevice(ctx context.Context, job *v1.Job, constraints Constraints) (providers.SubmitReceipt, error) {
	if job == nil || job.Circuit == nil {
		return providers.SubmitReceipt{}, qerrors.New(qerrors.KindInvalidJob, "job has no circuit")
	}

	candidates := lo.Filter(s.GetAllDevices(ctx), func(d *v1.Device, _ int) bool {
		return s.eligible(d, job, constraints)
	})
	if len(candidates) == 0 {
		return providers.SubmitReceipt{}, qerrors.New(qerrors.KindNoEligibleDevice, "no device satisfies the submission constraints")
	}

	sort.SliceStable(candidates, func(i, k int) bool {
		return waitScore(candidates[i]) > waitScore(candidates[k])
	})

	device := candidates[0]
	adapter, err := s.GetProvider(device.ProviderID)
	if err != nil {
		return providers.SubmitReceipt{}, err
	}

	job.Device = device
	submitCtx, cancel := context.WithTimeout(ctx, providers.SubmitJobTimeout)
	defer cancel()
	receipt, err := adapter.SubmitJob(submitCtx, job)
	if err != nil {
		metrics.ProviderAPIErrors.WithLabelValues(device.ProviderID, string(qerrors.KindOf(err))).Inc()
		return providers.SubmitReceipt{}, err
	}
	job.ProviderJobID = receipt.ProviderJobID
	metrics.JobsSubmitted.WithLabelValues(device.ProviderID, device.ID).Inc()
	return receipt, nil
}

func waitScore(d *v1.Device) float64 {
	return 1 / (d.QueueInfo.AverageWaitMs + 1000)
}

func (s *Supervisor) eligible(d *v1.Device, job *v1.Job, constraints Constraints) bool {
	if d.Status != v1.DeviceOnline {
		return false
	}
	if d.QubitCount() < job.Circuit.Qubits() || d.QubitCount() < constraints.MinQubits {
		return false
	}
	if !d.SupportsGates(job.Circuit.GateNames()) {
		return false
	}
	// Backpressure: a device already at its concurrency limit is not a
	// submission target.
	if d.MaxConcurrentJobs > 0 && d.QueueInfo.PendingJobs >= d.MaxConcurrentJobs {
		return false
	}
	if constraints.Simulator != nil && (d.Type == v1.DeviceSimulator) != *constraints.Simulator {
		return false
	}
	if len(constraints.PreferredProviders) > 0 && !lo.Contains(constraints.PreferredProviders, d.ProviderID) {
		return false
	}
	if constraints.MaxCost > 0 {
		if est := pricing.EstimateCost(d, job.Shots, 0); est.Total > constraints.MaxCost {
			return false
		}
	}
	return true
}
