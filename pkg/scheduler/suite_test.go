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
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/events"
	"github.com/amirewontmiss/eigenos/pkg/fake"
	"github.com/amirewontmiss/eigenos/pkg/logging"
	"github.com/amirewontmiss/eigenos/pkg/metrics"
	"github.com/amirewontmiss/eigenos/pkg/providers"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
	"github.com/amirewontmiss/eigenos/pkg/repository"
	"github.com/amirewontmiss/eigenos/pkg/scheduler/predictor"
	"github.com/amirewontmiss/eigenos/pkg/supervisor"
)

var (
	ctx      context.Context
	cancel   context.CancelFunc
	prov     *fake.Provider
	recorder *fake.EventRecorder
	sup      *supervisor.Supervisor
	store    *repository.MemoryStore
	history  *metrics.History
	s        *Scheduler
)

func TestScheduler(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Scheduler")
}

var _ = BeforeSuite(func() {
	prov = fake.NewProvider("fake-quantum")
	recorder = fake.NewEventRecorder()
})

var _ = BeforeEach(func() {
	ctx, cancel = context.WithCancel(context.Background())
	prov.Reset()
	recorder.Reset()
	store = repository.NewMemoryStore()
	history = metrics.NewHistory()
	sup = supervisor.New(logging.NewTest(), nil, recorder)
	sup.Register(prov, nil)
	sup.Initialize(ctx)
	// Drop the availability event startup publishes.
	recorder.Reset()
	s = New(sup, predictor.New(history), history, store, recorder, logging.NewTest(), nil)
})

var _ = AfterEach(func() {
	cancel()
})

func bellJob() *v1.Job {
	c := circuit.MustNew(2)
	ExpectWithOffset(1, c.Append(gate.H(0), gate.CNOT(0, 1))).To(Succeed())
	ExpectWithOffset(1, c.Measure(0, 0)).To(Succeed())
	ExpectWithOffset(1, c.Measure(1, 1)).To(Succeed())
	return &v1.Job{ID: uuid.NewString(), Circuit: c, Shots: 100}
}

func jobStatus(id string) v1.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ""
	}
	return job.Status
}

var _ = Describe("Scheduling", func() {
	It("should return a costed decision for an eligible device", func() {
		decision, err := s.Schedule(ctx, bellJob(), nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(decision.Device).ToNot(BeNil())
		Expect(decision.Device.ProviderID).To(Equal("fake-quantum"))
		// 100 shots at 0.001/shot is under the 0.1 minimum.
		Expect(decision.Cost).To(Equal(0.1))
		Expect(decision.Currency).To(Equal("USD"))
		Expect(decision.Confidence).To(Equal(DefaultConfidence))
		Expect(decision.EstimatedCompletion.After(decision.EstimatedStart)).To(BeTrue())
	})
	It("should not mutate scheduler state", func() {
		decision, err := s.Schedule(ctx, bellJob(), nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.QueueDepth(decision.Device.ID)).To(Equal(0))
		Expect(s.Stats().Queued).To(Equal(0))
		Expect(recorder.Events()).To(BeEmpty())
	})
	It("should reject a job without a circuit", func() {
		_, err := s.Schedule(ctx, &v1.Job{ID: uuid.NewString(), Shots: 100}, nil)
		Expect(qerrors.IsInvalidJob(err)).To(BeTrue())
	})
	It("should reject out-of-range shot counts", func() {
		job := bellJob()
		job.Shots = 0
		_, err := s.Schedule(ctx, job, nil)
		Expect(qerrors.IsInvalidJob(err)).To(BeTrue())

		job = bellJob()
		job.Shots = v1.MaxShots + 1
		_, err = s.Schedule(ctx, job, nil)
		Expect(qerrors.IsInvalidJob(err)).To(BeTrue())
	})
	It("should reject circuits wider than the hard qubit limit", func() {
		job := &v1.Job{ID: uuid.NewString(), Circuit: circuit.MustNew(MaxCircuitQubits + 1), Shots: 100}
		_, err := s.Schedule(ctx, job, nil)
		Expect(qerrors.IsInvalidJob(err)).To(BeTrue())
	})
	It("should reject circuits deeper than the hard gate limit", func() {
		c := circuit.MustNew(1)
		for i := 0; i < MaxCircuitGates+1; i++ {
			Expect(c.Append(gate.X(0))).To(Succeed())
		}
		_, err := s.Schedule(ctx, &v1.Job{ID: uuid.NewString(), Circuit: c, Shots: 100}, nil)
		Expect(qerrors.IsInvalidJob(err)).To(BeTrue())
	})
	It("should fail when no device has enough qubits", func() {
		c := circuit.MustNew(6)
		Expect(c.Append(gate.H(5))).To(Succeed())
		_, err := s.Schedule(ctx, &v1.Job{ID: uuid.NewString(), Circuit: c, Shots: 100}, nil)
		Expect(qerrors.IsNoEligibleDevice(err)).To(BeTrue())
	})
	It("should fail when no device supports the gate set", func() {
		c := circuit.MustNew(3)
		Expect(c.Append(gate.Toffoli(0, 1, 2))).To(Succeed())
		_, err := s.Schedule(ctx, &v1.Job{ID: uuid.NewString(), Circuit: c, Shots: 100}, nil)
		Expect(qerrors.IsNoEligibleDevice(err)).To(BeTrue())
	})
	It("should honor the user's provider preference", func() {
		user := &v1.User{ID: "u-1", PreferredProviders: []string{"someone-else"}}
		_, err := s.Schedule(ctx, bellJob(), user)
		Expect(qerrors.IsNoEligibleDevice(err)).To(BeTrue())
	})
})

var _ = Describe("Submission", func() {
	It("should enqueue the job on the chosen device", func() {
		job := bellJob()
		decision, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(job.Status).To(Equal(v1.JobQueued))
		Expect(job.Device.ID).To(Equal(decision.Device.ID))
		Expect(s.QueueDepth(decision.Device.ID)).To(Equal(1))
		Expect(s.Stats().Queued).To(Equal(1))
		Expect(recorder.Calls(events.JobScheduled)).To(Equal(1))
	})
	It("should persist the submitted job", func() {
		job := bellJob()
		_, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())
		stored, err := store.Repositories().Jobs.FindByID(ctx, job.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(stored.Status).To(Equal(v1.JobQueued))
	})
	It("should dispatch the queued job on the next tick", func() {
		job := bellJob()
		decision, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())

		s.tick(ctx)
		Expect(prov.SubmitJobBehavior.SuccessfulCalls()).To(Equal(1))
		Expect(jobStatus(job.ID)).To(Equal(v1.JobRunning))
		Expect(job.ProviderJobID).ToNot(BeEmpty())
		Expect(s.QueueDepth(decision.Device.ID)).To(Equal(0))
		Expect(recorder.Calls(events.JobDispatched)).To(Equal(1))
	})
	It("should keep one job per device slot", func() {
		first := bellJob()
		second := bellJob()
		_, err := s.Submit(ctx, first, nil)
		Expect(err).ToNot(HaveOccurred())
		_, err = s.Submit(ctx, second, nil)
		Expect(err).ToNot(HaveOccurred())

		s.tick(ctx)
		Expect(prov.SubmitJobBehavior.SuccessfulCalls()).To(Equal(1))
		Expect(s.Stats().Queued).To(Equal(1))
		Expect(s.Stats().Running).To(Equal(1))
	})
	It("should honor the scheduler-wide concurrency cap", func() {
		devices := []*v1.Device{fake.MakeDevice("fake-quantum", 5), fake.MakeDevice("fake-quantum", 5)}
		prov.GetDevicesBehavior.Output.Set(&devices)
		s.MaxConcurrentJobs = 1

		first := bellJob()
		second := bellJob()
		_, err := s.Submit(ctx, first, nil)
		Expect(err).ToNot(HaveOccurred())
		_, err = s.Submit(ctx, second, nil)
		Expect(err).ToNot(HaveOccurred())
		// Availability scoring spreads the two jobs across the devices.
		Expect(first.Device.ID).ToNot(Equal(second.Device.ID))

		s.tick(ctx)
		Expect(prov.SubmitJobBehavior.SuccessfulCalls()).To(Equal(1))
		Expect(s.Stats().Running).To(Equal(1))
		Expect(s.Stats().Queued).To(Equal(1))
	})
	It("should drive the job to completion and record its results", func() {
		s.PollInterval = 20 * time.Millisecond
		job := bellJob()
		_, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())

		s.tick(ctx)
		Eventually(func() v1.JobStatus {
			return jobStatus(job.ID)
		}, 3*time.Second, 10*time.Millisecond).Should(Equal(v1.JobCompleted))

		results, err := s.Results(job.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(results.Counts).To(Equal(map[string]int{"00": 512, "11": 512}))
		Expect(recorder.Calls(events.JobCompleted)).To(Equal(1))

		avg, ok := history.AverageExecutionMs(job.Device.ID, predictor.Classify(job.Circuit))
		Expect(ok).To(BeTrue())
		Expect(avg).To(Equal(250.0))
		Expect(s.Stats().Running).To(Equal(0))
	})
	It("should time out a job that never goes terminal", func() {
		s.PollInterval = 20 * time.Millisecond
		s.PollTimeout = time.Millisecond
		running := providers.StatusRunning
		prov.GetJobStatusBehavior.Output.Set(&running)

		job := bellJob()
		_, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())

		s.tick(ctx)
		Eventually(func() v1.JobStatus {
			return jobStatus(job.ID)
		}, 3*time.Second, 10*time.Millisecond).Should(Equal(v1.JobTimeout))
		Expect(recorder.Calls(events.JobTimedOut)).To(Equal(1))
	})
})

var _ = Describe("Cancellation", func() {
	It("should remove a queued job synchronously", func() {
		job := bellJob()
		decision, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())

		Expect(s.Cancel(ctx, job.ID)).To(Succeed())
		Expect(jobStatus(job.ID)).To(Equal(v1.JobCancelled))
		Expect(s.QueueDepth(decision.Device.ID)).To(Equal(0))
		Expect(recorder.Calls(events.JobCancelled)).To(Equal(1))

		// A later tick must not hand the cancelled job to the provider.
		s.tick(ctx)
		Expect(prov.SubmitJobBehavior.Calls()).To(Equal(0))
	})
	It("should cancel a running job at the provider", func() {
		job := bellJob()
		_, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())
		s.tick(ctx)
		Expect(jobStatus(job.ID)).To(Equal(v1.JobRunning))

		Expect(s.Cancel(ctx, job.ID)).To(Succeed())
		Expect(prov.CancelJobBehavior.Calls()).To(Equal(1))
		Expect(jobStatus(job.ID)).To(Equal(v1.JobCancelled))
	})
	It("should fail for unknown jobs", func() {
		err := s.Cancel(ctx, "no-such-job")
		Expect(qerrors.IsNotFound(err)).To(BeTrue())
	})
	It("should fail for jobs already terminal", func() {
		job := bellJob()
		_, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Cancel(ctx, job.ID)).To(Succeed())

		err = s.Cancel(ctx, job.ID)
		Expect(qerrors.IsInvalidJob(err)).To(BeTrue())
	})
})

var _ = Describe("Dispatch Failures", func() {
	It("should retry a transient submit failure with backoff", func() {
		s.RetryBaseDelay = time.Millisecond
		prov.SubmitJobBehavior.Error.Set(qerrors.New(qerrors.KindNetworkTransient, "connection reset"), fake.MaxCalls(1))
		job := bellJob()
		_, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())

		s.tick(ctx)
		Expect(prov.SubmitJobBehavior.FailedCalls()).To(Equal(1))
		Expect(prov.SubmitJobBehavior.SuccessfulCalls()).To(Equal(1))
		Expect(jobStatus(job.ID)).To(Equal(v1.JobRunning))
	})
	It("should cap retries and fail the job when the transient failure persists", func() {
		s.RetryBaseDelay = time.Millisecond
		prov.SubmitJobBehavior.Error.Set(qerrors.New(qerrors.KindNetworkTransient, "connection reset"), fake.MaxCalls(0))
		job := bellJob()
		_, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())

		done := make(chan struct{})
		go func() {
			defer close(done)
			s.tick(ctx)
		}()
		// The tick must terminate; a provider outage may not pin the
		// dispatcher.
		Eventually(done, time.Second).Should(BeClosed())

		Expect(prov.SubmitJobBehavior.FailedCalls()).To(Equal(4))
		Expect(jobStatus(job.ID)).To(Equal(v1.JobFailed))
		Expect(recorder.Calls(events.JobFailed)).To(Equal(1))
		Expect(s.Stats().Running).To(Equal(0))
	})
	It("should fail the job on a non-transient submit failure", func() {
		prov.SubmitJobBehavior.Error.Set(qerrors.New(qerrors.KindAuthFailure, "token rejected"))
		job := bellJob()
		_, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())

		s.tick(ctx)
		Expect(jobStatus(job.ID)).To(Equal(v1.JobFailed))
		Expect(job.ErrorMessage).ToNot(BeEmpty())
		Expect(recorder.Calls(events.JobFailed)).To(Equal(1))
		Expect(s.Stats().Running).To(Equal(0))
	})
})

var _ = Describe("Results", func() {
	It("should not be available before completion", func() {
		job := bellJob()
		_, err := s.Submit(ctx, job, nil)
		Expect(err).ToNot(HaveOccurred())
		_, err = s.Results(job.ID)
		Expect(qerrors.IsNotFound(err)).To(BeTrue())
	})
	It("should fail for unknown jobs", func() {
		_, err := s.Results("no-such-job")
		Expect(qerrors.IsNotFound(err)).To(BeTrue())
	})
})
