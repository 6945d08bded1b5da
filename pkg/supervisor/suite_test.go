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

package supervisor_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/events"
	"github.com/amirewontmiss/eigenos/pkg/fake"
	"github.com/amirewontmiss/eigenos/pkg/logging"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
	"github.com/amirewontmiss/eigenos/pkg/supervisor"
)

var (
	ctx      context.Context
	provA    *fake.Provider
	provB    *fake.Provider
	recorder *fake.EventRecorder
	sup      *supervisor.Supervisor
)

func TestSupervisor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Supervisor")
}

var _ = BeforeSuite(func() {
	provA = fake.NewProvider("vendor-a")
	provB = fake.NewProvider("vendor-b")
	recorder = fake.NewEventRecorder()
})

var _ = BeforeEach(func() {
	ctx = context.Background()
	provA.Reset()
	provB.Reset()
	recorder.Reset()
	sup = supervisor.New(logging.NewTest(), nil, recorder)
	sup.Register(provA, nil)
})

func bellJob() *v1.Job {
	c := circuit.MustNew(2)
	ExpectWithOffset(1, c.Append(gate.H(0), gate.CNOT(0, 1))).To(Succeed())
	ExpectWithOffset(1, c.Measure(0, 0)).To(Succeed())
	ExpectWithOffset(1, c.Measure(1, 1)).To(Succeed())
	return &v1.Job{ID: uuid.NewString(), Circuit: c, Shots: 100}
}

var _ = Describe("Initialization", func() {
	It("should authenticate and list devices for every adapter", func() {
		sup.Initialize(ctx)
		statuses := sup.ProviderStatuses()
		Expect(statuses).To(HaveLen(1))
		Expect(statuses[0].Authenticated).To(BeTrue())
		Expect(statuses[0].Available).To(BeTrue())
		Expect(statuses[0].DeviceCount).To(Equal(1))
		Expect(provA.AuthenticateBehavior.Calls()).To(Equal(1))
	})
	It("should record an adapter whose authentication fails", func() {
		provA.AuthenticateBehavior.Error.Set(qerrors.New(qerrors.KindAuthFailure, "token rejected"))
		sup.Initialize(ctx)
		statuses := sup.ProviderStatuses()
		Expect(statuses[0].Authenticated).To(BeFalse())
		Expect(statuses[0].Available).To(BeFalse())
		Expect(statuses[0].Error).To(ContainSubstring("token rejected"))
	})
	It("should retry a never-authenticated adapter on the next health check", func() {
		provA.AuthenticateBehavior.Error.Set(qerrors.New(qerrors.KindAuthFailure, "token rejected"))
		sup.Initialize(ctx)

		report := sup.PerformHealthCheck(ctx)
		Expect(report.Overall).To(Equal(supervisor.Healthy))
		Expect(report.Providers[0].Authenticated).To(BeTrue())
		Expect(report.Providers[0].Available).To(BeTrue())
	})
	It("should not let one failing adapter stop the others", func() {
		sup.Register(provB, nil)
		provA.AuthenticateBehavior.Error.Set(qerrors.New(qerrors.KindAuthFailure, "token rejected"))
		sup.Initialize(ctx)

		statuses := sup.ProviderStatuses()
		Expect(statuses[0].Available).To(BeFalse())
		Expect(statuses[1].Available).To(BeTrue())
	})
})

var _ = Describe("Device Catalog", func() {
	BeforeEach(func() {
		sup.Initialize(ctx)
	})
	It("should serve devices from the cache until invalidated", func() {
		calls := provA.GetDevicesBehavior.Calls()

		devices := sup.GetAllDevices(ctx)
		Expect(devices).To(HaveLen(1))
		Expect(sup.GetAllDevices(ctx)).To(HaveLen(1))
		Expect(provA.GetDevicesBehavior.Calls()).To(Equal(calls + 1))

		sup.InvalidateDeviceCache()
		sup.GetAllDevices(ctx)
		Expect(provA.GetDevicesBehavior.Calls()).To(Equal(calls + 2))
	})
	It("should skip an adapter that fails during listing", func() {
		sup.InvalidateDeviceCache()
		provA.GetDevicesBehavior.Error.Set(qerrors.New(qerrors.KindNetworkTransient, "listing failed"))
		Expect(sup.GetAllDevices(ctx)).To(BeEmpty())
	})
	It("should look up adapters by id", func() {
		adapter, err := sup.GetProvider("vendor-a")
		Expect(err).ToNot(HaveOccurred())
		Expect(adapter.ID()).To(Equal("vendor-a"))

		_, err = sup.GetProvider("vendor-x")
		Expect(qerrors.IsNotFound(err)).To(BeTrue())
	})
})

var _ = Describe("Health Checks", func() {
	BeforeEach(func() {
		sup.Register(provB, nil)
		sup.Initialize(ctx)
		recorder.Reset()
	})
	It("should report healthy while every adapter lists devices", func() {
		report := sup.PerformHealthCheck(ctx)
		Expect(report.Overall).To(Equal(supervisor.Healthy))
	})
	It("should degrade when one adapter goes dark", func() {
		provB.GetDevicesBehavior.Error.Set(qerrors.New(qerrors.KindNetworkTransient, "gateway down"), fake.MaxCalls(0))
		report := sup.PerformHealthCheck(ctx)
		Expect(report.Overall).To(Equal(supervisor.Degraded))
		Expect(report.Providers[0].Available).To(BeTrue())
		Expect(report.Providers[1].Available).To(BeFalse())
		Expect(report.Providers[1].Error).To(ContainSubstring("gateway down"))
	})
	It("should report unhealthy when every adapter is down", func() {
		provA.GetDevicesBehavior.Error.Set(qerrors.New(qerrors.KindNetworkTransient, "gateway down"), fake.MaxCalls(0))
		provB.GetDevicesBehavior.Error.Set(qerrors.New(qerrors.KindNetworkTransient, "gateway down"), fake.MaxCalls(0))
		Expect(sup.PerformHealthCheck(ctx).Overall).To(Equal(supervisor.Unhealthy))
	})
	It("should publish availability transitions", func() {
		provA.GetDevicesBehavior.Error.Set(qerrors.New(qerrors.KindNetworkTransient, "gateway down"), fake.MaxCalls(0))
		sup.PerformHealthCheck(ctx)
		Expect(recorder.Calls(events.ProviderStatusChanged)).To(Equal(1))
		Expect(recorder.Events()[0].Type).To(Equal(events.TypeWarning))

		provA.GetDevicesBehavior.Error.Reset()
		sup.PerformHealthCheck(ctx)
		Expect(recorder.Calls(events.ProviderStatusChanged)).To(Equal(2))
	})
})

var _ = Describe("Direct Submission", func() {
	BeforeEach(func() {
		sup.Initialize(ctx)
	})
	It("should submit to an eligible device", func() {
		job := bellJob()
		receipt, err := sup.SubmitJobToOptimalDevice(ctx, job, supervisor.Constraints{})
		Expect(err).ToNot(HaveOccurred())
		Expect(receipt.ProviderJobID).ToNot(BeEmpty())
		Expect(job.Device).ToNot(BeNil())
		Expect(job.ProviderJobID).To(Equal(receipt.ProviderJobID))
		Expect(provA.SubmitJobBehavior.Calls()).To(Equal(1))
	})
	It("should reject a job without a circuit", func() {
		_, err := sup.SubmitJobToOptimalDevice(ctx, &v1.Job{ID: uuid.NewString()}, supervisor.Constraints{})
		Expect(qerrors.IsInvalidJob(err)).To(BeTrue())
	})
	It("should enforce the qubit floor", func() {
		_, err := sup.SubmitJobToOptimalDevice(ctx, bellJob(), supervisor.Constraints{MinQubits: 10})
		Expect(qerrors.IsNoEligibleDevice(err)).To(BeTrue())
	})
	It("should enforce the simulator restriction", func() {
		_, err := sup.SubmitJobToOptimalDevice(ctx, bellJob(), supervisor.Constraints{Simulator: lo.ToPtr(true)})
		Expect(qerrors.IsNoEligibleDevice(err)).To(BeTrue())
	})
	It("should enforce the cost ceiling", func() {
		job := bellJob()
		job.Shots = 1000
		_, err := sup.SubmitJobToOptimalDevice(ctx, job, supervisor.Constraints{MaxCost: 0.5})
		Expect(qerrors.IsNoEligibleDevice(err)).To(BeTrue())
	})
	It("should enforce the provider preference", func() {
		_, err := sup.SubmitJobToOptimalDevice(ctx, bellJob(), supervisor.Constraints{PreferredProviders: []string{"vendor-x"}})
		Expect(qerrors.IsNoEligibleDevice(err)).To(BeTrue())
	})
	It("should not target a device at its concurrency limit", func() {
		device := fake.MakeDevice("vendor-a", 5)
		device.QueueInfo.PendingJobs = device.MaxConcurrentJobs
		provA.GetDevicesBehavior.Output.Set(&[]*v1.Device{device})
		sup.InvalidateDeviceCache()

		_, err := sup.SubmitJobToOptimalDevice(ctx, bellJob(), supervisor.Constraints{})
		Expect(qerrors.IsNoEligibleDevice(err)).To(BeTrue())
	})
	It("should prefer the device with the shorter queue", func() {
		busy := fake.MakeDevice("vendor-a", 5)
		busy.QueueInfo.AverageWaitMs = 60_000
		idle := fake.MakeDevice("vendor-b", 5)
		idle.QueueInfo.AverageWaitMs = 1_000
		provA.GetDevicesBehavior.Output.Set(&[]*v1.Device{busy})
		provB.GetDevicesBehavior.Output.Set(&[]*v1.Device{idle})

		sup.Register(provB, nil)
		sup.InvalidateDeviceCache()

		job := bellJob()
		_, err := sup.SubmitJobToOptimalDevice(ctx, job, supervisor.Constraints{})
		Expect(err).ToNot(HaveOccurred())
		Expect(job.Device.ProviderID).To(Equal("vendor-b"))
		Expect(provB.SubmitJobBehavior.Calls()).To(Equal(1))
		Expect(provA.SubmitJobBehavior.Calls()).To(Equal(0))
	})
})
