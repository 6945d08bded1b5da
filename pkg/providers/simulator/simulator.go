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

// Package simulator is the in-process statevector backend. Jobs execute
// asynchronously on goroutines against github.com/itsubaki/q, so the
// adapter behaves like any remote vendor: submit returns a receipt and
// status/results are polled afterwards.
package simulator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/itsubaki/q"
	"github.com/samber/lo"
	"k8s.io/utils/clock"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/logging"
	"github.com/amirewontmiss/eigenos/pkg/providers"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
	"github.com/amirewontmiss/eigenos/pkg/quantum/topology"
	"github.com/amirewontmiss/eigenos/pkg/utils/env"
)

const (
	ProviderID = "local-simulator"
	DeviceID   = "local-simulator-statevector"
)

// Statevector cost grows as 2^n; the cap keeps a single job from pinning
// the host.
var maxQubits = env.WithDefaultInt("EIGENOS_SIMULATOR_MAX_QUBITS", 25)

var supportedGates = []string{
	"H", "X", "Y", "Z", "S", "SDG", "T", "TDG",
	"RX", "RY", "RZ", "CNOT", "CZ", "SWAP", "TOFFOLI",
}

type run struct {
	mu        sync.Mutex
	status    providers.NormalizedStatus
	results   *v1.JobResults
	errMsg    string
	cancel    context.CancelFunc
	submitted time.Time
}

// Adapter runs circuits locally. It is free, always online, and never
// transiently fails, which also makes it the reference backend in tests.
type Adapter struct {
	log   *logging.Logger
	clock clock.Clock

	mu   sync.Mutex
	jobs map[string]*run
}

var _ providers.Provider = (*Adapter)(nil)

func New(log *logging.Logger, clk clock.Clock) *Adapter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Adapter{
		log:   log.Named("simulator"),
		clock: clk,
		jobs:  map[string]*run{},
	}
}

func (a *Adapter) ID() string   { return ProviderID }
func (a *Adapter) Name() string { return "Local Statevector Simulator" }

// Authenticate always succeeds; there is no remote account behind the
// local backend.
func (a *Adapter) Authenticate(_ context.Context, _ providers.Credentials) (providers.UserInfo, error) {
	return providers.UserInfo{ID: "local", Name: "Local Simulator"}, nil
}

func (a *Adapter) GetDevices(_ context.Context) ([]*v1.Device, error) {
	a.mu.Lock()
	pending := lo.CountBy(lo.Values(a.jobs), func(r *run) bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return !r.status.Terminal()
	})
	a.mu.Unlock()

	return []*v1.Device{{
		ID:                DeviceID,
		ProviderID:        ProviderID,
		ProviderName:      a.Name(),
		Name:              "statevector",
		Version:           "1.0",
		Type:              v1.DeviceSimulator,
		Status:            v1.DeviceOnline,
		Topology:          topology.FullyConnected(maxQubits),
		BasisGates:        supportedGates,
		MaxShots:          v1.MaxShots,
		MaxExperiments:    1,
		MaxConcurrentJobs: 4,
		SimulationCapable: true,
		Calibration: &v1.Calibration{
			Timestamp: a.clock.Now(),
		},
		QueueInfo: v1.QueueInfo{PendingJobs: pending},
		CostModel: v1.CostModel{Currency: "USD"},
	}}, nil
}

func (a *Adapter) SubmitJob(_ context.Context, job *v1.Job) (providers.SubmitReceipt, error) {
	if job == nil || job.Circuit == nil {
		return providers.SubmitReceipt{}, qerrors.New(qerrors.KindInvalidJob, "job has no circuit")
	}
	if job.Shots < v1.MinShots || job.Shots > v1.MaxShots {
		return providers.SubmitReceipt{}, qerrors.New(qerrors.KindInvalidJob, "shots %d outside [%d, %d]", job.Shots, v1.MinShots, v1.MaxShots)
	}
	if job.Circuit.Qubits() > maxQubits {
		return providers.SubmitReceipt{}, qerrors.New(qerrors.KindInvalidJob, "circuit uses %d qubits, simulator caps at %d", job.Circuit.Qubits(), maxQubits)
	}
	if err := job.Circuit.Validate(); err != nil {
		return providers.SubmitReceipt{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		status:    providers.StatusQueued,
		cancel:    cancel,
		submitted: a.clock.Now(),
	}
	providerJobID := uuid.NewString()

	a.mu.Lock()
	a.jobs[providerJobID] = r
	a.mu.Unlock()

	c := job.Circuit.Copy()
	shots := job.Shots
	go a.execute(ctx, r, c, shots)

	a.log.Debug().Str("provider_job_id", providerJobID).Int("shots", shots).
		Int("qubits", c.Qubits()).Msg("simulator job accepted")

	return providers.SubmitReceipt{
		JobID:         job.ID,
		ProviderJobID: providerJobID,
		Status:        providers.StatusQueued,
	}, nil
}

func (a *Adapter) execute(ctx context.Context, r *run, c *circuit.Circuit, shots int) {
	r.mu.Lock()
	if r.status.Terminal() {
		r.mu.Unlock()
		return
	}
	r.status = providers.StatusRunning
	r.mu.Unlock()

	start := a.clock.Now()
	counts := make(map[string]int)
	for i := 0; i < shots; i++ {
		if ctx.Err() != nil {
			r.finish(providers.StatusCancelled, nil, "")
			return
		}
		key, err := runShot(c)
		if err != nil {
			r.finish(providers.StatusFailed, nil, err.Error())
			return
		}
		counts[key]++
	}
	elapsed := a.clock.Since(start)

	results := &v1.JobResults{
		Shots:       shots,
		Counts:      counts,
		ExecutionMs: float64(elapsed) / float64(time.Millisecond),
		QueueMs:     float64(start.Sub(r.submitted)) / float64(time.Millisecond),
		Metadata: map[string]string{
			"bit_order": string(providers.BigEndian),
			"backend":   DeviceID,
		},
	}
	if err := providers.VerifyCounts(results.Counts, shots); err != nil {
		r.finish(providers.StatusFailed, nil, err.Error())
		return
	}
	r.finish(providers.StatusCompleted, results, "")
}

func (r *run) finish(status providers.NormalizedStatus, results *v1.JobResults, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	r.status = status
	r.results = results
	r.errMsg = errMsg
}

// runShot plays the circuit once and returns the classical bitstring with
// clbit 0 leftmost. Qubits without an explicit measurement are measured
// in circuit order when the circuit declares none.
func runShot(c *circuit.Circuit) (string, error) {
	sim := q.New()
	qs := sim.ZeroWith(c.Qubits())

	for _, g := range c.Gates() {
		if err := applyGate(sim, qs, g); err != nil {
			return "", err
		}
	}

	meas := c.Measurements()
	if len(meas) == 0 {
		meas = make([]circuit.Measurement, c.Qubits())
		for i := range meas {
			meas[i] = circuit.Measurement{Qubit: i, Clbit: i}
		}
	}
	width := 0
	for _, m := range meas {
		if m.Clbit+1 > width {
			width = m.Clbit + 1
		}
	}

	bits := make([]byte, width)
	for i := range bits {
		bits[i] = '0'
	}
	for _, m := range meas {
		if sim.Measure(qs[m.Qubit]).IsOne() {
			bits[m.Clbit] = '1'
		}
	}
	return string(bits), nil
}

func applyGate(sim *q.Q, qs []q.Qubit, g gate.Gate) error {
	switch g.Name {
	case "H":
		sim.H(qs[g.Qubits[0]])
	case "X":
		sim.X(qs[g.Qubits[0]])
	case "Y":
		sim.Y(qs[g.Qubits[0]])
	case "Z":
		sim.Z(qs[g.Qubits[0]])
	case "S":
		sim.S(qs[g.Qubits[0]])
	case "T":
		sim.T(qs[g.Qubits[0]])
	// SDG and TDG differ from the RZ form only by a global phase, which
	// measurement statistics cannot observe.
	case "SDG":
		sim.RZ(-math.Pi/2, qs[g.Qubits[0]])
	case "TDG":
		sim.RZ(-math.Pi/4, qs[g.Qubits[0]])
	case "RX":
		sim.RX(g.Params[0], qs[g.Qubits[0]])
	case "RY":
		sim.RY(g.Params[0], qs[g.Qubits[0]])
	case "RZ":
		sim.RZ(g.Params[0], qs[g.Qubits[0]])
	case "CNOT":
		sim.CNOT(qs[g.Qubits[0]], qs[g.Qubits[1]])
	case "CZ":
		sim.CZ(qs[g.Qubits[0]], qs[g.Qubits[1]])
	case "SWAP":
		sim.Swap(qs[g.Qubits[0]], qs[g.Qubits[1]])
	case "TOFFOLI":
		sim.Toffoli(qs[g.Qubits[0]], qs[g.Qubits[1]], qs[g.Qubits[2]])
	default:
		return qerrors.New(qerrors.KindInvalidCircuit, "simulator does not support gate %q", g.Name)
	}
	return nil
}

func (a *Adapter) lookup(providerJobID string) (*run, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.jobs[providerJobID]
	if !ok {
		return nil, qerrors.New(qerrors.KindNotFound, "unknown simulator job %q", providerJobID)
	}
	return r, nil
}

func (a *Adapter) GetJobStatus(_ context.Context, providerJobID string) (providers.NormalizedStatus, error) {
	r, err := a.lookup(providerJobID)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, nil
}

func (a *Adapter) GetJobResults(_ context.Context, providerJobID string) (*v1.JobResults, error) {
	r, err := a.lookup(providerJobID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case providers.StatusCompleted:
		return r.results, nil
	case providers.StatusFailed:
		return nil, qerrors.New(qerrors.KindInvalidJob, "simulator job failed: %s", r.errMsg)
	default:
		return nil, qerrors.New(qerrors.KindNotFound, "simulator job %q has no results yet (status %s)", providerJobID, r.status)
	}
}

func (a *Adapter) CancelJob(_ context.Context, providerJobID string) (bool, error) {
	r, err := a.lookup(providerJobID)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	terminal := r.status.Terminal()
	r.mu.Unlock()
	if terminal {
		return false, nil
	}
	r.cancel()
	r.finish(providers.StatusCancelled, nil, "")
	return true, nil
}

// GetCreditsRemaining reports an effectively unlimited balance; local
// execution is free.
func (a *Adapter) GetCreditsRemaining(_ context.Context) (float64, error) {
	return math.MaxFloat64, nil
}
