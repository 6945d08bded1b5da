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

// Package ibm adapts the IBM Quantum runtime REST surface to the uniform
// provider contract. Circuits are shipped as OPENQASM 2.0 text; result
// bitstrings arrive little-endian and are normalized on the way in.
package ibm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/lo"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/providers"
	"github.com/amirewontmiss/eigenos/pkg/providers/rest"
	"github.com/amirewontmiss/eigenos/pkg/quantum/qasm"
	"github.com/amirewontmiss/eigenos/pkg/quantum/topology"
	"github.com/amirewontmiss/eigenos/pkg/utils/atomic"
)

const (
	ProviderID     = "ibm"
	DefaultBaseURL = "https://api.quantum-computing.ibm.com/runtime"

	creditsTTL = 5 * time.Minute
)

var statusMap = map[string]providers.NormalizedStatus{
	"CREATING":   providers.StatusSubmitted,
	"VALIDATING": providers.StatusSubmitted,
	"QUEUED":     providers.StatusQueued,
	"RUNNING":    providers.StatusRunning,
	"COMPLETED":  providers.StatusCompleted,
	"CANCELLED":  providers.StatusCancelled,
	"ERROR":      providers.StatusFailed,
	"FAILED":     providers.StatusFailed,
}

var deviceStatusMap = map[string]v1.DeviceStatus{
	"active":      v1.DeviceOnline,
	"online":      v1.DeviceOnline,
	"maintenance": v1.DeviceMaintenance,
	"calibrating": v1.DeviceCalibrating,
	"offline":     v1.DeviceOffline,
	"error":       v1.DeviceError,
}

type Config struct {
	Token   string
	Hub     string
	Group   string
	Project string
	BaseURL string
}

type Adapter struct {
	config  Config
	client  *rest.Client
	credits atomic.CachedVal[float64]
}

func New(config Config) *Adapter {
	base := config.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	client := rest.NewClient(base)
	client.AuthHeader = func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+config.Token)
	}
	a := &Adapter{config: config, client: client}
	a.credits.TTL = creditsTTL
	a.credits.Resolve = a.fetchCredits
	return a
}

func (a *Adapter) ID() string   { return ProviderID }
func (a *Adapter) Name() string { return "IBM Quantum" }

func (a *Adapter) Authenticate(ctx context.Context, creds providers.Credentials) (providers.UserInfo, error) {
	if tok := creds["token"]; tok != "" {
		a.config.Token = tok
	}
	if a.config.Token == "" {
		return providers.UserInfo{}, qerrors.New(qerrors.KindAuthFailure, "ibm: no API token configured")
	}
	var out struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/users/me", providers.AuthenticateTimeout, nil, &out); err != nil {
		return providers.UserInfo{}, err
	}
	return providers.UserInfo{ID: out.ID, Name: out.Name, Email: out.Email}, nil
}

type ibmDevice struct {
	Name        string     `json:"backend_name"`
	Version     string     `json:"backend_version"`
	NQubits     int        `json:"n_qubits"`
	CouplingMap [][2]int   `json:"coupling_map"`
	BasisGates  []string   `json:"basis_gates"`
	Status      string     `json:"status"`
	Simulator   bool       `json:"simulator"`
	MaxShots    int        `json:"max_shots"`
	MaxExps     int        `json:"max_experiments"`
	QueueLength int        `json:"pending_jobs"`
	AvgWaitMs   float64    `json:"estimated_wait_ms"`
	Calibration *struct {
		LastUpdate   time.Time          `json:"last_update_date"`
		GateErrors   map[string]float64 `json:"gate_errors"`
		ReadoutError []float64          `json:"readout_error"`
		T1           []float64          `json:"t1"`
		T2           []float64          `json:"t2"`
	} `json:"properties"`
	Cost struct {
		PerShot float64 `json:"cost_per_shot"`
		Minimum float64 `json:"minimum_cost"`
	} `json:"cost"`
}

func (a *Adapter) GetDevices(ctx context.Context) ([]*v1.Device, error) {
	var out struct {
		Devices []ibmDevice `json:"devices"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/backends", providers.GetDevicesTimeout, nil, &out); err != nil {
		return nil, err
	}
	devices := make([]*v1.Device, 0, len(out.Devices))
	for _, d := range out.Devices {
		dev, err := a.toDevice(d)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

func (a *Adapter) toDevice(d ibmDevice) (*v1.Device, error) {
	var topo *topology.Graph
	var err error
	if d.Simulator || len(d.CouplingMap) == 0 {
		topo = topology.FullyConnected(d.NQubits)
	} else if topo, err = topology.New(d.NQubits, d.CouplingMap); err != nil {
		return nil, fmt.Errorf("ibm backend %s: %w", d.Name, err)
	}
	devType := v1.DeviceSuperconducting
	if d.Simulator {
		devType = v1.DeviceSimulator
	}
	status, ok := deviceStatusMap[d.Status]
	if !ok {
		status = v1.DeviceOffline
	}
	dev := &v1.Device{
		ID:                ProviderID + ":" + d.Name,
		ProviderID:        ProviderID,
		ProviderName:      a.Name(),
		Name:              d.Name,
		Version:           d.Version,
		Type:              devType,
		Status:            status,
		Topology:          topo,
		BasisGates:        normalizeBasis(d.BasisGates),
		MaxShots:          d.MaxShots,
		MaxExperiments:    d.MaxExps,
		SimulationCapable: d.Simulator,
		QueueInfo:         v1.QueueInfo{PendingJobs: d.QueueLength, AverageWaitMs: d.AvgWaitMs},
		CostModel: v1.CostModel{
			CostPerShot: d.Cost.PerShot,
			MinimumCost: d.Cost.Minimum,
			Currency:    "USD",
		},
	}
	if c := d.Calibration; c != nil {
		dev.Calibration = &v1.Calibration{
			Timestamp:     c.LastUpdate,
			GateErrors:    c.GateErrors,
			ReadoutErrors: c.ReadoutError,
			T1:            c.T1,
			T2:            c.T2,
		}
	}
	return dev, nil
}

// normalizeBasis lifts IBM's lowercase qelib names to the internal spelling.
func normalizeBasis(names []string) []string {
	mapping := map[string]string{
		"h": "H", "x": "X", "y": "Y", "z": "Z",
		"s": "S", "sdg": "SDG", "t": "T", "tdg": "TDG",
		"rx": "RX", "ry": "RY", "rz": "RZ",
		"cx": "CNOT", "cz": "CZ", "swap": "SWAP", "ccx": "TOFFOLI",
	}
	return lo.FilterMap(names, func(n string, _ int) (string, bool) {
		mapped, ok := mapping[n]
		return mapped, ok
	})
}

func (a *Adapter) SubmitJob(ctx context.Context, job *v1.Job) (providers.SubmitReceipt, error) {
	program, err := qasm.Emit(job.Circuit)
	if err != nil {
		return providers.SubmitReceipt{}, err
	}
	payload := map[string]any{
		"program_id": "sampler",
		"hub":        a.config.Hub,
		"group":      a.config.Group,
		"project":    a.config.Project,
		"backend":    job.Device.Name,
		"params": map[string]any{
			"circuits": []string{program},
			"shots":    job.Shots,
		},
	}
	var out struct {
		ID        string  `json:"id"`
		Status    string  `json:"status"`
		QueueMs   float64 `json:"estimated_queue_ms"`
	}
	if err := a.client.DoJSON(ctx, http.MethodPost, "/jobs", providers.SubmitJobTimeout, payload, &out); err != nil {
		return providers.SubmitReceipt{}, err
	}
	return providers.SubmitReceipt{
		JobID:            job.ID,
		ProviderJobID:    out.ID,
		Status:           normalizeStatus(out.Status),
		EstimatedQueueMs: out.QueueMs,
	}, nil
}

func normalizeStatus(vendor string) providers.NormalizedStatus {
	if s, ok := statusMap[vendor]; ok {
		return s
	}
	return providers.StatusSubmitted
}

func (a *Adapter) GetJobStatus(ctx context.Context, providerJobID string) (providers.NormalizedStatus, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/jobs/"+providerJobID, providers.GetJobStatusTimeout, nil, &out); err != nil {
		return "", err
	}
	return normalizeStatus(out.Status), nil
}

func (a *Adapter) GetJobResults(ctx context.Context, providerJobID string) (*v1.JobResults, error) {
	var out struct {
		Status  string         `json:"status"`
		Shots   int            `json:"shots"`
		Counts  map[string]int `json:"counts"`
		ExecMs  float64        `json:"execution_ms"`
		QueueMs float64        `json:"queue_ms"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/jobs/"+providerJobID+"/results", providers.GetJobResultsTimeout, nil, &out); err != nil {
		return nil, err
	}
	if normalizeStatus(out.Status) != providers.StatusCompleted {
		return nil, fmt.Errorf("ibm job %s is %s, results not ready", providerJobID, out.Status)
	}
	counts := providers.NormalizeCounts(out.Counts, providers.LittleEndian)
	if err := providers.VerifyCounts(counts, out.Shots); err != nil {
		return nil, fmt.Errorf("ibm job %s: %w", providerJobID, err)
	}
	return &v1.JobResults{
		Shots:       out.Shots,
		Counts:      counts,
		ExecutionMs: out.ExecMs,
		QueueMs:     out.QueueMs,
		Metadata: map[string]string{
			"provider":  ProviderID,
			"bit_order": string(providers.LittleEndian),
		},
	}, nil
}

func (a *Adapter) CancelJob(ctx context.Context, providerJobID string) (bool, error) {
	err := a.client.DoJSON(ctx, http.MethodPost, "/jobs/"+providerJobID+"/cancel", providers.SubmitJobTimeout, nil, nil)
	if err != nil {
		if qerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *Adapter) GetCreditsRemaining(ctx context.Context) (float64, error) {
	return a.credits.Get(ctx)
}

func (a *Adapter) fetchCredits(ctx context.Context) (float64, error) {
	var out struct {
		Credits float64 `json:"credits_remaining"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/account", providers.GetDevicesTimeout, nil, &out); err != nil {
		return 0, err
	}
	if out.Credits < 0 {
		return 0, nil
	}
	return out.Credits, nil
}

var _ providers.Provider = (*Adapter)(nil)
