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

// Package ionq adapts the IonQ cloud API to the uniform provider contract.
// Circuits are shipped as a flat gate list; trapped-ion devices are fully
// connected so no routing is required on this backend.
package ionq

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/providers"
	"github.com/amirewontmiss/eigenos/pkg/providers/rest"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/topology"
	"github.com/amirewontmiss/eigenos/pkg/utils/atomic"
)

const (
	ProviderID     = "ionq"
	DefaultBaseURL = "https://api.ionq.co/v0.3"
)

var statusMap = map[string]providers.NormalizedStatus{
	"submitted": providers.StatusSubmitted,
	"ready":     providers.StatusQueued,
	"running":   providers.StatusRunning,
	"completed": providers.StatusCompleted,
	"canceled":  providers.StatusCancelled,
	"failed":    providers.StatusFailed,
}

type Config struct {
	APIKey  string
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
		req.Header.Set("Authorization", "apiKey "+config.APIKey)
	}
	a := &Adapter{config: config, client: client}
	a.credits.TTL = 5 * time.Minute
	a.credits.Resolve = a.fetchCredits
	return a
}

func (a *Adapter) ID() string   { return ProviderID }
func (a *Adapter) Name() string { return "IonQ" }

func (a *Adapter) Authenticate(ctx context.Context, creds providers.Credentials) (providers.UserInfo, error) {
	if key := creds["api_key"]; key != "" {
		a.config.APIKey = key
	}
	if a.config.APIKey == "" {
		return providers.UserInfo{}, qerrors.New(qerrors.KindAuthFailure, "ionq: no API key configured")
	}
	var out struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/users/self", providers.AuthenticateTimeout, nil, &out); err != nil {
		return providers.UserInfo{}, err
	}
	return providers.UserInfo{ID: out.ID, Email: out.Email}, nil
}

func (a *Adapter) GetDevices(ctx context.Context) ([]*v1.Device, error) {
	var out []struct {
		Backend     string  `json:"backend"`
		Qubits      int     `json:"qubits"`
		Status      string  `json:"status"`
		AvgQueueSec float64 `json:"average_queue_time"`
		Pending     int     `json:"pending_jobs"`
		LastCal     int64   `json:"last_calibrated"`
		Fidelity1Q  float64 `json:"fidelity_1q"`
		Fidelity2Q  float64 `json:"fidelity_2q"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/backends", providers.GetDevicesTimeout, nil, &out); err != nil {
		return nil, err
	}
	devices := make([]*v1.Device, 0, len(out))
	for _, d := range out {
		status := v1.DeviceOffline
		switch d.Status {
		case "available":
			status = v1.DeviceOnline
		case "reserved", "calibrating":
			status = v1.DeviceCalibrating
		case "unavailable":
			status = v1.DeviceMaintenance
		}
		devType := v1.DeviceIonTrap
		simulator := strings.Contains(d.Backend, "simulator")
		if simulator {
			devType = v1.DeviceSimulator
		}
		cal := &v1.Calibration{Timestamp: time.Unix(d.LastCal, 0)}
		if d.Fidelity1Q > 0 || d.Fidelity2Q > 0 {
			cal.GateErrors = map[string]float64{
				"1q": 1 - d.Fidelity1Q,
				"2q": 1 - d.Fidelity2Q,
			}
		}
		devices = append(devices, &v1.Device{
			ID:                ProviderID + ":" + d.Backend,
			ProviderID:        ProviderID,
			ProviderName:      a.Name(),
			Name:              d.Backend,
			Type:              devType,
			Status:            status,
			Topology:          topology.FullyConnected(d.Qubits),
			BasisGates:        []string{"H", "X", "Y", "Z", "S", "SDG", "T", "TDG", "RX", "RY", "RZ", "CNOT", "SWAP"},
			MaxShots:          10_000,
			SimulationCapable: simulator,
			Calibration:       cal,
			QueueInfo: v1.QueueInfo{
				PendingJobs:   d.Pending,
				AverageWaitMs: d.AvgQueueSec * 1000,
			},
			CostModel: v1.CostModel{CostPerShot: 0.00003, MinimumCost: 1, Currency: "USD"},
		})
	}
	return devices, nil
}

type ionqGate struct {
	Gate     string  `json:"gate"`
	Target   int     `json:"target"`
	Control  *int    `json:"control,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`
}

var gateNames = map[string]string{
	"H": "h", "X": "x", "Y": "y", "Z": "z",
	"S": "s", "SDG": "si", "T": "t", "TDG": "ti",
	"RX": "rx", "RY": "ry", "RZ": "rz",
	"CNOT": "cnot", "SWAP": "swap",
}

func toGateList(c *circuit.Circuit) ([]ionqGate, error) {
	gates := c.Gates()
	out := make([]ionqGate, 0, len(gates))
	for _, g := range gates {
		name, ok := gateNames[g.Name]
		if !ok {
			return nil, fmt.Errorf("gate %s has no IonQ encoding", g.Name)
		}
		ig := ionqGate{Gate: name}
		switch {
		case g.Name == "CNOT":
			ig.Control = lo.ToPtr(g.Qubits[0])
			ig.Target = g.Qubits[1]
		case g.Name == "SWAP":
			// IonQ encodes SWAP as three CNOTs
			a, b := g.Qubits[0], g.Qubits[1]
			out = append(out,
				ionqGate{Gate: "cnot", Control: lo.ToPtr(a), Target: b},
				ionqGate{Gate: "cnot", Control: lo.ToPtr(b), Target: a},
			)
			ig = ionqGate{Gate: "cnot", Control: lo.ToPtr(a), Target: b}
		default:
			ig.Target = g.Qubits[0]
		}
		if g.IsRotation() {
			ig.Rotation = g.Params[0]
		}
		out = append(out, ig)
	}
	return out, nil
}

func (a *Adapter) SubmitJob(ctx context.Context, job *v1.Job) (providers.SubmitReceipt, error) {
	gates, err := toGateList(job.Circuit)
	if err != nil {
		return providers.SubmitReceipt{}, err
	}
	payload := map[string]any{
		"target": job.Device.Name,
		"shots":  job.Shots,
		"input": map[string]any{
			"format":  "ionq.circuit.v0",
			"qubits":  job.Circuit.Qubits(),
			"circuit": gates,
		},
	}
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := a.client.DoJSON(ctx, http.MethodPost, "/jobs", providers.SubmitJobTimeout, payload, &out); err != nil {
		return providers.SubmitReceipt{}, err
	}
	return providers.SubmitReceipt{
		JobID:         job.ID,
		ProviderJobID: out.ID,
		Status:        normalizeStatus(out.Status),
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
		Shots     int            `json:"shots"`
		Histogram map[string]int `json:"histogram"`
		ExecMs    float64        `json:"execution_time"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/jobs/"+providerJobID+"/results", providers.GetJobResultsTimeout, nil, &out); err != nil {
		return nil, err
	}
	// IonQ histograms are little-endian bitstrings
	counts := providers.NormalizeCounts(out.Histogram, providers.LittleEndian)
	if err := providers.VerifyCounts(counts, out.Shots); err != nil {
		return nil, fmt.Errorf("ionq job %s: %w", providerJobID, err)
	}
	return &v1.JobResults{
		Shots:       out.Shots,
		Counts:      counts,
		ExecutionMs: out.ExecMs,
		Metadata: map[string]string{
			"provider":  ProviderID,
			"bit_order": string(providers.LittleEndian),
		},
	}, nil
}

func (a *Adapter) CancelJob(ctx context.Context, providerJobID string) (bool, error) {
	err := a.client.DoJSON(ctx, http.MethodPut, "/jobs/"+providerJobID+"/status/cancel", providers.SubmitJobTimeout, nil, nil)
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
		Credits float64 `json:"credits"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/users/self/credits", providers.GetDevicesTimeout, nil, &out); err != nil {
		return 0, err
	}
	return out.Credits, nil
}

var _ providers.Provider = (*Adapter)(nil)
