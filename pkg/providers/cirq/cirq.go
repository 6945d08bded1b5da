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

// Package cirq adapts a Cirq-style quantum engine REST surface to the
// uniform provider contract. Circuits are shipped as a moment list: gates
// grouped into layers of simultaneously applicable operations.
package cirq

import (
	"context"
	"fmt"
	"net/http"
	"time"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/providers"
	"github.com/amirewontmiss/eigenos/pkg/providers/rest"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/topology"
	"github.com/amirewontmiss/eigenos/pkg/utils/atomic"
)

const (
	ProviderID     = "cirq"
	DefaultBaseURL = "https://quantum.googleapis.com/v1alpha1"
)

var statusMap = map[string]providers.NormalizedStatus{
	"STATE_UNSPECIFIED": providers.StatusSubmitted,
	"READY":             providers.StatusQueued,
	"RUNNING":           providers.StatusRunning,
	"SUCCESS":           providers.StatusCompleted,
	"CANCELLED":         providers.StatusCancelled,
	"FAILURE":           providers.StatusFailed,
}

type Config struct {
	Project  string
	APIToken string
	BaseURL  string
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
		req.Header.Set("Authorization", "Bearer "+config.APIToken)
	}
	a := &Adapter{config: config, client: client}
	a.credits.TTL = 5 * time.Minute
	a.credits.Resolve = a.fetchCredits
	return a
}

func (a *Adapter) ID() string   { return ProviderID }
func (a *Adapter) Name() string { return "Google Quantum Engine" }

func (a *Adapter) Authenticate(ctx context.Context, creds providers.Credentials) (providers.UserInfo, error) {
	if tok := creds["api_token"]; tok != "" {
		a.config.APIToken = tok
	}
	if proj := creds["project"]; proj != "" {
		a.config.Project = proj
	}
	if a.config.APIToken == "" || a.config.Project == "" {
		return providers.UserInfo{}, qerrors.New(qerrors.KindAuthFailure, "cirq: project and api token are required")
	}
	var out struct {
		Name string `json:"displayName"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/projects/"+a.config.Project, providers.AuthenticateTimeout, nil, &out); err != nil {
		return providers.UserInfo{}, err
	}
	return providers.UserInfo{ID: a.config.Project, Name: out.Name}, nil
}

type moment struct {
	Operations []operation `json:"operations"`
}

type operation struct {
	Gate    string    `json:"gate"`
	Targets []int     `json:"targets"`
	Args    []float64 `json:"args,omitempty"`
}

// toMoments groups the gate sequence into layers of qubit-disjoint
// operations, preserving order within the sequence.
func toMoments(c *circuit.Circuit) []moment {
	var moments []moment
	busy := map[int]int{} // qubit -> first free moment index
	for _, g := range c.Gates() {
		slot := 0
		for _, q := range g.Qubits {
			if busy[q] > slot {
				slot = busy[q]
			}
		}
		for len(moments) <= slot {
			moments = append(moments, moment{})
		}
		moments[slot].Operations = append(moments[slot].Operations, operation{
			Gate:    g.Name,
			Targets: g.Qubits,
			Args:    g.Params,
		})
		for _, q := range g.Qubits {
			busy[q] = slot + 1
		}
	}
	return moments
}

func (a *Adapter) GetDevices(ctx context.Context) ([]*v1.Device, error) {
	var out struct {
		Processors []struct {
			Name        string    `json:"name"`
			DisplayName string    `json:"displayName"`
			NumQubits   int       `json:"numQubits"`
			Edges       [][2]int  `json:"couplings"`
			Gateset     []string  `json:"supportedGates"`
			Health      string    `json:"health"`
			Calibrated  time.Time `json:"lastCalibrationTime"`
			QueueSize   int       `json:"queuedPrograms"`
			PerSecond   float64   `json:"pricePerSecond"`
		} `json:"processors"`
	}
	path := "/projects/" + a.config.Project + "/processors"
	if err := a.client.DoJSON(ctx, http.MethodGet, path, providers.GetDevicesTimeout, nil, &out); err != nil {
		return nil, err
	}
	devices := make([]*v1.Device, 0, len(out.Processors))
	for _, p := range out.Processors {
		topo, err := topology.New(p.NumQubits, p.Edges)
		if err != nil {
			return nil, fmt.Errorf("cirq processor %s: %w", p.Name, err)
		}
		status := v1.DeviceOffline
		switch p.Health {
		case "OK":
			status = v1.DeviceOnline
		case "MAINTENANCE":
			status = v1.DeviceMaintenance
		case "CALIBRATING":
			status = v1.DeviceCalibrating
		}
		devices = append(devices, &v1.Device{
			ID:           ProviderID + ":" + p.Name,
			ProviderID:   ProviderID,
			ProviderName: a.Name(),
			Name:         p.DisplayName,
			Type:         v1.DeviceSuperconducting,
			Status:       status,
			Topology:     topo,
			BasisGates:   p.Gateset,
			MaxShots:     1_000_000,
			Calibration:  &v1.Calibration{Timestamp: p.Calibrated},
			QueueInfo:    v1.QueueInfo{PendingJobs: p.QueueSize},
			CostModel:    v1.CostModel{CostPerSecond: p.PerSecond, Currency: "USD"},
		})
	}
	return devices, nil
}

func (a *Adapter) SubmitJob(ctx context.Context, job *v1.Job) (providers.SubmitReceipt, error) {
	payload := map[string]any{
		"processor": job.Device.Name,
		"program": map[string]any{
			"qubits":  job.Circuit.Qubits(),
			"moments": toMoments(job.Circuit),
		},
		"repetitions": job.Shots,
	}
	var out struct {
		Name   string `json:"name"`
		State  string `json:"executionStatus"`
	}
	path := "/projects/" + a.config.Project + "/programs"
	if err := a.client.DoJSON(ctx, http.MethodPost, path, providers.SubmitJobTimeout, payload, &out); err != nil {
		return providers.SubmitReceipt{}, err
	}
	return providers.SubmitReceipt{
		JobID:         job.ID,
		ProviderJobID: out.Name,
		Status:        normalizeStatus(out.State),
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
		State string `json:"executionStatus"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/"+providerJobID, providers.GetJobStatusTimeout, nil, &out); err != nil {
		return "", err
	}
	return normalizeStatus(out.State), nil
}

func (a *Adapter) GetJobResults(ctx context.Context, providerJobID string) (*v1.JobResults, error) {
	var out struct {
		Repetitions int            `json:"repetitions"`
		Histogram   map[string]int `json:"measurementHistogram"`
		ExecMs      float64        `json:"executionMs"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/"+providerJobID+"/results", providers.GetJobResultsTimeout, nil, &out); err != nil {
		return nil, err
	}
	counts := providers.NormalizeCounts(out.Histogram, providers.BigEndian)
	if err := providers.VerifyCounts(counts, out.Repetitions); err != nil {
		return nil, fmt.Errorf("cirq program %s: %w", providerJobID, err)
	}
	return &v1.JobResults{
		Shots:       out.Repetitions,
		Counts:      counts,
		ExecutionMs: out.ExecMs,
		Metadata: map[string]string{
			"provider":  ProviderID,
			"bit_order": string(providers.BigEndian),
		},
	}, nil
}

func (a *Adapter) CancelJob(ctx context.Context, providerJobID string) (bool, error) {
	err := a.client.DoJSON(ctx, http.MethodPost, "/"+providerJobID+":cancel", providers.SubmitJobTimeout, nil, nil)
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
		RemainingBudget float64 `json:"remainingBudget"`
	}
	path := "/projects/" + a.config.Project + "/budget"
	if err := a.client.DoJSON(ctx, http.MethodGet, path, providers.GetDevicesTimeout, nil, &out); err != nil {
		return 0, err
	}
	return out.RemainingBudget, nil
}

var _ providers.Provider = (*Adapter)(nil)
