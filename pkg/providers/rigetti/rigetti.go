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

// Package rigetti adapts the Rigetti QCS REST surface to the uniform
// provider contract. Circuits are shipped as Quil text programs.
package rigetti

import (
	"context"
	"fmt"
	"net/http"
	"time"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/providers"
	"github.com/amirewontmiss/eigenos/pkg/providers/rest"
	"github.com/amirewontmiss/eigenos/pkg/quantum/topology"
	"github.com/amirewontmiss/eigenos/pkg/utils/atomic"
)

const (
	ProviderID     = "rigetti"
	DefaultBaseURL = "https://api.qcs.rigetti.com/v1"
)

var statusMap = map[string]providers.NormalizedStatus{
	"created":   providers.StatusSubmitted,
	"enqueued":  providers.StatusQueued,
	"compiling": providers.StatusQueued,
	"executing": providers.StatusRunning,
	"done":      providers.StatusCompleted,
	"cancelled": providers.StatusCancelled,
	"errored":   providers.StatusFailed,
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
		req.Header.Set("X-QCS-API-Key", config.APIKey)
	}
	a := &Adapter{config: config, client: client}
	a.credits.TTL = 5 * time.Minute
	a.credits.Resolve = a.fetchCredits
	return a
}

func (a *Adapter) ID() string   { return ProviderID }
func (a *Adapter) Name() string { return "Rigetti" }

func (a *Adapter) Authenticate(ctx context.Context, creds providers.Credentials) (providers.UserInfo, error) {
	if key := creds["api_key"]; key != "" {
		a.config.APIKey = key
	}
	if a.config.APIKey == "" {
		return providers.UserInfo{}, qerrors.New(qerrors.KindAuthFailure, "rigetti: no API key configured")
	}
	var out struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/account", providers.AuthenticateTimeout, nil, &out); err != nil {
		return providers.UserInfo{}, err
	}
	return providers.UserInfo{ID: out.UserID, Email: out.Email}, nil
}

type qcsDevice struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	NumQubits  int      `json:"num_qubits"`
	Edges      [][2]int `json:"isa_edges"`
	Gateset    []string `json:"native_gates"`
	Status     string   `json:"status"`
	MaxShots   int      `json:"max_shots"`
	QueueDepth int      `json:"queue_depth"`
	AvgWaitSec float64  `json:"avg_wait_seconds"`
	PerShotUSD float64  `json:"price_per_shot_usd"`
	MinUSD     float64  `json:"minimum_price_usd"`
	Calibrated time.Time `json:"last_calibrated"`
}

func (a *Adapter) GetDevices(ctx context.Context) ([]*v1.Device, error) {
	var out struct {
		QPUs []qcsDevice `json:"quantum_processors"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/quantum-processors", providers.GetDevicesTimeout, nil, &out); err != nil {
		return nil, err
	}
	devices := make([]*v1.Device, 0, len(out.QPUs))
	for _, d := range out.QPUs {
		topo, err := topology.New(d.NumQubits, d.Edges)
		if err != nil {
			return nil, fmt.Errorf("rigetti qpu %s: %w", d.Name, err)
		}
		status := v1.DeviceOffline
		switch d.Status {
		case "available":
			status = v1.DeviceOnline
		case "maintenance":
			status = v1.DeviceMaintenance
		case "retuning":
			status = v1.DeviceCalibrating
		}
		basis := d.Gateset
		if len(basis) == 0 {
			basis = []string{"RX", "RZ", "CZ", "CNOT"}
		}
		devices = append(devices, &v1.Device{
			ID:           ProviderID + ":" + d.ID,
			ProviderID:   ProviderID,
			ProviderName: a.Name(),
			Name:         d.Name,
			Type:         v1.DeviceSuperconducting,
			Status:       status,
			Topology:     topo,
			BasisGates:   basis,
			MaxShots:     d.MaxShots,
			Calibration:  &v1.Calibration{Timestamp: d.Calibrated},
			QueueInfo: v1.QueueInfo{
				PendingJobs:   d.QueueDepth,
				AverageWaitMs: d.AvgWaitSec * 1000,
			},
			CostModel: v1.CostModel{
				CostPerShot: d.PerShotUSD,
				MinimumCost: d.MinUSD,
				Currency:    "USD",
			},
		})
	}
	return devices, nil
}

func (a *Adapter) SubmitJob(ctx context.Context, job *v1.Job) (providers.SubmitReceipt, error) {
	quil, err := emitQuil(job.Circuit)
	if err != nil {
		return providers.SubmitReceipt{}, err
	}
	payload := map[string]any{
		"quantum_processor_id": job.Device.Name,
		"program":              quil,
		"shots":                job.Shots,
	}
	var out struct {
		JobID      string  `json:"job_id"`
		Status     string  `json:"status"`
		QueueEtaMs float64 `json:"queue_eta_ms"`
	}
	if err := a.client.DoJSON(ctx, http.MethodPost, "/jobs", providers.SubmitJobTimeout, payload, &out); err != nil {
		return providers.SubmitReceipt{}, err
	}
	return providers.SubmitReceipt{
		JobID:            job.ID,
		ProviderJobID:    out.JobID,
		Status:           normalizeStatus(out.Status),
		EstimatedQueueMs: out.QueueEtaMs,
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
		Readouts  map[string]int `json:"readout_counts"`
		ExecMs    float64        `json:"execution_duration_ms"`
		QueuedMs  float64        `json:"queued_duration_ms"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/jobs/"+providerJobID+"/results", providers.GetJobResultsTimeout, nil, &out); err != nil {
		return nil, err
	}
	// QCS readout registers index bit 0 first, i.e. big-endian already
	counts := providers.NormalizeCounts(out.Readouts, providers.BigEndian)
	if err := providers.VerifyCounts(counts, out.Shots); err != nil {
		return nil, fmt.Errorf("rigetti job %s: %w", providerJobID, err)
	}
	return &v1.JobResults{
		Shots:       out.Shots,
		Counts:      counts,
		ExecutionMs: out.ExecMs,
		QueueMs:     out.QueuedMs,
		Metadata: map[string]string{
			"provider":  ProviderID,
			"bit_order": string(providers.BigEndian),
		},
	}, nil
}

func (a *Adapter) CancelJob(ctx context.Context, providerJobID string) (bool, error) {
	err := a.client.DoJSON(ctx, http.MethodDelete, "/jobs/"+providerJobID, providers.SubmitJobTimeout, nil, nil)
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
		BalanceUSD float64 `json:"balance_usd"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, "/account/balance", providers.GetDevicesTimeout, nil, &out); err != nil {
		return 0, err
	}
	return out.BalanceUSD, nil
}

var _ providers.Provider = (*Adapter)(nil)
