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

package fake

import (
	"context"
	"sync"

	"github.com/Pallinder/go-randomdata"
	"github.com/google/uuid"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	"github.com/amirewontmiss/eigenos/pkg/providers"
	"github.com/amirewontmiss/eigenos/pkg/quantum/topology"
)

// ProviderBehavior holds one MockedFunction per adapter call. Tests inject
// outputs or errors on the behavior; unset behaviors fall through to
// defaults that model a healthy vendor.
type ProviderBehavior struct {
	AuthenticateBehavior        MockedFunction[providers.Credentials, providers.UserInfo]
	GetDevicesBehavior          MockedFunction[struct{}, []*v1.Device]
	SubmitJobBehavior           MockedFunction[v1.Job, providers.SubmitReceipt]
	GetJobStatusBehavior        MockedFunction[string, providers.NormalizedStatus]
	GetJobResultsBehavior       MockedFunction[string, v1.JobResults]
	CancelJobBehavior           MockedFunction[string, bool]
	GetCreditsRemainingBehavior MockedFunction[struct{}, float64]
}

// Provider is a configurable in-memory vendor adapter. By default each
// submitted job advances queued, running, completed across successive
// status polls.
type Provider struct {
	ProviderBehavior

	ProviderID   string
	ProviderName string

	mu        sync.Mutex
	statusSeq map[string]int
	cancelled map[string]bool
}

var _ providers.Provider = (*Provider)(nil)

func NewProvider(id string) *Provider {
	return &Provider{
		ProviderID:   id,
		ProviderName: randomdata.SillyName(),
		statusSeq:    map[string]int{},
		cancelled:    map[string]bool{},
	}
}

// Reset must be called between tests otherwise tests will pollute each other.
func (p *Provider) Reset() {
	p.AuthenticateBehavior.Reset()
	p.GetDevicesBehavior.Reset()
	p.SubmitJobBehavior.Reset()
	p.GetJobStatusBehavior.Reset()
	p.GetJobResultsBehavior.Reset()
	p.CancelJobBehavior.Reset()
	p.GetCreditsRemainingBehavior.Reset()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusSeq = map[string]int{}
	p.cancelled = map[string]bool{}
}

func (p *Provider) ID() string   { return p.ProviderID }
func (p *Provider) Name() string { return p.ProviderName }

func (p *Provider) Authenticate(_ context.Context, creds providers.Credentials) (providers.UserInfo, error) {
	out, err := p.AuthenticateBehavior.Invoke(&creds, func(*providers.Credentials) (*providers.UserInfo, error) {
		return &providers.UserInfo{ID: uuid.NewString(), Name: randomdata.FullName(randomdata.RandomGender)}, nil
	})
	if err != nil {
		return providers.UserInfo{}, err
	}
	return *out, nil
}

func (p *Provider) GetDevices(_ context.Context) ([]*v1.Device, error) {
	out, err := p.GetDevicesBehavior.Invoke(&struct{}{}, func(*struct{}) (*[]*v1.Device, error) {
		devices := []*v1.Device{MakeDevice(p.ProviderID, 5)}
		return &devices, nil
	})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func (p *Provider) SubmitJob(_ context.Context, job *v1.Job) (providers.SubmitReceipt, error) {
	out, err := p.SubmitJobBehavior.Invoke(job, func(j *v1.Job) (*providers.SubmitReceipt, error) {
		return &providers.SubmitReceipt{
			JobID:         j.ID,
			ProviderJobID: uuid.NewString(),
			Status:        providers.StatusQueued,
		}, nil
	})
	if err != nil {
		return providers.SubmitReceipt{}, err
	}
	return *out, nil
}

func (p *Provider) GetJobStatus(_ context.Context, providerJobID string) (providers.NormalizedStatus, error) {
	out, err := p.GetJobStatusBehavior.Invoke(&providerJobID, func(id *string) (*providers.NormalizedStatus, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.cancelled[*id] {
			s := providers.StatusCancelled
			return &s, nil
		}
		seq := []providers.NormalizedStatus{providers.StatusQueued, providers.StatusRunning, providers.StatusCompleted}
		i := p.statusSeq[*id]
		if i < len(seq)-1 {
			p.statusSeq[*id] = i + 1
		}
		return &seq[i], nil
	})
	if err != nil {
		return "", err
	}
	return *out, nil
}

func (p *Provider) GetJobResults(_ context.Context, providerJobID string) (*v1.JobResults, error) {
	return p.GetJobResultsBehavior.Invoke(&providerJobID, func(*string) (*v1.JobResults, error) {
		return &v1.JobResults{
			Shots:       1024,
			Counts:      map[string]int{"00": 512, "11": 512},
			ExecutionMs: 250,
			Metadata:    map[string]string{"bit_order": string(providers.BigEndian)},
		}, nil
	})
}

func (p *Provider) CancelJob(_ context.Context, providerJobID string) (bool, error) {
	out, err := p.CancelJobBehavior.Invoke(&providerJobID, func(id *string) (*bool, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		done := p.statusSeq[*id] >= 2
		if !done {
			p.cancelled[*id] = true
		}
		ok := !done
		return &ok, nil
	})
	if err != nil {
		return false, err
	}
	return *out, nil
}

func (p *Provider) GetCreditsRemaining(_ context.Context) (float64, error) {
	out, err := p.GetCreditsRemainingBehavior.Invoke(&struct{}{}, func(*struct{}) (*float64, error) {
		credits := 100.0
		return &credits, nil
	})
	if err != nil {
		return 0, err
	}
	return *out, nil
}

// MakeDevice builds a healthy online device with a linear topology and
// the standard basis set, suitable as a scheduling target in tests.
func MakeDevice(providerID string, qubits int) *v1.Device {
	return &v1.Device{
		ID:                providerID + "-" + randomdata.SillyName(),
		ProviderID:        providerID,
		ProviderName:      providerID,
		Name:              randomdata.SillyName(),
		Version:           "1.0",
		Type:              v1.DeviceSuperconducting,
		Status:            v1.DeviceOnline,
		Topology:          topology.Linear(qubits),
		BasisGates:        []string{"H", "X", "Y", "Z", "S", "SDG", "T", "TDG", "RX", "RY", "RZ", "CNOT", "CZ", "SWAP"},
		MaxShots:          v1.MaxShots,
		MaxConcurrentJobs: 5,
		QueueInfo:         v1.QueueInfo{PendingJobs: 0, AverageWaitMs: 1000},
		CostModel:         v1.CostModel{CostPerShot: 0.001, MinimumCost: 0.1, Currency: "USD"},
	}
}
