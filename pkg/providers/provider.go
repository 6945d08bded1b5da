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

// Package providers defines the uniform contract every vendor adapter
// implements, plus the normalized vocabulary shared across vendors. One
// adapter wraps exactly one external quantum service; the supervisor owns
// the adapter table.
package providers

import (
	"context"
	"time"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
)

// Default deadlines for adapter calls. Callers wrap the context; adapters
// must respect cancellation.
const (
	AuthenticateTimeout  = 60 * time.Second
	GetDevicesTimeout    = 30 * time.Second
	SubmitJobTimeout     = 30 * time.Second
	GetJobStatusTimeout  = 10 * time.Second
	GetJobResultsTimeout = 30 * time.Second
)

// Credentials are opaque to the core; each adapter knows its own fields.
type Credentials map[string]string

// UserInfo is whatever identity the vendor reports after authentication.
type UserInfo struct {
	ID    string
	Name  string
	Email string
}

// NormalizedStatus is the fixed cross-vendor job status vocabulary.
type NormalizedStatus string

const (
	StatusSubmitted NormalizedStatus = "submitted"
	StatusQueued    NormalizedStatus = "queued"
	StatusRunning   NormalizedStatus = "running"
	StatusCompleted NormalizedStatus = "completed"
	StatusCancelled NormalizedStatus = "cancelled"
	StatusFailed    NormalizedStatus = "failed"
)

// Terminal reports whether the provider will never advance this status.
func (s NormalizedStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// SubmitReceipt acknowledges a successful submission.
type SubmitReceipt struct {
	JobID            string
	ProviderJobID    string
	Status           NormalizedStatus
	EstimatedQueueMs float64
}

// Provider is the uniform adapter surface. Read operations (GetDevices,
// GetJobStatus, GetJobResults, GetCreditsRemaining) must be safe for
// concurrent use; the scheduler serializes writes per provider job id.
type Provider interface {
	ID() string
	Name() string

	Authenticate(ctx context.Context, creds Credentials) (UserInfo, error)
	GetDevices(ctx context.Context) ([]*v1.Device, error)
	SubmitJob(ctx context.Context, job *v1.Job) (SubmitReceipt, error)
	GetJobStatus(ctx context.Context, providerJobID string) (NormalizedStatus, error)
	GetJobResults(ctx context.Context, providerJobID string) (*v1.JobResults, error)
	CancelJob(ctx context.Context, providerJobID string) (bool, error)
	GetCreditsRemaining(ctx context.Context) (float64, error)
}
