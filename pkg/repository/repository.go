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

// Package repository persists the orchestrator's domain objects. The
// interfaces are storage-agnostic; the in-memory implementation backs
// tests and single-node deployments.
package repository

import (
	"context"
	"time"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
)

// JobQuery filters jobs. Zero-valued fields match everything; non-zero
// fields are chained with a logical AND.
type JobQuery struct {
	UserID          string
	DeviceID        string
	ProviderID      string
	Statuses        []v1.JobStatus
	SubmittedAfter  time.Time
	SubmittedBefore time.Time
	Limit           int
}

type CircuitQuery struct {
	Author string
	Tag    string
	Name   string
	Limit  int
}

type DeviceQuery struct {
	ProviderID string
	Status     v1.DeviceStatus
	Type       v1.DeviceType
	MinQubits  int
}

type UserQuery struct {
	Email string
	Limit int
}

type JobRepository interface {
	Save(ctx context.Context, job *v1.Job) error
	FindByID(ctx context.Context, id string) (*v1.Job, error)
	FindByQuery(ctx context.Context, query JobQuery) ([]*v1.Job, error)
	Delete(ctx context.Context, id string) error
}

type CircuitRepository interface {
	Save(ctx context.Context, c *circuit.Circuit) error
	FindByID(ctx context.Context, id string) (*circuit.Circuit, error)
	FindByQuery(ctx context.Context, query CircuitQuery) ([]*circuit.Circuit, error)
	Delete(ctx context.Context, id string) error
}

type DeviceRepository interface {
	Save(ctx context.Context, d *v1.Device) error
	FindByID(ctx context.Context, id string) (*v1.Device, error)
	FindByQuery(ctx context.Context, query DeviceQuery) ([]*v1.Device, error)
	Delete(ctx context.Context, id string) error
}

type UserRepository interface {
	Save(ctx context.Context, u *v1.User) error
	FindByID(ctx context.Context, id string) (*v1.User, error)
	FindByQuery(ctx context.Context, query UserQuery) ([]*v1.User, error)
	Delete(ctx context.Context, id string) error
}

// Repositories bundles every repository over one backing store.
type Repositories struct {
	Jobs     JobRepository
	Circuits CircuitRepository
	Devices  DeviceRepository
	Users    UserRepository
}

// Store exposes the repositories plus an all-or-nothing transaction over
// them.
type Store interface {
	Repositories() Repositories

	// Transact runs fn atomically. If fn returns an error, every write it
	// performed is rolled back.
	Transact(ctx context.Context, fn func(Repositories) error) error
}
