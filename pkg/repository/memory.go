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

package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
)

// MemoryStore keeps everything in maps under one lock. Transactions take
// the write lock for their whole duration, which makes them serializable;
// rollback restores map membership, not field mutations on objects the
// caller still holds.
type MemoryStore struct {
	mu sync.RWMutex

	jobs     map[string]*v1.Job
	circuits map[string]*circuit.Circuit
	devices  map[string]*v1.Device
	users    map[string]*v1.User
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     map[string]*v1.Job{},
		circuits: map[string]*circuit.Circuit{},
		devices:  map[string]*v1.Device{},
		users:    map[string]*v1.User{},
	}
}

func (s *MemoryStore) Repositories() Repositories {
	return Repositories{
		Jobs:     &memoryJobs{store: s, locking: true},
		Circuits: &memoryCircuits{store: s, locking: true},
		Devices:  &memoryDevices{store: s, locking: true},
		Users:    &memoryUsers{store: s, locking: true},
	}
}

func (s *MemoryStore) Transact(_ context.Context, fn func(Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapJobs := lo.Assign(map[string]*v1.Job{}, s.jobs)
	snapCircuits := lo.Assign(map[string]*circuit.Circuit{}, s.circuits)
	snapDevices := lo.Assign(map[string]*v1.Device{}, s.devices)
	snapUsers := lo.Assign(map[string]*v1.User{}, s.users)

	err := fn(Repositories{
		Jobs:     &memoryJobs{store: s},
		Circuits: &memoryCircuits{store: s},
		Devices:  &memoryDevices{store: s},
		Users:    &memoryUsers{store: s},
	})
	if err != nil {
		s.jobs = snapJobs
		s.circuits = snapCircuits
		s.devices = snapDevices
		s.users = snapUsers
		return err
	}
	return nil
}

type memoryJobs struct {
	store *MemoryStore
	// locking is false inside a transaction, where the store lock is
	// already held.
	locking bool
}

func (r *memoryJobs) lock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memoryJobs) rlock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.RLock()
	return r.store.mu.RUnlock
}

func (r *memoryJobs) Save(_ context.Context, job *v1.Job) error {
	if job == nil || job.ID == "" {
		return qerrors.New(qerrors.KindPersistenceFailure, "job must have an id")
	}
	defer r.lock()()
	r.store.jobs[job.ID] = job
	return nil
}

func (r *memoryJobs) FindByID(_ context.Context, id string) (*v1.Job, error) {
	defer r.rlock()()
	job, ok := r.store.jobs[id]
	if !ok {
		return nil, qerrors.New(qerrors.KindNotFound, "job %q not found", id)
	}
	return job, nil
}

func (r *memoryJobs) FindByQuery(_ context.Context, query JobQuery) ([]*v1.Job, error) {
	defer r.rlock()()
	out := lo.Filter(lo.Values(r.store.jobs), func(j *v1.Job, _ int) bool {
		if query.UserID != "" && j.UserID != query.UserID {
			return false
		}
		if query.DeviceID != "" && (j.Device == nil || j.Device.ID != query.DeviceID) {
			return false
		}
		if query.ProviderID != "" && (j.Device == nil || j.Device.ProviderID != query.ProviderID) {
			return false
		}
		if len(query.Statuses) > 0 && !lo.Contains(query.Statuses, j.Status) {
			return false
		}
		if !query.SubmittedAfter.IsZero() && j.SubmittedAt.Before(query.SubmittedAfter) {
			return false
		}
		if !query.SubmittedBefore.IsZero() && j.SubmittedAt.After(query.SubmittedBefore) {
			return false
		}
		return true
	})
	sort.Slice(out, func(i, k int) bool { return out[i].SubmittedAt.After(out[k].SubmittedAt) })
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (r *memoryJobs) Delete(_ context.Context, id string) error {
	defer r.lock()()
	if _, ok := r.store.jobs[id]; !ok {
		return qerrors.New(qerrors.KindNotFound, "job %q not found", id)
	}
	delete(r.store.jobs, id)
	return nil
}

type memoryCircuits struct {
	store   *MemoryStore
	locking bool
}

func (r *memoryCircuits) lock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memoryCircuits) rlock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.RLock()
	return r.store.mu.RUnlock
}

func (r *memoryCircuits) Save(_ context.Context, c *circuit.Circuit) error {
	if c == nil || c.ID == "" {
		return qerrors.New(qerrors.KindPersistenceFailure, "circuit must have an id")
	}
	defer r.lock()()
	r.store.circuits[c.ID] = c
	return nil
}

func (r *memoryCircuits) FindByID(_ context.Context, id string) (*circuit.Circuit, error) {
	defer r.rlock()()
	c, ok := r.store.circuits[id]
	if !ok {
		return nil, qerrors.New(qerrors.KindNotFound, "circuit %q not found", id)
	}
	return c, nil
}

func (r *memoryCircuits) FindByQuery(_ context.Context, query CircuitQuery) ([]*circuit.Circuit, error) {
	defer r.rlock()()
	out := lo.Filter(lo.Values(r.store.circuits), func(c *circuit.Circuit, _ int) bool {
		if query.Author != "" && c.Author != query.Author {
			return false
		}
		if query.Tag != "" && !lo.Contains(c.Tags, query.Tag) {
			return false
		}
		if query.Name != "" && !strings.Contains(c.Name, query.Name) {
			return false
		}
		return true
	})
	sort.Slice(out, func(i, k int) bool { return out[i].Modified.After(out[k].Modified) })
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (r *memoryCircuits) Delete(_ context.Context, id string) error {
	defer r.lock()()
	if _, ok := r.store.circuits[id]; !ok {
		return qerrors.New(qerrors.KindNotFound, "circuit %q not found", id)
	}
	delete(r.store.circuits, id)
	return nil
}

type memoryDevices struct {
	store   *MemoryStore
	locking bool
}

func (r *memoryDevices) lock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memoryDevices) rlock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.RLock()
	return r.store.mu.RUnlock
}

func (r *memoryDevices) Save(_ context.Context, d *v1.Device) error {
	if d == nil || d.ID == "" {
		return qerrors.New(qerrors.KindPersistenceFailure, "device must have an id")
	}
	defer r.lock()()
	r.store.devices[d.ID] = d
	return nil
}

func (r *memoryDevices) FindByID(_ context.Context, id string) (*v1.Device, error) {
	defer r.rlock()()
	d, ok := r.store.devices[id]
	if !ok {
		return nil, qerrors.New(qerrors.KindNotFound, "device %q not found", id)
	}
	return d, nil
}

func (r *memoryDevices) FindByQuery(_ context.Context, query DeviceQuery) ([]*v1.Device, error) {
	defer r.rlock()()
	out := lo.Filter(lo.Values(r.store.devices), func(d *v1.Device, _ int) bool {
		if query.ProviderID != "" && d.ProviderID != query.ProviderID {
			return false
		}
		if query.Status != "" && d.Status != query.Status {
			return false
		}
		if query.Type != "" && d.Type != query.Type {
			return false
		}
		if query.MinQubits > 0 && d.QubitCount() < query.MinQubits {
			return false
		}
		return true
	})
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (r *memoryDevices) Delete(_ context.Context, id string) error {
	defer r.lock()()
	if _, ok := r.store.devices[id]; !ok {
		return qerrors.New(qerrors.KindNotFound, "device %q not found", id)
	}
	delete(r.store.devices, id)
	return nil
}

type memoryUsers struct {
	store   *MemoryStore
	locking bool
}

func (r *memoryUsers) lock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memoryUsers) rlock() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.RLock()
	return r.store.mu.RUnlock
}

func (r *memoryUsers) Save(_ context.Context, u *v1.User) error {
	if u == nil || u.ID == "" {
		return qerrors.New(qerrors.KindPersistenceFailure, "user must have an id")
	}
	defer r.lock()()
	r.store.users[u.ID] = u
	return nil
}

func (r *memoryUsers) FindByID(_ context.Context, id string) (*v1.User, error) {
	defer r.rlock()()
	u, ok := r.store.users[id]
	if !ok {
		return nil, qerrors.New(qerrors.KindNotFound, "user %q not found", id)
	}
	return u, nil
}

func (r *memoryUsers) FindByQuery(_ context.Context, query UserQuery) ([]*v1.User, error) {
	defer r.rlock()()
	out := lo.Filter(lo.Values(r.store.users), func(u *v1.User, _ int) bool {
		return query.Email == "" || u.Email == query.Email
	})
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (r *memoryUsers) Delete(_ context.Context, id string) error {
	defer r.lock()()
	if _, ok := r.store.users[id]; !ok {
		return qerrors.New(qerrors.KindNotFound, "user %q not found", id)
	}
	delete(r.store.users, id)
	return nil
}
