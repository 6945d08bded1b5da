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

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/repository"
)

func TestJobSaveFindDelete(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	jobs := store.Repositories().Jobs

	job := &v1.Job{ID: "j1", UserID: "u1", Status: v1.JobQueued, SubmittedAt: time.Now()}
	require.NoError(t, jobs.Save(ctx, job))

	got, err := jobs.FindByID(ctx, "j1")
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(job, got))

	require.NoError(t, jobs.Delete(ctx, "j1"))
	_, err = jobs.FindByID(ctx, "j1")
	assert.True(t, qerrors.IsNotFound(err))
	assert.True(t, qerrors.IsNotFound(jobs.Delete(ctx, "j1")))
}

func TestJobQueryFilters(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	jobs := store.Repositories().Jobs

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	device := &v1.Device{ID: "dev-1", ProviderID: "prov-1"}
	require.NoError(t, jobs.Save(ctx, &v1.Job{ID: "a", UserID: "u1", Device: device, Status: v1.JobCompleted, SubmittedAt: base}))
	require.NoError(t, jobs.Save(ctx, &v1.Job{ID: "b", UserID: "u1", Status: v1.JobFailed, SubmittedAt: base.Add(time.Hour)}))
	require.NoError(t, jobs.Save(ctx, &v1.Job{ID: "c", UserID: "u2", Status: v1.JobCompleted, SubmittedAt: base.Add(2 * time.Hour)}))

	byUser, err := jobs.FindByQuery(ctx, repository.JobQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)
	// Newest first.
	assert.Equal(t, "b", byUser[0].ID)

	byStatus, err := jobs.FindByQuery(ctx, repository.JobQuery{Statuses: []v1.JobStatus{v1.JobCompleted}})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	byDevice, err := jobs.FindByQuery(ctx, repository.JobQuery{DeviceID: "dev-1"})
	require.NoError(t, err)
	require.Len(t, byDevice, 1)
	assert.Equal(t, "a", byDevice[0].ID)

	windowed, err := jobs.FindByQuery(ctx, repository.JobQuery{SubmittedAfter: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, windowed, 2)

	limited, err := jobs.FindByQuery(ctx, repository.JobQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestCircuitQuery(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	circuits := store.Repositories().Circuits

	a := circuit.MustNew(2)
	a.Name = "bell"
	a.Author = "alice"
	a.Tags = []string{"template"}
	b := circuit.MustNew(3)
	b.Name = "ghz"
	b.Author = "bob"
	require.NoError(t, circuits.Save(ctx, a))
	require.NoError(t, circuits.Save(ctx, b))

	byAuthor, err := circuits.FindByQuery(ctx, repository.CircuitQuery{Author: "alice"})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, "bell", byAuthor[0].Name)

	byTag, err := circuits.FindByQuery(ctx, repository.CircuitQuery{Tag: "template"})
	require.NoError(t, err)
	assert.Len(t, byTag, 1)

	byName, err := circuits.FindByQuery(ctx, repository.CircuitQuery{Name: "ghz"})
	require.NoError(t, err)
	assert.Len(t, byName, 1)
}

func TestDeviceAndUserQueries(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	repos := store.Repositories()

	require.NoError(t, repos.Users.Save(ctx, &v1.User{ID: "u1", Email: "a@example.com"}))
	require.NoError(t, repos.Users.Save(ctx, &v1.User{ID: "u2", Email: "b@example.com"}))

	byEmail, err := repos.Users.FindByQuery(ctx, repository.UserQuery{Email: "a@example.com"})
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "u1", byEmail[0].ID)
}

func TestTransactRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Repositories().Jobs.Save(ctx, &v1.Job{ID: "keep"}))

	failure := qerrors.New(qerrors.KindPersistenceFailure, "boom")
	err := store.Transact(ctx, func(r repository.Repositories) error {
		require.NoError(t, r.Jobs.Save(ctx, &v1.Job{ID: "rollback-me"}))
		require.NoError(t, r.Jobs.Delete(ctx, "keep"))
		return failure
	})
	require.ErrorIs(t, err, failure)

	_, err = store.Repositories().Jobs.FindByID(ctx, "rollback-me")
	assert.True(t, qerrors.IsNotFound(err))
	_, err = store.Repositories().Jobs.FindByID(ctx, "keep")
	assert.NoError(t, err)
}

func TestTransactCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	err := store.Transact(ctx, func(r repository.Repositories) error {
		return r.Jobs.Save(ctx, &v1.Job{ID: "committed"})
	})
	require.NoError(t, err)

	_, err = store.Repositories().Jobs.FindByID(ctx, "committed")
	assert.NoError(t, err)
}
