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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	"github.com/amirewontmiss/eigenos/pkg/logging"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/repository"
)

func TestSweepDeletesExpiredTerminalJobs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	clk := clocktesting.NewFakeClock(now)
	store := repository.NewMemoryStore()
	jobs := store.Repositories().Jobs

	old := now.Add(-repository.DefaultJobRetention - time.Hour)
	require.NoError(t, jobs.Save(ctx, &v1.Job{ID: "expired", Status: v1.JobCompleted, CompletedAt: old}))
	require.NoError(t, jobs.Save(ctx, &v1.Job{ID: "fresh", Status: v1.JobCompleted, CompletedAt: now.Add(-time.Hour)}))
	require.NoError(t, jobs.Save(ctx, &v1.Job{ID: "running", Status: v1.JobRunning}))

	sweeper := repository.NewSweeper(store, logging.NewTest(), clk)
	require.NoError(t, sweeper.Sweep(ctx))

	_, err := jobs.FindByID(ctx, "expired")
	assert.Error(t, err)
	_, err = jobs.FindByID(ctx, "fresh")
	assert.NoError(t, err)
	_, err = jobs.FindByID(ctx, "running")
	assert.NoError(t, err)
}

func TestSweepKeepsTemplatesAndReferencedCircuits(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	clk := clocktesting.NewFakeClock(now)
	store := repository.NewMemoryStore()
	repos := store.Repositories()

	old := now.Add(-repository.DefaultCircuitRetention - time.Hour)

	template := circuit.MustNew(2)
	template.Tags = []string{repository.TemplateTag}
	template.Modified = old
	require.NoError(t, repos.Circuits.Save(ctx, template))

	referenced := circuit.MustNew(2)
	referenced.Modified = old
	require.NoError(t, repos.Circuits.Save(ctx, referenced))
	require.NoError(t, repos.Jobs.Save(ctx, &v1.Job{ID: "j", Status: v1.JobRunning, Circuit: referenced}))

	stale := circuit.MustNew(2)
	stale.Modified = old
	require.NoError(t, repos.Circuits.Save(ctx, stale))

	sweeper := repository.NewSweeper(store, logging.NewTest(), clk)
	require.NoError(t, sweeper.Sweep(ctx))

	_, err := repos.Circuits.FindByID(ctx, template.ID)
	assert.NoError(t, err)
	_, err = repos.Circuits.FindByID(ctx, referenced.ID)
	assert.NoError(t, err)
	_, err = repos.Circuits.FindByID(ctx, stale.ID)
	assert.Error(t, err)
}

func TestSweepFreesCircuitsOfSweptJobsInOnePass(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	clk := clocktesting.NewFakeClock(now)
	store := repository.NewMemoryStore()
	repos := store.Repositories()

	c := circuit.MustNew(2)
	c.Modified = now.Add(-repository.DefaultCircuitRetention - time.Hour)
	require.NoError(t, repos.Circuits.Save(ctx, c))
	require.NoError(t, repos.Jobs.Save(ctx, &v1.Job{
		ID:          "done",
		Status:      v1.JobCompleted,
		Circuit:     c,
		CompletedAt: now.Add(-repository.DefaultJobRetention - time.Hour),
	}))

	sweeper := repository.NewSweeper(store, logging.NewTest(), clk)
	require.NoError(t, sweeper.Sweep(ctx))

	_, err := repos.Jobs.FindByID(ctx, "done")
	assert.Error(t, err)
	_, err = repos.Circuits.FindByID(ctx, c.ID)
	assert.Error(t, err)
}
