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
	"time"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"k8s.io/utils/clock"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	"github.com/amirewontmiss/eigenos/pkg/logging"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
)

const (
	DefaultJobRetention     = 30 * 24 * time.Hour
	DefaultCircuitRetention = 90 * 24 * time.Hour
	DefaultSweepInterval    = 12 * time.Hour

	// TemplateTag marks circuits exempt from retention.
	TemplateTag = "template"
)

// Sweeper deletes aged-out records on an interval. Only terminal jobs are
// swept; circuits survive while any retained job still references them.
type Sweeper struct {
	store Store
	log   *logging.Logger
	clock clock.Clock

	JobRetention     time.Duration
	CircuitRetention time.Duration
	Interval         time.Duration
}

func NewSweeper(store Store, log *logging.Logger, clk clock.Clock) *Sweeper {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Sweeper{
		store:            store,
		log:              log.Named("retention"),
		clock:            clk,
		JobRetention:     DefaultJobRetention,
		CircuitRetention: DefaultCircuitRetention,
		Interval:         DefaultSweepInterval,
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Warn().Err(err).Msg("retention sweep incomplete")
			}
		}
	}
}

// Sweep performs one pass and returns the accumulated deletion errors.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.clock.Now()
	repos := s.store.Repositories()

	var errs error
	sweptJobs := 0
	jobs, err := repos.Jobs.FindByQuery(ctx, JobQuery{})
	if err != nil {
		return err
	}
	expired := lo.Filter(jobs, func(j *v1.Job, _ int) bool {
		return j.Status.Terminal() && !j.CompletedAt.IsZero() && now.Sub(j.CompletedAt) > s.JobRetention
	})
	for _, j := range expired {
		if err := repos.Jobs.Delete(ctx, j.ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		sweptJobs++
	}

	// Recompute references after job deletion so circuits referenced only
	// by swept jobs become eligible in the same pass.
	jobs, err = repos.Jobs.FindByQuery(ctx, JobQuery{})
	if err != nil {
		return multierr.Append(errs, err)
	}
	referenced := lo.SliceToMap(
		lo.Filter(jobs, func(j *v1.Job, _ int) bool { return j.Circuit != nil }),
		func(j *v1.Job) (string, struct{}) { return j.Circuit.ID, struct{}{} },
	)

	sweptCircuits := 0
	circuits, err := repos.Circuits.FindByQuery(ctx, CircuitQuery{})
	if err != nil {
		return multierr.Append(errs, err)
	}
	stale := lo.Filter(circuits, func(c *circuit.Circuit, _ int) bool {
		if lo.Contains(c.Tags, TemplateTag) {
			return false
		}
		if _, used := referenced[c.ID]; used {
			return false
		}
		return now.Sub(c.Modified) > s.CircuitRetention
	})
	for _, c := range stale {
		if err := repos.Circuits.Delete(ctx, c.ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		sweptCircuits++
	}

	if sweptJobs > 0 || sweptCircuits > 0 {
		s.log.Info().Int("jobs", sweptJobs).Int("circuits", sweptCircuits).Msg("swept expired records")
	}
	return errs
}
