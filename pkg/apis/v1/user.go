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

package v1

import "math"

// SchedulingWeights are the per-criterion weights of the scheduler's
// multi-criteria score. They must sum to 1.
type SchedulingWeights struct {
	Performance  float64
	Cost         float64
	Reliability  float64
	Availability float64
}

// DefaultSchedulingWeights returns the stock weighting.
func DefaultSchedulingWeights() SchedulingWeights {
	return SchedulingWeights{Performance: 0.3, Cost: 0.2, Reliability: 0.2, Availability: 0.3}
}

// Valid checks the weights sum to 1 within a small tolerance.
func (w SchedulingWeights) Valid() bool {
	return math.Abs(w.Performance+w.Cost+w.Reliability+w.Availability-1) < 1e-9
}

// DefaultMaxCostPerJob applies when a user sets no budget.
const DefaultMaxCostPerJob = 10.0

// User carries the scheduling-relevant preferences of a submitter.
type User struct {
	ID                 string
	Name               string
	Email              string
	MaxCostPerJob      float64
	MaxWaitTimeMs      float64
	PreferredProviders []string
	Weights            *SchedulingWeights
}

// CostBudget returns the user's per-job budget or the default.
func (u *User) CostBudget() float64 {
	if u == nil || u.MaxCostPerJob <= 0 {
		return DefaultMaxCostPerJob
	}
	return u.MaxCostPerJob
}

// SchedulingWeights returns the user's weights or the defaults when unset
// or invalid.
func (u *User) SchedulingWeights() SchedulingWeights {
	if u == nil || u.Weights == nil || !u.Weights.Valid() {
		return DefaultSchedulingWeights()
	}
	return *u.Weights
}
