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

// Package pricing estimates what a job will cost on a device. Providers
// report a cost model per device; devices that report nothing fall back
// to a static price list by hardware type so that cost scoring still
// produces a useful ordering when pricing data is unavailable.
package pricing

import (
	"math"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
)

// initialCostModels is the static fallback price list. Values approximate
// public on-demand rates per hardware family and only need to be accurate
// relative to each other.
var initialCostModels = map[v1.DeviceType]v1.CostModel{
	v1.DeviceSimulator:       {CostPerShot: 0, CostPerSecond: 0, MinimumCost: 0, Currency: "USD"},
	v1.DeviceSuperconducting: {CostPerShot: 0.00035, CostPerSecond: 1.6, MinimumCost: 0.1, Currency: "USD"},
	v1.DeviceIonTrap:         {CostPerShot: 0.01, CostPerSecond: 0.5, MinimumCost: 0.3, Currency: "USD"},
	v1.DevicePhotonic:        {CostPerShot: 0.0005, CostPerSecond: 1.0, MinimumCost: 0.1, Currency: "USD"},
	v1.DeviceNeutralAtom:     {CostPerShot: 0.003, CostPerSecond: 0.8, MinimumCost: 0.2, Currency: "USD"},
	v1.DeviceTopological:     {CostPerShot: 0.01, CostPerSecond: 2.0, MinimumCost: 0.5, Currency: "USD"},
}

// Estimate is a priced-out job on one device.
type Estimate struct {
	Total    float64
	Currency string
	// Static is true when the device reported no cost model and the
	// fallback price list was used.
	Static bool
}

// ModelFor returns the device's cost model, falling back to the static
// list when the device reports none.
func ModelFor(device *v1.Device) (v1.CostModel, bool) {
	m := device.CostModel
	if m.CostPerShot > 0 || m.CostPerSecond > 0 || m.MinimumCost > 0 {
		return m, false
	}
	if fallback, ok := initialCostModels[device.Type]; ok {
		return fallback, true
	}
	return initialCostModels[v1.DeviceSuperconducting], true
}

// EstimateCost prices shots plus predicted execution time, floored at the
// model's minimum.
func EstimateCost(device *v1.Device, shots int, estimatedExecutionMs float64) Estimate {
	model, static := ModelFor(device)
	total := float64(shots)*model.CostPerShot + estimatedExecutionMs/1000*model.CostPerSecond
	total = math.Max(total, model.MinimumCost)
	currency := model.Currency
	if currency == "" {
		currency = "USD"
	}
	return Estimate{Total: total, Currency: currency, Static: static}
}

// CostScore maps an estimate onto [0,1] against the user's budget. Free
// execution scores 1; anything at or beyond budget scores 0.
func CostScore(estimate Estimate, budget float64) float64 {
	if budget <= 0 {
		budget = v1.DefaultMaxCostPerJob
	}
	return math.Max(0, 1-estimate.Total/budget)
}
