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

// Package predictor estimates how long a circuit will run on a device.
// Predictions prefer observed history for the same device and circuit
// class; a structural heuristic covers cold starts.
package predictor

import (
	"math"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	"github.com/amirewontmiss/eigenos/pkg/metrics"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
)

// Circuit classes, checked in order. A circuit belongs to the first class
// that matches.
const (
	ClassEntanglingHeavy = "entangling_heavy"
	ClassDeepCircuit     = "deep_circuit"
	ClassLargeCircuit    = "large_circuit"
	ClassStandard        = "standard"
)

// Classify buckets a circuit by its dominant structural trait.
func Classify(c *circuit.Circuit) string {
	if n := c.GateCount(); n > 0 && float64(c.TwoQubitGateCount())/float64(n) > 0.3 {
		return ClassEntanglingHeavy
	}
	if c.Depth() > 50 {
		return ClassDeepCircuit
	}
	if c.GateCount() > 100 {
		return ClassLargeCircuit
	}
	return ClassStandard
}

// Predictor resolves estimates against recorded execution history.
type Predictor struct {
	history *metrics.History
}

func New(history *metrics.History) *Predictor {
	return &Predictor{history: history}
}

// PredictMs estimates the execution time of the circuit on the device in
// milliseconds.
func (p *Predictor) PredictMs(c *circuit.Circuit, device *v1.Device) float64 {
	class := Classify(c)
	if p.history != nil {
		if avg, ok := p.history.AverageExecutionMs(device.ID, class); ok {
			return avg * complexityFactor(c)
		}
	}
	return heuristicMs(c, device)
}

// complexityFactor scales a historical average by how much bigger this
// circuit is than a typical member of its class.
func complexityFactor(c *circuit.Circuit) float64 {
	return 1 + math.Log(float64(c.GateCount())+1)/10 + math.Log(float64(c.Depth())+1)/10
}

// heuristicMs is the cold-start estimate: a fixed floor plus per-gate and
// per-layer charges, plus a quadratic penalty as the circuit approaches
// the device's full width.
func heuristicMs(c *circuit.Circuit, device *v1.Device) float64 {
	width := 1.0
	if dq := device.QubitCount(); dq > 0 {
		width = float64(c.Qubits()) / float64(dq)
	}
	return 1000 + float64(c.GateCount())*10 + float64(c.Depth())*50 + width*width*500
}
