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

package predictor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	"github.com/amirewontmiss/eigenos/pkg/metrics"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
	"github.com/amirewontmiss/eigenos/pkg/quantum/topology"
	"github.com/amirewontmiss/eigenos/pkg/scheduler/predictor"
)

func TestClassifyEntanglingHeavy(t *testing.T) {
	c := circuit.MustNew(2)
	require.NoError(t, c.Append(gate.CNOT(0, 1), gate.H(0)))
	assert.Equal(t, predictor.ClassEntanglingHeavy, predictor.Classify(c))
}

func TestClassifyDeepCircuit(t *testing.T) {
	c := circuit.MustNew(1)
	for i := 0; i < 60; i++ {
		require.NoError(t, c.Append(gate.T(0)))
	}
	assert.Equal(t, predictor.ClassDeepCircuit, predictor.Classify(c))
}

func TestClassifyLargeCircuit(t *testing.T) {
	// Many gates spread wide enough to stay shallow and entangling-light.
	c := circuit.MustNew(110)
	for i := 0; i < 110; i++ {
		require.NoError(t, c.Append(gate.H(i)))
	}
	assert.Equal(t, predictor.ClassLargeCircuit, predictor.Classify(c))
}

func TestClassifyStandard(t *testing.T) {
	c := circuit.MustNew(2)
	require.NoError(t, c.Append(gate.H(0), gate.H(1), gate.T(0)))
	assert.Equal(t, predictor.ClassStandard, predictor.Classify(c))
	assert.Equal(t, predictor.ClassStandard, predictor.Classify(circuit.MustNew(1)))
}

func TestPredictMsColdStartHeuristic(t *testing.T) {
	c := circuit.MustNew(2)
	require.NoError(t, c.Append(gate.H(0), gate.CNOT(0, 1)))
	device := &v1.Device{ID: "dev", Topology: topology.Linear(4)}

	p := predictor.New(metrics.NewHistory())
	got := p.PredictMs(c, device)
	// 1000 base + 2 gates * 10 + depth 2 * 50 + (2/4)^2 * 500
	assert.InDelta(t, 1000+20+100+125, got, 1e-9)
}

func TestPredictMsUsesHistoryWhenPresent(t *testing.T) {
	c := circuit.MustNew(2)
	require.NoError(t, c.Append(gate.CNOT(0, 1)))
	device := &v1.Device{ID: "dev", Topology: topology.Linear(4)}

	history := metrics.NewHistory()
	for i := 0; i < 5; i++ {
		history.Add(metrics.ExecutionRecord{
			DeviceID:     "dev",
			CircuitClass: predictor.Classify(c),
			ExecutionMs:  2000,
		})
	}

	p := predictor.New(history)
	got := p.PredictMs(c, device)
	// Scaled by the complexity factor, so above the raw average but within
	// a modest multiple of it.
	assert.Greater(t, got, 2000.0)
	assert.Less(t, got, 4000.0)
}

func TestPredictMsIgnoresOtherDevicesHistory(t *testing.T) {
	c := circuit.MustNew(1)
	require.NoError(t, c.Append(gate.H(0)))
	device := &v1.Device{ID: "dev-a", Topology: topology.Linear(2)}

	history := metrics.NewHistory()
	history.Add(metrics.ExecutionRecord{DeviceID: "dev-b", CircuitClass: predictor.ClassStandard, ExecutionMs: 99999})

	p := predictor.New(history)
	heuristic := predictor.New(metrics.NewHistory()).PredictMs(c, device)
	assert.Equal(t, heuristic, p.PredictMs(c, device))
}
