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

package router_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
	"github.com/amirewontmiss/eigenos/pkg/quantum/router"
	"github.com/amirewontmiss/eigenos/pkg/quantum/topology"
)

// assertRouted checks that every two-qubit gate of the result respects the
// coupling map.
func assertRouted(t *testing.T, res *router.Result, topo *topology.Graph) {
	t.Helper()
	for _, g := range res.Circuit.Gates() {
		if !g.IsTwoQubit() {
			continue
		}
		assert.True(t, topo.IsConnected(g.Qubits[0], g.Qubits[1]),
			"gate %s %v violates coupling", g.Name, g.Qubits)
	}
}

func TestRouteRejectsTooSmallTopology(t *testing.T) {
	c := circuit.MustNew(3)
	_, err := router.Route(c, topology.Linear(2), router.Options{})
	assert.True(t, qerrors.IsUnroutableCircuit(err))
}

func TestRouteCompatibleCircuitNeedsNoSwaps(t *testing.T) {
	c := circuit.MustNew(3)
	require.NoError(t, c.Append(gate.H(0), gate.CNOT(0, 1), gate.CNOT(1, 2)))
	res, err := router.Route(c, topology.Linear(3), router.Options{Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, 0, res.SwapCount)
	assert.Equal(t, c.GateCount(), res.Circuit.GateCount())
	assertRouted(t, res, topology.Linear(3))
}

func TestRouteInsertsSwapsForDistantPair(t *testing.T) {
	topo := topology.Linear(4)
	c := circuit.MustNew(4)
	require.NoError(t, c.Append(gate.CNOT(0, 3)))
	res, err := router.Route(c, topo, router.Options{Seed: 7})
	require.NoError(t, err)
	assert.Greater(t, res.SwapCount, 0)
	assertRouted(t, res, topo)
}

func TestRouteLinearFiveQubitProgram(t *testing.T) {
	topo := topology.Linear(5)
	c := circuit.MustNew(5)
	require.NoError(t, c.Append(
		gate.H(0), gate.CNOT(0, 4), gate.CNOT(1, 3), gate.CNOT(2, 4),
	))

	// A single trial keeps the identity placement, so the router has to
	// move qubits 0 and 4 together instead of starting from a lucky map.
	res, err := router.Route(c, topo, router.Options{Trials: 1, Seed: 7})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.SwapCount, 2)
	// Every inserted SWAP accounts for exactly one extra gate.
	assert.Equal(t, c.GateCount()+res.SwapCount, res.Circuit.GateCount())
	assertRouted(t, res, topo)
}

func TestRouteOnFullyConnectedIsTrivial(t *testing.T) {
	topo := topology.FullyConnected(5)
	c := circuit.MustNew(5)
	require.NoError(t, c.Append(
		gate.CNOT(0, 4), gate.CNOT(1, 3), gate.CZ(2, 4),
	))
	res, err := router.Route(c, topo, router.Options{Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, 0, res.SwapCount)
	assertRouted(t, res, topo)
}

func TestRouteMappingsAreConsistent(t *testing.T) {
	topo := topology.Grid(2, 2)
	c := circuit.MustNew(4)
	require.NoError(t, c.Append(gate.CNOT(0, 3), gate.CNOT(1, 2)))
	c.MeasureAll()
	res, err := router.Route(c, topo, router.Options{Seed: 7})
	require.NoError(t, err)

	require.Len(t, res.InitialMapping, 4)
	require.Len(t, res.FinalMapping, 4)
	// Mappings are permutations of the physical qubits.
	seen := map[int]bool{}
	for _, p := range res.FinalMapping {
		assert.False(t, seen[p])
		seen[p] = true
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 4)
	}
	assertRouted(t, res, topo)
}

func TestRouteIsReproducibleWithSeed(t *testing.T) {
	topo := topology.Linear(5)
	c := circuit.MustNew(5)
	require.NoError(t, c.Append(gate.CNOT(0, 4), gate.CNOT(1, 3), gate.H(2), gate.CNOT(2, 0)))

	a, err := router.Route(c, topo, router.Options{Seed: 42})
	require.NoError(t, err)
	b, err := router.Route(c, topo, router.Options{Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, a.SwapCount, b.SwapCount)
	assert.Equal(t, a.InitialMapping, b.InitialMapping)
	assert.Equal(t, a.FinalMapping, b.FinalMapping)
}
