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

package gate_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
)

func TestStandardGatesAreUnitary(t *testing.T) {
	gates := []gate.Gate{
		gate.H(0), gate.X(0), gate.Y(0), gate.Z(0),
		gate.S(0), gate.Sdg(0), gate.T(0), gate.Tdg(0),
		gate.RX(0, 0.3), gate.RY(0, 1.1), gate.RZ(0, math.Pi/7),
		gate.CNOT(0, 1), gate.CZ(0, 1), gate.SWAP(0, 1),
		gate.Toffoli(0, 1, 2),
	}
	for _, g := range gates {
		assert.NoError(t, g.Validate(), g.Name)
	}
}

func TestValidateRejectsDuplicateQubits(t *testing.T) {
	g := gate.CNOT(2, 2)
	assert.Error(t, g.Validate())
}

func TestByName(t *testing.T) {
	g, ok := gate.ByName("H", []int{3}, nil)
	require.True(t, ok)
	assert.Equal(t, "H", g.Name)
	assert.Equal(t, []int{3}, g.Qubits)

	g, ok = gate.ByName("RZ", []int{1}, []float64{math.Pi / 2})
	require.True(t, ok)
	assert.Equal(t, []float64{math.Pi / 2}, g.Params)

	_, ok = gate.ByName("FREDKIN", []int{0, 1, 2}, nil)
	assert.False(t, ok)
}

func TestInverseOf(t *testing.T) {
	assert.True(t, gate.H(0).InverseOf(gate.H(0)))
	assert.True(t, gate.S(1).InverseOf(gate.Sdg(1)))
	assert.True(t, gate.T(2).InverseOf(gate.Tdg(2)))
	assert.True(t, gate.CNOT(0, 1).InverseOf(gate.CNOT(0, 1)))
	assert.False(t, gate.H(0).InverseOf(gate.H(1)))
	assert.False(t, gate.S(0).InverseOf(gate.S(0)))
}

func TestRotationInverseCancels(t *testing.T) {
	g := gate.RX(0, 0.7)
	inv := g.Inverse()
	assert.True(t, g.ParamsCancel(inv))
	assert.True(t, g.InverseOf(inv))
}

func TestCommute(t *testing.T) {
	// Disjoint qubits always commute.
	assert.True(t, gate.Commute(gate.H(0), gate.X(1)))
	// Diagonal gates on the same qubit commute.
	assert.True(t, gate.Commute(gate.Z(0), gate.S(0)))
	assert.True(t, gate.Commute(gate.RZ(0, 0.2), gate.T(0)))
	// H and X on the same qubit do not.
	assert.False(t, gate.Commute(gate.H(0), gate.X(0)))
}

func TestRemap(t *testing.T) {
	g := gate.CNOT(0, 1).Remap(func(q int) int { return q + 2 })
	assert.Equal(t, []int{2, 3}, g.Qubits)
}

func TestOverlapsQubits(t *testing.T) {
	assert.True(t, gate.CNOT(0, 1).OverlapsQubits(gate.H(1)))
	assert.False(t, gate.CNOT(0, 1).OverlapsQubits(gate.H(2)))
}
