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

package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
	"github.com/amirewontmiss/eigenos/pkg/quantum/optimizer"
)

func TestOptimizeRejectsBadLevel(t *testing.T) {
	c := circuit.MustNew(1)
	for _, level := range []int{0, 4, -1} {
		_, err := optimizer.Optimize(c, level)
		assert.True(t, qerrors.IsInvalidCircuit(err), "level %d", level)
	}
}

func TestInverseCancellation(t *testing.T) {
	c := circuit.MustNew(2)
	require.NoError(t, c.Append(
		gate.H(0), gate.H(0),
		gate.CNOT(0, 1), gate.CNOT(0, 1),
		gate.S(1), gate.Sdg(1),
	))
	out, err := optimizer.Optimize(c, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, out.GateCount())
}

func TestRotationMerge(t *testing.T) {
	c := circuit.MustNew(1)
	require.NoError(t, c.Append(gate.RZ(0, 0.4), gate.RZ(0, 0.6)))
	out, err := optimizer.Optimize(c, 1)
	require.NoError(t, err)
	require.Equal(t, 1, out.GateCount())
	g := out.Gate(0)
	assert.Equal(t, "RZ", g.Name)
	assert.InDelta(t, 1.0, g.Params[0], 1e-12)
}

func TestRotationsSummingToZeroVanish(t *testing.T) {
	c := circuit.MustNew(1)
	require.NoError(t, c.Append(gate.RX(0, 0.9), gate.RX(0, -0.9)))
	out, err := optimizer.Optimize(c, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, out.GateCount())
}

func TestMergeSpansDisjointGates(t *testing.T) {
	// The H on qubit 1 does not break the RZ run on qubit 0.
	c := circuit.MustNew(2)
	require.NoError(t, c.Append(gate.RZ(0, 0.25), gate.H(1), gate.RZ(0, 0.75)))
	out, err := optimizer.Optimize(c, 1)
	require.NoError(t, err)
	require.Equal(t, 2, out.GateCount())
	rz, found := false, false
	for _, g := range out.Gates() {
		switch g.Name {
		case "RZ":
			rz = true
			assert.InDelta(t, 1.0, g.Params[0], 1e-12)
		case "H":
			found = true
		}
	}
	assert.True(t, rz)
	assert.True(t, found)
}

func TestCommutationReorderingEnablesCancellation(t *testing.T) {
	// X(1) sits between the two H(0); reordering lets them cancel at level 2.
	c := circuit.MustNew(2)
	require.NoError(t, c.Append(gate.H(0), gate.X(1), gate.H(0)))
	out, err := optimizer.Optimize(c, 2)
	require.NoError(t, err)
	require.Equal(t, 1, out.GateCount())
	assert.Equal(t, "X", out.Gate(0).Name)
}

func TestOptimizePreservesSemantics(t *testing.T) {
	c := circuit.MustNew(2)
	require.NoError(t, c.Append(
		gate.H(0), gate.T(0), gate.Tdg(0), gate.CNOT(0, 1), gate.RZ(1, 0.5),
	))
	out, err := optimizer.Optimize(c, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, out.GateCount(), c.GateCount())
	assert.True(t, out.Unitary().Equals(c.Unitary()))
}

func TestOptimizeEmptyCircuit(t *testing.T) {
	c := circuit.MustNew(4)
	out, err := optimizer.Optimize(c, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, out.GateCount())
	assert.Equal(t, 4, out.Qubits())
}
