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

package qasm_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
	"github.com/amirewontmiss/eigenos/pkg/quantum/qasm"
)

func TestEmitBell(t *testing.T) {
	c := circuit.MustNew(2)
	require.NoError(t, c.Append(gate.H(0), gate.CNOT(0, 1)))
	c.MeasureAll()

	src, err := qasm.Emit(c)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(src, qasm.Header))
	assert.Contains(t, src, "qreg q[2];")
	assert.Contains(t, src, "creg c[2];")
	assert.Contains(t, src, "h q[0];")
	assert.Contains(t, src, "cx q[0],q[1];")
	assert.Contains(t, src, "measure q[0] -> c[0];")
}

func TestRoundTrip(t *testing.T) {
	c := circuit.MustNew(3)
	require.NoError(t, c.Append(
		gate.H(0),
		gate.RZ(1, math.Pi/3),
		gate.CNOT(0, 1),
		gate.Toffoli(0, 1, 2),
		gate.Sdg(2),
	))
	require.NoError(t, c.Measure(2, 0))

	src, err := qasm.Emit(c)
	require.NoError(t, err)
	back, err := qasm.Parse(src)
	require.NoError(t, err)

	require.Equal(t, c.Qubits(), back.Qubits())
	require.Equal(t, c.GateCount(), back.GateCount())
	for i, g := range c.Gates() {
		got := back.Gate(i)
		assert.Equal(t, g.Name, got.Name)
		assert.Equal(t, g.Qubits, got.Qubits)
		if len(g.Params) > 0 {
			assert.InDelta(t, g.Params[0], got.Params[0], 1e-15)
		}
	}
	assert.Equal(t, c.Measurements(), back.Measurements())
}

func TestParseSkipsCommentsAndBlankLines(t *testing.T) {
	src := `OPENQASM 2.0;
include "qelib1.inc";

// entangler
qreg q[2];
creg c[2];
h q[0];
cx q[0],q[1];
measure q[0] -> c[0];
measure q[1] -> c[1];
`
	c, err := qasm.Parse(src)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Qubits())
	assert.Equal(t, 2, c.GateCount())
	assert.Len(t, c.Measurements(), 2)
}

func TestParseErrors(t *testing.T) {
	_, err := qasm.Parse("h q[0];")
	assert.True(t, qerrors.IsInvalidCircuit(err))

	_, err = qasm.Parse("qreg q[1];\nu3(0.1,0.2,0.3) q[0];")
	assert.True(t, qerrors.IsInvalidCircuit(err))

	_, err = qasm.Parse("qreg q[1];\nrx(nope) q[0];")
	assert.True(t, qerrors.IsInvalidCircuit(err))

	_, err = qasm.Parse("")
	assert.Error(t, err)
}
