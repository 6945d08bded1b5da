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

// Package circuit holds the in-memory circuit model: an immutable qubit
// count, an append-only gate sequence, measurements and metadata. Depth is
// derived by layer scheduling; structural operations (Slice, Reverse, Copy,
// Compose, Power) are functional and never mutate the receiver.
package circuit

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
)

// Measurement maps a qubit index onto a classical bit index.
type Measurement struct {
	Qubit int
	Clbit int
}

// Metadata carries descriptive fields; it never affects semantics.
type Metadata struct {
	Name        string
	Author      string
	Description string
	Tags        []string
	Created     time.Time
	Modified    time.Time
}

type Circuit struct {
	ID string
	Metadata

	qubits       int
	gates        []gate.Gate
	measurements []Measurement
}

// New creates an empty circuit on n qubits.
func New(n int) (*Circuit, error) {
	if n <= 0 {
		return nil, qerrors.New(qerrors.KindInvalidCircuit, "qubit count must be positive, got %d", n)
	}
	now := time.Now()
	return &Circuit{
		ID:       uuid.NewString(),
		Metadata: Metadata{Created: now, Modified: now},
		qubits:   n,
	}, nil
}

// MustNew is New for statically valid qubit counts; it panics otherwise.
// Intended for tests and examples.
func MustNew(n int) *Circuit {
	c, err := New(n)
	if err != nil {
		panic(err)
	}
	return c
}

// Append validates g against the circuit and adds it to the gate sequence.
func (c *Circuit) Append(gs ...gate.Gate) error {
	for _, g := range gs {
		if err := g.Validate(); err != nil {
			return qerrors.Wrap(qerrors.KindInvalidCircuit, err)
		}
		for _, q := range g.Qubits {
			if q < 0 || q >= c.qubits {
				return qerrors.New(qerrors.KindInvalidCircuit, "gate %s qubit %d out of range [0,%d)", g.Name, q, c.qubits)
			}
		}
	}
	for _, g := range gs {
		c.gates = append(c.gates, g.Clone())
	}
	c.Modified = time.Now()
	return nil
}

// Measure records a measurement of qubit q into classical bit clbit.
func (c *Circuit) Measure(q, clbit int) error {
	if q < 0 || q >= c.qubits {
		return qerrors.New(qerrors.KindInvalidCircuit, "measurement qubit %d out of range [0,%d)", q, c.qubits)
	}
	if clbit < 0 {
		return qerrors.New(qerrors.KindInvalidCircuit, "classical bit index must be non-negative, got %d", clbit)
	}
	c.measurements = append(c.measurements, Measurement{Qubit: q, Clbit: clbit})
	c.Modified = time.Now()
	return nil
}

// MeasureAll measures qubit i into classical bit i for every qubit.
func (c *Circuit) MeasureAll() {
	for q := 0; q < c.qubits; q++ {
		c.measurements = append(c.measurements, Measurement{Qubit: q, Clbit: q})
	}
	c.Modified = time.Now()
}

func (c *Circuit) Qubits() int    { return c.qubits }
func (c *Circuit) GateCount() int { return len(c.gates) }

// Gates returns a copy of the gate sequence.
func (c *Circuit) Gates() []gate.Gate {
	return lo.Map(c.gates, func(g gate.Gate, _ int) gate.Gate { return g.Clone() })
}

// Gate returns the i-th gate without copying; callers must not mutate it.
func (c *Circuit) Gate(i int) gate.Gate { return c.gates[i] }

// Measurements returns a copy of the measurement list.
func (c *Circuit) Measurements() []Measurement {
	return append([]Measurement(nil), c.measurements...)
}

// ClassicalBits is the highest classical bit index ever written plus one.
func (c *Circuit) ClassicalBits() int {
	max := -1
	for _, m := range c.measurements {
		if m.Clbit > max {
			max = m.Clbit
		}
	}
	return max + 1
}

// Depth is the longest chain of gates under layer scheduling: each gate sits
// one layer above the deepest layer already occupying any of its qubits.
func (c *Circuit) Depth() int {
	layer := make([]int, c.qubits)
	depth := 0
	for _, g := range c.gates {
		l := 0
		for _, q := range g.Qubits {
			if layer[q] > l {
				l = layer[q]
			}
		}
		l++
		for _, q := range g.Qubits {
			layer[q] = l
		}
		if l > depth {
			depth = l
		}
	}
	return depth
}

// TwoQubitGateCount counts gates acting on exactly two qubits.
func (c *Circuit) TwoQubitGateCount() int {
	return lo.CountBy(c.gates, func(g gate.Gate) bool { return g.IsTwoQubit() })
}

// GateNames returns the distinct gate names appearing in the circuit.
func (c *Circuit) GateNames() []string {
	return lo.Uniq(lo.Map(c.gates, func(g gate.Gate, _ int) string { return g.Name }))
}

// Copy returns a value-equal deep copy with a fresh identity.
func (c *Circuit) Copy() *Circuit {
	out := &Circuit{
		ID:           uuid.NewString(),
		Metadata:     c.Metadata,
		qubits:       c.qubits,
		gates:        lo.Map(c.gates, func(g gate.Gate, _ int) gate.Gate { return g.Clone() }),
		measurements: append([]Measurement(nil), c.measurements...),
	}
	out.Tags = append([]string(nil), c.Tags...)
	return out
}

// Slice returns a copy holding gates[from:to); measurements are dropped.
func (c *Circuit) Slice(from, to int) (*Circuit, error) {
	if from < 0 || to > len(c.gates) || from > to {
		return nil, qerrors.New(qerrors.KindInvalidCircuit, "slice bounds [%d,%d) out of range for %d gates", from, to, len(c.gates))
	}
	out := c.Copy()
	out.gates = lo.Map(c.gates[from:to], func(g gate.Gate, _ int) gate.Gate { return g.Clone() })
	out.measurements = nil
	return out, nil
}

// Reverse returns the adjoint circuit: gates in reverse order, each
// inverted. Reverse(Reverse(c)) equals c up to global phase.
func (c *Circuit) Reverse() *Circuit {
	out := c.Copy()
	out.gates = nil
	for i := len(c.gates) - 1; i >= 0; i-- {
		out.gates = append(out.gates, c.gates[i].Inverse())
	}
	return out
}

// Compose appends other's gates and measurements; qubit counts must match.
func (c *Circuit) Compose(other *Circuit) (*Circuit, error) {
	if other.qubits != c.qubits {
		return nil, qerrors.New(qerrors.KindInvalidCircuit, "cannot compose circuits with %d and %d qubits", c.qubits, other.qubits)
	}
	out := c.Copy()
	out.gates = append(out.gates, lo.Map(other.gates, func(g gate.Gate, _ int) gate.Gate { return g.Clone() })...)
	out.measurements = append(out.measurements, other.measurements...)
	out.Modified = time.Now()
	return out, nil
}

// Power returns the circuit repeated k times, k >= 0. Power(0) is empty.
func (c *Circuit) Power(k int) (*Circuit, error) {
	if k < 0 {
		return nil, qerrors.New(qerrors.KindInvalidCircuit, "power exponent must be non-negative, got %d", k)
	}
	out := c.Copy()
	out.gates = nil
	out.measurements = nil
	for i := 0; i < k; i++ {
		for _, g := range c.gates {
			out.gates = append(out.gates, g.Clone())
		}
	}
	return out, nil
}

// Unitary builds the full 2^n x 2^n operator of the gate sequence,
// ignoring measurements. Intended for verification on small circuits.
func (c *Circuit) Unitary() gate.Matrix {
	u := gate.Identity(1 << c.qubits)
	for _, g := range c.gates {
		u = gate.Expand(g.Matrix, g.Qubits, c.qubits).Mul(u)
	}
	return u
}

// Validate re-checks every invariant over the whole circuit.
func (c *Circuit) Validate() error {
	if c.qubits <= 0 {
		return qerrors.New(qerrors.KindInvalidCircuit, "qubit count must be positive, got %d", c.qubits)
	}
	for _, g := range c.gates {
		if err := g.Validate(); err != nil {
			return qerrors.Wrap(qerrors.KindInvalidCircuit, err)
		}
		for _, q := range g.Qubits {
			if q < 0 || q >= c.qubits {
				return qerrors.New(qerrors.KindInvalidCircuit, "gate %s qubit %d out of range [0,%d)", g.Name, q, c.qubits)
			}
		}
	}
	for _, m := range c.measurements {
		if m.Qubit < 0 || m.Qubit >= c.qubits {
			return qerrors.New(qerrors.KindInvalidCircuit, "measurement qubit %d out of range [0,%d)", m.Qubit, c.qubits)
		}
		if m.Clbit < 0 {
			return qerrors.New(qerrors.KindInvalidCircuit, "classical bit index must be non-negative, got %d", m.Clbit)
		}
	}
	return nil
}

// Rebuild constructs a circuit on the same qubit count from a replacement
// gate sequence, carrying over metadata and measurements. Used by rewrite
// passes that produce a new sequence wholesale.
func (c *Circuit) Rebuild(gates []gate.Gate) *Circuit {
	out := c.Copy()
	out.gates = lo.Map(gates, func(g gate.Gate, _ int) gate.Gate { return g.Clone() })
	return out
}
