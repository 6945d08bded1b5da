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

// Package gate models quantum gates as values: a symbolic name, an ordered
// qubit tuple, real parameters and the unitary matrix over 2^k dimensions.
package gate

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

// Gate is a value type; copying a Gate is safe and cheap apart from the
// shared (read-only) matrix backing array. Use Clone for a deep copy.
type Gate struct {
	Name   string
	Qubits []int
	Params []float64
	Matrix Matrix
}

// Validate checks the algebraic invariants: qubit arity matches the matrix
// dimension and the matrix is unitary within Tolerance.
func (g Gate) Validate() error {
	if len(g.Qubits) == 0 {
		return fmt.Errorf("gate %s has no target qubits", g.Name)
	}
	if want := 1 << len(g.Qubits); g.Matrix.Dim() != want {
		return fmt.Errorf("gate %s: matrix dimension %d does not match %d qubits", g.Name, g.Matrix.Dim(), len(g.Qubits))
	}
	if seen := lo.Uniq(g.Qubits); len(seen) != len(g.Qubits) {
		return fmt.Errorf("gate %s targets a qubit twice: %v", g.Name, g.Qubits)
	}
	if !g.Matrix.IsUnitary() {
		return fmt.Errorf("gate %s: matrix is not unitary", g.Name)
	}
	return nil
}

// Inverse returns the adjoint gate: conjugate-transposed matrix and negated
// parameters. The symbolic name is retained.
func (g Gate) Inverse() Gate {
	return Gate{
		Name:   g.Name,
		Qubits: append([]int(nil), g.Qubits...),
		Params: lo.Map(g.Params, func(p float64, _ int) float64 { return -p }),
		Matrix: g.Matrix.Dagger(),
	}
}

// Clone deep-copies the gate including its matrix.
func (g Gate) Clone() Gate {
	return Gate{
		Name:   g.Name,
		Qubits: append([]int(nil), g.Qubits...),
		Params: append([]float64(nil), g.Params...),
		Matrix: g.Matrix.Clone(),
	}
}

// Remap returns the gate retargeted onto new qubit indices. mapping is
// applied positionally to the qubit tuple; the matrix is unchanged.
func (g Gate) Remap(mapping func(int) int) Gate {
	out := g
	out.Qubits = lo.Map(g.Qubits, func(q int, _ int) int { return mapping(q) })
	out.Params = append([]float64(nil), g.Params...)
	return out
}

// OverlapsQubits reports whether the gate touches any qubit of other.
func (g Gate) OverlapsQubits(other Gate) bool {
	return len(lo.Intersect(g.Qubits, other.Qubits)) > 0
}

// IsRotation reports whether the gate is a single-axis rotation.
func (g Gate) IsRotation() bool {
	return g.Name == "RX" || g.Name == "RY" || g.Name == "RZ"
}

// IsTwoQubit reports whether the gate targets exactly two qubits.
func (g Gate) IsTwoQubit() bool { return len(g.Qubits) == 2 }

// ParamsCancel reports whether the parameter tuples of g and other sum to
// zero componentwise within Tolerance.
func (g Gate) ParamsCancel(other Gate) bool {
	if len(g.Params) != len(other.Params) {
		return false
	}
	for i := range g.Params {
		if math.Abs(g.Params[i]+other.Params[i]) > Tolerance {
			return false
		}
	}
	return true
}

// InverseOf reports whether other undoes g on the same qubit tuple. For
// parameterized gates the names must match and the parameters cancel
// componentwise; parameter-free gates compare matrices, which lets pairs
// like S/SDG cancel.
func (g Gate) InverseOf(other Gate) bool {
	if !equalIntSlices(g.Qubits, other.Qubits) {
		return false
	}
	if len(g.Params) > 0 || len(other.Params) > 0 {
		return g.Name == other.Name && g.ParamsCancel(other)
	}
	return g.Matrix.Mul(other.Matrix).Equals(Identity(g.Matrix.Dim()))
}

// Commute decides whether two gates commute: trivially when the qubit sets
// are disjoint, otherwise only when the sets coincide and AB = BA within
// Tolerance. Overlapping-but-unequal qubit sets are conservatively ordered.
func Commute(a, b Gate) bool {
	shared := lo.Intersect(a.Qubits, b.Qubits)
	if len(shared) == 0 {
		return true
	}
	if len(shared) != len(a.Qubits) || len(a.Qubits) != len(b.Qubits) {
		return false
	}
	// identical qubit sets; align b's matrix to a's tuple order
	bm := b.Matrix
	if !equalIntSlices(a.Qubits, b.Qubits) {
		bm = reorderToTuple(b, a.Qubits)
		if bm == nil {
			return false
		}
	}
	return a.Matrix.Mul(bm).Equals(bm.Mul(a.Matrix))
}

// reorderToTuple rewrites b's matrix so its qubit tuple reads as target.
// Returns nil when target is not a permutation of b's qubits.
func reorderToTuple(b Gate, target []int) Matrix {
	k := len(b.Qubits)
	perm := make([]int, k) // position in b's tuple for each target position
	for i, q := range target {
		idx := lo.IndexOf(b.Qubits, q)
		if idx < 0 {
			return nil
		}
		perm[i] = idx
	}
	dim := 1 << k
	out := NewMatrix(dim)
	remap := func(idx int) int {
		r := 0
		for pos := 0; pos < k; pos++ {
			bit := (idx >> (k - 1 - perm[pos])) & 1
			r |= bit << (k - 1 - pos)
		}
		return r
	}
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			out[remap(i)][remap(j)] = b.Matrix[i][j]
		}
	}
	return out
}

func equalIntSlices(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
