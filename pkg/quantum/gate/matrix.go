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

package gate

import (
	"math/cmplx"
)

// Tolerance is the numerical tolerance for all matrix comparisons: unitarity
// checks, commutation checks and unitary-equivalence of rewritten circuits.
const Tolerance = 1e-10

// Matrix is a dense square complex matrix, row-major.
type Matrix [][]complex128

// NewMatrix allocates a zero dim x dim matrix.
func NewMatrix(dim int) Matrix {
	m := make(Matrix, dim)
	for i := range m {
		m[i] = make([]complex128, dim)
	}
	return m
}

// Identity returns the dim x dim identity.
func Identity(dim int) Matrix {
	m := NewMatrix(dim)
	for i := 0; i < dim; i++ {
		m[i][i] = 1
	}
	return m
}

// Dim returns the row count.
func (m Matrix) Dim() int { return len(m) }

// Mul returns m * n.
func (m Matrix) Mul(n Matrix) Matrix {
	dim := m.Dim()
	out := NewMatrix(dim)
	for i := 0; i < dim; i++ {
		for k := 0; k < dim; k++ {
			if m[i][k] == 0 {
				continue
			}
			for j := 0; j < dim; j++ {
				out[i][j] += m[i][k] * n[k][j]
			}
		}
	}
	return out
}

// Dagger returns the conjugate transpose.
func (m Matrix) Dagger() Matrix {
	dim := m.Dim()
	out := NewMatrix(dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			out[j][i] = cmplx.Conj(m[i][j])
		}
	}
	return out
}

// Equals compares entrywise within Tolerance.
func (m Matrix) Equals(n Matrix) bool {
	if m.Dim() != n.Dim() {
		return false
	}
	for i := range m {
		for j := range m[i] {
			if cmplx.Abs(m[i][j]-n[i][j]) > Tolerance {
				return false
			}
		}
	}
	return true
}

// EqualsUpToGlobalPhase compares m and n modulo a global phase factor.
func (m Matrix) EqualsUpToGlobalPhase(n Matrix) bool {
	if m.Dim() != n.Dim() {
		return false
	}
	// find the first entry large enough to fix the phase
	var phase complex128
	found := false
	for i := range m {
		for j := range m[i] {
			if cmplx.Abs(n[i][j]) > Tolerance {
				if cmplx.Abs(m[i][j]) <= Tolerance {
					return false
				}
				phase = m[i][j] / n[i][j]
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		return m.Equals(n)
	}
	if d := cmplx.Abs(phase) - 1; d > 1e-8 || d < -1e-8 {
		return false
	}
	scaled := NewMatrix(n.Dim())
	for i := range n {
		for j := range n[i] {
			scaled[i][j] = n[i][j] * phase
		}
	}
	return m.Equals(scaled)
}

// IsUnitary checks M * M† = I within Tolerance.
func (m Matrix) IsUnitary() bool {
	return m.Mul(m.Dagger()).Equals(Identity(m.Dim()))
}

// Clone deep-copies the matrix.
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for i := range m {
		out[i] = append([]complex128(nil), m[i]...)
	}
	return out
}

// Expand lifts a k-qubit operator acting on the given qubit tuple into the
// full 2^n space. Qubit 0 is the most significant bit of a basis index.
func Expand(m Matrix, qubits []int, n int) Matrix {
	dim := 1 << n
	out := NewMatrix(dim)
	k := len(qubits)
	for in := 0; in < dim; in++ {
		// extract the local index for this gate's qubits, in tuple order
		local := 0
		for pos, q := range qubits {
			bit := (in >> (n - 1 - q)) & 1
			local |= bit << (k - 1 - pos)
		}
		for lo := 0; lo < (1 << k); lo++ {
			amp := m[lo][local]
			if amp == 0 {
				continue
			}
			// write the output local bits back into the basis index
			outIdx := in
			for pos, q := range qubits {
				bit := (lo >> (k - 1 - pos)) & 1
				mask := 1 << (n - 1 - q)
				if bit == 1 {
					outIdx |= mask
				} else {
					outIdx &^= mask
				}
			}
			out[outIdx][in] += amp
		}
	}
	return out
}
