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
	"math"
	"math/cmplx"
)

// Standard single- and multi-qubit gates. Basis ordering is big-endian:
// for a two-qubit gate on (q0, q1) the index is q0*2 + q1.

func H(q int) Gate {
	s := complex(1/math.Sqrt2, 0)
	return Gate{Name: "H", Qubits: []int{q}, Matrix: Matrix{
		{s, s},
		{s, -s},
	}}
}

func X(q int) Gate {
	return Gate{Name: "X", Qubits: []int{q}, Matrix: Matrix{
		{0, 1},
		{1, 0},
	}}
}

func Y(q int) Gate {
	return Gate{Name: "Y", Qubits: []int{q}, Matrix: Matrix{
		{0, -1i},
		{1i, 0},
	}}
}

func Z(q int) Gate {
	return Gate{Name: "Z", Qubits: []int{q}, Matrix: Matrix{
		{1, 0},
		{0, -1},
	}}
}

func S(q int) Gate {
	return Gate{Name: "S", Qubits: []int{q}, Matrix: Matrix{
		{1, 0},
		{0, 1i},
	}}
}

func Sdg(q int) Gate {
	return Gate{Name: "SDG", Qubits: []int{q}, Matrix: Matrix{
		{1, 0},
		{0, -1i},
	}}
}

func T(q int) Gate {
	return Gate{Name: "T", Qubits: []int{q}, Matrix: Matrix{
		{1, 0},
		{0, cmplx.Exp(1i * math.Pi / 4)},
	}}
}

func Tdg(q int) Gate {
	return Gate{Name: "TDG", Qubits: []int{q}, Matrix: Matrix{
		{1, 0},
		{0, cmplx.Exp(-1i * math.Pi / 4)},
	}}
}

func RX(q int, theta float64) Gate {
	c := complex(math.Cos(theta/2), 0)
	s := complex(0, -math.Sin(theta/2))
	return Gate{Name: "RX", Qubits: []int{q}, Params: []float64{theta}, Matrix: Matrix{
		{c, s},
		{s, c},
	}}
}

func RY(q int, theta float64) Gate {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return Gate{Name: "RY", Qubits: []int{q}, Params: []float64{theta}, Matrix: Matrix{
		{c, -s},
		{s, c},
	}}
}

func RZ(q int, theta float64) Gate {
	return Gate{Name: "RZ", Qubits: []int{q}, Params: []float64{theta}, Matrix: Matrix{
		{cmplx.Exp(complex(0, -theta/2)), 0},
		{0, cmplx.Exp(complex(0, theta/2))},
	}}
}

func CNOT(control, target int) Gate {
	return Gate{Name: "CNOT", Qubits: []int{control, target}, Matrix: Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 1},
		{0, 0, 1, 0},
	}}
}

func CZ(control, target int) Gate {
	return Gate{Name: "CZ", Qubits: []int{control, target}, Matrix: Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, -1},
	}}
}

func SWAP(a, b int) Gate {
	return Gate{Name: "SWAP", Qubits: []int{a, b}, Matrix: Matrix{
		{1, 0, 0, 0},
		{0, 0, 1, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 1},
	}}
}

func Toffoli(c1, c2, target int) Gate {
	m := Identity(8)
	m[6][6], m[7][7] = 0, 0
	m[6][7], m[7][6] = 1, 1
	return Gate{Name: "TOFFOLI", Qubits: []int{c1, c2, target}, Matrix: m}
}

// rotationBuilders maps rotation names to their constructors, used when
// rebuilding merged rotations and when parsing textual formats.
var rotationBuilders = map[string]func(int, float64) Gate{
	"RX": RX,
	"RY": RY,
	"RZ": RZ,
}

// Rotation builds the named axis rotation, or false for non-rotation names.
func Rotation(name string, q int, theta float64) (Gate, bool) {
	b, ok := rotationBuilders[name]
	if !ok {
		return Gate{}, false
	}
	return b(q, theta), true
}

// ByName constructs a standard gate from its symbolic name. Rotations take
// one parameter; all other supported gates take none.
func ByName(name string, qubits []int, params []float64) (Gate, bool) {
	if len(qubits) == 0 {
		return Gate{}, false
	}
	if len(params) == 1 && len(qubits) == 1 {
		if g, ok := Rotation(name, qubits[0], params[0]); ok {
			return g, true
		}
	}
	if len(params) != 0 {
		return Gate{}, false
	}
	switch name {
	case "H":
		return H(qubits[0]), true
	case "X":
		return X(qubits[0]), true
	case "Y":
		return Y(qubits[0]), true
	case "Z":
		return Z(qubits[0]), true
	case "S":
		return S(qubits[0]), true
	case "SDG":
		return Sdg(qubits[0]), true
	case "T":
		return T(qubits[0]), true
	case "TDG":
		return Tdg(qubits[0]), true
	case "CNOT":
		if len(qubits) == 2 {
			return CNOT(qubits[0], qubits[1]), true
		}
	case "CZ":
		if len(qubits) == 2 {
			return CZ(qubits[0], qubits[1]), true
		}
	case "SWAP":
		if len(qubits) == 2 {
			return SWAP(qubits[0], qubits[1]), true
		}
	case "TOFFOLI":
		if len(qubits) == 3 {
			return Toffoli(qubits[0], qubits[1], qubits[2]), true
		}
	}
	return Gate{}, false
}
