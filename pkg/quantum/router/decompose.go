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

package router

import (
	"math"

	"github.com/samber/lo"

	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
)

// rewriteRules maps a gate name to its expansion over the RX/RZ/CNOT family.
// Expansions are in circuit order (first gate applied first) and equal the
// original gate up to global phase.
var rewriteRules = map[string]func(g gate.Gate) []gate.Gate{
	"X": func(g gate.Gate) []gate.Gate {
		return []gate.Gate{gate.RX(g.Qubits[0], math.Pi)}
	},
	"Y": func(g gate.Gate) []gate.Gate {
		return []gate.Gate{gate.RX(g.Qubits[0], math.Pi), gate.RZ(g.Qubits[0], math.Pi)}
	},
	"Z": func(g gate.Gate) []gate.Gate {
		return []gate.Gate{gate.RZ(g.Qubits[0], math.Pi)}
	},
	"S": func(g gate.Gate) []gate.Gate {
		return []gate.Gate{gate.RZ(g.Qubits[0], math.Pi/2)}
	},
	"SDG": func(g gate.Gate) []gate.Gate {
		return []gate.Gate{gate.RZ(g.Qubits[0], -math.Pi/2)}
	},
	"T": func(g gate.Gate) []gate.Gate {
		return []gate.Gate{gate.RZ(g.Qubits[0], math.Pi/4)}
	},
	"TDG": func(g gate.Gate) []gate.Gate {
		return []gate.Gate{gate.RZ(g.Qubits[0], -math.Pi/4)}
	},
	"H": func(g gate.Gate) []gate.Gate {
		q := g.Qubits[0]
		return []gate.Gate{gate.RZ(q, math.Pi/2), gate.RX(q, math.Pi/2), gate.RZ(q, math.Pi/2)}
	},
	"RY": func(g gate.Gate) []gate.Gate {
		q := g.Qubits[0]
		return []gate.Gate{gate.RZ(q, -math.Pi/2), gate.RX(q, g.Params[0]), gate.RZ(q, math.Pi/2)}
	},
	"SWAP": func(g gate.Gate) []gate.Gate {
		a, b := g.Qubits[0], g.Qubits[1]
		return []gate.Gate{gate.CNOT(a, b), gate.CNOT(b, a), gate.CNOT(a, b)}
	},
	"CZ": func(g gate.Gate) []gate.Gate {
		c, t := g.Qubits[0], g.Qubits[1]
		return []gate.Gate{gate.H(t), gate.CNOT(c, t), gate.H(t)}
	},
}

// decomposeToBasis rewrites gates outside the basis set using the fixed
// rule table, recursing until every gate is in the basis or no rule applies.
// Gates already in the basis are preserved; gates without a rule pass
// through untouched (eligibility filtering rejects them upstream).
func decomposeToBasis(gates []gate.Gate, basis []string) []gate.Gate {
	if len(basis) == 0 {
		return gates
	}
	inBasis := func(name string) bool { return lo.Contains(basis, name) }
	out := make([]gate.Gate, 0, len(gates))
	for _, g := range gates {
		out = append(out, decomposeGate(g, inBasis, 0)...)
	}
	return out
}

func decomposeGate(g gate.Gate, inBasis func(string) bool, depth int) []gate.Gate {
	// rule tables can loop (CZ <-> CNOT via H); cap the recursion
	if inBasis(g.Name) || depth > 4 {
		return []gate.Gate{g}
	}
	rule, ok := rewriteRules[g.Name]
	if !ok {
		return []gate.Gate{g}
	}
	var out []gate.Gate
	for _, sub := range rule(g) {
		out = append(out, decomposeGate(sub, inBasis, depth+1)...)
	}
	return out
}
