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

// Package optimizer rewrites circuits without changing their unitary
// (up to global phase). Aggressiveness is selected by level 1..3.
package optimizer

import (
	"math"
	"sort"

	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
)

// DefaultMaxIterations caps the level-3 improvement loop.
const DefaultMaxIterations = 10

type Options struct {
	Level         int
	MaxIterations int
}

// Optimize runs the rewrite pipeline at the given level. The returned
// circuit is always a new value; the input is never mutated. For level >= 2
// the output gate count never exceeds the input gate count.
func Optimize(c *circuit.Circuit, level int) (*circuit.Circuit, error) {
	return OptimizeWithOptions(c, Options{Level: level, MaxIterations: DefaultMaxIterations})
}

func OptimizeWithOptions(c *circuit.Circuit, opts Options) (*circuit.Circuit, error) {
	if opts.Level < 1 || opts.Level > 3 {
		return nil, qerrors.New(qerrors.KindInvalidCircuit, "optimization level must be 1..3, got %d", opts.Level)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	gates := c.Gates()
	if len(gates) == 0 {
		return c.Copy(), nil
	}

	gates = runPasses(gates, opts.Level)
	if opts.Level >= 3 {
		for i := 1; i < opts.MaxIterations; i++ {
			next := runPasses(gates, opts.Level)
			if len(next) >= len(gates) {
				break
			}
			gates = next
		}
	}
	return c.Rebuild(gates), nil
}

func runPasses(gates []gate.Gate, level int) []gate.Gate {
	gates = removeIdentities(gates)
	gates = cancelInverses(gates)
	gates = mergeRotations(gates)
	if level >= 2 {
		gates = keepIfSmaller(gates, reorderByCommutation(gates))
		gates = simplifyCliffords(gates)
	}
	return gates
}

// keepIfSmaller guards the no-growth contract: a pass that did not shrink
// the sequence may still be applied when it preserves length, but a growing
// rewrite is discarded.
func keepIfSmaller(prev, next []gate.Gate) []gate.Gate {
	if len(next) > len(prev) {
		return prev
	}
	return next
}

// removeIdentities drops rotations whose angle is numerically zero.
func removeIdentities(gates []gate.Gate) []gate.Gate {
	out := gates[:0:0]
	for _, g := range gates {
		if g.IsRotation() && math.Abs(g.Params[0]) < gate.Tolerance {
			continue
		}
		out = append(out, g)
	}
	return out
}

// cancelInverses removes adjacent inverse pairs, looking through gates on
// disjoint qubits: the partner of a gate is the next gate sharing a qubit.
func cancelInverses(gates []gate.Gate) []gate.Gate {
	removed := make([]bool, len(gates))
	for i := range gates {
		if removed[i] {
			continue
		}
		for j := i + 1; j < len(gates); j++ {
			if removed[j] {
				continue
			}
			if !gates[i].OverlapsQubits(gates[j]) {
				continue
			}
			if gates[i].InverseOf(gates[j]) {
				removed[i], removed[j] = true, true
			}
			break
		}
	}
	out := gates[:0:0]
	for i, g := range gates {
		if !removed[i] {
			out = append(out, g)
		}
	}
	return out
}

// mergeRotations fuses runs of same-axis rotations on the same qubit into a
// single rotation carrying the summed angle, dropping it when the summed
// magnitude is numerically zero. Gates on disjoint qubits do not break a run.
func mergeRotations(gates []gate.Gate) []gate.Gate {
	removed := make([]bool, len(gates))
	out := gates[:0:0]
	for i := range gates {
		if removed[i] {
			continue
		}
		g := gates[i]
		if !g.IsRotation() {
			out = append(out, g)
			continue
		}
		sum := g.Params[0]
		for j := i + 1; j < len(gates); j++ {
			if removed[j] {
				continue
			}
			if !g.OverlapsQubits(gates[j]) {
				continue
			}
			if gates[j].Name != g.Name {
				break
			}
			sum += gates[j].Params[0]
			removed[j] = true
		}
		if math.Abs(sum) < gate.Tolerance {
			continue
		}
		merged, _ := gate.Rotation(g.Name, g.Qubits[0], sum)
		out = append(out, merged)
	}
	return out
}

// reorderByCommutation schedules each gate at the earliest layer where none
// of its qubits is busy, then emits in layer order with the original index
// as a stable tie-break. Only disjoint-qubit commutation is exploited, so
// semantics are preserved by construction.
func reorderByCommutation(gates []gate.Gate) []gate.Gate {
	type scheduled struct {
		layer int
		index int
	}
	busy := map[int]int{}
	order := make([]scheduled, len(gates))
	for i, g := range gates {
		layer := 0
		for _, q := range g.Qubits {
			if busy[q] > layer {
				layer = busy[q]
			}
		}
		layer++
		for _, q := range g.Qubits {
			busy[q] = layer
		}
		order[i] = scheduled{layer: layer, index: i}
	}
	sort.SliceStable(order, func(a, b int) bool {
		if order[a].layer != order[b].layer {
			return order[a].layer < order[b].layer
		}
		return order[a].index < order[b].index
	})
	out := make([]gate.Gate, len(gates))
	for i, s := range order {
		out[i] = gates[s.index]
	}
	return out
}

// simplifyCliffords is reserved for Clifford-group rewrites; currently the
// identity pass.
func simplifyCliffords(gates []gate.Gate) []gate.Gate {
	return gates
}
