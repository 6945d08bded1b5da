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

// Package router maps logical circuit qubits onto physical device qubits,
// inserting SWAPs so that every two-qubit gate acts on a coupled pair. The
// search is SABRE-style: several random initial mappings, each routed with
// a look-ahead SWAP heuristic, keeping the cheapest trial.
package router

import (
	"math/rand"

	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
	"github.com/amirewontmiss/eigenos/pkg/quantum/topology"
)

const (
	DefaultTrials    = 5
	DefaultLookahead = 20

	executableBonus = 10.0
	swapCostWeight  = 10
)

type Options struct {
	// Trials is the number of random initial mappings tried (default 5).
	// The first trial always starts from the identity mapping.
	Trials int
	// Lookahead bounds how many pending gates score a candidate SWAP.
	Lookahead int
	// GateBudget aborts a trial once the routed sequence exceeds it;
	// zero derives a budget from the input size.
	GateBudget int
	// BasisGates triggers decomposition before routing when non-empty.
	BasisGates []string
	// Seed makes trials reproducible; zero selects a fixed default.
	Seed int64
}

// Result is a physically valid routing of a circuit.
type Result struct {
	// Circuit acts on physical qubit indices of the topology.
	Circuit *circuit.Circuit
	// InitialMapping and FinalMapping map logical index to physical index.
	InitialMapping []int
	FinalMapping   []int
	SwapCount      int
}

// Route produces a routed circuit for the given topology.
func Route(c *circuit.Circuit, topo *topology.Graph, opts Options) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if topo.Qubits() < c.Qubits() {
		return nil, qerrors.New(qerrors.KindUnroutableCircuit, "topology has %d qubits, circuit needs %d", topo.Qubits(), c.Qubits())
	}
	if opts.Trials <= 0 {
		opts.Trials = DefaultTrials
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	gates := decomposeToBasis(c.Gates(), opts.BasisGates)
	if opts.GateBudget <= 0 {
		opts.GateBudget = len(gates)*swapCostWeight + 100
	}
	seed := opts.Seed
	if seed == 0 {
		seed = 0x5abe
	}

	var best *trialResult
	for trial := 0; trial < opts.Trials; trial++ {
		mapping := identityMapping(c.Qubits(), topo.Qubits())
		if trial > 0 {
			shuffleMapping(mapping, rand.New(rand.NewSource(seed+int64(trial))))
		}
		res, ok := routeTrial(gates, topo, mapping, opts)
		if !ok {
			continue
		}
		if best == nil || res.cost() < best.cost() {
			best = res
		}
	}
	if best == nil {
		return nil, qerrors.New(qerrors.KindUnroutableCircuit, "no routing found within gate budget %d after %d trials", opts.GateBudget, opts.Trials)
	}

	routed := best.routed
	if len(opts.BasisGates) > 0 {
		routed = decomposeToBasis(routed, opts.BasisGates)
	}
	out, err := circuit.New(topo.Qubits())
	if err != nil {
		return nil, err
	}
	out.Metadata = metadataOf(c)
	if err := out.Append(routed...); err != nil {
		return nil, err
	}
	for _, m := range c.Measurements() {
		if err := out.Measure(best.final[m.Qubit], m.Clbit); err != nil {
			return nil, err
		}
	}
	return &Result{
		Circuit:        out,
		InitialMapping: best.initial,
		FinalMapping:   best.final,
		SwapCount:      best.swaps,
	}, nil
}

func metadataOf(c *circuit.Circuit) circuit.Metadata {
	md := c.Metadata
	md.Tags = append([]string(nil), md.Tags...)
	return md
}

type trialResult struct {
	routed  []gate.Gate
	initial []int
	final   []int
	swaps   int
}

func (t *trialResult) cost() int {
	return t.swaps*swapCostWeight + depthOf(t.routed)
}

func depthOf(gates []gate.Gate) int {
	busy := map[int]int{}
	depth := 0
	for _, g := range gates {
		l := 0
		for _, q := range g.Qubits {
			if busy[q] > l {
				l = busy[q]
			}
		}
		l++
		for _, q := range g.Qubits {
			busy[q] = l
		}
		if l > depth {
			depth = l
		}
	}
	return depth
}

func identityMapping(logical, physical int) []int {
	m := make([]int, logical)
	for i := range m {
		m[i] = i
	}
	return m
}

func shuffleMapping(mapping []int, r *rand.Rand) {
	r.Shuffle(len(mapping), func(i, j int) {
		mapping[i], mapping[j] = mapping[j], mapping[i]
	})
}

// routeTrial routes the gate sequence for one initial mapping. It retires
// every executable front gate, and when the front is fully blocked it
// applies the best-scoring SWAP over all topology edges.
func routeTrial(gates []gate.Gate, topo *topology.Graph, initial []int, opts Options) (*trialResult, bool) {
	phys := append([]int(nil), initial...) // logical -> physical
	logAt := map[int]int{}                 // physical -> logical
	for l, p := range phys {
		logAt[p] = l
	}

	pending := make([]gate.Gate, len(gates))
	copy(pending, gates)
	var routed []gate.Gate
	swaps := 0

	executable := func(g gate.Gate) bool {
		if len(g.Qubits) != 2 {
			return true
		}
		return topo.IsConnected(phys[g.Qubits[0]], phys[g.Qubits[1]])
	}

	for len(pending) > 0 {
		progressed := false
		blocked := map[int]bool{}
		next := pending[:0:0]
		for _, g := range pending {
			gateBlocked := false
			for _, q := range g.Qubits {
				if blocked[q] {
					gateBlocked = true
				}
			}
			if !gateBlocked && executable(g) {
				routed = append(routed, g.Remap(func(q int) int { return phys[q] }))
				progressed = true
				continue
			}
			for _, q := range g.Qubits {
				blocked[q] = true
			}
			next = append(next, g)
		}
		pending = next
		if len(pending) == 0 {
			break
		}
		if progressed {
			continue
		}

		edge, ok := bestSwap(pending, topo, phys, opts.Lookahead)
		if !ok {
			return nil, false
		}
		a, b := edge[0], edge[1]
		routed = append(routed, gate.SWAP(a, b))
		swaps++
		la, aOK := logAt[a]
		lb, bOK := logAt[b]
		if aOK {
			phys[la] = b
		}
		if bOK {
			phys[lb] = a
		}
		switch {
		case aOK && bOK:
			logAt[a], logAt[b] = lb, la
		case aOK:
			delete(logAt, a)
			logAt[b] = la
		case bOK:
			delete(logAt, b)
			logAt[a] = lb
		}

		if len(routed) > opts.GateBudget {
			return nil, false
		}
	}

	return &trialResult{routed: routed, initial: initial, final: phys, swaps: swaps}, true
}

// bestSwap scores every topology edge as a candidate SWAP: with the swap
// tentatively applied, each of the next lookahead pending gates contributes
// +10 when executable and minus the physical distance of its endpoints
// otherwise.
func bestSwap(pending []gate.Gate, topo *topology.Graph, phys []int, lookahead int) ([2]int, bool) {
	bestScore := 0.0
	var best [2]int
	found := false
	for _, edge := range topo.Edges() {
		tentative := append([]int(nil), phys...)
		for l, p := range tentative {
			if p == edge[0] {
				tentative[l] = edge[1]
			} else if p == edge[1] {
				tentative[l] = edge[0]
			}
		}
		score := 0.0
		n := lookahead
		if n > len(pending) {
			n = len(pending)
		}
		for i := 0; i < n; i++ {
			g := pending[i]
			if len(g.Qubits) != 2 {
				score += executableBonus
				continue
			}
			pa, pb := tentative[g.Qubits[0]], tentative[g.Qubits[1]]
			if topo.IsConnected(pa, pb) {
				score += executableBonus
			} else {
				score -= float64(topo.Distance(pa, pb))
			}
		}
		if !found || score > bestScore {
			bestScore = score
			best = edge
			found = true
		}
	}
	return best, found
}
