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

// Package qasm emits and parses the OPENQASM 2.0 subset the provider
// adapters exchange: one quantum and one classical register, the standard
// qelib1 gate set, and measurements.
package qasm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
)

const Header = "OPENQASM 2.0;\ninclude \"qelib1.inc\";"

var toQASM = map[string]string{
	"H": "h", "X": "x", "Y": "y", "Z": "z",
	"S": "s", "SDG": "sdg", "T": "t", "TDG": "tdg",
	"RX": "rx", "RY": "ry", "RZ": "rz",
	"CNOT": "cx", "CZ": "cz", "SWAP": "swap", "TOFFOLI": "ccx",
}

var fromQASM = lo.Invert(toQASM)

// Emit serializes the circuit as an OPENQASM 2.0 program.
func Emit(c *circuit.Circuit) (string, error) {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\n")
	fmt.Fprintf(&b, "qreg q[%d];\n", c.Qubits())
	if n := c.ClassicalBits(); n > 0 {
		fmt.Fprintf(&b, "creg c[%d];\n", n)
	}
	for _, g := range c.Gates() {
		name, ok := toQASM[g.Name]
		if !ok {
			return "", fmt.Errorf("gate %s has no OPENQASM 2.0 spelling", g.Name)
		}
		b.WriteString(name)
		if len(g.Params) > 0 {
			args := lo.Map(g.Params, func(p float64, _ int) string {
				return strconv.FormatFloat(p, 'g', 17, 64)
			})
			fmt.Fprintf(&b, "(%s)", strings.Join(args, ","))
		}
		targets := lo.Map(g.Qubits, func(q int, _ int) string {
			return fmt.Sprintf("q[%d]", q)
		})
		fmt.Fprintf(&b, " %s;\n", strings.Join(targets, ","))
	}
	for _, m := range c.Measurements() {
		fmt.Fprintf(&b, "measure q[%d] -> c[%d];\n", m.Qubit, m.Clbit)
	}
	return b.String(), nil
}

var (
	qregRe    = regexp.MustCompile(`^qreg\s+\w+\[(\d+)\];$`)
	cregRe    = regexp.MustCompile(`^creg\s+\w+\[(\d+)\];$`)
	measureRe = regexp.MustCompile(`^measure\s+\w+\[(\d+)\]\s*->\s*\w+\[(\d+)\];$`)
	gateRe    = regexp.MustCompile(`^(\w+)\s*(?:\(([^)]*)\))?\s+(.+);$`)
	targetRe  = regexp.MustCompile(`\w+\[(\d+)\]`)
)

// Parse reads an OPENQASM 2.0 program back into a circuit.
func Parse(src string) (*circuit.Circuit, error) {
	var c *circuit.Circuit
	for ln, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "//") ||
			strings.HasPrefix(line, "OPENQASM") || strings.HasPrefix(line, "include") {
			continue
		}
		if m := qregRe.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			var err error
			if c, err = circuit.New(n); err != nil {
				return nil, err
			}
			continue
		}
		if cregRe.MatchString(line) {
			continue
		}
		if c == nil {
			return nil, qerrors.New(qerrors.KindInvalidCircuit, "qasm line %d before qreg declaration: %q", ln+1, line)
		}
		if m := measureRe.FindStringSubmatch(line); m != nil {
			q, _ := strconv.Atoi(m[1])
			cb, _ := strconv.Atoi(m[2])
			if err := c.Measure(q, cb); err != nil {
				return nil, err
			}
			continue
		}
		m := gateRe.FindStringSubmatch(line)
		if m == nil {
			return nil, qerrors.New(qerrors.KindInvalidCircuit, "unparseable qasm line %d: %q", ln+1, line)
		}
		name, ok := fromQASM[strings.ToLower(m[1])]
		if !ok {
			return nil, qerrors.New(qerrors.KindInvalidCircuit, "unsupported qasm gate %q at line %d", m[1], ln+1)
		}
		var params []float64
		if m[2] != "" {
			for _, p := range strings.Split(m[2], ",") {
				f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
				if err != nil {
					return nil, qerrors.New(qerrors.KindInvalidCircuit, "bad parameter %q at line %d", p, ln+1)
				}
				params = append(params, f)
			}
		}
		var qubits []int
		for _, t := range targetRe.FindAllStringSubmatch(m[3], -1) {
			q, _ := strconv.Atoi(t[1])
			qubits = append(qubits, q)
		}
		g, ok := gate.ByName(name, qubits, params)
		if !ok {
			return nil, qerrors.New(qerrors.KindInvalidCircuit, "gate %s does not take %d qubits and %d params (line %d)", name, len(qubits), len(params), ln+1)
		}
		if err := c.Append(g); err != nil {
			return nil, err
		}
	}
	if c == nil {
		return nil, qerrors.New(qerrors.KindInvalidCircuit, "qasm program declares no qreg")
	}
	return c, nil
}
