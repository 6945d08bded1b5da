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

package rigetti

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
)

// quilNames maps internal gate names to their Quil spelling. Qubit operands
// in Quil are bare indices; parameters precede the operands in parentheses.
var quilNames = map[string]string{
	"H": "H", "X": "X", "Y": "Y", "Z": "Z",
	"S": "S", "T": "T",
	"RX": "RX", "RY": "RY", "RZ": "RZ",
	"CNOT": "CNOT", "CZ": "CZ", "SWAP": "SWAP", "TOFFOLI": "CCNOT",
}

// emitQuil serializes the circuit as a Quil program with a readout
// declaration sized to the circuit's classical register.
func emitQuil(c *circuit.Circuit) (string, error) {
	var b strings.Builder
	if n := c.ClassicalBits(); n > 0 {
		fmt.Fprintf(&b, "DECLARE ro BIT[%d]\n", n)
	}
	for _, g := range c.Gates() {
		name, ok := quilNames[g.Name]
		if !ok {
			return "", fmt.Errorf("gate %s has no Quil spelling", g.Name)
		}
		b.WriteString(name)
		if len(g.Params) > 0 {
			args := make([]string, len(g.Params))
			for i, p := range g.Params {
				args[i] = strconv.FormatFloat(p, 'g', 17, 64)
			}
			fmt.Fprintf(&b, "(%s)", strings.Join(args, ", "))
		}
		for _, q := range g.Qubits {
			fmt.Fprintf(&b, " %d", q)
		}
		b.WriteString("\n")
	}
	for _, m := range c.Measurements() {
		fmt.Fprintf(&b, "MEASURE %d ro[%d]\n", m.Qubit, m.Clbit)
	}
	return b.String(), nil
}
