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

package providers

import (
	"fmt"

	"github.com/samber/lo"
)

// BitOrder labels the endianness of a vendor's counts bitstrings.
type BitOrder string

const (
	// BigEndian means qubit 0 is the leftmost character. This is the
	// normalized order used throughout the orchestrator.
	BigEndian BitOrder = "big-endian"
	// LittleEndian means qubit 0 is the rightmost character.
	LittleEndian BitOrder = "little-endian"
)

// NormalizeCounts converts a vendor counts map to the big-endian normal
// form, summing keys that collide after reversal.
func NormalizeCounts(counts map[string]int, order BitOrder) map[string]int {
	if order == BigEndian {
		return lo.Assign(map[string]int{}, counts)
	}
	out := make(map[string]int, len(counts))
	for bits, n := range counts {
		out[reverseString(bits)] += n
	}
	return out
}

func reverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// VerifyCounts enforces the success contract sum(counts) == shots.
func VerifyCounts(counts map[string]int, shots int) error {
	total := lo.Sum(lo.Values(counts))
	if total != shots {
		return fmt.Errorf("counts total %d does not match %d shots", total, shots)
	}
	return nil
}
