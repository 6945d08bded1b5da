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

package providers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amirewontmiss/eigenos/pkg/providers"
)

func TestNormalizeCountsBigEndianIsCopied(t *testing.T) {
	in := map[string]int{"01": 3, "10": 5}
	out := providers.NormalizeCounts(in, providers.BigEndian)
	assert.Equal(t, in, out)
	out["01"] = 99
	assert.Equal(t, 3, in["01"])
}

func TestNormalizeCountsLittleEndianReverses(t *testing.T) {
	in := map[string]int{"001": 7, "100": 2, "111": 1}
	out := providers.NormalizeCounts(in, providers.LittleEndian)
	assert.Equal(t, map[string]int{"100": 7, "001": 2, "111": 1}, out)
}

func TestNormalizeCountsSumsCollisions(t *testing.T) {
	// Palindromic keys collide with themselves only; these two collide.
	in := map[string]int{"01": 3, "10": 5}
	out := providers.NormalizeCounts(in, providers.LittleEndian)
	assert.Equal(t, map[string]int{"10": 3, "01": 5}, out)
}

func TestVerifyCounts(t *testing.T) {
	assert.NoError(t, providers.VerifyCounts(map[string]int{"00": 512, "11": 512}, 1024))
	assert.Error(t, providers.VerifyCounts(map[string]int{"00": 512}, 1024))
	assert.NoError(t, providers.VerifyCounts(nil, 0))
}
