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

package topology_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirewontmiss/eigenos/pkg/quantum/topology"
)

func TestNewValidatesEdges(t *testing.T) {
	_, err := topology.New(2, [][2]int{{0, 2}})
	assert.Error(t, err)
	_, err = topology.New(2, [][2]int{{1, 1}})
	assert.Error(t, err)
	_, err = topology.New(0, nil)
	assert.Error(t, err)
}

func TestLinear(t *testing.T) {
	g := topology.Linear(4)
	assert.Equal(t, 4, g.Qubits())
	assert.True(t, g.IsConnected(0, 1))
	assert.True(t, g.IsConnected(2, 1))
	assert.False(t, g.IsConnected(0, 3))
	assert.Equal(t, 3, g.Distance(0, 3))
}

func TestGrid(t *testing.T) {
	g := topology.Grid(2, 3)
	assert.Equal(t, 6, g.Qubits())
	// row neighbors and column neighbors
	assert.True(t, g.IsConnected(0, 1))
	assert.True(t, g.IsConnected(0, 3))
	assert.False(t, g.IsConnected(0, 4))
	assert.Equal(t, 3, g.Distance(0, 5))
}

func TestFullyConnected(t *testing.T) {
	g := topology.FullyConnected(5)
	for a := 0; a < 5; a++ {
		for b := 0; b < 5; b++ {
			if a == b {
				continue
			}
			assert.True(t, g.IsConnected(a, b))
			assert.Equal(t, 1, g.Distance(a, b))
		}
	}
}

func TestShortestPath(t *testing.T) {
	g := topology.Linear(5)
	path := g.ShortestPath(0, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, path)
	assert.Equal(t, []int{2}, g.ShortestPath(2, 2))
}

func TestDisconnectedPairsAreUnreachable(t *testing.T) {
	g, err := topology.New(4, [][2]int{{0, 1}, {2, 3}})
	require.NoError(t, err)
	assert.Equal(t, topology.Unreachable, g.Distance(0, 3))
	assert.Nil(t, g.ShortestPath(1, 2))
}
