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

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
)

func TestQueueOrdersByScoreDescending(t *testing.T) {
	q := newDeviceQueue()
	now := time.Now()
	q.Push(&v1.Job{ID: "low"}, 0.2, now)
	q.Push(&v1.Job{ID: "high"}, 0.9, now)
	q.Push(&v1.Job{ID: "mid"}, 0.5, now)

	assert.Equal(t, "high", q.Pop().ID)
	assert.Equal(t, "mid", q.Pop().ID)
	assert.Equal(t, "low", q.Pop().ID)
	assert.Nil(t, q.Pop())
}

func TestQueueBreaksTiesBySubmissionTime(t *testing.T) {
	q := newDeviceQueue()
	base := time.Now()
	q.Push(&v1.Job{ID: "second"}, 0.5, base.Add(time.Second))
	q.Push(&v1.Job{ID: "first"}, 0.5, base)

	assert.Equal(t, "first", q.Pop().ID)
	assert.Equal(t, "second", q.Pop().ID)
}

func TestQueueRemove(t *testing.T) {
	q := newDeviceQueue()
	now := time.Now()
	q.Push(&v1.Job{ID: "a"}, 0.3, now)
	q.Push(&v1.Job{ID: "b"}, 0.6, now)
	q.Push(&v1.Job{ID: "c"}, 0.9, now)

	require.True(t, q.Contains("b"))
	assert.True(t, q.Remove("b"))
	assert.False(t, q.Remove("b"))
	assert.False(t, q.Contains("b"))
	assert.Equal(t, 2, q.Len())

	assert.Equal(t, "c", q.Pop().ID)
	assert.Equal(t, "a", q.Pop().ID)
}

func TestQueueRemoveHead(t *testing.T) {
	q := newDeviceQueue()
	now := time.Now()
	q.Push(&v1.Job{ID: "a"}, 0.9, now)
	q.Push(&v1.Job{ID: "b"}, 0.1, now)

	assert.True(t, q.Remove("a"))
	assert.Equal(t, "b", q.Pop().ID)
}
