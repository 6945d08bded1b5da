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
	"container/heap"
	"time"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
)

// deviceQueue is the per-device priority queue. Higher scheduling score
// dequeues first; equal scores dequeue in submission order. The scheduler
// is the only writer.
type deviceQueue struct {
	items   queueItems
	byJobID map[string]*queueItem
}

type queueItem struct {
	job       *v1.Job
	score     float64
	submitted time.Time
	index     int
}

func newDeviceQueue() *deviceQueue {
	return &deviceQueue{byJobID: map[string]*queueItem{}}
}

func (q *deviceQueue) Push(job *v1.Job, score float64, submitted time.Time) {
	item := &queueItem{job: job, score: score, submitted: submitted}
	heap.Push(&q.items, item)
	q.byJobID[job.ID] = item
}

// Pop removes and returns the highest-priority job, or nil when empty.
func (q *deviceQueue) Pop() *v1.Job {
	if q.items.Len() == 0 {
		return nil
	}
	item := heap.Pop(&q.items).(*queueItem)
	delete(q.byJobID, item.job.ID)
	return item.job
}

// Remove extracts the job by id, returning false when it is not queued.
func (q *deviceQueue) Remove(jobID string) bool {
	item, ok := q.byJobID[jobID]
	if !ok {
		return false
	}
	heap.Remove(&q.items, item.index)
	delete(q.byJobID, jobID)
	return true
}

func (q *deviceQueue) Len() int { return q.items.Len() }

func (q *deviceQueue) Contains(jobID string) bool {
	_, ok := q.byJobID[jobID]
	return ok
}

type queueItems []*queueItem

func (h queueItems) Len() int { return len(h) }

func (h queueItems) Less(i, k int) bool {
	if h[i].score != h[k].score {
		return h[i].score > h[k].score
	}
	return h[i].submitted.Before(h[k].submitted)
}

func (h queueItems) Swap(i, k int) {
	h[i], h[k] = h[k], h[i]
	h[i].index = i
	h[k].index = k
}

func (h *queueItems) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *queueItems) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
