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

package metrics

import (
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
)

// historyWindow caps how many records each (device, class) key retains.
const historyWindow = 128

// ExecutionRecord is one observed job execution, fed back into runtime
// prediction for subsequent scheduling decisions.
type ExecutionRecord struct {
	JobID        string
	DeviceID     string
	CircuitClass string
	Fingerprint  uint64
	ExecutionMs  float64
	QueueMs      float64
	Shots        int
	CompletedAt  time.Time
}

type historyKey struct {
	deviceID string
	class    string
}

// History is an in-memory sliding window of execution records. Writers are
// the pollers; readers are the runtime predictor and the stats endpoint.
type History struct {
	mu      sync.RWMutex
	records map[historyKey][]ExecutionRecord
}

func NewHistory() *History {
	return &History{records: map[historyKey][]ExecutionRecord{}}
}

func (h *History) Add(rec ExecutionRecord) {
	key := historyKey{deviceID: rec.DeviceID, class: rec.CircuitClass}
	h.mu.Lock()
	defer h.mu.Unlock()
	window := append(h.records[key], rec)
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}
	h.records[key] = window
}

// AverageExecutionMs reports the mean observed execution time for the
// device and circuit class, and false when nothing has been observed.
func (h *History) AverageExecutionMs(deviceID, class string) (float64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	window := h.records[historyKey{deviceID: deviceID, class: class}]
	if len(window) == 0 {
		return 0, false
	}
	var sum float64
	for _, rec := range window {
		sum += rec.ExecutionMs
	}
	return sum / float64(len(window)), true
}

// Count reports how many records are retained for the device and class.
func (h *History) Count(deviceID, class string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records[historyKey{deviceID: deviceID, class: class}])
}

// Fingerprint hashes the structural shape of a circuit. Two circuits with
// the same gate sequence over the same qubits collide, which is exactly
// what lets repeated workloads reuse prior observations.
func Fingerprint(c *circuit.Circuit) uint64 {
	type shape struct {
		Qubits    int
		GateCount int
		TwoQubit  int
		Gates     []string
		Depth     int
	}
	hash, err := hashstructure.Hash(shape{
		Qubits:    c.Qubits(),
		GateCount: c.GateCount(),
		TwoQubit:  c.TwoQubitGateCount(),
		Gates:     c.GateNames(),
		Depth:     c.Depth(),
	}, hashstructure.FormatV2, nil)
	if err != nil {
		return 0
	}
	return hash
}
