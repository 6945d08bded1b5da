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

// Package events carries orchestrator lifecycle notifications. Publishing
// never blocks the hot path; handlers run on the publisher's goroutine and
// must return quickly.
package events

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

type Type string

const (
	TypeNormal  Type = "Normal"
	TypeWarning Type = "Warning"
)

type Reason string

const (
	JobScheduled          Reason = "JobScheduled"
	JobDispatched         Reason = "JobDispatched"
	JobCompleted          Reason = "JobCompleted"
	JobFailed             Reason = "JobFailed"
	JobCancelled          Reason = "JobCancelled"
	JobTimedOut           Reason = "JobTimedOut"
	ProviderStatusChanged Reason = "ProviderStatusChanged"
	DeviceCatalogRefresh  Reason = "DeviceCatalogRefresh"
)

type Event struct {
	Type    Type
	Reason  Reason
	Message string

	JobID      string
	DeviceID   string
	ProviderID string

	Timestamp time.Time
}

type Recorder interface {
	Publish(...Event)
}

// Bus is the in-process Recorder. Handlers subscribe by reason; an empty
// reason subscribes to everything.
type Bus struct {
	clock clock.Clock

	mu       sync.RWMutex
	handlers map[Reason][]func(Event)
}

func NewBus(clk clock.Clock) *Bus {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Bus{clock: clk, handlers: map[Reason][]func(Event){}}
}

func (b *Bus) Subscribe(reason Reason, fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[reason] = append(b.handlers[reason], fn)
}

func (b *Bus) Publish(evts ...Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, evt := range evts {
		if evt.Timestamp.IsZero() {
			evt.Timestamp = b.clock.Now()
		}
		for _, fn := range b.handlers[evt.Reason] {
			fn(evt)
		}
		for _, fn := range b.handlers[Reason("")] {
			fn(evt)
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) Publish(...Event) {}

// NopRecorder discards everything.
func NopRecorder() Recorder { return nopRecorder{} }
