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

package fake

import (
	"sync"

	"github.com/samber/lo"

	"github.com/amirewontmiss/eigenos/pkg/events"
)

// EventRecorder is a mock event recorder that is used to facilitate testing.
type EventRecorder struct {
	mu   sync.Mutex
	evts []events.Event
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (e *EventRecorder) Publish(evts ...events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evts = append(e.evts, evts...)
}

func (e *EventRecorder) Events() []events.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]events.Event{}, e.evts...)
}

func (e *EventRecorder) Calls(reason events.Reason) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo.CountBy(e.evts, func(evt events.Event) bool { return evt.Reason == reason })
}

func (e *EventRecorder) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evts = nil
}
