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

package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/amirewontmiss/eigenos/pkg/events"
)

func TestBusDispatchesByReason(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	bus := events.NewBus(clocktesting.NewFakeClock(now))

	var scheduled []events.Event
	bus.Subscribe(events.JobScheduled, func(e events.Event) { scheduled = append(scheduled, e) })

	var all []events.Event
	bus.Subscribe("", func(e events.Event) { all = append(all, e) })

	bus.Publish(
		events.Event{Type: events.TypeNormal, Reason: events.JobScheduled, JobID: "j1"},
		events.Event{Type: events.TypeNormal, Reason: events.JobCompleted, JobID: "j1"},
	)

	require.Len(t, scheduled, 1)
	assert.Equal(t, "j1", scheduled[0].JobID)
	assert.Len(t, all, 2)
}

func TestBusStampsTimestamp(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	bus := events.NewBus(clocktesting.NewFakeClock(now))

	var got events.Event
	bus.Subscribe(events.JobFailed, func(e events.Event) { got = e })
	bus.Publish(events.Event{Reason: events.JobFailed, JobID: "j2"})

	assert.Equal(t, now, got.Timestamp)
}

func TestBusKeepsExplicitTimestamp(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	stamped := now.Add(-time.Minute)
	bus := events.NewBus(clocktesting.NewFakeClock(now))

	var got events.Event
	bus.Subscribe(events.JobCancelled, func(e events.Event) { got = e })
	bus.Publish(events.Event{Reason: events.JobCancelled, Timestamp: stamped})

	assert.Equal(t, stamped, got.Timestamp)
}

func TestNopRecorderIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		events.NopRecorder().Publish(events.Event{Reason: events.JobScheduled})
	})
}
