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

// Package metrics holds the process-wide prometheus registry and the
// orchestrator's collectors. Everything registers at init; the HTTP
// server serves the registry at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Common namespace for application metrics.
	Namespace = "eigenos"

	// Common set of metric label names.
	ProviderLabel = "provider"
	DeviceLabel   = "device"
	StatusLabel   = "status"
	ResultLabel   = "result"
)

// Registry is the process registry. Collectors register here rather than
// on the prometheus default so tests can swap it wholesale.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	Registry.MustRegister(JobsSubmitted)
	Registry.MustRegister(JobsTerminal)
	Registry.MustRegister(JobsInFlight)
	Registry.MustRegister(QueueDepth)
	Registry.MustRegister(SchedulingDuration)
	Registry.MustRegister(JobExecutionDuration)
	Registry.MustRegister(JobQueueDuration)
	Registry.MustRegister(ProviderUp)
	Registry.MustRegister(ProviderAPIErrors)
}

// DurationBuckets returns a []float64 of default threshold values for
// duration histograms. Each returned slice is new and may be modified
// without impacting other bucket definitions.
func DurationBuckets() []float64 {
	return []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.35, 0.4, 0.45, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0,
		1.25, 1.5, 1.75, 2.0, 2.5, 3.0, 3.5, 4.0, 4.5, 5, 6, 7, 8, 9, 10, 15, 20, 25, 30, 40, 50, 60}
}

var JobsSubmitted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "scheduler",
		Name:      "jobs_submitted_total",
		Help:      "Number of jobs accepted by the scheduler. Labeled by provider and device.",
	},
	[]string{ProviderLabel, DeviceLabel},
)

var JobsTerminal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "scheduler",
		Name:      "jobs_terminal_total",
		Help:      "Number of jobs that reached a terminal status. Labeled by provider, device and status.",
	},
	[]string{ProviderLabel, DeviceLabel, StatusLabel},
)

var JobsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "scheduler",
		Name:      "jobs_in_flight",
		Help:      "Number of jobs currently dispatched to providers and not yet terminal.",
	},
)

var QueueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "scheduler",
		Name:      "queue_depth",
		Help:      "Number of jobs waiting in the scheduling queue. Labeled by device.",
	},
	[]string{DeviceLabel},
)

var SchedulingDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "scheduler",
		Name:      "decision_duration_seconds",
		Help:      "Duration of a single scheduling decision in seconds.",
		Buckets:   DurationBuckets(),
	},
)

var JobExecutionDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "jobs",
		Name:      "execution_duration_seconds",
		Help:      "Reported execution time of completed jobs in seconds. Labeled by device.",
		Buckets:   DurationBuckets(),
	},
	[]string{DeviceLabel},
)

var JobQueueDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "jobs",
		Name:      "queue_duration_seconds",
		Help:      "Time jobs spent waiting before execution in seconds. Labeled by device.",
		Buckets:   DurationBuckets(),
	},
	[]string{DeviceLabel},
)

var ProviderUp = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "providers",
		Name:      "up",
		Help:      "1 when the provider's last health check succeeded, 0 otherwise.",
	},
	[]string{ProviderLabel},
)

var ProviderAPIErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "providers",
		Name:      "api_errors_total",
		Help:      "Number of provider API calls that returned an error. Labeled by provider and result kind.",
	},
	[]string{ProviderLabel, ResultLabel},
)
