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

package options

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"

	"github.com/amirewontmiss/eigenos/pkg/utils/env"
)

// Options for running this binary
type Options struct {
	*flag.FlagSet

	// Serving
	HTTPPort    int
	MetricsPort int
	Debug       bool
	ConsoleLog  bool

	// Scheduling
	DefaultShots         int
	OptimizationLevel    int
	MaxConcurrentJobs    int
	JobTimeout           time.Duration
	DispatchInterval     time.Duration
	PollInterval         time.Duration
	HealthCheckInterval  time.Duration
	ResultCacheTTL       time.Duration
	JobRetentionDays     int
	CircuitRetentionDays int

	// Providers
	IBMToken      string
	RigettiAPIKey string
	CirqProject   string
	CirqAPIKey    string
	IonQAPIKey    string
}

// New creates an Options struct and registers CLI flags and environment
// variables to fill-in the Options struct fields
func New() *Options {
	opts := &Options{}
	f := flag.NewFlagSet("eigenosd", flag.ContinueOnError)
	opts.FlagSet = f

	f.IntVar(&opts.HTTPPort, "http-port", env.WithDefaultInt("HTTP_PORT", 8080), "The port the HTTP API binds to")
	f.IntVar(&opts.MetricsPort, "metrics-port", env.WithDefaultInt("METRICS_PORT", 9090), "The port the metrics endpoint binds to")
	f.BoolVar(&opts.Debug, "debug", env.WithDefaultBool("DEBUG", false), "Enable debug logging")
	f.BoolVar(&opts.ConsoleLog, "console-log", env.WithDefaultBool("CONSOLE_LOG", false), "Render logs for human consumption instead of JSON")

	f.IntVar(&opts.DefaultShots, "default-shots", env.WithDefaultInt("DEFAULT_SHOTS", 1024), "Shots used when a submission does not specify any")
	f.IntVar(&opts.OptimizationLevel, "optimization-level", env.WithDefaultInt("OPTIMIZATION_LEVEL", 2), "Circuit optimization level applied before routing (1-3)")
	f.IntVar(&opts.MaxConcurrentJobs, "max-concurrent-jobs", env.WithDefaultInt("MAX_CONCURRENT_JOBS", 10), "Upper bound on simultaneously dispatched jobs across all devices")
	f.DurationVar(&opts.JobTimeout, "job-timeout", env.WithDefaultDuration("JOB_TIMEOUT", time.Hour), "Hard cap on polling a single job before it is marked timed out")
	f.DurationVar(&opts.DispatchInterval, "dispatch-interval", env.WithDefaultDuration("DISPATCH_INTERVAL", 5*time.Second), "Period of the dispatcher loop")
	f.DurationVar(&opts.PollInterval, "poll-interval", env.WithDefaultDuration("POLL_INTERVAL", 10*time.Second), "Period of the per-job status polling loop")
	f.DurationVar(&opts.HealthCheckInterval, "health-check-interval", env.WithDefaultDuration("HEALTH_CHECK_INTERVAL", 5*time.Minute), "Period of the provider health check")
	f.DurationVar(&opts.ResultCacheTTL, "result-cache-ttl", env.WithDefaultDuration("RESULT_CACHE_TTL", 5*time.Minute), "How long completed results are cached by the HTTP API")
	f.IntVar(&opts.JobRetentionDays, "job-retention-days", env.WithDefaultInt("JOB_RETENTION_DAYS", 30), "Days terminal jobs are retained before the sweeper deletes them")
	f.IntVar(&opts.CircuitRetentionDays, "circuit-retention-days", env.WithDefaultInt("CIRCUIT_RETENTION_DAYS", 90), "Days unused non-template circuits are retained")

	f.StringVar(&opts.IBMToken, "ibm-token", env.WithDefaultString("IBM_QUANTUM_TOKEN", ""), "IBM Quantum API token; the IBM adapter is skipped when empty")
	f.StringVar(&opts.RigettiAPIKey, "rigetti-api-key", env.WithDefaultString("RIGETTI_API_KEY", ""), "Rigetti QCS API key; the Rigetti adapter is skipped when empty")
	f.StringVar(&opts.CirqProject, "cirq-project", env.WithDefaultString("CIRQ_PROJECT", ""), "Google Quantum Engine project id")
	f.StringVar(&opts.CirqAPIKey, "cirq-api-key", env.WithDefaultString("CIRQ_API_KEY", ""), "Google Quantum Engine API key; the Cirq adapter is skipped when empty")
	f.StringVar(&opts.IonQAPIKey, "ionq-api-key", env.WithDefaultString("IONQ_API_KEY", ""), "IonQ API key; the IonQ adapter is skipped when empty")
	return opts
}

// MustParse reads the user passed flags, environment variables, and
// default values. Options are validated and panics if an error is returned
func (o *Options) MustParse() *Options {
	err := o.Parse(os.Args[1:])

	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		panic(err)
	}
	if err := o.Validate(); err != nil {
		panic(err)
	}
	return o
}

func (o Options) Validate() (err error) {
	if o.HTTPPort <= 0 || o.HTTPPort > 65535 {
		err = multierr.Append(err, fmt.Errorf("http-port must be in (0, 65535], got %d", o.HTTPPort))
	}
	if o.MetricsPort <= 0 || o.MetricsPort > 65535 {
		err = multierr.Append(err, fmt.Errorf("metrics-port must be in (0, 65535], got %d", o.MetricsPort))
	}
	if o.HTTPPort == o.MetricsPort {
		err = multierr.Append(err, fmt.Errorf("http-port and metrics-port may not both be %d", o.HTTPPort))
	}
	if o.OptimizationLevel < 1 || o.OptimizationLevel > 3 {
		err = multierr.Append(err, fmt.Errorf("optimization-level may only be 1, 2 or 3, got %d", o.OptimizationLevel))
	}
	if o.DefaultShots < 1 || o.DefaultShots > 1_000_000 {
		err = multierr.Append(err, fmt.Errorf("default-shots must be in [1, 1000000], got %d", o.DefaultShots))
	}
	if o.MaxConcurrentJobs < 1 {
		err = multierr.Append(err, fmt.Errorf("max-concurrent-jobs must be positive, got %d", o.MaxConcurrentJobs))
	}
	if o.JobTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("job-timeout must be positive, got %s", o.JobTimeout))
	}
	if o.DispatchInterval <= 0 || o.PollInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("dispatch-interval and poll-interval must be positive"))
	}
	if o.JobRetentionDays < 1 || o.CircuitRetentionDays < 1 {
		err = multierr.Append(err, fmt.Errorf("retention windows must be at least one day"))
	}
	return err
}
