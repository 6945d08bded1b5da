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

// Package operator assembles the process: configuration, providers,
// supervisor, scheduler and retention sweeper.
package operator

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/amirewontmiss/eigenos/pkg/events"
	"github.com/amirewontmiss/eigenos/pkg/logging"
	"github.com/amirewontmiss/eigenos/pkg/metrics"
	"github.com/amirewontmiss/eigenos/pkg/operator/options"
	"github.com/amirewontmiss/eigenos/pkg/providers"
	"github.com/amirewontmiss/eigenos/pkg/providers/cirq"
	"github.com/amirewontmiss/eigenos/pkg/providers/ibm"
	"github.com/amirewontmiss/eigenos/pkg/providers/ionq"
	"github.com/amirewontmiss/eigenos/pkg/providers/rigetti"
	"github.com/amirewontmiss/eigenos/pkg/providers/simulator"
	"github.com/amirewontmiss/eigenos/pkg/repository"
	"github.com/amirewontmiss/eigenos/pkg/scheduler"
	"github.com/amirewontmiss/eigenos/pkg/scheduler/predictor"
	"github.com/amirewontmiss/eigenos/pkg/supervisor"
)

// Operator owns every long-lived component of the process.
type Operator struct {
	Options *options.Options
	Config  *Config

	Logger     *logging.Logger
	Clock      clock.Clock
	Bus        *events.Bus
	Store      repository.Store
	History    *metrics.History
	Predictor  *predictor.Predictor
	Supervisor *supervisor.Supervisor
	Scheduler  *scheduler.Scheduler
	Sweeper    *repository.Sweeper
}

// NewOperator builds the component graph. Provider adapters are registered
// only when credentials for them are present; the local simulator is always
// registered so that submissions work with no vendor credentials at all.
func NewOperator(opts *options.Options, config *Config) *Operator {
	log := logging.New(logging.Options{Debug: opts.Debug, Console: opts.ConsoleLog})
	clk := clock.RealClock{}
	bus := events.NewBus(clk)
	store := repository.NewMemoryStore()
	history := metrics.NewHistory()

	sup := supervisor.New(log, clk, bus)
	sup.HealthCheckInterval = opts.HealthCheckInterval
	registerAdapters(sup, log, clk, opts, config)

	pred := predictor.New(history)
	sched := scheduler.New(sup, pred, history, store, bus, log, clk)
	sched.DispatchInterval = opts.DispatchInterval
	sched.PollInterval = opts.PollInterval
	sched.PollTimeout = opts.JobTimeout
	sched.MaxConcurrentJobs = opts.MaxConcurrentJobs

	sweeper := repository.NewSweeper(store, log, clk)
	sweeper.JobRetention = time.Duration(opts.JobRetentionDays) * 24 * time.Hour
	sweeper.CircuitRetention = time.Duration(opts.CircuitRetentionDays) * 24 * time.Hour

	return &Operator{
		Options:    opts,
		Config:     config,
		Logger:     log,
		Clock:      clk,
		Bus:        bus,
		Store:      store,
		History:    history,
		Predictor:  pred,
		Supervisor: sup,
		Scheduler:  sched,
		Sweeper:    sweeper,
	}
}

func registerAdapters(sup *supervisor.Supervisor, log *logging.Logger, clk clock.Clock, opts *options.Options, config *Config) {
	sup.Register(simulator.New(log, clk), nil)

	providersConfig := config.Providers
	if token := firstNonEmpty(opts.IBMToken, providersConfig.IBM.Token); token != "" {
		sup.Register(ibm.New(ibm.Config{
			Token:   token,
			Hub:     providersConfig.IBM.Hub,
			Group:   providersConfig.IBM.Group,
			Project: providersConfig.IBM.Project,
			BaseURL: providersConfig.IBM.BaseURL,
		}), providers.Credentials{"token": token})
	}
	if key := firstNonEmpty(opts.RigettiAPIKey, providersConfig.Rigetti.APIKey); key != "" {
		sup.Register(rigetti.New(rigetti.Config{
			APIKey:  key,
			BaseURL: providersConfig.Rigetti.BaseURL,
		}), providers.Credentials{"api_key": key})
	}
	project := firstNonEmpty(opts.CirqProject, providersConfig.Cirq.Project)
	cirqKey := firstNonEmpty(opts.CirqAPIKey, providersConfig.Cirq.APIToken)
	if project != "" && cirqKey != "" {
		sup.Register(cirq.New(cirq.Config{
			Project:  project,
			APIToken: cirqKey,
			BaseURL:  providersConfig.Cirq.BaseURL,
		}), providers.Credentials{"api_token": cirqKey})
	}
	if key := firstNonEmpty(opts.IonQAPIKey, providersConfig.IonQ.APIKey); key != "" {
		sup.Register(ionq.New(ionq.Config{
			APIKey:  key,
			BaseURL: providersConfig.IonQ.BaseURL,
		}), providers.Credentials{"api_key": key})
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Start authenticates every registered provider and launches the background
// loops. It blocks only for the initial provider handshake; the loops run
// until ctx is cancelled.
func (o *Operator) Start(ctx context.Context) {
	o.Supervisor.Initialize(ctx)
	go o.Supervisor.Run(ctx)
	go o.Scheduler.Run(ctx)
	go o.Sweeper.Run(ctx)
}
