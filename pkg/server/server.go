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

// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	cache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/logging"
	"github.com/amirewontmiss/eigenos/pkg/metrics"
	"github.com/amirewontmiss/eigenos/pkg/operator"
	"github.com/amirewontmiss/eigenos/pkg/repository"
	"github.com/amirewontmiss/eigenos/pkg/scheduler"
	"github.com/amirewontmiss/eigenos/pkg/supervisor"
)

const shutdownTimeout = 10 * time.Second

// Server hosts the API on one port and Prometheus metrics on another.
type Server struct {
	log        *logging.Logger
	scheduler  *scheduler.Scheduler
	supervisor *supervisor.Supervisor
	store      repository.Store

	defaultShots      int
	optimizationLevel int

	resultCache *cache.Cache

	api     *http.Server
	metrics *http.Server
}

// New wires the HTTP surface onto an assembled operator.
func New(op *operator.Operator) *Server {
	s := &Server{
		log:               op.Logger.Named("server"),
		scheduler:         op.Scheduler,
		supervisor:        op.Supervisor,
		store:             op.Store,
		defaultShots:      op.Options.DefaultShots,
		optimizationLevel: op.Options.OptimizationLevel,
		resultCache:       cache.New(op.Options.ResultCacheTTL, 2*op.Options.ResultCacheTTL),
	}

	if !op.Options.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := engine.Group("/api/v1")
	{
		api.POST("/jobs", s.submitJob)
		api.GET("/jobs", s.listJobs)
		api.GET("/jobs/:id", s.getJob)
		api.GET("/jobs/:id/results", s.getJobResults)
		api.DELETE("/jobs/:id", s.cancelJob)

		api.GET("/devices", s.listDevices)
		api.GET("/devices/:id/queue", s.deviceQueue)

		api.GET("/circuits/:id/diagram", s.circuitDiagram)

		api.GET("/stats", s.stats)
		api.GET("/providers/health", s.providersHealth)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	s.api = &http.Server{
		Addr:    fmt.Sprintf(":%d", op.Options.HTTPPort),
		Handler: engine,
	}
	s.metrics = &http.Server{
		Addr:    fmt.Sprintf(":%d", op.Options.MetricsPort),
		Handler: metricsMux,
	}
	return s
}

// Run serves until ctx is cancelled, then drains both listeners.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		s.log.Info().Str("addr", s.api.Addr).Msg("serving API")
		if err := s.api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		s.log.Info().Str("addr", s.metrics.Addr).Msg("serving metrics")
		if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	apiErr := s.api.Shutdown(shutdownCtx)
	metricsErr := s.metrics.Shutdown(shutdownCtx)
	if apiErr != nil {
		return apiErr
	}
	return metricsErr
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// abortWithError maps error kinds onto HTTP statuses.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch qerrors.KindOf(err) {
	case qerrors.KindInvalidCircuit, qerrors.KindInvalidJob:
		status = http.StatusBadRequest
	case qerrors.KindNotFound:
		status = http.StatusNotFound
	case qerrors.KindNoEligibleDevice, qerrors.KindUnroutableCircuit:
		status = http.StatusUnprocessableEntity
	case qerrors.KindQuotaExceeded:
		status = http.StatusTooManyRequests
	case qerrors.KindAuthFailure:
		status = http.StatusBadGateway
	case qerrors.KindNetworkTransient:
		status = http.StatusServiceUnavailable
	case qerrors.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": string(qerrors.KindOf(err))})
}
