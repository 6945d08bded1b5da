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

package server

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	v1 "github.com/amirewontmiss/eigenos/pkg/apis/v1"
	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
	"github.com/amirewontmiss/eigenos/pkg/quantum/optimizer"
	"github.com/amirewontmiss/eigenos/pkg/quantum/qasm"
	"github.com/amirewontmiss/eigenos/pkg/quantum/render"
	"github.com/amirewontmiss/eigenos/pkg/repository"
	"github.com/amirewontmiss/eigenos/pkg/scheduler"
	"github.com/amirewontmiss/eigenos/pkg/supervisor"
)

type gateSpec struct {
	Name   string    `json:"name" binding:"required"`
	Qubits []int     `json:"qubits" binding:"required"`
	Params []float64 `json:"params"`
}

type measurementSpec struct {
	Qubit int `json:"qubit"`
	Clbit int `json:"clbit"`
}

type circuitSpec struct {
	Qubits       int               `json:"qubits" binding:"required"`
	Gates        []gateSpec        `json:"gates"`
	Measurements []measurementSpec `json:"measurements"`
}

type userSpec struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	MaxCostPerJob      float64            `json:"max_cost_per_job"`
	MaxWaitTimeMs      float64            `json:"max_wait_time_ms"`
	PreferredProviders []string           `json:"preferred_providers"`
	Weights            *schedulingWeights `json:"weights"`
}

type schedulingWeights struct {
	Performance  float64 `json:"performance"`
	Cost         float64 `json:"cost"`
	Reliability  float64 `json:"reliability"`
	Availability float64 `json:"availability"`
}

type submitJobRequest struct {
	Name     string       `json:"name"`
	QASM     string       `json:"qasm"`
	Circuit  *circuitSpec `json:"circuit"`
	Shots    int          `json:"shots"`
	Priority string       `json:"priority"`
	UserID   string       `json:"user_id"`
	User     *userSpec    `json:"user"`

	OptimizationLevel *int `json:"optimization_level"`
}

type decisionResponse struct {
	DeviceID            string  `json:"device_id"`
	ProviderID          string  `json:"provider_id"`
	EstimatedStart      string  `json:"estimated_start"`
	EstimatedCompletion string  `json:"estimated_completion"`
	EstimatedQueueMs    float64 `json:"estimated_queue_ms"`
	Priority            float64 `json:"priority"`
	Cost                float64 `json:"cost"`
	Currency            string  `json:"currency"`
	Confidence          float64 `json:"confidence"`
}

type jobResponse struct {
	ID            string  `json:"id"`
	CircuitID     string  `json:"circuit_id"`
	DeviceID      string  `json:"device_id,omitempty"`
	ProviderID    string  `json:"provider_id,omitempty"`
	ProviderJobID string  `json:"provider_job_id,omitempty"`
	Status        string  `json:"status"`
	Shots         int     `json:"shots"`
	Priority      string  `json:"priority"`
	Cost          float64 `json:"cost"`
	Currency      string  `json:"currency,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
	QueuePosition int     `json:"queue_position,omitempty"`
	SubmittedAt   string  `json:"submitted_at,omitempty"`
	StartedAt     string  `json:"started_at,omitempty"`
	CompletedAt   string  `json:"completed_at,omitempty"`
}

type resultsResponse struct {
	Shots       int               `json:"shots"`
	Counts      map[string]int    `json:"counts"`
	ExecutionMs float64           `json:"execution_ms"`
	QueueMs     float64           `json:"queue_ms"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type deviceResponse struct {
	ID                string   `json:"id"`
	ProviderID        string   `json:"provider_id"`
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Status            string   `json:"status"`
	Qubits            int      `json:"qubits"`
	BasisGates        []string `json:"basis_gates"`
	MaxShots          int      `json:"max_shots"`
	MaxConcurrentJobs int      `json:"max_concurrent_jobs"`
	PendingJobs       int      `json:"pending_jobs"`
	AverageWaitMs     float64  `json:"average_wait_ms"`
	CostPerShot       float64  `json:"cost_per_shot"`
	Currency          string   `json:"currency"`
}

func (s *Server) submitJob(c *gin.Context) {
	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortWithError(c, qerrors.Wrap(qerrors.KindInvalidJob, err))
		return
	}

	circ, err := s.buildCircuit(&req)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if req.Name != "" {
		circ.Name = req.Name
	}

	level := s.optimizationLevel
	if req.OptimizationLevel != nil {
		level = *req.OptimizationLevel
	}
	optimized, err := optimizer.Optimize(circ, level)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	optimized.ID = circ.ID // keep the submitted identity through optimization

	user, err := s.resolveUser(c, &req)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	job := &v1.Job{
		ID:       uuid.NewString(),
		Circuit:  optimized,
		Shots:    lo.Ternary(req.Shots > 0, req.Shots, s.defaultShots),
		Priority: v1.JobPriority(lo.Ternary(req.Priority != "", req.Priority, string(v1.PriorityNormal))),
		UserID:   lo.TernaryF(user != nil, func() string { return user.ID }, func() string { return "" }),
	}

	if err := s.store.Repositories().Circuits.Save(c.Request.Context(), optimized); err != nil {
		s.log.Warn().Err(err).Str("circuit", optimized.ID).Msg("circuit persistence failed")
	}

	decision, err := s.scheduler.Submit(c.Request.Context(), job, user)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job":      toJobResponse(job),
		"decision": toDecisionResponse(decision),
	})
}

func (s *Server) buildCircuit(req *submitJobRequest) (*circuit.Circuit, error) {
	if req.QASM != "" {
		return qasm.Parse(req.QASM)
	}
	if req.Circuit == nil {
		return nil, qerrors.New(qerrors.KindInvalidJob, "either qasm or circuit must be provided")
	}
	circ, err := circuit.New(req.Circuit.Qubits)
	if err != nil {
		return nil, err
	}
	for _, spec := range req.Circuit.Gates {
		g, ok := gate.ByName(spec.Name, spec.Qubits, spec.Params)
		if !ok {
			return nil, qerrors.New(qerrors.KindInvalidCircuit, "unknown gate %q", spec.Name)
		}
		if err := circ.Append(g); err != nil {
			return nil, err
		}
	}
	for _, m := range req.Circuit.Measurements {
		if err := circ.Measure(m.Qubit, m.Clbit); err != nil {
			return nil, err
		}
	}
	return circ, nil
}

// resolveUser looks up user_id in the repository; an inline user object is
// upserted and wins over the lookup.
func (s *Server) resolveUser(c *gin.Context, req *submitJobRequest) (*v1.User, error) {
	if req.User != nil {
		user := &v1.User{
			ID:                 lo.Ternary(req.User.ID != "", req.User.ID, uuid.NewString()),
			Name:               req.User.Name,
			MaxCostPerJob:      req.User.MaxCostPerJob,
			MaxWaitTimeMs:      req.User.MaxWaitTimeMs,
			PreferredProviders: req.User.PreferredProviders,
		}
		if w := req.User.Weights; w != nil {
			user.Weights = &v1.SchedulingWeights{
				Performance:  w.Performance,
				Cost:         w.Cost,
				Reliability:  w.Reliability,
				Availability: w.Availability,
			}
		}
		if err := s.store.Repositories().Users.Save(c.Request.Context(), user); err != nil {
			s.log.Warn().Err(err).Str("user", user.ID).Msg("user persistence failed")
		}
		return user, nil
	}
	if req.UserID == "" {
		return nil, nil
	}
	user, err := s.store.Repositories().Users.FindByID(c.Request.Context(), req.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Server) getJob(c *gin.Context) {
	id := c.Param("id")
	job, err := s.scheduler.Job(id)
	if err != nil {
		// Fall back to the repository for jobs that outlived the scheduler.
		job, err = s.store.Repositories().Jobs.FindByID(c.Request.Context(), id)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

func (s *Server) listJobs(c *gin.Context) {
	query := repository.JobQuery{
		UserID:     c.Query("user_id"),
		DeviceID:   c.Query("device_id"),
		ProviderID: c.Query("provider_id"),
	}
	if status := c.Query("status"); status != "" {
		query.Statuses = []v1.JobStatus{v1.JobStatus(status)}
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			s.abortWithError(c, qerrors.New(qerrors.KindInvalidJob, "invalid limit %q", limit))
			return
		}
		query.Limit = n
	}
	jobs, err := s.store.Repositories().Jobs.FindByQuery(c.Request.Context(), query)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": lo.Map(jobs, func(j *v1.Job, _ int) jobResponse { return toJobResponse(j) })})
}

func (s *Server) getJobResults(c *gin.Context) {
	id := c.Param("id")
	if cached, ok := s.resultCache.Get(id); ok {
		c.JSON(http.StatusOK, cached)
		return
	}
	results, err := s.scheduler.Results(id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	resp := resultsResponse{
		Shots:       results.Shots,
		Counts:      results.Counts,
		ExecutionMs: results.ExecutionMs,
		QueueMs:     results.QueueMs,
		Metadata:    results.Metadata,
	}
	s.resultCache.SetDefault(id, resp)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) cancelJob(c *gin.Context) {
	if err := s.scheduler.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) listDevices(c *gin.Context) {
	devices := s.supervisor.GetAllDevices(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"devices": lo.Map(devices, func(d *v1.Device, _ int) deviceResponse { return toDeviceResponse(d) })})
}

func (s *Server) deviceQueue(c *gin.Context) {
	id := c.Param("id")
	devices := s.supervisor.GetAllDevices(c.Request.Context())
	device, ok := lo.Find(devices, func(d *v1.Device) bool { return d.ID == id })
	if !ok {
		s.abortWithError(c, qerrors.New(qerrors.KindNotFound, "device %q not found", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"device_id":       device.ID,
		"local_depth":     s.scheduler.QueueDepth(id),
		"pending_jobs":    device.QueueInfo.PendingJobs,
		"average_wait_ms": device.QueueInfo.AverageWaitMs,
	})
}

func (s *Server) circuitDiagram(c *gin.Context) {
	circ, err := s.store.Repositories().Circuits.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := render.PNG(circ, &buf); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) stats(c *gin.Context) {
	stats := s.scheduler.Stats()
	c.JSON(http.StatusOK, gin.H{
		"queued":    stats.Queued,
		"running":   stats.Running,
		"by_status": stats.ByStatus,
	})
}

func (s *Server) providersHealth(c *gin.Context) {
	report := s.supervisor.PerformHealthCheck(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"overall": report.Overall,
		"providers": lo.Map(report.Providers, func(p supervisor.ProviderStatus, _ int) gin.H {
			return gin.H{
				"id":            p.ID,
				"name":          p.Name,
				"available":     p.Available,
				"authenticated": p.Authenticated,
				"device_count":  p.DeviceCount,
				"error":         p.Error,
				"last_checked":  p.LastChecked,
			}
		}),
	})
}

func toJobResponse(job *v1.Job) jobResponse {
	resp := jobResponse{
		ID:            job.ID,
		Status:        string(job.Status),
		Shots:         job.Shots,
		Priority:      string(job.Priority),
		Cost:          job.Cost,
		Currency:      job.Currency,
		ProviderJobID: job.ProviderJobID,
		ErrorMessage:  job.ErrorMessage,
	}
	if job.Circuit != nil {
		resp.CircuitID = job.Circuit.ID
	}
	if job.Device != nil {
		resp.DeviceID = job.Device.ID
		resp.ProviderID = job.Device.ProviderID
	}
	if job.Scheduling != nil {
		resp.QueuePosition = job.Scheduling.QueuePosition
	}
	if !job.SubmittedAt.IsZero() {
		resp.SubmittedAt = job.SubmittedAt.UTC().Format(time.RFC3339)
	}
	if !job.StartedAt.IsZero() {
		resp.StartedAt = job.StartedAt.UTC().Format(time.RFC3339)
	}
	if !job.CompletedAt.IsZero() {
		resp.CompletedAt = job.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toDecisionResponse(d scheduler.Decision) decisionResponse {
	resp := decisionResponse{
		EstimatedQueueMs: d.EstimatedQueueMs,
		Priority:         d.Priority,
		Cost:             d.Cost,
		Currency:         d.Currency,
		Confidence:       d.Confidence,
	}
	if d.Device != nil {
		resp.DeviceID = d.Device.ID
		resp.ProviderID = d.Device.ProviderID
	}
	if !d.EstimatedStart.IsZero() {
		resp.EstimatedStart = d.EstimatedStart.UTC().Format(time.RFC3339)
	}
	if !d.EstimatedCompletion.IsZero() {
		resp.EstimatedCompletion = d.EstimatedCompletion.UTC().Format(time.RFC3339)
	}
	return resp
}

func toDeviceResponse(d *v1.Device) deviceResponse {
	return deviceResponse{
		ID:                d.ID,
		ProviderID:        d.ProviderID,
		Name:              d.Name,
		Type:              string(d.Type),
		Status:            string(d.Status),
		Qubits:            d.QubitCount(),
		BasisGates:        d.BasisGates,
		MaxShots:          d.MaxShots,
		MaxConcurrentJobs: d.MaxConcurrentJobs,
		PendingJobs:       d.QueueInfo.PendingJobs,
		AverageWaitMs:     d.QueueInfo.AverageWaitMs,
		CostPerShot:       d.CostModel.CostPerShot,
		Currency:          d.CostModel.Currency,
	}
}
