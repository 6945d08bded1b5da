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

package v1

import (
	"time"

	"github.com/samber/lo"

	"github.com/amirewontmiss/eigenos/pkg/quantum/topology"
)

type DeviceType string

const (
	DeviceSimulator       DeviceType = "simulator"
	DeviceSuperconducting DeviceType = "superconducting"
	DeviceIonTrap         DeviceType = "ion-trap"
	DevicePhotonic        DeviceType = "photonic"
	DeviceNeutralAtom     DeviceType = "neutral-atom"
	DeviceTopological     DeviceType = "topological"
)

type DeviceStatus string

const (
	DeviceOnline      DeviceStatus = "online"
	DeviceMaintenance DeviceStatus = "maintenance"
	DeviceOffline     DeviceStatus = "offline"
	DeviceCalibrating DeviceStatus = "calibrating"
	DeviceError       DeviceStatus = "error"
)

// Calibration is the most recent calibration snapshot for a device.
type Calibration struct {
	Timestamp time.Time
	// GateErrors maps "<gate>:<qubit>" (or "<gate>:<q1>-<q2>") to an error rate.
	GateErrors map[string]float64
	// ReadoutErrors is indexed by qubit.
	ReadoutErrors []float64
	// Coherence times in microseconds, indexed by qubit.
	T1 []float64
	T2 []float64
	// T2Star is optional and may be nil.
	T2Star []float64
	// Crosstalk[i][j] is the crosstalk factor between qubits i and j.
	Crosstalk [][]float64
	// GateDurations maps gate name to duration in nanoseconds.
	GateDurations map[string]float64
}

type QueueInfo struct {
	PendingJobs   int
	AverageWaitMs float64
	Priority      int
}

type CostModel struct {
	CostPerShot   float64
	CostPerSecond float64
	MinimumCost   float64
	Currency      string
}

// Device describes one quantum backend as reported by its provider. The
// supervisor owns the authoritative catalog; everything else works on
// snapshots.
type Device struct {
	ID           string
	ProviderID   string
	ProviderName string
	Name         string
	Version      string
	Type         DeviceType
	Status       DeviceStatus

	Topology          *topology.Graph
	BasisGates        []string
	MaxShots          int
	MaxExperiments    int
	MaxConcurrentJobs int
	SimulationCapable bool

	Calibration *Calibration
	QueueInfo   QueueInfo
	CostModel   CostModel
}

// QubitCount returns the device's physical qubit count.
func (d *Device) QubitCount() int {
	if d.Topology == nil {
		return 0
	}
	return d.Topology.Qubits()
}

// SupportsGates reports whether every named gate is in the basis set.
func (d *Device) SupportsGates(names []string) bool {
	return lo.Every(d.BasisGates, names)
}

// statusWeights drive the health score; offline and error devices score zero.
var statusWeights = map[DeviceStatus]float64{
	DeviceOnline:      1.0,
	DeviceCalibrating: 0.7,
	DeviceMaintenance: 0.3,
	DeviceOffline:     0.0,
	DeviceError:       0.0,
}

// HealthScore composes device status, queue pressure and calibration age
// into [0,1]. Queue pressure saturates at a 50% penalty, calibration age at
// 30% after 24 hours.
func (d *Device) HealthScore(now time.Time) float64 {
	w := statusWeights[d.Status]
	if w == 0 {
		return 0
	}
	queuePenalty := float64(d.QueueInfo.PendingJobs) / 100
	if queuePenalty > 0.5 {
		queuePenalty = 0.5
	}
	calPenalty := 0.0
	if d.Calibration != nil {
		calPenalty = now.Sub(d.Calibration.Timestamp).Hours() / 24
		if calPenalty > 0.3 {
			calPenalty = 0.3
		}
		if calPenalty < 0 {
			calPenalty = 0
		}
	}
	return w * (1 - queuePenalty) * (1 - calPenalty)
}

// AvgGateError averages the known gate-error entries, defaulting to 0.01
// when calibration data is missing.
func (d *Device) AvgGateError() float64 {
	if d.Calibration == nil || len(d.Calibration.GateErrors) == 0 {
		return 0.01
	}
	return lo.Sum(lo.Values(d.Calibration.GateErrors)) / float64(len(d.Calibration.GateErrors))
}

// AvgReadoutError averages the per-qubit readout errors, defaulting to 0.
func (d *Device) AvgReadoutError() float64 {
	if d.Calibration == nil || len(d.Calibration.ReadoutErrors) == 0 {
		return 0
	}
	return lo.Sum(d.Calibration.ReadoutErrors) / float64(len(d.Calibration.ReadoutErrors))
}
