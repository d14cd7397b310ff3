// Package planck is a bench stand-in for the Planck side of the link. It
// produces the telemetry a tracking controller would send for a handful of
// canned scenarios and reacts to the bridge's requests.
package planck

import (
	"fmt"
	"math"
	"sync"

	"github.com/signalsfoundry/planck-bridge/core"
	"github.com/signalsfoundry/planck-bridge/model"
)

// Scenario selects the deck behaviour the simulator plays back.
type Scenario string

const (
	// ScenarioHover keeps the tether slack and the tag tracked.
	ScenarioHover Scenario = "hover"
	// ScenarioHighTension locks the spool under high tension after the
	// onset step.
	ScenarioHighTension Scenario = "high-tension"
	// ScenarioCommsLoss stops deck tether reports after the onset step.
	ScenarioCommsLoss Scenario = "comms-loss"
)

const (
	// OnsetStep is the step at which scenario faults start.
	OnsetStep = 10
	// ArrivalSteps is how many steps after a move-target request Planck
	// reports arrival.
	ArrivalSteps = 5

	nominalTension = 20
	highTension    = 200
	tagDepthM      = 12
	orbitSpeedMS   = 1.0
)

// ParseScenario validates a scenario name.
func ParseScenario(s string) (Scenario, error) {
	switch sc := Scenario(s); sc {
	case ScenarioHover, ScenarioHighTension, ScenarioCommsLoss:
		return sc, nil
	default:
		return "", fmt.Errorf("unknown scenario %q", s)
	}
}

// Sim holds the simulated controller state. Safe for concurrent use.
type Sim struct {
	mu       sync.Mutex
	scenario Scenario
	step     int

	commanding  bool
	moveStep    int
	moving      bool
	takeoffStep int
	requests    map[model.RequestType]int
}

// New returns a simulator playing sc.
func New(sc Scenario) *Sim {
	return &Sim{
		scenario:    sc,
		commanding:  true,
		takeoffStep: -1,
		requests:    make(map[model.RequestType]int),
	}
}

// Step advances one tick and returns the frames Planck would send.
func (s *Sim) Step() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.step
	s.step++

	out := []model.Message{s.status(n), s.tagEstimate(n)}
	if s.commanding {
		out = append(out, s.command(n))
	}
	if tether, ok := s.tether(n); ok {
		out = append(out, tether)
	}
	return out
}

// OnRequest applies a request received from the bridge.
func (s *Sim) OnRequest(req model.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[req.Type]++
	switch req.Type {
	case model.RequestTakeoff:
		s.takeoffStep = s.step
	case model.RequestMoveTarget:
		s.moving = true
		s.moveStep = s.step
	case model.RequestStop:
		s.commanding = false
	case model.RequestLand, model.RequestRTB:
		s.moving = false
	}
}

// Requests returns how many requests of type t were received.
func (s *Sim) Requests(t model.RequestType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[t]
}

func (s *Sim) status(n int) model.StatusMessage {
	var m model.StatusMessage
	m.TakeoffReady = 1
	m.LandReady = 1
	m.Failsafe = model.FailsafeCommboxOK | model.FailsafeCommboxGPSOK
	m.Status = model.StatusTrackingTag | model.StatusTrackingCommboxGPS
	if s.takeoffStep >= 0 && n-s.takeoffStep >= 3 {
		m.TakeoffComplete = 1
	}
	if s.moving && n-s.moveStep >= ArrivalSteps {
		m.AtLocation = 1
	}
	return m
}

// command orbits the tag at a constant speed.
func (s *Sim) command(n int) model.CommandMessage {
	phase := float64(n) / 20 * 2 * math.Pi
	return model.CommandMessage{
		Vel: [3]float32{
			float32(orbitSpeedMS * math.Cos(phase)),
			float32(orbitSpeedMS * math.Sin(phase)),
			0,
		},
		TypeMask: core.MaskVelocity,
	}
}

func (s *Sim) tagEstimate(n int) model.TagEstimateMessage {
	return model.TagEstimateMessage{
		X:           float32(math.Sin(float64(n) / 10)),
		Z:           tagDepthM,
		TimestampUs: uint64(n) * 100_000,
	}
}

func (s *Sim) tether(n int) (model.TetherStatusMessage, bool) {
	m := model.TetherStatusMessage{
		CableOut:     150,
		SpoolStatus:  model.SpoolPayingOut,
		CableTension: nominalTension,
	}
	if n < OnsetStep {
		return m, true
	}
	switch s.scenario {
	case ScenarioHighTension:
		m.SpoolStatus = model.SpoolLocked
		m.CableTension = highTension
	case ScenarioCommsLoss:
		return model.TetherStatusMessage{}, false
	}
	return m, true
}
