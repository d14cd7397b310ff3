// Package vehicle holds the flight-controller state the bridge reads: home
// altitude, current altitude above home and whether the motors are armed.
package vehicle

import (
	"sync"
	"time"
)

// Snapshot is the externally supplied vehicle state.
type Snapshot struct {
	Armed          bool      `json:"armed"`
	HomeAltCm      int32     `json:"home_alt_cm"`
	AltAboveHomeCm int32     `json:"alt_above_home_cm"`
	PositionOK     bool      `json:"position_ok"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// State is a concurrency-safe holder for the latest vehicle Snapshot.
type State struct {
	mu sync.RWMutex
	s  Snapshot
}

// NewState returns a disarmed vehicle with no position estimate.
func NewState() *State { return &State{} }

// Update replaces the vehicle state.
func (v *State) Update(s Snapshot) {
	v.mu.Lock()
	v.s = s
	v.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (v *State) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.s
}

// HomeAltCm implements bridge.PoseSource.
func (v *State) HomeAltCm() int32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.s.HomeAltCm
}

// AltAboveHomeCm implements bridge.PoseSource.
func (v *State) AltAboveHomeCm() (int32, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.s.AltAboveHomeCm, v.s.PositionOK
}

// Armed implements bridge.Motors.
func (v *State) Armed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.s.Armed
}
