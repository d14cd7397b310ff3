package bridge

import (
	"sync"
	"time"

	"github.com/signalsfoundry/planck-bridge/model"
)

type statusStore struct {
	mu sync.Mutex
	s  model.Status
}

// update replaces the flags from m and reports whether AtLocation rose.
func (st *statusStore) update(m model.StatusMessage, now time.Time) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	prevAt := st.s.AtLocation
	latched := st.s.WasAtLocation

	st.s = model.Status{
		TakeoffReady:       m.TakeoffReady != 0,
		LandReady:          m.LandReady != 0,
		CommboxOK:          m.Failsafe&model.FailsafeCommboxOK != 0,
		CommboxGPSOK:       m.Failsafe&model.FailsafeCommboxGPSOK != 0,
		TrackingTag:        m.Status&model.StatusTrackingTag != 0,
		TrackingCommboxGPS: m.Status&model.StatusTrackingCommboxGPS != 0,
		TakeoffComplete:    m.TakeoffComplete != 0,
		AtLocation:         m.AtLocation != 0,
		UpdatedAt:          now,
		WasAtLocation:      latched,
	}

	rose := !prevAt && st.s.AtLocation
	if rose {
		st.s.WasAtLocation = true
	}
	return rose
}

func (st *statusStore) snapshot() model.Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

func (st *statusStore) takeArrival() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	was := st.s.WasAtLocation
	st.s.WasAtLocation = false
	return was
}

func (st *statusStore) clearArrival() {
	st.mu.Lock()
	st.s.WasAtLocation = false
	st.mu.Unlock()
}

// Status returns the latest readiness report.
func (b *Bridge) Status() model.Status {
	return b.status.snapshot()
}

// ReadyForTakeoff reports whether Planck accepts a takeoff request.
func (b *Bridge) ReadyForTakeoff() bool { return b.status.snapshot().TakeoffReady }

// ReadyForLand reports whether Planck accepts a land request.
func (b *Bridge) ReadyForLand() bool { return b.status.snapshot().LandReady }

// TakeoffComplete reports whether Planck considers the takeoff finished.
func (b *Bridge) TakeoffComplete() bool { return b.status.snapshot().TakeoffComplete }

// AtLocation reports the instantaneous at-location flag.
func (b *Bridge) AtLocation() bool { return b.status.snapshot().AtLocation }

// CommboxOK reports whether the commbox link is healthy.
func (b *Bridge) CommboxOK() bool { return b.status.snapshot().CommboxOK }

// TagTrackingOK reports whether Planck currently sees the landing tag.
func (b *Bridge) TagTrackingOK() bool { return b.status.snapshot().TrackingTag }

// ConsumeArrival returns the was-at-location latch and clears it, so an
// arrival is reported exactly once.
func (b *Bridge) ConsumeArrival() bool {
	return b.status.takeArrival()
}
