package bridge

import (
	"sync"

	"github.com/signalsfoundry/planck-bridge/model"
)

type tagStore struct {
	mu  sync.Mutex
	est model.TagEstimate
}

func (ts *tagStore) set(est model.TagEstimate) {
	ts.mu.Lock()
	ts.est = est
	ts.mu.Unlock()
}

func (ts *tagStore) snapshot() model.TagEstimate {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.est
}

// TagEstimate returns the latest landing tag estimate.
func (b *Bridge) TagEstimate() model.TagEstimate {
	return b.tag.snapshot()
}
