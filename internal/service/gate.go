package service

import (
	"sync/atomic"

	"github.com/eduquery/eduquery/internal/domain"
)

// gate admits one request at a time; a second caller is turned away rather
// than queued.
type gate struct {
	busy atomic.Bool
}

func (g *gate) tryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *gate) release() {
	g.busy.Store(false)
}

func (g *gate) state() domain.RequestState {
	if g.busy.Load() {
		return domain.StateInFlight
	}
	return domain.StateIdle
}
