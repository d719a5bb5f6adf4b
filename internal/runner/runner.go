package runner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/matchsim/internal/engine"
	"github.com/stitts-dev/matchsim/internal/websocket"
)

// Runner owns an engine instance and serializes access to it. The engine is
// single-threaded by contract; the runner is the one place that bridges it
// to the concurrent HTTP world.
type Runner struct {
	eng    *engine.Engine
	hub    *websocket.Hub
	logger *logrus.Logger

	// requests serializes every engine interaction onto the run loop.
	requests chan func()
	pace     time.Duration
}

// New wraps an engine for concurrent hosting. The hub is optional.
func New(eng *engine.Engine, hub *websocket.Hub, pace time.Duration, logger *logrus.Logger) *Runner {
	return &Runner{
		eng:      eng,
		hub:      hub,
		logger:   logger,
		requests: make(chan func(), 16),
		pace:     pace,
	}
}

// Run advances the engine until the context is cancelled, interleaving read
// requests between ticks. A zero pace runs ticks back to back.
func (r *Runner) Run(ctx context.Context) {
	var ticker *time.Ticker
	var tickCh <-chan time.Time
	if r.pace > 0 {
		ticker = time.NewTicker(r.pace)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	for {
		if r.pace == 0 {
			select {
			case <-ctx.Done():
				return
			case req := <-r.requests:
				req()
			default:
				r.step()
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case req := <-r.requests:
			req()
		case <-tickCh:
			r.step()
		}
	}
}

func (r *Runner) step() {
	if err := r.eng.Tick(); err != nil {
		r.logger.WithError(err).Error("Tick failed")
		return
	}
	if r.hub != nil {
		series := r.eng.TimeSeries()
		if len(series) > 0 {
			r.hub.BroadcastToAll(series[len(series)-1])
		}
	}
}

// do runs fn on the run loop and waits for it
func (r *Runner) do(fn func()) {
	done := make(chan struct{})
	r.requests <- func() {
		fn()
		close(done)
	}
	<-done
}

// Stats returns the engine's aggregate snapshot
func (r *Runner) Stats() engine.Snapshot {
	var snap engine.Snapshot
	r.do(func() { snap = r.eng.Stats() })
	return snap
}

// BucketStats returns the per-skill-bucket rows
func (r *Runner) BucketStats() []engine.BucketStat {
	var rows []engine.BucketStat
	r.do(func() { rows = r.eng.BucketStats() })
	return rows
}

// SkillDistribution returns the raw-skill histogram
func (r *Runner) SkillDistribution() []engine.HistBin {
	var bins []engine.HistBin
	r.do(func() { bins = r.eng.SkillDistribution() })
	return bins
}

// SearchTimeHistogram returns the rolling search-time histogram
func (r *Runner) SearchTimeHistogram() []engine.HistBin {
	var bins []engine.HistBin
	r.do(func() { bins = r.eng.SearchTimeHistogram() })
	return bins
}

// DeltaPingHistogram returns the rolling delta-ping histogram
func (r *Runner) DeltaPingHistogram() []engine.HistBin {
	var bins []engine.HistBin
	r.do(func() { bins = r.eng.DeltaPingHistogram() })
	return bins
}

// TimeSeries returns the per-tick snapshot ring
func (r *Runner) TimeSeries() []engine.TickSnapshot {
	var series []engine.TickSnapshot
	r.do(func() { series = r.eng.TimeSeries() })
	return series
}
