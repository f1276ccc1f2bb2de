package scheduler

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler is the C6 trade scheduler: fires a cycle callback on a jittered
// interval, guaranteeing at most one cycle in flight. Grounded on the
// teacher orchestrator's ticker-driven loop idiom (pollPriceFallback's
// `time.NewTicker` + `select` pattern in orchestrator.go), generalized with
// uniform jitter and a single-in-flight guard per spec §4.6.
type Scheduler struct {
	intervalMinutes int
	jitterSeconds   int
	firstRunNow     bool

	running int32 // atomic: 1 while a cycle is executing
	rng     *rand.Rand
}

// New builds a Scheduler. intervalMinutes and jitterSeconds are read fresh
// from configuration at construction; jitterSeconds of 0 disables jitter.
func New(intervalMinutes, jitterSeconds int, firstRunImmediate bool) *Scheduler {
	return &Scheduler{
		intervalMinutes: intervalMinutes,
		jitterSeconds:   jitterSeconds,
		firstRunNow:     firstRunImmediate,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Scheduler) nextInterval() time.Duration {
	base := time.Duration(s.intervalMinutes) * time.Minute
	if s.jitterSeconds <= 0 {
		return base
	}
	jitter := time.Duration(s.rng.Intn(2*s.jitterSeconds+1)-s.jitterSeconds) * time.Second
	return base + jitter
}

// Run invokes cycle on the jittered cadence until ctx is canceled. If
// firstRunImmediate was set, the first invocation happens immediately rather
// than waiting one interval. Cycles run on this goroutine and the timer for
// the next tick is armed only after the current cycle returns, so an
// overrunning cycle delays the next tick rather than queueing one; the
// running flag refuses (and logs) any cycle started while another is in
// flight.
func (s *Scheduler) Run(ctx context.Context, cycle func(context.Context)) {
	runCycle := func() {
		if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
			log.Warn().Msg("scheduler tick skipped: previous cycle still in flight")
			return
		}
		defer atomic.StoreInt32(&s.running, 0)
		cycle(ctx)
	}

	if s.firstRunNow {
		runCycle()
	}

	timer := time.NewTimer(s.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopping")
			return
		case <-timer.C:
			runCycle()
			timer.Reset(s.nextInterval())
		}
	}
}
