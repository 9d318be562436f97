package market

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/nemwatch/internal/common"
	"github.com/bobmcallan/nemwatch/internal/interfaces"
)

// NEMWEB publication timing is predictable: nothing new appears until
// shortly after a 5-minute boundary. The poller exploits that by sleeping
// through the known-idle stretch, tightening as the boundary approaches,
// and polling hard once a file is actually due.
const (
	waitInterval      = 45 * time.Second
	preActiveInterval = 5 * time.Second
	activeInterval    = 1 * time.Second

	// Offsets from period end bounding the PreActive window. Files are
	// never published earlier than ~15s past the boundary.
	preActiveLead   = -10 * time.Second
	activeThreshold = 15 * time.Second
)

// Mode is the polling scheduler's state.
type Mode int

const (
	ModeWait Mode = iota
	ModePreActive
	ModeActive
)

func (m Mode) String() string {
	switch m {
	case ModeWait:
		return "wait"
	case ModePreActive:
		return "pre_active"
	case ModeActive:
		return "active"
	default:
		return "unknown"
	}
}

// PollState is the scheduler's full timing state, passed into and returned
// from each tick so the transition logic is a pure function of (state, now).
type PollState struct {
	Mode        Mode
	PeriodEnd   time.Time // next expected publication boundary; zero = unknown
	ActivePolls int       // fetch attempts since entering the current state
	Ticks       int       // total ticks since start
	// PredispatchPending marks that the coarse predispatch feed should be
	// tried on the next fetch: set at start and on each Active entry, so
	// predispatch is attempted once per Active window rather than every
	// second.
	PredispatchPending bool
}

// NewPollState returns the scheduler's starting state: Active with no known
// period boundary, so polling begins immediately and the first tick also
// attempts predispatch.
func NewPollState() PollState {
	return PollState{Mode: ModeActive, PredispatchPending: true}
}

// Decision is what one tick should do.
type Decision struct {
	Fetch            bool
	FetchPredispatch bool
	Interval         time.Duration // next tick's delay
	Transitioned     bool
}

// NextTick advances the scheduler state for a tick at instant now.
//
// With period end known, the tick falls into one of three windows relative
// to it: more than 10s before (Wait, 45s ticks, no fetch), from 10s before
// to 15s after (PreActive, 5s ticks, no fetch; files never appear this
// early), or beyond 15s after (Active, 1s ticks, full fetch). With no known
// period end the scheduler stays Active to bootstrap.
func NextTick(s PollState, now time.Time) (PollState, Decision) {
	ns := s
	ns.Ticks++

	mode := ModeActive
	d := Decision{Fetch: true, Interval: activeInterval}

	if !s.PeriodEnd.IsZero() {
		delta := now.Sub(s.PeriodEnd)
		switch {
		case delta < preActiveLead:
			mode = ModeWait
			d = Decision{Interval: waitInterval}
		case delta < activeThreshold:
			mode = ModePreActive
			d = Decision{Interval: preActiveInterval}
		}
	}

	if mode != s.Mode {
		d.Transitioned = true
		ns.ActivePolls = 0
		if mode == ModeActive {
			ns.PredispatchPending = true
		}
		ns.Mode = mode
	}

	if d.Fetch {
		ns.ActivePolls++
		d.FetchPredispatch = ns.PredispatchPending
		ns.PredispatchPending = false
	}

	return ns, d
}

// Poller drives the market service with a self-adjusting tick loop. A
// single goroutine runs all ticks sequentially, so fetch cycles never
// overlap across ticks.
type Poller struct {
	service interfaces.MarketService
	logger  *common.Logger
	now     func() time.Time

	mu    sync.Mutex
	state PollState

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller for the given market service.
func NewPoller(service interfaces.MarketService, logger *common.Logger) *Poller {
	return &Poller{
		service: service,
		logger:  logger,
		now:     time.Now,
		state:   NewPollState(),
	}
}

// State returns a copy of the current scheduler state.
func (p *Poller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) setState(s PollState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Start launches the tick loop in the background. The first tick fires
// immediately.
func (p *Poller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx)

	p.logger.Info().Str("region", p.service.Region()).Msg("Market poller started")
}

// Stop cancels the tick loop and waits for the in-flight tick to finish.
// Safe to call more than once.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.logger.Info().Msg("Market poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			timer.Reset(p.tick(ctx))
		}
	}
}

// tick evaluates the state machine once and returns the delay until the
// next tick. Errors never escape: a failed tick is retried by the next one.
func (p *Poller) tick(ctx context.Context) time.Duration {
	state, decision := NextTick(p.State(), p.now())

	if decision.Transitioned {
		p.logger.Info().
			Str("mode", state.Mode.String()).
			Time("period_end", state.PeriodEnd).
			Msg("Poller state transition")
	}

	if decision.Fetch {
		result, err := p.service.Refresh(ctx, decision.FetchPredispatch)
		if err != nil {
			// Hard failure of the fetch subsystem; the next tick retries.
			p.logger.Error().Err(err).Int("tick", state.Ticks).Msg("Poll tick failed")
		} else {
			if result.NewData {
				// Found what this Active window was waiting for; the next
				// tick's delta computation will settle back toward Wait.
				state.ActivePolls = 0
				p.logger.Info().Int("tick", state.Ticks).Msg("New market data collected")
			}
			if !result.PeriodAnchor.IsZero() {
				state.PeriodEnd = common.NextPeriodEnd(result.PeriodAnchor)
			}
		}
	}

	p.setState(state)
	return decision.Interval
}
