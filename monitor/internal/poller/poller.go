package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitalwatch/vitalwatch/monitor/internal/classify"
	"github.com/vitalwatch/vitalwatch/monitor/internal/fetcher"
	"github.com/vitalwatch/vitalwatch/monitor/internal/metrics"
	"github.com/vitalwatch/vitalwatch/pkg/types"
)

// uptimeWindow is the number of recent cycle outcomes tracked for uptime %.
const uptimeWindow = 20

// Window is the reading store the poller appends to.
type Window interface {
	Append(types.Reading)
	Snapshot() []types.Reading
	Len() int
}

// Cycle is the outcome of one completed poll cycle.
type Cycle struct {
	At     time.Time
	Status types.Status
	Err    error

	// Reading and Result are set only when Status is connected.
	Reading *types.Reading
	Result  *types.ClassificationResult

	// ConsecutiveFailures counts back-to-back cycles that were not connected,
	// including this one.
	ConsecutiveFailures int
}

// Options configures a Poller.
type Options struct {
	Interval    time.Duration
	LabelLayout string

	// Now is injectable so tests control reading timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Poller owns the window and the latest classification.
//
// All exported methods are safe for concurrent use.
type Poller struct {
	fetcher fetcher.Fetcher
	window  Window
	opts    Options

	inFlight atomic.Bool
	wg       sync.WaitGroup

	mu                  sync.RWMutex
	state               types.State
	history             []bool // circular buffer of cycle outcomes, newest last
	consecutiveFailures int
	subscribers         []func(Cycle)
}

// New returns a Poller that fetches with f and appends to w.
func New(f fetcher.Fetcher, w Window, opts Options) *Poller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LabelLayout == "" {
		opts.LabelLayout = "15:04:05"
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	return &Poller{
		fetcher: f,
		window:  w,
		opts:    opts,
		state: types.State{
			Status:        types.StatusPending,
			StatusMessage: types.StatusPending.Message(),
			UptimePct:     100,
		},
	}
}

// Subscribe registers fn to be called after every completed cycle.
// fn runs on the cycle goroutine and must not block.
func (p *Poller) Subscribe(fn func(Cycle)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Run polls until ctx is cancelled, then waits for any in-flight cycle.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.opts.Interval)
	defer t.Stop()

	p.launch(ctx)
	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return
		case <-t.C:
			p.launch(ctx)
		}
	}
}

// launch starts a cycle on its own goroutine unless one is already running.
func (p *Poller) launch(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skip()
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)
		p.cycle(ctx)
	}()
}

// TryCycle runs one cycle synchronously if none is in flight. It returns the
// completed cycle and true, or a zero Cycle and false if the call was skipped.
func (p *Poller) TryCycle(ctx context.Context) (Cycle, bool) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skip()
		return Cycle{}, false
	}
	defer p.inFlight.Store(false)
	return p.cycle(ctx), true
}

func (p *Poller) skip() {
	p.mu.Lock()
	p.state.Skipped++
	p.mu.Unlock()
	metrics.ObserveCycle(metrics.OutcomeSkipped, 0)
	slog.Debug("poller: previous cycle still in flight, skipping tick")
}

// cycle performs one fetch → validate → append → classify pass.
func (p *Poller) cycle(ctx context.Context) Cycle {
	at := p.opts.Now()
	c := Cycle{At: at}

	start := time.Now()
	sample, err := p.fetcher.Fetch(ctx)
	elapsed := time.Since(start)

	var invalid error
	if err == nil {
		invalid = sample.Validate()
	}

	switch {
	case err != nil:
		c.Status = types.StatusConnectionFailed
		c.Err = err
		slog.Warn("poller: fetch failed", "err", err)

	case invalid != nil:
		// All-or-nothing: a single bad vital rejects the whole cycle.
		c.Status = types.StatusInvalidData
		c.Err = invalid
		slog.Warn("poller: invalid data from source", "err", invalid)

	default:
		r := types.Reading{
			Label:       at.Format(p.opts.LabelLayout),
			At:          at,
			SpO2:        sample.SpO2,
			HeartRate:   sample.HeartRate,
			Temperature: sample.Temperature,
		}
		p.window.Append(r)
		res := classify.Classify(r.HeartRate, r.SpO2, r.Temperature)
		c.Status = types.StatusConnected
		c.Reading = &r
		c.Result = &res
		metrics.ObserveReading(r, res.Tier, p.window.Len())
	}
	metrics.ObserveCycle(string(c.Status), elapsed)

	subs := p.record(&c)
	for _, fn := range subs {
		fn(c)
	}
	return c
}

// record folds c into the poller state and returns the subscriber list.
func (p *Poller) record(c *Cycle) []func(Cycle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ok := c.Status == types.StatusConnected
	if len(p.history) >= uptimeWindow {
		p.history = p.history[1:]
	}
	p.history = append(p.history, ok)

	if ok {
		p.consecutiveFailures = 0
	} else {
		p.consecutiveFailures++
	}
	c.ConsecutiveFailures = p.consecutiveFailures

	prevTier := p.state.Tier()

	p.state.Status = c.Status
	p.state.StatusMessage = c.Status.Message()
	p.state.LastCycleAt = c.At
	p.state.Cycles++
	p.state.UptimePct = p.uptimePct()
	p.state.Error = ""
	if c.Err != nil {
		p.state.Error = c.Err.Error()
	}
	if ok {
		r := *c.Reading
		res := *c.Result
		p.state.Latest = &r
		p.state.Classification = &res
		if res.Tier != prevTier {
			slog.Info("poller: risk tier changed",
				"from", prevTier,
				"to", res.Tier,
				"heart_rate", r.HeartRate,
				"spo2", r.SpO2,
				"temperature", r.Temperature,
			)
		} else {
			slog.Debug("poller: cycle complete", "tier", res.Tier)
		}
	}

	subs := make([]func(Cycle), len(p.subscribers))
	copy(subs, p.subscribers)
	return subs
}

func (p *Poller) uptimePct() float64 {
	if len(p.history) == 0 {
		return 100 // assume up before first observation
	}
	var ok int
	for _, s := range p.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(p.history)) * 100
}

// State returns a copy of the current poller state.
func (p *Poller) State() types.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.state
	if s.Latest != nil {
		r := *s.Latest
		s.Latest = &r
	}
	if s.Classification != nil {
		res := *s.Classification
		res.Triggers = append([]string(nil), res.Triggers...)
		s.Classification = &res
	}
	return s
}

// Readings returns the current window contents, oldest first.
func (p *Poller) Readings() []types.Reading {
	return p.window.Snapshot()
}
