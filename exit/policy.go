// Package exit decides when an open position should be closed and how its
// stop moves while it is open.
//
// A position moves OPEN -> BREAK_EVEN_ARMED -> PROFIT_LOCKED -> CLOSED. The
// stop never moves against the position: every adjustment goes through
// tighten, which only accepts a stop closer to the money.
package exit

import (
	"time"

	"github.com/rustyeddy/stratlab/ledger"
)

// eps absorbs float noise in percent comparisons (e.g. 450/45000*100).
const eps = 1e-9

type Config struct {
	BreakEvenPct   float64          `json:"break_even_pct" yaml:"break_even_pct"`     // arm break-even above this profit (0.5)
	TightTrailAt   float64          `json:"tight_trail_at" yaml:"tight_trail_at"`     // profit at which the tight trail applies (1.0)
	TightTrailPct  float64          `json:"tight_trail_pct" yaml:"tight_trail_pct"`   // trail distance above TightTrailAt (0.5)
	LooseTrailPct  float64          `json:"loose_trail_pct" yaml:"loose_trail_pct"`   // trail distance below TightTrailAt (1.0)
	Tier2Pct       float64          `json:"tier2_pct" yaml:"tier2_pct"`               // PROFIT_2_PCT (2.0)
	Tier3Pct       float64          `json:"tier3_pct" yaml:"tier3_pct"`               // PROFIT_3_PCT (3.0)
	RetracePct     float64          `json:"retrace_pct" yaml:"retrace_pct"`           // PROFIT_PROTECTION drop from peak (1.0)
	MaxHoldingBars int              `json:"max_holding_bars" yaml:"max_holding_bars"` // TIME_EXIT after this many bars, 0 disables
	Volatility     VolatilityConfig `json:"volatility" yaml:"volatility"`
}

func DefaultConfig() Config {
	return Config{
		BreakEvenPct:  0.5,
		TightTrailAt:  1.0,
		TightTrailPct: 0.5,
		LooseTrailPct: 1.0,
		Tier2Pct:      2.0,
		Tier3Pct:      3.0,
		RetracePct:    1.0,
		Volatility:    DefaultVolatilityConfig(),
	}
}

// Event is one audited transition or exit.
type Event struct {
	PositionID ledger.PositionID `json:"position_id"`
	Bar        int               `json:"bar"`
	Time       time.Time         `json:"time"`
	Kind       string            `json:"kind"`
	From       ledger.State      `json:"from"`
	To         ledger.State      `json:"to"`
	Price      float64           `json:"price"`
	Stop       float64           `json:"stop"`
	ProfitPct  float64           `json:"profit_pct"`
	Reason     ledger.ExitReason `json:"reason,omitempty"`
}

const (
	EventBreakEven = "break_even"
	EventTrail     = "trail"
	EventExit      = "exit"
)

// Quote is the bar the position is evaluated against. Exits and trailing use
// Close; High/Low (when set) feed the peak favorable price.
type Quote struct {
	Close float64
	High  float64
	Low   float64
}

// At is a Quote with no intrabar range.
func At(price float64) Quote {
	return Quote{Close: price, High: price, Low: price}
}

func (q Quote) extreme(side ledger.Side) float64 {
	if side == ledger.Long && q.High > 0 {
		return max(q.High, q.Close)
	}
	if side == ledger.Short && q.Low > 0 {
		return min(q.Low, q.Close)
	}
	return q.Close
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Exit   bool
	Reason ledger.ExitReason
	Events []Event
}

type Policy struct {
	cfg Config
}

func New(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

func (pol *Policy) Config() Config { return pol.cfg }

// Evaluate applies the exit rules to p for quote q on bar. It mutates p's
// stop, peak and state; the caller owns p (normally through ledger.Update).
//
// Rule order: stop loss, take-profit hint, time exit, break-even arming,
// percent tiers, retrace protection, trailing.
func (pol *Policy) Evaluate(p *ledger.Position, q Quote, bar int, at time.Time) Decision {
	var d Decision
	cfg := pol.cfg
	price := q.Close

	if x := q.extreme(p.Side); p.Favorable(x, p.Peak) {
		p.Peak = x
	}
	profit := p.ProfitPct(price)

	ev := func(kind string, to ledger.State, reason ledger.ExitReason) {
		d.Events = append(d.Events, Event{
			PositionID: p.ID,
			Bar:        bar,
			Time:       at,
			Kind:       kind,
			From:       p.State,
			To:         to,
			Price:      price,
			Stop:       p.Stop,
			ProfitPct:  profit,
			Reason:     reason,
		})
		p.State = to
	}
	exit := func(reason ledger.ExitReason) Decision {
		ev(EventExit, ledger.StateClosed, reason)
		d.Exit = true
		d.Reason = reason
		return d
	}

	if stopCrossed(p, price) {
		return exit(ledger.ReasonStopLoss)
	}
	if p.TakeProfit > 0 && !p.Favorable(p.TakeProfit, price) {
		return exit(ledger.ReasonSignal)
	}
	if cfg.MaxHoldingBars > 0 && bar-p.EntryBar >= cfg.MaxHoldingBars {
		return exit(ledger.ReasonTimeExit)
	}

	if !p.BreakEvenArmed && profit > cfg.BreakEvenPct+eps {
		p.BreakEvenArmed = true
		tighten(p, p.EntryPrice)
		ev(EventBreakEven, ledger.StateBreakEvenArmed, "")
	}
	if !p.BreakEvenArmed {
		return d
	}

	switch {
	case profit >= cfg.Tier3Pct-eps:
		return exit(ledger.ReasonProfit3Pct)
	case profit >= cfg.Tier2Pct-eps:
		return exit(ledger.ReasonProfit2Pct)
	}

	if profit > 0 && retracePct(p, price) >= cfg.RetracePct-eps {
		return exit(ledger.ReasonProfitProtection)
	}

	var trail float64
	switch {
	case profit >= cfg.TightTrailAt-eps:
		trail = cfg.TightTrailPct
	case profit >= cfg.BreakEvenPct-eps:
		trail = cfg.LooseTrailPct
	default:
		return d
	}
	if tighten(p, trailStop(p.Side, price, trail)) {
		p.ProfitLocked = true
		ev(EventTrail, ledger.StateProfitLocked, "")
	}
	return d
}

func stopCrossed(p *ledger.Position, price float64) bool {
	if p.Stop <= 0 {
		return false
	}
	if p.Side == ledger.Long {
		return price <= p.Stop
	}
	return price >= p.Stop
}

// retracePct is how far price has fallen back from the peak, in percent of
// the peak.
func retracePct(p *ledger.Position, price float64) float64 {
	if p.Peak <= 0 {
		return 0
	}
	return float64(p.Side) * (p.Peak - price) / p.Peak * 100
}

func trailStop(side ledger.Side, price, pct float64) float64 {
	return price * (1 - float64(side)*pct/100)
}

// tighten moves the stop to s only if that is closer to the money.
func tighten(p *ledger.Position, s float64) bool {
	if s <= 0 || !p.Tighter(s, p.Stop) {
		return false
	}
	p.Stop = s
	return true
}
