package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side: +1 long, -1 short
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return fmt.Sprintf("side(%d)", int8(s))
}

func (s Side) MarshalText() ([]byte, error) {
	if s != Long && s != Short {
		return nil, fmt.Errorf("ledger: invalid side %d", int8(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	}
	return 0, fmt.Errorf("ledger: unknown side %q", v)
}

// ExitReason is the closed taxonomy of reasons a position can be closed for.
type ExitReason string

const (
	ReasonStopLoss         ExitReason = "STOP_LOSS"
	ReasonProfit3Pct       ExitReason = "PROFIT_3_PCT"
	ReasonProfit2Pct       ExitReason = "PROFIT_2_PCT"
	ReasonProfitProtection ExitReason = "PROFIT_PROTECTION"
	ReasonTimeExit         ExitReason = "TIME_EXIT"
	ReasonBacktestEnd      ExitReason = "BACKTEST_END"
	ReasonSignal           ExitReason = "SIGNAL"
)

// ExitReasons lists the taxonomy in reporting order.
var ExitReasons = []ExitReason{
	ReasonStopLoss,
	ReasonProfit3Pct,
	ReasonProfit2Pct,
	ReasonProfitProtection,
	ReasonTimeExit,
	ReasonBacktestEnd,
	ReasonSignal,
}

func (r ExitReason) Valid() bool {
	for _, v := range ExitReasons {
		if r == v {
			return true
		}
	}
	return false
}

// State is the exit-management lifecycle of a position.
type State int8

const (
	StateOpen State = iota
	StateBreakEvenArmed
	StateProfitLocked
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateBreakEvenArmed:
		return "BREAK_EVEN_ARMED"
	case StateProfitLocked:
		return "PROFIT_LOCKED"
	case StateClosed:
		return "CLOSED"
	}
	return fmt.Sprintf("STATE(%d)", int8(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// PositionID is a stable arena index; IDs are never reused within a ledger.
type PositionID int64

// Position is one open simulated trade.
type Position struct {
	ID         PositionID `json:"id"`
	Symbol     string     `json:"symbol"`
	Side       Side       `json:"side"`
	EntryPrice float64    `json:"entry_price"`
	Size       float64    `json:"size"`
	EntryTime  time.Time  `json:"entry_time"`
	EntryBar   int        `json:"entry_bar"`

	Stop       float64 `json:"stop"`        // 0 means none
	TakeProfit float64 `json:"take_profit"` // 0 means none
	Peak       float64 `json:"peak"`        // best price seen in the position's favor

	BreakEvenArmed bool  `json:"break_even_armed"`
	ProfitLocked   bool  `json:"profit_locked"`
	State          State `json:"state"`

	notional decimal.Decimal
}

// ProfitPct is the direction-aware unrealized return in percent.
func (p *Position) ProfitPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return float64(p.Side) * (price - p.EntryPrice) / p.EntryPrice * 100
}

// UnrealizedPnL in quote currency at price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return float64(p.Side) * (price - p.EntryPrice) * p.Size
}

// Notional is the capital committed at entry (size * entry price).
func (p *Position) Notional() float64 {
	return p.notional.InexactFloat64()
}

// Value is what the position would return to cash if closed at price.
func (p *Position) Value(price float64) float64 {
	return p.value(price).InexactFloat64()
}

func (p *Position) value(price float64) decimal.Decimal {
	size := decimal.NewFromFloat(p.Size)
	if p.Side == Long {
		return size.Mul(decimal.NewFromFloat(price))
	}
	// Short: collateral back plus (entry - exit) * size.
	move := decimal.NewFromFloat(p.EntryPrice).Sub(decimal.NewFromFloat(price))
	return p.notional.Add(move.Mul(size))
}

// Favorable reports whether a is a better price than b for this side.
func (p *Position) Favorable(a, b float64) bool {
	if p.Side == Long {
		return a > b
	}
	return a < b
}

// Tighter reports whether stop a is tighter (closer to the money) than b.
// A zero b (no stop) is always looser.
func (p *Position) Tighter(a, b float64) bool {
	if b == 0 {
		return a != 0
	}
	return p.Favorable(a, b)
}

// Trade is an immutable closed-position record.
type Trade struct {
	ID         string     `json:"id"`
	PositionID PositionID `json:"position_id"`
	Symbol     string     `json:"symbol"`
	Side       Side       `json:"side"`
	Size       float64    `json:"size"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
	EntryBar   int        `json:"entry_bar"`
	ExitBar    int        `json:"exit_bar"`
	PnL        float64    `json:"pnl"`
	PnLPct     float64    `json:"pnl_pct"`
	Reason     ExitReason `json:"reason"`
}

func (t Trade) Win() bool { return t.PnL > 0 }

// HoldingBars is the number of bars between entry and exit.
func (t Trade) HoldingBars() int { return t.ExitBar - t.EntryBar }

// EquityPoint is the mark-to-market account value at one simulated bar.
type EquityPoint struct {
	Time          time.Time `json:"time"`
	Bar           int       `json:"bar"`
	Equity        float64   `json:"equity"`
	Cash          float64   `json:"cash"`
	OpenPositions int       `json:"open_positions"`
}

// Returns extracts per-trade percent returns in log order.
func Returns(trades []Trade) []float64 {
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.PnLPct
	}
	return out
}
