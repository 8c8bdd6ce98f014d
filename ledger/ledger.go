// Package ledger owns simulated positions and the closed-trade log.
//
// Positions live in an arena keyed by PositionID. Cash is held as a decimal so
// that every close returns exactly the committed capital plus realized P&L.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrDuplicatePosition   = errors.New("ledger: position already open for symbol")
	ErrCapacityExceeded    = errors.New("ledger: max open positions reached")
	ErrInsufficientCapital = errors.New("ledger: insufficient capital")
	ErrUnknownPosition     = errors.New("ledger: unknown position")
	ErrInvalidOrder        = errors.New("ledger: invalid order")
	ErrStopLoosened        = errors.New("ledger: stop may only tighten")
)

const DefaultMaxOpenPositions = 3

type Config struct {
	InitialCapital         float64
	MaxOpenPositions       int // 0 means DefaultMaxOpenPositions
	AllowMultiplePerSymbol bool
}

// Order is a request to open a position.
type Order struct {
	Symbol     string
	Side       Side
	Price      float64
	Size       float64
	Stop       float64 // 0 means none
	TakeProfit float64 // 0 means none
	Time       time.Time
	Bar        int
}

type Ledger struct {
	cfg     Config
	initial decimal.Decimal
	cash    decimal.Decimal

	open   map[PositionID]*Position
	nextID PositionID
	trades []Trade

	newID func(t time.Time) string
}

type Option func(*Ledger)

// WithTradeIDs sets the trade ID source. The default is a per-ledger counter.
func WithTradeIDs(fn func(t time.Time) string) Option {
	return func(l *Ledger) { l.newID = fn }
}

func New(cfg Config, opts ...Option) *Ledger {
	if cfg.MaxOpenPositions <= 0 {
		cfg.MaxOpenPositions = DefaultMaxOpenPositions
	}
	c := decimal.NewFromFloat(cfg.InitialCapital)
	l := &Ledger{
		cfg:     cfg,
		initial: c,
		cash:    c,
		open:    make(map[PositionID]*Position),
	}
	l.newID = func(time.Time) string { return fmt.Sprintf("T%06d", len(l.trades)+1) }
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) InitialCapital() float64 { return l.initial.InexactFloat64() }
func (l *Ledger) Cash() float64           { return l.cash.InexactFloat64() }
func (l *Ledger) CashDecimal() decimal.Decimal {
	return l.cash
}
func (l *Ledger) OpenCount() int { return len(l.open) }

// HasOpen reports whether any position for symbol is open.
func (l *Ledger) HasOpen(symbol string) bool {
	for _, p := range l.open {
		if p.Symbol == symbol {
			return true
		}
	}
	return false
}

// Open commits size*price of cash to a new position.
func (l *Ledger) Open(o Order) (PositionID, error) {
	if o.Symbol == "" || (o.Side != Long && o.Side != Short) {
		return 0, fmt.Errorf("%w: symbol and side are required", ErrInvalidOrder)
	}
	if !(o.Price > 0) || !(o.Size > 0) || math.IsInf(o.Price, 0) || math.IsInf(o.Size, 0) {
		return 0, fmt.Errorf("%w: price %.8f size %.8f", ErrInvalidOrder, o.Price, o.Size)
	}
	if o.Stop < 0 || o.TakeProfit < 0 {
		return 0, fmt.Errorf("%w: negative stop or take profit", ErrInvalidOrder)
	}
	if !l.cfg.AllowMultiplePerSymbol && l.HasOpen(o.Symbol) {
		return 0, fmt.Errorf("%w: %s", ErrDuplicatePosition, o.Symbol)
	}
	if len(l.open) >= l.cfg.MaxOpenPositions {
		return 0, fmt.Errorf("%w: %d open, max %d", ErrCapacityExceeded, len(l.open), l.cfg.MaxOpenPositions)
	}

	cost := decimal.NewFromFloat(o.Size).Mul(decimal.NewFromFloat(o.Price))
	if cost.GreaterThan(l.cash) {
		return 0, fmt.Errorf("%w: need %s, have %s", ErrInsufficientCapital, cost.StringFixed(2), l.cash.StringFixed(2))
	}

	l.nextID++
	p := &Position{
		ID:         l.nextID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		EntryPrice: o.Price,
		Size:       o.Size,
		EntryTime:  o.Time,
		EntryBar:   o.Bar,
		Stop:       o.Stop,
		TakeProfit: o.TakeProfit,
		Peak:       o.Price,
		State:      StateOpen,
		notional:   cost,
	}
	l.open[p.ID] = p
	l.cash = l.cash.Sub(cost)
	return p.ID, nil
}

// Close converts an open position into a Trade at exitPrice.
func (l *Ledger) Close(id PositionID, exitPrice float64, reason ExitReason, at time.Time, bar int) (Trade, error) {
	p, ok := l.open[id]
	if !ok {
		return Trade{}, fmt.Errorf("%w: %d", ErrUnknownPosition, id)
	}
	if !(exitPrice > 0) || math.IsInf(exitPrice, 0) {
		return Trade{}, fmt.Errorf("%w: exit price %.8f", ErrInvalidOrder, exitPrice)
	}
	if !reason.Valid() {
		return Trade{}, fmt.Errorf("%w: exit reason %q", ErrInvalidOrder, reason)
	}

	proceeds := p.value(exitPrice)
	pnl := proceeds.Sub(p.notional)

	pnlPct := 0.0
	if !p.notional.IsZero() {
		pnlPct = pnl.Div(p.notional).InexactFloat64() * 100
	}

	t := Trade{
		ID:         l.newID(at),
		PositionID: p.ID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		Size:       p.Size,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		EntryTime:  p.EntryTime,
		ExitTime:   at,
		EntryBar:   p.EntryBar,
		ExitBar:    bar,
		PnL:        pnl.InexactFloat64(),
		PnLPct:     pnlPct,
		Reason:     reason,
	}

	p.State = StateClosed
	delete(l.open, id)
	l.cash = l.cash.Add(proceeds)
	l.trades = append(l.trades, t)
	return t, nil
}

// Position returns a copy of an open position.
func (l *Ledger) Position(id PositionID) (Position, bool) {
	p, ok := l.open[id]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all open positions in ID order.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.open))
	for _, id := range l.OpenIDs() {
		out = append(out, *l.open[id])
	}
	return out
}

// OpenIDs returns the open position IDs in ascending (opening) order.
func (l *Ledger) OpenIDs() []PositionID {
	ids := make([]PositionID, 0, len(l.open))
	for id := range l.open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Update lets fn adjust the exit-management fields of an open position. The
// identity and sizing fields are restored afterwards, and a stop that moves
// against the position is rejected with ErrStopLoosened (other changes kept).
func (l *Ledger) Update(id PositionID, fn func(p *Position)) error {
	p, ok := l.open[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPosition, id)
	}
	before := *p
	fn(p)

	p.ID = before.ID
	p.Symbol = before.Symbol
	p.Side = before.Side
	p.EntryPrice = before.EntryPrice
	p.Size = before.Size
	p.EntryTime = before.EntryTime
	p.EntryBar = before.EntryBar
	p.notional = before.notional
	if p.State == StateClosed {
		// Only Close may finish a position.
		p.State = before.State
	}

	if p.Stop != before.Stop && !p.Tighter(p.Stop, before.Stop) {
		p.Stop = before.Stop
		return fmt.Errorf("%w: position %d", ErrStopLoosened, id)
	}
	return nil
}

// Trades returns a copy of the closed-trade log in exit order.
func (l *Ledger) Trades() []Trade {
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// MarkToMarket is the total value of open positions at prices. A symbol with
// no price is valued at its entry price.
func (l *Ledger) MarkToMarket(prices map[string]float64) float64 {
	return l.markToMarket(prices).InexactFloat64()
}

func (l *Ledger) markToMarket(prices map[string]float64) decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.open {
		px, ok := prices[p.Symbol]
		if !ok || !(px > 0) {
			total = total.Add(p.notional)
			continue
		}
		total = total.Add(p.value(px))
	}
	return total
}

// Equity is cash plus the mark-to-market value of open positions.
func (l *Ledger) Equity(prices map[string]float64) float64 {
	return l.cash.Add(l.markToMarket(prices)).InexactFloat64()
}

// Snapshot builds an EquityPoint at the given prices.
func (l *Ledger) Snapshot(at time.Time, bar int, prices map[string]float64) EquityPoint {
	return EquityPoint{
		Time:          at,
		Bar:           bar,
		Equity:        l.Equity(prices),
		Cash:          l.Cash(),
		OpenPositions: len(l.open),
	}
}
