// Package backtest runs a strategy over a bar series against a simulated
// ledger, sizing entries and managing exits on every bar.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/stratlab/exit"
	"github.com/rustyeddy/stratlab/indicators"
	"github.com/rustyeddy/stratlab/internal/id"
	"github.com/rustyeddy/stratlab/ledger"
	"github.com/rustyeddy/stratlab/market"
	"github.com/rustyeddy/stratlab/risk"
)

type Engine struct {
	cfg Config
	log zerolog.Logger
	rec Recorder
}

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.rec = r
		}
	}
}

func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, log: zerolog.Nop(), rec: nopRecorder{}}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Run simulates strat over s. A series no longer than the warm-up returns a
// flagged empty Result together with ErrInsufficientData. Malformed bars are
// fatal. Strategy errors are recorded on the Result and the bar's signal is
// skipped.
//
// The run is deterministic in (s, strat, params, Config): nothing inside it
// reads the wall clock except the Recorder's elapsed time.
func (e *Engine) Run(ctx context.Context, s *market.Series, strat Strategy, params Params) (res *Result, err error) {
	if strat == nil {
		return nil, fmt.Errorf("backtest: Strategy is required")
	}
	if s == nil {
		return nil, fmt.Errorf("backtest: Series is required")
	}

	started := time.Now()
	simulated := 0
	defer func() {
		e.rec.RunFinished(strat.Name(), simulated, time.Since(started), err)
	}()

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedData, err)
	}
	if v, ok := strat.(ParamValidator); ok {
		if err := v.ValidateParams(params); err != nil {
			return nil, fmt.Errorf("backtest: %s params: %w", strat.Name(), err)
		}
	}

	res = &Result{
		Symbol:         s.Symbol,
		Strategy:       strat.Name(),
		Params:         params.Clone(),
		InitialCapital: e.cfg.InitialCapital,
		Start:          s.Start(),
		End:            s.End(),
	}

	log := e.log.With().
		Str("strategy", strat.Name()).
		Str("symbol", s.Symbol).
		Str("params", params.String()).
		Logger()

	n, warm := s.Len(), e.cfg.WarmupBars
	if n <= warm {
		res.InsufficientData = true
		log.Warn().Int("bars", n).Int("warmup", warm).Msg("skipping run: not enough bars")
		return res, fmt.Errorf("%w: %d bars, need more than %d", ErrInsufficientData, n, warm)
	}

	r := e.newRun(s, strat, params, res, log)
	for i := 0; i < warm; i++ {
		r.observe(s.Bars[i])
	}
	for i := warm; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("backtest: %w", err)
		}
		r.step(i)
		simulated++
	}
	r.finish()
	res.Bars = simulated

	log.Debug().
		Int("bars", simulated).
		Int("trades", len(res.Trades)).
		Float64("final_equity", res.FinalEquity()).
		Msg("run complete")
	return res, nil
}

// run is the state of one simulation.
type run struct {
	cfg   Config
	log   zerolog.Logger
	rec   Recorder
	strat Strategy

	params Params
	symbol string
	bars   []market.Bar

	led *ledger.Ledger
	pol *exit.Policy
	atr *indicators.ATR
	adx *indicators.ADX

	peak float64
	res  *Result
}

func (e *Engine) newRun(s *market.Series, strat Strategy, params Params, res *Result, log zerolog.Logger) *run {
	gen := id.NewGenerator(e.cfg.Seed)
	return &run{
		cfg:    e.cfg,
		log:    log,
		rec:    e.rec,
		strat:  strat,
		params: params,
		symbol: s.Symbol,
		bars:   s.Bars,
		led: ledger.New(ledger.Config{
			InitialCapital:   e.cfg.InitialCapital,
			MaxOpenPositions: e.cfg.MaxOpenPositions,
		}, ledger.WithTradeIDs(gen.At)),
		pol:  exit.New(e.cfg.Exit),
		atr:  indicators.NewATR(e.cfg.ATRPeriod),
		adx:  indicators.NewADX(e.cfg.ADXPeriod),
		peak: e.cfg.InitialCapital,
		res:  res,
	}
}

func (r *run) observe(b market.Bar) {
	r.atr.Update(b)
	r.adx.Update(b)
}

// step simulates bar i: strategy signal, then exits, then the equity point.
func (r *run) step(i int) {
	b := r.bars[i]
	r.observe(b)

	// Full-slice expression: the strategy cannot append into later bars.
	prefix := r.bars[: i+1 : i+1]
	sig, err := r.evaluate(prefix, i)
	if err != nil {
		var se *StrategyEvaluationError
		if errors.As(err, &se) {
			r.res.StrategyErrors = append(r.res.StrategyErrors, se)
		}
		r.rec.StrategyError(r.strat.Name())
		r.log.Warn().Err(err).Int("bar", i).Msg("strategy evaluation failed, skipping bar")
	} else {
		r.signal(sig, i)
	}

	r.manageExits(i)

	pt := r.led.Snapshot(b.Time, i, r.prices(b))
	if pt.Equity > r.peak {
		r.peak = pt.Equity
	}
	r.res.Equity = append(r.res.Equity, pt)
}

func (r *run) evaluate(prefix []market.Bar, i int) (sig Signal, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &StrategyEvaluationError{
				Strategy: r.strat.Name(),
				Bar:      i,
				Time:     r.bars[i].Time,
				Err:      fmt.Errorf("panic: %v", p),
			}
		}
	}()

	sig, err = r.strat.Evaluate(prefix, r.params)
	if err != nil {
		return Signal{}, &StrategyEvaluationError{Strategy: r.strat.Name(), Bar: i, Time: r.bars[i].Time, Err: err}
	}
	return sig, nil
}

func (r *run) signal(sig Signal, i int) {
	var side ledger.Side
	switch sig.Action {
	case ActionBuy:
		side = ledger.Long
	case ActionSell:
		side = ledger.Short
	default:
		return
	}

	// An opposite signal closes; it never reverses on the same bar.
	if r.led.HasOpen(r.symbol) {
		for _, p := range r.led.Positions() {
			if p.Symbol == r.symbol && p.Side != side {
				r.close(p.ID, r.bars[i].Close, ledger.ReasonSignal, i)
			}
		}
		return
	}
	if side == ledger.Short && !r.cfg.AllowShort {
		return
	}
	r.enter(side, sig, i)
}

func (r *run) enter(side ledger.Side, sig Signal, i int) {
	b := r.bars[i]
	price := b.Close

	widths := r.widths(price)
	stop := widths.StopPrice(side, price)
	if sig.Stop > 0 {
		stop = sig.Stop
	}
	var take float64
	if r.cfg.TakeProfit {
		take = widths.TakePrice(side, price)
	}
	if sig.TakeProfit > 0 {
		take = sig.TakeProfit
	}

	size, frac := r.size(price, stop)
	if size <= 0 {
		r.reject(i, "zero size", zerolog.Dict().Float64("fraction", frac))
		return
	}

	equity := r.led.Equity(r.prices(b))
	pol := r.cfg.Risk
	pol.MaxOpenPositions = r.cfg.MaxOpenPositions
	d := risk.Evaluate(pol, risk.TradeIntent{
		Time:       b.Time,
		Symbol:     r.symbol,
		Side:       side,
		Size:       size,
		Entry:      price,
		Stop:       stop,
		TakeProfit: take,
	}, risk.AccountSnapshot{
		Cash:          r.led.Cash(),
		Equity:        equity,
		PeakEquity:    r.peak,
		OpenPositions: r.led.OpenCount(),
	})
	if !d.Allowed {
		r.reject(i, d.String(), zerolog.Dict().Float64("size", size).Float64("stop", stop))
		return
	}

	pid, err := r.led.Open(ledger.Order{
		Symbol:     r.symbol,
		Side:       side,
		Price:      price,
		Size:       size,
		Stop:       stop,
		TakeProfit: take,
		Time:       b.Time,
		Bar:        i,
	})
	if err != nil {
		r.reject(i, err.Error(), zerolog.Dict().Float64("size", size))
		return
	}

	r.log.Debug().
		Int64("position", int64(pid)).
		Int("bar", i).
		Str("side", side.String()).
		Float64("price", price).
		Float64("size", size).
		Float64("stop", stop).
		Float64("take", take).
		Str("regime", string(widths.Regime)).
		Float64("fraction", frac).
		Msg("open")
}

func (r *run) reject(i int, why string, fields *zerolog.Event) {
	r.res.Rejected++
	r.log.Debug().Int("bar", i).Dict("entry", fields).Str("reason", why).Msg("entry rejected")
}

// widths picks stop and take-profit distances from the current volatility
// and trend context.
func (r *run) widths(price float64) exit.Widths {
	var m exit.Market
	if r.cfg.DynamicStops {
		if r.atr.Ready() && price > 0 {
			m.ATRPct = r.atr.Value() / price * 100
		}
		if r.adx.Ready() {
			m.ADX = r.adx.Value()
		}
	}
	return r.pol.Widths(m)
}

// size returns the position size in base units and the fraction of cash it
// represents. Sizes are truncated to 8 decimals so that size*price never
// exceeds the cash it was derived from.
func (r *run) size(price, stop float64) (float64, float64) {
	cash := r.led.CashDecimal()
	var frac float64
	switch r.cfg.Sizing {
	case SizingKelly:
		frac = r.cfg.Kelly.Size(r.led.Trades(), r.cfg.InitialCapital).Fraction
	case SizingRisk:
		res := risk.Calculate(risk.Inputs{
			Equity:  r.led.Equity(map[string]float64{r.symbol: price}),
			RiskPct: r.cfg.RiskPerTrade,
			Entry:   price,
			Stop:    stop,
		})
		if c := cash.InexactFloat64(); c > 0 {
			frac = min(res.Size*price/c, r.cfg.FixedFraction)
		}
	default:
		frac = r.cfg.FixedFraction
	}
	if frac <= 0 || price <= 0 {
		return 0, frac
	}
	size := cash.Mul(decimal.NewFromFloat(frac)).
		Div(decimal.NewFromFloat(price)).
		Truncate(8)
	return size.InexactFloat64(), frac
}

func (r *run) manageExits(i int) {
	b := r.bars[i]
	q := exit.Quote{Close: b.Close, High: b.High, Low: b.Low}

	for _, pid := range r.led.OpenIDs() {
		var d exit.Decision
		if err := r.led.Update(pid, func(p *ledger.Position) {
			d = r.pol.Evaluate(p, q, i, b.Time)
		}); err != nil {
			r.log.Error().Err(err).Int64("position", int64(pid)).Int("bar", i).Msg("exit update rejected")
			continue
		}
		r.res.Events = append(r.res.Events, d.Events...)
		if d.Exit {
			r.settle(pid, b.Close, d.Reason, i)
		}
	}
}

// close exits a position outside the exit policy (strategy signal or end of
// data) and records the audit event the policy would otherwise emit.
func (r *run) close(pid ledger.PositionID, price float64, reason ledger.ExitReason, i int) {
	p, ok := r.led.Position(pid)
	if !ok {
		return
	}
	r.res.Events = append(r.res.Events, exit.Event{
		PositionID: pid,
		Bar:        i,
		Time:       r.bars[i].Time,
		Kind:       exit.EventExit,
		From:       p.State,
		To:         ledger.StateClosed,
		Price:      price,
		Stop:       p.Stop,
		ProfitPct:  p.ProfitPct(price),
		Reason:     reason,
	})
	r.settle(pid, price, reason, i)
}

func (r *run) settle(pid ledger.PositionID, price float64, reason ledger.ExitReason, i int) {
	t, err := r.led.Close(pid, price, reason, r.bars[i].Time, i)
	if err != nil {
		r.log.Error().Err(err).Int64("position", int64(pid)).Msg("close failed")
		return
	}
	r.res.Trades = append(r.res.Trades, t)
	r.rec.TradeClosed(r.strat.Name(), t)

	r.log.Debug().
		Str("trade", t.ID).
		Int("bar", i).
		Str("reason", string(reason)).
		Float64("price", price).
		Float64("pnl", t.PnL).
		Float64("pnl_pct", t.PnLPct).
		Msg("close")
}

// finish force-closes whatever is still open at the last close.
func (r *run) finish() {
	last := len(r.bars) - 1
	for _, pid := range r.led.OpenIDs() {
		r.close(pid, r.bars[last].Close, ledger.ReasonBacktestEnd, last)
	}
}

func (r *run) prices(b market.Bar) map[string]float64 {
	return map[string]float64{r.symbol: b.Close}
}
