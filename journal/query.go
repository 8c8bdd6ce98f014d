package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rustyeddy/stratlab/ledger"
)

const runColumns = `run_id, created, strategy, symbol, dataset, params, config, bars, start_time, end_time,
	total_trades, win_rate, net_pnl, total_return, max_drawdown, sharpe, profit_factor, report`

// GetRun loads a run with its trades and equity curve.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`), runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
		}
		return Run{}, err
	}
	run, err := row.run()
	if err != nil {
		return Run{}, err
	}
	if run.Trades, err = s.ListTrades(ctx, runID); err != nil {
		return Run{}, err
	}
	if run.Equity, err = s.ListEquity(ctx, runID); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns run headers, newest first. A non-empty strategy filters
// by name; limit <= 0 returns everything.
func (s *Store) ListRuns(ctx context.Context, strategy string, limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if strategy != "" {
		q += ` WHERE strategy = ?`
		args = append(args, strategy)
	}
	q += ` ORDER BY created DESC, run_id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(rows))
	for _, r := range rows {
		run, err := r.run()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

// ListTrades returns a run's trades in log order.
func (s *Store) ListTrades(ctx context.Context, runID string) ([]ledger.Trade, error) {
	var rows []tradeRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT run_id, seq, trade_id, position_id, symbol, side, size, entry_price, exit_price,
		       entry_time, exit_time, entry_bar, exit_bar, pnl, pnl_pct, reason
		FROM trades
		WHERE run_id = ?
		ORDER BY seq ASC`), runID)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Trade, 0, len(rows))
	for _, r := range rows {
		side, err := ledger.ParseSide(r.Side)
		if err != nil {
			return nil, fmt.Errorf("journal: trade %s: %w", r.TradeID, err)
		}
		out = append(out, ledger.Trade{
			ID:         r.TradeID,
			PositionID: ledger.PositionID(r.PositionID),
			Symbol:     r.Symbol,
			Side:       side,
			Size:       r.Size,
			EntryPrice: r.EntryPrice,
			ExitPrice:  r.ExitPrice,
			EntryTime:  r.EntryTime.UTC(),
			ExitTime:   r.ExitTime.UTC(),
			EntryBar:   r.EntryBar,
			ExitBar:    r.ExitBar,
			PnL:        r.PnL,
			PnLPct:     r.PnLPct,
			Reason:     ledger.ExitReason(r.Reason),
		})
	}
	return out, nil
}

// ListEquity returns a run's equity curve in bar order.
func (s *Store) ListEquity(ctx context.Context, runID string) ([]ledger.EquityPoint, error) {
	var rows []equityRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT run_id, bar, time, equity, cash, open_positions
		FROM equity
		WHERE run_id = ?
		ORDER BY bar ASC`), runID)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.EquityPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, ledger.EquityPoint{
			Time:          r.Time.UTC(),
			Bar:           r.Bar,
			Equity:        r.Equity,
			Cash:          r.Cash,
			OpenPositions: r.OpenPositions,
		})
	}
	return out, nil
}

func (r runRow) run() (Run, error) {
	run := Run{
		ID:       r.RunID,
		Created:  r.Created.UTC(),
		Strategy: r.Strategy,
		Symbol:   r.Symbol,
		Dataset:  r.Dataset,
		Bars:     r.Bars,
	}
	if err := json.Unmarshal([]byte(r.Params), &run.Params); err != nil {
		return Run{}, fmt.Errorf("journal: decode params for %s: %w", r.RunID, err)
	}
	if err := json.Unmarshal([]byte(r.Config), &run.Config); err != nil {
		return Run{}, fmt.Errorf("journal: decode config for %s: %w", r.RunID, err)
	}
	if err := json.Unmarshal([]byte(r.Report), &run.Report); err != nil {
		return Run{}, fmt.Errorf("journal: decode report for %s: %w", r.RunID, err)
	}
	return run, nil
}
