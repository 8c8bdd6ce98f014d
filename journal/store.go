package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store is a SQL journal. Queries are written with ? placeholders and
// rebound for the driver.
type Store struct {
	db *sqlx.DB
}

// Open connects to driver/dsn and creates the schema if needed.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func NewSQLite(path string) (*Store, error) {
	return Open(DriverSQLite, path)
}

func NewPostgres(dsn string) (*Store, error) {
	return Open(DriverPostgres, dsn)
}

type runRow struct {
	RunID        string    `db:"run_id"`
	Created      time.Time `db:"created"`
	Strategy     string    `db:"strategy"`
	Symbol       string    `db:"symbol"`
	Dataset      string    `db:"dataset"`
	Params       string    `db:"params"`
	Config       string    `db:"config"`
	Bars         int       `db:"bars"`
	StartTime    time.Time `db:"start_time"`
	EndTime      time.Time `db:"end_time"`
	TotalTrades  int       `db:"total_trades"`
	WinRate      float64   `db:"win_rate"`
	NetPnL       float64   `db:"net_pnl"`
	TotalReturn  float64   `db:"total_return"`
	MaxDrawdown  float64   `db:"max_drawdown"`
	Sharpe       float64   `db:"sharpe"`
	ProfitFactor float64   `db:"profit_factor"`
	Report       string    `db:"report"`
}

type tradeRow struct {
	RunID      string    `db:"run_id"`
	Seq        int       `db:"seq"`
	TradeID    string    `db:"trade_id"`
	PositionID int64     `db:"position_id"`
	Symbol     string    `db:"symbol"`
	Side       string    `db:"side"`
	Size       float64   `db:"size"`
	EntryPrice float64   `db:"entry_price"`
	ExitPrice  float64   `db:"exit_price"`
	EntryTime  time.Time `db:"entry_time"`
	ExitTime   time.Time `db:"exit_time"`
	EntryBar   int       `db:"entry_bar"`
	ExitBar    int       `db:"exit_bar"`
	PnL        float64   `db:"pnl"`
	PnLPct     float64   `db:"pnl_pct"`
	Reason     string    `db:"reason"`
}

type equityRow struct {
	RunID         string    `db:"run_id"`
	Bar           int       `db:"bar"`
	Time          time.Time `db:"time"`
	Equity        float64   `db:"equity"`
	Cash          float64   `db:"cash"`
	OpenPositions int       `db:"open_positions"`
}

const insertRun = `
	INSERT INTO runs
	(run_id, created, strategy, symbol, dataset, params, config, bars, start_time, end_time,
	 total_trades, win_rate, net_pnl, total_return, max_drawdown, sharpe, profit_factor, report)
	VALUES
	(:run_id, :created, :strategy, :symbol, :dataset, :params, :config, :bars, :start_time, :end_time,
	 :total_trades, :win_rate, :net_pnl, :total_return, :max_drawdown, :sharpe, :profit_factor, :report)`

const insertTrade = `
	INSERT INTO trades
	(run_id, seq, trade_id, position_id, symbol, side, size, entry_price, exit_price,
	 entry_time, exit_time, entry_bar, exit_bar, pnl, pnl_pct, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertEquity = `
	INSERT INTO equity (run_id, bar, time, equity, cash, open_positions)
	VALUES (?, ?, ?, ?, ?, ?)`

// RecordRun writes the run, its trades and its equity curve in one
// transaction.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("journal: run id is required")
	}
	row, err := toRunRow(run)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertRun, row); err != nil {
		return fmt.Errorf("journal: insert run %s: %w", run.ID, err)
	}

	ts, err := tx.PreparexContext(ctx, tx.Rebind(insertTrade))
	if err != nil {
		return fmt.Errorf("journal: prepare trades: %w", err)
	}
	defer ts.Close()
	for i, t := range run.Trades {
		_, err := ts.ExecContext(ctx,
			run.ID, i, t.ID, int64(t.PositionID), t.Symbol, t.Side.String(), t.Size,
			t.EntryPrice, t.ExitPrice, t.EntryTime.UTC(), t.ExitTime.UTC(),
			t.EntryBar, t.ExitBar, t.PnL, t.PnLPct, string(t.Reason))
		if err != nil {
			return fmt.Errorf("journal: insert trade %s: %w", t.ID, err)
		}
	}

	es, err := tx.PreparexContext(ctx, tx.Rebind(insertEquity))
	if err != nil {
		return fmt.Errorf("journal: prepare equity: %w", err)
	}
	defer es.Close()
	for _, e := range run.Equity {
		if _, err := es.ExecContext(ctx, run.ID, e.Bar, e.Time.UTC(), e.Equity, e.Cash, e.OpenPositions); err != nil {
			return fmt.Errorf("journal: insert equity bar %d: %w", e.Bar, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toRunRow(run Run) (runRow, error) {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return runRow{}, fmt.Errorf("journal: encode params: %w", err)
	}
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return runRow{}, fmt.Errorf("journal: encode config: %w", err)
	}
	rep, err := json.Marshal(run.Report)
	if err != nil {
		return runRow{}, fmt.Errorf("journal: encode report: %w", err)
	}
	created := run.Created
	if created.IsZero() {
		created = time.Now()
	}
	r := run.Report
	return runRow{
		RunID:        run.ID,
		Created:      created.UTC(),
		Strategy:     run.Strategy,
		Symbol:       run.Symbol,
		Dataset:      run.Dataset,
		Params:       string(params),
		Config:       string(cfg),
		Bars:         run.Bars,
		StartTime:    r.Start.UTC(),
		EndTime:      r.End.UTC(),
		TotalTrades:  r.TotalTrades,
		WinRate:      r.WinRate,
		NetPnL:       r.NetPnL,
		TotalReturn:  r.TotalReturn,
		MaxDrawdown:  r.MaxDrawdown,
		Sharpe:       r.Sharpe,
		ProfitFactor: r.ProfitFactor,
		Report:       string(rep),
	}, nil
}
