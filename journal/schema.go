package journal

// Schema is portable between sqlite3 and postgres. Times are stored in UTC.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	created         TIMESTAMP NOT NULL,
	strategy        TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	dataset         TEXT NOT NULL,
	params          TEXT NOT NULL,
	config          TEXT NOT NULL,
	bars            INTEGER NOT NULL,
	start_time      TIMESTAMP NOT NULL,
	end_time        TIMESTAMP NOT NULL,
	total_trades    INTEGER NOT NULL,
	win_rate        DOUBLE PRECISION NOT NULL,
	net_pnl         DOUBLE PRECISION NOT NULL,
	total_return    DOUBLE PRECISION NOT NULL,
	max_drawdown    DOUBLE PRECISION NOT NULL,
	sharpe          DOUBLE PRECISION NOT NULL,
	profit_factor   DOUBLE PRECISION NOT NULL,
	report          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id       TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	trade_id     TEXT NOT NULL,
	position_id  BIGINT NOT NULL,
	symbol       TEXT NOT NULL,
	side         TEXT NOT NULL,
	size         DOUBLE PRECISION NOT NULL,
	entry_price  DOUBLE PRECISION NOT NULL,
	exit_price   DOUBLE PRECISION NOT NULL,
	entry_time   TIMESTAMP NOT NULL,
	exit_time    TIMESTAMP NOT NULL,
	entry_bar    INTEGER NOT NULL,
	exit_bar     INTEGER NOT NULL,
	pnl          DOUBLE PRECISION NOT NULL,
	pnl_pct      DOUBLE PRECISION NOT NULL,
	reason       TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id          TEXT NOT NULL,
	bar             INTEGER NOT NULL,
	time            TIMESTAMP NOT NULL,
	equity          DOUBLE PRECISION NOT NULL,
	cash            DOUBLE PRECISION NOT NULL,
	open_positions  INTEGER NOT NULL,
	PRIMARY KEY (run_id, bar)
);

CREATE INDEX IF NOT EXISTS idx_runs_strategy ON runs (strategy, created);
`
