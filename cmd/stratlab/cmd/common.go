package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stratlab/backtest"
	"github.com/rustyeddy/stratlab/cache"
	"github.com/rustyeddy/stratlab/config"
	"github.com/rustyeddy/stratlab/journal"
	"github.com/rustyeddy/stratlab/market"
	"github.com/rustyeddy/stratlab/optimize"
	"github.com/rustyeddy/stratlab/strategies"
)

// runFlags are shared by every command that runs a strategy over a data
// file.
type runFlags struct {
	data     string
	symbol   string
	strategy string
	params   []string
	capital  float64
	sizing   string
	short    bool
	json     bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "path to bar CSV (time,open,high,low,close[,volume]) (required)")
	cmd.Flags().StringVar(&f.symbol, "symbol", "", "symbol name (default from config)")
	cmd.Flags().StringVarP(&f.strategy, "strategy", "s", "", "strategy name (default from config)")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "strategy parameter name=value (repeatable)")
	cmd.Flags().Float64Var(&f.capital, "capital", 0, "initial capital (default from config)")
	cmd.Flags().StringVar(&f.sizing, "sizing", "", "position sizing: fixed|kelly|risk")
	cmd.Flags().BoolVar(&f.short, "allow-short", false, "allow short entries")
	cmd.Flags().BoolVar(&f.json, "json", false, "print JSON instead of text")
	cmd.MarkFlagRequired("data")
}

// engineConfig applies flag overrides on top of the loaded config.
func (f *runFlags) engineConfig(cmd *cobra.Command) (backtest.Config, error) {
	ec := cfg.Engine
	if f.capital != 0 {
		ec.InitialCapital = f.capital
	}
	if f.sizing != "" {
		m, err := backtest.ParseSizingMode(f.sizing)
		if err != nil {
			return ec, err
		}
		ec.Sizing = m
	}
	if cmd.Flags().Changed("allow-short") {
		ec.AllowShort = f.short
	}
	return ec, ec.Validate()
}

func (f *runFlags) load() (*market.Series, error) {
	symbol := f.symbol
	if symbol == "" {
		symbol = cfg.Strategy.Symbol
	}
	s, err := market.LoadCSV(f.data, symbol)
	if err != nil {
		return nil, fmt.Errorf("load data: %w", err)
	}
	logger.Info().Str("path", f.data).Str("symbol", symbol).Int("bars", s.Len()).Msg("data loaded")
	return s, nil
}

// resolve finds the strategy and merges its defaults, the config params
// and the command line params, in that order.
func (f *runFlags) resolve() (backtest.Strategy, backtest.Params, error) {
	name := f.strategy
	overrides := backtest.Params{}
	if name == "" || name == cfg.Strategy.Name {
		name = cfg.Strategy.Name
		for k, v := range cfg.Strategy.Params {
			overrides[k] = v
		}
	}
	strat, err := strategies.StrategyByName(name)
	if err != nil {
		return nil, nil, err
	}
	cli, err := parseParams(f.params)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range cli {
		overrides[k] = v
	}
	return strat, strategies.Params(strat, overrides), nil
}

func newEngine(ec backtest.Config) (*backtest.Engine, error) {
	return backtest.NewEngine(ec, backtest.WithLogger(logger), backtest.WithRecorder(recorder))
}

// parseParams reads name=value pairs.
func parseParams(pairs []string) (backtest.Params, error) {
	out := backtest.Params{}
	for _, p := range pairs {
		name, val, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("bad param %q, want name=value", p)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("bad param %q: %w", p, err)
		}
		out[name] = v
	}
	return out, nil
}

// parseGrid reads name=v1,v2,... or name=start:stop:step.
func parseGrid(axes []string) (optimize.Grid, error) {
	g := optimize.Grid{}
	for _, a := range axes {
		name, vals, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || vals == "" {
			return nil, fmt.Errorf("bad grid axis %q, want name=v1,v2 or name=start:stop:step", a)
		}
		if parts := strings.Split(vals, ":"); len(parts) == 3 {
			var r [3]float64
			for i, p := range parts {
				v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
				if err != nil {
					return nil, fmt.Errorf("bad grid axis %q: %w", a, err)
				}
				r[i] = v
			}
			g[name] = optimize.Range(r[0], r[1], r[2])
			continue
		}
		for _, p := range strings.Split(vals, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("bad grid axis %q: %w", a, err)
			}
			g[name] = append(g[name], v)
		}
	}
	return g, nil
}

// openJournal returns nil when journaling is off.
func openJournal() (journal.Journal, error) {
	jc := cfg.Journal
	switch jc.Type {
	case "", config.JournalNone:
		return nil, nil
	case config.JournalCSV:
		j, err := journal.NewCSVDir(jc.Dir)
		if err != nil {
			return nil, err
		}
		return j, nil
	}
	s, err := openStore()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// openStore opens the SQL journal; the csv journal cannot be queried.
func openStore() (*journal.Store, error) {
	jc := cfg.Journal
	switch jc.Type {
	case config.JournalSQLite:
		return journal.NewSQLite(jc.DBPath)
	case config.JournalPostgres:
		return journal.NewPostgres(jc.DSN)
	}
	return nil, fmt.Errorf("journal type %q cannot be queried, use sqlite or postgres", jc.Type)
}

// openCache returns nil when the cache is disabled or unreachable.
func openCache(ctx context.Context) (*cache.Cache, func()) {
	if !cfg.Cache.Enabled {
		return nil, func() {}
	}
	c, client, err := cache.Dial(ctx, cfg.Cache.Config, cache.WithLogger(logger))
	if err != nil {
		logger.Warn().Err(err).Msg("report cache unavailable, continuing without it")
		return nil, func() {}
	}
	return c, func() { client.Close() }
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
