package journal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/stratlab/ledger"
)

var orgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"reasons": exitReasonRows,
}

var orgTemplate = template.Must(template.New("run").Funcs(orgFuncs).Parse(RunOrgTemplate))

type reasonRow struct {
	Reason ledger.ExitReason
	Count  int
}

// exitReasonRows lists reasons with a nonzero count in taxonomy order.
func exitReasonRows(m map[ledger.ExitReason]int) []reasonRow {
	var out []reasonRow
	for _, r := range ledger.ExitReasons {
		if m[r] > 0 {
			out = append(out, reasonRow{r, m[r]})
		}
	}
	return out
}

// WriteOrg renders the run as an Org-mode report.
func WriteOrg(w io.Writer, run Run) error {
	if err := orgTemplate.Execute(w, run); err != nil {
		return fmt.Errorf("journal: render org for %s: %w", run.ID, err)
	}
	return nil
}

// WriteOrgFile renders the run into path.
func WriteOrgFile(path string, run Run) error {
	var b strings.Builder
	if err := WriteOrg(&b, run); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

const RunOrgTemplate = `* BACKTEST: {{.Strategy}} {{.Symbol}}
:PROPERTIES:
:RUN_ID:      {{if .ID}}{{.ID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:SYMBOL:      {{.Symbol}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:PARAMS:      {{.Params}}
:START_DATE:  {{.Report.Start.Format "2006-01-02"}}
:END_DATE:    {{.Report.End.Format "2006-01-02"}}
:BARS:        {{.Bars}}
:START_BAL:   {{printf "%.2f" .Report.InitialCapital}}
:END_BAL:     {{printf "%.2f" .Report.FinalCapital}}
:NET_PL:      {{printf "%.2f" .Report.NetPnL}}
:RETURN_PCT:  {{printf "%.2f" .Report.TotalReturn}}
:MAX_DD_PCT:  {{printf "%.2f" .Report.MaxDrawdownPct}}
:TRADES:      {{.Report.TotalTrades}}
:WINS:        {{.Report.Wins}}
:LOSSES:      {{.Report.Losses}}
:WIN_RATE:    {{printf "%.2f" .Report.WinRate}}
:PROFIT_FAC:  {{printf "%.2f" .Report.ProfitFactor}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Engine Configuration
| Parameter        | Value |
|------------------+-------|
| Sizing           | {{.Config.Sizing}} |
| Fixed Fraction % | {{printf "%.2f" (mul100 .Config.FixedFraction)}} |
| Warm-up Bars     | {{.Config.WarmupBars}} |
| Max Positions    | {{.Config.MaxOpenPositions}} |
| Allow Short      | {{.Config.AllowShort}} |
| Max Risk %       | {{printf "%.2f" (mul100 .Config.Risk.MaxRiskPct)}} |
| Min R:R          | {{printf "%.2f" .Config.Risk.MinRR}} |

** Performance Summary
- Net P/L:          *{{printf "%.2f" .Report.NetPnL}}*
- Return:           *{{printf "%.2f" .Report.TotalReturn}}%*
- Max Drawdown:     *{{printf "%.2f" .Report.MaxDrawdownPct}}%*
- Win Rate:         *{{printf "%.2f" .Report.WinRate}}%*
- Profit Factor:    *{{printf "%.2f" .Report.ProfitFactor}}*
- Sharpe:           *{{printf "%.2f" .Report.Sharpe}}*
- Sortino:          *{{printf "%.2f" .Report.Sortino}}*
- Calmar:           *{{printf "%.2f" .Report.Calmar}}*

** Trade Distribution
| Outcome   | Count |
|-----------+-------|
| Wins      | {{.Report.Wins}} |
| Losses    | {{.Report.Losses}} |
| Breakeven | {{.Report.Breakeven}} |
| Total     | {{.Report.TotalTrades}} |
{{- with reasons .Report.ExitReasons }}

** Exit Reasons
| Reason | Count |
|--------+-------|
{{- range . }}
| {{.Reason}} | {{.Count}} |
{{- end }}
{{- end }}
{{- if .Report.Note }}

** Observations
- {{.Report.Note}}
{{- end }}
`

// FormatTradeOrg renders a trade as an Org-mode block with the structured
// facts in a PROPERTIES drawer.
func FormatTradeOrg(t ledger.Trade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s %s (%s)\n", t.Symbol, t.Side, shortID(t.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":SIZE: %.8g\n", t.Size)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.5f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.5f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":ENTRY_TIME: %s\n", t.EntryTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":EXIT_TIME: %s\n", t.ExitTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":HOLDING_BARS: %d\n", t.HoldingBars())
	fmt.Fprintf(&b, ":PNL: %.2f\n", t.PnL)
	fmt.Fprintf(&b, ":PNL_PCT: %.2f\n", t.PnLPct)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []ledger.Trade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
