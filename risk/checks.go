package risk

import "fmt"

const (
	CodeNoStopOrEntry       = "NO_STOP_OR_ENTRY"
	CodeNoSize              = "NO_SIZE"
	CodeInsufficientCash    = "INSUFFICIENT_CAPITAL"
	CodeRiskTooHigh         = "RISK_TOO_HIGH"
	CodeRRTooLow            = "RR_TOO_LOW"
	CodeTooManyPositions    = "TOO_MANY_OPEN_POSITIONS"
	CodeDrawdownLimit       = "DRAWDOWN_LIMIT"
	CodeStopWrongSide       = "STOP_WRONG_SIDE"
	CodeTakeProfitWrongSide = "TAKE_PROFIT_WRONG_SIDE"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    float64
	PlannedRiskPct float64
	PlannedRR      float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Has reports whether a violation with code was recorded.
func (d Decision) Has(code string) bool {
	for _, v := range d.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

func (d Decision) String() string {
	if d.Allowed {
		return "allowed"
	}
	s := "rejected:"
	for _, v := range d.Violations {
		s += " " + v.Code
	}
	return s
}

// Evaluate runs the pre-trade checks for intent against the account.
func Evaluate(p Policy, intent TradeIntent, acct AccountSnapshot) Decision {
	d := Decision{Allowed: true}

	// Basic sanity
	if intent.Stop <= 0 || intent.Entry <= 0 {
		d.add(CodeNoStopOrEntry, "entry/stop must be set")
		return d
	}
	if intent.Size <= 0 {
		d.add(CodeNoSize, "size must be positive")
		return d
	}
	if float64(intent.Side)*(intent.Entry-intent.Stop) <= 0 {
		d.add(CodeStopWrongSide,
			fmt.Sprintf("stop %.8g is not on the losing side of entry %.8g for %s", intent.Stop, intent.Entry, intent.Side))
		return d
	}
	if intent.TakeProfit > 0 && float64(intent.Side)*(intent.TakeProfit-intent.Entry) <= 0 {
		d.add(CodeTakeProfitWrongSide,
			fmt.Sprintf("take-profit %.8g is not on the winning side of entry %.8g for %s", intent.TakeProfit, intent.Entry, intent.Side))
	}

	// Capital (no leverage)
	if cost := intent.Size * intent.Entry; cost > acct.Cash {
		d.add(CodeInsufficientCash, fmt.Sprintf("cost %.2f exceeds cash %.2f", cost, acct.Cash))
	}

	// Risk + RR
	d.PlannedRisk = PlannedRisk(intent.Size, intent.Entry, intent.Stop)
	d.PlannedRiskPct = RiskPct(d.PlannedRisk, acct.Equity)
	if intent.TakeProfit > 0 {
		d.PlannedRR = RR(intent.Entry, intent.Stop, intent.TakeProfit)
	}

	if p.MaxRiskPct > 0 && d.PlannedRiskPct > p.MaxRiskPct {
		d.add(CodeRiskTooHigh,
			fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%",
				100*d.PlannedRiskPct, 100*p.MaxRiskPct))
	}
	if p.MinRR > 0 && intent.TakeProfit > 0 && d.PlannedRR < p.MinRR {
		d.add(CodeRRTooLow,
			fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
	}

	// Exposure constraints
	if p.MaxOpenPositions > 0 && acct.OpenPositions >= p.MaxOpenPositions {
		d.add(CodeTooManyPositions,
			fmt.Sprintf("open positions %d >= max %d", acct.OpenPositions, p.MaxOpenPositions))
	}

	// Circuit breaker
	if p.MaxDrawdownPct > 0 && acct.PeakEquity > 0 {
		dd := (acct.PeakEquity - acct.Equity) / acct.PeakEquity
		if dd >= p.MaxDrawdownPct {
			d.add(CodeDrawdownLimit,
				fmt.Sprintf("drawdown %.2f%% >= limit %.2f%%", 100*dd, 100*p.MaxDrawdownPct))
		}
	}

	return d
}
