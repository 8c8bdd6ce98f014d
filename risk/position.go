package risk

import "math"

// Inputs for fixed-risk sizing: commit enough size that hitting the stop
// loses RiskPct of equity.
type Inputs struct {
	Equity  float64
	RiskPct float64 // 0.01
	Entry   float64
	Stop    float64
	LotStep float64 // size increment, 0 for continuous sizing
}

type Result struct {
	Size         float64
	StopDistance float64
	RiskAmount   float64
}

// Calculate sizes a position from its stop distance. A zero stop distance
// yields zero size.
func Calculate(in Inputs) Result {
	dist := abs(in.Entry - in.Stop)
	riskAmt := in.Equity * in.RiskPct
	if dist == 0 || riskAmt <= 0 {
		return Result{StopDistance: dist, RiskAmount: max(riskAmt, 0)}
	}

	size := riskAmt / dist
	if in.LotStep > 0 {
		size = math.Floor(size/in.LotStep) * in.LotStep
	}

	return Result{
		Size:         size,
		StopDistance: dist,
		RiskAmount:   riskAmt,
	}
}
