package mev

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/paulwcunningham/FLIS/internal/opportunity"
)

// TipEstimate is the tip oracle's percentile tuple, in lamports.
type TipEstimate struct {
	Min         uint64 `json:"min"`
	Median      uint64 `json:"median"`
	P75         uint64 `json:"p75"`
	P95         uint64 `json:"p95"`
	Recommended uint64 `json:"recommended"`
}

// fallback when the tip oracle is unreachable
var defaultTipEstimate = TipEstimate{
	Min:         1_000,
	Median:      5_000,
	P75:         10_000,
	P95:         50_000,
	Recommended: 10_000,
}

var lamportsPerSol = decimal.New(1, 9)

// SizeTip scales the oracle's recommendation by AOI aggressiveness and clamps
// it into [estimate.min, max tip]. The max tip is the opportunity's explicit
// cap in SOL, else a tenth of expected profit.
func SizeTip(est TipEstimate, opp *opportunity.Opportunity) uint64 {
	mult := decimal.NewFromFloat(0.5 + 0.5*opp.Aoi())
	tip := decimal.NewFromUint64(est.Recommended).Mul(mult).Truncate(0)

	var maxTip decimal.Decimal
	if opp.MaxMevTip != nil && opp.MaxMevTip.Sign() > 0 {
		maxTip = opp.MaxMevTip.Mul(lamportsPerSol).Truncate(0)
	} else {
		maxTip = opp.ExpectedProfit.Div(decimal.NewFromInt(10)).Mul(lamportsPerSol).Truncate(0)
	}

	minTip := decimal.NewFromUint64(est.Min)
	if tip.LessThan(minTip) {
		tip = minTip
	}
	if maxTip.Sign() > 0 && tip.GreaterThan(maxTip) {
		tip = maxTip
	}
	return uint64(tip.IntPart())
}

// fetchTipEstimate asks the configured tip-floor endpoint; a failure falls
// back to conservative defaults rather than blocking submission.
func (j *JitoClient) fetchTipEstimate(ctx context.Context) TipEstimate {
	if j.tipFloorURL == "" {
		return defaultTipEstimate
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.tipFloorURL, nil)
	if err != nil {
		return defaultTipEstimate
	}
	resp, err := j.http.Do(req)
	if err != nil {
		j.log.WithError(err).Warn("tip floor fetch failed, using defaults")
		return defaultTipEstimate
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		j.log.WithField("status", resp.StatusCode).Warn("tip floor fetch failed, using defaults")
		return defaultTipEstimate
	}

	var est TipEstimate
	if err := json.NewDecoder(resp.Body).Decode(&est); err != nil || est.Recommended == 0 {
		return defaultTipEstimate
	}
	if est.Min == 0 {
		est.Min = defaultTipEstimate.Min
	}
	return est
}
