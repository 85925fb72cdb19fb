package publish

import (
	"github.com/shopspring/decimal"
)

// Result is the single durable end-of-run record consumed by the learning
// system. One per opportunity, no exceptions.
type Result struct {
	OpportunityID string `json:"opportunityId"`
	ChainName     string `json:"chainName"`
	Strategy      string `json:"strategy"`

	Success bool   `json:"success"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`

	TransactionHash *string `json:"transactionHash"`
	BlockNumber     *uint64 `json:"blockNumber"`
	GasUsed         uint64  `json:"gasUsed,omitempty"`

	EstimatedProfitUSD decimal.Decimal `json:"estimatedProfitUsd"`
	GasCostUSD         decimal.Decimal `json:"gasCostUsd"`
	FlashLoanFeeUSD    decimal.Decimal `json:"flashLoanFeeUsd"`

	MevProvider string `json:"mevProvider,omitempty"`
	BundleID    string `json:"bundleId,omitempty"`
	TipLamports uint64 `json:"tipLamports,omitempty"`
	WasFrontrun bool   `json:"wasFrontrun"`
	WasBackrun  bool   `json:"wasBackrun"`

	ReceivedAtNanos     int64 `json:"receivedAtNanos"`
	SimStartedAtNanos   int64 `json:"simStartedAtNanos"`
	SimCompletedAtNanos int64 `json:"simCompletedAtNanos"`
	SubmittedAtNanos    int64 `json:"submittedAtNanos"`
	ConfirmedAtNanos    int64 `json:"confirmedAtNanos"`

	SignalID     string `json:"signalId,omitempty"`
	StrategyName string `json:"strategyName,omitempty"`
}

// StatusUpdate is an ephemeral progress notification, one per transition.
type StatusUpdate struct {
	OpportunityID  string `json:"opportunityId"`
	Status         string `json:"status"`
	TimestampNanos int64  `json:"timestampNanos"`
	Detail         string `json:"detail,omitempty"`
}

// TrainingRecord is the flat, analyst-friendly projection of a Result.
// Floats are fine here: this feeds feature vectors, not money movement.
type TrainingRecord struct {
	OpportunityID string `json:"opportunityId"`
	ChainName     string `json:"chainName"`
	Strategy      string `json:"strategy"`
	StrategyName  string `json:"strategyName,omitempty"`

	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`

	NetProfitUSD    float64 `json:"netProfitUsd"`
	GasCostUSD      float64 `json:"gasCostUsd"`
	FlashLoanFeeUSD float64 `json:"flashLoanFeeUsd"`

	MevProvider string `json:"mevProvider,omitempty"`
	TipLamports uint64 `json:"tipLamports,omitempty"`

	TotalLatencyMs      float64 `json:"totalLatencyMs"`
	SimulationLatencyMs float64 `json:"simulationLatencyMs"`

	SpreadBps         float64 `json:"spreadBps"`
	AoiScore          float64 `json:"aoiScore"`
	VolatilityPercent float64 `json:"volatilityPercent"`
	ConfidenceScore   float64 `json:"confidenceScore"`
	MarketRegime      string  `json:"marketRegime,omitempty"`
}

// MarketContext carries the advisory fields from the opportunity into the
// training projection.
type MarketContext struct {
	SpreadBps         float64
	AoiScore          float64
	VolatilityPercent float64
	ConfidenceScore   float64
	MarketRegime      string
}

// NewTrainingRecord flattens a Result plus market context, deriving the
// latency features from the run's monotonic timestamps.
func NewTrainingRecord(res *Result, mkt MarketContext) TrainingRecord {
	rec := TrainingRecord{
		OpportunityID:     res.OpportunityID,
		ChainName:         res.ChainName,
		Strategy:          res.Strategy,
		StrategyName:      res.StrategyName,
		Success:           res.Success,
		Reason:            res.Reason,
		NetProfitUSD:      res.EstimatedProfitUSD.InexactFloat64(),
		GasCostUSD:        res.GasCostUSD.InexactFloat64(),
		FlashLoanFeeUSD:   res.FlashLoanFeeUSD.InexactFloat64(),
		MevProvider:       res.MevProvider,
		TipLamports:       res.TipLamports,
		SpreadBps:         mkt.SpreadBps,
		AoiScore:          mkt.AoiScore,
		VolatilityPercent: mkt.VolatilityPercent,
		ConfidenceScore:   mkt.ConfidenceScore,
		MarketRegime:      mkt.MarketRegime,
	}
	if res.ConfirmedAtNanos > 0 && res.ReceivedAtNanos > 0 {
		rec.TotalLatencyMs = float64(res.ConfirmedAtNanos-res.ReceivedAtNanos) / 1e6
	}
	if res.SimCompletedAtNanos > 0 && res.SimStartedAtNanos > 0 {
		rec.SimulationLatencyMs = float64(res.SimCompletedAtNanos-res.SimStartedAtNanos) / 1e6
	}
	return rec
}
