package pipeline

import (
	"time"

	"github.com/paulwcunningham/FLIS/internal/opportunity"
)

// run states
const (
	StateReceived       = "received"
	StateSimulating     = "simulating"
	StateSubmitting     = "submitting"
	StateSubmittingMev  = "submitting_mev"
	StatePending        = "pending"
	StateConfirmed      = "confirmed"
	StateFailed         = "failed"
	StateRejected       = "rejected"
	StateReceiptTimeout = "receipt_timeout"
)

// run is the per-opportunity pipeline state. It lives on one goroutine's
// stack for exactly one opportunity and is never shared.
type run struct {
	opp *opportunity.Opportunity

	receivedAt     int64
	simStartedAt   int64
	simCompletedAt int64
	submittedAt    int64
	confirmedAt    int64
}

func newRun(opp *opportunity.Opportunity) *run {
	return &run{opp: opp, receivedAt: nowNanos()}
}

// clockBase anchors run timestamps: each reading is taken from the monotonic
// clock and expressed in Unix nanoseconds.
var clockBase = time.Now()

func nowNanos() int64 {
	return clockBase.UnixNano() + int64(time.Since(clockBase))
}
