package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paulwcunningham/FLIS/internal/chains"
	"github.com/paulwcunningham/FLIS/internal/gasbid"
	"github.com/paulwcunningham/FLIS/internal/mev"
	"github.com/paulwcunningham/FLIS/internal/opportunity"
	"github.com/paulwcunningham/FLIS/internal/publish"
	"github.com/paulwcunningham/FLIS/internal/sim"
	"github.com/paulwcunningham/FLIS/internal/txbuild"
)

// receipt polling budget for the standard branch
var (
	receiptPollInterval = 2 * time.Second
	receiptPollAttempts = 60
)

// GasBidder prices an opportunity's execution.
type GasBidder interface {
	GetBid(ctx context.Context, opp *opportunity.Opportunity) (*gasbid.Bid, error)
}

// Simulator gates execution with a read-only call.
type Simulator interface {
	Run(ctx context.Context, opp *opportunity.Opportunity, bid *gasbid.Bid) (*sim.Outcome, error)
}

// TxBuilder turns a simulated call plan into a signed transaction.
type TxBuilder interface {
	BuildAndSign(ctx context.Context, chain *chains.Chain, plan *sim.CallPlan) (*txbuild.SignedTx, error)
}

// BundleSubmitter is the MEV branch.
type BundleSubmitter interface {
	Available(chainName string) bool
	SubmitAndWait(ctx context.Context, opp *opportunity.Opportunity, signedTxHex string) *mev.BundleOutcome
}

// ResultBus is the outbound publishing surface.
type ResultBus interface {
	PublishResult(res *publish.Result) error
	PublishStatus(opportunityID, status, detail string) error
	PublishBundleOutcome(provider string, outcome interface{}) error
	PublishTraining(rec publish.TrainingRecord) error
}

// Journal is the optional local record of terminal results.
type Journal interface {
	Record(res *publish.Result) error
}

// Archive is the optional local training-feed sink.
type Archive interface {
	Append(rec publish.TrainingRecord) error
}

// Pipeline drives one opportunity from receipt to terminal publish. All
// collaborators are read-only after construction; every Process call is
// independent.
type Pipeline struct {
	chains  *chains.Registry
	gas     GasBidder
	sim     Simulator
	builder TxBuilder
	mev     BundleSubmitter
	bus     ResultBus
	journal Journal
	archive Archive
	log     *logrus.Logger
}

// Options wires a Pipeline. Journal and Archive may be nil.
type Options struct {
	Chains  *chains.Registry
	Gas     GasBidder
	Sim     Simulator
	Builder TxBuilder
	Mev     BundleSubmitter
	Bus     ResultBus
	Journal Journal
	Archive Archive
	Log     *logrus.Logger
}

func New(opts Options) *Pipeline {
	return &Pipeline{
		chains:  opts.Chains,
		gas:     opts.Gas,
		sim:     opts.Sim,
		builder: opts.Builder,
		mev:     opts.Mev,
		bus:     opts.Bus,
		journal: opts.Journal,
		archive: opts.Archive,
		log:     opts.Log,
	}
}

// Process runs the full state machine for one opportunity. Exactly one final
// Result publish is attempted on every path; faults become Result records
// rather than escaping.
func (p *Pipeline) Process(ctx context.Context, opp *opportunity.Opportunity) *publish.Result {
	r := newRun(opp)
	p.status(opp.ID, StateReceived, "")

	res := p.execute(ctx, r)
	res.ReceivedAtNanos = r.receivedAt
	res.SimStartedAtNanos = r.simStartedAt
	res.SimCompletedAtNanos = r.simCompletedAt
	res.SubmittedAtNanos = r.submittedAt
	res.ConfirmedAtNanos = r.confirmedAt

	// result before terminal status, always
	if err := p.bus.PublishResult(res); err != nil {
		p.log.WithError(err).WithField("opportunity_id", opp.ID).Warn("result publish failed")
	}
	terminal := StateFailed
	if res.Success {
		terminal = StateConfirmed
	}
	p.status(opp.ID, terminal, res.Reason)

	rec := publish.NewTrainingRecord(res, publish.MarketContext{
		SpreadBps:         opp.SpreadBps,
		AoiScore:          opp.Aoi(),
		VolatilityPercent: opp.VolatilityPercent,
		ConfidenceScore:   opp.ConfidenceScore,
		MarketRegime:      opp.MarketRegime,
	})
	if err := p.bus.PublishTraining(rec); err != nil {
		p.log.WithError(err).Debug("training publish failed")
	}
	if p.journal != nil {
		if err := p.journal.Record(res); err != nil {
			p.log.WithError(err).Warn("journal write failed")
		}
	}
	if p.archive != nil {
		if err := p.archive.Append(rec); err != nil {
			p.log.WithError(err).Debug("archive write failed")
		}
	}

	p.log.WithFields(logrus.Fields{
		"opportunity_id": opp.ID,
		"chain":          opp.ChainName,
		"status":         res.Status,
		"success":        res.Success,
		"net_usd":        res.EstimatedProfitUSD,
	}).Info("run complete")

	return res
}

func (p *Pipeline) execute(ctx context.Context, r *run) (res *publish.Result) {
	opp := r.opp
	res = &publish.Result{
		OpportunityID:   opp.ID,
		ChainName:       opp.ChainName,
		Strategy:        string(opp.Strategy),
		Status:          StateFailed,
		SignalID:        opp.SignalID,
		StrategyName:    opp.StrategyName,
		TransactionHash: nil,
	}
	defer func() {
		if rec := recover(); rec != nil {
			res.Success = false
			res.Status = StateFailed
			res.Reason = fmt.Sprintf("internal fault: %v", rec)
			p.log.WithField("opportunity_id", opp.ID).Errorf("pipeline panic: %v", rec)
		}
	}()

	chain, err := p.chains.Get(opp.ChainName)
	if err != nil {
		return p.reject(res, err.Error())
	}

	if opp.Expired(time.Now()) {
		return p.reject(res, "deadline exceeded")
	}

	bid, err := p.gas.GetBid(ctx, opp)
	if err != nil {
		res.Reason = err.Error()
		return res
	}

	p.status(opp.ID, StateSimulating, "")
	r.simStartedAt = nowNanos()
	out, err := p.sim.Run(ctx, opp, bid)
	r.simCompletedAt = nowNanos()
	if err != nil {
		var policy *sim.PolicyError
		if errors.As(err, &policy) {
			return p.reject(res, policy.Reason)
		}
		res.Reason = fmt.Sprintf("simulation failed: %v", err)
		return res
	}

	res.GasCostUSD = out.GasUSD
	res.FlashLoanFeeUSD = out.FlashLoanFeeUSD
	res.EstimatedProfitUSD = out.NetProfitUSD

	if out.Reverted {
		return p.reject(res, fmt.Sprintf("simulation reverted: %s", out.RevertReason))
	}
	if !out.Feasible {
		return p.reject(res, fmt.Sprintf(
			"unprofitable: net %s after gas %s and flash-loan fee %s",
			out.NetProfitUSD, out.GasUSD, out.FlashLoanFeeUSD))
	}

	// re-check the deadline at the submission boundary
	if opp.Expired(time.Now()) {
		return p.reject(res, "deadline exceeded")
	}

	if opp.UseMev && p.mev.Available(opp.ChainName) {
		return p.submitMev(ctx, r, chain, out, res)
	}
	return p.submitStandard(ctx, r, chain, out, res)
}

func (p *Pipeline) submitStandard(ctx context.Context, r *run, chain *chains.Chain, out *sim.Outcome, res *publish.Result) *publish.Result {
	opp := r.opp
	p.status(opp.ID, StateSubmitting, "")

	signed, err := p.builder.BuildAndSign(ctx, chain, out.Plan)
	if err != nil {
		res.Reason = fmt.Sprintf("build failed: %v", err)
		return res
	}

	txHash, err := chain.SendRawTransaction(ctx, signed.Hex)
	if err != nil {
		res.Reason = fmt.Sprintf("submission failed: %v", err)
		return res
	}
	r.submittedAt = nowNanos()
	res.TransactionHash = &txHash
	p.status(opp.ID, StatePending, txHash)

	for attempt := 0; attempt < receiptPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			res.Status = StateReceiptTimeout
			res.Reason = "shutdown before confirmation; transaction may still land"
			return res
		case <-time.After(receiptPollInterval):
		}

		rcpt, err := chain.TransactionReceipt(ctx, txHash)
		if err != nil {
			// transient; the attempt budget bounds us
			p.log.WithError(err).WithField("opportunity_id", opp.ID).Debug("receipt poll failed")
			continue
		}
		if rcpt == nil {
			continue
		}

		r.confirmedAt = nowNanos()
		if rcpt.BlockNumber != nil {
			n := rcpt.BlockNumber.ToInt().Uint64()
			res.BlockNumber = &n
		}
		res.GasUsed = uint64(rcpt.GasUsed)
		if rcpt.Status == 1 {
			res.Success = true
			res.Status = StateConfirmed
		} else {
			res.Status = StateFailed
			res.Reason = "transaction reverted on-chain"
		}
		return res
	}

	res.Status = StateReceiptTimeout
	res.Reason = "receipt timeout; transaction may still land"
	return res
}

func (p *Pipeline) submitMev(ctx context.Context, r *run, chain *chains.Chain, out *sim.Outcome, res *publish.Result) *publish.Result {
	opp := r.opp
	provider := mev.SelectProvider(opp)
	p.status(opp.ID, StateSubmittingMev, string(provider))

	signed, err := p.builder.BuildAndSign(ctx, chain, out.Plan)
	if err != nil {
		res.Reason = fmt.Sprintf("build failed: %v", err)
		return res
	}

	r.submittedAt = nowNanos()
	p.status(opp.ID, StatePending, "")
	outcome := p.mev.SubmitAndWait(ctx, opp, signed.Hex)

	if err := p.bus.PublishBundleOutcome(string(outcome.Provider), outcome); err != nil {
		p.log.WithError(err).Debug("bundle outcome publish failed")
	}

	res.MevProvider = string(outcome.Provider)
	res.BundleID = outcome.BundleID
	res.TipLamports = outcome.TipLamports
	res.WasFrontrun = outcome.WasFrontrun
	res.WasBackrun = outcome.WasBackrun
	res.TransactionHash = &signed.Hash

	if outcome.Landed {
		r.confirmedAt = nowNanos()
		res.Success = true
		res.Status = StateConfirmed
		res.BlockNumber = outcome.BlockNumber
		return res
	}

	res.Status = StateFailed
	res.Reason = outcome.Reason
	if res.Reason == "" {
		res.Reason = "bundle not included"
	}
	return res
}

func (p *Pipeline) reject(res *publish.Result, reason string) *publish.Result {
	res.Success = false
	res.Status = StateRejected
	res.Reason = reason
	return res
}

// status publishes a transition update before the transition is observable
// anywhere else.
func (p *Pipeline) status(opportunityID, state, detail string) {
	if err := p.bus.PublishStatus(opportunityID, state, detail); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"opportunity_id": opportunityID,
			"status":         state,
		}).Debug("status publish failed")
	}
}
