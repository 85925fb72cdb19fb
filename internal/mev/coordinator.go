package mev

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"github.com/paulwcunningham/FLIS/internal/chains"
	"github.com/paulwcunningham/FLIS/internal/opportunity"
)

// BundleOutcome records one bundle submission end to end.
type BundleOutcome struct {
	Provider    Provider `json:"provider"`
	BundleID    string   `json:"bundleId"`
	Landed      bool     `json:"landed"`
	BlockNumber *uint64  `json:"blockNumber"`
	TargetBlock *uint64  `json:"targetBlock,omitempty"`
	TipLamports uint64   `json:"tipLamports,omitempty"`
	TipAccount  string   `json:"tipAccount,omitempty"`
	Reason      string   `json:"reason,omitempty"`

	// reserved for downstream analysis, not computed here
	WasFrontrun bool `json:"wasFrontrun"`
	WasBackrun  bool `json:"wasBackrun"`

	SubmittedAtNanos int64 `json:"submittedAtNanos"`
	CompletedAtNanos int64 `json:"completedAtNanos"`
}

// Coordinator routes bundles to the right relay and owns the inclusion wait.
type Coordinator struct {
	suave *SuaveClient
	jito  *JitoClient
	log   *logrus.Logger
}

func NewCoordinator(suaveCfg SuaveConfig, jitoCfg JitoConfig, registry *chains.Registry, log *logrus.Logger) *Coordinator {
	return &Coordinator{
		suave: NewSuaveClient(suaveCfg, registry, log),
		jito:  NewJitoClient(jitoCfg, log),
		log:   log,
	}
}

// Jito exposes the block-engine client for startup tip-account refresh.
func (c *Coordinator) Jito() *JitoClient {
	return c.jito
}

// Available reports whether a relay is configured for the chain. Routing to
// the MEV branch requires this in addition to the opportunity's useMev flag.
func (c *Coordinator) Available(chainName string) bool {
	if strings.ToLower(chainName) == "solana" {
		return c.jito.configured()
	}
	return c.suave.configuredFor(chainName)
}

// SubmitAndWait sizes the tip where applicable, submits the bundle through the
// selected provider, and blocks until a terminal status or the provider
// deadline. It never returns an error; failures are encoded in the outcome.
func (c *Coordinator) SubmitAndWait(ctx context.Context, opp *opportunity.Opportunity, signedTxHex string) *BundleOutcome {
	provider := SelectProvider(opp)

	c.log.WithFields(logrus.Fields{
		"opportunity_id": opp.ID,
		"chain":          opp.ChainName,
		"provider":       provider,
	}).Info("routing bundle")

	if provider == ProviderJito {
		raw, err := hexutil.Decode(signedTxHex)
		if err != nil {
			return &BundleOutcome{Provider: ProviderJito, Reason: "invalid signed tx encoding: " + err.Error()}
		}
		est := c.jito.fetchTipEstimate(ctx)
		tip := SizeTip(est, opp)
		return c.jito.SubmitBundle(ctx, raw, tip)
	}
	return c.suave.SubmitBundle(ctx, opp.ChainName, signedTxHex)
}
