package mev

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
)

var (
	jitoPollInterval = 500 * time.Millisecond
	jitoWaitDeadline = 30 * time.Second
)

// JitoConfig configures the Solana block-engine relay.
type JitoConfig struct {
	BlockEngineURL string
	TipFloorURL    string
	AuthToken      string
}

// JitoClient submits bundles to a Jito-style Solana block engine.
type JitoClient struct {
	blockEngineURL string
	tipFloorURL    string
	authToken      string
	http           *http.Client
	log            *logrus.Logger

	tipAccounts []string
	tipRotation atomic.Uint64
}

func NewJitoClient(cfg JitoConfig, log *logrus.Logger) *JitoClient {
	return &JitoClient{
		blockEngineURL: cfg.BlockEngineURL,
		tipFloorURL:    cfg.TipFloorURL,
		authToken:      cfg.AuthToken,
		http:           &http.Client{Timeout: 15 * time.Second},
		log:            log,
	}
}

func (j *JitoClient) configured() bool {
	return j.blockEngineURL != ""
}

// RefreshTipAccounts loads and validates the block engine's tip accounts.
// Called at startup; the set is stable for the life of the process.
func (j *JitoClient) RefreshTipAccounts(ctx context.Context) error {
	var accounts []string
	if err := rpcCall(ctx, j.http, j.blockEngineURL, "x-jito-auth", j.authToken, "getTipAccounts", []interface{}{}, &accounts); err != nil {
		return fmt.Errorf("getTipAccounts: %w", err)
	}

	valid := accounts[:0]
	for _, acc := range accounts {
		raw, err := base58.Decode(acc)
		if err != nil || len(raw) != 32 {
			j.log.WithField("account", acc).Warn("discarding malformed tip account")
			continue
		}
		valid = append(valid, acc)
	}
	if len(valid) == 0 {
		return fmt.Errorf("block engine returned no usable tip accounts")
	}
	j.tipAccounts = valid
	return nil
}

// nextTipAccount rotates through the validated tip accounts.
func (j *JitoClient) nextTipAccount() string {
	if len(j.tipAccounts) == 0 {
		return ""
	}
	n := j.tipRotation.Add(1)
	return j.tipAccounts[int(n)%len(j.tipAccounts)]
}

type jitoSubmission struct {
	Transactions  []string `json:"transactions"`
	SkipPreflight bool     `json:"skip_preflight"`
	MaxRetries    int      `json:"max_retries"`
}

// SubmitBundle sends the raw transaction (base64) and waits for a terminal
// bundle status. The sized tip and the rotated tip account are recorded in the
// outcome only; the submission payload carries no tip and no tip transfer is
// added to the bundle. Never returns an error: relay failures become a
// not-landed outcome with a reason.
func (j *JitoClient) SubmitBundle(ctx context.Context, rawTx []byte, tipLamports uint64) *BundleOutcome {
	out := &BundleOutcome{
		Provider:         ProviderJito,
		TipLamports:      tipLamports,
		TipAccount:       j.nextTipAccount(),
		SubmittedAtNanos: time.Now().UnixNano(),
	}

	sub := jitoSubmission{
		Transactions:  []string{base64.StdEncoding.EncodeToString(rawTx)},
		SkipPreflight: true,
		MaxRetries:    0,
	}

	var bundleID string
	if err := rpcCall(ctx, j.http, j.blockEngineURL, "x-jito-auth", j.authToken, "sendBundle", []interface{}{sub}, &bundleID); err != nil {
		out.Reason = err.Error()
		out.CompletedAtNanos = time.Now().UnixNano()
		return out
	}
	out.BundleID = bundleID

	j.log.WithFields(logrus.Fields{
		"bundle_id":    bundleID,
		"tip_lamports": tipLamports,
		"tip_account":  out.TipAccount,
	}).Info("bundle submitted to block engine")

	j.waitForLanding(ctx, out)
	out.CompletedAtNanos = time.Now().UnixNano()
	return out
}

type jitoBundleStatus struct {
	BundleID string  `json:"bundle_id"`
	Status   string  `json:"status"`
	Slot     *uint64 `json:"slot"`
}

type jitoStatusResult struct {
	Value []jitoBundleStatus `json:"value"`
}

func (j *JitoClient) waitForLanding(ctx context.Context, out *BundleOutcome) {
	deadline := time.NewTimer(jitoWaitDeadline)
	defer deadline.Stop()
	tick := time.NewTicker(jitoPollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			out.Reason = "Confirmation timeout"
			return
		case <-deadline.C:
			out.Reason = "Confirmation timeout"
			return
		case <-tick.C:
			var res jitoStatusResult
			err := rpcCall(ctx, j.http, j.blockEngineURL, "x-jito-auth", j.authToken,
				"getBundleStatuses", []interface{}{[]string{out.BundleID}}, &res)
			if err != nil {
				// keep polling; the deadline bounds us
				j.log.WithError(err).Debug("bundle status poll failed")
				continue
			}
			if len(res.Value) == 0 {
				continue
			}
			st := res.Value[0]
			switch st.Status {
			case "landed":
				out.Landed = true
				out.BlockNumber = st.Slot
				return
			case "failed", "invalid":
				out.Reason = fmt.Sprintf("bundle %s", st.Status)
				return
			default:
				if st.Slot != nil {
					out.Landed = true
					out.BlockNumber = st.Slot
					return
				}
			}
		}
	}
}
