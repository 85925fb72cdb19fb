package mev

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"github.com/paulwcunningham/FLIS/internal/chains"
)

var (
	suavePollInterval = 1 * time.Second
	suaveWaitDeadline = 60 * time.Second
)

// SuaveConfig maps each EVM chain to its builder relay endpoint.
type SuaveConfig struct {
	BuilderURLs map[string]string
	AuthToken   string
}

// SuaveClient submits eth_sendBundle payloads to per-chain builder relays.
type SuaveClient struct {
	builderURLs map[string]string
	authToken   string
	registry    *chains.Registry
	http        *http.Client
	log         *logrus.Logger
}

func NewSuaveClient(cfg SuaveConfig, registry *chains.Registry, log *logrus.Logger) *SuaveClient {
	urls := make(map[string]string, len(cfg.BuilderURLs))
	for chain, url := range cfg.BuilderURLs {
		urls[strings.ToLower(chain)] = url
	}
	return &SuaveClient{
		builderURLs: urls,
		authToken:   cfg.AuthToken,
		registry:    registry,
		http:        &http.Client{Timeout: 15 * time.Second},
		log:         log,
	}
}

func (s *SuaveClient) configuredFor(chain string) bool {
	_, ok := s.builderURLs[strings.ToLower(chain)]
	return ok
}

type evmBundle struct {
	Txs               []string       `json:"txs"`
	BlockNumber       hexutil.Uint64 `json:"blockNumber"`
	MinTimestamp      uint64         `json:"minTimestamp,omitempty"`
	MaxTimestamp      uint64         `json:"maxTimestamp,omitempty"`
	RevertingTxHashes []string       `json:"revertingTxHashes,omitempty"`
}

type sendBundleResult struct {
	BundleHash string `json:"bundleHash"`
}

// SubmitBundle targets the next block and waits for inclusion or the
// 60 second deadline. Relay failures become a not-landed outcome.
func (s *SuaveClient) SubmitBundle(ctx context.Context, chainName, signedTxHex string) *BundleOutcome {
	out := &BundleOutcome{
		Provider:         ProviderSuave,
		SubmittedAtNanos: time.Now().UnixNano(),
	}

	url, ok := s.builderURLs[strings.ToLower(chainName)]
	if !ok {
		out.Reason = fmt.Sprintf("no builder relay configured for chain %q", chainName)
		out.CompletedAtNanos = time.Now().UnixNano()
		return out
	}

	chain, err := s.registry.Get(chainName)
	if err != nil {
		out.Reason = err.Error()
		out.CompletedAtNanos = time.Now().UnixNano()
		return out
	}
	head, err := chain.BlockNumber(ctx)
	if err != nil {
		out.Reason = fmt.Sprintf("failed to fetch head: %v", err)
		out.CompletedAtNanos = time.Now().UnixNano()
		return out
	}
	target := head + 1

	now := uint64(time.Now().Unix())
	bundle := evmBundle{
		Txs:          []string{signedTxHex},
		BlockNumber:  hexutil.Uint64(target),
		MinTimestamp: now,
		MaxTimestamp: now + uint64(suaveWaitDeadline/time.Second),
	}

	var res sendBundleResult
	if err := rpcCall(ctx, s.http, url, "X-Flashbots-Signature", s.authToken, "eth_sendBundle", []interface{}{bundle}, &res); err != nil {
		out.Reason = err.Error()
		out.CompletedAtNanos = time.Now().UnixNano()
		return out
	}
	out.BundleID = res.BundleHash
	out.TargetBlock = &target

	s.log.WithFields(logrus.Fields{
		"chain":        chainName,
		"bundle_hash":  res.BundleHash,
		"target_block": target,
	}).Info("bundle submitted to builder relay")

	s.waitForInclusion(ctx, url, target, out)
	out.CompletedAtNanos = time.Now().UnixNano()
	return out
}

type evmBundleStats struct {
	Status      string          `json:"status"`
	IsIncluded  bool            `json:"isIncluded"`
	BlockNumber *hexutil.Uint64 `json:"blockNumber"`
}

func (s *SuaveClient) waitForInclusion(ctx context.Context, url string, target uint64, out *BundleOutcome) {
	deadline := time.NewTimer(suaveWaitDeadline)
	defer deadline.Stop()
	tick := time.NewTicker(suavePollInterval)
	defer tick.Stop()

	query := map[string]interface{}{
		"bundleHash":  out.BundleID,
		"blockNumber": hexutil.Uint64(target),
	}

	for {
		select {
		case <-ctx.Done():
			out.Reason = "Confirmation timeout"
			return
		case <-deadline.C:
			out.Reason = "Confirmation timeout"
			return
		case <-tick.C:
			var stats evmBundleStats
			err := rpcCall(ctx, s.http, url, "X-Flashbots-Signature", s.authToken,
				"flashbots_getBundleStats", []interface{}{query}, &stats)
			if err != nil {
				s.log.WithError(err).Debug("bundle stats poll failed")
				continue
			}
			switch {
			case stats.Status == "failed":
				out.Reason = "bundle failed"
				return
			case stats.IsIncluded, stats.Status == "landed", stats.BlockNumber != nil:
				out.Landed = true
				if stats.BlockNumber != nil {
					n := uint64(*stats.BlockNumber)
					out.BlockNumber = &n
				} else {
					out.BlockNumber = &target
				}
				return
			}
		}
	}
}
