package opportunity

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Strategy selects the on-chain entry point used to execute the arbitrage.
type Strategy string

const (
	CrossDex   Strategy = "CrossDex"
	MultiHop   Strategy = "MultiHop"
	Triangular Strategy = "Triangular"
	MevRouted  Strategy = "MevRouted"
)

// AddressList accepts either a JSON array of addresses or a single
// comma-separated string. Producers emit both shapes.
type AddressList []string

func (a *AddressList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*a = nil
			return nil
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*a = out
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = list
	return nil
}

// Opportunity is an inbound arbitrage signal. It is immutable once decoded;
// the pipeline owns it for the duration of one run.
type Opportunity struct {
	ID        string          `json:"id"`
	ChainName string          `json:"chainName"`
	Asset     string          `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	Strategy  Strategy        `json:"strategy"`

	SourceDex string      `json:"sourceDex"`
	TargetDex string      `json:"targetDex"`
	Path      AddressList `json:"path"`

	MinProfit       decimal.Decimal `json:"minProfit"`
	ExpectedProfit  decimal.Decimal `json:"expectedProfit"`
	ConfidenceScore float64         `json:"confidenceScore"`

	Deadline       string `json:"deadline"`
	ExpiresAtNanos int64  `json:"expiresAtNanos"`

	// market context, advisory only
	SpreadBps          float64  `json:"spreadBps"`
	OrderBookImbalance float64  `json:"orderBookImbalance"`
	VolatilityPercent  float64  `json:"volatilityPercent"`
	AoiScore           *float64 `json:"aoiScore"`
	MarketRegime       string   `json:"marketRegime"`

	UseMev               bool             `json:"useMev"`
	PreferredMevProvider string           `json:"preferredMevProvider"`
	MaxMevTip            *decimal.Decimal `json:"maxMevTip"`
	TargetBundlePosition int              `json:"targetBundlePosition"`

	MaxSlippageBps   int             `json:"maxSlippageBps"`
	MaxGasPriceGwei  decimal.Decimal `json:"maxGasPriceGwei"`
	AllowPartialFill bool            `json:"allowPartialFill"`

	SignalID       string `json:"signalId"`
	StrategyName   string `json:"strategyName"`
	SourceExchange string `json:"sourceExchange"`
	TargetExchange string `json:"targetExchange"`
}

// Decode parses an inbound bus payload. Field matching is case-insensitive
// (encoding/json semantics) and unknown fields are ignored; "chain" is
// accepted as an alias for "chainName".
func Decode(data []byte) (*Opportunity, error) {
	type alias Opportunity
	var wire struct {
		alias
		Chain string `json:"chain"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode opportunity: %w", err)
	}
	opp := Opportunity(wire.alias)
	if opp.ChainName == "" {
		opp.ChainName = wire.Chain
	}
	opp.ChainName = strings.ToLower(opp.ChainName)
	if err := opp.Validate(); err != nil {
		return nil, err
	}
	return &opp, nil
}

// Validate checks the fields the pipeline cannot proceed without. Chain
// resolution happens against the registry, not here.
func (o *Opportunity) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("opportunity missing id")
	}
	if o.ChainName == "" {
		return fmt.Errorf("opportunity %s missing chain name", o.ID)
	}
	if o.Asset == "" {
		return fmt.Errorf("opportunity %s missing asset", o.ID)
	}
	if o.Amount.Sign() <= 0 {
		return fmt.Errorf("opportunity %s has non-positive amount", o.ID)
	}

	switch o.Strategy {
	case CrossDex:
		if o.SourceDex == "" || o.TargetDex == "" {
			return fmt.Errorf("opportunity %s: CrossDex requires sourceDex and targetDex", o.ID)
		}
	case MultiHop:
		if len(o.Path) < 2 {
			return fmt.Errorf("opportunity %s: MultiHop requires a path of at least 2 tokens", o.ID)
		}
	case Triangular:
		if len(o.Path) < 3 {
			return fmt.Errorf("opportunity %s: Triangular requires a path of at least 3 tokens", o.ID)
		}
		if !strings.EqualFold(o.Path[0], o.Path[len(o.Path)-1]) {
			return fmt.Errorf("opportunity %s: Triangular path must start and end on the same token", o.ID)
		}
	case MevRouted:
		if (o.SourceDex == "" || o.TargetDex == "") && len(o.Path) < 2 {
			return fmt.Errorf("opportunity %s: MevRouted requires a dex pair or a path", o.ID)
		}
	default:
		return fmt.Errorf("opportunity %s: unknown strategy %q", o.ID, o.Strategy)
	}
	return nil
}

// ExpiresAt resolves the opportunity deadline. expiresAtNanos wins when both
// forms are present; a zero time means no deadline.
func (o *Opportunity) ExpiresAt() time.Time {
	if o.ExpiresAtNanos > 0 {
		return time.Unix(0, o.ExpiresAtNanos)
	}
	if o.Deadline != "" {
		if t, err := time.Parse(time.RFC3339Nano, o.Deadline); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Expired reports whether the deadline has passed at the given instant.
func (o *Opportunity) Expired(now time.Time) bool {
	exp := o.ExpiresAt()
	return !exp.IsZero() && now.After(exp)
}

// Aoi returns the AOI score with the 0.5 default used when producers omit it.
func (o *Opportunity) Aoi() float64 {
	if o.AoiScore == nil {
		return 0.5
	}
	return *o.AoiScore
}

// AmountWei converts the human-scale amount to wei at the given token
// decimals. The conversion truncates sub-wei dust.
func (o *Opportunity) AmountWei(decimals int32) (*big.Int, error) {
	return toWei(o.Amount, decimals)
}

// MinProfitWei converts the on-chain profit floor to wei.
func (o *Opportunity) MinProfitWei(decimals int32) (*big.Int, error) {
	return toWei(o.MinProfit, decimals)
}

func toWei(d decimal.Decimal, decimals int32) (*big.Int, error) {
	if d.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %s", d)
	}
	scaled := d.Shift(decimals).Truncate(0)
	wei := scaled.BigInt()
	// amounts are uint256 on chain
	if _, overflow := uint256.FromBig(wei); overflow {
		return nil, fmt.Errorf("amount %s overflows uint256 at %d decimals", d, decimals)
	}
	return wei, nil
}
