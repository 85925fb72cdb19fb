package sim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/paulwcunningham/FLIS/internal/chains"
	"github.com/paulwcunningham/FLIS/internal/gasbid"
	"github.com/paulwcunningham/FLIS/internal/opportunity"
)

// flash-loan pools charge 9 bps on the borrowed amount
var flashLoanFeeRate = decimal.RequireFromString("0.0009")

// loaned assets are treated as 18-decimal tokens for wei conversion
const assetDecimals = 18

// BindingSpec is the configured contract binding for one chain.
type BindingSpec struct {
	ChainName       string `json:"chainName"`
	ContractAddress string `json:"contractAddress"`
	ABI             string `json:"abi"`
}

type binding struct {
	address common.Address
	abi     abi.ABI
}

// Simulator gates execution: it encodes the strategy call, runs it read-only
// against the chain, and prices the outcome.
type Simulator struct {
	registry *chains.Registry
	bindings map[string]binding
	from     common.Address
	log      *logrus.Logger
}

func New(registry *chains.Registry, specs []BindingSpec, from common.Address, log *logrus.Logger) (*Simulator, error) {
	bindings := make(map[string]binding, len(specs))
	for _, spec := range specs {
		name := strings.ToLower(spec.ChainName)
		if !common.IsHexAddress(spec.ContractAddress) {
			return nil, fmt.Errorf("invalid contract address %q for chain %s", spec.ContractAddress, name)
		}
		b := binding{address: common.HexToAddress(spec.ContractAddress), abi: executorABI}
		if spec.ABI != "" {
			parsed, err := abi.JSON(strings.NewReader(spec.ABI))
			if err != nil {
				return nil, fmt.Errorf("failed to parse abi for chain %s: %w", name, err)
			}
			b.abi = parsed
		}
		bindings[name] = b
	}
	return &Simulator{registry: registry, bindings: bindings, from: from, log: log}, nil
}

// PolicyError marks inputs the executor refuses on policy grounds: no
// contract binding, unknown strategy, unconvertible amounts. The run ends
// rejected rather than failed.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}

// CallPlan is the exact call the simulator executed. The submitted transaction
// must reuse it byte for byte.
type CallPlan struct {
	To          common.Address
	Data        []byte
	Gas         uint64
	GasPriceWei *big.Int
}

// Outcome is the simulation verdict plus the cost breakdown behind it.
type Outcome struct {
	Feasible     bool
	Reverted     bool
	RevertReason string

	NetProfitUSD    decimal.Decimal
	GasUSD          decimal.Decimal
	FlashLoanFeeUSD decimal.Decimal

	Plan *CallPlan
}

// EncodeCall builds the strategy call-data for the chain's bound contract.
// Same inputs always produce the same bytes.
func (s *Simulator) EncodeCall(opp *opportunity.Opportunity) (common.Address, []byte, error) {
	b, ok := s.bindings[opp.ChainName]
	if !ok {
		return common.Address{}, nil, &PolicyError{Reason: fmt.Sprintf("no contract binding for chain %q", opp.ChainName)}
	}

	amountWei, err := opp.AmountWei(assetDecimals)
	if err != nil {
		return common.Address{}, nil, &PolicyError{Reason: err.Error()}
	}
	minProfitWei, err := opp.MinProfitWei(assetDecimals)
	if err != nil {
		return common.Address{}, nil, &PolicyError{Reason: err.Error()}
	}
	asset := common.HexToAddress(opp.Asset)

	var data []byte
	switch opp.Strategy {
	case opportunity.CrossDex:
		data, err = b.abi.Pack("executeCrossDexArbitrage",
			asset, amountWei, common.HexToAddress(opp.SourceDex), common.HexToAddress(opp.TargetDex), minProfitWei)
	case opportunity.MultiHop:
		data, err = b.abi.Pack("executeMultiHopArbitrage",
			asset, amountWei, toAddresses(opp.Path), minProfitWei)
	case opportunity.Triangular:
		data, err = b.abi.Pack("executeTriangularArbitrage",
			asset, amountWei, toAddresses(opp.Path), minProfitWei)
	case opportunity.MevRouted:
		// MEV routing changes the submission path, not the call shape
		if opp.SourceDex != "" && opp.TargetDex != "" {
			data, err = b.abi.Pack("executeCrossDexArbitrage",
				asset, amountWei, common.HexToAddress(opp.SourceDex), common.HexToAddress(opp.TargetDex), minProfitWei)
		} else {
			data, err = b.abi.Pack("executeMultiHopArbitrage",
				asset, amountWei, toAddresses(opp.Path), minProfitWei)
		}
	default:
		return common.Address{}, nil, &PolicyError{Reason: fmt.Sprintf("unknown strategy %q", opp.Strategy)}
	}
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to pack calldata: %w", err)
	}
	return b.address, data, nil
}

// Run simulates the opportunity and computes net profit after gas and the
// flash-loan fee. A revert is a negative verdict, not an error; errors are
// reserved for transport faults and for inputs that cannot be simulated
// (no binding, unknown chain or strategy, unconvertible amounts).
func (s *Simulator) Run(ctx context.Context, opp *opportunity.Opportunity, bid *gasbid.Bid) (*Outcome, error) {
	to, data, err := s.EncodeCall(opp)
	if err != nil {
		return nil, err
	}

	chain, err := s.registry.Get(opp.ChainName)
	if err != nil {
		return nil, err
	}

	plan := &CallPlan{To: to, Data: data, Gas: bid.GasLimit, GasPriceWei: bid.GasPriceWei()}
	fee := opp.Amount.Mul(flashLoanFeeRate)

	ret, err := chain.SimulateCall(ctx, chains.CallParams{
		From:        s.from,
		To:          plan.To,
		Data:        plan.Data,
		Gas:         plan.Gas,
		GasPriceWei: plan.GasPriceWei,
	})
	if err != nil {
		var revert *chains.RevertError
		if errors.As(err, &revert) {
			s.log.WithFields(logrus.Fields{
				"opportunity_id": opp.ID,
				"reason":         revert.Reason,
			}).Debug("simulation reverted")
			return &Outcome{
				Reverted:        true,
				RevertReason:    revert.Reason,
				GasUSD:          bid.EstimatedCostUSD,
				FlashLoanFeeUSD: fee,
				Plan:            plan,
			}, nil
		}
		return nil, err
	}

	// a call that succeeds but returns nothing parseable is not a pass
	if len(ret) < 32 {
		return &Outcome{
			Reverted:        true,
			RevertReason:    "simulation returned no decodable profit",
			GasUSD:          bid.EstimatedCostUSD,
			FlashLoanFeeUSD: fee,
			Plan:            plan,
		}, nil
	}

	net := opp.ExpectedProfit.Sub(bid.EstimatedCostUSD).Sub(fee)
	return &Outcome{
		Feasible:        net.Sign() > 0,
		NetProfitUSD:    net,
		GasUSD:          bid.EstimatedCostUSD,
		FlashLoanFeeUSD: fee,
		Plan:            plan,
	}, nil
}

func toAddresses(path opportunity.AddressList) []common.Address {
	out := make([]common.Address, len(path))
	for i, p := range path {
		out[i] = common.HexToAddress(p)
	}
	return out
}
