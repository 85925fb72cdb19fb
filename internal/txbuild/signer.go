package txbuild

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/paulwcunningham/FLIS/internal/chains"
	"github.com/paulwcunningham/FLIS/internal/sim"
)

// Signer holds the executor key and turns simulated call plans into raw
// signed transactions.
type Signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewSigner parses a hex-encoded private key, with or without 0x prefix.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid executor private key: %w", err)
	}
	return &Signer{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address is the executor account derived from the key.
func (s *Signer) Address() common.Address {
	return s.addr
}

// SignedTx pairs the raw hex artifact with its hash.
type SignedTx struct {
	Hex  string
	Hash string
}

// BuildAndSign assembles a transaction from the simulated call plan, fetches
// the nonce from the chain, and signs for the chain's id. The plan's call-data
// and gas parameters are reused unchanged so the submitted transaction matches
// what was simulated.
func (s *Signer) BuildAndSign(ctx context.Context, chain *chains.Chain, plan *sim.CallPlan) (*SignedTx, error) {
	nonce, err := chain.PendingNonce(ctx, s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	to := plan.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      plan.Gas,
		GasPrice: new(big.Int).Set(plan.GasPriceWei),
		Data:     plan.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chain.ID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode tx: %w", err)
	}

	return &SignedTx{Hex: hexutil.Encode(raw), Hash: signed.Hash().Hex()}, nil
}
