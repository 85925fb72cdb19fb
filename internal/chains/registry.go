package chains

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// Node describes one configured chain endpoint.
type Node struct {
	ChainName string `json:"chainName"`
	RPCURL    string `json:"rpcUrl"`
	ChainID   int64  `json:"chainId"`
}

// Chain is a handle on a single chain's JSON-RPC endpoint.
type Chain struct {
	Name string
	ID   *big.Int
	rpc  *rpc.Client
}

// Registry holds per-chain handles keyed by lowercased chain name. Built at
// startup, read-only afterwards.
type Registry struct {
	chains map[string]*Chain
	log    *logrus.Logger
}

func NewRegistry(nodes []Node, log *logrus.Logger) (*Registry, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no chain nodes configured")
	}
	r := &Registry{chains: make(map[string]*Chain, len(nodes)), log: log}
	for _, n := range nodes {
		name := strings.ToLower(n.ChainName)
		client, err := rpc.Dial(n.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s rpc: %w", name, err)
		}
		r.chains[name] = &Chain{Name: name, ID: big.NewInt(n.ChainID), rpc: client}
		log.WithFields(logrus.Fields{"chain": name, "chain_id": n.ChainID}).Info("chain registered")
	}
	return r, nil
}

// Get returns the handle for a chain name, case-insensitively.
func (r *Registry) Get(name string) (*Chain, error) {
	c, ok := r.chains[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown chain %q", name)
	}
	return c, nil
}

// Names lists the registered chains.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.chains))
	for name := range r.chains {
		out = append(out, name)
	}
	return out
}

func (r *Registry) Close() {
	for _, c := range r.chains {
		c.rpc.Close()
	}
}

// CallParams is the read-only call used to gate execution. The same params
// must later form the submitted transaction.
type CallParams struct {
	From        common.Address
	To          common.Address
	Data        []byte
	Gas         uint64
	GasPriceWei *big.Int
}

// BlockNumber returns the current head number.
func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	var out hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &out, "eth_blockNumber"); err != nil {
		return 0, &TransportError{Op: "eth_blockNumber", Err: err}
	}
	return uint64(out), nil
}

// GasPrice returns the node's suggested gas price in wei.
func (c *Chain) GasPrice(ctx context.Context) (*big.Int, error) {
	var out hexutil.Big
	if err := c.rpc.CallContext(ctx, &out, "eth_gasPrice"); err != nil {
		return nil, &TransportError{Op: "eth_gasPrice", Err: err}
	}
	return (*big.Int)(&out), nil
}

// SimulateCall performs a read-only eth_call. A revert comes back as
// *RevertError, anything else as *TransportError.
func (c *Chain) SimulateCall(ctx context.Context, call CallParams) ([]byte, error) {
	arg := map[string]interface{}{
		"to":   call.To,
		"data": hexutil.Bytes(call.Data),
	}
	if call.From != (common.Address{}) {
		arg["from"] = call.From
	}
	if call.Gas > 0 {
		arg["gas"] = hexutil.Uint64(call.Gas)
	}
	if call.GasPriceWei != nil {
		arg["gasPrice"] = (*hexutil.Big)(call.GasPriceWei)
	}

	var out hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &out, "eth_call", arg, "latest"); err != nil {
		return nil, classifyCallError("eth_call", err)
	}
	return out, nil
}

// SendRawTransaction submits a signed transaction and returns its hash.
func (c *Chain) SendRawTransaction(ctx context.Context, signedHex string) (string, error) {
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", signedHex); err != nil {
		return "", classifyCallError("eth_sendRawTransaction", err)
	}
	return hash.Hex(), nil
}

// Receipt is the subset of the transaction receipt the executor reads.
type Receipt struct {
	TransactionHash common.Hash     `json:"transactionHash"`
	BlockNumber     *hexutil.Big    `json:"blockNumber"`
	GasUsed         hexutil.Uint64  `json:"gasUsed"`
	Status          hexutil.Uint64  `json:"status"`
	EffectiveGas    *hexutil.Big    `json:"effectiveGasPrice"`
	ContractAddress *common.Address `json:"contractAddress"`
}

// TransactionReceipt returns (nil, nil) while the transaction is pending.
func (c *Chain) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var out *Receipt
	if err := c.rpc.CallContext(ctx, &out, "eth_getTransactionReceipt", common.HexToHash(txHash)); err != nil {
		return nil, &TransportError{Op: "eth_getTransactionReceipt", Err: err}
	}
	return out, nil
}

// PendingNonce returns the account's next nonce including pending txs.
func (c *Chain) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var out hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &out, "eth_getTransactionCount", addr, "pending"); err != nil {
		return 0, &TransportError{Op: "eth_getTransactionCount", Err: err}
	}
	return uint64(out), nil
}
