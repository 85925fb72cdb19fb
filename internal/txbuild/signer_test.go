package txbuild

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/paulwcunningham/FLIS/internal/chains"
	"github.com/paulwcunningham/FLIS/internal/sim"
)

// well-known anvil test key
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const testAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestNewSigner(t *testing.T) {
	s, err := NewSigner(testKey)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if s.Address() != common.HexToAddress(testAddr) {
		t.Errorf("address = %s", s.Address())
	}

	// 0x prefix accepted
	prefixed, err := NewSigner("0x" + testKey)
	if err != nil {
		t.Fatalf("NewSigner with prefix: %v", err)
	}
	if prefixed.Address() != s.Address() {
		t.Error("prefix changed derived address")
	}

	if _, err := NewSigner("not-a-key"); err == nil {
		t.Error("expected error for garbage key")
	}
}

func TestBuildAndSign(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)
		if req.Method != "eth_getTransactionCount" {
			t.Fatalf("unexpected method %s", req.Method)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": "0x7"})
	}))
	defer srv.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	reg, err := chains.NewRegistry([]chains.Node{{ChainName: "ethereum", RPCURL: srv.URL, ChainID: 1}}, log)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer reg.Close()
	chain, _ := reg.Get("ethereum")

	signer, _ := NewSigner(testKey)
	plan := &sim.CallPlan{
		To:          common.HexToAddress("0x00000000000000000000000000000000000000AA"),
		Data:        []byte{0xde, 0xad, 0xbe, 0xef},
		Gas:         300000,
		GasPriceWei: big.NewInt(50e9),
	}

	signed, err := signer.BuildAndSign(context.Background(), chain, plan)
	if err != nil {
		t.Fatalf("BuildAndSign: %v", err)
	}
	if !strings.HasPrefix(signed.Hex, "0x") {
		t.Errorf("hex = %q", signed.Hex)
	}

	// decode the artifact back and check it round-trips the plan
	raw, err := hexutil.Decode(signed.Hex)
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		t.Fatalf("unmarshal tx: %v", err)
	}
	if tx.Nonce() != 7 {
		t.Errorf("nonce = %d", tx.Nonce())
	}
	if tx.Gas() != plan.Gas {
		t.Errorf("gas = %d", tx.Gas())
	}
	if tx.GasPrice().Cmp(plan.GasPriceWei) != 0 {
		t.Errorf("gasPrice = %s", tx.GasPrice())
	}
	if *tx.To() != plan.To {
		t.Errorf("to = %s", tx.To())
	}
	if string(tx.Data()) != string(plan.Data) {
		t.Error("calldata mutated between simulation and signing")
	}
	if tx.Hash().Hex() != signed.Hash {
		t.Errorf("hash mismatch: %s vs %s", tx.Hash().Hex(), signed.Hash)
	}

	// signature recovers the executor address
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), &tx)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if from != signer.Address() {
		t.Errorf("sender = %s", from)
	}
}
