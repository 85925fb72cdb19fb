package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/paulwcunningham/FLIS/internal/chains"
	"github.com/paulwcunningham/FLIS/internal/gasbid"
	"github.com/paulwcunningham/FLIS/internal/opportunity"
)

const contractAddr = "0x00000000000000000000000000000000000000AA"

// one uint256 profit word
const profitWord = "0x0000000000000000000000000000000000000000000000000de0b6b3a7640000"

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ethCallNode answers eth_call with the given result or error.
func ethCallNode(t *testing.T, result interface{}, rpcErr map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)
		if req.Method != "eth_call" {
			t.Fatalf("unexpected method %s", req.Method)
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testSimulator(t *testing.T, url string) *Simulator {
	t.Helper()
	reg, err := chains.NewRegistry([]chains.Node{{ChainName: "ethereum", RPCURL: url, ChainID: 1}}, quietLog())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(reg.Close)

	s, err := New(reg, []BindingSpec{{ChainName: "Ethereum", ContractAddress: contractAddr}},
		common.HexToAddress("0x00000000000000000000000000000000000000EE"), quietLog())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func crossDexOpp() *opportunity.Opportunity {
	return &opportunity.Opportunity{
		ID:             "E1",
		ChainName:      "ethereum",
		Asset:          "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Amount:         decimal.NewFromInt(10000),
		Strategy:       opportunity.CrossDex,
		SourceDex:      "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		TargetDex:      "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F",
		MinProfit:      decimal.NewFromInt(500),
		ExpectedProfit: decimal.NewFromInt(600),
	}
}

func bid(priceGwei, costUSD int64, limit uint64) *gasbid.Bid {
	return &gasbid.Bid{
		GasPriceGwei:     decimal.NewFromInt(priceGwei),
		GasLimit:         limit,
		EstimatedCostUSD: decimal.NewFromInt(costUSD),
	}
}

func TestRunProfitable(t *testing.T) {
	srv := ethCallNode(t, profitWord, nil)
	defer srv.Close()

	out, err := testSimulator(t, srv.URL).Run(context.Background(), crossDexOpp(), bid(50, 25, 300000))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Feasible {
		t.Fatal("expected feasible")
	}
	// 600 - 25 - 10000*0.0009 = 566
	if !out.NetProfitUSD.Equal(decimal.NewFromInt(566)) {
		t.Errorf("net = %s", out.NetProfitUSD)
	}
	if !out.FlashLoanFeeUSD.Equal(decimal.NewFromInt(9)) {
		t.Errorf("fee = %s", out.FlashLoanFeeUSD)
	}
	if out.Plan == nil || out.Plan.Gas != 300000 {
		t.Errorf("plan = %+v", out.Plan)
	}
	if out.Plan.GasPriceWei.String() != "50000000000" {
		t.Errorf("gasPriceWei = %s", out.Plan.GasPriceWei)
	}
}

func TestRunUnprofitable(t *testing.T) {
	srv := ethCallNode(t, profitWord, nil)
	defer srv.Close()

	opp := &opportunity.Opportunity{
		ID:             "E2",
		ChainName:      "ethereum",
		Asset:          "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Amount:         decimal.NewFromInt(100),
		Strategy:       opportunity.MultiHop,
		Path:           opportunity.AddressList{"0x1111111111111111111111111111111111111111", "0x2222222222222222222222222222222222222222", "0x1111111111111111111111111111111111111111"},
		MinProfit:      decimal.NewFromInt(5),
		ExpectedProfit: decimal.NewFromInt(5),
	}

	out, err := testSimulator(t, srv.URL).Run(context.Background(), opp, bid(80, 40, 400000))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Feasible {
		t.Error("expected infeasible")
	}
	// 5 - 40 - 0.09 = -35.09
	if !out.NetProfitUSD.Equal(decimal.RequireFromString("-35.09")) {
		t.Errorf("net = %s", out.NetProfitUSD)
	}
}

func TestRunRevert(t *testing.T) {
	srv := ethCallNode(t, nil, map[string]interface{}{
		"code":    3,
		"message": "execution reverted: profit below minimum",
	})
	defer srv.Close()

	out, err := testSimulator(t, srv.URL).Run(context.Background(), crossDexOpp(), bid(50, 25, 300000))
	if err != nil {
		t.Fatalf("revert must not be an error: %v", err)
	}
	if !out.Reverted || out.Feasible {
		t.Errorf("outcome = %+v", out)
	}
	if out.RevertReason == "" {
		t.Error("missing revert reason")
	}
}

func TestRunEmptyReturnIsInfeasible(t *testing.T) {
	srv := ethCallNode(t, "0x", nil)
	defer srv.Close()

	out, err := testSimulator(t, srv.URL).Run(context.Background(), crossDexOpp(), bid(50, 25, 300000))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Feasible || !out.Reverted {
		t.Errorf("empty return must not pass the gate: %+v", out)
	}
}

func TestRunTransportErrorSurfaces(t *testing.T) {
	srv := ethCallNode(t, nil, map[string]interface{}{"code": -32000, "message": "upstream timeout"})
	defer srv.Close()

	if _, err := testSimulator(t, srv.URL).Run(context.Background(), crossDexOpp(), bid(50, 25, 300000)); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestEncodeCallDeterministic(t *testing.T) {
	s := testSimulator(t, "http://127.0.0.1:1") // never dialed

	opp := crossDexOpp()
	_, first, err := s.EncodeCall(opp)
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	_, second, err := s.EncodeCall(opp)
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("same opportunity encoded to different calldata")
	}
}

func TestEncodeCallSelectorsPerStrategy(t *testing.T) {
	s := testSimulator(t, "http://127.0.0.1:1")

	cross := crossDexOpp()
	_, crossData, err := s.EncodeCall(cross)
	if err != nil {
		t.Fatalf("EncodeCall cross: %v", err)
	}

	tri := crossDexOpp()
	tri.Strategy = opportunity.Triangular
	tri.Path = opportunity.AddressList{"0x1111111111111111111111111111111111111111", "0x2222222222222222222222222222222222222222", "0x1111111111111111111111111111111111111111"}
	_, triData, err := s.EncodeCall(tri)
	if err != nil {
		t.Fatalf("EncodeCall tri: %v", err)
	}

	if bytes.Equal(crossData[:4], triData[:4]) {
		t.Error("strategies must use distinct selectors")
	}

	// MevRouted with a dex pair shares the CrossDex selector
	mev := crossDexOpp()
	mev.Strategy = opportunity.MevRouted
	_, mevData, err := s.EncodeCall(mev)
	if err != nil {
		t.Fatalf("EncodeCall mev: %v", err)
	}
	if !bytes.Equal(crossData[:4], mevData[:4]) {
		t.Error("MevRouted with dex pair should encode as CrossDex")
	}
}

func TestEncodeCallNoBinding(t *testing.T) {
	s := testSimulator(t, "http://127.0.0.1:1")
	opp := crossDexOpp()
	opp.ChainName = "base"
	if _, _, err := s.EncodeCall(opp); err == nil {
		t.Error("expected missing-binding error")
	}
}
