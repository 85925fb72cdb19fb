package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/paulwcunningham/FLIS/internal/chains"
	"github.com/paulwcunningham/FLIS/internal/gasbid"
	"github.com/paulwcunningham/FLIS/internal/mev"
	"github.com/paulwcunningham/FLIS/internal/opportunity"
	"github.com/paulwcunningham/FLIS/internal/pipeline"
	"github.com/paulwcunningham/FLIS/internal/publish"
	"github.com/paulwcunningham/FLIS/internal/sim"
	"github.com/paulwcunningham/FLIS/internal/txbuild"
)

// offline driver: replays a JSON file of opportunities through the real
// pipeline against in-process stub collaborators and prints the outcomes.

// throwaway dev key, never funded
const replayKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const profitWord = "0x0000000000000000000000000000000000000000000000000de0b6b3a7640000"

func main() {
	file := flag.String("file", "", "JSON array of opportunities to replay")
	gasPriceGwei := flag.Int64("gas-price", 50, "stub oracle gas price (gwei)")
	gasCostUSD := flag.Int64("gas-cost", 25, "stub oracle cost estimate (USD)")
	contract := flag.String("contract", "0x00000000000000000000000000000000000000AA", "stub contract binding address")
	flag.Parse()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --file <opportunities.json>")
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *file, err)
		os.Exit(1)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse %s: %v\n", *file, err)
		os.Exit(1)
	}

	node := stubNode()
	defer node.Close()
	oracle := stubOracle(*gasPriceGwei, *gasCostUSD)
	defer oracle.Close()
	relay := stubRelay()
	defer relay.Close()

	registry, err := chains.NewRegistry([]chains.Node{
		{ChainName: "ethereum", RPCURL: node.URL, ChainID: 1},
		{ChainName: "solana", RPCURL: node.URL, ChainID: 0},
		{ChainName: "polygon", RPCURL: node.URL, ChainID: 137},
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "registry: %v\n", err)
		os.Exit(1)
	}
	defer registry.Close()

	signer, _ := txbuild.NewSigner(replayKey)
	simulator, err := sim.New(registry, []sim.BindingSpec{
		{ChainName: "ethereum", ContractAddress: *contract},
		{ChainName: "solana", ContractAddress: *contract},
		{ChainName: "polygon", ContractAddress: *contract},
	}, signer.Address(), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}

	coordinator := mev.NewCoordinator(
		mev.SuaveConfig{BuilderURLs: map[string]string{"ethereum": relay.URL, "polygon": relay.URL}},
		mev.JitoConfig{BlockEngineURL: relay.URL},
		registry, log,
	)

	bus := &printBus{}
	pl := pipeline.New(pipeline.Options{
		Chains:  registry,
		Gas:     gasbid.NewClient(oracle.URL, "/gas-bid", log),
		Sim:     simulator,
		Builder: signer,
		Mev:     coordinator,
		Bus:     bus,
		Log:     log,
	})

	ctx := context.Background()
	var confirmed, failed int
	for i, raw := range raws {
		opp, err := opportunity.Decode(raw)
		if err != nil {
			fmt.Printf("[%d] undecodable: %v\n", i, err)
			failed++
			continue
		}
		res := pl.Process(ctx, opp)
		if res.Success {
			confirmed++
		} else {
			failed++
		}
	}

	fmt.Printf("\nreplayed %d opportunities: %d confirmed, %d failed/rejected\n", len(raws), confirmed, failed)
}

// printBus renders each lane to stdout instead of a bus.
type printBus struct{}

func (printBus) PublishResult(res *publish.Result) error {
	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Printf("result %s:\n%s\n", res.OpportunityID, out)
	return nil
}

func (printBus) PublishStatus(id, status, detail string) error {
	fmt.Printf("  status %-10s %s %s\n", id, status, detail)
	return nil
}

func (printBus) PublishBundleOutcome(provider string, outcome interface{}) error {
	out, _ := json.Marshal(outcome)
	fmt.Printf("  bundle via %s: %s\n", provider, out)
	return nil
}

func (printBus) PublishTraining(rec publish.TrainingRecord) error {
	return nil
}

// stubNode answers the minimal JSON-RPC the pipeline touches.
func stubNode() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params []interface{}   `json:"params"`
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "eth_call":
			resp["result"] = profitWord
		case "eth_blockNumber":
			resp["result"] = "0x112a880"
		case "eth_getTransactionCount":
			resp["result"] = "0x0"
		case "eth_sendRawTransaction":
			raw, _ := req.Params[0].(string)
			resp["result"] = crypto.Keccak256Hash([]byte(raw)).Hex()
		case "eth_getTransactionReceipt":
			hash, _ := req.Params[0].(string)
			resp["result"] = map[string]interface{}{
				"transactionHash": hash,
				"blockNumber":     "0x112a881",
				"gasUsed":         "0x3d090",
				"status":          "0x1",
			}
		default:
			resp["result"] = nil
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func stubOracle(gasPriceGwei, costUSD int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"gasPriceGwei": %d, "gasLimit": 300000, "estimatedCostUsd": %d}`, gasPriceGwei, costUSD)
	}))
}

// stubRelay accepts bundles and reports immediate inclusion.
func stubRelay() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch {
		case req.Method == "eth_blockNumber":
			resp["result"] = "0x112a880"
		case req.Method == "eth_sendBundle":
			resp["result"] = map[string]interface{}{"bundleHash": "0xreplaybundle"}
		case req.Method == "flashbots_getBundleStats":
			resp["result"] = map[string]interface{}{"isIncluded": true, "blockNumber": "0x112a881"}
		case req.Method == "sendBundle":
			resp["result"] = "replay-bundle"
		case req.Method == "getBundleStatuses":
			resp["result"] = map[string]interface{}{
				"value": []map[string]interface{}{{"bundle_id": "replay-bundle", "status": "landed", "slot": 253111222}},
			}
		case req.Method == "getTipAccounts":
			resp["result"] = []string{"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"}
		default:
			resp["result"] = nil
		}
		json.NewEncoder(w).Encode(resp)
	}))
}
