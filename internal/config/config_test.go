package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validConfig = `{
	"nats": {
		"url": "nats://localhost:4222",
		"opportunitySubject": "flashloan.opportunity.*",
		"useJetStream": true
	},
	"nodes": [
		{"chainName": "ethereum", "rpcUrl": "http://localhost:8545", "chainId": 1},
		{"chainName": "solana", "rpcUrl": "http://localhost:8899", "chainId": 0}
	],
	"smartContracts": [
		{"chainName": "ethereum", "contractAddress": "0x00000000000000000000000000000000000000AA"}
	],
	"executorWallet": {"privateKey": "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"},
	"mlOptimizer": {"baseUrl": "http://localhost:9000"},
	"jito": {"blockEngineUrl": "https://mainnet.block-engine.jito.wtf/api/v1"},
	"suave": {"builderUrls": {"ethereum": "https://relay.flashbots.net"}}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NATS.OpportunitySubject != "flashloan.opportunity.*" {
		t.Errorf("subject = %s", cfg.NATS.OpportunitySubject)
	}
	if len(cfg.Nodes) != 2 {
		t.Errorf("nodes = %d", len(cfg.Nodes))
	}
	if cfg.MLOptimizer.GasBiddingEndpoint != defaultGasBiddingEndpoint {
		t.Errorf("endpoint default missing: %s", cfg.MLOptimizer.GasBiddingEndpoint)
	}
}

func TestLoadMissingPrivateKeyIsFatal(t *testing.T) {
	t.Setenv("EXECUTOR_PRIVATE_KEY", "")
	broken := `{
		"nats": {"url": "nats://localhost:4222"},
		"nodes": [{"chainName": "ethereum", "rpcUrl": "http://localhost:8545", "chainId": 1}],
		"executorWallet": {},
		"mlOptimizer": {"baseUrl": "http://localhost:9000"}
	}`
	if _, err := Load(writeConfig(t, broken)); err == nil {
		t.Fatal("expected missing private key to fail startup")
	}
}

func TestPrivateKeyFromEnvironment(t *testing.T) {
	t.Setenv("EXECUTOR_PRIVATE_KEY", "deadbeef")
	noKey := `{
		"nats": {"url": "nats://localhost:4222"},
		"nodes": [{"chainName": "ethereum", "rpcUrl": "http://localhost:8545", "chainId": 1}],
		"executorWallet": {},
		"mlOptimizer": {"baseUrl": "http://localhost:9000"}
	}`
	cfg, err := Load(writeConfig(t, noKey))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ExecutorWallet.PrivateKey != "deadbeef" {
		t.Errorf("privateKey = %s", cfg.ExecutorWallet.PrivateKey)
	}
}

func TestValidateRequiresNodes(t *testing.T) {
	cfg := &Config{
		NATS:           NATS{URL: "nats://x"},
		ExecutorWallet: Wallet{PrivateKey: "k"},
		MLOptimizer:    MLOptimizer{BaseURL: "http://x"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty nodes")
	}
}
