package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/paulwcunningham/FLIS/internal/chains"
	"github.com/paulwcunningham/FLIS/internal/sim"
)

const (
	defaultOpportunitySubject = "magnus.opportunities.flashloan"
	defaultGasBiddingEndpoint = "/api/v1/gas-bid"
)

type NATS struct {
	URL                string `json:"url"`
	OpportunitySubject string `json:"opportunitySubject"`
	ResultSubject      string `json:"resultSubject"`
	UseJetStream       bool   `json:"useJetStream"`
	User               string `json:"user"`
	Password           string `json:"password"`
	UseTLS             bool   `json:"useTls"`
	MaxInFlight        int    `json:"maxInFlight"`
}

type Wallet struct {
	PrivateKey string `json:"privateKey"`
}

type MLOptimizer struct {
	BaseURL            string `json:"baseUrl"`
	GasBiddingEndpoint string `json:"gasBiddingEndpoint"`
	ArchiveDir         string `json:"archiveDir"`
}

type Jito struct {
	BlockEngineURL string `json:"blockEngineUrl"`
	TipFloorURL    string `json:"tipFloorUrl"`
	AuthToken      string `json:"authToken"`
}

type Suave struct {
	BuilderURLs map[string]string `json:"builderUrls"`
	AuthToken   string            `json:"authToken"`
}

type Journal struct {
	Path string `json:"path"`
}

// Config is the full executor configuration surface.
type Config struct {
	NATS           NATS              `json:"nats"`
	Nodes          []chains.Node     `json:"nodes"`
	SmartContracts []sim.BindingSpec `json:"smartContracts"`
	ExecutorWallet Wallet            `json:"executorWallet"`
	MLOptimizer    MLOptimizer       `json:"mlOptimizer"`
	Jito           Jito              `json:"jito"`
	Suave          Suave             `json:"suave"`
	Journal        Journal           `json:"journal"`
}

// Load reads the JSON config file and applies environment overrides. A .env
// file in the working directory is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// secrets prefer the environment over the file
	if key := os.Getenv("EXECUTOR_PRIVATE_KEY"); key != "" {
		cfg.ExecutorWallet.PrivateKey = key
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.NATS.OpportunitySubject == "" {
		c.NATS.OpportunitySubject = defaultOpportunitySubject
	}
	if c.MLOptimizer.GasBiddingEndpoint == "" {
		c.MLOptimizer.GasBiddingEndpoint = defaultGasBiddingEndpoint
	}
}

// Validate fails startup on missing required keys.
func (c *Config) Validate() error {
	if c.ExecutorWallet.PrivateKey == "" {
		return fmt.Errorf("executorWallet.privateKey is required (or set EXECUTOR_PRIVATE_KEY)")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one chain node is required")
	}
	for i, n := range c.Nodes {
		if n.ChainName == "" || n.RPCURL == "" {
			return fmt.Errorf("nodes[%d] missing chainName or rpcUrl", i)
		}
	}
	if c.MLOptimizer.BaseURL == "" {
		return fmt.Errorf("mlOptimizer.baseUrl is required")
	}
	return nil
}
