package gasbid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/paulwcunningham/FLIS/internal/opportunity"
)

const defaultTimeout = 15 * time.Second

// Bid is the oracle's answer: what to pay for gas and what it will cost.
type Bid struct {
	GasPriceGwei     decimal.Decimal `json:"gasPriceGwei"`
	GasLimit         uint64          `json:"gasLimit"`
	EstimatedCostUSD decimal.Decimal `json:"estimatedCostUsd"`
}

// Validate enforces the all-positive-finite invariant.
func (b *Bid) Validate() error {
	if b.GasPriceGwei.Sign() <= 0 {
		return fmt.Errorf("non-positive gas price %s", b.GasPriceGwei)
	}
	if b.GasLimit == 0 {
		return fmt.Errorf("zero gas limit")
	}
	if b.EstimatedCostUSD.Sign() <= 0 {
		return fmt.Errorf("non-positive cost estimate %s", b.EstimatedCostUSD)
	}
	return nil
}

// BidError is fatal for the current opportunity; the pipeline rejects the run
// rather than retrying the oracle.
type BidError struct {
	Err error
}

func (e *BidError) Error() string {
	return fmt.Sprintf("gas bid failed: %v", e.Err)
}

func (e *BidError) Unwrap() error {
	return e.Err
}

// Client talks to the ML gas-bidding oracle over HTTP.
type Client struct {
	baseURL  string
	endpoint string
	http     *http.Client
	log      *logrus.Logger
}

func NewClient(baseURL, endpoint string, log *logrus.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		endpoint: endpoint,
		http:     &http.Client{Timeout: defaultTimeout},
		log:      log,
	}
}

type bidRequest struct {
	ChainName      string          `json:"chainName"`
	Asset          string          `json:"asset"`
	Amount         decimal.Decimal `json:"amount"`
	ExpectedProfit decimal.Decimal `json:"expectedProfit"`
}

// GetBid asks the oracle to price the opportunity's execution.
func (c *Client) GetBid(ctx context.Context, opp *opportunity.Opportunity) (*Bid, error) {
	body, err := json.Marshal(bidRequest{
		ChainName:      opp.ChainName,
		Asset:          opp.Asset,
		Amount:         opp.Amount,
		ExpectedProfit: opp.ExpectedProfit,
	})
	if err != nil {
		return nil, &BidError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &BidError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &BidError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &BidError{Err: fmt.Errorf("oracle returned %d: %s", resp.StatusCode, snippet)}
	}

	var bid Bid
	if err := json.NewDecoder(resp.Body).Decode(&bid); err != nil {
		return nil, &BidError{Err: fmt.Errorf("failed to decode bid: %w", err)}
	}
	if err := bid.Validate(); err != nil {
		return nil, &BidError{Err: err}
	}

	c.log.WithFields(logrus.Fields{
		"opportunity_id": opp.ID,
		"gas_price_gwei": bid.GasPriceGwei,
		"gas_limit":      bid.GasLimit,
		"cost_usd":       bid.EstimatedCostUSD,
		"latency":        time.Since(start),
	}).Debug("gas bid received")

	return &bid, nil
}
