package journal

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/paulwcunningham/FLIS/internal/publish"
)

func TestJournalRecord(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "executor.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	hash := "0xabc"
	block := uint64(18000001)
	ok := &publish.Result{
		OpportunityID:      "E1",
		ChainName:          "ethereum",
		Strategy:           "CrossDex",
		Status:             "confirmed",
		Success:            true,
		TransactionHash:    &hash,
		BlockNumber:        &block,
		EstimatedProfitUSD: decimal.NewFromInt(566),
		GasCostUSD:         decimal.NewFromInt(25),
		FlashLoanFeeUSD:    decimal.NewFromInt(9),
		ReceivedAtNanos:    1,
		ConfirmedAtNanos:   2,
	}
	if err := j.Record(ok); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// rejected runs have no chain coordinates
	rejected := &publish.Result{
		OpportunityID:   "E2",
		ChainName:       "ethereum",
		Strategy:        "MultiHop",
		Status:          "rejected",
		Reason:          "unprofitable",
		ReceivedAtNanos: 3,
	}
	if err := j.Record(rejected); err != nil {
		t.Fatalf("Record rejected: %v", err)
	}

	stats, err := j.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["total_results"] != 2 {
		t.Errorf("total = %d", stats["total_results"])
	}
	if stats["successful"] != 1 {
		t.Errorf("successful = %d", stats["successful"])
	}
}
