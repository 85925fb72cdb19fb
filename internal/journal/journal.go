package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/paulwcunningham/FLIS/internal/publish"
)

const schema = `
CREATE TABLE IF NOT EXISTS execution_results (
	opportunity_id   TEXT NOT NULL,
	chain_name       TEXT NOT NULL,
	strategy         TEXT NOT NULL,
	status           TEXT NOT NULL,
	success          INTEGER NOT NULL,
	reason           TEXT,
	tx_hash          TEXT,
	bundle_id        TEXT,
	mev_provider     TEXT,
	block_number     INTEGER,
	net_profit_usd   TEXT,
	gas_cost_usd     TEXT,
	flash_fee_usd    TEXT,
	tip_lamports     INTEGER,
	received_at      INTEGER NOT NULL,
	confirmed_at     INTEGER
);
CREATE INDEX IF NOT EXISTS idx_results_chain ON execution_results(chain_name, received_at);
CREATE INDEX IF NOT EXISTS idx_results_opp ON execution_results(opportunity_id);
`

// Journal is an append-only local record of terminal results. It holds
// completed-run history only; in-flight state never touches disk.
type Journal struct {
	db *sql.DB
}

func Open(dbPath string) (*Journal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal db: %w", err)
	}

	// WAL keeps concurrent run goroutines from serializing on the writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one terminal result.
func (j *Journal) Record(res *publish.Result) error {
	var txHash interface{}
	if res.TransactionHash != nil {
		txHash = *res.TransactionHash
	}
	var blockNumber interface{}
	if res.BlockNumber != nil {
		blockNumber = int64(*res.BlockNumber)
	}
	var confirmedAt interface{}
	if res.ConfirmedAtNanos > 0 {
		confirmedAt = res.ConfirmedAtNanos
	}

	_, err := j.db.Exec(
		`INSERT INTO execution_results
		(opportunity_id, chain_name, strategy, status, success, reason, tx_hash, bundle_id,
		 mev_provider, block_number, net_profit_usd, gas_cost_usd, flash_fee_usd, tip_lamports,
		 received_at, confirmed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.OpportunityID, res.ChainName, res.Strategy, res.Status, boolToInt(res.Success),
		res.Reason, txHash, res.BundleID, res.MevProvider, blockNumber,
		res.EstimatedProfitUSD.String(), res.GasCostUSD.String(), res.FlashLoanFeeUSD.String(),
		res.TipLamports, res.ReceivedAtNanos, confirmedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	return nil
}

// Stats summarizes the journal for monitoring.
func (j *Journal) Stats() (map[string]int64, error) {
	stats := make(map[string]int64)

	var count int64
	if err := j.db.QueryRow("SELECT COUNT(*) FROM execution_results").Scan(&count); err != nil {
		return nil, err
	}
	stats["total_results"] = count

	if err := j.db.QueryRow("SELECT COUNT(*) FROM execution_results WHERE success = 1").Scan(&count); err != nil {
		return nil, err
	}
	stats["successful"] = count

	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
