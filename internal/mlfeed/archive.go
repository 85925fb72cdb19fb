package mlfeed

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/paulwcunningham/FLIS/internal/publish"
)

const defaultRecordsPerFile = 10000

// trainingRow mirrors publish.TrainingRecord in parquet form.
type trainingRow struct {
	OpportunityID string  `parquet:"name=opportunity_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ChainName     string  `parquet:"name=chain_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Strategy      string  `parquet:"name=strategy, type=BYTE_ARRAY, convertedtype=UTF8"`
	Success       bool    `parquet:"name=success, type=BOOLEAN"`
	Reason        string  `parquet:"name=reason, type=BYTE_ARRAY, convertedtype=UTF8"`
	NetProfitUSD  float64 `parquet:"name=net_profit_usd, type=DOUBLE"`
	GasCostUSD    float64 `parquet:"name=gas_cost_usd, type=DOUBLE"`
	FlashFeeUSD   float64 `parquet:"name=flash_fee_usd, type=DOUBLE"`
	MevProvider   string  `parquet:"name=mev_provider, type=BYTE_ARRAY, convertedtype=UTF8"`
	TipLamports   int64   `parquet:"name=tip_lamports, type=INT64"`

	TotalLatencyMs      float64 `parquet:"name=total_latency_ms, type=DOUBLE"`
	SimulationLatencyMs float64 `parquet:"name=simulation_latency_ms, type=DOUBLE"`

	SpreadBps         float64 `parquet:"name=spread_bps, type=DOUBLE"`
	AoiScore          float64 `parquet:"name=aoi_score, type=DOUBLE"`
	VolatilityPercent float64 `parquet:"name=volatility_percent, type=DOUBLE"`
	ConfidenceScore   float64 `parquet:"name=confidence_score, type=DOUBLE"`
	MarketRegime      string  `parquet:"name=market_regime, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Archive writes training records to local parquet files, rotating after a
// fixed record count. Strictly best-effort: the learning feed's primary copy
// travels over the bus's best-effort training lane.
type Archive struct {
	dir            string
	recordsPerFile int
	log            *logrus.Logger

	mu      sync.Mutex
	fw      source.ParquetFile
	pw      *writer.ParquetWriter
	written int
	seq     int
}

func NewArchive(dir string, recordsPerFile int, log *logrus.Logger) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive dir: %w", err)
	}
	if recordsPerFile <= 0 {
		recordsPerFile = defaultRecordsPerFile
	}
	return &Archive{dir: dir, recordsPerFile: recordsPerFile, log: log}, nil
}

// Append writes one record, opening or rotating the current file as needed.
func (a *Archive) Append(rec publish.TrainingRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pw == nil {
		if err := a.openLocked(); err != nil {
			return err
		}
	}

	row := trainingRow{
		OpportunityID:       rec.OpportunityID,
		ChainName:           rec.ChainName,
		Strategy:            rec.Strategy,
		Success:             rec.Success,
		Reason:              rec.Reason,
		NetProfitUSD:        rec.NetProfitUSD,
		GasCostUSD:          rec.GasCostUSD,
		FlashFeeUSD:         rec.FlashLoanFeeUSD,
		MevProvider:         rec.MevProvider,
		TipLamports:         int64(rec.TipLamports),
		TotalLatencyMs:      rec.TotalLatencyMs,
		SimulationLatencyMs: rec.SimulationLatencyMs,
		SpreadBps:           rec.SpreadBps,
		AoiScore:            rec.AoiScore,
		VolatilityPercent:   rec.VolatilityPercent,
		ConfidenceScore:     rec.ConfidenceScore,
		MarketRegime:        rec.MarketRegime,
	}
	if err := a.pw.Write(row); err != nil {
		return fmt.Errorf("failed to write training row: %w", err)
	}
	a.written++

	if a.written >= a.recordsPerFile {
		return a.rotateLocked()
	}
	return nil
}

// Close flushes and closes the current file.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeLocked()
}

func (a *Archive) openLocked() error {
	a.seq++
	name := fmt.Sprintf("training-%d-%04d.parquet", time.Now().Unix(), a.seq)
	fw, err := local.NewLocalFileWriter(filepath.Join(a.dir, name))
	if err != nil {
		return fmt.Errorf("failed to open archive file: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(trainingRow), 2)
	if err != nil {
		fw.Close()
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	a.fw = fw
	a.pw = pw
	a.written = 0
	a.log.WithField("file", name).Debug("training archive rotated")
	return nil
}

func (a *Archive) rotateLocked() error {
	return a.closeLocked()
}

func (a *Archive) closeLocked() error {
	if a.pw == nil {
		return nil
	}
	if err := a.pw.WriteStop(); err != nil {
		a.fw.Close()
		a.pw, a.fw = nil, nil
		return fmt.Errorf("failed to finalize archive file: %w", err)
	}
	err := a.fw.Close()
	a.pw, a.fw = nil, nil
	return err
}
