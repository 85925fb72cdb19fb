package publish

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	connected bool
	published []struct {
		Subject string
		Data    []byte
	}
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.published = append(f.published, struct {
		Subject string
		Data    []byte
	}{subject, data})
	return nil
}

func (f *fakeConn) IsConnected() bool { return f.connected }

type fakeJS struct {
	published []string
}

func (f *fakeJS) Publish(subject string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	f.published = append(f.published, subject)
	return &nats.PubAck{Stream: "FLASHLOAN", Sequence: uint64(len(f.published))}, nil
}

func testPublisher(connected bool) (*Publisher, *fakeConn) {
	conn := &fakeConn{connected: connected}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Publisher{nc: conn, log: log}, conn
}

func TestPublishResultSubject(t *testing.T) {
	p, conn := testPublisher(true)

	hash := "0xabc"
	block := uint64(18000001)
	res := &Result{
		OpportunityID:      "E1",
		ChainName:          "Ethereum",
		Success:            true,
		Status:             "confirmed",
		TransactionHash:    &hash,
		BlockNumber:        &block,
		EstimatedProfitUSD: decimal.NewFromInt(566),
	}
	require.NoError(t, p.PublishResult(res))
	require.Len(t, conn.published, 1)
	assert.Equal(t, "flashloan.result.ethereum", conn.published[0].Subject)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(conn.published[0].Data, &wire))
	// learning system reads camelCase
	for _, field := range []string{"opportunityId", "chainName", "success", "transactionHash", "estimatedProfitUsd"} {
		assert.Contains(t, wire, field)
	}
}

func TestPublishStatusSubject(t *testing.T) {
	p, conn := testPublisher(true)
	require.NoError(t, p.PublishStatus("E1", "simulating", ""))
	require.Len(t, conn.published, 1)
	assert.Equal(t, "flashloan.status.E1", conn.published[0].Subject)

	var update StatusUpdate
	require.NoError(t, json.Unmarshal(conn.published[0].Data, &update))
	assert.Equal(t, "simulating", update.Status)
	assert.NotZero(t, update.TimestampNanos)
}

func TestPublishBundleSubject(t *testing.T) {
	p, conn := testPublisher(true)
	require.NoError(t, p.PublishBundleOutcome("JITO", map[string]string{"bundleId": "b1"}))
	require.Len(t, conn.published, 1)
	assert.Equal(t, "mev.bundle.result.jito", conn.published[0].Subject)
}

func TestDisconnectedDropsSilently(t *testing.T) {
	p, conn := testPublisher(false)
	require.NoError(t, p.PublishResult(&Result{OpportunityID: "E6", ChainName: "ethereum"}))
	require.NoError(t, p.PublishStatus("E6", "failed", ""))
	assert.Empty(t, conn.published, "nothing goes out while the bus is down")
}

func TestDurableLaneUsesJetStream(t *testing.T) {
	p, conn := testPublisher(true)
	js := &fakeJS{}
	p.js = js

	require.NoError(t, p.PublishResult(&Result{OpportunityID: "E1", ChainName: "ethereum"}))
	require.NoError(t, p.PublishStatus("E1", "received", ""))
	require.NoError(t, p.PublishTraining(TrainingRecord{OpportunityID: "E1"}))

	// only the result lane is durable
	assert.Equal(t, []string{"flashloan.result.ethereum"}, js.published)
	require.Len(t, conn.published, 2)
	assert.Equal(t, "flashloan.status.E1", conn.published[0].Subject)
	assert.Equal(t, trainingSubject, conn.published[1].Subject)
}

func TestNewTrainingRecordLatencies(t *testing.T) {
	base := int64(1_000_000_000)
	res := &Result{
		OpportunityID:       "E1",
		ChainName:           "ethereum",
		Success:             true,
		EstimatedProfitUSD:  decimal.NewFromInt(566),
		ReceivedAtNanos:     base,
		SimStartedAtNanos:   base + 5_000_000,
		SimCompletedAtNanos: base + 45_000_000,
		SubmittedAtNanos:    base + 60_000_000,
		ConfirmedAtNanos:    base + 2_060_000_000,
	}
	rec := NewTrainingRecord(res, MarketContext{SpreadBps: 12.5, AoiScore: 0.8})

	assert.InDelta(t, 2060.0, rec.TotalLatencyMs, 0.001)
	assert.InDelta(t, 40.0, rec.SimulationLatencyMs, 0.001)
	assert.Equal(t, 566.0, rec.NetProfitUSD)
	assert.Equal(t, 12.5, rec.SpreadBps)

	// unsubmitted runs have no confirmation latency
	rejected := &Result{OpportunityID: "E2", ReceivedAtNanos: base}
	rec = NewTrainingRecord(rejected, MarketContext{})
	assert.Zero(t, rec.TotalLatencyMs)
}
