package publish

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	resultSubjectPrefix = "flashloan.result."
	statusSubjectPrefix = "flashloan.status."
	bundleSubjectPrefix = "mev.bundle.result."
	trainingSubject     = "mloptimizer.training.flashloan"

	reconnectWait = 2 * time.Second
)

// Config is the bus connection surface.
type Config struct {
	URL          string
	User         string
	Password     string
	UseTLS       bool
	UseJetStream bool
}

// busConn is the slice of *nats.Conn the publisher needs; tests substitute an
// in-process fake.
type busConn interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
}

// durablePub is the JetStream publish surface for the durable lanes.
type durablePub interface {
	Publish(subject string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher owns the single long-lived bus connection and the four outbound
// lanes (result, status, bundle outcome, training). When the connection is down, publishes are dropped with a warning;
// outbound durability while the bus is unavailable is not this component's
// problem.
type Publisher struct {
	nc  busConn
	js  durablePub
	raw *nats.Conn
	log *logrus.Logger
}

// Connect dials the bus with reconnect-forever semantics.
func Connect(cfg Config, log *logrus.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("flis-executor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("bus disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("bus reconnected")
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	if cfg.UseTLS {
		opts = append(opts, nats.Secure())
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bus: %w", err)
	}

	p := &Publisher{nc: nc, raw: nc, log: log}
	if cfg.UseJetStream {
		js, err := nc.JetStream()
		if err != nil {
			log.WithError(err).Warn("jetstream unavailable, durable lanes degrade to core publish")
		} else {
			p.js = js
		}
	}
	return p, nil
}

// Conn exposes the underlying connection for the inbound subscriber.
func (p *Publisher) Conn() *nats.Conn {
	return p.raw
}

func (p *Publisher) Close() {
	if p.raw != nil {
		p.raw.Drain()
	}
}

// PublishResult emits the final Result on the durable result lane.
func (p *Publisher) PublishResult(res *Result) error {
	subject := resultSubjectPrefix + strings.ToLower(res.ChainName)
	return p.publish(subject, res, true)
}

// PublishStatus emits a transition update; best-effort.
func (p *Publisher) PublishStatus(opportunityID, status, detail string) error {
	update := StatusUpdate{
		OpportunityID:  opportunityID,
		Status:         status,
		TimestampNanos: time.Now().UnixNano(),
		Detail:         detail,
	}
	return p.publish(statusSubjectPrefix+opportunityID, update, false)
}

// PublishBundleOutcome emits a bundle record on the provider's durable lane.
func (p *Publisher) PublishBundleOutcome(provider string, outcome interface{}) error {
	return p.publish(bundleSubjectPrefix+strings.ToLower(provider), outcome, true)
}

// PublishTraining emits the learning-feed projection; best-effort.
func (p *Publisher) PublishTraining(rec TrainingRecord) error {
	return p.publish(trainingSubject, rec, false)
}

func (p *Publisher) publish(subject string, payload interface{}, durable bool) error {
	if !p.nc.IsConnected() {
		p.log.WithField("subject", subject).Warn("bus not connected, dropping publish")
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", subject, err)
	}

	if durable && p.js != nil {
		if _, err := p.js.Publish(subject, data); err != nil {
			p.log.WithError(err).WithField("subject", subject).Warn("durable publish failed")
			return err
		}
		return nil
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.log.WithError(err).WithField("subject", subject).Warn("publish failed")
		return err
	}
	return nil
}
