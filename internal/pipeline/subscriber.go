package pipeline

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/paulwcunningham/FLIS/internal/opportunity"
)

const (
	defaultMaxInFlight = 64
	dedupeWindow       = 4096
)

// Subscriber consumes the opportunity subject and fans out into pipeline
// runs with bounded concurrency. Bus redeliveries of the same opportunity id
// are suppressed through an LRU window.
type Subscriber struct {
	conn        *nats.Conn
	subject     string
	pipeline    *Pipeline
	maxInFlight int
	seen        *lru.Cache[string, struct{}]
	log         *logrus.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewSubscriber(conn *nats.Conn, subject string, pl *Pipeline, maxInFlight int, log *logrus.Logger) (*Subscriber, error) {
	if subject == "" {
		return nil, fmt.Errorf("opportunity subject not configured")
	}
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	seen, err := lru.New[string, struct{}](dedupeWindow)
	if err != nil {
		return nil, err
	}
	return &Subscriber{
		conn:        conn,
		subject:     subject,
		pipeline:    pl,
		maxInFlight: maxInFlight,
		seen:        seen,
		log:         log,
		sem:         make(chan struct{}, maxInFlight),
	}, nil
}

// Start subscribes and processes until ctx is cancelled, then drains and
// waits for in-flight runs.
func (s *Subscriber) Start(ctx context.Context) error {
	sub, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		s.handle(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	s.log.WithField("subject", s.subject).Info("listening for opportunities")

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		s.log.WithError(err).Warn("subscription drain failed")
	}
	s.wg.Wait()
	return nil
}

// handle validates one inbound message and dispatches a run. Invalid and
// duplicate messages are dropped with a log line; when the in-flight cap is
// reached new messages are dropped rather than buffered.
func (s *Subscriber) handle(ctx context.Context, data []byte) {
	opp, err := opportunity.Decode(data)
	if err != nil {
		s.log.WithError(err).Warn("dropping undecodable opportunity")
		return
	}

	if _, dup, _ := s.seen.PeekOrAdd(opp.ID, struct{}{}); dup {
		s.log.WithField("opportunity_id", opp.ID).Debug("dropping duplicate opportunity")
		return
	}

	select {
	case s.sem <- struct{}{}:
	default:
		s.log.WithFields(logrus.Fields{
			"opportunity_id": opp.ID,
			"max_in_flight":  s.maxInFlight,
		}).Warn("at capacity, dropping opportunity")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()
		s.pipeline.Process(ctx, opp)
	}()
}
