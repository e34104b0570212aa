package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/psantana5/buildtime-profiler/pkg/logging"
)

const sinkNATS = "nats"

// NATSConfig configures the NATS sink
type NATSConfig struct {
	URL     string
	Subject string
	Timeout time.Duration // connect and flush
}

// publisher is the part of *nats.Conn the sink uses
type publisher interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSSink publishes the payload as JSON on a subject
type NATSSink struct {
	conn       publisher
	subject    string
	timeout    time.Duration
	classifier ErrorClassifier
	log        *logging.Logger
}

// NewNATSSink connects to the NATS server
func NewNATSSink(cfg NATSConfig, log *logging.Logger) (*NATSSink, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("btprof"),
		nats.Timeout(cfg.Timeout),
	)
	if err != nil {
		return nil, NewSinkError(ErrorTypeTransient, sinkNATS, "connect", 0, cfg.URL, err)
	}

	log.WithComponent("nats").Debug("NATS sink connected", map[string]interface{}{
		"url":     cfg.URL,
		"subject": cfg.Subject,
	})
	return newNATSSink(conn, cfg, log), nil
}

func newNATSSink(conn publisher, cfg NATSConfig, log *logging.Logger) *NATSSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &NATSSink{
		conn:    conn,
		subject: cfg.Subject,
		timeout: cfg.Timeout,
		log:     log.WithComponent("nats"),
	}
}

// Name implements Sink
func (s *NATSSink) Name() string {
	return sinkNATS
}

// Send publishes payload and waits for the server to acknowledge the flush
func (s *NATSSink) Send(ctx context.Context, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return NewSinkError(ErrorTypePermanent, sinkNATS, "publish", 0, "failed to encode payload", err)
	}
	if err := ctx.Err(); err != nil {
		return NewSinkError(ErrorTypePermanent, sinkNATS, "publish", 0, "", err)
	}

	if err := s.conn.Publish(s.subject, data); err != nil {
		return NewSinkError(s.classifier.Classify(err), sinkNATS, "publish", 0, s.subject, err)
	}

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if err := s.conn.FlushTimeout(timeout); err != nil {
		return NewSinkError(s.classifier.Classify(err), sinkNATS, "flush", 0, s.subject, err)
	}

	s.log.Debug("Published telemetry", map[string]interface{}{"subject": s.subject, "bytes": len(data)})
	return nil
}

// Close closes the connection
func (s *NATSSink) Close() error {
	s.conn.Close()
	return nil
}

var _ Sink = (*NATSSink)(nil)
