// Package sink delivers the telemetry payload of a profiled build to
// external systems. Delivery is best effort: a failing sink is logged and
// never fails the command that produced the payload.
package sink

import (
	"context"
	"errors"

	"github.com/psantana5/buildtime-profiler/pkg/logging"
)

// Sink receives one opaque JSON-marshalable payload per build
type Sink interface {
	Name() string
	Send(ctx context.Context, payload interface{}) error
	Close() error
}

// Multi fans a payload out to several sinks
type Multi struct {
	sinks []Sink
	log   *logging.Logger
}

// NewMulti creates a fan-out over sinks
func NewMulti(log *logging.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, log: log.WithComponent("sink")}
}

// Name implements Sink
func (m *Multi) Name() string {
	return "multi"
}

// Len returns the number of configured sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Send delivers payload to every sink. Failures are logged and joined;
// one failing sink does not stop the others.
func (m *Multi) Send(ctx context.Context, payload interface{}) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Send(ctx, payload); err != nil {
			m.log.Warn("Telemetry delivery failed", map[string]interface{}{
				"sink":  s.Name(),
				"error": err.Error(),
			})
			errs = append(errs, err)
			continue
		}
		m.log.Debug("Telemetry delivered", map[string]interface{}{"sink": s.Name()})
	}
	return errors.Join(errs...)
}

// Close closes every sink
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
