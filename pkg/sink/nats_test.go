package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/buildtime-profiler/pkg/logging"
)

type fakeConn struct {
	subject  string
	data     []byte
	flushErr error
	closed   bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.subject, c.data = subject, data
	return nil
}

func (c *fakeConn) FlushTimeout(time.Duration) error { return c.flushErr }
func (c *fakeConn) Close()                           { c.closed = true }

func TestNATSSinkPublishesJSON(t *testing.T) {
	conn := &fakeConn{}
	s := newNATSSink(conn, NATSConfig{Subject: "builds.profile"}, logging.Nop())

	require.NoError(t, s.Send(context.Background(), map[string]interface{}{"id": "b-1"}))
	assert.Equal(t, "builds.profile", conn.subject)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(conn.data, &decoded))
	assert.Equal(t, "b-1", decoded["id"])

	require.NoError(t, s.Close())
	assert.True(t, conn.closed)
}

func TestNATSSinkFlushFailure(t *testing.T) {
	conn := &fakeConn{flushErr: errors.New("nats: timeout")}
	s := newNATSSink(conn, NATSConfig{Subject: "x"}, logging.Nop())

	err := s.Send(context.Background(), "payload")
	var se *SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "flush", se.Operation)
	assert.True(t, se.Retryable)
}

func TestNewNATSSinkUnreachable(t *testing.T) {
	_, err := NewNATSSink(NATSConfig{URL: "nats://127.0.0.1:1", Timeout: 50 * time.Millisecond}, logging.Nop())
	assert.Error(t, err)
}
