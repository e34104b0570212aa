package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psantana5/buildtime-profiler/pkg/logging"
)

type recordingSink struct {
	name   string
	err    error
	sent   []interface{}
	closed bool
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Send(_ context.Context, payload interface{}) error {
	r.sent = append(r.sent, payload)
	return r.err
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func TestMultiContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	first := &recordingSink{name: "first", err: boom}
	second := &recordingSink{name: "second"}
	m := NewMulti(logging.Nop(), first, second)

	err := m.Send(context.Background(), "payload")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, second.sent, 1, "second sink must still receive the payload")

	assert.NoError(t, m.Close())
	assert.True(t, first.closed && second.closed)
	assert.Equal(t, 2, m.Len())
}

func TestMultiEmpty(t *testing.T) {
	assert.NoError(t, NewMulti(logging.Nop()).Send(context.Background(), nil))
}
