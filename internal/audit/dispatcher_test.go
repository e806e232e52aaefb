package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type gateSink struct {
	gate chan struct{}
	mu   sync.Mutex
	seen []Event
}

func (s *gateSink) Emit(_ context.Context, event Event) {
	<-s.gate
	s.mu.Lock()
	s.seen = append(s.seen, event)
	s.mu.Unlock()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	assert.Nil(t, d)

	// nil receiver methods are no-ops
	d.Emit(context.Background(), NewEvent("login_success", true))
	d.Close()
	assert.Zero(t, d.Dropped())
	assert.Zero(t, d.Emitted())
}

func TestDispatcherDeliversAndFlushesOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), NewEvent("login_success", true))
	}
	d.Close()

	assert.Equal(t, uint64(10), d.Emitted())
	assert.Len(t, sink.Events(), 10)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// first event is taken by the delivery goroutine and blocks on the gate,
	// second fills the buffer, the rest must drop
	d.Emit(context.Background(), NewEvent("a", true))
	require.Eventually(t, func() bool { return len(d.ch) == 0 }, time.Second, time.Millisecond)
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), NewEvent("b", true))
	}

	assert.Equal(t, uint64(4), d.Dropped())
	close(sink.gate)
	d.Close()
	assert.Equal(t, uint64(2), d.Emitted())
}

func TestBlockingEmitHonoursContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), NewEvent("a", true))
	require.Eventually(t, func() bool { return len(d.ch) == 0 }, time.Second, time.Millisecond)
	d.Emit(context.Background(), NewEvent("b", true))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	d.Emit(ctx, NewEvent("c", true))
	assert.Equal(t, uint64(1), d.Dropped())

	close(sink.gate)
	d.Close()
}

func TestEmitAfterCloseIsIgnored(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Close()
	d.Close()
	d.Emit(context.Background(), NewEvent("late", true))
	assert.Len(t, sink.Events(), 0)
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	event := NewEvent("login_failure", false)
	event.UserID = "u1"
	event.Error = "authentication_failed"
	sink.Emit(context.Background(), event)

	var decoded Event
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "login_failure", decoded.EventType)
	assert.Equal(t, "authentication_failed", decoded.Error)
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestSlogSinkAndMultiSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ch := NewChannelSink(1)

	event := NewEvent("logout", true)
	event.Strategy = "SESSION"
	event.Metadata = map[string]string{"reason": "user"}
	MultiSink{NewSlogSink(logger), nil, ch}.Emit(context.Background(), event)

	out := buf.String()
	assert.Contains(t, out, `"event_type":"logout"`)
	assert.Contains(t, out, `"strategy":"SESSION"`)
	assert.Contains(t, out, `"meta.reason":"user"`)
	assert.Len(t, ch.Events(), 1)
}

func TestNewEventIDsAreUnique(t *testing.T) {
	a, b := NewEvent("x", true), NewEvent("x", true)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.UTC, a.Timestamp.Location())
}
