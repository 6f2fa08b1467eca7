package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"session-authority/internal/telemetry"
)

// fakeReader replays msgs, then reports io.EOF as a closed reader does.
type fakeReader struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(f.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

type collectSink struct {
	mu     sync.Mutex
	events []*telemetry.SessionEvent
	err    error
}

func (c *collectSink) Emit(_ context.Context, e *telemetry.SessionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return c.err
}

func eventMessage(t *testing.T, e telemetry.SessionEvent) kafka.Message {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Key: []byte(e.UserID), Value: b}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRun_ForwardsDecodedEvents(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	reader := &fakeReader{msgs: []kafka.Message{
		eventMessage(t, telemetry.SessionEvent{Type: telemetry.EventSessionCreated, SessionID: "s1", UserID: "u1", At: at}),
		{Value: []byte("not json")},
		eventMessage(t, telemetry.SessionEvent{Type: telemetry.EventSessionRevoked, SessionID: "s1", At: at}),
	}}
	sink := &collectSink{err: errors.New("sink down")}
	c := newKafkaConsumer(reader, discard())

	if err := c.Run(context.Background(), sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.events) != 2 {
		t.Fatalf("forwarded %d events, want 2", len(sink.events))
	}
	if sink.events[0].Type != telemetry.EventSessionCreated || sink.events[0].UserID != "u1" || !sink.events[0].At.Equal(at) {
		t.Errorf("event[0] = %+v", sink.events[0])
	}
	if sink.events[1].Type != telemetry.EventSessionRevoked {
		t.Errorf("event[1] = %+v", sink.events[1])
	}
	if err := c.Close(); err != nil || !reader.closed {
		t.Errorf("Close = %v, closed = %v", err, reader.closed)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newKafkaConsumer(&fakeReader{}, discard())
	if err := c.Run(ctx, &collectSink{}); err != nil {
		t.Errorf("Run = %v, want nil on cancel", err)
	}
}

func TestNewKafkaConsumer_RequiresConfig(t *testing.T) {
	if _, err := NewKafkaConsumer(nil, "topic", "group", nil); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaConsumer([]string{"localhost:9092"}, "", "group", nil); err == nil {
		t.Error("expected error without topic")
	}
}

func TestLogSink_ReuseIsWarning(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	err := sink.Emit(context.Background(), &telemetry.SessionEvent{
		Type: telemetry.EventRefreshReuseDetected, SessionID: "s1", UserID: "u1",
		Detail: map[string]string{"jti": "j1"},
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"level=WARN", "type=refresh_reuse_detected", "session_id=s1", "user_id=u1", "jti=j1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}
