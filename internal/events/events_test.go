package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type fakePublisher struct {
	subjects []string
	payloads [][]byte
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func sampleTrigger() models.FulfillmentTrigger {
	return models.FulfillmentTrigger{
		ID:           models.TriggerID("ord-7"),
		ObligationID: "ord-7",
		EventID:      "e2",
		Lines:        []models.LineItem{{ItemID: "beer", Quantity: decimal.RequireFromString("2")}},
		RaisedAt:     time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaTriggerDispatcher(t *testing.T) {
	w := &fakeWriter{}
	d := NewKafkaTriggerDispatcher(w)

	require.NoError(t, d.Dispatch(context.Background(), sampleTrigger()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ord-7", string(w.msgs[0].Key))

	var got models.FulfillmentTrigger
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, models.TriggerID("ord-7"), got.ID)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].Quantity.Equal(decimal.RequireFromString("2")))
}

func TestKafkaTriggerDispatcherError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	err := NewKafkaTriggerDispatcher(w).Dispatch(context.Background(), sampleTrigger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fulfil:ord-7")
}

func TestNatsNotifierSubject(t *testing.T) {
	p := &fakePublisher{}
	n := NewNatsNotifier(p)

	require.NoError(t, n.Notify(context.Background(), models.ObligationChange{
		ObligationID: "room-12",
		State:        models.StateDebted,
		Version:      3,
	}))
	require.Equal(t, []string{"obligation.changed.room-12"}, p.subjects)

	var got models.ObligationChange
	require.NoError(t, json.Unmarshal(p.payloads[0], &got))
	assert.Equal(t, models.StateDebted, got.State)
	assert.Equal(t, int64(3), got.Version)
}

func TestMultiNotifierReachesEveryTransport(t *testing.T) {
	failing := NewKafkaNotifier(&fakeWriter{err: errors.New("broker down")})
	p := &fakePublisher{}
	m := MultiNotifier{failing, NewNatsNotifier(p)}

	err := m.Notify(context.Background(), models.ObligationChange{ObligationID: "ord-1"})
	require.Error(t, err)
	assert.Len(t, p.subjects, 1, "later notifiers still run")
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      chan kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type flakyHandler struct {
	mu       sync.Mutex
	failures int
	handled  []string
}

func (h *flakyHandler) OnFulfilled(_ context.Context, trigger models.FulfillmentTrigger) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failures > 0 {
		h.failures--
		return errors.New("stock retry queue full")
	}
	h.handled = append(h.handled, trigger.ID)
	return nil
}

func TestTriggerConsumer(t *testing.T) {
	payload, err := json.Marshal(sampleTrigger())
	require.NoError(t, err)

	reader := &fakeReader{msgs: make(chan kafka.Message, 3)}
	reader.msgs <- kafka.Message{Offset: 1, Value: []byte("{not json")}
	reader.msgs <- kafka.Message{Offset: 2, Value: payload}

	handler := &flakyHandler{failures: 2}
	c := NewTriggerConsumer(reader, handler)
	c.retryInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return len(reader.commits()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []int64{1, 2}, reader.commits(), "poison messages are skipped, not retried")
	assert.Equal(t, []string{"fulfil:ord-7"}, handler.handled)
	assert.True(t, reader.closed)
}
