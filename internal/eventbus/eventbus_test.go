package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"vn.io.arda/marketplace-notification/internal/events"
)

type captureDeadLetter struct {
	failures []events.Failure
}

func (c *captureDeadLetter) Publish(_ context.Context, f events.Failure) error {
	c.failures = append(c.failures, f)
	return nil
}

type captureRouter struct {
	routed []events.Envelope
}

func (c *captureRouter) Route(_ context.Context, env events.Envelope) {
	c.routed = append(c.routed, env)
}

func TestDecodeRecord_Fallbacks(t *testing.T) {
	r := &kgo.Record{Topic: "order.created", Partition: 2, Offset: 41, Value: []byte(`{"payload":{"orderId":"o1"}}`)}

	env, err := decodeRecord(r)
	require.NoError(t, err)
	assert.Equal(t, "order.created:2:41", env.ID)
	assert.Equal(t, "order.created", env.Type)

	r.Value = []byte(`{"id":"evt-1","type":"payment.failed","payload":{}}`)
	env, err = decodeRecord(r)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", env.ID)
	assert.Equal(t, "payment.failed", env.Type)
}

func TestDecodeMsg_Fallbacks(t *testing.T) {
	m := nats.NewMsg("seller.approved")
	m.Header.Set(nats.MsgIdHdr, "nats-7")
	m.Data = []byte(`{"payload":{"userId":"u1"}}`)

	env, err := decodeMsg(m)
	require.NoError(t, err)
	assert.Equal(t, "nats-7", env.ID)
	assert.Equal(t, "seller.approved", env.Type)

	plain := &nats.Msg{Subject: "x", Data: []byte(`{"type":"auth.user.registered","payload":{}}`)}
	env, err = decodeMsg(plain)
	require.NoError(t, err)
	assert.Empty(t, env.ID)
	assert.Equal(t, "auth.user.registered", env.Type)
}

func TestKafkaProcess_RoutesOrDeadLetters(t *testing.T) {
	router := &captureRouter{}
	dlq := &captureDeadLetter{}
	s := &KafkaSubscriber{router: router, deadLetter: dlq, workers: 1}

	s.process(context.Background(), &kgo.Record{Topic: "order.created", Value: []byte(`{"id":"e1","payload":{}}`)})
	s.process(context.Background(), &kgo.Record{Topic: "order.created", Offset: 9, Value: []byte(`garbage`)})

	require.Len(t, router.routed, 1)
	assert.Equal(t, "e1", router.routed[0].ID)

	require.Len(t, dlq.failures, 1)
	f := dlq.failures[0]
	assert.Equal(t, "decode", f.Handler)
	assert.Equal(t, "order.created:0:9", f.Event.ID)
	var raw string
	require.NoError(t, json.Unmarshal(f.Event.Payload, &raw))
	assert.Equal(t, "garbage", raw)
}

func TestNATSProcess_UndecodableKeepsJSONPayload(t *testing.T) {
	dlq := &captureDeadLetter{}
	s := NewNATSSubscriber(nil, nil, "q", &captureRouter{}, dlq, 0)

	s.process(context.Background(), &nats.Msg{Subject: "order.created", Data: []byte(`[1,2]`)})

	require.Len(t, dlq.failures, 1)
	assert.JSONEq(t, `[1,2]`, string(dlq.failures[0].Event.Payload))
	assert.Equal(t, 1, s.workers)
}

func TestDeadLetterRecord(t *testing.T) {
	f := events.Failure{
		Event:   events.Envelope{ID: "evt-1", Type: "payment.failed", Payload: []byte(`{"paymentId":"p"}`)},
		Handler: "payment.failed",
		Error:   errors.New("boom").Error(),
	}

	rec, err := deadLetterRecord("notification.dead-letter", f)
	require.NoError(t, err)
	assert.Equal(t, "notification.dead-letter", rec.Topic)
	assert.Equal(t, []byte("evt-1"), rec.Key)
	assert.Equal(t, "event-type", rec.Headers[0].Key)

	var decoded events.Failure
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, "boom", decoded.Error)
	assert.JSONEq(t, `{"paymentId":"p"}`, string(decoded.Event.Payload))
}

func TestDeadLetterMsg(t *testing.T) {
	msg, err := deadLetterMsg("notification.dead-letter", events.Failure{
		Event: events.Envelope{ID: "evt-2", Type: "order.created", Payload: []byte(`{}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "notification.dead-letter", msg.Subject)
	assert.Equal(t, "evt-2", msg.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, "order.created", msg.Header.Get("Event-Type"))
}
