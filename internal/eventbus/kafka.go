package eventbus

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/twmb/franz-go/pkg/kgo"

	"vn.io.arda/marketplace-notification/internal/events"
)

// KafkaSubscriber wraps the franz-go consumer group client.
type KafkaSubscriber struct {
	client     *kgo.Client
	router     Router
	deadLetter events.DeadLetter
	workers    int
}

// NewKafkaSubscriber creates a subscriber with the given brokers, group ID and topics.
func NewKafkaSubscriber(brokers []string, groupID string, topics []string, router Router, deadLetter events.DeadLetter, workers int) (*KafkaSubscriber, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}
	if deadLetter == nil {
		deadLetter = events.LogDeadLetter{}
	}
	return &KafkaSubscriber{client: client, router: router, deadLetter: deadLetter, workers: workers}, nil
}

// Run polls Kafka and routes records. Blocks until ctx is cancelled.
// Offsets are committed only after every record of a polled batch has been
// handled, so a crash mid-batch redelivers it.
//
// The next poll waits for the whole batch, so one slow record holds back every
// partition until it finishes. The channel timeout bounds that wait. Records
// of a batch run in parallel, so per-partition order is not kept.
func (s *KafkaSubscriber) Run(ctx context.Context) {
	log.Info().Int("workers", s.workers).Msg("kafka subscriber started")

	// In-flight handlers finish even when shutdown cancels polling.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		fetches := s.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			break
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("kafka fetch error")
		})

		p := pool.New().WithMaxGoroutines(s.workers)
		fetches.EachRecord(func(r *kgo.Record) {
			p.Go(func() { s.process(handlerCtx, r) })
		})
		p.Wait()

		if err := s.client.CommitUncommittedOffsets(handlerCtx); err != nil {
			log.Error().Err(err).Msg("kafka commit error")
		}
	}

	s.client.Close()
	log.Info().Msg("kafka subscriber stopped")
}

func (s *KafkaSubscriber) process(ctx context.Context, r *kgo.Record) {
	log.Debug().
		Str("topic", r.Topic).
		Str("key", string(r.Key)).
		Int64("offset", r.Offset).
		Msg("processing kafka record")

	env, err := decodeRecord(r)
	if err != nil {
		messagesReceived.WithLabelValues("kafka", "undecodable").Inc()
		undecodable(ctx, s.deadLetter, recordID(r), r.Topic, r.Value, err)
		return
	}
	messagesReceived.WithLabelValues("kafka", "received").Inc()
	s.router.Route(ctx, env)
}

// decodeRecord parses the envelope. A missing id falls back to the record
// coordinates and a missing type to the topic name.
func decodeRecord(r *kgo.Record) (events.Envelope, error) {
	env, err := events.Decode(r.Value)
	if err != nil {
		return events.Envelope{}, err
	}
	if env.ID == "" {
		env.ID = recordID(r)
	}
	if env.Type == "" {
		env.Type = r.Topic
	}
	return env, nil
}

func recordID(r *kgo.Record) string {
	return fmt.Sprintf("%s:%d:%d", r.Topic, r.Partition, r.Offset)
}

// KafkaDeadLetter produces failed events to a dedicated topic.
type KafkaDeadLetter struct {
	client *kgo.Client
	topic  string
}

func NewKafkaDeadLetter(brokers []string, topic string) (*KafkaDeadLetter, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaDeadLetter{client: client, topic: topic}, nil
}

// Publish writes the failure synchronously. When the broker refuses it the
// failure is logged in full so it is not lost silently.
func (d *KafkaDeadLetter) Publish(ctx context.Context, f events.Failure) error {
	rec, err := deadLetterRecord(d.topic, f)
	if err != nil {
		return err
	}
	if err := d.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		deadLettered.WithLabelValues("kafka", "error").Inc()
		_ = events.LogDeadLetter{}.Publish(ctx, f)
		return fmt.Errorf("produce dead letter: %w", err)
	}
	deadLettered.WithLabelValues("kafka", "published").Inc()
	return nil
}

func (d *KafkaDeadLetter) Close() {
	d.client.Close()
}

func deadLetterRecord(topic string, f events.Failure) (*kgo.Record, error) {
	value, err := encodeFailure(f)
	if err != nil {
		return nil, fmt.Errorf("encode dead letter: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(f.Event.ID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event-type", Value: []byte(f.Event.Type)},
		},
	}, nil
}
