package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"vn.io.arda/marketplace-notification/internal/events"
)

// ConnectNATS dials the server and keeps reconnecting for the life of the process.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
}

// NATSSubscriber queue-subscribes to one subject per event type. Members of
// the same queue group share the load.
type NATSSubscriber struct {
	nc         *nats.Conn
	subjects   []string
	queue      string
	router     Router
	deadLetter events.DeadLetter
	workers    int

	mu     sync.Mutex
	closed bool
	active sync.WaitGroup
}

func NewNATSSubscriber(nc *nats.Conn, subjects []string, queue string, router Router, deadLetter events.DeadLetter, workers int) *NATSSubscriber {
	if workers <= 0 {
		workers = 1
	}
	if deadLetter == nil {
		deadLetter = events.LogDeadLetter{}
	}
	return &NATSSubscriber{
		nc:         nc,
		subjects:   subjects,
		queue:      queue,
		router:     router,
		deadLetter: deadLetter,
		workers:    workers,
	}
}

// Run subscribes and blocks until ctx is cancelled. A full pool blocks the
// subscription callback, which leaves further messages queued in the client.
func (s *NATSSubscriber) Run(ctx context.Context) error {
	handlerCtx := context.WithoutCancel(ctx)
	p := pool.New().WithMaxGoroutines(s.workers)

	subs := make([]*nats.Subscription, 0, len(s.subjects))
	for _, subject := range s.subjects {
		sub, err := s.nc.QueueSubscribe(subject, s.queue, func(m *nats.Msg) {
			s.enqueue(handlerCtx, p, m)
		})
		if err != nil {
			s.stop(subs, p)
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}
	log.Info().Strs("subjects", s.subjects).Str("queue", s.queue).Int("workers", s.workers).
		Msg("nats subscriber started")

	<-ctx.Done()
	s.stop(subs, p)
	log.Info().Msg("nats subscriber stopped")
	return nil
}

func (s *NATSSubscriber) enqueue(ctx context.Context, p *pool.Pool, m *nats.Msg) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.active.Add(1)
	s.mu.Unlock()
	defer s.active.Done()

	p.Go(func() { s.process(ctx, m) })
}

func (s *NATSSubscriber) stop(subs []*nats.Subscription, p *pool.Pool) {
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("subject", sub.Subject).Msg("nats unsubscribe")
		}
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.active.Wait()
	p.Wait()
}

func (s *NATSSubscriber) process(ctx context.Context, m *nats.Msg) {
	env, err := decodeMsg(m)
	if err != nil {
		messagesReceived.WithLabelValues("nats", "undecodable").Inc()
		undecodable(ctx, s.deadLetter, m.Header.Get(nats.MsgIdHdr), m.Subject, m.Data, err)
		return
	}
	messagesReceived.WithLabelValues("nats", "received").Inc()
	s.router.Route(ctx, env)
}

// decodeMsg parses the envelope. A missing id falls back to the Nats-Msg-Id
// header and a missing type to the subject.
func decodeMsg(m *nats.Msg) (events.Envelope, error) {
	env, err := events.Decode(m.Data)
	if err != nil {
		return events.Envelope{}, err
	}
	if env.ID == "" {
		env.ID = m.Header.Get(nats.MsgIdHdr)
	}
	if env.Type == "" {
		env.Type = m.Subject
	}
	return env, nil
}

// NATSDeadLetter publishes failed events to a subject.
type NATSDeadLetter struct {
	nc      *nats.Conn
	subject string
}

func NewNATSDeadLetter(nc *nats.Conn, subject string) *NATSDeadLetter {
	return &NATSDeadLetter{nc: nc, subject: subject}
}

func (d *NATSDeadLetter) Publish(ctx context.Context, f events.Failure) error {
	msg, err := deadLetterMsg(d.subject, f)
	if err != nil {
		return err
	}
	if err := d.nc.PublishMsg(msg); err != nil {
		deadLettered.WithLabelValues("nats", "error").Inc()
		_ = events.LogDeadLetter{}.Publish(ctx, f)
		return fmt.Errorf("publish dead letter: %w", err)
	}
	deadLettered.WithLabelValues("nats", "published").Inc()
	return nil
}

func deadLetterMsg(subject string, f events.Failure) (*nats.Msg, error) {
	data, err := encodeFailure(f)
	if err != nil {
		return nil, fmt.Errorf("encode dead letter: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Event-Type", f.Event.Type)
	if f.Event.ID != "" {
		msg.Header.Set(nats.MsgIdHdr, f.Event.ID)
	}
	return msg, nil
}
