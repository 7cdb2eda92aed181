package eventbus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vn.io.arda/marketplace-notification/internal/events"
)

// gatedRouter blocks every Route call until release is closed and records
// how many calls were in flight at once.
type gatedRouter struct {
	release  chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32
	done     atomic.Int32
}

func (g *gatedRouter) Route(_ context.Context, _ events.Envelope) {
	n := g.inFlight.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-g.release
	g.inFlight.Add(-1)
	g.done.Add(1)
}

func runTestServer(t *testing.T) *nats.Conn {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestNATSSubscriber_BoundsInFlightHandlersAndDrainsOnStop(t *testing.T) {
	const workers = 3
	nc := runTestServer(t)
	router := &gatedRouter{release: make(chan struct{})}
	sub := NewNATSSubscriber(nc, []string{"order.created"}, "notification", router, &captureDeadLetter{}, workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- sub.Run(ctx) }()

	require.Eventually(t, func() bool { return nc.NumSubscriptions() == 1 }, time.Second, 5*time.Millisecond)
	for i := 0; i < 4*workers; i++ {
		require.NoError(t, nc.Publish("order.created", []byte(`{"type":"order.created","payload":{}}`)))
	}
	require.NoError(t, nc.Flush())

	require.Eventually(t, func() bool { return router.inFlight.Load() == workers }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(workers), router.peak.Load())

	cancel()
	select {
	case <-stopped:
		t.Fatal("Run returned while handlers were still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(router.release)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after handlers finished")
	}

	assert.Equal(t, int32(0), router.inFlight.Load())
	assert.GreaterOrEqual(t, router.done.Load(), int32(workers))
	assert.LessOrEqual(t, router.peak.Load(), int32(workers))
}
