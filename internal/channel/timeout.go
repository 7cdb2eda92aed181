// Package channel holds the delivery adapters (email, WhatsApp). Each adapter
// has a real provider-backed variant and a stand-in used when the provider is
// not configured; the variant is picked once at construction.
package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrTimeout is returned when a provider call exceeds the channel timeout.
var ErrTimeout = errors.New("provider call timed out")

var sends = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notification_channel_sends_total",
	Help: "Provider calls by channel and outcome.",
}, []string{"channel", "outcome"})

var abandoned = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "notification_channel_abandoned_calls",
	Help: "Provider calls still running after their caller timed out, by channel.",
}, []string{"channel"})

// withTimeout runs fn and gives up after timeout or when ctx is done.
// Provider SDKs used here take no context, so fn keeps running in the
// background after a timeout; its result is discarded and it is counted in
// notification_channel_abandoned_calls until it returns.
func withTimeout(ctx context.Context, channel string, timeout time.Duration, fn func() error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var (
		mu            sync.Mutex
		finished      bool
		abandonedCall bool
	)
	done := make(chan error, 1)
	go func() {
		err := fn()
		mu.Lock()
		finished = true
		if abandonedCall {
			abandoned.WithLabelValues(channel).Dec()
		}
		mu.Unlock()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		mu.Lock()
		if !finished {
			abandonedCall = true
			abandoned.WithLabelValues(channel).Inc()
		}
		mu.Unlock()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
