package events

import (
	"context"
	"sync"
	"time"

	"chatori-be/internal/logger"
	"chatori-be/internal/metrics"

	"go.uber.org/zap"
)

const defaultPublishTimeout = 10 * time.Second

// Dispatcher publishes events off the request path. Delivery is best effort:
// failures are logged and counted, never surfaced to the caller.
type Dispatcher struct {
	pub     Publisher
	metrics *metrics.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(pub Publisher, m *metrics.Metrics) *Dispatcher {
	if pub == nil {
		pub = Noop{}
	}
	return &Dispatcher{pub: pub, metrics: m, timeout: defaultPublishTimeout}
}

func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	reqID := logger.RequestIDFrom(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		pubCtx, cancel := context.WithTimeout(logger.WithRequestID(context.Background(), reqID), d.timeout)
		defer cancel()

		if err := d.pub.Publish(pubCtx, ev); err != nil {
			d.metrics.PublishFailed(ev.Type)
			logger.FromCtx(pubCtx).Warn("failed to publish event",
				zap.String("type", ev.Type),
				zap.String("order_id", ev.OrderID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight publishes finish. Called on shutdown.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.Wait()
	return d.pub.Close()
}
