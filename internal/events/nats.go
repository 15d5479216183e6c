package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chatori-be/internal/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const publishAttempts = 3

type natsConn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

type NatsPublisher struct {
	nc         natsConn
	retryDelay time.Duration
}

func NewNatsPublisher(url string) (*NatsPublisher, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := logger.L().With(zap.String("component", "nats"))

	var nc *nats.Conn
	var err error

	for i := 0; i < 3; i++ {
		nc, err = nats.Connect(url,
			nats.Name("chatori-be"),
			nats.MaxReconnects(5),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn("NATS disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		)

		if err == nil {
			log.Info("Connected to NATS", zap.String("url", url))
			return &NatsPublisher{nc: nc, retryDelay: time.Second}, nil
		}

		log.Warn("Failed to connect to NATS", zap.Int("attempt", i+1), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		case <-time.After(2 * time.Second):
		}
	}

	return nil, fmt.Errorf("failed to connect to NATS after retries: %w", err)
}

func (p *NatsPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var lastErr error
	for i := 0; i < publishAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.nc.Publish(ev.Type, data); err != nil {
			lastErr = err
			logger.FromCtx(ctx).Warn("Failed to publish to NATS", zap.Int("attempt", i+1), zap.Error(err))
			p.sleep(ctx)
			continue
		}

		if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
			lastErr = err
			logger.FromCtx(ctx).Warn("Failed to flush NATS connection", zap.Error(err))
			continue
		}

		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("no attempt made")
	}
	return fmt.Errorf("publish %s after retries: %w", ev.Type, lastErr)
}

func (p *NatsPublisher) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.retryDelay):
	}
}

func (p *NatsPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
