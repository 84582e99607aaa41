package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/infrastructure/resilience"
)

// Publisher fans upload phase transitions out on NATS. Each event goes to
// "<subject>.<phase>" so consumers can subscribe to one phase or to all of
// them with "<subject>.>".
type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.RetryOnFailedConnect == nil {
		retry := true
		o.RetryOnFailedConnect = &retry
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func New(url, subject string) (*Publisher, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Publisher, error) {
	subject = strings.TrimSuffix(strings.TrimSpace(subject), ".")
	if subject == "" {
		return nil, errors.New("nats: subject is required")
	}
	o := options.withDefaults()
	logger := o.Logger

	conn, err := nats.Connect(url,
		nats.Name("docqa-client"),
		nats.Timeout(o.ConnectTimeout),
		nats.ReconnectWait(o.ReconnectWait),
		nats.MaxReconnects(o.MaxReconnects),
		nats.RetryOnFailedConnect(*o.RetryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &Publisher{conn: conn, subject: subject, executor: o.ResilienceExecutor, logger: logger}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// PublishPhaseChange sends one transition. Connection failures come back
// as domain.ErrTemporary.
func (p *Publisher) PublishPhaseChange(ctx context.Context, event domain.PhaseEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	subject := subjectFor(p.subject, event.To)
	_, err = resilience.Call(ctx, p.executor, "nats.publish", func(context.Context) (struct{}, error) {
		if err := p.conn.Publish(subject, payload); err != nil {
			return struct{}{}, fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return struct{}{}, nil
	}, classifyNATSError)
	return wrapTemporaryIfNeeded(err)
}

func subjectFor(base, phase string) string {
	if phase == "" {
		phase = "unknown"
	}
	return base + "." + phase
}

// SubscribePhaseChanges delivers decoded events to handler until ctx ends,
// then drains the subscription.
func (p *Publisher) SubscribePhaseChanges(ctx context.Context, handler func(context.Context, domain.PhaseEvent) error) error {
	sub, err := p.conn.Subscribe(p.subject+".>", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			p.logger.Warn("phase_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			p.logger.Warn("phase_event_handler_failed", "job_id", event.JobID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := p.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := p.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(event domain.PhaseEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode phase event: %w", err)
	}
	return payload, nil
}

func decodeEvent(data []byte) (domain.PhaseEvent, error) {
	var event domain.PhaseEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.PhaseEvent{}, fmt.Errorf("decode phase event: %w", err)
	}
	if event.JobID == "" || event.To == "" {
		return domain.PhaseEvent{}, errors.New("decode phase event: job_id and to are required")
	}
	return event, nil
}
