package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/config"
	"github.com/fyrsmithlabs/projectd/internal/project"
)

// DefaultSubjectPrefix is used when Options.SubjectPrefix is empty.
const DefaultSubjectPrefix = "projects"

var (
	// ErrNoConnection is returned when publishing without a NATS connection.
	ErrNoConnection = errors.New("nats connection is nil")
)

// Options configures the NATS connection.
type Options struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	// Token authenticates to servers that require token auth.
	Token config.Secret
}

// Connect dials NATS using opts. The connection retries in the background
// if the server is not reachable yet.
func Connect(opts Options, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}

	natsOpts := []nats.Option{
		nats.Name("projectd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected to NATS", zap.String("url", c.ConnectedUrl()))
		}),
	}
	if opts.Token.IsSet() {
		natsOpts = append(natsOpts, nats.Token(opts.Token.Value()))
	}

	nc, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", opts.URL, err)
	}

	logger.Info("connected to NATS", zap.String("url", opts.URL))
	return nc, nil
}

// NATSPublisher publishes project events over a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher creates a publisher on conn. The caller owns conn.
func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event of type t is published to.
func (p *NATSPublisher) Subject(t project.EventType) string {
	return p.prefix + "." + string(t)
}

// Publish encodes event as JSON and publishes it.
func (p *NATSPublisher) Publish(ctx context.Context, event project.Event) error {
	if p.conn == nil {
		return ErrNoConnection
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// Nop discards every event.
type Nop struct{}

// Publish implements project.Publisher.
func (Nop) Publish(context.Context, project.Event) error { return nil }

var (
	_ project.Publisher = (*NATSPublisher)(nil)
	_ project.Publisher = Nop{}
)
