// Package stream publishes analysis summaries to NATS.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/tanya-ai-go/internal/models"
)

const DefaultSubject = "ppg.results"

// Connect dials NATS and keeps reconnecting for the life of the process.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("tanya-ai"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// ResultPublisher sends each PPG result event as JSON on one subject.
type ResultPublisher struct {
	conn    publisher
	subject string
	logger  *logrus.Logger
}

func NewResultPublisher(conn publisher, subject string, logger *logrus.Logger) *ResultPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &ResultPublisher{conn: conn, subject: subject, logger: logger}
}

func (p *ResultPublisher) PublishResult(ctx context.Context, event models.PPGResultEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode result event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	p.logger.WithFields(logrus.Fields{
		"subject":    p.subject,
		"request_id": event.RequestID,
	}).Debug("Published PPG result")
	return nil
}
