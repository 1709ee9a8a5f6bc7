package publish

import (
	"LightCount/internal/config"
	"LightCount/internal/engine"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// Publisher is responsible for publishing traffic reports to a NATS subject.
type Publisher struct {
	nc      conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.PublishConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("lightcount"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// PublishReport serializes a report to JSON and publishes it to the
// configured subject.
func (p *Publisher) PublishReport(rep *engine.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			log.Printf("Failed to drain NATS connection: %v", err)
			return
		}
		log.Println("NATS connection drained and closed.")
	}
}
