package probe

import (
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"TransportBench/internal/config"
	"TransportBench/internal/model"
)

// controlHeader marks a control message on the observation subject. Control
// messages share the subject with observations so they arrive in order.
const (
	controlHeader = "Tb-Control"
	controlStop   = "stop"
)

// Publisher is responsible for publishing packet observations to a NATS topic.
type Publisher struct {
	nc        *nats.Conn
	subject   string
	published int
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes an observation and publishes it to the configured subject.
func (p *Publisher) Publish(obs model.PacketObservation) error {
	data, err := MarshalObservation(obs)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish observation: %w", err)
	}
	p.published++
	return nil
}

// PublishStop tells subscribers that the capture has ended.
func (p *Publisher) PublishStop() error {
	msg := nats.NewMsg(p.subject)
	msg.Header.Set(controlHeader, controlStop)
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish stop: %w", err)
	}
	return p.nc.Flush()
}

// Published returns the number of observations published so far.
func (p *Publisher) Published() int {
	return p.published
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			log.Printf("Error draining NATS connection: %v", err)
		}
		log.Printf("NATS connection drained and closed after %d observations.", p.published)
	}
}
