package probe

import (
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"TransportBench/internal/config"
	"TransportBench/internal/metrics"
	"TransportBench/internal/model"
)

// ObservationHandler processes a received observation.
type ObservationHandler func(obs model.PacketObservation)

// Subscriber is responsible for subscribing to a NATS subject and processing messages.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.ProbeConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the observation subject and passes every decoded
// observation to handler. onStop, when non-nil, is called when a publisher
// announces the end of its capture. Messages that fail to decode are
// logged and dropped.
func (s *Subscriber) Start(handler ObservationHandler, onStop func()) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		if ctl := msg.Header.Get(controlHeader); ctl != "" {
			if ctl == controlStop && onStop != nil {
				log.Printf("Received stop on '%s'.", msg.Subject)
				onStop()
			}
			return
		}
		obs, err := UnmarshalObservation(msg.Data)
		if err != nil {
			metrics.DroppedObservationsTotal.WithLabelValues("decode").Inc()
			log.Printf("Error decoding observation: %v", err)
			return
		}
		handler(obs)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", s.subject, err)
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for messages...", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			log.Printf("Error unsubscribing from '%s': %v", s.subject, err)
		}
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
