package events

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher publishes events to a Pub/Sub topic, ordered by order id.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher opens topicID on client. The client is closed with the publisher.
func NewPubSubPublisher(client *pubsub.Client, topicID string) (*PubSubPublisher, error) {
	if client == nil {
		return nil, errors.New("pubsub publisher: client is required")
	}
	if topicID == "" {
		return nil, errors.New("pubsub publisher: topic is required")
	}
	topic := client.Topic(topicID)
	topic.EnableMessageOrdering = true
	return &PubSubPublisher{client: client, topic: topic}, nil
}

// Publish implements Publisher and waits for the server acknowledgement.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub publisher: not initialised")
	}

	data, err := encode(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attributes(event),
		OrderingKey: event.OrderID,
	})
	if _, err := result.Get(ctx); err != nil {
		// a failed ordered publish pauses the key until resumed
		p.topic.ResumePublish(event.OrderID)
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	if p == nil || p.topic == nil {
		return nil
	}
	p.topic.Stop()
	return p.client.Close()
}

var _ Publisher = (*PubSubPublisher)(nil)
