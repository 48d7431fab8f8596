package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
)

// CartEventMessage describes a single cart mutation for downstream consumers
// such as abandoned-cart reminders and analytics.
type CartEventMessage struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	ProductID  string    `json:"productId,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	ItemCount  int       `json:"itemCount"`
	Subtotal   int64     `json:"subtotal"`
	Currency   string    `json:"currency,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventMessage describes an order lifecycle transition.
type OrderEventMessage struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	Status     string    `json:"status"`
	Total      int64     `json:"total"`
	Currency   string    `json:"currency,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// PubSubPublisher publishes storefront change events to Pub/Sub topics.
type PubSubPublisher struct {
	cartTopic  *pubsub.Topic
	orderTopic *pubsub.Topic
	marshal    func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a publisher over the provided topics. Either
// topic may be nil, in which case events of that kind are dropped.
func NewPubSubPublisher(cartTopic, orderTopic *pubsub.Topic) (*PubSubPublisher, error) {
	if cartTopic == nil && orderTopic == nil {
		return nil, errors.New("pubsub publisher: at least one topic is required")
	}
	return &PubSubPublisher{
		cartTopic:  cartTopic,
		orderTopic: orderTopic,
		marshal:    json.Marshal,
	}, nil
}

// PublishCartEvent enqueues a cart change message on the cart topic.
func (p *PubSubPublisher) PublishCartEvent(ctx context.Context, message CartEventMessage) (string, error) {
	if p == nil || p.cartTopic == nil {
		return "", nil
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal cart event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", message.Type)
	setAttr(attrs, "userId", message.UserID)
	setAttr(attrs, "productId", message.ProductID)

	result := p.cartTopic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish cart event: %w", err)
	}
	return id, nil
}

// PublishOrderEvent enqueues an order lifecycle message on the order topic.
func (p *PubSubPublisher) PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error) {
	if p == nil || p.orderTopic == nil {
		return "", nil
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", message.Type)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "userId", message.UserID)
	setAttr(attrs, "status", message.Status)
	setAttr(attrs, "total", strconv.FormatInt(message.Total, 10))

	result := p.orderTopic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order event: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages on both topics.
func (p *PubSubPublisher) Stop() {
	if p == nil {
		return
	}
	if p.cartTopic != nil {
		p.cartTopic.Stop()
	}
	if p.orderTopic != nil {
		p.orderTopic.Stop()
	}
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
