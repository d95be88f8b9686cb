package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicUserEvents    = "user_events"
	TopicCartEvents    = "cart_events"
	TopicProductEvents = "product_events"
)

const writeTimeout = 5 * time.Second

// Producer publishes session events to kafka. A nil Producer is valid and
// drops every event, so the daemon runs fine without a broker configured.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(address []string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(address...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Producer{writer: w}
}

func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	if p == nil || p.writer == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("kafka: WriteMessages failed: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// SessionEvent is the envelope for auth lifecycle events.
type SessionEvent struct {
	Action string `json:"action"`
	UserID int64  `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	At     int64  `json:"at"`
}

// CartEvent is the envelope for cart mutations.
type CartEvent struct {
	Action    string `json:"action"`
	CartID    int64  `json:"cart_id"`
	ProductID int64  `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	At        int64  `json:"at"`
}

// ProductEvent is the envelope for catalog administration.
type ProductEvent struct {
	Action    string `json:"action"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name,omitempty"`
	At        int64  `json:"at"`
}

func NewProductEvent(action string, productID int64, name string) ProductEvent {
	return ProductEvent{Action: action, ProductID: productID, Name: name, At: time.Now().Unix()}
}

func NewSessionEvent(action string, userID int64, email string) SessionEvent {
	return SessionEvent{Action: action, UserID: userID, Email: email, At: time.Now().Unix()}
}

func NewCartEvent(action string, cartID, productID int64, quantity int) CartEvent {
	return CartEvent{Action: action, CartID: cartID, ProductID: productID, Quantity: quantity, At: time.Now().Unix()}
}
