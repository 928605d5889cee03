package gateways

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// NotifierKafka publishes low-stock events to a topic, keyed by SKU so events
// for one SKU stay ordered within a partition.
type NotifierKafka struct {
	writer *kafka.Writer
}

func NewNotifierKafka(writer *kafka.Writer) *NotifierKafka {
	return &NotifierKafka{writer: writer}
}

type lowStockMessage struct {
	Type      string    `json:"type"`
	SKU       string    `json:"sku"`
	Available int       `json:"available"`
	At        time.Time `json:"at"`
}

func (n *NotifierKafka) LowStock(ctx context.Context, sku string, available int) error {
	raw, err := json.Marshal(lowStockMessage{
		Type:      "LOW_STOCK",
		SKU:       sku,
		Available: available,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sku),
		Value: raw,
	})
}

func (n *NotifierKafka) Close() error {
	return n.writer.Close()
}
