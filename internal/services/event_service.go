// internal/services/event_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/catalog-tracker/internal/config"
	"github.com/javajoker/catalog-tracker/internal/reconcile"
)

// ProductReconciledEvent is emitted after a product's day was saved.
type ProductReconciledEvent struct {
	RunID          string           `json:"run_id"`
	ProductID      string           `json:"product_id"`
	Category       string           `json:"category"`
	Date           string           `json:"date"`
	StockQuantity  int64            `json:"stock_quantity"`
	StockIncreased int64            `json:"stock_increased"`
	StockDecreased int64            `json:"stock_decreased"`
	Price          int64            `json:"price"`
	OriginalPrice  int64            `json:"original_price"`
	TotalSold      int64            `json:"total_sold"`
	SoldInDate     int64            `json:"sold_in_date"`
	StockAction    reconcile.Action `json:"stock_action"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

func NewProductReconciledEvent(runID, category string, res reconcile.Result) ProductReconciledEvent {
	return ProductReconciledEvent{
		RunID:          runID,
		ProductID:      res.ProductID,
		Category:       category,
		Date:           res.Date,
		StockQuantity:  res.Stock.StockQuantity,
		StockIncreased: res.Stock.StockIncreased,
		StockDecreased: res.Stock.StockDecreased,
		Price:          res.Price.Price,
		OriginalPrice:  res.Price.OriginalPrice,
		TotalSold:      res.Sales.TotalSold,
		SoldInDate:     res.Sales.SoldInDate,
		StockAction:    res.StockAction,
		OccurredAt:     time.Now().UTC(),
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, event ProductReconciledEvent) error
	Close() error
}

// NewEventPublisher returns a Kafka publisher when brokers are configured
// and a no-op publisher otherwise.
func NewEventPublisher(cfg config.KafkaConfig) EventPublisher {
	if len(cfg.Brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg)
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		BatchTimeout:           50 * time.Millisecond,
	}

	logrus.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("Kafka publisher created")

	return &KafkaPublisher{writer: writer}
}

// Publish keys messages by product so one product's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event ProductReconciledEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ProductID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event ProductReconciledEvent) error { return nil }
func (NopPublisher) Close() error                                                   { return nil }
