package notify

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"bcafe/restaurant-service/internal/store"
)

// Store is the slice of persistence the worker needs: the outbox feed plus a
// durable offset so restarts do not re-send old events. The offset is the
// outbox sequence number, which is strictly increasing where timestamps may
// collide.
type Store interface {
	GetNotifierOffset(ctx context.Context) (int64, error)
	ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]store.OutboxEvent, error)
	UpdateNotifierOffset(ctx context.Context, lastSeq int64) error
}

type Worker struct {
	store     Store
	provider  Provider
	batchSize int
}

type payloadData map[string]interface{}

type Config struct {
	BatchSize int
	Provider  Provider
}

func New(store Store, cfg Config) *Worker {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	provider := cfg.Provider
	if provider == nil {
		provider = logProvider{}
	}
	return &Worker{
		store:     store,
		provider:  provider,
		batchSize: batch,
	}
}

// Run drains one batch of outbox events. A failed send is logged and skipped;
// the offset still advances so one bad recipient cannot wedge the feed.
func (w *Worker) Run(ctx context.Context) error {
	last, err := w.store.GetNotifierOffset(ctx)
	if err != nil {
		return err
	}

	events, err := w.store.ListOutboxEvents(ctx, last, w.batchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			log.Printf("notify process error: %v", err)
		}
		last = event.Seq
	}

	return w.store.UpdateNotifierOffset(ctx, last)
}

func (w *Worker) processEvent(ctx context.Context, event store.OutboxEvent) error {
	payload := payloadData{}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	template := templateForEvent(event.Type)
	if template == "" {
		return nil
	}

	message := renderTemplate(template, payload)
	recipient := str(payload, "phone_number")
	return w.provider.Send(ctx, message, recipient)
}

func templateForEvent(eventType string) string {
	switch eventType {
	case "reservation_created":
		return "Hi {full_name}, we received your reservation for {date} at {time}. It is pending approval."
	case "reservation_approved":
		return "Hi {full_name}, your reservation for {date} at {time} is confirmed. See you soon!"
	case "order_created":
		return "Order {order_id} received."
	case "order_paid":
		return "Order {order_id} is paid. Thank you!"
	default:
		return ""
	}
}

func renderTemplate(template string, payload payloadData) string {
	result := template
	result = strings.ReplaceAll(result, "{full_name}", str(payload, "full_name"))
	result = strings.ReplaceAll(result, "{date}", str(payload, "date"))
	result = strings.ReplaceAll(result, "{time}", str(payload, "time"))
	result = strings.ReplaceAll(result, "{order_id}", str(payload, "order_id"))
	return result
}

func str(payload payloadData, key string) string {
	if value, ok := payload[key]; ok {
		if text, ok := value.(string); ok {
			return text
		}
	}
	return ""
}

// Start ticks until the context is cancelled.
func Start(ctx context.Context, interval time.Duration, w *Worker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Run(ctx); err != nil {
				log.Printf("notify worker error: %v", err)
			}
		}
	}
}
