package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bcafe/restaurant-service/internal/store"
)

type fakeNotifyStore struct {
	offset int64
	events []store.OutboxEvent
	saved  int64
}

func (f *fakeNotifyStore) GetNotifierOffset(ctx context.Context) (int64, error) {
	return f.offset, nil
}

func (f *fakeNotifyStore) ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]store.OutboxEvent, error) {
	var out []store.OutboxEvent
	for _, event := range f.events {
		if event.Seq > afterSeq {
			out = append(out, event)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeNotifyStore) UpdateNotifierOffset(ctx context.Context, lastSeq int64) error {
	f.saved = lastSeq
	return nil
}

type recordingProvider struct {
	messages   []string
	recipients []string
}

func (p *recordingProvider) Send(ctx context.Context, message, recipient string) error {
	p.messages = append(p.messages, message)
	p.recipients = append(p.recipients, recipient)
	return nil
}

func TestRenderTemplate(t *testing.T) {
	payload := payloadData{
		"full_name": "Sara Ahmadi",
		"date":      "2026-05-02",
		"time":      "19:00",
	}
	template := "Hi {full_name}, we received your reservation for {date} at {time}. It is pending approval."
	got := renderTemplate(template, payload)
	want := "Hi Sara Ahmadi, we received your reservation for 2026-05-02 at 19:00. It is pending approval."
	if got != want {
		t.Fatalf("unexpected template render: %s", got)
	}
}

func TestWorkerRunAdvancesOffset(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	payload, _ := json.Marshal(map[string]string{
		"full_name":    "Sara Ahmadi",
		"phone_number": "09121234567",
		"date":         "2026-05-02",
		"time":         "19:00",
	})
	fake := &fakeNotifyStore{
		events: []store.OutboxEvent{
			{Seq: 1, EventID: "e1", Type: "reservation_created", Payload: payload, CreatedAt: base},
			{Seq: 2, EventID: "e2", Type: "unknown_event", Payload: []byte(`{}`), CreatedAt: base.Add(time.Second)},
		},
	}
	provider := &recordingProvider{}
	worker := New(fake, Config{BatchSize: 10, Provider: provider})

	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(provider.messages) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(provider.messages))
	}
	if provider.recipients[0] != "09121234567" {
		t.Fatalf("unexpected recipient: %s", provider.recipients[0])
	}
	if fake.saved != 2 {
		t.Fatalf("offset should advance past every processed event, got %d", fake.saved)
	}
}

func TestWorkerCursorKeepsTimestampTies(t *testing.T) {
	// Two events minted in the same transaction share created_at; the
	// sequence cursor must still deliver both across separate drains.
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	payload, _ := json.Marshal(map[string]string{"order_id": "o1", "phone_number": "09121234567"})
	fake := &fakeNotifyStore{
		events: []store.OutboxEvent{
			{Seq: 1, EventID: "e1", Type: "order_created", Payload: payload, CreatedAt: base},
			{Seq: 2, EventID: "e2", Type: "order_paid", Payload: payload, CreatedAt: base},
		},
	}
	provider := &recordingProvider{}
	worker := New(fake, Config{BatchSize: 1, Provider: provider})

	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("first drain: %v", err)
	}
	fake.offset = fake.saved
	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("second drain: %v", err)
	}

	if len(provider.messages) != 2 {
		t.Fatalf("both same-timestamp events must be delivered, got %d", len(provider.messages))
	}
	if fake.saved != 2 {
		t.Fatalf("cursor should land on the last sequence, got %d", fake.saved)
	}
}
