package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	var created, closed int
	dispatcher.Subscribe(EventTicketCreated, func(_ context.Context, _ Event) error {
		created++
		return nil
	})
	dispatcher.Subscribe(EventTicketClosed, func(_ context.Context, _ Event) error {
		closed++
		return nil
	})

	event := Event{ID: "evt-1", Type: EventTicketCreated, TenantID: "tenant-1"}
	if err := dispatcher.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if created != 1 {
		t.Errorf("created handler calls = %d, want 1", created)
	}
	if closed != 0 {
		t.Errorf("closed handler calls = %d, want 0", closed)
	}
}

func TestDispatcherHandlerErrorDoesNotStopDelivery(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	var second bool
	dispatcher.Subscribe(EventConversationEscalated, func(_ context.Context, _ Event) error {
		return errors.New("handler failure")
	})
	dispatcher.Subscribe(EventConversationEscalated, func(_ context.Context, _ Event) error {
		second = true
		return nil
	})

	if err := dispatcher.Publish(context.Background(), Event{Type: EventConversationEscalated}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !second {
		t.Error("second handler not invoked after first failed")
	}
}

func TestDispatcherNoSubscribers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()
	if err := dispatcher.Publish(context.Background(), Event{Type: EventTicketUpdated}); err != nil {
		t.Fatalf("Publish with no subscribers: %v", err)
	}
}
