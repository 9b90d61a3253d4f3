package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/conversation-router/internal/botstate"
	"github.com/spec-kit/conversation-router/internal/domain"
	"github.com/spec-kit/conversation-router/internal/events"
	apperrors "github.com/spec-kit/conversation-router/pkg/util/errorutil"
)

const (
	testTenant = "tenant-1"
	testKey    = "5511999887766"
)

func newTestRouting(t *testing.T) (*RoutingService, *fakeTicketRepo, *botstate.MemoryStore, *recordingDispatcher) {
	t.Helper()
	tickets := newFakeTicketRepo()
	bot := botstate.NewMemoryStore()
	dispatcher := &recordingDispatcher{}
	routing := NewRoutingService(RoutingDependencies{
		TicketRepo: tickets,
		BotState:   bot,
		AuditRepo:  &fakeAuditRepo{},
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
	return routing, tickets, bot, dispatcher
}

func TestFindOrCreateTicketInitialStatus(t *testing.T) {
	tests := []struct {
		name       string
		botActive  bool
		wantStatus domain.TicketStatus
		wantEvents int
	}{
		{"bot active creates suppressed bot ticket", true, domain.TicketStatusBot, 0},
		{"bot inactive creates pending ticket", false, domain.TicketStatusPending, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routing, _, bot, dispatcher := newTestRouting(t)
			ctx := context.Background()
			if !tt.botActive {
				if err := bot.SetActive(ctx, testTenant, testKey, false, botstate.Metadata{}); err != nil {
					t.Fatalf("SetActive: %v", err)
				}
			}

			ticket, created, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, testKey, ContactRef{}, "hello")
			if err != nil {
				t.Fatalf("FindOrCreateTicket: %v", err)
			}
			if !created {
				t.Fatal("expected a new ticket")
			}
			if ticket.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", ticket.Status, tt.wantStatus)
			}
			if ticket.UnreadCount != 1 {
				t.Errorf("unread = %d, want 1", ticket.UnreadCount)
			}
			if got := len(dispatcher.byType(events.EventTicketCreated)); got != tt.wantEvents {
				t.Errorf("ticket_created events = %d, want %d", got, tt.wantEvents)
			}
		})
	}
}

func TestFindOrCreateTicketReusesActive(t *testing.T) {
	routing, tickets, _, _ := newTestRouting(t)
	ctx := context.Background()

	first, created, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, testKey, ContactRef{}, "first")
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}

	second, created, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, testKey, ContactRef{}, "second")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if created {
		t.Fatal("second call must reuse the active ticket")
	}
	if second.ID != first.ID {
		t.Errorf("reused id = %q, want %q", second.ID, first.ID)
	}
	if second.UnreadCount != 2 {
		t.Errorf("unread = %d, want 2", second.UnreadCount)
	}
	if second.LastMessage != "second" {
		t.Errorf("last message = %q, want %q", second.LastMessage, "second")
	}
	if count := tickets.activeCount(testTenant, domain.ChannelWhatsApp, testKey); count != 1 {
		t.Errorf("active tickets = %d, want 1", count)
	}
}

func TestFindOrCreateTicketSingleActiveUnderConcurrency(t *testing.T) {
	routing, tickets, _, _ := newTestRouting(t)
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, testKey, ContactRef{}, "hi")
			if err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent call failed: %v", err)
	}

	if count := tickets.activeCount(testTenant, domain.ChannelWhatsApp, testKey); count != 1 {
		t.Fatalf("active tickets = %d, want exactly 1", count)
	}
}

func TestFindOrCreateTicketIndependentKeys(t *testing.T) {
	routing, tickets, _, _ := newTestRouting(t)
	ctx := context.Background()

	keys := []string{"111", "222", "333"}
	for _, key := range keys {
		if _, _, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, key, ContactRef{}, "hi"); err != nil {
			t.Fatalf("key %s: %v", key, err)
		}
	}
	for _, key := range keys {
		if count := tickets.activeCount(testTenant, domain.ChannelWhatsApp, key); count != 1 {
			t.Errorf("key %s active tickets = %d, want 1", key, count)
		}
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	routing, _, _, _ := newTestRouting(t)
	status := domain.TicketStatusOpen
	_, err := routing.UpdateStatus(context.Background(), testTenant, "missing", TicketPatch{Status: &status})
	if !apperrors.IsCode(err, "TICKET_NOT_FOUND") {
		t.Fatalf("err = %v, want TICKET_NOT_FOUND", err)
	}
}

func TestUpdateStatusWrongTenant(t *testing.T) {
	routing, _, _, _ := newTestRouting(t)
	ctx := context.Background()
	ticket, _, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, testKey, ContactRef{}, "hi")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	status := domain.TicketStatusOpen
	_, err = routing.UpdateStatus(ctx, "other-tenant", ticket.ID, TicketPatch{Status: &status})
	if !apperrors.IsCode(err, "TICKET_NOT_FOUND") {
		t.Fatalf("err = %v, want TICKET_NOT_FOUND for cross-tenant id", err)
	}
}

func TestUpdateStatusCloseStampsMetadataAndReactivates(t *testing.T) {
	routing, _, bot, dispatcher := newTestRouting(t)
	ctx := context.Background()

	// conversation escalated away from the bot earlier
	if err := bot.SetActive(ctx, testTenant, testKey, false, botstate.Metadata{Reason: "escalated"}); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	routing.SetReactivator(reactivatorFunc(func(ctx context.Context, tenantID string, _ domain.Channel, key string) error {
		return bot.SetActive(ctx, tenantID, key, true, botstate.Metadata{Source: "reactivation"})
	}))

	ticket, _, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, testKey, ContactRef{}, "hi")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	closed := domain.TicketStatusClosed
	actor := "agent-7"
	updated, err := routing.UpdateStatus(ctx, testTenant, ticket.ID, TicketPatch{Status: &closed, ActorID: &actor})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != domain.TicketStatusClosed {
		t.Errorf("status = %q, want closed", updated.Status)
	}
	if updated.ClosedAt == nil {
		t.Error("ClosedAt not stamped")
	}
	if updated.ClosedBy == nil || *updated.ClosedBy != actor {
		t.Errorf("ClosedBy = %v, want %q", updated.ClosedBy, actor)
	}

	state, err := bot.Get(ctx, testTenant, testKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !state.Active {
		t.Error("bot must be active again after close")
	}
	if got := len(dispatcher.byType(events.EventTicketClosed)); got != 1 {
		t.Errorf("ticket_closed events = %d, want 1", got)
	}
}

func TestUpdateStatusReopenClearsCloseMetadata(t *testing.T) {
	routing, _, _, _ := newTestRouting(t)
	ctx := context.Background()

	ticket, _, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, testKey, ContactRef{}, "hi")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	closed := domain.TicketStatusClosed
	if _, err := routing.UpdateStatus(ctx, testTenant, ticket.ID, TicketPatch{Status: &closed}); err != nil {
		t.Fatalf("close: %v", err)
	}

	open := domain.TicketStatusOpen
	reopened, err := routing.UpdateStatus(ctx, testTenant, ticket.ID, TicketPatch{Status: &open})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ClosedAt != nil || reopened.ClosedBy != nil || reopened.CloseReasonID != nil {
		t.Error("reopen must clear close metadata")
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	routing, _, _, _ := newTestRouting(t)
	ctx := context.Background()
	ticket, _, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, testKey, ContactRef{}, "hi")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bogus := domain.TicketStatus("resolved")
	if _, err := routing.UpdateStatus(ctx, testTenant, ticket.ID, TicketPatch{Status: &bogus}); err == nil {
		t.Fatal("expected validation error for unknown status")
	}
}

func TestListTicketsDefaultsToHumanQueue(t *testing.T) {
	routing, _, bot, _ := newTestRouting(t)
	ctx := context.Background()

	// one bot-owned conversation, one escalated
	if _, _, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, "111", ContactRef{}, "hi"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := bot.SetActive(ctx, testTenant, "222", false, botstate.Metadata{}); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, _, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, "222", ContactRef{}, "hi"); err != nil {
		t.Fatalf("create: %v", err)
	}

	tickets, err := routing.ListTickets(ctx, testTenant, nil, 0, 0)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(tickets) != 1 {
		t.Fatalf("tickets = %d, want only the pending one", len(tickets))
	}
	if tickets[0].Status != domain.TicketStatusPending {
		t.Errorf("status = %q, want pending", tickets[0].Status)
	}

	botOwned, err := routing.ListTickets(ctx, testTenant, []domain.TicketStatus{domain.TicketStatusBot}, 0, 0)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(botOwned) != 1 {
		t.Errorf("bot tickets = %d, want 1 with explicit filter", len(botOwned))
	}

	if _, err := routing.ListTickets(ctx, testTenant, []domain.TicketStatus{"resolved"}, 0, 0); err == nil {
		t.Error("expected validation error for unknown status filter")
	}
}

func TestTicketHistoryRecordsTransitions(t *testing.T) {
	tickets := newFakeTicketRepo()
	audit := &fakeAuditRepo{}
	routing := NewRoutingService(RoutingDependencies{
		TicketRepo: tickets,
		BotState:   botstate.NewMemoryStore(),
		AuditRepo:  audit,
		Dispatcher: &recordingDispatcher{},
		Logger:     zap.NewNop(),
	})
	ctx := context.Background()

	ticket, _, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, testKey, ContactRef{}, "hi")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	closed := domain.TicketStatusClosed
	if _, err := routing.UpdateStatus(ctx, testTenant, ticket.ID, TicketPatch{Status: &closed}); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := routing.TicketHistory(ctx, testTenant, ticket.ID, 0, 0)
	if err != nil {
		t.Fatalf("TicketHistory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Kind != domain.RoutingEventStatus {
		t.Errorf("kind = %q, want %q", entries[0].Kind, domain.RoutingEventStatus)
	}

	if _, err := routing.TicketHistory(ctx, testTenant, "missing", 0, 0); !apperrors.IsCode(err, "TICKET_NOT_FOUND") {
		t.Fatalf("err = %v, want TICKET_NOT_FOUND", err)
	}
}

func TestUpdateStatusWaitsForConversationLock(t *testing.T) {
	routing, _, _, _ := newTestRouting(t)
	ctx := context.Background()
	ticket, _, err := routing.FindOrCreateTicket(ctx, testTenant, domain.ChannelWhatsApp, testKey, ContactRef{}, "hi")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// a coordinator holds the conversation for its multi-step sequence
	unlock := routing.LockConversation(testTenant, domain.ChannelWhatsApp, testKey)

	closed := domain.TicketStatusClosed
	done := make(chan error, 1)
	go func() {
		_, err := routing.UpdateStatus(ctx, testTenant, ticket.ID, TicketPatch{Status: &closed})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("close patch ran while the conversation was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("close after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("close patch never completed after release")
	}
}

// reactivatorFunc adapts a func to the Reactivator interface.
type reactivatorFunc func(ctx context.Context, tenantID string, channel domain.Channel, key string) error

func (f reactivatorFunc) Reactivate(ctx context.Context, tenantID string, channel domain.Channel, key string) error {
	return f(ctx, tenantID, channel, key)
}
