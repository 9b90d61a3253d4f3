package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/conversation-router/internal/domain"
	"github.com/spec-kit/conversation-router/internal/events"
	"github.com/spec-kit/conversation-router/internal/outbound"
)

// fakeTicketRepo emulates the persistence collaborator, including the
// unique-active-ticket constraint the real schema enforces.
type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	seq     int

	failCreate error
	failUpdate error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	for _, existing := range f.tickets {
		if existing.TenantID == ticket.TenantID &&
			existing.Channel == ticket.Channel &&
			existing.ConversationKey == ticket.ConversationKey &&
			existing.Status.IsActive() && ticket.Status.IsActive() {
			return errors.New("unique constraint violation: duplicate active ticket")
		}
	}
	f.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", f.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	stored, ok := f.tickets[ticket.ID]
	if !ok || stored.TenantID != ticket.TenantID {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, tenantID, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tickets[id]
	if !ok || stored.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeTicketRepo) FindActive(_ context.Context, tenantID string, channel domain.Channel, key string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stored := range f.tickets {
		if stored.TenantID == tenantID && stored.Channel == channel &&
			stored.ConversationKey == key && stored.Status.IsActive() {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) ListByStatus(_ context.Context, tenantID string, statuses []domain.TicketStatus, _, _ int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Ticket
	for _, stored := range f.tickets {
		if stored.TenantID != tenantID {
			continue
		}
		for _, status := range statuses {
			if stored.Status == status {
				result = append(result, *stored)
				break
			}
		}
	}
	return result, nil
}

func (f *fakeTicketRepo) activeCount(tenantID string, channel domain.Channel, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, stored := range f.tickets {
		if stored.TenantID == tenantID && stored.Channel == channel &&
			stored.ConversationKey == key && stored.Status.IsActive() {
			count++
		}
	}
	return count
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.Message
	seq      int

	failCreate error
	failList   error
}

func (f *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	f.seq++
	msg.ID = fmt.Sprintf("msg-%d", f.seq)
	msg.CreatedAt = time.Now()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageRepo) ListRecent(_ context.Context, tenantID, ticketID string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	var visible []domain.Message
	for i := len(f.messages) - 1; i >= 0 && len(visible) < limit; i-- {
		msg := f.messages[i]
		if msg.TenantID == tenantID && msg.TicketID == ticketID && !msg.Internal {
			visible = append(visible, msg)
		}
	}
	return visible, nil
}

func (f *fakeMessageRepo) internalMessages() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Message
	for _, msg := range f.messages {
		if msg.Internal {
			result = append(result, msg)
		}
	}
	return result
}

type fakeQueueRepo struct {
	queues   map[string]*domain.Queue
	defaults map[domain.Channel]*domain.Queue
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{
		queues:   make(map[string]*domain.Queue),
		defaults: make(map[domain.Channel]*domain.Queue),
	}
}

func (f *fakeQueueRepo) GetByID(_ context.Context, tenantID, id string) (*domain.Queue, error) {
	queue, ok := f.queues[id]
	if !ok || queue.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return queue, nil
}

func (f *fakeQueueRepo) GetDefaultForChannel(_ context.Context, tenantID string, channel domain.Channel) (*domain.Queue, error) {
	queue, ok := f.defaults[channel]
	if !ok || queue.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return queue, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.RoutingEvent
}

func (f *fakeAuditRepo) Create(_ context.Context, event *domain.RoutingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *event)
	return nil
}

func (f *fakeAuditRepo) ListByTicket(_ context.Context, tenantID, ticketID string, _, _ int) ([]domain.RoutingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.RoutingEvent
	for _, entry := range f.entries {
		if entry.TenantID == tenantID && entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type fakeSender struct {
	mu    sync.Mutex
	sends []string
	err   error
}

func (f *fakeSender) Send(_ context.Context, _ *domain.Ticket, body string) (outbound.DeliveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return outbound.DeliveryResult{Delivered: false, Detail: f.err.Error()}, f.err
	}
	f.sends = append(f.sends, body)
	return outbound.DeliveryResult{Delivered: true}, nil
}

func (f *fakeSender) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts map[string]*domain.Contact
	seq      int

	failCreate error
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[string]*domain.Contact)}
}

func (f *fakeContactRepo) Create(_ context.Context, contact *domain.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	f.seq++
	contact.ID = fmt.Sprintf("contact-%d", f.seq)
	clone := *contact
	f.contacts[contact.ID] = &clone
	return nil
}

func (f *fakeContactRepo) FindByAddress(_ context.Context, tenantID string, channel domain.Channel, address string) (*domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, contact := range f.contacts {
		if contact.TenantID == tenantID && contact.Channel == channel && contact.Address == address {
			clone := *contact
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}
