package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/events"
	"github.com/spec-kit/issue-ticket-service/internal/repository"
	apperrors "github.com/spec-kit/issue-ticket-service/pkg/util/errorutil"
)

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeStore struct {
	mu      sync.Mutex
	tickets map[int64]domain.Ticket
	agents  map[int64]domain.Agent
	history []domain.TicketHistory
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tickets: map[int64]domain.Ticket{},
		agents:  map[int64]domain.Agent{},
	}
}

func (s *fakeStore) addAgent(id int64, activeTickets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[id] = domain.Agent{ID: id, Name: "agent", Email: "agent@example.com"}
	for i := 0; i < activeTickets; i++ {
		s.nextID++
		agentID := id
		s.tickets[1000+s.nextID] = domain.Ticket{ID: 1000 + s.nextID, Status: domain.TicketStatusAssigned, AgentID: &agentID}
	}
}

func (s *fakeStore) put(t domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t
}

func (s *fakeStore) ticket(id int64) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickets[id]
}

type fakeTicketRepo struct{ store *fakeStore }

func (r fakeTicketRepo) Create(_ context.Context, t *domain.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.agents[*t.AgentID]; !ok {
		return apperrors.NewNotFound("agent", nil)
	}
	r.store.nextID++
	t.ID = r.store.nextID
	r.store.tickets[t.ID] = *t
	return nil
}

func (r fakeTicketRepo) Update(_ context.Context, t *domain.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.tickets[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.store.tickets[t.ID] = *t
	return nil
}

func (r fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r fakeTicketRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.store.tickets {
		if filter.AgentID != nil && (t.AgentID == nil || *t.AgentID != *filter.AgentID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeHistoryRepo struct{ store *fakeStore }

func (r fakeHistoryRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	h.ID = int64(len(r.store.history) + 1)
	r.store.history = append(r.store.history, *h)
	return nil
}

func (r fakeHistoryRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range r.store.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeAgentRepo struct{ store *fakeStore }

func (r fakeAgentRepo) Create(_ context.Context, a *domain.Agent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.agents {
		if existing.Email == a.Email {
			return apperrors.NewConflict("agent already exists", nil)
		}
	}
	r.store.nextID++
	a.ID = r.store.nextID
	r.store.agents[a.ID] = *a
	return nil
}

func (r fakeAgentRepo) Update(_ context.Context, a *domain.Agent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.agents[a.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.store.agents[a.ID] = *a
	return nil
}

func (r fakeAgentRepo) Delete(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.agents[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.store.agents, id)
	for tid, t := range r.store.tickets {
		if t.AgentID != nil && *t.AgentID == id {
			t.AgentID = nil
			r.store.tickets[tid] = t
		}
	}
	return nil
}

func (r fakeAgentRepo) GetByID(_ context.Context, id int64) (*domain.Agent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.agents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r fakeAgentRepo) List(_ context.Context, _, _ int) ([]domain.Agent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []domain.Agent{}
	for _, a := range r.store.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ActiveTicketCounts returns loads in descending id order so callers cannot
// rely on iteration order for tie-breaking.
func (r fakeAgentRepo) ActiveTicketCounts(_ context.Context) ([]domain.AgentLoad, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	counts := map[int64]int{}
	for id := range r.store.agents {
		counts[id] = 0
	}
	for _, t := range r.store.tickets {
		if t.AgentID == nil || t.Status == domain.TicketStatusClosed {
			continue
		}
		if _, ok := counts[*t.AgentID]; ok {
			counts[*t.AgentID]++
		}
	}
	var out []domain.AgentLoad
	for id, n := range counts {
		out = append(out, domain.AgentLoad{AgentID: id, ActiveTickets: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID > out[j].AgentID })
	return out, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) SubscribeAll(events.EventHandler) {}

func (d *recordingDispatcher) count(eventType events.EventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (d *recordingDispatcher) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

type scheduled struct {
	ticketID  int64
	notBefore time.Time
}

type recordingScheduler struct {
	mu    sync.Mutex
	calls []scheduled
	err   error
}

func (s *recordingScheduler) Schedule(_ context.Context, ticketID int64, notBefore time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, scheduled{ticketID: ticketID, notBefore: notBefore})
	return s.err
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type ticketFixture struct {
	store      *fakeStore
	dispatcher *recordingDispatcher
	scheduler  *recordingScheduler
	clock      *manualClock
	service    *TicketService
}

func newTicketFixture() *ticketFixture {
	store := newFakeStore()
	dispatcher := &recordingDispatcher{}
	scheduler := &recordingScheduler{}
	clk := &manualClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	agents := fakeAgentRepo{store: store}
	svc := NewTicketService(TicketDependencies{
		TicketRepo:  fakeTicketRepo{store: store},
		HistoryRepo: fakeHistoryRepo{store: store},
		AgentRepo:   agents,
		Transactor:  passthroughTx{},
		Assignment:  NewAssignmentPolicy(agents),
		Dispatcher:  dispatcher,
		Scheduler:   scheduler,
		Clock:       clk,
		Window:      24 * time.Hour,
	})
	return &ticketFixture{store: store, dispatcher: dispatcher, scheduler: scheduler, clock: clk, service: svc}
}

func (f *ticketFixture) seed(id int64, status domain.TicketStatus) domain.Ticket {
	agentID := int64(1)
	now := f.clock.Now()
	t := domain.Ticket{
		ID:          id,
		Title:       "printer jammed",
		Description: "paper stuck",
		Priority:    domain.TicketPriorityMedium,
		Status:      status,
		CustomerID:  1,
		AgentID:     &agentID,
		ProductID:   1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status == domain.TicketStatusClosed {
		t.ClosedAt = &now
	}
	f.store.put(t)
	return t
}
