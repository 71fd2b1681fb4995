package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-ticket-service/internal/events"
	"github.com/spec-kit/issue-ticket-service/internal/observability"
)

const defaultSendBuffer = 64

// Channel is the transport behind one live agent session.
type Channel interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Session is the registration of one channel for one agent.
type Session struct {
	agentID   int64
	channel   Channel
	queue     chan events.Event
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// AgentID returns the identity the session was registered under.
func (s *Session) AgentID() int64 { return s.agentID }

// Done is closed once the session has been released or replaced.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stopped is closed after the writer goroutine has exited.
func (s *Session) Stopped() <-chan struct{} { return s.stopped }

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.channel.Close()
	})
}

// Hub owns the agentID -> session registry and fans events out to sessions.
// Delivery is best-effort and at-most-once: nothing is queued for agents that
// are not connected and a full session buffer drops the event.
type Hub struct {
	mu         sync.RWMutex
	sessions   map[int64]*Session
	closed     bool
	sendBuffer int
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewHub creates an empty registry.
func NewHub(sendBuffer int, logger *zap.Logger, metrics *observability.Metrics) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions:   make(map[int64]*Session),
		sendBuffer: sendBuffer,
		logger:     logger,
		metrics:    metrics,
	}
}

// Connect registers ch for agentID, closing any channel previously registered
// for the same agent.
func (h *Hub) Connect(agentID int64, ch Channel) *Session {
	s := &Session{
		agentID: agentID,
		channel: ch,
		queue:   make(chan events.Event, h.sendBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.close()
		close(s.stopped)
		return s
	}
	prev := h.sessions[agentID]
	h.sessions[agentID] = s
	h.mu.Unlock()

	if prev != nil {
		prev.close()
		h.logger.Info("agent session replaced", zap.Int64("agent_id", agentID))
	}
	go h.writeLoop(s)
	h.logger.Info("agent session connected", zap.Int64("agent_id", agentID))
	return s
}

// Disconnect removes whatever session is registered for agentID.
func (h *Hub) Disconnect(agentID int64) {
	h.mu.Lock()
	s, ok := h.sessions[agentID]
	if ok {
		delete(h.sessions, agentID)
	}
	h.mu.Unlock()

	if ok {
		s.close()
		h.logger.Info("agent session disconnected", zap.Int64("agent_id", agentID))
	}
}

// Release ends s, unregistering it only if it has not been replaced since.
func (h *Hub) Release(s *Session) {
	h.mu.Lock()
	if cur, ok := h.sessions[s.agentID]; ok && cur == s {
		delete(h.sessions, s.agentID)
	}
	h.mu.Unlock()
	s.close()
}

// SendTo delivers event to one agent if connected; otherwise it is dropped.
func (h *Hub) SendTo(agentID int64, event events.Event) {
	h.mu.RLock()
	s := h.sessions[agentID]
	h.mu.RUnlock()

	if s == nil {
		h.metrics.RecordDelivery(string(event.Type), observability.DeliveryDropped)
		return
	}
	h.enqueue(s, event)
}

// Broadcast delivers event to every session registered when it is called.
func (h *Hub) Broadcast(event events.Event) {
	h.mu.RLock()
	snapshot := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	for _, s := range snapshot {
		h.enqueue(s, event)
	}
}

// Connected reports the number of registered sessions.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close closes every channel and refuses further connections.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := h.sessions
	h.sessions = make(map[int64]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (h *Hub) enqueue(s *Session, event events.Event) {
	select {
	case <-s.done:
		h.metrics.RecordDelivery(string(event.Type), observability.DeliveryDropped)
		return
	default:
	}

	select {
	case s.queue <- event:
	default:
		h.metrics.RecordDelivery(string(event.Type), observability.DeliveryDropped)
		h.logger.Warn("agent session buffer full; dropping event",
			zap.Int64("agent_id", s.agentID),
			zap.String("event_type", string(event.Type)))
	}
}

func (h *Hub) writeLoop(s *Session) {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case event := <-s.queue:
			if err := s.channel.WriteJSON(event); err != nil {
				h.metrics.RecordDelivery(string(event.Type), observability.DeliveryFailed)
				h.logger.Warn("agent session write failed",
					zap.Int64("agent_id", s.agentID),
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
				h.Release(s)
				return
			}
			h.metrics.RecordDelivery(string(event.Type), observability.DeliveryDelivered)
		}
	}
}
