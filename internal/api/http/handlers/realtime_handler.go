package handlers

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/events"
	"github.com/spec-kit/issue-ticket-service/internal/realtime"
)

const agentLocalKey = "agent_id"

// AgentLookup verifies that an agent exists before a session is opened.
type AgentLookup interface {
	Get(ctx context.Context, id int64) (*domain.Agent, error)
}

// RealtimeHandler upgrades agent connections and registers them with the hub.
type RealtimeHandler struct {
	hub    *realtime.Hub
	agents AgentLookup
}

// NewRealtimeHandler constructs handler.
func NewRealtimeHandler(hub *realtime.Hub, agents AgentLookup) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, agents: agents}
}

// Authorize runs before the upgrade of GET /ws/agents/:agent_id.
func (h *RealtimeHandler) Authorize(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	agentID, err := parseID(c, agentLocalKey)
	if err != nil {
		return err
	}
	if _, err := h.agents.Get(c.UserContext(), agentID); err != nil {
		return err
	}
	c.Locals(agentLocalKey, agentID)
	return c.Next()
}

// Session serves one agent connection until the client leaves or the hub drops it.
func (h *RealtimeHandler) Session() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		agentID, _ := conn.Locals(agentLocalKey).(int64)
		session := h.hub.Connect(agentID, conn)
		defer func() {
			h.hub.Release(session)
			<-session.Stopped()
		}()

		h.hub.SendTo(agentID, events.Event{
			Type: events.EventSessionConnected,
			Data: fiber.Map{"agent_id": agentID},
		})

		// Inbound messages are ignored; reading detects the peer going away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
