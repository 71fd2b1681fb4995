package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-ticket-service/internal/observability"
)

// MetricsHandler exposes in-process counters.
type MetricsHandler struct {
	metrics *observability.Metrics
	hub     interface{ Connected() int }
}

// NewMetricsHandler constructs handler.
func NewMetricsHandler(metrics *observability.Metrics, hub interface{ Connected() int }) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, hub: hub}
}

// Snapshot GET /metrics.
func (h *MetricsHandler) Snapshot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"counters":       h.metrics.Snapshot(),
			"agent_sessions": h.hub.Connected(),
		},
	})
}
