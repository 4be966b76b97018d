package handler

import (
	"github.com/gofiber/fiber/v3"

	runtimefiber "github.com/arturoeanton/go-git-analyzer-ollama/internal/fiber"
)

// FiberHandler exposes fiber scheduler introspection.
type FiberHandler struct {
	scheduler *runtimefiber.Scheduler
}

// NewFiberHandler wraps scheduler.
func NewFiberHandler(scheduler *runtimefiber.Scheduler) *FiberHandler {
	return &FiberHandler{scheduler: scheduler}
}

// Register wires the fiber routes onto router.
func (h *FiberHandler) Register(router fiber.Router) {
	router.Get("/fibers/stats", h.Stats)
}

type fiberStats struct {
	Count int `json:"count"`
}

// Stats returns the number of currently registered (non-exited)
// fibers.
func (h *FiberHandler) Stats(c fiber.Ctx) error {
	return c.JSON(fiberStats{Count: h.scheduler.Count()})
}
