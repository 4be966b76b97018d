// Package handler exposes the runtime's Engine, Fiber scheduler, and
// Observable bus over HTTP — an admin surface that observes and
// drives the core from outside, never part of the core itself.
package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/arturoeanton/go-git-analyzer-ollama/internal/event"
	"github.com/arturoeanton/go-git-analyzer-ollama/internal/modest"
)

// operationRegistry maps the ids this handler hands back to callers
// onto the live *modest.Operation, so a later GET can Err()/IsStopped()
// it. Entries are not pruned; a production deployment would expire
// them alongside the underlying Operation completing.
var (
	operationRegistryMu sync.RWMutex
	operationRegistry   = make(map[string]*modest.Operation)
)

func registerOperation(id string, op *modest.Operation) {
	operationRegistryMu.Lock()
	operationRegistry[id] = op
	operationRegistryMu.Unlock()
}

func lookupOperation(id string) (*modest.Operation, bool) {
	operationRegistryMu.RLock()
	defer operationRegistryMu.RUnlock()
	op, ok := operationRegistry[id]
	return op, ok
}

// EngineHandler exposes engine introspection and a demo Operation
// submission endpoint.
type EngineHandler struct {
	engine *modest.Engine
	stats  *cache.Cache

	bus   *event.Observable
	tapID event.ID
}

// NewEngineHandler wraps engine. statsTTL controls how long
// /engine/stats responses are cached before the next request recomputes
// them, so a polling dashboard doesn't contend with the dispatcher's
// own locks on every tick. If bus is non-nil, every Operation this
// handler submits publishes a started/stopped lifecycle Event under
// tapID, so observers registered there (the audit Observer, the SSE
// stream) actually see traffic instead of sitting on a dead tap.
func NewEngineHandler(engine *modest.Engine, statsTTL time.Duration, bus *event.Observable, tapID event.ID) *EngineHandler {
	return &EngineHandler{
		engine: engine,
		stats:  cache.New(statsTTL, 2*statsTTL),
		bus:    bus,
		tapID:  tapID,
	}
}

// publishLifecycle schedules a lifecycle Event for operationID if a
// bus was configured. Called from a Mutator's Pre/Post, so it must
// stay non-blocking; Schedule's async path only appends to a queue
// and signals the drain Operation.
func (h *EngineHandler) publishLifecycle(operationID, phase string) {
	if h.bus == nil {
		return
	}
	h.bus.Schedule(event.NewEvent(h.tapID, map[string]any{
		"operation_id": operationID,
		"phase":        phase,
	}), h.tapID, true)
}

// Register wires the engine routes onto router.
func (h *EngineHandler) Register(router fiber.Router) {
	g := router.Group("/engine")
	g.Get("/stats", h.Stats)
	g.Post("/operations", h.SubmitOperation)
	g.Get("/operations/:id", h.OperationStatus)
}

type engineStats struct {
	Queued int `json:"queued"`
	Live   int `json:"live"`
	Pool   int `json:"pool_size"`
}

// Stats returns queued/live operation counts and current pool size,
// cached for a short TTL.
func (h *EngineHandler) Stats(c fiber.Ctx) error {
	const key = "engine-stats"
	if cached, ok := h.stats.Get(key); ok {
		return c.JSON(cached)
	}
	stats := engineStats{
		Queued: h.engine.QueuedCount(),
		Live:   h.engine.LiveCount(),
		Pool:   h.engine.PoolSize(),
	}
	h.stats.SetDefault(key, stats)
	return c.JSON(stats)
}

type submitOperationRequest struct {
	Name          string `json:"name"`
	RequireVar    string `json:"require_var"`
	RunDurationMS int    `json:"run_duration_ms"`
}

type submitOperationResponse struct {
	ID string `json:"id"`
}

// SubmitOperation queues a demo Operation that sleeps for
// run_duration_ms, optionally guarded on a boolean State variable
// being true. The registry maps the returned id back to the
// *modest.Operation for OperationStatus to join on.
func (h *EngineHandler) SubmitOperation(c fiber.Ctx) error {
	var req submitOperationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	id := uuid.NewString()

	opts := []modest.OperationOption{
		modest.WithMutator(modest.MutatorFunc{
			PreFunc:  func(s *modest.State, op *modest.Operation) { h.publishLifecycle(id, "started") },
			PostFunc: func(s *modest.State, op *modest.Operation) { h.publishLifecycle(id, "stopped") },
		}),
	}
	if req.Name != "" {
		opts = append(opts, modest.WithName(req.Name))
	}
	if req.RequireVar != "" {
		varName := req.RequireVar
		opts = append(opts, modest.WithGuard(modest.GuardFunc{
			CanExecuteFunc: func(s *modest.State, op *modest.Operation) bool {
				v, ok := s.GetBoolNoLock(varName)
				return ok && v
			},
		}))
	}

	dur := time.Duration(req.RunDurationMS) * time.Millisecond
	op := modest.NewOperation(modest.RunnableFunc(func(ctx context.Context) error {
		select {
		case <-time.After(dur):
			return nil
		case <-ctx.Done():
			return nil
		}
	}), opts...)

	registerOperation(id, op)
	if err := h.engine.Queue(op); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(submitOperationResponse{ID: id})
}

// OperationStatus reports whether a submitted Operation has started,
// stopped, and its error if any.
func (h *EngineHandler) OperationStatus(c fiber.Ctx) error {
	id := c.Params("id")
	op, ok := lookupOperation(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "operation not found"})
	}

	resp := fiber.Map{
		"id":      id,
		"started": op.IsStarted(),
		"stopped": op.IsStopped(),
	}
	if err := op.Err(); err != nil {
		resp["error"] = err.Error()
	}
	return c.JSON(resp)
}
