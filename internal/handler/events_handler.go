package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-git-analyzer-ollama/internal/event"
)

// EventsHandler streams bus Events to SSE subscribers. It relays
// every event it receives as an Observer; the caller registers it on
// the ids to relay.
type EventsHandler struct {
	mu   sync.RWMutex
	subs []chan event.Event
}

// NewEventsHandler returns a handler with no subscribers yet.
func NewEventsHandler() *EventsHandler {
	return &EventsHandler{}
}

// HandleEvent implements event.Observer, fanning e out to every
// current SSE subscriber. A full subscriber channel drops the event
// rather than blocking the dispatch Operation that called this.
func (h *EventsHandler) HandleEvent(e event.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *EventsHandler) subscribe() chan event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan event.Event, 16)
	h.subs = append(h.subs, ch)
	return ch
}

func (h *EventsHandler) unsubscribe(ch chan event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subs {
		if s == ch {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			break
		}
	}
	close(ch)
}

// Register wires the event stream route onto router.
func (h *EventsHandler) Register(router fiber.Router) {
	router.Get("/events/stream", h.Stream)
}

// Stream opens an SSE connection that relays every bus event this
// handler observes until the client disconnects or 5 minutes elapse.
func (h *EventsHandler) Stream(c fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Access-Control-Allow-Origin", "*")

	ch := h.subscribe()
	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.unsubscribe(ch)

		timeout := time.After(5 * time.Minute)
		for {
			select {
			case e, ok := <-ch:
				if !ok {
					return
				}
				data, _ := json.Marshal(e)
				fmt.Fprintf(w, "event: bus\ndata: %s\n\n", string(data))
				if err := w.Flush(); err != nil {
					return
				}
			case <-timeout:
				return
			}
		}
	})
}
