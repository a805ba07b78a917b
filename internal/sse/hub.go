// Package sse fans appended rows out to the pages watching a document tab.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.io/infrasutra/docreg/internal/documents"
)

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

var _ documents.Listener = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan []byte]struct{})}
}

func (h *Hub) Subscribe(key string) (chan []byte, func()) {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	if _, ok := h.subs[key]; !ok {
		h.subs[key] = make(map[chan []byte]struct{})
	}
	h.subs[key][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if subscribers, ok := h.subs[key]; ok {
			delete(subscribers, ch)
			if len(subscribers) == 0 {
				delete(h.subs, key)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
}

// Broadcast delivers payload to the pages watching one document type.
// Slow subscribers miss events instead of blocking the sender.
func (h *Hub) Broadcast(key string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[key] {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (h *Hub) RowAppended(_ context.Context, t documents.Type, row documents.Row) error {
	payload, err := buildEvent(t, row)
	if err != nil {
		return err
	}
	h.Broadcast(string(t), payload)
	return nil
}

func buildEvent(t documents.Type, row documents.Row) ([]byte, error) {
	data, err := json.Marshal(struct {
		Type string `json:"type"`
		documents.Row
	}{Type: string(t), Row: row})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return []byte(fmt.Sprintf("event: row\ndata: %s\n\n", data)), nil
}
