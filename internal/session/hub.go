package session

import (
	"context"
	"sync"
	"time"
)

// Hub is the room registry. Rooms are materialized on first join and live until
// the janitor reaps them after sitting empty for a grace period.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewHub() *Hub { return &Hub{rooms: make(map[string]*Room)} }

// GetOrCreate returns the room, creating it if needed. created reports whether
// this call materialized it.
func (h *Hub) GetOrCreate(id string) (room *Room, created bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[id]; ok {
		return r, false
	}
	r := NewRoom(id)
	h.rooms[id] = r
	return r, true
}

func (h *Hub) Get(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	return r, ok
}

func (h *Hub) Delete(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, id)
}

// Reap removes every room that has been empty for at least grace and returns
// their ids.
func (h *Hub) Reap(grace time.Duration) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	var reaped []string
	for id, r := range h.rooms {
		if r.Evictable(now, grace) {
			delete(h.rooms, id)
			reaped = append(reaped, id)
		}
	}
	return reaped
}

// RunJanitor reaps on the given interval until ctx is done. onEvict, if set, is
// called once per reaped room.
func (h *Hub) RunJanitor(ctx context.Context, interval, grace time.Duration, onEvict func(roomID string)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, id := range h.Reap(grace) {
				if onEvict != nil {
					onEvict(id)
				}
			}
		}
	}
}
