package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Thanuja-2/collaborative-canvas/internal/models"
	"github.com/Thanuja-2/collaborative-canvas/internal/utils"
)

const (
	eventChannel = "canvas:rooms"
	statusTTL    = 24 * time.Hour
)

// EventPublisher pushes room lifecycle events onto a redis channel and mirrors
// each room's occupancy into a hash with a TTL, so operators can watch activity
// without touching the in-memory hub. Disabled (every call a no-op) when no
// redis address is configured.
type EventPublisher struct {
	rdb *redis.Client
	log *utils.Logger
}

func NewEventPublisher(redisAddr string, log *utils.Logger) *EventPublisher {
	p := &EventPublisher{log: log}
	if redisAddr != "" {
		p.rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
	}
	return p
}

func (p *EventPublisher) Enabled() bool { return p != nil && p.rdb != nil }

// Publish fires a room event. CreatedAt is stamped here if unset.
func (p *EventPublisher) Publish(ev models.RoomEvent) {
	if !p.Enabled() {
		return
	}
	if ev.CreatedAt == "" {
		ev.CreatedAt = time.Now().Format(time.RFC3339)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal room event failed", "room", ev.Room, "error", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.rdb.Publish(ctx, eventChannel, data).Err(); err != nil {
		p.log.Warn("publish room event failed", "room", ev.Room, "error", err.Error())
	}
	p.recordRoomStatus(ctx, ev)
}

func (p *EventPublisher) recordRoomStatus(ctx context.Context, ev models.RoomEvent) {
	key := "canvasroom:" + ev.Room
	if ev.Event == "room_evicted" {
		if err := p.rdb.Del(ctx, key).Err(); err != nil {
			p.log.Warn("delete room status failed", "room", ev.Room, "error", err.Error())
		}
		return
	}
	p.rdb.HSet(ctx, key, map[string]interface{}{
		"room":      ev.Room,
		"users":     ev.Users,
		"lastEvent": ev.Event,
		"updatedAt": ev.CreatedAt,
	})
	p.rdb.Expire(ctx, key, statusTTL)
}

// Close releases the redis connection.
func (p *EventPublisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.rdb.Close()
}
