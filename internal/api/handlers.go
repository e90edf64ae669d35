package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Thanuja-2/collaborative-canvas/internal/models"
	"github.com/Thanuja-2/collaborative-canvas/internal/services"
	"github.com/Thanuja-2/collaborative-canvas/internal/session"
	"github.com/Thanuja-2/collaborative-canvas/internal/utils"
)

type Handlers struct {
	log    *utils.Logger
	hub    *session.Hub
	events *services.EventPublisher
}

func NewHandlers(log *utils.Logger, events *services.EventPublisher) *Handlers {
	return NewHandlersWithDeps(log, session.NewHub(), events)
}

func NewHandlersWithDeps(log *utils.Logger, hub *session.Hub, events *services.EventPublisher) *Handlers {
	return &Handlers{log: log, hub: hub, events: events}
}

func (h *Handlers) Hub() *session.Hub { return h.hub }

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// RoomSnapshot returns a read-only view of a room's log and user list.
func (h *Handlers) RoomSnapshot(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	room, ok := h.hub.Get(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, models.InitState{
		Operations: room.Snapshot(),
		Users:      room.Users(),
	})
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// CanvasWS is the sync protocol endpoint. A connection starts unjoined; every
// mutating frame before joinRoom is ignored, never answered with an error.
func (h *Handlers) CanvasWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := session.NewClient(conn)
	var (
		room     *session.Room
		username string
	)
	defer func() {
		if room == nil {
			return
		}
		left := room.Leave(client)
		h.events.Publish(models.RoomEvent{
			Room: room.ID, Event: "user_left",
			ConnID: client.ID, Username: username, Users: left,
		})
	}()

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case models.MsgJoinRoom:
			if room != nil {
				continue // already joined; not a valid transition
			}
			var req models.JoinRoom
			marshal(frame.Data, &req)
			room, username = h.join(client, req)

		case models.MsgStartStroke:
			if room == nil {
				continue
			}
			var req models.StartStroke
			marshal(frame.Data, &req)
			room.StartStroke(client, req.Meta)

		case models.MsgStrokePoints:
			if room == nil {
				continue
			}
			var req models.StrokePoints
			marshal(frame.Data, &req)
			room.AppendPoints(client, req.OpID, req.Points)

		case models.MsgFinishStroke:
			if room == nil {
				continue
			}
			var req models.FinishStroke
			marshal(frame.Data, &req)
			room.FinishStroke(client, req.OpID)

		case models.MsgUndo:
			if room == nil {
				continue
			}
			room.Undo()

		case models.MsgRedo:
			if room == nil {
				continue
			}
			room.Redo()

		case models.MsgClear:
			if room == nil {
				continue
			}
			room.Clear()

		case models.MsgCursorMove:
			if room == nil {
				continue
			}
			var req models.CursorMove
			marshal(frame.Data, &req)
			room.RelayCursor(client, req.X, req.Y)

		case models.MsgInitState, models.MsgOpCreated, models.MsgUsersUpdate:
			// server-originated kinds; a client sending them is ignored

		default:
			// unknown frame kinds degrade to no-ops
		}
	}
}

func (h *Handlers) join(client *session.Client, req models.JoinRoom) (*session.Room, string) {
	roomID := req.RoomID
	if roomID == "" {
		roomID = "default"
	}
	username := req.Username
	if username == "" {
		username = "User-" + client.ID[:4]
	}

	room, created := h.hub.GetOrCreate(roomID)
	if created {
		h.events.Publish(models.RoomEvent{Room: roomID, Event: "room_created"})
	}
	room.Join(client, username)
	h.events.Publish(models.RoomEvent{
		Room: roomID, Event: "user_joined",
		ConnID: client.ID, Username: username, Users: room.ClientCount(),
	})
	h.log.Info("client joined", "room", roomID, "conn", client.ID, "username", username)
	return room, username
}

func marshal(in any, out any) { b, _ := json.Marshal(in); _ = json.Unmarshal(b, out) }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
