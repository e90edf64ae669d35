package session

import (
	"sort"
	"sync"
	"time"

	"github.com/Thanuja-2/collaborative-canvas/internal/models"
)

// palette for user color assignment, cycled by join order.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8",
	"#f58231", "#911eb4", "#42d4f4", "#f032e6",
}

// Room is one drawing session: the operation log, the connected clients and
// their presence entries, all behind a single mutex. Every method both mutates
// and fans out under that mutex, so the order broadcasts reach receivers always
// matches the order mutations were applied to the log.
type Room struct {
	ID string

	mu         sync.Mutex
	clients    map[*Client]struct{}
	users      map[string]models.User
	log        *OpLog
	emptySince time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		ID:         id,
		clients:    make(map[*Client]struct{}),
		users:      make(map[string]models.User),
		log:        NewOpLog(),
		emptySince: time.Now(),
	}
}

// Join registers the connection, sends it the current state snapshot, and
// broadcasts the refreshed user list to the whole room including the joiner.
func (r *Room) Join(c *Client, username string) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := models.User{
		ID:       c.ID,
		Username: username,
		Color:    palette[len(r.users)%len(palette)],
	}
	r.clients[c] = struct{}{}
	r.users[c.ID] = user
	r.emptySince = time.Time{}

	c.Send(models.WSFrame{Type: models.MsgInitState, Data: models.InitState{
		Operations: r.log.Snapshot(),
		Users:      r.usersLocked(),
	}})
	r.broadcastLocked(nil, models.WSFrame{Type: models.MsgUsersUpdate, Data: r.usersLocked()})
	return user
}

// Leave detaches the connection, broadcasts the user list to the remaining
// participants, and returns how many are left. The log is retained.
func (r *Room) Leave(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, c)
	delete(r.users, c.ID)
	if len(r.clients) == 0 {
		r.emptySince = time.Now()
	}
	r.broadcastLocked(nil, models.WSFrame{Type: models.MsgUsersUpdate, Data: r.usersLocked()})
	return len(r.clients)
}

// StartStroke creates the operation and confirms the canonical id to the
// origin only. Other participants learn of the operation once points or finish
// arrive for it; the empty shell is not broadcast.
func (r *Room) StartStroke(origin *Client, meta models.StrokeMeta) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := r.log.Create(models.OpStroke, origin.ID, meta)
	origin.Send(models.WSFrame{Type: models.MsgOpCreated, Data: models.OpCreated{OpID: op.ID}})
	return op.ID
}

// AppendPoints applies the batch and relays it to every other connection,
// tagged with the owner. The relay is unconditional: a batch whose operation
// was concurrently undone or cleared is a benign race on both ends.
func (r *Room) AppendPoints(origin *Client, opID string, points []models.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.AppendPoints(opID, points)
	r.broadcastLocked(origin, models.WSFrame{Type: models.MsgStrokePoints, Data: models.StrokePoints{
		OpID:   opID,
		Points: points,
		Owner:  origin.ID,
	}})
}

// FinishStroke marks the operation finished and broadcasts to the entire room,
// origin included: the origin only flips its local finished flag on the
// authoritative round trip.
func (r *Room) FinishStroke(origin *Client, opID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Finish(opID)
	r.broadcastLocked(nil, models.WSFrame{Type: models.MsgFinishStroke, Data: models.FinishStroke{
		OpID:  opID,
		Owner: origin.ID,
	}})
}

// Undo removes the newest undoable operation and, on effect, broadcasts its id
// to the whole room. A no-op undo produces no broadcast.
func (r *Room) Undo() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := r.log.Undo()
	if op == nil {
		return false
	}
	r.broadcastLocked(nil, models.WSFrame{Type: models.MsgUndo, Data: models.UndoResult{OpID: op.ID}})
	return true
}

// Redo restores the most recently undone operation and, on effect, broadcasts
// it in full to the whole room.
func (r *Room) Redo() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := r.log.Redo()
	if op == nil {
		return false
	}
	restored := *op
	restored.Points = append([]models.Point(nil), op.Points...)
	r.broadcastLocked(nil, models.WSFrame{Type: models.MsgRedo, Data: models.RedoResult{Operation: restored}})
	return true
}

// Clear empties the log and redo stack and broadcasts unconditionally.
func (r *Room) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Clear()
	r.broadcastLocked(nil, models.WSFrame{Type: models.MsgClear})
}

// RelayCursor forwards a cursor position to every other connection, tagged with
// the sender's identity. Cursor traffic is never logged.
func (r *Room) RelayCursor(origin *Client, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[origin.ID]
	if !ok {
		return
	}
	r.broadcastLocked(origin, models.WSFrame{Type: models.MsgCursorMove, Data: models.CursorMove{
		ID:       origin.ID,
		Username: user.Username,
		X:        x,
		Y:        y,
	}})
}

// Snapshot returns a defensive copy of the operation log.
func (r *Room) Snapshot() []models.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Snapshot()
}

// Users returns the presence list in a deterministic order.
func (r *Room) Users() []models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usersLocked()
}

func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Evictable reports whether the room has had zero connections for at least
// grace. Rooms created but never joined are eligible too.
func (r *Room) Evictable(now time.Time, grace time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) > 0 || r.emptySince.IsZero() {
		return false
	}
	return now.Sub(r.emptySince) >= grace
}

// broadcastLocked sends to every client except skip (nil means everyone).
// Callers hold r.mu.
func (r *Room) broadcastLocked(skip *Client, frame models.WSFrame) {
	for c := range r.clients {
		if c == skip {
			continue
		}
		c.Send(frame)
	}
}

func (r *Room) usersLocked() []models.User {
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
