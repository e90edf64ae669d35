// Package client implements the drawing client's sync agent: an ordered local
// mirror of the room's operation log plus the optimistic path for the user's
// own in-progress stroke.
package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Thanuja-2/collaborative-canvas/internal/models"
)

const defaultFlushInterval = 40 * time.Millisecond

// pendingStroke is a local stroke whose canonical id may not be known yet.
// buffer holds points not yet flushed to the server; finish records that the
// pointer lifted before the binding arrived, so finishStroke is owed as soon
// as the stroke binds.
type pendingStroke struct {
	op     *models.Operation
	buffer []models.Point
	bound  bool
	finish bool
	stop   chan struct{}
}

// Agent mirrors the server's log on the client side. Remote deltas are applied
// with the same append/remove rules the server uses; the only divergence is
// the local optimistic operation awaiting its opCreated confirmation.
//
// Binding policy: opCreated binds to the earliest local stroke not yet bound.
// That is only safe while a client has at most one unconfirmed startStroke
// outstanding, which PointerDown enforces by refusing to start a stroke while
// one is being drawn. A stroke released before its binding arrives leaves a
// short window where a very fast second stroke could misbind; this limitation
// is inherited deliberately.
type Agent struct {
	send func(models.WSFrame) error
	conn *websocket.Conn

	flushInterval time.Duration

	mu      sync.Mutex
	ops     []*models.Operation
	users   map[string]models.User
	cursors map[string]models.Point

	meta    models.StrokeMeta
	drawing bool
	current *pendingStroke
	unbound []*pendingStroke
}

// New builds a headless agent over a send function. Dial wires one to a live
// websocket.
func New(send func(models.WSFrame) error) *Agent {
	return &Agent{
		send:          send,
		flushInterval: defaultFlushInterval,
		users:         make(map[string]models.User),
		cursors:       make(map[string]models.Point),
		meta:          models.StrokeMeta{Tool: "brush", Color: "#000000", Width: 4},
	}
}

// Dial connects to the sync endpoint, joins the room, and starts the read
// loop. The caller owns the agent and should Close it when done.
func Dial(ctx context.Context, url, roomID, username string) (*Agent, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	a := New(func(frame models.WSFrame) error { return conn.WriteJSON(frame) })
	a.conn = conn
	if err := a.send(models.WSFrame{Type: models.MsgJoinRoom, Data: models.JoinRoom{
		RoomID:   roomID,
		Username: username,
	}}); err != nil {
		conn.Close()
		return nil, err
	}
	go a.readLoop()
	return a, nil
}

func (a *Agent) Close() error {
	a.mu.Lock()
	if a.current != nil {
		close(a.current.stop)
		a.current = nil
		a.drawing = false
	}
	a.mu.Unlock()
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

func (a *Agent) readLoop() {
	for {
		var frame models.WSFrame
		if err := a.conn.ReadJSON(&frame); err != nil {
			return
		}
		a.Handle(frame)
	}
}

// SetMeta changes the tool settings used for the next stroke.
func (a *Agent) SetMeta(meta models.StrokeMeta) {
	a.mu.Lock()
	a.meta = meta
	a.mu.Unlock()
}

/*** Local pointer path ***/

// PointerDown starts a stroke: a temp-id operation becomes visible in the
// local log immediately, startStroke goes to the server, and a flush ticker
// starts batching points. Ignored while a stroke is already being drawn.
func (a *Agent) PointerDown(x, y float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.drawing {
		return
	}

	first := models.Point{X: x, Y: y, T: time.Now().UnixMilli()}
	op := &models.Operation{
		ID:        "temp-" + uuid.NewString(),
		Type:      models.OpStroke,
		Meta:      a.meta,
		Points:    []models.Point{first},
		CreatedAt: first.T,
	}
	ps := &pendingStroke{
		op:     op,
		buffer: []models.Point{first},
		stop:   make(chan struct{}),
	}
	a.ops = append(a.ops, op)
	a.unbound = append(a.unbound, ps)
	a.current = ps
	a.drawing = true

	_ = a.send(models.WSFrame{Type: models.MsgStartStroke, Data: models.StartStroke{Meta: a.meta}})
	go a.runFlusher(ps)
}

// PointerMove reports the cursor to the room and, while drawing, appends the
// sample to the local operation and the outgoing buffer. All sends happen
// under a.mu; the flush ticker shares the websocket writer with this path.
func (a *Agent) PointerMove(x, y float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.send(models.WSFrame{Type: models.MsgCursorMove, Data: models.CursorMove{X: x, Y: y}})

	if !a.drawing || a.current == nil {
		return
	}
	p := models.Point{X: x, Y: y, T: time.Now().UnixMilli()}
	a.current.op.Points = append(a.current.op.Points, p)
	a.current.buffer = append(a.current.buffer, p)
}

// PointerUp ends the stroke: the flush ticker is cancelled, remaining points
// are sent, and finishStroke follows. If the canonical id is still unknown the
// flush and finish are deferred until the binding arrives. The local finished
// flag is never set optimistically; it flips when the server's finishStroke
// broadcast round-trips back.
func (a *Agent) PointerUp() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.drawing || a.current == nil {
		return
	}
	ps := a.current
	close(ps.stop)
	a.current = nil
	a.drawing = false

	if !ps.bound {
		ps.finish = true
		return
	}
	a.flushLocked(ps)
	_ = a.send(models.WSFrame{Type: models.MsgFinishStroke, Data: models.FinishStroke{OpID: ps.op.ID}})
}

// Drawing reports whether a local stroke is in progress.
func (a *Agent) Drawing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.drawing
}

func (a *Agent) runFlusher(ps *pendingStroke) {
	t := time.NewTicker(a.flushInterval)
	defer t.Stop()
	for {
		select {
		case <-ps.stop:
			return
		case <-t.C:
			a.mu.Lock()
			if ps.bound {
				a.flushLocked(ps)
			}
			a.mu.Unlock()
		}
	}
}

// flushLocked drains the stroke's buffer to the server. Callers hold a.mu and
// have checked the binding; points never leave before the canonical id exists.
func (a *Agent) flushLocked(ps *pendingStroke) {
	if len(ps.buffer) == 0 {
		return
	}
	batch := ps.buffer
	ps.buffer = nil
	_ = a.send(models.WSFrame{Type: models.MsgStrokePoints, Data: models.StrokePoints{
		OpID:   ps.op.ID,
		Points: batch,
	}})
}

/*** Remote delta path ***/

// Handle applies one server frame to the local state. Exported so embedders
// driving their own read loop (and tests) can feed frames directly.
func (a *Agent) Handle(frame models.WSFrame) {
	switch frame.Type {
	case models.MsgInitState:
		var init models.InitState
		marshal(frame.Data, &init)
		a.handleInitState(init)

	case models.MsgOpCreated:
		var created models.OpCreated
		marshal(frame.Data, &created)
		a.handleOpCreated(created.OpID)

	case models.MsgStrokePoints:
		var sp models.StrokePoints
		marshal(frame.Data, &sp)
		a.handleStrokePoints(sp)

	case models.MsgFinishStroke:
		var fin models.FinishStroke
		marshal(frame.Data, &fin)
		a.handleFinishStroke(fin.OpID)

	case models.MsgUndo:
		var u models.UndoResult
		marshal(frame.Data, &u)
		a.handleUndo(u.OpID)

	case models.MsgRedo:
		var rd models.RedoResult
		marshal(frame.Data, &rd)
		a.handleRedo(rd.Operation)

	case models.MsgClear:
		a.handleClear()

	case models.MsgUsersUpdate:
		var users []models.User
		marshal(frame.Data, &users)
		a.handleUsersUpdate(users)

	case models.MsgCursorMove:
		var cm models.CursorMove
		marshal(frame.Data, &cm)
		a.handleCursorMove(cm)

	case models.MsgJoinRoom, models.MsgStartStroke:
		// client->server kinds never arrive here; ignore

	default:
	}
}

func (a *Agent) handleInitState(init models.InitState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ops = a.ops[:0]
	for i := range init.Operations {
		op := init.Operations[i]
		a.ops = append(a.ops, &op)
	}
	a.replaceUsersLocked(init.Users)
}

// handleOpCreated binds the canonical id to the earliest unbound local stroke,
// then releases anything that was waiting on the binding: held points first,
// then the deferred finish if the pointer already lifted.
func (a *Agent) handleOpCreated(opID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.unbound) == 0 {
		return // stray confirmation; nothing to bind
	}
	ps := a.unbound[0]
	a.unbound = a.unbound[1:]
	ps.op.ID = opID
	ps.bound = true

	a.flushLocked(ps)
	if ps.finish {
		_ = a.send(models.WSFrame{Type: models.MsgFinishStroke, Data: models.FinishStroke{OpID: opID}})
	}
}

// handleStrokePoints appends a remote batch. An unknown id materializes a
// placeholder operation: the server never broadcasts the empty shell, so the
// first point batch is how other participants learn a stroke exists. Its meta
// stays zero-valued until the next full snapshot.
func (a *Agent) handleStrokePoints(sp models.StrokePoints) {
	a.mu.Lock()
	defer a.mu.Unlock()
	op := a.findLocked(sp.OpID)
	if op == nil {
		op = &models.Operation{
			ID:     sp.OpID,
			Type:   models.OpStroke,
			Owner:  sp.Owner,
			Points: []models.Point{},
		}
		a.ops = append(a.ops, op)
	}
	op.Points = append(op.Points, sp.Points...)
}

func (a *Agent) handleFinishStroke(opID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if op := a.findLocked(opID); op != nil {
		op.Finished = true
	}
}

func (a *Agent) handleUndo(opID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, op := range a.ops {
		if op.ID == opID {
			a.ops = append(a.ops[:i], a.ops[i+1:]...)
			return
		}
	}
}

func (a *Agent) handleRedo(op models.Operation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	restored := op
	a.ops = append(a.ops, &restored)
}

func (a *Agent) handleClear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ops = nil
}

func (a *Agent) handleUsersUpdate(users []models.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replaceUsersLocked(users)
}

// handleCursorMove updates one remote indicator. A sender not yet in the
// presence view is ignored; its usersUpdate may simply not have arrived.
func (a *Agent) handleCursorMove(cm models.CursorMove) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[cm.ID]; !ok {
		return
	}
	a.cursors[cm.ID] = models.Point{X: cm.X, Y: cm.Y}
}

func (a *Agent) replaceUsersLocked(users []models.User) {
	a.users = make(map[string]models.User, len(users))
	for _, u := range users {
		a.users[u.ID] = u
	}
	for id := range a.cursors {
		if _, ok := a.users[id]; !ok {
			delete(a.cursors, id)
		}
	}
}

/*** Request path for room-wide actions ***/

func (a *Agent) Undo() error  { return a.sendLocked(models.WSFrame{Type: models.MsgUndo}) }
func (a *Agent) Redo() error  { return a.sendLocked(models.WSFrame{Type: models.MsgRedo}) }
func (a *Agent) Clear() error { return a.sendLocked(models.WSFrame{Type: models.MsgClear}) }

func (a *Agent) sendLocked(frame models.WSFrame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.send(frame)
}

/*** Read views ***/

// Operations returns a deep copy of the local log in paint order.
func (a *Agent) Operations() []models.Operation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Operation, 0, len(a.ops))
	for _, op := range a.ops {
		c := *op
		c.Points = append([]models.Point(nil), op.Points...)
		out = append(out, c)
	}
	return out
}

// Users returns the current presence view.
func (a *Agent) Users() []models.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.User, 0, len(a.users))
	for _, u := range a.users {
		out = append(out, u)
	}
	return out
}

// Cursor returns the last known position of a remote participant.
func (a *Agent) Cursor(id string) (models.Point, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.cursors[id]
	return p, ok
}

func (a *Agent) findLocked(id string) *models.Operation {
	for _, op := range a.ops {
		if op.ID == id {
			return op
		}
	}
	return nil
}

func marshal(in any, out any) { b, _ := json.Marshal(in); _ = json.Unmarshal(b, out) }
