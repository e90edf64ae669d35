package client

import (
	"strings"
	"testing"
	"time"

	"github.com/Thanuja-2/collaborative-canvas/internal/models"
)

type sentFrames struct {
	frames []models.WSFrame
}

func (s *sentFrames) send(frame models.WSFrame) error {
	s.frames = append(s.frames, frame)
	return nil
}

func (s *sentFrames) ofType(typ models.MsgType) []models.WSFrame {
	var out []models.WSFrame
	for _, f := range s.frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

// newTestAgent disables the flush ticker so tests drive flushes via pointer
// events and bindings only.
func newTestAgent() (*Agent, *sentFrames) {
	sent := &sentFrames{}
	a := New(sent.send)
	a.flushInterval = time.Hour
	return a, sent
}

func TestPointerDownIsOptimistic(t *testing.T) {
	a, sent := newTestAgent()
	a.SetMeta(models.StrokeMeta{Tool: "brush", Color: "#f00", Width: 2})

	a.PointerDown(1, 2)

	ops := a.Operations()
	if len(ops) != 1 {
		t.Fatalf("expected optimistic operation in local log, got %d", len(ops))
	}
	op := ops[0]
	if !strings.HasPrefix(op.ID, "temp-") {
		t.Fatalf("expected temp id, got %s", op.ID)
	}
	if op.Finished || len(op.Points) != 1 || op.Points[0].X != 1 {
		t.Fatalf("unexpected optimistic op: %#v", op)
	}
	if op.Meta.Color != "#f00" {
		t.Fatalf("expected current meta on op, got %#v", op.Meta)
	}

	starts := sent.ofType(models.MsgStartStroke)
	if len(starts) != 1 {
		t.Fatalf("expected one startStroke sent, got %d", len(starts))
	}
	if !a.Drawing() {
		t.Fatalf("expected drawing flag set")
	}
}

func TestSecondPointerDownGated(t *testing.T) {
	a, sent := newTestAgent()
	a.PointerDown(0, 0)
	a.PointerDown(5, 5)

	if len(a.Operations()) != 1 {
		t.Fatalf("second pointer-down must be ignored while drawing")
	}
	if len(sent.ofType(models.MsgStartStroke)) != 1 {
		t.Fatalf("expected a single outstanding startStroke")
	}
}

func TestPointsHeldUntilBindingThenFlushed(t *testing.T) {
	a, sent := newTestAgent()
	a.PointerDown(0, 0)
	a.PointerMove(1, 1)
	a.PointerMove(2, 2)

	if len(sent.ofType(models.MsgStrokePoints)) != 0 {
		t.Fatalf("points must not be sent before the canonical id exists")
	}

	a.Handle(models.WSFrame{Type: models.MsgOpCreated, Data: models.OpCreated{OpID: "op1"}})

	ops := a.Operations()
	if ops[0].ID != "op1" {
		t.Fatalf("expected temp id rebound to canonical, got %s", ops[0].ID)
	}
	batches := sent.ofType(models.MsgStrokePoints)
	if len(batches) != 1 {
		t.Fatalf("expected held points flushed on binding, got %d batches", len(batches))
	}
	var sp models.StrokePoints
	marshal(batches[0].Data, &sp)
	if sp.OpID != "op1" || len(sp.Points) != 3 {
		t.Fatalf("expected all captured points under the canonical id, got %#v", sp)
	}
	if sp.Points[0].X != 0 || sp.Points[1].X != 1 || sp.Points[2].X != 2 {
		t.Fatalf("points out of capture order: %#v", sp.Points)
	}
}

func TestPointerUpAfterBindingFlushesAndFinishes(t *testing.T) {
	a, sent := newTestAgent()
	a.PointerDown(0, 0)
	a.Handle(models.WSFrame{Type: models.MsgOpCreated, Data: models.OpCreated{OpID: "op1"}})
	a.PointerMove(1, 1)
	a.PointerUp()

	batches := sent.ofType(models.MsgStrokePoints)
	if len(batches) != 2 {
		t.Fatalf("expected binding flush plus pointer-up flush, got %d", len(batches))
	}
	fins := sent.ofType(models.MsgFinishStroke)
	if len(fins) != 1 {
		t.Fatalf("expected one finishStroke, got %d", len(fins))
	}
	var fin models.FinishStroke
	marshal(fins[0].Data, &fin)
	if fin.OpID != "op1" {
		t.Fatalf("unexpected finish payload: %#v", fin)
	}
	if a.Drawing() {
		t.Fatalf("expected drawing flag cleared")
	}
	if a.Operations()[0].Finished {
		t.Fatalf("finished must not be set optimistically")
	}

	// the authoritative broadcast flips it
	a.Handle(models.WSFrame{Type: models.MsgFinishStroke, Data: models.FinishStroke{OpID: "op1", Owner: "me"}})
	if !a.Operations()[0].Finished {
		t.Fatalf("expected finished after server round trip")
	}
}

func TestPointerUpBeforeBindingDefersFinish(t *testing.T) {
	a, sent := newTestAgent()
	a.PointerDown(0, 0)
	a.PointerMove(1, 1)
	a.PointerUp()

	if len(sent.ofType(models.MsgStrokePoints)) != 0 || len(sent.ofType(models.MsgFinishStroke)) != 0 {
		t.Fatalf("nothing may be sent for an unbound stroke, got %#v", sent.frames)
	}

	a.Handle(models.WSFrame{Type: models.MsgOpCreated, Data: models.OpCreated{OpID: "op9"}})

	batches := sent.ofType(models.MsgStrokePoints)
	if len(batches) != 1 {
		t.Fatalf("expected deferred flush on binding, got %d", len(batches))
	}
	var sp models.StrokePoints
	marshal(batches[0].Data, &sp)
	if sp.OpID != "op9" || len(sp.Points) != 2 {
		t.Fatalf("unexpected deferred batch: %#v", sp)
	}
	fins := sent.ofType(models.MsgFinishStroke)
	if len(fins) != 1 {
		t.Fatalf("expected deferred finishStroke, got %d", len(fins))
	}
}

func TestTickerFlushesBoundStroke(t *testing.T) {
	// all sends happen under the agent mutex, so the channel sees a serialized
	// stream even with the flusher goroutine running
	flushed := make(chan models.WSFrame, 64)
	a := New(func(f models.WSFrame) error {
		if f.Type == models.MsgStrokePoints {
			flushed <- f
		}
		return nil
	})
	a.flushInterval = 5 * time.Millisecond
	defer a.PointerUp()

	a.PointerDown(0, 0)
	a.Handle(models.WSFrame{Type: models.MsgOpCreated, Data: models.OpCreated{OpID: "op1"}})
	<-flushed // binding flush of the pointer-down sample

	a.PointerMove(1, 1)
	select {
	case f := <-flushed:
		var sp models.StrokePoints
		marshal(f.Data, &sp)
		if sp.OpID != "op1" || len(sp.Points) == 0 {
			t.Fatalf("unexpected ticker flush: %#v", sp)
		}
	case <-time.After(time.Second):
		t.Fatalf("ticker never flushed the bound stroke")
	}
}

func TestRemoteStrokeCreatesPlaceholder(t *testing.T) {
	a, _ := newTestAgent()
	a.Handle(models.WSFrame{Type: models.MsgStrokePoints, Data: models.StrokePoints{
		OpID:   "remote1",
		Points: []models.Point{{X: 1}, {X: 2}},
		Owner:  "peer",
	}})
	a.Handle(models.WSFrame{Type: models.MsgStrokePoints, Data: models.StrokePoints{
		OpID:   "remote1",
		Points: []models.Point{{X: 3}},
		Owner:  "peer",
	}})

	ops := a.Operations()
	if len(ops) != 1 || ops[0].ID != "remote1" || ops[0].Owner != "peer" {
		t.Fatalf("expected placeholder op, got %#v", ops)
	}
	if len(ops[0].Points) != 3 || ops[0].Points[2].X != 3 {
		t.Fatalf("expected batches concatenated in order, got %#v", ops[0].Points)
	}
}

func TestRemoteDeltasMirrorServerRules(t *testing.T) {
	a, _ := newTestAgent()
	a.Handle(models.WSFrame{Type: models.MsgInitState, Data: models.InitState{
		Operations: []models.Operation{
			{ID: "a", Type: models.OpStroke, Points: []models.Point{{X: 1}}},
			{ID: "b", Type: models.OpStroke, Points: []models.Point{{X: 2}}},
		},
		Users: []models.User{{ID: "u1", Username: "alice", Color: "#e6194b"}},
	}})

	if len(a.Operations()) != 2 || len(a.Users()) != 1 {
		t.Fatalf("initState not applied: %#v", a.Operations())
	}

	a.Handle(models.WSFrame{Type: models.MsgUndo, Data: models.UndoResult{OpID: "b"}})
	ops := a.Operations()
	if len(ops) != 1 || ops[0].ID != "a" {
		t.Fatalf("undo must remove by id, got %#v", ops)
	}

	a.Handle(models.WSFrame{Type: models.MsgRedo, Data: models.RedoResult{Operation: models.Operation{
		ID: "b", Type: models.OpStroke, Points: []models.Point{{X: 2}},
	}}})
	ops = a.Operations()
	if len(ops) != 2 || ops[1].ID != "b" {
		t.Fatalf("redo must re-append at tail, got %#v", ops)
	}

	a.Handle(models.WSFrame{Type: models.MsgClear})
	if len(a.Operations()) != 0 {
		t.Fatalf("clear must empty the local log")
	}
}

func TestCursorMoveUnknownSenderIgnored(t *testing.T) {
	a, _ := newTestAgent()
	a.Handle(models.WSFrame{Type: models.MsgUsersUpdate, Data: []models.User{
		{ID: "u1", Username: "alice"},
	}})

	a.Handle(models.WSFrame{Type: models.MsgCursorMove, Data: models.CursorMove{ID: "ghost", X: 1, Y: 1}})
	if _, ok := a.Cursor("ghost"); ok {
		t.Fatalf("unknown sender must be ignored")
	}

	a.Handle(models.WSFrame{Type: models.MsgCursorMove, Data: models.CursorMove{ID: "u1", X: 4, Y: 5}})
	p, ok := a.Cursor("u1")
	if !ok || p.X != 4 || p.Y != 5 {
		t.Fatalf("expected cursor tracked, got %#v ok=%v", p, ok)
	}

	// presence replacement drops stale cursors
	a.Handle(models.WSFrame{Type: models.MsgUsersUpdate, Data: []models.User{}})
	if _, ok := a.Cursor("u1"); ok {
		t.Fatalf("expected cursor pruned with departed user")
	}
}

func TestRequestHelpers(t *testing.T) {
	a, sent := newTestAgent()
	if err := a.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if err := a.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if err := a.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	want := []models.MsgType{models.MsgUndo, models.MsgRedo, models.MsgClear}
	if len(sent.frames) != 3 {
		t.Fatalf("expected 3 request frames, got %#v", sent.frames)
	}
	for i, typ := range want {
		if sent.frames[i].Type != typ {
			t.Fatalf("expected %s at %d, got %s", typ, i, sent.frames[i].Type)
		}
	}
}
