package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/Thanuja-2/collaborative-canvas/internal/models"
)

// OpLog is the authoritative ordered operation log for one room, plus the redo
// stack. Slice order is the room's paint order. OpLog itself is not safe for
// concurrent use; the owning Room serializes access.
type OpLog struct {
	ops       []*models.Operation
	undoStack []*models.Operation
}

func NewOpLog() *OpLog { return &OpLog{} }

// Create appends a new empty operation with a canonical id and clears the redo
// stack: new work invalidates forward history.
func (l *OpLog) Create(typ models.OpType, owner string, meta models.StrokeMeta) *models.Operation {
	op := &models.Operation{
		ID:        uuid.NewString(),
		Type:      typ,
		Owner:     owner,
		Meta:      meta,
		Points:    []models.Point{},
		Finished:  false,
		CreatedAt: time.Now().UnixMilli(),
	}
	l.ops = append(l.ops, op)
	l.undoStack = nil
	return op
}

// AppendPoints appends a batch to the identified operation in call order.
// A missing id is a benign race (the operation may have been undone or cleared
// while the batch was in flight) and is ignored.
func (l *OpLog) AppendPoints(id string, points []models.Point) {
	op := l.find(id)
	if op == nil {
		return
	}
	op.Points = append(op.Points, points...)
}

// Finish marks the operation finished; no-op for a missing id.
func (l *OpLog) Finish(id string) {
	if op := l.find(id); op != nil {
		op.Finished = true
	}
}

// Undo removes the most recently created undoable operation, scanning from the
// tail, and pushes it onto the redo stack. Returns nil when nothing is undoable.
func (l *OpLog) Undo() *models.Operation {
	for i := len(l.ops) - 1; i >= 0; i-- {
		if !l.ops[i].Type.Undoable() {
			continue
		}
		op := l.ops[i]
		l.ops = append(l.ops[:i], l.ops[i+1:]...)
		l.undoStack = append(l.undoStack, op)
		return op
	}
	return nil
}

// Redo pops the redo stack and re-appends the operation at the tail. Returns
// nil when the stack is empty.
func (l *OpLog) Redo() *models.Operation {
	n := len(l.undoStack)
	if n == 0 {
		return nil
	}
	op := l.undoStack[n-1]
	l.undoStack = l.undoStack[:n-1]
	l.ops = append(l.ops, op)
	return op
}

// Clear empties both the log and the redo stack.
func (l *OpLog) Clear() {
	l.ops = nil
	l.undoStack = nil
}

// Snapshot returns a defensive copy of the log, including each operation's
// point slice, safe to hand to a newly joined client.
func (l *OpLog) Snapshot() []models.Operation {
	out := make([]models.Operation, 0, len(l.ops))
	for _, op := range l.ops {
		c := *op
		c.Points = append([]models.Point(nil), op.Points...)
		out = append(out, c)
	}
	return out
}

// Len reports the number of live operations.
func (l *OpLog) Len() int { return len(l.ops) }

func (l *OpLog) find(id string) *models.Operation {
	for _, op := range l.ops {
		if op.ID == id {
			return op
		}
	}
	return nil
}
