package models

// MsgType discriminates protocol frames. Every frame on the wire is a WSFrame
// whose Type is one of these constants; dispatch switches over them exhaustively.
type MsgType string

const (
	// client -> server
	MsgJoinRoom     MsgType = "joinRoom"
	MsgStartStroke  MsgType = "startStroke"
	MsgStrokePoints MsgType = "strokePoints"
	MsgFinishStroke MsgType = "finishStroke"
	MsgUndo         MsgType = "undo"
	MsgRedo         MsgType = "redo"
	MsgClear        MsgType = "clear"
	MsgCursorMove   MsgType = "cursorMove"

	// server -> client
	MsgInitState   MsgType = "initState"
	MsgOpCreated   MsgType = "opCreated"
	MsgUsersUpdate MsgType = "usersUpdate"
)

// OpType discriminates operation kinds in the log. Only strokes exist today;
// undo filters by type so future kinds can opt out of undo.
type OpType string

const OpStroke OpType = "stroke"

// Undoable reports whether operations of this type participate in undo.
func (t OpType) Undoable() bool { return t == OpStroke }

// Point is one pointer sample. T is a client-side capture time in unix millis
// and is optional; the server never reorders by it.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t,omitempty"`
}

// StrokeMeta is fixed at operation creation and never mutated afterwards.
type StrokeMeta struct {
	Tool  string `json:"tool"`
	Color string `json:"color"`
	Width int    `json:"width"`
}

// Operation is a single drawable unit in a room's log.
type Operation struct {
	ID        string     `json:"id"`
	Type      OpType     `json:"type"`
	Owner     string     `json:"owner"`
	Meta      StrokeMeta `json:"meta"`
	Points    []Point    `json:"points"`
	Finished  bool       `json:"finished"`
	CreatedAt int64      `json:"createdAt"`
}

// User is the ephemeral presence entry for one connection.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// WSFrame is the envelope for every websocket message in either direction.
type WSFrame struct {
	Type MsgType     `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

/*** Frame payloads ***/

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type InitState struct {
	Operations []Operation `json:"operations"`
	Users      []User      `json:"users"`
}

type StartStroke struct {
	Meta StrokeMeta `json:"meta"`
}

type OpCreated struct {
	OpID string `json:"opId"`
}

// StrokePoints carries a point batch. Owner is set only on the server->client
// broadcast leg.
type StrokePoints struct {
	OpID   string  `json:"opId"`
	Points []Point `json:"points"`
	Owner  string  `json:"owner,omitempty"`
}

type FinishStroke struct {
	OpID  string `json:"opId"`
	Owner string `json:"owner,omitempty"`
}

// UndoResult names the operation the server removed.
type UndoResult struct {
	OpID string `json:"opId"`
}

// RedoResult carries the restored operation in full so receivers can re-append
// it without having kept their own redo state.
type RedoResult struct {
	Operation Operation `json:"operation"`
}

// CursorMove is sent by clients with only coordinates; the relay leg is tagged
// with the sender's identity.
type CursorMove struct {
	ID       string  `json:"id,omitempty"`
	Username string  `json:"username,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// RoomEvent is published on the room lifecycle channel.
type RoomEvent struct {
	Room      string `json:"room"`
	Event     string `json:"event"` // "room_created", "user_joined", "user_left", "room_evicted"
	ConnID    string `json:"connId,omitempty"`
	Username  string `json:"username,omitempty"`
	Users     int    `json:"users"`
	CreatedAt string `json:"createdAt"`
}
