package collab

import (
	"encoding/json"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/reconcile"
)

type Message struct {
	Type     string          `json:"type"`
	SceneID  string          `json:"sceneId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Scene sync
	TypeSceneSync      = "scene.sync"
	TypeSceneRequest   = "scene.request"
	TypeSceneUpdate    = "scene.update"
	TypeSceneAck       = "scene.ack"
	TypeSceneBroadcast = "scene.broadcast"
)

type WelcomePayload struct {
	ClientID    string `json:"clientId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	SceneID     string `json:"sceneId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Presence ---

type PresencePayload struct {
	UserID      string     `json:"userId,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Selection   []string   `json:"selection,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"` // clientID -> presence
}

type PresenceJoinPayload struct {
	ClientID    string `json:"clientId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

// --- Scene ---

// SceneSyncPayload carries every record of the room, tombstones included.
type SceneSyncPayload struct {
	ServerSeq int64             `json:"serverSeq"`
	Elements  []element.Element `json:"elements"`
}

// SceneUpdatePayload is what a client submits: a reconcile batch.
type SceneUpdatePayload = reconcile.Batch

// SceneAckPayload answers a scene.update. Seq echoes the client's message seq.
type SceneAckPayload struct {
	Seq       int64            `json:"seq"`
	ServerSeq int64            `json:"serverSeq"`
	Result    reconcile.Result `json:"result"`
}

// SceneBroadcastPayload carries the records that won a merge.
type SceneBroadcastPayload struct {
	ServerSeq int64             `json:"serverSeq"`
	UserID    string            `json:"userId"`
	Elements  []element.Element `json:"elements"`
}

func newMessage(typ string, payload any) *Message {
	data, _ := json.Marshal(payload)
	return &Message{Type: typ, Payload: data}
}

func errorMessage(code, msg string) *Message {
	return newMessage(TypeError, ErrorPayload{Code: code, Message: msg})
}
