package collab

import (
	"encoding/json"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/ops"
)

type Message struct {
	Type     string          `json:"type"`
	SceneID  string          `json:"sceneId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	EditorID string          `json:"editorId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

type PresencePayload struct {
	Cursor      *coords.Pixeloid `json:"cursor,omitempty"`
	SelectedID  string           `json:"selectedId,omitempty"`
	DisplayName string           `json:"displayName,omitempty"`
}

type PresenceStatePayload struct {
	Presences map[string]PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	EditorID    string `json:"editorId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	EditorID string `json:"editorId"`
}

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	EditorID string `json:"editorId"`
	CanEdit  bool   `json:"canEdit"`
}

// DocSyncPayload carries the full canonical scene and the sequence number it
// reflects. Clients replace their local objects with it.
type DocSyncPayload struct {
	Document  *document.Document `json:"document"`
	ServerSeq int64              `json:"serverSeq"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Document sync
	TypeDocSync    = "doc.sync"
	TypeDocRequest = "doc.request"

	// Operation message types
	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"
)

// OperationSubmitPayload is the payload for op.submit messages
type OperationSubmitPayload struct {
	Operation ops.Operation `json:"operation"`
}

// OperationAckPayload is the payload for op.ack messages. ObjectID is set
// to the id the object was filed under for object.create.
type OperationAckPayload struct {
	OperationID     string `json:"operationId"`
	ObjectID        string `json:"objectId,omitempty"`
	ServerSeq       int64  `json:"serverSeq"`
	ServerTimestamp int64  `json:"serverTimestamp"`
}

// OperationNackPayload is the payload for op.nack messages
type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Code        string `json:"code"`
	Reason      string `json:"reason"`
}

// OperationBroadcastPayload is the payload for op.broadcast messages
type OperationBroadcastPayload struct {
	Operation ops.Operation `json:"operation"`
	EditorID  string        `json:"editorId"`
	ServerSeq int64         `json:"serverSeq"`
}
