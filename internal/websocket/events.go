package chatws

import (
	"encoding/json"

	"github.com/kun8685/gaurykart-chat/internal/models"
	"github.com/kun8685/gaurykart-chat/internal/services"
)

const (
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventSendMessage    = "send_message"
	EventAdminMessage   = "admin_message"
	EventReceiveMessage = "receive_message"
	EventJoined         = "joined"
	EventLeft           = "left"
	EventError          = "error"
)

const (
	CodeUnsupportedEvent = "unsupported_event"
	CodeBadRequest       = "bad_request"
	CodeForbidden        = "forbidden"
	CodeRateLimited      = "rate_limited"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type SendMessagePayload struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
	Sender  string `json:"sender,omitempty"`
}

type AdminMessagePayload struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type ReceiveMessagePayload struct {
	Sender    models.Sender `json:"sender"`
	Message   string        `json:"message"`
	Timestamp string        `json:"timestamp"`
}

type RoomPayload struct {
	Room string `json:"room"`
}

type ErrorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

func encodeReceive(message models.Message) ([]byte, error) {
	return encodeEvent(EventReceiveMessage, ReceiveMessagePayload{
		Sender:    message.Sender,
		Message:   message.Message,
		Timestamp: services.FormatChatTimestamp(message.Timestamp),
	})
}

// decodeRoom accepts the channel key either as a bare JSON string or as
// {"room": "..."}.
func decodeRoom(data json.RawMessage) (string, bool) {
	var room string
	if err := json.Unmarshal(data, &room); err == nil {
		return room, room != ""
	}
	var payload RoomPayload
	if err := json.Unmarshal(data, &payload); err == nil {
		return payload.Room, payload.Room != ""
	}
	return "", false
}
