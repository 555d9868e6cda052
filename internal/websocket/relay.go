package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/kun8685/gaurykart-chat/internal/models"
	"github.com/kun8685/gaurykart-chat/internal/services"
)

const (
	DefaultBotReplyDelay = time.Second
	frameTimeout         = 10 * time.Second
)

type chatStore interface {
	Append(ctx context.Context, userID string, message models.Message) error
	HasConversation(ctx context.Context, userID string) (bool, error)
}

// Relay turns inbound frames into store appends and room broadcasts.
type Relay struct {
	hub       *Hub
	chat      chatStore
	responder services.Responder
	botDelay  time.Duration

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

func NewRelay(hub *Hub, chat chatStore, responder services.Responder, botDelay time.Duration) *Relay {
	if responder == nil {
		responder = services.NewKeywordResponder()
	}
	if botDelay < 0 {
		botDelay = 0
	}
	return &Relay{
		hub:       hub,
		chat:      chat,
		responder: responder,
		botDelay:  botDelay,
		timers:    make(map[*time.Timer]struct{}),
	}
}

func (r *Relay) Join(client *Client, room string) {
	r.hub.Join(client, room)
	r.reply(client, EventJoined, RoomPayload{Room: room})
}

func (r *Relay) Leave(client *Client, room string) {
	r.hub.Leave(client, room)
	r.reply(client, EventLeft, RoomPayload{Room: room})
}

// UserSend stores the shopper's message, echoes it to the shopper's room and
// schedules the automated reply. Store failures are logged and do not stop
// delivery.
func (r *Relay) UserSend(ctx context.Context, userID, text string) error {
	message, err := models.NewMessage(models.SenderUser, text, time.Time{})
	if err != nil {
		return err
	}

	if err := r.chat.Append(ctx, userID, message); err != nil {
		log.Printf("chat relay: append user message for %s: %v", userID, err)
	}
	r.broadcast(ctx, userID, message)

	reply, err := models.NewMessage(models.SenderBot, r.responder.Reply(ctx, text), time.Time{})
	if err != nil {
		log.Printf("chat relay: build bot reply for %s: %v", userID, err)
		return nil
	}
	if err := r.chat.Append(ctx, userID, reply); err != nil {
		log.Printf("chat relay: append bot reply for %s: %v", userID, err)
	}

	r.schedule(func() {
		r.broadcast(context.Background(), userID, reply)
	})
	return nil
}

// AdminSend posts into an existing conversation. Without one it does nothing.
func (r *Relay) AdminSend(ctx context.Context, userID, text string) error {
	message, err := models.NewMessage(models.SenderAdmin, text, time.Time{})
	if err != nil {
		return err
	}

	exists, err := r.chat.HasConversation(ctx, userID)
	if err != nil {
		log.Printf("chat relay: lookup conversation for %s: %v", userID, err)
		return nil
	}
	if !exists {
		return nil
	}

	if err := r.chat.Append(ctx, userID, message); err != nil {
		log.Printf("chat relay: append admin message for %s: %v", userID, err)
	}
	r.broadcast(ctx, userID, message)
	return nil
}

func (r *Relay) Disconnect(client *Client) {
	r.hub.Unregister(client)
}

// HandleFrame validates one inbound frame and dispatches it. Failures are
// reported to the client as error frames.
func (r *Relay) HandleFrame(ctx context.Context, client *Client, payload []byte) {
	if !client.allow() {
		log.Printf("chat relay: client %s of %s rate limited", client.ID(), client.UserID())
		r.replyError(client, CodeRateLimited, "too many messages")
		return
	}

	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		log.Printf("chat relay: client %s sent malformed frame: %v", client.ID(), err)
		r.replyError(client, CodeBadRequest, "invalid message payload")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()

	switch envelope.Event {
	case EventJoinRoom:
		room, ok := decodeRoom(envelope.Data)
		if !ok {
			r.replyError(client, CodeBadRequest, "room is required")
			return
		}
		r.Join(client, room)
	case EventLeaveRoom:
		room, ok := decodeRoom(envelope.Data)
		if !ok {
			r.replyError(client, CodeBadRequest, "room is required")
			return
		}
		r.Leave(client, room)
	case EventSendMessage:
		var data SendMessagePayload
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			r.replyError(client, CodeBadRequest, "invalid message payload")
			return
		}
		if data.UserID != client.UserID() || (data.Sender != "" && data.Sender != string(models.SenderUser)) {
			r.replyError(client, CodeForbidden, "cannot send on behalf of another user")
			return
		}
		if strings.TrimSpace(data.Message) == "" {
			r.replyError(client, CodeBadRequest, "message is required")
			return
		}
		if err := r.UserSend(ctx, data.UserID, data.Message); err != nil {
			r.replySendError(client, err)
		}
	case EventAdminMessage:
		if client.Role() != models.RoleAdmin {
			r.replyError(client, CodeForbidden, "admin role required")
			return
		}
		var data AdminMessagePayload
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			r.replyError(client, CodeBadRequest, "invalid message payload")
			return
		}
		if strings.TrimSpace(data.UserID) == "" || strings.TrimSpace(data.Message) == "" {
			r.replyError(client, CodeBadRequest, "userId and message are required")
			return
		}
		if err := r.AdminSend(ctx, data.UserID, data.Message); err != nil {
			r.replySendError(client, err)
		}
	default:
		r.replyError(client, CodeUnsupportedEvent, "unsupported event")
	}
}

// Close stops pending bot replies. Later sends still persist but no longer
// schedule delayed broadcasts.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for timer := range r.timers {
		timer.Stop()
	}
	r.timers = make(map[*time.Timer]struct{})
}

func (r *Relay) schedule(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(r.botDelay, func() {
		r.mu.Lock()
		_, pending := r.timers[timer]
		delete(r.timers, timer)
		r.mu.Unlock()
		if pending {
			fn()
		}
	})
	r.timers[timer] = struct{}{}
}

func (r *Relay) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *Relay) broadcast(ctx context.Context, room string, message models.Message) {
	payload, err := encodeReceive(message)
	if err != nil {
		log.Printf("chat relay: encode message: %v", err)
		return
	}
	r.hub.Broadcast(ctx, room, payload)
}

func (r *Relay) reply(client *Client, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("chat relay: encode %s: %v", event, err)
		return
	}
	r.hub.Send(client, payload)
}

func (r *Relay) replyError(client *Client, code, message string) {
	r.reply(client, EventError, ErrorPayload{Code: code, Error: message})
}

func (r *Relay) replySendError(client *Client, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyMessage), errors.Is(err, models.ErrInvalidSender):
		r.replyError(client, CodeBadRequest, err.Error())
	default:
		r.replyError(client, CodeBadRequest, "failed to send message")
	}
}
