package models

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidSender = errors.New("invalid message sender")
	ErrEmptyMessage  = errors.New("message text is required")
)

// Sender tags who authored a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAdmin Sender = "admin"
	SenderBot   Sender = "bot"
)

func (s Sender) Valid() bool {
	switch s {
	case SenderUser, SenderAdmin, SenderBot:
		return true
	default:
		return false
	}
}

type Message struct {
	Sender    Sender    `json:"sender" bson:"sender"`
	Message   string    `json:"message" bson:"message"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// NewMessage validates sender and text and stamps the message with at,
// or the current time when at is zero.
func NewMessage(sender Sender, text string, at time.Time) (Message, error) {
	if !sender.Valid() {
		return Message{}, ErrInvalidSender
	}
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}
	if at.IsZero() {
		at = time.Now()
	}
	return Message{
		Sender:    sender,
		Message:   text,
		Timestamp: at.UTC(),
	}, nil
}

// Conversation is the message log of one shopper. There is at most one per user.
type Conversation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Messages    []Message `json:"messages"`
	IsActive    bool      `json:"is_active"`
	LastMessage time.Time `json:"last_message"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ConversationUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ConversationSummary struct {
	Conversation
	User *ConversationUser `json:"user,omitempty"`
}
