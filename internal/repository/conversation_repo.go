package repository

import (
	"context"
	"strconv"

	"github.com/kun8685/gaurykart-chat/internal/models"
)

type ConversationRepository struct {
	db       DBTX
	messages *MessageRepository
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db, messages: NewMessageRepository(db)}
}

func (r *ConversationRepository) GetOrCreate(ctx context.Context, userID string) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (user_id)
		VALUES ($1)
		ON CONFLICT (user_id)
		DO UPDATE SET updated_at = conversations.updated_at
		RETURNING id, user_id, is_active, last_message, created_at, updated_at
	`

	var conversation models.Conversation
	var id int64
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&id,
		&conversation.UserID,
		&conversation.IsActive,
		&conversation.LastMessage,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, pgError(err)
	}
	conversation.ID = strconv.FormatInt(id, 10)

	messages, err := r.messages.ListByConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	conversation.Messages = messages

	return &conversation, nil
}

func (r *ConversationRepository) Find(ctx context.Context, userID string) (*models.Conversation, error) {
	query := `
		SELECT id, user_id, is_active, last_message, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
	`

	var conversation models.Conversation
	var id int64
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&id,
		&conversation.UserID,
		&conversation.IsActive,
		&conversation.LastMessage,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, pgError(err)
	}
	conversation.ID = strconv.FormatInt(id, 10)

	messages, err := r.messages.ListByConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	conversation.Messages = messages

	return &conversation, nil
}

func (r *ConversationRepository) Append(ctx context.Context, userID string, message models.Message) error {
	return r.messages.Append(ctx, userID, message)
}

func (r *ConversationRepository) Messages(ctx context.Context, userID string) ([]models.Message, error) {
	conversation, err := r.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return conversation.Messages, nil
}

func (r *ConversationRepository) List(ctx context.Context) ([]models.Conversation, error) {
	query := `
		SELECT id, user_id, is_active, last_message, created_at, updated_at
		FROM conversations
		ORDER BY last_message DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var conversation models.Conversation
		var id int64
		if err := rows.Scan(
			&id,
			&conversation.UserID,
			&conversation.IsActive,
			&conversation.LastMessage,
			&conversation.CreatedAt,
			&conversation.UpdatedAt,
		); err != nil {
			return nil, err
		}
		conversation.ID = strconv.FormatInt(id, 10)
		conversations = append(conversations, conversation)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	grouped, err := r.messages.ListByConversations(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range conversations {
		messages := grouped[ids[i]]
		if messages == nil {
			messages = make([]models.Message, 0)
		}
		conversations[i].Messages = messages
	}

	return conversations, nil
}
