package repository

import (
	"context"

	"github.com/kun8685/gaurykart-chat/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append creates the owning conversation when needed and inserts the message
// in one statement.
func (r *MessageRepository) Append(ctx context.Context, userID string, message models.Message) error {
	query := `
		WITH conversation AS (
			INSERT INTO conversations (user_id, last_message)
			VALUES ($1, $4)
			ON CONFLICT (user_id)
			DO UPDATE SET last_message = EXCLUDED.last_message, updated_at = NOW()
			RETURNING id
		)
		INSERT INTO conversation_messages (conversation_id, sender, message, created_at)
		SELECT id, $2, $3, $4 FROM conversation
	`

	_, err := r.db.Exec(ctx, query, userID, string(message.Sender), message.Message, message.Timestamp)
	return pgError(err)
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error) {
	query := `
		SELECT sender, message, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		var sender string
		if err := rows.Scan(&sender, &message.Message, &message.Timestamp); err != nil {
			return nil, err
		}
		message.Sender = models.Sender(sender)
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *MessageRepository) ListByConversations(ctx context.Context, conversationIDs []int64) (map[int64][]models.Message, error) {
	grouped := make(map[int64][]models.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return grouped, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT conversation_id, sender, message, created_at
		FROM conversation_messages
		WHERE conversation_id = ANY($1)
		ORDER BY conversation_id, id ASC
	`, conversationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var conversationID int64
		var message models.Message
		var sender string
		if err := rows.Scan(&conversationID, &sender, &message.Message, &message.Timestamp); err != nil {
			return nil, err
		}
		message.Sender = models.Sender(sender)
		grouped[conversationID] = append(grouped[conversationID], message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return grouped, nil
}
