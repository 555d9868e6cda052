package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kun8685/gaurykart-chat/internal/models"
	"github.com/kun8685/gaurykart-chat/internal/repository"
)

type ConversationStore interface {
	GetOrCreate(ctx context.Context, userID string) (*models.Conversation, error)
	Find(ctx context.Context, userID string) (*models.Conversation, error)
	Append(ctx context.Context, userID string, message models.Message) error
	Messages(ctx context.Context, userID string) ([]models.Message, error)
	List(ctx context.Context) ([]models.Conversation, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

type ChatService struct {
	conversations ConversationStore
	users         UserStore
}

func NewChatService(conversations ConversationStore, users UserStore) *ChatService {
	return &ChatService{
		conversations: conversations,
		users:         users,
	}
}

func (s *ChatService) GetOrCreate(ctx context.Context, userID string) (*models.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.conversations.GetOrCreate(ctx, userID)
}

// Append stores message at the end of the user's conversation, creating the
// conversation when it does not exist yet.
func (s *ChatService) Append(ctx context.Context, userID string, message models.Message) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	if err := s.conversations.Append(ctx, userID, message); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	return nil
}

func (s *ChatService) History(ctx context.Context, userID string) ([]models.Message, error) {
	messages, err := s.conversations.Messages(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []models.Message{}, nil
		}
		return nil, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

func (s *ChatService) HasConversation(ctx context.Context, userID string) (bool, error) {
	_, err := s.conversations.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ChatService) HistoryFor(
	ctx context.Context,
	actorID string,
	role string,
	userID string,
) ([]models.Message, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	if role != models.RoleAdmin && actorID != userID {
		return nil, ErrForbidden
	}
	return s.History(ctx, userID)
}

func (s *ChatService) ListConversations(ctx context.Context, role string) ([]models.ConversationSummary, error) {
	if role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	conversations, err := s.conversations.List(ctx)
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, len(conversations))
	for _, conversation := range conversations {
		userIDs = append(userIDs, conversation.UserID)
	}

	users := map[string]*models.User{}
	if s.users != nil && len(userIDs) > 0 {
		users, err = s.users.GetByIDs(ctx, userIDs)
		if err != nil {
			return nil, err
		}
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		summary := models.ConversationSummary{Conversation: conversation}
		if user, ok := users[conversation.UserID]; ok && user != nil {
			summary.User = &models.ConversationUser{
				ID:    user.ID,
				Name:  user.Name,
				Email: user.Email,
			}
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}
