package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kun8685/gaurykart-chat/internal/models"
)

// MemoryConversationRepository is a process-local store used for development
// and tests. All operations hold one mutex, which makes GetOrCreate and Append
// atomic per user.
type MemoryConversationRepository struct {
	mu            sync.Mutex
	nextID        int64
	conversations map[string]*models.Conversation
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{conversations: make(map[string]*models.Conversation)}
}

func (r *MemoryConversationRepository) GetOrCreate(_ context.Context, userID string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return copyConversation(r.getOrCreateLocked(userID, time.Now().UTC())), nil
}

func (r *MemoryConversationRepository) Find(_ context.Context, userID string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(conversation), nil
}

func (r *MemoryConversationRepository) Append(_ context.Context, userID string, message models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	conversation := r.getOrCreateLocked(userID, now)
	conversation.Messages = append(conversation.Messages, message)
	conversation.LastMessage = message.Timestamp
	conversation.UpdatedAt = now
	return nil
}

func (r *MemoryConversationRepository) Messages(ctx context.Context, userID string) ([]models.Message, error) {
	conversation, err := r.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return conversation.Messages, nil
}

func (r *MemoryConversationRepository) List(_ context.Context) ([]models.Conversation, error) {
	r.mu.Lock()
	conversations := make([]models.Conversation, 0, len(r.conversations))
	for _, conversation := range r.conversations {
		conversations = append(conversations, *copyConversation(conversation))
	}
	r.mu.Unlock()

	sort.SliceStable(conversations, func(i, j int) bool {
		if conversations[i].LastMessage.Equal(conversations[j].LastMessage) {
			return conversationSeq(conversations[i].ID) > conversationSeq(conversations[j].ID)
		}
		return conversations[i].LastMessage.After(conversations[j].LastMessage)
	})
	return conversations, nil
}

func (r *MemoryConversationRepository) getOrCreateLocked(userID string, now time.Time) *models.Conversation {
	if conversation, ok := r.conversations[userID]; ok {
		return conversation
	}
	r.nextID++
	conversation := &models.Conversation{
		ID:          strconv.FormatInt(r.nextID, 10),
		UserID:      userID,
		Messages:    make([]models.Message, 0),
		IsActive:    true,
		LastMessage: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.conversations[userID] = conversation
	return conversation
}

func conversationSeq(id string) int64 {
	seq, _ := strconv.ParseInt(id, 10, 64)
	return seq
}

func copyConversation(conversation *models.Conversation) *models.Conversation {
	out := *conversation
	out.Messages = append(make([]models.Message, 0, len(conversation.Messages)), conversation.Messages...)
	return &out
}

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User)}
}

func (r *MemoryUserRepository) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return ErrDuplicate
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return ErrDuplicate
		}
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepository) GetByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			found := user
			users[id] = &found
		}
	}
	return users, nil
}
