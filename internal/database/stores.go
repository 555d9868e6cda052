package database

import (
	"context"
	"fmt"
	"log"

	"github.com/kun8685/gaurykart-chat/internal/config"
	"github.com/kun8685/gaurykart-chat/internal/repository"
	"github.com/kun8685/gaurykart-chat/internal/services"
)

// Stores bundles the persistence backends selected by STORE_DRIVER.
type Stores struct {
	Conversations services.ConversationStore
	Users         services.UserStore
	closers       []func()
}

func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, db, err := ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		stores := &Stores{closers: []func(){func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("mongo disconnect: %v", err)
			}
		}}}

		conversations := repository.NewMongoConversationRepository(db)
		users := repository.NewMongoUserRepository(db)
		if err := conversations.EnsureIndexes(ctx); err != nil {
			stores.Close()
			return nil, fmt.Errorf("ensure chat indexes: %w", err)
		}
		if err := users.EnsureIndexes(ctx); err != nil {
			stores.Close()
			return nil, fmt.Errorf("ensure user indexes: %w", err)
		}
		stores.Conversations = conversations
		stores.Users = users
		return stores, nil
	case config.StorePostgres:
		pool, err := ConnectPostgres(ctx, cfg.DBUrl)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Conversations: repository.NewConversationRepository(pool),
			Users:         repository.NewUserRepository(pool),
			closers:       []func(){pool.Close},
		}, nil
	case config.StoreMemory:
		log.Println("Using in-memory store; conversations are lost on restart")
		return &Stores{
			Conversations: repository.NewMemoryConversationRepository(),
			Users:         repository.NewMemoryUserRepository(),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
