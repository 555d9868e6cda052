package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kun8685/gaurykart-chat/internal/models"
)

const conversationsCollection = "chats"

type conversationDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	User        string             `bson:"user"`
	Messages    []models.Message   `bson:"messages"`
	IsActive    bool               `bson:"isActive"`
	LastMessage time.Time          `bson:"lastMessage"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d conversationDocument) toModel() *models.Conversation {
	messages := d.Messages
	if messages == nil {
		messages = make([]models.Message, 0)
	}
	return &models.Conversation{
		ID:          d.ID.Hex(),
		UserID:      d.User,
		Messages:    messages,
		IsActive:    d.IsActive,
		LastMessage: d.LastMessage,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoConversationRepository keeps one document per user with the messages
// embedded in insertion order.
type MongoConversationRepository struct {
	collection *mongo.Collection
}

func NewMongoConversationRepository(db *mongo.Database) *MongoConversationRepository {
	return &MongoConversationRepository{collection: db.Collection(conversationsCollection)}
}

// EnsureIndexes creates the unique user index the upserts rely on.
func (r *MongoConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_chat_user"),
		},
		{
			Keys:    bson.D{{Key: "lastMessage", Value: -1}},
			Options: options.Index().SetName("chat_last_message"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo: create chat indexes: %w", err)
	}
	return nil
}

func (r *MongoConversationRepository) GetOrCreate(ctx context.Context, userID string) (*models.Conversation, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{
			"messages":    bson.A{},
			"isActive":    true,
			"lastMessage": now,
			"createdAt":   now,
			"updatedAt":   now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc conversationDocument
	err := retryDuplicate(func() error {
		return r.collection.FindOneAndUpdate(ctx, bson.M{"user": userID}, update, opts).Decode(&doc)
	})
	if err != nil {
		return nil, mongoError(err)
	}
	return doc.toModel(), nil
}

func (r *MongoConversationRepository) Find(ctx context.Context, userID string) (*models.Conversation, error) {
	var doc conversationDocument
	if err := r.collection.FindOne(ctx, bson.M{"user": userID}).Decode(&doc); err != nil {
		return nil, mongoError(err)
	}
	return doc.toModel(), nil
}

func (r *MongoConversationRepository) Append(ctx context.Context, userID string, message models.Message) error {
	now := time.Now().UTC()
	update := bson.M{
		"$push": bson.M{"messages": message},
		"$set": bson.M{
			"lastMessage": message.Timestamp,
			"updatedAt":   now,
		},
		"$setOnInsert": bson.M{
			"isActive":  true,
			"createdAt": now,
		},
	}
	opts := options.Update().SetUpsert(true)

	err := retryDuplicate(func() error {
		_, err := r.collection.UpdateOne(ctx, bson.M{"user": userID}, update, opts)
		return err
	})
	return mongoError(err)
}

func (r *MongoConversationRepository) Messages(ctx context.Context, userID string) ([]models.Message, error) {
	opts := options.FindOne().SetProjection(bson.M{"messages": 1})

	var doc conversationDocument
	if err := r.collection.FindOne(ctx, bson.M{"user": userID}, opts).Decode(&doc); err != nil {
		return nil, mongoError(err)
	}
	return doc.toModel().Messages, nil
}

func (r *MongoConversationRepository) List(ctx context.Context) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastMessage", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	conversations := make([]models.Conversation, 0)
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		conversations = append(conversations, *doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return conversations, nil
}

// retryDuplicate runs an upsert again once when a concurrent upsert for the
// same user won the unique index; the second attempt matches that document.
func retryDuplicate(op func() error) error {
	err := op()
	if mongo.IsDuplicateKeyError(err) {
		err = op()
	}
	return err
}

func mongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}
