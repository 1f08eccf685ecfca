// Package mongo stores conversation turns as MongoDB documents.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/Rrens/filechat/internal/config"
	"github.com/Rrens/filechat/internal/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type turnDocument struct {
	SessionID   string    `bson:"session_id"`
	Role        string    `bson:"role"`
	Content     string    `bson:"content"`
	MessageType string    `bson:"message_type"`
	CreatedAt   time.Time `bson:"created_at"`
}

type sessionDocument struct {
	SessionID    string    `bson:"_id"`
	MessageCount int       `bson:"message_count"`
	FirstMessage time.Time `bson:"first_message"`
	LastMessage  time.Time `bson:"last_message"`
}

// TurnRepository implements domain.TurnRepository over a single collection
type TurnRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect opens the client, verifies it and ensures the session index
func Connect(ctx context.Context, cfg config.MongoConfig) (*TurnRepository, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		clientOpts.SetConnectTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &TurnRepository{client: client, coll: coll}, nil
}

// Close disconnects the client
func (r *TurnRepository) Close() error {
	return r.client.Disconnect(context.Background())
}

func (r *TurnRepository) Append(ctx context.Context, turn domain.NewTurn) error {
	raw, err := domain.EncodeContent(turn.Content)
	if err != nil {
		return domain.WrapStorage("append", err)
	}

	doc := turnDocument{
		SessionID:   turn.SessionID,
		Role:        string(turn.Role),
		Content:     raw,
		MessageType: turn.MessageType,
		CreatedAt:   time.Now().UTC(),
	}
	if doc.MessageType == "" {
		doc.MessageType = domain.DefaultMessageType
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return domain.WrapStorage("append", fmt.Errorf("failed to insert turn: %w", err))
	}
	return nil
}

func (r *TurnRepository) History(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, domain.WrapStorage("history", fmt.Errorf("failed to list turns: %w", err))
	}
	defer cursor.Close(ctx)

	var turns []domain.Turn
	for cursor.Next(ctx) {
		var doc turnDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, domain.WrapStorage("history", fmt.Errorf("failed to decode turn: %w", err))
		}

		res := domain.DecodeContent(doc.Content)
		if res.Err != nil {
			log.Warn().Err(res.Err).Str("session_id", sessionID).Msg("Stored content is not a valid block list, using raw text")
		}

		turns = append(turns, domain.Turn{
			SessionID:   doc.SessionID,
			Role:        domain.MessageRole(doc.Role),
			Content:     res.Content,
			MessageType: doc.MessageType,
			CreatedAt:   doc.CreatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, domain.WrapStorage("history", err)
	}

	domain.ReverseTurns(turns)
	return turns, nil
}

func (r *TurnRepository) Count(ctx context.Context, sessionID string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, domain.WrapStorage("count", fmt.Errorf("failed to count turns: %w", err))
	}
	return int(n), nil
}

func (r *TurnRepository) Clear(ctx context.Context, sessionID string) error {
	if _, err := r.coll.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return domain.WrapStorage("clear", fmt.Errorf("failed to clear turns: %w", err))
	}
	return nil
}

func (r *TurnRepository) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$session_id"},
			{Key: "message_count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "first_message", Value: bson.D{{Key: "$min", Value: "$created_at"}}},
			{Key: "last_message", Value: bson.D{{Key: "$max", Value: "$created_at"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message", Value: -1}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, domain.WrapStorage("list sessions", fmt.Errorf("failed to aggregate sessions: %w", err))
	}
	defer cursor.Close(ctx)

	var docs []sessionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.WrapStorage("list sessions", fmt.Errorf("failed to decode sessions: %w", err))
	}

	sessions := make([]domain.SessionSummary, 0, len(docs))
	for _, d := range docs {
		sessions = append(sessions, domain.SessionSummary{
			SessionID:    d.SessionID,
			MessageCount: d.MessageCount,
			FirstMessage: d.FirstMessage,
			LastMessage:  d.LastMessage,
		})
	}
	return sessions, nil
}

func (r *TurnRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}
