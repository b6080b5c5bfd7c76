package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Protocol-Lattice/companion/pkg/model"
)

// MongoStore implements Store using MongoDB collections for users, chats,
// messages and memories, with a counters collection providing numeric IDs.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	chats    *mongo.Collection
	messages *mongo.Collection
	memories *mongo.Collection
	counters *mongo.Collection
}

const mongoCloseTimeout = 5 * time.Second

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(database)
	return &MongoStore{
		client:   client,
		users:    db.Collection("users"),
		chats:    db.Collection("chats"),
		messages: db.Collection("messages"),
		memories: db.Collection("memories"),
		counters: db.Collection("counters"),
	}, nil
}

func (ms *MongoStore) EnsureUser(ctx context.Context, aid string) (model.User, error) {
	var doc mongoUserDocument
	err := ms.users.FindOne(ctx, bson.M{"aid": aid}).Decode(&doc)
	if err == nil {
		return doc.toUser(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, err
	}
	id, err := ms.nextID(ctx, "users")
	if err != nil {
		return model.User{}, err
	}
	doc = mongoUserDocument{ID: id, AID: aid, CreatedAt: time.Now().UTC()}
	if _, err := ms.users.InsertOne(ctx, doc); err != nil {
		// Concurrent first contact for the same aid: reread the winner.
		if mongo.IsDuplicateKeyError(err) {
			if rerr := ms.users.FindOne(ctx, bson.M{"aid": aid}).Decode(&doc); rerr == nil {
				return doc.toUser(), nil
			}
		}
		return model.User{}, err
	}
	return doc.toUser(), nil
}

func (ms *MongoStore) EnsureChat(ctx context.Context, userID int64) (model.Chat, error) {
	var doc mongoChatDocument
	err := ms.chats.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err == nil {
		return doc.toChat(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return model.Chat{}, err
	}
	id, err := ms.nextID(ctx, "chats")
	if err != nil {
		return model.Chat{}, err
	}
	doc = mongoChatDocument{ID: id, UserID: userID, CreatedAt: time.Now().UTC()}
	if _, err := ms.chats.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if rerr := ms.chats.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); rerr == nil {
				return doc.toChat(), nil
			}
		}
		return model.Chat{}, err
	}
	return doc.toChat(), nil
}

func (ms *MongoStore) AppendMessage(ctx context.Context, chatID int64, role model.Role, content string) (model.Message, error) {
	id, err := ms.nextID(ctx, "messages")
	if err != nil {
		return model.Message{}, err
	}
	doc := mongoMessageDocument{
		ID:        id,
		ChatID:    chatID,
		Role:      string(role),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := ms.messages.InsertOne(ctx, doc); err != nil {
		return model.Message{}, err
	}
	return doc.toMessage(), nil
}

func (ms *MongoStore) CountMessages(ctx context.Context, chatID int64) (int, error) {
	count, err := ms.messages.CountDocuments(ctx, bson.M{"chat_id": chatID})
	return int(count), err
}

func (ms *MongoStore) RecentMessages(ctx context.Context, chatID int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := ms.messages.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []model.Message
	for cursor.Next(ctx) {
		var doc mongoMessageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		messages = append(messages, doc.toMessage())
	}
	return messages, cursor.Err()
}

func (ms *MongoStore) AppendMemory(ctx context.Context, userID int64, kind model.MemoryKind, text string, embedding []float32) (model.Memory, error) {
	id, err := ms.nextID(ctx, "memories")
	if err != nil {
		return model.Memory{}, err
	}
	doc := mongoMemoryDocument{
		ID:        id,
		UserID:    userID,
		Kind:      string(kind),
		Text:      text,
		Embedding: float64Embedding(embedding),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := ms.memories.InsertOne(ctx, doc); err != nil {
		return model.Memory{}, err
	}
	return doc.toMemory(), nil
}

func (ms *MongoStore) RecentMemories(ctx context.Context, userID int64, kind model.MemoryKind, limit int) ([]model.Memory, error) {
	return ms.findMemories(ctx, bson.M{"user_id": userID, "kind": string(kind)}, limit)
}

func (ms *MongoStore) AllMemories(ctx context.Context, userID int64, cap int) ([]model.Memory, error) {
	return ms.findMemories(ctx, bson.M{"user_id": userID}, cap)
}

func (ms *MongoStore) findMemories(ctx context.Context, filter bson.M, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := ms.memories.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var memories []model.Memory
	for cursor.Next(ctx) {
		var doc mongoMemoryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		memories = append(memories, doc.toMemory())
	}
	return memories, cursor.Err()
}

// CreateSchema ensures the collections carry the indexes the listings rely on.
func (ms *MongoStore) CreateSchema(ctx context.Context, _ string) error {
	if ms == nil || ms.client == nil {
		return nil
	}
	if _, err := ms.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "aid", Value: 1}},
		Options: options.Index().SetName("aid").SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := ms.chats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetName("user_id").SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := ms.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("chat_created_at"),
	}); err != nil {
		return err
	}
	if _, err := ms.memories.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("user_created_at"),
	}); err != nil {
		return err
	}
	return nil
}

func (ms *MongoStore) nextID(ctx context.Context, name string) (int64, error) {
	if ms.counters == nil {
		return 0, errors.New("mongo counter collection is not configured")
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	res := ms.counters.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts)
	if res.Err() != nil {
		return 0, res.Err()
	}
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

// Close releases the underlying MongoDB client.
func (ms *MongoStore) Close() error {
	if ms == nil || ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

type mongoUserDocument struct {
	ID        int64     `bson:"_id"`
	AID       string    `bson:"aid"`
	CreatedAt time.Time `bson:"created_at"`
}

func (doc mongoUserDocument) toUser() model.User {
	return model.User{ID: doc.ID, AID: doc.AID, CreatedAt: doc.CreatedAt}
}

type mongoChatDocument struct {
	ID        int64     `bson:"_id"`
	UserID    int64     `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
}

func (doc mongoChatDocument) toChat() model.Chat {
	return model.Chat{ID: doc.ID, UserID: doc.UserID, CreatedAt: doc.CreatedAt}
}

type mongoMessageDocument struct {
	ID        int64     `bson:"_id"`
	ChatID    int64     `bson:"chat_id"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
}

func (doc mongoMessageDocument) toMessage() model.Message {
	return model.Message{
		ID:        doc.ID,
		ChatID:    doc.ChatID,
		Role:      model.Role(doc.Role),
		Content:   doc.Content,
		CreatedAt: doc.CreatedAt,
	}
}

type mongoMemoryDocument struct {
	ID        int64     `bson:"_id"`
	UserID    int64     `bson:"user_id"`
	Kind      string    `bson:"kind"`
	Text      string    `bson:"text"`
	Embedding []float64 `bson:"embedding,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func (doc mongoMemoryDocument) toMemory() model.Memory {
	return model.Memory{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Kind:      model.MemoryKind(doc.Kind),
		Text:      doc.Text,
		Embedding: float32Embedding(doc.Embedding),
		CreatedAt: doc.CreatedAt,
	}
}

func float64Embedding(vec []float32) []float64 {
	if len(vec) == 0 {
		return nil
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func float32Embedding(vec []float64) []float32 {
	if len(vec) == 0 {
		return nil
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
