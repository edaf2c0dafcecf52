package sessions

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRecord struct {
	Key       string    `bson:"_id"`
	Data      string    `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoRepository implements Repository using a Mongo collection, one document per key.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Load(ctx context.Context, key string) ([]byte, error) {
	var rec mongoRecord
	if err := r.col.FindOne(ctx, bson.M{"_id": key}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return []byte(rec.Data), nil
}

// Save replaces the whole document; fields are never merged.
func (r *MongoRepository) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	rec := mongoRecord{Key: key, Data: string(data), UpdatedAt: time.Now().UTC()}
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": key}, rec, opts)
	return err
}

func (r *MongoRepository) Delete(ctx context.Context, key string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": key})
	return err
}
