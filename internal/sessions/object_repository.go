package sessions

import (
	"context"
	"time"
)

// ObjectStore is the subset of an object storage client the session backend needs.
// GetObject returns (nil, nil) when the object does not exist.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	RemoveObject(ctx context.Context, key string) error
}

// ObjectRepository keeps each record as "<prefix><key>.json" in an object store (MinIO).
type ObjectRepository struct {
	store  ObjectStore
	prefix string
}

func NewObjectRepository(store ObjectStore, prefix string) *ObjectRepository {
	return &ObjectRepository{store: store, prefix: prefix}
}

func (r *ObjectRepository) object(key string) string {
	return r.prefix + key + ".json"
}

func (r *ObjectRepository) Load(ctx context.Context, key string) ([]byte, error) {
	return r.store.GetObject(ctx, r.object(key))
}

func (r *ObjectRepository) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return r.store.PutObject(ctx, r.object(key), data, "application/json")
}

func (r *ObjectRepository) Delete(ctx context.Context, key string) error {
	return r.store.RemoveObject(ctx, r.object(key))
}
