package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/glucoview/glucoview/internal/config"
	"github.com/glucoview/glucoview/internal/database"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/glucoview/glucoview/internal/storage"
	"github.com/glucoview/glucoview/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/mongo"
)

const mongoConnectAttempts = 5

// Infra holds the external clients the session backend and rate limiter run on.
// Redis is optional unless it is the session backend.
type Infra struct {
	Backend string
	Repo    sessions.Repository
	Redis   *redis.Client
	Mongo   *mongo.Client
	MinIO   *storage.MinIOStorage
}

// SetupInfra connects what cfg asks for and picks the session repository.
func SetupInfra(ctx context.Context, cfg *config.Config) (*Infra, error) {
	in := &Infra{Backend: cfg.Session.Backend}

	if addr := cfg.Redis.Addr(); addr != "" {
		rc := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			if cfg.Session.Backend == config.BackendRedis {
				return nil, fmt.Errorf("redis ping %s: %w", addr, err)
			}
			logger.Warnf("redis unavailable at %s, continuing without it: %v", addr, err)
		} else {
			in.Redis = rc
			logger.Infof("redis ready (%s)", addr)
		}
	}

	switch cfg.Session.Backend {
	case config.BackendMemory:
		in.Repo = sessions.NewMemoryRepository()
	case config.BackendFile:
		in.Repo = sessions.NewFileRepository(afero.NewOsFs(), cfg.Session.Dir)
	case config.BackendRedis:
		in.Repo = sessions.NewRedisRepository(in.Redis, "")
	case config.BackendMongo:
		mc, err := database.ConnectWithRetry(ctx, cfg.MongoDB, mongoConnectAttempts)
		if err != nil {
			in.Close(context.Background())
			return nil, err
		}
		in.Mongo = mc
		in.Repo = sessions.NewMongoRepository(mc.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection))
		logger.Infof("mongo ready (db=%s collection=%s)", cfg.MongoDB.Database, cfg.MongoDB.Collection)
	case config.BackendMinIO:
		st, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			in.Close(context.Background())
			return nil, err
		}
		in.MinIO = st
		in.Repo = sessions.NewObjectRepository(st, "sessions/")
		logger.Infof("minio ready (bucket=%s)", cfg.MinIO.Bucket)
	default:
		in.Close(context.Background())
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	logger.Infof("session backend: %s", cfg.Session.Backend)
	return in, nil
}

// Ready reports per-dependency reachability for /ready.
func (in *Infra) Ready(ctx context.Context) (map[string]bool, bool) {
	deps := map[string]bool{"sessions": in.Repo != nil}
	if in.Redis != nil {
		deps["redis"] = in.Redis.Ping(ctx).Err() == nil
	}
	if in.Mongo != nil {
		deps["mongo"] = in.Mongo.Ping(ctx, nil) == nil
	}
	ok := true
	for _, up := range deps {
		ok = ok && up
	}
	return deps, ok
}

// Close releases every client that was opened.
func (in *Infra) Close(ctx context.Context) error {
	var errs []error
	if in.Redis != nil {
		errs = append(errs, in.Redis.Close())
	}
	if in.Mongo != nil {
		errs = append(errs, in.Mongo.Disconnect(ctx))
	}
	return errors.Join(errs...)
}
