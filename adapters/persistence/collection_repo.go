package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/tapcards/tap/internal/domain/kv"
	"github.com/tapcards/tap/internal/domain/profile"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

type collectionRepo struct {
	store  kv.Store
	key    string
	logger logger.Logger
}

// NewCollectionRepo stores the whole profile collection as one JSON object under key.
func NewCollectionRepo(store kv.Store, key string, logger logger.Logger) profile.Repository {
	return &collectionRepo{store: store, key: key, logger: logger}
}

func (r *collectionRepo) LoadAll(ctx context.Context) (profile.Collection, error) {
	data, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil, profile.ErrCollectionNotFound
		}
		return nil, apperror.NewStorage("failed to read profiles", err)
	}

	profiles := profile.Collection{}
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, apperror.NewStorage("stored profiles are not valid JSON", err)
	}

	for key, p := range profiles {
		if p == nil {
			r.logger.Warn("Dropping null profile record", zap.String("key", key))
			delete(profiles, key)
			continue
		}
		if p.Username == "" {
			p.Username = key
		}
	}
	return profiles, nil
}

func (r *collectionRepo) SaveAll(ctx context.Context, profiles profile.Collection) error {
	data, err := json.Marshal(profiles)
	if err != nil {
		return apperror.NewInternal("failed to encode profiles", err)
	}
	if err := r.store.Set(ctx, r.key, data); err != nil {
		return apperror.NewStorage("failed to save profiles", err)
	}
	r.logger.Debug("Profiles saved", zap.String("backend", r.store.Name()), zap.Int("count", len(profiles)))
	return nil
}

func (r *collectionRepo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}
