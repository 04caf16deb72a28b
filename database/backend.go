// database/backend.go - storage backend selection
package database

import (
	"context"
	"fmt"

	"deckhub/config"
	"deckhub/database/mongostore"
	"deckhub/models"
	"deckhub/services/achievements"
)

// Backend is one storage implementation: the achievement engine's Store
// plus the record writes behind the HTTP API.
type Backend interface {
	achievements.Store

	CreateUser(ctx context.Context, user *models.User) error
	CreateGameLog(ctx context.Context, log *models.GameLog) error
	CreateDeck(ctx context.Context, deck *models.Deck) error
	ToggleLike(ctx context.Context, deckID, userID string) (liked bool, ownerID string, err error)
	Close() error
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*mongostore.Store)(nil)
)

// OpenBackend connects to the configured driver. Relational backends are
// migrated before use.
func OpenBackend(ctx context.Context, cfg config.Database) (Backend, error) {
	if cfg.Driver == config.DriverMongo {
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		_ = Close(db)
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return NewStore(db), nil
}
