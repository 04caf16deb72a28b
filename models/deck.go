// models/deck.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Deck is a user-built deck. Elements is precomputed from the deck's cards
// when the deck is saved.
type Deck struct {
	ID          string                      `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	UserID      string                      `gorm:"not null;size:36;index" bson:"userId" json:"user_id"`
	Name        string                      `gorm:"not null;size:120" bson:"name" json:"name"`
	Description string                      `gorm:"type:text" bson:"description" json:"description"`
	Format      string                      `gorm:"size:20;default:'constructed'" bson:"format" json:"format"`
	Elements    datatypes.JSONSlice[string] `bson:"elements" json:"elements"`
	IsPublic    bool                        `gorm:"not null" bson:"isPublic" json:"is_public"`

	CreatedAt time.Time `gorm:"index" bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// DeckLike is a single user's like on a deck.
type DeckLike struct {
	ID        string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	DeckID    string    `gorm:"not null;size:36;uniqueIndex:idx_deck_likes_deck_user" bson:"deckId" json:"deck_id"`
	UserID    string    `gorm:"not null;size:36;uniqueIndex:idx_deck_likes_deck_user" bson:"userId" json:"user_id"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}

func (d *Deck) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

func (l *DeckLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

func (Deck) TableName() string {
	return "decks"
}

func (DeckLike) TableName() string {
	return "deck_likes"
}
