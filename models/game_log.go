// models/game_log.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	FormatConstructed = "constructed"
	FormatLiveDraft   = "live_draft"

	OutcomeWin  = "win"
	OutcomeLoss = "loss"
	OutcomeDraw = "draw"
)

// GameLog is one recorded game. Constructed logs reference a deck either by
// DeckID or by a pasted DeckURL; live-draft logs carry their Elements inline.
type GameLog struct {
	ID        string                      `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	UserID    string                      `gorm:"not null;size:36;index" bson:"userId" json:"user_id"`
	Format    string                      `gorm:"not null;size:20;index" bson:"format" json:"format"`
	Outcome   string                      `gorm:"not null;size:10" bson:"outcome" json:"outcome"`
	IsPublic  bool                        `gorm:"default:false" bson:"isPublic" json:"is_public"`
	MVPCardID string                      `gorm:"column:mvp_card_id;size:64" bson:"mvpCardId,omitempty" json:"mvp_card_id,omitempty"`
	DeckID    *string                     `gorm:"size:36;index" bson:"deckId,omitempty" json:"deck_id,omitempty"`
	DeckURL   string                      `gorm:"column:deck_url;size:500" bson:"deckUrl,omitempty" json:"deck_url,omitempty"`
	Elements  datatypes.JSONSlice[string] `bson:"elements,omitempty" json:"elements,omitempty"`
	Opponent  string                      `gorm:"size:120" bson:"opponent,omitempty" json:"opponent,omitempty"`
	Notes     string                      `gorm:"type:text" bson:"notes,omitempty" json:"notes,omitempty"`

	// Seed logs are synthetic fixtures and never count toward achievements.
	IsSeed bool `gorm:"default:false;index" bson:"isSeed" json:"-"`

	PlayedAt  time.Time `bson:"playedAt" json:"played_at"`
	CreatedAt time.Time `gorm:"index" bson:"createdAt" json:"created_at"`
}

func (l *GameLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.PlayedAt.IsZero() {
		l.PlayedAt = time.Now().UTC()
	}
	return nil
}

func (GameLog) TableName() string {
	return "game_logs"
}

func ValidFormat(format string) bool {
	return format == FormatConstructed || format == FormatLiveDraft
}

func ValidOutcome(outcome string) bool {
	switch outcome {
	case OutcomeWin, OutcomeLoss, OutcomeDraw:
		return true
	}
	return false
}
