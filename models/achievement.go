// models/achievement.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const BadgeTypeAchievement = "achievement"

// Badge is one row of the badge catalog. Achievement badges are seeded from
// the in-code achievement catalog and keyed by Key.
type Badge struct {
	ID          string `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Type        string `gorm:"column:badge_type;not null;index" bson:"type" json:"type"`
	Key         string `gorm:"column:badge_key;not null;uniqueIndex" bson:"key" json:"key"`
	Title       string `gorm:"not null" bson:"title" json:"title"`
	Description string `bson:"description" json:"description"`
	Icon        string `bson:"icon" json:"icon"`
	Color       string `gorm:"size:20" bson:"color" json:"color"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// UserBadge records that a user was awarded a badge. At most one row exists
// per (user, badge).
type UserBadge struct {
	ID        string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	UserID    string    `gorm:"not null;size:36;uniqueIndex:idx_user_badges_user_badge" bson:"userId" json:"user_id"`
	BadgeID   string    `gorm:"not null;size:36;uniqueIndex:idx_user_badges_user_badge;index" bson:"badgeId" json:"badge_id"`
	AwardedAt time.Time `gorm:"not null" bson:"awardedAt" json:"awarded_at"`
}

func (b *Badge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

func (ub *UserBadge) BeforeCreate(tx *gorm.DB) error {
	if ub.ID == "" {
		ub.ID = uuid.NewString()
	}
	return nil
}

func (Badge) TableName() string {
	return "badges"
}

func (UserBadge) TableName() string {
	return "user_badges"
}
