// models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID          string  `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Username    string  `gorm:"uniqueIndex;not null" bson:"username" json:"username"`
	Email       *string `gorm:"uniqueIndex" bson:"email,omitempty" json:"email,omitempty"`
	DisplayName string  `bson:"displayName" json:"display_name"`
	Avatar      string  `bson:"avatar" json:"avatar"`
	Bio         string  `bson:"bio" json:"bio"`

	// Cached sum of unlocked badge XP plus bonus XP. Always overwritten by the
	// achievement engine, never incremented.
	AchievementXP int `gorm:"column:achievement_xp;default:0;not null" bson:"achievementXp" json:"achievement_xp"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
