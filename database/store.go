// database/store.go - gorm-backed persistence for decks, logs and achievements
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deckhub/models"
	"deckhub/services/achievements"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements achievements.Store and the record operations used by the
// HTTP handlers on top of a gorm connection.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	return Close(s.db)
}

func (s *Store) userLogs(ctx context.Context, userID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.GameLog{}).
		Where("user_id = ? AND is_seed = ?", userID, false)
}

func (s *Store) CountLogs(ctx context.Context, userID string, f achievements.LogFilter) (int64, error) {
	q := s.userLogs(ctx, userID)
	if f.Format != "" {
		q = q.Where("format = ?", f.Format)
	}
	if f.Outcome != "" {
		q = q.Where("outcome = ?", f.Outcome)
	}
	if f.PublicOnly {
		q = q.Where("is_public = ?", true)
	}
	if f.WithMVP {
		q = q.Where("mvp_card_id IS NOT NULL AND mvp_card_id <> ''")
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return n, nil
}

func (s *Store) ListLogs(ctx context.Context, userID string) ([]achievements.LogRecord, error) {
	var logs []models.GameLog
	err := s.userLogs(ctx, userID).
		Select([]string{"id", "format", "outcome", "elements", "deck_id", "deck_url"}).
		Order("played_at").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}

	records := make([]achievements.LogRecord, 0, len(logs))
	for _, l := range logs {
		rec := achievements.LogRecord{
			ID:       l.ID,
			Format:   l.Format,
			Outcome:  l.Outcome,
			Elements: l.Elements,
			DeckURL:  l.DeckURL,
		}
		if l.DeckID != nil {
			rec.DeckID = *l.DeckID
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) DeckElements(ctx context.Context, deckIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(deckIDs))
	if len(deckIDs) == 0 {
		return out, nil
	}

	var decks []models.Deck
	err := s.db.WithContext(ctx).
		Select([]string{"id", "elements"}).
		Where("id IN ?", deckIDs).
		Find(&decks).Error
	if err != nil {
		return nil, fmt.Errorf("load deck elements: %w", err)
	}
	for _, d := range decks {
		out[d.ID] = d.Elements
	}
	return out, nil
}

func (s *Store) LikesReceived(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.DeckLike{}).
		Joins("JOIN decks ON decks.id = deck_likes.deck_id").
		Where("decks.user_id = ?", userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}

// DecksCreatedPerDay buckets in Go so the day boundary is UTC on every
// dialect.
func (s *Store) DecksCreatedPerDay(ctx context.Context, userID string) (map[string]int64, error) {
	var created []time.Time
	err := s.db.WithContext(ctx).Model(&models.Deck{}).
		Where("user_id = ?", userID).
		Pluck("created_at", &created).Error
	if err != nil {
		return nil, fmt.Errorf("list deck dates: %w", err)
	}

	perDay := make(map[string]int64)
	for _, t := range created {
		perDay[t.UTC().Format("2006-01-02")]++
	}
	return perDay, nil
}

func (s *Store) UpsertBadges(ctx context.Context, seeds []achievements.BadgeSeed) (map[string]string, error) {
	if len(seeds) == 0 {
		return map[string]string{}, nil
	}

	badges := make([]models.Badge, 0, len(seeds))
	keys := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		badges = append(badges, models.Badge{
			Type:        models.BadgeTypeAchievement,
			Key:         seed.Key,
			Title:       seed.Title,
			Description: seed.Description,
			Icon:        seed.Icon,
			Color:       seed.Color,
		})
		keys = append(keys, seed.Key)
	}

	db := s.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "badge_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"badge_type", "title", "description", "icon", "color", "updated_at"}),
	}).CreateInBatches(&badges, 100).Error
	if err != nil {
		return nil, fmt.Errorf("upsert badges: %w", err)
	}

	var stored []models.Badge
	if err := db.Select([]string{"id", "badge_key"}).Where("badge_key IN ?", keys).Find(&stored).Error; err != nil {
		return nil, fmt.Errorf("load badge ids: %w", err)
	}

	ids := make(map[string]string, len(stored))
	for _, b := range stored {
		ids[b.Key] = b.ID
	}
	return ids, nil
}

func (s *Store) ListAwards(ctx context.Context, userID string, badgeIDs []string) ([]achievements.Award, error) {
	if len(badgeIDs) == 0 {
		return nil, nil
	}

	var rows []models.UserBadge
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND badge_id IN ?", userID, badgeIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}

	awards := make([]achievements.Award, 0, len(rows))
	for _, r := range rows {
		awards = append(awards, achievements.Award{UserID: r.UserID, BadgeID: r.BadgeID, AwardedAt: r.AwardedAt})
	}
	return awards, nil
}

// InsertAwards relies on the (user_id, badge_id) unique index; rows that
// already exist are skipped by the database. Rows go in one at a time so the
// caller learns exactly which ones a concurrent writer did not beat it to.
func (s *Store) InsertAwards(ctx context.Context, awards []achievements.Award) ([]achievements.Award, error) {
	if len(awards) == 0 {
		return nil, nil
	}

	var inserted []achievements.Award
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range awards {
			row := models.UserBadge{UserID: a.UserID, BadgeID: a.BadgeID, AwardedAt: a.AwardedAt}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				inserted = append(inserted, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert awards: %w", err)
	}
	return inserted, nil
}

func (s *Store) DeleteAwards(ctx context.Context, userID string, badgeIDs []string) error {
	if len(badgeIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND badge_id IN ?", userID, badgeIDs).
		Delete(&models.UserBadge{}).Error
	if err != nil {
		return fmt.Errorf("delete awards: %w", err)
	}
	return nil
}

func (s *Store) AchievementXP(ctx context.Context, userID string) (int, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select([]string{"id", "achievement_xp"}).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, achievements.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load achievement xp: %w", err)
	}
	return user.AchievementXP, nil
}

func (s *Store) SetAchievementXP(ctx context.Context, userID string, xp int) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("achievement_xp", xp)
	if res.Error != nil {
		return fmt.Errorf("set achievement xp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return achievements.ErrUserNotFound
	}
	return nil
}

func (s *Store) ListUserIDs(ctx context.Context, f achievements.UserFilter) ([]string, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	switch {
	case len(f.IDs) > 0 && len(f.Emails) > 0:
		q = q.Where("id IN ?", f.IDs).Or("email IN ?", f.Emails)
	case len(f.IDs) > 0:
		q = q.Where("id IN ?", f.IDs)
	case len(f.Emails) > 0:
		q = q.Where("email IN ?", f.Emails)
	}

	var ids []string
	if err := q.Order("created_at, id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) CreateGameLog(ctx context.Context, log *models.GameLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("create game log: %w", err)
	}
	return nil
}

func (s *Store) CreateDeck(ctx context.Context, deck *models.Deck) error {
	if err := s.db.WithContext(ctx).Create(deck).Error; err != nil {
		return fmt.Errorf("create deck: %w", err)
	}
	return nil
}

// ToggleLike likes the deck for userID, or removes an existing like. It
// returns the new state and the deck owner.
func (s *Store) ToggleLike(ctx context.Context, deckID, userID string) (bool, string, error) {
	var liked bool
	var ownerID string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var deck models.Deck
		if err := tx.Select([]string{"id", "user_id"}).Where("id = ?", deckID).Take(&deck).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrDeckNotFound
			}
			return err
		}
		ownerID = deck.UserID

		res := tx.Where("deck_id = ? AND user_id = ?", deckID, userID).Delete(&models.DeckLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			liked = false
			return nil
		}

		liked = true
		return tx.Create(&models.DeckLike{DeckID: deckID, UserID: userID}).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrDeckNotFound) {
			return false, "", err
		}
		return false, "", fmt.Errorf("toggle like: %w", err)
	}
	return liked, ownerID, nil
}
