package achievements

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned by a Store when the user does not exist.
var ErrUserNotFound = errors.New("user not found")

// Format and outcome values as stored on game logs.
const (
	FormatConstructed = "constructed"
	FormatLiveDraft   = "live_draft"
	OutcomeWin        = "win"
)

// LogFilter narrows a log count. Zero fields do not filter. Every count
// excludes seed logs.
type LogFilter struct {
	Format     string
	Outcome    string
	PublicOnly bool
	WithMVP    bool
}

// LogRecord is the projection of a game log needed for element tallies.
type LogRecord struct {
	ID       string
	Format   string
	Outcome  string
	Elements []string
	DeckID   string
	DeckURL  string
}

// BadgeSeed is the catalog row upserted for every definition.
type BadgeSeed struct {
	Key         string
	Title       string
	Description string
	Icon        string
	Color       string
}

// Award is a persisted badge award.
type Award struct {
	UserID    string
	BadgeID   string
	AwardedAt time.Time
}

// UserFilter selects users for bulk recomputation. Empty selects everyone;
// otherwise a user matching any ID or any email is selected.
type UserFilter struct {
	IDs    []string
	Emails []string
}

// Store is everything the engine reads and writes.
type Store interface {
	// CountLogs counts the user's non-seed logs matching f.
	CountLogs(ctx context.Context, userID string, f LogFilter) (int64, error)
	// ListLogs returns the element-relevant projection of every non-seed log.
	ListLogs(ctx context.Context, userID string) ([]LogRecord, error)
	// DeckElements loads precomputed element lists for the given decks in one
	// query. Missing decks are absent from the result.
	DeckElements(ctx context.Context, deckIDs []string) (map[string][]string, error)
	// LikesReceived counts likes across all decks owned by the user.
	LikesReceived(ctx context.Context, userID string) (int64, error)
	// DecksCreatedPerDay returns deck creation counts keyed by UTC day (2006-01-02).
	DecksCreatedPerDay(ctx context.Context, userID string) (map[string]int64, error)

	// UpsertBadges creates or refreshes one achievement badge per seed and
	// returns key → badge id for all of them.
	UpsertBadges(ctx context.Context, seeds []BadgeSeed) (map[string]string, error)
	ListAwards(ctx context.Context, userID string, badgeIDs []string) ([]Award, error)
	// InsertAwards inserts awards, silently skipping any that already exist,
	// and returns the ones it actually wrote.
	InsertAwards(ctx context.Context, awards []Award) ([]Award, error)
	DeleteAwards(ctx context.Context, userID string, badgeIDs []string) error
	AchievementXP(ctx context.Context, userID string) (int, error)
	SetAchievementXP(ctx context.Context, userID string, xp int) error

	ListUserIDs(ctx context.Context, f UserFilter) ([]string, error)
}
