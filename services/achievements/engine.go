package achievements

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Engine evaluates the catalog against a user's history and keeps badge
// awards and the cached achievement XP in sync with it.
type Engine struct {
	store   Store
	catalog *Catalog
	now     func() time.Time

	mu       sync.RWMutex
	badgeIDs map[string]string
}

type Option func(*Engine)

// WithClock overrides the award timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCatalog replaces the built-in catalog.
func WithCatalog(c *Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		catalog: DefaultCatalog(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// UnlockedAchievement is a definition annotated with its XP value.
type UnlockedAchievement struct {
	Definition
	XP int `json:"xp"`
}

// AwardResult is returned by Award and Recompute.
type AwardResult struct {
	UserID                string                `json:"user_id"`
	Unlocked              []UnlockedAchievement `json:"unlocked"`
	AchievementXP         int                   `json:"achievement_xp"`
	PreviousAchievementXP int                   `json:"previous_achievement_xp"`
	BonusXP               int                   `json:"bonus_xp"`
	UnlockedKeys          []string              `json:"unlocked_keys"`
	Rank                  Rank                  `json:"rank"`
	PreviousRank          Rank                  `json:"previous_rank"`
	RankUp                bool                  `json:"rank_up"`
	Metrics               Metrics               `json:"metrics"`
	DryRun                bool                  `json:"dry_run,omitempty"`
}

// AchievementStatus is one catalog entry as seen by a user.
type AchievementStatus struct {
	Definition
	XP        int        `json:"xp"`
	Unlocked  bool       `json:"unlocked"`
	AwardedAt *time.Time `json:"awarded_at,omitempty"`
}

// SnapshotResult is returned by Snapshot.
type SnapshotResult struct {
	UserID        string              `json:"user_id"`
	AchievementXP int                 `json:"achievement_xp"`
	BonusXP       int                 `json:"bonus_xp"`
	Rank          Rank                `json:"rank"`
	Achievements  []AchievementStatus `json:"achievements"`
	UnlockedCount int                 `json:"unlocked_count"`
	Total         int                 `json:"total"`
	Metrics       Metrics             `json:"metrics"`
}

// RecomputeOptions control bulk recomputation.
type RecomputeOptions struct {
	// DryRun computes the result without writing awards or XP.
	DryRun bool
	// Reset discards existing awards before evaluating. With DryRun the
	// awards are only ignored, not deleted.
	Reset bool
}

// EnsureCatalog upserts one badge row per definition the first time it is
// called and caches key → badge id for the life of the engine.
func (e *Engine) EnsureCatalog(ctx context.Context) (map[string]string, error) {
	e.mu.RLock()
	ids := e.badgeIDs
	e.mu.RUnlock()
	if ids != nil {
		return ids, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.badgeIDs != nil {
		return e.badgeIDs, nil
	}

	seeds := make([]BadgeSeed, 0, e.catalog.Len())
	for _, d := range e.catalog.Definitions() {
		seeds = append(seeds, BadgeSeed{
			Key:         d.Key,
			Title:       d.Title,
			Description: d.Description,
			Icon:        d.Icon,
			Color:       d.Color,
		})
	}
	ids, err := e.store.UpsertBadges(ctx, seeds)
	if err != nil {
		return nil, fmt.Errorf("seed badge catalog: %w", err)
	}
	for _, s := range seeds {
		if ids[s.Key] == "" {
			return nil, fmt.Errorf("seed badge catalog: no badge id for %q", s.Key)
		}
	}
	e.badgeIDs = ids
	return ids, nil
}

// Award evaluates the user, persists newly earned badges and rewrites the
// cached achievement XP.
func (e *Engine) Award(ctx context.Context, userID string) (res *AwardResult, err error) {
	start := time.Now()
	defer func() { observe("award", start, err) }()
	return e.recompute(ctx, userID, RecomputeOptions{})
}

// Recompute is Award with bulk-maintenance options.
func (e *Engine) Recompute(ctx context.Context, userID string, opts RecomputeOptions) (res *AwardResult, err error) {
	start := time.Now()
	defer func() { observe("recompute", start, err) }()
	return e.recompute(ctx, userID, opts)
}

func (e *Engine) recompute(ctx context.Context, userID string, opts RecomputeOptions) (*AwardResult, error) {
	badgeIDs, err := e.EnsureCatalog(ctx)
	if err != nil {
		return nil, err
	}

	previousXP, err := e.store.AchievementXP(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load achievement xp: %w", err)
	}

	awarded := map[string]time.Time{}
	if !opts.Reset {
		awarded, err = e.loadAwards(ctx, userID, badgeIDs)
		if err != nil {
			return nil, err
		}
	}

	m, err := ComputeMetrics(ctx, e.store, userID)
	if err != nil {
		return nil, fmt.Errorf("compute metrics: %w", err)
	}

	newly := NewlyUnlocked(e.catalog, m, awarded)
	reported := newly

	if !opts.DryRun {
		if opts.Reset {
			if err := e.store.DeleteAwards(ctx, userID, badgeIDValues(badgeIDs)); err != nil {
				return nil, fmt.Errorf("reset awards: %w", err)
			}
		}
		reported, err = e.insertAwards(ctx, userID, badgeIDs, newly)
		if err != nil {
			return nil, err
		}
	}

	keys := make(map[string]bool, len(awarded)+len(newly))
	for key := range awarded {
		keys[key] = true
	}
	for _, d := range newly {
		keys[d.Key] = true
	}

	bonus := BonusXP(m)
	total := e.catalog.XPFor(keys) + bonus
	if !opts.DryRun {
		if err := e.store.SetAchievementXP(ctx, userID, total); err != nil {
			return nil, fmt.Errorf("store achievement xp: %w", err)
		}
	}

	unlocked := make([]UnlockedAchievement, 0, len(reported))
	for _, d := range reported {
		unlocked = append(unlocked, UnlockedAchievement{Definition: d, XP: d.XP()})
	}
	prevRank, rank := RankForXP(previousXP), RankForXP(total)

	return &AwardResult{
		UserID:                userID,
		Unlocked:              unlocked,
		AchievementXP:         total,
		PreviousAchievementXP: previousXP,
		BonusXP:               bonus,
		UnlockedKeys:          sortedKeys(keys),
		Rank:                  rank,
		PreviousRank:          prevRank,
		RankUp:                rank.Level > prevRank.Level,
		Metrics:               m,
		DryRun:                opts.DryRun,
	}, nil
}

// insertAwards writes the newly unlocked definitions and returns the ones
// this call actually inserted. Rows a concurrent evaluation wrote first are
// left out.
func (e *Engine) insertAwards(ctx context.Context, userID string, badgeIDs map[string]string, newly []Definition) ([]Definition, error) {
	if len(newly) == 0 {
		return nil, nil
	}

	now := e.now()
	awards := make([]Award, 0, len(newly))
	for _, d := range newly {
		awards = append(awards, Award{UserID: userID, BadgeID: badgeIDs[d.Key], AwardedAt: now})
	}
	inserted, err := e.store.InsertAwards(ctx, awards)
	if err != nil {
		return nil, fmt.Errorf("insert awards: %w", err)
	}

	written := make(map[string]bool, len(inserted))
	for _, a := range inserted {
		written[a.BadgeID] = true
	}
	out := make([]Definition, 0, len(inserted))
	for _, d := range newly {
		if written[badgeIDs[d.Key]] {
			out = append(out, d)
			Unlocks.WithLabelValues(string(d.Rarity)).Inc()
		}
	}
	return out, nil
}

// Snapshot reports every achievement's status without awarding anything new.
// The cached XP is rewritten only if it disagrees with the awards on record.
func (e *Engine) Snapshot(ctx context.Context, userID string) (res *SnapshotResult, err error) {
	start := time.Now()
	defer func() { observe("snapshot", start, err) }()

	badgeIDs, err := e.EnsureCatalog(ctx)
	if err != nil {
		return nil, err
	}
	storedXP, err := e.store.AchievementXP(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load achievement xp: %w", err)
	}
	awarded, err := e.loadAwards(ctx, userID, badgeIDs)
	if err != nil {
		return nil, err
	}
	m, err := ComputeMetrics(ctx, e.store, userID)
	if err != nil {
		return nil, fmt.Errorf("compute metrics: %w", err)
	}

	keys := make(map[string]bool, len(awarded))
	for key := range awarded {
		keys[key] = true
	}
	bonus := BonusXP(m)
	total := e.catalog.XPFor(keys) + bonus
	if total != storedXP {
		if err := e.store.SetAchievementXP(ctx, userID, total); err != nil {
			return nil, fmt.Errorf("store achievement xp: %w", err)
		}
	}

	defs := e.catalog.Definitions()
	statuses := make([]AchievementStatus, 0, len(defs))
	for _, d := range defs {
		s := AchievementStatus{Definition: d, XP: d.XP()}
		if at, ok := awarded[d.Key]; ok {
			s.Unlocked = true
			s.AwardedAt = &at
		}
		statuses = append(statuses, s)
	}

	return &SnapshotResult{
		UserID:        userID,
		AchievementXP: total,
		BonusXP:       bonus,
		Rank:          RankForXP(total),
		Achievements:  statuses,
		UnlockedCount: len(awarded),
		Total:         len(defs),
		Metrics:       m,
	}, nil
}

// Metrics computes the user's current metrics without touching awards.
func (e *Engine) Metrics(ctx context.Context, userID string) (Metrics, error) {
	if _, err := e.store.AchievementXP(ctx, userID); err != nil {
		return Metrics{}, err
	}
	return ComputeMetrics(ctx, e.store, userID)
}

// BonusXP returns the like and deck-creation XP the user currently earns.
func (e *Engine) BonusXP(ctx context.Context, userID string) (int, error) {
	m, err := e.Metrics(ctx, userID)
	if err != nil {
		return 0, err
	}
	return BonusXP(m), nil
}

// loadAwards returns achievement key → award time for the user's awards.
func (e *Engine) loadAwards(ctx context.Context, userID string, badgeIDs map[string]string) (map[string]time.Time, error) {
	awards, err := e.store.ListAwards(ctx, userID, badgeIDValues(badgeIDs))
	if err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}
	keyByBadge := make(map[string]string, len(badgeIDs))
	for key, id := range badgeIDs {
		keyByBadge[id] = key
	}
	awarded := make(map[string]time.Time, len(awards))
	for _, a := range awards {
		if key, ok := keyByBadge[a.BadgeID]; ok {
			awarded[key] = a.AwardedAt
		}
	}
	return awarded, nil
}

// NewlyUnlocked returns, in catalog order, the definitions the metrics now
// qualify for that are not in awarded. A chain grants every tier up to its
// highest qualifying threshold.
func NewlyUnlocked(c *Catalog, m Metrics, awarded map[string]time.Time) []Definition {
	should := make(map[string]bool)
	for _, tiers := range c.Series() {
		maxThreshold, qualified := 0, false
		for _, d := range tiers {
			if MeetsCriteria(d.Criteria, m) && (!qualified || d.Criteria.Count > maxThreshold) {
				maxThreshold, qualified = d.Criteria.Count, true
			}
		}
		if !qualified {
			continue
		}
		for _, d := range tiers {
			if d.Criteria.Count <= maxThreshold {
				should[d.Key] = true
			}
		}
	}

	var newly []Definition
	for _, d := range c.Definitions() {
		if _, done := awarded[d.Key]; done {
			continue
		}
		if d.Chained() {
			if should[d.Key] {
				newly = append(newly, d)
			}
			continue
		}
		if MeetsCriteria(d.Criteria, m) {
			newly = append(newly, d)
		}
	}
	return newly
}

func badgeIDValues(badgeIDs map[string]string) []string {
	ids := make([]string, 0, len(badgeIDs))
	for _, id := range badgeIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
