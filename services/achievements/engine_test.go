package achievements_test

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sort"
	"testing"
	"time"

	"deckhub/services/achievements"
)

var fixedNow = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

func newTestEngine(store *fakeStore) *achievements.Engine {
	return achievements.NewEngine(store, achievements.WithClock(func() time.Time { return fixedNow }))
}

func unlockedKeys(res *achievements.AwardResult) []string {
	keys := make([]string, 0, len(res.Unlocked))
	for _, u := range res.Unlocked {
		keys = append(keys, u.Key)
	}
	sort.Strings(keys)
	return keys
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// expectedXP rebuilds the cached value from the store's award records.
func expectedXP(t *testing.T, store *fakeStore, userID string) int {
	t.Helper()
	cat := achievements.DefaultCatalog()
	keys := map[string]bool{}
	for _, k := range store.awardedKeys(userID) {
		keys[k] = true
	}
	m, err := achievements.ComputeMetrics(context.Background(), store, userID)
	if err != nil {
		t.Fatalf("compute metrics: %v", err)
	}
	return cat.XPFor(keys) + achievements.BonusXP(m)
}

func TestAward_FreshUserWithoutLogs(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	engine := newTestEngine(store)

	res, err := engine.Award(context.Background(), "u1")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if len(res.Unlocked) != 0 {
		t.Errorf("expected nothing unlocked, got %v", unlockedKeys(res))
	}
	if res.AchievementXP != 0 || store.xp("u1") != 0 {
		t.Errorf("expected 0 xp, got result %d stored %d", res.AchievementXP, store.xp("u1"))
	}
}

func TestAward_FirstConstructedWin(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addDeck("deck-fire", "someone-else", fixedNow, "Fire")
	store.addLog(constructed("u1", "deck-fire", "win"))
	engine := newTestEngine(store)

	res, err := engine.Award(context.Background(), "u1")
	if err != nil {
		t.Fatalf("award: %v", err)
	}

	want := []string{"constructed_debut", "first_log", "first_win"}
	if got := unlockedKeys(res); !reflect.DeepEqual(got, want) {
		t.Fatalf("unlocked = %v, want %v", got, want)
	}
	if res.AchievementXP != 60 {
		t.Errorf("achievement xp = %d, want 60", res.AchievementXP)
	}
	if store.xp("u1") != 60 {
		t.Errorf("stored xp = %d, want 60", store.xp("u1"))
	}
	if res.Metrics.ElementLogs[achievements.ElementFire] != 1 {
		t.Errorf("fire logs = %v, want 1", res.Metrics.ElementLogs[achievements.ElementFire])
	}
	for _, u := range res.Unlocked {
		if u.XP != achievements.XPForRarity(u.Rarity) {
			t.Errorf("%s annotated with %d xp, want %d", u.Key, u.XP, achievements.XPForRarity(u.Rarity))
		}
	}
	if !res.RankUp || res.Rank.Name != "Apprentice" {
		t.Errorf("expected rank up to Apprentice, got %+v (rank up %v)", res.Rank, res.RankUp)
	}
}

func TestAward_IsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addLogs(12, liveDraft("u1", "win", "Water"))
	engine := newTestEngine(store)
	ctx := context.Background()

	first, err := engine.Award(ctx, "u1")
	if err != nil {
		t.Fatalf("first award: %v", err)
	}
	if len(first.Unlocked) == 0 {
		t.Fatal("expected unlocks on first award")
	}

	second, err := engine.Award(ctx, "u1")
	if err != nil {
		t.Fatalf("second award: %v", err)
	}
	if len(second.Unlocked) != 0 {
		t.Errorf("second award unlocked %v", unlockedKeys(second))
	}
	if second.AchievementXP != first.AchievementXP {
		t.Errorf("xp changed from %d to %d", first.AchievementXP, second.AchievementXP)
	}
	if second.PreviousAchievementXP != first.AchievementXP {
		t.Errorf("previous xp = %d, want %d", second.PreviousAchievementXP, first.AchievementXP)
	}
	if store.upsertCalls != 1 {
		t.Errorf("badge catalog upserted %d times, want 1", store.upsertCalls)
	}
}

func TestAward_ChainGrantsLowerTiersRetroactively(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addLogs(50, liveDraft("u1", "win"))
	engine := newTestEngine(store)

	res, err := engine.Award(context.Background(), "u1")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	keys := unlockedKeys(res)
	for _, key := range []string{"wins_5", "wins_10", "wins_25", "wins_50", "logs_10", "logs_25", "logs_50"} {
		if !contains(keys, key) {
			t.Errorf("expected %s in %v", key, keys)
		}
	}
	if contains(keys, "logs_100") {
		t.Errorf("logs_100 unlocked with only 50 logs")
	}
}

func TestAward_ChainFillsGapsAboveExistingTier(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addLogs(5, liveDraft("u1", "win"))
	engine := newTestEngine(store)
	ctx := context.Background()

	if _, err := engine.Award(ctx, "u1"); err != nil {
		t.Fatalf("award: %v", err)
	}
	store.addLogs(20, liveDraft("u1", "win"))

	res, err := engine.Award(ctx, "u1")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	keys := unlockedKeys(res)
	if contains(keys, "wins_5") {
		t.Errorf("wins_5 granted twice")
	}
	for _, key := range []string{"wins_10", "wins_25"} {
		if !contains(keys, key) {
			t.Errorf("expected %s in %v", key, keys)
		}
	}
}

func TestAward_BadgesSurviveLogDeletion(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addLogs(10, liveDraft("u1", "loss"))
	engine := newTestEngine(store)
	ctx := context.Background()

	before, err := engine.Award(ctx, "u1")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	store.deleteLogs("u1")

	after, err := engine.Award(ctx, "u1")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if after.AchievementXP < before.AchievementXP {
		t.Errorf("xp dropped from %d to %d", before.AchievementXP, after.AchievementXP)
	}
	if !contains(store.awardedKeys("u1"), "logs_10") {
		t.Errorf("logs_10 revoked after log deletion")
	}
}

func TestAward_XPIsMonotonicAndReconstructible(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addDeck("d-fire", "u1", fixedNow, "Fire")
	store.addDeck("d-mix", "u1", fixedNow.Add(time.Hour), "Water", "Earth")
	engine := newTestEngine(store)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(7))
	outcomes := []string{"win", "loss", "draw"}
	elements := [][]string{{"Fire"}, {"Air", "Void"}, {"Earth", "Water", "Fire"}, nil}
	prev := 0

	for round := 0; round < 20; round++ {
		for i := rng.Intn(6); i > 0; i-- {
			outcome := outcomes[rng.Intn(len(outcomes))]
			var l fakeLog
			switch rng.Intn(3) {
			case 0:
				l = constructed("u1", "d-fire", outcome)
			case 1:
				l = constructed("u1", "", outcome)
				l.rec.DeckURL = "https://deckhub.example/decks/d-mix"
			default:
				l = liveDraft("u1", outcome, elements[rng.Intn(len(elements))]...)
			}
			l.public = rng.Intn(2) == 0
			if rng.Intn(4) == 0 {
				l.mvp = "card-1"
			}
			store.addLog(l)
		}
		store.mu.Lock()
		store.likes["d-fire"] += rng.Intn(3)
		store.mu.Unlock()

		res, err := engine.Award(ctx, "u1")
		if err != nil {
			t.Fatalf("round %d: award: %v", round, err)
		}
		if res.AchievementXP < prev {
			t.Fatalf("round %d: xp decreased from %d to %d", round, prev, res.AchievementXP)
		}
		if want := expectedXP(t, store, "u1"); res.AchievementXP != want || store.xp("u1") != want {
			t.Fatalf("round %d: xp result %d stored %d, reconstructed %d", round, res.AchievementXP, store.xp("u1"), want)
		}
		prev = res.AchievementXP
	}
}

func TestAward_ConcurrentDuplicateInsertIsIgnored(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addLog(liveDraft("u1", "win", "Air"))
	engine := newTestEngine(store)

	// Another evaluation wins the race for first_win.
	store.beforeInsert = func(s *fakeStore, awards []achievements.Award) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.awards["u1"] = map[string]time.Time{s.badges["first_win"]: fixedNow.Add(-time.Second)}
	}

	res, err := engine.Award(context.Background(), "u1")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	want := []string{"first_log", "first_win", "live_draft_debut"}
	if got := store.awardedKeys("u1"); !reflect.DeepEqual(got, want) {
		t.Errorf("awarded = %v, want %v", got, want)
	}
	if res.AchievementXP != 20+35+5 {
		t.Errorf("xp = %d, want 60", res.AchievementXP)
	}
	if got := unlockedKeys(res); !reflect.DeepEqual(got, []string{"first_log", "live_draft_debut"}) {
		t.Errorf("unlocked = %v, want first_win left to the other evaluation", got)
	}
}

func TestAward_BonusXPFromLikesAndCappedDecks(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	day1 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		store.addDeck(id, "u1", day1.Add(time.Duration(i)*time.Minute))
	}
	store.addDeck("f", "u1", day1.AddDate(0, 0, 1))
	store.likes["a"] = 2
	store.likes["f"] = 1
	engine := newTestEngine(store)

	res, err := engine.Award(context.Background(), "u1")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	want := 3*achievements.XPPerLike + 3*achievements.XPPerDeck + 1*achievements.XPPerDeck
	if res.BonusXP != want || res.AchievementXP != want {
		t.Errorf("bonus %d total %d, want %d", res.BonusXP, res.AchievementXP, want)
	}
}

func TestEngine_BonusXPReadsWithoutWriting(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addDeck("a", "u1", fixedNow)
	store.likes["a"] = 4
	engine := newTestEngine(store)

	bonus, err := engine.BonusXP(context.Background(), "u1")
	if err != nil {
		t.Fatalf("bonus: %v", err)
	}
	if want := 4*achievements.XPPerLike + achievements.XPPerDeck; bonus != want {
		t.Errorf("bonus = %d, want %d", bonus, want)
	}
	if store.setXPCalls != 0 {
		t.Errorf("BonusXP wrote xp %d times", store.setXPCalls)
	}

	if _, err := engine.BonusXP(context.Background(), "ghost"); !errors.Is(err, achievements.ErrUserNotFound) {
		t.Errorf("unknown user err = %v", err)
	}
}

func TestAward_UnknownUser(t *testing.T) {
	engine := newTestEngine(newFakeStore())
	if _, err := engine.Award(context.Background(), "ghost"); !errors.Is(err, achievements.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAward_MetricsFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.users["u1"].xp = 42
	store.countErr = errors.New("connection refused")
	engine := newTestEngine(store)

	if _, err := engine.Award(context.Background(), "u1"); err == nil {
		t.Fatal("expected error")
	}
	if store.setXPCalls != 0 || store.xp("u1") != 42 {
		t.Errorf("xp written despite failure: calls %d xp %d", store.setXPCalls, store.xp("u1"))
	}
}

func TestSnapshot_ReportsStatusWithoutAwarding(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addLog(liveDraft("u1", "win", "Fire"))
	engine := newTestEngine(store)

	snap, err := engine.Snapshot(context.Background(), "u1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.UnlockedCount != 0 || len(store.awardedKeys("u1")) != 0 {
		t.Fatalf("snapshot awarded badges: %v", store.awardedKeys("u1"))
	}
	if snap.Total != achievements.DefaultCatalog().Len() || len(snap.Achievements) != snap.Total {
		t.Errorf("snapshot lists %d of %d achievements", len(snap.Achievements), snap.Total)
	}
	if snap.Metrics.TotalLogs != 1 {
		t.Errorf("total logs = %d, want 1", snap.Metrics.TotalLogs)
	}
}

func TestSnapshot_AfterAwardShowsTimestamps(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addLog(liveDraft("u1", "win", "Fire"))
	engine := newTestEngine(store)
	ctx := context.Background()

	if _, err := engine.Award(ctx, "u1"); err != nil {
		t.Fatalf("award: %v", err)
	}
	snap, err := engine.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for _, s := range snap.Achievements {
		if s.Key == "first_win" {
			if !s.Unlocked || s.AwardedAt == nil || !s.AwardedAt.Equal(fixedNow) {
				t.Errorf("first_win status = %+v", s)
			}
		}
		if s.Key == "fire_played_5" && s.Unlocked {
			t.Errorf("fire_played_5 unlocked with 1 log")
		}
	}
	if snap.UnlockedCount != 3 {
		t.Errorf("unlocked count = %d, want 3", snap.UnlockedCount)
	}
}

func TestSnapshot_RepairsStaleXPOnly(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addLog(liveDraft("u1", "loss"))
	engine := newTestEngine(store)
	ctx := context.Background()

	if _, err := engine.Award(ctx, "u1"); err != nil {
		t.Fatalf("award: %v", err)
	}
	calls := store.setXPCalls

	if _, err := engine.Snapshot(ctx, "u1"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if store.setXPCalls != calls {
		t.Errorf("fresh xp rewritten")
	}

	store.users["u1"].xp = 999
	snap, err := engine.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if store.xp("u1") != snap.AchievementXP || snap.AchievementXP != 25 {
		t.Errorf("stale xp not repaired: stored %d snapshot %d", store.xp("u1"), snap.AchievementXP)
	}
}

func seedHistory(store *fakeStore) {
	store.addUser("u1")
	store.addDeck("d1", "u1", fixedNow, "Earth")
	store.addLogs(6, constructed("u1", "d1", "win"))
	store.addLogs(4, liveDraft("u1", "loss", "Earth", "Air"))
	l := liveDraft("u1", "win", "Void")
	l.public, l.mvp = true, "card-9"
	store.addLog(l)
}

func TestRecompute_DryRunMatchesAward(t *testing.T) {
	ctx := context.Background()
	dryStore, liveStore := newFakeStore(), newFakeStore()
	seedHistory(dryStore)
	seedHistory(liveStore)

	dry, err := newTestEngine(dryStore).Recompute(ctx, "u1", achievements.RecomputeOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	live, err := newTestEngine(liveStore).Award(ctx, "u1")
	if err != nil {
		t.Fatalf("award: %v", err)
	}

	if !reflect.DeepEqual(unlockedKeys(dry), unlockedKeys(live)) {
		t.Errorf("dry run unlocked %v, award unlocked %v", unlockedKeys(dry), unlockedKeys(live))
	}
	if dry.AchievementXP != live.AchievementXP {
		t.Errorf("dry run xp %d, award xp %d", dry.AchievementXP, live.AchievementXP)
	}
	if len(dryStore.awardedKeys("u1")) != 0 || dryStore.setXPCalls != 0 {
		t.Errorf("dry run wrote to the store")
	}
}

func TestRecompute_ResetRegrantsFromCurrentHistory(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addLogs(10, liveDraft("u1", "loss"))
	engine := newTestEngine(store)
	ctx := context.Background()

	if _, err := engine.Award(ctx, "u1"); err != nil {
		t.Fatalf("award: %v", err)
	}
	store.deleteLogs("u1")
	store.addLog(liveDraft("u1", "loss"))

	dry, err := engine.Recompute(ctx, "u1", achievements.RecomputeOptions{DryRun: true, Reset: true})
	if err != nil {
		t.Fatalf("dry reset: %v", err)
	}
	if !contains(store.awardedKeys("u1"), "logs_10") {
		t.Fatalf("dry-run reset deleted awards")
	}

	res, err := engine.Recompute(ctx, "u1", achievements.RecomputeOptions{Reset: true})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	want := []string{"first_log", "live_draft_debut"}
	if got := store.awardedKeys("u1"); !reflect.DeepEqual(got, want) {
		t.Errorf("after reset awarded = %v, want %v", got, want)
	}
	if res.AchievementXP != 25 || dry.AchievementXP != 25 {
		t.Errorf("reset xp = %d (dry %d), want 25", res.AchievementXP, dry.AchievementXP)
	}
}

func TestRecompute_ResetKeepsAwardsWhenMetricsFail(t *testing.T) {
	store := newFakeStore()
	store.addUser("u1")
	store.addLogs(10, liveDraft("u1", "win", "Fire"))
	engine := newTestEngine(store)
	ctx := context.Background()

	if _, err := engine.Award(ctx, "u1"); err != nil {
		t.Fatalf("award: %v", err)
	}
	before, xp := store.awardedKeys("u1"), store.xp("u1")

	store.countErr = errors.New("db down")
	if _, err := engine.Recompute(ctx, "u1", achievements.RecomputeOptions{Reset: true}); err == nil {
		t.Fatal("expected error")
	}
	if got := store.awardedKeys("u1"); !reflect.DeepEqual(got, before) {
		t.Errorf("awards after failed reset = %v, want %v", got, before)
	}
	if store.xp("u1") != xp {
		t.Errorf("xp after failed reset = %d, want %d", store.xp("u1"), xp)
	}
}

func TestBackfill_FiltersAndContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	for _, id := range []string{"a", "b", "c"} {
		store.addUser(id)
		store.addLog(liveDraft(id, "win"))
	}
	store.failUsers["b"] = true
	engine := newTestEngine(store)

	var seen []string
	report, err := engine.Backfill(context.Background(),
		achievements.UserFilter{IDs: []string{"a"}, Emails: []string{"b@example.com"}},
		achievements.RecomputeOptions{},
		func(userID string, res *achievements.AwardResult, err error) { seen = append(seen, userID) })
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if !reflect.DeepEqual(seen, []string{"a", "b"}) {
		t.Errorf("visited %v", seen)
	}
	if report.Users != 2 || report.Failed != 1 || report.Changed != 1 || report.Unlocked != 3 {
		t.Errorf("report = %+v", report)
	}
	if len(store.awardedKeys("c")) != 0 {
		t.Errorf("unselected user was evaluated")
	}
}
