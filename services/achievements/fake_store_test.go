package achievements_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"deckhub/services/achievements"
)

type fakeLog struct {
	userID string
	rec    achievements.LogRecord
	public bool
	mvp    string
	seed   bool
}

type fakeDeck struct {
	owner    string
	elements []string
	created  time.Time
}

type fakeUser struct {
	email string
	xp    int
}

// fakeStore is an in-memory achievements.Store safe for the engine's
// concurrent reads.
type fakeStore struct {
	mu     sync.Mutex
	users  map[string]*fakeUser
	logs   []fakeLog
	decks  map[string]fakeDeck
	likes  map[string]int
	badges map[string]string
	awards map[string]map[string]time.Time

	nextLog          int
	upsertCalls      int
	deckElementCalls int
	setXPCalls       int
	countErr         error
	failUsers        map[string]bool

	// beforeInsert runs inside InsertAwards before any row is written.
	beforeInsert func(s *fakeStore, awards []achievements.Award)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[string]*fakeUser{},
		decks:     map[string]fakeDeck{},
		likes:     map[string]int{},
		badges:    map[string]string{},
		awards:    map[string]map[string]time.Time{},
		failUsers: map[string]bool{},
	}
}

func (s *fakeStore) addUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &fakeUser{email: id + "@example.com"}
}

func (s *fakeStore) addDeck(id, owner string, created time.Time, elements ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks[id] = fakeDeck{owner: owner, elements: elements, created: created}
}

func (s *fakeStore) addLog(l fakeLog) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLog++
	if l.rec.ID == "" {
		l.rec.ID = fmt.Sprintf("log-%d", s.nextLog)
	}
	s.logs = append(s.logs, l)
	return l.rec.ID
}

func (s *fakeStore) addLogs(n int, l fakeLog) {
	for i := 0; i < n; i++ {
		s.addLog(l)
	}
}

func (s *fakeStore) deleteLogs(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.logs[:0]
	for _, l := range s.logs {
		if l.userID != userID {
			kept = append(kept, l)
		}
	}
	s.logs = kept
}

func (s *fakeStore) xp(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID].xp
}

func (s *fakeStore) awardedKeys(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keyByID := map[string]string{}
	for k, id := range s.badges {
		keyByID[id] = k
	}
	var keys []string
	for id := range s.awards[userID] {
		keys = append(keys, keyByID[id])
	}
	sort.Strings(keys)
	return keys
}

func (s *fakeStore) checkUser(userID string) error {
	if s.failUsers[userID] {
		return errors.New("connection refused")
	}
	if _, ok := s.users[userID]; !ok {
		return achievements.ErrUserNotFound
	}
	return nil
}

func (s *fakeStore) CountLogs(ctx context.Context, userID string, f achievements.LogFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	var n int64
	for _, l := range s.logs {
		if l.userID != userID || l.seed {
			continue
		}
		if f.Format != "" && l.rec.Format != f.Format {
			continue
		}
		if f.Outcome != "" && l.rec.Outcome != f.Outcome {
			continue
		}
		if f.PublicOnly && !l.public {
			continue
		}
		if f.WithMVP && l.mvp == "" {
			continue
		}
		n++
	}
	return n, nil
}

func (s *fakeStore) ListLogs(ctx context.Context, userID string) ([]achievements.LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []achievements.LogRecord
	for _, l := range s.logs {
		if l.userID == userID && !l.seed {
			out = append(out, l.rec)
		}
	}
	return out, nil
}

func (s *fakeStore) DeckElements(ctx context.Context, deckIDs []string) (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deckElementCalls++
	out := map[string][]string{}
	for _, id := range deckIDs {
		if d, ok := s.decks[id]; ok {
			out[id] = d.elements
		}
	}
	return out, nil
}

func (s *fakeStore) LikesReceived(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, d := range s.decks {
		if d.owner == userID {
			n += int64(s.likes[id])
		}
	}
	return n, nil
}

func (s *fakeStore) DecksCreatedPerDay(ctx context.Context, userID string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int64{}
	for _, d := range s.decks {
		if d.owner == userID {
			out[d.created.UTC().Format("2006-01-02")]++
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertBadges(ctx context.Context, seeds []achievements.BadgeSeed) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	out := make(map[string]string, len(seeds))
	for _, seed := range seeds {
		id, ok := s.badges[seed.Key]
		if !ok {
			id = "badge-" + strings.ReplaceAll(seed.Key, "_", "-")
			s.badges[seed.Key] = id
		}
		out[seed.Key] = id
	}
	return out, nil
}

func (s *fakeStore) ListAwards(ctx context.Context, userID string, badgeIDs []string) ([]achievements.Award, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUser(userID); err != nil {
		return nil, err
	}
	var out []achievements.Award
	for _, id := range badgeIDs {
		if at, ok := s.awards[userID][id]; ok {
			out = append(out, achievements.Award{UserID: userID, BadgeID: id, AwardedAt: at})
		}
	}
	return out, nil
}

func (s *fakeStore) InsertAwards(ctx context.Context, awards []achievements.Award) ([]achievements.Award, error) {
	if s.beforeInsert != nil {
		s.beforeInsert(s, awards)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted []achievements.Award
	for _, a := range awards {
		if s.awards[a.UserID] == nil {
			s.awards[a.UserID] = map[string]time.Time{}
		}
		if _, dup := s.awards[a.UserID][a.BadgeID]; dup {
			continue
		}
		s.awards[a.UserID][a.BadgeID] = a.AwardedAt
		inserted = append(inserted, a)
	}
	return inserted, nil
}

func (s *fakeStore) DeleteAwards(ctx context.Context, userID string, badgeIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range badgeIDs {
		delete(s.awards[userID], id)
	}
	return nil
}

func (s *fakeStore) AchievementXP(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUser(userID); err != nil {
		return 0, err
	}
	return s.users[userID].xp, nil
}

func (s *fakeStore) SetAchievementXP(ctx context.Context, userID string, xp int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUser(userID); err != nil {
		return err
	}
	s.setXPCalls++
	s.users[userID].xp = xp
	return nil
}

func (s *fakeStore) ListUserIDs(ctx context.Context, f achievements.UserFilter) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wantID := map[string]bool{}
	for _, id := range f.IDs {
		wantID[id] = true
	}
	wantEmail := map[string]bool{}
	for _, e := range f.Emails {
		wantEmail[e] = true
	}
	var ids []string
	for id, u := range s.users {
		if len(wantID) == 0 && len(wantEmail) == 0 || wantID[id] || wantEmail[u.email] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func constructed(userID, deckID, outcome string) fakeLog {
	return fakeLog{userID: userID, rec: achievements.LogRecord{
		Format: achievements.FormatConstructed, Outcome: outcome, DeckID: deckID,
	}}
}

func liveDraft(userID, outcome string, elements ...string) fakeLog {
	return fakeLog{userID: userID, rec: achievements.LogRecord{
		Format: achievements.FormatLiveDraft, Outcome: outcome, Elements: elements,
	}}
}
