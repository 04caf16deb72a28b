// Package mongostore keeps decks, logs and achievements in MongoDB. It is the
// document-store alternative to the gorm Store and serves the same
// operations.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"deckhub/models"
	"deckhub/services/achievements"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colUsers      = "users"
	colDecks      = "decks"
	colDeckLikes  = "deck_likes"
	colGameLogs   = "game_logs"
	colBadges     = "badges"
	colUserBadges = "user_badges"

	duplicateKeyCode = 11000
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, pings the server and ensures indexes on database name.
func Connect(ctx context.Context, uri, name string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, db: client.Database(name)}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	log.Printf("✅ mongo database %q connected", name)
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	log.Println("Database connection closed")
	return nil
}

// EnsureIndexes creates the unique and lookup indexes. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
		},
		colBadges: {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: unique},
		},
		colUserBadges: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "badgeId", Value: 1}}, Options: unique},
		},
		colDeckLikes: {
			{Keys: bson.D{{Key: "deckId", Value: 1}, {Key: "userId", Value: 1}}, Options: unique},
		},
		colDecks: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		colGameLogs: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isSeed", Value: 1}, {Key: "format", Value: 1}}},
		},
	}

	for col, idx := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", col, err)
		}
	}
	return nil
}

func logFilter(userID string, f achievements.LogFilter) bson.M {
	filter := bson.M{
		"userId": userID,
		"isSeed": bson.M{"$ne": true},
	}
	if f.Format != "" {
		filter["format"] = f.Format
	}
	if f.Outcome != "" {
		filter["outcome"] = f.Outcome
	}
	if f.PublicOnly {
		filter["isPublic"] = true
	}
	if f.WithMVP {
		filter["mvpCardId"] = bson.M{"$nin": bson.A{nil, ""}}
	}
	return filter
}

func (s *Store) CountLogs(ctx context.Context, userID string, f achievements.LogFilter) (int64, error) {
	n, err := s.db.Collection(colGameLogs).CountDocuments(ctx, logFilter(userID, f))
	if err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return n, nil
}

func (s *Store) ListLogs(ctx context.Context, userID string) ([]achievements.LogRecord, error) {
	opts := options.Find().
		SetProjection(bson.M{"format": 1, "outcome": 1, "elements": 1, "deckId": 1, "deckUrl": 1}).
		SetSort(bson.D{{Key: "playedAt", Value: 1}})

	cur, err := s.db.Collection(colGameLogs).Find(ctx, logFilter(userID, achievements.LogFilter{}), opts)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	var logs []models.GameLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
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

	opts := options.Find().SetProjection(bson.M{"elements": 1})
	cur, err := s.db.Collection(colDecks).Find(ctx, bson.M{"_id": bson.M{"$in": deckIDs}}, opts)
	if err != nil {
		return nil, fmt.Errorf("load deck elements: %w", err)
	}
	var decks []models.Deck
	if err := cur.All(ctx, &decks); err != nil {
		return nil, fmt.Errorf("decode decks: %w", err)
	}
	for _, d := range decks {
		out[d.ID] = d.Elements
	}
	return out, nil
}

func (s *Store) LikesReceived(ctx context.Context, userID string) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         colDecks,
			"localField":   "deckId",
			"foreignField": "_id",
			"as":           "deck",
		}}},
		{{Key: "$match", Value: bson.M{"deck.userId": userID}}},
		{{Key: "$count", Value: "n"}},
	}

	cur, err := s.db.Collection(colDeckLikes).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	var rows []struct {
		N int64 `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode like count: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].N, nil
}

func (s *Store) DecksCreatedPerDay(ctx context.Context, userID string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format":   "%Y-%m-%d",
				"date":     "$createdAt",
				"timezone": "UTC",
			}},
			"n": bson.M{"$sum": 1},
		}}},
	}

	cur, err := s.db.Collection(colDecks).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("group decks per day: %w", err)
	}
	var rows []struct {
		Day string `bson:"_id"`
		N   int64  `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode deck days: %w", err)
	}

	perDay := make(map[string]int64, len(rows))
	for _, r := range rows {
		perDay[r.Day] = r.N
	}
	return perDay, nil
}

func (s *Store) UpsertBadges(ctx context.Context, seeds []achievements.BadgeSeed) (map[string]string, error) {
	if len(seeds) == 0 {
		return map[string]string{}, nil
	}

	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(seeds))
	keys := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"key": seed.Key}).
			SetUpdate(bson.M{
				"$set": bson.M{
					"type":        models.BadgeTypeAchievement,
					"title":       seed.Title,
					"description": seed.Description,
					"icon":        seed.Icon,
					"color":       seed.Color,
					"updatedAt":   now,
				},
				"$setOnInsert": bson.M{"_id": uuid.NewString(), "createdAt": now},
			}).
			SetUpsert(true))
		keys = append(keys, seed.Key)
	}

	if _, err := s.db.Collection(colBadges).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return nil, fmt.Errorf("upsert badges: %w", err)
	}

	cur, err := s.db.Collection(colBadges).Find(ctx,
		bson.M{"key": bson.M{"$in": keys}},
		options.Find().SetProjection(bson.M{"key": 1}))
	if err != nil {
		return nil, fmt.Errorf("load badge ids: %w", err)
	}
	var stored []models.Badge
	if err := cur.All(ctx, &stored); err != nil {
		return nil, fmt.Errorf("decode badges: %w", err)
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

	cur, err := s.db.Collection(colUserBadges).Find(ctx, bson.M{
		"userId":  userID,
		"badgeId": bson.M{"$in": badgeIDs},
	})
	if err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}
	var rows []models.UserBadge
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode awards: %w", err)
	}

	awards := make([]achievements.Award, 0, len(rows))
	for _, r := range rows {
		awards = append(awards, achievements.Award{UserID: r.UserID, BadgeID: r.BadgeID, AwardedAt: r.AwardedAt})
	}
	return awards, nil
}

// InsertAwards writes unordered so a duplicate (user, badge) only rejects
// that document.
func (s *Store) InsertAwards(ctx context.Context, awards []achievements.Award) ([]achievements.Award, error) {
	if len(awards) == 0 {
		return nil, nil
	}

	docs := make([]interface{}, 0, len(awards))
	for _, a := range awards {
		docs = append(docs, models.UserBadge{
			ID:        uuid.NewString(),
			UserID:    a.UserID,
			BadgeID:   a.BadgeID,
			AwardedAt: a.AwardedAt,
		})
	}

	_, err := s.db.Collection(colUserBadges).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return awards, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
		return nil, fmt.Errorf("insert awards: %w", err)
	}
	skipped := make(map[int]bool, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return nil, fmt.Errorf("insert awards: %w", err)
		}
		skipped[we.Index] = true
	}

	inserted := make([]achievements.Award, 0, len(awards)-len(skipped))
	for i, a := range awards {
		if !skipped[i] {
			inserted = append(inserted, a)
		}
	}
	return inserted, nil
}

func (s *Store) DeleteAwards(ctx context.Context, userID string, badgeIDs []string) error {
	if len(badgeIDs) == 0 {
		return nil
	}
	_, err := s.db.Collection(colUserBadges).DeleteMany(ctx, bson.M{
		"userId":  userID,
		"badgeId": bson.M{"$in": badgeIDs},
	})
	if err != nil {
		return fmt.Errorf("delete awards: %w", err)
	}
	return nil
}

func (s *Store) AchievementXP(ctx context.Context, userID string) (int, error) {
	var user models.User
	err := s.db.Collection(colUsers).FindOne(ctx,
		bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{"achievementXp": 1}),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, achievements.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load achievement xp: %w", err)
	}
	return user.AchievementXP, nil
}

func (s *Store) SetAchievementXP(ctx context.Context, userID string, xp int) error {
	res, err := s.db.Collection(colUsers).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"achievementXp": xp, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("set achievement xp: %w", err)
	}
	if res.MatchedCount == 0 {
		return achievements.ErrUserNotFound
	}
	return nil
}

func (s *Store) ListUserIDs(ctx context.Context, f achievements.UserFilter) ([]string, error) {
	filter := bson.M{}
	var or bson.A
	if len(f.IDs) > 0 {
		or = append(or, bson.M{"_id": bson.M{"$in": f.IDs}})
	}
	if len(f.Emails) > 0 {
		or = append(or, bson.M{"email": bson.M{"$in": f.Emails}})
	}
	if len(or) > 0 {
		filter["$or"] = or
	}

	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.db.Collection(colUsers).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	if _, err := s.db.Collection(colUsers).InsertOne(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) CreateGameLog(ctx context.Context, gameLog *models.GameLog) error {
	if gameLog.ID == "" {
		gameLog.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if gameLog.PlayedAt.IsZero() {
		gameLog.PlayedAt = now
	}
	gameLog.CreatedAt = now

	if _, err := s.db.Collection(colGameLogs).InsertOne(ctx, gameLog); err != nil {
		return fmt.Errorf("create game log: %w", err)
	}
	return nil
}

func (s *Store) CreateDeck(ctx context.Context, deck *models.Deck) error {
	if deck.ID == "" {
		deck.ID = uuid.NewString()
	}
	if deck.Format == "" {
		deck.Format = models.FormatConstructed
	}
	now := time.Now().UTC()
	deck.CreatedAt, deck.UpdatedAt = now, now

	if _, err := s.db.Collection(colDecks).InsertOne(ctx, deck); err != nil {
		return fmt.Errorf("create deck: %w", err)
	}
	return nil
}

// ToggleLike flips the caller's like without a transaction. A concurrent
// duplicate insert resolves to liked.
func (s *Store) ToggleLike(ctx context.Context, deckID, userID string) (bool, string, error) {
	var deck models.Deck
	err := s.db.Collection(colDecks).FindOne(ctx,
		bson.M{"_id": deckID},
		options.FindOne().SetProjection(bson.M{"userId": 1}),
	).Decode(&deck)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, "", models.ErrDeckNotFound
	}
	if err != nil {
		return false, "", fmt.Errorf("load deck: %w", err)
	}

	likes := s.db.Collection(colDeckLikes)
	res, err := likes.DeleteOne(ctx, bson.M{"deckId": deckID, "userId": userID})
	if err != nil {
		return false, "", fmt.Errorf("remove like: %w", err)
	}
	if res.DeletedCount > 0 {
		return false, deck.UserID, nil
	}

	_, err = likes.InsertOne(ctx, models.DeckLike{
		ID:        uuid.NewString(),
		DeckID:    deckID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, "", fmt.Errorf("add like: %w", err)
	}
	return true, deck.UserID, nil
}
