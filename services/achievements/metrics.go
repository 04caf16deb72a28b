package achievements

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"
)

// MultiElementWeight is credited to each element of a log that names two or
// more tracked elements. It stays flat regardless of how many are named.
const MultiElementWeight = 0.5

// Metrics is the snapshot of derived counters that criteria are evaluated
// against. Element maps always contain every tracked element.
type Metrics struct {
	TotalLogs       int64               `json:"total_logs"`
	Wins            int64               `json:"wins"`
	ConstructedLogs int64               `json:"constructed_logs"`
	LiveDraftLogs   int64               `json:"live_draft_logs"`
	PublicLogs      int64               `json:"public_logs"`
	MVPLogs         int64               `json:"mvp_logs"`
	ElementLogs     map[Element]float64 `json:"element_logs"`
	ElementWins     map[Element]float64 `json:"element_wins"`
	LikesReceived   int64               `json:"likes_received"`
	DecksPerDay     map[string]int64    `json:"decks_per_day"`
}

// NewMetrics returns an all-zero snapshot.
func NewMetrics() Metrics {
	m := Metrics{
		ElementLogs: make(map[Element]float64, len(Elements)),
		ElementWins: make(map[Element]float64, len(Elements)),
		DecksPerDay: map[string]int64{},
	}
	for _, e := range Elements {
		m.ElementLogs[e] = 0
		m.ElementWins[e] = 0
	}
	return m
}

// ElementWeights returns the per-element credit for one log naming the given
// elements. Unknown names are ignored and repeats count once. One element gets
// weight 1; two or more get MultiElementWeight each.
func ElementWeights(names []string) map[Element]float64 {
	var relevant []Element
	seen := make(map[Element]bool, len(names))
	for _, name := range names {
		e, ok := ParseElement(name)
		if !ok || seen[e] {
			continue
		}
		seen[e] = true
		relevant = append(relevant, e)
	}

	switch len(relevant) {
	case 0:
		return nil
	case 1:
		return map[Element]float64{relevant[0]: 1}
	}
	weights := make(map[Element]float64, len(relevant))
	for _, e := range relevant {
		weights[e] = MultiElementWeight
	}
	return weights
}

// ParseDeckURL extracts the deck id from a deck link such as
// https://example.com/decks/<id> or /decks/<id>/edit.
func ParseDeckURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == "decks" && segments[i+1] != "" {
			return segments[i+1], true
		}
	}
	return "", false
}

func deckRef(l LogRecord) (string, bool) {
	if l.DeckID != "" {
		return l.DeckID, true
	}
	return ParseDeckURL(l.DeckURL)
}

// ComputeMetrics builds the metrics snapshot for one user. The independent
// counts run concurrently; deck elements for constructed logs are fetched in a
// single batch.
func ComputeMetrics(ctx context.Context, store Store, userID string) (Metrics, error) {
	m := NewMetrics()

	counts := []struct {
		name   string
		filter LogFilter
		dst    *int64
	}{
		{"total", LogFilter{}, &m.TotalLogs},
		{"wins", LogFilter{Outcome: OutcomeWin}, &m.Wins},
		{"constructed", LogFilter{Format: FormatConstructed}, &m.ConstructedLogs},
		{"live draft", LogFilter{Format: FormatLiveDraft}, &m.LiveDraftLogs},
		{"public", LogFilter{PublicOnly: true}, &m.PublicLogs},
		{"mvp", LogFilter{WithMVP: true}, &m.MVPLogs},
	}

	var (
		logs        []LogRecord
		decksPerDay map[string]int64
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counts {
		g.Go(func() error {
			n, err := store.CountLogs(gctx, userID, c.filter)
			if err != nil {
				return fmt.Errorf("count %s logs: %w", c.name, err)
			}
			*c.dst = n
			return nil
		})
	}
	g.Go(func() error {
		n, err := store.LikesReceived(gctx, userID)
		if err != nil {
			return fmt.Errorf("count likes received: %w", err)
		}
		m.LikesReceived = n
		return nil
	})
	g.Go(func() error {
		perDay, err := store.DecksCreatedPerDay(gctx, userID)
		if err != nil {
			return fmt.Errorf("count decks per day: %w", err)
		}
		decksPerDay = perDay
		return nil
	})
	g.Go(func() error {
		var err error
		logs, err = store.ListLogs(gctx, userID)
		if err != nil {
			return fmt.Errorf("list logs: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Metrics{}, err
	}
	for day, n := range decksPerDay {
		m.DecksPerDay[day] = n
	}

	var deckIDs []string
	wanted := make(map[string]bool)
	for _, l := range logs {
		if l.Format != FormatConstructed {
			continue
		}
		if id, ok := deckRef(l); ok && !wanted[id] {
			wanted[id] = true
			deckIDs = append(deckIDs, id)
		}
	}

	deckElements := map[string][]string{}
	if len(deckIDs) > 0 {
		var err error
		deckElements, err = store.DeckElements(ctx, deckIDs)
		if err != nil {
			return Metrics{}, fmt.Errorf("load deck elements: %w", err)
		}
	}

	for _, l := range logs {
		var names []string
		switch l.Format {
		case FormatConstructed:
			if id, ok := deckRef(l); ok {
				names = deckElements[id]
			}
		case FormatLiveDraft:
			names = l.Elements
		}
		for e, w := range ElementWeights(names) {
			m.ElementLogs[e] += w
			if l.Outcome == OutcomeWin {
				m.ElementWins[e] += w
			}
		}
	}

	return m, nil
}
