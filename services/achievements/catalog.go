// Package achievements computes achievement unlocks and achievement XP from a
// user's game-log and deck history.
//
// The package has three parts: the rule catalog (this file), the metrics
// aggregator (metrics.go) and the award engine (engine.go). Persistence is
// reached only through the Store interface.
package achievements

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Rarity is the tier of an achievement. Each rarity maps to a fixed XP value.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

var rarityXP = map[Rarity]int{
	RarityCommon:    5,
	RarityUncommon:  10,
	RarityRare:      20,
	RarityEpic:      35,
	RarityLegendary: 50,
}

var rarityColor = map[Rarity]string{
	RarityCommon:    "#9e9e9e",
	RarityUncommon:  "#4caf50",
	RarityRare:      "#2196f3",
	RarityEpic:      "#9c27b0",
	RarityLegendary: "#ff9800",
}

// XPForRarity returns the XP reward for a rarity. Unknown rarities are worth 0.
func XPForRarity(r Rarity) int {
	return rarityXP[r]
}

// Element is one of the five card elements tracked per log.
type Element string

const (
	ElementFire  Element = "Fire"
	ElementWater Element = "Water"
	ElementEarth Element = "Earth"
	ElementAir   Element = "Air"
	ElementVoid  Element = "Void"
)

// Elements lists every tracked element in display order.
var Elements = []Element{ElementFire, ElementWater, ElementEarth, ElementAir, ElementVoid}

var elementStyle = map[Element]struct{ icon, color string }{
	ElementFire:  {"🔥", "#e4572e"},
	ElementWater: {"💧", "#2e86de"},
	ElementEarth: {"🪨", "#8d6e63"},
	ElementAir:   {"🌪️", "#9ad1d4"},
	ElementVoid:  {"🌑", "#5e4b8b"},
}

// ParseElement matches a free-form element name against the tracked set.
func ParseElement(name string) (Element, bool) {
	name = strings.TrimSpace(name)
	for _, e := range Elements {
		if strings.EqualFold(name, string(e)) {
			return e, true
		}
	}
	return "", false
}

// CriteriaKind selects which metric a Criteria compares against.
type CriteriaKind string

const (
	CriteriaTotalLogs       CriteriaKind = "total_logs"
	CriteriaWins            CriteriaKind = "wins"
	CriteriaConstructedLogs CriteriaKind = "constructed_logs"
	CriteriaLiveDraftLogs   CriteriaKind = "live_draft_logs"
	CriteriaPublicLogs      CriteriaKind = "public_logs"
	CriteriaMVPLogs         CriteriaKind = "mvp_logs"
	CriteriaElementLogs     CriteriaKind = "element_logs"
	CriteriaElementWins     CriteriaKind = "element_wins"
)

// Criteria is a threshold on one metric. Element is only set for the two
// element kinds.
type Criteria struct {
	Kind    CriteriaKind `json:"kind"`
	Count   int          `json:"count"`
	Element Element      `json:"element,omitempty"`
}

// MeetsCriteria reports whether the metrics satisfy c. Element counters are
// compared unrounded.
func MeetsCriteria(c Criteria, m Metrics) bool {
	n := int64(c.Count)
	switch c.Kind {
	case CriteriaTotalLogs:
		return m.TotalLogs >= n
	case CriteriaWins:
		return m.Wins >= n
	case CriteriaConstructedLogs:
		return m.ConstructedLogs >= n
	case CriteriaLiveDraftLogs:
		return m.LiveDraftLogs >= n
	case CriteriaPublicLogs:
		return m.PublicLogs >= n
	case CriteriaMVPLogs:
		return m.MVPLogs >= n
	case CriteriaElementLogs:
		return m.ElementLogs[c.Element] >= float64(c.Count)
	case CriteriaElementWins:
		return m.ElementWins[c.Element] >= float64(c.Count)
	}
	return false
}

// Definition is a single achievement. Definitions sharing a SeriesKey form a
// chain ordered by Tier.
type Definition struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Rarity      Rarity   `json:"rarity"`
	Criteria    Criteria `json:"criteria"`
	SeriesKey   string   `json:"series_key,omitempty"`
	Tier        int      `json:"tier,omitempty"`
	Icon        string   `json:"icon"`
	Color       string   `json:"color"`
}

// XP returns the reward for unlocking d.
func (d Definition) XP() int {
	return XPForRarity(d.Rarity)
}

// Chained reports whether d belongs to a series.
func (d Definition) Chained() bool {
	return d.SeriesKey != ""
}

// Catalog is an immutable, ordered set of definitions.
type Catalog struct {
	defs  []Definition
	byKey map[string]int
}

// NewCatalog builds a catalog from defs, preserving order. Later duplicates of
// a key are kept in the list but Lookup returns the first; Validate reports them.
func NewCatalog(defs []Definition) *Catalog {
	c := &Catalog{
		defs:  append([]Definition(nil), defs...),
		byKey: make(map[string]int, len(defs)),
	}
	for i, d := range c.defs {
		if _, dup := c.byKey[d.Key]; !dup {
			c.byKey[d.Key] = i
		}
	}
	return c
}

var defaultCatalog = NewCatalog(buildDefinitions())

// DefaultCatalog returns the built-in achievement catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Definitions returns a copy of the catalog in order.
func (c *Catalog) Definitions() []Definition {
	return append([]Definition(nil), c.defs...)
}

func (c *Catalog) Len() int {
	return len(c.defs)
}

func (c *Catalog) Lookup(key string) (Definition, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Keys returns every key in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.defs))
	for i, d := range c.defs {
		keys[i] = d.Key
	}
	return keys
}

// XPFor sums the XP of the given keys. Keys not in the catalog add nothing.
func (c *Catalog) XPFor(keys map[string]bool) int {
	total := 0
	for key, ok := range keys {
		if !ok {
			continue
		}
		if d, found := c.Lookup(key); found {
			total += d.XP()
		}
	}
	return total
}

// Series groups chained definitions by series key, each sorted by tier.
func (c *Catalog) Series() map[string][]Definition {
	series := make(map[string][]Definition)
	for _, d := range c.defs {
		if d.Chained() {
			series[d.SeriesKey] = append(series[d.SeriesKey], d)
		}
	}
	for _, tiers := range series {
		sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Tier < tiers[j].Tier })
	}
	return series
}

// Validate checks catalog authoring rules: unique keys, known rarities, and
// within each series unique tiers, one criteria kind and strictly increasing
// thresholds.
func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.defs))
	for _, d := range c.defs {
		if d.Key == "" {
			errs = append(errs, errors.New("definition with empty key"))
			continue
		}
		if seen[d.Key] {
			errs = append(errs, fmt.Errorf("duplicate key %q", d.Key))
		}
		seen[d.Key] = true
		if _, ok := rarityXP[d.Rarity]; !ok {
			errs = append(errs, fmt.Errorf("%s: unknown rarity %q", d.Key, d.Rarity))
		}
	}

	for seriesKey, tiers := range c.Series() {
		for i := 1; i < len(tiers); i++ {
			prev, cur := tiers[i-1], tiers[i]
			if cur.Tier == prev.Tier {
				errs = append(errs, fmt.Errorf("series %s: duplicate tier %d", seriesKey, cur.Tier))
			}
			if cur.Criteria.Kind != prev.Criteria.Kind || cur.Criteria.Element != prev.Criteria.Element {
				errs = append(errs, fmt.Errorf("series %s: mixed criteria at tier %d", seriesKey, cur.Tier))
			}
			if cur.Criteria.Count <= prev.Criteria.Count {
				errs = append(errs, fmt.Errorf("series %s: tier %d threshold %d not above tier %d threshold %d",
					seriesKey, cur.Tier, cur.Criteria.Count, prev.Tier, prev.Criteria.Count))
			}
		}
	}
	return errors.Join(errs...)
}

// ─── Built-in definitions ───────────────────────────────────────────────────

func standalone(key, title, desc, icon string, rarity Rarity, kind CriteriaKind, count int) Definition {
	return Definition{
		Key:         key,
		Title:       title,
		Description: desc,
		Rarity:      rarity,
		Criteria:    Criteria{Kind: kind, Count: count},
		Icon:        icon,
		Color:       rarityColor[rarity],
	}
}

type chainTier struct {
	count  int
	rarity Rarity
}

func chain(seriesKey, keyPrefix, title, descFormat, icon string, kind CriteriaKind, tiers ...chainTier) []Definition {
	defs := make([]Definition, 0, len(tiers))
	for i, t := range tiers {
		defs = append(defs, Definition{
			Key:         fmt.Sprintf("%s_%d", keyPrefix, t.count),
			Title:       fmt.Sprintf("%s %s", title, tierLabels[i]),
			Description: fmt.Sprintf(descFormat, t.count),
			Rarity:      t.rarity,
			Criteria:    Criteria{Kind: kind, Count: t.count},
			SeriesKey:   seriesKey,
			Tier:        i + 1,
			Icon:        icon,
			Color:       rarityColor[t.rarity],
		})
	}
	return defs
}

var tierLabels = []string{"I", "II", "III", "IV"}

// Element chains share thresholds; rarities differ between played and wins.
var (
	elementThresholds    = []int{5, 10, 25, 50}
	elementPlayedRarity  = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic}
	elementWinsRarity    = []Rarity{RarityUncommon, RarityRare, RarityEpic, RarityLegendary}
	elementChainVariants = []struct {
		name     string
		title    string
		verb     string
		kind     CriteriaKind
		rarities []Rarity
	}{
		{"played", "Adept", "Log", CriteriaElementLogs, elementPlayedRarity},
		{"wins", "Champion", "Win", CriteriaElementWins, elementWinsRarity},
	}
)

// elementChains generates one four-tier chain per (element, played|wins).
func elementChains() []Definition {
	defs := make([]Definition, 0, len(Elements)*len(elementChainVariants)*len(elementThresholds))
	for _, el := range Elements {
		style := elementStyle[el]
		slug := strings.ToLower(string(el))
		for _, v := range elementChainVariants {
			seriesKey := slug + "_" + v.name
			for i, threshold := range elementThresholds {
				defs = append(defs, Definition{
					Key:         fmt.Sprintf("%s_%d", seriesKey, threshold),
					Title:       fmt.Sprintf("%s %s %s", el, v.title, tierLabels[i]),
					Description: fmt.Sprintf("%s %d games with %s", v.verb, threshold, el),
					Rarity:      v.rarities[i],
					Criteria:    Criteria{Kind: v.kind, Count: threshold, Element: el},
					SeriesKey:   seriesKey,
					Tier:        i + 1,
					Icon:        style.icon,
					Color:       style.color,
				})
			}
		}
	}
	return defs
}

func buildDefinitions() []Definition {
	defs := []Definition{
		standalone("first_log", "First Log", "Record your first game", "📝", RarityRare, CriteriaTotalLogs, 1),
		standalone("constructed_debut", "Constructed Debut", "Log a constructed game", "🃏", RarityCommon, CriteriaConstructedLogs, 1),
		standalone("live_draft_debut", "Draft Debut", "Log a live draft game", "🎲", RarityCommon, CriteriaLiveDraftLogs, 1),
		standalone("first_win", "First Victory", "Win a logged game", "🏆", RarityEpic, CriteriaWins, 1),
		standalone("first_public_log", "Open Book", "Share a public game log", "📢", RarityCommon, CriteriaPublicLogs, 1),
		standalone("first_mvp", "Standout Card", "Name an MVP card in a log", "⭐", RarityUncommon, CriteriaMVPLogs, 1),
		standalone("constructed_regular", "Constructed Regular", "Log 25 constructed games", "🗂️", RarityUncommon, CriteriaConstructedLogs, 25),
		standalone("draft_regular", "Draft Regular", "Log 25 live draft games", "📦", RarityUncommon, CriteriaLiveDraftLogs, 25),
	}

	defs = append(defs, chain("logbook", "logs", "Logbook", "Record %d games", "📚", CriteriaTotalLogs,
		chainTier{10, RarityCommon}, chainTier{25, RarityUncommon}, chainTier{50, RarityRare}, chainTier{100, RarityEpic})...)
	defs = append(defs, chain("victories", "wins", "Victor", "Win %d games", "🥇", CriteriaWins,
		chainTier{5, RarityUncommon}, chainTier{10, RarityRare}, chainTier{25, RarityEpic}, chainTier{50, RarityLegendary})...)
	defs = append(defs, chain("showcase", "public", "Showcase", "Share %d public game logs", "🪧", CriteriaPublicLogs,
		chainTier{10, RarityUncommon}, chainTier{50, RarityRare})...)
	defs = append(defs, chain("mvp_hunter", "mvp", "MVP Hunter", "Name an MVP card in %d logs", "🌟", CriteriaMVPLogs,
		chainTier{5, RarityRare}, chainTier{25, RarityEpic})...)

	return append(defs, elementChains()...)
}
