package achievements

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSrc []byte

//go:embed catalog.cue
var catalogSrc []byte

type Kind string

const (
	KindHabitCount       Kind = "habit_count"
	KindStreak           Kind = "streak"
	KindTotalCompletions Kind = "total_completions"
	KindPerfectDays      Kind = "perfect_days"
	KindPerfectWeek      Kind = "perfect_week"
	KindTimeOfDay        Kind = "time_of_day"
	KindCustom           Kind = "custom"
)

type Metric string

const (
	MetricEarlyBird Metric = "early_bird"
	MetricNightOwl  Metric = "night_owl"
	MetricComeback  Metric = "comeback"
	MetricLevel     Metric = "level"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Badge is a catalog entry: a requirement and the points it rewards.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
	Metric      Metric `json:"metric,omitempty"`
	Threshold   int    `json:"threshold"`
	Points      int    `json:"points"`
	Rarity      Rarity `json:"rarity"`
}

// Catalog is the static, versioned badge table.
type Catalog struct {
	Version string
	Badges  []Badge
	byID    map[string]Badge
}

// Get returns the badge with the given id.
func (c *Catalog) Get(id string) (Badge, bool) {
	b, ok := c.byID[id]
	return b, ok
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(catalogSrc)
})

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return loadDefault()
}

// MustDefault is Default for callers that cannot proceed without a catalog.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse validates a CUE catalog document against the badge schema and
// decodes it.
func Parse(src []byte) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile badge schema: %w", err)
	}

	value := ctx.CompileBytes(src, cue.Filename("catalog.cue"))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile badge catalog: %w", err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid badge catalog: %w", err)
	}

	var doc struct {
		Version string  `json:"version"`
		Badges  []Badge `json:"badges"`
	}
	if err := unified.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode badge catalog: %w", err)
	}

	c := &Catalog{
		Version: doc.Version,
		Badges:  doc.Badges,
		byID:    make(map[string]Badge, len(doc.Badges)),
	}
	for _, b := range doc.Badges {
		if _, dup := c.byID[b.ID]; dup {
			return nil, fmt.Errorf("duplicate badge id %q", b.ID)
		}
		switch b.Kind {
		case KindTimeOfDay:
			if b.Metric != MetricEarlyBird && b.Metric != MetricNightOwl {
				return nil, fmt.Errorf("badge %q: time_of_day requires metric early_bird or night_owl", b.ID)
			}
		case KindCustom:
			if b.Metric != MetricComeback && b.Metric != MetricLevel {
				return nil, fmt.Errorf("badge %q: custom requires metric comeback or level", b.ID)
			}
		}
		c.byID[b.ID] = b
	}
	return c, nil
}
