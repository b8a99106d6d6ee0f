// Package correlation builds lookups from source identity to target identity by
// scanning a target collection once per phase.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/varunnayak/stripe-migrate/internal/platform"
	"go.uber.org/zap"
)

// Correlation tags written onto every entity the migration creates.
const (
	TagPrice         = "source_price_id"
	TagPromotionCode = "source_promotion_code_id"
	TagSubscription  = "source_subscription_id"
)

var ErrIndexBuild = errors.New("correlation_index_build_failed")

// Strategy decides how a target entity advertises the source entity it stands for,
// and which key a source entity is looked up by.
type Strategy[T platform.Object] struct {
	Name string
	// TagKey is set for tag strategies; creators must write it onto new entities.
	TagKey string
	// TargetKey extracts the correlation key from a listed target entity.
	TargetKey func(T) (string, bool)
	// SourceKey extracts the correlation key from a source entity.
	SourceKey func(T) string
}

// Tag correlates through a metadata entry holding the source identifier.
func Tag[T platform.Object](key string) Strategy[T] {
	return Strategy[T]{
		Name:   "tag:" + key,
		TagKey: key,
		TargetKey: func(item T) (string, bool) {
			v, ok := item.ObjectMetadata()[key]
			return v, ok && v != ""
		},
		SourceKey: func(item T) string { return item.ObjectID() },
	}
}

// PortableID correlates by identifiers reused verbatim between accounts.
func PortableID[T platform.Object]() Strategy[T] {
	id := func(item T) string { return item.ObjectID() }
	return Strategy[T]{
		Name:      "id",
		TargetKey: func(item T) (string, bool) { return id(item), id(item) != "" },
		SourceKey: id,
	}
}

// NaturalKey correlates by a field that is unique on the platform, regardless of
// whether the target entity was ever migrated. normalize maps values to the form
// the platform compares for uniqueness; nil compares them verbatim.
func NaturalKey[T platform.Object](name string, field func(T) string, normalize func(string) string) Strategy[T] {
	key := field
	if normalize != nil {
		key = func(item T) string { return normalize(field(item)) }
	}
	return Strategy[T]{
		Name: "natural:" + name,
		TargetKey: func(item T) (string, bool) {
			v := key(item)
			return v, v != ""
		},
		SourceKey: key,
	}
}

// Index maps correlation keys to target identifiers. An entry with an empty
// target identifier is pending: a dry run decided it would be created.
type Index struct {
	kind     platform.Kind
	strategy string
	entries  map[string]string
	dupes    int
}

// New returns an empty index.
func New(kind platform.Kind, strategy string) *Index {
	return &Index{kind: kind, strategy: strategy, entries: map[string]string{}}
}

// Build lists the target collection once and indexes every entity the strategy
// recognises. The first entity seen for a key wins; later ones are logged.
// A listing failure fails the build.
func Build[T platform.Object](ctx context.Context, log *zap.Logger, kind platform.Kind, items iter.Seq2[T, error], strategy Strategy[T]) (*Index, error) {
	idx := New(kind, strategy.Name)
	scanned := 0
	for item, err := range items {
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %w", ErrIndexBuild, kind, err)
		}
		scanned++
		key, ok := strategy.TargetKey(item)
		if !ok {
			continue
		}
		if existing, found := idx.entries[key]; found {
			idx.dupes++
			log.Warn("duplicate correlation key in target, keeping first",
				zap.String("kind", string(kind)),
				zap.String("strategy", strategy.Name),
				zap.String("key", key),
				zap.String("kept_target_id", existing),
				zap.String("ignored_target_id", item.ObjectID()),
			)
			continue
		}
		idx.entries[key] = item.ObjectID()
	}
	log.Info("correlation index built",
		zap.String("kind", string(kind)),
		zap.String("strategy", strategy.Name),
		zap.Int("scanned", scanned),
		zap.Int("entries", len(idx.entries)),
		zap.Int("duplicates", idx.dupes),
	)
	return idx, nil
}

// Lookup returns the target identifier recorded for key.
func (i *Index) Lookup(key string) (string, bool) {
	id, ok := i.entries[key]
	return id, ok
}

// Add records a freshly created target entity. Existing entries are kept.
func (i *Index) Add(key, targetID string) {
	if key == "" {
		return
	}
	if existing, ok := i.entries[key]; ok && existing != "" {
		return
	}
	i.entries[key] = targetID
}

// AddPending records that key would be created by this (simulated) run.
func (i *Index) AddPending(key string) {
	if key == "" {
		return
	}
	if _, ok := i.entries[key]; ok {
		return
	}
	i.entries[key] = ""
}

func (i *Index) Kind() platform.Kind { return i.kind }

func (i *Index) Strategy() string { return i.strategy }

func (i *Index) Len() int { return len(i.entries) }

// Duplicates is the number of target entities ignored because their key was already indexed.
func (i *Index) Duplicates() int { return i.dupes }
