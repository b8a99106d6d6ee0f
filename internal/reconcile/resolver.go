package reconcile

import (
	"errors"
	"fmt"

	"github.com/varunnayak/stripe-migrate/internal/correlation"
	"github.com/varunnayak/stripe-migrate/internal/platform"
)

var ErrMissingMapping = errors.New("missing_mapping")

// MissingMappingError reports a foreign key with no known target-side counterpart.
type MissingMappingError struct {
	Kind     platform.Kind
	SourceID string
}

func (e *MissingMappingError) Error() string {
	return fmt.Sprintf("%s: no target %s for source %s", ErrMissingMapping, e.Kind, e.SourceID)
}

func (e *MissingMappingError) Is(target error) bool {
	return target == ErrMissingMapping
}

// Resolver maps source foreign keys to target identifiers through already built
// correlation indices. It never performs I/O.
type Resolver struct {
	indices map[platform.Kind]*correlation.Index
}

func NewResolver(indices ...*correlation.Index) *Resolver {
	r := &Resolver{indices: map[platform.Kind]*correlation.Index{}}
	for _, idx := range indices {
		r.Register(idx)
	}
	return r
}

// Register makes idx the mapping used for its kind.
func (r *Resolver) Register(idx *correlation.Index) {
	if idx == nil {
		return
	}
	r.indices[idx.Kind()] = idx
}

// Resolve returns the target identifier for sourceID. During a dry run the
// identifier of an entity that would be created is empty with a nil error.
func (r *Resolver) Resolve(kind platform.Kind, sourceID string) (string, error) {
	idx, ok := r.indices[kind]
	if !ok {
		return "", &MissingMappingError{Kind: kind, SourceID: sourceID}
	}
	id, ok := idx.Lookup(sourceID)
	if !ok {
		return "", &MissingMappingError{Kind: kind, SourceID: sourceID}
	}
	return id, nil
}

// ResolveAll resolves every identifier and reports all missing mappings at once.
// On error the returned slice is nil: callers must not substitute partial results.
func (r *Resolver) ResolveAll(kind platform.Kind, sourceIDs []string) ([]string, error) {
	out := make([]string, 0, len(sourceIDs))
	var missing []error
	for _, id := range sourceIDs {
		target, err := r.Resolve(kind, id)
		if err != nil {
			missing = append(missing, err)
			continue
		}
		out = append(out, target)
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}
	return out, nil
}
