// Package relationships declares the metadata that drives how a relationship
// field is read from payloads, written into mutation inputs, and mirrored on
// its in-memory inverse.
package relationships

import (
	"fmt"

	"github.com/mediagraph/catalog-client/pkg/catalog/types"
)

// Strategy selects how the inverse side of a relationship is read.
type Strategy string

const (
	// StrategyDirectField means the peer exposes the inverse as a list field
	// in its fragment.
	StrategyDirectField Strategy = "direct_field"
	// StrategyFilterQuery means the peer exposes only a count; reading the
	// full list requires a filter query against the owning id.
	StrategyFilterQuery Strategy = "filter_query"
	// StrategyComplexObject means the peer holds wrapper records carrying a
	// referent plus their own metadata fields.
	StrategyComplexObject Strategy = "complex_object"
)

// Metadata describes one relationship field of an owning entity type.
type Metadata struct {
	// TargetField is the key used in create/update input payloads. Empty
	// means the relationship is read-only and never written.
	TargetField string
	IsList      bool
	// Transform converts an in-memory referent (or wrapper) to its input
	// representation. Nil defaults to the referent's id.
	Transform func(any) (any, error)
	// QueryField is the key under which the relationship appears in read
	// payloads.
	QueryField string
	// PeerType is the peer entity type-name, or a declared interface name
	// for polymorphic fields.
	PeerType string
	// InverseQueryField is the field on the peer containing this owning
	// entity. Empty when the peer exposes only a filter or count, in which
	// case no inverse sync is ever attempted.
	InverseQueryField string
	Strategy          Strategy

	// The remaining fields apply to StrategyComplexObject only.

	// WrapperKey is the key of the nested entity record inside each wrapper
	// element of the payload.
	WrapperKey string
	// NewWrapper builds a wrapper value from a resolved referent and the
	// element's remaining metadata keys.
	NewWrapper func(ref types.Entity, meta map[string]any) (any, error)
	// WrapperRef extracts the referent from a wrapper value.
	WrapperRef func(w any) types.Entity
	// WrapperMeta extracts the wrapper's own metadata in a stable encoding,
	// used for snapshots.
	WrapperMeta func(w any) map[string]any
	// MetaFields lists the payload keys of the wrapper's metadata, used when
	// building field selections.
	MetaFields []string
}

// RefID is the default transform: an entity referent becomes its id.
func RefID(v any) (any, error) {
	e, ok := v.(types.Entity)
	if !ok {
		return nil, fmt.Errorf("relationships: expected an entity referent, got %T", v)
	}
	return e.ID(), nil
}
