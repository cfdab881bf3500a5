// Package catalog holds the result and statistics types returned by the
// entity store.
package catalog

import (
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
)

// FindResult is one page of a find query.
type FindResult struct {
	Items   []types.Entity
	Count   int
	Page    int
	PerPage int
}

// CacheStats summarizes the contents of a store's identity map.
type CacheStats struct {
	TotalEntries int
	ByType       map[string]int
	ExpiredCount int
}

// PopulateStats reports what a populate-and-filter pass had to fetch.
type PopulateStats struct {
	TotalCached      int
	NeededPopulation int
	PopulatedFields  []string
	Matches          int
	CacheHitRate     float64
}

// EntityStream delivers entities lazily. The producer closes Found when it
// is done; Err reports the failure, if any, once Found is drained.
type EntityStream struct {
	Found chan types.Entity

	err error
}

// NewEntityStream returns a stream ready for a single producer.
func NewEntityStream() *EntityStream {
	return &EntityStream{Found: make(chan types.Entity)}
}

// Fail records the terminal error. Must be called by the producer before
// closing Found.
func (s *EntityStream) Fail(err error) {
	s.err = err
}

// Err returns the error that terminated the stream, if any. Valid after
// Found is closed.
func (s *EntityStream) Err() error {
	return s.err
}
