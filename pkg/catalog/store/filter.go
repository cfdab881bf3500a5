package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mediagraph/catalog-client/pkg/catalog"
	"github.com/mediagraph/catalog-client/pkg/catalog/entities"
	"github.com/mediagraph/catalog-client/pkg/catalog/errors"
	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
)

// FilterStrict evaluates pred over the cached entities of a type, failing
// with a MissingFieldsError naming the first entity that lacks any of the
// required field paths. No transport call is ever made.
func (s *Store) FilterStrict(typeName string, required []string, pred func(types.Entity) bool) ([]types.Entity, error) {
	candidates, _, err := s.partitionByMissing(typeName, required)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		if len(c.missing) > 0 {
			return nil, errors.NewMissingFieldsError(typeName, c.entity.ID(), c.missing)
		}
	}

	matches := make([]types.Entity, 0, len(candidates))
	for _, c := range candidates {
		if pred(c.entity) {
			matches = append(matches, c.entity)
		}
	}
	return matches, nil
}

// FilterPopulate is FilterPopulateStats without the statistics.
func (s *Store) FilterPopulate(ctx context.Context, typeName string, required []string, pred func(types.Entity) bool, batch int) ([]types.Entity, error) {
	matches, _, err := s.FilterPopulateStats(ctx, typeName, required, pred, batch)
	return matches, err
}

// FilterPopulateStats evaluates pred over the cached entities of a type,
// first fetching the missing required fields of each lacking entity in
// concurrency-limited batches.
func (s *Store) FilterPopulateStats(ctx context.Context, typeName string, required []string, pred func(types.Entity) bool, batch int) ([]types.Entity, catalog.PopulateStats, error) {
	if batch < 1 {
		batch = 1
	}

	candidates, populatedFields, err := s.partitionByMissing(typeName, required)
	if err != nil {
		return nil, catalog.PopulateStats{}, err
	}

	needing := make([]entities.Model, 0)
	for _, c := range candidates {
		if len(c.missing) > 0 {
			needing = append(needing, c.entity)
		}
	}

	if len(needing) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batch)
		for _, m := range needing {
			g.Go(func() error {
				return s.Populate(gctx, m, required, false)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, catalog.PopulateStats{}, err
		}
	}

	stats := catalog.PopulateStats{
		TotalCached:      len(candidates),
		NeededPopulation: len(needing),
		PopulatedFields:  populatedFields,
	}
	if len(candidates) > 0 {
		stats.CacheHitRate = float64(len(candidates)-len(needing)) / float64(len(candidates))
	}

	matches := make([]types.Entity, 0, len(candidates))
	for _, c := range candidates {
		if pred(c.entity) {
			matches = append(matches, c.entity)
		}
	}
	stats.Matches = len(matches)

	return matches, stats, nil
}

// PopulatedFilterIter streams matches lazily: the cached entities are
// populated in sub-batches of populateBatch and evaluated in sub-batches of
// yieldBatch, so consumers can stop early without paying for the rest.
func (s *Store) PopulatedFilterIter(ctx context.Context, typeName string, required []string, pred func(types.Entity) bool, populateBatch, yieldBatch int) *catalog.EntityStream {
	stream := catalog.NewEntityStream()

	if populateBatch < 1 {
		populateBatch = 1
	}
	if yieldBatch < 1 {
		yieldBatch = 1
	}

	candidates, _, err := s.partitionByMissing(typeName, required)
	if err != nil {
		stream.Fail(err)
		close(stream.Found)
		return stream
	}

	go func() {
		defer close(stream.Found)

		for start := 0; start < len(candidates); start += populateBatch {
			end := min(start+populateBatch, len(candidates))
			chunk := candidates[start:end]

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(populateBatch)
			for _, c := range chunk {
				if len(c.missing) == 0 {
					continue
				}
				g.Go(func() error {
					return s.Populate(gctx, c.entity, required, false)
				})
			}
			if err := g.Wait(); err != nil {
				stream.Fail(err)
				return
			}

			for yieldStart := 0; yieldStart < len(chunk); yieldStart += yieldBatch {
				yieldEnd := min(yieldStart+yieldBatch, len(chunk))
				for _, c := range chunk[yieldStart:yieldEnd] {
					if !pred(c.entity) {
						continue
					}
					select {
					case stream.Found <- c.entity:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return stream
}

type filterCandidate struct {
	entity  entities.Model
	missing []string
}

// partitionByMissing snapshots the cached entities of a type together with
// the required paths each of them lacks. The lock is released before any
// predicate or transport work happens.
func (s *Store) partitionByMissing(typeName string, required []string) ([]filterCandidate, []string, error) {
	desc, ok := schema.Lookup(typeName)
	if !ok {
		return nil, nil, fmt.Errorf("unknown entity type %q", typeName)
	}

	requested, err := parsePaths(required)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	candidates := make([]filterCandidate, 0)
	union := newPathNode()

	for k, entry := range s.cache {
		if k.typeName != typeName || entry.expired(now) {
			continue
		}
		needed, err := missingLocked(entry.entity, desc, requested, false)
		if err != nil {
			return nil, nil, err
		}
		c := filterCandidate{entity: entry.entity}
		if !needed.empty() {
			c.missing = flattenPaths(needed)
			mergeNode(union, needed)
		}
		candidates = append(candidates, c)
	}

	return candidates, flattenPaths(union), nil
}
