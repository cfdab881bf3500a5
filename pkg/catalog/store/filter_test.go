package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/matryer/is"

	catalogerrors "github.com/mediagraph/catalog-client/pkg/catalog/errors"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
	"github.com/mediagraph/catalog-client/pkg/datamodels/media"
)

func performerPayload(id string, extra map[string]any) map[string]any {
	payload := map[string]any{"__typename": "Performer", "id": id}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

func seedPerformers(t *testing.T, s *Store, withRating, withoutRating int) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < withRating; i++ {
		_, err := s.FromPayload(ctx, "Performer", performerPayload(
			fmt.Sprintf("%d", i+1),
			map[string]any{"name": fmt.Sprintf("rated-%d", i+1), "rating100": 50 + i*10},
		))
		if err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < withoutRating; i++ {
		_, err := s.FromPayload(ctx, "Performer", performerPayload(
			fmt.Sprintf("%d", 100+i),
			map[string]any{"name": fmt.Sprintf("unrated-%d", i+1)},
		))
		if err != nil {
			t.Fatal(err)
		}
	}
}

func ratedAbove(threshold int) func(types.Entity) bool {
	return func(e types.Entity) bool {
		rating, ok := e.(*media.Performer).Rating100.Get()
		return ok && rating >= threshold
	}
}

func TestFilterStrictNamesTheGap(t *testing.T) {
	is := is.New(t)
	s := New(newMockTransport())
	seedPerformers(t, s, 7, 3)

	_, err := s.FilterStrict("Performer", []string{"rating100"}, ratedAbove(0))

	is.True(err != nil)
	is.True(errors.Is(err, catalogerrors.ErrMissingFields))

	var missing *catalogerrors.MissingFieldsError
	is.True(errors.As(err, &missing))
	is.Equal(missing.TypeName, "Performer")
	is.True(missing.EntityID != "") // the offending entity is named
	is.Equal(missing.Fields, []string{"rating100"})
}

func TestFilterStrictPassesWhenAllFieldsPresent(t *testing.T) {
	is := is.New(t)
	s := New(newMockTransport())
	seedPerformers(t, s, 5, 0)

	matches, err := s.FilterStrict("Performer", []string{"rating100"}, ratedAbove(70))
	is.NoErr(err)
	is.Equal(len(matches), 3) // ratings 70, 80, 90
}

func TestFilterPopulateFetchesTheGapsOnly(t *testing.T) {
	is := is.New(t)
	transport := newMockTransport()
	transport.rawHandler = func(document string, variables map[string]any) (map[string]any, error) {
		id := variables["id"].(string)
		return map[string]any{
			"findPerformer": performerPayload(id, map[string]any{"rating100": 95}),
		}, nil
	}
	s := New(transport)
	seedPerformers(t, s, 4, 2)

	matches, stats, err := s.FilterPopulateStats(
		context.Background(), "Performer", []string{"rating100"}, ratedAbove(90), 2,
	)
	is.NoErr(err)

	is.Equal(stats.TotalCached, 6)
	is.Equal(stats.NeededPopulation, 2)
	is.Equal(stats.PopulatedFields, []string{"rating100"})
	is.Equal(transport.rawCallCount(), 2) // one fetch per lacking entity

	// Only the two populated entities carry rating 95.
	is.Equal(len(matches), 2)
	is.Equal(stats.Matches, 2)
	is.Equal(stats.CacheHitRate, float64(4)/float64(6))
}

func TestFilterPopulateWithNoGapsSkipsTransport(t *testing.T) {
	is := is.New(t)
	transport := newMockTransport()
	s := New(transport)
	seedPerformers(t, s, 3, 0)

	matches, stats, err := s.FilterPopulateStats(
		context.Background(), "Performer", []string{"rating100"}, ratedAbove(0), 4,
	)
	is.NoErr(err)
	is.Equal(len(matches), 3)
	is.Equal(stats.NeededPopulation, 0)
	is.Equal(stats.CacheHitRate, 1.0)
	is.Equal(transport.rawCallCount(), 0)
}

func TestPopulatedFilterIterStreamsMatches(t *testing.T) {
	is := is.New(t)
	transport := newMockTransport()
	transport.rawHandler = func(document string, variables map[string]any) (map[string]any, error) {
		id := variables["id"].(string)
		return map[string]any{
			"findPerformer": performerPayload(id, map[string]any{"rating100": 99}),
		}, nil
	}
	s := New(transport)
	seedPerformers(t, s, 5, 5)

	stream := s.PopulatedFilterIter(
		context.Background(), "Performer", []string{"rating100"}, ratedAbove(60), 3, 2,
	)

	seen := 0
	for range stream.Found {
		seen++
	}
	is.NoErr(stream.Err())

	// Ratings 60..90 from the rated five (4 of them >= 60) plus the five
	// populated at 99.
	is.Equal(seen, 9)
	is.Equal(transport.rawCallCount(), 5)
}

func TestFilterEvaluatesPurelyInMemory(t *testing.T) {
	is := is.New(t)
	transport := newMockTransport()
	s := New(transport)
	seedPerformers(t, s, 4, 0)

	favorites := s.Filter("Performer", func(e types.Entity) bool {
		rating, _ := e.(*media.Performer).Rating100.Get()
		return rating >= 60
	})

	is.Equal(len(favorites), 3)
	is.Equal(len(transport.executed), 0)
	is.Equal(transport.rawCallCount(), 0)
}

func TestGenericFilterStrict(t *testing.T) {
	is := is.New(t)
	s := New(newMockTransport())
	seedPerformers(t, s, 3, 0)

	matches, err := FilterStrict(s, []string{"rating100"}, func(p *media.Performer) bool {
		return p.Rating100.MustGet() >= 60
	})
	is.NoErr(err)
	is.Equal(len(matches), 2)
}
