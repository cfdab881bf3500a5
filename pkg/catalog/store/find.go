package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mediagraph/catalog-client/internal/pkg/infrastructure/o11y/logging"
	"github.com/mediagraph/catalog-client/pkg/catalog"
	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
)

// Where is the compact filter DSL accepted by Find and friends. A key is
// either a plain field name (exact match) or "field__modifier" with one of:
// exact, contains, regex, gt, gte, lt, lte, between, null, in. Values that
// are already {value, modifier} maps, and keys ending in "_filter", pass
// through untranslated.
type Where map[string]any

var modifierByLookup = map[string]string{
	"exact":    "EQUALS",
	"contains": "INCLUDES",
	"regex":    "MATCHES_REGEX",
	"gt":       "GREATER_THAN",
	"gte":      "GREATER_THAN",
	"lt":       "LESS_THAN",
	"lte":      "LESS_THAN",
	"between":  "BETWEEN",
	"null":     "IS_NULL",
	"in":       "INCLUDES",
}

// Find searches the remote catalog, caching every result through the
// interception protocol. Result sets beyond the configured limit are
// refused; use FindIter for those.
func (s *Store) Find(ctx context.Context, typeName string, criteria Where) ([]types.Entity, error) {
	desc, ok := schema.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", typeName)
	}

	head, err := s.executeFind(ctx, desc, criteria, 1, 1)
	if err != nil {
		return nil, err
	}

	if head.Count > s.findLimit {
		return nil, fmt.Errorf(
			"query returned %d results, exceeding the limit of %d; use FindIter for large result sets",
			head.Count, s.findLimit,
		)
	}
	if head.Count == 0 {
		return []types.Entity{}, nil
	}

	page, err := s.executeFind(ctx, desc, criteria, 1, head.Count)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// FindOne returns the first match, or nil when nothing matches.
func (s *Store) FindOne(ctx context.Context, typeName string, criteria Where) (types.Entity, error) {
	desc, ok := schema.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", typeName)
	}

	page, err := s.executeFind(ctx, desc, criteria, 1, 1)
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, nil
	}
	return page.Items[0], nil
}

// FindIter searches lazily, fetching pages of queryBatch entities on demand
// and stopping as soon as the consumer cancels ctx. The stream's channel is
// closed when the result set (or the consumer) is done; Err reports a
// mid-stream failure afterwards.
func (s *Store) FindIter(ctx context.Context, typeName string, criteria Where) *catalog.EntityStream {
	stream := catalog.NewEntityStream()

	desc, ok := schema.Lookup(typeName)
	if !ok {
		stream.Fail(fmt.Errorf("unknown entity type %q", typeName))
		close(stream.Found)
		return stream
	}

	go func() {
		defer close(stream.Found)

		page := 1
		for {
			result, err := s.executeFind(ctx, desc, criteria, page, s.queryBatch)
			if err != nil {
				stream.Fail(err)
				return
			}

			for _, e := range result.Items {
				select {
				case stream.Found <- e:
				case <-ctx.Done():
					return
				}
			}

			if len(result.Items) < s.queryBatch {
				return
			}
			page++
		}
	}()

	return stream
}

func (s *Store) executeFind(ctx context.Context, desc *schema.Descriptor, criteria Where, page, perPage int) (*catalog.FindResult, error) {
	entityFilter, err := s.translateCriteria(desc, criteria)
	if err != nil {
		return nil, err
	}

	variables := map[string]any{
		"filter": map[string]any{"page": page, "per_page": perPage},
	}
	if len(entityFilter) > 0 {
		variables[desc.Operations.FilterKey] = entityFilter
	}

	result, err := s.transport.Execute(ctx, desc.Operations.FindMany, variables)
	if err != nil {
		return nil, err
	}

	data, ok := result[desc.Operations.FindManyKey].(map[string]any)
	if !ok {
		return &catalog.FindResult{Items: []types.Entity{}, Page: page, PerPage: perPage}, nil
	}

	count := 0
	if c, ok := data["count"].(float64); ok {
		count = int(c)
	}

	rawItems, _ := data[desc.Operations.ItemsKey].([]any)

	s.mu.Lock()
	items := make([]types.Entity, 0, len(rawItems))
	for _, item := range rawItems {
		payload, ok := item.(map[string]any)
		if !ok {
			continue
		}
		m, err := s.fromPayloadLocked(ctx, desc.TypeName, payload)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		items = append(items, m)
	}
	s.mu.Unlock()

	logger := logging.GetFromContext(ctx)
	logger.Debug().
		Str("type", desc.TypeName).Int("count", count).Int("page", page).
		Msg("find page fetched")

	return &catalog.FindResult{Items: items, Count: count, Page: page, PerPage: perPage}, nil
}

// translateCriteria turns the DSL into the remote filter input.
func (s *Store) translateCriteria(desc *schema.Descriptor, criteria Where) (map[string]any, error) {
	filter := map[string]any{}

	for key, value := range criteria {
		if strings.HasSuffix(key, "_filter") {
			filter[key] = value
			continue
		}
		if raw, ok := value.(map[string]any); ok {
			if _, hasModifier := raw["modifier"]; hasModifier {
				filter[key] = value
				continue
			}
		}

		field, modifier := parseLookup(key)
		criterion, err := buildCriterion(desc, field, modifier, value)
		if err != nil {
			return nil, err
		}
		if criterion != nil {
			filter[field] = criterion
		}
	}

	return filter, nil
}

func parseLookup(key string) (string, string) {
	if idx := strings.LastIndex(key, "__"); idx > 0 {
		field := key[:idx]
		if modifier, ok := modifierByLookup[strings.ToLower(key[idx+2:])]; ok {
			return field, modifier
		}
	}
	return key, "EQUALS"
}

func buildCriterion(desc *schema.Descriptor, field, modifier string, value any) (map[string]any, error) {
	switch modifier {
	case "IS_NULL":
		wantNull, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("filter %s__null wants a bool, got %T", field, value)
		}
		if wantNull {
			return map[string]any{"value": "", "modifier": "IS_NULL"}, nil
		}
		return map[string]any{"value": "", "modifier": "NOT_NULL"}, nil

	case "BETWEEN":
		pair, ok := value.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("filter %s__between wants a two-element list", field)
		}
		return map[string]any{"value": pair[0], "value2": pair[1], "modifier": "BETWEEN"}, nil

	case "INCLUDES":
		// Multi-valued relation fields take a list of ids; string-typed
		// fields take a single scalar. Getting this wrong is a remote-side
		// request rejection, so the descriptor decides.
		if rel, ok := relationshipOf(desc, field); ok && rel.IsList {
			if list, ok := value.([]any); ok {
				return map[string]any{"value": list, "modifier": modifier}, nil
			}
			return map[string]any{"value": []any{value}, "modifier": modifier}, nil
		}
		return map[string]any{"value": value, "modifier": modifier}, nil

	default:
		return map[string]any{"value": value, "modifier": modifier}, nil
	}
}
