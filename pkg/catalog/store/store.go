// Package store implements the identity-mapped entity store: a per-process
// cache guaranteeing at most one live instance per (type, id), read-through
// fetching, payload interception with nested-entity hoisting, field-aware
// population and cache-side filtering.
//
// The single store mutex is never held across a transport call: every
// network-crossing operation snapshots what it needs, releases the lock,
// awaits the transport and re-acquires the lock to apply results.
package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/mediagraph/catalog-client/internal/pkg/infrastructure/o11y/logging"
	"github.com/mediagraph/catalog-client/pkg/catalog"
	"github.com/mediagraph/catalog-client/pkg/catalog/client"
	"github.com/mediagraph/catalog-client/pkg/catalog/entities"
	"github.com/mediagraph/catalog-client/pkg/catalog/errors"
	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/relationships"
)

const (
	DefaultQueryBatch = 40
	DefaultTTL        = 30 * time.Minute
	// DefaultFindLimit caps Find results before FindIter is required.
	DefaultFindLimit = 1000
)

type cacheKey struct {
	typeName string
	id       string
}

type cacheEntry struct {
	entity   entities.Model
	cachedAt time.Time
	ttl      time.Duration
}

func (e *cacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.cachedAt) > e.ttl
}

// Store is an identity map with TTL-based expiration over a monotonic clock.
type Store struct {
	transport client.Transport

	mu      sync.Mutex
	cache   map[cacheKey]*cacheEntry
	typeTTL map[string]time.Duration

	defaultTTL time.Duration
	now        func() time.Time
	queryBatch int
	findLimit  int
}

// WithDefaultTTL overrides the default entry lifetime. Zero or negative
// disables expiration.
func WithDefaultTTL(ttl time.Duration) func(*Store) {
	return func(s *Store) {
		s.defaultTTL = ttl
	}
}

// WithQueryBatch overrides the page size used by lazy finds.
func WithQueryBatch(n int) func(*Store) {
	return func(s *Store) {
		s.queryBatch = n
	}
}

// WithFindLimit overrides the maximum result count Find accepts.
func WithFindLimit(n int) func(*Store) {
	return func(s *Store) {
		s.findLimit = n
	}
}

// withClock injects the monotonic clock source. Tests only.
func withClock(now func() time.Time) func(*Store) {
	return func(s *Store) {
		s.now = now
	}
}

// New returns a store reading through the given transport.
func New(transport client.Transport, options ...func(*Store)) *Store {
	s := &Store{
		transport:  transport,
		cache:      map[cacheKey]*cacheEntry{},
		typeTTL:    map[string]time.Duration{},
		defaultTTL: DefaultTTL,
		now:        time.Now,
		queryBatch: DefaultQueryBatch,
		findLimit:  DefaultFindLimit,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// ─── Construction interception ─────────────────────────────────────────────

// FromPayload constructs (or merges) an entity of the declared type from a
// server payload. Nested entity records are hoisted into the cache and
// substituted by reference before the parent is touched; a payload whose id
// is already cached merges into — and returns — the cached instance.
func (s *Store) FromPayload(ctx context.Context, typeName string, payload map[string]any) (types.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fromPayloadLocked(ctx, typeName, payload)
}

func (s *Store) fromPayloadLocked(ctx context.Context, declared string, payload map[string]any) (entities.Model, error) {
	typeTag, _ := payload["__typename"].(string)
	desc, err := schema.ResolveConcrete(declared, typeTag)
	if err != nil {
		return nil, err
	}

	id, _ := payload["id"].(string)
	if id == "" {
		// No identity to intercept on; construct a detached instance.
		return s.constructLocked(ctx, desc, "", payload)
	}

	k := cacheKey{typeName: desc.TypeName, id: id}
	if entry, ok := s.cache[k]; ok {
		if !entry.expired(s.now()) {
			if err := s.mergeLocked(ctx, entry.entity, desc, payload); err != nil {
				return nil, err
			}
			return entry.entity, nil
		}
		delete(s.cache, k)
	}

	m, err := s.constructLocked(ctx, desc, id, payload)
	if err != nil {
		return nil, err
	}

	entities.AttachStore(m, s)
	s.cache[k] = &cacheEntry{
		entity:   m,
		cachedAt: s.now(),
		ttl:      s.ttlForLocked(desc.TypeName),
	}
	return m, nil
}

// mergeLocked applies a payload onto an already-cached instance: nested
// records are hoisted first, fields are assigned through the normal setters
// (inverse sync included), and the snapshot is refreshed only for the fields
// the payload actually carried, so unrelated pending edits stay dirty.
func (s *Store) mergeLocked(ctx context.Context, m entities.Model, desc *schema.Descriptor, payload map[string]any) error {
	present := make([]string, 0, len(payload))

	for name, raw := range payload {
		if name == "__typename" || name == "id" {
			continue
		}
		if _, ok := desc.Field(name); !ok {
			continue
		}
		if err := s.assignLocked(ctx, m, desc, name, raw); err != nil {
			return err
		}
		present = append(present, name)
	}

	entities.MarkReceived(m, present...)
	entities.UpdateSnapshotFor(m, present)
	return nil
}

// constructLocked builds a fresh instance from a payload: nested records are
// hoisted (which may itself hit the cache), then every declared field is
// assigned and the whole snapshot is taken from the server-confirmed state.
func (s *Store) constructLocked(ctx context.Context, desc *schema.Descriptor, id string, payload map[string]any) (entities.Model, error) {
	m, ok := desc.New().(entities.Model)
	if !ok {
		return nil, errors.NewInternalError(fmt.Sprintf("%s factory does not produce a catalog entity", desc.TypeName))
	}
	if id != "" {
		entities.BindServerIdentity(m, id)
	}

	received := make([]string, 0, len(payload))
	for name, raw := range payload {
		if name == "__typename" {
			continue
		}
		if name == "id" {
			received = append(received, name)
			continue
		}
		if _, ok := desc.Field(name); !ok {
			continue
		}
		if err := s.assignLocked(ctx, m, desc, name, raw); err != nil {
			return nil, err
		}
		received = append(received, name)
	}

	entities.MarkReceived(m, received...)
	entities.MarkClean(m)
	return m, nil
}

// assignLocked routes one payload value onto a declared field, recursively
// hoisting nested entity records through the interception protocol.
func (s *Store) assignLocked(ctx context.Context, m entities.Model, desc *schema.Descriptor, name string, raw any) error {
	fi, _ := desc.Field(name)

	switch fi.Kind {
	case schema.KindSingle:
		if raw == nil {
			return entities.SetRelated(m, name, nil)
		}
		record, ok := raw.(map[string]any)
		if !ok {
			return errors.NewValidationError(desc.TypeName, fmt.Sprintf("field %q: expected a nested record", name))
		}
		child, err := s.fromPayloadLocked(ctx, fi.Peer, record)
		if err != nil {
			return err
		}
		return entities.SetRelated(m, name, child)

	case schema.KindList:
		if raw == nil {
			return entities.SetRelatedList(m, name, nil)
		}
		records, ok := raw.([]any)
		if !ok {
			return errors.NewValidationError(desc.TypeName, fmt.Sprintf("field %q: expected a list of records", name))
		}
		peers := make([]types.Entity, 0, len(records))
		for _, item := range records {
			record, ok := item.(map[string]any)
			if !ok {
				return errors.NewValidationError(desc.TypeName, fmt.Sprintf("field %q: expected nested records", name))
			}
			child, err := s.fromPayloadLocked(ctx, fi.Peer, record)
			if err != nil {
				return err
			}
			peers = append(peers, child)
		}
		return entities.SetRelatedList(m, name, peers)

	case schema.KindWrapperList:
		if raw == nil {
			return entities.SetWrapperList(m, name, nil)
		}
		rel := desc.Relationships[name]
		elements, ok := raw.([]any)
		if !ok {
			return errors.NewValidationError(desc.TypeName, fmt.Sprintf("field %q: expected a list of wrappers", name))
		}
		wrappers := make([]any, 0, len(elements))
		for _, item := range elements {
			element, ok := item.(map[string]any)
			if !ok {
				return errors.NewValidationError(desc.TypeName, fmt.Sprintf("field %q: expected wrapper records", name))
			}
			record, ok := element[rel.WrapperKey].(map[string]any)
			if !ok {
				return errors.NewValidationError(desc.TypeName, fmt.Sprintf("field %q: wrapper without %q record", name, rel.WrapperKey))
			}
			child, err := s.fromPayloadLocked(ctx, rel.PeerType, record)
			if err != nil {
				return err
			}
			meta := make(map[string]any, len(element)-1)
			for k, v := range element {
				if k == rel.WrapperKey {
					continue
				}
				meta[k] = v
			}
			w, err := rel.NewWrapper(child, meta)
			if err != nil {
				return errors.NewValidationError(desc.TypeName, err.Error())
			}
			wrappers = append(wrappers, w)
		}
		return entities.SetWrapperList(m, name, wrappers)

	default:
		encoded, err := json.Marshal(raw)
		if err != nil {
			return errors.NewValidationError(desc.TypeName, fmt.Sprintf("field %q: %s", name, err.Error()))
		}
		return entities.SetScalarJSON(m, name, encoded)
	}
}

// ─── Read-through by id ────────────────────────────────────────────────────

// Get returns the entity with the given id, from cache when fresh, from the
// transport otherwise. A missing entity yields (nil, nil).
func (s *Store) Get(ctx context.Context, typeName, id string) (types.Entity, error) {
	desc, ok := schema.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", typeName)
	}
	if err := validateServerID(id); err != nil {
		return nil, err
	}

	log := logging.GetFromContext(ctx)

	s.mu.Lock()
	if m, ok := s.cachedLocked(desc.TypeName, id); ok {
		s.mu.Unlock()
		log.Debug().Str("type", typeName).Str("id", id).Msg("cache hit")
		return m, nil
	}
	s.mu.Unlock()

	log.Debug().Str("type", typeName).Str("id", id).Msg("cache miss")

	result, err := s.transport.Execute(ctx, desc.Operations.FindByID, map[string]any{"id": id})
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	payload, ok := result[desc.Operations.FindByIDKey].(map[string]any)
	if !ok {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fromPayloadLocked(ctx, desc.TypeName, payload)
}

// GetMany batch-reads a set of ids: cached entities are returned as-is and
// the missing ones fetched. Order is not guaranteed.
func (s *Store) GetMany(ctx context.Context, typeName string, ids []string) ([]types.Entity, error) {
	desc, ok := schema.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", typeName)
	}

	results := make([]types.Entity, 0, len(ids))
	missing := make([]string, 0, len(ids))

	s.mu.Lock()
	for _, id := range ids {
		if m, ok := s.cachedLocked(desc.TypeName, id); ok {
			results = append(results, m)
		} else {
			missing = append(missing, id)
		}
	}
	s.mu.Unlock()

	if len(missing) > 0 {
		logger := logging.GetFromContext(ctx)
		logger.Debug().
			Str("type", typeName).Int("count", len(missing)).
			Msg("fetching missing entities")
	}

	for _, id := range missing {
		e, err := s.Get(ctx, typeName, id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			results = append(results, e)
		}
	}

	return results, nil
}

// GetCached returns the cached instance for (typeName, id) without touching
// the transport.
func (s *Store) GetCached(typeName, id string) (types.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedLocked(typeName, id)
}

func (s *Store) cachedLocked(typeName, id string) (entities.Model, bool) {
	k := cacheKey{typeName: typeName, id: id}
	entry, ok := s.cache[k]
	if !ok {
		return nil, false
	}
	if entry.expired(s.now()) {
		delete(s.cache, k)
		return nil, false
	}
	return entry.entity, true
}

func (s *Store) ttlForLocked(typeName string) time.Duration {
	if ttl, ok := s.typeTTL[typeName]; ok {
		return ttl
	}
	return s.defaultTTL
}

// ─── Save / delete ─────────────────────────────────────────────────────────

// Save persists pending changes: a create for a new entity (adopting the
// server-assigned id), an update with only the dirty tracked fields for an
// existing one. A clean existing entity short-circuits without a request.
func (s *Store) Save(ctx context.Context, e types.Entity) error {
	m, ok := e.(entities.Model)
	if !ok {
		return fmt.Errorf("%T is not a catalog entity", e)
	}
	desc := entities.Descriptor(m)
	log := logging.GetFromContext(ctx)

	isNew := m.IsNew()
	if !isNew && !entities.IsDirty(m) {
		log.Debug().Str("type", desc.TypeName).Str("id", m.ID()).Msg("no changes to save")
		return nil
	}

	input, err := entities.ToInput(m)
	if err != nil {
		return err
	}

	operation := desc.Operations.Update
	resultKey := desc.Operations.UpdateKey
	if isNew {
		operation = desc.Operations.Create
		resultKey = desc.Operations.CreateKey
	} else {
		if err := validateServerID(m.ID()); err != nil {
			return err
		}
		if len(input) <= 1 {
			// Only the id made it into the input; nothing to send.
			entities.MarkClean(m)
			return nil
		}
	}

	result, err := s.transport.Execute(ctx, operation, map[string]any{"input": input})
	if err != nil {
		return err
	}

	payload, ok := result[resultKey].(map[string]any)
	if !ok {
		return fmt.Errorf("save of %s returned no result (%w)", desc.TypeName, errors.ErrBadResponse)
	}

	if isNew {
		serverID, _ := payload["id"].(string)
		if serverID == "" {
			return fmt.Errorf("create of %s returned no id (%w)", desc.TypeName, errors.ErrBadResponse)
		}
		if err := entities.AdoptCreatedID(m, serverID); err != nil {
			return err
		}

		s.mu.Lock()
		entities.AttachStore(m, s)
		s.cache[cacheKey{typeName: desc.TypeName, id: serverID}] = &cacheEntry{
			entity:   m,
			cachedAt: s.now(),
			ttl:      s.ttlForLocked(desc.TypeName),
		}
		s.mu.Unlock()
	}

	entities.MarkClean(m)
	return nil
}

// Delete destroys the entity remotely and drops it from the cache.
func (s *Store) Delete(ctx context.Context, e types.Entity) error {
	m, ok := e.(entities.Model)
	if !ok {
		return fmt.Errorf("%T is not a catalog entity", e)
	}
	desc := entities.Descriptor(m)

	if desc.Operations.Destroy == "" {
		return fmt.Errorf("%s entities cannot be destroyed", desc.TypeName)
	}
	if err := validateServerID(m.ID()); err != nil {
		return err
	}

	if _, err := s.transport.Execute(ctx, desc.Operations.Destroy, map[string]any{"id": m.ID()}); err != nil {
		return err
	}

	s.Invalidate(desc.TypeName, m.ID())
	return nil
}

// ─── Cache control & inspection ────────────────────────────────────────────

// Invalidate drops one entry.
func (s *Store) Invalidate(typeName, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, cacheKey{typeName: typeName, id: id})
}

// InvalidateType drops every entry of one type.
func (s *Store) InvalidateType(typeName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.cache {
		if k.typeName == typeName {
			delete(s.cache, k)
		}
	}
}

// InvalidateAll clears the cache.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = map[cacheKey]*cacheEntry{}
}

// IsCached reports whether (typeName, id) is cached and fresh.
func (s *Store) IsCached(typeName, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[cacheKey{typeName: typeName, id: id}]
	return ok && !entry.expired(s.now())
}

// SetTTL overrides the entry lifetime for one type. Zero or negative
// disables expiration for that type.
func (s *Store) SetTTL(typeName string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typeTTL[typeName] = ttl
}

// CacheStats summarizes the cache contents.
func (s *Store) CacheStats() catalog.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := catalog.CacheStats{
		TotalEntries: len(s.cache),
		ByType:       map[string]int{},
	}
	now := s.now()
	for k, entry := range s.cache {
		stats.ByType[k.typeName]++
		if entry.expired(now) {
			stats.ExpiredCount++
		}
	}
	return stats
}

// AllCached returns every fresh cached entity of a type.
func (s *Store) AllCached(typeName string) []types.Entity {
	return s.Filter(typeName, func(types.Entity) bool { return true })
}

// Filter evaluates a predicate over the cached entities of a type without
// touching the transport. The cache is snapshotted before the predicate
// runs, so predicates are free to call back into the store.
func (s *Store) Filter(typeName string, pred func(types.Entity) bool) []types.Entity {
	candidates := s.snapshotOfType(typeName)

	matches := make([]types.Entity, 0, len(candidates))
	for _, m := range candidates {
		if pred(m) {
			matches = append(matches, m)
		}
	}
	return matches
}

func (s *Store) snapshotOfType(typeName string) []entities.Model {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]entities.Model, 0)
	for k, entry := range s.cache {
		if k.typeName != typeName || entry.expired(now) {
			continue
		}
		out = append(out, entry.entity)
	}
	return out
}

// validateServerID refuses ids that are not positive integer strings.
// Locally minted tokens never reach the transport and are rejected here too.
func validateServerID(id string) error {
	if id == "" {
		return errors.NewInvalidIdentifierError(id)
	}
	nonZero := false
	for _, r := range id {
		if r < '0' || r > '9' {
			return errors.NewInvalidIdentifierError(id)
		}
		if r != '0' {
			nonZero = true
		}
	}
	if !nonZero {
		return errors.NewInvalidIdentifierError(id)
	}
	return nil
}

// relationshipOf is a small helper for tests and the populate path.
func relationshipOf(desc *schema.Descriptor, name string) (relationships.Metadata, bool) {
	rel, ok := desc.Relationships[name]
	return rel, ok
}
