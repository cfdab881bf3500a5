// Package entities implements the behavior shared by every catalog entity:
// lifecycle (new vs existing), the snapshot-based dirty tracker, mutation
// input serialization and the compact textual representation.
//
// Concrete entity types embed Object and register a schema.Descriptor; all
// payload-driven construction goes through the store, never through direct
// struct literals.
package entities

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/mediagraph/catalog-client/pkg/catalog/errors"
	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/fields"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/relationships"
)

// legacyNewID is accepted as a new-entity marker for payloads produced by
// older tooling.
const legacyNewID = "new"

// Model is implemented by every concrete entity type by embedding Object.
type Model interface {
	types.Entity
	// Received reports whether a field has appeared in any merged server
	// payload.
	Received(name string) bool
	object() *Object
}

// Object carries the per-instance bookkeeping that must survive any field
// assignment: the server-confirmed snapshot, the set of fields observed in
// payloads, the lifecycle flag and the owning store handle.
type Object struct {
	id       string
	isNew    bool
	desc     *schema.Descriptor
	self     Model
	received map[string]struct{}
	snapshot map[string]any
	store    any
}

func (o *Object) object() *Object { return o }

func (o *Object) ID() string { return o.id }

func (o *Object) TypeName() string {
	if o.desc == nil {
		return ""
	}
	return o.desc.TypeName
}

// IsNew reports whether the entity has a locally minted identity that the
// server has not yet confirmed.
func (o *Object) IsNew() bool {
	return o.isNew || o.id == legacyNewID
}

// UpdateID replaces a locally minted id with the server-assigned one. It can
// succeed exactly once; save calls it automatically after a create.
func (o *Object) UpdateID(id string) error {
	if !o.IsNew() {
		return fmt.Errorf("%s %s already has a server identity", o.TypeName(), o.id)
	}
	if id == "" {
		return fmt.Errorf("refusing to assign an empty id to %s", o.TypeName())
	}
	o.id = id
	o.isNew = false
	return nil
}

// Received reports whether a field has appeared in any merged server payload.
func (o *Object) Received(name string) bool {
	_, ok := o.received[name]
	return ok
}

// ReceivedFields returns the names of all fields observed from the server.
func (o *Object) ReceivedFields() []string {
	names := make([]string, 0, len(o.received))
	for name := range o.received {
		names = append(names, name)
	}
	return names
}

func (o *Object) String() string {
	if o.self == nil {
		return fmt.Sprintf("%s(id=%s)", o.TypeName(), o.id)
	}
	return Repr(o.self)
}

// Init prepares a directly constructed instance: a fresh 32-hex identity,
// empty received set and a clean snapshot of the initial field values.
func Init(m Model, d *schema.Descriptor) {
	o := m.object()
	o.desc = d
	o.self = m
	o.received = map[string]struct{}{}
	if o.id == "" {
		o.id = mintID()
		o.isNew = true
	}
	MarkClean(m)
}

func mintID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// IsLocalID reports whether id has the shape of a locally minted token.
func IsLocalID(id string) bool {
	if id == legacyNewID {
		return true
	}
	if len(id) != 32 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

// Descriptor returns the frozen schema of m's type.
func Descriptor(m Model) *schema.Descriptor {
	return m.object().desc
}

// BindServerIdentity adopts a server-assigned id during payload construction.
func BindServerIdentity(m Model, id string) {
	o := m.object()
	o.id = id
	o.isNew = false
}

// AdoptCreatedID installs the server-assigned id returned by a create.
func AdoptCreatedID(m Model, id string) error {
	return m.object().UpdateID(id)
}

// AttachStore records the store owning this instance.
func AttachStore(m Model, store any) {
	m.object().store = store
}

// AttachedStore returns the store owning this instance, if any.
func AttachedStore(m Model) any {
	return m.object().store
}

// MarkReceived unions names into the received-fields set.
func MarkReceived(m Model, names ...string) {
	o := m.object()
	for _, name := range names {
		o.received[name] = struct{}{}
	}
}

// ─── Snapshot & dirty tracking ─────────────────────────────────────────────

// IsDirty reports whether any tracked field's encoded value differs from its
// snapshot. It compares field by field and never recurses into referents.
func IsDirty(m Model) bool {
	o := m.object()
	for name := range trackedOf(o) {
		cur := encodeField(o.desc, name, m)
		prev, ok := o.snapshot[name]
		if !ok || !reflect.DeepEqual(cur, prev) {
			return true
		}
	}
	return false
}

// ChangedFields returns every tracked field whose encoded value differs from
// its snapshot, mapped to its current in-memory value (which may be the
// unset sentinel).
func ChangedFields(m Model) map[string]any {
	o := m.object()
	changed := map[string]any{}
	for name := range trackedOf(o) {
		cur := encodeField(o.desc, name, m)
		prev, ok := o.snapshot[name]
		if ok && reflect.DeepEqual(cur, prev) {
			continue
		}
		fv, _ := o.desc.FieldValue(m, name)
		if v, set := fv.AnyValue(); set {
			changed[name] = v
		} else if fv.IsNull() {
			changed[name] = nil
		} else {
			changed[name] = fields.UnsetValue
		}
	}
	return changed
}

// MarkClean snapshots every tracked field's current value. Idempotent.
func MarkClean(m Model) {
	o := m.object()
	o.snapshot = map[string]any{}
	for name := range trackedOf(o) {
		o.snapshot[name] = encodeField(o.desc, name, m)
	}
}

// MarkDirty clears the snapshot so every tracked field reads as changed.
func MarkDirty(m Model) {
	m.object().snapshot = map[string]any{}
}

// UpdateSnapshotFor refreshes the snapshot only for the intersection of
// names with the tracked fields. The store uses this after a partial merge
// so pending edits to unrelated fields stay dirty.
func UpdateSnapshotFor(m Model, names []string) {
	o := m.object()
	for _, name := range names {
		if !o.desc.IsTracked(name) {
			continue
		}
		o.snapshot[name] = encodeField(o.desc, name, m)
	}
}

func trackedOf(o *Object) map[string]struct{} {
	set := map[string]struct{}{}
	for _, name := range o.desc.Tracked {
		set[name] = struct{}{}
	}
	return set
}

// encodeField reduces a field to its stable snapshot form: id for a
// reference, a list of ids for a collection, (id, metadata) for wrappers,
// the value itself for scalars and the sentinel for unset fields.
func encodeField(d *schema.Descriptor, name string, m Model) any {
	fv, ok := d.FieldValue(m, name)
	if !ok {
		return fields.UnsetValue
	}
	if fv.IsUnset() {
		return fields.UnsetValue
	}
	if fv.IsNull() {
		return nil
	}

	v, _ := fv.AnyValue()
	fi, _ := d.Field(name)

	switch fi.Kind {
	case schema.KindSingle:
		return v.(types.Entity).ID()
	case schema.KindList:
		rv := reflect.ValueOf(v)
		ids := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ids = append(ids, rv.Index(i).Interface().(types.Entity).ID())
		}
		return ids
	case schema.KindWrapperList:
		rel := d.Relationships[name]
		rv := reflect.ValueOf(v)
		snaps := make([]wrapperSnapshot, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			w := rv.Index(i).Interface()
			snaps = append(snaps, wrapperSnapshot{
				ID:   rel.WrapperRef(w).ID(),
				Meta: rel.WrapperMeta(w),
			})
		}
		return snaps
	default:
		return cloneValue(v)
	}
}

type wrapperSnapshot struct {
	ID   string
	Meta map[string]any
}

// cloneValue copies slice and map scalars so later in-place mutation still
// reads as dirty against the snapshot.
func cloneValue(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMap(rv.Type())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	default:
		return v
	}
}

// ─── Field assignment (store-facing) ───────────────────────────────────────

// SetScalarJSON assigns a raw payload value onto a scalar field, honoring
// tri-state semantics: JSON null yields the explicit-null state.
func SetScalarJSON(m Model, name string, raw json.RawMessage) error {
	o := m.object()
	fv, ok := o.desc.FieldValue(m, name)
	if !ok {
		return errors.NewValidationError(o.TypeName(), fmt.Sprintf("unknown field %q", name))
	}
	um, ok := fv.(json.Unmarshaler)
	if !ok {
		return errors.NewValidationError(o.TypeName(), fmt.Sprintf("field %q cannot decode payload values", name))
	}
	if err := um.UnmarshalJSON(raw); err != nil {
		return errors.NewValidationError(o.TypeName(), fmt.Sprintf("field %q: %s", name, err.Error()))
	}
	return nil
}

// SetRelated assigns a single-valued relationship, mirroring the assignment
// on the peer's inverse field when that field is loaded. A nil peer clears
// the relationship to explicit null.
func SetRelated(m Model, name string, peer types.Entity) error {
	o := m.object()
	rel, ok := o.desc.Relationships[name]
	if !ok || rel.IsList {
		return errors.NewValidationError(o.TypeName(), fmt.Sprintf("%q is not a single-valued relationship", name))
	}
	fv, ok := o.desc.FieldValue(m, name)
	if !ok {
		return errors.NewValidationError(o.TypeName(), fmt.Sprintf("unknown field %q", name))
	}

	if old, wasSet := fv.AnyValue(); wasSet {
		if oldEntity, ok := old.(types.Entity); ok {
			syncRemove(m, rel, oldEntity)
		}
	}

	if peer == nil {
		fv.SetNull()
		return nil
	}
	if err := fv.SetAny(peer); err != nil {
		return errors.NewValidationError(o.TypeName(), err.Error())
	}
	syncAdd(m, rel, peer)
	return nil
}

// SetRelatedList replaces a list relationship wholesale, syncing inverse
// fields of added peers. A nil list clears to explicit null.
func SetRelatedList(m Model, name string, peers []types.Entity) error {
	o := m.object()
	rel, ok := o.desc.Relationships[name]
	if !ok || !rel.IsList {
		return errors.NewValidationError(o.TypeName(), fmt.Sprintf("%q is not a list relationship", name))
	}
	fv, ok := o.desc.FieldValue(m, name)
	if !ok {
		return errors.NewValidationError(o.TypeName(), fmt.Sprintf("unknown field %q", name))
	}

	if peers == nil {
		fv.SetNull()
		return nil
	}

	slice := reflect.MakeSlice(fv.ValueType(), 0, len(peers))
	for _, peer := range peers {
		slice = reflect.Append(slice, reflect.ValueOf(peer))
	}
	if err := fv.SetAny(slice.Interface()); err != nil {
		return errors.NewValidationError(o.TypeName(), err.Error())
	}
	for _, peer := range peers {
		syncAdd(m, rel, peer)
	}
	return nil
}

// SetWrapperList replaces a complex-object relationship with pre-built
// wrapper values.
func SetWrapperList(m Model, name string, wrappers []any) error {
	o := m.object()
	rel, ok := o.desc.Relationships[name]
	if !ok || rel.Strategy != relationships.StrategyComplexObject {
		return errors.NewValidationError(o.TypeName(), fmt.Sprintf("%q is not a complex-object relationship", name))
	}
	fv, ok := o.desc.FieldValue(m, name)
	if !ok {
		return errors.NewValidationError(o.TypeName(), fmt.Sprintf("unknown field %q", name))
	}

	if wrappers == nil {
		fv.SetNull()
		return nil
	}

	slice := reflect.MakeSlice(fv.ValueType(), 0, len(wrappers))
	for _, w := range wrappers {
		slice = reflect.Append(slice, reflect.ValueOf(w))
	}
	if err := fv.SetAny(slice.Interface()); err != nil {
		return errors.NewValidationError(o.TypeName(), err.Error())
	}
	for _, w := range wrappers {
		syncAdd(m, rel, rel.WrapperRef(w))
	}
	return nil
}

// ─── In-memory relationship helpers ────────────────────────────────────────

// AddRef appends a peer to a list relationship: an unset field is
// initialized to a one-element list, a peer already present by id is left
// alone. The peer's loaded inverse is mirrored.
func AddRef(m Model, name string, peer types.Entity) error {
	o := m.object()
	rel, ok := o.desc.Relationships[name]
	if !ok || !rel.IsList {
		return errors.NewValidationError(o.TypeName(), fmt.Sprintf("%q is not a list relationship", name))
	}
	fv, _ := o.desc.FieldValue(m, name)

	slice := reflect.MakeSlice(fv.ValueType(), 0, 1)
	if cur, set := fv.AnyValue(); set {
		rv := reflect.ValueOf(cur)
		for i := 0; i < rv.Len(); i++ {
			if rv.Index(i).Interface().(types.Entity).ID() == peer.ID() {
				return nil
			}
		}
		slice = rv
	}
	slice = reflect.Append(slice, reflect.ValueOf(peer))
	if err := fv.SetAny(slice.Interface()); err != nil {
		return errors.NewValidationError(o.TypeName(), err.Error())
	}
	syncAdd(m, rel, peer)
	return nil
}

// RemoveRef removes a peer (by id) from a list relationship. Removing from
// an unset or null field is a no-op.
func RemoveRef(m Model, name string, peer types.Entity) error {
	o := m.object()
	rel, ok := o.desc.Relationships[name]
	if !ok || !rel.IsList {
		return errors.NewValidationError(o.TypeName(), fmt.Sprintf("%q is not a list relationship", name))
	}
	fv, _ := o.desc.FieldValue(m, name)

	cur, set := fv.AnyValue()
	if !set {
		return nil
	}
	rv := reflect.ValueOf(cur)
	out := reflect.MakeSlice(fv.ValueType(), 0, rv.Len())
	removed := false
	for i := 0; i < rv.Len(); i++ {
		if rv.Index(i).Interface().(types.Entity).ID() == peer.ID() {
			removed = true
			continue
		}
		out = reflect.Append(out, rv.Index(i))
	}
	if !removed {
		return nil
	}
	if err := fv.SetAny(out.Interface()); err != nil {
		return errors.NewValidationError(o.TypeName(), err.Error())
	}
	syncRemove(m, rel, peer)
	return nil
}

// syncAdd mirrors an assignment on the peer's inverse field, but only when
// that field is already loaded. An unset inverse is never fetched from a
// setter.
func syncAdd(owner Model, rel relationships.Metadata, peer types.Entity) {
	inverse, fv, fi, ok := inverseField(rel, peer)
	if !ok || inverse == "" || fv.IsUnset() {
		return
	}

	switch fi.Kind {
	case schema.KindSingle:
		_ = fv.SetAny(owner)
	case schema.KindList:
		slice := reflect.MakeSlice(fv.ValueType(), 0, 1)
		if cur, set := fv.AnyValue(); set {
			rv := reflect.ValueOf(cur)
			for i := 0; i < rv.Len(); i++ {
				if rv.Index(i).Interface().(types.Entity).ID() == owner.ID() {
					return
				}
			}
			slice = rv
		}
		slice = reflect.Append(slice, reflect.ValueOf(owner.(types.Entity)))
		_ = fv.SetAny(slice.Interface())
	}
}

func syncRemove(owner Model, rel relationships.Metadata, peer types.Entity) {
	inverse, fv, fi, ok := inverseField(rel, peer)
	if !ok || inverse == "" || fv.IsUnset() {
		return
	}

	switch fi.Kind {
	case schema.KindSingle:
		if cur, set := fv.AnyValue(); set {
			if e, ok := cur.(types.Entity); ok && e.ID() == owner.ID() {
				fv.SetNull()
			}
		}
	case schema.KindList:
		cur, set := fv.AnyValue()
		if !set {
			return
		}
		rv := reflect.ValueOf(cur)
		out := reflect.MakeSlice(fv.ValueType(), 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if rv.Index(i).Interface().(types.Entity).ID() == owner.ID() {
				continue
			}
			out = reflect.Append(out, rv.Index(i))
		}
		if out.Len() != rv.Len() {
			_ = fv.SetAny(out.Interface())
		}
	}
}

func inverseField(rel relationships.Metadata, peer types.Entity) (string, fields.Value, schema.FieldInfo, bool) {
	if rel.InverseQueryField == "" {
		return "", nil, schema.FieldInfo{}, false
	}
	peerDesc, ok := schema.Lookup(peer.TypeName())
	if !ok {
		return "", nil, schema.FieldInfo{}, false
	}
	fi, ok := peerDesc.Field(rel.InverseQueryField)
	if !ok {
		return "", nil, schema.FieldInfo{}, false
	}
	fv, ok := peerDesc.FieldValue(peer, rel.InverseQueryField)
	if !ok {
		return "", nil, schema.FieldInfo{}, false
	}
	return rel.InverseQueryField, fv, fi, true
}

// ─── Mutation input serialization ──────────────────────────────────────────

// ToInput builds the mutation input for m. New entities emit every tracked
// or conversion-declared field that is not unset; existing entities emit the
// id plus the tracked fields that differ from the snapshot. Unset fields are
// never emitted; an explicit null is emitted as null whenever its field is
// emitted, which for an existing entity means only when it is dirty.
func ToInput(m Model) (map[string]any, error) {
	o := m.object()
	d := o.desc

	if o.IsNew() {
		if d.CreateInput == "" {
			return nil, errors.NewCannotCreateError(d.TypeName)
		}
		return toCreateInput(m, d)
	}
	return toUpdateInput(m, d)
}

func toCreateInput(m Model, d *schema.Descriptor) (map[string]any, error) {
	data := map[string]any{}

	for name, conv := range d.Conversions {
		fv, ok := d.FieldValue(m, name)
		if !ok || fv.IsUnset() {
			continue
		}
		if d.IsProtected(name) {
			return nil, errors.NewProtectedConfigurationError(d.TypeName, name)
		}
		if fv.IsNull() {
			data[conv.InputKey] = nil
			continue
		}
		v, _ := fv.AnyValue()
		converted, err := conv.Convert(v)
		if err != nil {
			return nil, err
		}
		data[conv.InputKey] = converted
	}

	for name := range d.Relationships {
		if err := emitRelationship(m, d, name, data); err != nil {
			return nil, err
		}
	}

	return data, nil
}

func toUpdateInput(m Model, d *schema.Descriptor) (map[string]any, error) {
	data := map[string]any{"id": m.ID()}

	for name := range ChangedFields(m) {
		fv, ok := d.FieldValue(m, name)
		if !ok || fv.IsUnset() {
			continue
		}
		if d.IsProtected(name) {
			return nil, errors.NewProtectedConfigurationError(d.TypeName, name)
		}
		if _, isRel := d.Relationships[name]; isRel {
			if err := emitRelationship(m, d, name, data); err != nil {
				return nil, err
			}
			continue
		}
		conv, ok := d.Conversions[name]
		if !ok {
			continue
		}
		if fv.IsNull() {
			data[conv.InputKey] = nil
			continue
		}
		v, _ := fv.AnyValue()
		converted, err := conv.Convert(v)
		if err != nil {
			return nil, err
		}
		data[conv.InputKey] = converted
	}

	return data, nil
}

func emitRelationship(m Model, d *schema.Descriptor, name string, data map[string]any) error {
	rel := d.Relationships[name]
	if rel.TargetField == "" {
		return nil
	}
	fv, ok := d.FieldValue(m, name)
	if !ok || fv.IsUnset() {
		return nil
	}
	if fv.IsNull() {
		data[rel.TargetField] = nil
		return nil
	}

	transform := rel.Transform
	if transform == nil {
		transform = relationships.RefID
	}

	v, _ := fv.AnyValue()
	if !rel.IsList {
		out, err := transform(v)
		if err != nil {
			return err
		}
		data[rel.TargetField] = out
		return nil
	}

	rv := reflect.ValueOf(v)
	items := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out, err := transform(rv.Index(i).Interface())
		if err != nil {
			return err
		}
		items = append(items, out)
	}
	data[rel.TargetField] = items
	return nil
}

// ─── Compact representation ────────────────────────────────────────────────

const reprListLimit = 2

// Repr renders a compact, deterministic description from the type's
// short-repr fields, falling back to the id when none of them are present.
// Relationship values render shallow; lists truncate after two elements.
func Repr(m Model) string {
	d := m.object().desc
	parts := make([]string, 0, len(d.ShortRepr))

	for _, name := range d.ShortRepr {
		fv, ok := d.FieldValue(m, name)
		if !ok || !fv.IsSet() {
			continue
		}
		v, _ := fv.AnyValue()

		fi, _ := d.Field(name)
		switch fi.Kind {
		case schema.KindSingle:
			parts = append(parts, fmt.Sprintf("%s=%s", name, shallowRepr(v.(types.Entity))))
		case schema.KindList, schema.KindWrapperList:
			parts = append(parts, fmt.Sprintf("%s=%s", name, listRepr(d, name, v)))
		default:
			parts = append(parts, fmt.Sprintf("%s=%s", name, scalarRepr(v)))
		}
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%s(id=%s)", d.TypeName, m.ID())
	}
	return fmt.Sprintf("%s(%s)", d.TypeName, strings.Join(parts, ", "))
}

func scalarRepr(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}

func shallowRepr(e types.Entity) string {
	d, ok := schema.Lookup(e.TypeName())
	if !ok {
		return fmt.Sprintf("%s(id=%s)", e.TypeName(), e.ID())
	}
	for _, name := range d.ShortRepr {
		fi, ok := d.Field(name)
		if !ok || fi.Kind != schema.KindScalar {
			continue
		}
		fv, ok := d.FieldValue(e, name)
		if !ok || !fv.IsSet() {
			continue
		}
		v, _ := fv.AnyValue()
		return fmt.Sprintf("%s(%s=%s)", d.TypeName, name, scalarRepr(v))
	}
	return fmt.Sprintf("%s(id=%s)", d.TypeName, e.ID())
}

func listRepr(d *schema.Descriptor, name string, v any) string {
	rel := d.Relationships[name]
	rv := reflect.ValueOf(v)

	shown := rv.Len()
	if shown > reprListLimit {
		shown = reprListLimit
	}

	parts := make([]string, 0, shown+1)
	for i := 0; i < shown; i++ {
		item := rv.Index(i).Interface()
		if rel.Strategy == relationships.StrategyComplexObject {
			parts = append(parts, shallowRepr(rel.WrapperRef(item)))
		} else {
			parts = append(parts, shallowRepr(item.(types.Entity)))
		}
	}
	if rest := rv.Len() - shown; rest > 0 {
		parts = append(parts, fmt.Sprintf("+%d more", rest))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
