// Package schema holds the frozen per-type metadata the runtime core is
// driven by: tracked fields, input conversions, relationship declarations,
// operation names and the reflection-built field index that maps payload keys
// onto struct fields.
package schema

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/mediagraph/catalog-client/pkg/catalog/errors"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/fields"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/relationships"
)

// Kind classifies how a declared field participates in payload ingestion.
type Kind uint8

const (
	KindScalar Kind = iota
	KindSingle
	KindList
	KindWrapperList
)

// FieldInfo is one entry of a descriptor's reflection-built field index,
// keyed by the field's payload key.
type FieldInfo struct {
	Name  string
	Index []int
	Kind  Kind
	Peer  string
}

// Conversion maps a local field onto its mutation-input key and wire value.
type Conversion struct {
	InputKey string
	Convert  func(any) (any, error)
}

// Identity is the default conversion: the in-memory value is the wire value.
func Identity(v any) (any, error) { return v, nil }

// Operations names the remote operations and response keys an entity type is
// wired to. The documents themselves live with the transport.
type Operations struct {
	FindByID    string
	FindByIDKey string
	FindMany    string
	FindManyKey string
	ItemsKey    string
	FilterKey   string
	Create      string
	CreateKey   string
	Update      string
	UpdateKey   string
	Destroy     string
	DestroyKey  string
}

// Descriptor is the frozen schema of one entity type.
type Descriptor struct {
	TypeName string
	// CreateInput is empty for types the remote service only updates.
	CreateInput string
	UpdateInput string
	// New constructs a fresh, locally-identified instance.
	New func() types.Entity
	// Implements lists declared interface names satisfied by this type,
	// e.g. a concrete file type implementing "BaseFile".
	Implements []string

	Tracked       []string
	Conversions   map[string]Conversion
	Relationships map[string]relationships.Metadata
	// ShortRepr orders the fields used to render a compact description.
	ShortRepr []string
	// Selections maps payload keys to the GraphQL selection snippet used
	// when requesting that field; scalars default to the key itself.
	Selections map[string]string
	// ProtectedFields are server-side path fields whose writes are refused
	// before any transport call.
	ProtectedFields []string

	Operations Operations

	tracked    map[string]struct{}
	protected  map[string]struct{}
	fieldIndex map[string]FieldInfo
	fieldNames []string
}

// Field returns the index entry for a payload key.
func (d *Descriptor) Field(name string) (FieldInfo, bool) {
	fi, ok := d.fieldIndex[name]
	return fi, ok
}

// FieldNames returns all declared payload keys in a deterministic order.
func (d *Descriptor) FieldNames() []string {
	return d.fieldNames
}

// IsTracked reports whether a field participates in dirty detection.
func (d *Descriptor) IsTracked(name string) bool {
	_, ok := d.tracked[name]
	return ok
}

// IsProtected reports whether a field write must be refused.
func (d *Descriptor) IsProtected(name string) bool {
	_, ok := d.protected[name]
	return ok
}

// Selection returns the GraphQL selection snippet for a field.
func (d *Descriptor) Selection(name string) string {
	if sel, ok := d.Selections[name]; ok {
		return sel
	}
	if fi, ok := d.fieldIndex[name]; ok && fi.Kind != KindScalar {
		return name + " { __typename id }"
	}
	return name
}

// FieldValue returns the tri-state holder of a declared field on e. The
// second return is false when the field is unknown or e is not an instance
// of this descriptor's type.
func (d *Descriptor) FieldValue(e types.Entity, name string) (fields.Value, bool) {
	fi, ok := d.fieldIndex[name]
	if !ok {
		return nil, false
	}
	rv := reflect.ValueOf(e)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, false
	}
	fv := rv.Elem().FieldByIndex(fi.Index)
	holder, ok := fv.Addr().Interface().(fields.Value)
	return holder, ok
}

var registry = struct {
	sync.RWMutex
	byName map[string]*Descriptor
	byType map[reflect.Type]string
}{
	byName: map[string]*Descriptor{},
	byType: map[reflect.Type]string{},
}

// MustRegister freezes and registers a descriptor, building its field index
// by reflecting over a prototype instance. It panics on invalid or duplicate
// declarations; descriptors are registered from package init functions.
func MustRegister(d *Descriptor) {
	if d.TypeName == "" || d.New == nil {
		panic("schema: descriptor needs a type name and a factory")
	}

	proto := d.New()
	rt := reflect.TypeOf(proto)
	if rt.Kind() != reflect.Pointer || rt.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("schema: %s factory must return a struct pointer", d.TypeName))
	}

	d.fieldIndex = map[string]FieldInfo{}
	indexStructFields(d, rt.Elem(), nil)

	d.fieldNames = make([]string, 0, len(d.fieldIndex))
	for name := range d.fieldIndex {
		d.fieldNames = append(d.fieldNames, name)
	}
	sort.Strings(d.fieldNames)

	d.tracked = map[string]struct{}{}
	for _, name := range d.Tracked {
		if _, ok := d.fieldIndex[name]; !ok {
			panic(fmt.Sprintf("schema: %s tracks undeclared field %q", d.TypeName, name))
		}
		d.tracked[name] = struct{}{}
	}

	d.protected = map[string]struct{}{}
	for _, name := range d.ProtectedFields {
		d.protected[name] = struct{}{}
	}

	if d.Conversions == nil {
		d.Conversions = map[string]Conversion{}
	}
	// Tracked scalars without an explicit conversion emit as themselves.
	for name := range d.tracked {
		if _, ok := d.Conversions[name]; ok {
			continue
		}
		if _, ok := d.Relationships[name]; ok {
			continue
		}
		d.Conversions[name] = Conversion{InputKey: name, Convert: Identity}
	}

	if d.Selections == nil {
		d.Selections = map[string]string{}
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byName[d.TypeName]; dup {
		panic(fmt.Sprintf("schema: duplicate registration of %s", d.TypeName))
	}
	registry.byName[d.TypeName] = d
	registry.byType[rt] = d.TypeName
}

func indexStructFields(d *Descriptor, st reflect.Type, prefix []int) {
	valueIface := reflect.TypeOf((*fields.Value)(nil)).Elem()

	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if sf.Anonymous {
			if sf.Type.Kind() == reflect.Struct {
				indexStructFields(d, sf.Type, append(append([]int{}, prefix...), i))
			}
			continue
		}

		tag := sf.Tag.Get("graph")
		if tag == "" || tag == "-" {
			continue
		}

		if !reflect.PointerTo(sf.Type).Implements(valueIface) {
			panic(fmt.Sprintf("schema: %s.%s is tagged graph:%q but is not a fields.Field", d.TypeName, sf.Name, tag))
		}

		fi := FieldInfo{
			Name:  tag,
			Index: append(append([]int{}, prefix...), i),
			Kind:  KindScalar,
		}
		if rel, ok := d.Relationships[tag]; ok {
			fi.Peer = rel.PeerType
			switch {
			case rel.Strategy == relationships.StrategyComplexObject:
				fi.Kind = KindWrapperList
			case rel.IsList:
				fi.Kind = KindList
			default:
				fi.Kind = KindSingle
			}
		}

		if _, dup := d.fieldIndex[tag]; dup {
			panic(fmt.Sprintf("schema: %s declares field %q twice", d.TypeName, tag))
		}
		d.fieldIndex[tag] = fi
	}
}

// Lookup returns the descriptor registered for a type name.
func Lookup(typeName string) (*Descriptor, bool) {
	registry.RLock()
	defer registry.RUnlock()
	d, ok := registry.byName[typeName]
	return d, ok
}

// NameFor returns the registered type name of the concrete entity type T.
func NameFor[T types.Entity]() (string, bool) {
	registry.RLock()
	defer registry.RUnlock()
	name, ok := registry.byType[reflect.TypeOf((*T)(nil)).Elem()]
	return name, ok
}

// ResolveConcrete picks the descriptor for an incoming payload: the payload's
// type tag when present (which must name the declared type or one of its
// implementers), the declared type otherwise.
func ResolveConcrete(declared, typeTag string) (*Descriptor, error) {
	if typeTag == "" || typeTag == declared {
		d, ok := Lookup(declared)
		if !ok {
			return nil, errors.NewTypeMismatchError(declared, typeTag)
		}
		return d, nil
	}

	d, ok := Lookup(typeTag)
	if !ok {
		return nil, errors.NewTypeMismatchError(declared, typeTag)
	}
	for _, iface := range d.Implements {
		if iface == declared {
			return d, nil
		}
	}
	return nil, errors.NewTypeMismatchError(declared, typeTag)
}
