// Package fields implements the tri-state field model used by all catalog
// entities. Every declared field is Unset, Null or a value; the three states
// survive JSON round-trips bit-exactly: Unset fields are omitted from wire
// payloads (via omitzero), Null fields serialize as explicit null, and values
// serialize as themselves.
package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// State enumerates the three states a field can be in.
type State uint8

const (
	StateUnset State = iota
	StateNull
	StateSet
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "null"
	case StateSet:
		return "set"
	default:
		return "unset"
	}
}

type unsetSentinel struct{}

func (unsetSentinel) String() string { return "UNSET" }

// UnsetValue is the process-wide sentinel standing in for "never observed or
// assigned". It is comparable and distinguishable from nil and from any user
// value, so snapshot encodings and diagnostics can carry it safely.
var UnsetValue unsetSentinel

// IsUnsetValue reports whether v is the unset sentinel.
func IsUnsetValue(v any) bool {
	_, ok := v.(unsetSentinel)
	return ok
}

// Value is the type-erased view of a *Field[T]. Schema reflection manipulates
// fields through this interface without knowing the concrete value type.
type Value interface {
	State() State
	IsUnset() bool
	IsNull() bool
	IsSet() bool
	// AnyValue returns the stored value and true when the field is set.
	AnyValue() (any, bool)
	// SetAny assigns v, which must be assignable to the field's value type.
	SetAny(v any) error
	SetNull()
	Clear()
	// ValueType returns the declared value type of the field.
	ValueType() reflect.Type
}

// Field is a sum of Unset | Null | Value(T). The zero Field is Unset.
type Field[T any] struct {
	state State
	value T
}

// Of returns a field holding v.
func Of[T any](v T) Field[T] {
	return Field[T]{state: StateSet, value: v}
}

// Null returns an explicitly null field.
func Null[T any]() Field[T] {
	return Field[T]{state: StateNull}
}

// Unset returns an unset field. Equivalent to the zero value.
func Unset[T any]() Field[T] {
	return Field[T]{}
}

func (f Field[T]) State() State  { return f.state }
func (f Field[T]) IsUnset() bool { return f.state == StateUnset }
func (f Field[T]) IsNull() bool  { return f.state == StateNull }
func (f Field[T]) IsSet() bool   { return f.state == StateSet }

// IsZero reports Unset so that `json:"...,omitzero"` drops unset fields from
// marshalled payloads.
func (f Field[T]) IsZero() bool { return f.state == StateUnset }

// Get returns the value and true when the field is set.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == StateSet
}

// MustGet returns the value or panics when the field is not set.
func (f Field[T]) MustGet() T {
	if f.state != StateSet {
		panic(fmt.Sprintf("fields: MustGet on %s field", f.state))
	}
	return f.value
}

// Or returns the value when set, fallback otherwise.
func (f Field[T]) Or(fallback T) T {
	if f.state == StateSet {
		return f.value
	}
	return fallback
}

// Ptr returns a pointer to a copy of the value, or nil when not set.
func (f Field[T]) Ptr() *T {
	if f.state != StateSet {
		return nil
	}
	v := f.value
	return &v
}

// Set assigns v and moves the field to the set state.
func (f *Field[T]) Set(v T) {
	f.state = StateSet
	f.value = v
}

// SetNull moves the field to the explicit-null state.
func (f *Field[T]) SetNull() {
	var zero T
	f.state = StateNull
	f.value = zero
}

// Clear resets the field to the unset state.
func (f *Field[T]) Clear() {
	var zero T
	f.state = StateUnset
	f.value = zero
}

func (f *Field[T]) AnyValue() (any, bool) {
	if f.state != StateSet {
		return nil, false
	}
	return f.value, true
}

func (f *Field[T]) SetAny(v any) error {
	if v == nil {
		f.SetNull()
		return nil
	}
	tv, ok := v.(T)
	if !ok {
		return fmt.Errorf("fields: cannot assign %T to field of %s", v, f.ValueType())
	}
	f.Set(tv)
	return nil
}

func (f *Field[T]) ValueType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (f Field[T]) String() string {
	switch f.state {
	case StateSet:
		return fmt.Sprintf("%v", f.value)
	case StateNull:
		return "null"
	default:
		return UnsetValue.String()
	}
}

var nullLiteral = []byte("null")

// MarshalJSON emits explicit null for Null fields. Unset fields also emit
// null here; callers keep them off the wire with the omitzero tag option.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.state != StateSet {
		return nullLiteral, nil
	}
	return json.Marshal(f.value)
}

// UnmarshalJSON maps JSON null to the explicit-null state and any present
// value to the set state. Keys absent from a payload never reach this method,
// which is what keeps absent fields Unset.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), nullLiteral) {
		f.SetNull()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Set(v)
	return nil
}
