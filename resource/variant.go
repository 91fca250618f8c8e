package resource

import (
	"errors"
	"fmt"
)

// Package errors for resource access.
var (
	// ErrTypeMismatch is returned when a Variant is read with a type
	// tag that does not match the stored tag.
	ErrTypeMismatch = errors.New("resource: type mismatch")

	// ErrMissingValue is returned when an unset Variant is read where
	// a value is required.
	ErrMissingValue = errors.New("resource: missing value")
)

// Variant is a type-tagged container holding one opaque resource value.
//
// A Variant is owned by the node whose output slot produced it; consumers
// receive copies of the Variant but the contained value is shared, so they
// must respect the producing slot's declared [Lifetime].
//
// The zero Variant is unset: its tag is TypeInvalid and every read fails
// with ErrMissingValue.
type Variant struct {
	typ Type
	val any
}

// New creates a Variant holding val with the given tag.
//
// The stored value must be comparable with == (handles, numerics, struct
// pointers), except for TypeGathered which holds a []Variant compared
// element-wise. This mirrors the identity checks dirty guards rely on.
func New(t Type, val any) Variant {
	return Variant{typ: t, val: val}
}

// Type returns the stored tag, TypeInvalid if the Variant is unset.
func (v Variant) Type() Type { return v.typ }

// IsSet reports whether the Variant holds a value.
func (v Variant) IsSet() bool { return v.typ != TypeInvalid }

// Value returns the stored value after checking the tag.
// It fails with ErrMissingValue if the Variant is unset, or
// ErrTypeMismatch if want differs from the stored tag.
func (v Variant) Value(want Type) (any, error) {
	if !v.IsSet() {
		return nil, fmt.Errorf("%w: read %s from unset variant", ErrMissingValue, want)
	}
	if v.typ != want {
		return nil, fmt.Errorf("%w: stored %s, requested %s", ErrTypeMismatch, v.typ, want)
	}
	return v.val, nil
}

// Get returns the stored value as T after checking both the tag and the
// concrete Go type. There is no implicit conversion between tags.
func Get[T any](v Variant, want Type) (T, error) {
	var zero T
	raw, err := v.Value(want)
	if err != nil {
		return zero, err
	}
	out, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, requested %T", ErrTypeMismatch, v.typ, raw, zero)
	}
	return out, nil
}

// Gathered returns the ordered Variant array stored in a TypeGathered
// Variant.
func (v Variant) Gathered() ([]Variant, error) {
	raw, err := v.Value(TypeGathered)
	if err != nil {
		return nil, err
	}
	arr, ok := raw.([]Variant)
	if !ok {
		return nil, fmt.Errorf("%w: Gathered holds %T", ErrTypeMismatch, raw)
	}
	return arr, nil
}

// Equal reports whether two Variants hold the same tag and the same
// value. Unset Variants are equal to each other. This is the identity
// used by dirty guards: a regenerated handle compares unequal even when
// it describes the same logical resource.
func (v Variant) Equal(o Variant) bool {
	if v.typ != o.typ {
		return false
	}
	if !v.IsSet() {
		return true
	}
	if v.typ == TypeGathered {
		va, aok := v.val.([]Variant)
		oa, ook := o.val.([]Variant)
		if !aok || !ook || len(va) != len(oa) {
			return false
		}
		for i := range va {
			if !va[i].Equal(oa[i]) {
				return false
			}
		}
		return true
	}
	return v.val == o.val
}

// String returns a short debug form like "Variant(Buffer)".
func (v Variant) String() string {
	if !v.IsSet() {
		return "Variant(unset)"
	}
	return fmt.Sprintf("Variant(%s)", v.typ)
}
