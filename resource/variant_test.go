package resource

import (
	"errors"
	"testing"
)

func TestVariantUnset(t *testing.T) {
	var v Variant

	if v.IsSet() {
		t.Error("zero Variant reports IsSet")
	}
	if v.Type() != TypeInvalid {
		t.Errorf("zero Variant tag = %v, want TypeInvalid", v.Type())
	}
	if _, err := v.Value(TypeBuffer); !errors.Is(err, ErrMissingValue) {
		t.Errorf("Value on unset = %v, want ErrMissingValue", err)
	}
	if _, err := Get[uint64](v, TypeBuffer); !errors.Is(err, ErrMissingValue) {
		t.Errorf("Get on unset = %v, want ErrMissingValue", err)
	}
}

func TestVariantTagCheck(t *testing.T) {
	tests := []struct {
		name    string
		stored  Type
		want    Type
		wantErr error
	}{
		{"matching tag", TypeBuffer, TypeBuffer, nil},
		{"buffer read as image", TypeBuffer, TypeTexture, ErrTypeMismatch},
		{"image read as buffer", TypeTexture, TypeBuffer, ErrTypeMismatch},
		{"pipeline read as device", TypeComputePipeline, TypeDevice, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(tt.stored, uint64(42))
			got, err := v.Value(tt.want)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Value(%v) error = %v, want %v", tt.want, err, tt.wantErr)
			}
			if tt.wantErr == nil && got != uint64(42) {
				t.Errorf("Value(%v) = %v, want 42", tt.want, got)
			}
		})
	}
}

func TestVariantGetTyped(t *testing.T) {
	v := New(TypeBuffer, uint64(7))

	got, err := Get[uint64](v, TypeBuffer)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 7 {
		t.Errorf("Get = %d, want 7", got)
	}

	// Correct tag, wrong concrete type.
	if _, err := Get[string](v, TypeBuffer); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Get with wrong Go type = %v, want ErrTypeMismatch", err)
	}
}

func TestVariantEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Variant
		want bool
	}{
		{"both unset", Variant{}, Variant{}, true},
		{"same tag same value", New(TypeBuffer, uint64(1)), New(TypeBuffer, uint64(1)), true},
		{"same tag different value", New(TypeBuffer, uint64(1)), New(TypeBuffer, uint64(2)), false},
		{"different tag same value", New(TypeBuffer, uint64(1)), New(TypeTexture, uint64(1)), false},
		{"set vs unset", New(TypeBuffer, uint64(1)), Variant{}, false},
		{
			"equal gathered arrays",
			New(TypeGathered, []Variant{New(TypeBuffer, uint64(1)), New(TypeSampler, uint64(2))}),
			New(TypeGathered, []Variant{New(TypeBuffer, uint64(1)), New(TypeSampler, uint64(2))}),
			true,
		},
		{
			"gathered arrays differ in element",
			New(TypeGathered, []Variant{New(TypeBuffer, uint64(1))}),
			New(TypeGathered, []Variant{New(TypeBuffer, uint64(9))}),
			false,
		},
		{
			"gathered arrays differ in length",
			New(TypeGathered, []Variant{New(TypeBuffer, uint64(1))}),
			New(TypeGathered, []Variant{}),
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal (reversed) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariantGathered(t *testing.T) {
	arr := []Variant{New(TypeTextureView, uint64(3)), New(TypeBuffer, uint64(4))}
	v := New(TypeGathered, arr)

	got, err := v.Gathered()
	if err != nil {
		t.Fatalf("Gathered: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Gathered len = %d, want 2", len(got))
	}
	if !got[0].Equal(arr[0]) || !got[1].Equal(arr[1]) {
		t.Error("Gathered elements do not match stored array")
	}

	if _, err := New(TypeBuffer, uint64(1)).Gathered(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Gathered on Buffer variant = %v, want ErrTypeMismatch", err)
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		name     string
		produced Type
		consumed Type
		want     bool
	}{
		{"identical buffer", TypeBuffer, TypeBuffer, true},
		{"identical view", TypeTextureView, TypeTextureView, true},
		{"buffer into image", TypeBuffer, TypeTexture, false},
		{"texture into view", TypeTexture, TypeTextureView, false},
		{"invalid into anything", TypeInvalid, TypeBuffer, false},
		{"invalid into invalid", TypeInvalid, TypeInvalid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compatible(tt.produced, tt.consumed); got != tt.want {
				t.Errorf("Compatible(%v, %v) = %v, want %v", tt.produced, tt.consumed, got, tt.want)
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	if TypeBuffer.String() != "Buffer" {
		t.Errorf("TypeBuffer.String() = %q", TypeBuffer.String())
	}
	if Type(999).String() != "Type(999)" {
		t.Errorf("out of range String() = %q", Type(999).String())
	}
	if !TypeDevice.IsHandle() {
		t.Error("TypeDevice.IsHandle() = false")
	}
	if TypeGathered.IsHandle() {
		t.Error("TypeGathered.IsHandle() = true")
	}
}
