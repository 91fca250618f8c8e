package reflection

import (
	"errors"
	"testing"
)

func TestFromBindingsSorts(t *testing.T) {
	b, err := FromBindings([]Binding{
		{Group: 1, Index: 0, Kind: KindSampler, Name: "linear"},
		{Group: 0, Index: 2, Kind: KindSampledTexture, Name: "albedo"},
		{Group: 0, Index: 0, Kind: KindUniformBuffer, Name: "uniforms"},
	})
	if err != nil {
		t.Fatalf("FromBindings: %v", err)
	}
	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3", b.Len())
	}
	want := []string{"uniforms", "albedo", "linear"}
	for i, bd := range b.Bindings() {
		if bd.Name != want[i] {
			t.Errorf("binding %d = %q, want %q", i, bd.Name, want[i])
		}
	}
}

func TestFromBindingsDuplicate(t *testing.T) {
	_, err := FromBindings([]Binding{
		{Group: 0, Index: 1, Kind: KindUniformBuffer, Name: "a"},
		{Group: 0, Index: 1, Kind: KindSampler, Name: "b"},
	})
	if !errors.Is(err, ErrDuplicateBinding) {
		t.Errorf("FromBindings = %v, want ErrDuplicateBinding", err)
	}

	// Same index in different groups is fine.
	if _, err := FromBindings([]Binding{
		{Group: 0, Index: 1, Name: "a"},
		{Group: 1, Index: 1, Name: "b"},
	}); err != nil {
		t.Errorf("FromBindings across groups: %v", err)
	}
}

func TestBundleLookups(t *testing.T) {
	b, err := FromBindings([]Binding{
		{Group: 0, Index: 0, Kind: KindUniformBuffer, Name: "uniforms"},
		{Group: 0, Index: 1, Kind: KindSampledTexture},
	})
	if err != nil {
		t.Fatalf("FromBindings: %v", err)
	}

	if bd, ok := b.ByName("uniforms"); !ok || bd.Index != 0 {
		t.Errorf("ByName(uniforms) = %+v, %v", bd, ok)
	}
	if _, ok := b.ByName("missing"); ok {
		t.Error("ByName(missing) returned ok")
	}
	// An empty name never matches, even against unnamed bindings.
	if _, ok := b.ByName(""); ok {
		t.Error("ByName(\"\") returned ok")
	}

	if bd, ok := b.ByIndex(0, 1); !ok || bd.Kind != KindSampledTexture {
		t.Errorf("ByIndex(0,1) = %+v, %v", bd, ok)
	}
	if _, ok := b.ByIndex(2, 0); ok {
		t.Error("ByIndex(2,0) returned ok")
	}
}

func TestBindingKindString(t *testing.T) {
	tests := []struct {
		kind BindingKind
		want string
	}{
		{KindUnknown, "Unknown"},
		{KindUniformBuffer, "UniformBuffer"},
		{KindStorageBuffer, "StorageBuffer"},
		{KindSampledTexture, "SampledTexture"},
		{KindStorageTexture, "StorageTexture"},
		{KindSampler, "Sampler"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("BindingKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
