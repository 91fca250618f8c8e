package rendergraph

import (
	"errors"
	"testing"

	"github.com/gogpu/rendergraph/resource"
)

func TestRegistryRegisterLookup(t *testing.T) {
	reg := NewRegistry()
	schema := &Schema{
		TypeName: "test.Pass",
		Inputs:   []SlotDescriptor{InputSlot(0, "color", resource.TypeTextureView)},
		Outputs:  []SlotDescriptor{OutputSlot(0, "color", resource.TypeTextureView)},
		Params:   map[string]any{"samples": 1},
	}
	if err := reg.Register(schema, func() NodeLogic { return &BaseNode{} }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := reg.Lookup("test.Pass")
	if !ok {
		t.Fatal("Lookup failed after Register")
	}
	if got.TypeName != "test.Pass" || len(got.Inputs) != 1 || got.Params["samples"] != 1 {
		t.Errorf("Lookup returned %+v", got)
	}
	if _, ok := reg.Lookup("test.Missing"); ok {
		t.Error("Lookup(test.Missing) returned ok")
	}
}

func TestRegistryDuplicateType(t *testing.T) {
	reg := NewRegistry()
	schema := &Schema{
		TypeName: "test.Dup",
		Outputs:  []SlotDescriptor{OutputSlot(0, "out", resource.TypeBuffer)},
	}
	factory := func() NodeLogic { return &BaseNode{} }
	if err := reg.Register(schema, factory); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := reg.Register(schema, factory); !errors.Is(err, ErrDuplicateType) {
		t.Errorf("second Register = %v, want ErrDuplicateType", err)
	}
}

func TestRegistryRejectsBadSchema(t *testing.T) {
	reg := NewRegistry()
	bad := &Schema{
		TypeName: "test.Bad",
		Inputs: []SlotDescriptor{
			InputSlot(0, "a", resource.TypeBuffer),
			InputSlot(0, "b", resource.TypeBuffer),
		},
	}
	if err := reg.Register(bad, func() NodeLogic { return &BaseNode{} }); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("Register bad schema = %v, want ErrSchemaViolation", err)
	}
	if err := reg.Register(&Schema{TypeName: "test.NilFactory"}, nil); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("Register nil factory = %v, want ErrSchemaViolation", err)
	}
}

func TestRegistryFreezesSchema(t *testing.T) {
	reg := NewRegistry()
	schema := &Schema{
		TypeName: "test.Frozen",
		Inputs:   []SlotDescriptor{InputSlot(0, "in", resource.TypeBuffer)},
	}
	if err := reg.Register(schema, func() NodeLogic { return &BaseNode{} }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Mutating the caller's copy must not leak into the registry.
	schema.Inputs[0].Name = "mutated"
	got, _ := reg.Lookup("test.Frozen")
	if got.Inputs[0].Name != "in" {
		t.Errorf("registered schema observed caller mutation: %q", got.Inputs[0].Name)
	}
}

func TestRegistryUnregisterAndTypes(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"test.A", "test.B"} {
		reg.MustRegister(&Schema{TypeName: name}, func() NodeLogic { return &BaseNode{} })
	}
	if got := len(reg.Types()); got != 2 {
		t.Fatalf("Types() has %d entries, want 2", got)
	}
	reg.Unregister("test.A")
	if _, ok := reg.Lookup("test.A"); ok {
		t.Error("Lookup succeeded after Unregister")
	}
	if got := len(reg.Types()); got != 1 {
		t.Errorf("Types() has %d entries after Unregister, want 1", got)
	}
}

func TestMustRegisterPanics(t *testing.T) {
	reg := NewRegistry()
	defer func() {
		if recover() == nil {
			t.Error("MustRegister did not panic on invalid schema")
		}
	}()
	reg.MustRegister(&Schema{}, func() NodeLogic { return &BaseNode{} })
}
