package rendergraph

import (
	"errors"
	"testing"

	"github.com/gogpu/rendergraph/resource"
)

func newParamNode(t *testing.T) *Instance {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(&Schema{
		TypeName: "test.Params",
		Outputs:  []SlotDescriptor{OutputSlot(0, "out", resource.TypeBuffer)},
		Params: map[string]any{
			"width":  uint32(1280),
			"format": "rgba8",
		},
	}, func() NodeLogic { return &funcLogic{} })

	g := New(Options{Registry: reg})
	n, err := g.AddNode("test.Params", "n")
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	return n
}

func TestInstanceParams(t *testing.T) {
	n := newParamNode(t)

	if got := n.Param("width"); got != uint32(1280) {
		t.Errorf("Param(width) = %v, want schema default 1280", got)
	}
	if got := n.Param("absent"); got != nil {
		t.Errorf("Param(absent) = %v, want nil", got)
	}

	n.SetParam("width", uint32(640))
	if got := n.Param("width"); got != uint32(640) {
		t.Errorf("Param(width) after override = %v, want 640", got)
	}

	if got := ParamAs(n, "width", uint32(0)); got != 640 {
		t.Errorf("ParamAs(width) = %d, want 640", got)
	}
	if got := ParamAs(n, "format", ""); got != "rgba8" {
		t.Errorf("ParamAs(format) = %q, want rgba8", got)
	}
	// Wrong type and absent both fall back.
	if got := ParamAs(n, "width", "fallback"); got != "fallback" {
		t.Errorf("ParamAs wrong type = %q, want fallback", got)
	}
	if got := ParamAs(n, "absent", 42); got != 42 {
		t.Errorf("ParamAs absent = %d, want 42", got)
	}
}

func TestInstanceSetOutTagCheck(t *testing.T) {
	n := newParamNode(t)

	if err := n.SetOut(0, resource.New(resource.TypeBuffer, uint64(1))); err != nil {
		t.Fatalf("SetOut matching tag: %v", err)
	}
	err := n.SetOut(0, resource.New(resource.TypeTextureView, uint64(2)))
	if !errors.Is(err, ErrConnectionTypeMismatch) {
		t.Errorf("SetOut wrong tag = %v, want ErrConnectionTypeMismatch", err)
	}
	if v, _ := resource.Get[uint64](n.Out(0), resource.TypeBuffer); v != 1 {
		t.Errorf("rejected SetOut overwrote the output: %v", n.Out(0))
	}

	if err := n.SetOut(3, resource.Variant{}); err == nil {
		t.Error("SetOut out of range succeeded")
	}

	n.ClearOut(0)
	if n.Out(0).IsSet() {
		t.Error("output still set after ClearOut")
	}
}

func TestInstanceTags(t *testing.T) {
	n := newParamNode(t)

	if n.HasTag("resize") {
		t.Error("fresh instance carries a tag")
	}
	n.AddTag("resize")
	n.AddTag("swapchain")
	if !n.HasTag("resize") || !n.HasTag("swapchain") {
		t.Error("AddTag did not stick")
	}
	n.RemoveTag("resize")
	if n.HasTag("resize") {
		t.Error("RemoveTag did not remove")
	}
	if !n.HasTag("swapchain") {
		t.Error("RemoveTag removed the wrong tag")
	}
}

func TestNodeError(t *testing.T) {
	cause := errors.New("underlying")
	err := nodeErr("blur", "input", cause)
	var ne *NodeError
	if !errors.As(err, &ne) || ne.Node != "blur" || ne.Slot != "input" {
		t.Fatalf("nodeErr = %#v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("NodeError does not unwrap to its cause")
	}
	if got := err.Error(); got != `node "blur" slot "input": underlying` {
		t.Errorf("Error() = %q", got)
	}

	// Already-wrapped errors keep their original location.
	rewrapped := nodeErr("other", "slot", err)
	var ne2 *NodeError
	errors.As(rewrapped, &ne2)
	if ne2.Node != "blur" {
		t.Errorf("nodeErr re-wrapped: node = %q, want blur", ne2.Node)
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{Created, "Created"},
		{SetupDone, "SetupDone"},
		{Compiled, "Compiled"},
		{CleanedUp, "CleanedUp"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}
