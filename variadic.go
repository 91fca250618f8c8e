package rendergraph

import (
	"fmt"
	"sort"

	"github.com/gogpu/rendergraph/reflection"
	"github.com/gogpu/rendergraph/resource"
)

// SlotStatus tracks a variadic slot through negotiation.
type SlotStatus uint8

const (
	// Tentative slots were pre-registered or connected before the
	// reflection bundle existed and are not yet validated.
	Tentative SlotStatus = iota

	// Confirmed slots matched a discovered binding with a compatible
	// type and are bound to its binding index.
	Confirmed

	// Invalid slots failed validation; an Invalid slot fails Compile.
	Invalid
)

// String returns the status name.
func (s SlotStatus) String() string {
	switch s {
	case Confirmed:
		return "Confirmed"
	case Invalid:
		return "Invalid"
	default:
		return "Tentative"
	}
}

// VariadicSlot is one dynamically discovered input of a variadic node.
type VariadicSlot struct {
	// Name is the declared slot name, matched against shader-declared
	// binding names. When both a name and a binding hint are available
	// and disagree, the name is authoritative.
	Name string

	// BindingHint is the caller's expected binding index, used to
	// match bindings the shader reports without a name.
	BindingHint uint32

	// Binding is the discovered binding index. Valid once Confirmed;
	// it overrides BindingHint.
	Binding uint32

	// Type is the expected resource tag for values bound to this slot.
	Type resource.Type

	// Role distinguishes Dependency from ExecuteOnly variadic inputs.
	Role SlotRole

	// Status is the slot's negotiation state.
	Status SlotStatus

	conn *edge
}

// Connected reports whether a producer is wired to this slot.
func (s *VariadicSlot) Connected() bool { return s.conn != nil }

// value returns the producer's current output, unset when unconnected.
func (s *VariadicSlot) value() resource.Variant {
	if s.conn == nil {
		return resource.Variant{}
	}
	return s.conn.from.outputs[s.conn.fromOut]
}

// VariadicState is the optional per-instance extension backing variadic
// slot negotiation. The graph attaches one to every instance whose
// schema declares a variadic input; [Instance.Variadic] exposes it.
//
// Protocol per compile: tentative slots are registered up front (or
// created by ConnectVariadic), the node's Compile reads its reflection
// bundle and calls Negotiate, and Execute calls Gather to collect the
// confirmed values ordered by ascending binding index.
type VariadicState struct {
	owner *Instance
	decl  SlotDescriptor
	slots []*VariadicSlot
}

// newVariadicState attaches negotiation state for decl to owner.
func newVariadicState(owner *Instance, decl SlotDescriptor) *VariadicState {
	return &VariadicState{owner: owner, decl: decl}
}

// PreRegister declares a tentative slot by name and expected binding
// before the real requirement list exists, so connections can be made
// ahead of Compile. Duplicate names fail with ErrSchemaViolation.
func (vs *VariadicState) PreRegister(name string, bindingHint uint32, t resource.Type, role SlotRole) (*VariadicSlot, error) {
	if name == "" {
		return nil, nodeErr(vs.owner.name, vs.decl.Name,
			fmt.Errorf("%w: empty variadic slot name", ErrSchemaViolation))
	}
	if vs.byName(name) != nil {
		return nil, nodeErr(vs.owner.name, name,
			fmt.Errorf("%w: variadic slot already registered", ErrSchemaViolation))
	}
	if max := vs.decl.Arity.Max; max != 0 && len(vs.slots) >= max {
		return nil, nodeErr(vs.owner.name, name,
			fmt.Errorf("%w: at most %d variadic slots", ErrVariadicArity, max))
	}
	slot := &VariadicSlot{
		Name:        name,
		BindingHint: bindingHint,
		Type:        t,
		Role:        role,
		Status:      Tentative,
	}
	vs.slots = append(vs.slots, slot)
	return slot, nil
}

// Slots returns the registered slots in registration order.
func (vs *VariadicState) Slots() []*VariadicSlot {
	out := make([]*VariadicSlot, len(vs.slots))
	copy(out, vs.slots)
	return out
}

// Slot returns the registered slot with the given name.
func (vs *VariadicState) Slot(name string) (*VariadicSlot, bool) {
	s := vs.byName(name)
	return s, s != nil
}

func (vs *VariadicState) byName(name string) *VariadicSlot {
	for _, s := range vs.slots {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Negotiate validates every tentative slot against the discovered
// binding list. Matching is by name first; the binding hint is only a
// fallback for bindings the shader reports without a name. On success
// all slots are Confirmed and bound to their discovered binding index.
//
// Failures name the first offending slot: a discovered binding with no
// matching tentative slot fails with ErrMissingRequiredInput, a slot
// with no corresponding binding or a type mismatch fails with
// ErrVariadicTypeMismatch. Negotiate is re-entered on recompile and
// resets slot state first.
func (vs *VariadicState) Negotiate(bundle *reflection.Bundle) error {
	node := vs.owner.name
	for _, s := range vs.slots {
		s.Status = Tentative
	}
	if bundle == nil {
		return nodeErr(node, vs.decl.Name,
			fmt.Errorf("%w: no reflection bundle", ErrMissingRequiredInput))
	}

	discovered := bundle.Bindings()
	if min := vs.decl.Arity.Min; len(discovered) < min {
		return nodeErr(node, vs.decl.Name,
			fmt.Errorf("%w: %d bindings discovered, at least %d required",
				ErrVariadicArity, len(discovered), min))
	}
	if max := vs.decl.Arity.Max; max != 0 && len(discovered) > max {
		return nodeErr(node, vs.decl.Name,
			fmt.Errorf("%w: %d bindings discovered, at most %d allowed",
				ErrVariadicArity, len(discovered), max))
	}

	type bindingKey struct{ group, index uint32 }
	matched := make(map[*VariadicSlot]reflection.Binding)
	taken := make(map[*VariadicSlot]bool)
	claimed := make(map[bindingKey]bool)

	// Pass 1: named bindings match slots by declared name.
	for _, b := range discovered {
		if b.Name == "" {
			continue
		}
		if s := vs.byName(b.Name); s != nil && !taken[s] {
			matched[s] = b
			taken[s] = true
			claimed[bindingKey{b.Group, b.Index}] = true
		}
	}
	// Pass 2: unnamed bindings fall back to the pre-registered binding
	// hint. Named bindings never hint-match: a name that matched no slot
	// is a real interface mismatch and must fail below.
	for _, b := range discovered {
		if b.Name != "" || claimed[bindingKey{b.Group, b.Index}] {
			continue
		}
		for _, s := range vs.slots {
			if !taken[s] && s.BindingHint == b.Index {
				matched[s] = b
				taken[s] = true
				claimed[bindingKey{b.Group, b.Index}] = true
				break
			}
		}
	}

	// Every slot needs a binding with a compatible type. Checked before
	// the binding sweep so a renamed binding blames the stale slot.
	for _, s := range vs.slots {
		b, ok := matched[s]
		if !ok {
			s.Status = Invalid
			return nodeErr(node, s.Name,
				fmt.Errorf("%w: no discovered binding for slot %q", ErrVariadicTypeMismatch, s.Name))
		}
		want := bindingType(b.Kind)
		if !resource.Compatible(s.Type, want) {
			s.Status = Invalid
			return nodeErr(node, s.Name,
				fmt.Errorf("%w: slot %q declared %s, shader requires %s",
					ErrVariadicTypeMismatch, s.Name, s.Type, want))
		}
		if s.Role == Dependency && s.conn == nil {
			s.Status = Invalid
			return nodeErr(node, s.Name,
				fmt.Errorf("%w: variadic slot %q unconnected", ErrMissingRequiredInput, s.Name))
		}
	}
	// Every discovered binding needs a slot.
	for _, b := range discovered {
		if !claimed[bindingKey{b.Group, b.Index}] {
			label := b.Name
			if label == "" {
				label = fmt.Sprintf("binding %d", b.Index)
			}
			return nodeErr(node, label,
				fmt.Errorf("%w: shader requires %s (%s) with no registered slot",
					ErrMissingRequiredInput, label, b.Kind))
		}
	}
	for _, s := range vs.slots {
		s.Binding = matched[s].Index
		s.Status = Confirmed
	}

	Logger().Debug("variadic negotiation confirmed",
		"node", node, "slots", len(vs.slots))
	return nil
}

// Gather collects the confirmed slots' current values into one Variant
// array ordered strictly by ascending discovered binding index. The
// ordering is a hard contract: downstream binders write the array
// positionally. Unconfirmed state fails with ErrPhase.
func (vs *VariadicState) Gather() (resource.Variant, error) {
	ordered, err := vs.confirmed()
	if err != nil {
		return resource.Variant{}, err
	}
	arr := make([]resource.Variant, len(ordered))
	for i, s := range ordered {
		arr[i] = s.value()
	}
	return resource.New(resource.TypeGathered, arr), nil
}

// dependencyValues returns confirmed dependency slot values in binding
// order, for the owner's dirty-guard snapshot.
func (vs *VariadicState) dependencyValues() []resource.Variant {
	ordered, err := vs.confirmed()
	if err != nil {
		return nil
	}
	var out []resource.Variant
	for _, s := range ordered {
		if s.Role == Dependency {
			out = append(out, s.value())
		}
	}
	return out
}

// confirmed returns all slots ordered by ascending binding index,
// failing unless every slot is Confirmed.
func (vs *VariadicState) confirmed() ([]*VariadicSlot, error) {
	ordered := make([]*VariadicSlot, 0, len(vs.slots))
	for _, s := range vs.slots {
		if s.Status != Confirmed {
			return nil, nodeErr(vs.owner.name, s.Name,
				fmt.Errorf("%w: variadic slot %q is %s, not Confirmed", ErrPhase, s.Name, s.Status))
		}
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Binding < ordered[j].Binding })
	return ordered, nil
}

// bindingType maps a reflected binding kind to the resource tag a slot
// must carry to satisfy it.
func bindingType(k reflection.BindingKind) resource.Type {
	switch k {
	case reflection.KindUniformBuffer, reflection.KindStorageBuffer:
		return resource.TypeBuffer
	case reflection.KindSampledTexture, reflection.KindStorageTexture:
		return resource.TypeTextureView
	case reflection.KindSampler:
		return resource.TypeSampler
	default:
		return resource.TypeInvalid
	}
}
