package reflection

import (
	"fmt"

	"github.com/gogpu/naga"
)

// FromWGSL compiles WGSL source through naga and scans the emitted
// SPIR-V module for resource bindings, producing the Bundle consumed by
// variadic graph nodes.
func FromWGSL(source string) (*Bundle, error) {
	_, bundle, err := CompileWGSL(source)
	return bundle, err
}

// CompileWGSL compiles WGSL source through naga and returns both the
// SPIR-V words, ready for shader module creation, and the scanned
// binding Bundle.
func CompileWGSL(source string) ([]uint32, *Bundle, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	words, err := bytesToWords(spirvBytes)
	if err != nil {
		return nil, nil, err
	}
	bundle, err := FromSPIRV(words)
	if err != nil {
		return nil, nil, err
	}
	return words, bundle, nil
}

// bytesToWords converts SPIR-V bytes to little-endian 32-bit words.
func bytesToWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: byte length %d not word aligned", ErrMalformed, len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words, nil
}

// SPIR-V opcodes and enums used by the scanner.
const (
	spirvMagic = 0x07230203

	opName        = 5
	opTypeImage   = 25
	opTypeSampler = 26
	opTypePointer = 32
	opVariable    = 59
	opDecorate    = 71

	decBinding       = 33
	decDescriptorSet = 34

	storageUniformConstant = 0
	storageUniform         = 2
	storageStorageBuffer   = 12
)

// spirvVar accumulates per-id facts while scanning.
type spirvVar struct {
	typeID       uint32
	storageClass uint32
	hasBinding   bool
	binding      uint32
	hasSet       bool
	set          uint32
}

// FromSPIRV scans an already compiled SPIR-V module for decorated
// resource variables and builds a Bundle from them. Only modules with
// debug names yield named bindings; unnamed bindings are matched by
// position downstream.
func FromSPIRV(words []uint32) (*Bundle, error) {
	if len(words) < 5 {
		return nil, fmt.Errorf("%w: %d words", ErrMalformed, len(words))
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrMalformed, words[0])
	}

	names := map[uint32]string{}
	vars := map[uint32]*spirvVar{}
	samplerTypes := map[uint32]bool{}
	// imageSampled maps OpTypeImage result ids to their "sampled"
	// operand: 1 = sampled texture, 2 = storage texture.
	imageSampled := map[uint32]uint32{}
	pointerTo := map[uint32]uint32{}

	varAt := func(id uint32) *spirvVar {
		v, ok := vars[id]
		if !ok {
			v = &spirvVar{}
			vars[id] = v
		}
		return v
	}

	for pos := 5; pos < len(words); {
		word := words[pos]
		opcode := word & 0xFFFF
		count := int(word >> 16)
		if count == 0 || pos+count > len(words) {
			return nil, fmt.Errorf("%w: truncated instruction at word %d", ErrMalformed, pos)
		}
		operands := words[pos+1 : pos+count]

		switch opcode {
		case opName:
			if len(operands) >= 2 {
				names[operands[0]] = decodeString(operands[1:])
			}
		case opDecorate:
			if len(operands) >= 3 {
				switch operands[1] {
				case decBinding:
					v := varAt(operands[0])
					v.hasBinding = true
					v.binding = operands[2]
				case decDescriptorSet:
					v := varAt(operands[0])
					v.hasSet = true
					v.set = operands[2]
				}
			}
		case opTypeSampler:
			if len(operands) >= 1 {
				samplerTypes[operands[0]] = true
			}
		case opTypeImage:
			if len(operands) >= 7 {
				imageSampled[operands[0]] = operands[6]
			}
		case opTypePointer:
			if len(operands) >= 3 {
				pointerTo[operands[0]] = operands[2]
			}
		case opVariable:
			if len(operands) >= 3 {
				v := varAt(operands[1])
				v.typeID = operands[0]
				v.storageClass = operands[2]
			}
		}
		pos += count
	}

	var bindings []Binding
	for id, v := range vars {
		if !v.hasBinding || !v.hasSet {
			continue
		}
		pointee, ok := pointerTo[v.typeID]
		if !ok {
			pointee = v.typeID
		}
		bindings = append(bindings, Binding{
			Group: v.set,
			Index: v.binding,
			Kind:  classify(v.storageClass, pointee, samplerTypes, imageSampled),
			Name:  names[id],
		})
	}
	return FromBindings(bindings)
}

// classify derives the binding kind from the variable's storage class
// and, for UniformConstant variables, its pointee type.
func classify(storageClass, pointee uint32, samplers map[uint32]bool, imageSampled map[uint32]uint32) BindingKind {
	switch storageClass {
	case storageUniform:
		return KindUniformBuffer
	case storageStorageBuffer:
		return KindStorageBuffer
	case storageUniformConstant:
		if samplers[pointee] {
			return KindSampler
		}
		switch imageSampled[pointee] {
		case 1:
			return KindSampledTexture
		case 2:
			return KindStorageTexture
		}
		return KindSampledTexture
	default:
		return KindUnknown
	}
}

// decodeString unpacks a null-terminated literal string from SPIR-V
// words (little-endian, four bytes per word).
func decodeString(words []uint32) string {
	buf := make([]byte, 0, len(words)*4)
	for _, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(buf)
			}
			buf = append(buf, c)
		}
	}
	return string(buf)
}
