package nodes

import (
	"fmt"
	"sync"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/internal/cache"
	"github.com/gogpu/rendergraph/reflection"
	"github.com/gogpu/rendergraph/resource"
)

// compiledShader is one memoized CPU-side compile result: SPIR-V words
// plus the scanned binding bundle. GPU modules are per-node and never
// cached here.
type compiledShader struct {
	words  []uint32
	bundle *reflection.Bundle
}

var (
	shaderCacheMu sync.Mutex
	shaderCache   = cache.New[uint64, compiledShader](cache.DefaultCapacity)
)

// ShaderModuleNode compiles a shader and publishes both the GPU module
// and its reflected binding interface.
//
// The usual path is the "source" parameter holding WGSL, compiled
// through naga and memoized by content hash so recompiles of an
// unchanged shader skip the compiler. Alternatively "spirv" supplies
// precompiled words directly, with "layout" optionally overriding the
// bundle scanned from them.
type ShaderModuleNode struct {
	rendergraph.BaseNode
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.ShaderModule",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "module", resource.TypeShaderModule),
			rendergraph.OutputSlot(1, "bindings", resource.TypeReflection),
		},
		Params: map[string]any{
			"source": "",
			"spirv":  nil,
			"layout": nil,
			"entry":  "main",
			"label":  "",
		},
	}, func() rendergraph.NodeLogic { return &ShaderModuleNode{} })
}

// Compile resolves the SPIR-V, creates the module through the factory
// and publishes module + bundle.
func (s *ShaderModuleNode) Compile(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	words, bundle, err := shaderWords(n)
	if err != nil {
		return err
	}

	label := rendergraph.ParamAs(n, "label", "")
	if label == "" {
		label = n.Name()
	}
	fac := dev.Factory
	h, err := fac.CreateShaderModule(label, words)
	if err != nil {
		return err
	}
	n.OnCleanup(func() error { return fac.Destroy(resource.TypeShaderModule, h) })

	mod := &ShaderModule{
		Handle:     h,
		Bundle:     bundle,
		EntryPoint: rendergraph.ParamAs(n, "entry", "main"),
	}
	if err := n.SetOut(0, resource.New(resource.TypeShaderModule, mod)); err != nil {
		return err
	}
	return n.SetOut(1, resource.New(resource.TypeReflection, bundle))
}

// shaderWords resolves the node's SPIR-V words and binding bundle from
// its parameters.
func shaderWords(n *rendergraph.Instance) ([]uint32, *reflection.Bundle, error) {
	if words, ok := n.Param("spirv").([]uint32); ok && len(words) > 0 {
		if bundle, ok := n.Param("layout").(*reflection.Bundle); ok && bundle != nil {
			return words, bundle, nil
		}
		bundle, err := reflection.FromSPIRV(words)
		if err != nil {
			return nil, nil, err
		}
		return words, bundle, nil
	}

	source := rendergraph.ParamAs(n, "source", "")
	if source == "" {
		return nil, nil, fmt.Errorf("%w: shader node needs a %q or %q parameter",
			ErrBadParam, "source", "spirv")
	}
	shaderCacheMu.Lock()
	defer shaderCacheMu.Unlock()
	cs, err := shaderCache.GetOrCreate(cache.HashString(source), func() (compiledShader, error) {
		words, bundle, err := reflection.CompileWGSL(source)
		if err != nil {
			return compiledShader{}, err
		}
		return compiledShader{words: words, bundle: bundle}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return cs.words, cs.bundle, nil
}
