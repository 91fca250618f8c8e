// Package nodes provides the concrete GPU node types that run on a
// rendergraph: device introduction, shader modules, buffers, textures,
// pipelines, bind groups, dispatch/draw submission and presentation.
//
// Node types never talk to the GPU directly. They create and destroy
// objects through a [Factory], a narrow interface the host implements
// over its device. [NewHALFactory] adapts a wgpu hal.Device;
// [NullFactory] is an allocating no-op for tests and headless runs.
//
// All node types register themselves with the default registry under
// "gpu.*" type names in package init.
package nodes
