package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/drawlist"
)

// depthStencilFormat is the format of every depth attachment the renderer
// creates. All pipelines are built against it.
const depthStencilFormat = gputypes.TextureFormatDepth24PlusStencil8

// Uniform block sizes of the two families, before slot alignment.
const (
	// transform mat4x4
	uniform2DSize = 64
	// projection mat4x4 + model_view mat4x4 + normal mat3x3 (3 padded
	// columns) + light vec4
	uniform3DSize = 64 + 64 + 48 + 16
)

// blendTable maps each BlendMode to a fixed-function blend state. nil
// disables blending. Overlay, SoftLight, HardLight and Difference have no
// exact fixed-function form and use the closest factor combination.
var blendTable = [drawlist.BlendModeCount]*gputypes.BlendState{
	drawlist.BlendModeDisabled: nil,
	drawlist.BlendModeAlpha: blend(
		gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd,
		gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd),
	drawlist.BlendModeAdd: blend(
		gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOne, gputypes.BlendOperationAdd,
		gputypes.BlendFactorOne, gputypes.BlendFactorOne, gputypes.BlendOperationAdd),
	drawlist.BlendModeSubtract: blend(
		gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOne, gputypes.BlendOperationReverseSubtract,
		gputypes.BlendFactorOne, gputypes.BlendFactorOne, gputypes.BlendOperationAdd),
	drawlist.BlendModeMultiply: blend(
		gputypes.BlendFactorDst, gputypes.BlendFactorZero, gputypes.BlendOperationAdd,
		gputypes.BlendFactorDstAlpha, gputypes.BlendFactorZero, gputypes.BlendOperationAdd),
	drawlist.BlendModeScreen: blend(
		gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrc, gputypes.BlendOperationAdd,
		gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd),
	drawlist.BlendModePremultipliedAlpha: blend(
		gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd,
		gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd),
	// 2 * src * dst
	drawlist.BlendModeOverlay: blend(
		gputypes.BlendFactorDst, gputypes.BlendFactorSrc, gputypes.BlendOperationAdd,
		gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd),
	// src * dst + dst * (1 - srcAlpha)
	drawlist.BlendModeSoftLight: blend(
		gputypes.BlendFactorDst, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd,
		gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd),
	drawlist.BlendModeHardLight: blend(
		gputypes.BlendFactorSrc, gputypes.BlendFactorDst, gputypes.BlendOperationAdd,
		gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd),
	// max(src - dst, 0)
	drawlist.BlendModeDifference: blend(
		gputypes.BlendFactorOne, gputypes.BlendFactorOne, gputypes.BlendOperationSubtract,
		gputypes.BlendFactorOne, gputypes.BlendFactorOne, gputypes.BlendOperationMax),
}

func blend(cs, cd gputypes.BlendFactor, cop gputypes.BlendOperation,
	as, ad gputypes.BlendFactor, aop gputypes.BlendOperation,
) *gputypes.BlendState {
	return &gputypes.BlendState{
		Color: gputypes.BlendComponent{SrcFactor: cs, DstFactor: cd, Operation: cop},
		Alpha: gputypes.BlendComponent{SrcFactor: as, DstFactor: ad, Operation: aop},
	}
}

// BlendState returns the fixed-function blend state for mode, or nil when
// blending is disabled or mode is unknown.
func BlendState(mode drawlist.BlendMode) *gputypes.BlendState {
	if !mode.Valid() {
		return nil
	}
	return blendTable[mode]
}

// topology maps a drawlist primitive to a pipeline topology.
func topology(p drawlist.PrimitiveType) gputypes.PrimitiveTopology {
	switch p {
	case drawlist.PrimitivePoint:
		return gputypes.PrimitiveTopologyPointList
	case drawlist.PrimitiveLine:
		return gputypes.PrimitiveTopologyLineList
	case drawlist.PrimitiveLineStrip:
		return gputypes.PrimitiveTopologyLineStrip
	case drawlist.PrimitiveTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip
	default:
		return gputypes.PrimitiveTopologyTriangleList
	}
}

// PipelineKey identifies one render pipeline variant.
type PipelineKey struct {
	Family     ShaderFamily
	Blend      drawlist.BlendMode
	Topology   gputypes.PrimitiveTopology
	DepthTest  bool
	DepthWrite bool
	Cull       gputypes.CullMode
	Format     gputypes.TextureFormat
}

// String returns a compact description, used as the pipeline label.
func (k PipelineKey) String() string {
	return fmt.Sprintf("%s/%s/%s/depth=%t,%t/cull=%s/%s",
		k.Family, k.Blend, k.Topology, k.DepthTest, k.DepthWrite, k.Cull, k.Format)
}

// PipelineCache builds and caches render pipelines for every shader family
// and blend mode.
//
// Every triangle-list variant a draw can select through depth and cull
// state is built when the cache is created, against the cache's target
// format (see PrebuiltKeys). Other topologies and formats are built on
// first use and kept until Destroy.
//
// PipelineCache is safe for concurrent read access. Pipeline creation
// is synchronized internally.
type PipelineCache struct {
	mu sync.RWMutex

	device hal.Device
	format gputypes.TextureFormat

	modules [shaderFamilyCount]hal.ShaderModule

	// group(0): per-draw uniforms with a dynamic offset
	uniformLayout hal.BindGroupLayout
	// group(1): texture + sampler
	textureLayout  hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout

	pipelines map[PipelineKey]hal.RenderPipeline
}

// NewPipelineCache compiles both shader families, creates the shared
// layouts and builds the default variant of every (family, blend) pair
// for color format. With precompile set, WGSL is compiled to SPIR-V with
// naga before it reaches the backend.
func NewPipelineCache(device hal.Device, format gputypes.TextureFormat, precompile bool) (*PipelineCache, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	pc := &PipelineCache{
		device:    device,
		format:    format,
		pipelines: make(map[PipelineKey]hal.RenderPipeline),
	}
	if err := pc.createLayouts(precompile); err != nil {
		pc.Destroy()
		return nil, err
	}
	for _, key := range pc.PrebuiltKeys() {
		if _, err := pc.Get(key); err != nil {
			pc.Destroy()
			return nil, err
		}
	}
	slogger().Debug("pipeline cache ready", "variants", pc.Len(), "format", format)
	return pc, nil
}

func (pc *PipelineCache) createLayouts(precompile bool) error {
	for f := ShaderFamily(0); f < shaderFamilyCount; f++ {
		module, err := createShaderModule(pc.device, f, precompile)
		if err != nil {
			return err
		}
		pc.modules[f] = module
	}

	uniformLayout, err := pc.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "framepipe_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer: &gputypes.BufferBindingLayout{
				Type:             gputypes.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uniform3DSize,
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("create uniform bind group layout: %w", err)
	}
	pc.uniformLayout = uniformLayout

	textureLayout, err := pc.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "framepipe_texture_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create texture bind group layout: %w", err)
	}
	pc.textureLayout = textureLayout

	pipelineLayout, err := pc.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "framepipe_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{pc.uniformLayout, pc.textureLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	pc.pipelineLayout = pipelineLayout
	return nil
}

// DefaultKey returns the key a draw with default state selects for family
// and mode: triangle list, depth off, no culling.
func (pc *PipelineCache) DefaultKey(family ShaderFamily, mode drawlist.BlendMode) PipelineKey {
	return PipelineKey{
		Family:   family,
		Blend:    mode,
		Topology: gputypes.PrimitiveTopologyTriangleList,
		Cull:     gputypes.CullModeNone,
		Format:   pc.format,
	}
}

// prebuiltCull lists the cull modes each family can select. 2D draws
// follow the renderer's culling state; Draw3D only culls back faces.
var prebuiltCull = [shaderFamilyCount][]gputypes.CullMode{
	Family2D: {gputypes.CullModeNone, gputypes.CullModeBack, gputypes.CullModeFront},
	Family3D: {gputypes.CullModeNone, gputypes.CullModeBack},
}

// PrebuiltKeys returns every triangle-list key for the cache's format:
// each family and blend mode with every depth test, depth write and cull
// combination the family can select.
func (pc *PipelineCache) PrebuiltKeys() []PipelineKey {
	var keys []PipelineKey
	for f := ShaderFamily(0); f < shaderFamilyCount; f++ {
		for _, mode := range drawlist.BlendModes() {
			for _, cull := range prebuiltCull[f] {
				for _, test := range [2]bool{false, true} {
					for _, write := range [2]bool{false, true} {
						key := pc.DefaultKey(f, mode)
						key.DepthTest, key.DepthWrite, key.Cull = test, write, cull
						keys = append(keys, key)
					}
				}
			}
		}
	}
	return keys
}

// Get returns the pipeline for key, building it on first use.
func (pc *PipelineCache) Get(key PipelineKey) (hal.RenderPipeline, error) {
	pc.mu.RLock()
	pipeline, ok := pc.pipelines[key]
	pc.mu.RUnlock()
	if ok {
		return pipeline, nil
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	// Double-check after acquiring write lock
	if pipeline, ok = pc.pipelines[key]; ok {
		return pipeline, nil
	}
	pipeline, err := pc.createPipeline(key)
	if err != nil {
		return nil, err
	}
	pc.pipelines[key] = pipeline
	return pipeline, nil
}

// Contains reports whether the variant for key has been built.
func (pc *PipelineCache) Contains(key PipelineKey) bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	_, ok := pc.pipelines[key]
	return ok
}

func (pc *PipelineCache) createPipeline(key PipelineKey) (hal.RenderPipeline, error) {
	if key.Family >= shaderFamilyCount || !key.Blend.Valid() {
		return nil, fmt.Errorf("gpu: invalid pipeline key %s", key)
	}
	module := pc.modules[key.Family]

	primitive := gputypes.PrimitiveState{
		Topology:  key.Topology,
		FrontFace: gputypes.FrontFaceCCW,
		CullMode:  key.Cull,
	}
	if key.Topology == gputypes.PrimitiveTopologyTriangleStrip || key.Topology == gputypes.PrimitiveTopologyLineStrip {
		f := gputypes.IndexFormatUint32
		primitive.StripIndexFormat = &f
	}

	depthCompare := gputypes.CompareFunctionAlways
	if key.DepthTest {
		depthCompare = gputypes.CompareFunctionLess
	}
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}

	pipeline, err := pc.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "framepipe_" + key.String(),
		Layout: pc.pipelineLayout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    key.Family.vertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    key.Format,
				Blend:     BlendState(key.Blend),
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            depthStencilFormat,
			DepthWriteEnabled: key.DepthTest && key.DepthWrite,
			DepthCompare:      depthCompare,
			StencilFront:      keep,
			StencilBack:       keep,
			StencilReadMask:   0xFF,
			StencilWriteMask:  0,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Primitive:   primitive,
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline %s: %w", key, err)
	}
	slogger().Debug("pipeline built", "key", key.String())
	return pipeline, nil
}

// UniformLayout returns the group(0) bind group layout.
func (pc *PipelineCache) UniformLayout() hal.BindGroupLayout { return pc.uniformLayout }

// TextureLayout returns the group(1) bind group layout.
func (pc *PipelineCache) TextureLayout() hal.BindGroupLayout { return pc.textureLayout }

// Format returns the default color target format.
func (pc *PipelineCache) Format() gputypes.TextureFormat { return pc.format }

// Len returns the number of built pipelines.
func (pc *PipelineCache) Len() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.pipelines)
}

// Destroy releases all pipeline resources in reverse creation order.
// Safe to call on a cache with partially created resources.
func (pc *PipelineCache) Destroy() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	for key, p := range pc.pipelines {
		pc.device.DestroyRenderPipeline(p)
		delete(pc.pipelines, key)
	}
	if pc.pipelineLayout != nil {
		pc.device.DestroyPipelineLayout(pc.pipelineLayout)
		pc.pipelineLayout = nil
	}
	if pc.textureLayout != nil {
		pc.device.DestroyBindGroupLayout(pc.textureLayout)
		pc.textureLayout = nil
	}
	if pc.uniformLayout != nil {
		pc.device.DestroyBindGroupLayout(pc.uniformLayout)
		pc.uniformLayout = nil
	}
	for i, m := range pc.modules {
		if m != nil {
			pc.device.DestroyShaderModule(m)
			pc.modules[i] = nil
		}
	}
}
