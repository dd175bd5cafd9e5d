package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/drawlist"
)

// Embedded WGSL shader sources.

//go:embed shaders/sprite2d.wgsl
var sprite2DShaderSource string

//go:embed shaders/mesh3d.wgsl
var mesh3DShaderSource string

// ShaderFamily identifies one of the built-in shader programs.
type ShaderFamily uint8

const (
	// Family2D draws drawlist.Vertex2D with a single transform.
	Family2D ShaderFamily = iota
	// Family3D draws drawlist.Vertex3D with projection, model-view and
	// normal matrices.
	Family3D

	shaderFamilyCount
)

// String returns the family name.
func (f ShaderFamily) String() string {
	switch f {
	case Family2D:
		return "2D"
	case Family3D:
		return "3D"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// Source returns the WGSL source of the family.
func (f ShaderFamily) Source() string {
	if f == Family3D {
		return mesh3DShaderSource
	}
	return sprite2DShaderSource
}

// VertexStride returns the byte size of one vertex of the family.
func (f ShaderFamily) VertexStride() uint64 {
	if f == Family3D {
		return uint64(drawlist.Vertex3DSize)
	}
	return uint64(drawlist.Vertex2DSize)
}

// vertexLayout returns the vertex buffer layout matching the family's
// vertex struct.
func (f ShaderFamily) vertexLayout() []gputypes.VertexBufferLayout {
	if f == Family3D {
		return []gputypes.VertexBufferLayout{{
			ArrayStride: uint64(drawlist.Vertex3DSize),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
				{Format: gputypes.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 3},
			},
		}}
	}
	return []gputypes.VertexBufferLayout{{
		ArrayStride: uint64(drawlist.Vertex2DSize),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
			{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
		},
	}}
}

// CompileShaderToSPIRV compiles WGSL source to SPIR-V words.
func CompileShaderToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}

// createShaderModule creates the module for family. With precompile set
// the WGSL is translated to SPIR-V up front; otherwise the backend
// receives WGSL directly.
func createShaderModule(device hal.Device, family ShaderFamily, precompile bool) (hal.ShaderModule, error) {
	label := "framepipe_" + family.String()
	src := hal.ShaderSource{WGSL: family.Source()}
	if precompile {
		code, err := CompileShaderToSPIRV(family.Source())
		if err != nil {
			return nil, fmt.Errorf("%s shader: %w", family, err)
		}
		src = hal.ShaderSource{SPIRV: code}
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: label, Source: src})
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", family, err)
	}
	return module, nil
}
