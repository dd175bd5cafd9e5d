package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/framepipe/drawlist"
)

// putFloats writes vs as little-endian float32 starting at buf[0].
func putFloats(buf []byte, vs ...float32) {
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}

// encode2DUniforms writes the sprite2d Uniforms block into buf.
func encode2DUniforms(buf []byte, transform drawlist.Mat4) {
	putFloats(buf, transform[:]...)
}

// encode3DUniforms writes the mesh3d Uniforms block into buf. The 3x3
// normal matrix is stored as three vec4-aligned columns.
func encode3DUniforms(buf []byte, projection, modelView drawlist.Mat4, normal drawlist.Mat3, light [4]float32) {
	putFloats(buf[0:], projection[:]...)
	putFloats(buf[64:], modelView[:]...)
	for col := range 3 {
		putFloats(buf[128+col*16:], normal[col*3], normal[col*3+1], normal[col*3+2], 0)
	}
	putFloats(buf[176:], light[:]...)
}

// uniformBlocks counts the uniform blocks a list needs: one per draw that
// has vertices.
func uniformBlocks(list *drawlist.DrawList) int {
	n := 0
	for _, cmd := range list.Commands() {
		switch c := cmd.(type) {
		case drawlist.Draw2D:
			if c.VertexCount > 0 {
				n++
			}
		case drawlist.Draw3D:
			if c.VertexCount > 0 {
				n++
			}
		}
	}
	return n
}

// encodeUniforms fills one 256-byte block per draw, in command order, for
// every draw uniformBlocks counts.
func encodeUniforms(dst []byte, list *drawlist.DrawList, light [4]float32) []byte {
	n := uniformBlocks(list)
	size := n * uniformAlignment
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]
	clear(dst)

	k := 0
	for _, cmd := range list.Commands() {
		switch c := cmd.(type) {
		case drawlist.Draw2D:
			if c.VertexCount > 0 {
				encode2DUniforms(dst[k*uniformAlignment:], c.Transform)
				k++
			}
		case drawlist.Draw3D:
			if c.VertexCount > 0 {
				encode3DUniforms(dst[k*uniformAlignment:], c.Projection, c.ModelView, c.Normal, light)
				k++
			}
		}
	}
	return dst
}
