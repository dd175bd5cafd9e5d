package drawlist

import "unsafe"

// Vertex2D is a 2D vertex with position, texture coordinates and colour.
// The layout is tightly packed float32 and matches the 2D vertex buffer
// layout used by the renderer.
type Vertex2D struct {
	Position [2]float32
	TexCoord [2]float32
	Color    [4]float32
}

// Vertex3D is a 3D vertex with position, normal, texture coordinates and
// colour.
type Vertex3D struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
	Color    [4]float32
}

// Byte sizes of the vertex and index formats.
const (
	Vertex2DSize = int(unsafe.Sizeof(Vertex2D{}))
	Vertex3DSize = int(unsafe.Sizeof(Vertex3D{}))
	IndexSize    = 4
)

// V2 builds a Vertex2D from scalar components.
func V2(x, y, u, v, r, g, b, a float32) Vertex2D {
	return Vertex2D{
		Position: [2]float32{x, y},
		TexCoord: [2]float32{u, v},
		Color:    [4]float32{r, g, b, a},
	}
}

// V3 builds a Vertex3D from scalar components.
func V3(x, y, z, nx, ny, nz, u, v, r, g, b, a float32) Vertex3D {
	return Vertex3D{
		Position: [3]float32{x, y, z},
		Normal:   [3]float32{nx, ny, nz},
		TexCoord: [2]float32{u, v},
		Color:    [4]float32{r, g, b, a},
	}
}

// White2D returns a white vertex at (x, y) with texture coordinates (u, v).
func White2D(x, y, u, v float32) Vertex2D {
	return V2(x, y, u, v, 1, 1, 1, 1)
}

// sliceBytes reinterprets a slice of plain float32/uint32 data as bytes.
func sliceBytes[T Vertex2D | Vertex3D | uint32](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*size) //nolint:gosec // plain-old-data reinterpretation
}
