package drawlist

import "strings"

// PrimitiveType selects how vertices are assembled into primitives.
type PrimitiveType uint32

const (
	PrimitivePoint PrimitiveType = iota
	PrimitiveLine
	PrimitiveLineStrip
	PrimitiveTriangle
	PrimitiveTriangleStrip
)

var primitiveTypeNames = [...]string{
	PrimitivePoint:         "Point",
	PrimitiveLine:          "Line",
	PrimitiveLineStrip:     "LineStrip",
	PrimitiveTriangle:      "Triangle",
	PrimitiveTriangleStrip: "TriangleStrip",
}

// String returns the string representation of a PrimitiveType.
func (p PrimitiveType) String() string {
	if int(p) < len(primitiveTypeNames) {
		return primitiveTypeNames[p]
	}
	return "Unknown"
}

// Valid reports whether p is one of the defined primitive types.
func (p PrimitiveType) Valid() bool {
	return p <= PrimitiveTriangleStrip
}

// BlendMode selects a fixed blend configuration for a draw.
//
// The hardware-approximated modes (Overlay, SoftLight, HardLight,
// Difference) map onto the closest fixed-function equation; exact results
// need a shader.
type BlendMode uint32

const (
	// BlendModeDisabled writes the source colour unchanged.
	BlendModeDisabled BlendMode = iota
	// BlendModeAlpha: src.rgb*src.a + dst.rgb*(1-src.a).
	BlendModeAlpha
	// BlendModeAdd: src.rgb*src.a + dst.rgb.
	BlendModeAdd
	// BlendModeSubtract: dst.rgb - src.rgb*src.a.
	BlendModeSubtract
	// BlendModeMultiply: src.rgb*dst.rgb.
	BlendModeMultiply
	// BlendModeScreen: 1 - (1-src.rgb)*(1-dst.rgb).
	BlendModeScreen
	// BlendModePremultipliedAlpha: src.rgb + dst.rgb*(1-src.a).
	BlendModePremultipliedAlpha
	// BlendModeOverlay approximates overlay as 2*src.rgb*dst.rgb.
	BlendModeOverlay
	// BlendModeSoftLight approximates soft light as
	// src.rgb*dst.rgb + dst.rgb*(1-src.a).
	BlendModeSoftLight
	// BlendModeHardLight approximates hard light as src.rgb*src.rgb +
	// dst.rgb*dst.rgb.
	BlendModeHardLight
	// BlendModeDifference approximates |src-dst| as max(src.rgb-dst.rgb, 0).
	BlendModeDifference

	// BlendModeCount is the number of blend modes.
	BlendModeCount
)

var blendModeNames = [...]string{
	BlendModeDisabled:           "Disabled",
	BlendModeAlpha:              "Alpha",
	BlendModeAdd:                "Add",
	BlendModeSubtract:           "Subtract",
	BlendModeMultiply:           "Multiply",
	BlendModeScreen:             "Screen",
	BlendModePremultipliedAlpha: "PremultipliedAlpha",
	BlendModeOverlay:            "Overlay",
	BlendModeSoftLight:          "SoftLight",
	BlendModeHardLight:          "HardLight",
	BlendModeDifference:         "Difference",
}

// String returns the string representation of a BlendMode.
func (m BlendMode) String() string {
	if int(m) < len(blendModeNames) {
		return blendModeNames[m]
	}
	return "Unknown"
}

// Valid reports whether m is one of the defined blend modes.
func (m BlendMode) Valid() bool {
	return m < BlendModeCount
}

// ParseBlendMode returns the blend mode with the given name, ignoring case.
func ParseBlendMode(name string) (BlendMode, bool) {
	for i, n := range blendModeNames {
		if strings.EqualFold(n, name) {
			return BlendMode(i), true
		}
	}
	return BlendModeAlpha, false
}

// BlendModes returns every defined blend mode in declaration order.
func BlendModes() []BlendMode {
	modes := make([]BlendMode, BlendModeCount)
	for i := range modes {
		modes[i] = BlendMode(i)
	}
	return modes
}
