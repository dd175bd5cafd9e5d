package main

import (
	"fmt"
	"math"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/drawlist"
)

// checkerSize is the edge of the generated sprite texture.
const checkerSize = 8

// Scene builds the draw list of every benchmark frame.
type Scene struct {
	cfg           SceneConfig
	width, height float32
	blend         drawlist.BlendMode

	texture drawlist.TextureHandle
	target  drawlist.TextureHandle

	list *drawlist.DrawList
}

// NewScene creates the textures and render targets cfg needs on r.
func NewScene(r framepipe.Renderer, width, height uint32, cfg SceneConfig) (*Scene, error) {
	blend, ok := drawlist.ParseBlendMode(cfg.Blend)
	if !ok {
		return nil, fmt.Errorf("unknown blend mode %q", cfg.Blend)
	}
	s := &Scene{
		cfg:    cfg,
		width:  float32(width),
		height: float32(height),
		blend:  blend,
		list:   drawlist.New(),
	}

	var err error
	if cfg.Texture != "" {
		s.texture, err = r.LoadTexture(cfg.Texture)
	} else {
		s.texture, err = r.CreateTexture(checkerSize, checkerSize, checker(checkerSize))
	}
	if err != nil {
		return nil, fmt.Errorf("sprite texture: %w", err)
	}
	if cfg.Offscreen > 0 {
		s.target, err = r.CreateRenderTarget(int(cfg.Offscreen), int(cfg.Offscreen))
		if err != nil {
			return nil, fmt.Errorf("offscreen target: %w", err)
		}
	}
	return s, nil
}

// Build returns the draw list of frame. The list is reused between calls.
func (s *Scene) Build(frame int) *drawlist.DrawList {
	l := s.list
	l.Reset()
	t := float32(frame) / 60

	clearCmd := drawlist.NewClear()
	clearCmd.Color = s.cfg.Background
	clearCmd.ClearDepth = true

	if s.target.IsZero() {
		l.AddCommand(clearCmd)
		s.addSprites(l, s.width, s.height, t)
	} else {
		size := float32(s.cfg.Offscreen)
		l.AddCommand(drawlist.SetRenderTarget{Target: s.target})
		l.AddCommand(drawlist.NewClear())
		s.addSprites(l, size, size, t)
		l.AddCommand(drawlist.SetRenderTarget{})
		l.AddCommand(clearCmd)
		s.addComposite(l)
	}
	if s.cfg.Mesh {
		s.addCube(l, t)
	}
	return l
}

// addSprites draws a grid of rotating textured quads into a w x h target
// as one indexed draw.
func (s *Scene) addSprites(l *drawlist.DrawList, w, h, t float32) {
	n := s.cfg.Sprites
	if n == 0 {
		return
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	cellW, cellH := w/float32(cols), h/float32(rows)
	half := 0.35 * min(cellW, cellH)

	first := uint32(l.Vertex2DCount()) //nolint:gosec // G115: list sizes stay far below 2^32
	l.ReserveVertices2D(4 * n)
	firstIndex := uint32(l.IndexCount()) //nolint:gosec // G115: list sizes stay far below 2^32
	l.ReserveIndices(6 * n)
	for i := range n {
		cx := (float32(i%cols) + 0.5) * cellW
		cy := (float32(i/cols) + 0.5) * cellH
		rot := drawlist.Translate4(cx, cy, 0).Mul(drawlist.RotateZ4(t + float32(i)*0.1))
		hue := float32(i) / float32(n)
		r, g, b := hueRGB(hue)
		base := uint32(4 * i) //nolint:gosec // G115: bounded by the sprite count
		for _, c := range [4][4]float32{{-half, -half, 0, 0}, {half, -half, 1, 0}, {half, half, 1, 1}, {-half, half, 0, 1}} {
			x, y, _ := rot.Transform(c[0], c[1], 0)
			l.AddVertex2D(drawlist.V2(x, y, c[2], c[3], r, g, b, 0.85))
		}
		l.AddIndices(base, base+1, base+2, base, base+2, base+3)
	}

	cmd := drawlist.NewDraw2D()
	cmd.VertexOffset = first
	cmd.VertexCount = uint32(4 * n) //nolint:gosec // G115: bounded by the sprite count
	cmd.IndexOffset = firstIndex
	cmd.IndexCount = uint32(6 * n) //nolint:gosec // G115: bounded by the sprite count
	cmd.Blend = s.blend
	cmd.Texture = s.texture
	cmd.Transform = drawlist.ScreenOrtho(w, h)
	l.AddCommand(cmd)
}

// addComposite draws the offscreen target over the whole frame.
func (s *Scene) addComposite(l *drawlist.DrawList) {
	first := l.AddVertices2D(
		drawlist.White2D(0, 0, 0, 0),
		drawlist.White2D(s.width, 0, 1, 0),
		drawlist.White2D(s.width, s.height, 1, 1),
		drawlist.White2D(0, s.height, 0, 1),
	)
	firstIndex := l.AddIndices(0, 1, 2, 0, 2, 3)

	cmd := drawlist.NewDraw2D()
	cmd.VertexOffset = first
	cmd.VertexCount = 4
	cmd.IndexOffset = firstIndex
	cmd.IndexCount = 6
	cmd.Blend = drawlist.BlendModePremultipliedAlpha
	cmd.Texture = s.target
	cmd.Transform = drawlist.ScreenOrtho(s.width, s.height)
	l.AddCommand(cmd)
}

// cubeFaces lists each face's normal and its two in-plane axes.
var cubeFaces = [6][3][3]float32{
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
}

// addCube draws a unit cube spinning in front of the camera.
func (s *Scene) addCube(l *drawlist.DrawList, t float32) {
	first := uint32(l.Vertex3DCount()) //nolint:gosec // G115: list sizes stay far below 2^32
	firstIndex := uint32(l.IndexCount()) //nolint:gosec // G115: list sizes stay far below 2^32
	for f, face := range cubeFaces {
		n, u, v := face[0], face[1], face[2]
		r, g, b := hueRGB(float32(f) / 6)
		base := uint32(4 * f) //nolint:gosec // G115: six faces
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			var p [3]float32
			for k := range 3 {
				p[k] = 0.5 * (n[k] + c[0]*u[k] + c[1]*v[k])
			}
			l.AddVertex3D(drawlist.V3(p[0], p[1], p[2], n[0], n[1], n[2],
				(c[0]+1)/2, (c[1]+1)/2, r, g, b, 1))
		}
		l.AddIndices(base, base+1, base+2, base, base+2, base+3)
	}

	mv := drawlist.Translate4(0, 0, -3).
		Mul(drawlist.RotateX4(0.5 + 0.3*t)).
		Mul(drawlist.RotateY4(t))

	cmd := drawlist.NewDraw3D()
	cmd.VertexOffset = first
	cmd.VertexCount = 4 * uint32(len(cubeFaces))
	cmd.IndexOffset = firstIndex
	cmd.IndexCount = 6 * uint32(len(cubeFaces))
	cmd.Blend = drawlist.BlendModeDisabled
	cmd.ModelView = mv
	cmd.Projection = drawlist.Perspective(math.Pi/3, s.width/s.height, 0.1, 100)
	cmd.Normal = drawlist.NormalMatrix(mv)
	cmd.DepthTest = true
	cmd.DepthWrite = true
	cmd.CullBackFace = true
	l.AddCommand(cmd)
}

// checker returns RGBA pixels of a size x size black and white checkerboard.
func checker(size int) []byte {
	pix := make([]byte, size*size*4)
	for y := range size {
		for x := range size {
			v := byte(64)
			if (x+y)%2 == 0 {
				v = 255
			}
			i := (y*size + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 255
		}
	}
	return pix
}

// hueRGB converts a hue in [0, 1) at full saturation and value to RGB.
func hueRGB(h float32) (r, g, b float32) {
	h6 := float64(h-float32(math.Floor(float64(h)))) * 6
	x := float32(1 - math.Abs(math.Mod(h6, 2)-1))
	switch int(h6) {
	case 0:
		return 1, x, 0
	case 1:
		return x, 1, 0
	case 2:
		return 0, 1, x
	case 3:
		return 0, x, 1
	case 4:
		return x, 0, 1
	default:
		return 1, 0, x
	}
}
