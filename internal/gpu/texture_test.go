package gpu

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gputypes"
)

// writePNG writes a w x h opaque image to dir/name and returns its path.
func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestTextureFormat(t *testing.T) {
	tests := []struct {
		format        TextureFormat
		wantString    string
		wantBytesPerP int
		wantWGPU      gputypes.TextureFormat
	}{
		{TextureFormatRGBA8, "RGBA8", 4, gputypes.TextureFormatRGBA8Unorm},
		{TextureFormatBGRA8, "BGRA8", 4, gputypes.TextureFormatBGRA8Unorm},
		{TextureFormatR8, "R8", 1, gputypes.TextureFormatR8Unorm},
		{TextureFormatRG8, "RG8", 2, gputypes.TextureFormatRG8Unorm},
		{TextureFormatRGBA16F, "RGBA16F", 8, gputypes.TextureFormatRGBA16Float},
		{TextureFormatRGBA32F, "RGBA32F", 16, gputypes.TextureFormatRGBA32Float},
		{TextureFormatDepth32F, "Depth32F", 4, gputypes.TextureFormatDepth32Float},
		{TextureFormat(99), "Unknown(99)", 4, gputypes.TextureFormatRGBA8Unorm},
	}
	for _, tt := range tests {
		t.Run(tt.wantString, func(t *testing.T) {
			if got := tt.format.String(); got != tt.wantString {
				t.Errorf("String() = %q, want %q", got, tt.wantString)
			}
			if got := tt.format.BytesPerPixel(); got != tt.wantBytesPerP {
				t.Errorf("BytesPerPixel() = %d, want %d", got, tt.wantBytesPerP)
			}
			if got := tt.format.ToWGPUFormat(); got != tt.wantWGPU {
				t.Errorf("ToWGPUFormat() = %v, want %v", got, tt.wantWGPU)
			}
		})
	}
}

func TestTextureFormatOfRoundTrip(t *testing.T) {
	for _, f := range []TextureFormat{
		TextureFormatRGBA8, TextureFormatBGRA8, TextureFormatR8,
		TextureFormatRG8, TextureFormatRGBA16F, TextureFormatRGBA32F,
	} {
		if got := textureFormatOf(f.ToWGPUFormat()); got != f {
			t.Errorf("textureFormatOf(%v) = %v, want %v", f.ToWGPUFormat(), got, f)
		}
	}
	if got := textureFormatOf(gputypes.TextureFormatBGRA8UnormSrgb); got != TextureFormatRGBA8 {
		t.Errorf("unmapped format fell back to %v, want RGBA8", got)
	}
}

func TestTextureCreate(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tests := []struct {
		name    string
		w, h    int
		format  TextureFormat
		data    []byte
		wantErr error
	}{
		{"rgba with data", 2, 2, TextureFormatRGBA8, make([]byte, 16), nil},
		{"r8 without data", 8, 4, TextureFormatR8, nil, nil},
		{"zero width", 0, 4, TextureFormatRGBA8, nil, ErrInvalidSize},
		{"negative height", 4, -1, TextureFormatRGBA8, nil, ErrInvalidSize},
		{"short data", 2, 2, TextureFormatRGBA8, make([]byte, 15), ErrTextureSizeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tex := NewTexture(device, queue, tt.name)
			defer tex.Release()

			err := tex.Create(tt.w, tt.h, tt.format, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if tex.IsValid() {
					t.Error("failed Create left a valid texture")
				}
				return
			}
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if !tex.IsValid() || tex.View() == nil {
				t.Error("texture has no storage or view")
			}
			if tex.Width() != tt.w || tex.Height() != tt.h || tex.Format() != tt.format {
				t.Errorf("got %dx%d %v", tex.Width(), tex.Height(), tex.Format())
			}
			if tex.IsRenderTarget() {
				t.Error("default usage reported as render target")
			}
		})
	}
}

func TestTextureNilDevice(t *testing.T) {
	tex := NewTexture(nil, nil, "orphan")
	if err := tex.Create(1, 1, TextureFormatRGBA8, nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("error = %v, want ErrNilDevice", err)
	}
}

func TestTextureRenderTargetUsage(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tex := NewTexture(device, queue, "target")
	defer tex.Release()
	if err := tex.CreateWithUsage(16, 16, TextureFormatRGBA8, RenderTargetUsage, nil); err != nil {
		t.Fatalf("CreateWithUsage failed: %v", err)
	}
	if !tex.IsRenderTarget() {
		t.Error("IsRenderTarget() = false")
	}
}

func TestTextureUpdateData(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tex := NewTexture(device, queue, "update")
	defer tex.Release()
	if err := tex.Create(4, 4, TextureFormatRGBA8, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	full := make([]byte, 4*4*4)
	region := image.Rect(1, 1, 3, 3)
	outside := image.Rect(2, 2, 6, 6)
	tests := []struct {
		name    string
		data    []byte
		region  *image.Rectangle
		wantErr error
	}{
		{"whole texture", full, nil, nil},
		{"sub region", make([]byte, 2*2*4), &region, nil},
		{"region outside", make([]byte, 4*4*4), &outside, ErrInvalidSize},
		{"wrong size", make([]byte, 10), nil, ErrTextureSizeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tex.UpdateData(tt.data, tt.region)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	tex.Release()
	if err := tex.UpdateData(full, nil); !errors.Is(err, ErrTextureReleased) {
		t.Errorf("UpdateData after Release error = %v, want ErrTextureReleased", err)
	}
}

func TestTextureSamplerRebuild(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tex := NewTexture(device, queue, "sampler")
	defer tex.Release()
	if err := tex.Create(1, 1, TextureFormatRGBA8, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !tex.SamplerDirty() {
		t.Error("new texture sampler not dirty")
	}
	if _, err := tex.Sampler(); err != nil {
		t.Fatalf("Sampler failed: %v", err)
	}
	if tex.SamplerDirty() {
		t.Error("sampler dirty after Sampler()")
	}

	tex.SetWrap(WrapClamp, WrapClamp)
	tex.SetFilter(FilterLinear, FilterLinear)
	if tex.SamplerDirty() {
		t.Error("unchanged settings marked the sampler dirty")
	}

	tex.SetWrap(WrapRepeat, WrapMirror)
	if !tex.SamplerDirty() {
		t.Error("SetWrap did not mark the sampler dirty")
	}
	if _, err := tex.Sampler(); err != nil {
		t.Fatalf("Sampler failed: %v", err)
	}
	tex.SetFilter(FilterNearest, FilterNearest)
	if !tex.SamplerDirty() {
		t.Error("SetFilter did not mark the sampler dirty")
	}
}

func TestTextureReleaseIsReusable(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tex := NewTexture(device, queue, "reuse")
	if err := tex.Create(8, 8, TextureFormatRGBA8, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	tex.Release()
	tex.Release()
	if tex.IsValid() || tex.Width() != 0 || tex.Height() != 0 {
		t.Errorf("after Release: valid=%v size=%dx%d", tex.IsValid(), tex.Width(), tex.Height())
	}
	if _, err := tex.Sampler(); !errors.Is(err, ErrTextureReleased) {
		t.Errorf("Sampler after Release error = %v, want ErrTextureReleased", err)
	}
	if err := tex.Create(2, 2, TextureFormatRGBA8, nil); err != nil {
		t.Fatalf("Create after Release failed: %v", err)
	}
	defer tex.Release()
	if !tex.IsValid() {
		t.Error("texture not valid after re-create")
	}
}

func TestTextureLoadFromFile(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	path := writePNG(t, t.TempDir(), "sprite.png", 3, 2)
	tex := NewTexture(device, queue, "")
	defer tex.Release()
	if err := tex.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if tex.Width() != 3 || tex.Height() != 2 || tex.Format() != TextureFormatRGBA8 {
		t.Errorf("loaded %dx%d %v, want 3x2 RGBA8", tex.Width(), tex.Height(), tex.Format())
	}
	if tex.Label() != path {
		t.Errorf("Label() = %q, want the path", tex.Label())
	}
}

func TestDecodeImage(t *testing.T) {
	path := writePNG(t, t.TempDir(), "decode.png", 2, 2)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	img, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 2, 2) || len(img.Pix) != 16 {
		t.Errorf("bounds %v, %d bytes", img.Bounds(), len(img.Pix))
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{R: 40, G: 40, B: 200, A: 255}) {
		t.Errorf("pixel (1,1) = %v", got)
	}

	if _, err := DecodeImage(bytes.NewReader([]byte("not an image"))); !errors.Is(err, ErrTextureLoad) {
		t.Errorf("garbage decode error = %v, want ErrTextureLoad", err)
	}
}

func TestTextureCacheIdentity(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	cache := NewTextureCache(device, queue)
	defer cache.Clear()

	path := writePNG(t, t.TempDir(), "a.png", 4, 4)
	first, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if first != second {
		t.Error("loading the same path twice returned different textures")
	}
	if cache.Len() != 1 || !cache.Contains(path) {
		t.Errorf("Len=%d Contains=%v, want 1/true", cache.Len(), cache.Contains(path))
	}
}

func TestTextureCacheMissingFile(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	cache := NewTextureCache(device, queue)
	defer cache.Clear()

	path := filepath.Join(t.TempDir(), "missing.png")
	if _, err := cache.Load(path); !errors.Is(err, ErrTextureLoad) {
		t.Fatalf("error = %v, want ErrTextureLoad", err)
	}
	if cache.Len() != 0 || cache.Contains(path) || cache.OwnedCount() != 0 {
		t.Errorf("failed load changed the cache: Len=%d Owned=%d", cache.Len(), cache.OwnedCount())
	}
}

func TestTextureCacheCreateIsUncached(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	cache := NewTextureCache(device, queue)
	a, err := cache.Create(2, 2, TextureFormatRGBA8, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b, err := cache.Create(2, 2, TextureFormatRGBA8, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a == b {
		t.Error("Create returned the same texture twice")
	}
	if cache.Len() != 0 || cache.OwnedCount() != 2 {
		t.Errorf("Len=%d Owned=%d, want 0/2", cache.Len(), cache.OwnedCount())
	}
	if got := cache.MemoryBytes(); got != 2*2*2*4 {
		t.Errorf("MemoryBytes() = %d, want 32", got)
	}

	cache.Clear()
	if a.IsValid() || b.IsValid() || cache.OwnedCount() != 0 {
		t.Error("Clear did not release owned textures")
	}
}

func TestTextureCacheRemoveAndDestroy(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	cache := NewTextureCache(device, queue)
	defer cache.Clear()
	dir := t.TempDir()

	path := writePNG(t, dir, "remove.png", 1, 1)
	tex, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cache.Remove(path)
	if cache.Contains(path) || tex.IsValid() {
		t.Error("Remove kept the texture")
	}

	path = writePNG(t, dir, "destroy.png", 1, 1)
	tex, err = cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cache.Destroy(tex)
	if cache.Contains(path) || tex.IsValid() {
		t.Error("Destroy kept the texture")
	}
}
