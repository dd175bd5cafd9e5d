package gpu

import (
	"sync"

	"github.com/gogpu/wgpu/hal"
)

// TextureCache loads textures from files once per path and keeps track of
// textures created from raw data so they can be released together.
//
// TextureCache is safe for concurrent use.
type TextureCache struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue

	byPath map[string]*Texture
	owned  map[*Texture]struct{}
}

// NewTextureCache creates an empty cache for device.
func NewTextureCache(device hal.Device, queue hal.Queue) *TextureCache {
	return &TextureCache{
		device: device,
		queue:  queue,
		byPath: make(map[string]*Texture),
		owned:  make(map[*Texture]struct{}),
	}
}

// Load returns the texture for path, loading it on first use. Repeated
// loads of the same path return the same *Texture. A failed load leaves
// the cache unchanged.
func (c *TextureCache) Load(path string) (*Texture, error) {
	c.mu.Lock()
	if tex, ok := c.byPath[path]; ok {
		c.mu.Unlock()
		return tex, nil
	}
	c.mu.Unlock()

	tex := NewTexture(c.device, c.queue, path)
	if err := tex.LoadFromFile(path); err != nil {
		slogger().Warn("texture load failed", "path", path, "err", err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have loaded the same path meanwhile.
	if existing, ok := c.byPath[path]; ok {
		tex.Release()
		return existing, nil
	}
	c.byPath[path] = tex
	slogger().Debug("texture loaded", "path", path, "size", tex.SizeBytes())
	return tex, nil
}

// Create makes a new texture from raw data. It is never shared through
// the path cache but is owned by the cache for cleanup.
func (c *TextureCache) Create(width, height int, format TextureFormat, data []byte) (*Texture, error) {
	tex := NewTexture(c.device, c.queue, "")
	if err := tex.Create(width, height, format, data); err != nil {
		return nil, err
	}
	c.Adopt(tex)
	return tex, nil
}

// Adopt hands ownership of tex to the cache.
func (c *TextureCache) Adopt(tex *Texture) {
	if tex == nil {
		return
	}
	c.mu.Lock()
	c.owned[tex] = struct{}{}
	c.mu.Unlock()
}

// Remove releases and forgets the texture loaded from path.
func (c *TextureCache) Remove(path string) {
	c.mu.Lock()
	tex, ok := c.byPath[path]
	delete(c.byPath, path)
	c.mu.Unlock()
	if ok {
		tex.Release()
	}
}

// Destroy releases tex and forgets it, whether it was loaded or created.
func (c *TextureCache) Destroy(tex *Texture) {
	if tex == nil {
		return
	}
	c.mu.Lock()
	delete(c.owned, tex)
	for path, t := range c.byPath {
		if t == tex {
			delete(c.byPath, path)
		}
	}
	c.mu.Unlock()
	tex.Release()
}

// Clear releases every cached and owned texture.
func (c *TextureCache) Clear() {
	c.mu.Lock()
	textures := make([]*Texture, 0, len(c.byPath)+len(c.owned))
	for _, tex := range c.byPath {
		textures = append(textures, tex)
	}
	for tex := range c.owned {
		textures = append(textures, tex)
	}
	c.byPath = make(map[string]*Texture)
	c.owned = make(map[*Texture]struct{})
	c.mu.Unlock()

	for _, tex := range textures {
		tex.Release()
	}
}

// Len returns the number of path-cached textures.
func (c *TextureCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byPath)
}

// Contains reports whether path is cached.
func (c *TextureCache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byPath[path]
	return ok
}

// OwnedCount returns the number of textures created from raw data.
func (c *TextureCache) OwnedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.owned)
}

// MemoryBytes returns the total size of all cached and owned textures.
func (c *TextureCache) MemoryBytes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total uint64
	for _, tex := range c.byPath {
		total += tex.SizeBytes()
	}
	for tex := range c.owned {
		total += tex.SizeBytes()
	}
	return total
}
