package gpu

import (
	"testing"
	"time"

	"github.com/gogpu/gputypes"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.FramesInFlight != 3 {
		t.Errorf("FramesInFlight = %d, want 3", c.FramesInFlight)
	}
	if c.Format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format = %v, want RGBA8Unorm", c.Format)
	}
	if c.Backend != "noop" {
		t.Errorf("Backend = %q, want noop", c.Backend)
	}
	if c.MaxBufferSize < c.InitialBufferSize {
		t.Errorf("MaxBufferSize %d below InitialBufferSize %d", c.MaxBufferSize, c.InitialBufferSize)
	}
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    Config
		check func(t *testing.T, c Config)
	}{
		{
			name: "zero config gets defaults",
			in:   Config{},
			check: func(t *testing.T, c Config) {
				if c != DefaultConfig() {
					t.Errorf("normalized = %+v, want defaults", c)
				}
			},
		},
		{
			name: "negative frames in flight",
			in:   Config{FramesInFlight: -2},
			check: func(t *testing.T, c Config) {
				if c.FramesInFlight != DefaultFramesInFlight {
					t.Errorf("FramesInFlight = %d", c.FramesInFlight)
				}
			},
		},
		{
			name: "max below initial is raised",
			in:   Config{InitialBufferSize: 4096, MaxBufferSize: 1024},
			check: func(t *testing.T, c Config) {
				if c.MaxBufferSize != 4096 {
					t.Errorf("MaxBufferSize = %d, want 4096", c.MaxBufferSize)
				}
			},
		},
		{
			name: "explicit values kept",
			in: Config{
				Width: 10, Height: 20, FramesInFlight: 2, Backend: "software",
				Format: gputypes.TextureFormatBGRA8Unorm, MaxDrawsPerFrame: 7,
				PollInterval: time.Second,
			},
			check: func(t *testing.T, c Config) {
				if c.Width != 10 || c.Height != 20 || c.FramesInFlight != 2 || c.Backend != "software" {
					t.Errorf("normalized = %+v", c)
				}
				if c.Format != gputypes.TextureFormatBGRA8Unorm || c.MaxDrawsPerFrame != 7 || c.PollInterval != time.Second {
					t.Errorf("normalized = %+v", c)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			c.normalize()
			tt.check(t, c)
		})
	}
}

func TestOptions(t *testing.T) {
	r := NewRenderer(
		WithSize(320, 240),
		WithFramesInFlight(2),
		WithBackend("software"),
		WithFormat(gputypes.TextureFormatBGRA8Unorm),
		WithInitialBufferSize(4096),
		WithMaxBufferSize(8192),
		WithMaxDrawsPerFrame(16),
		WithSPIRV(true),
		WithPollInterval(time.Millisecond),
	)
	c := r.Config()
	if c.Width != 320 || c.Height != 240 {
		t.Errorf("size = %dx%d", c.Width, c.Height)
	}
	if c.FramesInFlight != 2 || r.FramesInFlight() != 2 {
		t.Errorf("FramesInFlight = %d", c.FramesInFlight)
	}
	if c.Backend != "software" || c.Format != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("backend/format = %q/%v", c.Backend, c.Format)
	}
	if c.InitialBufferSize != 4096 || c.MaxBufferSize != 8192 || c.MaxDrawsPerFrame != 16 {
		t.Errorf("buffers = %d/%d/%d", c.InitialBufferSize, c.MaxBufferSize, c.MaxDrawsPerFrame)
	}
	if !c.PrecompileSPIRV || c.PollInterval != time.Millisecond {
		t.Errorf("SPIR-V/poll = %v/%v", c.PrecompileSPIRV, c.PollInterval)
	}
}
