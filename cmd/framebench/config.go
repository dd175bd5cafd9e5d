package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/framepipe/drawlist"
)

// maxConfigSize bounds the scene file read from disk.
const maxConfigSize = 1 << 20

// Config describes one benchmark run.
type Config struct {
	Width          uint32 `yaml:"width"`
	Height         uint32 `yaml:"height"`
	Frames         int    `yaml:"frames"`
	FramesInFlight int    `yaml:"frames_in_flight"`
	Backend        string `yaml:"backend"`
	SPIRV          bool   `yaml:"spirv"`
	Output         string `yaml:"output"`
	LogLevel       string `yaml:"log_level"`

	Scene SceneConfig `yaml:"scene"`
}

// SceneConfig selects what each frame draws.
type SceneConfig struct {
	// Sprites is the number of textured quads drawn per frame.
	Sprites int `yaml:"sprites"`
	// Blend is the blend mode name of the sprites.
	Blend string `yaml:"blend"`
	// Texture is an optional image file sampled by the sprites.
	Texture string `yaml:"texture"`
	// Mesh draws a lit, rotating cube.
	Mesh bool `yaml:"mesh"`
	// Offscreen renders the sprites into a texture of this size first and
	// composites it onto the frame. Zero disables it.
	Offscreen uint32 `yaml:"offscreen"`
	// Background is the RGBA clear colour.
	Background [4]float32 `yaml:"background"`
}

// DefaultConfig returns the configuration used without a scene file.
func DefaultConfig() Config {
	return Config{
		Width:          640,
		Height:         480,
		Frames:         120,
		FramesInFlight: 3,
		Backend:        "software",
		Output:         "frame.png",
		LogLevel:       "warn",
		Scene: SceneConfig{
			Sprites:    64,
			Blend:      "alpha",
			Mesh:       true,
			Background: [4]float32{0.1, 0.1, 0.15, 1},
		},
	}
}

// LoadConfig reads a YAML scene file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	info, err := os.Stat(path)
	if err != nil {
		return cfg, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > maxConfigSize {
		return cfg, fmt.Errorf("config %s is %d bytes, limit is %d", path, info.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.Width == 0 || c.Height == 0:
		return fmt.Errorf("size %dx%d must be positive", c.Width, c.Height)
	case c.Frames <= 0:
		return fmt.Errorf("frames must be positive, got %d", c.Frames)
	case c.FramesInFlight <= 0:
		return fmt.Errorf("frames_in_flight must be positive, got %d", c.FramesInFlight)
	case c.Scene.Sprites < 0:
		return fmt.Errorf("sprites must not be negative, got %d", c.Scene.Sprites)
	}
	if _, ok := drawlist.ParseBlendMode(c.Scene.Blend); !ok {
		return fmt.Errorf("unknown blend mode %q", c.Scene.Blend)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}
