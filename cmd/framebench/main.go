// Command framebench drives the frame pipeline headlessly for a number of
// frames and writes the last frame to an image file.
//
// Usage:
//
//	framebench -config scene.yaml -frames 300 -backend vulkan -output out.png
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/framepipe"

	// Register the platform HAL backends (Vulkan, Metal, DX12, GLES).
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "framebench:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "YAML scene file")
		frames     = flag.Int("frames", 0, "number of frames to render (overrides config)")
		backend    = flag.String("backend", "", "HAL backend: noop, software, vulkan, metal, dx12, gl")
		output     = flag.String("output", "", "image written from the last frame (.png, .bmp, .tiff)")
		width      = flag.Uint("width", 0, "target width")
		height     = flag.Uint("height", 0, "target height")
		verbose    = flag.Bool("v", false, "debug logging")
		quiet      = flag.Bool("q", false, "hide the progress bar")
	)
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *frames > 0 {
		cfg.Frames = *frames
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *output != "" {
		cfg.Output = *output
	}
	if *width > 0 {
		cfg.Width = uint32(*width) //nolint:gosec // G115: user-supplied size
	}
	if *height > 0 {
		cfg.Height = uint32(*height) //nolint:gosec // G115: user-supplied size
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level, _ := parseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	framepipe.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, err := framepipe.New(
		framepipe.WithSize(cfg.Width, cfg.Height),
		framepipe.WithFramesInFlight(cfg.FramesInFlight),
		framepipe.WithBackend(cfg.Backend),
		framepipe.WithSPIRV(cfg.SPIRV),
	)
	if err != nil {
		return err
	}
	defer r.Shutdown()
	logger.Info("renderer ready", "device", r.Name())

	scene, err := NewScene(r, cfg.Width, cfg.Height, cfg.Scene)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !*quiet {
		bar = progressbar.Default(int64(cfg.Frames), "rendering")
		defer bar.Close()
	}

	stats, err := renderFrames(ctx, r, scene, cfg.Frames, bar)
	if err != nil {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
	}
	fmt.Println(stats)

	if cfg.Output == "" {
		return nil
	}
	img, err := readFrame(r, int(cfg.Width), int(cfg.Height))
	if err != nil {
		return err
	}
	if err := writeImage(cfg.Output, img); err != nil {
		return err
	}
	logger.Info("frame written", "path", cfg.Output)
	return nil
}

// runStats summarizes a benchmark run.
type runStats struct {
	Frames    int
	Elapsed   time.Duration
	DrawCalls uint32
	Vertices  uint32
	GPUTime   float64
}

func (s runStats) String() string {
	fps := float64(s.Frames) / s.Elapsed.Seconds()
	return fmt.Sprintf("%d frames in %v (%.1f fps), %d draws / %d vertices per frame, last GPU time %.3f ms",
		s.Frames, s.Elapsed.Round(time.Millisecond), fps, s.DrawCalls, s.Vertices, s.GPUTime)
}

// renderFrames runs n frames of scene on r. bar may be nil.
func renderFrames(ctx context.Context, r framepipe.Renderer, scene *Scene, n int, bar *progressbar.ProgressBar) (runStats, error) {
	start := time.Now()
	for frame := range n {
		if err := r.BeginFrame(ctx); err != nil {
			return runStats{}, fmt.Errorf("frame %d: %w", frame, err)
		}
		if err := r.ExecuteDrawList(scene.Build(frame)); err != nil {
			// The frame is still submitted so the renderer stays in step.
			framepipe.Logger().Warn("draw list rejected", "frame", frame, "err", err)
		}
		if err := r.EndFrame(); err != nil {
			return runStats{}, fmt.Errorf("frame %d: %w", frame, err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	draws, verts := r.Statistics()
	return runStats{
		Frames:    n,
		Elapsed:   time.Since(start),
		DrawCalls: draws,
		Vertices:  verts,
		GPUTime:   r.LastGPUTime(),
	}, nil
}

// readFrame copies the default target into an image.
func readFrame(r framepipe.Renderer, width, height int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := r.ReadTexturePixels(r.DefaultRenderTarget(), img.Pix, width, height, img.Stride); err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return img, nil
}

// writeImage encodes img by the extension of path.
func writeImage(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
