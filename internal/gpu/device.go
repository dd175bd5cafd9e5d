package gpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/gogpu/wgpu/hal/software"
)

// deviceHandle is the device the renderer draws with, plus what it must
// release at Shutdown.
type deviceHandle struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance

	// adapterName is reported by Renderer.Name.
	adapterName string
	adapterType gpucontext.AdapterType

	// external devices are owned by the caller and never destroyed.
	external bool
}

// backendByName returns the HAL backend for name. noop and software are
// linked in directly; platform backends must be registered, usually by
// importing github.com/gogpu/wgpu/hal/allbackends.
func backendByName(name string) (hal.Backend, error) {
	var variant gputypes.Backend
	switch strings.ToLower(name) {
	case "noop", "":
		return noop.API{}, nil
	case "software", "cpu":
		return software.API{}, nil
	case "vulkan", "vk":
		variant = gputypes.BackendVulkan
	case "metal":
		variant = gputypes.BackendMetal
	case "dx12", "d3d12":
		variant = gputypes.BackendDX12
	case "gl", "gles", "opengl":
		variant = gputypes.BackendGL
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("backend %q not registered", name)
	}
	return backend, nil
}

// openDevice resolves the device for cfg: an explicit HAL device, a host
// provider, or a fresh device opened on the named backend.
func openDevice(cfg *Config) (*deviceHandle, error) {
	if cfg.Device != nil || cfg.Queue != nil {
		if cfg.Device == nil || cfg.Queue == nil {
			return nil, ErrNilDevice
		}
		return &deviceHandle{
			device:      cfg.Device,
			queue:       cfg.Queue,
			adapterName: "external",
			adapterType: gpucontext.AdapterTypeUnknown,
			external:    true,
		}, nil
	}
	if cfg.Provider != nil {
		return adoptProvider(cfg)
	}

	backend, err := backendByName(cfg.Backend)
	if err != nil {
		return nil, err
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(cfg.Surface)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found")
	}
	selected := selectAdapter(adapters)
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	slogger().Info("device opened",
		"backend", cfg.Backend, "adapter", selected.Info.Name, "type", selected.Info.DeviceType)
	return &deviceHandle{
		device:      openDev.Device,
		queue:       openDev.Queue,
		instance:    instance,
		adapterName: selected.Info.Name,
		adapterType: adapterType(selected.Info.DeviceType),
	}, nil
}

// selectAdapter prefers a discrete or integrated GPU and falls back to the
// first adapter.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// adoptProvider takes the HAL device and queue from a host provider. The
// provider must expose them through HalDevice() any and HalQueue() any.
func adoptProvider(cfg *Config) (*deviceHandle, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := cfg.Provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("provider HalQueue is not hal.Queue")
	}
	if f := cfg.Provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		cfg.Format = f
	}
	info := cfg.Provider.AdapterInfo()
	slogger().Info("switched to shared GPU device", "adapter", info.Name, "type", info.Type)
	return &deviceHandle{
		device:      device,
		queue:       queue,
		adapterName: info.Name,
		adapterType: info.Type,
		external:    true,
	}, nil
}

// release destroys the device and instance unless they are external.
func (h *deviceHandle) release() {
	if h == nil || h.external {
		return
	}
	if h.device != nil {
		h.device.Destroy()
		h.device = nil
	}
	if h.instance != nil {
		h.instance.Destroy()
		h.instance = nil
	}
	h.queue = nil
}
