package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

func TestBackendByName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"noop", false},
		{"", false},
		{"NOOP", false},
		{"software", false},
		{"cpu", false},
		{"bogus", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := backendByName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && b == nil {
				t.Error("nil backend")
			}
		})
	}
}

func TestSelectAdapter(t *testing.T) {
	adapters := []hal.ExposedAdapter{
		{Info: gputypes.AdapterInfo{Name: "cpu", DeviceType: gputypes.DeviceTypeCPU}},
		{Info: gputypes.AdapterInfo{Name: "igpu", DeviceType: gputypes.DeviceTypeIntegratedGPU}},
		{Info: gputypes.AdapterInfo{Name: "dgpu", DeviceType: gputypes.DeviceTypeDiscreteGPU}},
	}
	if got := selectAdapter(adapters); got.Info.Name != "igpu" {
		t.Errorf("selectAdapter = %q, want the first hardware adapter", got.Info.Name)
	}
	if got := selectAdapter(adapters[:1]); got.Info.Name != "cpu" {
		t.Errorf("selectAdapter = %q, want the fallback", got.Info.Name)
	}
}

func TestAdapterType(t *testing.T) {
	tests := []struct {
		in   gputypes.DeviceType
		want gpucontext.AdapterType
	}{
		{gputypes.DeviceTypeDiscreteGPU, gpucontext.AdapterTypeDiscrete},
		{gputypes.DeviceTypeIntegratedGPU, gpucontext.AdapterTypeIntegrated},
		{gputypes.DeviceTypeCPU, gpucontext.AdapterTypeSoftware},
		{gputypes.DeviceTypeOther, gpucontext.AdapterTypeUnknown},
	}
	for _, tt := range tests {
		if got := adapterType(tt.in); got != tt.want {
			t.Errorf("adapterType(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOpenDeviceExternal(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	cfg := DefaultConfig()
	cfg.Device, cfg.Queue = device, queue
	h, err := openDevice(&cfg)
	if err != nil {
		t.Fatalf("openDevice failed: %v", err)
	}
	if !h.external || h.device != device {
		t.Error("external device not adopted")
	}
	h.release()

	cfg.Queue = nil
	if _, err := openDevice(&cfg); !errors.Is(err, ErrNilDevice) {
		t.Errorf("error = %v, want ErrNilDevice", err)
	}
}

func TestOpenDeviceNoop(t *testing.T) {
	cfg := DefaultConfig()
	h, err := openDevice(&cfg)
	if err != nil {
		t.Fatalf("openDevice failed: %v", err)
	}
	defer h.release()
	if h.external || h.device == nil || h.queue == nil || h.instance == nil {
		t.Errorf("handle = %+v", h)
	}
}

type providerWithoutHAL struct{ halProvider }

func (providerWithoutHAL) HalDevice() any { return "not a device" }

func TestAdoptProviderRejectsForeignDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = &providerWithoutHAL{}
	if _, err := adoptProvider(&cfg); err == nil {
		t.Error("adoptProvider accepted a non-HAL device")
	}
}
