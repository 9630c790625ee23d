package gpu

import (
	"codeberg.org/mutker/biolog/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const milliWattsToWatts = 1000

// NVML returns the Library backed by the NVIDIA management library.
func NVML() Library {
	return &nvmlWrapper{}
}

type nvmlWrapper struct {
	initialized bool
}

func (w *nvmlWrapper) Initialize() error {
	errFactory := errors.New()
	if w.initialized {
		return nil
	}

	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		return errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	w.initialized = true

	return nil
}

func (w *nvmlWrapper) Shutdown() error {
	errFactory := errors.New()
	if !w.initialized {
		return nil
	}

	ret := nvml.Shutdown()
	if ret != nvml.SUCCESS {
		return errFactory.Wrap(ErrShutdownFailed, newNVMLError(ret))
	}

	w.initialized = false

	return nil
}

func (w *nvmlWrapper) Device(index int) (Device, error) {
	errFactory := errors.New()
	if !w.initialized {
		return nil, errFactory.New(ErrNotInitialized)
	}

	device, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	return &nvmlDevice{device: device}, nil
}

type nvmlDevice struct {
	device nvml.Device
}

func (d *nvmlDevice) Name() (string, error) {
	name, ret := d.device.GetName()
	if ret != nvml.SUCCESS {
		return "", newNVMLError(ret)
	}
	return name, nil
}

func (d *nvmlDevice) Temperature() (int, error) {
	temp, ret := d.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return 0, errors.New().Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
	}
	return int(temp), nil
}

func (d *nvmlDevice) FanSpeeds() ([]int, error) {
	errFactory := errors.New()

	count, ret := d.device.GetNumFans()
	if ret != nvml.SUCCESS {
		return nil, errFactory.Wrap(ErrFanCountFailed, newNVMLError(ret))
	}

	speeds := make([]int, 0, count)
	for i := 0; i < count; i++ {
		speed, ret := d.device.GetFanSpeed_v2(i)
		if ret != nvml.SUCCESS {
			return nil, errFactory.Wrap(ErrGetFanSpeedFailed, newNVMLError(ret))
		}
		speeds = append(speeds, int(speed))
	}

	return speeds, nil
}

func (d *nvmlDevice) PowerLimit() (int, error) {
	limit, ret := d.device.GetPowerManagementLimit()
	if ret != nvml.SUCCESS {
		return 0, errors.New().Wrap(ErrPowerLimitFailed, newNVMLError(ret))
	}
	return int(limit / milliWattsToWatts), nil
}
