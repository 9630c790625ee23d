package gpu

// Library is the device discovery layer, NVML in production.
type Library interface {
	Initialize() error
	Shutdown() error
	Device(index int) (Device, error)
}

// Device reads the sensors of one GPU.
type Device interface {
	Name() (string, error)
	Temperature() (int, error)
	FanSpeeds() ([]int, error)
	PowerLimit() (int, error)
}
