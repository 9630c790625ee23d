package reading

import "strconv"

// Kind identifies the source and meaning of a reading's value.
type Kind int

// Known kinds. ThinkGear kinds are 1000 plus the protocol data code.
const (
	KindMarker Kind = 0

	KindPoorSignal    Kind = 1002
	KindAttention     Kind = 1004
	KindMeditation    Kind = 1005
	KindBlinkStrength Kind = 1022
	KindRawWave       Kind = 1128
	KindEEGPower      Kind = 1131

	KindHRV Kind = 2000
	KindSCL Kind = 2001

	KindGPUTemperature Kind = 3000
	KindGPUFanSpeed    Kind = 3001
	KindGPUPowerLimit  Kind = 3002
)

// ThinkGearBase is added to a ThinkGear data code to form its Kind.
const ThinkGearBase = 1000

var kindNames = map[Kind]string{
	KindMarker:         "marker",
	KindPoorSignal:     "poor_signal",
	KindAttention:      "attention",
	KindMeditation:     "meditation",
	KindBlinkStrength:  "blink_strength",
	KindRawWave:        "raw_wave",
	KindEEGPower:       "eeg_power",
	KindHRV:            "hrv",
	KindSCL:            "scl",
	KindGPUTemperature: "gpu_temperature",
	KindGPUFanSpeed:    "gpu_fan_speed",
	KindGPUPowerLimit:  "gpu_power_limit",
}

// String returns a short name for known kinds and the number otherwise.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return strconv.Itoa(int(k))
}
