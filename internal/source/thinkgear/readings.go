package thinkgear

import (
	"time"

	"codeberg.org/mutker/biolog/internal/reading"
)

const eegBands = 8

// EEGPower holds the eight ASIC EEG band powers in protocol order.
type EEGPower [eegBands]uint32

// Readings converts the rows of a packet into readings stamped with t.
// Rows with codes that are not recorded are skipped.
func Readings(pkt Packet, t time.Time) []reading.Reading {
	var out []reading.Reading
	for _, row := range pkt {
		if row.Excode != 0 {
			continue
		}
		kind := reading.Kind(reading.ThinkGearBase + int(row.Code))

		switch row.Code {
		case CodePoorSignal, CodeAttention, CodeMeditation, CodeBlinkStrength:
			out = append(out, reading.NewAt(t, kind, reading.Int(int64(row.Data[0])), reading.FormatInteger))
		case CodeRawWave:
			if len(row.Data) < 2 {
				continue
			}
			raw := int16(uint16(row.Data[0])<<8 | uint16(row.Data[1]))
			out = append(out, reading.NewAt(t, kind, reading.Int(int64(raw)), reading.FormatInteger))
		case CodeEEGPower:
			power, ok := decodeEEGPower(row.Data)
			if !ok {
				continue
			}
			out = append(out, reading.NewAt(t, kind, reading.Structured(power[:]), reading.FormatStructured))
		}
	}

	return out
}

func decodeEEGPower(data []byte) (EEGPower, bool) {
	var power EEGPower
	if len(data) < eegBands*3 {
		return power, false
	}
	for i := range power {
		b := data[i*3 : i*3+3]
		power[i] = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	}
	return power, true
}
