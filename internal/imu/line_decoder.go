package imu

import (
	"bytes"
	"encoding/json"
	"log"
)

// LineDecoder decodes the newline-delimited JSON stream emitted by the bench
// debug link. One JSON object per line, classified by its "descriptor" field.
// The vendor's binary MIP framing is handled by the vendor tool upstream of
// this link.
//
// Partial lines are buffered until the trailing newline arrives. Lines that
// fail to parse are logged and skipped; a noisy link must not kill the
// acquisition loop.
type LineDecoder struct {
	rem          []byte
	maxLineBytes int
}

func NewLineDecoder() *LineDecoder {
	return &LineDecoder{maxLineBytes: 16 * 1024}
}

type linePacket struct {
	Descriptor  uint8 `json:"descriptor"`
	TimestampNs int64 `json:"timestamp"`

	GPSCorrelFlags   *int     `json:"gpsCorrelTimestampFlags"`
	GPSCorrelTOW     *float64 `json:"gpsCorrelTimestampTow"`
	GPSCorrelWeekNum *int     `json:"gpsCorrelTimestampWeekNum"`

	ScaledAccelX *float64 `json:"scaledAccelX"`
	ScaledAccelY *float64 `json:"scaledAccelY"`
	ScaledAccelZ *float64 `json:"scaledAccelZ"`
	ScaledGyroX  *float64 `json:"scaledGyroX"`
	ScaledGyroY  *float64 `json:"scaledGyroY"`
	ScaledGyroZ  *float64 `json:"scaledGyroZ"`

	FilterGPSTimeTOW     *float64    `json:"estFilterGpsTimeTow"`
	FilterGPSTimeWeekNum *int        `json:"estFilterGpsTimeWeekNum"`
	OrientQuaternion     *[4]float64 `json:"estOrientQuaternion"`
	AttitudeUncertQuat   *[4]float64 `json:"estAttitudeUncertQuaternion"`
	FilterState          *int        `json:"estFilterState"`
	FilterDynamicsMode   *int        `json:"estFilterDynamicsMode"`
	FilterStatusFlags    *int        `json:"estFilterStatusFlags"`
	PressureAlt          *float64    `json:"estPressureAlt"`
	AngularRateX         *float64    `json:"estAngularRateX"`
	AngularRateY         *float64    `json:"estAngularRateY"`
	AngularRateZ         *float64    `json:"estAngularRateZ"`
	CompensatedAccelX    *float64    `json:"estCompensatedAccelX"`
	CompensatedAccelY    *float64    `json:"estCompensatedAccelY"`
	CompensatedAccelZ    *float64    `json:"estCompensatedAccelZ"`
}

// Decode consumes b and returns packets for every completed line.
func (d *LineDecoder) Decode(b []byte) []Packet {
	d.rem = append(d.rem, b...)

	var out []Packet
	for {
		i := bytes.IndexByte(d.rem, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(d.rem[:i])
		d.rem = d.rem[i+1:]
		if len(line) == 0 {
			continue
		}
		if pkt := d.parseLine(line); pkt != nil {
			out = append(out, pkt)
		}
	}

	// A line that never terminates means link garbage; drop it rather than
	// growing without bound.
	if len(d.rem) > d.maxLineBytes {
		log.Printf("imu line decoder: dropping %d bytes of unterminated input", len(d.rem))
		d.rem = nil
	}
	return out
}

func (d *LineDecoder) parseLine(line []byte) Packet {
	var lp linePacket
	if err := json.Unmarshal(line, &lp); err != nil {
		log.Printf("imu line decoder: bad line: %v", err)
		return nil
	}

	switch Descriptor(lp.Descriptor) {
	case DescriptorRaw:
		return &RawPacket{
			TimestampNs:      lp.TimestampNs,
			GPSCorrelFlags:   lp.GPSCorrelFlags,
			GPSCorrelTOW:     lp.GPSCorrelTOW,
			GPSCorrelWeekNum: lp.GPSCorrelWeekNum,
			ScaledAccelX:     lp.ScaledAccelX,
			ScaledAccelY:     lp.ScaledAccelY,
			ScaledAccelZ:     lp.ScaledAccelZ,
			ScaledGyroX:      lp.ScaledGyroX,
			ScaledGyroY:      lp.ScaledGyroY,
			ScaledGyroZ:      lp.ScaledGyroZ,
		}
	case DescriptorEstimated:
		return &EstimatedPacket{
			TimestampNs:              lp.TimestampNs,
			FilterGPSTimeTOW:         lp.FilterGPSTimeTOW,
			FilterGPSTimeWeekNum:     lp.FilterGPSTimeWeekNum,
			OrientQuaternion:         lp.OrientQuaternion,
			AttitudeUncertQuaternion: lp.AttitudeUncertQuat,
			FilterState:              lp.FilterState,
			FilterDynamicsMode:       lp.FilterDynamicsMode,
			FilterStatusFlags:        lp.FilterStatusFlags,
			PressureAlt:              lp.PressureAlt,
			AngularRateX:             lp.AngularRateX,
			AngularRateY:             lp.AngularRateY,
			AngularRateZ:             lp.AngularRateZ,
			CompensatedAccelX:        lp.CompensatedAccelX,
			CompensatedAccelY:        lp.CompensatedAccelY,
			CompensatedAccelZ:        lp.CompensatedAccelZ,
		}
	default:
		log.Printf("imu line decoder: unknown descriptor %d", lp.Descriptor)
		return nil
	}
}
