package imu

// Descriptor is the vendor classification tag on each data packet. The IMU
// streams two descriptor sets: raw (unfiltered channel reads) and estimated
// (sensor-fused filter output).
type Descriptor uint8

const (
	DescriptorRaw       Descriptor = 128
	DescriptorEstimated Descriptor = 130
)

func (d Descriptor) String() string {
	switch d {
	case DescriptorRaw:
		return "raw"
	case DescriptorEstimated:
		return "estimated"
	}
	return "unknown"
}

// Packet is one timestamped sample from the IMU. Timestamps are monotonic
// nanoseconds since an arbitrary epoch and are non-decreasing across the
// stream. The concrete type is fixed at construction and never changes.
type Packet interface {
	Timestamp() int64
	Descriptor() Descriptor
}

// RawPacket carries channels exactly as the sensor read them. A nil field
// means the sensor did not report that channel in this frame; no sentinel
// values are used.
type RawPacket struct {
	TimestampNs int64

	GPSCorrelFlags   *int
	GPSCorrelTOW     *float64
	GPSCorrelWeekNum *int

	// Scaled accelerometer, in G.
	ScaledAccelX *float64
	ScaledAccelY *float64
	ScaledAccelZ *float64

	// Scaled gyro, in rad/s.
	ScaledGyroX *float64
	ScaledGyroY *float64
	ScaledGyroZ *float64
}

func (p *RawPacket) Timestamp() int64       { return p.TimestampNs }
func (p *RawPacket) Descriptor() Descriptor { return DescriptorRaw }

// EstimatedPacket carries the filter output channels. Same nil-means-absent
// convention as RawPacket.
type EstimatedPacket struct {
	TimestampNs int64

	FilterGPSTimeTOW     *float64
	FilterGPSTimeWeekNum *int

	OrientQuaternion         *[4]float64
	AttitudeUncertQuaternion *[4]float64

	FilterState        *int
	FilterDynamicsMode *int
	FilterStatusFlags  *int

	// Pressure altitude, in meters above MSL.
	PressureAlt *float64

	// Angular rate, in rad/s.
	AngularRateX *float64
	AngularRateY *float64
	AngularRateZ *float64

	// Compensated linear acceleration, in m/s^2.
	CompensatedAccelX *float64
	CompensatedAccelY *float64
	CompensatedAccelZ *float64
}

func (p *EstimatedPacket) Timestamp() int64       { return p.TimestampNs }
func (p *EstimatedPacket) Descriptor() Descriptor { return DescriptorEstimated }

// Float64 and Int are value-to-pointer helpers for building packets.
func Float64(v float64) *float64 { return &v }

func Int(v int) *int { return &v }
