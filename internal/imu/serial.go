package imu

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// FrameDecoder turns bytes read from the vendor link into classified packets.
// The binary framing is vendor-specific and supplied by the caller; a decoder
// must buffer partial frames internally and emit the completed packets on a
// later call. Decoders are only ever called from the acquisition goroutine.
type FrameDecoder interface {
	Decode(b []byte) []Packet
}

// SerialSource reads the IMU link over a serial port and delegates framing to
// a FrameDecoder.
type SerialSource struct {
	port serial.Port
	dec  FrameDecoder
	buf  []byte
}

func NewSerialSource(device string, baud int, dec FrameDecoder) (*SerialSource, error) {
	if device == "" {
		return nil, fmt.Errorf("imu: device is required")
	}
	if dec == nil {
		return nil, fmt.Errorf("imu: frame decoder is nil")
	}
	if baud <= 0 {
		baud = 115200
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("imu: open %s: %w", device, err)
	}
	return &SerialSource{port: port, dec: dec, buf: make([]byte, 4096)}, nil
}

// Receive reads whatever the port delivers within timeout and decodes any
// completed frames. A timeout with no data yields an empty batch.
func (s *SerialSource) Receive(timeout time.Duration) ([]Packet, error) {
	if err := s.port.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("imu: set read timeout: %w", err)
	}
	n, err := s.port.Read(s.buf)
	if err != nil {
		return nil, fmt.Errorf("imu: serial read: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.dec.Decode(s.buf[:n]), nil
}

func (s *SerialSource) Close() error {
	return s.port.Close()
}
