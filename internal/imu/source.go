package imu

import "time"

// Source is the boundary to whatever produces classified packets: the real
// serial link, or a simulated flight profile.
//
// Receive blocks for at most timeout and returns zero or more packets in
// timestamp order. An empty batch is a normal outcome (nothing arrived within
// the window), not an error.
type Source interface {
	Receive(timeout time.Duration) ([]Packet, error)
	Close() error
}
