package sim

import (
	"math"
	"testing"
	"time"

	"airbrakes-ng/internal/imu"
)

const nominalYAML = `
version: 1
base_alt_m: 1400
keyframes:
  - t: 0s
    ax: 0
    ay: 0
    az: 0
    alt_m: 0
  - t: 2s
    ax: 0
    ay: 0
    az: 20
    alt_m: 0
  - t: 4s
    ax: 0
    ay: 0
    az: 20
    alt_m: 100
  - t: 10s
    ax: 0
    ay: 0
    az: 1
    alt_m: 300
`

func mustProfile(t *testing.T, yamlText string) *Profile {
	t.Helper()
	script, err := ParseProfileScriptYAML([]byte(yamlText))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p, err := NewProfile(script)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	return p
}

func TestProfileDurationDerivedFromKeyframes(t *testing.T) {
	p := mustProfile(t, nominalYAML)
	if p.Duration() != 10*time.Second {
		t.Fatalf("duration=%s want 10s", p.Duration())
	}
}

func TestProfileInterpolates(t *testing.T) {
	p := mustProfile(t, nominalYAML)

	st := p.StateAt(3 * time.Second) // midway between the 2s and 4s keyframes
	if math.Abs(st.Accel[2]-20) > 1e-9 {
		t.Fatalf("az=%v want 20", st.Accel[2])
	}
	if math.Abs(st.AltM-50) > 1e-9 {
		t.Fatalf("alt_m=%v want 50", st.AltM)
	}
	if math.Abs(st.PressureAltM-1450) > 1e-9 {
		t.Fatalf("pressure_alt=%v want 1450", st.PressureAltM)
	}
}

func TestProfileClampsOutsideRange(t *testing.T) {
	p := mustProfile(t, nominalYAML)

	if st := p.StateAt(-time.Second); st.AltM != 0 || st.Accel[2] != 0 {
		t.Fatalf("before start: %+v want first keyframe", st)
	}
	if st := p.StateAt(time.Minute); st.AltM != 300 || st.Accel[2] != 1 {
		t.Fatalf("past end: %+v want last keyframe", st)
	}
}

func TestProfileValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no keyframes", "version: 1\nkeyframes: []\n"},
		{"bad version", "version: 2\nkeyframes:\n  - t: 1s\n"},
		{"unsorted", "version: 1\nkeyframes:\n  - t: 2s\n  - t: 1s\n"},
		{"negative t", "version: 1\nkeyframes:\n  - t: -1s\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script, err := ParseProfileScriptYAML([]byte(tc.yaml))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if _, err := NewProfile(script); err == nil {
				t.Fatal("want validation error")
			}
		})
	}
}

func TestProfileSourceTimestampsIncrease(t *testing.T) {
	src, err := NewProfileSource(mustProfile(t, nominalYAML), SourceConfig{Speed: 100})
	if err != nil {
		t.Fatalf("NewProfileSource: %v", err)
	}
	defer src.Close()

	var last int64 = -1
	for i := 0; i < 5; i++ {
		batch, err := src.Receive(0)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if len(batch) == 0 {
			t.Fatal("empty batch")
		}
		if ts := batch[0].Timestamp(); ts <= last {
			t.Fatalf("timestamp %d not after %d", ts, last)
		} else {
			last = ts
		}
	}
}

func TestProfileSourceMixesRawPackets(t *testing.T) {
	src, err := NewProfileSource(mustProfile(t, nominalYAML), SourceConfig{RawEvery: 1})
	if err != nil {
		t.Fatalf("NewProfileSource: %v", err)
	}
	defer src.Close()

	batch, err := src.Receive(0)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("got %d packets want estimated+raw", len(batch))
	}
	if _, ok := batch[0].(*imu.EstimatedPacket); !ok {
		t.Fatalf("packet 0: got %T want *imu.EstimatedPacket", batch[0])
	}
	raw, ok := batch[1].(*imu.RawPacket)
	if !ok {
		t.Fatalf("packet 1: got %T want *imu.RawPacket", batch[1])
	}
	if raw.ScaledAccelZ == nil {
		t.Fatal("raw packet missing accel")
	}
}

func TestProfileSourceClosed(t *testing.T) {
	src, err := NewProfileSource(mustProfile(t, nominalYAML), SourceConfig{})
	if err != nil {
		t.Fatalf("NewProfileSource: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := src.Receive(0); err == nil {
		t.Fatal("Receive after Close: want error")
	}
}
