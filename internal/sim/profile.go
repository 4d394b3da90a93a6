package sim

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ProfileScript is a deterministic, script-driven flight profile: compensated
// acceleration and pressure altitude as piecewise-linear keyframes.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s"). If
// Duration is zero it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 30s
//	base_alt_m: 1400      # pad pressure altitude
//	keyframes:
//	  - t: 0s
//	    ax: 0
//	    ay: 0
//	    az: 0
//	    alt_m: 0          # relative to the pad
//
// Keyframes must be sorted by non-decreasing t.
//
// Keep this struct stable: scripts are test fixtures.
type ProfileScript struct {
	Version   int           `yaml:"version"`
	Duration  time.Duration `yaml:"duration"`
	BaseAltM  float64       `yaml:"base_alt_m"`
	Keyframes []Keyframe    `yaml:"keyframes"`
}

// Keyframe is a time-stamped flight state.
type Keyframe struct {
	T    time.Duration `yaml:"t"`
	Ax   float64       `yaml:"ax"`
	Ay   float64       `yaml:"ay"`
	Az   float64       `yaml:"az"`
	AltM float64       `yaml:"alt_m"`
}

// Profile is the validated, runtime representation.
type Profile struct {
	script   ProfileScript
	duration time.Duration
}

// LoadProfileScript reads and unmarshals a YAML profile script from path.
func LoadProfileScript(path string) (ProfileScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ProfileScript{}, err
	}
	return ParseProfileScriptYAML(b)
}

// ParseProfileScriptYAML parses a YAML profile script.
func ParseProfileScriptYAML(b []byte) (ProfileScript, error) {
	var s ProfileScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return ProfileScript{}, err
	}
	return s, nil
}

// NewProfile validates script and returns a runtime Profile.
func NewProfile(script ProfileScript) (*Profile, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported profile version %d", script.Version)
	}
	if len(script.Keyframes) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	for i := range script.Keyframes {
		if script.Keyframes[i].T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && script.Keyframes[i].T < script.Keyframes[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
	}

	dur := script.Duration
	if dur <= 0 {
		dur = script.Keyframes[len(script.Keyframes)-1].T
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}
	return &Profile{script: script, duration: dur}, nil
}

// Duration returns the effective profile length.
func (p *Profile) Duration() time.Duration {
	if p == nil {
		return 0
	}
	return p.duration
}

// State is the interpolated flight state at a time.
type State struct {
	Accel [3]float64
	// AltM is pad-relative; PressureAltM includes the pad base altitude.
	AltM         float64
	PressureAltM float64
}

// StateAt computes the profile state at elapsed, clamped to [0, Duration()].
func (p *Profile) StateAt(elapsed time.Duration) State {
	if p == nil {
		return State{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > p.duration {
		elapsed = p.duration
	}

	k0, k1, alpha := selectSegment(p.script.Keyframes, elapsed)
	alt := lerp(k0.AltM, k1.AltM, alpha)
	return State{
		Accel: [3]float64{
			lerp(k0.Ax, k1.Ax, alpha),
			lerp(k0.Ay, k1.Ay, alpha),
			lerp(k0.Az, k1.Az, alpha),
		},
		AltM:         alt,
		PressureAltM: p.script.BaseAltM + alt,
	}
}

func selectSegment(kfs []Keyframe, t time.Duration) (Keyframe, Keyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
