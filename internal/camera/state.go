// Package camera models the simulated camera body: the pure reducer state,
// the dial surface and the values derived from it.
package camera

import "time"

// Lens identifies the mounted lens.
type Lens string

// Lens options.
const (
	LensWide      Lens = "wide"
	LensUltraWide Lens = "ultra-wide"
	LensTelephoto Lens = "telephoto"
)

// LensOptions lists every lens in dial order.
var LensOptions = []Lens{LensWide, LensUltraWide, LensTelephoto}

// Valid reports whether l is one of LensOptions.
func (l Lens) Valid() bool {
	switch l {
	case LensWide, LensUltraWide, LensTelephoto:
		return true
	}
	return false
}

// HUDLevel controls how much telemetry the heads-up display shows.
type HUDLevel string

// HUD levels.
const (
	HUDMinimal  HUDLevel = "minimal"
	HUDStandard HUDLevel = "standard"
	HUDPro      HUDLevel = "pro"
)

// HUDLevels lists every HUD level from least to most verbose.
var HUDLevels = []HUDLevel{HUDMinimal, HUDStandard, HUDPro}

// Valid reports whether h is one of HUDLevels.
func (h HUDLevel) Valid() bool {
	switch h {
	case HUDMinimal, HUDStandard, HUDPro:
		return true
	}
	return false
}

// Mode is the shooting mode.
type Mode string

// Camera modes.
const (
	ModePhoto    Mode = "photo"
	ModePortrait Mode = "portrait"
	ModeNight    Mode = "night"
)

// CameraModes lists every shooting mode.
var CameraModes = []Mode{ModePhoto, ModePortrait, ModeNight}

// Valid reports whether m is one of CameraModes.
func (m Mode) Valid() bool {
	switch m {
	case ModePhoto, ModePortrait, ModeNight:
		return true
	}
	return false
}

// Exposure compensation bounds in EV.
const (
	MinExposure = -3.0
	MaxExposure = 3.0
)

// State is the reducer-owned camera state.
//
// A *State returned by Reduce must be treated as immutable: the reducer hands
// back the same pointer for no-op actions so callers can detect changes with
// a pointer comparison.
type State struct {
	Lens               Lens       `json:"lens"`
	Exposure           float64    `json:"exposure"`
	HUDLevel           HUDLevel   `json:"hudLevel"`
	CameraMode         Mode       `json:"cameraMode"`
	AlbumOpen          bool       `json:"albumOpen"`
	FlashFired         bool       `json:"flashFired"`
	LastFlashTimestamp *time.Time `json:"lastFlashTimestamp"`
}

// InitialState returns the state a camera starts with.
func InitialState() *State {
	return &State{
		Lens:       LensWide,
		Exposure:   0,
		HUDLevel:   HUDStandard,
		CameraMode: ModePhoto,
	}
}

// clone returns a shallow copy of s with its own timestamp.
func (s *State) clone() *State {
	next := *s
	if s.LastFlashTimestamp != nil {
		ts := *s.LastFlashTimestamp
		next.LastFlashTimestamp = &ts
	}
	return &next
}

// ClampExposure bounds ev to [MinExposure, MaxExposure].
func ClampExposure(ev float64) float64 {
	if ev < MinExposure {
		return MinExposure
	}
	if ev > MaxExposure {
		return MaxExposure
	}
	return ev
}
