package camera

import (
	"errors"
	"fmt"
	"math"
)

// Dial names a control on the camera body.
type Dial string

// Dials.
const (
	DialISO          Dial = "iso"
	DialAperture     Dial = "aperture"
	DialShutter      Dial = "shutter"
	DialExposure     Dial = "exposure"
	DialWhiteBalance Dial = "white_balance"
	DialFlash        Dial = "flash"
)

// Assist names a toggleable shooting aid.
type Assist string

// Assists.
const (
	AssistFocusPeaking Assist = "focus_peaking"
	AssistZebra        Assist = "zebra"
	AssistHistogram    Assist = "histogram"
	AssistGrid         Assist = "grid"
	AssistLevel        Assist = "level"
)

// WhiteBalance is a white balance preset.
type WhiteBalance string

// White balance presets.
const (
	WBAuto        WhiteBalance = "auto"
	WBDaylight    WhiteBalance = "daylight"
	WBCloudy      WhiteBalance = "cloudy"
	WBShade       WhiteBalance = "shade"
	WBTungsten    WhiteBalance = "tungsten"
	WBFluorescent WhiteBalance = "fluorescent"
	WBFlash       WhiteBalance = "flash"
)

// FlashMode is the flash firing policy.
type FlashMode string

// Flash modes.
const (
	FlashOff    FlashMode = "off"
	FlashAuto   FlashMode = "auto"
	FlashOn     FlashMode = "on"
	FlashRedEye FlashMode = "red-eye"
)

// Dial stop lists, in dial order.
var (
	ISOStops          = []int{100, 200, 400, 800, 1600, 3200, 6400, 12800}
	ApertureStops     = []float64{1.4, 1.8, 2, 2.8, 4, 5.6, 8, 11, 16, 22}
	ShutterStops      = []string{"1/8000", "1/4000", "1/2000", "1/1000", "1/500", "1/250", "1/125", "1/60", "1/30", "1/15", "1/8", "1/4", "1/2", "1\"", "2\"", "4\"", "8\"", "15\"", "30\""}
	WhiteBalanceStops = []WhiteBalance{WBAuto, WBDaylight, WBCloudy, WBShade, WBTungsten, WBFluorescent, WBFlash}
	FlashStops        = []FlashMode{FlashOff, FlashAuto, FlashOn, FlashRedEye}
	Assists           = []Assist{AssistFocusPeaking, AssistZebra, AssistHistogram, AssistGrid, AssistLevel}
)

// ExposureStep is the dial increment for exposure compensation.
const ExposureStep = 1.0 / 3.0

// Dial errors.
var (
	ErrUnknownDial   = errors.New("unknown dial")
	ErrUnknownAssist = errors.New("unknown assist")
	ErrInvalidValue  = errors.New("value not on dial")
)

// Settings is the full dial surface of the body.
type Settings struct {
	ISO          int             `json:"iso"`
	Aperture     float64         `json:"aperture"`
	Shutter      string          `json:"shutter"`
	Exposure     float64         `json:"exposure"`
	WhiteBalance WhiteBalance    `json:"white_balance"`
	Flash        FlashMode       `json:"flash"`
	HUDVisible   bool            `json:"hud_visible"`
	Assists      map[Assist]bool `json:"assists"`
}

// DefaultSettings returns the dial positions of a freshly powered body.
func DefaultSettings() Settings {
	assists := make(map[Assist]bool, len(Assists))
	for _, a := range Assists {
		assists[a] = false
	}
	assists[AssistHistogram] = true
	return Settings{
		ISO:          100,
		Aperture:     2.8,
		Shutter:      "1/125",
		Exposure:     0,
		WhiteBalance: WBAuto,
		Flash:        FlashAuto,
		HUDVisible:   true,
		Assists:      assists,
	}
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	assists := make(map[Assist]bool, len(s.Assists))
	for k, v := range s.Assists {
		assists[k] = v
	}
	s.Assists = assists
	return s
}

// SetDial moves dial to value. value must be one of the dial's stops (any
// value within range for exposure, which is snapped to the nearest third).
// The returned bool reports whether anything changed.
func (s Settings) SetDial(dial Dial, value any) (Settings, bool, error) {
	next := s.Clone()
	switch dial {
	case DialISO:
		v, ok := toInt(value)
		if !ok || indexOf(ISOStops, v) < 0 {
			return s, false, fmt.Errorf("%w: iso %v", ErrInvalidValue, value)
		}
		next.ISO = v
	case DialAperture:
		v, ok := toFloat(value)
		if !ok || indexOf(ApertureStops, v) < 0 {
			return s, false, fmt.Errorf("%w: aperture %v", ErrInvalidValue, value)
		}
		next.Aperture = v
	case DialShutter:
		v, ok := value.(string)
		if !ok || indexOf(ShutterStops, v) < 0 {
			return s, false, fmt.Errorf("%w: shutter %v", ErrInvalidValue, value)
		}
		next.Shutter = v
	case DialExposure:
		v, ok := toFloat(value)
		if !ok || math.IsNaN(v) {
			return s, false, fmt.Errorf("%w: exposure %v", ErrInvalidValue, value)
		}
		next.Exposure = snapExposure(v)
	case DialWhiteBalance:
		v, ok := toString(value)
		if !ok || indexOf(WhiteBalanceStops, WhiteBalance(v)) < 0 {
			return s, false, fmt.Errorf("%w: white balance %v", ErrInvalidValue, value)
		}
		next.WhiteBalance = WhiteBalance(v)
	case DialFlash:
		v, ok := toString(value)
		if !ok || indexOf(FlashStops, FlashMode(v)) < 0 {
			return s, false, fmt.Errorf("%w: flash %v", ErrInvalidValue, value)
		}
		next.Flash = FlashMode(v)
	default:
		return s, false, fmt.Errorf("%w: %q", ErrUnknownDial, dial)
	}
	if next.equalDials(s) {
		return s, false, nil
	}
	return next, true, nil
}

// StepDial turns dial by delta detents, stopping at either end.
func (s Settings) StepDial(dial Dial, delta int) (Settings, bool, error) {
	next := s.Clone()
	switch dial {
	case DialISO:
		next.ISO = ISOStops[stepIndex(indexOf(ISOStops, s.ISO), delta, len(ISOStops))]
	case DialAperture:
		next.Aperture = ApertureStops[stepIndex(indexOf(ApertureStops, s.Aperture), delta, len(ApertureStops))]
	case DialShutter:
		next.Shutter = ShutterStops[stepIndex(indexOf(ShutterStops, s.Shutter), delta, len(ShutterStops))]
	case DialExposure:
		next.Exposure = snapExposure(s.Exposure + float64(delta)*ExposureStep)
	case DialWhiteBalance:
		next.WhiteBalance = WhiteBalanceStops[stepIndex(indexOf(WhiteBalanceStops, s.WhiteBalance), delta, len(WhiteBalanceStops))]
	case DialFlash:
		next.Flash = FlashStops[stepIndex(indexOf(FlashStops, s.Flash), delta, len(FlashStops))]
	default:
		return s, false, fmt.Errorf("%w: %q", ErrUnknownDial, dial)
	}
	if next.equalDials(s) {
		return s, false, nil
	}
	return next, true, nil
}

// ToggleAssist flips a shooting aid on or off.
func (s Settings) ToggleAssist(a Assist, on bool) (Settings, bool, error) {
	if indexOf(Assists, a) < 0 {
		return s, false, fmt.Errorf("%w: %q", ErrUnknownAssist, a)
	}
	if s.Assists[a] == on {
		return s, false, nil
	}
	next := s.Clone()
	next.Assists[a] = on
	return next, true, nil
}

// SetHUDVisible shows or hides the HUD overlay.
func (s Settings) SetHUDVisible(visible bool) (Settings, bool) {
	if s.HUDVisible == visible {
		return s, false
	}
	next := s.Clone()
	next.HUDVisible = visible
	return next, true
}

func (s Settings) equalDials(o Settings) bool {
	return s.ISO == o.ISO &&
		s.Aperture == o.Aperture &&
		s.Shutter == o.Shutter &&
		s.Exposure == o.Exposure &&
		s.WhiteBalance == o.WhiteBalance &&
		s.Flash == o.Flash
}

// snapExposure clamps ev and rounds it to the nearest third of a stop.
func snapExposure(ev float64) float64 {
	ev = ClampExposure(ev)
	thirds := math.Round(ev * 3)
	snapped := thirds / 3
	// keep -0 out of JSON
	if snapped == 0 {
		return 0
	}
	return snapped
}

// stepIndex moves i by delta within [0, n). An unknown position (-1)
// starts from the first stop.
func stepIndex(i, delta, n int) int {
	if i < 0 {
		i = 0
	}
	i += delta
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func indexOf[T comparable](list []T, v T) int {
	for i, item := range list {
		if item == v {
			return i
		}
	}
	return -1
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case WhiteBalance:
		return string(s), true
	case FlashMode:
		return string(s), true
	}
	return "", false
}
