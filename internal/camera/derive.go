package camera

import (
	"fmt"
	"math"
)

// MaxNoise is the grain intensity at the top ISO stop.
const MaxNoise = 0.45

// Flash status labels shown by the HUD.
const (
	FlashLabelFired = "Flash fired!"
	FlashLabelReady = "Flash ready"
)

// NoiseFromISO maps an ISO value to a grain intensity in [0, MaxNoise].
// Noise grows with the number of stops above base ISO.
func NoiseFromISO(iso int) float64 {
	base := float64(ISOStops[0])
	top := float64(ISOStops[len(ISOStops)-1])
	if float64(iso) <= base {
		return 0
	}
	if float64(iso) >= top {
		return MaxNoise
	}
	stops := math.Log2(float64(iso) / base)
	span := math.Log2(top / base)
	return math.Round(stops/span*MaxNoise*1000) / 1000
}

// WhiteBalanceFilter returns the CSS filter applied to the viewfinder for a
// white balance preset. Unknown presets render unfiltered.
func WhiteBalanceFilter(wb WhiteBalance) string {
	switch wb {
	case WBDaylight:
		return "sepia(0.05) saturate(1.05)"
	case WBCloudy:
		return "sepia(0.15) saturate(1.1) hue-rotate(-5deg)"
	case WBShade:
		return "sepia(0.25) saturate(1.15) hue-rotate(-10deg)"
	case WBTungsten:
		return "saturate(0.9) hue-rotate(15deg) brightness(1.02)"
	case WBFluorescent:
		return "saturate(0.95) hue-rotate(8deg)"
	case WBFlash:
		return "sepia(0.08) brightness(1.03)"
	default:
		return "none"
	}
}

// ExposureBrightness converts EV compensation into a CSS brightness factor.
func ExposureBrightness(ev float64) string {
	factor := math.Pow(2, ClampExposure(ev)/2)
	return fmt.Sprintf("brightness(%.2f)", factor)
}

// FlashLabel is the HUD text for the flash indicator.
func FlashLabel(fired bool) string {
	if fired {
		return FlashLabelFired
	}
	return FlashLabelReady
}
