// Package color checks the accent colors catalog entries use for their
// cards and the HUD tint. Accents sit on the near-black camera body, so each
// one must keep WCAG contrast for UI components against it.
package color

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// HUDBackground is the camera body color accents are drawn on.
const HUDBackground = "#0b0b0c"

// MinAccentContrast is the WCAG 2.1 minimum for graphical objects and
// large text.
const MinAccentContrast = 3.0

var (
	ErrInvalidHex       = errors.New("invalid hex color, expected #rgb or #rrggbb")
	ErrLowContrast      = errors.New("accent contrast too low against the HUD")
	errInvalidComponent = errors.New("invalid color component")
)

// RGB is a color with 8-bit channels.
type RGB struct {
	R, G, B uint8
}

// Hex renders c as lowercase #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Parse reads #rgb or #rrggbb, case-insensitively. Surrounding space is
// ignored.
func Parse(s string) (RGB, error) {
	hex, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}

	var ch [3]uint8
	for i := range ch {
		v, err := strconv.ParseUint(hex[2*i:2*i+2], 16, 8)
		if err != nil {
			return RGB{}, fmt.Errorf("%w: %q: %w", ErrInvalidHex, s, errInvalidComponent)
		}
		ch[i] = uint8(v)
	}
	return RGB{R: ch[0], G: ch[1], B: ch[2]}, nil
}

// Luminance is the WCAG 2.1 relative luminance of c, from 0 to 1.
func Luminance(c RGB) float64 {
	linear := func(v uint8) float64 {
		s := float64(v) / 255
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*linear(c.R) + 0.7152*linear(c.G) + 0.0722*linear(c.B)
}

// Contrast returns the WCAG contrast ratio of a and b, from 1 to 21. The
// order of the arguments does not matter.
func Contrast(a, b RGB) float64 {
	la, lb := Luminance(a), Luminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// Accent validates an accent color and returns it normalized to lowercase
// #rrggbb. An empty accent is allowed and returned as is.
func Accent(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	c, err := Parse(s)
	if err != nil {
		return "", err
	}
	bg, _ := Parse(HUDBackground)
	if ratio := Contrast(c, bg); ratio < MinAccentContrast {
		return "", fmt.Errorf("%w: %s is %.2f:1, need %.1f:1", ErrLowContrast, c.Hex(), ratio, MinAccentContrast)
	}
	return c.Hex(), nil
}
