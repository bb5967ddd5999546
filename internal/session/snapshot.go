package session

import (
	"time"

	"github.com/onnwee/viewfinder/internal/camera"
	"github.com/onnwee/viewfinder/internal/galleria"
)

// Derived holds the render values computed from the dial surface.
type Derived struct {
	Noise      float64 `json:"noise"`
	Filter     string  `json:"filter"`
	Brightness string  `json:"brightness"`
	FlashLabel string  `json:"flash_label"`
}

// Snapshot is the full, immutable view of a session at one version.
type Snapshot struct {
	ID        string          `json:"id"`
	Version   uint64          `json:"version"`
	Power     camera.Power    `json:"power"`
	Camera    camera.State    `json:"camera"`
	Settings  camera.Settings `json:"settings"`
	Derived   Derived         `json:"derived"`
	Album     []camera.Frame  `json:"album,omitempty"`
	RollSize  int             `json:"roll_size"`
	Galleria  galleria.View   `json:"galleria"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func derive(state *camera.State, settings camera.Settings) Derived {
	return Derived{
		Noise:      camera.NoiseFromISO(settings.ISO),
		Filter:     camera.WhiteBalanceFilter(settings.WhiteBalance),
		Brightness: camera.ExposureBrightness(state.Exposure),
		FlashLabel: camera.FlashLabel(state.FlashFired),
	}
}
