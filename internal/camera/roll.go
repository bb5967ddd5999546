package camera

import "time"

// DefaultRollCapacity bounds how many frames a roll keeps.
const DefaultRollCapacity = 36

// Frame is one captured shot.
type Frame struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Src       string    `json:"src,omitempty" yaml:"src"`
	Lens      Lens      `json:"lens,omitempty" yaml:"lens"`
	ISO       int       `json:"iso,omitempty" yaml:"iso"`
	Aperture  float64   `json:"aperture,omitempty" yaml:"aperture"`
	Shutter   string    `json:"shutter,omitempty" yaml:"shutter"`
	Exposure  float64   `json:"exposure" yaml:"exposure"`
	Flash     bool      `json:"flash" yaml:"flash"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Roll is a bounded, oldest-first list of frames.
type Roll struct {
	frames   []Frame
	capacity int
}

// NewRoll returns a roll seeded with frames. Seed frames beyond capacity are
// dropped from the front.
func NewRoll(capacity int, seed []Frame) *Roll {
	if capacity <= 0 {
		capacity = DefaultRollCapacity
	}
	r := &Roll{capacity: capacity}
	for _, f := range seed {
		r.Add(f)
	}
	return r
}

// Add appends f, evicting the oldest frame when full.
func (r *Roll) Add(f Frame) {
	if len(r.frames) >= r.capacity {
		r.frames = append(r.frames[:0], r.frames[1:]...)
	}
	r.frames = append(r.frames, f)
}

// Len returns the number of frames on the roll.
func (r *Roll) Len() int { return len(r.frames) }

// Frames returns a copy of the frames, oldest first.
func (r *Roll) Frames() []Frame {
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Expose builds a frame from the current body state.
func Expose(id string, state *State, settings Settings, at time.Time) Frame {
	return Frame{
		ID:        id,
		Title:     "Frame " + id,
		Lens:      state.Lens,
		ISO:       settings.ISO,
		Aperture:  settings.Aperture,
		Shutter:   settings.Shutter,
		Exposure:  state.Exposure,
		Flash:     state.FlashFired,
		Timestamp: at,
	}
}
