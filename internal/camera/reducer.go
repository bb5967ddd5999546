package camera

import (
	"math"
	"time"
)

// Reduce applies action to state and returns the resulting state.
//
// Reduce never mutates state. When the action would not change anything,
// including invalid lens/HUD/mode values and NaN exposures, it returns state itself, so
// next == state is a reliable "nothing changed" check.
func Reduce(state *State, action Action) *State {
	return ReduceAt(state, action, time.Now())
}

// ReduceAt is Reduce with an explicit clock reading used when TriggerFlash
// carries no timestamp.
func ReduceAt(state *State, action Action, now time.Time) *State {
	switch a := action.(type) {
	case ChangeLens:
		if !a.Lens.Valid() || a.Lens == state.Lens {
			return state
		}
		next := state.clone()
		next.Lens = a.Lens
		return next

	case SetExposure:
		return withExposure(state, ClampExposure(a.Value))

	case AdjustExposure:
		return withExposure(state, ClampExposure(state.Exposure+a.Delta))

	case SetHUDLevel:
		if !a.Level.Valid() || a.Level == state.HUDLevel {
			return state
		}
		next := state.clone()
		next.HUDLevel = a.Level
		return next

	case SetCameraMode:
		if !a.Mode.Valid() || a.Mode == state.CameraMode {
			return state
		}
		next := state.clone()
		next.CameraMode = a.Mode
		return next

	case OpenAlbum:
		return withAlbumOpen(state, true)

	case CloseAlbum:
		return withAlbumOpen(state, false)

	case TriggerFlash:
		ts := now
		if a.At != nil {
			ts = *a.At
		}
		if state.FlashFired && state.LastFlashTimestamp != nil && state.LastFlashTimestamp.Equal(ts) {
			return state
		}
		next := state.clone()
		next.FlashFired = true
		next.LastFlashTimestamp = &ts
		return next

	case ResetFlash:
		if !state.FlashFired {
			return state
		}
		next := state.clone()
		next.FlashFired = false
		return next

	default:
		return state
	}
}

// withExposure treats NaN as no change so exposure stays within range.
func withExposure(state *State, ev float64) *State {
	if math.IsNaN(ev) || ev == state.Exposure {
		return state
	}
	next := state.clone()
	next.Exposure = ev
	return next
}

func withAlbumOpen(state *State, open bool) *State {
	if state.AlbumOpen == open {
		return state
	}
	next := state.clone()
	next.AlbumOpen = open
	return next
}
