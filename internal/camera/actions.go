package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Action type names as they appear on the wire.
const (
	TypeChangeLens     = "CHANGE_LENS"
	TypeSetExposure    = "SET_EXPOSURE"
	TypeAdjustExposure = "ADJUST_EXPOSURE"
	TypeSetHUDLevel    = "SET_HUD_LEVEL"
	TypeSetCameraMode  = "SET_CAMERA_MODE"
	TypeOpenAlbum      = "OPEN_ALBUM"
	TypeCloseAlbum     = "CLOSE_ALBUM"
	TypeTriggerFlash   = "TRIGGER_FLASH"
	TypeResetFlash     = "RESET_FLASH"
)

// ErrMalformedAction is returned by DecodeAction when the payload is not a
// JSON object with a string "type".
var ErrMalformedAction = errors.New("malformed camera action")

// Action is a reducer input. The set of actions is closed: only types in this
// package implement it.
type Action interface {
	Type() string
	action()
}

// ChangeLens swaps the mounted lens.
type ChangeLens struct {
	Lens Lens `json:"lens"`
}

// SetExposure sets exposure compensation to an absolute EV.
type SetExposure struct {
	Value float64 `json:"value"`
}

// AdjustExposure shifts exposure compensation by Delta EV.
type AdjustExposure struct {
	Delta float64 `json:"delta"`
}

// SetHUDLevel changes HUD verbosity.
type SetHUDLevel struct {
	Level HUDLevel `json:"level"`
}

// SetCameraMode changes the shooting mode.
type SetCameraMode struct {
	Mode Mode `json:"mode"`
}

// OpenAlbum shows the album dialog.
type OpenAlbum struct{}

// CloseAlbum hides the album dialog.
type CloseAlbum struct{}

// TriggerFlash fires the flash. A nil At means "now".
type TriggerFlash struct {
	At *time.Time `json:"timestamp,omitempty"`
}

// ResetFlash clears the flash-fired flag.
type ResetFlash struct{}

// unknownAction is what unrecognised wire types decode to. The reducer
// treats it like any other unhandled action.
type unknownAction struct {
	name string
}

func (ChangeLens) Type() string { return TypeChangeLens }
func (SetExposure) Type() string { return TypeSetExposure }
func (AdjustExposure) Type() string { return TypeAdjustExposure }
func (SetHUDLevel) Type() string { return TypeSetHUDLevel }
func (SetCameraMode) Type() string { return TypeSetCameraMode }
func (OpenAlbum) Type() string { return TypeOpenAlbum }
func (CloseAlbum) Type() string { return TypeCloseAlbum }
func (TriggerFlash) Type() string { return TypeTriggerFlash }
func (ResetFlash) Type() string { return TypeResetFlash }
func (u unknownAction) Type() string { return u.name }

func (ChangeLens) action() {}
func (SetExposure) action() {}
func (AdjustExposure) action() {}
func (SetHUDLevel) action() {}
func (SetCameraMode) action() {}
func (OpenAlbum) action() {}
func (CloseAlbum) action() {}
func (TriggerFlash) action() {}
func (ResetFlash) action() {}
func (unknownAction) action() {}

// DecodeAction parses a {"type": "...", ...} payload.
//
// Unknown types and bad field values are not errors: they decode to actions
// the reducer ignores. Only structurally broken JSON is rejected.
func DecodeAction(data []byte) (Action, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedAction)
	}

	var (
		act Action
		err error
	)
	switch envelope.Type {
	case TypeChangeLens:
		var a ChangeLens
		err = json.Unmarshal(data, &a)
		act = a
	case TypeSetExposure:
		var a SetExposure
		err = json.Unmarshal(data, &a)
		act = a
	case TypeAdjustExposure:
		var a AdjustExposure
		err = json.Unmarshal(data, &a)
		act = a
	case TypeSetHUDLevel:
		var a SetHUDLevel
		err = json.Unmarshal(data, &a)
		act = a
	case TypeSetCameraMode:
		var a SetCameraMode
		err = json.Unmarshal(data, &a)
		act = a
	case TypeOpenAlbum:
		act = OpenAlbum{}
	case TypeCloseAlbum:
		act = CloseAlbum{}
	case TypeTriggerFlash:
		var a TriggerFlash
		err = json.Unmarshal(data, &a)
		act = a
	case TypeResetFlash:
		act = ResetFlash{}
	default:
		return unknownAction{name: envelope.Type}, nil
	}
	if err != nil {
		// A field of the wrong JSON type is malformed input, not an invalid
		// enum value, so it is dropped like an unknown action.
		return unknownAction{name: envelope.Type}, nil
	}
	return act, nil
}
