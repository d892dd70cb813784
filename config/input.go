package config

import (
	"github.com/automoto/blockshot/input"
	"github.com/hajimehoshi/ebiten/v2"
)

// InputBinding represents a single key or button binding for an action
type InputBinding struct {
	Keys                   []ebiten.Key
	StandardGamepadButtons []ebiten.StandardGamepadButton
}

// KeyboardZone splits the keyboard between players sharing a machine.
type KeyboardZone int

const (
	KeyboardFull   KeyboardZone = iota // arrows and WASD, Space or Enter fires
	KeyboardWASD                       // WASD, Space fires
	KeyboardArrows                     // arrows, Enter fires
)

// InputConfig holds all input mappings
type InputConfig struct {
	Bindings map[input.Action]InputBinding
	Zones    map[KeyboardZone]map[input.Action][]ebiten.Key
	// Deadzone for analog stick input (0.0 to 1.0)
	AnalogDeadzone float64
}

// Input is the global input configuration
var Input InputConfig

func init() {
	Input = InputConfig{
		AnalogDeadzone: 0.25,
		Bindings: map[input.Action]InputBinding{
			input.ActionUp: {
				Keys:                   []ebiten.Key{ebiten.KeyUp, ebiten.KeyW},
				StandardGamepadButtons: []ebiten.StandardGamepadButton{ebiten.StandardGamepadButtonLeftTop},
			},
			input.ActionDown: {
				Keys:                   []ebiten.Key{ebiten.KeyDown, ebiten.KeyS},
				StandardGamepadButtons: []ebiten.StandardGamepadButton{ebiten.StandardGamepadButtonLeftBottom},
			},
			input.ActionLeft: {
				Keys:                   []ebiten.Key{ebiten.KeyLeft, ebiten.KeyA},
				StandardGamepadButtons: []ebiten.StandardGamepadButton{ebiten.StandardGamepadButtonLeftLeft},
			},
			input.ActionRight: {
				Keys:                   []ebiten.Key{ebiten.KeyRight, ebiten.KeyD},
				StandardGamepadButtons: []ebiten.StandardGamepadButton{ebiten.StandardGamepadButtonLeftRight},
			},
			input.ActionFire: {
				Keys: []ebiten.Key{ebiten.KeySpace, ebiten.KeyEnter},
				// A / Cross button
				StandardGamepadButtons: []ebiten.StandardGamepadButton{
					ebiten.StandardGamepadButtonRightBottom,
					ebiten.StandardGamepadButtonFrontBottomRight,
				},
			},
		},
		Zones: map[KeyboardZone]map[input.Action][]ebiten.Key{
			KeyboardWASD: {
				input.ActionUp:    {ebiten.KeyW},
				input.ActionDown:  {ebiten.KeyS},
				input.ActionLeft:  {ebiten.KeyA},
				input.ActionRight: {ebiten.KeyD},
				input.ActionFire:  {ebiten.KeySpace},
			},
			KeyboardArrows: {
				input.ActionUp:    {ebiten.KeyUp},
				input.ActionDown:  {ebiten.KeyDown},
				input.ActionLeft:  {ebiten.KeyLeft},
				input.ActionRight: {ebiten.KeyRight},
				input.ActionFire:  {ebiten.KeyEnter},
			},
		},
	}
}

// Keys returns the keyboard keys bound to action in zone.
func (c InputConfig) Keys(zone KeyboardZone, action input.Action) []ebiten.Key {
	if keys, ok := c.Zones[zone]; ok {
		return keys[action]
	}
	return c.Bindings[action].Keys
}
