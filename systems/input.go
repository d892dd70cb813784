package systems

import (
	cfg "github.com/automoto/blockshot/config"
	"github.com/automoto/blockshot/input"
	"github.com/hajimehoshi/ebiten/v2"
)

// KeyboardDevice reads one zone of the keyboard.
type KeyboardDevice struct {
	Zone cfg.KeyboardZone
}

func (d KeyboardDevice) Pressed(a input.Action) bool {
	return anyKeyPressed(cfg.Input.Keys(d.Zone, a))
}

// GamepadDevice reads a standard-layout gamepad, d-pad or left stick.
type GamepadDevice struct {
	ID ebiten.GamepadID
}

func (d GamepadDevice) Pressed(a input.Action) bool {
	if !ebiten.IsStandardGamepadLayoutAvailable(d.ID) {
		return false
	}
	for _, btn := range cfg.Input.Bindings[a].StandardGamepadButtons {
		if ebiten.IsStandardGamepadButtonPressed(d.ID, btn) {
			return true
		}
	}

	deadzone := cfg.Input.AnalogDeadzone
	horizontal := ebiten.StandardGamepadAxisValue(d.ID, ebiten.StandardGamepadAxisLeftStickHorizontal)
	vertical := ebiten.StandardGamepadAxisValue(d.ID, ebiten.StandardGamepadAxisLeftStickVertical)
	switch a {
	case input.ActionLeft:
		return horizontal < -deadzone
	case input.ActionRight:
		return horizontal > deadzone
	case input.ActionUp:
		return vertical < -deadzone
	case input.ActionDown:
		return vertical > deadzone
	}
	return false
}

// anyDevice reports an action held on any of its devices.
type anyDevice []input.Device

func (ds anyDevice) Pressed(a input.Action) bool {
	for _, d := range ds {
		if d.Pressed(a) {
			return true
		}
	}
	return false
}

// NewInputCollector binds devices to the local handles. A single local
// player gets the whole keyboard plus every connected gamepad; players
// sharing a machine split the keyboard and take gamepads in order.
func NewInputCollector[H comparable](local []H) *input.Collector[H] {
	gamepads := ebiten.AppendGamepadIDs(nil)

	if len(local) <= 1 {
		devices := anyDevice{KeyboardDevice{Zone: cfg.KeyboardFull}}
		for _, id := range gamepads {
			devices = append(devices, GamepadDevice{ID: id})
		}
		return input.NewCollector[H](devices)
	}

	c := input.NewCollector[H](nil)
	zones := []cfg.KeyboardZone{cfg.KeyboardWASD, cfg.KeyboardArrows}
	for i, h := range local {
		switch {
		case i < len(zones):
			c.Bind(h, KeyboardDevice{Zone: zones[i]})
		case i-len(zones) < len(gamepads):
			c.Bind(h, GamepadDevice{ID: gamepads[i-len(zones)]})
		}
	}
	return c
}

func anyKeyPressed(keys []ebiten.Key) bool {
	for _, k := range keys {
		if ebiten.IsKeyPressed(k) {
			return true
		}
	}
	return false
}
