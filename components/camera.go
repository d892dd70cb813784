package components

import (
	"github.com/automoto/blockshot/input"
	"github.com/yohamta/donburi"
)

// CameraData is the world point drawn at the center of the screen.
type CameraData struct {
	Position input.Vec2
	Placed   bool // snapped to the first target, smoothing from then on
}

var Camera = donburi.NewComponentType[CameraData]()
