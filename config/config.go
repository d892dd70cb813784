package config

import (
	"image/color"

	"github.com/yohamta/donburi/ecs"
)

// Config holds window-level settings.
type Config struct {
	Width  int
	Height int
	Title  string

	// Pixels per world unit. The arena is sim.MapSize units wide and larger
	// than the screen; the camera follows the local player.
	Scale float64
}

// ArenaConfig contains drawing values for the play field
type ArenaConfig struct {
	Outside    color.RGBA // beyond the arena edge
	Background color.RGBA
	Grid       color.RGBA
	Border     color.RGBA
	GridStep   int // world units between grid lines
}

// PlayerColorsConfig assigns one color per player handle
type PlayerColorsConfig struct {
	Colors []color.RGBA
	Local  color.RGBA // outline drawn around locally controlled players
	Dead   color.RGBA
}

// CameraConfig tunes how the view follows the local player
type CameraConfig struct {
	FollowSmoothing float64 // fraction of the distance closed per tick
}

// Render layers
const (
	LayerDefault ecs.LayerID = iota
	LayerHUD
)

// Shared RGBA color constants
var (
	Black       = color.RGBA{A: 255}
	White       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow      = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	Orange      = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	Red         = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	BrightGreen = color.RGBA{R: 0, G: 255, B: 60, A: 255}
	LightGreen  = color.RGBA{R: 100, G: 255, B: 100, A: 255}
	Blue        = color.RGBA{R: 0, G: 100, B: 255, A: 255}
	Purple      = color.RGBA{R: 128, G: 0, B: 255, A: 255}
	LightRed    = color.RGBA{R: 255, G: 60, B: 60, A: 255}
	Magenta     = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	LightBlue   = color.RGBA{R: 100, G: 180, B: 255, A: 255}
	DarkGray    = color.RGBA{R: 40, G: 40, B: 48, A: 255}
	Gray        = color.RGBA{R: 70, G: 70, B: 80, A: 255}
)

var (
	C            *Config
	Arena        ArenaConfig
	Camera       CameraConfig
	PlayerColors PlayerColorsConfig
)

func init() {
	C = &Config{
		Width:  656,
		Height: 656,
		Title:  "blockshot",
		Scale:  32,
	}

	Arena = ArenaConfig{
		Outside:    Black,
		Background: DarkGray,
		Grid:       Gray,
		Border:     LightBlue,
		GridStep:   4,
	}

	Camera = CameraConfig{
		FollowSmoothing: 0.2,
	}

	PlayerColors = PlayerColorsConfig{
		Colors: []color.RGBA{LightRed, Blue, Yellow, Purple, Orange, Magenta, LightGreen, White},
		Local:  BrightGreen,
		Dead:   Gray,
	}
}
