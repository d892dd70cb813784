package input

// Action is a logical control a Device can report.
type Action int

const (
	ActionUp Action = iota
	ActionDown
	ActionLeft
	ActionRight
	ActionFire
	ActionCount // Must be last - used for array sizing
)

// Device reports whether an action is currently held. Implementations only
// read device state.
type Device interface {
	Pressed(Action) bool
}

// DeviceFunc adapts a function to Device.
type DeviceFunc func(Action) bool

func (f DeviceFunc) Pressed(a Action) bool { return f(a) }

// Sample reads the five controls of d into Buttons.
func Sample(d Device) Buttons {
	if d == nil {
		return Buttons{}
	}
	return Buttons{
		Up:    d.Pressed(ActionUp),
		Down:  d.Pressed(ActionDown),
		Left:  d.Pressed(ActionLeft),
		Right: d.Pressed(ActionRight),
		Fire:  d.Pressed(ActionFire),
	}
}

// Collector samples devices once per tick for every locally controlled
// player handle.
type Collector[H comparable] struct {
	fallback Device
	bound    map[H]Device
}

// NewCollector returns a collector that reads every handle from fallback
// unless a dedicated device has been bound with Bind.
func NewCollector[H comparable](fallback Device) *Collector[H] {
	return &Collector[H]{
		fallback: fallback,
		bound:    make(map[H]Device),
	}
}

// Bind routes a handle to its own device (split keyboard, gamepad).
func (c *Collector[H]) Bind(handle H, d Device) {
	c.bound[handle] = d
}

// Collect returns exactly one symbol per handle. Handles whose device reads
// nothing get Neutral.
func (c *Collector[H]) Collect(handles []H) map[H]Symbol {
	out := make(map[H]Symbol, len(handles))
	for _, h := range handles {
		d, ok := c.bound[h]
		if !ok {
			d = c.fallback
		}
		out[h] = Encode(Sample(d))
	}
	return out
}
