package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type heldKeys map[Action]bool

func (h heldKeys) Pressed(a Action) bool { return h[a] }

func TestCollectOneEntryPerHandle(t *testing.T) {
	c := NewCollector[uint8](heldKeys{ActionUp: true, ActionFire: true})

	got := c.Collect([]uint8{0, 2})

	assert.Len(t, got, 2)
	assert.Equal(t, Up|Fire, got[0])
	assert.Equal(t, Up|Fire, got[2])
}

func TestCollectNeutralWhenIdle(t *testing.T) {
	c := NewCollector[int](heldKeys{})

	got := c.Collect([]int{1})

	assert.Equal(t, map[int]Symbol{1: Neutral}, got)
}

func TestCollectNilDeviceIsNeutral(t *testing.T) {
	c := NewCollector[int](nil)

	assert.Equal(t, Neutral, c.Collect([]int{0})[0])
}

func TestCollectBoundDevice(t *testing.T) {
	c := NewCollector[int](heldKeys{ActionLeft: true})
	c.Bind(1, DeviceFunc(func(a Action) bool { return a == ActionRight }))

	got := c.Collect([]int{0, 1})

	assert.Equal(t, Left, got[0])
	assert.Equal(t, Right, got[1])
}

func TestCollectNoHandles(t *testing.T) {
	c := NewCollector[int](heldKeys{ActionFire: true})

	assert.Empty(t, c.Collect(nil))
}
