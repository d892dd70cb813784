package systems

import (
	"github.com/automoto/blockshot/components"
	"github.com/automoto/blockshot/sim"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
	"github.com/yohamta/donburi/filter"
)

var (
	avatarQuery     = donburi.NewQuery(filter.Contains(components.Avatar))
	projectileQuery = donburi.NewQuery(filter.Contains(components.Projectile))
)

// NewMirrorSystem copies the simulation state into the ECS world each tick.
// The simulation may have been rolled back and replayed since the previous
// tick, so entities are rewritten wholesale rather than stepped.
func NewMirrorSystem(state func() *sim.State, local func(handle int) bool) func(*ecs.ECS) {
	return func(e *ecs.ECS) {
		st := state()
		if st == nil {
			return
		}
		syncAvatars(e.World, st, local)
		syncProjectiles(e.World, st)
	}
}

func syncAvatars(world donburi.World, st *sim.State, local func(int) bool) {
	avatars := make(map[int]*donburi.Entry)
	avatarQuery.Each(world, func(entry *donburi.Entry) {
		avatars[components.Avatar.Get(entry).Handle] = entry
	})

	for h, p := range st.Players {
		entry, ok := avatars[h]
		if !ok {
			entry = world.Entry(world.Create(components.Avatar))
		}
		components.Avatar.SetValue(entry, components.AvatarData{
			Handle: h,
			Local:  local != nil && local(h),
			Pos:    p.Pos,
			Dir:    p.Dir,
			Alive:  p.Alive,
			Ready:  p.Ready,
			Shots:  p.Shots,
		})
	}
}

// syncProjectiles reuses projectile entities in query order and removes the
// surplus; bullets carry no identity across a rollback.
func syncProjectiles(world donburi.World, st *sim.State) {
	var entries []*donburi.Entry
	projectileQuery.Each(world, func(entry *donburi.Entry) {
		entries = append(entries, entry)
	})

	for i, b := range st.Bullets {
		var entry *donburi.Entry
		if i < len(entries) {
			entry = entries[i]
		} else {
			entry = world.Entry(world.Create(components.Projectile))
		}
		components.Projectile.SetValue(entry, components.ProjectileData{
			Owner: int(b.Owner),
			Pos:   b.Pos,
		})
	}
	for _, entry := range entries[min(len(st.Bullets), len(entries)):] {
		world.Remove(entry.Entity())
	}
}
