package rollback

// snapshot is the saved state at the start of frame, i.e. right after
// frame-1 executed.
type snapshot[S any] struct {
	frame       Frame
	valid       bool
	state       S
	checksum    uint64
	hasChecksum bool
}

// snapshotRing keeps the most recent snapshots, one per frame.
type snapshotRing[S any] struct {
	slots []snapshot[S]
}

func newSnapshotRing[S any](size int) *snapshotRing[S] {
	return &snapshotRing[S]{slots: make([]snapshot[S], size)}
}

func (r *snapshotRing[S]) save(f Frame, state S, checksum uint64, hasChecksum bool) {
	r.slots[int(f)%len(r.slots)] = snapshot[S]{
		frame:       f,
		valid:       true,
		state:       state,
		checksum:    checksum,
		hasChecksum: hasChecksum,
	}
}

func (r *snapshotRing[S]) get(f Frame) (snapshot[S], bool) {
	s := r.slots[int(f)%len(r.slots)]
	if !s.valid || s.frame != f {
		return snapshot[S]{}, false
	}
	return s, true
}

func (r *snapshotRing[S]) reset() {
	var zero snapshot[S]
	for i := range r.slots {
		r.slots[i] = zero
	}
}
