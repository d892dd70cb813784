package rollback

import "github.com/automoto/blockshot/input"

// inputRecord is one slot of an input queue.
type inputRecord struct {
	frame     Frame
	valid     bool
	symbol    input.Symbol
	confirmed bool

	// used is the symbol the simulation ran with, once the frame was simulated.
	used      input.Symbol
	simulated bool
}

// inputQueue is a ring buffer of the inputs of one player, indexed by frame
// modulo its size. Confirmed frames are always a contiguous prefix: every
// frame below next is confirmed.
type inputQueue struct {
	records []inputRecord
	mask    Frame
	next    Frame
	last    input.Symbol // symbol of frame next-1, neutral before the first
}

func newInputQueue(size int) *inputQueue {
	return &inputQueue{
		records: make([]inputRecord, size),
		mask:    Frame(size - 1),
		last:    input.Neutral,
	}
}

func (q *inputQueue) slot(f Frame) *inputRecord {
	return &q.records[f&q.mask]
}

// get returns the record of f if the ring still holds it.
func (q *inputQueue) get(f Frame) (inputRecord, bool) {
	r := q.slot(f)
	if !r.valid || r.frame != f {
		return inputRecord{}, false
	}
	return *r, true
}

// confirm stores the symbol of frame next and advances next. It reports
// whether the frame had been simulated with a different symbol.
func (q *inputQueue) confirm(s input.Symbol) (mismatch bool) {
	f := q.next
	r := q.slot(f)
	if r.valid && r.frame == f && r.simulated {
		mismatch = r.used != s
	} else {
		*r = inputRecord{frame: f, valid: true}
	}
	r.symbol = s
	r.confirmed = true
	q.next++
	q.last = s
	return mismatch
}

// resolve returns the input for f and records it as used: the confirmed
// symbol when known, the last confirmed symbol otherwise.
func (q *inputQueue) resolve(f Frame) PlayerInput {
	r := q.slot(f)
	if r.valid && r.frame == f && r.confirmed {
		r.used = r.symbol
		r.simulated = true
		return PlayerInput{Symbol: r.symbol, Status: Confirmed}
	}
	*r = inputRecord{frame: f, valid: true, used: q.last, simulated: true}
	return PlayerInput{Symbol: q.last, Status: Predicted}
}

// confirmedRange returns the confirmed symbols of [from, q.next) still held by
// the ring. The returned start may be later than from.
func (q *inputQueue) confirmedRange(from Frame) (Frame, []input.Symbol) {
	size := Frame(len(q.records))
	if q.next > size && from < q.next-size {
		from = q.next - size
	}
	var out []input.Symbol
	start := from
	for f := from; f < q.next; f++ {
		r, ok := q.get(f)
		if !ok || !r.confirmed {
			out = out[:0]
			start = f + 1
			continue
		}
		out = append(out, r.symbol)
	}
	return start, out
}

func ringSize(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
