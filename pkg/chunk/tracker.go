package chunk

import "math"

type frame struct {
	name  string
	typ   string
	depth int

	decisionStart int
	filePos       int
	min           int
	max           int

	optional bool
	evil     bool

	// checkStart is the decision position where the current run of checks
	// at this level began, or -1.
	checkStart   int
	checkFilePos int
	// lastExited indexes the chunk of the child that exited last, as long
	// as nothing else happened at this level since, or -1.
	lastExited int
}

func newFrame(name, typ string, depth, decisionPos, filePos int) frame {
	return frame{
		name:          name,
		typ:           typ,
		depth:         depth,
		decisionStart: decisionPos,
		filePos:       filePos,
		min:           math.MaxInt,
		max:           -1,
		checkStart:    -1,
		lastExited:    -1,
	}
}

// Tracker observes one pass and records its chunks and insertion points.
// It implements [codec.Observer].
//
// Call [Tracker.Reset] before reusing a Tracker for another pass.
type Tracker struct {
	stack  []frame
	chunks []Chunk
	points []InsertionPoint
	seen   map[int]bool

	fields int
	clean  int

	onExit func(Chunk)
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.Reset()

	return t
}

// Reset clears all recorded state.
func (t *Tracker) Reset() {
	t.stack = append(t.stack[:0], newFrame("file", "file", 0, 0, 0))
	t.chunks = nil
	t.points = nil
	t.seen = make(map[int]bool)
	t.fields = 0
	t.clean = 0
}

// OnExit installs fn to be called for every field as it exits, including
// fields that wrote nothing. FollowingOptional is not known yet at that
// point and is always false.
func (t *Tracker) OnExit(fn func(Chunk)) {
	t.onExit = fn
}

func (t *Tracker) top() *frame {
	return &t.stack[len(t.stack)-1]
}

// Enter implements [codec.Observer].
func (t *Tracker) Enter(name, typeName string, decisionPos, filePos int) {
	p := t.top()
	f := newFrame(name, typeName, p.depth+1, decisionPos, filePos)

	if p.checkStart >= 0 {
		f.optional = true
		f.decisionStart = p.checkStart

		t.point(InsertionPoint{
			FilePos:     filePos,
			DecisionPos: p.checkStart,
			Name:        name,
			Type:        typeName,
			Depth:       f.depth,
			Kind:        AtOptionalStart,
		})
	}

	p.checkStart = -1
	p.lastExited = -1

	t.stack = append(t.stack, f)
}

// Exit implements [codec.Observer].
func (t *Tracker) Exit(decisionPos, _ int) {
	if len(t.stack) < 2 {
		return
	}

	f := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	p := t.top()

	if f.checkStart >= 0 {
		t.point(InsertionPoint{
			FilePos:     f.checkFilePos,
			DecisionPos: f.checkStart,
			Name:        f.name,
			Type:        f.typ,
			Depth:       f.depth + 1,
			Kind:        AfterAppendable,
		})
	}

	ch := Chunk{
		Start:         f.min,
		End:           f.max,
		DecisionStart: f.decisionStart,
		DecisionEnd:   decisionPos,
		Name:          f.name,
		Type:          f.typ,
		Depth:         f.depth,
		Optional:      f.optional,
		Evil:          f.evil,
	}
	if f.max < 0 {
		ch.Start, ch.End = f.filePos, f.filePos-1
	}

	t.fields++
	if f.evil {
		p.evil = true
	} else {
		t.clean++
	}

	p.checkStart = -1
	p.lastExited = -1

	if t.onExit != nil {
		t.onExit(ch)
	}

	if !ch.Written() {
		return
	}

	p.min = min(p.min, ch.Start)
	p.max = max(p.max, ch.End)

	t.chunks = append(t.chunks, ch)
	p.lastExited = len(t.chunks) - 1
}

// Write implements [codec.Observer].
func (t *Tracker) Write(start, end int) {
	f := t.top()
	f.min = min(f.min, start)
	f.max = max(f.max, end)
	f.checkStart = -1
	f.lastExited = -1
}

// Check implements [codec.Observer].
func (t *Tracker) Check(decisionPos, filePos int) {
	f := t.top()

	if f.lastExited >= 0 {
		prev := &t.chunks[f.lastExited]
		prev.FollowingOptional = true

		t.point(InsertionPoint{
			FilePos:     filePos,
			DecisionPos: decisionPos,
			Name:        prev.Name,
			Type:        prev.Type,
			Depth:       prev.Depth,
			Kind:        AfterAppendable,
		})

		f.lastExited = -1
	}

	if f.checkStart < 0 {
		f.checkStart = decisionPos
		f.checkFilePos = filePos
	}
}

// Evil implements [codec.Observer].
func (t *Tracker) Evil() {
	t.top().evil = true
}

func (t *Tracker) point(p InsertionPoint) {
	if t.seen[p.DecisionPos] {
		return
	}

	t.seen[p.DecisionPos] = true
	t.points = append(t.points, p)
}

// Chunks returns the chunks recorded so far, in exit order.
func (t *Tracker) Chunks() []Chunk {
	return append([]Chunk(nil), t.chunks...)
}

// InsertionPoints returns the insertion points recorded so far. A file
// whose last top-level event is a check gets a point at its end.
func (t *Tracker) InsertionPoints() []InsertionPoint {
	points := append([]InsertionPoint(nil), t.points...)

	root := t.stack[0]
	if len(t.stack) == 1 && root.checkStart >= 0 && !t.seen[root.checkStart] {
		points = append(points, InsertionPoint{
			FilePos:     root.checkFilePos,
			DecisionPos: root.checkStart,
			Name:        root.name,
			Type:        root.typ,
			Depth:       1,
			Kind:        AfterAppendable,
		})
	}

	return points
}

// Validity returns the fraction of fields that decoded without an evil or
// fallback decision. Fields still open count as failed. A pass without
// fields is fully valid.
func (t *Tracker) Validity() float64 {
	total := t.fields + len(t.stack) - 1
	if total == 0 {
		return 1
	}

	return float64(t.clean) / float64(total)
}

// Commit adds the recorded chunks and insertion points to tb as a new file
// and returns its index.
func (t *Tracker) Commit(tb *Table) int {
	return tb.Add(t.chunks, t.InsertionPoints())
}
