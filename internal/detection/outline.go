package detection

import "github.com/ironsheep/form-scanner/internal/imaging"

// Outline is the ordered boundary of one blob. Points is only meaningful
// when OK is true; an outline that did not close must be discarded.
type Outline struct {
	Label  int
	Points []imaging.Point
	OK     bool
}

// moore lists the 8 neighbor offsets clockwise, starting at up-left.
var moore = [8]imaging.Point{
	{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 0},
	{X: 1, Y: 1}, {X: 0, Y: 1}, {X: -1, Y: 1}, {X: -1, Y: 0},
}

// minClosed is the shortest path that may close. Returning to the start
// any sooner means the walk only went down a one-pixel spur and back.
const minClosed = 3

type tracer struct {
	blobs   *Blobs
	label   int
	path    []imaging.Point
	visited map[imaging.Point]struct{}
}

// Trace walks the boundary of the blob containing seed. The seed must be
// the blob's topmost pixel in its column (for instance Region.First), so the
// pixel above it is background. The walk gives up once the outline grows
// past limit points.
func Trace(b *Blobs, seed imaging.Point, limit int) Outline {
	label := b.At(seed)
	if label == Background {
		return Outline{}
	}

	t := &tracer{
		blobs:   b,
		label:   label,
		visited: make(map[imaging.Point]struct{}),
	}

	pos := seed.Add(imaging.Point{X: 0, Y: -1})
	for len(t.path) <= limit {
		next, ok := t.step(pos)
		// Stuck: back up to the newest point with an open step and drop
		// the dead end after it. Dropped points stay visited.
		for back := len(t.path) - 2; !ok && back >= 0; back-- {
			if next, ok = t.step(t.path[back]); ok {
				t.path = t.path[:back+1]
			}
		}
		if !ok {
			return Outline{Label: label, Points: t.path}
		}
		if len(t.path) >= minClosed && next == t.path[0] {
			return Outline{Label: label, Points: t.path, OK: true}
		}

		t.path = append(t.path, next)
		t.visited[next] = struct{}{}
		pos = next
	}
	return Outline{Label: label, Points: t.path}
}

// step returns the first neighbor of p that belongs to the blob, follows a
// non-blob neighbor in clockwise order and has not been walked yet. Once
// the path is long enough, its start stays available so the walk can close.
func (t *tracer) step(p imaging.Point) (imaging.Point, bool) {
	for i, d := range moore {
		cur := p.Add(d)
		if t.blobs.At(cur) != t.label {
			continue
		}
		if t.blobs.At(p.Add(moore[(i+7)%8])) == t.label {
			continue
		}
		if len(t.path) >= minClosed && cur == t.path[0] {
			return cur, true
		}
		if _, seen := t.visited[cur]; !seen {
			return cur, true
		}
	}
	return imaging.Point{}, false
}
