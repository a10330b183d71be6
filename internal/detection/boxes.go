package detection

import (
	"image"
	"math"
	"sort"

	"github.com/ironsheep/form-scanner/internal/imaging"
)

// extent is the axis-aligned reach of a blob around a point, found by
// walking outward instead of tracing.
type extent struct {
	left, right, top, bottom int
}

func (e extent) width() int  { return e.right - e.left + 1 }
func (e extent) height() int { return e.bottom - e.top + 1 }

func (e extent) center() imaging.Point {
	return imaging.Point{X: (e.left + e.right) / 2, Y: (e.top + e.bottom) / 2}
}

func (e extent) diagonal() float64 {
	return math.Hypot(float64(e.width()), float64(e.height()))
}

// walk moves from p in direction d and returns the last black point seen
// before gap consecutive white pixels, taking at most limit steps.
func walk(g *imaging.Grid, p, d imaging.Point, gap, limit int) imaging.Point {
	last := p
	white := 0
	for i := 0; i < limit && white < gap; i++ {
		p = p.Add(d)
		if !g.In(p) {
			break
		}
		if g.Black(p) {
			last = p
			white = 0
		} else {
			white++
		}
	}
	return last
}

// measureExtent finds the reach of the blob at p in all four directions,
// re-centering on each axis before measuring the other one.
func measureExtent(g *imaging.Grid, p imaging.Point, params Params) extent {
	limit := params.MaxDiag * 2
	gap := max(params.ScanGap, 1)
	var e extent
	c := p
	for pass := 0; pass < 2; pass++ {
		e.top = walk(g, c, imaging.Point{Y: -1}, gap, limit).Y
		e.bottom = walk(g, c, imaging.Point{Y: 1}, gap, limit).Y
		c.Y = (e.top + e.bottom) / 2
		if !g.Black(c) {
			c.Y = p.Y
		}
		e.left = walk(g, c, imaging.Point{X: -1}, gap, limit).X
		e.right = walk(g, c, imaging.Point{X: 1}, gap, limit).X
		c.X = (e.left + e.right) / 2
		if !g.Black(c) {
			c.X = p.X
		}
	}
	return e
}

// looksLikeBox is the cheap test run before tracing a candidate.
func looksLikeBox(g *imaging.Grid, e extent, est *Estimate, p Params) bool {
	w, h := float64(e.width()), float64(e.height())
	if ew := est.Width(); ew > 0 {
		slack := float64(p.DiagError)
		if math.Abs(w-ew) > slack || math.Abs(h-ew/p.Aspect) > slack {
			return false
		}
	} else {
		// Extents of a skewed box run a little larger than its sides.
		if math.Abs(h-w/p.Aspect) > 2*p.HeightError {
			return false
		}
		d := e.diagonal()
		if d < float64(p.MinDiag) || d > float64(p.MaxDiag)+2*p.MaxError {
			return false
		}
	}
	return g.Blackness(e.center(), h*0.4) >= p.MinBlack
}

// isDecent reports whether a blob is big enough to hide anything behind it
// on the same diagonal.
func isDecent(e extent, p Params) bool {
	return e.diagonal() >= float64(p.MinDiag)/2
}

// FindBoxes locates the anchor boxes of a page and returns them sorted top
// to bottom, then left to right.
//
// Anti-diagonals (x+y constant) are walked from their bottom-left end.
// Those entering from the left edge meet the left column of boxes first;
// those entering from the bottom edge meet the bottom row first. The first
// sizeable blob on a diagonal ends it. When fewer than expected boxes turn
// up, every blob starting in the left or bottom margin is checked as well.
func FindBoxes(g *imaging.Grid, b *Blobs, est *Estimate, p Params, expected int) []Box {
	f := &boxFinder{g: g, b: b, est: est, p: p, judged: make(map[int]bool)}

	w, h := g.Width(), g.Height()
	for z := 0; z < w+h-1; z++ {
		x := max(0, z-(h-1))
		for y := z - x; x < w && y >= 0; x, y = x+1, y-1 {
			pt := imaging.Point{X: x, Y: y}
			if !g.Black(pt) {
				continue
			}
			if f.visit(pt) {
				break
			}
		}
	}

	if expected > 0 && len(f.found) < expected {
		margins := []image.Rectangle{
			image.Rect(0, 0, w/6, h),
			image.Rect(0, h*5/6, w, h),
		}
		for _, r := range margins {
			for _, pt := range b.StartIn(r) {
				f.check(b.At(pt), pt)
			}
		}
	}

	boxes := dedupe(f.found, p.MaxError*2)
	sort.Slice(boxes, func(i, j int) bool {
		return boxes[i].Midpoint.Less(boxes[j].Midpoint)
	})
	return boxes
}

type boxFinder struct {
	g      *imaging.Grid
	b      *Blobs
	est    *Estimate
	p      Params
	found  []Box
	judged map[int]bool // label -> blob blocks the diagonal
}

// visit looks at a black pixel on a diagonal and reports whether the rest
// of the diagonal can be skipped.
func (f *boxFinder) visit(pt imaging.Point) bool {
	label := f.b.At(pt)
	if blocks, ok := f.judged[label]; ok {
		return blocks
	}

	e := measureExtent(f.g, pt, f.p)
	blocks := isDecent(e, f.p)
	f.judged[label] = blocks

	if looksLikeBox(f.g, e, f.est, f.p) {
		reg, ok := f.b.Region(label)
		if ok && f.check(label, reg.First) {
			return true
		}
	}
	return blocks
}

// check validates the blob starting at first, once per label.
func (f *boxFinder) check(label int, first imaging.Point) bool {
	for _, b := range f.found {
		if b.Label == label {
			return true
		}
	}
	box := MeasureBox(f.g, f.b, first, f.p)
	if !box.Validate(f.g, f.est, f.p) {
		return false
	}
	f.found = append(f.found, box)
	return true
}

// dedupe drops boxes whose midpoint lies within tol of an earlier one.
func dedupe(boxes []Box, tol float64) []Box {
	var out []Box
next:
	for _, b := range boxes {
		for _, o := range out {
			if imaging.Distance(b.Midpoint, o.Midpoint) <= tol {
				continue next
			}
		}
		out = append(out, b)
	}
	return out
}

// Midpoints returns the midpoints of boxes.
func Midpoints(boxes []Box) []imaging.Point {
	out := make([]imaging.Point, len(boxes))
	for i, b := range boxes {
		out[i] = b.Midpoint
	}
	return out
}
