package detection

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/form-scanner/internal/imaging"
)

// Corners are the four extremal points of an outline.
type Corners struct {
	TopLeft     imaging.Point `json:"top_left"`
	TopRight    imaging.Point `json:"top_right"`
	BottomLeft  imaging.Point `json:"bottom_left"`
	BottomRight imaging.Point `json:"bottom_right"`
}

// FindCorners picks the corners of a quadrilateral outline on a page of the
// given size. The top-left and bottom-right corners are the points nearest
// to and farthest from a reference point up and to the left of the page;
// the top-right and bottom-left corners are found the same way from a
// reference up and to the right. Both references sit on the extensions of
// the page diagonals, far enough out that a slightly turned box yields its
// true corners whichever way it is turned.
func FindCorners(points []imaging.Point, width, height int) Corners {
	var c Corners
	if len(points) == 0 {
		return c
	}

	reach := width + height
	left := imaging.Point{X: -reach, Y: -reach}
	right := imaging.Point{X: width - 1 + reach, Y: -reach}
	minTL, maxTL := math.Inf(1), math.Inf(-1)
	minTR, maxTR := math.Inf(1), math.Inf(-1)

	for _, p := range points {
		if d := imaging.Distance(left, p); d < minTL {
			minTL, c.TopLeft = d, p
		}
		if d := imaging.Distance(left, p); d > maxTL {
			maxTL, c.BottomRight = d, p
		}
		if d := imaging.Distance(right, p); d < minTR {
			minTR, c.TopRight = d, p
		}
		if d := imaging.Distance(right, p); d > maxTR {
			maxTR, c.BottomLeft = d, p
		}
	}
	return c
}

// Box is the geometry derived from one outline.
type Box struct {
	Corners
	Label    int           `json:"label"`
	Width    float64       `json:"width"`
	Height   float64       `json:"height"`
	Aspect   float64       `json:"aspect"`
	Diagonal int           `json:"diagonal"`
	Midpoint imaging.Point `json:"midpoint"`
	Valid    bool          `json:"valid"`
	// Reason names the first failed check of an invalid box.
	Reason string `json:"reason,omitempty"`
}

// NewBox derives width, height, aspect, diagonal and midpoint from corners.
// The box is not validated.
func NewBox(c Corners) Box {
	b := Box{Corners: c}
	b.Width = imaging.Distance(c.TopLeft, c.TopRight)
	b.Height = imaging.Distance(c.TopLeft, c.BottomLeft)
	if b.Height > 0 {
		b.Aspect = b.Width / b.Height
	}
	b.Diagonal = int(math.Round(math.Hypot(b.Width, b.Height)))
	b.Midpoint = imaging.Point{
		X: (c.TopLeft.X + c.TopRight.X + c.BottomLeft.X + c.BottomRight.X) / 4,
		Y: (c.TopLeft.Y + c.TopRight.Y + c.BottomLeft.Y + c.BottomRight.Y) / 4,
	}
	return b
}

// MeasureBox traces the blob at seed and returns its box geometry. The seed
// must be the blob's first pixel. The result is not validated; Reason is set
// when no geometry could be derived.
func MeasureBox(g *imaging.Grid, b *Blobs, seed imaging.Point, p Params) Box {
	label := b.At(seed)
	if label == Background {
		return Box{Reason: "background seed"}
	}
	outline := Trace(b, seed, p.OutlineLimit)
	if !outline.OK {
		return Box{Label: label, Reason: "outline not closed"}
	}
	box := NewBox(FindCorners(outline.Points, g.Width(), g.Height()))
	box.Label = label
	return box
}

// Validate runs every shape and color check against the box and records
// the verdict in Valid. A nil estimate disables the diagonal estimate check.
// A valid box is fed back into the estimate.
func (b *Box) Validate(g *imaging.Grid, est *Estimate, p Params) bool {
	b.Valid = false
	if b.Reason != "" {
		return false
	}

	tl, tr, bl, br := b.TopLeft, b.TopRight, b.BottomLeft, b.BottomRight
	tol := p.MaxError

	switch {
	case math.Abs(b.Height-b.Width/p.Aspect) > p.HeightError:
		b.Reason = "aspect"
	case math.Abs(imaging.Distance(tl, br)-imaging.Distance(tr, bl)) > tol:
		b.Reason = "diagonals differ"
	case math.Abs(imaging.Distance(tl, bl)-imaging.Distance(tr, br)) > tol:
		b.Reason = "left and right sides differ"
	case math.Abs(imaging.Distance(tl, tr)-imaging.Distance(bl, br)) > tol:
		b.Reason = "top and bottom sides differ"
	case absInt((bl.X-tl.X)-(br.X-tr.X)) > tol || absInt((bl.Y-tl.Y)-(br.Y-tr.Y)) > tol:
		b.Reason = "left and right sides not parallel"
	case absInt((tr.X-tl.X)-(br.X-bl.X)) > tol || absInt((tr.Y-tl.Y)-(br.Y-bl.Y)) > tol:
		b.Reason = "top and bottom sides not parallel"
	case b.Diagonal < p.MinDiag:
		b.Reason = "too small"
	case b.Diagonal > p.MaxDiag:
		b.Reason = "too large"
	case est != nil && est.Diagonal() != 0 && absInt(b.Diagonal-est.Diagonal()) > float64(p.DiagError):
		b.Reason = "diagonal differs from page estimate"
	}
	if b.Reason != "" {
		return false
	}

	inside, outside := b.fill(g, p.OutsideMargin)
	if inside <= p.MinBlack {
		b.Reason = "not solid"
		return false
	}
	if outside >= p.MaxOutsideBlack {
		b.Reason = "no white margin"
		return false
	}

	b.Valid = true
	if est != nil {
		est.observe(b.Diagonal, b.Width, p)
	}
	return true
}

// fill returns the fraction of black pixels inside the box and in a band of
// the given width around it.
func (b *Box) fill(g *imaging.Grid, margin float64) (inside, outside float64) {
	q := newQuad(b.Corners)
	wide := q.expand(margin)

	var in, inBlack, band, bandBlack int
	r := wide.bounds().Intersect(g.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			fx, fy := float64(x), float64(y)
			black := g.Black(imaging.Point{X: x, Y: y})
			switch {
			case q.contains(fx, fy):
				in++
				if black {
					inBlack++
				}
			case wide.contains(fx, fy):
				band++
				if black {
					bandBlack++
				}
			}
		}
	}
	if in > 0 {
		inside = float64(inBlack) / float64(in)
	}
	if band > 0 {
		outside = float64(bandBlack) / float64(band)
	}
	return inside, outside
}

type fpoint struct{ x, y float64 }

// quad holds corners clockwise on screen: top-left, top-right,
// bottom-right, bottom-left.
type quad [4]fpoint

func newQuad(c Corners) quad {
	f := func(p imaging.Point) fpoint { return fpoint{float64(p.X), float64(p.Y)} }
	return quad{f(c.TopLeft), f(c.TopRight), f(c.BottomRight), f(c.BottomLeft)}
}

// contains tests (x, y) against the four edge lines. Points on an edge count
// as inside.
func (q quad) contains(x, y float64) bool {
	for i := range q {
		a, b := q[i], q[(i+1)%4]
		if (b.x-a.x)*(y-a.y)-(b.y-a.y)*(x-a.x) < 0 {
			return false
		}
	}
	return true
}

// expand moves every corner m pixels away from the center along both axes,
// so each edge moves out by about m.
func (q quad) expand(m float64) quad {
	var cx, cy float64
	for _, p := range q {
		cx += p.x / 4
		cy += p.y / 4
	}
	var out quad
	for i, p := range q {
		out[i] = fpoint{p.x + math.Copysign(m, p.x-cx), p.y + math.Copysign(m, p.y-cy)}
	}
	return out
}

func (q quad) bounds() image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range q {
		minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
		minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1)
}

func absInt(v int) float64 {
	return math.Abs(float64(v))
}

// Estimate is the running estimate of a page's box size. The first
// DiagCount valid boxes set it; after that every box must match it.
type Estimate struct {
	diag   int
	width  float64
	recent []int
	widths []float64
}

// Diagonal returns the estimated box diagonal, or 0 while unknown.
func (e *Estimate) Diagonal() int {
	if e == nil {
		return 0
	}
	return e.diag
}

// Width returns the estimated box width, or 0 while unknown.
func (e *Estimate) Width() float64 {
	if e == nil {
		return 0
	}
	return e.width
}

func (e *Estimate) observe(diag int, width float64, p Params) {
	if e.diag != 0 && !p.RefineEstimate {
		return
	}
	e.recent = append(e.recent, diag)
	e.widths = append(e.widths, width)
	if len(e.recent) < p.DiagCount {
		return
	}

	lo, hi := e.recent[0], e.recent[0]
	for _, d := range e.recent {
		lo, hi = min(lo, d), max(hi, d)
	}
	if hi-lo > p.DiagError {
		// An early false positive: start over with the boxes to come.
		if e.diag == 0 {
			e.recent, e.widths = e.recent[:0], e.widths[:0]
		} else {
			e.recent, e.widths = e.recent[1:], e.widths[1:]
		}
		return
	}

	e.diag = int(math.Round(median(intsToFloats(e.recent))))
	e.width = median(e.widths)
	if p.RefineEstimate {
		e.recent, e.widths = e.recent[1:], e.widths[1:]
	}
}

func intsToFloats(v []int) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// median returns the middle value of v without modifying it.
func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return stat.Quantile(0.5, stat.Empirical, s, nil)
}
