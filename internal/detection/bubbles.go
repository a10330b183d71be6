package detection

import (
	"image"
	"sort"

	"github.com/ironsheep/form-scanner/internal/imaging"
)

// Bubble is a printed answer circle found inside a search window.
type Bubble struct {
	Label     int           `json:"label"`
	Center    imaging.Point `json:"center"`
	Diameter  float64       `json:"diameter"`
	Radius    float64       `json:"radius"`
	Blackness float64       `json:"blackness"`
}

// FindBubbles returns the bubble-sized blobs whose center lies in window.
// A blob qualifies when its outline diameter is at least estDiag-DiagError
// and at most twice estDiag.
func FindBubbles(g *imaging.Grid, b *Blobs, window image.Rectangle, estDiag int, p Params) []Bubble {
	lo := float64(estDiag - p.DiagError)
	hi := float64(2 * estDiag)

	var out []Bubble
	for _, pt := range b.In(window) {
		reg, ok := b.Region(b.At(pt))
		if !ok {
			continue
		}
		outline := Trace(b, reg.First, p.OutlineLimit)
		if !outline.OK || len(outline.Points) < 2 {
			continue
		}

		a, c, diameter := farthestPair(outline.Points)
		if diameter < lo || diameter > hi {
			continue
		}
		center := imaging.Midpoint(a, c)
		if !image.Pt(center.X, center.Y).In(window) {
			continue
		}

		var sum float64
		for _, q := range outline.Points {
			sum += imaging.Distance(center, q)
		}
		radius := sum / float64(len(outline.Points))

		out = append(out, Bubble{
			Label:     reg.Label,
			Center:    center,
			Diameter:  diameter,
			Radius:    radius,
			Blackness: g.Blackness(center, radius),
		})
	}
	return out
}

// farthestPair approximates the two most distant outline points with two
// farthest-point passes.
func farthestPair(points []imaging.Point) (a, b imaging.Point, d float64) {
	a = farthestFrom(points[0], points)
	b = farthestFrom(a, points)
	return a, b, imaging.Distance(a, b)
}

func farthestFrom(from imaging.Point, points []imaging.Point) imaging.Point {
	best, bestD := from, -1.0
	for _, p := range points {
		if d := imaging.Distance(from, p); d > bestD {
			best, bestD = p, d
		}
	}
	return best
}

// Choose picks the marked bubble among candidates.
//
// The threshold starts at start and rises by step while more than one
// candidate is darker than it. The winner comes from the last pass that
// had any candidate above the threshold: the darkest one, or with lastWins
// the last one in candidate order. It reports false when no candidate ever
// exceeds start.
func Choose(cands []Bubble, start, step float64, lastWins bool) (Bubble, bool) {
	var winner Bubble
	found := false

	for threshold := start; threshold < 1; threshold += step {
		count := 0
		var pass Bubble
		for _, c := range cands {
			if c.Blackness <= threshold {
				continue
			}
			if count == 0 || lastWins || c.Blackness > pass.Blackness {
				pass = c
			}
			count++
		}
		if count == 0 {
			break
		}
		winner, found = pass, true
		if count == 1 || step <= 0 {
			break
		}
	}
	return winner, found
}

// FindBlack returns the black level separating unmarked from marked
// bubbles: the midpoint of the largest gap between sorted samples. The
// fallback is returned when there are fewer than two samples or the gap is
// narrower than minGap.
func FindBlack(samples []float64, fallback, minGap float64) float64 {
	if len(samples) < 2 {
		return fallback
	}
	s := append([]float64(nil), samples...)
	sort.Float64s(s)

	gap, at := 0.0, 0
	for i := 1; i < len(s); i++ {
		if d := s[i] - s[i-1]; d > gap {
			gap, at = d, i
		}
	}
	if gap == 0 || gap < minGap {
		return fallback
	}
	return (s[at-1] + s[at]) / 2
}
