package detection

import (
	"image"
	"log/slog"
	"sort"

	"github.com/ironsheep/form-scanner/internal/disjoint"
	"github.com/ironsheep/form-scanner/internal/imaging"
)

// Background is the label of white and unlabeled pixels.
const Background = 0

// Region records where a blob was seen during the raster scan.
type Region struct {
	Label int           `json:"label"`
	First imaging.Point `json:"first"`
	Last  imaging.Point `json:"last"`
	Area  int           `json:"area"`
}

// Blobs is the label grid of a page plus an index of its regions.
type Blobs struct {
	width  int
	height int
	labels []int

	// regions is ordered by First in raster order.
	regions []Region
	byLabel map[int]int

	// Unresolved counts pixels whose provisional label had no
	// representative in the second pass. It should always be zero.
	Unresolved int
}

// neighbors already visited by a raster scan: left, up-left, up, up-right.
var scanned = [4]imaging.Point{{X: -1, Y: 0}, {X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1}}

// Label groups the black pixels of g into 8-connected blobs.
func Label(g *imaging.Grid) *Blobs {
	w, h := g.Width(), g.Height()
	b := &Blobs{
		width:   w,
		height:  h,
		labels:  make([]int, w*h),
		byLabel: make(map[int]int),
	}

	set := disjoint.New(Background)
	next := Background + 1

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := imaging.Point{X: x, Y: y}
			if !g.Black(p) {
				continue
			}

			label := Background
			for _, d := range scanned {
				n := b.At(p.Add(d))
				if n == Background {
					continue
				}
				if label == Background {
					label = n
				} else if n != label {
					set.Join(label, n)
				}
			}

			if label == Background {
				label = next
				next++
				// label is never the sentinel, so Add cannot fail
				_ = set.Add(label)
			}
			b.labels[y*w+x] = label
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if b.labels[i] == Background {
				continue
			}
			root := set.Find(b.labels[i])
			if root == Background {
				b.Unresolved++
				b.labels[i] = Background
				continue
			}
			b.labels[i] = root

			p := imaging.Point{X: x, Y: y}
			if idx, ok := b.byLabel[root]; ok {
				b.regions[idx].Last = p
				b.regions[idx].Area++
			} else {
				b.byLabel[root] = len(b.regions)
				b.regions = append(b.regions, Region{Label: root, First: p, Last: p, Area: 1})
			}
		}
	}

	if b.Unresolved > 0 {
		slog.Warn("labeling left pixels unresolved", "pixels", b.Unresolved, "labels", set.Len())
	}
	return b
}

// Width returns the width of the labeled page.
func (b *Blobs) Width() int { return b.width }

// Height returns the height of the labeled page.
func (b *Blobs) Height() int { return b.height }

// At returns the label at p, or Background outside the page.
func (b *Blobs) At(p imaging.Point) int {
	if p.X < 0 || p.Y < 0 || p.X >= b.width || p.Y >= b.height {
		return Background
	}
	return b.labels[p.Y*b.width+p.X]
}

// Len returns the number of blobs.
func (b *Blobs) Len() int {
	return len(b.regions)
}

// Region returns the index entry for label.
func (b *Blobs) Region(label int) (Region, bool) {
	idx, ok := b.byLabel[label]
	if !ok {
		return Region{}, false
	}
	return b.regions[idx], true
}

// Regions returns all blobs in raster order of their first pixel.
func (b *Blobs) Regions() []Region {
	out := make([]Region, len(b.regions))
	copy(out, b.regions)
	return out
}

// In returns one point for every blob touching r: the first pixel of that
// blob met while scanning r row by row.
func (b *Blobs) In(r image.Rectangle) []imaging.Point {
	r = r.Intersect(image.Rect(0, 0, b.width, b.height))
	seen := make(map[int]bool)
	var out []imaging.Point

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			l := b.labels[y*b.width+x]
			if l == Background || seen[l] {
				continue
			}
			seen[l] = true
			out = append(out, imaging.Point{X: x, Y: y})
		}
	}
	return out
}

// StartIn returns the first pixel of every blob whose first pixel on the
// whole page lies inside r.
func (b *Blobs) StartIn(r image.Rectangle) []imaging.Point {
	start := sort.Search(len(b.regions), func(i int) bool {
		return b.regions[i].First.Y >= r.Min.Y
	})

	var out []imaging.Point
	for _, reg := range b.regions[start:] {
		if reg.First.Y >= r.Max.Y {
			break
		}
		if reg.First.X >= r.Min.X && reg.First.X < r.Max.X {
			out = append(out, reg.First)
		}
	}
	return out
}
