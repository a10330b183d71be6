package detection

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/ironsheep/form-scanner/internal/imaging"
)

var (
	// ErrTooManyBoxes is returned when a page shows more anchor boxes than
	// the layout prints.
	ErrTooManyBoxes = errors.New("too many boxes detected")
	// ErrTooFewBoxes is returned when some anchor boxes were not found.
	ErrTooFewBoxes = errors.New("some boxes not detected")
	// ErrNoID is returned when the anchor boxes were found but no ID digit
	// was marked.
	ErrNoID = errors.New("could not determine ID")
)

// PageResult is what was read from one page.
type PageResult struct {
	ID      int64    `json:"id"`
	Answers []Answer `json:"answers,omitempty"`
	// Boxes are the anchor box midpoints after any rotation: the left
	// column top to bottom, then the bottom row left to right.
	Boxes []imaging.Point `json:"boxes"`
	// Rotation is the angle in radians the page was turned to straighten it.
	Rotation float64 `json:"rotation"`
	// Black is the page's bubble black level.
	Black float64 `json:"black"`
}

// Decoder reads pages printed with one layout.
type Decoder struct {
	Params Params
	Layout Layout
	Logger *slog.Logger
}

// NewDecoder returns a decoder for the standard form.
func NewDecoder() *Decoder {
	return &Decoder{Params: DefaultParams(), Layout: DefaultLayout()}
}

func (d *Decoder) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Decode reads the ID and answers of one page. The grid is rotated in place
// when the page is skewed, and debug marks are added to it.
//
// A page whose boxes were found but whose ID is blank returns the partial
// result together with ErrNoID.
func (d *Decoder) Decode(g *imaging.Grid) (PageResult, error) {
	return d.decode(g, d.logger())
}

// DecodeWith is Decode logging to log instead of the decoder's logger.
func (d *Decoder) DecodeWith(g *imaging.Grid, log *slog.Logger) (PageResult, error) {
	return d.decode(g, log)
}

func (d *Decoder) decode(g *imaging.Grid, log *slog.Logger) (PageResult, error) {
	res := PageResult{ID: NoID}
	p, l := d.Params, d.Layout
	if err := l.Validate(); err != nil {
		return res, err
	}

	b := Label(g)
	est := &Estimate{}
	boxes := FindBoxes(g, b, est, p, l.TotalBoxes())
	log.Debug("boxes located", "found", len(boxes), "want", l.TotalBoxes(), "blobs", b.Len())

	switch {
	case len(boxes) > l.TotalBoxes():
		return res, fmt.Errorf("%w: found %d, want %d", ErrTooManyBoxes, len(boxes), l.TotalBoxes())
	case len(boxes) < l.TotalBoxes():
		return res, fmt.Errorf("%w: found %d, want %d", ErrTooFewBoxes, len(boxes), l.TotalBoxes())
	}

	left, bottom := splitBoxes(Midpoints(boxes), l)

	estDiag := est.Diagonal()
	if estDiag == 0 {
		estDiag = medianDiagonal(boxes)
	}

	if !imaging.CheckAlignment(left, int(p.MaxError)).VerticallyAligned {
		skew := imaging.Skew(left)
		pivot := left[0]
		g.Rotate(-skew, pivot)
		for i := range left {
			left[i] = imaging.RotatePoint(left[i], pivot, -skew)
		}
		for i := range bottom {
			bottom[i] = imaging.RotatePoint(bottom[i], pivot, -skew)
		}
		sortByY(left)
		sortByX(bottom)
		b = Label(g)
		res.Rotation = -skew
		log.Debug("page straightened", "degrees", math.Round(-skew*180/math.Pi*100)/100)
	}

	res.Boxes = append(append([]imaging.Point{}, left...), bottom...)
	for _, pt := range res.Boxes {
		g.Mark(pt, imaging.MarkBox)
	}

	s := newSheet(g, b, p, l, estDiag, left, bottom)
	cols := s.idColumns()
	s.calibrate(cols)
	res.Black = s.black

	res.ID = s.readID(cols)
	if res.ID == NoID {
		return res, ErrNoID
	}
	res.Answers = s.readAnswers()
	log.Debug("page decoded", "id", res.ID, "black", s.black)
	return res, nil
}

// splitBoxes separates the left column from the bottom row. Boxes come in
// ordered by y, so the bottom row is the last BottomBoxes of them.
func splitBoxes(pts []imaging.Point, l Layout) (left, bottom []imaging.Point) {
	n := l.LeftBoxes()
	left = append([]imaging.Point{}, pts[:n]...)
	bottom = append([]imaging.Point{}, pts[n:]...)
	sortByY(left)
	sortByX(bottom)
	return left, bottom
}

func sortByY(pts []imaging.Point) {
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Y < pts[j].Y })
}

func sortByX(pts []imaging.Point) {
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
}

func medianDiagonal(boxes []Box) int {
	ds := make([]float64, len(boxes))
	for i, b := range boxes {
		ds[i] = float64(b.Diagonal)
	}
	return int(math.Round(median(ds)))
}
