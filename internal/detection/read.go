package detection

import (
	"image"
	"math"
	"strconv"

	"github.com/ironsheep/form-scanner/internal/imaging"
)

// NoID is the ID of a page on which no ID digit could be read.
const NoID int64 = -1

// Answer is the choice picked for one question: 0 for A, 1 for B and so on.
type Answer int

// Blank means no bubble of the question was marked.
const Blank Answer = -1

// String returns the answer letter, or "_" for a blank answer.
func (a Answer) String() string {
	if a < 0 || a >= 26 {
		return "_"
	}
	return string(rune('A' + a))
}

// sheet holds what a page's anchor boxes say about its grid.
type sheet struct {
	g       *imaging.Grid
	b       *Blobs
	p       Params
	layout  Layout
	estDiag int

	left   []imaging.Point
	bottom []imaging.Point

	// yFirst and yLast are the centers of the "0" and "9" row boxes.
	yFirst, yLast float64
	pitch         float64
	scale         float64
	xBase         float64

	black float64
}

func newSheet(g *imaging.Grid, b *Blobs, p Params, layout Layout, estDiag int, left, bottom []imaging.Point) *sheet {
	s := &sheet{g: g, b: b, p: p, layout: layout, estDiag: estDiag, left: left, bottom: bottom}

	ids := left[layout.IDRowStart : layout.IDRowStart+IDRows]
	s.yFirst = float64(ids[0].Y)
	s.yLast = float64(ids[IDRows-1].Y)
	s.pitch = (s.yLast - s.yFirst) / (IDRows - 1)
	s.scale = (s.yLast - s.yFirst) / layout.IDHeight

	for _, pt := range ids {
		s.xBase += float64(pt.X)
	}
	s.xBase /= IDRows
	return s
}

func rect(x0, y0, x1, y1 float64) image.Rectangle {
	return image.Rect(int(math.Floor(x0)), int(math.Floor(y0)), int(math.Ceil(x1)), int(math.Ceil(y1)))
}

// slot maps a coordinate to the nearest of n evenly spaced positions
// starting at origin.
func slot(v, origin, step float64, n int) int {
	i := int(math.Floor((v-origin)/step + 0.5))
	return min(max(i, 0), n-1)
}

// idColumns returns the bubble candidates of every ID column.
func (s *sheet) idColumns() [][]Bubble {
	jump := s.layout.BubbleJump * s.scale
	cols := make([][]Bubble, s.layout.IDColumns)
	for c := range cols {
		x := s.xBase + (s.layout.FirstJump+float64(c)*s.layout.BubbleJump)*s.scale
		win := rect(x-jump/2, s.yFirst-s.pitch/2, x+jump/2, s.yLast+s.pitch/2)
		cols[c] = FindBubbles(s.g, s.b, win, s.estDiag, s.p)
	}
	return cols
}

// calibrate sets the page's black level from all ID bubbles.
func (s *sheet) calibrate(cols [][]Bubble) {
	var samples []float64
	for _, col := range cols {
		for _, c := range col {
			samples = append(samples, c.Blackness)
		}
	}
	s.black = math.Max(FindBlack(samples, s.p.DefaultBubbleBlack, s.p.MinBlackGap), s.p.MinBubbleBlack)
}

// readID decodes the ID digits column by column. Columns without a marked
// bubble are skipped.
func (s *sheet) readID(cols [][]Bubble) int64 {
	digits := ""
	for _, col := range cols {
		s.markCandidates(col)
		best, ok := Choose(col, s.black, s.p.BlackStep, s.p.LastExceedingWins)
		if !ok {
			continue
		}
		s.g.Mark(best.Center, imaging.MarkChosen)
		d := slot(float64(best.Center.Y), s.yFirst, s.pitch, IDRows)
		digits += strconv.Itoa(d)
	}
	if digits == "" {
		return NoID
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return NoID
	}
	return id
}

// readAnswers decodes every question, block by block.
func (s *sheet) readAnswers() []Answer {
	l := s.layout
	jump := l.BubbleJump * s.scale
	answers := make([]Answer, 0, l.Questions())

	for k := 0; k < l.BottomBoxes; k++ {
		x0 := float64(s.bottom[k].X) + l.AnswerJump*s.scale
		for r := 0; r < l.AnswerRows; r++ {
			y := float64(s.left[l.AnswerRowStart+r].Y)
			win := rect(x0-jump/2, y-s.pitch/2, x0+float64(l.Choices-1)*jump+jump/2, y+s.pitch/2)

			cands := FindBubbles(s.g, s.b, win, s.estDiag, s.p)
			s.markCandidates(cands)
			best, ok := Choose(cands, s.black, s.p.BlackStep, s.p.LastExceedingWins)
			if !ok {
				answers = append(answers, Blank)
				continue
			}
			s.g.Mark(best.Center, imaging.MarkChosen)
			answers = append(answers, Answer(slot(float64(best.Center.X), x0, jump, l.Choices)))
		}
	}
	return answers
}

func (s *sheet) markCandidates(cands []Bubble) {
	for _, c := range cands {
		s.g.Mark(c.Center, imaging.MarkCandidate)
	}
}
