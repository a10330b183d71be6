package detection

import "fmt"

// IDRows is the number of digit rows (0 through 9) in the ID block.
const IDRows = 10

// Params holds the tolerances used when judging boxes and bubbles.
type Params struct {
	// Aspect is the width/height ratio of a printed anchor box.
	Aspect float64 `json:"aspect"`
	// HeightError is the allowed difference between a box height and
	// width/Aspect, in pixels.
	HeightError float64 `json:"height_error"`
	// MaxError is the allowed difference for side lengths, diagonals and edge
	// slopes, and the column alignment tolerance, in pixels.
	MaxError float64 `json:"max_error"`
	// DiagError is the allowed distance from the page's estimated box
	// diagonal, in pixels.
	DiagError int `json:"diag_error"`
	// MinDiag and MaxDiag bound the diagonal of a box, in pixels.
	MinDiag int `json:"min_diag"`
	MaxDiag int `json:"max_diag"`
	// MinBlack is the minimum fraction of black pixels inside a box.
	MinBlack float64 `json:"min_black"`
	// MaxOutsideBlack is the maximum fraction of black pixels in the margin
	// band around a box.
	MaxOutsideBlack float64 `json:"max_outside_black"`
	// OutsideMargin is the width of that margin band, in pixels.
	OutsideMargin float64 `json:"outside_margin"`
	// DiagCount is how many valid boxes feed the diagonal estimate.
	DiagCount int `json:"diag_count"`
	// OutlineLimit caps the length of a traced outline.
	OutlineLimit int `json:"outline_limit"`
	// ScanGap is the run of white pixels that ends a cheap extent walk.
	ScanGap int `json:"scan_gap"`

	// DefaultBubbleBlack is used when the ID bubbles give no usable gap.
	DefaultBubbleBlack float64 `json:"default_bubble_black"`
	// MinBubbleBlack is the floor for the page's black level.
	MinBubbleBlack float64 `json:"min_bubble_black"`
	// MinBlackGap is the smallest gap between sorted samples that counts as
	// separating marked from unmarked bubbles.
	MinBlackGap float64 `json:"min_black_gap"`
	// BlackStep is the increment of the per-question adaptive threshold.
	BlackStep float64 `json:"black_step"`

	// RefineEstimate keeps updating the diagonal estimate from later boxes
	// instead of freezing it after the first DiagCount.
	RefineEstimate bool `json:"refine_estimate"`
	// LastExceedingWins picks the last bubble in scan order above the
	// threshold instead of the darkest one.
	LastExceedingWins bool `json:"last_exceeding_wins"`
}

// DefaultParams returns the tolerances for the standard form.
func DefaultParams() Params {
	return Params{
		Aspect:             2.722,
		HeightError:        5,
		MaxError:           5,
		DiagError:          15,
		MinDiag:            40,
		MaxDiag:            150,
		MinBlack:           0.9,
		MaxOutsideBlack:    0.25,
		OutsideMargin:      3,
		DiagCount:          5,
		OutlineLimit:       600,
		ScanGap:            3,
		DefaultBubbleBlack: 0.5,
		MinBubbleBlack:     0.3,
		MinBlackGap:        0.1,
		BlackStep:          0.05,
	}
}

// Layout describes where things are printed on the form, in units relative
// to IDHeight, the distance between the first and last ID row boxes.
//
// The left margin holds a column of anchor boxes: a top box, one box per ID
// digit row and one box per answer row. The bottom edge holds one box per
// answer block; each block repeats the answer rows with Choices bubbles.
type Layout struct {
	// IDHeight is the nominal distance from the "0" row box to the "9" row box.
	IDHeight float64 `json:"id_height"`
	// FirstJump is the distance from the left boxes to the first ID column.
	FirstJump float64 `json:"first_jump"`
	// BubbleJump is the distance between neighboring bubble centers.
	BubbleJump float64 `json:"bubble_jump"`
	// AnswerJump is the distance from a bottom box to choice A of its block.
	AnswerJump float64 `json:"answer_jump"`

	// IDRowStart is the index in the left column of the "0" row box.
	IDRowStart int `json:"id_row_start"`
	// IDColumns is the number of ID digits.
	IDColumns int `json:"id_columns"`
	// AnswerRowStart is the index in the left column of the first answer row.
	AnswerRowStart int `json:"answer_row_start"`
	// AnswerRows is the number of questions per block.
	AnswerRows int `json:"answer_rows"`
	// Choices is the number of bubbles per question.
	Choices int `json:"choices"`
	// BottomBoxes is the number of answer blocks.
	BottomBoxes int `json:"bottom_boxes"`
}

// DefaultLayout returns the geometry of the standard form.
func DefaultLayout() Layout {
	return Layout{
		IDHeight:       452,
		FirstJump:      115,
		BubbleJump:     75,
		AnswerJump:     80,
		IDRowStart:     1,
		IDColumns:      10,
		AnswerRowStart: 11,
		AnswerRows:     20,
		Choices:        5,
		BottomBoxes:    4,
	}
}

// LeftBoxes returns the number of boxes in the left column.
func (l Layout) LeftBoxes() int {
	return l.AnswerRowStart + l.AnswerRows
}

// TotalBoxes returns the number of anchor boxes on a page.
func (l Layout) TotalBoxes() int {
	return l.LeftBoxes() + l.BottomBoxes
}

// Questions returns the number of questions on a page.
func (l Layout) Questions() int {
	return l.AnswerRows * l.BottomBoxes
}

// Validate checks that the layout is self-consistent.
func (l Layout) Validate() error {
	switch {
	case l.IDHeight <= 0 || l.BubbleJump <= 0:
		return fmt.Errorf("layout: id height and bubble jump must be positive")
	case l.IDRowStart < 0:
		return fmt.Errorf("layout: id row start must not be negative")
	case l.AnswerRowStart < l.IDRowStart+IDRows:
		return fmt.Errorf("layout: answer rows start at %d, inside the id block", l.AnswerRowStart)
	case l.IDColumns <= 0 || l.IDColumns > 18:
		return fmt.Errorf("layout: id columns must be between 1 and 18, got %d", l.IDColumns)
	case l.Choices <= 0 || l.Choices > 26:
		return fmt.Errorf("layout: choices must be between 1 and 26, got %d", l.Choices)
	case l.AnswerRows < 0 || l.BottomBoxes < 0:
		return fmt.Errorf("layout: answer rows and bottom boxes must not be negative")
	}
	return nil
}
