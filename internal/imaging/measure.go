package imaging

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Point represents a 2D pixel position
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Less reports whether p comes before q in raster order.
func (p Point) Less(q Point) bool {
	if p.Y != q.Y {
		return p.Y < q.Y
	}
	return p.X < q.X
}

// Distance returns the Euclidean distance between two points
func Distance(a, b Point) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Midpoint returns the point halfway between a and b, rounded down.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Angle returns the direction from a to b in degrees (0 = right, 90 = down).
func Angle(a, b Point) float64 {
	return math.Atan2(float64(b.Y-a.Y), float64(b.X-a.X)) * 180 / math.Pi
}

// RotatePoint turns p about pivot by rad radians, counter-clockwise as seen
// on screen. It matches the direction used by Grid.Rotate, so points found
// before a rotation can be carried over to the rotated page.
func RotatePoint(p, pivot Point, rad float64) Point {
	sin, cos := math.Sincos(rad)
	dx := float64(p.X - pivot.X)
	dy := float64(p.Y - pivot.Y)
	return Point{
		X: pivot.X + int(math.Round(dx*cos+dy*sin)),
		Y: pivot.Y + int(math.Round(-dx*sin+dy*cos)),
	}
}

// AlignmentResult contains alignment check information
type AlignmentResult struct {
	HorizontallyAligned bool    `json:"horizontally_aligned"`
	VerticallyAligned   bool    `json:"vertically_aligned"`
	HorizontalVariance  float64 `json:"horizontal_variance"`
	VerticalVariance    float64 `json:"vertical_variance"`
	AverageY            float64 `json:"average_y"`
	AverageX            float64 `json:"average_x"`
}

// CheckAlignment checks if points are aligned horizontally or vertically.
// A column of anchor boxes is considered vertical when the spread of its X
// coordinates stays within tolerance pixels.
func CheckAlignment(points []Point, tolerance int) AlignmentResult {
	if len(points) < 2 {
		return AlignmentResult{
			HorizontallyAligned: true,
			VerticallyAligned:   true,
		}
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.X)
		ys[i] = float64(p.Y)
	}
	avgX, devX := stat.PopMeanStdDev(xs, nil)
	avgY, devY := stat.PopMeanStdDev(ys, nil)

	return AlignmentResult{
		HorizontallyAligned: devY <= float64(tolerance),
		VerticallyAligned:   devX <= float64(tolerance),
		HorizontalVariance:  math.Round(devY*100) / 100,
		VerticalVariance:    math.Round(devX*100) / 100,
		AverageY:            math.Round(avgY*100) / 100,
		AverageX:            math.Round(avgX*100) / 100,
	}
}

// Skew fits a line x = a + b*y through points and returns the angle in
// radians between that line and the vertical axis. A positive skew means
// the column drifts right as it goes down.
func Skew(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.X)
		ys[i] = float64(p.Y)
	}
	_, slope := stat.LinearRegression(ys, xs, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0
	}
	return math.Atan(slope)
}
