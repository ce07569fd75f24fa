package tracking

import (
	"fmt"
	"math"
)

// Box is an axis-aligned pixel rectangle (X1,Y1) inclusive to (X2,Y2)
// exclusive.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b Box) Width() int  { return b.X2 - b.X1 }
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Area is zero for degenerate boxes.
func (b Box) Area() int {
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return 0
	}
	return b.Width() * b.Height()
}

// Empty reports whether the box covers no pixels.
func (b Box) Empty() bool { return b.Area() == 0 }

func (b Box) center() (float64, float64) {
	return float64(b.X1+b.X2) / 2, float64(b.Y1+b.Y2) / 2
}

func (b Box) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.X1, b.Y1, b.X2, b.Y2)
}

// IoU returns the intersection-over-union ratio of two boxes.
func IoU(a, b Box) float64 {
	ix1, iy1 := max(a.X1, b.X1), max(a.Y1, b.Y1)
	ix2, iy2 := min(a.X2, b.X2), min(a.Y2, b.Y2)
	if ix1 >= ix2 || iy1 >= iy2 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// CenterDistance returns the distance between box centers normalized by the
// frame diagonal. A zero diagonal yields zero.
func CenterDistance(a, b Box, diagonal float64) float64 {
	if diagonal <= 0 {
		return 0
	}
	ax, ay := a.center()
	bx, by := b.center()
	return math.Hypot(ax-bx, ay-by) / diagonal
}

// Union returns the smallest box enclosing both.
func Union(a, b Box) Box {
	return Box{X1: min(a.X1, b.X1), Y1: min(a.Y1, b.Y1), X2: max(a.X2, b.X2), Y2: max(a.Y2, b.Y2)}
}

// Lerp interpolates between a and b; t is clamped to [0,1] and coordinates
// truncate toward zero.
func Lerp(a, b Box, t float64) Box {
	t = max(0, min(1, t))
	mix := func(p, q int) int { return int(float64(p) + float64(q-p)*t) }
	return Box{X1: mix(a.X1, b.X1), Y1: mix(a.Y1, b.Y1), X2: mix(a.X2, b.X2), Y2: mix(a.Y2, b.Y2)}
}

// Expand grows the box on each side by max(int(ratio*dimension), minPixels)
// and clamps it to a width x height frame.
func Expand(b Box, ratio float64, minPixels, width, height int) Box {
	dx := max(int(float64(b.Width())*ratio), minPixels)
	dy := max(int(float64(b.Height())*ratio), minPixels)
	return Clamp(Box{X1: b.X1 - dx, Y1: b.Y1 - dy, X2: b.X2 + dx, Y2: b.Y2 + dy}, width, height)
}

// Clamp limits the box to the frame. Non-positive frame dimensions leave
// the corresponding axis unclamped except for the zero floor.
func Clamp(b Box, width, height int) Box {
	b.X1, b.Y1 = max(0, b.X1), max(0, b.Y1)
	if width > 0 {
		b.X2 = min(width, b.X2)
	}
	if height > 0 {
		b.Y2 = min(height, b.Y2)
	}
	return b
}

// Scale maps a box from a fromW x fromH frame onto a toW x toH frame.
func Scale(b Box, fromW, fromH, toW, toH int) Box {
	if fromW <= 0 || fromH <= 0 || (fromW == toW && fromH == toH) {
		return b
	}
	sx := float64(toW) / float64(fromW)
	sy := float64(toH) / float64(fromH)
	return Box{
		X1: int(math.Floor(float64(b.X1) * sx)),
		Y1: int(math.Floor(float64(b.Y1) * sy)),
		X2: int(math.Ceil(float64(b.X2) * sx)),
		Y2: int(math.Ceil(float64(b.Y2) * sy)),
	}
}
