// Package geometry holds the pure box math shared by the engine: the
// letterbox transform between image and canvas space, zoom, clamping and IoU.
package geometry

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned rectangle given by its top-left corner and size.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (b Box) Right() float64  { return b.X + b.W }
func (b Box) Bottom() float64 { return b.Y + b.H }
func (b Box) Area() float64   { return b.W * b.H }

func (b Box) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.Right() && p.Y >= b.Y && p.Y <= b.Bottom()
}

// FromCorners builds a box from two arbitrary corners.
func FromCorners(a, b Point) Box {
	x1, x2 := math.Min(a.X, b.X), math.Max(a.X, b.X)
	y1, y2 := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// FromCenter builds a box from its centre and size.
func FromCenter(cx, cy, w, h float64) Box {
	return Box{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

// Clip intersects the box with [0,w]x[0,h]. The result may be empty.
func Clip(b Box, w, h float64) Box {
	x1 := clamp(b.X, 0, w)
	y1 := clamp(b.Y, 0, h)
	x2 := clamp(b.Right(), 0, w)
	y2 := clamp(b.Bottom(), 0, h)
	return Box{X: x1, Y: y1, W: math.Max(0, x2-x1), H: math.Max(0, y2-y1)}
}

// Confine keeps the box size (shrunk only if larger than the bounds) and
// moves it so it lies fully inside [0,w]x[0,h].
func Confine(b Box, w, h float64) Box {
	b.W = math.Min(b.W, w)
	b.H = math.Min(b.H, h)
	b.X = clamp(b.X, 0, w-b.W)
	b.Y = clamp(b.Y, 0, h-b.H)
	return b
}

func ClampPoint(p Point, w, h float64) Point {
	return Point{X: clamp(p.X, 0, w), Y: clamp(p.Y, 0, h)}
}

// IoU is intersection over union; 0 when the union is empty.
func IoU(a, b Box) float64 {
	iw := math.Min(a.Right(), b.Right()) - math.Max(a.X, b.X)
	ih := math.Min(a.Bottom(), b.Bottom()) - math.Max(a.Y, b.Y)
	inter := 0.0
	if iw > 0 && ih > 0 {
		inter = iw * ih
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
