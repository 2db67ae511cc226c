package geometry

import "math"

// Transform maps image pixels into a destination rectangle with a uniform
// fit-within scale and centring offsets (letterboxing). Zoom is applied by
// the renderer around the destination centre.
type Transform struct {
	SrcW, SrcH float64
	DstW, DstH float64
	Scale      float64
	OffsetX    float64
	OffsetY    float64
	Zoom       float64
}

// Fit computes the letterbox transform of a srcW x srcH rectangle into dstW x dstH.
func Fit(srcW, srcH, dstW, dstH float64) Transform {
	t := Transform{SrcW: srcW, SrcH: srcH, DstW: dstW, DstH: dstH, Scale: 1, Zoom: 1}
	if srcW <= 0 || srcH <= 0 {
		return t
	}
	t.Scale = math.Min(dstW/srcW, dstH/srcH)
	t.OffsetX = (dstW - srcW*t.Scale) / 2
	t.OffsetY = (dstH - srcH*t.Scale) / 2
	return t
}

// WithZoom returns a copy using the given zoom factor. Non-positive values reset it to 1.
func (t Transform) WithZoom(z float64) Transform {
	if z <= 0 {
		z = 1
	}
	t.Zoom = z
	return t
}

func (t Transform) ImageToCanvasPoint(p Point) Point {
	return Point{X: p.X*t.Scale + t.OffsetX, Y: p.Y*t.Scale + t.OffsetY}
}

func (t Transform) ImageToCanvas(b Box) Box {
	o := t.ImageToCanvasPoint(Point{X: b.X, Y: b.Y})
	return Box{X: o.X, Y: o.Y, W: b.W * t.Scale, H: b.H * t.Scale}
}

// CanvasToImage is the exact inverse of ImageToCanvasPoint. The point must
// already be in unzoomed canvas space (see ViewToCanvas).
func (t Transform) CanvasToImage(p Point) Point {
	return Point{X: (p.X - t.OffsetX) / t.Scale, Y: (p.Y - t.OffsetY) / t.Scale}
}

func (t Transform) CanvasToImageBox(b Box) Box {
	o := t.CanvasToImage(Point{X: b.X, Y: b.Y})
	return Box{X: o.X, Y: o.Y, W: b.W / t.Scale, H: b.H / t.Scale}
}

// ViewToCanvas removes the renderer's zoom, which is applied around the canvas centre.
func (t Transform) ViewToCanvas(p Point) Point {
	z := t.zoom()
	cx, cy := t.DstW/2, t.DstH/2
	return Point{X: cx + (p.X-cx)/z, Y: cy + (p.Y-cy)/z}
}

func (t Transform) CanvasToView(p Point) Point {
	z := t.zoom()
	cx, cy := t.DstW/2, t.DstH/2
	return Point{X: cx + (p.X-cx)*z, Y: cy + (p.Y-cy)*z}
}

// ViewToImage un-applies zoom and then the letterbox transform.
func (t Transform) ViewToImage(p Point) Point {
	return t.CanvasToImage(t.ViewToCanvas(p))
}

func (t Transform) zoom() float64 {
	if t.Zoom <= 0 {
		return 1
	}
	return t.Zoom
}
