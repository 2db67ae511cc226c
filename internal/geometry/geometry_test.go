package geometry

import (
	"math"
	"testing"
)

const eps = 1e-9

func boxesEqual(a, b Box) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps &&
		math.Abs(a.W-b.W) < eps && math.Abs(a.H-b.H) < eps
}

func TestFit_LetterboxesWide(t *testing.T) {
	tr := Fit(1000, 500, 800, 600)
	if tr.Scale != 0.8 {
		t.Fatalf("expected scale 0.8, got %v", tr.Scale)
	}
	if tr.OffsetX != 0 || tr.OffsetY != 100 {
		t.Fatalf("unexpected offsets %v,%v", tr.OffsetX, tr.OffsetY)
	}
}

func TestFit_LetterboxesTall(t *testing.T) {
	tr := Fit(300, 600, 800, 600)
	if tr.Scale != 1 {
		t.Fatalf("expected scale 1, got %v", tr.Scale)
	}
	if tr.OffsetX != 250 || tr.OffsetY != 0 {
		t.Fatalf("unexpected offsets %v,%v", tr.OffsetX, tr.OffsetY)
	}
}

func TestTransform_RoundTrip(t *testing.T) {
	sizes := [][2]float64{{1000, 500}, {640, 480}, {333, 777}, {4032, 3024}}
	boxes := []Box{{0, 0, 10, 10}, {12.5, 40.25, 100, 33.3}, {200, 100, 1, 1}}
	for _, s := range sizes {
		tr := Fit(s[0], s[1], 1280, 720)
		for _, b := range boxes {
			c := tr.ImageToCanvas(b)
			back := tr.CanvasToImageBox(c)
			if !boxesEqual(back, b) {
				t.Fatalf("round trip mismatch for %v on %vx%v: got %v", b, s[0], s[1], back)
			}
			p := tr.CanvasToImage(tr.ImageToCanvasPoint(Point{b.X, b.Y}))
			if math.Abs(p.X-b.X) > eps || math.Abs(p.Y-b.Y) > eps {
				t.Fatalf("point round trip mismatch: %v vs %v", p, b)
			}
		}
	}
}

func TestTransform_ZoomIsUnappliedBeforeInverse(t *testing.T) {
	tr := Fit(1000, 500, 1000, 500).WithZoom(2)
	// Canvas centre stays put under zoom.
	if p := tr.ViewToImage(Point{500, 250}); p.X != 500 || p.Y != 250 {
		t.Fatalf("centre moved under zoom: %v", p)
	}
	// A view point 100px right of centre is 50 canvas px away at zoom 2.
	if p := tr.ViewToImage(Point{600, 250}); math.Abs(p.X-550) > eps {
		t.Fatalf("expected x=550, got %v", p.X)
	}
	v := tr.CanvasToView(tr.ViewToCanvas(Point{123, 45}))
	if math.Abs(v.X-123) > eps || math.Abs(v.Y-45) > eps {
		t.Fatalf("zoom round trip mismatch: %v", v)
	}
}

func TestClip(t *testing.T) {
	got := Clip(Box{X: -10, Y: 90, W: 50, H: 50}, 100, 100)
	want := Box{X: 0, Y: 90, W: 40, H: 10}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestConfine_KeepsSize(t *testing.T) {
	got := Confine(Box{X: 80, Y: -5, W: 30, H: 20}, 100, 100)
	want := Box{X: 70, Y: 0, W: 30, H: 20}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestIoU(t *testing.T) {
	a := Box{0, 0, 10, 10}
	if v := IoU(a, a); v != 1 {
		t.Fatalf("identical boxes should have IoU 1, got %v", v)
	}
	if v := IoU(a, Box{20, 20, 5, 5}); v != 0 {
		t.Fatalf("disjoint boxes should have IoU 0, got %v", v)
	}
	if v := IoU(a, Box{5, 0, 10, 10}); math.Abs(v-50.0/150.0) > eps {
		t.Fatalf("unexpected IoU %v", v)
	}
	if v := IoU(Box{}, Box{}); v != 0 {
		t.Fatalf("empty union should give 0, got %v", v)
	}
}

func TestFromCorners_Normalises(t *testing.T) {
	b := FromCorners(Point{30, 40}, Point{10, 5})
	if b != (Box{X: 10, Y: 5, W: 20, H: 35}) {
		t.Fatalf("unexpected box %v", b)
	}
}
