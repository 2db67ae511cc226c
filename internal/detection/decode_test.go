package detection

import (
	"math"
	"testing"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/geometry"
)

func near(a, b geometry.Box) bool {
	const tol = 1e-6
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.W-b.W) < tol && math.Abs(a.H-b.H) < tol
}

// Two candidates, two classes, 640 input for a 1280x640 image: scale 0.5, vertical padding 160.
var boxMajor = []float32{
	320, 320, 100, 50, 0.1, 0.8,
	10, 170, 2, 2, 0.9, 0.0,
}

func transpose(data []float32, n, stride int) []float32 {
	out := make([]float32, len(data))
	for i := 0; i < n; i++ {
		for k := 0; k < stride; k++ {
			out[k*n+i] = data[i*stride+k]
		}
	}
	return out
}

func TestDecodeDense_BothLayouts(t *testing.T) {
	want := geometry.Box{X: 540, Y: 270, W: 200, H: 100}
	for _, tc := range []struct {
		name   string
		layout Layout
		data   []float32
	}{
		{"box-major", BoxMajor, boxMajor},
		{"class-major", ClassMajor, transpose(boxMajor, 2, 6)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out := DenseOutput{Data: tc.data, Candidates: 2, Classes: 2, Layout: tc.layout, InputSize: 640}
			got, err := DecodeDense(out, 1280, 640, []string{"person", "car"}, 0.25)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("tiny box should be discarded, got %+v", got)
			}
			if got[0].Label != "car" || got[0].ClassID != 1 || math.Abs(got[0].Confidence-0.8) > 1e-6 {
				t.Fatalf("unexpected class %+v", got[0])
			}
			if !near(got[0].Box, want) {
				t.Fatalf("expected %v, got %v", want, got[0].Box)
			}
		})
	}
}

func TestDecodeDense_ConfidenceThreshold(t *testing.T) {
	out := DenseOutput{Data: boxMajor, Candidates: 2, Classes: 2, InputSize: 640}
	got, err := DecodeDense(out, 1280, 640, nil, 0.85)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected everything below threshold or too small, got %+v", got)
	}
}

func TestDecodeDense_MalformedShape(t *testing.T) {
	out := DenseOutput{Data: boxMajor[:7], Candidates: 2, Classes: 2, InputSize: 640}
	_, err := DecodeDense(out, 1280, 640, nil, 0.25)
	if !domain.IsDecode(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeDense_UnnamedClass(t *testing.T) {
	out := DenseOutput{Data: boxMajor, Candidates: 2, Classes: 2, InputSize: 640}
	got, _ := DecodeDense(out, 1280, 640, nil, 0.25)
	if len(got) != 1 || got[0].Label != "class_1" {
		t.Fatalf("expected fallback class name, got %+v", got)
	}
}

func TestDecodeRemote_Shapes(t *testing.T) {
	for _, tc := range []struct {
		name  string
		body  string
		want  geometry.Box
		label string
		conf  float64
	}{
		{"bbox array", `{"detections":[{"bbox":[10,20,30,40],"label":"car","confidence":0.9}]}`,
			geometry.Box{X: 10, Y: 20, W: 30, H: 40}, "car", 0.9},
		{"xyxy array", `{"detections":[{"xyxy":[10,20,40,60],"label":"car","confidence":0.9}]}`,
			geometry.Box{X: 10, Y: 20, W: 30, H: 40}, "car", 0.9},
		{"corner fields", `{"predictions":[{"x1":10,"y1":20,"x2":40,"y2":60,"class":"dog","score":0.7}]}`,
			geometry.Box{X: 10, Y: 20, W: 30, H: 40}, "dog", 0.7},
		{"xywh fields", `[{"x":10,"y":20,"width":30,"height":40,"class":"qr","confidence":0.4}]`,
			geometry.Box{X: 10, Y: 20, W: 30, H: 40}, "qr", 0.4},
		{"bbox object", `[{"bbox":{"x":10,"y":20,"w":30,"h":40}}]`,
			geometry.Box{X: 10, Y: 20, W: 30, H: 40}, DefaultLabel, DefaultConfidence},
		{"fractional", `[{"x":0.1,"y":0.2,"width":0.3,"height":0.4}]`,
			geometry.Box{X: 100, Y: 100, W: 300, H: 200}, DefaultLabel, DefaultConfidence},
		{"fractional corners", `[{"box":[0.1,0.2,0.4,0.6],"label":"car"}]`,
			geometry.Box{X: 100, Y: 100, W: 300, H: 200}, "car", DefaultConfidence},
		{"clipped", `[{"bbox":[990,490,50,50],"label":"car","confidence":0.9}]`,
			geometry.Box{X: 990, Y: 490, W: 10, H: 10}, "car", 0.9},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeRemote([]byte(tc.body), 1000, 500)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected one candidate, got %+v", got)
			}
			if !near(got[0].Box, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got[0].Box)
			}
			if got[0].Label != tc.label || got[0].Confidence != tc.conf {
				t.Fatalf("unexpected label/confidence %q %v", got[0].Label, got[0].Confidence)
			}
		})
	}
}

func TestDecodeRemote_ClassIDsByFirstSeenLabel(t *testing.T) {
	body := `[{"bbox":[1,1,10,10],"label":"car"},{"bbox":[1,1,10,10],"label":"dog"},{"bbox":[1,1,10,10],"label":"car"}]`
	got, err := DecodeRemote([]byte(body), 100, 100)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].ClassID != 0 || got[1].ClassID != 1 || got[2].ClassID != 0 {
		t.Fatalf("unexpected class ids %+v", got)
	}
}

func TestDecodeRemote_Malformed(t *testing.T) {
	for _, body := range []string{
		``,
		`{"foo":[]}`,
		`{"detections":{"not":"a list"}}`,
		`[{"label":"car"}]`,
		`[{"bbox":[1,2,3]}]`,
		`[{"x":"a","y":1,"width":2,"height":3}]`,
	} {
		if _, err := DecodeRemote([]byte(body), 100, 100); !domain.IsDecode(err) {
			t.Fatalf("body %q: expected DecodeError, got %v", body, err)
		}
	}
}

func TestNormalizePrompt(t *testing.T) {
	for _, tc := range []struct {
		in, want string
		n        int
	}{
		{"car . person", "car. person.", 2},
		{"car, person ,", "car. person.", 2},
		{"  dog  ", "dog.", 1},
		{" . . ", "", 0},
		{"", "", 0},
	} {
		got, classes := NormalizePrompt(tc.in)
		if got != tc.want || len(classes) != tc.n {
			t.Fatalf("NormalizePrompt(%q) = %q %v", tc.in, got, classes)
		}
	}
}

func TestLookupModel(t *testing.T) {
	m, ok := LookupModel("Grounding-DINO")
	if !ok || !m.RequiresPrompt() || m.Endpoint != "/grounding-dino" {
		t.Fatalf("unexpected model %+v %v", m, ok)
	}
	if m, ok := LookupModel("yolov8"); !ok || m.RequiresPrompt() {
		t.Fatalf("yolov8 should be closed-set, got %+v", m)
	}
	if _, ok := LookupModel("nope"); ok {
		t.Fatalf("unknown model should not resolve")
	}
}
