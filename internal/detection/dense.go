package detection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/geometry"
)

// MinDetectionSide is the pixel floor below which a decoded box is discarded.
const MinDetectionSide = 5.0

type Layout int

const (
	// BoxMajor stores each candidate contiguously: [cx cy w h s0..sC-1] * N.
	BoxMajor Layout = iota
	// ClassMajor stores each attribute row across all candidates: (4+C) rows of N.
	ClassMajor
)

// DenseOutput is a raw grid of N candidates with 4 box parameters and C
// class scores each, in a square InputSize x InputSize letterboxed space.
type DenseOutput struct {
	Data       []float32
	Candidates int
	Classes    int
	Layout     Layout
	InputSize  int
}

func (d DenseOutput) at(n, k int) float64 {
	stride := 4 + d.Classes
	if d.Layout == ClassMajor {
		return float64(d.Data[k*d.Candidates+n])
	}
	return float64(d.Data[n*stride+k])
}

// DecodeDense turns dense output into candidates in image pixel space.
// labels maps class ids to names; ids without a name get "class_<id>".
func DecodeDense(out DenseOutput, imgW, imgH int, labels []string, confThreshold float64) ([]Candidate, error) {
	if out.Candidates < 0 || out.Classes < 1 {
		return nil, &domain.DecodeError{Reason: fmt.Sprintf("invalid tensor shape: %d candidates, %d classes", out.Candidates, out.Classes)}
	}
	if want := out.Candidates * (4 + out.Classes); len(out.Data) != want {
		return nil, &domain.DecodeError{Reason: fmt.Sprintf("tensor has %d values, shape needs %d", len(out.Data), want)}
	}
	if out.InputSize <= 0 {
		return nil, &domain.DecodeError{Reason: fmt.Sprintf("invalid model input size %d", out.InputSize)}
	}
	if imgW <= 0 || imgH <= 0 {
		return nil, &domain.DecodeError{Reason: fmt.Sprintf("invalid image size %dx%d", imgW, imgH)}
	}

	s := float64(out.InputSize)
	tr := geometry.Fit(float64(imgW), float64(imgH), s, s)

	var candidates []Candidate
	for n := 0; n < out.Candidates; n++ {
		best, score := 0, out.at(n, 4)
		for c := 1; c < out.Classes; c++ {
			if v := out.at(n, 4+c); v > score {
				best, score = c, v
			}
		}
		if score < confThreshold {
			continue
		}
		inModel := geometry.FromCenter(out.at(n, 0), out.at(n, 1), out.at(n, 2), out.at(n, 3))
		box := geometry.Clip(tr.CanvasToImageBox(inModel), float64(imgW), float64(imgH))
		if box.W < MinDetectionSide || box.H < MinDetectionSide {
			continue
		}
		candidates = append(candidates, Candidate{
			Index:      n,
			ClassID:    best,
			Label:      className(labels, best),
			Confidence: score,
			Box:        box,
		})
	}
	return candidates, nil
}

func className(labels []string, id int) string {
	if id >= 0 && id < len(labels) && labels[id] != "" {
		return labels[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// tensorEnvelope is the raw-output response some model servers return in
// place of a detection list.
type tensorEnvelope struct {
	Output    []float32 `json:"output"`
	Shape     []int     `json:"shape"`
	Layout    string    `json:"layout"`
	InputSize int       `json:"input_size"`
	Names     []string  `json:"names"`
}

// DecodeResponse decodes a detection service body of either kind: a tensor
// envelope goes through DecodeDense, anything else through DecodeRemote.
// confThreshold only applies to tensor output.
func DecodeResponse(body []byte, imgW, imgH int, confThreshold float64) ([]Candidate, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return DecodeRemote(body, imgW, imgH)
	}
	var head rawItem
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return nil, &domain.DecodeError{Reason: "response envelope", Err: err}
	}
	if _, ok := head.first("output"); !ok {
		return DecodeRemote(body, imgW, imgH)
	}

	var env tensorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &domain.DecodeError{Reason: "tensor envelope", Err: err}
	}
	out, err := env.dense()
	if err != nil {
		return nil, err
	}
	return DecodeDense(out, imgW, imgH, env.Names, confThreshold)
}

// dense reads the candidate count, class count and layout from the last two
// dimensions of the shape. Without an explicit layout the dimension equal to
// 4+len(names) is the attribute axis; with no names the smaller one is.
func (e tensorEnvelope) dense() (DenseOutput, error) {
	if len(e.Shape) < 2 {
		return DenseOutput{}, &domain.DecodeError{Reason: fmt.Sprintf("tensor shape %v needs at least two dimensions", e.Shape)}
	}
	d0, d1 := e.Shape[len(e.Shape)-2], e.Shape[len(e.Shape)-1]

	var layout Layout
	switch strings.ToLower(e.Layout) {
	case "box_major", "box-major":
		layout = BoxMajor
	case "class_major", "class-major":
		layout = ClassMajor
	case "":
		attrs := 4 + len(e.Names)
		switch {
		case len(e.Names) > 0 && d1 == attrs:
			layout = BoxMajor
		case len(e.Names) > 0 && d0 == attrs:
			layout = ClassMajor
		case d0 < d1:
			layout = ClassMajor
		default:
			layout = BoxMajor
		}
	default:
		return DenseOutput{}, &domain.DecodeError{Reason: fmt.Sprintf("unknown tensor layout %q", e.Layout)}
	}

	n, attrs := d0, d1
	if layout == ClassMajor {
		n, attrs = d1, d0
	}
	return DenseOutput{
		Data:       e.Output,
		Candidates: n,
		Classes:    attrs - 4,
		Layout:     layout,
		InputSize:  e.InputSize,
	}, nil
}
