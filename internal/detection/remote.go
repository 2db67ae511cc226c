package detection

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/geometry"
)

const (
	DefaultLabel      = "object"
	DefaultConfidence = 0.5
)

// boxShape is the layout of one remote detection item, chosen once by key presence.
type boxShape int

const (
	shapeUnknown     boxShape = iota
	shapeXYWHArray            // "bbox" or "xywh": [x, y, w, h]
	shapeCornerArray          // "xyxy" or "box": [x1, y1, x2, y2]
	shapeCornerField          // x1, y1, x2, y2 fields
	shapeXYWHField            // x, y, width|w, height|h fields
	shapeXYWHObject           // "bbox": {x, y, width|w, height|h}
)

func (s boxShape) corners() bool {
	return s == shapeCornerArray || s == shapeCornerField
}

type rawItem map[string]json.RawMessage

func (it rawItem) has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := it[k]; !ok {
			return false
		}
	}
	return true
}

func (it rawItem) first(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := it[k]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

func classify(it rawItem) boxShape {
	switch {
	case it.has("xyxy"), it.has("box"):
		return shapeCornerArray
	case it.has("bbox"):
		if raw := bytes.TrimSpace(it["bbox"]); len(raw) > 0 && raw[0] == '{' {
			return shapeXYWHObject
		}
		return shapeXYWHArray
	case it.has("xywh"):
		return shapeXYWHArray
	case it.has("x1", "y1", "x2", "y2"):
		return shapeCornerField
	case it.has("x", "y", "width", "height"), it.has("x", "y", "w", "h"):
		return shapeXYWHField
	}
	return shapeUnknown
}

func (s boxShape) values(it rawItem) ([4]float64, error) {
	var v [4]float64
	switch s {
	case shapeXYWHArray, shapeCornerArray:
		raw, _ := it.first("xyxy", "box", "bbox", "xywh")
		var arr []float64
		if err := json.Unmarshal(raw, &arr); err != nil {
			return v, err
		}
		if len(arr) != 4 {
			return v, fmt.Errorf("box array has %d values, want 4", len(arr))
		}
		copy(v[:], arr)
		return v, nil
	case shapeCornerField:
		return fieldValues(it, []string{"x1"}, []string{"y1"}, []string{"x2"}, []string{"y2"})
	case shapeXYWHField:
		return fieldValues(it, []string{"x"}, []string{"y"}, []string{"width", "w"}, []string{"height", "h"})
	case shapeXYWHObject:
		var obj rawItem
		if err := json.Unmarshal(it["bbox"], &obj); err != nil {
			return v, err
		}
		return fieldValues(obj, []string{"x"}, []string{"y"}, []string{"width", "w"}, []string{"height", "h"})
	}
	return v, fmt.Errorf("unrecognised detection shape")
}

func fieldValues(it rawItem, keys ...[]string) ([4]float64, error) {
	var v [4]float64
	for i, alts := range keys {
		raw, ok := it.first(alts...)
		if !ok {
			return v, fmt.Errorf("missing field %q", alts[0])
		}
		if err := json.Unmarshal(raw, &v[i]); err != nil {
			return v, fmt.Errorf("field %q: %w", alts[0], err)
		}
	}
	return v, nil
}

// DecodeRemote parses a detection service response: an object carrying a
// "detections" or "predictions" array, or a bare array. Values that are all
// below 1.0 are read as fractions of the image size.
func DecodeRemote(body []byte, imgW, imgH int) ([]Candidate, error) {
	items, err := remoteItems(body)
	if err != nil {
		return nil, err
	}
	w, h := float64(imgW), float64(imgH)
	classes := map[string]int{}
	candidates := make([]Candidate, 0, len(items))
	for i, it := range items {
		shape := classify(it)
		if shape == shapeUnknown {
			return nil, &domain.DecodeError{Reason: fmt.Sprintf("detection %d has no recognisable box", i)}
		}
		v, err := shape.values(it)
		if err != nil {
			return nil, &domain.DecodeError{Reason: fmt.Sprintf("detection %d", i), Err: err}
		}
		if v[0] < 1 && v[1] < 1 && v[2] < 1 && v[3] < 1 {
			v[0], v[1], v[2], v[3] = v[0]*w, v[1]*h, v[2]*w, v[3]*h
		}
		box := geometry.Box{X: v[0], Y: v[1], W: v[2], H: v[3]}
		if shape.corners() {
			box = geometry.FromCorners(geometry.Point{X: v[0], Y: v[1]}, geometry.Point{X: v[2], Y: v[3]})
		}
		box = geometry.Clip(box, w, h)
		if box.W <= 0 || box.H <= 0 {
			continue
		}

		label := itemLabel(it)
		id, ok := classes[label]
		if !ok {
			id = len(classes)
			classes[label] = id
		}
		candidates = append(candidates, Candidate{
			Index:      i,
			ClassID:    id,
			Label:      label,
			Confidence: itemConfidence(it),
			Box:        box,
		})
	}
	return candidates, nil
}

func remoteItems(body []byte) ([]rawItem, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, &domain.DecodeError{Reason: "empty response"}
	}
	list := json.RawMessage(body)
	if body[0] == '{' {
		var envelope rawItem
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, &domain.DecodeError{Reason: "response envelope", Err: err}
		}
		raw, ok := envelope.first("detections", "predictions")
		if !ok {
			return nil, &domain.DecodeError{Reason: "response has neither detections nor predictions"}
		}
		list = raw
	}
	var items []rawItem
	if err := json.Unmarshal(list, &items); err != nil {
		return nil, &domain.DecodeError{Reason: "detection list", Err: err}
	}
	return items, nil
}

func itemLabel(it rawItem) string {
	raw, ok := it.first("label", "class_name", "class", "name")
	if !ok {
		return DefaultLabel
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return DefaultLabel
		}
		return s
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return className(nil, n)
	}
	return DefaultLabel
}

func itemConfidence(it rawItem) float64 {
	raw, ok := it.first("confidence", "score", "conf")
	if !ok {
		return DefaultConfidence
	}
	var c float64
	if err := json.Unmarshal(raw, &c); err != nil {
		return DefaultConfidence
	}
	return c
}
