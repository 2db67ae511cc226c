package interaction

import (
	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/geometry"
)

const (
	// MinDrawSide is exclusive: a drawn box must be wider and taller than this.
	MinDrawSide = 10.0
	// MinResizeSide is the floor a resize cannot go below.
	MinResizeSide = 20.0
	// DefaultHandleRadius is the handle hit radius in canvas pixels.
	DefaultHandleRadius = 6.0
)

// Mode enumerates the mutually exclusive interaction modes.
type Mode int

const (
	ModeSelect Mode = iota
	ModeDraw
	ModeEdit
)

func (m Mode) String() string {
	switch m {
	case ModeSelect:
		return "select"
	case ModeDraw:
		return "draw"
	case ModeEdit:
		return "edit"
	default:
		return "unknown"
	}
}

func ParseMode(s string) (Mode, bool) {
	switch s {
	case "select":
		return ModeSelect, true
	case "draw":
		return ModeDraw, true
	case "edit":
		return ModeEdit, true
	}
	return ModeSelect, false
}

// Handle identifies one of the eight resize handles.
type Handle int

const (
	HandleNone Handle = iota
	HandleNW
	HandleN
	HandleNE
	HandleE
	HandleSE
	HandleS
	HandleSW
	HandleW
)

var handleNames = [...]string{"none", "nw", "n", "ne", "e", "se", "s", "sw", "w"}

func (h Handle) String() string {
	if int(h) < len(handleNames) {
		return handleNames[h]
	}
	return "unknown"
}

func (h Handle) west() bool  { return h == HandleNW || h == HandleW || h == HandleSW }
func (h Handle) east() bool  { return h == HandleNE || h == HandleE || h == HandleSE }
func (h Handle) north() bool { return h == HandleNW || h == HandleN || h == HandleNE }
func (h Handle) south() bool { return h == HandleSW || h == HandleS || h == HandleSE }

type handlePoint struct {
	h Handle
	p geometry.Point
}

// handlePoints returns the eight handle positions of a box.
func handlePoints(b geometry.Box) [8]handlePoint {
	cx, cy := b.X+b.W/2, b.Y+b.H/2
	return [8]handlePoint{
		{HandleNW, geometry.Point{X: b.X, Y: b.Y}},
		{HandleN, geometry.Point{X: cx, Y: b.Y}},
		{HandleNE, geometry.Point{X: b.Right(), Y: b.Y}},
		{HandleE, geometry.Point{X: b.Right(), Y: cy}},
		{HandleSE, geometry.Point{X: b.Right(), Y: b.Bottom()}},
		{HandleS, geometry.Point{X: cx, Y: b.Bottom()}},
		{HandleSW, geometry.Point{X: b.X, Y: b.Bottom()}},
		{HandleW, geometry.Point{X: b.X, Y: cy}},
	}
}

// Outcome reports what a pointer event did.
type Outcome struct {
	// Created is set when a draw gesture produced a region; the caller should
	// then start a label edit for it.
	Created   *domain.Region `json:"created,omitempty"`
	EditLabel bool           `json:"edit_label"`
	Committed bool           `json:"committed"`
	Preview   *geometry.Box  `json:"preview,omitempty"`
	Selected  []int          `json:"selected,omitempty"`
}

// ModeListener is called on every mode change.
type ModeListener func(prev, next Mode)
