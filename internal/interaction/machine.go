// Package interaction turns pointer gestures into region store mutations.
package interaction

import (
	"math"

	"go.uber.org/zap"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/geometry"
	"github.com/my591234-max/autolabeling/internal/selection"
)

// RegionStore is the part of the store the machine mutates.
type RegionStore interface {
	Get(imageID string) []domain.Region
	Replace(imageID string, regions []domain.Region, transient bool)
	Commit() bool
}

type gesture int

const (
	gestureNone gesture = iota
	gestureDraw
	gestureDrag
	gestureResize
)

// Machine is driven from a single interaction loop; it is not safe for concurrent use.
type Machine struct {
	log          *zap.Logger
	store        RegionStore
	sel          *selection.Manager
	mode         Mode
	imageID      string
	imgW, imgH   float64
	tr           geometry.Transform
	defaultLabel string
	handleRadius float64
	listeners    []ModeListener

	g        gesture
	anchor   geometry.Point
	preview  geometry.Box
	regionID int
	offset   geometry.Point
	handle   Handle
	start    geometry.Box
}

func NewMachine(store RegionStore, sel *selection.Manager, defaultLabel string, log *zap.Logger) *Machine {
	if defaultLabel == "" {
		defaultLabel = "object"
	}
	return &Machine{
		log:          log,
		store:        store,
		sel:          sel,
		defaultLabel: defaultLabel,
		handleRadius: DefaultHandleRadius,
		tr:           geometry.Fit(1, 1, 1, 1),
	}
}

func (m *Machine) Mode() Mode { return m.mode }

func (m *Machine) AddListener(l ModeListener) { m.listeners = append(m.listeners, l) }

// SetMode switches mode. A gesture in progress is finished first.
func (m *Machine) SetMode(next Mode) {
	m.Finish()
	prev := m.mode
	if prev == next {
		return
	}
	m.mode = next
	m.log.Debug("interaction mode changed", zap.String("from", prev.String()), zap.String("to", next.String()))
	for _, l := range m.listeners {
		l(prev, next)
	}
}

// SetImage points the machine at the displayed image and its canvas.
func (m *Machine) SetImage(imageID string, width, height int, canvasW, canvasH float64) {
	m.Finish()
	zoom := m.tr.Zoom
	m.imageID = imageID
	m.imgW, m.imgH = float64(width), float64(height)
	m.tr = geometry.Fit(m.imgW, m.imgH, canvasW, canvasH).WithZoom(zoom)
	m.sel.SetImage(imageID)
}

func (m *Machine) ImageID() string { return m.imageID }

func (m *Machine) SetZoom(z float64) { m.tr = m.tr.WithZoom(z) }

func (m *Machine) SetDefaultLabel(label string) {
	if label != "" {
		m.defaultLabel = label
	}
}

func (m *Machine) DefaultLabel() string { return m.defaultLabel }

func (m *Machine) Transform() geometry.Transform { return m.tr }

// Preview returns the live draw rectangle in image pixels.
func (m *Machine) Preview() (geometry.Box, bool) {
	return m.preview, m.g == gestureDraw
}

// Active reports whether a gesture is in progress.
func (m *Machine) Active() bool { return m.g != gestureNone }

// PointerDown starts a gesture at a view-space point (zoom still applied).
func (m *Machine) PointerDown(view geometry.Point, mod selection.Modifier) Outcome {
	if m.imageID == "" {
		return Outcome{}
	}
	m.Finish()
	p := m.tr.ViewToImage(view)

	switch m.mode {
	case ModeSelect:
		regions := m.store.Get(m.imageID)
		if idx := hitBody(regions, p); idx >= 0 {
			m.sel.Click(ids(regions), idx, mod)
		} else {
			m.sel.Clear()
		}
		return Outcome{Selected: m.sel.Selected(ids(regions))}

	case ModeDraw:
		m.g = gestureDraw
		m.anchor = geometry.ClampPoint(p, m.imgW, m.imgH)
		m.preview = geometry.Box{X: m.anchor.X, Y: m.anchor.Y}
		preview := m.preview
		return Outcome{Preview: &preview}

	case ModeEdit:
		regions := m.store.Get(m.imageID)
		if idx, h := m.hitHandle(regions, p); idx >= 0 {
			m.g = gestureResize
			m.regionID = regions[idx].ID
			m.handle = h
			m.start = regions[idx].Box
			return Outcome{}
		}
		if idx := hitBody(regions, p); idx >= 0 {
			m.g = gestureDrag
			m.regionID = regions[idx].ID
			m.start = regions[idx].Box
			m.offset = geometry.Point{X: p.X - m.start.X, Y: p.Y - m.start.Y}
		}
	}
	return Outcome{}
}

// PointerMove updates the gesture. It never commits history.
func (m *Machine) PointerMove(view geometry.Point) Outcome {
	p := m.tr.ViewToImage(view)
	switch m.g {
	case gestureDraw:
		m.preview = geometry.FromCorners(m.anchor, geometry.ClampPoint(p, m.imgW, m.imgH))
		preview := m.preview
		return Outcome{Preview: &preview}
	case gestureDrag:
		box := geometry.Box{X: p.X - m.offset.X, Y: p.Y - m.offset.Y, W: m.start.W, H: m.start.H}
		m.apply(geometry.Confine(box, m.imgW, m.imgH))
	case gestureResize:
		m.apply(m.resize(p))
	}
	return Outcome{}
}

// PointerUp ends the gesture: a draw may create a region, an edit commits
// one snapshot for everything moved since pointer-down.
func (m *Machine) PointerUp(view geometry.Point) Outcome {
	switch m.g {
	case gestureDraw:
		m.PointerMove(view)
		box := m.preview
		m.reset()
		if box.W <= MinDrawSide || box.H <= MinDrawSide {
			return Outcome{}
		}
		regions := m.store.Get(m.imageID)
		r := domain.Region{
			ID:         domain.NextRegionID(regions),
			Label:      m.defaultLabel,
			Confidence: 1.0,
			Status:     domain.StatusManual,
			Box:        box,
		}
		m.store.Replace(m.imageID, append(regions, r), false)
		m.log.Debug("region drawn", zap.String("image", m.imageID), zap.Int("region", r.ID))
		return Outcome{Created: &r, EditLabel: true, Committed: true}
	case gestureDrag, gestureResize:
		m.PointerMove(view)
		return Outcome{Committed: m.finishEdit()}
	}
	return Outcome{}
}

// Finish ends any gesture in progress without creating a region. Pending
// drag or resize changes are committed as one snapshot.
func (m *Machine) Finish() {
	switch m.g {
	case gestureDrag, gestureResize:
		m.finishEdit()
	default:
		m.reset()
	}
}

func (m *Machine) finishEdit() bool {
	m.reset()
	return m.store.Commit()
}

func (m *Machine) reset() {
	m.g = gestureNone
	m.preview = geometry.Box{}
	m.regionID = 0
	m.handle = HandleNone
}

func (m *Machine) apply(box geometry.Box) {
	regions := m.store.Get(m.imageID)
	idx := domain.IndexOf(regions, m.regionID)
	if idx < 0 {
		m.reset()
		return
	}
	if regions[idx].Box == box {
		return
	}
	regions[idx].Box = box
	m.store.Replace(m.imageID, regions, true)
}

// resize moves the edges named by the handle, keeping the opposite edges
// fixed, the size at or above the floor and the box inside the image.
func (m *Machine) resize(p geometry.Point) geometry.Box {
	s := m.start
	x1, y1, x2, y2 := s.X, s.Y, s.Right(), s.Bottom()
	minW := math.Min(MinResizeSide, m.imgW)
	minH := math.Min(MinResizeSide, m.imgH)
	if m.handle.west() {
		x1 = math.Max(0, math.Min(p.X, x2-minW))
	}
	if m.handle.east() {
		x2 = math.Min(m.imgW, math.Max(p.X, x1+minW))
	}
	if m.handle.north() {
		y1 = math.Max(0, math.Min(p.Y, y2-minH))
	}
	if m.handle.south() {
		y2 = math.Min(m.imgH, math.Max(p.Y, y1+minH))
	}
	return geometry.Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// hitHandle finds the topmost region with a handle under p.
func (m *Machine) hitHandle(regions []domain.Region, p geometry.Point) (int, Handle) {
	r := m.handleRadius / (m.tr.Scale * m.tr.Zoom)
	for i := len(regions) - 1; i >= 0; i-- {
		for _, hp := range handlePoints(regions[i].Box) {
			if math.Abs(p.X-hp.p.X) <= r && math.Abs(p.Y-hp.p.Y) <= r {
				return i, hp.h
			}
		}
	}
	return -1, HandleNone
}

// hitBody returns the index of the topmost (last drawn) region containing p.
func hitBody(regions []domain.Region, p geometry.Point) int {
	for i := len(regions) - 1; i >= 0; i-- {
		if regions[i].Box.Contains(p) {
			return i
		}
	}
	return -1
}

func ids(regions []domain.Region) []int {
	out := make([]int, len(regions))
	for i, r := range regions {
		out[i] = r.ID
	}
	return out
}
