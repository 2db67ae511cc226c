// Package selection tracks which regions of the displayed image are selected.
package selection

// Modifier disambiguates click semantics.
type Modifier int

const (
	ModNone Modifier = iota
	ModToggle
	ModRange
)

func ParseModifier(s string) Modifier {
	switch s {
	case "toggle", "ctrl", "meta":
		return ModToggle
	case "range", "shift":
		return ModRange
	}
	return ModNone
}

// Manager is an ordered set of region ids scoped to one image.
type Manager struct {
	imageID string
	ids     []int
	anchor  int
}

func New() *Manager { return &Manager{anchor: -1} }

func (m *Manager) ImageID() string { return m.imageID }

// SetImage scopes the selection to another image, clearing it on change.
func (m *Manager) SetImage(imageID string) {
	if imageID == m.imageID {
		return
	}
	m.imageID = imageID
	m.Clear()
}

func (m *Manager) Clear() {
	m.ids = nil
	m.anchor = -1
}

// Click applies one click on the region at index in order (the image's ordered region ids).
func (m *Manager) Click(order []int, index int, mod Modifier) {
	if index < 0 || index >= len(order) {
		return
	}
	id := order[index]
	switch mod {
	case ModToggle:
		if i := m.position(id); i >= 0 {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
		} else {
			m.ids = append(m.ids, id)
		}
		m.anchor = index
	case ModRange:
		if m.anchor < 0 || m.anchor >= len(order) {
			m.ids = []int{id}
			m.anchor = index
			return
		}
		lo, hi := m.anchor, index
		if lo > hi {
			lo, hi = hi, lo
		}
		for _, rid := range order[lo : hi+1] {
			if m.position(rid) < 0 {
				m.ids = append(m.ids, rid)
			}
		}
	default:
		m.ids = []int{id}
		m.anchor = index
	}
}

// Selected returns the selected ids that still exist in order, in selection order.
func (m *Manager) Selected(order []int) []int {
	present := make(map[int]bool, len(order))
	for _, id := range order {
		present[id] = true
	}
	out := make([]int, 0, len(m.ids))
	for _, id := range m.ids {
		if present[id] {
			out = append(out, id)
		}
	}
	return out
}

// IDs returns the raw selection, including ids that may have been removed since.
func (m *Manager) IDs() []int {
	return append([]int(nil), m.ids...)
}

func (m *Manager) Contains(id int) bool { return m.position(id) >= 0 }

func (m *Manager) Anchor() int { return m.anchor }

func (m *Manager) Len() int { return len(m.ids) }

func (m *Manager) position(id int) int {
	for i, v := range m.ids {
		if v == id {
			return i
		}
	}
	return -1
}
