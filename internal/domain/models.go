package domain

import (
	"time"

	"github.com/my591234-max/autolabeling/internal/geometry"
)

type Image struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	ImportedAt  time.Time `json:"imported_at"`
}

// Status records where a region came from and what the curator decided.
type Status string

const (
	StatusAuto     Status = "auto"
	StatusApproved Status = "approved"
	StatusFlagged  Status = "flagged"
	StatusManual   Status = "manual"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAuto, StatusApproved, StatusFlagged, StatusManual:
		return true
	}
	return false
}

type Region struct {
	ID         int          `json:"id"`
	Label      string       `json:"label"`
	Confidence float64      `json:"confidence"`
	Status     Status       `json:"status"`
	Box        geometry.Box `json:"box"`
}

// RegionsByImage maps an image id to its regions in creation order.
type RegionsByImage map[string][]Region

// Clone returns a deep copy. Regions hold no pointers so copying the slices is enough.
func (m RegionsByImage) Clone() RegionsByImage {
	out := make(RegionsByImage, len(m))
	for id, regions := range m {
		out[id] = CloneRegions(regions)
	}
	return out
}

func CloneRegions(regions []Region) []Region {
	if regions == nil {
		return nil
	}
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}

// IndexOf returns the position of the region with the given id, or -1.
func IndexOf(regions []Region, id int) int {
	for i, r := range regions {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// NextRegionID returns an id not used by any region in the list.
func NextRegionID(regions []Region) int {
	next := 1
	for _, r := range regions {
		if r.ID >= next {
			next = r.ID + 1
		}
	}
	return next
}
