package detection

import (
	"sort"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/geometry"
)

// Candidate is one decoded detection before it becomes a region.
type Candidate struct {
	Index      int
	ClassID    int
	Label      string
	Confidence float64
	Box        geometry.Box
}

// SuppressPerClass runs greedy class-wise NMS. Candidates are ranked by
// confidence, ties by original index; a kept candidate suppresses every later
// candidate of the same class whose IoU exceeds iouThreshold. The result is
// in kept order (confidence descending).
func SuppressPerClass(candidates []Candidate, iouThreshold float64) []Candidate {
	order := make([]Candidate, len(candidates))
	copy(order, candidates)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Confidence != order[j].Confidence {
			return order[i].Confidence > order[j].Confidence
		}
		return order[i].Index < order[j].Index
	})

	suppressed := make([]bool, len(order))
	kept := make([]Candidate, 0, len(order))
	for i := range order {
		if suppressed[i] {
			continue
		}
		kept = append(kept, order[i])
		for j := i + 1; j < len(order); j++ {
			if suppressed[j] || order[j].ClassID != order[i].ClassID {
				continue
			}
			if geometry.IoU(order[i].Box, order[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// ToRegions converts candidates into auto regions with ids 1..n in the given order.
func ToRegions(candidates []Candidate) []domain.Region {
	regions := make([]domain.Region, 0, len(candidates))
	for i, c := range candidates {
		regions = append(regions, domain.Region{
			ID:         i + 1,
			Label:      c.Label,
			Confidence: c.Confidence,
			Status:     domain.StatusAuto,
			Box:        c.Box,
		})
	}
	return regions
}
