package service

import (
	"strings"

	"go.uber.org/zap"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/geometry"
	"github.com/my591234-max/autolabeling/internal/interaction"
	"github.com/my591234-max/autolabeling/internal/selection"
)

type BulkAction string

const (
	BulkApprove BulkAction = "approve"
	BulkFlag    BulkAction = "flag"
	BulkDelete  BulkAction = "delete"
	BulkLabel   BulkAction = "label"
)

func (e *Engine) SetMode(m interaction.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.SetMode(m)
}

func (e *Engine) SetZoom(z float64) error {
	if z <= 0 {
		return domain.Validation("zoom must be positive, got %v", z)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.SetZoom(z)
	return nil
}

func (e *Engine) SetDefaultLabel(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return domain.Validation("label must not be empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.SetDefaultLabel(label)
	return nil
}

// PointerDown, PointerMove and PointerUp take view-space coordinates on the
// displayed image's canvas.
func (e *Engine) PointerDown(p geometry.Point, mod selection.Modifier) interaction.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.PointerDown(p, mod)
}

func (e *Engine) PointerMove(p geometry.Point) interaction.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.PointerMove(p)
}

func (e *Engine) PointerUp(p geometry.Point) interaction.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.PointerUp(p)
}

// Regions returns the image's current regions in creation order.
func (e *Engine) Regions(imageID string) ([]domain.Region, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.image(imageID); !ok {
		return nil, domain.Validation("image %s not found", imageID)
	}
	return e.store.Get(imageID), nil
}

// Selected returns the selected region ids of the displayed image in click order.
func (e *Engine) Selected() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.Selected(regionIDs(e.store.Get(e.machine.ImageID())))
}

// ClearRegions deletes every region on the image as one history entry.
func (e *Engine) ClearRegions(imageID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.image(imageID); !ok {
		return domain.Validation("image %s not found", imageID)
	}
	e.finishOn(imageID)
	if len(e.store.Get(imageID)) == 0 {
		return nil
	}
	e.store.Replace(imageID, nil, false)
	if e.machine.ImageID() == imageID {
		e.sel.Clear()
	}
	e.log.Info("Regions cleared", zap.String("image", imageID))
	return nil
}

// ApplyToSelection changes every selected region of the displayed image
// with one history entry and returns how many were affected. Only delete
// clears the selection.
func (e *Engine) ApplyToSelection(action BulkAction, label string) (int, error) {
	label = strings.TrimSpace(label)
	switch action {
	case BulkApprove, BulkFlag, BulkDelete:
	case BulkLabel:
		if label == "" {
			return 0, domain.Validation("label must not be empty")
		}
	default:
		return 0, domain.Validation("unknown bulk action %q", action)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	imageID := e.machine.ImageID()
	if imageID == "" {
		return 0, domain.Validation("no image selected")
	}
	e.machine.Finish()

	regions := e.store.Get(imageID)
	selected := e.sel.Selected(regionIDs(regions))
	if len(selected) == 0 {
		return 0, nil
	}
	chosen := make(map[int]bool, len(selected))
	for _, id := range selected {
		chosen[id] = true
	}

	out := make([]domain.Region, 0, len(regions))
	for _, r := range regions {
		if !chosen[r.ID] {
			out = append(out, r)
			continue
		}
		switch action {
		case BulkApprove:
			r.Status = domain.StatusApproved
		case BulkFlag:
			r.Status = domain.StatusFlagged
		case BulkLabel:
			r.Label = label
		case BulkDelete:
			continue
		}
		out = append(out, r)
	}

	e.store.Replace(imageID, out, false)
	if action == BulkDelete {
		e.sel.Clear()
	}

	e.log.Info("Bulk action applied",
		zap.String("image", imageID),
		zap.String("action", string(action)),
		zap.Int("regions", len(selected)))

	return len(selected), nil
}

// SetRegionLabel renames one region, e.g. right after it was drawn.
func (e *Engine) SetRegionLabel(imageID string, regionID int, label string) (domain.Region, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return domain.Region{}, domain.Validation("label must not be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.image(imageID); !ok {
		return domain.Region{}, domain.Validation("image %s not found", imageID)
	}
	e.finishOn(imageID)

	regions := e.store.Get(imageID)
	idx := domain.IndexOf(regions, regionID)
	if idx < 0 {
		return domain.Region{}, domain.Validation("region %d not found on image %s", regionID, imageID)
	}
	if regions[idx].Label == label {
		return regions[idx], nil
	}
	regions[idx].Label = label
	e.store.Replace(imageID, regions, false)
	return regions[idx], nil
}

// Undo restores the previous committed state. A gesture in progress is
// committed first so that it is what gets undone.
func (e *Engine) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.Finish()
	snap, ok := e.history.Undo()
	if ok {
		e.restore(snap)
	}
	return ok
}

func (e *Engine) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.Finish()
	snap, ok := e.history.Redo()
	if ok {
		e.restore(snap)
	}
	return ok
}

// restore installs a history snapshot. Image removal is not undoable, so
// entries for images no longer imported are dropped.
func (e *Engine) restore(snap domain.RegionsByImage) {
	for id := range snap {
		if _, ok := e.image(id); !ok {
			delete(snap, id)
		}
	}
	e.store.Restore(snap)
}

// finishOn ends a gesture in progress on the given image.
func (e *Engine) finishOn(imageID string) {
	if e.machine.ImageID() == imageID {
		e.machine.Finish()
	}
}
