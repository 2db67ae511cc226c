// Package store holds the authoritative per-image region lists.
package store

import (
	"sync"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/geometry"
)

// Committer receives a snapshot for every committed mutation.
type Committer interface {
	Push(snapshot domain.RegionsByImage)
}

type ChangeKind int

const (
	ChangeReplace ChangeKind = iota
	ChangeTransient
	ChangeCommit
	ChangeRemove
	ChangeRestore
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeReplace:
		return "replace"
	case ChangeTransient:
		return "transient"
	case ChangeCommit:
		return "commit"
	case ChangeRemove:
		return "remove"
	case ChangeRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Change describes one store call. ImageIDs is empty for whole-store changes.
type Change struct {
	Kind     ChangeKind
	ImageIDs []string
}

type Listener func(Change)

type size struct{ w, h float64 }

// RegionStore is a single-writer structure. The mutex only protects readers
// (renderer, exporters) against a concurrent commit.
//
// regions is the live state, including frames of a gesture in progress.
// committed is what history sees: a transient replace touches only the live
// map, so a commit on another image never captures an unfinished gesture.
type RegionStore struct {
	mu        sync.RWMutex
	regions   domain.RegionsByImage
	committed domain.RegionsByImage
	bounds    map[string]size
	committer Committer
	dirty     map[string]bool
	listeners []Listener
}

func New(committer Committer) *RegionStore {
	return &RegionStore{
		regions:   domain.RegionsByImage{},
		committed: domain.RegionsByImage{},
		bounds:    map[string]size{},
		committer: committer,
		dirty:     map[string]bool{},
	}
}

// SetBounds registers the pixel size used to clamp an image's regions.
func (s *RegionStore) SetBounds(imageID string, width, height int) {
	s.mu.Lock()
	s.bounds[imageID] = size{w: float64(width), h: float64(height)}
	s.mu.Unlock()
}

func (s *RegionStore) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Get returns a copy of the image's live regions in order; empty if absent.
func (s *RegionStore) Get(imageID string) []domain.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regions := s.regions[imageID]
	if len(regions) == 0 {
		return []domain.Region{}
	}
	return domain.CloneRegions(regions)
}

// Snapshot returns a deep copy of every image's live regions.
func (s *RegionStore) Snapshot() domain.RegionsByImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regions.Clone()
}

// Committed returns a deep copy of the state as of the last snapshot.
func (s *RegionStore) Committed() domain.RegionsByImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed.Clone()
}

// Replace swaps the image's list. A transient replace defers the history
// snapshot until Commit; anything else commits one snapshot right away.
// A committed replace of an image with a pending gesture discards the gesture.
func (s *RegionStore) Replace(imageID string, regions []domain.Region, transient bool) {
	s.mu.Lock()
	clamped := s.clamp(imageID, regions)
	s.regions[imageID] = clamped
	kind := ChangeReplace
	if transient {
		s.dirty[imageID] = true
		kind = ChangeTransient
	} else {
		s.settle(imageID, clamped)
		s.push()
	}
	s.mu.Unlock()
	s.notify(Change{Kind: kind, ImageIDs: []string{imageID}})
}

// ReplaceMany swaps several lists and commits them as one snapshot.
func (s *RegionStore) ReplaceMany(lists domain.RegionsByImage) {
	ids := make([]string, 0, len(lists))
	s.mu.Lock()
	for id, regions := range lists {
		clamped := s.clamp(id, regions)
		s.regions[id] = clamped
		s.settle(id, clamped)
		ids = append(ids, id)
	}
	s.push()
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeReplace, ImageIDs: ids})
}

// Commit ends pending transient gestures with a single snapshot. It reports
// false when none is pending.
func (s *RegionStore) Commit() bool {
	s.mu.Lock()
	if len(s.dirty) == 0 {
		s.mu.Unlock()
		return false
	}
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		s.settle(id, s.regions[id])
		ids = append(ids, id)
	}
	s.push()
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeCommit, ImageIDs: ids})
	return true
}

// Remove drops the image's entry and bounds, committing one snapshot.
func (s *RegionStore) Remove(imageID string) {
	s.mu.Lock()
	delete(s.regions, imageID)
	delete(s.committed, imageID)
	delete(s.bounds, imageID)
	delete(s.dirty, imageID)
	s.push()
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeRemove, ImageIDs: []string{imageID}})
}

// Restore installs a snapshot without touching history (undo/redo). Pending
// gestures are discarded.
func (s *RegionStore) Restore(snapshot domain.RegionsByImage) {
	s.mu.Lock()
	s.regions = snapshot.Clone()
	s.committed = snapshot.Clone()
	s.dirty = map[string]bool{}
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeRestore})
}

// settle copies a live list into the committed state.
func (s *RegionStore) settle(imageID string, regions []domain.Region) {
	s.committed[imageID] = domain.CloneRegions(regions)
	delete(s.dirty, imageID)
}

func (s *RegionStore) push() {
	if s.committer != nil {
		s.committer.Push(s.committed)
	}
}

// clamp copies the list, keeping every box inside the image and dropping
// regions left without area.
func (s *RegionStore) clamp(imageID string, regions []domain.Region) []domain.Region {
	b, ok := s.bounds[imageID]
	out := make([]domain.Region, 0, len(regions))
	for _, r := range regions {
		if ok {
			r.Box = geometry.Clip(r.Box, b.w, b.h)
		}
		if r.Box.W <= 0 || r.Box.H <= 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *RegionStore) notify(c Change) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l(c)
	}
}
