package store

import (
	"testing"

	"github.com/my591234-max/autolabeling/internal/domain"
	"github.com/my591234-max/autolabeling/internal/geometry"
)

type recordingCommitter struct{ snapshots []domain.RegionsByImage }

func (c *recordingCommitter) Push(s domain.RegionsByImage) {
	c.snapshots = append(c.snapshots, s.Clone())
}

func region(id int, b geometry.Box) domain.Region {
	return domain.Region{ID: id, Label: "car", Confidence: 0.9, Status: domain.StatusAuto, Box: b}
}

func TestRegionStore_GetMissingIsEmpty(t *testing.T) {
	s := New(nil)
	if got := s.Get("nope"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", got)
	}
}

func TestRegionStore_ReplaceCommitsOneSnapshot(t *testing.T) {
	c := &recordingCommitter{}
	s := New(c)
	s.SetBounds("a", 100, 100)
	s.Replace("a", []domain.Region{region(1, geometry.Box{X: 1, Y: 1, W: 10, H: 10})}, false)
	if len(c.snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(c.snapshots))
	}
	if len(c.snapshots[0]["a"]) != 1 {
		t.Fatalf("snapshot missing region")
	}
}

func TestRegionStore_TransientDefersUntilCommit(t *testing.T) {
	c := &recordingCommitter{}
	s := New(c)
	s.SetBounds("a", 100, 100)
	for i := 0; i < 5; i++ {
		s.Replace("a", []domain.Region{region(1, geometry.Box{X: float64(i), Y: 0, W: 10, H: 10})}, true)
	}
	if len(c.snapshots) != 0 {
		t.Fatalf("transient replaces must not snapshot, got %d", len(c.snapshots))
	}
	if !s.Commit() {
		t.Fatalf("commit should report a pending change")
	}
	if len(c.snapshots) != 1 || c.snapshots[0]["a"][0].Box.X != 4 {
		t.Fatalf("expected single snapshot with final box, got %v", c.snapshots)
	}
	if s.Commit() {
		t.Fatalf("second commit without changes should be a no-op")
	}
}

func TestRegionStore_ClampsOnMutation(t *testing.T) {
	s := New(nil)
	s.SetBounds("a", 50, 40)
	s.Replace("a", []domain.Region{
		region(1, geometry.Box{X: -5, Y: 30, W: 20, H: 20}),
		region(2, geometry.Box{X: 60, Y: 0, W: 10, H: 10}),
	}, false)
	got := s.Get("a")
	if len(got) != 1 {
		t.Fatalf("region outside the image should be dropped, got %v", got)
	}
	if got[0].Box != (geometry.Box{X: 0, Y: 30, W: 15, H: 10}) {
		t.Fatalf("unexpected clamped box %v", got[0].Box)
	}
}

func TestRegionStore_NotifiesSynchronously(t *testing.T) {
	s := New(nil)
	var kinds []ChangeKind
	s.Subscribe(func(c Change) { kinds = append(kinds, c.Kind) })
	s.Replace("a", nil, true)
	s.Commit()
	s.Replace("a", nil, false)
	s.Remove("a")
	s.Restore(domain.RegionsByImage{})
	want := []ChangeKind{ChangeTransient, ChangeCommit, ChangeReplace, ChangeRemove, ChangeRestore}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}
}

func TestRegionStore_ReplaceManyIsOneSnapshot(t *testing.T) {
	c := &recordingCommitter{}
	s := New(c)
	s.ReplaceMany(domain.RegionsByImage{
		"a": {region(1, geometry.Box{W: 5, H: 5})},
		"b": {region(1, geometry.Box{W: 5, H: 5})},
	})
	if len(c.snapshots) != 1 || len(c.snapshots[0]) != 2 {
		t.Fatalf("expected one snapshot covering both images, got %v", c.snapshots)
	}
}

func TestRegionStore_GetReturnsCopy(t *testing.T) {
	s := New(nil)
	s.Replace("a", []domain.Region{region(1, geometry.Box{W: 5, H: 5})}, false)
	got := s.Get("a")
	got[0].Label = "changed"
	if s.Get("a")[0].Label != "car" {
		t.Fatalf("Get must not expose internal storage")
	}
}

func TestRegionStore_CommitElsewhereKeepsGesturePending(t *testing.T) {
	c := &recordingCommitter{}
	s := New(c)
	s.SetBounds("a", 1000, 500)
	s.SetBounds("b", 1000, 500)
	s.Replace("a", []domain.Region{region(1, geometry.Box{X: 100, Y: 100, W: 50, H: 50})}, false)

	s.Replace("a", []domain.Region{region(1, geometry.Box{X: 200, Y: 100, W: 50, H: 50})}, true)
	s.Replace("b", []domain.Region{region(1, geometry.Box{X: 10, Y: 10, W: 20, H: 20})}, false)
	if got := c.snapshots[1]["a"][0].Box.X; got != 100 {
		t.Fatalf("commit on b must not capture a's unfinished gesture, got x=%v", got)
	}
	if got := s.Get("a")[0].Box.X; got != 200 {
		t.Fatalf("live state must keep the gesture frame, got x=%v", got)
	}
	if got := s.Committed()["a"][0].Box.X; got != 100 {
		t.Fatalf("committed state must hold the pre-gesture box, got x=%v", got)
	}

	s.Replace("a", []domain.Region{region(1, geometry.Box{X: 300, Y: 100, W: 50, H: 50})}, true)
	if !s.Commit() {
		t.Fatalf("gesture on a should still be pending")
	}
	last := c.snapshots[len(c.snapshots)-1]
	if len(c.snapshots) != 3 || last["a"][0].Box.X != 300 || len(last["b"]) != 1 {
		t.Fatalf("expected the gesture to commit on top of b's change, got %v", c.snapshots)
	}
}

func TestRegionStore_RestoreDropsPendingGesture(t *testing.T) {
	c := &recordingCommitter{}
	s := New(c)
	s.Replace("a", []domain.Region{region(1, geometry.Box{W: 5, H: 5})}, true)
	s.Restore(domain.RegionsByImage{})
	if s.Commit() {
		t.Fatalf("restore must discard the pending gesture")
	}
	if len(s.Get("a")) != 0 || len(c.snapshots) != 0 {
		t.Fatalf("unexpected state after restore")
	}
}
