package selection

import (
	"reflect"
	"testing"
)

var order = []int{10, 11, 12, 13, 14}

func TestManager_RangeSelection(t *testing.T) {
	m := New()
	m.SetImage("a")
	m.Click(order, 1, ModNone)
	m.Click(order, 3, ModRange)
	if got := m.Selected(order); !reflect.DeepEqual(got, []int{11, 12, 13}) {
		t.Fatalf("expected r1..r3, got %v", got)
	}
	if m.Anchor() != 1 {
		t.Fatalf("range click must not move the anchor, got %d", m.Anchor())
	}
}

func TestManager_RangeBackwardsUnions(t *testing.T) {
	m := New()
	m.Click(order, 4, ModNone)
	m.Click(order, 0, ModToggle)
	m.Click(order, 2, ModRange)
	if got := m.Selected(order); !reflect.DeepEqual(got, []int{14, 10, 11, 12}) {
		t.Fatalf("unexpected union %v", got)
	}
}

func TestManager_PlainClickReplaces(t *testing.T) {
	m := New()
	m.Click(order, 0, ModNone)
	m.Click(order, 2, ModToggle)
	m.Click(order, 4, ModNone)
	if got := m.Selected(order); !reflect.DeepEqual(got, []int{14}) {
		t.Fatalf("expected {r4}, got %v", got)
	}
	if m.Anchor() != 4 {
		t.Fatalf("expected anchor 4, got %d", m.Anchor())
	}
}

func TestManager_ToggleAddsAndRemoves(t *testing.T) {
	m := New()
	m.Click(order, 1, ModToggle)
	m.Click(order, 3, ModToggle)
	m.Click(order, 1, ModToggle)
	if got := m.Selected(order); !reflect.DeepEqual(got, []int{13}) {
		t.Fatalf("expected {r3}, got %v", got)
	}
	if m.Anchor() != 1 {
		t.Fatalf("toggle should move the anchor, got %d", m.Anchor())
	}
}

func TestManager_RangeWithoutAnchorActsAsPlain(t *testing.T) {
	m := New()
	m.Click(order, 2, ModRange)
	if got := m.Selected(order); !reflect.DeepEqual(got, []int{12}) || m.Anchor() != 2 {
		t.Fatalf("unexpected selection %v anchor %d", got, m.Anchor())
	}
}

func TestManager_ClearedOnImageChange(t *testing.T) {
	m := New()
	m.SetImage("a")
	m.Click(order, 0, ModNone)
	m.SetImage("a")
	if m.Len() != 1 {
		t.Fatalf("same image must keep the selection")
	}
	m.SetImage("b")
	if m.Len() != 0 || m.Anchor() != -1 {
		t.Fatalf("changing image must clear the selection")
	}
}

func TestManager_SelectedSkipsRemovedIDs(t *testing.T) {
	m := New()
	m.Click(order, 0, ModNone)
	m.Click(order, 1, ModToggle)
	if got := m.Selected([]int{11}); !reflect.DeepEqual(got, []int{11}) {
		t.Fatalf("expected only surviving ids, got %v", got)
	}
}
