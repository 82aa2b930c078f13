package affect

import (
	"context"
	"testing"

	"github.com/pkg/errors"
)

func TestTargetManager_CreateGetDelete(t *testing.T) {
	tm := NewTargetManager(nil)

	hero, err := tm.CreateTarget("hero")
	if err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}
	if hero.ID() != "hero" {
		t.Errorf("Expected ID hero, got %s", hero.ID())
	}
	if _, err := tm.CreateTarget("hero"); !errors.Is(err, ErrTargetExists) {
		t.Errorf("Expected ErrTargetExists for duplicate ID, got %v", err)
	}

	got, ok := tm.GetTarget("hero")
	if !ok || got != hero {
		t.Error("Expected to get the created target")
	}

	if err := tm.DeleteTarget("hero"); err != nil {
		t.Errorf("DeleteTarget: %v", err)
	}
	if _, ok := tm.GetTarget("hero"); ok {
		t.Error("Expected target to be gone")
	}
	if err := tm.DeleteTarget("hero"); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Expected ErrTargetNotFound deleting a missing target, got %v", err)
	}
}

func TestTargetManager_CreateWithRandomID(t *testing.T) {
	tm := NewTargetManager(nil)
	a, err := tm.CreateTarget("")
	if err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}
	b, _ := tm.CreateTarget("")
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("Expected distinct random IDs, got %q and %q", a.ID(), b.ID())
	}
}

func TestTargetManager_ListTargetsSorted(t *testing.T) {
	tm := NewTargetManager(nil)
	for _, id := range []TargetID{"c", "a", "b"} {
		_, _ = tm.CreateTarget(id)
	}
	ids := tm.ListTargets()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("Expected [a b c], got %v", ids)
	}
}

func TestTargetManager_TargetsAreIsolated(t *testing.T) {
	tm := NewTargetManager(nil)
	a, _ := tm.CreateTarget("a")
	b, _ := tm.CreateTarget("b")
	ctx := context.Background()

	_, _ = a.Apply(ctx, water(2))
	if !b.State().IsEmpty() {
		t.Errorf("Expected b untouched, got %s", b.State())
	}
}

func TestTargetManager_ApplyBatch(t *testing.T) {
	tm := NewTargetManager(nil)
	_, _ = tm.CreateTarget("a")
	_, _ = tm.CreateTarget("b")

	items := []BatchItem{
		{TargetID: "a", Affect: NewAffect(Water, 4, Level4)},
		{TargetID: "b", Affect: fire(5)},
		{TargetID: "a", Affect: NewAffect(Fire, 2, Level2)},
		{TargetID: "missing", Affect: fire(1)},
		{TargetID: "a", Affect: NewAffect(Ice, 2, Level2)},
		{TargetID: "a", Affect: NewAffect(Elect, 5, Level4)},
	}
	results, err := tm.ApplyBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if len(results) != len(items) {
		t.Fatalf("Expected %d results, got %d", len(items), len(results))
	}
	if !errors.Is(results[3].Err, ErrTargetNotFound) {
		t.Errorf("Expected ErrTargetNotFound for missing target, got %v", results[3].Err)
	}
	for i, r := range results {
		if r.TargetID != items[i].TargetID {
			t.Errorf("Result %d belongs to %s, want %s", i, r.TargetID, items[i].TargetID)
		}
	}

	a, _ := tm.GetTarget("a")
	expectQuantities(t, a.State(), map[Kind]float64{Water: 0.2, Elect: 1})
	b, _ := tm.GetTarget("b")
	expectQuantities(t, b.State(), map[Kind]float64{Fire: 4})
}

func TestTargetManager_ApplyBatchCancelled(t *testing.T) {
	tm := NewTargetManager(nil)
	_, _ = tm.CreateTarget("a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tm.ApplyBatch(ctx, []BatchItem{{TargetID: "a", Affect: water(1)}}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestTargetManager_ApplyBatchMixesTimedAndUntimedItems(t *testing.T) {
	tm := NewTargetManager(nil)
	_, _ = tm.CreateTarget("a")

	at := 5.0
	items := []BatchItem{
		{TargetID: "a", Affect: NewAffect(Water, 4, Level4), Now: &at},
		{TargetID: "a", Affect: NewAffect(Fire, 2, Level2)},
	}
	results, err := tm.ApplyBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("Item %d failed: %v", i, r.Err)
		}
	}

	a, _ := tm.GetTarget("a")
	if a.Now() != 5 {
		t.Errorf("Expected clock at 5, got %g", a.Now())
	}
	expectQuantities(t, a.State(), map[Kind]float64{Water: 2.2})
}

func TestTargetManager_SetNotificationManagerReachesNewTargets(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()
	sink := &mockNotifier{id: "sink"}
	_ = nm.RegisterNotifier(sink)

	tm := NewTargetManager(nil)
	tm.SetNotificationManager(nm, "sink")
	target, _ := tm.CreateTarget("late")
	_, _ = target.Apply(context.Background(), fire(1))

	waitFor(t, func() bool { return sink.getNotifyCount() == 1 })
}
