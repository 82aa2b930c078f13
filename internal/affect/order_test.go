package affect

import (
	"reflect"
	"testing"
)

func TestResolveOrderSmallStates(t *testing.T) {
	order, ok := ResolveOrder(State{}, Fire)
	if !ok || len(order) != 0 {
		t.Errorf("Expected empty order for empty state, got %v %v", order, ok)
	}

	order, ok = ResolveOrder(mustState(t, water(1)), Fire)
	if !ok || !reflect.DeepEqual(order, []Kind{Water}) {
		t.Errorf("Expected [Water], got %v %v", order, ok)
	}
}

func TestResolveOrderTable(t *testing.T) {
	waterElect := mustState(t, water(1), elect(1))
	waterFreeze := mustState(t, water(1), NewFreeze(1, 0))
	iceFreeze := mustState(t, ice(1), NewFreeze(1, 0))

	tests := []struct {
		name     string
		state    State
		incoming Kind
		want     []Kind
	}{
		{"water-elect ice", waterElect, Ice, []Kind{Elect, Water}},
		{"water-elect fire", waterElect, Fire, []Kind{Elect, Water}},
		{"water-elect wind", waterElect, Wind, []Kind{Elect, Water}},
		{"water-elect rock", waterElect, Rock, []Kind{Elect, Water}},
		{"water-freeze ice", waterFreeze, Ice, []Kind{Water}},
		{"water-freeze fire", waterFreeze, Fire, []Kind{Freeze}},
		{"water-freeze elect", waterFreeze, Elect, []Kind{Freeze}},
		{"water-freeze wind", waterFreeze, Wind, []Kind{Water, Freeze}},
		{"water-freeze rock", waterFreeze, Rock, []Kind{Freeze, Water}},
		{"ice-freeze water", iceFreeze, Water, []Kind{Ice}},
		{"ice-freeze fire", iceFreeze, Fire, []Kind{Ice, Freeze}},
		{"ice-freeze elect", iceFreeze, Elect, []Kind{Ice, Freeze}},
		{"ice-freeze wind", iceFreeze, Wind, []Kind{Ice, Freeze}},
		{"ice-freeze rock", iceFreeze, Rock, []Kind{Freeze, Ice}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveOrder(tt.state, tt.incoming)
			if !ok {
				t.Fatalf("Expected an order")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestResolveOrderUnhandled(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		incoming Kind
	}{
		{"pair not in table", mustState(t, fire(1), rock(1)), Water},
		{"incoming not listed", mustState(t, water(1), elect(1)), Water},
		{"grass not listed", mustState(t, ice(1), NewFreeze(1, 0)), Grass},
		{"three affects", mustState(t, water(1), elect(1), fire(1)), Ice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if order, ok := ResolveOrder(tt.state, tt.incoming); ok {
				t.Errorf("Expected no order, got %v", order)
			}
		})
	}
}

func TestResolveOrderReturnsCopy(t *testing.T) {
	s := mustState(t, water(1), elect(1))
	got, _ := ResolveOrder(s, Ice)
	got[0] = Grass
	again, _ := ResolveOrder(s, Ice)
	if again[0] != Elect {
		t.Error("Order table was mutated through a returned slice")
	}
}
