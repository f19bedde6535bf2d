package dcache

import "testing"

// Test the tree-bit encoding for a 4-way set: touching ways 0,1,2,3 in order
// from a cleared tree must leave way 0 as the victim.
func TestPLRUTouchEncoding(t *testing.T) {
	tests := []struct {
		name       string
		touchWay   int
		wantTree   plruTree
		wantVictim int
	}{
		{name: "touch way 0", touchWay: 0, wantTree: 0b011, wantVictim: 2},
		{name: "touch way 1", touchWay: 1, wantTree: 0b001, wantVictim: 2},
		{name: "touch way 2", touchWay: 2, wantTree: 0b100, wantVictim: 1},
		{name: "touch way 3", touchWay: 3, wantTree: 0b000, wantVictim: 0},
	}

	var tree plruTree
	for _, tt := range tests {
		tree = tree.touch(4, tt.touchWay)
		if tree != tt.wantTree {
			t.Errorf("%s: tree = %03b, want %03b", tt.name, tree, tt.wantTree)
		}
		if got := tree.victim(4); got != tt.wantVictim {
			t.Errorf("%s: victim = %d, want %d", tt.name, got, tt.wantVictim)
		}
	}
}

// A cold 4-way set fills ways in the order 0, 2, 1, 3 when the tree is
// updated after each install.
func TestPLRUFillOrder(t *testing.T) {
	var tree plruTree
	wantOrder := []int{0, 2, 1, 3}

	for i, want := range wantOrder {
		got := tree.victim(4)
		if got != want {
			t.Fatalf("install %d: victim = %d, want %d", i, got, want)
		}
		tree = tree.touch(4, got)
	}

	// The cycle closes: the next victim is the first way again.
	if got := tree.victim(4); got != 0 {
		t.Errorf("after full fill: victim = %d, want 0", got)
	}
}

func TestPLRUDirectMapped(t *testing.T) {
	var tree plruTree
	if got := tree.victim(1); got != 0 {
		t.Errorf("victim = %d, want 0", got)
	}
	if got := tree.touch(1, 0); got != 0 {
		t.Errorf("touch changed tree to %b, want 0", got)
	}
}

func TestPLRUTwoWay(t *testing.T) {
	var tree plruTree

	tree = tree.touch(2, 0)
	if tree != 0b1 {
		t.Fatalf("tree after touch(0) = %b, want 1", tree)
	}
	if got := tree.victim(2); got != 1 {
		t.Errorf("victim = %d, want 1", got)
	}

	tree = tree.touch(2, 1)
	if tree != 0b0 {
		t.Fatalf("tree after touch(1) = %b, want 0", tree)
	}
	if got := tree.victim(2); got != 0 {
		t.Errorf("victim = %d, want 0", got)
	}
}
