package car

import (
	"reflect"
	"testing"
)

func TestFloorSet(t *testing.T) {
	fs := newFloorSet(10)

	if fs.lowest() != -1 || fs.highest() != -1 {
		t.Fatalf("empty set lowest/highest = %d/%d, expected -1/-1", fs.lowest(), fs.highest())
	}
	if _, ok := fs.popLowest(); ok {
		t.Errorf("popLowest() on empty set returned ok")
	}

	for _, f := range []int{7, 3, 9, 3} {
		fs.add(f)
	}
	if fs.Len() != 3 {
		t.Errorf("Len() = %d, expected 3 after adding 3 twice", fs.Len())
	}
	if !fs.add(7) {
		t.Errorf("add(7) returned false, expected previous value true")
	}

	if got := fs.Ascending(); !reflect.DeepEqual(got, []int{3, 7, 9}) {
		t.Errorf("Ascending() = %v, expected [3 7 9]", got)
	}
	if got := fs.Descending(); !reflect.DeepEqual(got, []int{9, 7, 3}) {
		t.Errorf("Descending() = %v, expected [9 7 3]", got)
	}

	if f, _ := fs.popLowest(); f != 3 {
		t.Errorf("popLowest() = %d, expected 3", f)
	}
	if f, _ := fs.popHighest(); f != 9 {
		t.Errorf("popHighest() = %d, expected 9", f)
	}
	if fs.has(3) || fs.has(9) || !fs.has(7) {
		t.Errorf("after pops set = %v, expected only 7", fs.Ascending())
	}
	if fs.remove(0) {
		t.Errorf("remove(0) returned true for an absent floor")
	}
	if fs.Len() != 1 {
		t.Errorf("Len() = %d, expected 1", fs.Len())
	}
}

func TestFloorSetBounds(t *testing.T) {
	fs := newFloorSet(0)
	fs.add(0)
	if fs.lowest() != 0 || fs.highest() != 0 {
		t.Errorf("single floor set lowest/highest = %d/%d, expected 0/0", fs.lowest(), fs.highest())
	}
}
