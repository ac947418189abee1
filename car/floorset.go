package car

// FloorSet holds the on/off state of floors 0..maxFloor. Not safe for concurrent use; the car lock guards it.
type FloorSet struct {
	set   []bool
	count int
}

func newFloorSet(maxFloor int) *FloorSet {
	return &FloorSet{set: make([]bool, maxFloor+1)}
}

// add marks floor and returns the previous value.
func (fs *FloorSet) add(floor int) bool {
	prev := fs.set[floor]
	if !prev {
		fs.set[floor] = true
		fs.count++
	}
	return prev
}

func (fs *FloorSet) remove(floor int) bool {
	prev := fs.set[floor]
	if prev {
		fs.set[floor] = false
		fs.count--
	}
	return prev
}

func (fs *FloorSet) has(floor int) bool {
	return fs.set[floor]
}

func (fs *FloorSet) Len() int {
	return fs.count
}

// lowest returns -1 when the set is empty.
func (fs *FloorSet) lowest() int {
	for i := 0; i < len(fs.set); i++ {
		if fs.set[i] {
			return i
		}
	}
	return -1
}

func (fs *FloorSet) highest() int {
	for i := len(fs.set) - 1; i >= 0; i-- {
		if fs.set[i] {
			return i
		}
	}
	return -1
}

func (fs *FloorSet) popLowest() (int, bool) {
	f := fs.lowest()
	if f < 0 {
		return 0, false
	}
	fs.remove(f)
	return f, true
}

func (fs *FloorSet) popHighest() (int, bool) {
	f := fs.highest()
	if f < 0 {
		return 0, false
	}
	fs.remove(f)
	return f, true
}

// Ascending lists the floors in the set, lowest first.
func (fs *FloorSet) Ascending() []int {
	out := make([]int, 0, fs.count)
	for i, on := range fs.set {
		if on {
			out = append(out, i)
		}
	}
	return out
}

func (fs *FloorSet) Descending() []int {
	out := make([]int, 0, fs.count)
	for i := len(fs.set) - 1; i >= 0; i-- {
		if fs.set[i] {
			out = append(out, i)
		}
	}
	return out
}
