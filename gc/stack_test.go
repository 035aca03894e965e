package gc

import "testing"

func TestWordHintsPushPop(t *testing.T) {
	var s WordHints
	s.Push(10)
	s.Push(20)
	s.Pop()
	s.Push(30)

	var got []uintptr
	s.Scan(func(w uintptr) {
		got = append(got, w)
	})
	if len(got) != 2 || got[0] != 10 || got[1] != 30 {
		t.Fatalf("scan visited %v, want [10 30]", got)
	}
}

func TestWordHintsAsShadowStack(t *testing.T) {
	hints := &WordHints{}
	h := newHeap(t, 10, hints)

	p := h.Alloc(2*WordBytes, 0)
	h.Store(p, 0, 11)
	hints.Push(p)

	// No global roots: only the shadow stack keeps p alive.
	h.Collect()

	if h.PageFree(pageOf(p)) {
		t.Fatal("shadow-stacked object lost")
	}
	if h.Load(p, 0) != 11 {
		t.Error("payload changed on the pinned page")
	}

	hints.Pop()
	h.Collect()
	if !h.PageFree(pageOf(p)) {
		t.Error("popped object survived collection")
	}
}

func TestMachineStackScanCoversRange(t *testing.T) {
	base := CurrentStackTop()
	s := NewMachineStack(base)

	visited := 0
	s.Scan(func(uintptr) {
		visited++
	})
	if visited == 0 {
		t.Fatal("machine stack scan visited no words")
	}
}

func TestCurrentStackTopNonZero(t *testing.T) {
	if CurrentStackTop() == 0 {
		t.Fatal("no stack top captured")
	}
}
