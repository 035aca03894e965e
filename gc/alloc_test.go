package gc

import "testing"

// mustPanicFatal runs f and returns the *FatalError it panics with.
func mustPanicFatal(t *testing.T, kind FailureKind, f func()) *FatalError {
	t.Helper()
	var fatal *FatalError
	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatalf("expected a %v fatal error, got none", kind)
			}
			fe, ok := r.(*FatalError)
			if !ok {
				panic(r)
			}
			fatal = fe
		}()
		f()
	}()
	if fatal.Kind != kind {
		t.Fatalf("expected a %v fatal error, got %v", kind, fatal)
	}
	return fatal
}

func newHeap(t *testing.T, pages int, scanner StackScanner, roots ...*Pointer) *Heap {
	t.Helper()
	h, err := New(pages*PageBytes, scanner, roots...)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestAllocSingleObject(t *testing.T) {
	h := newHeap(t, 10, nil)

	p := h.Alloc(50, 2)
	if p == Null {
		t.Fatal("expected an object")
	}
	if p%PageWords < 1 {
		t.Fatalf("object at %d overlaps a page boundary", p)
	}
	// 50 bytes round up to 7 words, plus the header.
	if words := h.Size(p) + 1; words != 8 {
		t.Errorf("object size is %d words, want 8", words)
	}
	if ptrs := h.Ptrs(p); ptrs != 2 {
		t.Errorf("object has %d pointer slots, want 2", ptrs)
	}
	hdr := h.words[p-1]
	if forwarded(hdr) {
		t.Error("fresh object header reads as forwarded")
	}
	if h.LoadPtr(p, 0) != Null || h.LoadPtr(p, 1) != Null {
		t.Error("pointer slots not nulled")
	}
}

func TestAllocZeroBytes(t *testing.T) {
	h := newHeap(t, 10, nil)

	p := h.Alloc(0, 0)
	if p == Null {
		t.Fatal("expected an object")
	}
	if h.Size(p) != 1 {
		t.Errorf("empty object has %d user words, want 1", h.Size(p))
	}
}

func TestAllocDistinctObjects(t *testing.T) {
	h := newHeap(t, 10, nil)

	a := h.Alloc(8, 0)
	b := h.Alloc(8, 0)
	if a == b {
		t.Fatal("two allocations share an address")
	}
	h.Store(a, 0, 1)
	h.Store(b, 0, 2)
	if h.Load(a, 0) != 1 || h.Load(b, 0) != 2 {
		t.Error("objects alias each other")
	}
}

func TestAllocSealsFullPage(t *testing.T) {
	h := newHeap(t, 10, nil)

	// 30 bytes is 4 user words, 5 with the header: 12 objects fill 60 of
	// the 64 page words.
	var objs []Pointer
	for i := 0; i < 12; i++ {
		objs = append(objs, h.Alloc(30, 0))
	}
	firstPage := pageOf(objs[0])
	if pageOf(objs[11]) != firstPage {
		t.Fatalf("first 12 objects span pages %d and %d", firstPage, pageOf(objs[11]))
	}

	// The 13th does not fit in the 4 leftover words, so the page is
	// sealed with a filler header and the object starts a new page.
	p := h.Alloc(30, 0)
	if pageOf(p) == firstPage {
		t.Fatal("13th object landed on the full page")
	}
	filler := h.words[pageBase(firstPage)+60]
	if forwarded(filler) || headerWords(filler) != 4 || headerPtrs(filler) != 0 {
		t.Errorf("sealed page leftover holds %#x, want a 4 word filler header", filler)
	}
}

func TestAllocPointerCountBounds(t *testing.T) {
	h := newHeap(t, 10, nil)

	mustPanicFatal(t, BadPointer, func() {
		h.Alloc(8, 2) // one word of user data cannot hold two pointers
	})
	mustPanicFatal(t, BadPointer, func() {
		h.Alloc(-1, 0)
	})
}

func TestAllocOversizedObject(t *testing.T) {
	h := newHeap(t, 10, nil)

	mustPanicFatal(t, OversizedObject, func() {
		h.Alloc(11*PageBytes, 0)
	})
}

func TestAllocMultiPage(t *testing.T) {
	h := newHeap(t, 16, nil)

	// 100 user words need 101 with the header: a two page run.
	p := h.Alloc(100*WordBytes, 0)
	base := pageOf(p)
	if h.PageKindOf(base) != PageObject {
		t.Errorf("base page is %v, want object", h.PageKindOf(base))
	}
	if h.PageKindOf(base+1) != PageContinued {
		t.Errorf("second page is %v, want continued", h.PageKindOf(base+1))
	}
	if h.PageFree(base) || h.PageFree(base+1) {
		t.Error("pages of a live object read as free")
	}
	// The run is claimed whole; the next allocation starts elsewhere.
	q := h.Alloc(8, 0)
	if pageOf(q) == base || pageOf(q) == base+1 {
		t.Errorf("new object at %d landed inside the multi-page run", q)
	}
}

func TestAllocTriggersCollection(t *testing.T) {
	h := newHeap(t, 10, nil)

	// Unrooted full-page objects: crossing the half-heap watermark must
	// run at least one collection (which reclaims all of them).
	for i := 0; i < 12; i++ {
		h.Alloc(PageBytes-WordBytes, 0)
	}
	var m MemStats
	h.ReadMemStats(&m)
	if m.NumGC == 0 {
		t.Fatal("watermark crossing did not collect")
	}
}

func TestAllocHeapExhausted(t *testing.T) {
	var roots [3]Pointer
	h := newHeap(t, 8, nil, &roots[0], &roots[1], &roots[2])

	// Three live full-page objects occupy 3 of an 8 page heap; a fourth
	// page would reach the half-heap watermark and can never be granted.
	for i := range roots {
		roots[i] = h.Alloc(PageBytes-WordBytes, 0)
	}
	mustPanicFatal(t, HeapExhausted, func() {
		h.Alloc(PageBytes-WordBytes, 0)
	})
}

func TestNewRejectsTinyHeap(t *testing.T) {
	if _, err := New(PageBytes, nil); err == nil {
		t.Fatal("expected an error for a one page heap")
	}
}

func TestNewNullsRootCells(t *testing.T) {
	cell := Pointer(12345)
	newHeap(t, 10, nil, &cell)
	if cell != Null {
		t.Fatalf("root cell holds %d after init, want null", cell)
	}
}
