package gc

import "fmt"

// A Heap is one independently collected arena. All state lives on the
// instance so a host (or a test) can run several heaps side by side.
type Heap struct {
	// words is the arena. Page 0 is reserved dead space so that Null and
	// small integers never alias heap storage; usable pages run from
	// firstPage through lastPage.
	words []uintptr

	firstPage int // page number of the first heap page (always 1)
	lastPage  int // page number of the last heap page
	heapPages int // number of usable pages

	// Per-page metadata, indexed by idx(page). A page belongs to the space
	// its tag names, or to no space at all (spaceFree, or a stale tag from
	// an abandoned collection epoch).
	space    []uint16
	pageKind []PageKind
	link     []int

	// Promotion queue, threaded through link. nilPage marks the empty
	// queue; page 0 is never a valid heap page so the sentinel cannot
	// collide.
	queueHead int
	queueTail int

	currentSpace uint16
	nextSpace    uint16

	freeWords      int     // words left on the current allocation page
	freeWord       Pointer // first free word on the current allocation page
	allocatedPages int     // pages allocated in the forming space
	freePage       int     // rotating search cursor for free pages

	roots   []*Pointer
	scanner StackScanner

	// Allocation and collection counters, reported by ReadMemStats.
	mallocs    uint64
	totalAlloc uint64
	numGC      uint64
}

// nilPage is the empty-queue sentinel.
const nilPage = 0

// New constructs a heap of heapBytes rounded down to whole pages. The scanner
// supplies conservative stack hints at collection time; it may be nil, in
// which case only the registered global roots keep objects alive. Every root
// cell is nulled out here.
func New(heapBytes int, scanner StackScanner, roots ...*Pointer) (*Heap, error) {
	pages := heapBytes / PageBytes
	if pages < 2 {
		return nil, &FatalError{Kind: HeapExhausted,
			Msg: fmt.Sprintf("heap of %d bytes is smaller than two pages", heapBytes)}
	}
	h := &Heap{
		words:     make([]uintptr, (pages+1)*PageWords),
		firstPage: 1,
		lastPage:  pages,
		heapPages: pages,
		space:     make([]uint16, pages),
		pageKind:  make([]PageKind, pages),
		link:      make([]int, pages),
		scanner:   scanner,

		currentSpace: 1,
		nextSpace:    1,
		queueHead:    nilPage,
	}
	h.freePage = h.firstPage
	for _, cell := range roots {
		h.AddRoot(cell)
	}
	return h, nil
}

// AddRoot registers a global root cell: a location whose contents is always
// an exact managed pointer. The collector rewrites the cell in place when the
// object it names moves. The cell is nulled on registration.
func (h *Heap) AddRoot(cell *Pointer) {
	*cell = Null
	h.roots = append(h.roots, cell)
}

// idx converts an absolute page number to a metadata array index.
func (h *Heap) idx(page int) int {
	if gcAsserts && (page < h.firstPage || page > h.lastPage) {
		h.fatal(BadPointer, "page %d outside heap [%d, %d]", page, h.firstPage, h.lastPage)
	}
	return page - h.firstPage
}

// pageOf returns the page number holding the word offset p.
func pageOf(p Pointer) int {
	return int(p / PageWords)
}

// pageBase returns the offset of the first word of a page.
func pageBase(page int) Pointer {
	return Pointer(page * PageWords)
}

// nextPage advances a page cursor with wraparound.
func (h *Heap) nextPage(page int) int {
	if page == h.lastPage {
		return h.firstPage
	}
	return page + 1
}

// inHeap reports whether page is a valid heap page number.
func (h *Heap) inHeap(page int) bool {
	return page >= h.firstPage && page <= h.lastPage
}

// enqueue appends a page to the promotion queue. A page is enqueued at most
// once per collection: only on its current-to-next space transition.
func (h *Heap) enqueue(page int) {
	if gcAsserts && page == h.queueTail && h.queueHead != nilPage {
		h.fatal(BadPointer, "page %d enqueued twice", page)
	}
	if h.queueHead != nilPage {
		h.link[h.idx(h.queueTail)] = page
	} else {
		h.queueHead = page
	}
	h.link[h.idx(page)] = nilPage
	h.queueTail = page
}

// Load reads user word i of the object at p. Pointer words occupy the first
// Ptrs(p) indices; the words after them are untyped payload.
func (h *Heap) Load(p Pointer, i int) uintptr {
	h.checkAccess(p, i)
	return h.words[p+Pointer(i)]
}

// Store writes user word i of the object at p. Storing a managed pointer into
// a non-pointer word hides it from the collector; use StorePtr for the
// leading pointer slots.
func (h *Heap) Store(p Pointer, i int, v uintptr) {
	h.checkAccess(p, i)
	h.words[p+Pointer(i)] = v
}

// LoadPtr reads pointer slot i of the object at p.
func (h *Heap) LoadPtr(p Pointer, i int) Pointer {
	if gcAsserts && i >= h.Ptrs(p) {
		h.fatal(BadPointer, "pointer slot %d of object at %d with %d pointer slots", i, p, h.Ptrs(p))
	}
	return Pointer(h.Load(p, i))
}

// StorePtr writes pointer slot i of the object at p.
func (h *Heap) StorePtr(p Pointer, i int, v Pointer) {
	if gcAsserts && i >= h.Ptrs(p) {
		h.fatal(BadPointer, "pointer slot %d of object at %d with %d pointer slots", i, p, h.Ptrs(p))
	}
	h.Store(p, i, uintptr(v))
}

// Size returns the object's user size in words, excluding the header.
func (h *Heap) Size(p Pointer) int {
	return headerWords(h.header(p)) - 1
}

// Ptrs returns the object's leading pointer word count.
func (h *Heap) Ptrs(p Pointer) int {
	return headerPtrs(h.header(p))
}

// header reads the header word of the object at p.
func (h *Heap) header(p Pointer) uintptr {
	if gcAsserts {
		if p == Null || !h.inHeap(pageOf(p)) {
			h.fatal(BadPointer, "no object at %d", p)
		}
	}
	return h.words[p-1]
}

func (h *Heap) checkAccess(p Pointer, i int) {
	if gcAsserts {
		hdr := h.header(p)
		if forwarded(hdr) {
			h.fatal(BadPointer, "access through stale pointer %d", p)
		}
		if i < 0 || i >= headerWords(hdr)-1 {
			h.fatal(BadPointer, "word %d of object at %d with %d user words", i, p, headerWords(hdr)-1)
		}
	}
}

// Inspection interface, used by the heapdump package and by tests. None of
// these mutate the heap.

// NumPages returns the number of usable heap pages.
func (h *Heap) NumPages() int {
	return h.heapPages
}

// FirstPage returns the number of the first usable heap page.
func (h *Heap) FirstPage() int {
	return h.firstPage
}

// LastPage returns the number of the last usable heap page.
func (h *Heap) LastPage() int {
	return h.lastPage
}

// PageFree reports whether a page belongs to no live space.
func (h *Heap) PageFree(page int) bool {
	tag := h.space[h.idx(page)]
	return tag != h.currentSpace && tag != h.nextSpace
}

// PageKindOf returns the kind recorded for a page. The kind of a free page is
// stale metadata from the page's previous life.
func (h *Heap) PageKindOf(page int) PageKind {
	return h.pageKind[h.idx(page)]
}

// Frontier returns the bump allocator's next free word, or Null when the
// current page is exactly full.
func (h *Heap) Frontier() Pointer {
	if h.freeWords == 0 {
		return Null
	}
	return h.freeWord
}

// PageData copies the raw words of a page.
func (h *Heap) PageData(page int) []uintptr {
	base := pageBase(page)
	out := make([]uintptr, PageWords)
	copy(out, h.words[base:base+PageWords])
	return out
}
