package gc

// Collect runs one stop-the-world collection cycle: flip to a fresh space
// tag, pin every page hinted at by the conservative scanner, relocate the
// objects named by the exact global roots, then sweep the promotion queue
// until the transitive closure of live objects has been copied or pinned.
//
// Collect normally runs inside Alloc when the heap crosses the half-full
// watermark; it is exported so hosts and tests can force a cycle.
func (h *Heap) Collect() {
	if h.nextSpace != h.currentSpace {
		h.fatal(CollectorReentry, "out of space during collect")
	}
	if gcDebug {
		println("gc: collecting, space", h.currentSpace, "pages allocated", h.allocatedPages)
	}

	h.sealPage()

	// Advance the space tag. Tag 0 means "free" and is skipped.
	h.nextSpace = (h.currentSpace + 1) & spaceMask
	if h.nextSpace == spaceFree {
		h.nextSpace = 1
	}
	h.allocatedPages = 0
	h.queueHead = nilPage

	// Conservative phase: every word the scanner produces is a hint.
	// Hints that land on a live page pin that page in place.
	if h.scanner != nil {
		h.scanner.Scan(func(word uintptr) {
			h.promotePage(pageOf(Pointer(word)))
		})
	}

	// Exact phase: global root cells hold object pointers, so their
	// targets relocate and the cells are rewritten in place.
	for i := len(h.roots) - 1; i >= 0; i-- {
		*h.roots[i] = h.move(*h.roots[i])
	}

	// Sweep phase: walk each promoted page object by object and move what
	// the pointer slots name. Moving allocates destination pages, which
	// join the queue themselves, so the loop drains the whole live graph.
	for h.queueHead != nilPage {
		q := h.queueHead
		cp := pageBase(q)
		// The frontier check re-reads h.freeWord every step: sweeping
		// the current destination page chases its own bump pointer.
		for pageOf(cp) == q && cp != h.freeWord {
			ptrs := headerPtrs(h.words[cp])
			pp := cp + 1
			for ; ptrs > 0; ptrs-- {
				h.words[pp] = uintptr(h.move(Pointer(h.words[pp])))
				pp++
			}
			cp += Pointer(headerWords(h.words[cp]))
		}
		h.queueHead = h.link[h.idx(q)]
	}

	h.currentSpace = h.nextSpace
	h.numGC++
	if gcDebug {
		println("gc: collection done, space", h.currentSpace, "pages live", h.allocatedPages)
	}
}

// promotePage pins a conservatively hinted page: the page keeps its address
// but is retagged into the forming space and queued for the sweep. A hint
// into the middle of a multi-page object pins the whole run by walking back
// to the page holding the object header. Hints outside the heap, on free
// pages, and on already promoted pages are ignored.
func (h *Heap) promotePage(page int) {
	if !h.inHeap(page) || h.space[h.idx(page)] != h.currentSpace {
		return
	}
	for h.pageKind[h.idx(page)] == PageContinued {
		h.allocatedPages++
		h.space[h.idx(page)] = h.nextSpace
		page--
	}
	if h.space[h.idx(page)] == h.currentSpace {
		h.space[h.idx(page)] = h.nextSpace
		h.allocatedPages++
		h.enqueue(page)
	}
	// A hint anywhere in a multi-page run pins the whole run, so pick up
	// the continued pages after the hit as well.
	for next := page + 1; h.inHeap(next) &&
		h.pageKind[h.idx(next)] == PageContinued &&
		h.space[h.idx(next)] == h.currentSpace; next++ {
		h.space[h.idx(next)] = h.nextSpace
		h.allocatedPages++
	}
	if gcDebug {
		println("gc: promoted page run at", page)
	}
}

// move relocates the object at cp into the forming space and returns its new
// location. An object is copied at most once: the first move overwrites the
// source header with a forwarding word and later moves return its target.
// Objects on promoted pages (and destinations of earlier moves) already
// carry the next-space tag and stay where they are.
//
// cp must be Null or an object pointer. Interior pointers are the
// conservative scanner's business, never move's.
func (h *Heap) move(cp Pointer) Pointer {
	if cp == Null {
		return cp
	}
	if gcAsserts && !h.inHeap(pageOf(cp)) {
		h.fatal(BadPointer, "root names %d outside the heap", cp)
	}
	if h.space[h.idx(pageOf(cp))] == h.nextSpace {
		return cp
	}
	if gcAsserts {
		if h.space[h.idx(pageOf(cp))] != h.currentSpace {
			h.fatal(BadPointer, "moving %d from a free page", cp)
		}
		if h.pageKind[h.idx(pageOf(cp))] == PageContinued {
			h.fatal(BadPointer, "root names %d inside a multi-page object", cp)
		}
	}

	header := h.words[cp-1]
	if forwarded(header) {
		return forwardTarget(header)
	}

	words := headerWords(header)
	np := h.allocWords(words, 0)
	copy(h.words[np-1:np-1+Pointer(words)], h.words[cp-1:cp-1+Pointer(words)])
	h.words[cp-1] = makeForward(np)
	return np
}
