package gc

// Alloc returns a fresh object of the given user byte size with ptrs leading
// pointer words. The pointer words are initialized to Null; the words after
// them hold whatever the page held before. The returned Pointer refers to the
// first user word; the header sits at the word before it.
//
// Alloc may run a full collection before returning. It panics with a
// *FatalError when the request can never be satisfied.
func (h *Heap) Alloc(bytes, ptrs int) Pointer {
	if bytes < 0 || ptrs < 0 || ptrs > (bytes+WordBytes-1)/WordBytes {
		h.fatal(BadPointer, "allocation of %d bytes with %d pointer words", bytes, ptrs)
	}
	userWords := (bytes + WordBytes - 1) / WordBytes
	if userWords == 0 {
		// Keep a user word even for empty objects so every Pointer refers
		// to storage the host may address.
		userWords = 1
	}
	return h.allocWords(userWords+1, ptrs)
}

// allocWords is the bump allocator. words counts the header word. It is also
// the forwarder's allocation path: during a collection the fresh object lands
// on a next-space page, and a watermark crossing surfaces as a fatal
// re-entry instead of a nested collection.
func (h *Heap) allocWords(words, ptrs int) Pointer {
	pages := (words + PageWords - 1) / PageWords
	if words > maxObjectWords || pages > h.heapPages {
		h.fatal(OversizedObject, "%d words in a %d page heap", words, h.heapPages)
	}

	// No pointer escapes this function before the object is fully written,
	// so a collection triggered below never sees a half-built object.
	collections := h.numGC
	for words > h.freeWords {
		h.sealPage()
		h.allocatePages(pages)
		if h.numGC > collections+1 {
			// A second collection within one allocation cannot free
			// anything the first did not.
			h.fatal(HeapExhausted, "%d words do not fit in a %d page heap after collection",
				words, h.heapPages)
		}
	}

	p := h.freeWord + 1
	h.words[h.freeWord] = makeHeader(words, ptrs)
	for i := 1; i <= ptrs; i++ {
		h.words[h.freeWord+Pointer(i)] = uintptr(Null)
	}
	if words < PageWords {
		h.freeWords -= words
		h.freeWord += Pointer(words)
	} else {
		// The object fills its run of pages exactly; there is no
		// leftover to bump into.
		h.freeWords = 0
	}
	if h.freeWords == 0 {
		// Never leave the frontier parked on a page boundary: the sweep
		// compares its cursor against it to find the live edge of a
		// destination page, and a stale boundary value could alias the
		// base of a queued page.
		h.freeWord = Null
	}

	h.mallocs++
	h.totalAlloc += uint64(words * WordBytes)
	return p
}

// sealPage closes the current allocation page by covering the leftover words
// with a filler header, so a sweep can walk the page end to end.
func (h *Heap) sealPage() {
	if h.freeWords != 0 {
		h.words[h.freeWord] = makeHeader(h.freeWords, 0)
		h.freeWords = 0
	}
	h.freeWord = Null
}

// allocatePages finds a run of contiguous free pages and makes it the
// current allocation page run, tagged into the forming space. When the heap
// is half full it instead runs a collection and returns without assigning
// pages; the caller's retry loop re-enters.
//
// Crossing the watermark while a collection is in progress means the live
// data does not fit in half the heap, which Collect reports as a fatal
// re-entry.
func (h *Heap) allocatePages(pages int) {
	if h.allocatedPages+pages >= h.heapPages/2 {
		h.Collect()
		return
	}

	free := 0
	first := 0
	for remaining := h.heapPages; remaining > 0; remaining-- {
		if h.PageFree(h.freePage) {
			if free == 0 {
				first = h.freePage
			}
			free++
			if free == pages {
				h.claimRun(first, pages)
				return
			}
		} else {
			free = 0
		}
		h.freePage = h.nextPage(h.freePage)
		if h.freePage == h.firstPage {
			// A run may not straddle the wraparound.
			free = 0
		}
	}
	h.fatal(HeapExhausted, "unable to allocate %d pages in a %d page heap", pages, h.heapPages)
}

// claimRun tags a run of pages into the forming space and points the bump
// allocator at it. While collecting, the base page joins the sweep queue so
// the objects copied onto it get their pointer slots rewritten.
func (h *Heap) claimRun(first, pages int) {
	h.freeWord = pageBase(first)
	if h.currentSpace != h.nextSpace {
		h.enqueue(first)
	}
	h.freeWords = pages * PageWords
	h.allocatedPages += pages
	h.freePage = h.nextPage(h.freePage)

	h.space[h.idx(first)] = h.nextSpace
	h.pageKind[h.idx(first)] = PageObject
	for page := first + 1; page < first+pages; page++ {
		h.space[h.idx(page)] = h.nextSpace
		h.pageKind[h.idx(page)] = PageContinued
	}
	if gcDebug {
		println("gc: claimed", pages, "page run at page", first, "space", h.nextSpace)
	}
}
