package gc

// MemStats records statistics about the heap.
type MemStats struct {
	// Sys is the total arena size in bytes, reserved dead space included.
	Sys uint64

	// HeapSys is the number of usable heap bytes.
	HeapSys uint64

	// HeapInuse is the number of bytes on pages belonging to the live
	// space.
	HeapInuse uint64

	// HeapIdle is the number of bytes on free pages.
	HeapIdle uint64

	// Mallocs is the cumulative count of objects allocated, forwarding
	// copies included.
	Mallocs uint64

	// TotalAlloc is the cumulative number of bytes allocated.
	TotalAlloc uint64

	// NumGC is the number of completed collection cycles.
	NumGC uint64

	// LiveWords counts the words of every object on a live page, headers
	// and fillers included.
	LiveWords uint64
}

// ReadMemStats populates m with memory statistics. The statistics are up to
// date as of the call; no collection is run to produce them.
func (h *Heap) ReadMemStats(m *MemStats) {
	m.Sys = uint64(len(h.words) * WordBytes)
	m.HeapSys = uint64(h.heapPages * PageBytes)

	var livePages, liveWords int
	for page := h.firstPage; page <= h.lastPage; page++ {
		if h.PageFree(page) {
			continue
		}
		livePages++
		if h.pageKind[h.idx(page)] != PageObject {
			continue
		}
		// Count the words of the objects rooted on this page; a
		// multi-page object contributes the words parked on its
		// continued pages too.
		cp := pageBase(page)
		for pageOf(cp) == page && cp != h.freeWord {
			liveWords += headerWords(h.words[cp])
			cp += Pointer(headerWords(h.words[cp]))
		}
	}
	m.HeapInuse = uint64(livePages * PageBytes)
	m.HeapIdle = m.HeapSys - m.HeapInuse
	m.LiveWords = uint64(liveWords)

	m.Mallocs = h.mallocs
	m.TotalAlloc = h.totalAlloc
	m.NumGC = h.numGC
}
