// Package heapdump renders the state of a collector heap for debugging: a
// per-page ASCII map with checksums, and Intel HEX images of the live pages
// that can be diffed across collections or fed to external tooling.
package heapdump

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
	"github.com/marcinbor85/gohex"
	"github.com/sigurn/crc16"

	"github.com/RNabel/BartlettsMostlyCopying/gc"
)

// pagesPerLine bounds the width of the ASCII page map.
const pagesPerLine = 64

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// pageBytes flattens a page's words to little-endian bytes.
func pageBytes(h *gc.Heap, page int) []byte {
	words := h.PageData(page)
	buf := make([]byte, len(words)*gc.WordBytes)
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*gc.WordBytes:], uint64(w))
	}
	return buf
}

// Text writes a human-readable dump of the heap: one character per page
// ('*' object, '-' continued, '·' free), followed by a checksum table of the
// live pages.
func Text(w io.Writer, h *gc.Heap) error {
	live := 0
	for page := h.FirstPage(); page <= h.LastPage(); page++ {
		if !h.PageFree(page) {
			live++
		}
	}
	if _, err := fmt.Fprintf(w, "heap: %d pages of %d bytes, %d live\n",
		h.NumPages(), gc.PageBytes, live); err != nil {
		return err
	}

	for page := h.FirstPage(); page <= h.LastPage(); page++ {
		var c string
		switch {
		case h.PageFree(page):
			c = "·"
		case h.PageKindOf(page) == gc.PageContinued:
			c = "-"
		default:
			c = "*"
		}
		if _, err := io.WriteString(w, c); err != nil {
			return err
		}
		if (page-h.FirstPage())%pagesPerLine == pagesPerLine-1 || page == h.LastPage() {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
	}

	for page := h.FirstPage(); page <= h.LastPage(); page++ {
		if h.PageFree(page) {
			continue
		}
		sum := crc16.Checksum(pageBytes(h, page), crcTable)
		if _, err := fmt.Fprintf(w, "page %4d  %-9s  crc16 %04X\n",
			page, h.PageKindOf(page), sum); err != nil {
			return err
		}
	}
	return nil
}

// A Segment is one contiguous run of live heap bytes in a snapshot.
type Segment struct {
	Addr uint32
	Data []byte
}

// WriteIntelHex writes the live pages of the heap to path as an Intel HEX
// image. Record addresses are heap byte offsets (page number times page
// size). The write holds an advisory lock next to the snapshot so concurrent
// dumpers do not interleave.
func WriteIntelHex(path string, h *gc.Heap) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("heapdump: lock snapshot: %w", err)
	}
	defer lock.Unlock()

	mem := gohex.NewMemory()
	for page := h.FirstPage(); page <= h.LastPage(); page++ {
		if h.PageFree(page) {
			continue
		}
		addr := uint32(page * gc.PageBytes)
		if err := mem.AddBinary(addr, pageBytes(h, page)); err != nil {
			return fmt.Errorf("heapdump: page %d: %w", page, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := mem.DumpIntelHex(f, 16); err != nil {
		f.Close()
		return fmt.Errorf("heapdump: %w", err)
	}
	return f.Close()
}

// ReadIntelHex parses a snapshot written by WriteIntelHex.
func ReadIntelHex(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		return nil, fmt.Errorf("heapdump: %w", err)
	}
	var segs []Segment
	for _, s := range mem.GetDataSegments() {
		segs = append(segs, Segment{Addr: s.Address, Data: s.Data})
	}
	return segs, nil
}
