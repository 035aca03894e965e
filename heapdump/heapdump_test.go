package heapdump

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RNabel/BartlettsMostlyCopying/gc"
)

func testHeap(t *testing.T) (*gc.Heap, gc.Pointer) {
	t.Helper()
	h, err := gc.New(10*gc.PageBytes, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := h.Alloc(3*gc.WordBytes, 0)
	h.Store(p, 0, 0x1122334455667788)
	return h, p
}

func TestText(t *testing.T) {
	h, _ := testHeap(t)

	var buf bytes.Buffer
	if err := Text(&buf, h); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "heap: 10 pages of 512 bytes, 1 live\n") {
		t.Errorf("unexpected dump header:\n%s", out)
	}
	if !strings.Contains(out, "*·········") {
		t.Errorf("page map missing from dump:\n%s", out)
	}
	if !strings.Contains(out, "page    1") || !strings.Contains(out, "crc16 ") {
		t.Errorf("checksum table missing from dump:\n%s", out)
	}
}

func TestTextChecksumStable(t *testing.T) {
	h, _ := testHeap(t)

	var a, b bytes.Buffer
	if err := Text(&a, h); err != nil {
		t.Fatal(err)
	}
	if err := Text(&b, h); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Error("dump of an unchanged heap is not stable")
	}
}

func TestTextChecksumTracksMutation(t *testing.T) {
	h, p := testHeap(t)

	var a bytes.Buffer
	if err := Text(&a, h); err != nil {
		t.Fatal(err)
	}
	h.Store(p, 1, 7)
	var b bytes.Buffer
	if err := Text(&b, h); err != nil {
		t.Fatal(err)
	}
	if a.String() == b.String() {
		t.Error("checksum did not change after a store")
	}
}

func TestIntelHexRoundTrip(t *testing.T) {
	h, _ := testHeap(t)
	path := filepath.Join(t.TempDir(), "heap.hex")

	if err := WriteIntelHex(path, h); err != nil {
		t.Fatal(err)
	}
	segs, err := ReadIntelHex(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Fatalf("snapshot has %d segments, want 1", len(segs))
	}
	if segs[0].Addr != uint32(gc.PageBytes) {
		t.Errorf("segment at %#x, want %#x", segs[0].Addr, gc.PageBytes)
	}
	if len(segs[0].Data) != gc.PageBytes {
		t.Errorf("segment holds %d bytes, want %d", len(segs[0].Data), gc.PageBytes)
	}
	if got, want := segs[0].Data, pageBytes(h, h.FirstPage()); !bytes.Equal(got, want) {
		t.Error("snapshot bytes differ from the live page")
	}
}

func TestIntelHexEmptyHeap(t *testing.T) {
	h, err := gc.New(10*gc.PageBytes, nil)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "empty.hex")
	if err := WriteIntelHex(path, h); err != nil {
		t.Fatal(err)
	}
	segs, err := ReadIntelHex(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 0 {
		t.Errorf("empty heap snapshot has %d segments", len(segs))
	}
}
