// Package gc implements a mostly-copying garbage collector in the style
// described by Joel Bartlett: "Compacting Garbage Collection with Ambiguous
// Roots" (DEC WRL, 1988).
//
// The heap is a contiguous run of fixed-size pages modelled as a single word
// array. The host allocates objects of a declared byte size and a declared
// count of leading pointer words; the collector reclaims unreachable objects
// by copying live ones into a fresh logical space. Words found on the host
// stack are treated as conservative hints: a hint that lands on a live page
// pins that page in place (the page is retagged into the destination space
// without moving its contents), while everything reachable through exact
// roots is relocated and forwarded.
//
// Pointers handed to the host are word offsets into the heap array, not
// machine addresses. Offset 0 is the null sentinel and the first heap page is
// page 1, so neither null nor small integers alias heap storage. An object
// occupies one header word followed by its user words; the pointer the host
// holds refers to the first user word, and the header is always at the word
// before it.
//
// Collection is synchronous and stop-the-world: it runs inside an Alloc call
// when the heap passes the half-full watermark. There is exactly one mutator;
// no locking is performed. Multi-threaded hosts must serialize every call
// into a Heap externally.
//
// More information:
// https://www.hpl.hp.com/techreports/Compaq-DEC/WRL-88-2.pdf
// "Uniprocessor Garbage Collection Techniques" by Wilson (section on
// conservative and mostly-copying collectors).
package gc

// gcDebug prints a trace of collection cycles and page assignments. It is a
// compile-time constant so the trace code is eliminated from normal builds.
const gcDebug = false

// gcAsserts enables internal consistency checks. A failed check means the
// heap is corrupt and surfaces as a BadPointer fatal error.
const gcAsserts = true

// The heap is partitioned into fixed-size pages. Page size is a compile-time
// constant; word size follows the platform pointer size.
const (
	// PageBytes is the size of one heap page in bytes.
	PageBytes = 512

	// WordBytes is the size of one heap word in bytes.
	WordBytes = 8

	// PageWords is the number of words on one heap page.
	PageWords = PageBytes / WordBytes
)

// spaceMask bounds the space tag. Tags advance modulo this width on every
// collection; tag 0 is reserved to mean "free" and is skipped on advance.
const spaceMask = 0x7FFF

// spaceFree is the tag of a page that belongs to no space.
const spaceFree = 0

// A Pointer is a reference to a heap object: the word offset of the object's
// first user word within the heap array. The object header lives at the word
// before it. Null is the only Pointer that does not refer to an object.
type Pointer uintptr

// Null is the null pointer sentinel. Pointer slots of a fresh object are
// initialized to Null.
const Null Pointer = 0

// Objects carry a one word header:
//
//	63            33 32             1 0
//	+---------------+----------------+-+
//	| # ptrs in obj | # words in obj |1|
//	+---------------+----------------+-+
//	|           user data              | <- returned Pointer refers here;
//	               ...                    pointer words come first
//
// The word count includes the header word itself. When an object has been
// forwarded the header word is replaced by the destination Pointer shifted
// left by one, so bit 0 distinguishes a live header (1) from a forwarding
// word (0).
const (
	headerWordsShift = 1
	headerWordsBits  = 32
	headerWordsMask  = 1<<headerWordsBits - 1
	headerPtrsShift  = headerWordsShift + headerWordsBits
	headerPtrsBits   = 30
	headerPtrsMask   = 1<<headerPtrsBits - 1
	headerLiveBit    = 1

	// maxObjectWords is the widest object a header can describe.
	maxObjectWords = headerWordsMask
)

// makeHeader builds a live header word for an object of the given total word
// count (header included) and leading pointer count.
func makeHeader(words, ptrs int) uintptr {
	return uintptr(ptrs)<<headerPtrsShift | uintptr(words)<<headerWordsShift | headerLiveBit
}

// forwarded reports whether a header word has been overwritten with a
// forwarding word.
func forwarded(header uintptr) bool {
	return header&headerLiveBit == 0
}

// headerWords extracts the object word count, header word included.
func headerWords(header uintptr) int {
	return int(header >> headerWordsShift & headerWordsMask)
}

// headerPtrs extracts the count of leading pointer words in the user area.
func headerPtrs(header uintptr) int {
	return int(header >> headerPtrsShift & headerPtrsMask)
}

// makeForward builds a forwarding word that redirects to np.
func makeForward(np Pointer) uintptr {
	return uintptr(np) << 1
}

// forwardTarget extracts the destination of a forwarding word.
func forwardTarget(header uintptr) Pointer {
	return Pointer(header >> 1)
}

// A PageKind describes what a page holds. Every allocated run of pages starts
// with one PageObject page; a run longer than one page continues with
// PageContinued pages, which carry no headers of their own.
type PageKind uint8

const (
	PageObject PageKind = iota
	PageContinued
)

// String returns a human-readable version of the page kind, for debugging.
func (k PageKind) String() string {
	switch k {
	case PageObject:
		return "object"
	case PageContinued:
		return "continued"
	default:
		// must never happen
		return "!err"
	}
}
