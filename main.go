// Command mcgc is a thin entry shim around the mostly-copying collector: it
// builds a heap from a config file or flags and drives it from a small
// allocation script, standing in for the unmanaged host program the collector
// is meant to serve.
//
// Script syntax, one command per line ('#' starts a comment):
//
//	alloc <bytes> <ptrs> [name]   allocate; bind the result to a root cell
//	set <name> <slot> <name|null> store a pointer into a pointer slot
//	put <name> <word> <value>     store an integer into a payload word
//	hint <name>                   push the cell's pointer as a stack hint
//	unhint                        pop the most recent hint
//	collect                       force a collection cycle
//	stats                         print heap statistics
//	dump                          print the page map and checksums
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/mattn/go-colorable"

	"github.com/RNabel/BartlettsMostlyCopying/diagnostics"
	"github.com/RNabel/BartlettsMostlyCopying/gc"
	"github.com/RNabel/BartlettsMostlyCopying/heapdump"
	"github.com/RNabel/BartlettsMostlyCopying/heapopts"
)

// demoScript runs when no script is given: the host allocates a couple of
// objects, links them, and survives a forced collection.
const demoScript = `
alloc 50 2 a
alloc 30 1 b
set a 0 b
set b 0 a
put a 2 12345
collect
stats
dump
`

func main() {
	configPath := flag.String("config", "", "YAML config file")
	heapSize := flag.String("heap", "", "heap size, overriding the config (e.g. 64KB)")
	scriptPath := flag.String("script", "", "allocation script, overriding the config")
	snapshot := flag.String("snapshot", "", "Intel HEX snapshot path, overriding the config")
	trace := flag.Bool("trace", false, "report every script step")
	conservative := flag.Bool("conservative", false,
		"scan the machine stack for hints instead of the script's hint list")
	flag.Parse()

	stderr := colorable.NewColorableStderr()
	err := run(*configPath, *heapSize, *scriptPath, *snapshot, *trace, *conservative)
	if err != nil {
		diagnostics.CreateDiagnostics(err).WriteTo(stderr)
		os.Exit(1)
	}
}

func run(configPath, heapSize, scriptPath, snapshot string, trace, conservative bool) (err error) {
	// Heap failures surface as panics so that the collector never has to
	// thread error returns through its copy loops. Catch them at the host
	// boundary.
	defer func() {
		if r := recover(); r != nil {
			fatal, ok := r.(*gc.FatalError)
			if !ok {
				panic(r)
			}
			err = fatal
		}
	}()

	cfg := heapopts.Default()
	if configPath != "" {
		cfg, err = heapopts.Load(configPath)
		if err != nil {
			return err
		}
	}
	if heapSize != "" {
		if err := yamlSizeOverride(cfg, heapSize); err != nil {
			return err
		}
	}
	if scriptPath != "" {
		cfg.Script = scriptPath
	}
	if snapshot != "" {
		cfg.Snapshot = snapshot
	}
	if trace {
		cfg.Trace = true
	}

	hints := &gc.WordHints{}
	var scanner gc.StackScanner = hints
	if conservative {
		scanner = gc.NewMachineStack(gc.CurrentStackTop())
	}
	heap, err := gc.New(int(cfg.HeapSize), scanner)
	if err != nil {
		return err
	}

	script := io.Reader(strings.NewReader(demoScript))
	if cfg.Script != "" {
		f, err := os.Open(cfg.Script)
		if err != nil {
			return err
		}
		defer f.Close()
		script = f
	}

	host := &host{
		heap:  heap,
		hints: hints,
		cells: make(map[string]*gc.Pointer),
		out:   colorable.NewColorableStdout(),
		trace: cfg.Trace,
	}
	if err := host.runScript(script); err != nil {
		return err
	}

	if cfg.Snapshot != "" {
		if err := heapdump.WriteIntelHex(cfg.Snapshot, heap); err != nil {
			return err
		}
		fmt.Fprintln(host.out, "snapshot written to", cfg.Snapshot)
	}
	return nil
}

// yamlSizeOverride parses a -heap flag value with the same syntax as the
// config file's heap-size field.
func yamlSizeOverride(cfg *heapopts.Config, value string) error {
	tmp, err := heapopts.Parse([]byte("heap-size: " + value + "\n"))
	if err != nil {
		return err
	}
	cfg.HeapSize = tmp.HeapSize
	return nil
}

// host interprets allocation scripts against one heap. Every named cell is a
// registered global root, so the script's reachable set is exactly the named
// objects plus whatever the hint list pins.
type host struct {
	heap  *gc.Heap
	hints *gc.WordHints
	cells map[string]*gc.Pointer
	out   io.Writer
	trace bool
}

func (h *host) runScript(r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		args, err := shlex.Split(text)
		if err != nil {
			return fmt.Errorf("script line %d: %w", line, err)
		}
		if len(args) == 0 {
			continue
		}
		if h.trace {
			fmt.Fprintln(h.out, "+", text)
		}
		if err := h.step(args); err != nil {
			return fmt.Errorf("script line %d: %w", line, err)
		}
	}
	return sc.Err()
}

func (h *host) step(args []string) error {
	switch cmd := args[0]; cmd {
	case "alloc":
		if len(args) != 3 && len(args) != 4 {
			return fmt.Errorf("usage: alloc <bytes> <ptrs> [name]")
		}
		bytes, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		ptrs, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		p := h.heap.Alloc(bytes, ptrs)
		if len(args) == 4 {
			*h.cell(args[3]) = p
		}
		fmt.Fprintf(h.out, "alloc %d bytes, %d pointers -> %d\n", bytes, ptrs, p)
	case "set":
		if len(args) != 4 {
			return fmt.Errorf("usage: set <name> <slot> <name|null>")
		}
		obj, err := h.lookup(args[1])
		if err != nil {
			return err
		}
		slot, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		target := gc.Null
		if args[3] != "null" {
			target, err = h.lookup(args[3])
			if err != nil {
				return err
			}
		}
		h.heap.StorePtr(obj, slot, target)
	case "put":
		if len(args) != 4 {
			return fmt.Errorf("usage: put <name> <word> <value>")
		}
		obj, err := h.lookup(args[1])
		if err != nil {
			return err
		}
		word, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		value, err := strconv.ParseUint(args[3], 0, 64)
		if err != nil {
			return err
		}
		h.heap.Store(obj, word, uintptr(value))
	case "hint":
		if len(args) != 2 {
			return fmt.Errorf("usage: hint <name>")
		}
		p, err := h.lookup(args[1])
		if err != nil {
			return err
		}
		h.hints.Push(p)
	case "unhint":
		h.hints.Pop()
	case "collect":
		h.heap.Collect()
	case "stats":
		var m gc.MemStats
		h.heap.ReadMemStats(&m)
		fmt.Fprintf(h.out, "heap %s, in use %s, mallocs %d, total %s, collections %d\n",
			heapopts.Size(m.HeapSys), heapopts.Size(m.HeapInuse),
			m.Mallocs, heapopts.Size(m.TotalAlloc), m.NumGC)
	case "dump":
		if err := heapdump.Text(h.out, h.heap); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// cell returns the named root cell, registering it on first use.
func (h *host) cell(name string) *gc.Pointer {
	c, ok := h.cells[name]
	if !ok {
		c = new(gc.Pointer)
		h.heap.AddRoot(c)
		h.cells[name] = c
	}
	return c
}

func (h *host) lookup(name string) (gc.Pointer, error) {
	c, ok := h.cells[name]
	if !ok {
		return gc.Null, fmt.Errorf("unknown cell %q", name)
	}
	return *c, nil
}
