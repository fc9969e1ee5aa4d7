// Command codecachedemo exercises a Cache end-to-end: it starts a
// method, emits a handful of real x86-64 instructions through the asm
// package, marks a few bytecode offsets along the way, commits the
// method, then looks it back up by native address and walks its debug
// map. It exists to give the library a runnable consumer, not as a
// production tool.
package main

import (
	"fmt"
	"os"

	"j5.nz/codecache"
	"j5.nz/codecache/internal/asm"
)

// demoFunc is the simplest possible codecache.Func: it just remembers
// the addresses the cache reports back to it.
type demoFunc struct {
	name  string
	start uintptr
	end   uintptr
}

func (f *demoFunc) SetStart(addr uintptr) { f.start = addr }
func (f *demoFunc) SetEnd(addr uintptr)   { f.end = addr }

func main() {
	cache, err := codecache.New(
		codecache.WithDefaultPageSize(64*1024),
		codecache.WithMaxPageFactor(16),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codecachedemo: new cache: %v\n", err)
		os.Exit(1)
	}
	defer cache.Destroy()

	fn := &demoFunc{name: "answer"}
	posn, result := cache.StartMethod(fn, 0)
	if result != codecache.ResultOK {
		fmt.Fprintf(os.Stderr, "codecachedemo: start_method: %v\n", result)
		os.Exit(1)
	}

	as := asm.New(posn)
	as.PushReg(asm.RBP)
	cache.MarkBytecode(posn, 0)
	as.MovRegReg(asm.RBP, asm.RSP)
	cache.MarkBytecode(posn, 1)
	as.MovRegImm64(asm.RAX, 40)
	cache.MarkBytecode(posn, 4)
	as.MovRegImm64(asm.RCX, 2)
	cache.MarkBytecode(posn, 9)
	as.AddRegReg(asm.RAX, asm.RCX)
	as.Nop()
	as.PopReg(asm.RBP)
	as.Ret()

	if result = cache.EndMethod(posn, true); result != codecache.ResultOK {
		fmt.Fprintf(os.Stderr, "codecachedemo: end_method: %v\n", result)
		os.Exit(1)
	}

	fmt.Printf("committed %q at [0x%x, 0x%x)\n", fn.name, fn.start, fn.end)

	mid := fn.start + (fn.end-fn.start)/2
	if m := cache.MethodAt(mid); m != nil {
		fmt.Printf("method_at(0x%x) -> %q region [0x%x, 0x%x)\n", mid, m.Func().(*demoFunc).name, m.Start(), m.End())
	} else {
		fmt.Fprintln(os.Stderr, "codecachedemo: method_at returned no region")
	}

	if native, ok := cache.NativeOf(fn.start, 1, true); ok {
		fmt.Printf("native_of(bc=1, exact) -> +0x%x\n", native)

		// A few bytes into the movabs that followed the bc=1 mark: not an
		// exact mark itself, so this exercises the nearest-preceding-pair
		// lookup rather than a direct hit on the bc=4 or bc=9 marks.
		probe := native + 2
		if bc, ok := cache.BytecodeOf(fn.start, probe, false); ok {
			fmt.Printf("bytecode_of(native=+0x%x, nearest) -> bc %d\n", probe, bc)
		}
	}

	fmt.Printf("stats: %+v\n", cache.Stats())
}
