// Package libcall implements the built-in registry of §4.4: the
// static {lib_name, func_name, lib_idx, func_idx, args, handler} table
// that ASSIGN_CODE_ITEM's compiler resolves `lib.func(...)` calls
// against, and that the LIBCALL opcode dispatches through at runtime.
//
// Grounded on original_source/src/libcall.c and libcalls.c for the
// exact table contents and per-call argument contracts, and on the
// teacher's pkg/vm/primitives.go for the Go shape of a name -> handler
// registration table.
package libcall

import (
	"github.com/kristofer/sind/pkg/vm"
)

// Entry is one row of the static libcall table (§4.4).
type Entry struct {
	LibName  string
	FuncName string
	LibIdx   byte
	FuncIdx  byte
	Args     byte
	Handler  vm.LibcallFunc
}

// Table is the full registry, built once at startup from a Host.
type Table struct {
	entries []Entry
	byName  map[[2]string]*Entry
	byIdx   map[[2]byte]*Entry
}

// Build assembles the registry against a concrete Host, wiring every
// call in §4.4's list.
func Build(host Host) *Table {
	t := &Table{
		byName: make(map[[2]string]*Entry),
		byIdx:  make(map[[2]byte]*Entry),
	}
	t.add(Entry{"sys", "backup", 1, 0, 0, lcSysBackup(host)})
	t.add(Entry{"sys", "log", 1, 1, 1, lcSysLog(host)})
	t.add(Entry{"sys", "shutdown", 1, 2, 0, lcSysShutdown(host)})
	t.add(Entry{"sys", "abort", 1, 3, 0, lcSysAbort(host)})
	t.add(Entry{"task", "newgametask", 2, 0, 3, lcTaskNewGameTask(host)})
	t.add(Entry{"task", "killtask", 2, 1, 1, lcTaskKillTask(host)})
	t.add(Entry{"net", "input", 3, 0, 0, lcNetInput(host)})
	t.add(Entry{"net", "write", 3, 1, 2, lcNetWrite(host)})
	t.add(Entry{"str", "capitalise", 4, 0, 1, lcStrCapitalise})
	t.add(Entry{"str", "upper", 4, 1, 1, lcStrUpper})
	t.add(Entry{"str", "lower", 4, 2, 1, lcStrLower})
	return t
}

func (t *Table) add(e Entry) {
	t.entries = append(t.entries, e)
	stored := t.entries[len(t.entries)-1]
	t.byName[[2]string{e.LibName, e.FuncName}] = &stored
	t.byIdx[[2]byte{e.LibIdx, e.FuncIdx}] = &stored
}

// Lookup resolves a source-level `lib.func` pair to its indices and
// declared argument count, for the compiler's ASSIGN_CODE_ITEM
// handling of a libcall expression.
func (t *Table) Lookup(libName, funcName string) (libIdx, funcIdx, args byte, ok bool) {
	e, found := t.byName[[2]string{libName, funcName}]
	if !found {
		return 0, 0, 0, false
	}
	return e.LibIdx, e.FuncIdx, e.Args, true
}

// Handlers returns the {lib_idx, func_idx} -> handler map the
// interpreter dispatches LIBCALL through (pkg/vm.New's second
// argument).
func (t *Table) Handlers() map[[2]byte]vm.LibcallFunc {
	m := make(map[[2]byte]vm.LibcallFunc, len(t.entries))
	for k, e := range t.byIdx {
		m[k] = e.Handler
	}
	return m
}
