// Package v7 is the embeddable host API spec §6.1 describes: a thin
// facade over internal/lexer, internal/parser, internal/compiler, and
// internal/vm that a Go program links against the way the teacher's
// cmd_*.go files link against nilan/interpreter — except every call here
// goes through the compiled bytecode VM rather than a tree-walking
// interpreter.
package v7

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/informatter/v7go/internal/compiler"
	"github.com/informatter/v7go/internal/gcarena"
	"github.com/informatter/v7go/internal/lexer"
	"github.com/informatter/v7go/internal/parser"
	"github.com/informatter/v7go/internal/strheap"
	"github.com/informatter/v7go/internal/value"
	"github.com/informatter/v7go/internal/vm"
)

// Val is the engine's universal value, re-exported so a host never has to
// import internal/value directly.
type Val = value.Val

// Func is a host-native function exposed to scripts, re-exported from
// internal/vm's CFunc so RegisterFunc's signature reads naturally here.
type Func = vm.CFunc

// Options configures a new Engine, mirroring spec §6.1's create_engine
// opts: object_arena_size, function_arena_size, property_arena_size,
// c_stack_base, freeze_file.
type Options struct {
	ObjectArenaSize   int
	FunctionArenaSize int
	PropertyArenaSize int
	RegexpArenaSize   int

	// CStackBase is carried for interface parity with spec §6.1's
	// c_stack_base option. Go goroutines grow their stacks dynamically,
	// so there is no fixed base address to guard against the way the
	// teacher's C-call-stack depth check needs; internal/parser's
	// WithStackGuard recursion-depth limit is this engine's equivalent
	// safeguard, applied at parse time instead of at eval time.
	CStackBase uintptr

	// FreezeFile, if set, names the file Freeze's heap snapshot dump is
	// written to when the engine is created with a non-empty value here.
	FreezeFile string
}

// Engine bundles one VM with its compiler and string heap — the unit of
// isolation spec §6.1's create_engine returns, analogous to a v7 struct
// instance in the original.
type Engine struct {
	VM       *vm.VM
	strings  *strheap.Heap
	compiler *compiler.Compiler
	opts     Options

	lastThrown value.Val
	hasThrown  bool

	// wasm is created lazily by the first RegisterWasmFunction call; most
	// engines never touch it.
	wasm *wasmBridge
}

// New creates an engine with a fresh heap sized per opts.
func New(opts Options) *Engine {
	strs := strheap.New()
	sizes := gcarena.Sizes{
		Objects:    opts.ObjectArenaSize,
		Functions:  opts.FunctionArenaSize,
		Properties: opts.PropertyArenaSize,
		Regexps:    opts.RegexpArenaSize,
	}
	e := &Engine{
		VM:       vm.NewWithStrings(sizes, strs),
		strings:  strs,
		compiler: compiler.New(strs),
		opts:     opts,
	}
	if opts.FreezeFile != "" {
		_ = e.Freeze(opts.FreezeFile)
	}
	return e
}

// ExecOptions configures Exec via ExecOpt (spec §6.1's exec_opt).
type ExecOptions struct {
	Filename string
	This     value.Val
	IsJSON   bool
}

// Exec compiles and runs src against the engine's global scope, returning
// its completion value (spec §6.1's exec(engine, src) → (val | thrown)).
// A thrown, uncaught script exception is reported as a Go error; use
// ThrownValue to recover the value it carried.
func (e *Engine) Exec(src string) (value.Val, error) {
	return e.ExecOpt(src, ExecOptions{This: value.Undefined()})
}

// ExecOpt is Exec with the filename/this/is_json options spec §6.1 names.
// IsJSON routes src through ParseJSON instead of the script compiler —
// exec_opt's documented shortcut for "parse this text strictly as a JSON
// value" without paying for a full script compile.
func (e *Engine) ExecOpt(src string, opts ExecOptions) (value.Val, error) {
	e.clearThrownLocked()
	if opts.IsJSON {
		return e.ParseJSON(src)
	}

	toks, err := lexer.New(src).Scan()
	if err != nil {
		return value.Undefined(), fmt.Errorf("v7: lex: %w", err)
	}
	tree, errs := parser.New(toks).Parse()
	if len(errs) > 0 {
		return value.Undefined(), fmt.Errorf("v7: parse: %v", errs)
	}
	bc, err := e.compiler.CompileProgram(tree)
	if err != nil {
		return value.Undefined(), fmt.Errorf("v7: compile: %w", err)
	}
	if opts.Filename != "" {
		bc.Filename = opts.Filename
	}

	// A zero-value ExecOptions (the common case: no this_obj override) must
	// run top-level code with this=undefined, not with a Val whose raw bits
	// happen to be 0 — which this engine's NaN-boxing decodes as the number
	// 0, not undefined.
	this := opts.This
	if this == 0 {
		this = value.Undefined()
	}
	result, err := e.VM.RunWithThis(bc, this)
	if err != nil {
		if th, ok := e.VM.UncaughtError(err); ok {
			e.lastThrown, e.hasThrown = th, true
		}
		return value.Undefined(), err
	}
	return result, nil
}

// Apply calls fn as a script would (spec §6.1's apply(engine, func, this,
// args)).
func (e *Engine) Apply(fn, this value.Val, args []value.Val) (value.Val, error) {
	result, err := e.VM.Apply(fn, this, args)
	if err != nil {
		if th, ok := e.VM.UncaughtError(err); ok {
			e.lastThrown, e.hasThrown = th, true
		}
	}
	return result, err
}

// RegisterFunc binds fn as a global callable under name (spec §6.1's
// native-binding surface, the embedding side of internal/vm.CFunc).
func (e *Engine) RegisterFunc(name string, fn Func) { e.VM.RegisterCFunc(name, fn) }

// Own pushes p onto the engine's owned-root list (spec §6.1's own(engine,
// &val)): a host-held value.Val a Go variable references directly,
// outside any object graph the GC would otherwise find it through, must
// be registered here or a collection can relocate/free the string or
// object it names out from under the host.
func (e *Engine) Own(p *value.Val) { e.VM.Heap.Owned.Own(p) }

// Disown pops the most recently Own'd root matching p (spec §6.1's
// disown(engine, &val)); the list is LIFO, matching how the teacher's own
// c_stack-shaped owned-value list unwinds.
func (e *Engine) Disown(p *value.Val) bool { return e.VM.Heap.Owned.Disown(p) }

// SetGCEnabled toggles automatic collection (spec §6.1's set_gc_enabled).
func (e *Engine) SetGCEnabled(enabled bool) { e.VM.SetGCEnabled(enabled) }

// Interrupt aborts the running script at its next instruction boundary
// (spec §6.1's interrupt(engine)). Safe to call from another goroutine.
func (e *Engine) Interrupt() { e.VM.Interrupt() }

// StackStat and HeapStat report runtime/arena occupancy (spec §6.1's
// stack_stat/heap_stat).
func (e *Engine) StackStat() vm.StackStat         { return e.VM.StackStat() }
func (e *Engine) HeapStat() gcarena.HeapStats     { return e.VM.HeapStat() }

// Throw raises val as a script-visible exception the way a native
// function registered via RegisterFunc signals failure back into a
// running script (spec §6.1's throw(engine, val)): return vm.Throw(val)
// from inside a Func.
func (e *Engine) Throw(val value.Val) error { return vm.Throw(val) }

// Throwf is Throw's formatted-message convenience (spec §6.1's
// throwf(engine, kind, fmt, ...)).
func (e *Engine) Throwf(kind, format string, args ...any) error {
	return e.VM.Throwf(kind, format, args...)
}

// Rethrow re-signals err unchanged (spec §6.1's rethrow(engine); see
// internal/vm.Rethrow's doc comment for why this Go-native design has
// nothing further to do here).
func (e *Engine) Rethrow(err error) error { return vm.Rethrow(err) }

// ThrownValue returns the value most recently thrown uncaught out of
// Exec/ExecOpt/Apply (spec §6.1's get_thrown_value), until ClearThrown
// resets it.
func (e *Engine) ThrownValue() (value.Val, bool) { return e.lastThrown, e.hasThrown }

// ClearThrown resets ThrownValue's state (spec §6.1's clear_thrown).
func (e *Engine) ClearThrown() { e.lastThrown, e.hasThrown = value.Undefined(), false }

func (e *Engine) clearThrownLocked() { e.hasThrown = false }

// mk_*/get_* value constructors and accessors (spec §6.1), thin wrappers
// over internal/value so a host never imports that package directly.
func MkNumber(f float64) value.Val    { return value.Number(f) }
func MkBool(b bool) value.Val         { return value.Bool(b) }
func MkUndefined() value.Val          { return value.Undefined() }
func MkNull() value.Val               { return value.Null() }
func (e *Engine) MkString(s string) value.Val { return e.VM.MkString(s) }
func (e *Engine) MkObject() value.Val         { return e.VM.NewObject(value.Null()) }
func (e *Engine) MkArray(elems ...value.Val) value.Val { return e.VM.NewArray(elems) }

func GetNumber(v value.Val) (float64, bool) {
	if v.Tag() != value.TagNumber && v.Tag() != value.TagNaN {
		return 0, false
	}
	return v.AsNumber(), true
}
func GetBool(v value.Val) (bool, bool) {
	if !v.IsBoolean() {
		return false, false
	}
	return v.AsBool(), true
}
func (e *Engine) GetString(v value.Val) (string, bool) {
	if v.Tag() != value.TagString {
		return "", false
	}
	return e.VM.ToDisplayString(v), true
}

// ParseJSON parses src as JSON text into an engine value (spec §6.1's
// parse_json(engine, src)) by compiling it through internal/parser.ParseJSON
// and running the result like any other expression — JSON syntax is a
// strict subset of the grammar this engine already compiles, so no
// third-party JSON library is exercised here; encoding/json remains only
// for Freeze's own heap-stat dump below, which is host-facing diagnostic
// output, not script data.
func (e *Engine) ParseJSON(src string) (value.Val, error) {
	tree, err := parser.ParseJSON(src)
	if err != nil {
		return value.Undefined(), fmt.Errorf("v7: parse_json: %w", err)
	}
	bc, err := e.compiler.CompileProgram(tree)
	if err != nil {
		return value.Undefined(), fmt.Errorf("v7: parse_json: compile: %w", err)
	}
	result, err := e.VM.Run(bc)
	if err != nil {
		if th, ok := e.VM.UncaughtError(err); ok {
			e.lastThrown, e.hasThrown = th, true
		}
		return value.Undefined(), fmt.Errorf("v7: parse_json: %w", err)
	}
	return result, nil
}

// Freeze dumps the engine's current heap occupancy to path (spec §6.1's
// freeze_file option / CLI -freeze flag). The original dumps a raw heap
// snapshot a process can mmap back in; this engine's heap cells aren't
// relocatable that way (spec.md's Non-goals explicitly exclude on-disk
// heap compatibility), so this records the same HeapStats a human or a
// test would otherwise read off heap_stat, as JSON.
func (e *Engine) Freeze(path string) error {
	stat := e.HeapStat()
	data, err := json.MarshalIndent(stat, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
