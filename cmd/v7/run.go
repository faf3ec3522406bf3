package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/informatter/v7go/internal/value"
	"github.com/informatter/v7go/pkg/v7"
)

// runCmd is spec §6.4's `v7 [options] files…`: execute one inline
// expression or a sequence of files against one shared engine, optionally
// dumping the AST or bytecode instead of running them.
// Grounded on the teacher's cmd_run.go/cmd_run_compiled.go Execute bodies,
// re-pointed at pkg/v7.Engine instead of nilan/interpreter's tree walker.
type runCmd struct {
	expr       string
	dumpText   bool
	dumpBinary bool
	dumpBCode  bool
	asJSON     bool
	memStats   bool
	objArena   int
	funcArena  int
	propArena  int
	freezeFile string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "execute source files or an inline expression" }
func (*runCmd) Usage() string {
	return `run [options] files…:
  Execute v7 source. With -e, the expression argument is run in place of
  any file arguments.
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.expr, "e", "", "execute inline expression instead of reading files")
	f.BoolVar(&r.dumpText, "t", false, "dump the AST as text instead of running")
	f.BoolVar(&r.dumpBinary, "b", false, "dump the AST in binary form instead of running")
	f.BoolVar(&r.dumpBCode, "c", false, "compile and dump bytecode instead of running")
	f.BoolVar(&r.asJSON, "j", false, "format the result as JSON")
	f.BoolVar(&r.memStats, "mm", false, "dump memory/heap stats after running")
	f.IntVar(&r.objArena, "vo", 0, "initial object arena size")
	f.IntVar(&r.funcArena, "vf", 0, "initial function arena size")
	f.IntVar(&r.propArena, "vp", 0, "initial property arena size")
	f.StringVar(&r.freezeFile, "freeze", "", "dump a heap snapshot to this file after init")
}

func (r *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sources, err := r.sources(f.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %v\n", err)
		return subcommands.ExitFailure
	}
	if len(sources) == 0 {
		fmt.Fprintf(os.Stderr, "💥 no expression or file provided\n")
		return subcommands.ExitUsageError
	}

	engine := v7.New(v7.Options{
		ObjectArenaSize:   r.objArena,
		FunctionArenaSize: r.funcArena,
		PropertyArenaSize: r.propArena,
		FreezeFile:        r.freezeFile,
	})
	defer engine.Close()

	dumping := r.dumpText || r.dumpBinary || r.dumpBCode
	var last value.Val
	for _, src := range sources {
		if dumping {
			if err := dumpSource(src.name, src.text, r.dumpText, r.dumpBinary, r.dumpBCode); err != nil {
				fmt.Fprintf(os.Stderr, "💥 %v\n", err)
				return subcommands.ExitFailure
			}
			continue
		}

		result, err := engine.ExecOpt(src.text, v7.ExecOptions{Filename: src.name})
		if err != nil {
			if th, ok := engine.ThrownValue(); ok {
				fmt.Fprintf(os.Stderr, "💥 uncaught %s: %s\n", src.name, engine.VM.ErrorMessage(th))
			} else {
				fmt.Fprintf(os.Stderr, "💥 %s: %v\n", src.name, err)
			}
			return subcommands.ExitFailure
		}
		last = result
	}

	if !dumping {
		fmt.Fprintln(os.Stdout, formatResult(engine, last, r.asJSON))
	}

	if r.memStats {
		stat, err := json.MarshalIndent(engine.HeapStat(), "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "💥 %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintln(os.Stdout, string(stat))
	}

	return subcommands.ExitSuccess
}

type namedSource struct {
	name string
	text string
}

func (r *runCmd) sources(files []string) ([]namedSource, error) {
	if r.expr != "" {
		return []namedSource{{name: "<expr>", text: r.expr}}, nil
	}
	sources := make([]namedSource, 0, len(files))
	for _, filename := range files {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
		}
		sources = append(sources, namedSource{name: filename, text: string(data)})
	}
	return sources, nil
}

// formatResult renders a script's completion value either as JSON (-j) or
// as the engine's own display-string coercion (the toString an uncaught
// top-level expression's value would have anyway). JSON rendering only
// covers primitive tags faithfully; an object/array result falls back to
// its display string rather than attempting full structural serialization,
// a deliberate scope cut for this CLI pass (see DESIGN.md).
func formatResult(e *v7.Engine, v value.Val, asJSON bool) string {
	if !asJSON {
		return e.VM.ToDisplayString(v)
	}
	switch e.VM.TypeOf(v) {
	case "undefined":
		return "null"
	case "boolean", "number":
		return e.VM.ToDisplayString(v)
	case "string":
		b, _ := json.Marshal(e.VM.ToDisplayString(v))
		return string(b)
	default:
		if v == value.Null() {
			return "null"
		}
		b, _ := json.Marshal(e.VM.ToDisplayString(v))
		return string(b)
	}
}
