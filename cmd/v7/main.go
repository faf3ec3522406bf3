// Command v7 is the standalone CLI spec §6.4 names: `v7 [options] files…`,
// layered as google/subcommands verbs the way the teacher's cmd_run.go/
// cmd_repl.go/cmd_emit_bytecode.go are, with an implicit "run" verb so a
// bare flag-and-files invocation still dispatches without naming one.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&replCmd{}, "")
	subcommands.Register(&parseCmd{}, "")
	subcommands.Register(&emitCmd{}, "")

	os.Args = withImplicitRun(os.Args)

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

var knownVerbs = map[string]bool{
	"help": true, "flags": true, "commands": true,
	"run": true, "repl": true, "parse": true, "emit": true,
}

// withImplicitRun makes `v7 -e "1+2"` and `v7 script.js` work without
// naming a verb: if the first token that doesn't look like a flag isn't a
// registered subcommand name, "run" is spliced in ahead of it so
// subcommands.Execute dispatches exactly as a named `v7 run ...` would.
func withImplicitRun(args []string) []string {
	for _, a := range args[1:] {
		if a == "" || a[0] == '-' {
			continue
		}
		if knownVerbs[a] {
			return args
		}
		out := make([]string, 0, len(args)+1)
		out = append(out, args[0], "run")
		out = append(out, args[1:]...)
		return out
	}
	return args
}
