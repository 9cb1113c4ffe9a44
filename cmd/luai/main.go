// cmd/luai runs Lua source or bytecode from the command line, falling
// back to the REPL when given nothing to run.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"lua51/internal/binary"
	"lua51/internal/compiler"
	"lua51/internal/parser"
	"lua51/internal/repl"
	"lua51/internal/value"
	"lua51/internal/vm"
)

const version = "luai 5.1 (Go port)"

func main() {
	os.Exit(run())
}

// run holds the actual CLI logic; factored out of main so the testscript
// harness can register it as an in-process subcommand.
func run() int {
	args := os.Args[1:]

	var (
		execStat   string
		haveExec   bool
		forceRepl  bool
		libsToLoad []string
		script     string
		scriptArgs []string
	)

	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-e":
			i++
			if i >= len(args) {
				fail("'-e' needs an argument")
			}
			execStat, haveExec = args[i], true
		case a == "-i":
			forceRepl = true
		case a == "-l":
			i++
			if i >= len(args) {
				fail("'-l' needs an argument")
			}
			libsToLoad = append(libsToLoad, args[i])
		case a == "-v" || a == "--version":
			fmt.Println(version)
			return 0
		case strings.HasPrefix(a, "-"):
			fail("unrecognized option '%s'", a)
		default:
			script = a
			scriptArgs = args[i+1:]
			i = len(args)
		}
	}
	_ = libsToLoad // -l is accepted and ignored: there is no module system (Non-goal)

	s := vm.New()
	ran := false

	if haveExec {
		runSource(s, execStat, "=(command line)", nil)
		ran = true
	}

	if script != "" {
		argVals := make([]value.Value, len(scriptArgs))
		for idx, a := range scriptArgs {
			argVals[idx] = value.Str(a)
		}
		if strings.HasSuffix(script, ".luac") {
			runBytecodeFile(s, script, argVals)
		} else {
			src, err := os.ReadFile(script)
			if err != nil {
				fail("cannot open %s: %v", script, err)
			}
			runSource(s, string(src), script, argVals)
		}
		ran = true
	}

	if forceRepl || !ran {
		if !ran && !forceRepl && !repl.IsInteractive(os.Stdin) {
			// No script, no -e, and stdin is piped: slurp it as a chunk.
			src, err := io.ReadAll(os.Stdin)
			if err != nil {
				fail("cannot read stdin: %v", err)
			}
			runSource(s, string(src), "=stdin", nil)
			return 0
		}
		repl.Start(s, os.Stdin, os.Stdout)
	}
	return 0
}

func runSource(s *vm.State, src, chunkName string, args []value.Value) {
	blk, err := parser.Parse(src, chunkName)
	if err != nil {
		fail("%v", err)
	}
	proto, err := compiler.CompileChunk(blk, chunkName)
	if err != nil {
		fail("%v", err)
	}
	if _, err := s.Run(proto, args); err != nil {
		fail("%v", err)
	}
}

func runBytecodeFile(s *vm.State, path string, args []value.Value) {
	f, err := os.Open(path)
	if err != nil {
		fail("cannot open %s: %v", path, err)
	}
	defer f.Close()
	proto, err := binary.Read(f)
	if err != nil {
		fail("%s: %v", path, err)
	}
	if _, err := s.Run(proto, args); err != nil {
		fail("%v", err)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "luai: %s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
