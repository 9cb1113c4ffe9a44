// Package repl implements the line-oriented interactive interpreter
// loop: each line of input is compiled and run as its own fresh chunk.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"lua51/internal/compiler"
	"lua51/internal/parser"
	"lua51/internal/value"
	"lua51/internal/vm"
)

const prompt = "> "

// IsInteractive reports whether f looks like a TTY, the signal the CLI
// uses to decide between starting a REPL and slurping stdin as a script.
func IsInteractive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start runs the REPL against in/out until exit()/quit(), EOF, or a
// read error. Each line is compiled and executed as its own chunk
// against the shared state s, so locals don't persist across lines but
// globals do, including globals set by a script run before `-i`
// dropped into the REPL.
func Start(s *vm.State, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = IsInteractive(f)
	}

	for {
		if interactive {
			fmt.Fprint(out, prompt)
		}
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		switch line {
		case "exit()", "quit()", "exit", "quit":
			return
		case "":
			continue
		}

		blk, err := parser.Parse(line, "=stdin")
		if err != nil {
			// A bare expression ("1+2") isn't a valid statement; retry
			// as an implicit return, the way the real Lua REPL does.
			if asReturn, rerr := parser.Parse("return "+line, "=stdin"); rerr == nil {
				blk, err = asReturn, nil
			}
		}
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			continue
		}
		proto, err := compiler.CompileChunk(blk, "=stdin")
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			continue
		}
		rets, err := s.Run(proto, nil)
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			continue
		}
		for _, r := range rets {
			fmt.Fprintln(out, value.ToString(r))
		}
	}
}
