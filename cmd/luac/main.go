// cmd/luac compiles Lua source to a bytecode chunk, optionally listing
// it instead of (or in addition to) writing it out.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"

	"lua51/internal/binary"
	"lua51/internal/bytecode"
	"lua51/internal/compiler"
	"lua51/internal/parser"
)

const version = "luac 5.1 (Go port)"

func main() {
	os.Exit(run())
}

// run holds the actual CLI logic; factored out of main so the testscript
// harness can register it as an in-process subcommand.
func run() int {
	var (
		listBytecode bool
		output       = "luac.out"
		parseOnly    bool
		strip        bool
		files        []string
	)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-l":
			listBytecode = true
		case a == "-o":
			i++
			if i >= len(args) {
				fail("'-o' needs an argument")
			}
			output = args[i]
		case a == "-p":
			parseOnly = true
		case a == "-s":
			strip = true
		case a == "-v" || a == "--version":
			fmt.Println(version)
			return 0
		case strings.HasPrefix(a, "-"):
			fail("unrecognized option '%s'", a)
		default:
			files = append(files, a)
		}
	}
	if len(files) == 0 {
		fail("no input files given")
	}

	var protos []*bytecode.Proto
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			fail("cannot open %s: %v", path, err)
		}
		blk, err := parser.Parse(string(src), path)
		if err != nil {
			fail("%v", err)
		}
		if parseOnly {
			continue
		}
		proto, err := compiler.CompileChunk(blk, path)
		if err != nil {
			fail("%v", err)
		}
		protos = append(protos, proto)
	}
	if parseOnly {
		return 0
	}

	chunk := combine(protos)
	if strip {
		binary.Strip(chunk)
	}
	if listBytecode {
		listProto(chunk, 0)
	}

	out, err := os.Create(output)
	if err != nil {
		fail("cannot create %s: %v", output, err)
	}
	defer out.Close()
	if err := binary.Write(out, chunk); err != nil {
		fail("cannot write %s: %v", output, err)
	}

	info, _ := out.Stat()
	if info != nil {
		fmt.Printf("wrote %s (%s)\n", output, humanize.Bytes(uint64(info.Size())))
	}
	return 0
}

// combine merges multiple source files' top-level protos into a single
// sub-proto list under one synthetic main chunk, the way luac's multi-file
// invocation concatenates compilation units.
func combine(protos []*bytecode.Proto) *bytecode.Proto {
	if len(protos) == 1 {
		return protos[0]
	}
	main := &bytecode.Proto{
		Source:       "=(luac)",
		IsVararg:     true,
		MaxStackSize: 2,
		SubProtos:    protos,
	}
	for i := range protos {
		// Each unit is materialized and called in order, so running the
		// combined chunk runs every input file.
		main.Codes = append(main.Codes,
			bytecode.ABx(bytecode.CLOSURE, 0, i),
			bytecode.ABC(bytecode.CALL, 0, 1, 1))
		main.Debug.Lines = append(main.Debug.Lines, 0, 0)
	}
	main.Codes = append(main.Codes, bytecode.ABC(bytecode.RETURN, 0, 1, 0))
	main.Debug.Lines = append(main.Debug.Lines, 0)
	return main
}

func listProto(p *bytecode.Proto, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%sfunction <%s:%d,%d> (%d instructions, %d params%s)\n",
		indent, p.Source, p.LineDefined, p.LastLine, len(p.Codes), p.NumParams,
		varargSuffix(p.IsVararg))
	for pc, ins := range p.Codes {
		line := 0
		if pc < len(p.Debug.Lines) {
			line = p.Debug.Lines[pc]
		}
		fmt.Printf("%s\t%d\t[%d]\t%s\tA=%d B=%d C=%d\n",
			indent, pc+1, line, ins.OpCode(), ins.A(), ins.B(), ins.C())
	}
	if len(p.Consts) > 0 {
		fmt.Printf("%sconstants:\n", indent)
		for i, k := range p.Consts {
			fmt.Printf("%s\t%d\t%# v\n", indent, i, pretty.Formatter(k))
		}
	}
	for _, sub := range p.SubProtos {
		listProto(sub, depth+1)
	}
}

func varargSuffix(v bool) string {
	if v {
		return ", vararg"
	}
	return ""
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "luac: %s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
