// Command kuroko is the CLI/REPL driver for the runtime, supporting
// -c, -m, a positional file, -d disassembly, and -t tracing via
// stdlib flag's proper short-flag parsing.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kuroko/pkg/builtins"
	"kuroko/pkg/bytecode"
	"kuroko/pkg/compiler"
	"kuroko/pkg/vm"
)

const version = "0.1.0"

func main() {
	cmd := flag.String("c", "", "execute the given source string")
	module := flag.String("m", "", "run a named module (searched on KUROKO_PATH) as __main__")
	disasm := flag.Bool("d", false, "print disassembly of compiled code before running it")
	trace := flag.Bool("t", false, "trace GC cycles and module imports")
	flag.Usage = printUsage
	flag.Parse()

	v := vm.New()
	v.SetTrace(*trace)
	builtins.Install(v)

	switch {
	case *cmd != "":
		runSource(v, *cmd, "<string>", *disasm)
	case *module != "":
		path, err := resolveModule(*module)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		runFile(v, path, *disasm)
	case flag.NArg() > 0:
		runFile(v, flag.Arg(0), *disasm)
	default:
		runREPL(v)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "kuroko %s\n\n", version)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  kuroko                 start the interactive REPL")
	fmt.Fprintln(os.Stderr, "  kuroko [file]          run a source file")
	fmt.Fprintln(os.Stderr, "  kuroko -c CMD          execute CMD as a source string")
	fmt.Fprintln(os.Stderr, "  kuroko -m NAME         run module NAME (searched on KUROKO_PATH)")
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "\nEnvironment:")
	fmt.Fprintln(os.Stderr, "  KUROKO_PATH  colon-separated list of directories searched by -m")
}

// resolveModule searches KUROKO_PATH (plus the current directory) for
// name.krk. OpImport itself only resolves modules already registered on
// the Vm (e.g. by pkg/builtins); this file-system search is the CLI's job.
func resolveModule(name string) (string, error) {
	filename := name + ".krk"
	dirs := append([]string{"."}, splitPath(os.Getenv("KUROKO_PATH"))...)
	for _, dir := range dirs {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no module named %q on KUROKO_PATH", name)
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, ":")
}

func runFile(v *vm.Vm, filename string, disasm bool) {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %s: %v\n", filename, err)
		os.Exit(1)
	}
	runSource(v, string(data), filename, disasm)
}

func runSource(v *vm.Vm, source, filename string, disasm bool) {
	code, err := compiler.CompileSource(source, filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile error: %v\n", err)
		os.Exit(1)
	}
	if disasm {
		fmt.Fprintln(os.Stderr, bytecode.Disassemble(code))
	}
	mod := v.MainModule()
	if _, err := v.MainThread().Execute(code, mod); err != nil {
		fmt.Fprintln(os.Stderr, vm.FormatError(err))
		os.Exit(1)
	}
}

// runREPL starts an interactive read-eval-print loop, compiling and
// running each complete input against the same Vm (and hence the same
// __main__ module globals) so names defined in one line are visible to
// the next.
func runREPL(v *vm.Vm) {
	fmt.Printf("kuroko %s\n", version)
	fmt.Println("Type :quit or :exit to leave")

	scanner := bufio.NewScanner(os.Stdin)
	mod := v.MainModule()
	for {
		fmt.Print(">>> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case ":quit", ":exit":
			return
		case "":
			continue
		}

		code, err := compiler.CompileSource(line, "<stdin>")
		if err != nil {
			fmt.Fprintf(os.Stderr, "compile error: %v\n", err)
			continue
		}
		if _, err := v.MainThread().Execute(code, mod); err != nil {
			fmt.Fprintln(os.Stderr, vm.FormatError(err))
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
	}
}
