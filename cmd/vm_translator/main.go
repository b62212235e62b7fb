package main

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/teris-io/cli"
	"github.com/n2t-go/hacktool/pkg/asm"
	"github.com/n2t-go/hacktool/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of multiple modules/files) written in
the VM language into Hack assembly code that can be further elaborated. The VM language
is a higher-level (bytecode'like) language tailored for use with the Hack computer arch.

Accepts either a single '.vm' file or a directory containing one or more '.vm' files. When
given a directory the translator stitches every module into a single '.asm' program and
prepends the bootstrap sequence (that sets up the Stack Pointer and calls 'Sys.init'); a
single file is translated as-is, with no bootstrap code, since it's assumed to be tested
in isolation.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	WithArg(cli.NewArg("input", "The '.vm' file, or a directory of '.vm' files, to be compiled")).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	input := args[0]
	info, err := os.Stat(input)
	if err != nil {
		fmt.Printf("ERROR: Unable to open input: %s\n", err)
		return -1
	}

	sources, err := collectSources(input, info)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return -1
	}

	outputPath := deriveOutputPath(input, info)
	output, err := os.Create(outputPath)
	if err != nil {
		fmt.Printf("ERROR: Unable to open output file: %s\n", err)
		return -1
	}
	defer output.Close()

	// Allocates a 'vm.Program' struct to save all the parsed translation unit
	// (the .vm files) that will be parsed independently, then lowered together in a
	// single pass and sent to the codegen phases (that will create a monolithic compiled output).
	program := vm.Program{}

	for _, source := range sources {
		content, err := os.ReadFile(source)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		// Instantiate a parser for the Vm program
		parser := vm.NewParser(bytes.NewReader(content))
		// Parses the input file content and extract an AST (as a 'vm.Module') from it.
		module, err := parser.Parse()
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'parsing' pass: %s\n", err)
			return -1
		}
		moduleName := strings.TrimSuffix(path.Base(source), filepath.Ext(source))
		program[moduleName] = module
	}

	// Instantiate a lowerer to convert the program from Vm to Asm
	lowerer := vm.NewLowerer(program)
	// Lowers the vm.Program to an in-memory/IR representation of its Asm counterpart 'asm.Program'.
	asmProgram, err := lowerer.Lower()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'lowering' pass: %s\n", err)
		return -1
	}

	// Bootstrap code is only emitted when translating an entire directory: it sets up the
	// Stack Pointer at its base location (memory location 256) and then emits a full
	// 'call Sys.init 0' sequence so multi-module programs start execution in the right place.
	// A single '.vm' file is assumed to be a self-contained test and is never prefixed with
	// bootstrap code.
	if info.IsDir() {
		bootstrap := []asm.Instruction{
			asm.AInstruction{Location: "256"},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}
		initLowerer := vm.NewLowerer(vm.Program{"Sys": {vm.FuncCallOp{Name: "Sys.init", NArgs: 0}}})
		callInit, err := initLowerer.Lower()
		if err != nil {
			fmt.Printf("ERROR: Unable to lower the bootstrap code: %s\n", err)
			return -1
		}
		asmProgram = append(append(bootstrap, callInit...), asmProgram...)
	}

	// Now, instantiates a code generator for the Asm (compiled) program
	codegen := asm.NewCodeGenerator(asmProgram)
	// Iterates over each instruction and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	for _, comp := range compiled {
		line := fmt.Sprintf("%s\n", comp)
		output.Write([]byte(line))
	}

	return 0
}

// collectSources resolves the 'input' CLI argument to the list of '.vm' files that
// should be stitched into a single program: either the single file itself, or every
// '.vm' file directly inside the given directory (sorted for deterministic output).
func collectSources(input string, info os.FileInfo) ([]string, error) {
	if !info.IsDir() {
		return []string{input}, nil
	}

	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, fmt.Errorf("unable to read input directory: %w", err)
	}

	sources := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".vm" {
			continue
		}
		sources = append(sources, filepath.Join(input, entry.Name()))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no '.vm' files found in directory '%s'", input)
	}
	return sources, nil
}

// deriveOutputPath mirrors the course convention: a single 'Foo.vm' produces 'Foo.asm'
// next to it, while a directory 'Bar/' (possibly the program's own folder) produces
// 'Bar/Bar.asm', named after the directory itself.
func deriveOutputPath(input string, info os.FileInfo) string {
	if !info.IsDir() {
		return strings.TrimSuffix(input, filepath.Ext(input)) + ".asm"
	}
	base := filepath.Base(filepath.Clean(input))
	return filepath.Join(input, base+".asm")
}

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }
