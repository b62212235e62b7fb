package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teris-io/cli"

	"github.com/n2t-go/hacktool/pkg/jack"
)

var Description = strings.ReplaceAll(`
The Jack Compiler translates one or more Jack classes (".jack" files) into VM
code, one ".vm" file per input class. The Jack language is a higher-level OOP
language tailored for use with the Hack computer architecture.

Accepts either a single ".jack" file or a directory containing one or more of
them; every matching file found is compiled independently, each producing its
own ".vm" output alongside the source.
`, "\n", " ")

var JackCompiler = cli.New(Description).
	WithArg(cli.NewArg("input", "The '.jack' file, or a directory of '.jack' files, to be compiled")).
	WithOption(cli.NewOption("check-stdlib", "Checks call arity of standard library calls against the embedded ABI").
		WithType(cli.TypeBool)).
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

	var opts []jack.Option
	if _, enabled := options["check-stdlib"]; enabled {
		opts = append(opts, jack.WithStdlibCheck())
	}

	// Each '.jack' file is its own translation unit/class: it is tokenized,
	// parsed and lowered to VM code independently and written to its own
	// sibling '.vm' file, matching the course's "one class per file" model.
	for _, source := range sources {
		content, err := os.ReadFile(source)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		outputPath := strings.TrimSuffix(source, filepath.Ext(source)) + ".vm"
		output, err := os.Create(outputPath)
		if err != nil {
			fmt.Printf("ERROR: Unable to open output file: %s\n", err)
			return -1
		}

		if err := jack.Compile(content, output, opts...); err != nil {
			output.Close()
			fmt.Printf("ERROR: Unable to compile '%s': %s\n", source, err)
			return -1
		}
		output.Close()
	}

	return 0
}

// collectSources resolves the 'input' CLI argument to the list of '.jack'
// files that should be compiled: either the single file itself, or every
// '.jack' file directly inside the given directory (os.ReadDir returns
// entries sorted by name, so the output order is deterministic).
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
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jack" {
			continue
		}
		sources = append(sources, filepath.Join(input, entry.Name()))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no '.jack' files found in directory '%s'", input)
	}
	return sources, nil
}

func main() { os.Exit(JackCompiler.Run(os.Args, os.Stdout)) }
