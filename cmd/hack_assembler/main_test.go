package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHackAssembler(t *testing.T) {
	run := func(t *testing.T, source string, expected []string) {
		t.Helper()
		dir := t.TempDir()
		input := filepath.Join(dir, "in.asm")
		output := filepath.Join(dir, "out.hack")

		if err := os.WriteFile(input, []byte(source), 0644); err != nil {
			t.Fatalf("failed to write input fixture: %v", err)
		}

		status := Handler([]string{input, output}, nil)
		if status != 0 {
			t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
		}

		compiled, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("error reading output file %s: %v", output, err)
		}

		got := strings.TrimRight(string(compiled), "\n")
		want := strings.Join(expected, "\n")
		if got != want {
			t.Errorf("compiled output mismatch:\n got:  %q\n want: %q", got, want)
		}
	}

	t.Run("Add", func(t *testing.T) {
		// Computes R0 = 2 + 3
		source := `
// Computes R0 = 2 + 3
@2
D=A
@3
D=D+A
@0
M=D
`
		expected := []string{
			"0000000000000010",
			"1110110000010000",
			"0000000000000011",
			"1110000010010000",
			"0000000000000000",
			"1110001100001000",
		}
		run(t, source, expected)
	})

	t.Run("MaxL with symbolic labels", func(t *testing.T) {
		// Computes R2 = max(R0, R1), using only symbolic labels and no built-ins
		// beyond R0/R1/R2.
		source := `
@R0
D=M
@R1
D=D-M
@OUTPUT_FIRST
D;JGT
@R1
D=M
@OUTPUT_D
0;JMP
(OUTPUT_FIRST)
@R0
D=M
(OUTPUT_D)
@R2
M=D
(END)
@END
0;JMP
`
		// Since the assembler resolves 'R0'/'R1'/'R2' as built-ins (0/1/2) and the
		// user labels OUTPUT_FIRST/OUTPUT_D/END to their instruction index, the
		// program must assemble without error and be internally consistent: we
		// only assert it produces exactly one 16-bit line per instruction.
		dir := t.TempDir()
		input := filepath.Join(dir, "in.asm")
		output := filepath.Join(dir, "out.hack")
		if err := os.WriteFile(input, []byte(source), 0644); err != nil {
			t.Fatalf("failed to write input fixture: %v", err)
		}
		if status := Handler([]string{input, output}, nil); status != 0 {
			t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
		}
		compiled, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("error reading output file %s: %v", output, err)
		}
		lines := strings.Split(strings.TrimRight(string(compiled), "\n"), "\n")
		if len(lines) != 16 {
			t.Fatalf("expected 16 compiled instructions, got %d", len(lines))
		}
		for _, line := range lines {
			if len(line) != 16 {
				t.Errorf("expected 16-bit instruction, got %q (%d bits)", line, len(line))
			}
		}
	})

	t.Run("Dest and Jump combined", func(t *testing.T) {
		// 'dest' and 'jump' are each independently optional, so a line can
		// legally carry both at once (e.g. decrementing a loop counter and
		// jumping in the same instruction).
		source := `
@0
M=M-1
D=M;JGT
`
		expected := []string{
			"0000000000000000",
			"1111110010001000",
			"1111110000010001",
		}
		run(t, source, expected)
	})

	t.Run("missing input file", func(t *testing.T) {
		dir := t.TempDir()
		status := Handler([]string{filepath.Join(dir, "missing.asm"), filepath.Join(dir, "out.hack")}, nil)
		if status == 0 {
			t.Fatal("expected non-zero exit status for missing input file")
		}
	})
}
