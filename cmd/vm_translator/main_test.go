package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVMTranslatorSingleFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "SimpleAdd.vm")
	source := "push constant 7\npush constant 8\nadd\n"
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatalf("failed to write input fixture: %v", err)
	}

	if status := Handler([]string{input}, nil); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	compiled, err := os.ReadFile(filepath.Join(dir, "SimpleAdd.asm"))
	if err != nil {
		t.Fatalf("error reading output file: %v", err)
	}

	expected := strings.Join([]string{
		"@7", "D=A", "@SP", "A=M", "M=D", "@SP", "M=M+1",
		"@8", "D=A", "@SP", "A=M", "M=D", "@SP", "M=M+1",
		"@SP", "M=M-1", "@SP", "A=M", "D=M", "A=A-1", "M=D+M",
	}, "\n") + "\n"

	if string(compiled) != expected {
		t.Errorf("compiled output mismatch:\n got:\n%s\n want:\n%s", compiled, expected)
	}
}

func TestVMTranslatorSingleFileHasNoBootstrap(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "NoOp.vm")
	if err := os.WriteFile(input, []byte("push constant 0\n"), 0644); err != nil {
		t.Fatalf("failed to write input fixture: %v", err)
	}

	if status := Handler([]string{input}, nil); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	compiled, err := os.ReadFile(filepath.Join(dir, "NoOp.asm"))
	if err != nil {
		t.Fatalf("error reading output file: %v", err)
	}
	if strings.Contains(string(compiled), "Sys.init") {
		t.Errorf("single-file translation must never include bootstrap code, got:\n%s", compiled)
	}
}

func TestVMTranslatorDirectoryBootstrap(t *testing.T) {
	dir := t.TempDir()
	source := "function Sys.init 0\npush constant 0\nreturn\n"
	if err := os.WriteFile(filepath.Join(dir, "Sys.vm"), []byte(source), 0644); err != nil {
		t.Fatalf("failed to write input fixture: %v", err)
	}

	if status := Handler([]string{dir}, nil); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	outputPath := filepath.Join(dir, filepath.Base(dir)+".asm")
	compiled, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("error reading output file %s: %v", outputPath, err)
	}

	// SP=256, then a full 'call Sys.init 0' sequence.
	push := []string{"@SP", "A=M", "M=D", "@SP", "M=M+1"}
	sequence := append([]string{"@256", "D=A", "@SP", "M=D", "@Sys.init$ret.0", "D=A"}, push...)
	for _, reg := range []string{"@LCL", "@ARG", "@THIS", "@THAT"} {
		sequence = append(append(sequence, reg, "D=M"), push...)
	}
	sequence = append(sequence,
		"@SP", "D=M", "@5", "D=D-A", "@0", "D=D-A", "@ARG", "M=D",
		"@SP", "D=M", "@LCL", "M=D",
		"@Sys.init", "0;JMP", "(Sys.init$ret.0)",
	)
	bootstrap := strings.Join(sequence, "\n")
	if !strings.HasPrefix(string(compiled), bootstrap) {
		t.Errorf("expected output to start with the bootstrap sequence, got:\n%s", compiled)
	}
	if !strings.Contains(string(compiled), "(Sys.init)") {
		t.Errorf("expected output to contain the 'Sys.init' function label, got:\n%s", compiled)
	}
}

func TestVMTranslatorMultiModuleDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"Main.vm": "function Main.main 0\ncall Helper.double 1\nreturn\n",
		"Helper.vm": "function Helper.double 0\npush argument 0\npush argument 0\nadd\nreturn\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write input fixture %s: %v", name, err)
		}
	}

	if status := Handler([]string{dir}, nil); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	outputPath := filepath.Join(dir, filepath.Base(dir)+".asm")
	compiled, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("error reading output file %s: %v", outputPath, err)
	}
	for _, label := range []string{"(Main.main)", "(Helper.double)"} {
		if !strings.Contains(string(compiled), label) {
			t.Errorf("expected output to contain label %q, got:\n%s", label, compiled)
		}
	}
}

func TestVMTranslatorMissingInput(t *testing.T) {
	dir := t.TempDir()
	status := Handler([]string{filepath.Join(dir, "missing.vm")}, nil)
	if status == 0 {
		t.Fatal("expected non-zero exit status for missing input")
	}
}

func TestVMTranslatorEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	status := Handler([]string{dir}, nil)
	if status == 0 {
		t.Fatal("expected non-zero exit status for a directory with no '.vm' files")
	}
}
