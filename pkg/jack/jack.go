// Package jack implements the front two stages of the Jack toolchain: a
// lazy Tokenizer, a two-scope SymbolTable, a small VM Emitter, and a
// recursive-descent CompilationEngine that drives the other three to turn
// one Jack class into VM text, mirroring the course's own single-pass
// "tokenize, parse, emit" reference architecture rather than building an
// intermediate AST.
package jack

import "io"

// Compile reads one Jack class from 'source' and writes its compiled VM
// instructions to 'out'. It is the entrypoint cmd/jack_compiler uses for
// every input file; 'opts' may enable optional checks such as the
// stdlib call-arity check.
func Compile(source []byte, out io.Writer, opts ...Option) error {
	tok := NewTokenizer(source)
	emitter := NewEmitter(out)
	engine := NewCompilationEngine(tok, emitter)

	for _, opt := range opts {
		opt(engine)
	}

	return engine.CompileClass()
}

// Option configures a CompilationEngine constructed by Compile.
type Option func(*CompilationEngine)

// WithStdlibCheck enables the optional call-arity check against the
// embedded standard-library ABI.
func WithStdlibCheck() Option {
	return func(c *CompilationEngine) { c.EnableStdlibCheck() }
}
