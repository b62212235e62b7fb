package jack

import (
	"fmt"
	"io"
)

// Segment names one of the VM's eight addressable memory segments.
type Segment string

const (
	SegConstant Segment = "constant"
	SegArgument Segment = "argument"
	SegLocal    Segment = "local"
	SegStatic   Segment = "static"
	SegThis     Segment = "this"
	SegThat     Segment = "that"
	SegPointer  Segment = "pointer"
	SegTemp     Segment = "temp"
)

// Emitter formats the small, fixed VM instruction set onto an io.Writer, one
// instruction per line. It holds no state of its own and shares no Go types
// with the VM Translator (pkg/vm): per the pipeline's design, the boundary
// between the Jack Compiler and the VM Translator is a plain byte stream.
type Emitter struct{ w io.Writer }

func NewEmitter(w io.Writer) *Emitter { return &Emitter{w: w} }

func (e *Emitter) line(s string) { fmt.Fprintln(e.w, s) }

func (e *Emitter) Push(seg Segment, index int) { e.line(fmt.Sprintf("push %s %d", seg, index)) }
func (e *Emitter) Pop(seg Segment, index int)  { e.line(fmt.Sprintf("pop %s %d", seg, index)) }

// Arithmetic emits one of the nine zero-operand ops: add, sub, neg, eq, gt,
// lt, and, or, not.
func (e *Emitter) Arithmetic(op string) { e.line(op) }

func (e *Emitter) Label(name string)  { e.line("label " + name) }
func (e *Emitter) Goto(name string)   { e.line("goto " + name) }
func (e *Emitter) IfGoto(name string) { e.line("if-goto " + name) }

func (e *Emitter) Function(name string, nLocals int) {
	e.line(fmt.Sprintf("function %s %d", name, nLocals))
}

func (e *Emitter) Call(name string, nArgs int) {
	e.line(fmt.Sprintf("call %s %d", name, nArgs))
}

func (e *Emitter) Return() { e.line("return") }
