package vm

import (
	"fmt"
	"sort"

	"github.com/n2t-go/hacktool/pkg/asm"
)

// segmentBase maps the four pointer-backed segments to the built-in Hack
// label that holds their base address.
var segmentBase = map[SegmentType]string{
	Local:    "LCL",
	Argument: "ARG",
	This:     "THIS",
	That:     "THAT",
}

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Program' (already parsed into typed operations by
// the Parser) and produces its 'asm.Program' counterpart, implementing the
// Hack VM's segment addressing, arithmetic, control-flow and calling
// convention.
//
// Modules are lowered in name-sorted order so that output is deterministic;
// the VM language places no ordering requirement between independent
// translation units (only 'Sys.init', driven by the bootstrap sequence, is
// special, and that's wired in by the caller, not here).
type Lowerer struct {
	program   Program
	jumpCount int // unique id for comparison jump labels (JUMPn / ENDJUMPn)
	callCount int // unique id for call return labels (fn$ret.n)
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program to be not nil nor empty.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Triggers the lowering process, module by module, operation by operation.
func (l *Lowerer) Lower() (asm.Program, error) {
	if len(l.program) == 0 {
		return nil, fmt.Errorf("the given 'program' is empty")
	}

	names := make([]string, 0, len(l.program))
	for name := range l.program {
		names = append(names, name)
	}
	sort.Strings(names)

	out := asm.Program{}
	for _, name := range names {
		for _, operation := range l.program[name] {
			instructions, err := l.lowerOperation(name, operation)
			if err != nil {
				return nil, fmt.Errorf("module '%s': %w", name, err)
			}
			out = append(out, instructions...)
		}
	}

	return out, nil
}

func (l *Lowerer) lowerOperation(module string, op Operation) ([]asm.Instruction, error) {
	switch t := op.(type) {
	case MemoryOp:
		return l.lowerMemoryOp(module, t)
	case ArithmeticOp:
		return l.lowerArithmeticOp(t)
	case LabelDecl:
		return l.lowerLabelDecl(module, t)
	case GotoOp:
		return l.lowerGotoOp(module, t)
	case FuncDecl:
		return l.lowerFuncDecl(t)
	case FuncCallOp:
		return l.lowerFuncCallOp(t)
	case ReturnOp:
		return l.lowerReturnOp()
	default:
		return nil, fmt.Errorf("unrecognized operation '%T'", op)
	}
}

// ----------------------------------------------------------------------------
// Stack push/pop helpers

// pushD appends the value currently held in the D register to the top of the stack.
func pushD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

// popD removes the top of the stack and loads its value into the D register.
func popD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
}

// ----------------------------------------------------------------------------
// Memory operations

func (l *Lowerer) lowerMemoryOp(module string, op MemoryOp) ([]asm.Instruction, error) {
	switch op.Segment {
	case Constant:
		if op.Operation != Push {
			return nil, fmt.Errorf("cannot 'pop' into the 'constant' segment")
		}
		out := []asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}
		return append(out, pushD()...), nil

	case Local, Argument, This, That:
		return l.lowerIndirectSegmentOp(op, segmentBase[op.Segment])

	case Static:
		return l.lowerDirectSegmentOp(op, fmt.Sprintf("%s.%d", module, op.Offset))

	case Pointer:
		if op.Offset > 1 {
			return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
		}
		return l.lowerDirectSegmentOp(op, fmt.Sprint(3+op.Offset))

	case Temp:
		if op.Offset > 7 {
			return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
		}
		return l.lowerDirectSegmentOp(op, fmt.Sprint(5+op.Offset))

	default:
		return nil, fmt.Errorf("unrecognized SegmentType '%s'", op.Segment)
	}
}

// lowerIndirectSegmentOp handles push/pop for the four segments whose base
// (LCL/ARG/THIS/THAT) is itself a pointer variable: the real address is
// base + offset, computed through M.
func (l *Lowerer) lowerIndirectSegmentOp(op MemoryOp, baseLabel string) ([]asm.Instruction, error) {
	base := asm.AInstruction{Location: baseLabel}

	switch op.Operation {
	case Push:
		out := []asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
			base,
			asm.CInstruction{Dest: "A", Comp: "D+M"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
		return append(out, pushD()...), nil

	case Pop:
		out := []asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
			base,
			asm.CInstruction{Dest: "D", Comp: "D+M"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}
		out = append(out, popD()...)
		out = append(out,
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		)
		return out, nil

	default:
		return nil, fmt.Errorf("unrecognized OperationType '%s'", op.Operation)
	}
}

// lowerDirectSegmentOp handles push/pop for the three segments whose
// offset is already baked into the caller-supplied absolute location
// (static/pointer/temp): no further address arithmetic is needed.
func (l *Lowerer) lowerDirectSegmentOp(op MemoryOp, location string) ([]asm.Instruction, error) {
	addr := asm.AInstruction{Location: location}

	switch op.Operation {
	case Push:
		out := []asm.Instruction{addr, asm.CInstruction{Dest: "D", Comp: "M"}}
		return append(out, pushD()...), nil

	case Pop:
		out := popD()
		return append(out, addr, asm.CInstruction{Dest: "M", Comp: "D"}), nil

	default:
		return nil, fmt.Errorf("unrecognized OperationType '%s'", op.Operation)
	}
}

// ----------------------------------------------------------------------------
// Arithmetic operations

var binaryComp = map[ArithOpType]string{
	Add: "D+M",
	Sub: "M-D",
	And: "D&M",
	Or:  "D|M",
}

var unaryComp = map[ArithOpType]string{
	Neg: "-M",
	Not: "!M",
}

var comparisonJump = map[ArithOpType]string{
	Eq: "JEQ",
	Gt: "JGT",
	Lt: "JLT",
}

func (l *Lowerer) lowerArithmeticOp(op ArithmeticOp) ([]asm.Instruction, error) {
	if comp, ok := unaryComp[op.Operation]; ok {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil
	}

	if comp, ok := binaryComp[op.Operation]; ok {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M-1"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil
	}

	if jump, ok := comparisonJump[op.Operation]; ok {
		trueLabel := fmt.Sprintf("JUMP%d", l.jumpCount)
		endLabel := fmt.Sprintf("ENDJUMP%d", l.jumpCount)
		l.jumpCount++

		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M-1"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "D", Comp: "M-D"},
			asm.AInstruction{Location: trueLabel},
			asm.CInstruction{Comp: "D", Jump: jump},
			// Default-false case, reached when the comparison doesn't hold.
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: endLabel},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
			// True case.
			asm.LabelDecl{Name: trueLabel},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: "-1"},
			asm.LabelDecl{Name: endLabel},
		}, nil
	}

	return nil, fmt.Errorf("unrecognized ArithOpType '%s'", op.Operation)
}

// ----------------------------------------------------------------------------
// Control flow

func (l *Lowerer) lowerLabelDecl(module string, op LabelDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty label declaration")
	}
	return []asm.Instruction{asm.LabelDecl{Name: qualify(module, op.Name)}}, nil
}

func (l *Lowerer) lowerGotoOp(module string, op GotoOp) ([]asm.Instruction, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to produce empty jump label")
	}

	target := asm.AInstruction{Location: qualify(module, op.Label)}

	switch op.Jump {
	case Unconditional:
		return []asm.Instruction{target, asm.CInstruction{Comp: "0", Jump: "JMP"}}, nil
	case Conditional:
		out := popD()
		return append(out, target, asm.CInstruction{Comp: "D", Jump: "JNE"}), nil
	default:
		return nil, fmt.Errorf("unrecognized JumpType '%s'", op.Jump)
	}
}

func qualify(module, label string) string { return fmt.Sprintf("%s$%s", module, label) }

// ----------------------------------------------------------------------------
// Function declaration, call and return

func (l *Lowerer) lowerFuncDecl(op FuncDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function declaration")
	}

	out := []asm.Instruction{asm.LabelDecl{Name: op.Name}}
	for i := uint16(0); i < op.NLocal; i++ {
		out = append(out,
			asm.AInstruction{Location: "0"},
			asm.CInstruction{Dest: "D", Comp: "A"},
		)
		out = append(out, pushD()...)
	}
	return out, nil
}

// pushFrameRegister pushes the current value of a built-in pointer (LCL,
// ARG, THIS, THAT) onto the stack, part of the call-frame save sequence.
func pushFrameRegister(name string) []asm.Instruction {
	out := []asm.Instruction{
		asm.AInstruction{Location: name},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
	return append(out, pushD()...)
}

func (l *Lowerer) lowerFuncCallOp(op FuncCallOp) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function call")
	}

	returnLabel := fmt.Sprintf("%s$ret.%d", op.Name, l.callCount)
	l.callCount++

	out := []asm.Instruction{
		asm.AInstruction{Location: returnLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	out = append(out, pushD()...)
	out = append(out, pushFrameRegister("LCL")...)
	out = append(out, pushFrameRegister("ARG")...)
	out = append(out, pushFrameRegister("THIS")...)
	out = append(out, pushFrameRegister("THAT")...)

	// ARG = SP - 5 - nArgs
	out = append(out,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: fmt.Sprint(op.NArgs)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = SP
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// Unconditional jump to the callee. Always emitted (REDESIGN FLAG b).
		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: returnLabel},
	)

	return out, nil
}

// restoreFrameRegister restores a caller-saved register from FRAME (stored
// in R13) at the given negative offset from the frame's base.
func restoreFrameRegister(name string, offsetFromFrame uint16) []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(offsetFromFrame)},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: name},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
}

func (l *Lowerer) lowerReturnOp() ([]asm.Instruction, error) {
	out := []asm.Instruction{
		// FRAME (R13) = LCL
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// RET (R14) = *(FRAME - 5)
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	// *ARG = pop()
	out = append(out, popD()...)
	out = append(out,
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// SP = ARG + 1
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)

	out = append(out, restoreFrameRegister("THAT", 1)...)
	out = append(out, restoreFrameRegister("THIS", 2)...)
	out = append(out, restoreFrameRegister("ARG", 3)...)
	out = append(out, restoreFrameRegister("LCL", 4)...)

	out = append(out,
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	)

	return out, nil
}
