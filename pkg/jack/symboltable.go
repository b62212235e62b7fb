package jack

import "fmt"

// Kind classifies a declared Jack identifier; it also determines which VM
// segment the identifier is read from or written to during code generation.
// The Tokenizer's token kinds (token.go) are values of this same type.
type Kind string

const (
	STATIC Kind = "STATIC" // class scope, shared by every instance
	FIELD  Kind = "FIELD"  // class scope, one slot per object instance
	ARG    Kind = "ARG"    // subroutine scope, caller-supplied parameter
	VAR    Kind = "VAR"    // subroutine scope, local variable
)

type symbolEntry struct {
	typ  string
	kind Kind
	idx  int
}

// SymbolTable is the two-level (class, subroutine) scope the Compilation
// Engine consults while generating code: STATIC/FIELD entries live in the
// class scope and persist for the whole class; ARG/VAR entries live in the
// subroutine scope and are cleared by StartSubroutine. A lookup always
// checks the subroutine scope first, so a subroutine-local name shadows a
// same-named class member.
type SymbolTable struct {
	class      map[string]symbolEntry
	classCount map[Kind]int

	sub      map[string]symbolEntry
	subCount map[Kind]int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		class:      map[string]symbolEntry{},
		classCount: map[Kind]int{},
		sub:        map[string]symbolEntry{},
		subCount:   map[Kind]int{},
	}
}

// StartSubroutine clears the subroutine scope and resets the ARG/VAR
// counters; it must be called once per subroutine, before any parameter or
// local is defined. Class-scope entries and counters are untouched.
func (st *SymbolTable) StartSubroutine() {
	st.sub = map[string]symbolEntry{}
	st.subCount = map[Kind]int{}
}

// Define registers 'name' in the scope implied by 'kind' (class scope for
// STATIC/FIELD, subroutine scope for ARG/VAR) and returns the index it was
// assigned: the current per-(scope, kind) count, which is then incremented.
// Redefining an already-declared name in the same scope silently overwrites
// it - the spec leaves this case unspecified and course inputs never hit it.
func (st *SymbolTable) Define(name, typ string, kind Kind) int {
	switch kind {
	case STATIC, FIELD:
		idx := st.classCount[kind]
		st.classCount[kind]++
		st.class[name] = symbolEntry{typ: typ, kind: kind, idx: idx}
		return idx
	case ARG, VAR:
		idx := st.subCount[kind]
		st.subCount[kind]++
		st.sub[name] = symbolEntry{typ: typ, kind: kind, idx: idx}
		return idx
	default:
		panic(fmt.Sprintf("jack: Define called with unknown kind %q", kind))
	}
}

// VarCount reports how many entries of 'kind' are currently declared: class
// scope for STATIC/FIELD (spans the whole class), subroutine scope for
// ARG/VAR (spans only the current subroutine).
func (st *SymbolTable) VarCount(kind Kind) int {
	switch kind {
	case STATIC, FIELD:
		return st.classCount[kind]
	default:
		return st.subCount[kind]
	}
}

func (st *SymbolTable) lookup(name string) (symbolEntry, bool) {
	if e, ok := st.sub[name]; ok {
		return e, true
	}
	e, ok := st.class[name]
	return e, ok
}

// KindOf, TypeOf and IndexOf all report the 'not found' case via the boolean
// return rather than a sentinel Kind/string/int value, since STATIC/"" etc.
// are all valid answers for an actually-declared name.
func (st *SymbolTable) KindOf(name string) (Kind, bool) {
	e, ok := st.lookup(name)
	return e.kind, ok
}

func (st *SymbolTable) TypeOf(name string) (string, bool) {
	e, ok := st.lookup(name)
	return e.typ, ok
}

func (st *SymbolTable) IndexOf(name string) (int, bool) {
	e, ok := st.lookup(name)
	return e.idx, ok
}

// segmentOf maps a Kind to the VM memory segment its values live in.
func segmentOf(kind Kind) Segment {
	switch kind {
	case STATIC:
		return SegStatic
	case FIELD:
		return SegThis
	case ARG:
		return SegArgument
	default: // VAR
		return SegLocal
	}
}
