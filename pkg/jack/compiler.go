package jack

import (
	"fmt"
	"strconv"
)

// CompilationEngine is a recursive-descent parser over the Jack grammar
// that, instead of building an intermediate AST, drives the SymbolTable and
// Emitter directly as it recognizes each construct - exactly the "parse one
// construct, emit its code, move on" shape the course's own reference
// compiler uses. The grammar is LL(1); the one extra token of lookahead
// needed to tell 'name(' from 'name.member(' is bought with the Tokenizer's
// one-slot pushback buffer via peek().
//
// The parser assumes grammatically valid input: an unexpected token aborts
// compilation immediately (returned as an error) with no recovery attempt.
type CompilationEngine struct {
	tok *Tokenizer
	out *Emitter
	st  *SymbolTable

	class string // name of the class currently being compiled

	ifLabel    int // monotonic per-engine counter, shared by every 'if' in the class, never reset
	whileLabel int // same, for every 'while'

	checkStdlib bool
}

// NewCompilationEngine wires a Tokenizer positioned at the start of a class
// to an Emitter that will receive its compiled VM instructions.
func NewCompilationEngine(tok *Tokenizer, out *Emitter) *CompilationEngine {
	return &CompilationEngine{tok: tok, out: out, st: NewSymbolTable()}
}

// EnableStdlibCheck turns on the optional call-arity check against the
// embedded standard-library ABI (see stdlib.go) for every resolved external
// subroutine call.
func (c *CompilationEngine) EnableStdlibCheck() { c.checkStdlib = true }

// ----------------------------------------------------------------------------
// Token plumbing

func (c *CompilationEngine) advance() (Token, error) {
	if err := c.tok.Advance(); err != nil {
		return Token{}, fmt.Errorf("unexpected end of input: %w", err)
	}
	return c.tok.Current(), nil
}

// peek returns the next token without consuming it, via the Tokenizer's
// one-slot pushback buffer.
func (c *CompilationEngine) peek() (Token, error) {
	tok, err := c.advance()
	if err != nil {
		return tok, err
	}
	c.tok.PushBack(tok)
	return tok, nil
}

func (c *CompilationEngine) expectSymbol(sym string) error {
	tok, err := c.advance()
	if err != nil {
		return err
	}
	if tok.Kind != SymbolTok || tok.Text != sym {
		return fmt.Errorf("expected symbol %q, got %q", sym, tok.Text)
	}
	return nil
}

func (c *CompilationEngine) expectKeyword(words ...string) (string, error) {
	tok, err := c.advance()
	if err != nil {
		return "", err
	}
	if tok.Kind != KeywordTok {
		return "", fmt.Errorf("expected keyword %v, got %q", words, tok.Text)
	}
	for _, w := range words {
		if tok.Text == w {
			return tok.Text, nil
		}
	}
	return "", fmt.Errorf("expected keyword %v, got %q", words, tok.Text)
}

func (c *CompilationEngine) expectIdentifier() (string, error) {
	tok, err := c.advance()
	if err != nil {
		return "", err
	}
	if tok.Kind != IdentifierTok {
		return "", fmt.Errorf("expected identifier, got %q", tok.Text)
	}
	return tok.Text, nil
}

func isSymbol(tok Token, sym string) bool { return tok.Kind == SymbolTok && tok.Text == sym }
func isKeyword(tok Token, word string) bool { return tok.Kind == KeywordTok && tok.Text == word }

// compileType accepts 'int' | 'char' | 'boolean' | className and returns its
// textual spelling; used for class-var, parameter and local declarations
// where 'void' is not a legal type.
func (c *CompilationEngine) compileType() (string, error) {
	tok, err := c.advance()
	if err != nil {
		return "", err
	}
	if tok.Kind == IdentifierTok {
		return tok.Text, nil
	}
	if tok.Kind == KeywordTok && (tok.Text == "int" || tok.Text == "char" || tok.Text == "boolean") {
		return tok.Text, nil
	}
	return "", fmt.Errorf("expected a type, got %q", tok.Text)
}

// compileReturnType is compileType plus the 'void' keyword, for subroutine
// return types.
func (c *CompilationEngine) compileReturnType() (string, error) {
	tok, err := c.peek()
	if err == nil && isKeyword(tok, "void") {
		c.advance()
		return "void", nil
	}
	return c.compileType()
}

// ----------------------------------------------------------------------------
// Class

// CompileClass parses a single 'class Name { ... }' declaration and emits
// the VM code for its entire body.
func (c *CompilationEngine) CompileClass() error {
	if _, err := c.expectKeyword("class"); err != nil {
		return err
	}
	name, err := c.expectIdentifier()
	if err != nil {
		return fmt.Errorf("error parsing class name: %w", err)
	}
	c.class = name

	if err := c.expectSymbol("{"); err != nil {
		return err
	}

	for {
		tok, err := c.peek()
		if err != nil {
			return fmt.Errorf("error parsing class body: %w", err)
		}
		if !isKeyword(tok, "static") && !isKeyword(tok, "field") {
			break
		}
		if err := c.compileClassVarDec(); err != nil {
			return fmt.Errorf("error parsing class variable declaration: %w", err)
		}
	}

	for {
		tok, err := c.peek()
		if err != nil {
			return fmt.Errorf("error parsing class body: %w", err)
		}
		if !isKeyword(tok, "constructor") && !isKeyword(tok, "function") && !isKeyword(tok, "method") {
			break
		}
		if err := c.compileSubroutine(); err != nil {
			return fmt.Errorf("error parsing subroutine in class %q: %w", c.class, err)
		}
	}

	return c.expectSymbol("}")
}

func (c *CompilationEngine) compileClassVarDec() error {
	kindWord, err := c.expectKeyword("static", "field")
	if err != nil {
		return err
	}
	kind := STATIC
	if kindWord == "field" {
		kind = FIELD
	}

	typ, err := c.compileType()
	if err != nil {
		return err
	}

	for {
		name, err := c.expectIdentifier()
		if err != nil {
			return err
		}
		c.st.Define(name, typ, kind)

		tok, err := c.peek()
		if err != nil {
			return err
		}
		if !isSymbol(tok, ",") {
			break
		}
		c.advance()
	}

	return c.expectSymbol(";")
}

// ----------------------------------------------------------------------------
// Subroutines

func (c *CompilationEngine) compileSubroutine() error {
	kind, err := c.expectKeyword("constructor", "function", "method")
	if err != nil {
		return err
	}

	c.st.StartSubroutine()
	if kind == "method" {
		// Reserved ARG slot 0 for the implicit receiver; never read back by
		// name, only relied on for its index via the method prelude below.
		c.st.Define("this", c.class, ARG)
	}

	if _, err := c.compileReturnType(); err != nil {
		return fmt.Errorf("error parsing return type: %w", err)
	}
	name, err := c.expectIdentifier()
	if err != nil {
		return fmt.Errorf("error parsing subroutine name: %w", err)
	}

	if err := c.expectSymbol("("); err != nil {
		return err
	}
	if err := c.compileParameterList(); err != nil {
		return fmt.Errorf("error parsing parameter list of %q: %w", name, err)
	}
	if err := c.expectSymbol(")"); err != nil {
		return err
	}

	if err := c.expectSymbol("{"); err != nil {
		return err
	}
	for {
		tok, err := c.peek()
		if err != nil {
			return err
		}
		if !isKeyword(tok, "var") {
			break
		}
		if err := c.compileVarDec(); err != nil {
			return fmt.Errorf("error parsing local variable declaration: %w", err)
		}
	}

	c.out.Function(c.class+"."+name, c.st.VarCount(VAR))

	switch kind {
	case "constructor":
		c.out.Push(SegConstant, c.st.VarCount(FIELD))
		c.out.Call("Memory.alloc", 1)
		c.out.Pop(SegPointer, 0)
	case "method":
		c.out.Push(SegArgument, 0)
		c.out.Pop(SegPointer, 0)
	}

	if err := c.CompileStatements(); err != nil {
		return fmt.Errorf("error parsing body of %q: %w", name, err)
	}
	return c.expectSymbol("}")
}

func (c *CompilationEngine) compileParameterList() error {
	tok, err := c.peek()
	if err != nil {
		return err
	}
	if isSymbol(tok, ")") {
		return nil
	}

	for {
		typ, err := c.compileType()
		if err != nil {
			return err
		}
		name, err := c.expectIdentifier()
		if err != nil {
			return err
		}
		c.st.Define(name, typ, ARG)

		tok, err := c.peek()
		if err != nil {
			return err
		}
		if !isSymbol(tok, ",") {
			return nil
		}
		c.advance()
	}
}

func (c *CompilationEngine) compileVarDec() error {
	if _, err := c.expectKeyword("var"); err != nil {
		return err
	}
	typ, err := c.compileType()
	if err != nil {
		return err
	}

	for {
		name, err := c.expectIdentifier()
		if err != nil {
			return err
		}
		c.st.Define(name, typ, VAR)

		tok, err := c.peek()
		if err != nil {
			return err
		}
		if !isSymbol(tok, ",") {
			break
		}
		c.advance()
	}

	return c.expectSymbol(";")
}

// ----------------------------------------------------------------------------
// Statements

// CompileStatements parses zero or more statements until a token that
// cannot start one (structurally, the closing '}' of the enclosing block).
func (c *CompilationEngine) CompileStatements() error {
	for {
		tok, err := c.peek()
		if err != nil {
			return err
		}
		if tok.Kind != KeywordTok {
			return nil
		}

		var stmtErr error
		switch tok.Text {
		case "let":
			stmtErr = c.compileLet()
		case "if":
			stmtErr = c.compileIf()
		case "while":
			stmtErr = c.compileWhile()
		case "do":
			stmtErr = c.compileDo()
		case "return":
			stmtErr = c.compileReturn()
		default:
			return nil
		}
		if stmtErr != nil {
			return stmtErr
		}
	}
}

func (c *CompilationEngine) compileLet() error {
	if _, err := c.expectKeyword("let"); err != nil {
		return err
	}
	name, err := c.expectIdentifier()
	if err != nil {
		return err
	}

	tok, err := c.peek()
	if err != nil {
		return err
	}
	isArray := isSymbol(tok, "[")
	if isArray {
		c.advance()
		if err := c.CompileExpression(); err != nil {
			return fmt.Errorf("error parsing array index: %w", err)
		}
		if err := c.expectSymbol("]"); err != nil {
			return err
		}
		if err := c.pushVar(name); err != nil {
			return err
		}
		c.out.Arithmetic("add")
	}

	if err := c.expectSymbol("="); err != nil {
		return err
	}
	if err := c.CompileExpression(); err != nil {
		return fmt.Errorf("error parsing right-hand side: %w", err)
	}
	if err := c.expectSymbol(";"); err != nil {
		return err
	}

	if isArray {
		// 'e' may itself touch 'pointer 1', so the target address computed
		// above has to be stashed in 'temp 0' until after 'e' is evaluated.
		c.out.Pop(SegTemp, 0)
		c.out.Pop(SegPointer, 1)
		c.out.Push(SegTemp, 0)
		c.out.Pop(SegThat, 0)
		return nil
	}
	return c.popVar(name)
}

func (c *CompilationEngine) compileIf() error {
	if _, err := c.expectKeyword("if"); err != nil {
		return err
	}
	if err := c.expectSymbol("("); err != nil {
		return err
	}
	if err := c.CompileExpression(); err != nil {
		return fmt.Errorf("error parsing condition: %w", err)
	}
	if err := c.expectSymbol(")"); err != nil {
		return err
	}

	k := c.ifLabel
	c.ifLabel++
	trueLbl := fmt.Sprintf("IF_TRUE%d", k)
	falseLbl := fmt.Sprintf("IF_FALSE%d", k)
	endLbl := fmt.Sprintf("IF_END%d", k)

	c.out.IfGoto(trueLbl)
	c.out.Goto(falseLbl)
	c.out.Label(trueLbl)

	if err := c.expectSymbol("{"); err != nil {
		return err
	}
	if err := c.CompileStatements(); err != nil {
		return fmt.Errorf("error parsing 'then' block: %w", err)
	}
	if err := c.expectSymbol("}"); err != nil {
		return err
	}
	c.out.Goto(endLbl)
	c.out.Label(falseLbl)

	tok, err := c.peek()
	if err != nil {
		return err
	}
	if isKeyword(tok, "else") {
		c.advance()
		if err := c.expectSymbol("{"); err != nil {
			return err
		}
		if err := c.CompileStatements(); err != nil {
			return fmt.Errorf("error parsing 'else' block: %w", err)
		}
		if err := c.expectSymbol("}"); err != nil {
			return err
		}
	}
	c.out.Label(endLbl)
	return nil
}

func (c *CompilationEngine) compileWhile() error {
	if _, err := c.expectKeyword("while"); err != nil {
		return err
	}

	k := c.whileLabel
	c.whileLabel++
	expLbl := fmt.Sprintf("WHILE_EXP%d", k)
	endLbl := fmt.Sprintf("WHILE_END%d", k)

	c.out.Label(expLbl)
	if err := c.expectSymbol("("); err != nil {
		return err
	}
	if err := c.CompileExpression(); err != nil {
		return fmt.Errorf("error parsing condition: %w", err)
	}
	if err := c.expectSymbol(")"); err != nil {
		return err
	}
	c.out.Arithmetic("not")
	c.out.IfGoto(endLbl)

	if err := c.expectSymbol("{"); err != nil {
		return err
	}
	if err := c.CompileStatements(); err != nil {
		return fmt.Errorf("error parsing loop body: %w", err)
	}
	if err := c.expectSymbol("}"); err != nil {
		return err
	}
	c.out.Goto(expLbl)
	c.out.Label(endLbl)
	return nil
}

func (c *CompilationEngine) compileDo() error {
	if _, err := c.expectKeyword("do"); err != nil {
		return err
	}
	name, err := c.expectIdentifier()
	if err != nil {
		return err
	}
	if err := c.compileSubroutineCall(name); err != nil {
		return err
	}
	if err := c.expectSymbol(";"); err != nil {
		return err
	}
	c.out.Pop(SegTemp, 0) // 'do' discards the callee's return value
	return nil
}

func (c *CompilationEngine) compileReturn() error {
	if _, err := c.expectKeyword("return"); err != nil {
		return err
	}

	tok, err := c.peek()
	if err != nil {
		return err
	}
	if isSymbol(tok, ";") {
		c.advance()
		c.out.Push(SegConstant, 0)
		c.out.Return()
		return nil
	}

	if err := c.CompileExpression(); err != nil {
		return fmt.Errorf("error parsing return expression: %w", err)
	}
	if err := c.expectSymbol(";"); err != nil {
		return err
	}
	c.out.Return()
	return nil
}

// ----------------------------------------------------------------------------
// Expressions

var binaryOps = map[string]string{
	"+": "add", "-": "sub", "&": "and", "|": "or", "<": "lt", ">": "gt", "=": "eq",
}

// CompileExpression parses a (no-precedence, left-associative) sequence of
// terms joined by binary operators, resolved purely by textual order.
func (c *CompilationEngine) CompileExpression() error {
	if err := c.compileTerm(); err != nil {
		return err
	}

	for {
		tok, err := c.peek()
		if err != nil {
			return err
		}
		if tok.Kind != SymbolTok {
			return nil
		}

		switch tok.Text {
		case "+", "-", "&", "|", "<", ">", "=":
			c.advance()
			if err := c.compileTerm(); err != nil {
				return err
			}
			c.out.Arithmetic(binaryOps[tok.Text])
		case "*":
			c.advance()
			if err := c.compileTerm(); err != nil {
				return err
			}
			c.out.Call("Math.multiply", 2)
		case "/":
			c.advance()
			if err := c.compileTerm(); err != nil {
				return err
			}
			c.out.Call("Math.divide", 2)
		default:
			return nil
		}
	}
}

func (c *CompilationEngine) compileTerm() error {
	tok, err := c.advance()
	if err != nil {
		return err
	}

	switch tok.Kind {
	case IntConstTok:
		n, err := strconv.Atoi(tok.Text)
		if err != nil || n < 0 || n > 32767 {
			return fmt.Errorf("invalid integer constant %q", tok.Text)
		}
		c.out.Push(SegConstant, n)
		return nil

	case StringConstTok:
		c.out.Push(SegConstant, len(tok.Text))
		c.out.Call("String.new", 1)
		for _, ch := range tok.Text {
			c.out.Push(SegConstant, int(ch))
			c.out.Call("String.appendChar", 2)
		}
		return nil

	case KeywordTok:
		switch tok.Text {
		case "true":
			c.out.Push(SegConstant, 0)
			c.out.Arithmetic("not")
		case "false", "null":
			c.out.Push(SegConstant, 0)
		case "this":
			c.out.Push(SegPointer, 0)
		default:
			return fmt.Errorf("unexpected keyword %q in expression", tok.Text)
		}
		return nil

	case SymbolTok:
		switch tok.Text {
		case "(":
			if err := c.CompileExpression(); err != nil {
				return err
			}
			return c.expectSymbol(")")
		case "-":
			if err := c.compileTerm(); err != nil {
				return err
			}
			c.out.Arithmetic("neg")
			return nil
		case "~":
			if err := c.compileTerm(); err != nil {
				return err
			}
			c.out.Arithmetic("not")
			return nil
		default:
			return fmt.Errorf("unexpected symbol %q in expression", tok.Text)
		}

	case IdentifierTok:
		return c.compileIdentifierTerm(tok.Text)

	default:
		return fmt.Errorf("unexpected token %q in expression", tok.Text)
	}
}

// compileIdentifierTerm resolves an identifier that starts a term: a plain
// variable read, an array element access, or (via compileSubroutineCall) one
// of the three subroutine-call forms.
func (c *CompilationEngine) compileIdentifierTerm(name string) error {
	next, err := c.peek()
	if err != nil {
		// No more input after a bare identifier still means "it's a variable".
		return c.pushVar(name)
	}

	if isSymbol(next, "[") {
		c.advance()
		if err := c.CompileExpression(); err != nil {
			return fmt.Errorf("error parsing array index: %w", err)
		}
		if err := c.expectSymbol("]"); err != nil {
			return err
		}
		if err := c.pushVar(name); err != nil {
			return err
		}
		c.out.Arithmetic("add")
		c.out.Pop(SegPointer, 1)
		c.out.Push(SegThat, 0)
		return nil
	}

	if isSymbol(next, "(") || isSymbol(next, ".") {
		return c.compileSubroutineCall(name)
	}

	return c.pushVar(name)
}

// compileSubroutineCall parses and emits one of the three subroutine-call
// forms, disambiguated solely by whether 'name' is a declared variable:
//  1. name(args)        - method of the current class; 'this' is implicit.
//  2. obj.name(args)     - method on a declared variable's object.
//  3. ClassName.name(args) - function/constructor, no implicit receiver.
func (c *CompilationEngine) compileSubroutineCall(name string) error {
	tok, err := c.advance()
	if err != nil {
		return err
	}

	if isSymbol(tok, "(") {
		c.out.Push(SegPointer, 0)
		nArgs, err := c.compileExpressionList()
		if err != nil {
			return err
		}
		if err := c.expectSymbol(")"); err != nil {
			return err
		}
		fullName := c.class + "." + name
		if err := c.checkArity(fullName, nArgs); err != nil {
			return err
		}
		c.out.Call(fullName, nArgs+1)
		return nil
	}

	if !isSymbol(tok, ".") {
		return fmt.Errorf("expected '(' or '.' after %q, got %q", name, tok.Text)
	}

	member, err := c.expectIdentifier()
	if err != nil {
		return err
	}
	if err := c.expectSymbol("("); err != nil {
		return err
	}

	if typ, isVar := c.st.TypeOf(name); isVar {
		if err := c.pushVar(name); err != nil {
			return err
		}
		nArgs, err := c.compileExpressionList()
		if err != nil {
			return err
		}
		if err := c.expectSymbol(")"); err != nil {
			return err
		}
		fullName := typ + "." + member
		if err := c.checkArity(fullName, nArgs); err != nil {
			return err
		}
		c.out.Call(fullName, nArgs+1)
		return nil
	}

	nArgs, err := c.compileExpressionList()
	if err != nil {
		return err
	}
	if err := c.expectSymbol(")"); err != nil {
		return err
	}
	fullName := name + "." + member
	if err := c.checkArity(fullName, nArgs); err != nil {
		return err
	}
	c.out.Call(fullName, nArgs)
	return nil
}

func (c *CompilationEngine) checkArity(fullName string, nArgs int) error {
	if !c.checkStdlib {
		return nil
	}
	if want, ok := StandardLibraryArity[fullName]; ok && want != nArgs {
		return fmt.Errorf("call to %q supplies %d argument(s), stdlib declares %d", fullName, nArgs, want)
	}
	return nil
}

// compileExpressionList parses a comma-separated (possibly empty) list of
// expressions up to (but not consuming) the closing ')', returning the count.
func (c *CompilationEngine) compileExpressionList() (int, error) {
	tok, err := c.peek()
	if err != nil {
		return 0, err
	}
	if isSymbol(tok, ")") {
		return 0, nil
	}

	if err := c.CompileExpression(); err != nil {
		return 0, err
	}
	count := 1

	for {
		tok, err := c.peek()
		if err != nil {
			return 0, err
		}
		if !isSymbol(tok, ",") {
			return count, nil
		}
		c.advance()
		if err := c.CompileExpression(); err != nil {
			return 0, err
		}
		count++
	}
}

// pushVar and popVar resolve 'name' against the symbol table and emit the
// segment+index the spec's segment mapping (STATIC->static, FIELD->this,
// ARG->argument, VAR->local) implies. 'this' is handled by the caller
// (compileTerm) before reaching here, since it is a keyword, not a symbol
// table entry.
func (c *CompilationEngine) pushVar(name string) error {
	kind, idx, err := c.resolveVar(name)
	if err != nil {
		return err
	}
	c.out.Push(segmentOf(kind), idx)
	return nil
}

func (c *CompilationEngine) popVar(name string) error {
	kind, idx, err := c.resolveVar(name)
	if err != nil {
		return err
	}
	c.out.Pop(segmentOf(kind), idx)
	return nil
}

func (c *CompilationEngine) resolveVar(name string) (Kind, int, error) {
	kind, ok := c.st.KindOf(name)
	if !ok {
		return "", 0, fmt.Errorf("variable %q undeclared, not found in any scope", name)
	}
	idx, _ := c.st.IndexOf(name)
	return kind, idx, nil
}
