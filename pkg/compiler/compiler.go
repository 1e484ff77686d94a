// Package compiler turns a parsed ast.Program into a bytecode.CodeObject
// ready for a Thread to execute.
//
// It is a single-pass compiler in the usual tree-walking style: module,
// function, and class bodies are each compiled into their own CodeObject,
// with locals assigned fixed slots ahead of time by scanning the body for
// assignment targets (the same trick clox uses for locals, generalized to
// Python-style "assigned anywhere in the function is a local" scoping) and
// free variables resolved into upvalues by walking the chain of enclosing
// scopes.
package compiler

import (
	"fmt"

	"kuroko/pkg/ast"
	"kuroko/pkg/bytecode"
	"kuroko/pkg/object"
	"kuroko/pkg/parser"
	"kuroko/pkg/value"
)

type scopeKind int

const (
	scopeModule scopeKind = iota
	scopeFunction
)

type upvalRef struct {
	name    string
	isLocal bool
	index   uint16
}

type loopCtx struct {
	continueTarget int
	isFor          bool
	breaks         []int
}

type scope struct {
	parent   *scope
	kind     scopeKind
	code     *bytecode.CodeObject
	locals   []string
	upvalues []upvalRef
	loops    []*loopCtx
	// exceptTemps is the stack of hidden local slots holding the
	// exception instance of each try/except currently being compiled,
	// innermost last — used to resolve a bare `raise`.
	exceptTemps []int
	tempSeq     int
}

func (s *scope) resolveLocal(name string) (int, bool) {
	for i, n := range s.locals {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (s *scope) addLocal(name string) int {
	if idx, ok := s.resolveLocal(name); ok {
		return idx
	}
	s.locals = append(s.locals, name)
	return len(s.locals) - 1
}

func (s *scope) addHiddenLocal() int {
	s.tempSeq++
	name := fmt.Sprintf(" t%d", s.tempSeq)
	s.locals = append(s.locals, name)
	return len(s.locals) - 1
}

func (s *scope) addUpvalue(name string, isLocal bool, index uint16) int {
	for i, u := range s.upvalues {
		if u.name == name && u.isLocal == isLocal && u.index == index {
			return i
		}
	}
	s.upvalues = append(s.upvalues, upvalRef{name: name, isLocal: isLocal, index: index})
	s.code.Upvalues = append(s.code.Upvalues, bytecode.UpvalueDesc{IsLocal: isLocal, Index: index})
	return len(s.upvalues) - 1
}

// resolveUpvalue walks the chain of enclosing FUNCTION scopes looking for
// name as a local, adding a pass-through upvalue at each level it must
// cross. It never climbs past a module scope: a name not found as a local
// of any enclosing function resolves as a global instead.
func (s *scope) resolveUpvalue(name string) (int, bool) {
	if s.parent == nil || s.parent.kind != scopeFunction {
		return 0, false
	}
	if idx, ok := s.parent.resolveLocal(name); ok {
		return s.addUpvalue(name, true, uint16(idx)), true
	}
	if idx, ok := s.parent.resolveUpvalue(name); ok {
		return s.addUpvalue(name, false, uint16(idx)), true
	}
	return 0, false
}

// Compiler holds the scope chain being built for one source file.
type Compiler struct {
	scope    *scope
	filename string
}

// New returns a compiler that will attribute compiled code to filename
// (used only for CodeObject.Filename, surfaced in tracebacks).
func New(filename string) *Compiler {
	return &Compiler{filename: filename}
}

// CompileSource parses and compiles source in one step.
func CompileSource(source, filename string) (*bytecode.CodeObject, error) {
	p := parser.New(source)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("%s: %s", filename, errs[0])
	}
	return New(filename).Compile(prog)
}

// Compile produces the top-level module CodeObject for prog.
func (c *Compiler) Compile(prog *ast.Program) (*bytecode.CodeObject, error) {
	code := &bytecode.CodeObject{Name: "", Filename: c.filename}
	c.scope = &scope{kind: scopeModule, code: code}
	for _, stmt := range prog.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}
	c.emit(bytecode.OpNil, 0)
	c.emit(bytecode.OpReturn, 0)
	code.LocalNames = append([]string(nil), c.scope.locals...)
	code.LocalCount = len(c.scope.locals)
	return code, nil
}

// --- low-level emission helpers ---

func (c *Compiler) emit(op bytecode.Opcode, line int) int {
	off := c.scope.code.Code.Len()
	c.scope.code.Lines.Add(off, line)
	c.scope.code.Code.WriteOp(op)
	return off
}

func (c *Compiler) emitShort(op bytecode.Opcode, operand uint16, line int) int {
	off := c.scope.code.Code.Len()
	c.scope.code.Lines.Add(off, line)
	c.scope.code.Code.WriteOpShort(op, operand)
	return off
}

func (c *Compiler) patch(off, target int) {
	c.scope.code.Code.PatchShort(off, uint16(target))
}

func (c *Compiler) here() int { return c.scope.code.Code.Len() }

func (c *Compiler) addConstant(v value.Value) uint16 {
	c.scope.code.Constants = append(c.scope.code.Constants, v)
	return uint16(len(c.scope.code.Constants) - 1)
}

func (c *Compiler) stringConstant(s string) uint16 {
	return c.addConstant(value.Obj(object.NewString(s)))
}

func (c *Compiler) writeUpvalueCapture(ud bytecode.UpvalueDesc) {
	var b byte
	if ud.IsLocal {
		b = 1
	}
	c.scope.code.Code.Bytes = append(c.scope.code.Code.Bytes, b, byte(ud.Index>>8), byte(ud.Index))
}

// --- variable resolution ---

func (c *Compiler) loadVariable(name string, line int) {
	if c.scope.kind == scopeFunction {
		if idx, ok := c.scope.resolveLocal(name); ok {
			c.emitShort(bytecode.OpGetLocal, uint16(idx), line)
			return
		}
		if idx, ok := c.scope.resolveUpvalue(name); ok {
			c.emitShort(bytecode.OpGetUpvalue, uint16(idx), line)
			return
		}
	}
	c.emitShort(bytecode.OpGetGlobal, c.stringConstant(name), line)
}

// storeVariable stores the value currently on top of the stack (left
// there, not popped, by the caller) into name, then pops it.
func (c *Compiler) storeVariable(name string, line int) {
	if c.scope.kind == scopeFunction {
		if idx, ok := c.scope.resolveLocal(name); ok {
			c.emitShort(bytecode.OpSetLocal, uint16(idx), line)
			c.emit(bytecode.OpPop, line)
			return
		}
		if idx, ok := c.scope.resolveUpvalue(name); ok {
			c.emitShort(bytecode.OpSetUpvalue, uint16(idx), line)
			c.emit(bytecode.OpPop, line)
			return
		}
	}
	c.emitShort(bytecode.OpSetGlobal, c.stringConstant(name), line)
	c.emit(bytecode.OpPop, line)
}

// --- pre-scan: which names a function body assigns (and are thus locals) ---

func collectGlobalDecls(body []ast.Statement, out map[string]bool) {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.Global:
			for _, n := range s.Names {
				out[n] = true
			}
		case *ast.If:
			collectGlobalDecls(s.Then, out)
			for _, e := range s.Elifs {
				collectGlobalDecls(e.Body, out)
			}
			collectGlobalDecls(s.Else, out)
		case *ast.While:
			collectGlobalDecls(s.Body, out)
		case *ast.For:
			collectGlobalDecls(s.Body, out)
		case *ast.TryExcept:
			collectGlobalDecls(s.Body, out)
			for _, h := range s.Handlers {
				collectGlobalDecls(h.Body, out)
			}
			collectGlobalDecls(s.Finally, out)
		case *ast.With:
			collectGlobalDecls(s.Body, out)
		}
	}
}

func collectLocalNames(body []ast.Statement, globals map[string]bool, out map[string]bool) {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.Assign:
			if id, ok := s.Target.(*ast.Identifier); ok && !globals[id.Name] {
				out[id.Name] = true
			}
		case *ast.AugAssign:
			if id, ok := s.Target.(*ast.Identifier); ok && !globals[id.Name] {
				out[id.Name] = true
			}
		case *ast.For:
			if !globals[s.VarName] {
				out[s.VarName] = true
			}
			collectLocalNames(s.Body, globals, out)
		case *ast.While:
			collectLocalNames(s.Body, globals, out)
		case *ast.If:
			collectLocalNames(s.Then, globals, out)
			for _, e := range s.Elifs {
				collectLocalNames(e.Body, globals, out)
			}
			collectLocalNames(s.Else, globals, out)
		case *ast.TryExcept:
			collectLocalNames(s.Body, globals, out)
			for _, h := range s.Handlers {
				if h.Alias != "" && !globals[h.Alias] {
					out[h.Alias] = true
				}
				collectLocalNames(h.Body, globals, out)
			}
			collectLocalNames(s.Finally, globals, out)
		case *ast.FunctionDef:
			if !globals[s.Name] {
				out[s.Name] = true
			}
		case *ast.ClassDef:
			if !globals[s.Name] {
				out[s.Name] = true
			}
		case *ast.With:
			for _, item := range s.Items {
				if item.Alias != "" && !globals[item.Alias] {
					out[item.Alias] = true
				}
			}
			collectLocalNames(s.Body, globals, out)
		}
	}
}

// --- statements ---

func (c *Compiler) compileBlock(stmts []ast.Statement) error {
	for _, st := range stmts {
		if err := c.compileStatement(st); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		if err := c.compileExpression(s.Expr); err != nil {
			return err
		}
		c.emit(bytecode.OpPop, s.Line)
		return nil
	case *ast.Assign:
		return c.compileAssign(s)
	case *ast.AugAssign:
		return c.compileAugAssign(s)
	case *ast.If:
		return c.compileIfChain(s.Cond, s.Then, s.Elifs, s.Else, s.Line)
	case *ast.While:
		return c.compileWhile(s)
	case *ast.For:
		return c.compileFor(s)
	case *ast.FunctionDef:
		code, err := c.compileFunctionBody(s.Name, s.Params, s.Body, s.Line)
		if err != nil {
			return err
		}
		constIdx := c.addConstant(value.Obj(code))
		c.emitShort(bytecode.OpMakeClosure, constIdx, s.Line)
		for _, ud := range code.Upvalues {
			c.writeUpvalueCapture(ud)
		}
		c.storeVariable(s.Name, s.Line)
		return nil
	case *ast.ClassDef:
		return c.compileClassDef(s)
	case *ast.Return:
		if s.Value != nil {
			if err := c.compileExpression(s.Value); err != nil {
				return err
			}
		} else {
			c.emit(bytecode.OpNil, s.Line)
		}
		c.emit(bytecode.OpReturn, s.Line)
		return nil
	case *ast.Break:
		if len(c.scope.loops) == 0 {
			return fmt.Errorf("'break' outside loop")
		}
		loop := c.scope.loops[len(c.scope.loops)-1]
		if loop.isFor {
			c.emit(bytecode.OpPop, s.Line)
		}
		j := c.emitShort(bytecode.OpJump, 0, s.Line)
		loop.breaks = append(loop.breaks, j)
		return nil
	case *ast.Continue:
		if len(c.scope.loops) == 0 {
			return fmt.Errorf("'continue' outside loop")
		}
		loop := c.scope.loops[len(c.scope.loops)-1]
		c.emitShort(bytecode.OpJump, uint16(loop.continueTarget), s.Line)
		return nil
	case *ast.Pass:
		return nil
	case *ast.TryExcept:
		return c.compileTry(s)
	case *ast.Raise:
		return c.compileRaise(s)
	case *ast.ImportStmt:
		return c.compileImport(s)
	case *ast.Global:
		return nil
	case *ast.With:
		return c.compileWith(s)
	case *ast.Assert:
		return c.compileAssert(s)
	default:
		return fmt.Errorf("compiler: unsupported statement %T", stmt)
	}
}

func (c *Compiler) compileAssign(s *ast.Assign) error {
	switch t := s.Target.(type) {
	case *ast.Identifier:
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.storeVariable(t.Name, s.Line)
		return nil
	case *ast.Attribute:
		if err := c.compileExpression(t.Receiver); err != nil {
			return err
		}
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emitShort(bytecode.OpSetAttr, c.stringConstant(t.Name), s.Line)
		return nil
	case *ast.Subscript:
		if err := c.compileExpression(t.Receiver); err != nil {
			return err
		}
		if err := c.compileExpression(t.Index); err != nil {
			return err
		}
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emit(bytecode.OpSetItem, s.Line)
		return nil
	default:
		return fmt.Errorf("compiler: invalid assignment target %T", s.Target)
	}
}

func (c *Compiler) compileAugAssign(s *ast.AugAssign) error {
	var binOp bytecode.Opcode
	switch s.Op {
	case "+":
		binOp = bytecode.OpAdd
	case "-":
		binOp = bytecode.OpSub
	default:
		return fmt.Errorf("compiler: unsupported augmented assignment %q", s.Op)
	}

	switch t := s.Target.(type) {
	case *ast.Identifier:
		c.loadVariable(t.Name, s.Line)
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emit(binOp, s.Line)
		c.storeVariable(t.Name, s.Line)
		return nil
	case *ast.Attribute:
		if err := c.compileExpression(t.Receiver); err != nil {
			return err
		}
		c.emit(bytecode.OpDup, s.Line)
		nameIdx := c.stringConstant(t.Name)
		c.emitShort(bytecode.OpGetAttr, nameIdx, s.Line)
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emit(binOp, s.Line)
		c.emitShort(bytecode.OpSetAttr, nameIdx, s.Line)
		return nil
	case *ast.Subscript:
		if err := c.compileExpression(t.Receiver); err != nil {
			return err
		}
		if err := c.compileExpression(t.Index); err != nil {
			return err
		}
		c.emit(bytecode.OpGetItem, s.Line)
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emit(binOp, s.Line)
		tmp := c.scope.addHiddenLocal()
		c.emitShort(bytecode.OpSetLocal, uint16(tmp), s.Line)
		c.emit(bytecode.OpPop, s.Line)
		if err := c.compileExpression(t.Receiver); err != nil {
			return err
		}
		if err := c.compileExpression(t.Index); err != nil {
			return err
		}
		c.emitShort(bytecode.OpGetLocal, uint16(tmp), s.Line)
		c.emit(bytecode.OpSetItem, s.Line)
		return nil
	default:
		return fmt.Errorf("compiler: invalid augmented assignment target %T", s.Target)
	}
}

func (c *Compiler) compileIfChain(cond ast.Expression, then []ast.Statement, elifs []ast.ElifClause, els []ast.Statement, line int) error {
	if err := c.compileExpression(cond); err != nil {
		return err
	}
	falseJump := c.emitShort(bytecode.OpJumpIfFalse, 0, line)
	c.emit(bytecode.OpPop, line)
	if err := c.compileBlock(then); err != nil {
		return err
	}
	endJump := c.emitShort(bytecode.OpJump, 0, line)
	c.patch(falseJump, c.here())
	c.emit(bytecode.OpPop, line)

	if len(elifs) > 0 {
		next := elifs[0]
		if err := c.compileIfChain(next.Cond, next.Body, elifs[1:], els, line); err != nil {
			return err
		}
	} else if len(els) > 0 {
		if err := c.compileBlock(els); err != nil {
			return err
		}
	}
	c.patch(endJump, c.here())
	return nil
}

func (c *Compiler) compileWhile(s *ast.While) error {
	loopStart := c.here()
	if err := c.compileExpression(s.Cond); err != nil {
		return err
	}
	exitJump := c.emitShort(bytecode.OpJumpIfFalse, 0, s.Line)
	c.emit(bytecode.OpPop, s.Line)

	loop := &loopCtx{continueTarget: loopStart}
	c.scope.loops = append(c.scope.loops, loop)
	err := c.compileBlock(s.Body)
	c.scope.loops = c.scope.loops[:len(c.scope.loops)-1]
	if err != nil {
		return err
	}

	c.emitShort(bytecode.OpJump, uint16(loopStart), s.Line)
	c.patch(exitJump, c.here())
	c.emit(bytecode.OpPop, s.Line)
	breakTarget := c.here()
	for _, b := range loop.breaks {
		c.patch(b, breakTarget)
	}
	return nil
}

func (c *Compiler) compileFor(s *ast.For) error {
	if err := c.compileExpression(s.Iter); err != nil {
		return err
	}
	c.emit(bytecode.OpGetIter, s.Line)
	loopStart := c.here()
	forIterJump := c.emitShort(bytecode.OpForIter, 0, s.Line)
	c.storeVariable(s.VarName, s.Line)

	loop := &loopCtx{continueTarget: loopStart, isFor: true}
	c.scope.loops = append(c.scope.loops, loop)
	err := c.compileBlock(s.Body)
	c.scope.loops = c.scope.loops[:len(c.scope.loops)-1]
	if err != nil {
		return err
	}

	c.emitShort(bytecode.OpJump, uint16(loopStart), s.Line)
	c.patch(forIterJump, c.here())
	breakTarget := c.here()
	for _, b := range loop.breaks {
		c.patch(b, breakTarget)
	}
	return nil
}

// compileTry lowers a try/except/finally into PUSH_TRY/POP_TRY plus an
// inline dispatch chain: the caught instance is stashed in a hidden local,
// each handler's class name is tested with a call to the global
// `isinstance`, and a clause that matches nothing falls through to
// re-raising the same instance.
func (c *Compiler) compileTry(s *ast.TryExcept) error {
	pushTryOff := c.emitShort(bytecode.OpPushTry, 0, s.Line)
	if err := c.compileBlock(s.Body); err != nil {
		return err
	}
	c.emit(bytecode.OpPopTry, s.Line)
	normalJump := c.emitShort(bytecode.OpJump, 0, s.Line)

	c.patch(pushTryOff, c.here())
	tmp := c.scope.addHiddenLocal()
	c.emitShort(bytecode.OpSetLocal, uint16(tmp), s.Line)
	c.emit(bytecode.OpPop, s.Line)

	var endJumps []int
	for _, h := range s.Handlers {
		var noMatch int
		hasNoMatch := false
		if h.ClassName != "" {
			c.emitShort(bytecode.OpGetGlobal, c.stringConstant("isinstance"), s.Line)
			c.emitShort(bytecode.OpGetLocal, uint16(tmp), s.Line)
			c.emitShort(bytecode.OpGetGlobal, c.stringConstant(h.ClassName), s.Line)
			c.emitShort(bytecode.OpCall, 2, s.Line)
			noMatch = c.emitShort(bytecode.OpJumpIfFalse, 0, s.Line)
			hasNoMatch = true
			c.emit(bytecode.OpPop, s.Line)
		}
		if h.Alias != "" {
			c.emitShort(bytecode.OpGetLocal, uint16(tmp), s.Line)
			c.storeVariable(h.Alias, s.Line)
		}
		c.scope.exceptTemps = append(c.scope.exceptTemps, tmp)
		err := c.compileBlock(h.Body)
		c.scope.exceptTemps = c.scope.exceptTemps[:len(c.scope.exceptTemps)-1]
		if err != nil {
			return err
		}
		ej := c.emitShort(bytecode.OpJump, 0, s.Line)
		endJumps = append(endJumps, ej)
		if hasNoMatch {
			c.patch(noMatch, c.here())
			c.emit(bytecode.OpPop, s.Line)
		}
	}

	c.emitShort(bytecode.OpGetLocal, uint16(tmp), s.Line)
	c.emit(bytecode.OpRaise, s.Line)

	endLabel := c.here()
	c.patch(normalJump, endLabel)
	for _, ej := range endJumps {
		c.patch(ej, endLabel)
	}

	if len(s.Finally) > 0 {
		if err := c.compileBlock(s.Finally); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileRaise(s *ast.Raise) error {
	if s.Value == nil {
		if n := len(c.scope.exceptTemps); n > 0 {
			tmp := c.scope.exceptTemps[n-1]
			c.emitShort(bytecode.OpGetLocal, uint16(tmp), s.Line)
			c.emit(bytecode.OpRaise, s.Line)
			return nil
		}
		c.emit(bytecode.OpReraise, s.Line)
		return nil
	}
	if err := c.compileExpression(s.Value); err != nil {
		return err
	}
	c.emit(bytecode.OpRaise, s.Line)
	return nil
}

// compileWith lowers a context-manager block by calling each item's
// __enter__ in order before the body, then running every item's __exit__
// in reverse order on both the normal fall-through path and any path that
// unwinds through a raised exception, via the same PUSH_TRY/POP_TRY
// machinery compileTry uses. A propagating exception is always re-raised
// after __exit__ runs: __exit__'s return value is not consulted to
// suppress it.
func (c *Compiler) compileWith(s *ast.With) error {
	line := s.Line
	ctxSlots := make([]int, len(s.Items))
	for i, item := range s.Items {
		if err := c.compileExpression(item.Context); err != nil {
			return err
		}
		slot := c.scope.addHiddenLocal()
		c.emitShort(bytecode.OpSetLocal, uint16(slot), line)
		c.emit(bytecode.OpPop, line)
		ctxSlots[i] = slot

		c.emitShort(bytecode.OpGetLocal, uint16(slot), line)
		c.emitShort(bytecode.OpGetAttr, c.stringConstant("__enter__"), line)
		c.emitShort(bytecode.OpCall, 0, line)
		if item.Alias != "" {
			c.storeVariable(item.Alias, line)
		} else {
			c.emit(bytecode.OpPop, line)
		}
	}

	pushTryOff := c.emitShort(bytecode.OpPushTry, 0, line)
	if err := c.compileBlock(s.Body); err != nil {
		return err
	}
	c.emit(bytecode.OpPopTry, line)
	for i := len(ctxSlots) - 1; i >= 0; i-- {
		c.emitExit(ctxSlots[i], line)
	}
	normalJump := c.emitShort(bytecode.OpJump, 0, line)

	c.patch(pushTryOff, c.here())
	excTmp := c.scope.addHiddenLocal()
	c.emitShort(bytecode.OpSetLocal, uint16(excTmp), line)
	c.emit(bytecode.OpPop, line)
	for i := len(ctxSlots) - 1; i >= 0; i-- {
		c.emitExit(ctxSlots[i], line)
	}
	c.emitShort(bytecode.OpGetLocal, uint16(excTmp), line)
	c.emit(bytecode.OpRaise, line)

	c.patch(normalJump, c.here())
	return nil
}

// emitExit calls the context manager stored in slot's __exit__ with three
// None placeholders standing in for exception type/value/traceback, and
// discards its result.
func (c *Compiler) emitExit(slot int, line int) {
	c.emitShort(bytecode.OpGetLocal, uint16(slot), line)
	c.emitShort(bytecode.OpGetAttr, c.stringConstant("__exit__"), line)
	c.emit(bytecode.OpNil, line)
	c.emit(bytecode.OpNil, line)
	c.emit(bytecode.OpNil, line)
	c.emitShort(bytecode.OpCall, 3, line)
	c.emit(bytecode.OpPop, line)
}

// compileAssert lowers `assert cond, msg` to a conditional raise of
// AssertionError, evaluating msg only when the assertion actually fails.
func (c *Compiler) compileAssert(s *ast.Assert) error {
	if err := c.compileExpression(s.Cond); err != nil {
		return err
	}
	okJump := c.emitShort(bytecode.OpJumpIfTrue, 0, s.Line)
	c.emit(bytecode.OpPop, s.Line)
	c.emitShort(bytecode.OpGetGlobal, c.stringConstant("AssertionError"), s.Line)
	var nargs uint16
	if s.Message != nil {
		if err := c.compileExpression(s.Message); err != nil {
			return err
		}
		nargs = 1
	}
	c.emitShort(bytecode.OpCall, nargs, s.Line)
	c.emit(bytecode.OpRaise, s.Line)
	c.patch(okJump, c.here())
	c.emit(bytecode.OpPop, s.Line)
	return nil
}

func (c *Compiler) compileImport(s *ast.ImportStmt) error {
	nameIdx := c.stringConstant(s.Name)
	c.emitShort(bytecode.OpImport, nameIdx, s.Line)
	topName := s.Name
	for i := 0; i < len(topName); i++ {
		if topName[i] == '.' {
			topName = topName[:i]
			break
		}
	}
	c.storeVariable(topName, s.Line)
	return nil
}

// compileClassDef lowers a class body to MAKE_CLASS followed by one
// DUP + <value> + SET_ATTR sequence per member, and a closing
// FINALIZE_CLASS that caches its dunder slots.
func (c *Compiler) compileClassDef(cd *ast.ClassDef) error {
	if cd.Base != "" {
		c.loadVariable(cd.Base, cd.Line)
	} else {
		c.emit(bytecode.OpNil, cd.Line)
	}
	nameIdx := c.stringConstant(cd.Name)
	c.emitShort(bytecode.OpMakeClass, nameIdx, cd.Line)

	for _, stmt := range cd.Body {
		switch s := stmt.(type) {
		case *ast.FunctionDef:
			code, err := c.compileFunctionBody(s.Name, s.Params, s.Body, s.Line)
			if err != nil {
				return err
			}
			c.emit(bytecode.OpDup, s.Line)
			constIdx := c.addConstant(value.Obj(code))
			c.emitShort(bytecode.OpMakeClosure, constIdx, s.Line)
			for _, ud := range code.Upvalues {
				c.writeUpvalueCapture(ud)
			}
			c.emitShort(bytecode.OpSetAttr, c.stringConstant(s.Name), s.Line)
		case *ast.Assign:
			id, ok := s.Target.(*ast.Identifier)
			if !ok {
				return fmt.Errorf("compiler: invalid class body assignment target %T", s.Target)
			}
			c.emit(bytecode.OpDup, s.Line)
			if err := c.compileExpression(s.Value); err != nil {
				return err
			}
			c.emitShort(bytecode.OpSetAttr, c.stringConstant(id.Name), s.Line)
		case *ast.Pass:
		case *ast.ExprStmt:
			// A bare string literal (docstring) or similar: evaluate and
			// discard, matching top-level statement semantics.
			if err := c.compileExpression(s.Expr); err != nil {
				return err
			}
			c.emit(bytecode.OpPop, s.Line)
		default:
			return fmt.Errorf("compiler: unsupported class body statement %T", stmt)
		}
	}

	c.emit(bytecode.OpFinalizeClass, cd.Line)
	c.storeVariable(cd.Name, cd.Line)
	return nil
}

type defaultBinding struct {
	slot int
	expr ast.Expression
}

// compileFunctionBody compiles one function/method into its own
// CodeObject: params are given slots in declaration order, the rest of
// the function's assigned-to names are pre-scanned and given trailing
// slots, optional parameters get a None-check prologue that installs
// their default, and the body falls through to an implicit `return None`.
func (c *Compiler) compileFunctionBody(name string, params []ast.Param, body []ast.Statement, line int) (code *bytecode.CodeObject, err error) {
	code = &bytecode.CodeObject{Name: name, Filename: c.filename}
	newScope := &scope{kind: scopeFunction, code: code, parent: c.scope}
	prev := c.scope
	c.scope = newScope
	defer func() { c.scope = prev }()

	globalDecls := map[string]bool{}
	collectGlobalDecls(body, globalDecls)
	localSet := map[string]bool{}
	collectLocalNames(body, globalDecls, localSet)

	var desc bytecode.ArgDesc
	var defaults []defaultBinding
	for _, p := range params {
		idx := newScope.addLocal(p.Name)
		switch {
		case p.IsVararg:
			desc.HasVararg = true
			desc.VarargSlot = idx
		case p.IsKwarg:
			desc.HasKwarg = true
			desc.KwargSlot = idx
		default:
			if p.Default != nil {
				desc.Optional++
				defaults = append(defaults, defaultBinding{slot: idx, expr: p.Default})
			} else {
				desc.Required++
			}
		}
	}
	code.Args = desc

	for n := range localSet {
		newScope.addLocal(n)
	}

	for _, d := range defaults {
		c.emitShort(bytecode.OpGetLocal, uint16(d.slot), line)
		c.emit(bytecode.OpNil, line)
		c.emit(bytecode.OpEq, line)
		skip := c.emitShort(bytecode.OpJumpIfFalse, 0, line)
		c.emit(bytecode.OpPop, line)
		if err = c.compileExpression(d.expr); err != nil {
			return nil, err
		}
		c.emitShort(bytecode.OpSetLocal, uint16(d.slot), line)
		c.emit(bytecode.OpPop, line)
		over := c.emitShort(bytecode.OpJump, 0, line)
		c.patch(skip, c.here())
		c.emit(bytecode.OpPop, line)
		c.patch(over, c.here())
	}

	for _, stmt := range body {
		if err = c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}
	c.emit(bytecode.OpNil, line)
	c.emit(bytecode.OpReturn, line)

	code.LocalNames = append([]string(nil), newScope.locals...)
	code.LocalCount = len(newScope.locals)
	return code, nil
}

// --- expressions ---

func (c *Compiler) compileExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.IntLit:
		c.emitShort(bytecode.OpConstant, c.addConstant(value.Int(e.Value)), e.Line)
	case *ast.FloatLit:
		c.emitShort(bytecode.OpConstant, c.addConstant(value.Float(e.Value)), e.Line)
	case *ast.StringLit:
		c.emitShort(bytecode.OpConstant, c.stringConstant(e.Value), e.Line)
	case *ast.BoolLit:
		if e.Value {
			c.emit(bytecode.OpTrue, e.Line)
		} else {
			c.emit(bytecode.OpFalse, e.Line)
		}
	case *ast.NoneLit:
		c.emit(bytecode.OpNil, e.Line)
	case *ast.Identifier:
		c.loadVariable(e.Name, e.Line)
	case *ast.ListLit:
		for _, el := range e.Elements {
			if err := c.compileExpression(el); err != nil {
				return err
			}
		}
		c.emitShort(bytecode.OpBuildList, uint16(len(e.Elements)), e.Line)
	case *ast.TupleLit:
		for _, el := range e.Elements {
			if err := c.compileExpression(el); err != nil {
				return err
			}
		}
		c.emitShort(bytecode.OpBuildTuple, uint16(len(e.Elements)), e.Line)
	case *ast.DictLit:
		for i := range e.Keys {
			if err := c.compileExpression(e.Keys[i]); err != nil {
				return err
			}
			if err := c.compileExpression(e.Values[i]); err != nil {
				return err
			}
		}
		c.emitShort(bytecode.OpBuildDict, uint16(len(e.Keys)), e.Line)
	case *ast.Unary:
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		if e.Op == "not" {
			c.emit(bytecode.OpNot, e.Line)
		} else {
			c.emit(bytecode.OpNegate, e.Line)
		}
	case *ast.Binary:
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		c.emit(binaryOpcode(e.Op), e.Line)
	case *ast.Compare:
		if e.Op == "in" {
			c.emitShort(bytecode.OpGetGlobal, c.stringConstant("contains"), e.Line)
			if err := c.compileExpression(e.Right); err != nil {
				return err
			}
			if err := c.compileExpression(e.Left); err != nil {
				return err
			}
			c.emitShort(bytecode.OpCall, 2, e.Line)
			return nil
		}
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		c.emit(compareOpcode(e.Op), e.Line)
	case *ast.BoolOp:
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		var jmp int
		if e.Op == "and" {
			jmp = c.emitShort(bytecode.OpJumpIfFalse, 0, e.Line)
		} else {
			jmp = c.emitShort(bytecode.OpJumpIfTrue, 0, e.Line)
		}
		c.emit(bytecode.OpPop, e.Line)
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		c.patch(jmp, c.here())
	case *ast.IfExp:
		if err := c.compileExpression(e.Cond); err != nil {
			return err
		}
		elseJump := c.emitShort(bytecode.OpJumpIfFalse, 0, e.Line)
		c.emit(bytecode.OpPop, e.Line)
		if err := c.compileExpression(e.Then); err != nil {
			return err
		}
		endJump := c.emitShort(bytecode.OpJump, 0, e.Line)
		c.patch(elseJump, c.here())
		c.emit(bytecode.OpPop, e.Line)
		if err := c.compileExpression(e.Else); err != nil {
			return err
		}
		c.patch(endJump, c.here())
	case *ast.Call:
		return c.compileCall(e)
	case *ast.Attribute:
		if err := c.compileExpression(e.Receiver); err != nil {
			return err
		}
		c.emitShort(bytecode.OpGetAttr, c.stringConstant(e.Name), e.Line)
	case *ast.Subscript:
		if err := c.compileExpression(e.Receiver); err != nil {
			return err
		}
		if err := c.compileExpression(e.Index); err != nil {
			return err
		}
		c.emit(bytecode.OpGetItem, e.Line)
	case *ast.Slice:
		if err := c.compileExpression(e.Receiver); err != nil {
			return err
		}
		if e.Lo != nil {
			if err := c.compileExpression(e.Lo); err != nil {
				return err
			}
		} else {
			c.emit(bytecode.OpNil, e.Line)
		}
		if e.Hi != nil {
			if err := c.compileExpression(e.Hi); err != nil {
				return err
			}
		} else {
			c.emit(bytecode.OpNil, e.Line)
		}
		c.emit(bytecode.OpBuildSlice, e.Line)
		c.emit(bytecode.OpGetItem, e.Line)
	case *ast.Lambda:
		return c.compileLambda(e)
	default:
		return fmt.Errorf("compiler: unsupported expression %T", expr)
	}
	return nil
}

func (c *Compiler) compileCall(e *ast.Call) error {
	if err := c.compileExpression(e.Callee); err != nil {
		return err
	}
	var positional, keyword []ast.Arg
	for _, a := range e.Args {
		if a.Name != "" {
			keyword = append(keyword, a)
		} else {
			positional = append(positional, a)
		}
	}
	for _, a := range positional {
		if err := c.compileExpression(a.Value); err != nil {
			return err
		}
	}
	hasKwargs := len(keyword) > 0
	if hasKwargs {
		for _, a := range keyword {
			c.emitShort(bytecode.OpConstant, c.stringConstant(a.Name), e.Line)
			if err := c.compileExpression(a.Value); err != nil {
				return err
			}
		}
		c.emitShort(bytecode.OpBuildDict, uint16(len(keyword)), e.Line)
	}
	operand := uint16(len(positional))
	if hasKwargs {
		operand |= 0x8000
	}
	c.emitShort(bytecode.OpCall, operand, e.Line)
	return nil
}

func (c *Compiler) compileLambda(e *ast.Lambda) error {
	code := &bytecode.CodeObject{Name: "<lambda>", Filename: c.filename}
	newScope := &scope{kind: scopeFunction, code: code, parent: c.scope}
	prev := c.scope
	c.scope = newScope

	var desc bytecode.ArgDesc
	for _, p := range e.Params {
		newScope.addLocal(p.Name)
		desc.Required++
	}
	code.Args = desc

	if err := c.compileExpression(e.Body); err != nil {
		c.scope = prev
		return err
	}
	c.emit(bytecode.OpReturn, e.Line)
	code.LocalNames = append([]string(nil), newScope.locals...)
	code.LocalCount = len(newScope.locals)
	c.scope = prev

	constIdx := c.addConstant(value.Obj(code))
	c.emitShort(bytecode.OpMakeClosure, constIdx, e.Line)
	for _, ud := range code.Upvalues {
		c.writeUpvalueCapture(ud)
	}
	return nil
}

func binaryOpcode(op string) bytecode.Opcode {
	switch op {
	case "+":
		return bytecode.OpAdd
	case "-":
		return bytecode.OpSub
	case "*":
		return bytecode.OpMul
	case "/":
		return bytecode.OpDiv
	case "//":
		return bytecode.OpFloorDiv
	case "%":
		return bytecode.OpMod
	default:
		return bytecode.OpAdd
	}
}

func compareOpcode(op string) bytecode.Opcode {
	switch op {
	case "==":
		return bytecode.OpEq
	case "!=":
		return bytecode.OpNe
	case "<":
		return bytecode.OpLt
	case "<=":
		return bytecode.OpLe
	case ">":
		return bytecode.OpGt
	case ">=":
		return bytecode.OpGe
	default:
		return bytecode.OpEq
	}
}
