// Package parser implements a recursive-descent, precedence-climbing
// parser over pkg/lexer's token stream, producing a pkg/ast tree for
// Kuroko's indentation-sensitive, Python-flavored grammar.
package parser

import (
	"fmt"

	"kuroko/pkg/ast"
	"kuroko/pkg/lexer"
)

const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precCompare
	precAdd
	precMul
	precUnary
	precCall
)

var precedences = map[lexer.TokenType]int{
	lexer.TokenOr:          precOr,
	lexer.TokenAnd:         precAnd,
	lexer.TokenEq:          precCompare,
	lexer.TokenNotEq:       precCompare,
	lexer.TokenLess:        precCompare,
	lexer.TokenGreater:     precCompare,
	lexer.TokenLessEq:      precCompare,
	lexer.TokenGreaterEq:   precCompare,
	lexer.TokenIn:          precCompare,
	lexer.TokenPlus:        precAdd,
	lexer.TokenMinus:       precAdd,
	lexer.TokenStar:        precMul,
	lexer.TokenSlash:       precMul,
	lexer.TokenDoubleSlash: precMul,
	lexer.TokenPercent:     precMul,
	lexer.TokenLParen:      precCall,
	lexer.TokenDot:         precCall,
	lexer.TokenLBracket:    precCall,
}

// Parser turns a token stream into a Program.
type Parser struct {
	l    *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token
	errs []string
}

// New creates a parser over source.
func New(source string) *Parser {
	p := &Parser{l: lexer.New(source)}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) curIs(tt lexer.TokenType) bool  { return p.cur.Type == tt }
func (p *Parser) peekIs(tt lexer.TokenType) bool { return p.peek.Type == tt }

func (p *Parser) expect(tt lexer.TokenType) bool {
	if p.curIs(tt) {
		p.next()
		return true
	}
	p.errorf("expected %s, got %s (%q) at line %d", tt, p.cur.Type, p.cur.Literal, p.cur.Line)
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errs = append(p.errs, fmt.Sprintf(format, args...))
}

// Errors returns every parse error accumulated so far.
func (p *Parser) Errors() []string { return p.errs }

func (p *Parser) skipNewlines() {
	for p.curIs(lexer.TokenNewline) {
		p.next()
	}
}

// ParseProgram parses the whole token stream into a Program.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	p.skipNewlines()
	for !p.curIs(lexer.TokenEOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
		p.skipNewlines()
	}
	return prog
}

func (p *Parser) parseBlock() []ast.Statement {
	if !p.expect(lexer.TokenColon) {
		return nil
	}
	p.skipNewlines()
	if !p.curIs(lexer.TokenIndent) {
		p.errorf("expected indented block at line %d", p.cur.Line)
		return nil
	}
	p.next()
	var stmts []ast.Statement
	p.skipNewlines()
	for !p.curIs(lexer.TokenDedent) && !p.curIs(lexer.TokenEOF) {
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
		p.skipNewlines()
	}
	if p.curIs(lexer.TokenDedent) {
		p.next()
	}
	return stmts
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Type {
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	case lexer.TokenFor:
		return p.parseFor()
	case lexer.TokenDef:
		return p.parseFunctionDef()
	case lexer.TokenClass:
		return p.parseClassDef()
	case lexer.TokenTry:
		return p.parseTry()
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenBreak:
		line := p.cur.Line
		p.next()
		return &ast.Break{Line: line}
	case lexer.TokenContinue:
		line := p.cur.Line
		p.next()
		return &ast.Continue{Line: line}
	case lexer.TokenPass:
		line := p.cur.Line
		p.next()
		return &ast.Pass{Line: line}
	case lexer.TokenRaise:
		return p.parseRaise()
	case lexer.TokenImport:
		return p.parseImport()
	case lexer.TokenGlobal:
		return p.parseGlobal()
	case lexer.TokenWith:
		return p.parseWith()
	case lexer.TokenAssert:
		return p.parseAssert()
	default:
		return p.parseSimpleStatement()
	}
}

func (p *Parser) parseSimpleStatement() ast.Statement {
	line := p.cur.Line
	expr := p.parseExpression(precLowest)

	switch p.cur.Type {
	case lexer.TokenAssign:
		p.next()
		val := p.parseExpression(precLowest)
		return &ast.Assign{Target: expr, Value: val, Line: line}
	case lexer.TokenPlusEq, lexer.TokenMinusEq:
		op := "+"
		if p.cur.Type == lexer.TokenMinusEq {
			op = "-"
		}
		p.next()
		val := p.parseExpression(precLowest)
		return &ast.AugAssign{Target: expr, Op: op, Value: val, Line: line}
	default:
		return &ast.ExprStmt{Expr: expr, Line: line}
	}
}

func (p *Parser) parseIf() ast.Statement {
	line := p.cur.Line
	p.next()
	cond := p.parseExpression(precLowest)
	body := p.parseBlock()
	n := &ast.If{Cond: cond, Then: body, Line: line}
	for p.curIs(lexer.TokenElif) {
		p.next()
		c := p.parseExpression(precLowest)
		b := p.parseBlock()
		n.Elifs = append(n.Elifs, ast.ElifClause{Cond: c, Body: b})
	}
	if p.curIs(lexer.TokenElse) {
		p.next()
		n.Else = p.parseBlock()
	}
	return n
}

func (p *Parser) parseWhile() ast.Statement {
	line := p.cur.Line
	p.next()
	cond := p.parseExpression(precLowest)
	body := p.parseBlock()
	return &ast.While{Cond: cond, Body: body, Line: line}
}

func (p *Parser) parseFor() ast.Statement {
	line := p.cur.Line
	p.next()
	name := p.cur.Literal
	p.expect(lexer.TokenIdentifier)
	p.expect(lexer.TokenIn)
	iter := p.parseExpression(precLowest)
	body := p.parseBlock()
	return &ast.For{VarName: name, Iter: iter, Body: body, Line: line}
}

func (p *Parser) parseParamList() []ast.Param {
	p.expect(lexer.TokenLParen)
	var params []ast.Param
	for !p.curIs(lexer.TokenRParen) && !p.curIs(lexer.TokenEOF) {
		var param ast.Param
		if p.curIs(lexer.TokenStar) {
			p.next()
			param.IsVararg = true
		} else if p.curIs(lexer.TokenDoubleStar) {
			p.next()
			param.IsKwarg = true
		}
		param.Name = p.cur.Literal
		if !p.expect(lexer.TokenIdentifier) {
			break
		}
		if p.curIs(lexer.TokenAssign) {
			p.next()
			param.Default = p.parseExpression(precLowest)
		}
		params = append(params, param)
		if p.curIs(lexer.TokenComma) {
			p.next()
		}
	}
	p.expect(lexer.TokenRParen)
	return params
}

func (p *Parser) parseFunctionDef() ast.Statement {
	line := p.cur.Line
	p.next()
	name := p.cur.Literal
	p.expect(lexer.TokenIdentifier)
	params := p.parseParamList()
	if p.curIs(lexer.TokenArrow) {
		p.next()
		p.parseExpression(precCompare)
	}
	body := p.parseBlock()
	return &ast.FunctionDef{Name: name, Params: params, Body: body, Line: line}
}

func (p *Parser) parseClassDef() ast.Statement {
	line := p.cur.Line
	p.next()
	name := p.cur.Literal
	p.expect(lexer.TokenIdentifier)
	base := ""
	if p.curIs(lexer.TokenLParen) {
		p.next()
		if !p.curIs(lexer.TokenRParen) {
			base = p.cur.Literal
			p.expect(lexer.TokenIdentifier)
		}
		p.expect(lexer.TokenRParen)
	}
	body := p.parseBlock()
	return &ast.ClassDef{Name: name, Base: base, Body: body, Line: line}
}

func (p *Parser) parseTry() ast.Statement {
	line := p.cur.Line
	p.next()
	body := p.parseBlock()
	n := &ast.TryExcept{Body: body, Line: line}
	for p.curIs(lexer.TokenExcept) {
		p.next()
		var clause ast.ExceptClause
		if !p.curIs(lexer.TokenColon) {
			clause.ClassName = p.cur.Literal
			p.expect(lexer.TokenIdentifier)
			if p.curIs(lexer.TokenAs) {
				p.next()
				clause.Alias = p.cur.Literal
				p.expect(lexer.TokenIdentifier)
			}
		}
		clause.Body = p.parseBlock()
		n.Handlers = append(n.Handlers, clause)
	}
	if p.curIs(lexer.TokenFinally) {
		p.next()
		n.Finally = p.parseBlock()
	}
	return n
}

func (p *Parser) parseReturn() ast.Statement {
	line := p.cur.Line
	p.next()
	if p.curIs(lexer.TokenNewline) || p.curIs(lexer.TokenEOF) || p.curIs(lexer.TokenDedent) {
		return &ast.Return{Line: line}
	}
	val := p.parseExpression(precLowest)
	return &ast.Return{Value: val, Line: line}
}

func (p *Parser) parseRaise() ast.Statement {
	line := p.cur.Line
	p.next()
	if p.curIs(lexer.TokenNewline) || p.curIs(lexer.TokenEOF) || p.curIs(lexer.TokenDedent) {
		return &ast.Raise{Line: line}
	}
	val := p.parseExpression(precLowest)
	return &ast.Raise{Value: val, Line: line}
}

func (p *Parser) parseImport() ast.Statement {
	line := p.cur.Line
	p.next()
	name := p.cur.Literal
	p.expect(lexer.TokenIdentifier)
	for p.curIs(lexer.TokenDot) {
		p.next()
		name += "." + p.cur.Literal
		p.expect(lexer.TokenIdentifier)
	}
	return &ast.ImportStmt{Name: name, Line: line}
}

func (p *Parser) parseGlobal() ast.Statement {
	line := p.cur.Line
	p.next()
	var names []string
	names = append(names, p.cur.Literal)
	p.expect(lexer.TokenIdentifier)
	for p.curIs(lexer.TokenComma) {
		p.next()
		names = append(names, p.cur.Literal)
		p.expect(lexer.TokenIdentifier)
	}
	return &ast.Global{Names: names, Line: line}
}

func (p *Parser) parseWith() ast.Statement {
	line := p.cur.Line
	p.next()
	var items []ast.WithItem
	for {
		ctx := p.parseExpression(precLowest)
		alias := ""
		if p.curIs(lexer.TokenAs) {
			p.next()
			alias = p.cur.Literal
			p.expect(lexer.TokenIdentifier)
		}
		items = append(items, ast.WithItem{Context: ctx, Alias: alias})
		if !p.curIs(lexer.TokenComma) {
			break
		}
		p.next()
	}
	body := p.parseBlock()
	return &ast.With{Items: items, Body: body, Line: line}
}

func (p *Parser) parseAssert() ast.Statement {
	line := p.cur.Line
	p.next()
	cond := p.parseExpression(precOr)
	var msg ast.Expression
	if p.curIs(lexer.TokenComma) {
		p.next()
		msg = p.parseExpression(precLowest)
	}
	return &ast.Assert{Cond: cond, Message: msg, Line: line}
}

// --- expressions (Pratt parser) ---

func (p *Parser) parseExpression(precedence int) ast.Expression {
	left := p.parsePrefix()
	for !p.curIs(lexer.TokenNewline) && precedence < p.curPrecedence() {
		left = p.parseInfix(left)
	}
	// `Then if Cond else Else` binds looser than or/and, so only offer it
	// at the outermost expression-parsing levels (statement context, not
	// e.g. while parsing a binary operand).
	if precedence <= precOr && p.curIs(lexer.TokenIf) {
		line := p.cur.Line
		p.next()
		cond := p.parseExpression(precOr)
		p.expect(lexer.TokenElse)
		elseVal := p.parseExpression(precLowest)
		left = &ast.IfExp{Cond: cond, Then: left, Else: elseVal, Line: line}
	}
	return left
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.cur.Type]; ok {
		return pr
	}
	return precLowest
}

func (p *Parser) parsePrefix() ast.Expression {
	line := p.cur.Line
	switch p.cur.Type {
	case lexer.TokenInteger:
		v := parseInt(p.cur.Literal)
		p.next()
		return &ast.IntLit{Value: v, Line: line}
	case lexer.TokenFloat:
		v := parseFloat(p.cur.Literal)
		p.next()
		return &ast.FloatLit{Value: v, Line: line}
	case lexer.TokenString:
		s := p.cur.Literal
		p.next()
		return &ast.StringLit{Value: s, Line: line}
	case lexer.TokenTrue:
		p.next()
		return &ast.BoolLit{Value: true, Line: line}
	case lexer.TokenFalse:
		p.next()
		return &ast.BoolLit{Value: false, Line: line}
	case lexer.TokenNone:
		p.next()
		return &ast.NoneLit{Line: line}
	case lexer.TokenIdentifier:
		name := p.cur.Literal
		p.next()
		return &ast.Identifier{Name: name, Line: line}
	case lexer.TokenNot:
		p.next()
		right := p.parseExpression(precNot)
		return &ast.Unary{Op: "not", Right: right, Line: line}
	case lexer.TokenMinus:
		p.next()
		right := p.parseExpression(precUnary)
		return &ast.Unary{Op: "-", Right: right, Line: line}
	case lexer.TokenLParen:
		p.next()
		if p.curIs(lexer.TokenRParen) {
			p.next()
			return &ast.TupleLit{Line: line}
		}
		first := p.parseExpression(precLowest)
		if p.curIs(lexer.TokenComma) {
			elems := []ast.Expression{first}
			for p.curIs(lexer.TokenComma) {
				p.next()
				if p.curIs(lexer.TokenRParen) {
					break
				}
				elems = append(elems, p.parseExpression(precLowest))
			}
			p.expect(lexer.TokenRParen)
			return &ast.TupleLit{Elements: elems, Line: line}
		}
		p.expect(lexer.TokenRParen)
		return first
	case lexer.TokenLBracket:
		p.next()
		var elems []ast.Expression
		for !p.curIs(lexer.TokenRBracket) && !p.curIs(lexer.TokenEOF) {
			elems = append(elems, p.parseExpression(precLowest))
			if p.curIs(lexer.TokenComma) {
				p.next()
			}
		}
		p.expect(lexer.TokenRBracket)
		return &ast.ListLit{Elements: elems, Line: line}
	case lexer.TokenLBrace:
		p.next()
		var keys, vals []ast.Expression
		for !p.curIs(lexer.TokenRBrace) && !p.curIs(lexer.TokenEOF) {
			k := p.parseExpression(precLowest)
			p.expect(lexer.TokenColon)
			v := p.parseExpression(precLowest)
			keys = append(keys, k)
			vals = append(vals, v)
			if p.curIs(lexer.TokenComma) {
				p.next()
			}
		}
		p.expect(lexer.TokenRBrace)
		return &ast.DictLit{Keys: keys, Values: vals, Line: line}
	case lexer.TokenLambda:
		p.next()
		var params []ast.Param
		for !p.curIs(lexer.TokenColon) && !p.curIs(lexer.TokenEOF) {
			params = append(params, ast.Param{Name: p.cur.Literal})
			p.expect(lexer.TokenIdentifier)
			if p.curIs(lexer.TokenComma) {
				p.next()
			}
		}
		p.expect(lexer.TokenColon)
		body := p.parseExpression(precLowest)
		return &ast.Lambda{Params: params, Body: body, Line: line}
	default:
		p.errorf("unexpected token %s (%q) at line %d", p.cur.Type, p.cur.Literal, p.cur.Line)
		p.next()
		return &ast.NoneLit{Line: line}
	}
}

func (p *Parser) parseInfix(left ast.Expression) ast.Expression {
	line := p.cur.Line
	switch p.cur.Type {
	case lexer.TokenAnd, lexer.TokenOr:
		op := p.cur.Literal
		prec := p.curPrecedence()
		p.next()
		right := p.parseExpression(prec)
		return &ast.BoolOp{Op: op, Left: left, Right: right, Line: line}
	case lexer.TokenEq, lexer.TokenNotEq, lexer.TokenLess, lexer.TokenGreater,
		lexer.TokenLessEq, lexer.TokenGreaterEq, lexer.TokenIn:
		op := p.cur.Literal
		prec := p.curPrecedence()
		p.next()
		right := p.parseExpression(prec)
		return &ast.Compare{Op: op, Left: left, Right: right, Line: line}
	case lexer.TokenPlus, lexer.TokenMinus, lexer.TokenStar, lexer.TokenSlash,
		lexer.TokenDoubleSlash, lexer.TokenPercent:
		op := p.cur.Literal
		prec := p.curPrecedence()
		p.next()
		right := p.parseExpression(prec)
		return &ast.Binary{Op: op, Left: left, Right: right, Line: line}
	case lexer.TokenLParen:
		return p.parseCall(left)
	case lexer.TokenDot:
		p.next()
		name := p.cur.Literal
		p.expect(lexer.TokenIdentifier)
		return &ast.Attribute{Receiver: left, Name: name, Line: line}
	case lexer.TokenLBracket:
		p.next()
		var lo, hi ast.Expression
		isSlice := false
		if !p.curIs(lexer.TokenColon) {
			lo = p.parseExpression(precLowest)
		}
		if p.curIs(lexer.TokenColon) {
			isSlice = true
			p.next()
			if !p.curIs(lexer.TokenRBracket) {
				hi = p.parseExpression(precLowest)
			}
		}
		p.expect(lexer.TokenRBracket)
		if isSlice {
			return &ast.Slice{Receiver: left, Lo: lo, Hi: hi, Line: line}
		}
		return &ast.Subscript{Receiver: left, Index: lo, Line: line}
	default:
		return left
	}
}

func (p *Parser) parseCall(callee ast.Expression) ast.Expression {
	line := p.cur.Line
	p.next()
	var args []ast.Arg
	for !p.curIs(lexer.TokenRParen) && !p.curIs(lexer.TokenEOF) {
		if p.curIs(lexer.TokenIdentifier) && p.peekIs(lexer.TokenAssign) {
			name := p.cur.Literal
			p.next()
			p.next()
			val := p.parseExpression(precLowest)
			args = append(args, ast.Arg{Name: name, Value: val})
		} else {
			val := p.parseExpression(precLowest)
			args = append(args, ast.Arg{Value: val})
		}
		if p.curIs(lexer.TokenComma) {
			p.next()
		}
	}
	p.expect(lexer.TokenRParen)
	return &ast.Call{Callee: callee, Args: args, Line: line}
}

func parseInt(s string) int64 {
	var v int64
	for i := 0; i < len(s); i++ {
		v = v*10 + int64(s[i]-'0')
	}
	return v
}

func parseFloat(s string) float64 {
	var intPart int64
	i := 0
	for ; i < len(s) && s[i] != '.'; i++ {
		intPart = intPart*10 + int64(s[i]-'0')
	}
	f := float64(intPart)
	if i < len(s) && s[i] == '.' {
		i++
		frac := 0.0
		div := 1.0
		for ; i < len(s); i++ {
			frac = frac*10 + float64(s[i]-'0')
			div *= 10
		}
		f += frac / div
	}
	return f
}
