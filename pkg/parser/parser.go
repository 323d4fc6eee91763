// Package parser implements a recursive-descent, precedence-climbing
// parser for sind's source language, producing pkg/ast nodes from
// pkg/lexer's token stream.
//
// Adapted from the teacher's pkg/parser: the overall shape (a Parser
// holding curTok/peekTok two-token lookahead, an accumulated errors
// slice instead of stopping at the first syntax error, and a
// nextToken-after-each-statement top-level loop) follows
// kristofer-smog's pkg/parser/parser.go. The grammar itself does not:
// smog's message-send precedence scheme (unary > binary > keyword)
// has no analogue here, since this language has no message sends.
// Binary/logical operators instead use ordinary precedence climbing,
// which is what a real arithmetic/comparison grammar needs and what
// smog's own doc comment admits its simplified one-message-at-a-time
// parseMessageSend does not fully implement.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kristofer/sind/pkg/ast"
	"github.com/kristofer/sind/pkg/lexer"
)

const (
	lowest = iota
	orPrec
	andPrec
	equality
	relational
	additive
	multiplicative
)

func precedenceOf(tt lexer.TokenType) int {
	switch tt {
	case lexer.TokenOr:
		return orPrec
	case lexer.TokenAnd:
		return andPrec
	case lexer.TokenEqual, lexer.TokenNotEqual:
		return equality
	case lexer.TokenLess, lexer.TokenGreater, lexer.TokenLessEq, lexer.TokenGreaterEq:
		return relational
	case lexer.TokenPlus, lexer.TokenMinus:
		return additive
	case lexer.TokenStar, lexer.TokenSlash, lexer.TokenPercent:
		return multiplicative
	default:
		return lowest
	}
}

// Parser holds the lexer and the two-token lookahead window.
type Parser struct {
	l       *lexer.Lexer
	curTok  lexer.Token
	peekTok lexer.Token
	errors  []string
}

// New creates a Parser over input, primed with the first two tokens.
func New(input string) *Parser {
	p := &Parser{l: lexer.New(input)}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curTok = p.peekTok
	p.peekTok = p.l.NextToken()
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Sprintf("%s (near %q at %d)", msg, p.curTok.Literal, p.curTok.Pos))
}

// Errors returns accumulated syntax errors.
func (p *Parser) Errors() []string { return p.errors }

// Parse parses the whole input as a sequence of statements.
func (p *Parser) Parse() (*ast.Program, error) {
	program := &ast.Program{}
	for p.curTok.Type != lexer.TokenEOF {
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}
	if len(p.errors) > 0 {
		return program, fmt.Errorf("parser errors: %s", strings.Join(p.errors, "; "))
	}
	return program, nil
}

func (p *Parser) parseStatement() ast.Statement {
	switch {
	case p.curTok.Type == lexer.TokenIf:
		return p.parseIf()
	case p.curTok.Type == lexer.TokenWhile:
		return p.parseWhile()
	case p.curTok.Type == lexer.TokenDelete:
		return p.parseDelete()
	case p.curTok.Type == lexer.TokenIdent && p.peekTok.Type == lexer.TokenAssign:
		return p.parseLocalAssign()
	case p.curTok.Type == lexer.TokenDollar:
		return p.parseItemStatement()
	default:
		expr := p.parseExpr(lowest)
		if expr == nil {
			return nil
		}
		if p.peekTok.Type != lexer.TokenSemi {
			p.addError("expected ';' after expression statement")
			return nil
		}
		p.nextToken()
		return &ast.ExprStatement{X: expr}
	}
}

func (p *Parser) parseLocalAssign() ast.Statement {
	name := p.curTok.Literal
	p.nextToken() // curTok == ':='
	p.nextToken() // curTok == first token of value
	val := p.parseExpr(lowest)
	if val == nil {
		return nil
	}
	if p.peekTok.Type != lexer.TokenSemi {
		p.addError("expected ';' after assignment")
		return nil
	}
	p.nextToken() // curTok == ';'
	return &ast.LocalAssign{Name: name, Value: val}
}

func (p *Parser) parseDelete() ast.Statement {
	p.nextToken() // consume 'delete'
	if p.curTok.Type != lexer.TokenDollar {
		p.addError("expected '$' after delete")
		return nil
	}
	path := p.parseItemPath()
	if path == nil {
		return nil
	}
	if p.peekTok.Type != lexer.TokenSemi {
		p.addError("expected ';' after delete target")
		return nil
	}
	p.nextToken() // curTok == ';'
	return &ast.DeleteStmt{Path: path}
}

func (p *Parser) parseItemStatement() ast.Statement {
	path := p.parseItemPath()
	if path == nil {
		return nil
	}
	if p.peekTok.Type == lexer.TokenAssign {
		p.nextToken() // curTok == ':='
		p.nextToken() // curTok == first token of RHS
		if p.curTok.Type == lexer.TokenCode {
			return p.parseCodeAssign(path)
		}
		val := p.parseExpr(lowest)
		if val == nil {
			return nil
		}
		if p.peekTok.Type != lexer.TokenSemi {
			p.addError("expected ';' after item assignment")
			return nil
		}
		p.nextToken() // curTok == ';'
		return &ast.ItemAssign{Path: path, Value: val}
	}

	var args []ast.Expression
	if p.peekTok.Type == lexer.TokenLParen {
		p.nextToken() // curTok == '('
		args = p.parseArgList()
	}
	if p.peekTok.Type != lexer.TokenSemi {
		p.addError("expected ';' after item fetch statement")
		return nil
	}
	p.nextToken() // curTok == ';'
	return &ast.ExprStatement{X: &ast.Fetch{Path: path, Args: args}}
}

// parseCodeAssign parses `code { param, ... } ( ...verbatim body... )`,
// capturing the body as raw source text (not parsed now — it is
// compiled by vm.Compiler when the ASSIGN_CODE_ITEM instruction that
// installs the code item executes, per ASSIGN_CODE_ITEM's contract).
func (p *Parser) parseCodeAssign(path *ast.ItemPath) ast.Statement {
	// curTok == 'code'
	p.nextToken() // curTok == '{' expected
	if p.curTok.Type != lexer.TokenLBrace {
		p.addError("expected '{' after code")
		return nil
	}
	p.nextToken() // curTok == first param ident, or '}'

	var params []string
	for p.curTok.Type == lexer.TokenIdent {
		params = append(params, p.curTok.Literal)
		if p.peekTok.Type == lexer.TokenComma {
			p.nextToken() // curTok == ','
			p.nextToken() // curTok == next ident
			continue
		}
		p.nextToken() // curTok should be '}'
		break
	}
	if p.curTok.Type != lexer.TokenRBrace {
		p.addError("expected '}' to close code parameter list")
		return nil
	}
	p.nextToken() // curTok == '(' expected
	if p.curTok.Type != lexer.TokenLParen {
		p.addError("expected '(' to open code body")
		return nil
	}
	startPos := p.curTok.Pos + 1
	p.nextToken() // curTok == first body token, or ')'

	depth := 1
	for {
		if p.curTok.Type == lexer.TokenEOF {
			p.addError("unterminated code body")
			return nil
		}
		if p.curTok.Type == lexer.TokenLParen {
			depth++
		}
		if p.curTok.Type == lexer.TokenRParen {
			depth--
			if depth == 0 {
				break
			}
		}
		p.nextToken()
	}
	endPos := p.curTok.Pos
	source := strings.TrimSpace(p.l.Slice(startPos, endPos))

	if p.peekTok.Type != lexer.TokenSemi {
		p.addError("expected ';' after code item assignment")
		return nil
	}
	p.nextToken() // curTok == ';'
	return &ast.CodeAssign{Path: path, Params: params, Source: source}
}

func (p *Parser) parseBlockStatements() []ast.Statement {
	// curTok == '{'
	p.nextToken()
	var stmts []ast.Statement
	for p.curTok.Type != lexer.TokenRBrace && p.curTok.Type != lexer.TokenEOF {
		s := p.parseStatement()
		if s != nil {
			stmts = append(stmts, s)
		}
		p.nextToken()
	}
	if p.curTok.Type != lexer.TokenRBrace {
		p.addError("expected '}' to close block")
	}
	return stmts
}

func (p *Parser) parseIf() ast.Statement {
	p.nextToken() // consume 'if'
	if p.curTok.Type != lexer.TokenLParen {
		p.addError("expected '(' after if")
		return nil
	}
	p.nextToken() // curTok == first cond token
	cond := p.parseExpr(lowest)
	if cond == nil {
		return nil
	}
	if p.peekTok.Type != lexer.TokenRParen {
		p.addError("expected ')' after if condition")
		return nil
	}
	p.nextToken() // curTok == ')'
	if p.peekTok.Type != lexer.TokenLBrace {
		p.addError("expected '{' after if condition")
		return nil
	}
	p.nextToken() // curTok == '{'
	thenStmts := p.parseBlockStatements()

	var elseStmts []ast.Statement
	if p.peekTok.Type == lexer.TokenElse {
		p.nextToken() // curTok == 'else'
		if p.peekTok.Type != lexer.TokenLBrace {
			p.addError("expected '{' after else")
			return nil
		}
		p.nextToken() // curTok == '{'
		elseStmts = p.parseBlockStatements()
	}
	return &ast.If{Cond: cond, Then: thenStmts, Else: elseStmts}
}

func (p *Parser) parseWhile() ast.Statement {
	p.nextToken() // consume 'while'
	if p.curTok.Type != lexer.TokenLParen {
		p.addError("expected '(' after while")
		return nil
	}
	p.nextToken() // curTok == first cond token
	cond := p.parseExpr(lowest)
	if cond == nil {
		return nil
	}
	if p.peekTok.Type != lexer.TokenRParen {
		p.addError("expected ')' after while condition")
		return nil
	}
	p.nextToken() // curTok == ')'
	if p.peekTok.Type != lexer.TokenLBrace {
		p.addError("expected '{' after while condition")
		return nil
	}
	p.nextToken() // curTok == '{'
	body := p.parseBlockStatements()
	return &ast.While{Cond: cond, Body: body}
}

// parseExpr implements precedence climbing: it parses a unary
// expression, then repeatedly folds in binary operators whose
// precedence exceeds prec, recursing with the operator's own
// precedence for the right-hand side (left-associative).
func (p *Parser) parseExpr(prec int) ast.Expression {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for precedenceOf(p.peekTok.Type) > prec {
		p.nextToken() // curTok == operator
		op := p.curTok.Literal
		opPrec := precedenceOf(p.curTok.Type)
		p.nextToken() // curTok == first token of RHS
		right := p.parseExpr(opPrec)
		if right == nil {
			return nil
		}
		left = &ast.Binary{Op: op, X: left, Y: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expression {
	if p.curTok.Type == lexer.TokenNot || p.curTok.Type == lexer.TokenMinus {
		op := p.curTok.Literal
		p.nextToken()
		x := p.parseUnary()
		if x == nil {
			return nil
		}
		return &ast.Unary{Op: op, X: x}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() ast.Expression {
	switch p.curTok.Type {
	case lexer.TokenInt:
		n, err := strconv.ParseInt(p.curTok.Literal, 10, 64)
		if err != nil {
			p.addError(fmt.Sprintf("could not parse %q as integer", p.curTok.Literal))
			return nil
		}
		return &ast.IntLiteral{Value: n}

	case lexer.TokenString:
		return &ast.StringLiteral{Value: p.curTok.Literal}

	case lexer.TokenTrue:
		return &ast.BoolLiteral{Value: true}

	case lexer.TokenFalse:
		return &ast.BoolLiteral{Value: false}

	case lexer.TokenNil:
		return &ast.NilLiteral{}

	case lexer.TokenLParen:
		p.nextToken() // curTok == first token of inner expr
		e := p.parseExpr(lowest)
		if e == nil {
			return nil
		}
		if p.peekTok.Type != lexer.TokenRParen {
			p.addError("expected ')' to close parenthesized expression")
			return nil
		}
		p.nextToken() // curTok == ')'
		return e

	case lexer.TokenIdent:
		if p.peekTok.Type == lexer.TokenDot {
			return p.parseLibCall()
		}
		return &ast.Ident{Name: p.curTok.Literal}

	case lexer.TokenDollar:
		path := p.parseItemPath()
		if path == nil {
			return nil
		}
		var args []ast.Expression
		if p.peekTok.Type == lexer.TokenLParen {
			p.nextToken() // curTok == '('
			args = p.parseArgList()
		}
		return &ast.Fetch{Path: path, Args: args}

	case lexer.TokenExists:
		p.nextToken() // curTok == '$' expected
		if p.curTok.Type != lexer.TokenDollar {
			p.addError("expected '$' after exists")
			return nil
		}
		path := p.parseItemPath()
		if path == nil {
			return nil
		}
		return &ast.Exists{Path: path}

	default:
		p.addError(fmt.Sprintf("unexpected token %s", p.curTok.Type))
		return nil
	}
}

// parseLibCall parses `lib.func(args...)`; curTok is the lib
// identifier and peekTok is the '.'.
func (p *Parser) parseLibCall() ast.Expression {
	lib := p.curTok.Literal
	p.nextToken() // curTok == '.'
	p.nextToken() // curTok == func ident expected
	if p.curTok.Type != lexer.TokenIdent {
		p.addError("expected function name after '.'")
		return nil
	}
	fn := p.curTok.Literal
	if p.peekTok.Type != lexer.TokenLParen {
		p.addError("expected '(' after libcall name")
		return nil
	}
	p.nextToken() // curTok == '('
	args := p.parseArgList()
	return &ast.LibCall{Lib: lib, Func: fn, Args: args}
}

// parseArgList parses a comma-separated argument list; curTok is '('
// on entry and ')' on a successful return.
func (p *Parser) parseArgList() []ast.Expression {
	var args []ast.Expression
	if p.peekTok.Type == lexer.TokenRParen {
		p.nextToken() // curTok == ')'
		return args
	}
	p.nextToken() // curTok == first arg token
	first := p.parseExpr(lowest)
	if first == nil {
		return args
	}
	args = append(args, first)
	for p.peekTok.Type == lexer.TokenComma {
		p.nextToken() // curTok == ','
		p.nextToken() // curTok == next arg token
		arg := p.parseExpr(lowest)
		if arg == nil {
			return args
		}
		args = append(args, arg)
	}
	if p.peekTok.Type != lexer.TokenRParen {
		p.addError("expected ')' to close argument list")
		return args
	}
	p.nextToken() // curTok == ')'
	return args
}

// parseItemPath parses a dotted item path. curTok must be '$' on
// entry; on a successful return curTok is the last token of the final
// segment.
func (p *Parser) parseItemPath() *ast.ItemPath {
	// curTok == '$'
	p.nextToken() // curTok == first segment token
	seg := p.parsePathSegment()
	if seg == nil {
		return nil
	}
	segs := []ast.PathSegment{*seg}
	for p.peekTok.Type == lexer.TokenDot {
		p.nextToken() // curTok == '.'
		p.nextToken() // curTok == next segment token
		seg := p.parsePathSegment()
		if seg == nil {
			return nil
		}
		segs = append(segs, *seg)
	}
	return &ast.ItemPath{Segments: segs}
}

func (p *Parser) parsePathSegment() *ast.PathSegment {
	switch p.curTok.Type {
	case lexer.TokenIdent:
		return &ast.PathSegment{Kind: ast.SegLiteral, Literal: p.curTok.Literal}

	case lexer.TokenAt:
		p.nextToken() // curTok == ident expected
		if p.curTok.Type != lexer.TokenIdent {
			p.addError("expected local name after '@'")
			return nil
		}
		return &ast.PathSegment{Kind: ast.SegLocal, Literal: p.curTok.Literal}

	case lexer.TokenLParen:
		p.nextToken() // curTok == '$' expected
		if p.curTok.Type != lexer.TokenDollar {
			p.addError("expected '$' to start nested item path")
			return nil
		}
		nested := p.parseItemPath()
		if nested == nil {
			return nil
		}
		if p.peekTok.Type != lexer.TokenRParen {
			p.addError("expected ')' to close nested item path")
			return nil
		}
		p.nextToken() // curTok == ')'
		return &ast.PathSegment{Kind: ast.SegNested, Nested: nested}

	default:
		p.addError(fmt.Sprintf("unexpected token %s in item path", p.curTok.Type))
		return nil
	}
}
