package parser

import (
	"fmt"
	"strconv"
	"strings"

	"clever/internal/ast"
	"clever/internal/lexer"
	"clever/internal/token"
)

type Parser struct {
	l *lexer.Lexer

	cur  token.Token
	peek token.Token

	errors []string
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	// init cur/peek
	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns lexer and parser errors in the order they were found.
func (p *Parser) Errors() []string {
	return append(append([]string(nil), p.l.Errors()...), p.errors...)
}

func (p *Parser) nextToken() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) errorf(pos token.Position, format string, args ...interface{}) {
	msg := fmt.Sprintf("%d:%d: ", pos.Line, pos.Column) + fmt.Sprintf(format, args...)
	p.errors = append(p.errors, msg)
}

func (p *Parser) expect(kind token.Kind) token.Token {
	if p.cur.Kind != kind {
		p.errorf(p.cur.Pos, "expected %s, got %s (%q)", kind, p.cur.Kind, p.cur.Lexeme)
	}
	tok := p.cur
	p.nextToken()
	return tok
}

func (p *Parser) ident() *ast.Ident {
	tok := p.expect(token.Ident)
	return &ast.Ident{Name: tok.Lexeme, NamePos: tok.Pos}
}

// ---------- Top-level ----------

func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.cur.Kind != token.EOF {
		before := len(p.errors)
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
		if len(p.errors) > before {
			p.synchronize()
		}
	}
	return prog
}

// synchronize skips to the next statement boundary after an error.
func (p *Parser) synchronize() {
	for p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Semicolon || p.cur.Kind == token.RBrace {
			p.nextToken()
			return
		}
		p.nextToken()
	}
}

// ---------- Statements ----------

func (p *Parser) parseBlock() *ast.BlockStmt {
	lbrace := p.expect(token.LBrace)

	block := &ast.BlockStmt{LBrace: lbrace.Pos}

	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		before := len(p.errors)
		stmt := p.parseStatement()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if len(p.errors) > before {
			return block
		}
	}

	if p.cur.Kind == token.RBrace {
		p.nextToken()
	} else {
		p.errorf(p.cur.Pos, "expected '}' to close block")
	}
	return block
}

// parseBody accepts either a block or a single statement.
func (p *Parser) parseBody() *ast.BlockStmt {
	if p.cur.Kind == token.LBrace {
		return p.parseBlock()
	}
	pos := p.cur.Pos
	stmt := p.parseStatement()
	block := &ast.BlockStmt{LBrace: pos}
	if stmt != nil {
		block.Stmts = append(block.Stmts, stmt)
	}
	return block
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.cur.Kind {
	case token.Var:
		return p.parseVarDecl()
	case token.Function:
		return p.parseFuncDecl()
	case token.If:
		return p.parseIfStmt()
	case token.While:
		return p.parseWhileStmt()
	case token.For:
		return p.parseForStmt()
	case token.Try:
		return p.parseTryStmt()
	case token.Throw:
		tok := p.cur
		p.nextToken()
		value := p.parseExpr()
		p.expect(token.Semicolon)
		return &ast.ThrowStmt{ThrowPos: tok.Pos, Value: value}
	case token.Return:
		tok := p.cur
		p.nextToken()
		stmt := &ast.ReturnStmt{ReturnPos: tok.Pos}
		if p.cur.Kind != token.Semicolon {
			stmt.Value = p.parseExpr()
		}
		p.expect(token.Semicolon)
		return stmt
	case token.Break:
		tok := p.cur
		p.nextToken()
		p.expect(token.Semicolon)
		return &ast.BreakStmt{BreakPos: tok.Pos}
	case token.Continue:
		tok := p.cur
		p.nextToken()
		p.expect(token.Semicolon)
		return &ast.ContinueStmt{ContinuePos: tok.Pos}
	case token.Critical:
		tok := p.cur
		p.nextToken()
		return &ast.CriticalStmt{CriticalPos: tok.Pos, Body: p.parseBlock()}
	case token.Spawn:
		return p.parseSpawnStmt()
	case token.Wait:
		tok := p.cur
		p.nextToken()
		name := p.ident()
		p.expect(token.Semicolon)
		return &ast.WaitStmt{WaitPos: tok.Pos, Name: name}
	case token.LBrace:
		return p.parseBlock()
	case token.Semicolon:
		p.nextToken()
		return nil
	default:
		expr := p.parseExpr()
		p.expect(token.Semicolon)
		if expr == nil {
			return nil
		}
		return &ast.ExprStmt{X: expr}
	}
}

func (p *Parser) parseVarDecl() ast.Stmt {
	varTok := p.expect(token.Var)
	decl := &ast.VarDecl{VarPos: varTok.Pos, Name: p.ident()}
	if p.cur.Kind == token.Assign {
		p.nextToken()
		decl.Value = p.parseExpr()
	}
	p.expect(token.Semicolon)
	return decl
}

func (p *Parser) parseFuncDecl() ast.Stmt {
	fnTok := p.expect(token.Function)
	fn := &ast.FuncDecl{FuncPos: fnTok.Pos, Name: p.ident()}

	p.expect(token.LParen)
	if p.cur.Kind != token.RParen {
		for {
			param := &ast.Param{Name: p.ident()}
			if p.cur.Kind == token.Assign {
				p.nextToken()
				param.Default = p.parseExpr()
			} else if len(fn.Params) > 0 && fn.Params[len(fn.Params)-1].Default != nil {
				p.errorf(param.Name.NamePos, "parameter %s without default follows a defaulted parameter", param.Name.Name)
			}
			fn.Params = append(fn.Params, param)
			if p.cur.Kind != token.Comma {
				break
			}
			p.nextToken()
		}
	}
	p.expect(token.RParen)
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseIfStmt() ast.Stmt {
	ifTok := p.expect(token.If)
	stmt := &ast.IfStmt{IfPos: ifTok.Pos}

	for {
		p.expect(token.LParen)
		cond := p.parseExpr()
		p.expect(token.RParen)
		stmt.Branches = append(stmt.Branches, &ast.IfBranch{Cond: cond, Body: p.parseBody()})

		if p.cur.Kind != token.Else {
			return stmt
		}
		p.nextToken()
		if p.cur.Kind != token.If {
			stmt.Else = p.parseBody()
			return stmt
		}
		p.nextToken()
	}
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	whileTok := p.expect(token.While)
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)
	return &ast.WhileStmt{WhilePos: whileTok.Pos, Cond: cond, Body: p.parseBody()}
}

func (p *Parser) parseForStmt() ast.Stmt {
	forTok := p.expect(token.For)
	p.expect(token.LParen)

	// for (v in expr)
	if p.cur.Kind == token.Ident && p.peek.Kind == token.In {
		v := p.ident()
		p.nextToken() // in
		iter := p.parseExpr()
		p.expect(token.RParen)
		return &ast.ForInStmt{ForPos: forTok.Pos, Var: v, Iter: iter, Body: p.parseBody()}
	}

	stmt := &ast.ForStmt{ForPos: forTok.Pos}
	switch p.cur.Kind {
	case token.Semicolon:
		p.nextToken()
	case token.Var:
		stmt.Init = p.parseVarDecl()
	default:
		stmt.Init = &ast.ExprStmt{X: p.parseExpr()}
		p.expect(token.Semicolon)
	}
	if p.cur.Kind != token.Semicolon {
		stmt.Cond = p.parseExpr()
	}
	p.expect(token.Semicolon)
	if p.cur.Kind != token.RParen {
		stmt.Post = p.parseExpr()
	}
	p.expect(token.RParen)
	stmt.Body = p.parseBody()
	return stmt
}

func (p *Parser) parseTryStmt() ast.Stmt {
	tryTok := p.expect(token.Try)
	stmt := &ast.TryStmt{TryPos: tryTok.Pos, Body: p.parseBlock()}

	for p.cur.Kind == token.Catch {
		clause := &ast.CatchClause{CatchPos: p.cur.Pos}
		p.nextToken()
		p.expect(token.LParen)
		first := p.ident()
		if p.cur.Kind == token.Ident {
			clause.Type = first
			clause.Var = p.ident()
		} else {
			clause.Var = first
		}
		p.expect(token.RParen)
		clause.Body = p.parseBlock()
		stmt.Catches = append(stmt.Catches, clause)
	}

	if p.cur.Kind == token.Finally {
		p.nextToken()
		stmt.Finally = p.parseBlock()
	}
	if len(stmt.Catches) == 0 && stmt.Finally == nil {
		p.errorf(tryTok.Pos, "try requires at least one catch or a finally block")
	}
	return stmt
}

func (p *Parser) parseSpawnStmt() ast.Stmt {
	spawnTok := p.expect(token.Spawn)
	stmt := &ast.SpawnStmt{SpawnPos: spawnTok.Pos}
	if p.cur.Kind == token.Ident {
		stmt.Name = p.ident()
	}
	if p.cur.Kind == token.LBracket {
		p.nextToken()
		stmt.Size = p.parseExpr()
		p.expect(token.RBracket)
	}
	stmt.Body = p.parseBlock()
	return stmt
}

// ---------- Expressions ----------

func (p *Parser) parseExpr() ast.Expr {
	return p.parseAssign()
}

var assignOps = map[token.Kind]bool{
	token.Assign:      true,
	token.PlusAssign:  true,
	token.MinusAssign: true,
	token.StarAssign:  true,
	token.SlashAssign: true,
}

func (p *Parser) parseAssign() ast.Expr {
	left := p.parseOr()
	if !assignOps[p.cur.Kind] {
		return left
	}
	opTok := p.cur
	p.nextToken()
	switch left.(type) {
	case *ast.Ident, *ast.IndexExpr:
	default:
		p.errorf(opTok.Pos, "invalid assignment target")
	}
	value := p.parseAssign()
	return &ast.AssignExpr{Op: opTok.Kind, OpPos: opTok.Pos, Target: left, Value: value}
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.cur.Kind == token.OrOr {
		opTok := p.cur
		p.nextToken()
		right := p.parseAnd()
		left = &ast.LogicalExpr{OpPos: opTok.Pos, Op: opTok.Kind, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseBinary(0)
	for p.cur.Kind == token.AndAnd {
		opTok := p.cur
		p.nextToken()
		right := p.parseBinary(0)
		left = &ast.LogicalExpr{OpPos: opTok.Pos, Op: opTok.Kind, Left: left, Right: right}
	}
	return left
}

// binaryLevels lists the left-associative operators from loosest to tightest.
var binaryLevels = [][]token.Kind{
	{token.Pipe},
	{token.Caret},
	{token.Amp},
	{token.Eq, token.NotEq},
	{token.Lt, token.LtEq, token.Gt, token.GtEq},
	{token.Shl, token.Shr},
	{token.Plus, token.Minus},
	{token.Star, token.Slash, token.Percent},
}

func (p *Parser) parseBinary(level int) ast.Expr {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	left := p.parseBinary(level + 1)
	for isOneOf(p.cur.Kind, binaryLevels[level]) {
		opTok := p.cur
		p.nextToken()
		right := p.parseBinary(level + 1)
		left = &ast.BinaryExpr{OpPos: opTok.Pos, Op: opTok.Kind, Left: left, Right: right}
	}
	return left
}

func isOneOf(k token.Kind, kinds []token.Kind) bool {
	for _, kind := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.cur.Kind {
	case token.Bang, token.Minus, token.Tilde:
		opTok := p.cur
		p.nextToken()
		x := p.parseUnary()
		return &ast.UnaryExpr{OpPos: opTok.Pos, Op: opTok.Kind, X: x}
	case token.PlusPlus, token.MinusMinus:
		opTok := p.cur
		p.nextToken()
		x := p.parseUnary()
		id, ok := x.(*ast.Ident)
		if !ok {
			p.errorf(opTok.Pos, "%s requires a variable operand", opTok.Kind)
			return x
		}
		return &ast.IncDecExpr{Op: opTok.Kind, OpPos: opTok.Pos, Prefix: true, X: id}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()

	for {
		switch p.cur.Kind {
		case token.Dot:
			p.nextToken()
			method := p.ident()
			if p.cur.Kind != token.LParen {
				p.errorf(p.cur.Pos, "expected '(' after method name %s", method.Name)
				return expr
			}
			expr = &ast.MethodCallExpr{Recv: expr, Method: method, Args: p.parseArgs()}
		case token.LParen:
			lparen := p.cur.Pos
			expr = &ast.CallExpr{Callee: expr, LParen: lparen, Args: p.parseArgs()}
		case token.LBracket:
			lbr := p.cur
			p.nextToken()
			index := p.parseExpr()
			p.expect(token.RBracket)
			expr = &ast.IndexExpr{X: expr, LBrack: lbr.Pos, Index: index}
		case token.PlusPlus, token.MinusMinus:
			id, ok := expr.(*ast.Ident)
			if !ok {
				p.errorf(p.cur.Pos, "%s requires a variable operand", p.cur.Kind)
				p.nextToken()
				return expr
			}
			expr = &ast.IncDecExpr{Op: p.cur.Kind, OpPos: p.cur.Pos, X: id}
			p.nextToken()
		default:
			return expr
		}
	}
}

func (p *Parser) parseArgs() []ast.Expr {
	p.expect(token.LParen)
	var args []ast.Expr
	if p.cur.Kind != token.RParen {
		for {
			args = append(args, p.parseExpr())
			if p.cur.Kind != token.Comma {
				break
			}
			p.nextToken()
		}
	}
	p.expect(token.RParen)
	return args
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.cur
	switch tok.Kind {
	case token.Ident:
		p.nextToken()
		return &ast.Ident{Name: tok.Lexeme, NamePos: tok.Pos}

	case token.Int:
		p.nextToken()
		base := 10
		lit := tok.Lexeme
		if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
			base, lit = 16, lit[2:]
		}
		v, err := strconv.ParseInt(lit, base, 64)
		if err != nil {
			p.errorf(tok.Pos, "invalid integer literal %q", tok.Lexeme)
		}
		return &ast.IntLit{LitPos: tok.Pos, Value: v}

	case token.Double:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.errorf(tok.Pos, "invalid double literal %q", tok.Lexeme)
		}
		return &ast.DoubleLit{LitPos: tok.Pos, Value: v}

	case token.String:
		p.nextToken()
		return &ast.StringLit{LitPos: tok.Pos, Value: tok.Lexeme}

	case token.True, token.False:
		p.nextToken()
		return &ast.BoolLit{LitPos: tok.Pos, Value: tok.Kind == token.True}

	case token.Null:
		p.nextToken()
		return &ast.NullLit{LitPos: tok.Pos}

	case token.LParen:
		p.nextToken()
		expr := p.parseExpr()
		p.expect(token.RParen)
		return expr

	case token.LBracket:
		p.nextToken()
		arr := &ast.ArrayLit{LBrack: tok.Pos}
		for p.cur.Kind != token.RBracket && p.cur.Kind != token.EOF {
			arr.Elems = append(arr.Elems, p.parseExpr())
			if p.cur.Kind != token.Comma {
				break
			}
			p.nextToken()
		}
		p.expect(token.RBracket)
		return arr

	case token.New:
		p.nextToken()
		typ := p.ident()
		var args []ast.Expr
		if p.cur.Kind == token.LParen {
			args = p.parseArgs()
		}
		return &ast.NewExpr{NewPos: tok.Pos, Type: typ, Args: args}

	default:
		p.errorf(tok.Pos, "unexpected token %s (%q) in expression", tok.Kind, tok.Lexeme)
		p.nextToken()
		return &ast.NullLit{LitPos: tok.Pos}
	}
}
