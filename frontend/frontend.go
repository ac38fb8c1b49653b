// Package frontend parses MicroC source and builds the typed tree lowering
// consumes.
package frontend

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
	"github.com/coreos/pkg/capnslog"
	"github.com/ztrue/tracerr"

	"github.com/pontaoski/microc/ast"
	"github.com/pontaoski/microc/errors"
	"github.com/pontaoski/microc/types"
)

var plog = capnslog.NewPackageLogger("github.com/pontaoski/microc", "frontend")

// failure carries a diagnostic out of the builder.
type failure struct {
	err error
}

type builder struct {
	file    string
	scopes  []map[string]*ast.Symbol
	symbols int

	funcs map[string]*ast.Func
	// fn is the function whose body is being built.
	fn *ast.Func
}

// reserved words never name a variable or a function.
var reserved = map[string]bool{
	"int": true, "float": true, "void": true,
	"if": true, "else": true, "while": true, "return": true,
	"malloc": true, "free": true, "print": true, "read": true,
}

// Parse reads one MicroC source file.
func Parse(filename, src string) (root *ast.Program, err error) {
	var prog Program
	if err := parser.ParseString(src, &prog); err != nil {
		return nil, syntaxError(filename, err)
	}

	b := &builder{file: filename, funcs: make(map[string]*ast.Func)}
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case failure:
				root, err = nil, v.err
			case error:
				root, err = nil, tracerr.Wrap(v)
			default:
				panic(r)
			}
		}
	}()

	root = b.program(&prog)
	plog.Debugf("%s: built %d top-level statements and %d functions using %d symbols", filename, len(root.Statements), len(root.Funcs), b.symbols)
	return root, nil
}

// program declares every function before building anything, so calls may
// come before the definition and functions may recurse.
func (b *builder) program(prog *Program) *ast.Program {
	var funcs []*ast.Func
	for _, item := range prog.Items {
		if item.Func != nil {
			funcs = append(funcs, b.signature(item.Func))
		}
	}

	b.pushScope()
	defer b.popScope()
	var stmts []ast.Statement
	idx := 0
	for _, item := range prog.Items {
		if item.Func == nil {
			stmts = append(stmts, b.statement(item.Statement))
			continue
		}
		b.body(funcs[idx], item.Func)
		idx++
	}
	return ast.NewProgram(stmts, funcs, b.span(prog.Pos))
}

func (b *builder) signature(f *Function) *ast.Func {
	b.checkName(f.Name, f.Pos)
	if prev, ok := b.funcs[f.Name]; ok {
		b.fail(errors.NameError{
			Name:     f.Name,
			Reason:   fmt.Sprintf("function already defined at %s", prev.Pos.From),
			Location: b.span(f.Pos),
		})
	}

	var params []*ast.Symbol
	for _, p := range f.Params {
		b.checkName(p.Name, p.Pos)
		b.symbols++
		params = append(params, &ast.Symbol{Name: p.Name, Kind: b.typeName(p.Type), ID: b.symbols, Pos: b.span(p.Pos)})
	}
	fn, err := ast.NewFunc(f.Name, b.typeName(f.Result), params, b.span(f.Pos))
	b.check(err)
	b.funcs[f.Name] = fn
	return fn
}

// body builds a function body in a scope holding the parameters, which the
// outermost statements of the body share.
func (b *builder) body(fn *ast.Func, f *Function) {
	b.pushScope()
	defer b.popScope()
	for _, p := range fn.Params {
		b.bind(p)
	}
	b.fn = fn
	defer func() { b.fn = nil }()
	fn.Body = ast.NewBlock(b.statements(f.Body.Statements), b.span(f.Body.Pos))
}

func syntaxError(filename string, err error) error {
	perr, ok := err.(participle.Error)
	if !ok {
		return errors.SyntaxError{Message: err.Error()}
	}
	pos := perr.Token().Pos
	return errors.SyntaxError{
		Message:  perr.Message(),
		Location: types.SingleCharSpan(position(filename, pos)),
	}
}

func position(filename string, pos lexer.Position) types.Position {
	if pos.Filename != "" {
		filename = pos.Filename
	}
	return types.Position{Line: pos.Line, Column: pos.Column, Filename: filename}
}

func (b *builder) span(pos lexer.Position) types.Span {
	return types.SingleCharSpan(position(b.file, pos))
}

func (b *builder) fail(err error) {
	panic(failure{err})
}

// check turns a constructor error into a build failure.
func (b *builder) check(err error) {
	if err != nil {
		b.fail(err)
	}
}

func (b *builder) pushScope() {
	b.scopes = append(b.scopes, make(map[string]*ast.Symbol))
}

func (b *builder) popScope() {
	b.scopes = b.scopes[:len(b.scopes)-1]
}

func (b *builder) lookup(name string, pos lexer.Position) *ast.Symbol {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if sym, ok := b.scopes[i][name]; ok {
			return sym
		}
	}
	b.fail(errors.NameError{Name: name, Reason: "undefined", Location: b.span(pos)})
	return nil
}

func (b *builder) checkName(name string, pos lexer.Position) {
	if reserved[name] {
		b.fail(errors.NameError{Name: name, Reason: "reserved word", Location: b.span(pos)})
	}
}

func (b *builder) define(name string, kind types.Type, pos lexer.Position) *ast.Symbol {
	b.checkName(name, pos)
	b.symbols++
	sym := &ast.Symbol{Name: name, Kind: kind, ID: b.symbols, Pos: b.span(pos)}
	b.bind(sym)
	return sym
}

func (b *builder) bind(sym *ast.Symbol) {
	top := b.scopes[len(b.scopes)-1]
	if prev, ok := top[sym.Name]; ok {
		b.fail(errors.NameError{
			Name:     sym.Name,
			Reason:   fmt.Sprintf("already declared at %s", prev.Pos.From),
			Location: sym.Pos,
		})
	}
	top[sym.Name] = sym
}

func (b *builder) typeName(t *TypeName) types.Type {
	var kind types.Type
	switch t.Base {
	case "float":
		kind = types.FloatType
	case "void":
		kind = types.VoidType
	default:
		kind = types.IntType
	}
	for range t.Stars {
		kind = types.PointerTo(kind)
	}
	return kind
}

func (b *builder) statements(stmts []*Statement) []ast.Statement {
	var out []ast.Statement
	for _, s := range stmts {
		out = append(out, b.statement(s))
	}
	return out
}

func (b *builder) statement(s *Statement) ast.Statement {
	pos := b.span(s.Pos)
	switch {
	case s.Decl != nil:
		// the initializer is resolved before the name comes into scope
		kind := b.typeName(s.Decl.Type)
		var init ast.Expression
		if s.Decl.Init != nil {
			init = b.expr(s.Decl.Init)
		}
		sym := b.define(s.Decl.Name, kind, s.Decl.Pos)
		decl, err := ast.NewVarDecl(sym, init, pos)
		b.check(err)
		return decl
	case s.Free != nil:
		free, err := ast.NewFree(b.expr(s.Free), pos)
		b.check(err)
		return free
	case s.Print != nil:
		var x ast.Expression
		if s.Print.String != nil {
			x = ast.NewStringLit(*s.Print.String, b.span(s.Print.Pos))
		} else {
			x = b.expr(s.Print.Expr)
		}
		write, err := ast.NewWrite(x, pos)
		b.check(err)
		return write
	case s.Read != nil:
		read, err := ast.NewRead(ast.NewVar(b.lookup(*s.Read, s.Pos), pos), pos)
		b.check(err)
		return read
	case s.If != nil:
		cond := b.cond(s.If.Cond)
		then := b.scoped(s.If.Then)
		var els ast.Statement
		if s.If.Else != nil {
			els = b.scoped(s.If.Else)
		}
		return ast.NewIf(cond, then, els, pos)
	case s.Return != nil:
		if b.fn == nil {
			b.fail(errors.SyntaxError{Message: "return outside of a function", Location: pos})
		}
		var x ast.Expression
		if s.Return.X != nil {
			x = b.expr(s.Return.X)
		}
		ret, err := ast.NewReturn(b.fn, x, pos)
		b.check(err)
		return ret
	case s.While != nil:
		return ast.NewWhile(b.cond(s.While.Cond), b.scoped(s.While.Body), pos)
	case s.Block != nil:
		b.pushScope()
		defer b.popScope()
		return ast.NewBlock(b.statements(s.Block.Statements), pos)
	case s.Simple != nil:
		target := b.expr(s.Simple.Target)
		if s.Simple.Value == nil {
			return ast.NewExprStmt(target, pos)
		}
		assign, err := ast.NewAssign(target, b.expr(s.Simple.Value), pos)
		b.check(err)
		return assign
	}
	panic("unhandled statement")
}

// scoped builds the body of an if or while in a scope of its own.
func (b *builder) scoped(s *Statement) ast.Statement {
	b.pushScope()
	defer b.popScope()
	return b.statement(s)
}

var condOps = map[string]ast.CondOp{
	"<": ast.LT, "<=": ast.LE, ">": ast.GT, ">=": ast.GE, "==": ast.EQ, "!=": ast.NE,
}

func (b *builder) cond(c *Cond) *ast.Cond {
	op, ok := condOps[strings.Replace(c.Op, " ", "", -1)]
	if !ok {
		b.fail(errors.SyntaxError{Message: "unknown comparison " + c.Op, Location: b.span(c.Pos)})
	}
	cond, err := ast.NewCond(op, b.expr(c.Left), b.expr(c.Right), b.span(c.Pos))
	b.check(err)
	return cond
}

var binaryOps = map[string]ast.BinaryOp{"+": ast.Add, "-": ast.Sub, "*": ast.Mul, "/": ast.Div}

func (b *builder) expr(e *Expr) ast.Expression {
	left := b.term(e.Left)
	for _, r := range e.Right {
		bin, err := ast.NewBinary(binaryOps[r.Op], left, b.term(r.Term), b.span(r.Pos))
		b.check(err)
		left = bin
	}
	return left
}

func (b *builder) term(t *Term) ast.Expression {
	left := b.unary(t.Left)
	for _, r := range t.Right {
		bin, err := ast.NewBinary(binaryOps[r.Op], left, b.unary(r.Unary), b.span(r.Pos))
		b.check(err)
		left = bin
	}
	return left
}

func (b *builder) unary(u *Unary) ast.Expression {
	pos := b.span(u.Pos)
	switch {
	case u.Operand != nil:
		x := b.unary(u.Operand)
		switch u.Op {
		case "&":
			if !ast.Addressable(x) {
				b.fail(errors.AddressError{Node: x.String(), Location: pos})
			}
			return ast.NewAddrOf(x, pos)
		case "*":
			deref, err := ast.NewPtrDeref(x, pos)
			b.check(err)
			return deref
		case "-":
			neg, err := ast.NewNeg(x, pos)
			b.check(err)
			return neg
		}
	case u.Cast != nil:
		cast, err := ast.NewCast(b.typeName(u.Cast.To), b.unary(u.Cast.X), pos)
		b.check(err)
		return cast
	case u.Primary != nil:
		return b.primary(u.Primary)
	}
	panic("unhandled unary")
}

func (b *builder) primary(p *Primary) ast.Expression {
	pos := b.span(p.Pos)
	switch {
	case p.Malloc != nil:
		m, err := ast.NewMalloc(b.expr(p.Malloc), pos)
		b.check(err)
		return m
	case p.Call != nil:
		fn, ok := b.funcs[p.Call.Name]
		if !ok {
			b.fail(errors.NameError{Name: p.Call.Name, Reason: "undefined function", Location: pos})
		}
		var args []ast.Expression
		for _, arg := range p.Call.Args {
			args = append(args, b.expr(arg))
		}
		call, err := ast.NewCall(fn, args, pos)
		b.check(err)
		return call
	case p.Float != nil:
		return ast.NewFloatLit(*p.Float, pos)
	case p.Int != nil:
		return ast.NewIntLit(*p.Int, pos)
	case p.Var != nil:
		return ast.NewVar(b.lookup(*p.Var, p.Pos), pos)
	case p.Sub != nil:
		return b.expr(p.Sub)
	}
	panic("unhandled primary")
}
