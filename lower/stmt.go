package lower

import (
	"github.com/pontaoski/microc/asm"
	"github.com/pontaoski/microc/ast"
	"github.com/pontaoski/microc/errors"
	"github.com/pontaoski/microc/types"
)

func (c *ctx) stmt(s ast.Statement) {
	switch n := s.(type) {
	case *ast.VarDecl:
		c.declare(n)
	case *ast.Assign:
		c.assign(n.To, n.Value, n)
	case *ast.Free:
		if err := ast.CheckFree(n); err != nil {
			c.fail(err)
		}
		ptr := c.value(n.X, types.Type{})
		c.emit(asm.Free(ptr))
	case *ast.Write:
		c.write(n)
	case *ast.Read:
		c.read(n)
	case *ast.ExprStmt:
		c.value(n.X, types.Type{})
	case *ast.Return:
		c.ret(n)
	case *ast.If:
		if n.Else == nil {
			out := c.newLabel("out")
			c.branchIfFalse(n.Condition, out)
			c.stmt(n.Then)
			c.emit(asm.Label(out))
			return
		}
		els, out := c.newLabel("else"), c.newLabel("out")
		c.branchIfFalse(n.Condition, els)
		c.stmt(n.Then)
		c.emit(asm.Jump(out))
		c.emit(asm.Label(els))
		c.stmt(n.Else)
		c.emit(asm.Label(out))
	case *ast.While:
		loop, out := c.newLabel("loop"), c.newLabel("out")
		c.emit(asm.Label(loop))
		c.branchIfFalse(n.Condition, out)
		c.stmt(n.Body)
		c.emit(asm.Jump(loop))
		c.emit(asm.Label(out))
	case *ast.Block:
		for _, child := range n.Statements {
			c.stmt(child)
		}
	default:
		panic("unhandled statement " + s.String())
	}
}

// declare binds a register variable straight to its initializer's register
// when nothing else owns it. Slot variables are stored through LA.
func (c *ctx) declare(n *ast.VarDecl) {
	sym := n.Symbol
	if !ast.Storable(sym.Kind) {
		c.fail(errors.TypeMismatchError{Op: "declaration of " + sym.Name, Expected: "a number or a pointer", Got: sym.Kind, Node: n.String(), Location: n.Span()})
	}
	if c.inSlot(sym) {
		if c.frame != nil {
			c.frame.local(sym, c.opts.WordSize)
		} else {
			c.slot(sym)
		}
		if n.Init != nil {
			c.assign(&ast.Var{Symbol: sym, Pos: n.Pos}, n.Init, n)
		}
		return
	}
	if n.Init == nil {
		return
	}

	reg := c.converted(n.Init, sym.Kind, n)
	if c.owned[reg] {
		home := c.home(sym, n)
		c.emit(asm.New(moveOp(sym.Kind), home, reg))
		return
	}
	c.homes[sym] = reg
	c.owned[reg] = true
	plog.Debugf("%s lives in %s", sym.Name, reg)
}

// converted lowers value with target as its binding context and converts
// the result to target.
func (c *ctx) converted(value ast.Expression, target types.Type, n ast.Node) string {
	reg := c.value(value, target)
	from := value.Type()
	if !ast.Assignable(target, from) {
		c.fail(errors.TypeMismatchError{Op: "assignment", Expected: target.String(), Got: from, Node: n.String(), Location: n.Span()})
	}
	return c.coerce(reg, from, target, n)
}

// assign stores value into to. A memory target has its address lowered
// before the value.
func (c *ctx) assign(to, value ast.Expression, n ast.Node) {
	target := to.Type()
	if v, ok := to.(*ast.Var); ok && !c.inSlot(v.Symbol) {
		home := c.home(v.Symbol, v)
		reg := c.converted(value, target, n)
		c.emit(asm.New(moveOp(target), home, reg))
		return
	}

	addr := c.address(to)
	op := c.storeOp(target, to)
	reg := c.converted(value, target, n)
	c.emit(asm.Store(op, reg, addr))
}

func (c *ctx) write(n *ast.Write) {
	if lit, ok := n.X.(*ast.StringLit); ok {
		label := c.newLabel("str")
		c.res.Strings[label] = lit.Value
		addr := c.newTemp(types.PointerTo(types.StringType), n)
		c.emit(asm.New(asm.LA, addr, label))
		c.emit(asm.New(asm.PUTS, "", addr))
		return
	}

	t := n.X.Type()
	var op asm.OpCode
	switch t.Kind {
	case types.Float:
		op = asm.PUTF
	case types.Int, types.Bool, types.Ptr:
		op = asm.PUTI
	default:
		c.fail(errors.TypeMismatchError{Op: "print", Expected: "a number, a pointer or a string literal", Got: t, Node: n.String(), Location: n.Span()})
	}
	reg := c.value(n.X, types.Type{})
	c.emit(asm.New(op, "", reg))
}

func (c *ctx) read(n *ast.Read) {
	t := n.To.Type()
	var op asm.OpCode
	switch t.Kind {
	case types.Int:
		op = asm.GETI
	case types.Float:
		op = asm.GETF
	default:
		c.fail(errors.TypeMismatchError{Op: "read", Expected: "an int or float variable", Got: t, Node: n.String(), Location: n.Span()})
	}

	if !c.inSlot(n.To.Symbol) {
		home := c.home(n.To.Symbol, n.To)
		c.emit(asm.New(op, home))
		return
	}
	reg := c.newTemp(t, n)
	c.emit(asm.New(op, reg))
	addr := c.address(n.To)
	c.emit(asm.Store(c.storeOp(t, n), reg, addr))
}

var branchOps = map[ast.CondOp]asm.OpCode{
	ast.LT: asm.BLT,
	ast.LE: asm.BLE,
	ast.GT: asm.BGT,
	ast.GE: asm.BGE,
	ast.EQ: asm.BEQ,
	ast.NE: asm.BNE,
}

// branchIfFalse jumps to label when cond does not hold and falls through
// otherwise.
func (c *ctx) branchIfFalse(cond *ast.Cond, label string) {
	lt, rt := cond.Left.Type(), cond.Right.Type()
	for _, operand := range []ast.Expression{cond.Left, cond.Right} {
		if operand.Type().Pending() {
			c.fail(errors.TypeInferenceError{Node: operand.String(), Location: operand.Span()})
		}
	}
	if !(lt.IsNumeric() && rt.IsNumeric()) && !(lt.IsPointer() && lt.Equal(rt)) {
		c.fail(errors.TypeMismatchError{Op: "comparison " + cond.Op.String(), Expected: lt.String(), Got: rt, Node: cond.String(), Location: cond.Span()})
	}

	l := c.value(cond.Left, types.Type{})
	r := c.value(cond.Right, types.Type{})
	if lt.Kind != types.Float && rt.Kind != types.Float {
		c.emit(asm.Branch(branchOps[cond.Op.Reversed()], l, r, label))
		return
	}

	l = c.coerce(l, lt, types.FloatType, cond.Left)
	r = c.coerce(r, rt, types.FloatType, cond.Right)
	flag := c.newTemp(types.IntType, cond)
	zero := c.opts.ZeroRegister
	switch cond.Op {
	case ast.LT:
		c.emit(asm.New(asm.FLTS, flag, l, r))
	case ast.LE:
		c.emit(asm.New(asm.FLES, flag, l, r))
	case ast.GT:
		c.emit(asm.New(asm.FLTS, flag, r, l))
	case ast.GE:
		c.emit(asm.New(asm.FLES, flag, r, l))
	case ast.EQ, ast.NE:
		c.emit(asm.New(asm.FEQS, flag, l, r))
	}
	if cond.Op == ast.NE {
		c.emit(asm.Branch(asm.BNE, flag, zero, label))
		return
	}
	c.emit(asm.Branch(asm.BEQ, flag, zero, label))
}
