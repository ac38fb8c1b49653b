package lower

import (
	"strconv"

	"github.com/pontaoski/microc/asm"
	"github.com/pontaoski/microc/ast"
	"github.com/pontaoski/microc/errors"
	"github.com/pontaoski/microc/types"
)

// value lowers e and returns the register holding its value. want is the type
// the surrounding binding expects, or the zero Type when there is none; only
// an allocation looks at it.
func (c *ctx) value(e ast.Expression, want types.Type) string {
	switch n := e.(type) {
	case *ast.IntLit:
		dst := c.newTemp(types.IntType, n)
		c.emit(asm.New(asm.LI, dst, strconv.FormatInt(n.Value, 10)))
		return dst
	case *ast.FloatLit:
		dst := c.newTemp(types.FloatType, n)
		c.emit(asm.New(asm.FIMMS, dst, strconv.FormatFloat(n.Value, 'g', -1, 64)))
		return dst
	case *ast.Var:
		if !c.inSlot(n.Symbol) {
			return c.home(n.Symbol, n)
		}
		addr := c.address(n)
		dst := c.newTemp(n.Symbol.Kind, n)
		c.emit(asm.Load(c.loadOp(n.Symbol.Kind, n), dst, addr))
		return dst
	case *ast.AddrOf:
		return c.address(n.X)
	case *ast.PtrDeref:
		c.checkDeref(n)
		ptr := c.value(n.X, types.Type{})
		elem := n.X.Type().Wrapped()
		op := c.loadOp(elem, n)
		dst := c.newTemp(elem, n)
		c.emit(asm.Load(op, dst, ptr))
		return dst
	case *ast.Malloc:
		return c.malloc(n, want)
	case *ast.Binary:
		return c.binary(n)
	case *ast.Neg:
		t := n.X.Type()
		if !t.IsNumeric() {
			c.fail(errors.TypeMismatchError{Op: "negation", Expected: "a number", Got: t, Node: n.String(), Location: n.Span()})
		}
		x := c.value(n.X, types.Type{})
		dst := c.newTemp(t, n)
		if t.Kind == types.Float {
			c.emit(asm.New(asm.FNEGS, dst, x))
		} else {
			c.emit(asm.New(asm.NEG, dst, x))
		}
		return dst
	case *ast.Cast:
		return c.cast(n)
	case *ast.Call:
		return c.call(n)
	case *ast.StringLit:
		c.fail(errors.TypeMismatchError{Op: "expression", Expected: "a number or a pointer", Got: n.Type(), Node: n.String(), Location: n.Span()})
	case *ast.Cond:
		c.fail(errors.TypeMismatchError{Op: "comparison", Expected: "an if or while condition", Got: n.Type(), Node: n.String(), Location: n.Span()})
	}
	panic("unhandled")
}

// malloc settles the allocation's pending type from want before anything is
// emitted, then requests the size operand's bytes.
func (c *ctx) malloc(n *ast.Malloc, want types.Type) string {
	resolved, err := n.Resolve(want)
	if err != nil {
		c.fail(err)
	}
	if t := n.Size.Type(); t.Kind != types.Int {
		c.fail(errors.TypeMismatchError{Op: "malloc", Expected: "an int byte count", Got: t, Node: n.String(), Location: n.Span()})
	}
	size := c.value(n.Size, types.IntType)
	dst := c.newTemp(resolved, n)
	c.emit(asm.Malloc(dst, size))
	plog.Debugf("%s resolved to %s in %s", n, resolved, dst)
	return dst
}

var (
	intOps   = map[ast.BinaryOp]asm.OpCode{ast.Add: asm.ADD, ast.Sub: asm.SUB, ast.Mul: asm.MUL, ast.Div: asm.DIV}
	floatOps = map[ast.BinaryOp]asm.OpCode{ast.Add: asm.FADDS, ast.Sub: asm.FSUBS, ast.Mul: asm.FMULS, ast.Div: asm.FDIVS}
)

func (c *ctx) binary(n *ast.Binary) string {
	typ, err := ast.BinaryType(n)
	if err != nil {
		c.fail(err)
	}
	lt, rt := n.Left.Type(), n.Right.Type()
	l := c.value(n.Left, types.Type{})
	r := c.value(n.Right, types.Type{})

	switch {
	case typ.Kind == types.Float:
		l = c.coerce(l, lt, typ, n.Left)
		r = c.coerce(r, rt, typ, n.Right)
		dst := c.newTemp(typ, n)
		c.emit(asm.New(floatOps[n.Op], dst, l, r))
		return dst
	case lt.IsPointer() && rt.IsPointer():
		diff := c.newTemp(types.IntType, n)
		c.emit(asm.New(asm.SUB, diff, l, r))
		return c.divideBySize(diff, lt.Wrapped(), n)
	case lt.IsPointer():
		offset := c.scale(r, lt.Wrapped(), n)
		dst := c.newTemp(typ, n)
		c.emit(asm.New(intOps[n.Op], dst, l, offset))
		return dst
	case rt.IsPointer():
		offset := c.scale(l, rt.Wrapped(), n)
		dst := c.newTemp(typ, n)
		c.emit(asm.New(asm.ADD, dst, r, offset))
		return dst
	}

	dst := c.newTemp(typ, n)
	c.emit(asm.New(intOps[n.Op], dst, l, r))
	return dst
}

// scale turns an element count into a byte offset for pointers to elem.
func (c *ctx) scale(count string, elem types.Type, n ast.Node) string {
	size := elem.Size(c.opts.WordSize)
	if size == 1 {
		return count
	}
	s := c.newTemp(types.IntType, n)
	c.emit(asm.New(asm.LI, s, strconv.Itoa(size)))
	dst := c.newTemp(types.IntType, n)
	c.emit(asm.New(asm.MUL, dst, count, s))
	return dst
}

func (c *ctx) divideBySize(bytes string, elem types.Type, n ast.Node) string {
	size := elem.Size(c.opts.WordSize)
	if size == 1 {
		return bytes
	}
	s := c.newTemp(types.IntType, n)
	c.emit(asm.New(asm.LI, s, strconv.Itoa(size)))
	dst := c.newTemp(types.IntType, n)
	c.emit(asm.New(asm.DIV, dst, bytes, s))
	return dst
}

func (c *ctx) cast(n *ast.Cast) string {
	var want types.Type
	if n.To.IsPointer() {
		want = n.To
	}
	x := c.value(n.X, want)
	from := n.X.Type()

	switch {
	case from.Equal(n.To):
		return x
	case from.IsNumeric() && n.To.IsNumeric():
		return c.coerce(x, from, n.To, n)
	case (from.IsPointer() || from.Kind == types.Int) && (n.To.IsPointer() || n.To.Kind == types.Int):
		dst := c.newTemp(n.To, n)
		c.emit(asm.New(asm.MV, dst, x))
		return dst
	}
	c.fail(errors.TypeMismatchError{Op: "cast to " + n.To.String(), Expected: "a number or a pointer", Got: from, Node: n.String(), Location: n.Span()})
	return ""
}
