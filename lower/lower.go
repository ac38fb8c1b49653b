// Package lower turns a typed MicroC tree into a flat stream of
// virtual-register instructions.
//
// Variables whose address is never taken live in virtual registers: a
// declaration binds the variable to the register its initializer produced,
// and later assignments move into that register. Variables whose address is
// taken live in memory slots reached through LA.
package lower

import (
	"fmt"
	"strconv"

	"github.com/pontaoski/microc/asm"
	"github.com/pontaoski/microc/ast"
	"github.com/pontaoski/microc/errors"
	"github.com/pontaoski/microc/types"
)

type Result struct {
	Code asm.Program
	// Types holds the resolved type of every virtual register written.
	Types map[string]types.Type
	// Slots holds the content type of every memory slot.
	Slots map[string]types.Type
	// Strings maps data labels to the string literals they hold.
	Strings map[string]string
	// Funcs lists the entry labels of the functions in the stream.
	Funcs []string

	IntRegs   int
	FloatRegs int
}

// abort carries a diagnostic out of the walk. Lower recovers it.
type abort struct {
	err error
}

type ctx struct {
	opts Options
	res  *Result

	labels map[string]int
	taken  map[*ast.Symbol]bool
	homes  map[*ast.Symbol]string
	slots  map[*ast.Symbol]string
	// owned marks registers that are some variable's home.
	owned map[string]bool

	// frame is the function being lowered, nil at the top level.
	frame   *frame
	defined map[*ast.Func]bool
}

// Lower walks root, which may be a statement or an expression, and returns
// its instruction stream. On a type error nothing is returned but the error.
func Lower(root ast.Node, opts Options) (res *Result, err error) {
	c := &ctx{
		opts: opts,
		res: &Result{
			Types:   make(map[string]types.Type),
			Slots:   make(map[string]types.Type),
			Strings: make(map[string]string),
		},
		labels: make(map[string]int),
		taken:  ast.AddressTaken(root),
		homes:  make(map[*ast.Symbol]string),
		slots:  make(map[*ast.Symbol]string),
		owned:  make(map[string]bool),

		defined: make(map[*ast.Func]bool),
	}

	defer func() {
		if v := recover(); v != nil {
			if a, ok := v.(abort); ok {
				plog.Debugf("lowering aborted: %v", a.err)
				res, err = nil, a.err
			} else {
				panic(v)
			}
		}
	}()

	switch n := root.(type) {
	case *ast.Program:
		c.program(n)
	case ast.Statement:
		c.stmt(n)
		c.halt()
	case ast.Expression:
		c.value(n, types.Type{})
		c.halt()
	default:
		panic(fmt.Sprintf("cannot lower %T", root))
	}

	plog.Debugf("lowered %d instructions using %d int and %d float registers", len(c.res.Code), c.res.IntRegs, c.res.FloatRegs)
	return c.res, nil
}

func (c *ctx) halt() {
	if c.opts.Halt {
		c.emit(asm.New(asm.HALT, ""))
	}
}

func (c *ctx) fail(err error) {
	panic(abort{err})
}

func (c *ctx) emit(i asm.Instruction) {
	plog.Tracef("emit %s", i)
	c.res.Code = append(c.res.Code, i)
}

// newTemp names a fresh register for a value of type t.
func (c *ctx) newTemp(t types.Type, n ast.Node) string {
	if !t.Concrete() {
		c.fail(errors.TypeInferenceError{Context: t, Node: n.String(), Location: n.Span()})
	}

	var name string
	switch t.Kind {
	case types.Int, types.Bool, types.Ptr:
		c.res.IntRegs++
		name = c.opts.IntPrefix + strconv.Itoa(c.res.IntRegs)
	case types.Float:
		c.res.FloatRegs++
		name = c.opts.FloatPrefix + strconv.Itoa(c.res.FloatRegs)
	default:
		panic("generating temp for bad type " + t.String())
	}
	c.res.Types[name] = t
	return name
}

// newLabel names a fresh label. String data labels are LA operands like
// slots, so a label never reuses a slot's name.
func (c *ctx) newLabel(kind string) string {
	for {
		c.labels[kind]++
		label := kind + "_" + strconv.Itoa(c.labels[kind])
		if !c.dataName(label) {
			return label
		}
	}
}

// dataName reports whether name already denotes a slot or a string.
func (c *ctx) dataName(name string) bool {
	_, slot := c.res.Slots[name]
	_, str := c.res.Strings[name]
	return slot || str
}

func (c *ctx) loadOp(elem types.Type, n ast.Node) asm.OpCode {
	switch elem.Kind {
	case types.Float:
		return asm.FLW
	case types.Int, types.Bool, types.Ptr:
		return asm.LW
	}
	c.fail(errors.TypeMismatchError{
		Op:       "load",
		Expected: "a pointer to int, float, bool or a pointer",
		Got:      types.PointerTo(elem),
		Node:     n.String(),
		Location: n.Span(),
	})
	return 0
}

func (c *ctx) storeOp(elem types.Type, n ast.Node) asm.OpCode {
	if c.loadOp(elem, n) == asm.FLW {
		return asm.FSW
	}
	return asm.SW
}

func moveOp(t types.Type) asm.OpCode {
	if t.Kind == types.Float {
		return asm.FMVS
	}
	return asm.MV
}

// home is the register a register-resident variable lives in. A variable
// read before any assignment gets an uninitialized register.
func (c *ctx) home(sym *ast.Symbol, n ast.Node) string {
	if reg, ok := c.homes[sym]; ok {
		return reg
	}
	reg := c.newTemp(sym.Kind, n)
	c.homes[sym] = reg
	c.owned[reg] = true
	return reg
}

// slot is the memory slot of an address-taken variable.
func (c *ctx) slot(sym *ast.Symbol) string {
	if name, ok := c.slots[sym]; ok {
		return name
	}
	name := sym.Name
	if c.dataName(name) {
		name = fmt.Sprintf("%s_%d", sym.Name, sym.ID)
	}
	for i := 1; c.dataName(name); i++ {
		name = fmt.Sprintf("%s_%d_%d", sym.Name, sym.ID, i)
	}
	c.slots[sym] = name
	c.res.Slots[name] = sym.Kind
	return name
}

func (c *ctx) inSlot(sym *ast.Symbol) bool {
	return c.taken[sym]
}

// coerce converts the value in reg from type from to type to, emitting a
// conversion when the two are different numbers.
func (c *ctx) coerce(reg string, from, to types.Type, n ast.Node) string {
	switch {
	case from.Equal(to):
		return reg
	case from.Kind == types.Int && to.Kind == types.Float:
		dst := c.newTemp(to, n)
		c.emit(asm.New(asm.IMOVFS, dst, reg))
		return dst
	case from.Kind == types.Float && to.Kind == types.Int:
		dst := c.newTemp(to, n)
		c.emit(asm.New(asm.FMOVIS, dst, reg))
		return dst
	}
	c.fail(errors.TypeMismatchError{
		Op:       "conversion",
		Expected: to.String(),
		Got:      from,
		Node:     n.String(),
		Location: n.Span(),
	})
	return ""
}

// address lowers the storage location of e, which must be a slot variable or
// a dereference, and returns the register holding the address.
func (c *ctx) address(e ast.Expression) string {
	switch n := e.(type) {
	case *ast.Var:
		if !c.inSlot(n.Symbol) {
			c.fail(errors.AddressError{Node: n.String(), Location: n.Span()})
		}
		if off, ok := c.frameOffset(n.Symbol); ok {
			return c.frameAddress(off, n.Symbol.Kind, n)
		}
		dst := c.newTemp(types.PointerTo(n.Symbol.Kind), n)
		c.emit(asm.New(asm.LA, dst, c.slot(n.Symbol)))
		return dst
	case *ast.PtrDeref:
		c.checkDeref(n)
		return c.value(n.X, types.Type{})
	}
	c.fail(errors.AddressError{Node: e.String(), Location: e.Span()})
	return ""
}

func (c *ctx) checkDeref(n *ast.PtrDeref) {
	if t := n.X.Type(); !t.IsPointer() {
		c.fail(errors.TypeMismatchError{
			Op:       "dereference",
			Expected: "a pointer",
			Got:      t,
			Node:     n.String(),
			Location: n.Span(),
		})
	}
}
