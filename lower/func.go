package lower

import (
	"strconv"

	"github.com/pontaoski/microc/asm"
	"github.com/pontaoski/microc/ast"
	"github.com/pontaoski/microc/errors"
	"github.com/pontaoski/microc/types"
)

// Registers the calling convention reserves. They are never temporaries.
const (
	StackPointer  = "sp"
	FramePointer  = "fp"
	ReturnAddress = "ra"
)

// frame is the activation record of the function being lowered. Counted in
// words from fp, a call to a function with n parameters lays it out as
//
//	fp+3+(n-1-i)  argument i
//	fp+2          result
//	fp+1          return address
//	fp            caller's fp
//	fp-k          k-th address-taken local
//
// Below the locals the callee saves every register its body writes.
type frame struct {
	fn  *ast.Func
	ret string
	// offsets are in bytes from fp.
	offsets map[*ast.Symbol]int
	locals  int
}

func (f *frame) local(sym *ast.Symbol, wordSize int) {
	if _, ok := f.offsets[sym]; ok {
		return
	}
	f.locals++
	f.offsets[sym] = -f.locals * wordSize
}

func (c *ctx) frameOffset(sym *ast.Symbol) (int, bool) {
	if c.frame == nil {
		return 0, false
	}
	off, ok := c.frame.offsets[sym]
	return off, ok
}

// frameAddress computes fp+off into a fresh pointer to elem.
func (c *ctx) frameAddress(off int, elem types.Type, n ast.Node) string {
	dst := c.newTemp(types.PointerTo(elem), n)
	c.emit(asm.New(asm.ADDI, dst, FramePointer, strconv.Itoa(off)))
	return dst
}

func bump(reg string, delta int) asm.Instruction {
	return asm.New(asm.ADDI, reg, reg, strconv.Itoa(delta))
}

func (c *ctx) push(op asm.OpCode, reg string) {
	c.emit(asm.Store(op, reg, StackPointer))
	c.emit(bump(StackPointer, -c.opts.WordSize))
}

func (c *ctx) pop(op asm.OpCode, reg string) {
	c.emit(bump(StackPointer, c.opts.WordSize))
	c.emit(asm.Load(op, reg, StackPointer))
}

// program lowers a whole file. A file without functions lowers exactly like
// a block. Otherwise the top level sets up fp, runs, calls main if there is
// one and halts, and the functions follow the HALT.
func (c *ctx) program(p *ast.Program) {
	if len(p.Funcs) == 0 {
		for _, s := range p.Statements {
			c.stmt(s)
		}
		c.halt()
		return
	}

	for _, fn := range p.Funcs {
		if c.defined[fn] {
			continue
		}
		if other, ok := p.Lookup(fn.Name); ok && other != fn {
			c.fail(errors.NameError{Name: fn.Name, Reason: "function defined twice", Location: fn.Pos})
		}
		c.defined[fn] = true
		c.res.Funcs = append(c.res.Funcs, fn.Label())
	}
	c.res.Types[StackPointer] = types.PointerTo(types.VoidType)
	c.res.Types[FramePointer] = types.PointerTo(types.VoidType)
	c.res.Types[ReturnAddress] = types.IntType

	c.emit(asm.New(asm.MV, FramePointer, StackPointer))
	for _, s := range p.Statements {
		c.stmt(s)
	}
	// Globals get their registers outside every function's saved range, so
	// writes from inside a function survive its return.
	for _, s := range p.Statements {
		if d, ok := s.(*ast.VarDecl); ok && !c.inSlot(d.Symbol) {
			c.home(d.Symbol, d)
		}
	}
	if main, ok := p.Lookup("main"); ok {
		c.call(&ast.Call{Func: main, Pos: main.Pos})
	}
	c.emit(asm.New(asm.HALT, ""))

	for _, fn := range p.Funcs {
		c.function(fn)
	}
}

func (c *ctx) function(fn *ast.Func) {
	if fn.Body == nil {
		c.fail(errors.NameError{Name: fn.Name, Reason: "function has no body", Location: fn.Pos})
	}
	w := c.opts.WordSize
	start := len(c.res.Code)
	ints, floats := c.res.IntRegs, c.res.FloatRegs

	f := &frame{fn: fn, ret: c.newLabel("ret"), offsets: make(map[*ast.Symbol]int)}
	c.frame = f
	n := len(fn.Params)
	for idx, p := range fn.Params {
		off := (3 + n - 1 - idx) * w
		if c.inSlot(p) {
			f.offsets[p] = off
			continue
		}
		addr := c.frameAddress(off, p.Kind, fn)
		c.emit(asm.Load(c.loadOp(p.Kind, fn), c.home(p, fn), addr))
	}
	c.stmt(fn.Body)
	c.frame = nil

	body := append(asm.Program(nil), c.res.Code[start:]...)
	c.res.Code = c.res.Code[:start]
	saved := c.written(ints, floats)

	c.emit(asm.Label(fn.Label()))
	c.emit(asm.Store(asm.SW, FramePointer, StackPointer))
	c.emit(asm.New(asm.MV, FramePointer, StackPointer))
	c.emit(bump(StackPointer, -w))
	if f.locals > 0 {
		c.emit(bump(StackPointer, -f.locals*w))
	}
	for _, reg := range saved {
		c.push(c.storeOp(c.res.Types[reg], fn), reg)
	}

	c.res.Code = append(c.res.Code, body...)

	c.emit(asm.Label(f.ret))
	for i := len(saved) - 1; i >= 0; i-- {
		c.pop(c.loadOp(c.res.Types[saved[i]], fn), saved[i])
	}
	c.emit(asm.New(asm.MV, StackPointer, FramePointer))
	c.emit(asm.Load(asm.LW, FramePointer, FramePointer))
	c.emit(asm.New(asm.RET, ""))

	plog.Debugf("%s saves %d registers and keeps %d locals in its frame", fn.Name, len(saved), f.locals)
}

// written lists the registers named after the given counts, ints first.
func (c *ctx) written(ints, floats int) []string {
	var regs []string
	for i := ints + 1; i <= c.res.IntRegs; i++ {
		regs = append(regs, c.opts.IntPrefix+strconv.Itoa(i))
	}
	for i := floats + 1; i <= c.res.FloatRegs; i++ {
		regs = append(regs, c.opts.FloatPrefix+strconv.Itoa(i))
	}
	return regs
}

// call pushes the arguments, a result slot and the return address, jumps to
// the function and pops everything back. The result, if any, lands in a
// fresh register.
func (c *ctx) call(n *ast.Call) string {
	if err := ast.CheckCall(n); err != nil {
		c.fail(err)
	}
	if !c.defined[n.Func] {
		c.fail(errors.NameError{Name: n.Func.Name, Reason: "function is not defined in this program", Location: n.Pos})
	}
	w := c.opts.WordSize

	for idx, arg := range n.Args {
		param := n.Func.Params[idx].Kind
		reg := c.converted(arg, param, n)
		c.push(c.storeOp(param, n), reg)
	}
	c.emit(bump(StackPointer, -w))
	c.push(asm.SW, ReturnAddress)
	c.emit(asm.New(asm.JR, "", n.Func.Label()))
	c.pop(asm.LW, ReturnAddress)
	c.emit(bump(StackPointer, w))

	var dst string
	if result := n.Func.Result; result.Kind != types.Void {
		dst = c.newTemp(result, n)
		c.emit(asm.Load(c.loadOp(result, n), dst, StackPointer))
	}
	if len(n.Args) > 0 {
		c.emit(bump(StackPointer, len(n.Args)*w))
	}
	return dst
}

// ret stores the result in the frame and jumps to the epilogue.
func (c *ctx) ret(n *ast.Return) {
	if c.frame == nil || n.Func != c.frame.fn {
		c.fail(errors.SyntaxError{Message: "return outside of its function", Location: n.Pos})
	}
	if err := ast.CheckReturn(n); err != nil {
		c.fail(err)
	}
	if n.X != nil {
		result := n.Func.Result
		reg := c.converted(n.X, result, n)
		addr := c.frameAddress(2*c.opts.WordSize, result, n)
		c.emit(asm.Store(c.storeOp(result, n), reg, addr))
	}
	c.emit(asm.Jump(c.frame.ret))
}
