// Package llvmgen translates a lowered instruction stream into an LLVM IR
// module. Every register and every memory slot becomes a global, every label a
// basic block, and every function label a void LLVM function; the top-level
// code is main. Calls keep the stream's own stack discipline on a global byte
// array that sp points into.
package llvmgen

import (
	"sort"
	"strconv"

	"github.com/coreos/pkg/capnslog"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/pontaoski/microc/asm"
	"github.com/pontaoski/microc/errors"
	"github.com/pontaoski/microc/lower"
	"github.com/pontaoski/microc/types"
)

var plog = capnslog.NewPackageLogger("github.com/pontaoski/microc", "llvmgen")

type failure struct {
	err error
}

type ctx struct {
	m    machine
	zero string

	mod *ir.Module
	fn  *ir.Func
	cur *ir.Block

	main *ir.Func

	runtime map[string]*ir.Func
	funcs   map[string]*ir.Func
	regs    map[string]*ir.Global
	globals map[string]*ir.Global
	formats map[string]*ir.Global
	blocks  map[string]*ir.Block
	falls   int
}

// Translate builds the module for res. opts must be the options res was
// lowered with.
func Translate(name string, res *lower.Result, opts lower.Options) (mod *ir.Module, err error) {
	defer func() {
		if v := recover(); v != nil {
			if f, ok := v.(failure); ok {
				mod, err = nil, f.err
			} else {
				panic(v)
			}
		}
	}()

	c := &ctx{
		m:       newMachine(opts.WordSize),
		zero:    opts.ZeroRegister,
		mod:     ir.NewModule(),
		funcs:   make(map[string]*ir.Func),
		regs:    make(map[string]*ir.Global),
		globals: make(map[string]*ir.Global),
		formats: make(map[string]*ir.Global),
		blocks:  make(map[string]*ir.Block),
	}
	c.mod.SourceFilename = name
	c.runtime = addRuntime(c.mod)

	for _, slot := range sortedKeys(res.Slots) {
		g := c.mod.NewGlobalDef("var."+slot, constant.NewZeroInitializer(c.m.llvmType(res.Slots[slot])))
		c.globals[slot] = g
	}
	for _, label := range sortedStrings(res.Strings) {
		g := c.mod.NewGlobalDef(label, constant.NewCharArrayFromString(res.Strings[label]+"\x00"))
		g.Immutable = true
		c.globals[label] = g
	}

	for _, reg := range sortedKeys(res.Types) {
		g := c.mod.NewGlobalDef("reg."+reg, constant.NewZeroInitializer(c.m.llvmType(res.Types[reg])))
		c.regs[reg] = g
	}
	if sp, ok := c.regs[lower.StackPointer]; ok {
		sp.Init = c.addStack()
	}

	for _, label := range res.Funcs {
		c.funcs[label] = c.mod.NewFunc(label, irtypes.Void)
	}
	c.main = c.mod.NewFunc("main", Int32)
	c.fn = c.main
	c.cur = c.fn.NewBlock("entry")

	for _, i := range res.Code {
		c.instruction(i)
	}
	c.finish()
	for label, b := range c.blocks {
		if b.Parent == nil {
			c.fail(errors.UnsupportedError{What: "branch to missing label", Got: []string{label}})
		}
	}

	if err := registerTypeInfoWithModule(NewTypeInfo(res), c.mod); err != nil {
		return nil, err
	}
	blocks := len(c.main.Blocks)
	for _, fn := range c.funcs {
		blocks += len(fn.Blocks)
	}
	plog.Debugf("translated %d instructions into %d functions and %d blocks", len(res.Code), len(c.funcs)+1, blocks)
	return c.mod, nil
}

func (c *ctx) fail(err error) {
	panic(failure{err})
}

// stackSize is the byte size of the call stack.
const stackSize = 1 << 16

// addStack defines the call stack and returns the address just past its
// end, where sp starts.
func (c *ctx) addStack() constant.Constant {
	arr := irtypes.NewArray(stackSize, Byte)
	stack := c.mod.NewGlobalDef("stack", constant.NewZeroInitializer(arr))
	return constant.NewGetElementPtr(arr, stack, constant.NewInt(Int64, 0), constant.NewInt(Int64, stackSize))
}

// finish closes the current block with the return its function needs.
func (c *ctx) finish() {
	if c.cur.Term != nil {
		return
	}
	if c.fn == c.main {
		c.cur.NewRet(constant.NewInt(Int32, 0))
		return
	}
	c.cur.NewRet(nil)
}

// block is the basic block a label starts. It joins the function once the
// label is reached.
func (c *ctx) block(label string) *ir.Block {
	if b, ok := c.blocks[label]; ok {
		return b
	}
	b := ir.NewBlock(label)
	c.blocks[label] = b
	return b
}

// enter makes b the insertion point, falling through into it from the
// current block when that is still open.
func (c *ctx) enter(b *ir.Block) {
	if c.cur.Term == nil {
		c.cur.NewBr(b)
	}
	if b.Parent == nil {
		b.Parent = c.fn
		c.fn.Blocks = append(c.fn.Blocks, b)
	}
	c.cur = b
}

func (c *ctx) fall() *ir.Block {
	c.falls++
	return ir.NewBlock("fall_" + strconv.Itoa(c.falls))
}

func (c *ctx) reg(name string) *ir.Global {
	g, ok := c.regs[name]
	if !ok {
		c.fail(errors.UnsupportedError{What: "register", Got: []string{name}})
	}
	return g
}

func (c *ctx) load(reg string) value.Value {
	if reg == c.zero {
		return constant.NewInt(c.m.word, 0)
	}
	g := c.reg(reg)
	return c.cur.NewLoad(g.ContentType, g)
}

func (c *ctx) store(reg string, v value.Value) {
	g := c.reg(reg)
	c.cur.NewStore(c.convert(v, g.ContentType), g)
}

func (c *ctx) global(name string) *ir.Global {
	g, ok := c.globals[name]
	if !ok {
		c.fail(errors.UnsupportedError{What: "symbol", Got: []string{name}})
	}
	return g
}

// convert reinterprets v as type to. Registers are typed by the lowering, so
// the only conversions needed are between pointers and ints of word size.
func (c *ctx) convert(v value.Value, to irtypes.Type) value.Value {
	from := v.Type()
	if from.Equal(to) {
		return v
	}
	switch f := from.(type) {
	case *irtypes.PointerType:
		switch to.(type) {
		case *irtypes.PointerType:
			return c.cur.NewBitCast(v, to)
		case *irtypes.IntType:
			return c.cur.NewPtrToInt(v, to)
		}
	case *irtypes.IntType:
		switch t := to.(type) {
		case *irtypes.PointerType:
			return c.cur.NewIntToPtr(v, to)
		case *irtypes.IntType:
			switch {
			case f.BitSize == 1:
				return c.cur.NewZExt(v, to)
			case f.BitSize < t.BitSize:
				return c.cur.NewSExt(v, to)
			}
			return c.cur.NewTrunc(v, to)
		}
	}
	c.fail(errors.UnsupportedError{What: "conversion", Got: []string{from.String(), to.String()}})
	return nil
}

var (
	intPreds = map[asm.OpCode]enum.IPred{
		asm.BEQ: enum.IPredEQ,
		asm.BNE: enum.IPredNE,
		asm.BLT: enum.IPredSLT,
		asm.BLE: enum.IPredSLE,
		asm.BGT: enum.IPredSGT,
		asm.BGE: enum.IPredSGE,
	}
	floatPreds = map[asm.OpCode]enum.FPred{
		asm.FLTS: enum.FPredOLT,
		asm.FLES: enum.FPredOLE,
		asm.FEQS: enum.FPredOEQ,
	}
)

func (c *ctx) instruction(i asm.Instruction) {
	plog.Tracef("translate %s", i)
	b := c.cur

	switch i.Op {
	case asm.LABEL:
		if fn, ok := c.funcs[i.Label]; ok {
			c.finish()
			c.fn = fn
			c.cur = fn.NewBlock("entry")
			return
		}
		c.enter(c.block(i.Label))
	case asm.LI:
		n, err := strconv.ParseInt(i.Src1, 10, 64)
		if err != nil {
			c.fail(errors.SyntaxError{Message: "bad immediate in " + i.String()})
		}
		c.store(i.Dst, constant.NewInt(c.m.word, n))
	case asm.FIMMS:
		f, err := strconv.ParseFloat(i.Src1, 64)
		if err != nil {
			c.fail(errors.SyntaxError{Message: "bad immediate in " + i.String()})
		}
		c.store(i.Dst, constant.NewFloat(c.m.float, f))
	case asm.LA:
		c.store(i.Dst, c.global(i.Src1))
	case asm.MV, asm.FMVS:
		c.store(i.Dst, c.load(i.Src1))
	case asm.ADD, asm.SUB:
		c.store(i.Dst, c.addSub(i))
	case asm.MUL:
		x, y := c.words(i)
		c.store(i.Dst, b.NewMul(x, y))
	case asm.DIV:
		x, y := c.words(i)
		c.store(i.Dst, b.NewSDiv(x, y))
	case asm.NEG:
		c.store(i.Dst, b.NewSub(constant.NewInt(c.m.word, 0), c.convert(c.load(i.Src1), c.m.word)))
	case asm.ADDI:
		n, err := strconv.ParseInt(i.Src2, 10, 64)
		if err != nil {
			c.fail(errors.SyntaxError{Message: "bad immediate in " + i.String()})
		}
		x := c.load(i.Src1)
		if _, ok := x.Type().(*irtypes.PointerType); ok {
			c.store(i.Dst, c.offset(x, constant.NewInt(Int64, n)))
			return
		}
		c.store(i.Dst, b.NewAdd(c.convert(x, c.m.word), constant.NewInt(c.m.word, n)))
	case asm.FADDS:
		c.store(i.Dst, b.NewFAdd(c.load(i.Src1), c.load(i.Src2)))
	case asm.FSUBS:
		c.store(i.Dst, b.NewFSub(c.load(i.Src1), c.load(i.Src2)))
	case asm.FMULS:
		c.store(i.Dst, b.NewFMul(c.load(i.Src1), c.load(i.Src2)))
	case asm.FDIVS:
		c.store(i.Dst, b.NewFDiv(c.load(i.Src1), c.load(i.Src2)))
	case asm.FNEGS:
		c.store(i.Dst, b.NewFNeg(c.load(i.Src1)))
	case asm.IMOVFS:
		c.store(i.Dst, b.NewSIToFP(c.convert(c.load(i.Src1), c.m.word), c.m.float))
	case asm.FMOVIS:
		c.store(i.Dst, b.NewFPToSI(c.load(i.Src1), c.m.word))
	case asm.LW, asm.FLW:
		elem := c.reg(i.Dst).ContentType
		ptr := c.convert(c.load(i.Src1), irtypes.NewPointer(elem))
		c.store(i.Dst, c.cur.NewLoad(elem, ptr))
	case asm.SW, asm.FSW:
		v := c.load(i.Src1)
		ptr := c.convert(c.load(i.Src2), irtypes.NewPointer(v.Type()))
		c.cur.NewStore(v, ptr)
	case asm.BEQ, asm.BNE, asm.BLT, asm.BLE, asm.BGT, asm.BGE:
		x := c.load(i.Src1)
		y := c.convert(c.load(i.Src2), x.Type())
		cmp := c.cur.NewICmp(intPreds[i.Op], x, y)
		next := c.fall()
		c.cur.NewCondBr(cmp, c.block(i.Label), next)
		c.enter(next)
	case asm.J:
		b.NewBr(c.block(i.Label))
		c.enter(c.fall())
	case asm.JR:
		fn, ok := c.funcs[i.Src1]
		if !ok {
			c.fail(errors.UnsupportedError{What: "call of unknown function", Got: []string{i.Src1}})
		}
		b.NewCall(fn)
	case asm.RET:
		if c.fn == c.main {
			c.fail(errors.UnsupportedError{What: "RET outside a function", Got: []string{i.String()}})
		}
		b.NewRet(nil)
		c.enter(c.fall())
	case asm.FLTS, asm.FLES, asm.FEQS:
		cmp := b.NewFCmp(floatPreds[i.Op], c.load(i.Src1), c.load(i.Src2))
		c.store(i.Dst, c.cur.NewZExt(cmp, c.m.word))
	case asm.GETI:
		c.call("scanf", "fmt.scan.int", scanInt[c.m.word.BitSize], c.reg(i.Dst))
	case asm.GETF:
		format := "%f"
		if c.m.float.Equal(Float64) {
			format = "%lf"
		}
		c.call("scanf", "fmt.scan.float", format, c.reg(i.Dst))
	case asm.PUTI:
		v := c.convert(c.load(i.Src1), Int64)
		c.printf("fmt.int", "%ld\n", v)
	case asm.PUTF:
		var v value.Value = c.load(i.Src1)
		if !v.Type().Equal(Float64) {
			v = c.cur.NewFPExt(v, Float64)
		}
		c.printf("fmt.float", "%f\n", v)
	case asm.PUTS:
		c.printf("fmt.str", "%s", c.convert(c.load(i.Src1), BytePtr))
	case asm.MALLOC:
		size := c.convert(c.load(i.Src1), Int64)
		c.store(i.Dst, c.cur.NewCall(c.runtime["malloc"], size))
	case asm.FREE:
		c.cur.NewCall(c.runtime["free"], c.convert(c.load(i.Src1), BytePtr))
	case asm.HALT:
		if c.fn != c.main {
			c.fail(errors.UnsupportedError{What: "HALT inside a function", Got: []string{i.String()}})
		}
		b.NewRet(constant.NewInt(Int32, 0))
		c.enter(c.fall())
	default:
		c.fail(errors.UnsupportedError{What: "instruction", Got: []string{i.String()}})
	}
}

// words loads both sources of i as word-sized integers.
func (c *ctx) words(i asm.Instruction) (value.Value, value.Value) {
	x := c.convert(c.load(i.Src1), c.m.word)
	y := c.convert(c.load(i.Src2), c.m.word)
	return x, y
}

// addSub handles ADD and SUB, which double as pointer arithmetic when the
// destination is a pointer. Offsets are already scaled to bytes.
func (c *ctx) addSub(i asm.Instruction) value.Value {
	x, y := c.load(i.Src1), c.load(i.Src2)
	_, dstPtr := c.reg(i.Dst).ContentType.(*irtypes.PointerType)
	_, xPtr := x.Type().(*irtypes.PointerType)
	_, yPtr := y.Type().(*irtypes.PointerType)

	switch {
	case dstPtr && xPtr:
		off := c.convert(y, Int64)
		if i.Op == asm.SUB {
			off = c.cur.NewSub(constant.NewInt(Int64, 0), off)
		}
		return c.offset(x, off)
	case dstPtr && yPtr && i.Op == asm.ADD:
		return c.offset(y, c.convert(x, Int64))
	}

	x, y = c.convert(x, c.m.word), c.convert(y, c.m.word)
	if i.Op == asm.SUB {
		return c.cur.NewSub(x, y)
	}
	return c.cur.NewAdd(x, y)
}

func (c *ctx) offset(ptr, bytes value.Value) value.Value {
	raw := c.convert(ptr, BytePtr)
	return c.cur.NewGetElementPtr(Byte, raw, bytes)
}

// scanInt is the scanf conversion for a signed int of each word size.
var scanInt = map[uint64]string{8: "%hhd", 16: "%hd", 32: "%d", 64: "%ld"}

func (c *ctx) printf(name, format string, args ...value.Value) {
	c.call("printf", name, format, args...)
}

// call calls a variadic runtime function with a format string defined once
// per module under name.
func (c *ctx) call(fn, name, format string, args ...value.Value) {
	g, ok := c.formats[name]
	if !ok {
		g = c.mod.NewGlobalDef(name, constant.NewCharArrayFromString(format+"\x00"))
		g.Immutable = true
		c.formats[name] = g
	}
	c.cur.NewCall(c.runtime[fn], append([]value.Value{c.convert(g, BytePtr)}, args...)...)
}

func sortedKeys(m map[string]types.Type) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStrings(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
