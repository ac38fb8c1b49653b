package lower

import (
	"testing"

	"github.com/alecthomas/repr"

	"github.com/pontaoski/microc/asm"
	"github.com/pontaoski/microc/ast"
	"github.com/pontaoski/microc/errors"
	"github.com/pontaoski/microc/types"
)

var (
	nowhere = types.Span{}
	intPtr  = types.PointerTo(types.IntType)
)

func check(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func sym(name string, kind types.Type) *ast.Symbol {
	return &ast.Symbol{Name: name, Kind: kind}
}

func use(s *ast.Symbol) *ast.Var {
	return ast.NewVar(s, nowhere)
}

func lit(n int64) *ast.IntLit {
	return ast.NewIntLit(n, nowhere)
}

func malloc(t *testing.T, size int64) *ast.Malloc {
	m, err := ast.NewMalloc(lit(size), nowhere)
	check(t, err)
	return m
}

func decl(t *testing.T, s *ast.Symbol, init ast.Expression) *ast.VarDecl {
	d, err := ast.NewVarDecl(s, init, nowhere)
	check(t, err)
	return d
}

func deref(t *testing.T, x ast.Expression) *ast.PtrDeref {
	d, err := ast.NewPtrDeref(x, nowhere)
	check(t, err)
	return d
}

func assign(t *testing.T, to, value ast.Expression) *ast.Assign {
	a, err := ast.NewAssign(to, value, nowhere)
	check(t, err)
	return a
}

func block(stmts ...ast.Statement) *ast.Block {
	return ast.NewBlock(stmts, nowhere)
}

func lowered(t *testing.T, n ast.Node) *Result {
	t.Helper()
	res, err := Lower(n, DefaultOptions())
	if err != nil {
		t.Fatalf("lowering %s: %s", n, err)
	}
	return res
}

func expectCode(t *testing.T, res *Result, want string) {
	t.Helper()
	if got := res.Code.String(); got != want {
		t.Errorf("got:\n%swant:\n%s", got, want)
	}
}

func TestMallocBoundToDeclaration(t *testing.T) {
	p := sym("p", intPtr)
	res := lowered(t, decl(t, p, malloc(t, 4)))

	if n := res.Code.Count(asm.MALLOC); n != 1 {
		t.Fatalf("%d MALLOC instructions", n)
	}
	for _, i := range res.Code {
		if i.Op == asm.MALLOC && !res.Types[i.Dst].Equal(intPtr) {
			t.Errorf("MALLOC destination %s has type %s", i.Dst, res.Types[i.Dst])
		}
	}
	expectCode(t, res, "LI t1, 4\nMALLOC t2, t1\n")
}

func TestMallocResolvedByAssignAndCast(t *testing.T) {
	p := sym("p", types.PointerTo(types.FloatType))
	res := lowered(t, block(decl(t, p, nil), assign(t, use(p), malloc(t, 8))))
	expectCode(t, res, "LI t2, 8\nMALLOC t3, t2\nMV t1, t3\n")

	cast, err := ast.NewCast(intPtr, malloc(t, 4), nowhere)
	check(t, err)
	res = lowered(t, ast.NewExprStmt(cast, nowhere))
	if !res.Types["t2"].Equal(intPtr) {
		t.Errorf("types = %s", repr.String(res.Types))
	}
}

func TestMallocWithoutContext(t *testing.T) {
	for _, root := range []ast.Node{
		ast.NewExprStmt(malloc(t, 4), nowhere),
		malloc(t, 4),
	} {
		res, err := Lower(root, DefaultOptions())
		if _, ok := err.(errors.TypeInferenceError); !ok {
			t.Errorf("%s: got %s", root, repr.String(err))
		}
		if res != nil {
			t.Errorf("%s: emitted %s", root, res.Code)
		}
	}
}

func TestMallocIntoIntFails(t *testing.T) {
	i := sym("i", types.IntType)
	d := &ast.VarDecl{Symbol: i, Init: malloc(t, 4)}
	_, err := Lower(d, DefaultOptions())
	if _, ok := err.(errors.TypeInferenceError); !ok {
		t.Errorf("got %s", repr.String(err))
	}
}

func TestFreeUsesPointerLocation(t *testing.T) {
	kinds := []types.Type{
		intPtr,
		types.PointerTo(types.FloatType),
		types.PointerTo(intPtr),
	}
	for _, kind := range kinds {
		p := sym("p", kind)
		free, err := ast.NewFree(use(p), nowhere)
		check(t, err)
		res := lowered(t, block(decl(t, p, malloc(t, 4)), free))

		if n := res.Code.Count(asm.FREE); n != 1 {
			t.Fatalf("%s: %d FREE instructions", kind, n)
		}
		last := res.Code[len(res.Code)-1]
		prev := res.Code[len(res.Code)-2]
		if last.Op != asm.FREE || prev.Op != asm.MALLOC || last.Src1 != prev.Dst {
			t.Errorf("%s: got\n%s", kind, res.Code)
		}
	}
}

func TestFreeOfLoadedPointer(t *testing.T) {
	pp := sym("pp", types.PointerTo(intPtr))
	free, err := ast.NewFree(deref(t, use(pp)), nowhere)
	check(t, err)
	res := lowered(t, free)
	expectCode(t, res, "LW t2, 0(t1)\nFREE t2\n")
}

func TestFreeOfNonPointer(t *testing.T) {
	for _, kind := range []types.Type{types.IntType, types.FloatType} {
		free := &ast.Free{X: use(sym("x", kind))}
		res, err := Lower(free, DefaultOptions())
		if _, ok := err.(errors.InvalidOperandTypeError); !ok || res != nil {
			t.Errorf("free of %s: got %s", kind, repr.String(err))
		}
	}
}

func TestStoreThroughAddress(t *testing.T) {
	x := sym("x", types.IntType)
	p := sym("p", intPtr)
	res := lowered(t, block(
		decl(t, x, nil),
		decl(t, p, ast.NewAddrOf(use(x), nowhere)),
		assign(t, deref(t, use(p)), lit(5)),
	))
	expectCode(t, res, "LA t1, x\nLI t2, 5\nSW t2, 0(t1)\n")
	if !res.Slots["x"].Equal(types.IntType) {
		t.Errorf("slots = %s", repr.String(res.Slots))
	}
}

func TestSlotVariables(t *testing.T) {
	x := sym("x", types.FloatType)
	p := sym("p", types.PointerTo(types.FloatType))
	y := sym("y", types.FloatType)
	res := lowered(t, block(
		decl(t, x, ast.NewFloatLit(2.5, nowhere)),
		decl(t, p, ast.NewAddrOf(use(x), nowhere)),
		decl(t, y, use(x)),
	))
	expectCode(t, res, ""+
		"LA t1, x\n"+
		"FIMM.S f1, 2.5\n"+
		"FSW f1, 0(t1)\n"+
		"LA t2, x\n"+
		"LA t3, x\n"+
		"FLW f2, 0(t3)\n")
}

func TestLoadOpcodeFollowsPointee(t *testing.T) {
	tests := []struct {
		kind types.Type
		op   asm.OpCode
	}{
		{types.IntType, asm.LW},
		{types.FloatType, asm.FLW},
		{intPtr, asm.LW},
	}
	for _, test := range tests {
		p := sym("p", types.PointerTo(test.kind))
		v := sym("v", test.kind)
		res := lowered(t, decl(t, v, deref(t, use(p))))
		if res.Code.Count(test.op) != 1 || len(res.Code) != 1 {
			t.Errorf("*%s: got\n%s", p.Kind, res.Code)
		}
	}
}

func TestDerefOfVoidPointer(t *testing.T) {
	p := sym("p", types.PointerTo(types.VoidType))
	_, err := Lower(ast.NewExprStmt(deref(t, use(p)), nowhere), DefaultOptions())
	if _, ok := err.(errors.TypeMismatchError); !ok {
		t.Errorf("got %s", repr.String(err))
	}
}

func TestHandBuiltDerefOfNonPointer(t *testing.T) {
	bad := &ast.PtrDeref{X: use(sym("i", types.IntType))}
	_, err := Lower(ast.NewExprStmt(bad, nowhere), DefaultOptions())
	if _, ok := err.(errors.TypeMismatchError); !ok {
		t.Errorf("got %s", repr.String(err))
	}
}

func TestPointerArithmetic(t *testing.T) {
	p, q := sym("p", intPtr), sym("q", intPtr)
	n := sym("n", types.IntType)

	sum, err := ast.NewBinary(ast.Add, use(p), lit(2), nowhere)
	check(t, err)
	res := lowered(t, block(decl(t, p, nil), decl(t, q, sum)))
	expectCode(t, res, "LI t2, 2\nLI t3, 4\nMUL t4, t2, t3\nADD t5, t1, t4\n")

	diff, err := ast.NewBinary(ast.Sub, use(p), use(q), nowhere)
	check(t, err)
	res = lowered(t, decl(t, n, diff))
	expectCode(t, res, "SUB t3, t1, t2\nLI t4, 4\nDIV t5, t3, t4\n")
	if !res.Types["t5"].Equal(types.IntType) {
		t.Errorf("difference has type %s", res.Types["t5"])
	}
}

func TestMixedArithmetic(t *testing.T) {
	i := sym("i", types.IntType)
	f := sym("f", types.FloatType)
	sum, err := ast.NewBinary(ast.Add, use(i), ast.NewFloatLit(1.5, nowhere), nowhere)
	check(t, err)
	res := lowered(t, decl(t, f, sum))
	expectCode(t, res, "FIMM.S f1, 1.5\nIMOVF.S f2, t1\nFADD.S f3, f2, f1\n")
}

func TestAssignConverts(t *testing.T) {
	i := sym("i", types.IntType)
	res := lowered(t, assign(t, use(i), ast.NewFloatLit(2, nowhere)))
	expectCode(t, res, "FIMM.S f1, 2\nFMOVI.S t2, f1\nMV t1, t2\n")
}

func TestDeclarationCopiesOwnedRegister(t *testing.T) {
	x, y := sym("x", types.IntType), sym("y", types.IntType)
	res := lowered(t, block(decl(t, x, lit(1)), decl(t, y, use(x))))
	expectCode(t, res, "LI t1, 1\nMV t2, t1\n")
}

func TestConditions(t *testing.T) {
	tests := []struct {
		op    ast.CondOp
		ints  string
		float string
	}{
		{ast.LT, "BGE t1, t2, out_1", "FLT.S t1, f1, f2\nBEQ t1, x0, out_1"},
		{ast.LE, "BGT t1, t2, out_1", "FLE.S t1, f1, f2\nBEQ t1, x0, out_1"},
		{ast.GT, "BLE t1, t2, out_1", "FLT.S t1, f2, f1\nBEQ t1, x0, out_1"},
		{ast.GE, "BLT t1, t2, out_1", "FLE.S t1, f2, f1\nBEQ t1, x0, out_1"},
		{ast.EQ, "BNE t1, t2, out_1", "FEQ.S t1, f1, f2\nBEQ t1, x0, out_1"},
		{ast.NE, "BEQ t1, t2, out_1", "FEQ.S t1, f1, f2\nBNE t1, x0, out_1"},
	}
	for _, test := range tests {
		for _, c := range []struct {
			kind types.Type
			want string
		}{
			{types.IntType, test.ints},
			{types.FloatType, test.float},
		} {
			a, b := sym("a", c.kind), sym("b", c.kind)
			cond, err := ast.NewCond(test.op, use(a), use(b), nowhere)
			check(t, err)
			res := lowered(t, ast.NewIf(cond, block(), nil, nowhere))
			expectCode(t, res, c.want+"\nout_1:\n")
		}
	}
}

func TestPointerComparison(t *testing.T) {
	p, q := sym("p", intPtr), sym("q", intPtr)
	cond, err := ast.NewCond(ast.EQ, use(p), use(q), nowhere)
	check(t, err)
	res := lowered(t, ast.NewWhile(cond, block(), nowhere))
	expectCode(t, res, "loop_1:\nBNE t1, t2, out_1\nJ loop_1\nout_1:\n")
}

func TestIfElse(t *testing.T) {
	x := sym("x", types.IntType)
	cond, err := ast.NewCond(ast.LT, use(x), lit(10), nowhere)
	check(t, err)
	res := lowered(t, ast.NewIf(cond,
		assign(t, use(x), lit(1)),
		assign(t, use(x), lit(2)),
		nowhere,
	))
	expectCode(t, res, ""+
		"LI t2, 10\n"+
		"BGE t1, t2, else_1\n"+
		"LI t3, 1\n"+
		"MV t1, t3\n"+
		"J out_1\n"+
		"else_1:\n"+
		"LI t4, 2\n"+
		"MV t1, t4\n"+
		"out_1:\n")
}

func TestWhile(t *testing.T) {
	i, n := sym("i", types.IntType), sym("n", types.IntType)
	cond, err := ast.NewCond(ast.LT, use(i), use(n), nowhere)
	check(t, err)
	inc, err := ast.NewBinary(ast.Add, use(i), lit(1), nowhere)
	check(t, err)
	res := lowered(t, ast.NewWhile(cond, block(assign(t, use(i), inc)), nowhere))
	expectCode(t, res, ""+
		"loop_1:\n"+
		"BGE t1, t2, out_1\n"+
		"LI t3, 1\n"+
		"ADD t4, t1, t3\n"+
		"MV t1, t4\n"+
		"J loop_1\n"+
		"out_1:\n")
}

func TestWriteAndRead(t *testing.T) {
	x := sym("x", types.IntType)
	f := sym("f", types.FloatType)
	hello, err := ast.NewWrite(ast.NewStringLit("hello", nowhere), nowhere)
	check(t, err)
	printX, err := ast.NewWrite(use(x), nowhere)
	check(t, err)
	printF, err := ast.NewWrite(use(f), nowhere)
	check(t, err)
	readX, err := ast.NewRead(use(x), nowhere)
	check(t, err)

	res := lowered(t, block(readX, hello, printX, printF))
	expectCode(t, res, ""+
		"GETI t1\n"+
		"LA t2, str_1\n"+
		"PUTS t2\n"+
		"PUTI t1\n"+
		"PUTF f1\n")
	if res.Strings["str_1"] != "hello" {
		t.Errorf("strings = %s", repr.String(res.Strings))
	}
}

func TestReadIntoSlot(t *testing.T) {
	x := sym("x", types.FloatType)
	p := sym("p", types.PointerTo(types.FloatType))
	readX, err := ast.NewRead(use(x), nowhere)
	check(t, err)
	res := lowered(t, block(decl(t, p, ast.NewAddrOf(use(x), nowhere)), readX))
	expectCode(t, res, "LA t1, x\nGETF f1\nLA t2, x\nFSW f1, 0(t2)\n")
}

func TestNeg(t *testing.T) {
	f := sym("f", types.FloatType)
	neg, err := ast.NewNeg(use(f), nowhere)
	check(t, err)
	res := lowered(t, ast.NewExprStmt(neg, nowhere))
	expectCode(t, res, "FNEG.S f2, f1\n")
}

func TestHaltOption(t *testing.T) {
	opts := DefaultOptions()
	opts.Halt = true
	res, err := Lower(decl(t, sym("p", intPtr), malloc(t, 4)), opts)
	check(t, err)
	if last := res.Code[len(res.Code)-1]; last.Op != asm.HALT {
		t.Errorf("last instruction %s", last)
	}
}

func TestRegisterPrefixes(t *testing.T) {
	opts := DefaultOptions()
	opts.IntPrefix, opts.FloatPrefix = "r", "s"
	res, err := Lower(decl(t, sym("f", types.FloatType), lit(1)), opts)
	check(t, err)
	if got := res.Code.String(); got != "LI r1, 1\nIMOVF.S s1, r1\n" {
		t.Errorf("got %q", got)
	}
	if res.IntRegs != 1 || res.FloatRegs != 1 {
		t.Errorf("register counts %d, %d", res.IntRegs, res.FloatRegs)
	}
}

func TestStreamParsesBack(t *testing.T) {
	x := sym("x", types.IntType)
	cond, err := ast.NewCond(ast.GE, use(x), lit(0), nowhere)
	check(t, err)
	res := lowered(t, ast.NewWhile(cond, assign(t, use(x), lit(1)), nowhere))
	back, err := asm.ParseProgram(res.Code.String())
	check(t, err)
	if back.String() != res.Code.String() {
		t.Errorf("got %s", back)
	}
}

func TestStringLabelsAvoidSlots(t *testing.T) {
	hi := func() *ast.Write {
		w, err := ast.NewWrite(ast.NewStringLit("hi", nowhere), nowhere)
		check(t, err)
		return w
	}
	lits := func(res *Result) []string {
		var labels []string
		for _, i := range res.Code {
			if i.Op == asm.LA {
				labels = append(labels, i.Src1)
			}
		}
		return labels
	}

	s := sym("str_1", types.IntType)
	p := sym("p", intPtr)
	res := lowered(t, block(
		decl(t, s, lit(7)),
		decl(t, p, ast.NewAddrOf(use(s), nowhere)),
		hi(),
	))
	if _, ok := res.Slots["str_1"]; !ok || res.Strings["str_2"] != "hi" || len(res.Strings) != 1 {
		t.Errorf("slots = %s, strings = %s", repr.String(res.Slots), repr.String(res.Strings))
	}
	if got := lits(res); got[len(got)-1] != "str_2" {
		t.Errorf("string loaded from %s", repr.String(got))
	}

	s = sym("str_1", types.IntType)
	p = sym("p", intPtr)
	res = lowered(t, block(
		hi(),
		decl(t, s, lit(7)),
		decl(t, p, ast.NewAddrOf(use(s), nowhere)),
	))
	if _, ok := res.Slots["str_1_0"]; !ok || res.Strings["str_1"] != "hi" || len(res.Slots) != 1 {
		t.Errorf("slots = %s, strings = %s", repr.String(res.Slots), repr.String(res.Strings))
	}
	if got := lits(res); got[0] != "str_1" || got[len(got)-1] != "str_1_0" {
		t.Errorf("LA operands %s", repr.String(got))
	}
}
