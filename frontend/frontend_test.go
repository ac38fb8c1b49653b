package frontend

import (
	"testing"

	"github.com/alecthomas/repr"

	"github.com/pontaoski/microc/asm"
	"github.com/pontaoski/microc/ast"
	"github.com/pontaoski/microc/errors"
	"github.com/pontaoski/microc/lower"
)

func compile(t *testing.T, src string) asm.Program {
	t.Helper()
	root, err := Parse("test.c", src)
	if err != nil {
		t.Fatalf("parse %q: %s", src, err)
	}
	res, err := lower.Lower(root, lower.DefaultOptions())
	if err != nil {
		t.Fatalf("lower %q: %s", src, err)
	}
	return res.Code
}

func TestMallocThenFree(t *testing.T) {
	code := compile(t, "int* p = malloc(4); free(p);")
	if got := code.String(); got != "LI t1, 4\nMALLOC t2, t1\nFREE t2\n" {
		t.Fatalf("got:\n%s", got)
	}

	for idx, i := range code {
		if i.Op == asm.MALLOC {
			next := code[idx+1]
			if next.Op != asm.FREE || next.Src1 != i.Dst {
				t.Errorf("MALLOC %s followed by %s", i.Dst, next)
			}
		}
	}
}

func TestStoreThroughAddressOf(t *testing.T) {
	code := compile(t, "int x; int* p = &x; *p = 5;")
	if got := code.String(); got != "LA t1, x\nLI t2, 5\nSW t2, 0(t1)\n" {
		t.Fatalf("got:\n%s", got)
	}
	la, sw := code[0], code[len(code)-1]
	if la.Op != asm.LA || sw.Op != asm.SW || sw.Src2 != la.Dst {
		t.Errorf("store does not go through the LA destination:\n%s", code)
	}
}

func TestProgram(t *testing.T) {
	code := compile(t, `
		int n = 10;
		int* a = malloc(40);
		int i = 0;
		while (i < n) {
			*(a + i) = i * i;
			i = i + 1;
		}
		if (n >= 10) print("done"); else print(n);
		float f = (float)n / 2.5;
		print(f);
		read(i);
		free(a);
	`)

	counts := map[asm.OpCode]int{
		asm.MALLOC: 1,
		asm.FREE:   1,
		asm.SW:     1,
		asm.MUL:    2,
		asm.PUTS:   1,
		asm.PUTI:   1,
		asm.PUTF:   1,
		asm.GETI:   1,
		asm.LABEL:  4,
		asm.J:      2,
		asm.FDIVS:  1,
		asm.IMOVFS: 1,
	}
	for op, want := range counts {
		if got := code.Count(op); got != want {
			t.Errorf("%d %s instructions, want %d in\n%s", got, op, want, code)
		}
	}
}

func TestNestedScopes(t *testing.T) {
	compile(t, "int x; { float x; x = 1.5; } x = 2;")
	compile(t, "int i = 0; while (i < 3) { int j = i; i = j + 1; }")

	_, err := Parse("test.c", "int i = 0; while (i < 3) { int j = i; i = i + 1; } j = 1;")
	if _, ok := err.(errors.NameError); !ok {
		t.Errorf("block variable visible after the block: %s", repr.String(err))
	}
}

func TestCast(t *testing.T) {
	code := compile(t, "int* p = (int*)malloc(4); float* q = (float*)p;")
	if got := code.String(); got != "LI t1, 4\nMALLOC t2, t1\nMV t3, t2\n" {
		t.Errorf("got:\n%s", got)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"y = 1;", "NameError"},
		{"int x; int x;", "NameError"},
		{"int* p = &5;", "AddressError"},
		{"1 = 2;", "AddressError"},
		{"int x; *x = 1;", "TypeMismatchError"},
		{"int x; float* q = &x;", "TypeMismatchError"},
		{"free(1);", "InvalidOperandTypeError"},
		{"int = ;", "SyntaxError"},
		{"int x x;", "SyntaxError"},
	}
	for _, test := range tests {
		_, err := Parse("test.c", test.src)
		var got string
		switch err.(type) {
		case errors.NameError:
			got = "NameError"
		case errors.AddressError:
			got = "AddressError"
		case errors.TypeMismatchError:
			got = "TypeMismatchError"
		case errors.InvalidOperandTypeError:
			got = "InvalidOperandTypeError"
		case errors.SyntaxError:
			got = "SyntaxError"
		}
		if got != test.want {
			t.Errorf("%q: got %s, want %s", test.src, repr.String(err), test.want)
		}
	}
}

func TestUnboundAllocation(t *testing.T) {
	root, err := Parse("test.c", "malloc(4);")
	if err != nil {
		t.Fatal(err)
	}
	res, err := lower.Lower(root, lower.DefaultOptions())
	if _, ok := err.(errors.TypeInferenceError); !ok || res != nil {
		t.Errorf("got %s", repr.String(err))
	}
}

func TestLocations(t *testing.T) {
	_, err := Parse("test.c", "int x;\n\ny = 1;")
	nerr, ok := err.(errors.NameError)
	if !ok {
		t.Fatalf("got %s", repr.String(err))
	}
	if nerr.Name != "y" || nerr.Location.From.Line != 3 || nerr.Location.From.Filename != "test.c" {
		t.Errorf("got %s", repr.String(nerr))
	}
}

func TestSymbolsAreShared(t *testing.T) {
	root, err := Parse("test.c", "int x = 1; x = 2;")
	if err != nil {
		t.Fatal(err)
	}
	decl := root.Statements[0].(*ast.VarDecl)
	assign := root.Statements[1].(*ast.Assign)
	if assign.To.(*ast.Var).Symbol != decl.Symbol {
		t.Error("use and declaration do not share a symbol")
	}
}

func TestStringLiteralText(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`print("hello");`, "hello"},
		{`print("two words");`, "two words"},
		{`print("say \"hi\"");`, `say "hi"`},
		{`print("a\tb");`, "a\tb"},
	}
	for _, test := range tests {
		root, err := Parse("test.c", test.src)
		if err != nil {
			t.Fatalf("%s: %s", test.src, err)
		}
		res, err := lower.Lower(root, lower.DefaultOptions())
		if err != nil {
			t.Fatalf("%s: %s", test.src, err)
		}
		if got := res.Strings["str_1"]; got != test.want {
			t.Errorf("%s: got %q, want %q", test.src, got, test.want)
		}
	}
}

func TestSyntaxErrorLocation(t *testing.T) {
	_, err := Parse("test.c", "int x;\nint y = ;")
	serr, ok := err.(errors.SyntaxError)
	if !ok {
		t.Fatalf("got %s", repr.String(err))
	}
	if serr.Location.From.Line != 2 || serr.Location.From.Filename != "test.c" || serr.Message == "" {
		t.Errorf("got %s", repr.String(serr))
	}
}

func TestReservedWords(t *testing.T) {
	for _, src := range []string{
		"int if;",
		"int malloc;",
		"float print = 1.0;",
		"int* read;",
		"int return(int a) { return a; }",
		"void f(int while) { }",
	} {
		_, err := Parse("test.c", src)
		nerr, ok := err.(errors.NameError)
		if !ok || nerr.Reason != "reserved word" {
			t.Errorf("%q: got %s", src, repr.String(err))
		}
	}
}

func TestFunctions(t *testing.T) {
	root, err := Parse("test.c", `
		int total = 0;
		int fact(int n) {
			if (n <= 1) return 1;
			return n * fact(n - 1);
		}
		void main() {
			int r = fact(5);
			total = r;
			print(r);
		}
	`)
	if err != nil {
		t.Fatal(err)
	}
	if len(root.Funcs) != 2 || len(root.Statements) != 1 {
		t.Fatalf("got %s", root)
	}
	fact := root.Funcs[0]
	var calls []*ast.Call
	ast.Inspect(fact, func(n ast.Node) bool {
		if c, ok := n.(*ast.Call); ok {
			calls = append(calls, c)
		}
		return true
	})
	if len(calls) != 1 || calls[0].Func != fact {
		t.Errorf("recursive call resolved to %s", repr.String(calls))
	}

	res, err := lower.Lower(root, lower.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if repr.String(res.Funcs) != repr.String([]string{"func_fact", "func_main"}) {
		t.Errorf("funcs = %s", repr.String(res.Funcs))
	}
	counts := map[asm.OpCode]int{}
	for _, i := range res.Code {
		counts[i.Op]++
	}
	if counts[asm.JR] != 3 || counts[asm.RET] != 2 || counts[asm.HALT] != 1 {
		t.Errorf("counts = %s\n%s", repr.String(counts), res.Code)
	}
	if first := res.Code[0].String(); first != "MV fp, sp" {
		t.Errorf("starts with %s", first)
	}
}

func TestForwardCall(t *testing.T) {
	root, err := Parse("test.c", "int a() { return b(); } int b() { return 2; } print(a());")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lower.Lower(root, lower.DefaultOptions()); err != nil {
		t.Fatal(err)
	}
}

func TestFunctionErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"void f() { } f(1);", "ArgumentCountError"},
		{"int f(int a, int b) { return a; } print(f(1));", "ArgumentCountError"},
		{"return 1;", "SyntaxError"},
		{"void f() { return 1; }", "TypeMismatchError"},
		{"int f() { return; }", "TypeMismatchError"},
		{"int f(void x) { return 1; }", "TypeMismatchError"},
		{"int f(int* p) { return *p; } f(1.5);", "TypeMismatchError"},
		{"int f() { return 1; } int f() { return 2; }", "NameError"},
		{"g();", "NameError"},
		{"void f() { n = 1; } int n;", "NameError"},
		{"void f(int a) { } print(a);", "NameError"},
	}
	for _, test := range tests {
		_, err := Parse("test.c", test.src)
		var got string
		switch err.(type) {
		case errors.NameError:
			got = "NameError"
		case errors.TypeMismatchError:
			got = "TypeMismatchError"
		case errors.ArgumentCountError:
			got = "ArgumentCountError"
		case errors.SyntaxError:
			got = "SyntaxError"
		}
		if got != test.want {
			t.Errorf("%q: got %s, want %s", test.src, repr.String(err), test.want)
		}
	}
}
