package ast

import (
	"github.com/pontaoski/microc/errors"
	"github.com/pontaoski/microc/types"
)

func NewIntLit(value int64, pos types.Span) *IntLit {
	return &IntLit{Value: value, Pos: pos}
}

func NewFloatLit(value float64, pos types.Span) *FloatLit {
	return &FloatLit{Value: value, Pos: pos}
}

func NewStringLit(value string, pos types.Span) *StringLit {
	return &StringLit{Value: value, Pos: pos}
}

func NewVar(sym *Symbol, pos types.Span) *Var {
	return &Var{Symbol: sym, Pos: pos}
}

// NewAddrOf is total. Whether x has storage is for the caller building the
// tree to decide; see Addressable.
func NewAddrOf(x Expression, pos types.Span) *AddrOf {
	return &AddrOf{X: x, Pos: pos}
}

// Addressable reports whether x denotes storage that & can point at.
func Addressable(x Expression) bool {
	switch x.(type) {
	case *Var, *PtrDeref:
		return true
	}
	return false
}

func NewPtrDeref(x Expression, pos types.Span) (*PtrDeref, error) {
	if t := x.Type(); !t.IsPointer() {
		return nil, errors.TypeMismatchError{
			Op:       "dereference",
			Expected: "a pointer",
			Got:      t,
			Node:     "*" + x.String(),
			Location: pos,
		}
	}
	return &PtrDeref{X: x, Pos: pos}, nil
}

func NewMalloc(size Expression, pos types.Span) (*Malloc, error) {
	if t := size.Type(); t.Kind != types.Int {
		return nil, errors.TypeMismatchError{
			Op:       "malloc",
			Expected: "an int byte count",
			Got:      t,
			Node:     "malloc(" + size.String() + ")",
			Location: pos,
		}
	}
	return &Malloc{Size: size, Pos: pos}, nil
}

// Resolve settles the allocation's pending type against the type of the
// binding that receives it. Resolving again against an equal type is a no-op.
func (v *Malloc) Resolve(context types.Type) (types.Type, error) {
	t, ok := types.Unify(v.Type(), context)
	if ok {
		v.resolved = &t
		return t, nil
	}
	if v.resolved == nil {
		return t, errors.TypeInferenceError{
			Context:  context,
			Node:     v.String(),
			Location: v.Pos,
		}
	}
	return t, errors.TypeMismatchError{
		Op:       "allocation binding",
		Expected: v.resolved.String(),
		Got:      context,
		Node:     v.String(),
		Location: v.Pos,
	}
}

// NewFree checks its operand up front, the same way NewPtrDeref does.
func NewFree(x Expression, pos types.Span) (*Free, error) {
	if err := checkFreeOperand(x, pos); err != nil {
		return nil, err
	}
	return &Free{X: x, Pos: pos}, nil
}

func checkFreeOperand(x Expression, pos types.Span) error {
	t := x.Type()
	if t.Pending() {
		return errors.TypeInferenceError{Node: x.String(), Location: pos}
	}
	if !t.IsPointer() {
		return errors.InvalidOperandTypeError{
			Op:       "free",
			Got:      t,
			Node:     "free(" + x.String() + ")",
			Location: pos,
		}
	}
	return nil
}

// CheckFree repeats the construction check for a Free that may have been
// assembled without NewFree.
func CheckFree(v *Free) error {
	return checkFreeOperand(v.X, v.Pos)
}

func NewBinary(op BinaryOp, left, right Expression, pos types.Span) (*Binary, error) {
	b := &Binary{Op: op, Left: left, Right: right, Pos: pos}
	if _, err := binaryType(b); err != nil {
		return nil, err
	}
	return b, nil
}

// BinaryType is the result type of v, or the error explaining why v is ill
// typed.
func BinaryType(v *Binary) (types.Type, error) {
	return binaryType(v)
}

func binaryType(v *Binary) (types.Type, error) {
	l, r := v.Left.Type(), v.Right.Type()
	for _, operand := range []Expression{v.Left, v.Right} {
		if operand.Type().Pending() {
			return types.Type{}, errors.TypeInferenceError{Node: operand.String(), Location: operand.Span()}
		}
	}

	mismatch := func(expected string, got types.Type) error {
		return errors.TypeMismatchError{
			Op:       "arithmetic " + v.Op.String(),
			Expected: expected,
			Got:      got,
			Node:     v.String(),
			Location: v.Pos,
		}
	}

	switch {
	case l.IsNumeric() && r.IsNumeric():
		if l.Kind == types.Float || r.Kind == types.Float {
			return types.FloatType, nil
		}
		return types.IntType, nil
	case l.IsPointer() && r.IsPointer():
		if v.Op != Sub || !l.Equal(r) {
			return types.Type{}, mismatch("operands of matching pointer types under -", r)
		}
		if !sized(l) {
			return types.Type{}, mismatch("a pointer to a sized type", l)
		}
		return types.IntType, nil
	case l.IsPointer():
		if (v.Op != Add && v.Op != Sub) || r.Kind != types.Int {
			return types.Type{}, mismatch("an int offset added to or subtracted from a pointer", r)
		}
		if !sized(l) {
			return types.Type{}, mismatch("a pointer to a sized type", l)
		}
		return l, nil
	case r.IsPointer():
		if v.Op != Add || l.Kind != types.Int {
			return types.Type{}, mismatch("an int offset added to a pointer", l)
		}
		if !sized(r) {
			return types.Type{}, mismatch("a pointer to a sized type", r)
		}
		return r, nil
	case !l.IsNumeric():
		return types.Type{}, mismatch("a number", l)
	}
	return types.Type{}, mismatch("a number", r)
}

func sized(ptr types.Type) bool {
	return ptr.Wrapped().Size(1) > 0
}

func NewNeg(x Expression, pos types.Span) (*Neg, error) {
	if t := x.Type(); !t.IsNumeric() {
		return nil, errors.TypeMismatchError{
			Op:       "negation",
			Expected: "a number",
			Got:      t,
			Node:     "-" + x.String(),
			Location: pos,
		}
	}
	return &Neg{X: x, Pos: pos}, nil
}

// NewCast converts between numbers and between pointer types. A cast to a
// pointer is also a binding context for an allocation.
func NewCast(to types.Type, x Expression, pos types.Span) (*Cast, error) {
	from := x.Type()
	ok := false
	switch {
	case from.Pending():
		ok = to.IsPointer()
	case to.IsNumeric():
		ok = from.IsNumeric() || (to.Kind == types.Int && from.IsPointer())
	case to.IsPointer():
		ok = from.IsPointer() || from.Kind == types.Int
	}
	if !ok || !to.Concrete() {
		return nil, errors.TypeMismatchError{
			Op:       "cast to " + to.String(),
			Expected: "a number or a pointer",
			Got:      from,
			Node:     x.String(),
			Location: pos,
		}
	}
	return &Cast{To: to, X: x, Pos: pos}, nil
}

func NewCond(op CondOp, left, right Expression, pos types.Span) (*Cond, error) {
	l, r := left.Type(), right.Type()
	for _, operand := range []Expression{left, right} {
		if operand.Type().Pending() {
			return nil, errors.TypeInferenceError{Node: operand.String(), Location: operand.Span()}
		}
	}
	if (l.IsNumeric() && r.IsNumeric()) || (l.IsPointer() && l.Equal(r)) {
		return &Cond{Op: op, Left: left, Right: right, Pos: pos}, nil
	}
	return nil, errors.TypeMismatchError{
		Op:       "comparison " + op.String(),
		Expected: l.String(),
		Got:      r,
		Node:     left.String() + " " + op.String() + " " + right.String(),
		Location: pos,
	}
}

// Assignable reports whether a value of type value may be stored into a
// location of type target. A pending allocation is accepted here and resolved
// when the tree is lowered.
func Assignable(target, value types.Type) bool {
	switch {
	case value.Pending():
		return true
	case target.Equal(value):
		return target.Concrete()
	case target.IsNumeric() && value.IsNumeric():
		return true
	}
	return false
}

func NewAssign(to, value Expression, pos types.Span) (*Assign, error) {
	if !Addressable(to) {
		return nil, errors.AddressError{Node: to.String(), Location: pos}
	}
	if !Assignable(to.Type(), value.Type()) {
		return nil, errors.TypeMismatchError{
			Op:       "assignment",
			Expected: to.Type().String(),
			Got:      value.Type(),
			Node:     to.String() + " = " + value.String(),
			Location: pos,
		}
	}
	return &Assign{To: to, Value: value, Pos: pos}, nil
}

// Storable reports whether variables may have type t.
func Storable(t types.Type) bool {
	return t.Concrete() && (t.IsNumeric() || t.IsPointer() || t.Kind == types.Bool)
}

func NewVarDecl(sym *Symbol, init Expression, pos types.Span) (*VarDecl, error) {
	if !Storable(sym.Kind) {
		return nil, errors.TypeMismatchError{
			Op:       "declaration of " + sym.Name,
			Expected: "a number or a pointer",
			Got:      sym.Kind,
			Node:     sym.Name,
			Location: pos,
		}
	}
	if init != nil && !Assignable(sym.Kind, init.Type()) {
		return nil, errors.TypeMismatchError{
			Op:       "initialization of " + sym.Name,
			Expected: sym.Kind.String(),
			Got:      init.Type(),
			Node:     init.String(),
			Location: pos,
		}
	}
	return &VarDecl{Symbol: sym, Init: init, Pos: pos}, nil
}

func NewWrite(x Expression, pos types.Span) (*Write, error) {
	t := x.Type()
	_, isLit := x.(*StringLit)
	if t.Kind == types.String && !isLit {
		return nil, errors.TypeMismatchError{Op: "print", Expected: "a string literal", Got: t, Node: x.String(), Location: pos}
	}
	if t.Kind == types.Void || t.Kind == types.Invalid {
		return nil, errors.TypeMismatchError{Op: "print", Expected: "a value", Got: t, Node: x.String(), Location: pos}
	}
	return &Write{X: x, Pos: pos}, nil
}

func NewRead(to *Var, pos types.Span) (*Read, error) {
	if t := to.Type(); !t.IsNumeric() {
		return nil, errors.TypeMismatchError{Op: "read", Expected: "an int or float variable", Got: t, Node: to.String(), Location: pos}
	}
	return &Read{To: to, Pos: pos}, nil
}

func NewExprStmt(x Expression, pos types.Span) *ExprStmt {
	return &ExprStmt{X: x, Pos: pos}
}

func NewIf(cond *Cond, then, els Statement, pos types.Span) *If {
	return &If{Condition: cond, Then: then, Else: els, Pos: pos}
}

func NewWhile(cond *Cond, body Statement, pos types.Span) *While {
	return &While{Condition: cond, Body: body, Pos: pos}
}

func NewBlock(stmts []Statement, pos types.Span) *Block {
	return &Block{Statements: stmts, Pos: pos}
}

// NewFunc checks the signature of a function. The body is attached later so
// that calls inside it, including recursive ones, can refer to the Func.
func NewFunc(name string, result types.Type, params []*Symbol, pos types.Span) (*Func, error) {
	if result.Kind != types.Void && !Storable(result) {
		return nil, errors.TypeMismatchError{
			Op:       "result of " + name,
			Expected: "void, a number or a pointer",
			Got:      result,
			Node:     name,
			Location: pos,
		}
	}
	for _, p := range params {
		if !Storable(p.Kind) {
			return nil, errors.TypeMismatchError{
				Op:       "parameter " + p.Name + " of " + name,
				Expected: "a number or a pointer",
				Got:      p.Kind,
				Node:     name,
				Location: p.Pos,
			}
		}
	}
	return &Func{Name: name, Result: result, Params: params, Pos: pos}, nil
}

func NewCall(fn *Func, args []Expression, pos types.Span) (*Call, error) {
	v := &Call{Func: fn, Args: args, Pos: pos}
	if err := CheckCall(v); err != nil {
		return nil, err
	}
	return v, nil
}

// CheckCall checks the arguments of v against its function's parameters.
// Each parameter is the binding context of its argument, so an allocation
// passed straight to a pointer parameter is accepted.
func CheckCall(v *Call) error {
	if len(v.Args) != len(v.Func.Params) {
		return errors.ArgumentCountError{Func: v.Func.Name, Want: len(v.Func.Params), Got: len(v.Args), Location: v.Pos}
	}
	for idx, arg := range v.Args {
		param := v.Func.Params[idx]
		if !Assignable(param.Kind, arg.Type()) {
			return errors.TypeMismatchError{
				Op:       "argument " + param.Name + " of " + v.Func.Name,
				Expected: param.Kind.String(),
				Got:      arg.Type(),
				Node:     v.String(),
				Location: arg.Span(),
			}
		}
	}
	return nil
}

func NewReturn(fn *Func, x Expression, pos types.Span) (*Return, error) {
	v := &Return{Func: fn, X: x, Pos: pos}
	if err := CheckReturn(v); err != nil {
		return nil, err
	}
	return v, nil
}

// CheckReturn checks that v hands back a value exactly when its function
// has a result, and that the value fits the result type.
func CheckReturn(v *Return) error {
	mismatch := func(got types.Type) error {
		return errors.TypeMismatchError{
			Op:       "return from " + v.Func.Name,
			Expected: v.Func.Result.String(),
			Got:      got,
			Node:     v.String(),
			Location: v.Pos,
		}
	}
	switch {
	case v.Func.Result.Kind == types.Void:
		if v.X != nil {
			return mismatch(v.X.Type())
		}
	case v.X == nil:
		return mismatch(types.VoidType)
	case !Assignable(v.Func.Result, v.X.Type()):
		return mismatch(v.X.Type())
	}
	return nil
}

func NewProgram(stmts []Statement, funcs []*Func, pos types.Span) *Program {
	return &Program{Statements: stmts, Funcs: funcs, Pos: pos}
}
