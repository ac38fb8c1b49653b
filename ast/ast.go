// Package ast is the typed MicroC syntax tree handed to lowering. Every node
// knows its resolved type; constructors check operand types as the tree is
// built bottom up, so a tree made of constructed nodes is well typed except
// for allocations still waiting on their binding context.
package ast

import (
	"github.com/pontaoski/microc/types"
)

type Node interface {
	Type() types.Type
	Span() types.Span
	String() string
}

type Expression interface {
	Node
	is_Expression()
}

type Statement interface {
	Node
	is_Statement()
}

// Symbol is a declared variable. Declarations and uses share one Symbol.
type Symbol struct {
	Name string
	Kind types.Type
	ID   int
	Pos  types.Span
}

type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
)

func (o BinaryOp) String() string {
	return [...]string{"+", "-", "*", "/"}[o]
}

type CondOp int

const (
	LT CondOp = iota
	LE
	GT
	GE
	EQ
	NE
)

func (o CondOp) String() string {
	return [...]string{"<", "<=", ">", ">=", "==", "!="}[o]
}

// Reversed is the comparison that holds exactly when o does not.
func (o CondOp) Reversed() CondOp {
	return [...]CondOp{GE, GT, LE, LT, NE, EQ}[o]
}

type IntLit struct {
	Value int64
	Pos   types.Span
}

func (v *IntLit) is_Expression()   {}
func (v *IntLit) Type() types.Type { return types.IntType }
func (v *IntLit) Span() types.Span { return v.Pos }

type FloatLit struct {
	Value float64
	Pos   types.Span
}

func (v *FloatLit) is_Expression()   {}
func (v *FloatLit) Type() types.Type { return types.FloatType }
func (v *FloatLit) Span() types.Span { return v.Pos }

type StringLit struct {
	Value string
	Pos   types.Span
}

func (v *StringLit) is_Expression()   {}
func (v *StringLit) Type() types.Type { return types.StringType }
func (v *StringLit) Span() types.Span { return v.Pos }

type Var struct {
	Symbol *Symbol
	Pos    types.Span
}

func (v *Var) is_Expression()   {}
func (v *Var) Type() types.Type { return v.Symbol.Kind }
func (v *Var) Span() types.Span { return v.Pos }

// AddrOf is &X. Its type is a pointer to X's type.
type AddrOf struct {
	X   Expression
	Pos types.Span
}

func (v *AddrOf) is_Expression()   {}
func (v *AddrOf) Type() types.Type { return types.PointerTo(v.X.Type()) }
func (v *AddrOf) Span() types.Span { return v.Pos }

// PtrDeref is *X. X is always a pointer in a constructed tree.
type PtrDeref struct {
	X   Expression
	Pos types.Span
}

func (v *PtrDeref) is_Expression() {}
func (v *PtrDeref) Type() types.Type {
	if t := v.X.Type(); t.IsPointer() {
		return t.Wrapped()
	}
	return types.Type{}
}
func (v *PtrDeref) Span() types.Span { return v.Pos }

// Malloc is the malloc builtin. Its type stays pending until the binding that
// receives the allocation resolves it.
type Malloc struct {
	Size     Expression
	Pos      types.Span
	resolved *types.Type
}

func (v *Malloc) is_Expression() {}
func (v *Malloc) Type() types.Type {
	if v.resolved != nil {
		return *v.resolved
	}
	return types.InferType
}
func (v *Malloc) Span() types.Span { return v.Pos }

// FuncName names the builtin. malloc has no symbol table entry and never takes
// part in ordinary name resolution.
func (v *Malloc) FuncName() string { return "malloc" }

// Free is the free builtin, a statement.
type Free struct {
	X   Expression
	Pos types.Span
}

func (v *Free) is_Statement()    {}
func (v *Free) Type() types.Type { return types.VoidType }
func (v *Free) Span() types.Span { return v.Pos }
func (v *Free) FuncName() string { return "free" }

type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
	Pos   types.Span
}

func (v *Binary) is_Expression() {}
func (v *Binary) Type() types.Type {
	t, _ := binaryType(v)
	return t
}
func (v *Binary) Span() types.Span { return v.Pos }

type Neg struct {
	X   Expression
	Pos types.Span
}

func (v *Neg) is_Expression()   {}
func (v *Neg) Type() types.Type { return v.X.Type() }
func (v *Neg) Span() types.Span { return v.Pos }

type Cast struct {
	To  types.Type
	X   Expression
	Pos types.Span
}

func (v *Cast) is_Expression()   {}
func (v *Cast) Type() types.Type { return v.To }
func (v *Cast) Span() types.Span { return v.Pos }

// Cond is a comparison. It only appears as the condition of If and While.
type Cond struct {
	Op    CondOp
	Left  Expression
	Right Expression
	Pos   types.Span
}

func (v *Cond) is_Expression()   {}
func (v *Cond) Type() types.Type { return types.BoolType }
func (v *Cond) Span() types.Span { return v.Pos }

type Assign struct {
	To    Expression
	Value Expression
	Pos   types.Span
}

func (v *Assign) is_Statement()    {}
func (v *Assign) Type() types.Type { return types.VoidType }
func (v *Assign) Span() types.Span { return v.Pos }

type VarDecl struct {
	Symbol *Symbol
	Init   Expression
	Pos    types.Span
}

func (v *VarDecl) is_Statement()    {}
func (v *VarDecl) Type() types.Type { return types.VoidType }
func (v *VarDecl) Span() types.Span { return v.Pos }

type Write struct {
	X   Expression
	Pos types.Span
}

func (v *Write) is_Statement()    {}
func (v *Write) Type() types.Type { return types.VoidType }
func (v *Write) Span() types.Span { return v.Pos }

type Read struct {
	To  *Var
	Pos types.Span
}

func (v *Read) is_Statement()    {}
func (v *Read) Type() types.Type { return types.VoidType }
func (v *Read) Span() types.Span { return v.Pos }

// ExprStmt evaluates X and discards the result.
type ExprStmt struct {
	X   Expression
	Pos types.Span
}

func (v *ExprStmt) is_Statement()    {}
func (v *ExprStmt) Type() types.Type { return types.VoidType }
func (v *ExprStmt) Span() types.Span { return v.Pos }

type If struct {
	Condition *Cond
	Then      Statement
	Else      Statement
	Pos       types.Span
}

func (v *If) is_Statement()    {}
func (v *If) Type() types.Type { return types.VoidType }
func (v *If) Span() types.Span { return v.Pos }

type While struct {
	Condition *Cond
	Body      Statement
	Pos       types.Span
}

func (v *While) is_Statement()    {}
func (v *While) Type() types.Type { return types.VoidType }
func (v *While) Span() types.Span { return v.Pos }

type Block struct {
	Statements []Statement
	Pos        types.Span
}

func (v *Block) is_Statement()    {}
func (v *Block) Type() types.Type { return types.VoidType }
func (v *Block) Span() types.Span { return v.Pos }

// Func is a function definition. Calls and returns point at it the way uses
// point at a Symbol.
type Func struct {
	Name   string
	Result types.Type
	Params []*Symbol
	Body   *Block
	Pos    types.Span
}

func (v *Func) Type() types.Type { return v.Result }
func (v *Func) Span() types.Span { return v.Pos }

// Label is the entry label of the function's code.
func (v *Func) Label() string { return "func_" + v.Name }

type Call struct {
	Func *Func
	Args []Expression
	Pos  types.Span
}

func (v *Call) is_Expression()   {}
func (v *Call) Type() types.Type { return v.Func.Result }
func (v *Call) Span() types.Span { return v.Pos }

// Return leaves Func, handing back X unless the function is void.
type Return struct {
	Func *Func
	X    Expression
	Pos  types.Span
}

func (v *Return) is_Statement()    {}
func (v *Return) Type() types.Type { return types.VoidType }
func (v *Return) Span() types.Span { return v.Pos }

// Program is a whole source file: top-level statements run in order, then
// main when the file defines one.
type Program struct {
	Statements []Statement
	Funcs      []*Func
	Pos        types.Span
}

func (v *Program) Type() types.Type { return types.VoidType }
func (v *Program) Span() types.Span { return v.Pos }

// Lookup finds the function called name.
func (v *Program) Lookup(name string) (*Func, bool) {
	for _, fn := range v.Funcs {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}
