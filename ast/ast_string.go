package ast

import (
	"fmt"
	"strconv"
	"strings"
)

func (v *IntLit) String() string    { return strconv.FormatInt(v.Value, 10) }
func (v *FloatLit) String() string  { return strconv.FormatFloat(v.Value, 'g', -1, 64) }
func (v *StringLit) String() string { return strconv.Quote(v.Value) }
func (v *Var) String() string       { return v.Symbol.Name }
func (v *AddrOf) String() string    { return "&" + v.X.String() }
func (v *PtrDeref) String() string  { return "*" + v.X.String() }
func (v *Malloc) String() string    { return "malloc(" + v.Size.String() + ")" }
func (v *Free) String() string      { return "free(" + v.X.String() + ")" }
func (v *Neg) String() string       { return "-" + v.X.String() }

func (v *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", v.Left, v.Op, v.Right)
}

func (v *Cast) String() string {
	return fmt.Sprintf("(%s)%s", v.To, v.X)
}

func (v *Cond) String() string {
	return fmt.Sprintf("%s %s %s", v.Left, v.Op, v.Right)
}

func (v *Assign) String() string {
	return fmt.Sprintf("%s = %s;", v.To, v.Value)
}

func (v *VarDecl) String() string {
	if v.Init == nil {
		return fmt.Sprintf("%s %s;", v.Symbol.Kind, v.Symbol.Name)
	}
	return fmt.Sprintf("%s %s = %s;", v.Symbol.Kind, v.Symbol.Name, v.Init)
}

func (v *Write) String() string    { return "print(" + v.X.String() + ");" }
func (v *Read) String() string     { return "read(" + v.To.String() + ");" }
func (v *ExprStmt) String() string { return v.X.String() + ";" }

func (v *If) String() string {
	if v.Else == nil {
		return fmt.Sprintf("if (%s) %s", v.Condition, v.Then)
	}
	return fmt.Sprintf("if (%s) %s else %s", v.Condition, v.Then, v.Else)
}

func (v *While) String() string {
	return fmt.Sprintf("while (%s) %s", v.Condition, v.Body)
}

func (v *Block) String() string {
	var stmts []string
	for _, stmt := range v.Statements {
		stmts = append(stmts, stmt.String())
	}
	return "{ " + strings.Join(stmts, " ") + " }"
}

func (v *Func) String() string {
	var params []string
	for _, p := range v.Params {
		params = append(params, p.Kind.String()+" "+p.Name)
	}
	body := "{ }"
	if v.Body != nil {
		body = v.Body.String()
	}
	return fmt.Sprintf("%s %s(%s) %s", v.Result, v.Name, strings.Join(params, ", "), body)
}

func (v *Call) String() string {
	var args []string
	for _, arg := range v.Args {
		args = append(args, arg.String())
	}
	return v.Func.Name + "(" + strings.Join(args, ", ") + ")"
}

func (v *Return) String() string {
	if v.X == nil {
		return "return;"
	}
	return "return " + v.X.String() + ";"
}

func (v *Program) String() string {
	var parts []string
	for _, stmt := range v.Statements {
		parts = append(parts, stmt.String())
	}
	for _, fn := range v.Funcs {
		parts = append(parts, fn.String())
	}
	return strings.Join(parts, "\n")
}
