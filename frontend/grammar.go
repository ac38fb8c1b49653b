package frontend

import (
	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
)

type Program struct {
	Pos   lexer.Position
	Items []*Item `@@*`
}

type Item struct {
	Pos       lexer.Position
	Func      *Function  `  @@`
	Statement *Statement `| @@`
}

type Function struct {
	Pos    lexer.Position
	Result *TypeName  `@@`
	Name   string     `@Ident "("`
	Params []*Param   `( @@ ( "," @@ )* )? ")"`
	Body   *BlockStmt `@@`
}

type Param struct {
	Pos  lexer.Position
	Type *TypeName `@@`
	Name string    `@Ident`
}

type Statement struct {
	Pos    lexer.Position
	Decl   *Decl       `  @@`
	Free   *Expr       `| "free" "(" @@ ")" ";"`
	Print  *PrintArg   `| "print" "(" @@ ")" ";"`
	Read   *string     `| "read" "(" @Ident ")" ";"`
	Return *ReturnStmt `| @@`
	If     *IfStmt     `| @@`
	While  *WhileStmt  `| @@`
	Block  *BlockStmt  `| @@`
	Simple *SimpleStmt `| @@`
}

type TypeName struct {
	Pos   lexer.Position
	Base  string   `@("int" | "float" | "void")`
	Stars []string `@"*"*`
}

type Decl struct {
	Pos  lexer.Position
	Type *TypeName `@@`
	Name string    `@Ident`
	Init *Expr     `( "=" @@ )? ";"`
}

type PrintArg struct {
	Pos    lexer.Position
	String *string `  @String`
	Expr   *Expr   `| @@`
}

type ReturnStmt struct {
	Pos lexer.Position
	X   *Expr `"return" @@? ";"`
}

type IfStmt struct {
	Pos  lexer.Position
	Cond *Cond      `"if" "(" @@ ")"`
	Then *Statement `@@`
	Else *Statement `( "else" @@ )?`
}

type WhileStmt struct {
	Pos  lexer.Position
	Cond *Cond      `"while" "(" @@ ")"`
	Body *Statement `@@`
}

type BlockStmt struct {
	Pos        lexer.Position
	Statements []*Statement `"{" @@* "}"`
}

// SimpleStmt is an assignment, or an expression evaluated for its effect
// when Value is nil.
type SimpleStmt struct {
	Pos    lexer.Position
	Target *Expr `@@`
	Value  *Expr `( "=" @@ )? ";"`
}

type Cond struct {
	Pos   lexer.Position
	Left  *Expr  `@@`
	Op    string `@( "<" "=" | ">" "=" | "=" "=" | "!" "=" | "<" | ">" )`
	Right *Expr  `@@`
}

type Expr struct {
	Pos   lexer.Position
	Left  *Term     `@@`
	Right []*OpTerm `@@*`
}

type OpTerm struct {
	Pos  lexer.Position
	Op   string `@( "+" | "-" )`
	Term *Term  `@@`
}

type Term struct {
	Pos   lexer.Position
	Left  *Unary     `@@`
	Right []*OpUnary `@@*`
}

type OpUnary struct {
	Pos   lexer.Position
	Op    string `@( "*" | "/" )`
	Unary *Unary `@@`
}

type Unary struct {
	Pos     lexer.Position
	Op      string   `(  @( "&" | "*" | "-" )`
	Operand *Unary   `   @@ )`
	Cast    *Cast    `| @@`
	Primary *Primary `| @@`
}

type Cast struct {
	Pos lexer.Position
	To  *TypeName `"(" @@ ")"`
	X   *Unary    `@@`
}

type Primary struct {
	Pos    lexer.Position
	Malloc *Expr     `  "malloc" "(" @@ ")"`
	Call   *CallExpr `| @@`
	Float  *float64  `| @Float`
	Int    *int64    `| @Int`
	Var    *string   `| @Ident`
	Sub    *Expr     `| "(" @@ ")"`
}

type CallExpr struct {
	Pos  lexer.Position
	Name string  `@Ident "("`
	Args []*Expr `( @@ ( "," @@ )* )? ")"`
}

// The lookahead covers a declaration with several pointer stars tried as a
// function definition first. String tokens come unquoted from the default
// lexer.
var parser = participle.MustBuild(&Program{},
	participle.UseLookahead(16),
)
