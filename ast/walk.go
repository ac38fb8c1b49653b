package ast

// Children lists the direct operands of n in evaluation order.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *AddrOf:
		return []Node{v.X}
	case *PtrDeref:
		return []Node{v.X}
	case *Malloc:
		return []Node{v.Size}
	case *Free:
		return []Node{v.X}
	case *Binary:
		return []Node{v.Left, v.Right}
	case *Neg:
		return []Node{v.X}
	case *Cast:
		return []Node{v.X}
	case *Cond:
		return []Node{v.Left, v.Right}
	case *Assign:
		return []Node{v.To, v.Value}
	case *VarDecl:
		if v.Init != nil {
			return []Node{v.Init}
		}
	case *Write:
		return []Node{v.X}
	case *Read:
		return []Node{v.To}
	case *ExprStmt:
		return []Node{v.X}
	case *If:
		if v.Else != nil {
			return []Node{v.Condition, v.Then, v.Else}
		}
		return []Node{v.Condition, v.Then}
	case *While:
		return []Node{v.Condition, v.Body}
	case *Block:
		nodes := make([]Node, 0, len(v.Statements))
		for _, stmt := range v.Statements {
			nodes = append(nodes, stmt)
		}
		return nodes
	case *Call:
		nodes := make([]Node, 0, len(v.Args))
		for _, arg := range v.Args {
			nodes = append(nodes, arg)
		}
		return nodes
	case *Return:
		if v.X != nil {
			return []Node{v.X}
		}
	case *Func:
		if v.Body != nil {
			return []Node{v.Body}
		}
	case *Program:
		nodes := make([]Node, 0, len(v.Statements)+len(v.Funcs))
		for _, stmt := range v.Statements {
			nodes = append(nodes, stmt)
		}
		for _, fn := range v.Funcs {
			nodes = append(nodes, fn)
		}
		return nodes
	}
	return nil
}

// Inspect calls fn for n and then, if fn returns true, for every node below
// it in pre-order.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range Children(n) {
		Inspect(child, fn)
	}
}

// AddressTaken collects the symbols whose storage & points at somewhere
// under n.
func AddressTaken(n Node) map[*Symbol]bool {
	taken := make(map[*Symbol]bool)
	Inspect(n, func(n Node) bool {
		if addr, ok := n.(*AddrOf); ok {
			if v, ok := addr.X.(*Var); ok {
				taken[v.Symbol] = true
			}
		}
		return true
	})
	return taken
}
