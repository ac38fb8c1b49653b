package types

import "strings"

type Kind int

const (
	Invalid Kind = iota
	Void
	Int
	Float
	Bool
	String
	Infer
	Ptr
)

func (k Kind) String() string {
	data := map[Kind]string{
		Invalid: "INVALID",
		Void:    "VOID",
		Int:     "INT",
		Float:   "FLOAT",
		Bool:    "BOOL",
		String:  "STRING",
		Infer:   "INFER",
		Ptr:     "PTR",
	}
	return data[k]
}

// Type is a MicroC value shape. Only a Ptr carries a pointee.
type Type struct {
	Kind Kind
	elem *Type
}

var (
	VoidType   = Type{Kind: Void}
	IntType    = Type{Kind: Int}
	FloatType  = Type{Kind: Float}
	BoolType   = Type{Kind: Bool}
	StringType = Type{Kind: String}
	InferType  = Type{Kind: Infer}
)

// PointerTo wraps t in a pointer.
func PointerTo(t Type) Type {
	elem := t
	return Type{Kind: Ptr, elem: &elem}
}

// Wrapped returns the pointee of a pointer type. Callers check the kind first;
// unwrapping anything else is a bug in the caller.
func (t Type) Wrapped() Type {
	if t.Kind != Ptr || t.elem == nil {
		panic("Wrapped called on non-pointer type " + t.String())
	}
	return *t.elem
}

func (t Type) IsPointer() bool {
	return t.Kind == Ptr
}

// Pending reports whether t is the placeholder of an allocation whose pointee
// has not been decided yet.
func (t Type) Pending() bool {
	return t.Kind == Infer
}

// Concrete reports whether t and everything it wraps is decided.
func (t Type) Concrete() bool {
	switch t.Kind {
	case Invalid, Infer:
		return false
	case Ptr:
		return t.elem != nil && t.elem.Concrete()
	}
	return true
}

// IsNumeric reports whether arithmetic is defined on t without pointer rules.
func (t Type) IsNumeric() bool {
	return t.Kind == Int || t.Kind == Float
}

func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == Ptr {
		if t.elem == nil || o.elem == nil {
			return t.elem == o.elem
		}
		return t.elem.Equal(*o.elem)
	}
	return true
}

// Depth is the number of pointer levels around the innermost type.
func (t Type) Depth() int {
	n := 0
	for t.Kind == Ptr && t.elem != nil {
		n++
		t = *t.elem
	}
	return n
}

// Size is the storage size of a value of type t in bytes. Every scalar and
// every pointer occupies one machine word.
func (t Type) Size(wordSize int) int {
	switch t.Kind {
	case Int, Float, Bool, Ptr:
		return wordSize
	}
	return 0
}

func (t Type) String() string {
	base := t
	for base.Kind == Ptr && base.elem != nil {
		base = *base.elem
	}

	var name string
	switch base.Kind {
	case Void:
		name = "void"
	case Int:
		name = "int"
	case Float:
		name = "float"
	case Bool:
		name = "bool"
	case String:
		name = "string"
	case Infer:
		name = "<infer>"
	default:
		name = "<invalid>"
	}
	return name + strings.Repeat("*", t.Depth())
}

// Unify resolves a type against the concrete type its surrounding binding
// demands. A pending type takes the context type when the context is a
// pointer with a concrete pointee; an allocation has no other meaning. A
// decided type unifies only with an equal context. ok is false when the
// context offers nothing usable.
func Unify(t, context Type) (resolved Type, ok bool) {
	if !t.Pending() {
		return t, t.Concrete() && t.Equal(context)
	}
	if context.Kind != Ptr || !context.Concrete() {
		return t, false
	}
	return context, true
}
