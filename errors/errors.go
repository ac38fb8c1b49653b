package errors

import (
	"fmt"
	"strings"

	"github.com/pontaoski/microc/types"
)

// TypeMismatchError is raised when an operand's type cannot be used where it
// appears, for example a dereference of a non-pointer.
type TypeMismatchError struct {
	Op       string
	Expected string
	Got      types.Type
	Node     string
	Location types.Span
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: type mismatch in %s: expected %s, got %s in %s", e.Location, e.Op, e.Expected, e.Got, e.Node)
}

// TypeInferenceError is raised when an allocation's pointee cannot be decided
// from the binding that receives it.
type TypeInferenceError struct {
	Context  types.Type
	Node     string
	Location types.Span
}

func (e TypeInferenceError) Error() string {
	if e.Context.Kind == types.Invalid {
		return fmt.Sprintf("%s: cannot infer the type of %s: its result is not bound to a pointer", e.Location, e.Node)
	}
	return fmt.Sprintf("%s: cannot infer the type of %s from context of type %s", e.Location, e.Node, e.Context)
}

// InvalidOperandTypeError is raised when free is given something that is not
// a pointer.
type InvalidOperandTypeError struct {
	Op       string
	Got      types.Type
	Node     string
	Location types.Span
}

func (e InvalidOperandTypeError) Error() string {
	return fmt.Sprintf("%s: %s needs a pointer operand, got %s in %s", e.Location, e.Op, e.Got, e.Node)
}

type NameError struct {
	Name     string
	Reason   string
	Location types.Span
}

func (e NameError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Location, e.Name, e.Reason)
}

// AddressError is raised when & is applied to something without storage.
type AddressError struct {
	Node     string
	Location types.Span
}

func (e AddressError) Error() string {
	return fmt.Sprintf("%s: cannot take the address of %s", e.Location, e.Node)
}

type SyntaxError struct {
	Message  string
	Location types.Span
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Location, e.Message)
}

// UnsupportedError marks input a back end has no translation for.
type UnsupportedError struct {
	What string
	Got  []string
}

func (e UnsupportedError) Error() string {
	if len(e.Got) == 0 {
		return fmt.Sprintf("unsupported %s", e.What)
	}
	return fmt.Sprintf("unsupported %s: %s", e.What, strings.Join(e.Got, ", "))
}

// ArgumentCountError is raised when a call passes a different number of
// arguments than the function declares.
type ArgumentCountError struct {
	Func     string
	Want     int
	Got      int
	Location types.Span
}

func (e ArgumentCountError) Error() string {
	return fmt.Sprintf("%s: %s takes %d arguments, got %d", e.Location, e.Func, e.Want, e.Got)
}
