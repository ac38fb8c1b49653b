package llvmgen

import (
	irtypes "github.com/llir/llvm/ir/types"

	"github.com/pontaoski/microc/types"
)

var (
	Byte    = irtypes.I8
	BytePtr = irtypes.NewPointer(irtypes.I8)
	Int64   = irtypes.I64
	Int32   = irtypes.I32
	Boolean = irtypes.I1
	Float64 = irtypes.Double
)

// machine maps MicroC types onto LLVM types for one word size.
type machine struct {
	word  *irtypes.IntType
	float *irtypes.FloatType
}

func newMachine(wordSize int) machine {
	m := machine{word: irtypes.NewInt(uint64(wordSize) * 8), float: irtypes.Float}
	if wordSize == 8 {
		m.float = irtypes.Double
	}
	return m
}

func (m machine) llvmType(t types.Type) irtypes.Type {
	switch t.Kind {
	case types.Int:
		return m.word
	case types.Float:
		return m.float
	case types.Bool:
		return Boolean
	case types.Ptr:
		elem := t.Wrapped()
		if elem.Kind == types.Void || elem.Kind == types.String {
			return BytePtr
		}
		return irtypes.NewPointer(m.llvmType(elem))
	}
	panic("no LLVM type for " + t.String())
}
