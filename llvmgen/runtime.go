package llvmgen

import (
	"github.com/llir/llvm/ir"
	irtypes "github.com/llir/llvm/ir/types"
)

// addRuntime declares the C library functions the instruction set leans on.
func addRuntime(m *ir.Module) (ret map[string]*ir.Func) {
	ret = make(map[string]*ir.Func)

	funcs := []func(*ir.Module) (string, *ir.Func){
		addMalloc,
		addFree,
		addPrintf,
		addScanf,
	}
	for _, fn := range funcs {
		k, v := fn(m)
		ret[k] = v
	}

	return
}

func addMalloc(m *ir.Module) (string, *ir.Func) {
	return "malloc", m.NewFunc("malloc", BytePtr, ir.NewParam("size", Int64))
}

func addFree(m *ir.Module) (string, *ir.Func) {
	return "free", m.NewFunc("free", irtypes.Void, ir.NewParam("ptr", BytePtr))
}

func addPrintf(m *ir.Module) (string, *ir.Func) {
	fn := m.NewFunc("printf", Int32, ir.NewParam("format", BytePtr))
	fn.Sig.Variadic = true
	return "printf", fn
}

func addScanf(m *ir.Module) (string, *ir.Func) {
	fn := m.NewFunc("scanf", Int32, ir.NewParam("format", BytePtr))
	fn.Sig.Variadic = true
	return "scanf", fn
}
