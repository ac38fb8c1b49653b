// Package asm is the target instruction set: a closed catalogue of opcodes,
// the flat Instruction record lowering emits, and its textual form.
package asm

type OpCode int

const (
	LI OpCode = iota + 1
	LA
	MV
	ADD
	SUB
	MUL
	DIV
	NEG
	ADDI
	LW
	SW
	FLW
	FSW
	BEQ
	BGE
	BGT
	BLE
	BLT
	BNE
	J
	JR
	RET
	FADDS
	FSUBS
	FDIVS
	FMULS
	FMVS
	FNEGS
	FIMMS
	FLTS
	FLES
	FEQS
	IMOVFS
	FMOVIS
	PUTS
	PUTI
	GETI
	GETF
	PUTF
	HALT
	MALLOC
	FREE
	LABEL
)

// Format fixes how many operands an opcode takes and where they are written.
type Format int

const (
	// FmtNone: OP
	FmtNone Format = iota
	// FmtDst: OP dst
	FmtDst
	// FmtSrc: OP src1
	FmtSrc
	// FmtDstSrc: OP dst, src1
	FmtDstSrc
	// FmtDstSrcSrc: OP dst, src1, src2
	FmtDstSrcSrc
	// FmtLoad: OP dst, 0(src1)
	FmtLoad
	// FmtStore: OP src1, 0(src2)
	FmtStore
	// FmtBranch: OP src1, src2, label
	FmtBranch
	// FmtJump: OP label
	FmtJump
	// FmtLabel: label:
	FmtLabel
)

type opInfo struct {
	Mnemonic string
	Format   Format
}

var catalogue = map[OpCode]opInfo{
	LI:     {"LI", FmtDstSrc},
	LA:     {"LA", FmtDstSrc},
	MV:     {"MV", FmtDstSrc},
	ADD:    {"ADD", FmtDstSrcSrc},
	SUB:    {"SUB", FmtDstSrcSrc},
	MUL:    {"MUL", FmtDstSrcSrc},
	DIV:    {"DIV", FmtDstSrcSrc},
	NEG:    {"NEG", FmtDstSrc},
	ADDI:   {"ADDI", FmtDstSrcSrc},
	LW:     {"LW", FmtLoad},
	SW:     {"SW", FmtStore},
	FLW:    {"FLW", FmtLoad},
	FSW:    {"FSW", FmtStore},
	BEQ:    {"BEQ", FmtBranch},
	BGE:    {"BGE", FmtBranch},
	BGT:    {"BGT", FmtBranch},
	BLE:    {"BLE", FmtBranch},
	BLT:    {"BLT", FmtBranch},
	BNE:    {"BNE", FmtBranch},
	J:      {"J", FmtJump},
	JR:     {"JR", FmtSrc},
	RET:    {"RET", FmtNone},
	FADDS:  {"FADD.S", FmtDstSrcSrc},
	FSUBS:  {"FSUB.S", FmtDstSrcSrc},
	FDIVS:  {"FDIV.S", FmtDstSrcSrc},
	FMULS:  {"FMUL.S", FmtDstSrcSrc},
	FMVS:   {"FMV.S", FmtDstSrc},
	FNEGS:  {"FNEG.S", FmtDstSrc},
	FIMMS:  {"FIMM.S", FmtDstSrc},
	FLTS:   {"FLT.S", FmtDstSrcSrc},
	FLES:   {"FLE.S", FmtDstSrcSrc},
	FEQS:   {"FEQ.S", FmtDstSrcSrc},
	IMOVFS: {"IMOVF.S", FmtDstSrc},
	FMOVIS: {"FMOVI.S", FmtDstSrc},
	PUTS:   {"PUTS", FmtSrc},
	PUTI:   {"PUTI", FmtSrc},
	GETI:   {"GETI", FmtDst},
	GETF:   {"GETF", FmtDst},
	PUTF:   {"PUTF", FmtSrc},
	HALT:   {"HALT", FmtNone},
	MALLOC: {"MALLOC", FmtDstSrc},
	FREE:   {"FREE", FmtSrc},
	LABEL:  {"LABEL", FmtLabel},
}

var byMnemonic = func() map[string]OpCode {
	m := make(map[string]OpCode, len(catalogue))
	for op, info := range catalogue {
		m[info.Mnemonic] = op
	}
	return m
}()

func (o OpCode) String() string {
	if info, ok := catalogue[o]; ok {
		return info.Mnemonic
	}
	return "UNKNOWN"
}

func (o OpCode) Format() Format {
	return catalogue[o].Format
}

func (o OpCode) Valid() bool {
	_, ok := catalogue[o]
	return ok
}

// Lookup finds the opcode with the given mnemonic.
func Lookup(mnemonic string) (OpCode, bool) {
	op, ok := byMnemonic[mnemonic]
	return op, ok
}

// OpCodes lists the whole catalogue in declaration order.
func OpCodes() []OpCode {
	ops := make([]OpCode, 0, len(catalogue))
	for op := LI; op <= LABEL; op++ {
		ops = append(ops, op)
	}
	return ops
}

// Arity reports the operand shape of a format.
func (f Format) Arity() (dst bool, srcs int, label bool) {
	switch f {
	case FmtDst:
		return true, 0, false
	case FmtSrc:
		return false, 1, false
	case FmtDstSrc, FmtLoad:
		return true, 1, false
	case FmtDstSrcSrc:
		return true, 2, false
	case FmtStore:
		return false, 2, false
	case FmtBranch:
		return false, 2, true
	case FmtJump, FmtLabel:
		return false, 0, true
	}
	return false, 0, false
}
