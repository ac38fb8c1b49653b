package asm

import (
	"fmt"
	"strings"

	"github.com/pontaoski/microc/errors"
)

// Instruction is one emitted operation. Operands are symbolic: virtual
// registers, variable slots, immediates or labels. Which fields are used is
// fixed by the opcode's Format.
type Instruction struct {
	Op    OpCode
	Dst   string
	Src1  string
	Src2  string
	Label string
}

func New(op OpCode, dst string, srcs ...string) Instruction {
	i := Instruction{Op: op, Dst: dst}
	if len(srcs) > 0 {
		i.Src1 = srcs[0]
	}
	if len(srcs) > 1 {
		i.Src2 = srcs[1]
	}
	return i
}

// Malloc requests size bytes from the heap and binds the block's address to dst.
func Malloc(dst, size string) Instruction {
	return Instruction{Op: MALLOC, Dst: dst, Src1: size}
}

// Free releases the block whose address is in ptr.
func Free(ptr string) Instruction {
	return Instruction{Op: FREE, Src1: ptr}
}

func Load(op OpCode, dst, base string) Instruction {
	return Instruction{Op: op, Dst: dst, Src1: base}
}

func Store(op OpCode, src, base string) Instruction {
	return Instruction{Op: op, Src1: src, Src2: base}
}

func Branch(op OpCode, a, b, label string) Instruction {
	return Instruction{Op: op, Src1: a, Src2: b, Label: label}
}

func Jump(label string) Instruction {
	return Instruction{Op: J, Label: label}
}

func Label(name string) Instruction {
	return Instruction{Op: LABEL, Label: name}
}

// Sources lists the source operands in order.
func (i Instruction) Sources() []string {
	_, n, _ := i.Op.Format().Arity()
	return []string{i.Src1, i.Src2}[:n]
}

// Validate checks the operands against the opcode's fixed arity.
func (i Instruction) Validate() error {
	if !i.Op.Valid() {
		return errors.SyntaxError{Message: fmt.Sprintf("unknown opcode %d", int(i.Op))}
	}
	dst, n, label := i.Op.Format().Arity()
	srcs := []string{i.Src1, i.Src2}
	bad := (dst != (i.Dst != "")) || (label != (i.Label != ""))
	for idx, src := range srcs {
		if (idx < n) != (src != "") {
			bad = true
		}
	}
	if bad {
		return errors.SyntaxError{Message: fmt.Sprintf("malformed %s instruction %#v", i.Op, i)}
	}
	return nil
}

func (i Instruction) String() string {
	op := i.Op.String()
	switch i.Op.Format() {
	case FmtNone:
		return op
	case FmtDst:
		return op + " " + i.Dst
	case FmtSrc:
		return op + " " + i.Src1
	case FmtDstSrc:
		return op + " " + i.Dst + ", " + i.Src1
	case FmtDstSrcSrc:
		return op + " " + i.Dst + ", " + i.Src1 + ", " + i.Src2
	case FmtLoad:
		return op + " " + i.Dst + ", 0(" + i.Src1 + ")"
	case FmtStore:
		return op + " " + i.Src1 + ", 0(" + i.Src2 + ")"
	case FmtBranch:
		return op + " " + i.Src1 + ", " + i.Src2 + ", " + i.Label
	case FmtJump:
		return op + " " + i.Label
	case FmtLabel:
		return i.Label + ":"
	}
	panic("unhandled format")
}

// Parse reads back one line produced by Instruction.String.
func Parse(line string) (Instruction, error) {
	line = strings.TrimSpace(line)
	if strings.HasSuffix(line, ":") && !strings.ContainsAny(line, " ,") {
		return Label(strings.TrimSuffix(line, ":")), nil
	}

	mnemonic, rest := line, ""
	if idx := strings.IndexByte(line, ' '); idx >= 0 {
		mnemonic, rest = line[:idx], strings.TrimSpace(line[idx+1:])
	}
	op, ok := Lookup(mnemonic)
	if !ok || op == LABEL {
		return Instruction{}, errors.SyntaxError{Message: fmt.Sprintf("unknown mnemonic %q", mnemonic)}
	}

	var operands []string
	if rest != "" {
		operands = strings.Split(rest, ", ")
	}
	want := map[Format]int{
		FmtNone: 0, FmtDst: 1, FmtSrc: 1, FmtDstSrc: 2, FmtDstSrcSrc: 3,
		FmtLoad: 2, FmtStore: 2, FmtBranch: 3, FmtJump: 1,
	}[op.Format()]
	if len(operands) != want {
		return Instruction{}, errors.SyntaxError{Message: fmt.Sprintf("%s takes %d operands, got %q", mnemonic, want, rest)}
	}

	i := Instruction{Op: op}
	switch op.Format() {
	case FmtDst:
		i.Dst = operands[0]
	case FmtSrc:
		i.Src1 = operands[0]
	case FmtDstSrc:
		i.Dst, i.Src1 = operands[0], operands[1]
	case FmtDstSrcSrc:
		i.Dst, i.Src1, i.Src2 = operands[0], operands[1], operands[2]
	case FmtLoad:
		base, err := parseAddress(operands[1])
		if err != nil {
			return Instruction{}, err
		}
		i.Dst, i.Src1 = operands[0], base
	case FmtStore:
		base, err := parseAddress(operands[1])
		if err != nil {
			return Instruction{}, err
		}
		i.Src1, i.Src2 = operands[0], base
	case FmtBranch:
		i.Src1, i.Src2, i.Label = operands[0], operands[1], operands[2]
	case FmtJump:
		i.Label = operands[0]
	}
	return i, i.Validate()
}

func parseAddress(s string) (string, error) {
	if !strings.HasPrefix(s, "0(") || !strings.HasSuffix(s, ")") || len(s) < 4 {
		return "", errors.SyntaxError{Message: fmt.Sprintf("bad address operand %q", s)}
	}
	return s[2 : len(s)-1], nil
}

// Program is an instruction stream in emission order.
type Program []Instruction

func (p Program) String() string {
	var sb strings.Builder
	for _, i := range p {
		sb.WriteString(i.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Count is the number of instructions in p with opcode op.
func (p Program) Count(op OpCode) int {
	n := 0
	for _, i := range p {
		if i.Op == op {
			n++
		}
	}
	return n
}

// ParseProgram reads back the output of Program.String.
func ParseProgram(text string) (Program, error) {
	var p Program
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		i, err := Parse(line)
		if err != nil {
			return nil, err
		}
		p = append(p, i)
	}
	return p, nil
}
