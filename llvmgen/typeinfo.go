package llvmgen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"gopkg.in/yaml.v2"

	"github.com/pontaoski/microc/lower"
)

// TypeInfo is the resolved type of every location a lowered program uses.
type TypeInfo struct {
	Registers map[string]string `yaml:"registers"`
	Slots     map[string]string `yaml:"slots,omitempty"`
	Strings   map[string]string `yaml:"strings,omitempty"`
}

func NewTypeInfo(res *lower.Result) TypeInfo {
	t := TypeInfo{
		Registers: make(map[string]string, len(res.Types)),
		Slots:     make(map[string]string, len(res.Slots)),
		Strings:   make(map[string]string, len(res.Strings)),
	}
	for reg, kind := range res.Types {
		t.Registers[reg] = kind.String()
	}
	for slot, kind := range res.Slots {
		t.Slots[slot] = kind.String()
	}
	for label, s := range res.Strings {
		t.Strings[label] = s
	}
	return t
}

func (t TypeInfo) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}

func ParseTypeInfo(data []byte) (t TypeInfo, err error) {
	err = yaml.Unmarshal(data, &t)
	return
}

// registerTypeInfoWithModule embeds t as a NUL-terminated YAML document in the
// global __microc_types.
func registerTypeInfoWithModule(t TypeInfo, m *ir.Module) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}

	g := m.NewGlobalDef("__microc_types", constant.NewCharArray(append(data, 0)))
	g.Immutable = true
	return nil
}
