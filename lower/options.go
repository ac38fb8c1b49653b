package lower

import (
	"github.com/coreos/pkg/capnslog"
	"github.com/pontaoski/microc/config"
)

var plog = capnslog.NewPackageLogger("github.com/pontaoski/microc", "lower")

type Options struct {
	WordSize     int
	IntPrefix    string
	FloatPrefix  string
	ZeroRegister string
	// Halt appends a HALT after the lowered tree.
	Halt bool
}

// DefaultOptions are the config defaults without the trailing HALT, so the
// stream holds exactly what the tree lowers to.
func DefaultOptions() Options {
	opts := OptionsFromConfig(config.Default())
	opts.Halt = false
	return opts
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		WordSize:     cfg.WordSize,
		IntPrefix:    cfg.IntPrefix,
		FloatPrefix:  cfg.FloatPrefix,
		ZeroRegister: cfg.ZeroRegister,
		Halt:         cfg.Halt,
	}
}
