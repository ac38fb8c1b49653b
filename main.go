package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alecthomas/repr"
	"github.com/coreos/pkg/capnslog"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
	"github.com/ztrue/tracerr"

	"github.com/pontaoski/microc/config"
	"github.com/pontaoski/microc/frontend"
	"github.com/pontaoski/microc/llvmgen"
	"github.com/pontaoski/microc/lower"
)

var plog = capnslog.NewPackageLogger("github.com/pontaoski/microc", "microc")

// loadConfig reads the file named by --config, or microc.yaml when it exists
// in the working directory.
func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.String("config")
	if path == "" {
		if _, err := os.Stat(config.FileName); err != nil {
			return config.Default(), nil
		}
		path = config.FileName
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, tracerr.Wrap(err)
	}
	return cfg, nil
}

func setupLogging(cfg config.Config, override string) error {
	level := cfg.LogLevel
	if override != "" {
		level = override
	}
	l, err := capnslog.ParseLevel(strings.ToUpper(level))
	if err != nil {
		return tracerr.Errorf("bad log level %q: %v", level, err)
	}
	capnslog.SetFormatter(capnslog.NewPrettyFormatter(os.Stderr, false))
	capnslog.SetGlobalLogLevel(l)
	return nil
}

// compile parses and lowers the file named by the first argument.
func compile(c *cli.Context) (*lower.Result, config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, cfg, err
	}
	if err := setupLogging(cfg, c.String("log-level")); err != nil {
		return nil, cfg, err
	}

	file := c.Args().First()
	if file == "" {
		return nil, cfg, tracerr.New("no source file provided")
	}
	src, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, cfg, tracerr.Wrap(err)
	}

	root, err := frontend.Parse(file, string(src))
	if err != nil {
		return nil, cfg, err
	}
	if c.Bool("dump") {
		repr.Println(root, repr.Indent("  "), repr.OmitEmpty(true))
	}

	res, err := lower.Lower(root, lower.OptionsFromConfig(cfg))
	if err != nil {
		return nil, cfg, err
	}
	plog.Infof("%s: %d instructions", file, len(res.Code))
	return res, cfg, nil
}

// output writes data to --output, or to stdout when it is unset.
func output(c *cli.Context, data string) error {
	out := c.String("output")
	if out == "" {
		fmt.Print(data)
		return nil
	}
	if err := ioutil.WriteFile(out, []byte(data), 0644); err != nil {
		return tracerr.Wrap(err)
	}
	pterm.Success.Printfln("wrote %s", out)
	return nil
}

func main() {
	var trace bool

	compileFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
		},
		&cli.BoolFlag{
			Name:  "dump",
			Usage: "print the typed tree before lowering",
		},
	}

	app := &cli.App{
		Name:  "microc",
		Usage: "MicroC pointer lowering compiler",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "settings file (.yaml, .yml or .toml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
			&cli.BoolFlag{
				Name:        "trace",
				Usage:       "print stack traces with errors",
				Destination: &trace,
			},
		},
		ExitErrHandler: func(context *cli.Context, err error) {
			if err == nil {
				return
			}
			if trace {
				tracerr.PrintSourceColor(err)
			} else {
				pterm.Error.Println(err)
			}
			os.Exit(1)
		},
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "write a default " + config.FileName,
				ArgsUsage: "[module]",
				Action: func(c *cli.Context) error {
					cfg := config.Default()
					if name := c.Args().First(); name != "" {
						cfg.Module = name
					} else if wd, err := os.Getwd(); err == nil {
						cfg.Module = filepath.Base(wd)
					}
					if err := config.Save(config.FileName, cfg); err != nil {
						return tracerr.Wrap(err)
					}
					pterm.Success.Printfln("wrote %s for module %s", config.FileName, cfg.Module)
					return nil
				},
			},
			{
				Name:      "lower",
				Usage:     "lower a source file to virtual-register assembly",
				ArgsUsage: "FILE",
				Flags:     compileFlags,
				Action: func(c *cli.Context) error {
					res, _, err := compile(c)
					if err != nil {
						return err
					}
					return output(c, res.Code.String())
				},
			},
			{
				Name:      "llvm",
				Usage:     "translate a source file to LLVM IR",
				ArgsUsage: "FILE",
				Flags:     compileFlags,
				Action: func(c *cli.Context) error {
					res, cfg, err := compile(c)
					if err != nil {
						return err
					}
					mod, err := llvmgen.Translate(cfg.Module, res, lower.OptionsFromConfig(cfg))
					if err != nil {
						return err
					}
					return output(c, mod.String())
				},
			},
			{
				Name:      "typeinfo",
				Usage:     "show the resolved type of every register and slot",
				ArgsUsage: "FILE",
				Flags: append(compileFlags, &cli.BoolFlag{
					Name:  "yaml",
					Usage: "print YAML instead of a table",
				}),
				Action: func(c *cli.Context) error {
					res, _, err := compile(c)
					if err != nil {
						return err
					}
					info := llvmgen.NewTypeInfo(res)
					if c.Bool("yaml") {
						data, err := info.Marshal()
						if err != nil {
							return tracerr.Wrap(err)
						}
						return output(c, string(data))
					}
					return pterm.DefaultTable.WithHasHeader().WithData(typeTable(info)).Render()
				},
			},
		},
	}
	app.Run(os.Args)
}

func typeTable(info llvmgen.TypeInfo) pterm.TableData {
	data := pterm.TableData{{"location", "kind", "type"}}
	add := func(kind string, m map[string]string) {
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			data = append(data, []string{name, kind, m[name]})
		}
	}
	add("register", info.Registers)
	add("slot", info.Slots)
	return data
}
