// Package config resolves §6.1's command-line surface: cli.v1 flags,
// optionally overlaid with defaults loaded from a TOML file.
//
// Grounded on go-probe's cmd/gprobe/config.go: a tomlSettings value
// configuring field-name normalization and a MissingField hook, a
// loadConfig(file, *cfg) helper decoding into a plain struct, and a
// make*Config function applying CLI flags on top of file-loaded
// defaults (flags win). The flag set itself is §6.1's table, not
// go-probe's — this runtime has no node/probe/metrics config, just the
// handful of fields below.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"
	cli "gopkg.in/urfave/cli.v1"
)

// Config holds every §6.1 CLI flag's resolved value.
type Config struct {
	BootOnly bool   `toml:",omitempty"`
	Itemstore string `toml:",omitempty"`
	Log      string `toml:",omitempty"`
	Input    string `toml:",omitempty"`
	Object   string `toml:",omitempty"`
	Port     int    `toml:",omitempty"`
	Srcroot  string `toml:",omitempty"`
}

// Defaults matches §6.1's stated defaults: input item "input", port
// 4001, srcroot "srcroot".
var Defaults = Config{
	Input:   "input",
	Port:    4001,
	Srcroot: "srcroot",
}

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("config: field %q is not defined in %s", field, rt.String())
	},
}

// Load decodes a TOML file into cfg, matching go-probe's loadConfig:
// a *toml.LineError gets the file name prefixed so a misconfigured
// deployment's error names the offending file.
func Load(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// Flags is the §6.1 cli.v1 flag set, shared by the run command and by
// --help's generated usage text.
var Flags = []cli.Flag{
	cli.StringFlag{Name: "config", Usage: "TOML configuration file"},
	cli.BoolFlag{Name: "bootonly", Usage: "run the boot item, then exit before the event loop"},
	cli.StringFlag{Name: "itemstore", Usage: "itemstore file to load from / persist to (created if absent)"},
	cli.StringFlag{Name: "log", Usage: "redirect stdout/stderr to <file>.log/<file>.err (default stem \"sin\")"},
	cli.StringFlag{Name: "input", Value: Defaults.Input, Usage: "name of the item run by the input pump"},
	cli.StringFlag{Name: "object", Usage: "path to boot bytecode (required)"},
	cli.IntFlag{Name: "port", Value: Defaults.Port, Usage: "listener TCP port"},
	cli.StringFlag{Name: "srcroot", Value: Defaults.Srcroot, Usage: "directory to write reconstructed source per item"},
}

// FromContext resolves a Config from a cli.Context: file-loaded
// defaults (if --config was given) overlaid by any flag explicitly
// set on the command line, matching go-probe's "file first, flags
// win" layering in makeConfigNode.
func FromContext(ctx *cli.Context) (Config, error) {
	cfg := Defaults

	if file := ctx.GlobalString("config"); file != "" {
		if err := Load(file, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}

	if ctx.GlobalIsSet("bootonly") {
		cfg.BootOnly = ctx.GlobalBool("bootonly")
	}
	if ctx.GlobalIsSet("itemstore") {
		cfg.Itemstore = ctx.GlobalString("itemstore")
	}
	if ctx.GlobalIsSet("log") {
		cfg.Log = ctx.GlobalString("log")
	}
	if ctx.GlobalIsSet("input") {
		cfg.Input = ctx.GlobalString("input")
	}
	if ctx.GlobalIsSet("object") {
		cfg.Object = ctx.GlobalString("object")
	}
	if ctx.GlobalIsSet("port") {
		cfg.Port = ctx.GlobalInt("port")
	}
	if ctx.GlobalIsSet("srcroot") {
		cfg.Srcroot = ctx.GlobalString("srcroot")
	}

	if cfg.Object == "" {
		return Config{}, errors.New("config: --object is required")
	}
	return cfg, nil
}
