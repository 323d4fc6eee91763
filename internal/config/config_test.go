package config

import (
	"flag"
	"os"
	"testing"

	cli "gopkg.in/urfave/cli.v1"
)

func contextWith(t *testing.T, args map[string]string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range Flags {
		f.Apply(set)
	}
	var flat []string
	for name, val := range args {
		flat = append(flat, "-"+name, val)
	}
	if err := set.Parse(flat); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestFromContextAppliesDefaults(t *testing.T) {
	ctx := contextWith(t, map[string]string{"object": "boot.bin"})
	cfg, err := FromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Input != "input" || cfg.Port != 4001 || cfg.Srcroot != "srcroot" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Object != "boot.bin" {
		t.Fatalf("object flag not applied: %+v", cfg)
	}
}

func TestFromContextRequiresObject(t *testing.T) {
	ctx := contextWith(t, map[string]string{})
	if _, err := FromContext(ctx); err == nil {
		t.Fatalf("expected error when --object is missing")
	}
}

func TestFromContextOverridesFlagOverFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.toml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("Port = 5000\nObject = \"from-file.bin\"\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	ctx := contextWith(t, map[string]string{"config": f.Name(), "port": "6000"})
	cfg, err := FromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 6000 {
		t.Fatalf("flag should override file port, got %d", cfg.Port)
	}
	if cfg.Object != "from-file.bin" {
		t.Fatalf("file-provided object should survive, got %q", cfg.Object)
	}
}
