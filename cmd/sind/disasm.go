package main

import (
	"fmt"
	"os"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/kristofer/sind/pkg/bytecode"
)

// disasmCommand reflects original_source/src/sdiss.c's standalone
// disassembler (SPEC_FULL.md's "Supplemented Features"): render a raw
// bytecode object's instructions one per line.
var disasmCommand = cli.Command{
	Name:      "disasm",
	Usage:     "disassemble a compiled bytecode object",
	ArgsUsage: "<file>",
	Action:    disasmAction,
}

func disasmAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("sind disasm: expected exactly one <file> argument")
	}
	code, err := os.ReadFile(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	text, err := bytecode.Disassemble(code)
	if err != nil {
		return fmt.Errorf("sind disasm: %w", err)
	}
	fmt.Print(text)
	return nil
}
