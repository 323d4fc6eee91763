package main

import (
	"fmt"
	"os"
	"strings"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/kristofer/sind/internal/config"
)

func main() {
	app := cli.NewApp()
	app.Name = "sind"
	app.Usage = "the itemstore runtime: boot a bytecode object and serve its itemstore over telnet"
	app.Flags = config.Flags
	app.Action = runAction
	app.Commands = []cli.Command{
		itemtreeCommand,
		disasmCommand,
	}

	args := append([]string{os.Args[0]}, resolveOptionalLogArg(os.Args[1:])...)
	if err := app.Run(args); err != nil {
		fmt.Fprintln(os.Stderr, "sind:", err)
		os.Exit(1)
	}
}

// resolveOptionalLogArg reduces --log's optional argument (§6.1: "--log
// [<file>]") to a plain required-value flag cli.v1 can parse, the way
// original_source/src/sin.c's `case 'l'` handles getopt_long's "l::"
// optarg: a value already attached via "=" is left untouched; a bare
// "--log" followed by a token that isn't itself another flag consumes
// that token as the stem; a bare "--log" with nothing usable after it
// (end of args, or followed by another flag) defaults to stem "sin".
func resolveOptionalLogArg(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a != "--log" && a != "-log" {
			out = append(out, a)
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, a+"="+args[i+1])
			i++
			continue
		}
		out = append(out, a+"=sin")
	}
	return out
}

func runAction(ctx *cli.Context) error {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}
	return runServer(cfg)
}
