package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/kristofer/sind/pkg/item"
)

// itemtreeCommand is the offline itemstore inspector of SPEC_FULL.md's
// Domain Stack section: loads a persisted itemstore file and renders
// every item's path/type/payload as a table, reusing §4.2.4's reader
// (pkg/item.Load) without booting a VM.
var itemtreeCommand = cli.Command{
	Name:      "itemtree",
	Usage:     "render an itemstore file's contents as a table",
	ArgsUsage: "<file>",
	Action:    itemtreeAction,
}

func itemtreeAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("sind itemtree: expected exactly one <file> argument")
	}
	f, err := os.Open(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()

	store, err := item.Load(f)
	if err != nil {
		return fmt.Errorf("sind itemtree: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Path", "Type", "Payload"})
	table.SetAutoWrapText(false)

	store.Walk(func(fqName string, it *item.Item) {
		if it.IsCode {
			table.Append([]string{fqName, "code", fmt.Sprintf("%d bytes", len(it.Code))})
			return
		}
		table.Append([]string{fqName, "value", it.Val.String()})
	})

	table.Render()
	return nil
}
