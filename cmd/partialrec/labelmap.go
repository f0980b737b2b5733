// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/janpfeifer/must"
	"github.com/partialdata/partialdata/pkg/labelmap"
	"github.com/partialdata/partialdata/pkg/support/fsutil"
	"github.com/partialdata/partialdata/ui/commandline"
	"github.com/pkg/errors"
)

func runLabelMap(args []string) error {
	fs := flag.NewFlagSet("labelmap", flag.ExitOnError)
	flagCSV := fs.String("csv", "", "CSV with columns id, name[, display_name] to convert to a label map.")
	flagOutput := fs.String("output", "", "Label map file to write from -csv.")
	must.M(fs.Parse(args))

	var items []labelmap.Item
	switch {
	case *flagCSV != "":
		if *flagOutput == "" {
			return errors.New("-output is required with -csv")
		}
		f, err := os.Open(must.M1(fsutil.ReplaceTildeInDir(*flagCSV)))
		if err != nil {
			return errors.Wrap(err, "failed to open CSV")
		}
		defer func() { _ = f.Close() }()
		if items, err = labelmap.ReadCSV(f); err != nil {
			return err
		}
		output := must.M1(fsutil.ReplaceTildeInDir(*flagOutput))
		if err = labelmap.WriteFile(output, items); err != nil {
			return err
		}
		fmt.Printf("Label map with %d classes written to %q\n", len(items), output)
	case fs.NArg() == 1:
		var err error
		if items, err = labelmap.ReadFile(must.M1(fsutil.ReplaceTildeInDir(fs.Arg(0)))); err != nil {
			return err
		}
	default:
		return errors.New("give either -csv and -output, or a label map file to print")
	}

	table := commandline.NewPlainTable(lipgloss.Right, lipgloss.Left).Headers("Id", "Name", "Display Name")
	for _, item := range items {
		table.Row(fmt.Sprintf("%d", item.ID), item.Name, item.DisplayName)
	}
	fmt.Println(table.Render())
	return nil
}
