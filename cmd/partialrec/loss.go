// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/partialdata/partialdata/pkg/losses"
	"github.com/partialdata/partialdata/pkg/support/xslices"
	"github.com/partialdata/partialdata/ui/commandline"
	"github.com/pkg/errors"
)

func runLoss(args []string) error {
	fs := flag.NewFlagSet("loss", flag.ExitOnError)
	flagBatch := fs.Int("batch", 2, "Batch size.")
	flagAnchors := fs.Int("anchors", 3, "Number of anchors per example.")
	flagClasses := fs.Int("classes", 7, "Number of classes.")
	flagLogit := fs.Float64("logit", 0.3, "Value of all logits.")
	flagTarget := fs.Float64("target", 0.7, "Value of all targets.")
	flagIndices := xslices.FlagVar(fs, "indices", nil, "Comma-separated fixed class indices in scope, e.g.: \"0,3,5\".",
		strconv.Atoi)
	flagMask := fs.String("mask", "", "Per-example class mask: one row of 0s and 1s per example, "+
		"separated by \";\", e.g.: \"1101000;1000001\". Takes precedence over -indices.")
	must.M(fs.Parse(args))

	mask := losses.NoClassMask()
	if *flagIndices != nil {
		mask = losses.FixedClasses(*flagIndices...)
	}
	if *flagMask != "" {
		perExample, err := parseMask(*flagMask)
		if err != nil {
			return err
		}
		mask = mask.WithPerExample(perExample)
	}

	b, a, c := *flagBatch, *flagAnchors, *flagClasses
	logits := xslices.Slice3DWithValue(*flagLogit, b, a, c)
	targets := xslices.Slice3DWithValue(*flagTarget, b, a, c)
	backend := backends.MustNew()
	defer backend.Finalize()
	lossT, err := losses.ComputeLoss(backend, tensors.FromValue(logits), tensors.FromValue(targets), nil, mask)
	if err != nil {
		return err
	}
	reference, err := losses.ReferenceLoss(logits, targets, nil, mask)
	if err != nil {
		return err
	}
	loss := lossT.Value().([][][]float64)

	fmt.Println(commandline.TitleStyle.Render(fmt.Sprintf("Loss of anchor 0, %s", mask)))
	headers := []string{"Example"}
	for ii := range c {
		headers = append(headers, fmt.Sprintf("class %d", ii))
	}
	table := commandline.NewPlainTable(lipgloss.Right).Headers(headers...)
	var maxDiff float64
	for ii := range b {
		row := []string{fmt.Sprintf("#%d", ii)}
		for jj := range c {
			row = append(row, fmt.Sprintf("%.5f", loss[ii][0][jj]))
			for kk := range a {
				maxDiff = max(maxDiff, math.Abs(loss[ii][kk][jj]-reference[ii][kk][jj]))
			}
		}
		table.Row(row...)
	}
	fmt.Println(table.Render())
	fmt.Printf("Backend %q, max difference to the reference implementation: %g\n", backend.Name(), maxDiff)
	return nil
}

func parseMask(s string) ([][]bool, error) {
	var mask [][]bool
	for _, rowStr := range strings.Split(s, ";") {
		rowStr = strings.TrimSpace(rowStr)
		row := make([]bool, 0, len(rowStr))
		for _, r := range rowStr {
			switch r {
			case '0':
				row = append(row, false)
			case '1':
				row = append(row, true)
			default:
				return nil, errors.Errorf("invalid mask row %q: only 0s and 1s are accepted", rowStr)
			}
		}
		mask = append(mask, row)
	}
	return mask, nil
}
