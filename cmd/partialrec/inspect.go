// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/partialdata/partialdata/pkg/detection"
	"github.com/partialdata/partialdata/pkg/labelmap"
	"github.com/partialdata/partialdata/pkg/record/shards"
	"github.com/partialdata/partialdata/pkg/support/fsutil"
	"github.com/partialdata/partialdata/pkg/support/sets"
	"github.com/partialdata/partialdata/pkg/support/xslices"
	"github.com/partialdata/partialdata/ui/commandline"
	"github.com/pkg/errors"
)

// classStats counts boxes and labeled images per class id.
type classStats struct {
	name          string
	numBoxes      int
	numLabeledFor int
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	flagShards := fs.Int("shards", 1, "Number of shards written with the given base path.")
	flagLabelMap := fs.String("label_map", "", "Optional label map, used to name classes without boxes.")
	must.M(fs.Parse(args))
	if fs.NArg() != 1 {
		return errors.New("inspect takes exactly one argument: the base path of the shards")
	}
	base := must.M1(fsutil.ReplaceTildeInDir(fs.Arg(0)))

	perShard, err := shards.ReadShards(base, *flagShards)
	if err != nil {
		return err
	}
	paths := must.M1(shards.ShardFileNames(base, *flagShards))

	fmt.Println(commandline.TitleStyle.Render("Shards"))
	table := commandline.NewPlainTable(lipgloss.Left, lipgloss.Right).Headers("Path", "Records", "Size")
	for ii, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return errors.Wrapf(err, "failed to stat shard %q", path)
		}
		table.Row(path, humanize.Comma(int64(len(perShard[ii]))), humanize.Bytes(uint64(info.Size())))
	}
	fmt.Println(table.Render())

	examples := shards.Interleave(perShard)
	stats := make(map[int64]*classStats)
	statsFor := func(id int64) *classStats {
		s, found := stats[id]
		if !found {
			s = &classStats{}
			stats[id] = s
		}
		return s
	}
	if *flagLabelMap != "" {
		items, err := labelmap.ReadFile(must.M1(fsutil.ReplaceTildeInDir(*flagLabelMap)))
		if err != nil {
			return err
		}
		for _, item := range items {
			statsFor(item.ID).name = item.Name
		}
	}
	var numBoxes, numUnknown, numNoneLabeled, numOutOfScope int
	for _, e := range examples {
		numBoxes += e.NumBoxes()
		for ii, id := range e.CategoryID {
			s := statsFor(id)
			s.numBoxes++
			if s.name == "" {
				s.name = e.CategoryName[ii]
			}
		}
		switch {
		case !e.LabeledClasses.IsKnown():
			numUnknown++
		case e.LabeledClasses.Len() == 0:
			numNoneLabeled++
		}
		for _, id := range e.LabeledClasses.IDs() {
			statsFor(id).numLabeledFor++
		}
		if e.LabeledClasses.IsKnown() {
			boxClasses := sets.MakeWith(e.CategoryID...)
			if len(boxClasses.Sub(sets.MakeWith(e.LabeledClasses.IDs()...))) > 0 {
				numOutOfScope++
			}
		}
	}

	fmt.Println(commandline.TitleStyle.Render("Examples"))
	table = commandline.NewPlainTable(lipgloss.Right, lipgloss.Left)
	table.Row("Images", humanize.Comma(int64(len(examples))))
	table.Row("Boxes", humanize.Comma(int64(numBoxes)))
	table.Row("Labeled classes unknown", humanize.Comma(int64(numUnknown)))
	table.Row("No class labeled", humanize.Comma(int64(numNoneLabeled)))
	table.Row("Images with boxes outside labeled classes", humanize.Comma(int64(numOutOfScope)))
	table.Row("Distinct image formats", fmt.Sprintf("%v", imageFormats(examples)))
	fmt.Println(table.Render())

	fmt.Println(commandline.TitleStyle.Render("Classes"))
	table = commandline.NewPlainTable(lipgloss.Right, lipgloss.Left, lipgloss.Right).
		Headers("Id", "Name", "Boxes", "Labeled in images")
	for _, id := range xslices.SortedKeys(stats) {
		s := stats[id]
		table.Row(fmt.Sprintf("%d", id), s.name, humanize.Comma(int64(s.numBoxes)), humanize.Comma(int64(s.numLabeledFor)))
	}
	fmt.Println(table.Render())
	return nil
}

func imageFormats(examples []*detection.Example) []string {
	formats := sets.Make[string]()
	for _, e := range examples {
		if e.Image != nil {
			formats.Insert(e.Image.Format)
		}
	}
	return sets.Sorted(formats)
}
