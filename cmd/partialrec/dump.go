// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/janpfeifer/must"
	"github.com/partialdata/partialdata/pkg/detection"
	"github.com/partialdata/partialdata/pkg/record"
	"github.com/partialdata/partialdata/pkg/record/shards"
	"github.com/partialdata/partialdata/pkg/support/fsutil"
	"github.com/partialdata/partialdata/pkg/tfexample"
	"github.com/pkg/errors"
)

// errStopDump is used to stop reading records once the limit is reached.
var errStopDump = errors.New("enough records")

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	flagLimit := fs.Int("n", 10, "Maximum number of records to print per file. Use 0 for all.")
	flagRaw := fs.Bool("raw", false, "Print the raw features instead of the decoded example.")
	flagManifest := fs.Bool("manifest", false, "Print the decoded examples as a JSON lines manifest, "+
		"the format taken by the write command.")
	must.M(fs.Parse(args))
	if fs.NArg() == 0 {
		return errors.New("no TFRecord files given")
	}

	for _, path := range fs.Args() {
		path = must.M1(fsutil.ReplaceTildeInDir(path))
		if !*flagManifest {
			fmt.Printf("%s:\n", path)
		}
		count := 0
		err := shards.ReadRecords(path, func(raw []byte) error {
			if *flagLimit > 0 && count >= *flagLimit {
				return errStopDump
			}
			count++
			if *flagRaw {
				rec, err := tfexample.Unmarshal(raw)
				if err != nil {
					return err
				}
				fmt.Printf("record #%d (%d bytes):\n%s\n", count-1, len(raw), rec)
				if unknown := record.UnknownKeys(rec); len(unknown) > 0 {
					fmt.Printf("  keys outside the object detection schema: %v\n", unknown)
				}
				return nil
			}
			example, err := record.DecodeBytes(raw)
			if err != nil {
				return err
			}
			if *flagManifest {
				return detection.WriteManifest(os.Stdout, []*detection.Example{example})
			}
			fmt.Printf("record #%d: image %q (%s, %dx%d, %d bytes) labeled=%s\n", count-1, example.ImageID,
				example.Image.Format, example.Image.Width, example.Image.Height, len(example.Image.Encoded), example.LabeledClasses)
			for ii := range example.NumBoxes() {
				fmt.Printf("  box #%d: %s (%d) x=[%.4f, %.4f] y=[%.4f, %.4f]\n", ii, example.CategoryName[ii], example.CategoryID[ii],
					example.WMin[ii], example.WMax[ii], example.HMin[ii], example.HMax[ii])
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopDump) {
			return err
		}
	}
	return nil
}
