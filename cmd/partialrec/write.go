// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/janpfeifer/must"
	"github.com/partialdata/partialdata/pkg/detection"
	"github.com/partialdata/partialdata/pkg/labelmap"
	"github.com/partialdata/partialdata/pkg/record/shards"
	"github.com/partialdata/partialdata/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func runWrite(args []string) error {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	flagManifest := fs.String("manifest", "", "JSON lines file with one detection example per line.")
	flagOutput := fs.String("output", "", "Base path of the output TFRecord files.")
	flagShards := fs.Int("shards", 1, "Number of shards. With 1 shard the output is written to -output itself.")
	flagParallelism := fs.Int("parallelism", runtime.NumCPU(), "Number of examples encoded in parallel. "+
		"0 encodes sequentially and -1 has no limit.")
	flagSkip := fs.Bool("skip_image_errors", false, "Skip examples whose image can't be read, instead of aborting.")
	flagProgress := fs.Bool("progress", true, "Display a progress bar.")
	flagClassesCSV := fs.String("classes_csv", "", "Optional CSV with columns id, name[, display_name] "+
		"used to write a label map.")
	flagLabelMap := fs.String("label_map", "", "Path of the label map written from -classes_csv. "+
		"Defaults to <output>.label_map.pbtxt.")
	must.M(fs.Parse(args))
	if *flagManifest == "" || *flagOutput == "" {
		return errors.New("-manifest and -output are required")
	}

	manifestPath := must.M1(fsutil.ReplaceTildeInDir(*flagManifest))
	outputBase := must.M1(fsutil.ReplaceTildeInDir(*flagOutput))
	examples, err := detection.ReadManifestFile(manifestPath)
	if err != nil {
		return err
	}
	klog.V(1).Infof("Read %d examples from %q", len(examples), manifestPath)
	if paths, err := shards.ShardFileNames(outputBase, *flagShards); err == nil {
		if exists, _ := fsutil.FileExists(paths[0]); exists {
			klog.Warningf("Overwriting existing shards with base %q", outputBase)
		}
	}

	config := shards.DefaultConfig().
		WithParallelism(*flagParallelism).
		WithProgress(*flagProgress)
	if *flagSkip {
		config.WithImageErrorPolicy(shards.Skip)
	}
	report, err := shards.Write(examples, outputBase, *flagShards, config)
	if err != nil {
		return err
	}
	fmt.Println(report)
	for _, skipped := range report.Skipped {
		fmt.Printf("  skipped #%d (image %q): %v\n", skipped.Index, skipped.ImageID, skipped.Err)
	}

	if *flagClassesCSV != "" {
		labelMapPath := *flagLabelMap
		if labelMapPath == "" {
			labelMapPath = outputBase + ".label_map.pbtxt"
		}
		labelMapPath = must.M1(fsutil.ReplaceTildeInDir(labelMapPath))
		f, err := os.Open(must.M1(fsutil.ReplaceTildeInDir(*flagClassesCSV)))
		if err != nil {
			return errors.Wrapf(err, "failed to open classes CSV")
		}
		defer func() { _ = f.Close() }()
		items, err := labelmap.ReadCSV(f)
		if err != nil {
			return err
		}
		if err = labelmap.WriteFile(labelMapPath, items); err != nil {
			return err
		}
		fmt.Printf("Label map with %d classes written to %q\n", len(items), labelMapPath)
	}
	return nil
}
