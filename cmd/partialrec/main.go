// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// partialrec prepares partially-labeled object detection datasets: it writes sharded TFRecord files
// from a JSON lines manifest, inspects and dumps them, writes label maps and evaluates the masked loss.
//
// Usage:
//
//	partialrec [-v=1] <command> [flags] [args...]
//
// Commands: write, dump, inspect, labelmap, loss. Use "partialrec <command> -help" for their flags.
package main

import (
	"flag"
	"fmt"
	"os"

	"k8s.io/klog/v2"
)

type command struct {
	name, usage string
	run         func(args []string) error
}

var commands = []command{
	{"write", "Encode the examples of a manifest into sharded TFRecord files.", runWrite},
	{"dump", "Print the records of TFRecord files.", runDump},
	{"inspect", "Summarize the shards of a dataset: records, sizes, classes and labeled classes.", runInspect},
	{"labelmap", "Convert a CSV of classes to a label map file, or print a label map.", runLabelMap},
	{"loss", "Evaluate the masked sigmoid cross-entropy on constant inputs.", runLoss},
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "Usage: %s [flags] <command> [command flags] [args...]\n\nCommands:\n", os.Args[0])
	for _, cmd := range commands {
		_, _ = fmt.Fprintf(out, "  %-10s %s\n", cmd.name, cmd.usage)
	}
	_, _ = fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing command. See '%s -help'.", os.Args[0])
		os.Exit(1)
	}
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		if err := cmd.run(args[1:]); err != nil {
			klog.Errorf("%s failed: %+v", cmd.name, err)
			os.Exit(1)
		}
		klog.Flush()
		return
	}
	klog.Errorf("Unknown command %q. See '%s -help'.", args[0], os.Args[0])
	os.Exit(1)
}
