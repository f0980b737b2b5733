// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shards writes detection examples to sharded TFRecord files, and reads them back.
//
// Example i of the input goes to shard i % numShards, and examples in each shard keep the input order.
// Encoding runs in parallel, but each shard has a single writer appending in index order, so the
// output is byte-identical across runs.
package shards

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/partialdata/partialdata/internal/workerspool"
	"github.com/partialdata/partialdata/pkg/detection"
	"github.com/partialdata/partialdata/pkg/record"
	"github.com/partialdata/partialdata/pkg/support/fsutil"
	"github.com/partialdata/partialdata/pkg/tfrecord"
	"github.com/partialdata/partialdata/ui/commandline"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Report summarizes a Write.
type Report struct {
	NumExamples int
	NumWritten  int
	Skipped     []SkippedExample
	Shards      []ShardReport
}

// SkippedExample is an example dropped by the Skip policy.
type SkippedExample struct {
	Index   int
	ImageID string
	Err     error
}

// ShardReport describes one written shard file.
type ShardReport struct {
	Path       string
	NumRecords int
	NumBytes   int64
}

// String implements fmt.Stringer.
func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d examples written to %d shard(s)", r.NumWritten, r.NumExamples, len(r.Shards))
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&sb, ", %d skipped", len(r.Skipped))
	}
	for _, shard := range r.Shards {
		fmt.Fprintf(&sb, "\n  %s: %d records, %s", shard.Path, shard.NumRecords, humanize.Bytes(uint64(shard.NumBytes)))
	}
	return sb.String()
}

// WriteWithDefaults is like Write with DefaultConfig.
func WriteWithDefaults(examples []*detection.Example, base string, numShards int) (*Report, error) {
	return Write(examples, base, numShards, DefaultConfig())
}

// encodedExample holds the result of encoding one example. done is closed when data or err is set.
type encodedExample struct {
	data []byte
	err  error
	done chan struct{}
}

// Write encodes the examples and writes them to numShards TFRecord files named by ShardFileNames(base, numShards).
//
// Errors wrapping detection.ErrSchema abort the whole batch. Errors wrapping detection.ErrImageRead
// abort too, unless config.OnImageError is Skip. On abort, the shard files already created are left
// as they are, possibly incomplete.
//
// If config is nil, DefaultConfig is used.
func Write(examples []*detection.Example, base string, numShards int, config *Config) (*Report, error) {
	if config == nil {
		config = DefaultConfig()
	}
	paths, err := ShardFileNames(base, numShards)
	if err != nil {
		return nil, err
	}
	if err = fsutil.EnsureParentDir(base); err != nil {
		return nil, err
	}
	enc := config.Encoder
	if enc == nil {
		enc = &record.Encoder{}
	}

	writers := make([]*tfrecord.Writer, numShards)
	defer func() {
		for _, w := range writers {
			if w != nil {
				_ = w.Close()
			}
		}
	}()
	for ii, path := range paths {
		writers[ii], err = tfrecord.Create(path)
		if err != nil {
			return nil, err
		}
	}

	var pBar *commandline.ProgressBar
	if config.ShowProgress {
		pBar = commandline.NewProgressBar(len(examples), "Writing")
		defer pBar.Finish()
	}

	results := make([]encodedExample, len(examples))
	for ii := range results {
		results[ii].done = make(chan struct{})
	}
	report := &Report{NumExamples: len(examples)}
	var reportMu sync.Mutex

	g, ctx := errgroup.WithContext(context.Background())
	pool := workerspool.New().SetMaxParallelism(config.Parallelism)
	g.Go(func() error {
		for ii, example := range examples {
			if ctx.Err() != nil {
				break
			}
			pool.WaitToStart(func() {
				result := &results[ii]
				result.data, result.err = enc.EncodeBytes(example)
				close(result.done)
			})
		}
		pool.Wait()
		return nil
	})
	for shardIdx := range numShards {
		g.Go(func() error {
			w := writers[shardIdx]
			for ii := shardIdx; ii < len(examples); ii += numShards {
				result := &results[ii]
				select {
				case <-result.done:
				case <-ctx.Done():
					return ctx.Err()
				}
				if pBar != nil {
					pBar.Add(1)
				}
				if result.err != nil {
					if config.OnImageError == Skip && errors.Is(result.err, detection.ErrImageRead) {
						klog.Warningf("Skipping example #%d (image %q): %v", ii, examples[ii].ImageID, result.err)
						reportMu.Lock()
						report.Skipped = append(report.Skipped, SkippedExample{Index: ii, ImageID: examples[ii].ImageID, Err: result.err})
						reportMu.Unlock()
						continue
					}
					return errors.WithMessagef(result.err, "failed to encode example #%d", ii)
				}
				if err := w.Write(result.data); err != nil {
					return errors.WithMessagef(err, "shard %q", paths[shardIdx])
				}
				result.data = nil
			}
			return w.Flush()
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	for ii, w := range writers {
		report.Shards = append(report.Shards, ShardReport{Path: paths[ii], NumRecords: w.NumRecords(), NumBytes: w.NumBytes()})
		report.NumWritten += w.NumRecords()
		if err = w.Close(); err != nil {
			return nil, err
		}
		writers[ii] = nil
	}
	// Skipped examples are appended by several shard writers: sort them back to input order.
	slices.SortFunc(report.Skipped, func(a, b SkippedExample) int { return cmp.Compare(a.Index, b.Index) })
	klog.V(1).Infof("Wrote %d examples to %d shard(s) with base %q", report.NumWritten, numShards, base)
	return report, nil
}
