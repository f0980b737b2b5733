// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shards

import (
	"github.com/partialdata/partialdata/pkg/detection"
	"github.com/partialdata/partialdata/pkg/record"
	"github.com/partialdata/partialdata/pkg/tfrecord"
	"github.com/pkg/errors"
)

// ReadRecords calls fn with each serialized record of the TFRecord file at path, in order.
// It stops at the first error returned by fn, or at a corrupted record.
func ReadRecords(path string, fn func(raw []byte) error) error {
	r, err := tfrecord.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	var count int
	err = r.ForEach(func(raw []byte) error {
		count++
		return fn(raw)
	})
	if err != nil {
		return errors.WithMessagef(err, "reading record #%d of %q", count, path)
	}
	return nil
}

// ReadExamples reads and decodes all the examples in the given TFRecord files, in order.
func ReadExamples(paths ...string) ([]*detection.Example, error) {
	var examples []*detection.Example
	for _, path := range paths {
		err := ReadRecords(path, func(raw []byte) error {
			example, err := record.DecodeBytes(raw)
			if err != nil {
				return err
			}
			examples = append(examples, example)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return examples, nil
}

// ReadShards reads the numShards shards written by Write with the given base, and returns the examples
// of each shard. Use Interleave to restore the original order.
func ReadShards(base string, numShards int) ([][]*detection.Example, error) {
	paths, err := ShardFileNames(base, numShards)
	if err != nil {
		return nil, err
	}
	perShard := make([][]*detection.Example, numShards)
	for ii, path := range paths {
		perShard[ii], err = ReadExamples(path)
		if err != nil {
			return nil, err
		}
	}
	return perShard, nil
}

// Interleave merges the examples of each shard back into the order given to Write, by taking one
// example of each shard in turn. The order is exact if no example was skipped.
func Interleave(perShard [][]*detection.Example) []*detection.Example {
	var total, longest int
	for _, shard := range perShard {
		total += len(shard)
		longest = max(longest, len(shard))
	}
	examples := make([]*detection.Example, 0, total)
	for pos := range longest {
		for _, shard := range perShard {
			if pos < len(shard) {
				examples = append(examples, shard[pos])
			}
		}
	}
	return examples
}
