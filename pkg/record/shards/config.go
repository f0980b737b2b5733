// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shards

import (
	"runtime"

	"github.com/partialdata/partialdata/pkg/record"
)

// ImageErrorPolicy defines what Write does with examples whose image can't be read or decoded.
type ImageErrorPolicy int

const (
	// Abort the whole batch on the first image error. This is the default.
	Abort ImageErrorPolicy = iota

	// Skip the example, log a warning and report it in Report.Skipped.
	Skip
)

// String implements fmt.Stringer.
func (p ImageErrorPolicy) String() string {
	if p == Skip {
		return "skip"
	}
	return "abort"
}

// Config for Write. Create it with DefaultConfig and adjust it with the With* methods.
type Config struct {
	// Parallelism is the maximum number of examples encoded concurrently.
	// 0 encodes inline (sequentially), and -1 means unlimited.
	Parallelism int

	// OnImageError defines what to do when an image can't be read. Schema errors always abort.
	OnImageError ImageErrorPolicy

	// ShowProgress displays a progress bar on the terminal while writing.
	ShowProgress bool

	// Encoder used to convert the examples. If nil, the default record.Encoder is used.
	Encoder *record.Encoder
}

// DefaultConfig returns a Config that encodes with runtime.NumCPU() workers and aborts on image errors.
func DefaultConfig() *Config {
	return &Config{Parallelism: runtime.NumCPU()}
}

// WithParallelism sets Config.Parallelism. It returns the Config itself, so calls can be chained.
func (c *Config) WithParallelism(parallelism int) *Config {
	c.Parallelism = parallelism
	return c
}

// WithImageErrorPolicy sets Config.OnImageError.
func (c *Config) WithImageErrorPolicy(policy ImageErrorPolicy) *Config {
	c.OnImageError = policy
	return c
}

// WithProgress sets Config.ShowProgress.
func (c *Config) WithProgress(show bool) *Config {
	c.ShowProgress = show
	return c
}

// WithEncoder sets the Encoder used to convert the examples, e.g.: to read images from another file system.
func (c *Config) WithEncoder(enc *record.Encoder) *Config {
	c.Encoder = enc
	return c
}
