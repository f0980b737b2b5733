// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_Limit(t *testing.T) {
	pool := New().SetMaxParallelism(3)
	var running, maxRunning, count atomic.Int32
	for range 20 {
		pool.WaitToStart(func() {
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			count.Add(1)
		})
	}
	pool.Wait()
	assert.Equal(t, int32(20), count.Load())
	assert.LessOrEqual(t, maxRunning.Load(), int32(3))
	assert.Equal(t, int32(0), running.Load())
}

func TestPool_Inline(t *testing.T) {
	pool := New().SetMaxParallelism(0)
	assert.False(t, pool.IsEnabled())
	var count int
	for range 5 {
		pool.WaitToStart(func() { count++ })
	}
	pool.Wait()
	assert.Equal(t, 5, count)
}

func TestPool_Unlimited(t *testing.T) {
	pool := New().SetMaxParallelism(-1)
	assert.True(t, pool.IsUnlimited())
	var count atomic.Int32
	for range 50 {
		pool.WaitToStart(func() { count.Add(1) })
	}
	pool.Wait()
	assert.Equal(t, int32(50), count.Load())
}
