// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"math"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/partialdata/partialdata/pkg/detection"
	"github.com/partialdata/partialdata/pkg/support/xslices"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) backends.Backend {
	t.Helper()
	return backends.MustNew()
}

// pattern returns deterministic values in [-span, span] that vary with every index.
func pattern(batchSize, numAnchors, numClasses int, span float64) [][][]float64 {
	x := xslices.Slice3DWithValue(0.0, batchSize, numAnchors, numClasses)
	for b := range x {
		for a := range x[b] {
			for c := range x[b][a] {
				x[b][a][c] = span * math.Sin(float64(1+b*31+a*7+c*3))
			}
		}
	}
	return x
}

var regressionMask = [][]bool{
	{true, true, false, true, false, false, false},
	{true, false, false, false, false, false, true},
}

func TestMaskedLossRegression(t *testing.T) {
	backend := newBackend(t)
	logits := tensors.FromValue(xslices.Slice3DWithValue[float32](0.3, 2, 3, 7))
	targets := tensors.FromValue(xslices.Slice3DWithValue[float32](0.7, 2, 3, 7))
	weights := tensors.FromValue(xslices.Slice3DWithValue[float32](1, 2, 3, 1))

	// Fixed classes are given too, but the per-example mask takes precedence.
	mask := FixedClasses(0, 3, 5).WithPerExample(regressionMask)
	lossT, err := ComputeLoss(backend, logits, targets, weights, mask)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 7}, lossT.Shape().Dimensions)
	loss := lossT.Value().([][][]float32)

	want := 0.3 - 0.3*0.7 + math.Log1p(math.Exp(-0.3))
	for b := range 2 {
		for a := range 3 {
			for c := range 7 {
				if regressionMask[b][c] {
					assert.Greater(t, loss[b][a][c], float32(0), "loss[%d][%d][%d]", b, a, c)
					assert.InDelta(t, want, float64(loss[b][a][c]), 1e-5)
				} else {
					assert.Equal(t, float32(0), loss[b][a][c], "loss[%d][%d][%d] must be exactly zero", b, a, c)
				}
			}
		}
	}
}

func TestMaskedLossIdentity(t *testing.T) {
	backend := newBackend(t)
	logitsV, targetsV, weightsV := pattern(2, 4, 5, 3), pattern(2, 4, 5, 0.5), pattern(2, 4, 5, 1)
	for b := range targetsV {
		for a := range targetsV[b] {
			for c := range targetsV[b][a] {
				targetsV[b][a][c] += 0.5
				weightsV[b][a][c] = math.Abs(weightsV[b][a][c])
			}
		}
	}
	logits, targets, weights := tensors.FromValue(logitsV), tensors.FromValue(targetsV), tensors.FromValue(weightsV)

	lossT, err := ComputeLoss(backend, logits, targets, weights, NoClassMask())
	require.NoError(t, err)
	plainT, err := ExecOnce(backend, func(logits, targets, weights *Node) *Node {
		return Mul(SigmoidCrossEntropyLogits(logits, targets), weights)
	}, logits, targets, weights)
	require.NoError(t, err)
	assert.Equal(t, plainT.Value(), lossT.Value())

	want, err := ReferenceLoss(logitsV, targetsV, weightsV, NoClassMask())
	require.NoError(t, err)
	got := lossT.Value().([][][]float64)
	for b := range want {
		for a := range want[b] {
			assert.InDeltaSlice(t, want[b][a], got[b][a], 1e-9)
		}
	}

	// Nil weights are all ones.
	lossT, err = ComputeLoss(backend, logits, targets, nil, NoClassMask())
	require.NoError(t, err)
	want, err = ReferenceLoss(logitsV, targetsV, nil, NoClassMask())
	require.NoError(t, err)
	got = lossT.Value().([][][]float64)
	assert.InDeltaSlice(t, want[1][3], got[1][3], 1e-9)
}

func TestMaskedLossFixedClasses(t *testing.T) {
	backend := newBackend(t)
	logitsV, targetsV := pattern(3, 2, 6, 2), pattern(3, 2, 6, 0.5)
	weightsV := xslices.Slice3DWithValue(2.0, 3, 2, 1)
	mask := FixedClasses(1, 4)
	lossT, err := ComputeLoss(backend, tensors.FromValue(logitsV), tensors.FromValue(targetsV), tensors.FromValue(weightsV), mask)
	require.NoError(t, err)
	got := lossT.Value().([][][]float64)
	want, err := ReferenceLoss(logitsV, targetsV, weightsV, mask)
	require.NoError(t, err)
	for b := range got {
		for a := range got[b] {
			assert.InDeltaSlice(t, want[b][a], got[b][a], 1e-9)
			for c, v := range got[b][a] {
				if c == 1 || c == 4 {
					assert.NotZero(t, v)
				} else {
					assert.Zero(t, v)
				}
			}
		}
	}
}

func TestComputeLossErrors(t *testing.T) {
	backend := newBackend(t)
	logits := tensors.FromValue(xslices.Slice3DWithValue[float32](0.3, 2, 3, 7))
	targets := tensors.FromValue(xslices.Slice3DWithValue[float32](0.7, 2, 3, 7))

	_, err := ComputeLoss(backend, logits, targets, nil, PerExampleClasses(regressionMask[:1]))
	assert.True(t, errors.Is(err, detection.ErrMaskResolution), "got %v", err)
	_, err = ComputeLoss(backend, logits, targets, nil, PerExampleClasses([][]bool{{true}, {false}}))
	assert.True(t, errors.Is(err, detection.ErrMaskResolution), "got %v", err)
	_, err = ComputeLoss(backend, logits, targets, nil, FixedClasses(0, 7))
	assert.True(t, errors.Is(err, detection.ErrMaskResolution), "got %v", err)

	_, err = ComputeLoss(backend, logits, tensors.FromValue(xslices.Slice3DWithValue[float32](0.7, 2, 3, 6)), nil, NoClassMask())
	assert.True(t, errors.Is(err, detection.ErrSchema), "got %v", err)
	_, err = ComputeLoss(backend, logits, targets, tensors.FromValue(xslices.Slice3DWithValue[float32](1, 2, 3, 2)), NoClassMask())
	assert.True(t, errors.Is(err, detection.ErrSchema), "got %v", err)
	_, err = ComputeLoss(backend, tensors.FromValue([][]float32{{0.1}}), targets, nil, NoClassMask())
	assert.True(t, errors.Is(err, detection.ErrSchema), "got %v", err)

	// Empty batches are rejected before the mask is resolved.
	empty := tensors.FromFlatDataAndDimensions([]float32{}, 0, 3, 7)
	_, err = ComputeLoss(backend, empty, empty, nil, PerExampleClasses([][]bool{}))
	assert.True(t, errors.Is(err, detection.ErrSchema), "got %v", err)
	noAnchors := tensors.FromFlatDataAndDimensions([]float32{}, 2, 0, 7)
	_, err = ComputeLoss(backend, noAnchors, noAnchors, nil, NoClassMask())
	assert.True(t, errors.Is(err, detection.ErrSchema), "got %v", err)
}

func TestMakeMaskedSigmoidLoss(t *testing.T) {
	backend := newBackend(t)
	examples := []*detection.Example{
		{ImageID: "a", LabeledClasses: detection.KnownClasses(1, 2, 4)},
		{ImageID: "b", LabeledClasses: detection.KnownClasses(1, 7)},
	}
	// COCO style ids start at 1.
	maskT, err := detection.BatchClassMask(examples, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, regressionMask, maskT.Value())

	logits := tensors.FromValue(xslices.Slice3DWithValue[float32](0.3, 2, 3, 7))
	targets := tensors.FromValue(xslices.Slice3DWithValue[float32](0.7, 2, 3, 7))
	weights := tensors.FromValue(xslices.Slice3DWithValue[float32](0.5, 2, 3, 7))
	lossFn := MakeMaskedSigmoidLoss([]int{0, 3, 5})

	lossT, err := ExecOnce(backend, func(logits, targets, weights, mask *Node) *Node {
		return lossFn([]*Node{targets, weights, mask}, []*Node{logits})
	}, logits, targets, weights, maskT)
	require.NoError(t, err)
	want, err := ComputeLoss(backend, logits, targets, weights, PerExampleClasses(regressionMask))
	require.NoError(t, err)
	assert.Equal(t, want.Value(), lossT.Value())

	// Without the per-example mask, the fixed classes are used, and weights default to 1.
	lossT, err = ExecOnce(backend, func(logits, targets *Node) *Node {
		return lossFn([]*Node{targets}, []*Node{logits})
	}, logits, targets)
	require.NoError(t, err)
	want, err = ComputeLoss(backend, logits, targets, nil, FixedClasses(0, 3, 5))
	require.NoError(t, err)
	assert.Equal(t, want.Value(), lossT.Value())

	// Extra labels of unknown use fail.
	var execErr error
	panicErr := exceptions.TryCatch[error](func() {
		_, execErr = ExecOnce(backend, func(logits, targets *Node) *Node {
			return lossFn([]*Node{targets, ConstAs(targets, 1.0)}, []*Node{logits})
		}, logits, targets)
	})
	assert.True(t, panicErr != nil || execErr != nil, "expected an error for an unknown extra label")
}

func TestReferenceLossPrecedence(t *testing.T) {
	logits, targets := xslices.Slice3DWithValue(0.3, 2, 1, 7), xslices.Slice3DWithValue(0.7, 2, 1, 7)
	both, err := ReferenceLoss(logits, targets, nil, FixedClasses(0, 3, 5).WithPerExample(regressionMask))
	require.NoError(t, err)
	perExample, err := ReferenceLoss(logits, targets, nil, PerExampleClasses(regressionMask))
	require.NoError(t, err)
	assert.Equal(t, perExample, both)
	assert.Zero(t, both[0][0][5])
	assert.NotZero(t, both[1][0][6])
}

func TestClassMaskString(t *testing.T) {
	assert.Equal(t, "no class mask", NoClassMask().String())
	assert.True(t, NoClassMask().IsIdentity())
	assert.True(t, PerExampleClasses(nil).IsIdentity())
	assert.False(t, FixedClasses().IsIdentity())
	assert.Equal(t, "fixed classes [0 3]", FixedClasses(0, 3).String())
	assert.Contains(t, FixedClasses(1).WithPerExample(regressionMask).String(), "overriding")
}
