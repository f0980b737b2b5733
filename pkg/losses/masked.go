// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package losses implements the class-masked sigmoid cross-entropy used to train object detectors on
// partially-labeled data: the loss of classes not labeled for an image is suppressed, so they are
// not trained as negatives.
//
// MaskedSigmoidCrossEntropy builds the loss in a computation graph, MakeMaskedSigmoidLoss adapts it to the
// `func(labels, predictions []*Node) *Node` loss signature used by trainers, and ComputeLoss
// evaluates it eagerly on tensors, returning errors instead of panicking.
package losses

import (
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"k8s.io/klog/v2"
)

// LossFn is the loss signature used by trainers: labels come from the dataset and predictions from the model.
// The returned loss is not reduced.
type LossFn func(labels, predictions []*Node) *Node

// SigmoidCrossEntropyLogits returns the element-wise cross-entropy between targets and `sigmoid(logits)`,
// using the numerically stable form `max(x, 0) - x*z + log(1 + exp(-|x|))`.
//
// targets is converted to the logits dtype, and both must have the same shape.
func SigmoidCrossEntropyLogits(logits, targets *Node) *Node {
	targets = ConvertDType(targets, logits.DType())
	if !logits.Shape().Equal(targets.Shape()) {
		Panicf("logits (%s) and targets (%s) must have the same shape", logits.Shape(), targets.Shape())
	}
	logPart := Log1P(Exp(Neg(Abs(logits))))
	prodPart := Mul(logits, targets)
	maxPart := Max(logits, ZerosLike(logits))
	return Add(Sub(maxPart, prodPart), logPart)
}

// MaskedSigmoidCrossEntropy returns the weighted sigmoid cross-entropy per batch element, anchor and class,
// with the entries of masked-out classes set to exactly zero. It is not reduced.
//
//   - logits and targets: shaped `[batch_size, num_anchors, num_classes]`.
//   - weights: shaped `[batch_size, num_anchors, num_classes]` or `[batch_size, num_anchors, 1]`, in which case
//     it is broadcast across classes. Converted to the logits dtype.
//   - classMask: nil (no class is masked), `[batch_size, num_classes]` for a per-example mask, or
//     `[1, num_classes]` / `[num_classes]` for a mask shared by the whole batch (see FixedClassMask).
//     It can be of any dtype: non-zero values (or true) mean the class is in scope.
//
// It panics if shapes are not compatible.
func MaskedSigmoidCrossEntropy(logits, targets, weights, classMask *Node) *Node {
	if logits.Rank() != 3 {
		Panicf("logits must be shaped [batch_size, num_anchors, num_classes], got %s", logits.Shape())
	}
	dims := logits.Shape().Dimensions
	batchSize, numAnchors, numClasses := dims[0], dims[1], dims[2]
	losses := SigmoidCrossEntropyLogits(logits, targets)

	if weights == nil {
		Panicf("weights must be given, use OnesLike(logits) for unweighted losses")
	}
	weights = ConvertDType(weights, logits.DType())
	if weights.Rank() != 3 || weights.Shape().Dimensions[0] != batchSize || weights.Shape().Dimensions[1] != numAnchors ||
		(weights.Shape().Dimensions[2] != numClasses && weights.Shape().Dimensions[2] != 1) {
		Panicf("weights shape %s incompatible with logits shape %s: it must be [%d, %d, %d] or [%d, %d, 1]",
			weights.Shape(), logits.Shape(), batchSize, numAnchors, numClasses, batchSize, numAnchors)
	}
	weights = BroadcastToDims(weights, batchSize, numAnchors, numClasses)
	if classMask == nil {
		return Mul(losses, weights)
	}

	mask := resolveClassMask(classMask, batchSize, numAnchors, numClasses)
	zeros := ZerosLike(losses)
	effectiveWeights := Where(mask, weights, zeros)
	return Where(mask, Mul(losses, effectiveWeights), zeros)
}

// resolveClassMask converts the class mask to a Bool node shaped `[batch_size, num_anchors, num_classes]`.
func resolveClassMask(classMask *Node, batchSize, numAnchors, numClasses int) *Node {
	if classMask.DType() != dtypes.Bool {
		classMask = NotEqual(classMask, ZerosLike(classMask))
	}
	maskDims := classMask.Shape().Dimensions
	switch {
	case classMask.Rank() == 1 && maskDims[0] == numClasses:
		classMask = Reshape(classMask, 1, 1, numClasses)
	case classMask.Rank() == 2 && (maskDims[0] == batchSize || maskDims[0] == 1) && maskDims[1] == numClasses:
		classMask = InsertAxes(classMask, 1)
	default:
		Panicf("class mask shape %s incompatible with %d examples and %d classes: it must be [%d, %d], [1, %d] or [%d]",
			classMask.Shape(), batchSize, numClasses, batchSize, numClasses, numClasses, numClasses)
	}
	return BroadcastToDims(classMask, batchSize, numAnchors, numClasses)
}

// FixedClassMask returns a Bool constant shaped `[1, numClasses]`, true at the given class indices.
// It can be used as the class mask of MaskedSigmoidCrossEntropy to keep only a subset of the classes
// in scope for the whole batch.
//
// It panics if an index is out of range.
func FixedClassMask(g *Graph, numClasses int, indices []int) *Node {
	row := make([]bool, numClasses)
	for _, idx := range indices {
		if idx < 0 || idx >= numClasses {
			Panicf("class index %d out of range for %d classes", idx, numClasses)
		}
		row[idx] = true
	}
	return Const(g, [][]bool{row})
}

// MakeMaskedSigmoidLoss returns a LossFn computing MaskedSigmoidCrossEntropy(predictions[0], labels[0], ...).
//
// classIndices, if not nil, is the fixed subset of classes in scope for every example.
//
// Extra labels are recognized by their shape: a float tensor shaped like labels[0], or with the last
// axis of dimension 1, holds the weights, and a Bool tensor shaped `[batch_size, num_classes]` is a
// per-example class mask. If a per-example mask is given, it takes precedence and classIndices is ignored.
// Without weights, every entry has weight 1.
func MakeMaskedSigmoidLoss(classIndices []int) LossFn {
	return func(labels, predictions []*Node) *Node {
		logits := predictions[0]
		targets := labels[0]
		if logits.Rank() != 3 {
			Panicf("predictions[0] must be shaped [batch_size, num_anchors, num_classes], got %s", logits.Shape())
		}
		dims := logits.Shape().Dimensions
		var weights, classMask *Node
		for ii, extra := range labels[1:] {
			extraDims := extra.Shape().Dimensions
			switch {
			case weights == nil && extra.DType().IsFloat() && extra.Rank() == 3 &&
				extraDims[0] == dims[0] && extraDims[1] == dims[1] && (extraDims[2] == dims[2] || extraDims[2] == 1):
				weights = extra
			case classMask == nil && extra.DType() == dtypes.Bool && extra.Rank() == 2 &&
				extraDims[0] == dims[0] && extraDims[1] == dims[2]:
				classMask = extra
			default:
				Panicf("labels[%d].shape=%s has unknown use: weights must be shaped [%d, %d, %d] or [%d, %d, 1], "+
					"and the per-example class mask must be Bool[%d, %d]",
					ii+1, extra.Shape(), dims[0], dims[1], dims[2], dims[0], dims[1], dims[0], dims[2])
			}
		}
		if weights == nil {
			weights = OnesLike(logits)
		}
		if classMask != nil {
			if classIndices != nil {
				klog.V(1).Infof("Both per-example class mask and fixed class indices given: using the per-example mask")
			}
		} else if classIndices != nil {
			classMask = FixedClassMask(logits.Graph(), dims[2], classIndices)
		}
		return MaskedSigmoidCrossEntropy(logits, targets, weights, classMask)
	}
}
