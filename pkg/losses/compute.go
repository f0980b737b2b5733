// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/partialdata/partialdata/pkg/detection"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ClassMask selects the classes in scope for the loss: a fixed subset of class indices shared by the batch,
// a per-example boolean mask shaped `[batch_size][num_classes]`, both, or none.
//
// The zero value (NoClassMask) keeps every class in scope. If both are set, the per-example mask takes
// precedence and the fixed subset is ignored.
type ClassMask struct {
	indices    []int
	hasIndices bool
	perExample [][]bool
}

// NoClassMask returns the identity ClassMask: no class is suppressed.
func NoClassMask() ClassMask { return ClassMask{} }

// FixedClasses returns a ClassMask keeping only the given class indices in scope, for every example.
func FixedClasses(indices ...int) ClassMask {
	return ClassMask{indices: indices, hasIndices: true}
}

// PerExampleClasses returns a ClassMask with the classes in scope for each example: mask[i][c] is true if
// class c is in scope for example i. A nil mask is the same as NoClassMask.
func PerExampleClasses(mask [][]bool) ClassMask {
	return ClassMask{perExample: mask}
}

// WithPerExample returns a copy of the ClassMask with the per-example mask set. See PerExampleClasses.
func (m ClassMask) WithPerExample(mask [][]bool) ClassMask {
	m.perExample = mask
	return m
}

// IsIdentity returns whether no class is suppressed by the mask.
func (m ClassMask) IsIdentity() bool {
	return !m.hasIndices && m.perExample == nil
}

// String implements fmt.Stringer.
func (m ClassMask) String() string {
	switch {
	case m.perExample != nil && m.hasIndices:
		return fmt.Sprintf("per-example mask for %d examples (overriding fixed classes %v)", len(m.perExample), m.indices)
	case m.perExample != nil:
		return fmt.Sprintf("per-example mask for %d examples", len(m.perExample))
	case m.hasIndices:
		return fmt.Sprintf("fixed classes %v", m.indices)
	}
	return "no class mask"
}

// validate the mask against the loss dimensions, with errors wrapping detection.ErrMaskResolution.
func (m ClassMask) validate(batchSize, numClasses int) error {
	if m.perExample != nil {
		if len(m.perExample) != batchSize {
			return errors.Wrapf(detection.ErrMaskResolution, "per-example class mask has %d rows, but batch size is %d",
				len(m.perExample), batchSize)
		}
		for ii, row := range m.perExample {
			if len(row) != numClasses {
				return errors.Wrapf(detection.ErrMaskResolution, "per-example class mask row #%d has %d classes, expected %d",
					ii, len(row), numClasses)
			}
		}
		// Fixed classes are ignored, and not validated.
		return nil
	}
	for _, idx := range m.indices {
		if idx < 0 || idx >= numClasses {
			return errors.Wrapf(detection.ErrMaskResolution, "class index %d out of range for %d classes", idx, numClasses)
		}
	}
	return nil
}

func (m ClassMask) perExampleTensor() *tensors.Tensor {
	batchSize, numClasses := len(m.perExample), len(m.perExample[0])
	flat := make([]bool, 0, batchSize*numClasses)
	for _, row := range m.perExample {
		flat = append(flat, row...)
	}
	return tensors.FromFlatDataAndDimensions(flat, batchSize, numClasses)
}

// ComputeLoss evaluates MaskedSigmoidCrossEntropy on the given backend and returns the unreduced loss,
// shaped like predictions.
//
//   - predictions (logits) and targets: shaped `[batch_size, num_anchors, num_classes]`, predictions of a float dtype.
//   - weights: shaped `[batch_size, num_anchors, num_classes]` or `[batch_size, num_anchors, 1]`. If nil, all
//     weights are 1.
//
// Shapes are checked before anything is computed: incompatible or empty shapes return an error wrapping
// detection.ErrSchema, and a mask that doesn't match the batch size or number of classes, or has class indices
// out of range, returns an error wrapping detection.ErrMaskResolution.
func ComputeLoss(backend backends.Backend, predictions, targets, weights *tensors.Tensor, mask ClassMask) (*tensors.Tensor, error) {
	if predictions == nil || targets == nil {
		return nil, errors.Wrap(detection.ErrSchema, "predictions and targets must be given")
	}
	predShape := predictions.Shape()
	if predShape.Rank() != 3 {
		return nil, errors.Wrapf(detection.ErrSchema, "predictions must be shaped [batch_size, num_anchors, num_classes], got %s", predShape)
	}
	if !predShape.DType.IsFloat() {
		return nil, errors.Wrapf(detection.ErrSchema, "predictions must be of a float dtype, got %s", predShape.DType)
	}
	batchSize, numAnchors, numClasses := predShape.Dimensions[0], predShape.Dimensions[1], predShape.Dimensions[2]
	if batchSize == 0 || numAnchors == 0 || numClasses == 0 {
		return nil, errors.Wrapf(detection.ErrSchema, "predictions must have non-zero dimensions, got %s", predShape)
	}
	if !slices.Equal(targets.Shape().Dimensions, predShape.Dimensions) {
		return nil, errors.Wrapf(detection.ErrSchema, "targets shape %s doesn't match predictions shape %s", targets.Shape(), predShape)
	}
	if weights != nil {
		weightsDims := weights.Shape().Dimensions
		if !slices.Equal(weightsDims, predShape.Dimensions) &&
			!slices.Equal(weightsDims, []int{batchSize, numAnchors, 1}) {
			return nil, errors.Wrapf(detection.ErrSchema, "weights shape %s must be [%d, %d, %d] or [%d, %d, 1]",
				weights.Shape(), batchSize, numAnchors, numClasses, batchSize, numAnchors)
		}
	}
	if err := mask.validate(batchSize, numClasses); err != nil {
		return nil, err
	}
	if mask.perExample != nil && mask.hasIndices {
		klog.V(1).Infof("Both per-example class mask and fixed class indices given: using the per-example mask")
	}

	var loss *tensors.Tensor
	err := exceptions.TryCatch[error](func() {
		var err error
		loss, err = execLoss(backend, predictions, targets, weights, mask, numClasses)
		if err != nil {
			panic(err)
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to compute masked sigmoid cross-entropy with %s", mask)
	}
	return loss, nil
}

func execLoss(backend backends.Backend, predictions, targets, weights *tensors.Tensor, mask ClassMask, numClasses int) (*tensors.Tensor, error) {
	switch {
	case mask.perExample != nil && weights != nil:
		return ExecOnce(backend, func(logits, targets, weights, classMask *Node) *Node {
			return MaskedSigmoidCrossEntropy(logits, targets, weights, classMask)
		}, predictions, targets, weights, mask.perExampleTensor())
	case mask.perExample != nil:
		return ExecOnce(backend, func(logits, targets, classMask *Node) *Node {
			return MaskedSigmoidCrossEntropy(logits, targets, OnesLike(logits), classMask)
		}, predictions, targets, mask.perExampleTensor())
	case weights != nil:
		return ExecOnce(backend, func(logits, targets, weights *Node) *Node {
			return MaskedSigmoidCrossEntropy(logits, targets, weights, fixedMaskOrNil(logits, mask, numClasses))
		}, predictions, targets, weights)
	default:
		return ExecOnce(backend, func(logits, targets *Node) *Node {
			return MaskedSigmoidCrossEntropy(logits, targets, OnesLike(logits), fixedMaskOrNil(logits, mask, numClasses))
		}, predictions, targets)
	}
}

func fixedMaskOrNil(logits *Node, mask ClassMask, numClasses int) *Node {
	if !mask.hasIndices {
		return nil
	}
	return FixedClassMask(logits.Graph(), numClasses, mask.indices)
}
