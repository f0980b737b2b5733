// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"math"

	"github.com/partialdata/partialdata/pkg/detection"
	"github.com/pkg/errors"
)

// ReferenceLoss computes the same values as ComputeLoss in plain Go, with float64 precision.
// It is slow and meant for cross-checking and debugging.
//
// weights may have a last dimension of 1 (broadcast across classes), or be nil for all ones.
func ReferenceLoss(logits, targets, weights [][][]float64, mask ClassMask) ([][][]float64, error) {
	batchSize := len(logits)
	if batchSize == 0 || len(logits[0]) == 0 || len(logits[0][0]) == 0 {
		return nil, errors.Wrap(detection.ErrSchema, "logits must have non-zero dimensions")
	}
	numAnchors, numClasses := len(logits[0]), len(logits[0][0])
	if err := mask.validate(batchSize, numClasses); err != nil {
		return nil, err
	}
	var fixed []bool
	if mask.perExample == nil && mask.hasIndices {
		fixed = make([]bool, numClasses)
		for _, idx := range mask.indices {
			fixed[idx] = true
		}
	}
	inScope := func(example, class int) bool {
		switch {
		case mask.perExample != nil:
			return mask.perExample[example][class]
		case fixed != nil:
			return fixed[class]
		}
		return true
	}

	loss := make([][][]float64, batchSize)
	for b := range batchSize {
		if len(logits[b]) != numAnchors || len(targets) != batchSize || len(targets[b]) != numAnchors ||
			(weights != nil && (len(weights) != batchSize || len(weights[b]) != numAnchors)) {
			return nil, errors.Wrapf(detection.ErrSchema, "example #%d: mismatched number of anchors", b)
		}
		loss[b] = make([][]float64, numAnchors)
		for a := range numAnchors {
			if len(logits[b][a]) != numClasses || len(targets[b][a]) != numClasses {
				return nil, errors.Wrapf(detection.ErrSchema, "example #%d, anchor #%d: mismatched number of classes", b, a)
			}
			row := make([]float64, numClasses)
			for c := range numClasses {
				if !inScope(b, c) {
					continue
				}
				w := 1.0
				if weights != nil {
					switch len(weights[b][a]) {
					case 1:
						w = weights[b][a][0]
					case numClasses:
						w = weights[b][a][c]
					default:
						return nil, errors.Wrapf(detection.ErrSchema, "example #%d, anchor #%d: weights with %d classes, expected %d or 1",
							b, a, len(weights[b][a]), numClasses)
					}
				}
				x, z := logits[b][a][c], targets[b][a][c]
				row[c] = w * (math.Max(x, 0) - x*z + math.Log1p(math.Exp(-math.Abs(x))))
			}
			loss[b][a] = row
		}
	}
	return loss, nil
}
