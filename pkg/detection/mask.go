// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package detection

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// BatchClassMask stacks the dense class masks (see LabeledClasses.DenseMask) of a batch of examples
// into a Bool tensor shaped `[batch_size, numClasses]`, to be used as the per-example class mask of the
// masked sigmoid loss.
//
// idOffset is the class id of the first class: COCO style labels usually start at 1.
func BatchClassMask(examples []*Example, numClasses, idOffset int) (*tensors.Tensor, error) {
	if len(examples) == 0 {
		return nil, errors.Wrapf(ErrMaskResolution, "no examples given to build the batch class mask")
	}
	flat := make([]bool, 0, len(examples)*numClasses)
	for ii, e := range examples {
		row, err := e.LabeledClasses.DenseMask(numClasses, idOffset)
		if err != nil {
			return nil, errors.WithMessagef(err, "example #%d (image %q)", ii, e.ImageID)
		}
		flat = append(flat, row...)
	}
	return tensors.FromFlatDataAndDimensions(flat, len(examples), numClasses), nil
}
