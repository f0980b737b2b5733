// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package detection

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/partialdata/partialdata/pkg/support/sets"
	"github.com/pkg/errors"
)

// LabeledClasses holds which classes were actively annotated for an image: either Unknown,
// or Known with a set of class ids.
//
// A class id in a Known set was labeled for the image: if there is no box for it, it is labeled as absent.
// A class id not in the set was not labeled, and nothing can be said about its presence.
// Known with an empty set means explicitly that no class was labeled.
//
// The zero value is Unknown. Values are immutable.
type LabeledClasses struct {
	known bool
	ids   sets.Set[int64]
}

// UnknownClasses returns LabeledClasses for an image whose labeling scope is not known.
func UnknownClasses() LabeledClasses {
	return LabeledClasses{}
}

// KnownClasses returns LabeledClasses for the given class ids. Repeated ids are collapsed.
// With no ids it means no class was labeled for the image.
func KnownClasses(ids ...int64) LabeledClasses {
	return LabeledClasses{known: true, ids: sets.MakeWith(ids...)}
}

// IsKnown returns whether the labeled classes are known.
func (lc LabeledClasses) IsKnown() bool { return lc.known }

// Has returns whether the class id is known to be labeled. It is always false for Unknown.
func (lc LabeledClasses) Has(id int64) bool {
	return lc.known && lc.ids.Has(id)
}

// Len returns the number of labeled class ids, 0 for Unknown.
func (lc LabeledClasses) Len() int { return len(lc.ids) }

// IDs returns the labeled class ids in ascending order.
// It returns nil for Unknown and a non-nil (possibly empty) slice for Known.
func (lc LabeledClasses) IDs() []int64 {
	if !lc.known {
		return nil
	}
	return sets.Sorted(lc.ids)
}

// Equal returns whether both are Unknown, or both are Known with the same set of ids.
func (lc LabeledClasses) Equal(other LabeledClasses) bool {
	if lc.known != other.known {
		return false
	}
	return !lc.known || lc.ids.Equal(other.ids)
}

// String implements fmt.Stringer.
func (lc LabeledClasses) String() string {
	if !lc.known {
		return "unknown"
	}
	parts := make([]string, 0, len(lc.ids))
	for _, id := range lc.IDs() {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON implements json.Marshaler: Unknown is `null`, Known is a sorted list of ids.
func (lc LabeledClasses) MarshalJSON() ([]byte, error) {
	if !lc.known {
		return []byte("null"), nil
	}
	return json.Marshal(lc.IDs())
}

// UnmarshalJSON implements json.Unmarshaler: `null` is Unknown, a list of ids (possibly empty) is Known.
func (lc *LabeledClasses) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*lc = UnknownClasses()
		return nil
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return errors.Wrapf(err, "labeled classes must be null or a list of integer class ids")
	}
	*lc = KnownClasses(ids...)
	return nil
}

// DenseMask converts the labeled classes to a boolean vector of length numClasses, where position
// `id - idOffset` is true for every labeled class id.
//
// Unknown yields an all-true mask: without knowing what was labeled, no class is suppressed.
// Ids that fall outside of `[idOffset, idOffset+numClasses)` return ErrMaskResolution.
func (lc LabeledClasses) DenseMask(numClasses, idOffset int) ([]bool, error) {
	if numClasses <= 0 {
		return nil, errors.Wrapf(ErrMaskResolution, "invalid number of classes %d", numClasses)
	}
	mask := make([]bool, numClasses)
	if !lc.known {
		for ii := range mask {
			mask[ii] = true
		}
		return mask, nil
	}
	for id := range lc.ids {
		idx := id - int64(idOffset)
		if idx < 0 || idx >= int64(numClasses) {
			return nil, errors.Wrapf(ErrMaskResolution,
				"labeled class id %d out of range for %d classes with id offset %d", id, numClasses, idOffset)
		}
		mask[idx] = true
	}
	return mask, nil
}
