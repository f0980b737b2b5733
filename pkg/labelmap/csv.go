// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package labelmap

import (
	"io"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// CSV column names read by ReadCSV.
const (
	IDCol          = "id"
	NameCol        = "name"
	DisplayNameCol = "display_name"
)

// NormalizeName converts a category name to the label map form: lower-case, with spaces replaced by "_".
// E.g.: "Traffic Light" -> "traffic_light".
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// ReadCSV reads label map items from a CSV with a header and the columns "id", "name" and
// optionally "display_name". Other columns are ignored.
//
// The name is normalized with NormalizeName, while the display name keeps the original text. If there is
// no "display_name" column, the original name is used as display name.
func ReadCSV(r io.Reader) ([]Item, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.WithTypes(map[string]series.Type{
			IDCol:          series.Int,
			NameCol:        series.String,
			DisplayNameCol: series.String,
		}))
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "failed to read label map CSV")
	}
	columns := df.Names()
	for _, required := range []string{IDCol, NameCol} {
		if !slices.Contains(columns, required) {
			return nil, errors.Errorf("label map CSV missing column %q, got columns %q", required, columns)
		}
	}
	ids, err := df.Col(IDCol).Int()
	if err != nil {
		return nil, errors.Wrapf(err, "label map CSV column %q must hold integers", IDCol)
	}
	names := df.Col(NameCol).Records()
	displayNames := names
	if slices.Contains(columns, DisplayNameCol) {
		displayNames = df.Col(DisplayNameCol).Records()
	}
	items := make([]Item, df.Nrow())
	for ii := range items {
		items[ii] = Item{ID: int64(ids[ii]), Name: NormalizeName(names[ii]), DisplayName: displayNames[ii]}
	}
	return items, nil
}
