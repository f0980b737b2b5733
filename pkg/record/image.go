// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package record

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/partialdata/partialdata/pkg/detection"
	"github.com/pkg/errors"
)

// ReadImageInfo reads the image file using readFile, decodes it fully and returns its metadata
// and raw bytes.
//
// Width and height come from the decoded image, and the format from the image header (not the file
// extension). Any failure is returned wrapped in detection.ErrImageRead.
func ReadImageInfo(path string, readFile func(string) ([]byte, error)) (*detection.ImageInfo, error) {
	encoded, err := readFile(path)
	if err != nil {
		return nil, errors.Wrapf(detection.ErrImageRead, "failed to read image %q: %v", path, err)
	}
	info, err := ImageInfoFromBytes(encoded)
	if err != nil {
		return nil, errors.WithMessagef(err, "image %q", path)
	}
	info.Filename = filepath.Base(path)
	return info, nil
}

// ImageInfoFromBytes decodes the encoded image and returns its metadata. Filename is left empty.
//
// Supported formats are JPEG, PNG, GIF, BMP, TIFF and WebP.
func ImageInfoFromBytes(encoded []byte) (*detection.ImageInfo, error) {
	img, format, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrapf(detection.ErrImageRead, "failed to decode image (%d bytes): %v", len(encoded), err)
	}
	bounds := img.Bounds()
	return &detection.ImageInfo{
		Height:  int64(bounds.Dy()),
		Width:   int64(bounds.Dx()),
		Key:     SHA256Key(encoded),
		Format:  strings.ToUpper(format),
		Encoded: encoded,
	}, nil
}

// SHA256Key returns the hex digest used as the "image/key/sha256" feature.
func SHA256Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
