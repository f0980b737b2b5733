// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tfrecord reads and writes TFRecord files: a sequence of binary records, each framed as
//
//	uint64 length (little-endian)
//	uint32 masked CRC-32C of length
//	byte   data[length]
//	uint32 masked CRC-32C of data
package tfrecord

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ErrCorrupted is returned (wrapped) when a record fails the CRC check or is truncated.
var ErrCorrupted = errors.New("corrupted tfrecord")

const (
	headerSize  = 12
	footerSize  = 4
	maskDelta   = 0xa282ead8
	maxRecordMB = 1 << 10 // Records larger than 1GB are considered corrupted.
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// MaskedCRC returns the masked CRC-32C of data, as stored in TFRecord files.
func MaskedCRC(data []byte) uint32 {
	crc := crc32.Checksum(data, castagnoli)
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Writer appends records to an io.Writer. Call Flush (or Close) when done.
// It is not safe for concurrent use.
type Writer struct {
	w          *bufio.Writer
	closer     io.Closer
	numRecords int
	numBytes   int64
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Create creates (or truncates) the file at path and returns a Writer to it. Close it when done.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create tfrecord file %q", path)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Write appends one record.
func (w *Writer) Write(data []byte) error {
	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(header[8:], MaskedCRC(header[:8]))
	var footer [footerSize]byte
	binary.LittleEndian.PutUint32(footer[:], MaskedCRC(data))
	for _, part := range [][]byte{header[:], data, footer[:]} {
		if _, err := w.w.Write(part); err != nil {
			return errors.Wrap(err, "failed to write tfrecord")
		}
	}
	w.numRecords++
	w.numBytes += int64(headerSize + len(data) + footerSize)
	return nil
}

// NumRecords returns the number of records written so far.
func (w *Writer) NumRecords() int { return w.numRecords }

// NumBytes returns the number of bytes written so far, including framing.
func (w *Writer) NumBytes() int64 { return w.numBytes }

// Flush buffered records to the underlying writer.
func (w *Writer) Flush() error {
	return errors.Wrap(w.w.Flush(), "failed to flush tfrecord")
}

// Close flushes and, if the Writer was created with Create, closes the file.
func (w *Writer) Close() error {
	err := w.Flush()
	if w.closer != nil {
		closeErr := w.closer.Close()
		w.closer = nil
		if err == nil && closeErr != nil {
			err = errors.Wrap(closeErr, "failed to close tfrecord file")
		}
	}
	return err
}

// Reader reads records sequentially from an io.Reader.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer
	offset int64
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Open opens the file at path for reading. Close it when done.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open tfrecord file %q", path)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// Next returns the next record. It returns io.EOF (unwrapped) at a clean end of input, and an error
// wrapping ErrCorrupted for a truncated record or a CRC mismatch.
//
// The returned slice is owned by the caller.
func (r *Reader) Next() ([]byte, error) {
	var header [headerSize]byte
	n, err := io.ReadFull(r.r, header[:])
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, r.corrupted("truncated header (%d bytes)", n)
	}
	if binary.LittleEndian.Uint32(header[8:]) != MaskedCRC(header[:8]) {
		return nil, r.corrupted("length CRC mismatch")
	}
	length := binary.LittleEndian.Uint64(header[:8])
	if length > maxRecordMB<<20 {
		return nil, r.corrupted("record length %d too large", length)
	}
	data := make([]byte, length+footerSize)
	if _, err = io.ReadFull(r.r, data); err != nil {
		return nil, r.corrupted("truncated record of %d bytes", length)
	}
	data, footer := data[:length], data[length:]
	if binary.LittleEndian.Uint32(footer) != MaskedCRC(data) {
		return nil, r.corrupted("data CRC mismatch")
	}
	r.offset += int64(headerSize + len(data) + footerSize)
	return data, nil
}

func (r *Reader) corrupted(format string, args ...any) error {
	return errors.Wrapf(ErrCorrupted, "at offset %d: "+format, append([]any{r.offset}, args...)...)
}

// Close closes the file if the Reader was created with Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// ForEach calls fn for each record in r until the end of the input, fn returns an error or a record is corrupted.
func (r *Reader) ForEach(fn func(data []byte) error) error {
	for {
		data, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err = fn(data); err != nil {
			return err
		}
	}
}
