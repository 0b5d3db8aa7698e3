// Copyright 2023 Jesus Ruiz. All rights reserved.
// Use of this source code is governed by an Apache-2.0
// license that can be found in the LICENSE file.

// Package sliceedit implements buffered editing of byte slices on top of
// rsc.io/edit. Edits are queued against the original data and applied in a
// single pass, so replacing many placeholders in a large rendered document
// needs only one allocation.
package sliceedit

import (
	"bytes"

	"rsc.io/edit"
)

// A Buffer is a queue of edits to apply to a given byte slice.
type Buffer struct {
	ed  edit.Buffer
	buf []byte
}

// NewBuffer returns a new buffer to accumulate changes to an initial data slice.
// The returned buffer maintains a reference to the data, so the caller must ensure
// the data is not modified until after the Buffer is done being used.
func NewBuffer(buf []byte) *Buffer {
	b := &Buffer{}
	b.buf = buf // Just for our internal queries, we do not modify anything in it
	b.ed = *edit.NewBuffer(buf)
	return b
}

// FindAll finds all non-overlapping instances of item in buf.
func FindAll(buf []byte, item string) []int {
	found := []int{}

	if len(item) == 0 {
		return found
	}

	realOffset := 0

	for {
		i := bytes.Index(buf, []byte(item))
		if i == -1 {
			return found
		}
		found = append(found, i+realOffset)
		buf = buf[i+len(item):]
		realOffset = realOffset + i + len(item)
	}
}

// DeleteAllString queues the deletion of every instance of s.
func (b *Buffer) DeleteAllString(s string) {
	hits := FindAll(b.buf, s)
	for _, hit := range hits {
		b.ed.Delete(hit, hit+len(s))
	}
}

// ReplaceAllString queues the replacement of every instance of old with new.
func (b *Buffer) ReplaceAllString(old string, new string) {
	hits := FindAll(b.buf, old)
	for _, hit := range hits {
		b.ed.Replace(hit, hit+len(old), new)
	}
}

// ReplaceAllPairs queues the replacements given as old1, new1, old2, new2...
// It panics when given an odd number of arguments.
func (b *Buffer) ReplaceAllPairs(pairs ...string) {
	if len(pairs)%2 == 1 {
		panic("sliceedit: ReplaceAllPairs with odd argument count")
	}
	for i := 0; i < len(pairs); i += 2 {
		b.ReplaceAllString(pairs[i], pairs[i+1])
	}
}

// Bytes returns a new byte slice containing the original data
// with the queued edits applied.
func (b *Buffer) Bytes() []byte {
	return b.ed.Bytes()
}

// String returns a string containing the original data
// with the queued edits applied.
func (b *Buffer) String() string {
	return string(b.ed.Bytes())
}
