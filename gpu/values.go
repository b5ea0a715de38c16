// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "unsafe"

// ValueBytes returns the raw bytes backing a slice of fixed-layout
// values, for writing into buffers. The element type must match the
// shader-side layout under 4-byte scalar packing.
func ValueBytes[E any](vals []E) []byte {
	if len(vals) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*int(unsafe.Sizeof(vals[0])))
}

// SetBufferFrom writes a slice of fixed-layout values into the buffer
// at the given byte offset. Always pass a slice, even for one value.
func SetBufferFrom[E any](bf *Buffer, off int64, from []E) error {
	return bf.Write(off, ValueBytes(from))
}
