// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package layout

// swapAfter reports whether f1 belongs after f2 in a message. Fixed fields
// precede variable ones. Among fixed fields, those fitting in a register
// come first, widest first, followed by larger ones in ascending size.
// Among variable fields, constructed ones precede scalar arrays and strings.
// Reserved and pad fields never move.
func swapAfter(f1, f2 *Field, wordSize int) bool {
	if f1.pinned() || f2.pinned() {
		return false
	}
	v1, v2 := f1.Size == Variable, f2.Size == Variable
	switch {
	case v1 && !v2:
		return true
	case !v1 && v2:
		return false
	case v1 && v2:
		return !IsConstructed(f1.Type) && IsConstructed(f2.Type)
	}
	big1, big2 := f1.Size > wordSize, f2.Size > wordSize
	switch {
	case big1 && big2:
		return f1.Size > f2.Size
	case big1:
		return true
	case big2:
		return false
	}
	return f1.Size < f2.Size
}

// sortFields orders payload fields by repeatedly swapping adjacent pairs
// until no pair needs swapping, then moves the reserved fields to the
// front. Only strictly misordered pairs swap, so equal fields keep their
// declaration order.
func sortFields(fields []*Field, wordSize int) []*Field {
	var reserved, rest []*Field
	for _, f := range fields {
		if f.Role == Opcode || f.Role == Exception {
			reserved = append(reserved, f)
		} else {
			rest = append(rest, f)
		}
	}
	for swapped := true; swapped; {
		swapped = false
		for i := 0; i+1 < len(rest); i++ {
			if swapAfter(rest[i], rest[i+1], wordSize) {
				rest[i], rest[i+1] = rest[i+1], rest[i]
				swapped = true
			}
		}
	}
	return append(reserved, rest...)
}
