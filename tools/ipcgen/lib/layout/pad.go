// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package layout

import (
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
)

func (p *Planner) newPad(index, size int) *Field {
	f := newField(p.names.Pad(index), nil, &Array{Elem: &Scalar{Subtype: ir.Uint8}, Bound: FixedBound, N: size})
	f.Role = Pad
	return f
}

func insertField(fields []*Field, i int, f *Field) []*Field {
	fields = append(fields, nil)
	copy(fields[i+1:], fields[i:])
	fields[i] = f
	return fields
}

// padBudget extends the leading fixed run of a non-empty message to the
// fast-path budget. It returns the next free pad index.
func (p *Planner) padBudget(ms *MessageStruct, index int) int {
	if len(ms.fields) == 0 {
		return index
	}
	run, end := 0, len(ms.fields)
	for i, f := range ms.fields {
		if f.Size == Variable {
			end = i
			break
		}
		run += f.Size
	}
	if run >= p.platform.FastPathBytes {
		return index
	}
	ms.fields = insertField(ms.fields, end, p.newPad(index, p.platform.FastPathBytes-run))
	return index + 1
}

// descriptorOffset returns the offset and index of the first descriptor.
func descriptorOffset(ms *MessageStruct) (offset, index int, ok bool) {
	for i, f := range ms.fields {
		if _, isDesc := f.Type.(*Descriptor); isDesc {
			return offset, i, true
		}
		if f.Size == Variable {
			return 0, 0, false
		}
		offset += f.Size
	}
	return 0, 0, false
}

// alignDescriptors pads the messages of one operation so that their first
// descriptors share an offset. The messages reuse one buffer region, so an
// out-of-line reference written by one direction is found by the other.
func (p *Planner) alignDescriptors(pads map[*MessageStruct]int, msgs ...*MessageStruct) {
	target := -1
	for _, ms := range msgs {
		if offset, _, ok := descriptorOffset(ms); ok && offset > target {
			target = offset
		}
	}
	if target < 0 {
		return
	}
	for _, ms := range msgs {
		offset, i, ok := descriptorOffset(ms)
		if !ok || offset == target {
			continue
		}
		ms.fields = insertField(ms.fields, i, p.newPad(pads[ms], target-offset))
		pads[ms]++
	}
}
