// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package layout

import (
	"fmt"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/names"
)

type Role int

const (
	// Payload fields carry a parameter, a member, or a companion count.
	Payload Role = iota
	// Opcode is the reserved leading field of a request.
	Opcode
	// Exception is the reserved leading field of a reply.
	Exception
	// Return carries the operation's return value.
	Return
	// Pad is filler inserted to meet the fast-path budget or to align
	// descriptors.
	Pad
)

func (r Role) String() string {
	switch r {
	case Payload:
		return "payload"
	case Opcode:
		return "opcode"
	case Exception:
		return "exception"
	case Return:
		return "return"
	case Pad:
		return "pad"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Field is one member of a message, or of a struct or union nested in one.
type Field struct {
	Name string

	// Path locates the field's value in the caller's arguments. It is empty
	// for reserved, pad and synthesized fields.
	Path names.Path

	Type Type

	// Presented is the in-memory type when it differs from the wire type,
	// as with transmit_as. Marshaling casts between the two.
	Presented Type

	// Size is the fixed byte size, or Variable.
	Size int

	Role Role

	// Length is the companion holding the runtime element count of a
	// variable array or string.
	Length *Field

	// Counts lists the fields whose element count this companion holds.
	Counts []*Field

	// Synthesized marks a companion that has no in-memory source; its value
	// is derived from the length of the fields it counts.
	Synthesized bool

	// Pulled marks a parameter copied into a reply because a returned
	// array is sized by it.
	Pulled bool

	// MaxRef locates a runtime maximum declared with a max_is reference.
	MaxRef names.Path

	// Indirect marks a value filled in place through a caller pointer.
	Indirect bool

	// Prealloc marks a receive buffer supplied by the caller.
	Prealloc bool

	// Param names the parameter a top-level field comes from.
	Param string

	// Offset is the byte offset within the message, or -1 once a variable
	// field precedes it. Set when the message is frozen.
	Offset int
}

// IsVariable reports whether the field's size is only known at runtime.
func (f *Field) IsVariable() bool {
	return f.Size == Variable
}

// IsCompanion reports whether the field holds another field's count.
func (f *Field) IsCompanion() bool {
	return len(f.Counts) > 0
}

// MaxSize is the most bytes the field occupies, or Unbounded.
func (f *Field) MaxSize() int {
	if f.Size != Variable {
		return f.Size
	}
	return MaxSize(f.Type)
}

// pinned fields keep their position across sorting.
func (f *Field) pinned() bool {
	return f.Role == Opcode || f.Role == Exception || f.Role == Pad
}

func (f *Field) String() string {
	size := "var"
	if f.Size != Variable {
		size = fmt.Sprint(f.Size)
	}
	return fmt.Sprintf("%s %s (%s)", f.Name, f.Type, size)
}

func newField(name string, path names.Path, t Type) *Field {
	size := Variable
	if s, ok := FixedSize(t); ok {
		size = s
	}
	return &Field{Name: name, Path: path, Type: t, Size: size, Offset: -1}
}

type Direction int

const (
	In Direction = iota
	Out
	// ExceptionReply is the reply shape used when the operation raises.
	ExceptionReply
	// Generic is the opaque shape shared by dispatch code.
	Generic
)

var Directions = []Direction{In, Out, ExceptionReply, Generic}

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case ExceptionReply:
		return "exc"
	case Generic:
		return "generic"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// MessageStruct is the ordered field list of one message of an operation.
// It is immutable once frozen.
type MessageStruct struct {
	Name      string
	Interface string
	Operation string
	Direction Direction

	fields []*Field
	frozen bool
}

// Fields returns the fields in wire order. Callers must not modify them.
func (m *MessageStruct) Fields() []*Field {
	return m.fields
}

// Field returns the field with the given name.
func (m *MessageStruct) Field(name string) (*Field, bool) {
	for _, f := range m.fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

func (m *MessageStruct) IsEmpty() bool {
	return len(m.fields) == 0
}

func (m *MessageStruct) Frozen() bool {
	return m.frozen
}

// Size is the total byte size, or Unbounded if any field is variable.
func (m *MessageStruct) Size() int {
	total := 0
	for _, f := range m.fields {
		if f.Size == Variable {
			return Unbounded
		}
		total += f.Size
	}
	return total
}

// MaxSize sums the per-field maxima, or is Unbounded if any field has none.
func (m *MessageStruct) MaxSize() int {
	total := 0
	for _, f := range m.fields {
		s := f.MaxSize()
		if s == Unbounded {
			return Unbounded
		}
		total += s
	}
	return total
}

// FixedPrefixSize is the size of the leading run of fixed fields.
func (m *MessageStruct) FixedPrefixSize() int {
	total := 0
	for _, f := range m.fields {
		if f.Size == Variable {
			break
		}
		total += f.Size
	}
	return total
}

// HasVariable reports whether any field is variable.
func (m *MessageStruct) HasVariable() bool {
	return m.Size() == Unbounded
}

// Descriptors returns the descriptor fields in wire order.
func (m *MessageStruct) Descriptors() []*Field {
	var out []*Field
	for _, f := range m.fields {
		if _, ok := f.Type.(*Descriptor); ok {
			out = append(out, f)
		}
	}
	return out
}

func (m *MessageStruct) freeze() {
	offset := 0
	for _, f := range m.fields {
		if offset < 0 {
			f.Offset = -1
			continue
		}
		f.Offset = offset
		if f.Size == Variable {
			offset = -1
		} else {
			offset += f.Size
		}
	}
	m.frozen = true
}
