// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package layout

import (
	"fmt"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
)

// Variable is the size of a field whose byte count is only known at runtime.
const Variable = -1

// Unbounded is the size, or maximum size, of a message or type that has no
// static bound.
const Unbounded = -1

// Type is a wire type. The set of implementations is closed: *Scalar, *Array,
// *String, *Struct, *Union, *Pointer and *Descriptor. Code dispatching on a
// Type switches over exactly these.
type Type interface {
	isType()
	String() string
}

var _ = []Type{
	(*Scalar)(nil),
	(*Array)(nil),
	(*String)(nil),
	(*Struct)(nil),
	(*Union)(nil),
	(*Pointer)(nil),
	(*Descriptor)(nil),
}

type Scalar struct {
	Subtype ir.PrimitiveSubtype
}

type BoundKind int

const (
	// FixedBound arrays always hold N elements.
	FixedBound BoundKind = iota
	// CompanionBound arrays take their count from an existing sibling.
	// N is the static maximum, or zero when there is none.
	CompanionBound
	// MaxBound arrays hold at most N elements, counted by a synthesized
	// companion. N is zero when the maximum is only known at runtime.
	MaxBound
)

func (k BoundKind) String() string {
	switch k {
	case FixedBound:
		return "fixed"
	case CompanionBound:
		return "companion"
	case MaxBound:
		return "max"
	}
	return fmt.Sprintf("BoundKind(%d)", int(k))
}

type Array struct {
	Elem  Type
	Bound BoundKind
	N     int
}

// String is a character array with an implicit terminator. Max counts the
// transmitted bytes, terminator included when it fits; receivers reserve one
// more byte so the result is always terminated.
type String struct {
	Max int
}

// Struct holds its fixed members first, in declaration order, followed by the
// variable ones.
type Struct struct {
	Name   string
	Fields []*Field

	// SelfRef marks a struct reaching itself through a pointer member.
	SelfRef bool
}

type Union struct {
	Name         string
	Discriminant *Field
	Cases        []*Case
}

// Case is one arm of a union. Payload is nil for an empty arm.
type Case struct {
	Labels  []int64
	Default bool
	Payload *Field
}

// Pointer is a pointer-width opaque value. It only appears for members that
// point back to an enclosing struct.
type Pointer struct {
	Target string
	Size   int
}

// Descriptor is a fixed reference to bytes carried out of line: a word
// holding the offset into the out-of-line segment followed by a word holding
// the element count.
type Descriptor struct {
	Data     Type
	WordSize int
}

func (*Scalar) isType()     {}
func (*Array) isType()      {}
func (*String) isType()     {}
func (*Struct) isType()     {}
func (*Union) isType()      {}
func (*Pointer) isType()    {}
func (*Descriptor) isType() {}

func (t *Scalar) String() string { return string(t.Subtype) }

func (t *Array) String() string {
	switch t.Bound {
	case FixedBound:
		return fmt.Sprintf("%s[%d]", t.Elem, t.N)
	case CompanionBound:
		if t.N == 0 {
			return fmt.Sprintf("%s[]", t.Elem)
		}
		return fmt.Sprintf("%s[<=%d]", t.Elem, t.N)
	default:
		if t.N == 0 {
			return fmt.Sprintf("%s[*]", t.Elem)
		}
		return fmt.Sprintf("%s[:%d]", t.Elem, t.N)
	}
}

func (t *String) String() string     { return fmt.Sprintf("string<%d>", t.Max) }
func (t *Struct) String() string     { return "struct " + t.Name }
func (t *Union) String() string      { return "union " + t.Name }
func (t *Pointer) String() string    { return t.Target + "*" }
func (t *Descriptor) String() string { return fmt.Sprintf("descriptor(%s)", t.Data) }

// FixedSize returns the byte size of t and true, or false if t has no fixed
// size.
func FixedSize(t Type) (int, bool) {
	switch t := t.(type) {
	case *Scalar:
		return t.Subtype.NumberOfBytes(), true
	case *Array:
		if t.Bound != FixedBound {
			return 0, false
		}
		elem, ok := FixedSize(t.Elem)
		return elem * t.N, ok
	case *String:
		return 0, false
	case *Struct:
		total := 0
		for _, f := range t.Fields {
			if f.Size == Variable {
				return 0, false
			}
			total += f.Size
		}
		return total, true
	case *Union:
		payload, ok := unionPayloadSize(t)
		return t.Discriminant.Size + payload, ok
	case *Pointer:
		return t.Size, true
	case *Descriptor:
		return 2 * t.WordSize, true
	}
	panic(fmt.Sprintf("unknown wire type %T", t))
}

// unionPayloadSize is the footprint of the widest arm.
func unionPayloadSize(u *Union) (int, bool) {
	widest := 0
	for _, c := range u.Cases {
		if c.Payload == nil {
			continue
		}
		if c.Payload.Size == Variable {
			return 0, false
		}
		if c.Payload.Size > widest {
			widest = c.Payload.Size
		}
	}
	return widest, true
}

// MaxSize returns the largest number of bytes a value of type t occupies on
// the wire, or Unbounded.
func MaxSize(t Type) int {
	if size, ok := FixedSize(t); ok {
		return size
	}
	switch t := t.(type) {
	case *Array:
		elem := MaxSize(t.Elem)
		if t.N == 0 || elem == Unbounded {
			return Unbounded
		}
		return elem * t.N
	case *String:
		return t.Max
	case *Struct:
		total := 0
		for _, f := range t.Fields {
			m := MaxSize(f.Type)
			if m == Unbounded {
				return Unbounded
			}
			total += m
		}
		return total
	case *Union:
		widest := 0
		for _, c := range t.Cases {
			if c.Payload == nil {
				continue
			}
			m := MaxSize(c.Payload.Type)
			if m == Unbounded {
				return Unbounded
			}
			if m > widest {
				widest = m
			}
		}
		return t.Discriminant.Size + widest
	}
	panic(fmt.Sprintf("unexpected variable wire type %T", t))
}

// FixedPrefixSize is the size of the leading run of fixed members.
func (t *Struct) FixedPrefixSize() int {
	total := 0
	for _, f := range t.Fields {
		if f.Size == Variable {
			break
		}
		total += f.Size
	}
	return total
}

// IsConstructed reports whether t is a struct or union, or an array of them.
func IsConstructed(t Type) bool {
	switch t := t.(type) {
	case *Struct, *Union:
		return true
	case *Array:
		return IsConstructed(t.Elem)
	case *Descriptor:
		return IsConstructed(t.Data)
	}
	return false
}

// ElementSize is the fixed size of one element of an array or string.
func ElementSize(t Type) int {
	switch t := t.(type) {
	case *Array:
		size, _ := FixedSize(t.Elem)
		return size
	case *String:
		return 1
	case *Descriptor:
		return ElementSize(t.Data)
	}
	panic(fmt.Sprintf("%s has no elements", t))
}

// MaxCount is the static maximum element count of an array or string, or
// zero when there is none.
func MaxCount(t Type) int {
	switch t := t.(type) {
	case *Array:
		return t.N
	case *String:
		return t.Max
	case *Descriptor:
		return MaxCount(t.Data)
	}
	return 0
}
