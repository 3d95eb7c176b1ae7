// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ir

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

/*
This file contains the types which describe IPC interfaces as they come out of
the IDL front-end.

They are decoded directly from the JSON IR. Names are already resolved to
declarations of the same library, but no layout decision has been made: the
layout package turns operations into wire messages, the opcode package numbers
them.
*/

type PrimitiveSubtype string

const (
	Bool    PrimitiveSubtype = "bool"
	Char    PrimitiveSubtype = "char"
	Int8    PrimitiveSubtype = "int8"
	Int16   PrimitiveSubtype = "int16"
	Int32   PrimitiveSubtype = "int32"
	Int64   PrimitiveSubtype = "int64"
	Uint8   PrimitiveSubtype = "uint8"
	Uint16  PrimitiveSubtype = "uint16"
	Uint32  PrimitiveSubtype = "uint32"
	Uint64  PrimitiveSubtype = "uint64"
	Float32 PrimitiveSubtype = "float32"
	Float64 PrimitiveSubtype = "float64"
)

var numberOfBytes = map[PrimitiveSubtype]int{
	Bool:    1,
	Char:    1,
	Int8:    1,
	Int16:   2,
	Int32:   4,
	Int64:   8,
	Uint8:   1,
	Uint16:  2,
	Uint32:  4,
	Uint64:  8,
	Float32: 4,
	Float64: 8,
}

var signedSubtypes = map[PrimitiveSubtype]struct{}{
	Int8:  {},
	Int16: {},
	Int32: {},
	Int64: {},
}

func (typ PrimitiveSubtype) IsValid() bool {
	_, ok := numberOfBytes[typ]
	return ok
}

func (typ PrimitiveSubtype) IsSigned() bool {
	_, ok := signedSubtypes[typ]
	return ok
}

func (typ PrimitiveSubtype) IsFloat() bool {
	return typ == Float32 || typ == Float64
}

func (typ PrimitiveSubtype) NumberOfBytes() int {
	return numberOfBytes[typ]
}

// UnsignedOfSize returns the unsigned subtype that is n bytes wide.
func UnsignedOfSize(n int) PrimitiveSubtype {
	switch n {
	case 1:
		return Uint8
	case 2:
		return Uint16
	case 4:
		return Uint32
	case 8:
		return Uint64
	}
	panic(fmt.Sprintf("no unsigned primitive of %d bytes", n))
}

type TypeKind string

const (
	PrimitiveType  TypeKind = "primitive"
	PointerType    TypeKind = "pointer"
	ArrayType      TypeKind = "array"
	StringType     TypeKind = "string"
	IdentifierType TypeKind = "identifier"
)

// Type is a declared (pre-layout) type.
//
// Pointers carry their pointee in ElementType. Arrays carry an element type
// and a fixed ElementCount. Identifiers name a struct, union or alias of the
// same library.
type Type struct {
	Kind             TypeKind         `json:"kind"`
	PrimitiveSubtype PrimitiveSubtype `json:"subtype,omitempty"`
	ElementType      *Type            `json:"element_type,omitempty"`
	ElementCount     int              `json:"element_count,omitempty"`
	Identifier       string           `json:"identifier,omitempty"`
}

func (t Type) String() string {
	switch t.Kind {
	case PrimitiveType:
		return string(t.PrimitiveSubtype)
	case PointerType:
		return t.ElementType.String() + "*"
	case ArrayType:
		return fmt.Sprintf("%s[%d]", t.ElementType, t.ElementCount)
	case StringType:
		return "string"
	case IdentifierType:
		return t.Identifier
	}
	return fmt.Sprintf("<%s>", t.Kind)
}

// Convenience constructors, mostly for tests and synthesized IR.

func Primitive(subtype PrimitiveSubtype) Type {
	return Type{Kind: PrimitiveType, PrimitiveSubtype: subtype}
}

func PointerTo(elem Type) Type {
	return Type{Kind: PointerType, ElementType: &elem}
}

func ArrayOf(elem Type, count int) Type {
	return Type{Kind: ArrayType, ElementType: &elem, ElementCount: count}
}

func StringT() Type {
	return Type{Kind: StringType}
}

func Named(identifier string) Type {
	return Type{Kind: IdentifierType, Identifier: identifier}
}

type Direction string

const (
	In    Direction = "in"
	Out   Direction = "out"
	InOut Direction = "inout"
)

func (d Direction) IsValid() bool {
	return d == In || d == Out || d == InOut
}

// Sent reports whether the parameter travels in the request.
func (d Direction) Sent() bool {
	return d == In || d == InOut
}

// Returned reports whether the parameter travels in the reply.
func (d Direction) Returned() bool {
	return d == Out || d == InOut
}

// Bound is the argument of max_is: either a literal element count or a
// reference to a sibling holding it.
type Bound struct {
	Literal int
	Ref     string
}

func (b Bound) IsRef() bool {
	return b.Ref != ""
}

func (b Bound) String() string {
	if b.IsRef() {
		return b.Ref
	}
	return strconv.Itoa(b.Literal)
}

// UnmarshalJSON accepts either a number or a string naming a sibling.
func (b *Bound) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*b = Bound{Literal: n}
		return nil
	}
	var ref string
	if err := json.Unmarshal(data, &ref); err != nil {
		return fmt.Errorf("max_is must be a number or a parameter name: %s", data)
	}
	*b = Bound{Ref: ref}
	return nil
}

func (b Bound) MarshalJSON() ([]byte, error) {
	if b.IsRef() {
		return json.Marshal(b.Ref)
	}
	return json.Marshal(b.Literal)
}

// Attributes are the declarator attributes of a parameter or struct member.
type Attributes struct {
	String     bool   `json:"string,omitempty"`
	SizeIs     string `json:"size_is,omitempty"`
	LengthIs   string `json:"length_is,omitempty"`
	MaxIs      *Bound `json:"max_is,omitempty"`
	TransmitAs string `json:"transmit_as,omitempty"`

	// Indirect requests out-of-line transfer through a descriptor.
	Indirect bool `json:"indirect,omitempty"`

	// Prealloc marks receive storage the caller provides.
	Prealloc bool `json:"prealloc,omitempty"`
}

// CountRef returns the sibling holding the runtime element count, if any.
// length_is takes precedence; size_is then only bounds it.
func (a Attributes) CountRef() string {
	if a.LengthIs != "" {
		return a.LengthIs
	}
	return a.SizeIs
}

// Sized reports whether any size, length or bound attribute is present.
func (a Attributes) Sized() bool {
	return a.SizeIs != "" || a.LengthIs != "" || a.MaxIs != nil
}

type Parameter struct {
	Name       string     `json:"name"`
	Type       Type       `json:"type"`
	Direction  Direction  `json:"direction"`
	Attributes Attributes `json:"attributes"`
}

type Operation struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters"`
	Raises     []string    `json:"raises,omitempty"`
	ID         *uint32     `json:"id,omitempty"`
	Return     *Type       `json:"return,omitempty"`
	Oneway     bool        `json:"oneway,omitempty"`

	// NoOpcode and NoException disable the reserved fields of the request
	// and the reply respectively.
	NoOpcode    bool `json:"no_opcode,omitempty"`
	NoException bool `json:"no_exception,omitempty"`
}

// Parameter returns the parameter with the given name.
func (op *Operation) Parameter(name string) (*Parameter, bool) {
	for i := range op.Parameters {
		if op.Parameters[i].Name == name {
			return &op.Parameters[i], true
		}
	}
	return nil, false
}

type Interface struct {
	Name       string      `json:"name"`
	Operations []Operation `json:"operations"`
	Bases      []string    `json:"bases,omitempty"`
	ID         *uint32     `json:"id,omitempty"`
}

type StructMember struct {
	Name       string     `json:"name"`
	Type       Type       `json:"type"`
	Attributes Attributes `json:"attributes"`
}

type Struct struct {
	Name    string         `json:"name"`
	Members []StructMember `json:"members"`
}

// Member returns the member with the given name.
func (s *Struct) Member(name string) (*StructMember, bool) {
	for i := range s.Members {
		if s.Members[i].Name == name {
			return &s.Members[i], true
		}
	}
	return nil, false
}

// UnionCase is one arm of a tagged union. A nil Member is an empty arm.
type UnionCase struct {
	Labels  []int64       `json:"labels,omitempty"`
	Default bool          `json:"default,omitempty"`
	Member  *StructMember `json:"member,omitempty"`
}

type Union struct {
	Name         string           `json:"name"`
	Discriminant PrimitiveSubtype `json:"discriminant"`
	Cases        []UnionCase      `json:"cases"`
}

type Alias struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

type Declarations struct {
	Structs []Struct `json:"structs,omitempty"`
	Unions  []Union  `json:"unions,omitempty"`
	Aliases []Alias  `json:"aliases,omitempty"`
}

// Library is the root of the JSON IR.
type Library struct {
	Name         string       `json:"name"`
	Declarations Declarations `json:"declarations"`
	Interfaces   []Interface  `json:"interfaces"`
}

// Decl is a named type declaration: *Struct, *Union or *Alias.
type Decl interface {
	GetName() string
}

var _ = []Decl{
	(*Struct)(nil),
	(*Union)(nil),
	(*Alias)(nil),
}

func (s *Struct) GetName() string { return s.Name }
func (u *Union) GetName() string  { return u.Name }
func (a *Alias) GetName() string  { return a.Name }
