// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package names synthesizes identifiers for generated messages and fields.
//
// Every name is a pure function of its inputs: the same declarator path
// always yields the same field name, which keeps layouts reproducible.
package names

import (
	"fmt"
	"strings"
)

// Path is a declarator path: a parameter name followed by the member or case
// names leading to a nested field.
type Path []string

// Append returns a new path extended with elem. The receiver is not modified.
func (p Path) Append(elem string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, elem)
}

// Last returns the final element of the path.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Factory supplies names to the layout and marshaling stages.
type Factory interface {
	// Field names the wire field for a declarator path.
	Field(path Path) string
	// Companion names the synthesized element count of the field at path.
	Companion(path Path) string
	// Pad names the index-th filler field of a message.
	Pad(index int) string
	// Message names the struct declaring one message of an operation.
	Message(iface, op, dir string) string
	// Opcode names the constant holding an operation's opcode.
	Opcode(iface, op string) string
}

// CFactory produces snake_case names that are valid C identifiers.
type CFactory struct {
	ctx NameContext
}

var _ Factory = (*CFactory)(nil)

func NewCFactory() *CFactory {
	return &CFactory{
		ctx: NewNameContext(func(s string) string { return s + "_" }, cReservedWords...),
	}
}

func (f *CFactory) join(path Path) string {
	parts := make([]string, len(path))
	for i, elem := range path {
		parts[i] = ToSnakeCase(elem)
	}
	return strings.Join(parts, "_")
}

func (f *CFactory) Field(path Path) string {
	return f.ctx.ChangeIfReserved(f.join(path))
}

func (f *CFactory) Companion(path Path) string {
	return f.ctx.ChangeIfReserved(f.join(path) + "_len")
}

func (f *CFactory) Pad(index int) string {
	return fmt.Sprintf("pad%d_", index)
}

func (f *CFactory) Message(iface, op, dir string) string {
	return fmt.Sprintf("%s_%s_%s_msg", ToSnakeCase(iface), ToSnakeCase(op), dir)
}

func (f *CFactory) Opcode(iface, op string) string {
	return fmt.Sprintf("%s_%s_OPCODE", ToConstCase(iface), ToConstCase(op))
}
