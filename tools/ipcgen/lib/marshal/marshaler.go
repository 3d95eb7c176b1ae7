// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package marshal turns frozen message layouts into programs that copy
// values between their in-memory and wire representations.
//
// A Program is a list of high level statements, one per field, nested for
// structs and unions. Programs are executed against Go values by a Codec and
// rendered as C by a Printer.
package marshal

import (
	"fmt"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/layout"
)

// Marshaler builds the programs of the operations of one interface.
type Marshaler struct {
	opcodes map[string]uint32
}

// NewMarshaler returns a Marshaler using the given opcodes, keyed by
// operation name.
func NewMarshaler(opcodes map[string]uint32) *Marshaler {
	return &Marshaler{opcodes: opcodes}
}

// Marshal returns the program writing the message ms of op.
func (m *Marshaler) Marshal(op *ir.Operation, dir layout.Direction, ms *layout.MessageStruct) (*Program, error) {
	return m.build(op, dir, ms, true)
}

// Unmarshal returns the program reading the message ms of op.
func (m *Marshaler) Unmarshal(op *ir.Operation, dir layout.Direction, ms *layout.MessageStruct) (*Program, error) {
	return m.build(op, dir, ms, false)
}

func (m *Marshaler) build(op *ir.Operation, dir layout.Direction, ms *layout.MessageStruct, send bool) (*Program, error) {
	if !ms.Frozen() {
		return nil, fmt.Errorf("%s: message %s is not frozen", op.Name, ms.Name)
	}
	if ms.Direction != dir || ms.Operation != op.Name {
		return nil, fmt.Errorf("%s: message %s belongs to %s (%s)", op.Name, ms.Name, ms.Operation, ms.Direction)
	}
	p := &Program{Message: ms, Send: send}
	for _, f := range ms.Fields() {
		if f.Role == layout.Opcode {
			opcode, ok := m.opcodes[op.Name]
			if !ok {
				return nil, fmt.Errorf("%s: no opcode assigned", op.Name)
			}
			p.Opcode = opcode
		}
	}
	ctx := &buildContext{send: send, dir: dir, opcode: p.Opcode}
	for _, f := range ms.Fields() {
		m.field(&p.body, f, ctx)
	}
	return p, nil
}

// buildContext is passed down the recursion over nested fields.
type buildContext struct {
	send   bool
	dir    layout.Direction
	opcode uint32
}

func (m *Marshaler) field(b *block, f *layout.Field, ctx *buildContext) {
	send := ctx.send
	switch t := f.Type.(type) {
	case *layout.Scalar:
		switch {
		case f.Role == layout.Opcode && send:
			b.emitOpcode(putOpcode, f, ctx.opcode)
		case f.Role == layout.Opcode:
			b.emitOpcode(checkOpcode, f, ctx.opcode)
		case f.Role == layout.Exception && send:
			b.emitCopy(putException, f, 0)
		case f.Role == layout.Exception && ctx.dir == layout.Out:
			b.emitCopy(checkException, f, 0)
		case f.IsCompanion():
			b.emitCopy(copyCount, f, 0)
		default:
			b.emitCopy(copyScalar, f, 0)
		}
	case *layout.Array:
		if f.Role == layout.Pad {
			b.emitCopy(skipPad, f, 0)
			return
		}
		b.emitCopy(copyArray, f, receiveMode(f, send))
	case *layout.String:
		b.emitCopy(copyString, f, receiveMode(f, send))
	case *layout.Struct:
		body := &block{}
		for _, member := range t.Fields {
			m.field(body, member, ctx)
		}
		b.emitStruct(f, body)
	case *layout.Union:
		var cases []caseBlock
		for _, c := range t.Cases {
			body := &block{}
			if c.Payload != nil {
				m.field(body, c.Payload, ctx)
			}
			cases = append(cases, caseBlock{c: c, body: body})
		}
		b.emitSelectCase(f, cases)
	case *layout.Pointer:
		b.emitCopy(copyPointer, f, 0)
	case *layout.Descriptor:
		b.emitCopy(copyDescriptor, f, receiveMode(f, send))
	default:
		panic(fmt.Sprintf("unknown wire type %T", t))
	}
}

// receiveMode picks where a received sequence is stored. Unbounded byte
// arrays are bound into the message buffer rather than copied.
func receiveMode(f *layout.Field, send bool) bufferMode {
	if send {
		return 0
	}
	t := f.Type
	if d, ok := t.(*layout.Descriptor); ok {
		t = d.Data
	}
	switch t := t.(type) {
	case *layout.Array:
		if t.Bound == layout.FixedBound {
			return modeCopy
		}
		if f.Prealloc {
			return modePrealloc
		}
		if t.N == 0 && layout.ElementSize(t) == 1 {
			return modeBind
		}
	case *layout.String:
		if f.Prealloc {
			return modePrealloc
		}
	}
	return modeAlloc
}
