// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package marshal

import (
	"strings"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/layout"
)

type statementKind int

const (
	_ statementKind = iota

	putOpcode
	checkOpcode
	putException
	checkException
	copyScalar
	copyCount
	copyString
	copyArray
	copyStruct
	selectCase
	copyPointer
	copyDescriptor
	skipPad
)

func (k statementKind) String() string {
	switch k {
	case putOpcode:
		return "PutOpcode"
	case checkOpcode:
		return "CheckOpcode"
	case putException:
		return "PutException"
	case checkException:
		return "CheckException"
	case copyScalar:
		return "CopyScalar"
	case copyCount:
		return "CopyCount"
	case copyString:
		return "CopyString"
	case copyArray:
		return "CopyArray"
	case copyStruct:
		return "CopyStruct"
	case selectCase:
		return "SelectCase"
	case copyPointer:
		return "CopyPointer"
	case copyDescriptor:
		return "CopyDescriptor"
	case skipPad:
		return "SkipPad"
	}
	return "Unknown"
}

// bufferMode says where received arrays and strings are stored.
type bufferMode int

const (
	_ bufferMode = iota

	// modeCopy copies into storage of fixed dimension.
	modeCopy
	// modeAlloc allocates storage sized to the received count.
	modeAlloc
	// modePrealloc copies into storage supplied by the caller.
	modePrealloc
	// modeBind points the value into the message buffer.
	modeBind
)

func (m bufferMode) String() string {
	switch m {
	case modeCopy:
		return "copy"
	case modeAlloc:
		return "alloc"
	case modePrealloc:
		return "prealloc"
	case modeBind:
		return "bind"
	}
	return ""
}

// statement is one step of marshaling or unmarshaling a message. It is one
// of:
//
// * PutOpcode(F, N) / CheckOpcode(F, N): write opcode N, or read F and fail
//   unless it equals N.
//
// * PutException(F) / CheckException(F): write the exception word, or read
//   it and stop if it is set.
//
// * CopyScalar(F), CopyPointer(F): copy a fixed value, casting if the
//   in-memory type differs.
//
// * CopyCount(F): copy the element count of the fields F counts.
//
// * CopyString(F), CopyArray(F), CopyDescriptor(F): copy a counted sequence,
//   clamping on send and storing per mode on receive.
//
// * CopyStruct(F, B): run block B over the members of F.
//
// * SelectCase(F, cases): copy the discriminant of union F, then run the
//   block of the matching case.
//
// * SkipPad(F): write zeros, or skip them.
type statement struct {
	kind   statementKind
	field  *layout.Field
	mode   bufferMode
	opcode uint32
	body   *block
	cases  []caseBlock
}

type caseBlock struct {
	c    *layout.Case
	body *block
}

type block struct {
	stmts []statement
}

func (b *block) emit(s statement) {
	b.stmts = append(b.stmts, s)
}

func (b *block) emitOpcode(kind statementKind, f *layout.Field, opcode uint32) {
	b.emit(statement{kind: kind, field: f, opcode: opcode})
}

func (b *block) emitCopy(kind statementKind, f *layout.Field, mode bufferMode) {
	b.emit(statement{kind: kind, field: f, mode: mode})
}

func (b *block) emitStruct(f *layout.Field, body *block) {
	b.emit(statement{kind: copyStruct, field: f, body: body})
}

func (b *block) emitSelectCase(f *layout.Field, cases []caseBlock) {
	b.emit(statement{kind: selectCase, field: f, cases: cases})
}

func (b *block) forAllStatements(fn func(stmt *statement)) {
	for i := range b.stmts {
		fn(&b.stmts[i])
		if b.stmts[i].body != nil {
			b.stmts[i].body.forAllStatements(fn)
		}
		for _, c := range b.stmts[i].cases {
			c.body.forAllStatements(fn)
		}
	}
}

// Program is the statement list marshaling or unmarshaling one message.
type Program struct {
	Message *layout.MessageStruct
	Send    bool
	Opcode  uint32

	body block
}

// Kinds lists the statement kinds of the program in execution order,
// nested blocks included.
func (p *Program) Kinds() []string {
	var out []string
	p.body.forAllStatements(func(s *statement) {
		out = append(out, s.kind.String())
	})
	return out
}

// Name is the name of the generated function running the program.
func (p *Program) Name() string {
	base := strings.TrimSuffix(p.Message.Name, "_msg")
	if p.Send {
		return base + "_marshal"
	}
	return base + "_unmarshal"
}
