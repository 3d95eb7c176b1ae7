// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package c

import (
	"bytes"
	"fmt"
	"strings"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/compiler"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/layout"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/marshal"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/names"
)

// Root is the template view of one compiled library.
type Root struct {
	Library string
	Guard   string
	Header  string
	Runtime string
	Types   []TypeDecl
	// Interfaces are in topological order, bases first.
	Interfaces []Interface
}

// TypeDecl is the in-memory declaration of a struct or union.
type TypeDecl struct {
	Name    string
	Union   bool
	Tag     string
	Members []string
}

type Interface struct {
	Name       string
	NumberName string
	Number     uint32
	Operations []Operation
}

type Operation struct {
	Name       string
	OpcodeName string
	Opcode     uint32
	ArgsType   string
	Args       []string
	Messages   []Message
}

type Message struct {
	Name      string
	Direction string
	Size      string
	Fields    []string
	// Prototypes and Functions are empty for the generic message.
	Prototypes []string
	Functions  []string
}

// decl declares a C variable or member of in-memory type t.
func decl(t layout.Type, name string) string {
	switch t := t.(type) {
	case *layout.Array:
		if t.Bound == layout.FixedBound {
			return decl(t.Elem, fmt.Sprintf("%s[%d]", name, t.N))
		}
	case *layout.Descriptor:
		return decl(t.Data, name)
	}
	return marshal.CType(t) + " " + name
}

// members declares the in-memory members holding fields. A sequence without
// a caller-visible count gets a _count member next to it.
func members(fields []*layout.Field) []string {
	var out []string
	for _, f := range fields {
		if f.Synthesized || f.Role == layout.Pad || f.Role == layout.Opcode {
			continue
		}
		t := f.Type
		if f.Presented != nil {
			t = f.Presented
		}
		out = append(out, decl(t, f.Name)+";")
		if needsCount(f) {
			out = append(out, fmt.Sprintf("uint32_t %s_count;", f.Name))
		}
	}
	return out
}

func needsCount(f *layout.Field) bool {
	t := f.Type
	if d, ok := t.(*layout.Descriptor); ok {
		t = d.Data
	}
	a, ok := t.(*layout.Array)
	return ok && a.Bound != layout.FixedBound && (f.Length == nil || f.Length.Synthesized)
}

// wireMember declares a field of the packed fixed prefix of a message.
func wireMember(f *layout.Field) string {
	switch t := f.Type.(type) {
	case *layout.Scalar:
		return fmt.Sprintf("%s %s;", marshal.CType(t), f.Name)
	case *layout.Pointer:
		return fmt.Sprintf("uint%d_t %s;", 8*t.Size, f.Name)
	}
	return fmt.Sprintf("uint8_t %s[%d];", f.Name, f.Size)
}

func sizeComment(ms *layout.MessageStruct) string {
	switch {
	case ms.Size() != layout.Unbounded:
		return fmt.Sprintf("%d bytes", ms.Size())
	case ms.MaxSize() != layout.Unbounded:
		return fmt.Sprintf("at most %d bytes", ms.MaxSize())
	}
	return "unbounded"
}

// typeCollector gathers struct and union declarations so that every type
// is declared after the types it contains by value.
type typeCollector struct {
	seen  map[string]bool
	decls []TypeDecl
}

func (tc *typeCollector) fields(fields []*layout.Field) {
	for _, f := range fields {
		tc.typ(f.Type)
	}
}

func (tc *typeCollector) typ(t layout.Type) {
	switch t := t.(type) {
	case *layout.Array:
		tc.typ(t.Elem)
	case *layout.Descriptor:
		tc.typ(t.Data)
	case *layout.Struct:
		name := names.ToSnakeCase(t.Name)
		if tc.seen[name] {
			return
		}
		tc.seen[name] = true
		tc.fields(t.Fields)
		tc.decls = append(tc.decls, TypeDecl{Name: name, Members: members(t.Fields)})
	case *layout.Union:
		name := names.ToSnakeCase(t.Name)
		if tc.seen[name] {
			return
		}
		tc.seen[name] = true
		d := TypeDecl{Name: name, Union: true, Tag: marshal.CType(t.Discriminant.Type)}
		for _, c := range t.Cases {
			if c.Payload == nil {
				continue
			}
			tc.typ(c.Payload.Type)
			d.Members = append(d.Members, members([]*layout.Field{c.Payload})...)
		}
		if size, ok := layout.FixedSize(t); ok {
			d.Members = append(d.Members, fmt.Sprintf("uint8_t raw[%d];", size-t.Discriminant.Size))
		}
		tc.decls = append(tc.decls, d)
	}
}

// newRoot builds the template view of root. Function bodies are rendered
// here with a marshal.Printer.
func newRoot(root *compiler.Root, header, runtime string) Root {
	out := Root{
		Library: root.Library,
		Guard:   names.ToConstCase(root.Library) + "_IPCGEN_H_",
		Header:  header,
		Runtime: runtime,
	}
	tc := &typeCollector{seen: map[string]bool{}}
	for _, iface := range root.Interfaces {
		v := Interface{
			Name:       iface.Name,
			NumberName: names.ToConstCase(iface.Name) + "_INTERFACE_NUMBER",
			Number:     iface.Number,
		}
		for _, op := range iface.Operations {
			v.Operations = append(v.Operations, newOperation(iface, op, tc))
		}
		out.Interfaces = append(out.Interfaces, v)
	}
	out.Types = tc.decls
	return out
}

func newOperation(iface *compiler.Interface, op *compiler.Operation, tc *typeCollector) Operation {
	v := Operation{
		Name:       op.Decl.Name,
		OpcodeName: op.OpcodeName,
		Opcode:     op.Assignment.Opcode,
		ArgsType:   fmt.Sprintf("struct %s_%s_args", names.ToSnakeCase(iface.Name), names.ToSnakeCase(op.Decl.Name)),
	}

	// The argument struct is the union of the top-level fields of every
	// direction; a pulled parameter appears once.
	seen := map[string]bool{}
	for _, m := range op.Messages {
		ms := m.Struct
		if ms.Direction == layout.Generic {
			continue
		}
		tc.fields(ms.Fields())
		for _, line := range members(ms.Fields()) {
			if !seen[line] {
				seen[line] = true
				v.Args = append(v.Args, line)
			}
		}
	}
	if len(v.Args) == 0 {
		v.Args = []string{"uint8_t unused_;"}
	}

	opts := marshal.PrintOptions{ArgsType: v.ArgsType, Opcode: op.OpcodeName}
	for _, m := range op.Messages {
		ms := m.Struct
		if ms.IsEmpty() {
			continue
		}
		msg := Message{
			Name:      ms.Name,
			Direction: ms.Direction.String(),
			Size:      sizeComment(ms),
		}
		for _, f := range ms.Fields() {
			if f.Offset < 0 {
				break
			}
			msg.Fields = append(msg.Fields, wireMember(f))
		}
		if len(msg.Fields) == 0 {
			msg.Fields = []string{"uint8_t tail_[1];"}
		}
		if ms.Direction != layout.Generic {
			for _, p := range []*marshal.Program{m.Marshal, m.Unmarshal} {
				var buf bytes.Buffer
				marshal.NewPrinter(&buf).WriteProgram(p, opts)
				fn := buf.String()
				msg.Functions = append(msg.Functions, fn)
				msg.Prototypes = append(msg.Prototypes, prototype(fn))
			}
		}
		v.Messages = append(v.Messages, msg)
	}
	return v
}

// prototype turns the first line of a printed function into a declaration.
func prototype(fn string) string {
	line := fn
	if i := strings.IndexByte(fn, '\n'); i >= 0 {
		line = fn[:i]
	}
	return strings.TrimSuffix(line, " {") + ";"
}
