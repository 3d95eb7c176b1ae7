// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package marshal

import (
	"bytes"
	"fmt"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/layout"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/names"
)

// PrintOptions names the C entities a printed function refers to.
type PrintOptions struct {
	// ArgsType is the in-memory argument struct, e.g. "struct svc_foo_args".
	ArgsType string
	// Opcode is the constant holding the operation's opcode.
	Opcode string
}

// Printer renders programs as C functions. The helpers it calls (IPC_PUT,
// IPC_GET and friends) are defined by the runtime prelude of the C backend.
type Printer struct {
	buf   *bytes.Buffer
	level int

	prog    *Program
	opts    PrintOptions
	exprs   map[*layout.Field]string
	parents map[*layout.Field]string
	ool     []*layout.Field
	labels  int

	cur, end string
}

func NewPrinter(buf *bytes.Buffer) *Printer {
	return &Printer{buf: buf}
}

const indent = "  "

func (p *Printer) writef(format string, a ...interface{}) {
	for i := 0; i < p.level; i++ {
		p.buf.WriteString(indent)
	}
	p.buf.WriteString(fmt.Sprintf(format, a...))
}

func (p *Printer) indent(fn func()) {
	p.level++
	fn()
	p.level--
}

func (p *Printer) label(prefix string) string {
	p.labels++
	return fmt.Sprintf("%s%d", prefix, p.labels)
}

var cScalarTypes = map[ir.PrimitiveSubtype]string{
	ir.Bool:    "bool",
	ir.Char:    "char",
	ir.Int8:    "int8_t",
	ir.Int16:   "int16_t",
	ir.Int32:   "int32_t",
	ir.Int64:   "int64_t",
	ir.Uint8:   "uint8_t",
	ir.Uint16:  "uint16_t",
	ir.Uint32:  "uint32_t",
	ir.Uint64:  "uint64_t",
	ir.Float32: "float",
	ir.Float64: "double",
}

// CType returns the C type holding a value of t in memory. Sequences are
// pointers; fixed arrays are returned as their element type.
func CType(t layout.Type) string {
	switch t := t.(type) {
	case *layout.Scalar:
		return cScalarTypes[t.Subtype]
	case *layout.Array:
		if t.Bound == layout.FixedBound {
			return CType(t.Elem)
		}
		return CType(t.Elem) + "*"
	case *layout.String:
		return "char*"
	case *layout.Struct:
		return "struct " + names.ToSnakeCase(t.Name)
	case *layout.Union:
		return "struct " + names.ToSnakeCase(t.Name)
	case *layout.Pointer:
		return "struct " + names.ToSnakeCase(t.Target) + "*"
	case *layout.Descriptor:
		return CType(t.Data)
	}
	panic(fmt.Sprintf("unknown wire type %T", t))
}

// pointerWord is the unsigned type of a pointer-width field.
func pointerWord(size int) string {
	return cScalarTypes[ir.UnsignedOfSize(size)]
}

// bind records the in-memory expression of every field reachable from
// fields. It runs before printing because a companion is printed before
// the field it counts.
func (p *Printer) bind(fields []*layout.Field, parent string) {
	for _, f := range fields {
		if f.Role == layout.Opcode || f.Role == layout.Pad {
			continue
		}
		if f.Synthesized {
			p.exprs[f] = f.Name
			continue
		}
		p.parents[f] = parent
		e := parent + f.Name
		p.exprs[f] = e
		t := f.Type
		if d, ok := t.(*layout.Descriptor); ok {
			t = d.Data
		}
		switch t := t.(type) {
		case *layout.Struct:
			p.bind(t.Fields, e+".")
		case *layout.Union:
			for _, c := range t.Cases {
				if c.Payload != nil {
					p.bind([]*layout.Field{c.Payload}, e+".u.")
				}
			}
		}
	}
}

// bulkPrefix returns the leading members of t whose in-memory layout matches
// the wire: plain scalars, or fixed arrays of them, each at an offset aligned
// to its element size. Their bytes are copied in one block. A prefix of fewer
// than two members is not worth it and is reported as empty.
func bulkPrefix(t *layout.Struct) (map[*layout.Field]bool, int) {
	prefix := map[*layout.Field]bool{}
	size := 0
	for _, f := range t.Fields {
		if f.Size == layout.Variable || f.Synthesized || f.Role != layout.Payload || f.Presented != nil || f.IsCompanion() {
			break
		}
		elem := f.Type
		if a, ok := elem.(*layout.Array); ok && a.Bound == layout.FixedBound {
			elem = a.Elem
		}
		s, ok := elem.(*layout.Scalar)
		if !ok {
			break
		}
		if n := s.Subtype.NumberOfBytes(); size%n != 0 {
			break
		}
		prefix[f] = true
		size += f.Size
	}
	if len(prefix) < 2 {
		return nil, 0
	}
	return prefix, size
}

// sendCount is the clamped number of elements sent for f.
func (p *Printer) sendCount(f *layout.Field) string {
	t := f.Type
	if d, ok := t.(*layout.Descriptor); ok {
		t = d.Data
	}
	val := p.exprs[f]
	var n string
	max := layout.MaxCount(t)
	switch t := t.(type) {
	case *layout.String:
		if f.Length != nil && !f.Length.Synthesized {
			n = fmt.Sprintf("IPC_MIN(%s, %d)", p.exprs[f.Length], t.Max)
		} else {
			n = fmt.Sprintf("ipc_string_count(%s, %d)", val, t.Max)
		}
		max = 0
	case *layout.Array:
		switch {
		case t.Bound == layout.FixedBound:
			return fmt.Sprint(t.N)
		case f.Length != nil && !f.Length.Synthesized:
			n = p.exprs[f.Length]
		default:
			n = val + "_count"
		}
	}
	if max > 0 {
		n = fmt.Sprintf("IPC_MIN(%s, %d)", n, max)
	}
	if f.MaxRef != nil {
		n = fmt.Sprintf("IPC_MIN(%s, %s%s)", n, p.parents[f], f.MaxRef.Last())
	}
	return n
}

// sharedCount is the value sent in companion c: the smallest of the
// clamped counts of the fields it counts.
func (p *Printer) sharedCount(c *layout.Field) string {
	n := p.sendCount(c.Counts[0])
	for _, f := range c.Counts[1:] {
		n = fmt.Sprintf("IPC_MIN(%s, %s)", n, p.sendCount(f))
	}
	return n
}

// elementCount is the number of elements of f put on the wire. It matches
// the value sent in f's companion.
func (p *Printer) elementCount(f *layout.Field) string {
	if f.Length != nil && len(f.Length.Counts) > 1 {
		return p.sharedCount(f.Length)
	}
	return p.sendCount(f)
}

// receiveCount is the received number of elements of f.
func (p *Printer) receiveCount(f *layout.Field) string {
	if a, ok := f.Type.(*layout.Array); ok && a.Bound == layout.FixedBound {
		return fmt.Sprint(a.N)
	}
	if _, ok := f.Type.(*layout.Descriptor); ok {
		return f.Name + "_count"
	}
	return p.exprs[f.Length]
}

// WriteProgram writes the C function running prog.
func (p *Printer) WriteProgram(prog *Program, opts PrintOptions) {
	p.prog = prog
	p.opts = opts
	p.exprs = map[*layout.Field]string{}
	p.parents = map[*layout.Field]string{}
	p.ool = nil
	p.cur, p.end = "cur", "end"
	p.bind(prog.Message.Fields(), "args->")

	if prog.Send {
		p.writef("int64_t %s(const %s* args, uint8_t* buf) {\n", prog.Name(), opts.ArgsType)
		p.indent(func() {
			p.writef("uint8_t* cur = buf;\n")
			p.sendBlock(&prog.body)
			for _, f := range p.ool {
				d := f.Type.(*layout.Descriptor)
				count := p.elementCount(f)
				p.writef("IPC_PUT_OOL_HEADER(cur, buf, desc_%s, %s, %d);\n", f.Name, count, d.WordSize)
				switch data := d.Data.(type) {
				case *layout.String:
					p.writef("IPC_PUT_BYTES(cur, %s, %s);\n", p.exprs[f], count)
				case *layout.Array:
					p.sendArray(data, p.exprs[f], count)
				}
			}
			p.writef("return (int64_t)(cur - buf);\n")
		})
		p.writef("}\n")
		return
	}

	p.writef("int %s(%s* args, const uint8_t* buf, size_t size) {\n", prog.Name(), opts.ArgsType)
	p.indent(func() {
		p.writef("const uint8_t* cur = buf;\n")
		p.writef("const uint8_t* end = buf + size;\n")
		prog.body.forAllStatements(func(s *statement) {
			switch {
			case s.kind == copyCount && s.field.Synthesized:
				p.writef("uint32_t %s = 0;\n", s.field.Name)
			case s.kind == copyDescriptor:
				p.writef("uint64_t %s_offset = 0, %s_count = 0;\n", s.field.Name, s.field.Name)
			}
		})
		p.receiveBlock(&prog.body)
		p.writef("return IPC_OK;\n")
	})
	p.writef("}\n")
}

func (p *Printer) sendBlock(b *block) {
	for i := range b.stmts {
		p.send(&b.stmts[i])
	}
}

func (p *Printer) send(s *statement) {
	f := s.field
	val := p.exprs[f]
	switch s.kind {
	case putOpcode:
		p.writef("IPC_PUT(%s, uint32_t, %s);\n", p.cur, p.opts.Opcode)
	case putException:
		p.writef("IPC_PUT(%s, %s, %s);\n", p.cur, CType(f.Type), val)
	case copyScalar:
		wire := CType(f.Type)
		if f.Presented != nil {
			val = fmt.Sprintf("(%s)%s", wire, val)
		}
		p.writef("IPC_PUT(%s, %s, %s);\n", p.cur, wire, val)
	case copyCount:
		count := p.exprs[f]
		if len(f.Counts) > 0 {
			count = p.sharedCount(f)
		}
		p.writef("IPC_PUT(%s, %s, %s); /* %s */\n", p.cur, CType(f.Type), count, f.Name)
	case copyString:
		p.writef("IPC_PUT_BYTES(%s, %s, %s);\n", p.cur, val, p.elementCount(f))
	case copyArray:
		p.sendArray(f.Type.(*layout.Array), val, p.elementCount(f))
	case copyDescriptor:
		p.writef("uint8_t* desc_%s = %s;\n", f.Name, p.cur)
		p.writef("IPC_ZERO(%s, %d);\n", p.cur, f.Size)
		p.ool = append(p.ool, f)
	case copyStruct:
		p.writef("/* %s */\n", val)
		prefix, size := bulkPrefix(f.Type.(*layout.Struct))
		if size > 0 {
			p.writef("IPC_PUT_BYTES(%s, &%s, %d);\n", p.cur, val, size)
		}
		for i := range s.body.stmts {
			if !prefix[s.body.stmts[i].field] {
				p.send(&s.body.stmts[i])
			}
		}
	case selectCase:
		p.sendUnion(f.Type.(*layout.Union), val, func(c *layout.Case) {
			p.sendBlock(matchBlock(s.cases, c).body)
		})
	case copyPointer:
		w := pointerWord(f.Size)
		p.writef("IPC_PUT(%s, %s, (%s)(uintptr_t)%s);\n", p.cur, w, w, val)
	case skipPad:
		p.writef("IPC_ZERO(%s, %d);\n", p.cur, f.Size)
	}
}

func (p *Printer) sendArray(a *layout.Array, val, count string) {
	if _, ok := a.Elem.(*layout.Scalar); ok {
		p.writef("IPC_PUT_ARRAY(%s, %s, %s, %s);\n", p.cur, CType(a.Elem), val, count)
		return
	}
	i := p.label("i")
	p.writef("for (uint32_t %s = 0; %s < %s; %s++) {\n", i, i, count, i)
	p.indent(func() {
		p.sendValue(a.Elem, fmt.Sprintf("%s[%s]", val, i))
	})
	p.writef("}\n")
}

func (p *Printer) sendValue(t layout.Type, val string) {
	switch t := t.(type) {
	case *layout.Scalar:
		p.writef("IPC_PUT(%s, %s, %s);\n", p.cur, CType(t), val)
	case *layout.Pointer:
		w := pointerWord(t.Size)
		p.writef("IPC_PUT(%s, %s, (%s)(uintptr_t)%s);\n", p.cur, w, w, val)
	case *layout.Array:
		p.sendArray(t, val, fmt.Sprint(t.N))
	case *layout.Struct:
		prefix, size := bulkPrefix(t)
		if size > 0 {
			p.writef("IPC_PUT_BYTES(%s, &%s, %d);\n", p.cur, val, size)
		}
		for _, m := range t.Fields {
			if !prefix[m] {
				p.sendValue(m.Type, val+"."+m.Name)
			}
		}
	case *layout.Union:
		p.sendUnion(t, val, func(c *layout.Case) {
			p.sendValue(c.Payload.Type, val+".u."+c.Payload.Name)
		})
	}
}

func (p *Printer) sendUnion(u *layout.Union, val string, arm func(*layout.Case)) {
	p.writef("IPC_PUT(%s, %s, %s.tag);\n", p.cur, CType(u.Discriminant.Type), val)
	payload, fixed := unionPayloadSize(u)
	p.writef("{\n")
	p.indent(func() {
		start := p.label("start")
		if fixed {
			p.writef("uint8_t* %s = %s;\n", start, p.cur)
		}
		p.writef("switch (%s.tag) {\n", val)
		hasDefault := false
		for _, c := range u.Cases {
			if c.Default {
				hasDefault = true
				p.writef("default:\n")
			}
			for _, l := range c.Labels {
				p.writef("case %d:\n", l)
			}
			p.indent(func() {
				if c.Payload != nil {
					arm(c)
				}
				p.writef("break;\n")
			})
		}
		if !hasDefault {
			p.writef("default:\n")
			p.indent(func() {
				if fixed {
					p.writef("IPC_PUT_BYTES(%s, %s.u.raw, %d);\n", p.cur, val, payload)
					p.writef("break;\n")
				} else {
					p.writef("return IPC_ERR_PROTOCOL;\n")
				}
			})
		}
		p.writef("}\n")
		if fixed {
			p.writef("IPC_ZERO(%s, %d - (%s - %s));\n", p.cur, payload, p.cur, start)
		}
	})
	p.writef("}\n")
}

func (p *Printer) receiveBlock(b *block) {
	for i := range b.stmts {
		p.receive(&b.stmts[i])
	}
}

func (p *Printer) receive(s *statement) {
	f := s.field
	val := p.exprs[f]
	switch s.kind {
	case checkOpcode:
		p.writef("IPC_EXPECT(%s, %s, uint32_t, %s);\n", p.cur, p.end, p.opts.Opcode)
	case checkException:
		p.writef("IPC_GET(%s, %s, %s, %s);\n", p.cur, p.end, CType(f.Type), val)
		p.writef("if (%s != 0) {\n", val)
		p.indent(func() {
			p.writef("return IPC_RAISED;\n")
		})
		p.writef("}\n")
	case copyScalar:
		if f.Presented != nil {
			tmp := p.label("wire")
			p.writef("%s %s;\n", CType(f.Type), tmp)
			p.writef("IPC_GET(%s, %s, %s, %s);\n", p.cur, p.end, CType(f.Type), tmp)
			p.writef("%s = (%s)%s;\n", val, CType(f.Presented), tmp)
			return
		}
		p.writef("IPC_GET(%s, %s, %s, %s);\n", p.cur, p.end, CType(f.Type), val)
	case copyCount:
		p.writef("IPC_GET(%s, %s, %s, %s);\n", p.cur, p.end, CType(f.Type), val)
	case copyString:
		p.receiveString(f, val, p.receiveCount(f), s.mode)
	case copyArray:
		p.receiveArray(f, f.Type.(*layout.Array), val, p.receiveCount(f), s.mode)
	case copyDescriptor:
		d := f.Type.(*layout.Descriptor)
		p.writef("IPC_GET_OOL(%s, %s, %d, %s_offset, %s_count);\n", p.cur, p.end, d.WordSize, f.Name, f.Name)
		p.writef("{\n")
		p.indent(func() {
			saved := [2]string{p.cur, p.end}
			p.cur, p.end = p.label("ocur"), p.label("oend")
			p.writef("const uint8_t* %s = buf + %s_offset;\n", p.cur, f.Name)
			p.writef("const uint8_t* %s = %s + %s_count * %d;\n", p.end, p.cur, f.Name, layout.ElementSize(d))
			p.writef("IPC_CHECK(%s <= end);\n", p.end)
			switch data := d.Data.(type) {
			case *layout.String:
				p.receiveString(f, val, f.Name+"_count", s.mode)
			case *layout.Array:
				p.receiveArray(f, data, val, f.Name+"_count", s.mode)
			}
			p.cur, p.end = saved[0], saved[1]
		})
		p.writef("}\n")
	case copyStruct:
		p.writef("/* %s */\n", val)
		prefix, size := bulkPrefix(f.Type.(*layout.Struct))
		if size > 0 {
			p.writef("IPC_GET_BYTES(%s, %s, &%s, %d);\n", p.cur, p.end, val, size)
		}
		for i := range s.body.stmts {
			if !prefix[s.body.stmts[i].field] {
				p.receive(&s.body.stmts[i])
			}
		}
	case selectCase:
		p.receiveUnion(f.Type.(*layout.Union), val, func(c *layout.Case) {
			p.receiveBlock(matchBlock(s.cases, c).body)
		})
	case copyPointer:
		w := pointerWord(f.Size)
		tmp := p.label("ptr")
		p.writef("%s %s;\n", w, tmp)
		p.writef("IPC_GET(%s, %s, %s, %s);\n", p.cur, p.end, w, tmp)
		p.writef("%s = (%s)(uintptr_t)%s;\n", val, CType(f.Type), tmp)
	case skipPad:
		p.writef("IPC_SKIP(%s, %s, %d);\n", p.cur, p.end, f.Size)
	}
}

func (p *Printer) receiveString(f *layout.Field, val, count string, mode bufferMode) {
	max := layout.MaxCount(f.Type)
	p.writef("IPC_CHECK(%s <= %d);\n", count, max)
	p.checkMaxRef(f, count)
	if mode == modePrealloc {
		p.writef("IPC_GET_STRING(%s, %s, %s, %s);\n", p.cur, p.end, val, count)
		return
	}
	p.writef("IPC_GET_STRING_ALLOC(%s, %s, %s, %s, %d);\n", p.cur, p.end, val, count, max)
}

func (p *Printer) receiveArray(f *layout.Field, a *layout.Array, val, count string, mode bufferMode) {
	if a.N > 0 && a.Bound != layout.FixedBound {
		p.writef("IPC_CHECK(%s <= %d);\n", count, a.N)
	}
	p.checkMaxRef(f, count)
	elem := CType(a.Elem)
	if _, ok := a.Elem.(*layout.Scalar); ok {
		switch mode {
		case modeBind:
			p.writef("IPC_BIND_ARRAY(%s, %s, %s, %s, %s);\n", p.cur, p.end, elem, val, count)
		case modeAlloc:
			p.writef("IPC_GET_ARRAY_ALLOC(%s, %s, %s, %s, %s);\n", p.cur, p.end, elem, val, count)
		default:
			p.writef("IPC_GET_ARRAY(%s, %s, %s, %s, %s);\n", p.cur, p.end, elem, val, count)
		}
	} else {
		if mode == modeAlloc || mode == modeBind {
			p.writef("IPC_ALLOC(%s, %s, %s);\n", val, elem, count)
		}
		i := p.label("i")
		p.writef("for (uint32_t %s = 0; %s < %s; %s++) {\n", i, i, count, i)
		p.indent(func() {
			p.receiveValue(a.Elem, fmt.Sprintf("%s[%s]", val, i))
		})
		p.writef("}\n")
	}
	if a.Bound != layout.FixedBound && (f.Length == nil || f.Length.Synthesized) {
		p.writef("%s_count = %s;\n", val, count)
	}
}

// checkMaxRef rejects a received count above the runtime maximum of f.
func (p *Printer) checkMaxRef(f *layout.Field, count string) {
	if f.MaxRef != nil {
		p.writef("IPC_CHECK(%s <= %s%s);\n", count, p.parents[f], f.MaxRef.Last())
	}
}

func (p *Printer) receiveValue(t layout.Type, val string) {
	switch t := t.(type) {
	case *layout.Scalar:
		p.writef("IPC_GET(%s, %s, %s, %s);\n", p.cur, p.end, CType(t), val)
	case *layout.Pointer:
		w := pointerWord(t.Size)
		p.writef("IPC_SKIP(%s, %s, sizeof(%s));\n", p.cur, p.end, w)
		p.writef("%s = NULL;\n", val)
	case *layout.Array:
		if _, ok := t.Elem.(*layout.Scalar); ok {
			p.writef("IPC_GET_ARRAY(%s, %s, %s, %s, %d);\n", p.cur, p.end, CType(t.Elem), val, t.N)
			return
		}
		i := p.label("i")
		p.writef("for (uint32_t %s = 0; %s < %d; %s++) {\n", i, i, t.N, i)
		p.indent(func() {
			p.receiveValue(t.Elem, fmt.Sprintf("%s[%s]", val, i))
		})
		p.writef("}\n")
	case *layout.Struct:
		prefix, size := bulkPrefix(t)
		if size > 0 {
			p.writef("IPC_GET_BYTES(%s, %s, &%s, %d);\n", p.cur, p.end, val, size)
		}
		for _, m := range t.Fields {
			if !prefix[m] {
				p.receiveValue(m.Type, val+"."+m.Name)
			}
		}
	case *layout.Union:
		p.receiveUnion(t, val, func(c *layout.Case) {
			p.receiveValue(c.Payload.Type, val+".u."+c.Payload.Name)
		})
	}
}

func (p *Printer) receiveUnion(u *layout.Union, val string, arm func(*layout.Case)) {
	p.writef("IPC_GET(%s, %s, %s, %s.tag);\n", p.cur, p.end, CType(u.Discriminant.Type), val)
	payload, fixed := unionPayloadSize(u)
	p.writef("{\n")
	p.indent(func() {
		start := p.label("start")
		if fixed {
			p.writef("const uint8_t* %s = %s;\n", start, p.cur)
		}
		p.writef("switch (%s.tag) {\n", val)
		hasDefault := false
		for _, c := range u.Cases {
			if c.Default {
				hasDefault = true
				p.writef("default:\n")
			}
			for _, l := range c.Labels {
				p.writef("case %d:\n", l)
			}
			p.indent(func() {
				if c.Payload != nil {
					arm(c)
				}
				p.writef("break;\n")
			})
		}
		if !hasDefault {
			p.writef("default:\n")
			p.indent(func() {
				if fixed {
					p.writef("IPC_UNKNOWN_TAG(%s.tag);\n", val)
					p.writef("IPC_GET_ARRAY(%s, %s, uint8_t, %s.u.raw, %d);\n", p.cur, p.end, val, payload)
					p.writef("break;\n")
				} else {
					p.writef("return IPC_ERR_PROTOCOL;\n")
				}
			})
		}
		p.writef("}\n")
		if fixed {
			p.writef("IPC_SKIP(%s, %s, %d - (%s - %s));\n", p.cur, p.end, payload, p.cur, start)
		}
	})
	p.writef("}\n")
}
