// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package marshal

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/diag"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/layout"
)

// Codec runs programs against Go values and little-endian byte buffers.
type Codec struct {
	reporter *diag.Reporter
}

// NewCodec returns a Codec reporting clamps and unmatched union tags
// through r.
func NewCodec(r *diag.Reporter) *Codec {
	return &Codec{reporter: r}
}

// key locates a field's value within its frame.
func key(f *layout.Field) string {
	if len(f.Path) == 0 {
		return f.Name
	}
	return f.Path.Last()
}

func unionValue(v interface{}) (UnionValue, error) {
	switch v := v.(type) {
	case nil:
		return UnionValue{}, nil
	case UnionValue:
		return v, nil
	case *UnionValue:
		return *v, nil
	}
	return UnionValue{}, fmt.Errorf("%v (%T) is not a union value", v, v)
}

func matchCase(u *layout.Union, tag int64) *layout.Case {
	var def *layout.Case
	for _, c := range u.Cases {
		if c.Default {
			def = c
		}
		for _, l := range c.Labels {
			if l == tag {
				return c
			}
		}
	}
	return def
}

func matchBlock(cases []caseBlock, c *layout.Case) *caseBlock {
	for i := range cases {
		if cases[i].c == c {
			return &cases[i]
		}
	}
	return nil
}

func toInt64(v interface{}) int64 {
	bits, _ := integerBits(v)
	return int64(bits)
}

// unionPayloadSize is the fixed footprint of a union's payload, or false
// for a variable union.
func unionPayloadSize(u *layout.Union) (int, bool) {
	size, ok := layout.FixedSize(u)
	return size - u.Discriminant.Size, ok
}

type encoder struct {
	codec   *Codec
	program *Program
	buf     []byte

	// counts holds the clamped element count of each variable field, and
	// companions the value written for each count field.
	counts     map[*layout.Field]int
	companions map[*layout.Field]uint64

	outOfLine []pendingSegment
}

// pendingSegment is out-of-line data waiting for the inline part to end.
type pendingSegment struct {
	at   int
	word int
	data []byte
}

// Encode runs a send program over args.
func (c *Codec) Encode(p *Program, args Values) ([]byte, error) {
	if !p.Send {
		return nil, fmt.Errorf("%s is not a send program", p.Name())
	}
	e := &encoder{
		codec:      c,
		program:    p,
		counts:     make(map[*layout.Field]int),
		companions: make(map[*layout.Field]uint64),
	}
	if err := e.measure(p.Message.Fields(), args); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Message.Name, err)
	}
	if err := e.block(&p.body, args); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Message.Name, err)
	}
	for _, seg := range e.outOfLine {
		e.putAt(seg.at, uint64(len(e.buf)), seg.word)
		e.buf = append(e.buf, seg.data...)
	}
	return e.buf, nil
}

// measure computes element counts before anything is written, since a
// count precedes the data it describes.
func (e *encoder) measure(fields []*layout.Field, frame map[string]interface{}) error {
	for _, f := range fields {
		if len(f.Path) == 0 || f.Synthesized {
			continue
		}
		if err := e.measureField(f, frame, frame[key(f)]); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) measureField(f *layout.Field, frame map[string]interface{}, v interface{}) error {
	t := f.Type
	if d, ok := t.(*layout.Descriptor); ok {
		t = d.Data
	}
	switch t := t.(type) {
	case *layout.String, *layout.Array:
		if a, ok := t.(*layout.Array); ok && a.Bound == layout.FixedBound {
			return nil
		}
		n, err := length(v)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Path, err)
		}
		_, isString := t.(*layout.String)
		if isString {
			n++
		}
		count := n
		if f.Length != nil && !f.Length.Synthesized {
			bits, err := integerBits(frame[key(f.Length)])
			if err != nil {
				return fmt.Errorf("%s: count %s: %w", f.Path, f.Length.Name, err)
			}
			count = int(bits)
			if count > n {
				if !isString {
					return fmt.Errorf("%s: %s is %d but only %d elements are present", f.Path, f.Length.Name, count, n)
				}
				count = n
			}
		}
		limit := layout.MaxCount(t)
		if f.MaxRef != nil {
			bits, err := integerBits(frame[f.MaxRef.Last()])
			if err != nil {
				return fmt.Errorf("%s: max_is %s: %w", f.Path, f.MaxRef, err)
			}
			if limit == 0 || int(bits) < limit {
				limit = int(bits)
			}
		}
		if limit > 0 && count > limit {
			reported := count
			if isString {
				reported--
			}
			e.codec.reporter.Clamp(&diag.OverflowClamp{Field: f.Path.String(), Length: reported, Max: limit})
			count = limit
		}
		e.counts[f] = count
		if f.Length != nil {
			if prev, ok := e.companions[f.Length]; !ok || uint64(count) < prev {
				e.companions[f.Length] = uint64(count)
			}
		}
	case *layout.Struct:
		rec, ok := asRecord(v)
		if !ok && v != nil {
			return fmt.Errorf("%s: %v (%T) is not a record", f.Path, v, v)
		}
		return e.measure(t.Fields, rec)
	case *layout.Union:
		uv, err := unionValue(v)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Path, err)
		}
		if c := matchCase(t, uv.Tag); c != nil && c.Payload != nil {
			return e.measure([]*layout.Field{c.Payload}, map[string]interface{}{key(c.Payload): uv.Value})
		}
	}
	return nil
}

func (e *encoder) count(f *layout.Field) int {
	if f.Length != nil {
		if c, ok := e.companions[f.Length]; ok {
			return int(c)
		}
	}
	return e.counts[f]
}

func (e *encoder) putUint(v uint64, size int) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:size]...)
}

func (e *encoder) putAt(at int, v uint64, size int) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	copy(e.buf[at:at+size], b[:size])
}

func (e *encoder) zeros(n int) {
	e.buf = append(e.buf, make([]byte, n)...)
}

func (e *encoder) block(b *block, frame map[string]interface{}) error {
	for i := range b.stmts {
		if err := e.statement(&b.stmts[i], frame); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) statement(s *statement, frame map[string]interface{}) error {
	f := s.field
	v := frame[key(f)]
	switch s.kind {
	case putOpcode:
		e.putUint(uint64(s.opcode), f.Size)
	case putException:
		bits, err := integerBits(v)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		e.putUint(bits, f.Size)
	case copyScalar, copyPointer:
		return e.value(f.Type, v, f.Name)
	case copyCount:
		c, ok := e.companions[f]
		if !ok {
			bits, err := integerBits(v)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			c = bits
		}
		e.putUint(c, f.Size)
	case copyString, copyArray:
		return e.sequence(f, f.Type, v)
	case copyDescriptor:
		d := f.Type.(*layout.Descriptor)
		inline := e.buf
		e.buf = nil
		if err := e.sequence(f, d.Data, v); err != nil {
			return err
		}
		data := e.buf
		e.buf = inline
		e.outOfLine = append(e.outOfLine, pendingSegment{at: len(e.buf), word: d.WordSize, data: data})
		e.putUint(0, d.WordSize)
		e.putUint(uint64(e.count(f)), d.WordSize)
	case copyStruct:
		rec, ok := asRecord(v)
		if !ok && v != nil {
			return fmt.Errorf("%s: %v (%T) is not a record", f.Path, v, v)
		}
		return e.block(s.body, rec)
	case selectCase:
		return e.union(s, v)
	case skipPad:
		e.zeros(f.Size)
	default:
		return fmt.Errorf("%s: unexpected %s in a send program", f.Name, s.kind)
	}
	return nil
}

func (e *encoder) sequence(f *layout.Field, t layout.Type, v interface{}) error {
	switch t := t.(type) {
	case *layout.String:
		s, ok := v.(string)
		if !ok && v != nil {
			return fmt.Errorf("%s: %v (%T) is not a string", f.Path, v, v)
		}
		b := append([]byte(s), 0)
		e.buf = append(e.buf, b[:e.count(f)]...)
	case *layout.Array:
		n := t.N
		if t.Bound != layout.FixedBound {
			n = e.count(f)
		}
		return e.elements(t, v, n, f.Path.String())
	}
	return nil
}

// elements writes n elements of a, zero filling a short fixed array.
func (e *encoder) elements(a *layout.Array, v interface{}, n int, where string) error {
	switch v := v.(type) {
	case []byte:
		if !byteElements(a.Elem) {
			return fmt.Errorf("%s: bytes given for elements of %s", where, a.Elem)
		}
		if len(v) >= n {
			e.buf = append(e.buf, v[:n]...)
		} else {
			e.buf = append(e.buf, v...)
			e.zeros(n - len(v))
		}
		return nil
	case []interface{}, nil:
		elems, _ := v.([]interface{})
		for i := 0; i < n; i++ {
			var elem interface{}
			if i < len(elems) {
				elem = elems[i]
			}
			if err := e.value(a.Elem, elem, fmt.Sprintf("%s[%d]", where, i)); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%s: %v (%T) is not an array", where, v, v)
}

// value writes a value of fixed type t.
func (e *encoder) value(t layout.Type, v interface{}, where string) error {
	switch t := t.(type) {
	case *layout.Scalar:
		bits, err := scalarBits(t.Subtype, v)
		if err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		e.putUint(bits, t.Subtype.NumberOfBytes())
	case *layout.Pointer:
		bits, err := integerBits(v)
		if err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		e.putUint(bits, t.Size)
	case *layout.Array:
		return e.elements(t, v, t.N, where)
	case *layout.Struct:
		rec, ok := asRecord(v)
		if !ok && v != nil {
			return fmt.Errorf("%s: %v (%T) is not a record", where, v, v)
		}
		for _, m := range t.Fields {
			if err := e.value(m.Type, rec[key(m)], where+"."+key(m)); err != nil {
				return err
			}
		}
	case *layout.Union:
		uv, err := unionValue(v)
		if err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		return e.unionPayload(t, uv, where, func(c *layout.Case) error {
			return e.value(c.Payload.Type, uv.Value, where+"."+key(c.Payload))
		})
	default:
		return fmt.Errorf("%s: %s has no fixed encoding", where, t)
	}
	return nil
}

func (e *encoder) union(s *statement, v interface{}) error {
	f := s.field
	uv, err := unionValue(v)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}
	return e.unionPayload(f.Type.(*layout.Union), uv, f.Path.String(), func(c *layout.Case) error {
		cb := matchBlock(s.cases, c)
		return e.block(cb.body, map[string]interface{}{key(c.Payload): uv.Value})
	})
}

// unionPayload writes the discriminant, then the matching arm through fn.
// A fixed union is padded to its footprint. A tag no arm matches is copied
// raw from the value's bytes.
func (e *encoder) unionPayload(u *layout.Union, uv UnionValue, where string, fn func(*layout.Case) error) error {
	sub := u.Discriminant.Type.(*layout.Scalar).Subtype
	bits, err := scalarBits(sub, uv.Tag)
	if err != nil {
		return fmt.Errorf("%s: tag: %w", where, err)
	}
	e.putUint(bits, u.Discriminant.Size)
	payload, fixed := unionPayloadSize(u)
	start := len(e.buf)
	c := matchCase(u, uv.Tag)
	if c == nil {
		if !fixed {
			return &diag.ProtocolError{Message: e.program.Message.Name, Reason: fmt.Sprintf("%s: tag %d matches no case of variable union %s", where, uv.Tag, u.Name)}
		}
		raw, _ := uv.Value.([]byte)
		if len(raw) != payload {
			return fmt.Errorf("%s: tag %d matches no case and the value is not %d raw bytes", where, uv.Tag, payload)
		}
		e.codec.reporter.Warn(&diag.ProtocolError{Message: e.program.Message.Name, Reason: fmt.Sprintf("%s: tag %d matches no case of %s, copied raw", where, uv.Tag, u.Name)})
		e.buf = append(e.buf, raw...)
		return nil
	}
	if c.Payload != nil {
		if err := fn(c); err != nil {
			return err
		}
	}
	if fixed {
		e.zeros(payload - (len(e.buf) - start))
	}
	return nil
}

type decoder struct {
	codec   *Codec
	program *Program
	buf     []byte
	pos     int

	companions map[*layout.Field]uint64
}

// Decode runs a receive program over buf, storing values into dst. Caller
// preallocated storage for prealloc fields is taken from dst. A reply
// carrying an exception stops after the exception word; see
// Values.Raised.
func (c *Codec) Decode(p *Program, buf []byte, dst Values) error {
	if p.Send {
		return fmt.Errorf("%s is not a receive program", p.Name())
	}
	if dst == nil {
		return fmt.Errorf("%s: nil destination", p.Name())
	}
	d := &decoder{
		codec:      c,
		program:    p,
		buf:        buf,
		companions: make(map[*layout.Field]uint64),
	}
	_, err := d.block(&p.body, dst)
	return err
}

func (d *decoder) errorf(format string, args ...interface{}) error {
	return &diag.ProtocolError{Message: d.program.Message.Name, Reason: fmt.Sprintf(format, args...)}
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, d.errorf("message truncated: need %d bytes at offset %d, have %d", n, d.pos, len(d.buf))
	}
	b := d.buf[d.pos : d.pos+n : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) getUint(size int) (uint64, error) {
	b, err := d.take(size)
	if err != nil {
		return 0, err
	}
	var full [8]byte
	copy(full[:], b)
	return binary.LittleEndian.Uint64(full[:]), nil
}

// block decodes the statements of b into frame. It reports whether an
// exception stopped decoding.
func (d *decoder) block(b *block, frame map[string]interface{}) (bool, error) {
	for i := range b.stmts {
		stop, err := d.statement(&b.stmts[i], frame)
		if err != nil || stop {
			return stop, err
		}
	}
	return false, nil
}

func (d *decoder) statement(s *statement, frame map[string]interface{}) (bool, error) {
	f := s.field
	switch s.kind {
	case checkOpcode:
		v, err := d.getUint(f.Size)
		if err != nil {
			return false, err
		}
		if uint32(v) != s.opcode {
			return false, d.errorf("opcode %#x does not match expected %#x", v, s.opcode)
		}
	case checkException:
		v, err := d.getUint(f.Size)
		if err != nil {
			return false, err
		}
		frame[key(f)] = v
		return v != layout.ExceptionNone, nil
	case copyScalar, copyPointer:
		v, err := d.value(f.Type)
		if err != nil {
			return false, err
		}
		if p, ok := f.Presented.(*layout.Scalar); ok {
			v = cast(p.Subtype, v)
		}
		frame[key(f)] = v
	case copyCount:
		bits, err := d.getUint(f.Size)
		if err != nil {
			return false, err
		}
		d.companions[f] = bits
		if !f.Synthesized {
			v := scalarValue(f.Type.(*layout.Scalar).Subtype, bits)
			if p, ok := f.Presented.(*layout.Scalar); ok {
				v = cast(p.Subtype, v)
			}
			frame[key(f)] = v
		}
	case copyString, copyArray:
		count := 0
		if a, ok := f.Type.(*layout.Array); ok && a.Bound == layout.FixedBound {
			count = a.N
		} else if f.Length != nil {
			count = int(d.companions[f.Length])
		}
		return false, d.sequence(f, f.Type, count, s.mode, frame)
	case copyDescriptor:
		desc := f.Type.(*layout.Descriptor)
		offset, err := d.getUint(desc.WordSize)
		if err != nil {
			return false, err
		}
		count, err := d.getUint(desc.WordSize)
		if err != nil {
			return false, err
		}
		size := count * uint64(layout.ElementSize(desc.Data))
		if offset > uint64(len(d.buf)) || size > uint64(len(d.buf))-offset {
			return false, d.errorf("%s: out-of-line data [%d, %d) outside the %d byte message", f.Name, offset, offset+size, len(d.buf))
		}
		seg := &decoder{codec: d.codec, program: d.program, buf: d.buf[offset : offset+size], companions: d.companions}
		return false, seg.sequence(f, desc.Data, int(count), s.mode, frame)
	case copyStruct:
		rec := Record{}
		frame[key(f)] = rec
		return d.block(s.body, rec)
	case selectCase:
		return false, d.union(s, frame)
	case skipPad:
		_, err := d.take(f.Size)
		return false, err
	default:
		return false, fmt.Errorf("%s: unexpected %s in a receive program", f.Name, s.kind)
	}
	return false, nil
}

func (d *decoder) sequence(f *layout.Field, t layout.Type, count int, mode bufferMode, frame map[string]interface{}) error {
	if max := layout.MaxCount(t); max > 0 && count > max {
		return d.errorf("%s: count %d exceeds the maximum %d", f.Name, count, max)
	}
	if f.MaxRef != nil {
		v, ok := frame[f.MaxRef.Last()]
		if bound, err := integerBits(v); ok && err == nil && uint64(count) > bound {
			return d.errorf("%s: count %d exceeds %s = %d", f.Name, count, f.MaxRef, bound)
		}
	}
	switch t := t.(type) {
	case *layout.String:
		b, err := d.take(count)
		if err != nil {
			return err
		}
		if i := bytes.IndexByte(b, 0); i >= 0 {
			b = b[:i]
		}
		frame[key(f)] = string(b)
	case *layout.Array:
		if byteElements(t.Elem) {
			b, err := d.take(count)
			if err != nil {
				return err
			}
			switch mode {
			case modeBind:
				frame[key(f)] = b
			case modePrealloc:
				dst, _ := frame[key(f)].([]byte)
				if cap(dst) < count {
					return d.errorf("%s: preallocated storage holds %d elements, message carries %d", f.Name, cap(dst), count)
				}
				dst = dst[:count]
				copy(dst, b)
				frame[key(f)] = dst
			default:
				frame[key(f)] = append([]byte{}, b...)
			}
			return nil
		}
		var elems []interface{}
		if mode == modePrealloc {
			dst, _ := frame[key(f)].([]interface{})
			if cap(dst) < count {
				return d.errorf("%s: preallocated storage holds %d elements, message carries %d", f.Name, cap(dst), count)
			}
			elems = dst[:count]
		} else {
			elems = make([]interface{}, count)
		}
		for i := range elems {
			v, err := d.value(t.Elem)
			if err != nil {
				return err
			}
			elems[i] = v
		}
		frame[key(f)] = elems
	}
	return nil
}

// value reads a value of fixed type t.
func (d *decoder) value(t layout.Type) (interface{}, error) {
	switch t := t.(type) {
	case *layout.Scalar:
		bits, err := d.getUint(t.Subtype.NumberOfBytes())
		if err != nil {
			return nil, err
		}
		return scalarValue(t.Subtype, bits), nil
	case *layout.Pointer:
		return d.getUint(t.Size)
	case *layout.Array:
		if byteElements(t.Elem) {
			b, err := d.take(t.N)
			if err != nil {
				return nil, err
			}
			return append([]byte{}, b...), nil
		}
		elems := make([]interface{}, t.N)
		for i := range elems {
			v, err := d.value(t.Elem)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return elems, nil
	case *layout.Struct:
		rec := Record{}
		for _, m := range t.Fields {
			v, err := d.value(m.Type)
			if err != nil {
				return nil, err
			}
			rec[key(m)] = v
		}
		return rec, nil
	case *layout.Union:
		var uv UnionValue
		err := d.unionPayload(t, &uv, func(c *layout.Case) error {
			v, err := d.value(c.Payload.Type)
			uv.Value = v
			return err
		})
		return uv, err
	}
	return nil, fmt.Errorf("%s has no fixed encoding", t)
}

func (d *decoder) union(s *statement, frame map[string]interface{}) error {
	f := s.field
	var uv UnionValue
	err := d.unionPayload(f.Type.(*layout.Union), &uv, func(c *layout.Case) error {
		cb := matchBlock(s.cases, c)
		payload := map[string]interface{}{}
		if _, err := d.block(cb.body, payload); err != nil {
			return err
		}
		uv.Value = payload[key(c.Payload)]
		return nil
	})
	if err != nil {
		return err
	}
	frame[key(f)] = uv
	return nil
}

// unionPayload reads the discriminant, then the matching arm through fn,
// and skips the rest of a fixed union's footprint. A tag no arm matches
// yields the raw payload bytes.
func (d *decoder) unionPayload(u *layout.Union, uv *UnionValue, fn func(*layout.Case) error) error {
	sub := u.Discriminant.Type.(*layout.Scalar).Subtype
	bits, err := d.getUint(u.Discriminant.Size)
	if err != nil {
		return err
	}
	uv.Tag = toInt64(scalarValue(sub, bits))
	payload, fixed := unionPayloadSize(u)
	start := d.pos
	c := matchCase(u, uv.Tag)
	if c == nil {
		if !fixed {
			return d.errorf("tag %d matches no case of variable union %s", uv.Tag, u.Name)
		}
		d.codec.reporter.Warn(d.errorf("tag %d matches no case of %s, copied raw", uv.Tag, u.Name))
		raw, err := d.take(payload)
		if err != nil {
			return err
		}
		uv.Value = append([]byte{}, raw...)
		return nil
	}
	if c.Payload != nil {
		if err := fn(c); err != nil {
			return err
		}
	}
	if fixed {
		_, err := d.take(payload - (d.pos - start))
		return err
	}
	return nil
}
