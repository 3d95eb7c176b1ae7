// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package layout computes the wire layout of the messages exchanged by each
// operation of an interface.
//
// For every operation the planner produces four message structs: the
// request, the normal reply, the exception reply, and a generic shape used
// by dispatch code. Each is built in four steps: the parameters travelling
// in that direction are selected, flattened into wire fields with their
// companion counts, sorted so that small fixed fields lead, and padded to
// the platform's fast-path budget.
package layout

import (
	"fmt"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/config"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/diag"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/names"
)

const (
	opcodeName    = "opcode"
	exceptionName = "exception"
	returnName    = "return"
	bodyName      = "body"
	tagName       = "tag"
)

// Exception word values.
const (
	ExceptionNone   = 0
	ExceptionUser   = 1
	ExceptionSystem = 2
)

// Planner lays out operations. It is safe for concurrent use: each call
// works on its own state.
type Planner struct {
	idx      *ir.Index
	platform config.Platform
	names    names.Factory
}

func NewPlanner(idx *ir.Index, platform config.Platform, factory names.Factory) *Planner {
	return &Planner{idx: idx, platform: platform, names: factory}
}

// OperationLayout holds the frozen message structs of one operation.
type OperationLayout struct {
	Interface string
	Operation *ir.Operation

	In        *MessageStruct
	Out       *MessageStruct
	Exception *MessageStruct
	Generic   *MessageStruct
}

// Message returns the struct for one direction.
func (l *OperationLayout) Message(d Direction) *MessageStruct {
	switch d {
	case In:
		return l.In
	case Out:
		return l.Out
	case ExceptionReply:
		return l.Exception
	case Generic:
		return l.Generic
	}
	panic(fmt.Sprintf("unknown direction %s", d))
}

// Messages returns the message structs in Directions order.
func (l *OperationLayout) Messages() []*MessageStruct {
	return []*MessageStruct{l.In, l.Out, l.Exception, l.Generic}
}

// Plan lays out a single message of op. It is equivalent to selecting the
// direction from PlanOperation, since descriptor alignment depends on the
// sibling messages.
func (p *Planner) Plan(iface string, op *ir.Operation, dir Direction) (*MessageStruct, error) {
	l, err := p.PlanOperation(iface, op)
	if err != nil {
		return nil, err
	}
	return l.Message(dir), nil
}

// PlanOperation lays out every message of op and freezes them.
func (p *Planner) PlanOperation(iface string, op *ir.Operation) (*OperationLayout, error) {
	l := &OperationLayout{Interface: iface, Operation: op}
	for _, d := range []Direction{In, Out, ExceptionReply} {
		fields, err := p.newPlanner(iface, op, d).plan()
		if err != nil {
			return nil, err
		}
		ms := p.newMessage(iface, op, d, fields)
		switch d {
		case In:
			l.In = ms
		case Out:
			l.Out = ms
		case ExceptionReply:
			l.Exception = ms
		}
	}
	pads := map[*MessageStruct]int{}
	for _, ms := range []*MessageStruct{l.In, l.Out, l.Exception} {
		pads[ms] = p.padBudget(ms, 0)
	}
	p.alignDescriptors(pads, l.In, l.Out, l.Exception)

	fields, err := p.newPlanner(iface, op, Generic).planGeneric(l.In.MaxSize(), l.Out.MaxSize())
	if err != nil {
		return nil, err
	}
	l.Generic = p.newMessage(iface, op, Generic, fields)
	p.padBudget(l.Generic, 0)

	for _, ms := range l.Messages() {
		if prefix := ms.FixedPrefixSize(); prefix > p.platform.MaxMessageBytes {
			return nil, &diag.LayoutError{
				Operation: op.Name,
				Message:   ms.Name,
				Reason:    fmt.Sprintf("fixed part of %d bytes exceeds max_message_bytes (%d)", prefix, p.platform.MaxMessageBytes),
			}
		}
	}
	for _, ms := range l.Messages() {
		ms.freeze()
	}
	return l, nil
}

func (p *Planner) newMessage(iface string, op *ir.Operation, d Direction, fields []*Field) *MessageStruct {
	return &MessageStruct{
		Name:      p.names.Message(iface, op.Name, d.String()),
		Interface: iface,
		Operation: op.Name,
		Direction: d,
		fields:    sortFields(fields, p.platform.WordSize),
	}
}

// planner holds the state for laying out one message.
type planner struct {
	*Planner
	iface string
	op    *ir.Operation
	dir   Direction

	// param is the parameter being flattened, nil for synthesized fields.
	param *ir.Parameter
	// stack holds the structs under construction, outermost first.
	stack []*Struct

	fields     []*Field
	byParam    map[string]*Field
	companions []*Field
}

// scope resolves count references among siblings. The top-level scope
// holds the message parameters; a struct scope holds its members.
type scope struct {
	top     bool
	decl    *ir.Struct
	path    names.Path
	members map[string]*Field
	refs    []countRef
}

type countRef struct {
	field *Field
	attr  string
	ref   string
	// capacity marks a size_is reference that bounds a length_is count
	// instead of being the count.
	capacity bool
}

func (p *Planner) newPlanner(iface string, op *ir.Operation, dir Direction) *planner {
	return &planner{
		Planner: p,
		iface:   iface,
		op:      op,
		dir:     dir,
		byParam: map[string]*Field{},
	}
}

func (p *planner) layoutError(format string, args ...interface{}) error {
	return &diag.LayoutError{
		Operation: p.op.Name,
		Message:   p.names.Message(p.iface, p.op.Name, p.dir.String()),
		Reason:    fmt.Sprintf(format, args...),
	}
}

// plan selects and flattens the fields of a request, reply or exception
// reply, in declaration order. Sorting happens afterwards.
func (p *planner) plan() ([]*Field, error) {
	switch p.dir {
	case In:
		if !p.op.NoOpcode {
			p.reserve(opcodeName, ir.Uint32, Opcode)
		}
	case Out:
		if p.op.Oneway {
			for _, param := range p.op.Parameters {
				if param.Direction.Returned() {
					return nil, p.layoutError("oneway operation returns %s", param.Name)
				}
			}
			if p.op.Return != nil {
				return nil, p.layoutError("oneway operation has a return value")
			}
			return nil, nil
		}
		if !p.op.NoException {
			p.reserve(exceptionName, ir.UnsignedOfSize(p.platform.WordSize), Exception)
		}
	case ExceptionReply:
		return p.planException()
	}

	top := &scope{top: true}
	for i := range p.op.Parameters {
		param := &p.op.Parameters[i]
		if !p.selected(param) {
			continue
		}
		p.param = param
		f, err := p.build(names.Path{param.Name}, param.Type, param.Attributes, top)
		if err != nil {
			return nil, err
		}
		f.Param = param.Name
		f.Prealloc = param.Attributes.Prealloc
		p.fields = append(p.fields, f)
		p.byParam[param.Name] = f
	}
	p.param = nil
	if p.dir == Out && p.op.Return != nil {
		f, err := p.build(names.Path{returnName}, *p.op.Return, ir.Attributes{}, top)
		if err != nil {
			return nil, err
		}
		f.Role = Return
		p.fields = append(p.fields, f)
	}
	if err := p.resolveParamRefs(top); err != nil {
		return nil, err
	}
	return p.finish(), nil
}

func (p *planner) selected(param *ir.Parameter) bool {
	if p.dir == In {
		return param.Direction.Sent()
	}
	return param.Direction.Returned()
}

func (p *planner) reserve(name string, subtype ir.PrimitiveSubtype, role Role) *Field {
	f := newField(p.names.Field(names.Path{name}), nil, &Scalar{Subtype: subtype})
	f.Role = role
	p.fields = append(p.fields, f)
	return f
}

// finish appends synthesized companions and makes names unique.
func (p *planner) finish() []*Field {
	fields := append(p.fields, p.companions...)
	seen := map[string]bool{}
	for _, f := range fields {
		for seen[f.Name] {
			f.Name += "_"
		}
		seen[f.Name] = true
	}
	return fields
}

// planException builds the exception reply: the exception word, followed
// by a union of the raised types keyed by their position in the raises
// list.
func (p *planner) planException() ([]*Field, error) {
	if p.op.Oneway || p.op.NoException {
		return nil, nil
	}
	p.reserve(exceptionName, ir.UnsignedOfSize(p.platform.WordSize), Exception)
	if len(p.op.Raises) == 0 {
		return p.finish(), nil
	}
	path := names.Path{exceptionName + "_payload"}
	u := &Union{
		Name:         p.op.Name + "Exception",
		Discriminant: newField(p.names.Field(names.Path{tagName}), nil, &Scalar{Subtype: ir.Uint32}),
	}
	for i, raised := range p.op.Raises {
		f, err := p.build(path.Append(raised), ir.Named(raised), ir.Attributes{}, &scope{})
		if err != nil {
			return nil, err
		}
		u.Cases = append(u.Cases, &Case{Labels: []int64{int64(i + 1)}, Payload: f})
	}
	payload := newField(p.names.Field(path), path, u)
	payload.Param = path[0]
	p.fields = append(p.fields, payload)
	return p.finish(), nil
}

// planGeneric builds the opaque shape: the opcode followed by a body large
// enough for either direction.
func (p *planner) planGeneric(inMax, outMax int) ([]*Field, error) {
	if !p.op.NoOpcode {
		p.reserve(opcodeName, ir.Uint32, Opcode)
	}
	max := inMax
	if outMax > max {
		max = outMax
	}
	if inMax == Unbounded || outMax == Unbounded {
		max = 0
	}
	path := names.Path{bodyName}
	body := newField(p.names.Field(path), path, &Array{Elem: &Scalar{Subtype: ir.Uint8}, Bound: MaxBound, N: max})
	body.Param = bodyName
	p.synthesize(body, path)
	p.fields = append(p.fields, body)
	return p.finish(), nil
}

// build flattens one parameter or member into a wire field.
func (p *planner) build(path names.Path, t ir.Type, attrs ir.Attributes, sc *scope) (*Field, error) {
	wire, presented, err := p.wireType(t, attrs)
	if err != nil {
		return nil, err
	}
	f, err := p.buildType(path, wire, attrs, sc)
	if err != nil {
		return nil, err
	}
	if presented.Kind != "" {
		if r, err := p.resolveAlias(presented); err == nil && r.Kind == ir.PrimitiveType {
			f.Presented = &Scalar{Subtype: r.PrimitiveSubtype}
		}
	}
	return f, nil
}

func (p *planner) fieldName(path names.Path) string {
	return p.names.Field(names.Path{path.Last()})
}

// passedByReference reports whether a top-level value is filled in place.
func (p *planner) passedByReference(sc *scope) bool {
	return sc.top && p.param != nil && p.param.Direction != ir.In
}

func (p *planner) buildType(path names.Path, t ir.Type, attrs ir.Attributes, sc *scope) (*Field, error) {
	switch t.Kind {
	case ir.PrimitiveType:
		return newField(p.fieldName(path), path, &Scalar{Subtype: t.PrimitiveSubtype}), nil

	case ir.StringType:
		return p.buildString(path, 0, attrs, sc)

	case ir.PointerType:
		elem, err := p.pointee(t)
		if err != nil {
			return nil, err
		}
		if attrs.String {
			if elem.Kind != ir.PrimitiveType || elem.PrimitiveSubtype != ir.Char {
				return nil, p.layoutError("string attribute on %s, which is not a char pointer", path)
			}
			return p.buildString(path, 0, attrs, sc)
		}
		if attrs.Sized() {
			return p.buildArray(path, elem, 0, attrs, sc)
		}
		switch elem.Kind {
		case ir.PointerType:
			return nil, p.layoutError("%s: multiple indirection is not supported", path)
		case ir.IdentifierType:
			if s, ok := p.structDecl(elem); ok {
				if target, ok := p.enclosing(s.Name); ok {
					target.SelfRef = true
					return newField(p.fieldName(path), path, &Pointer{Target: s.Name, Size: p.platform.PointerSize}), nil
				}
			}
		}
		f, err := p.buildType(path, elem, ir.Attributes{}, sc)
		if err != nil {
			return nil, err
		}
		f.Indirect = p.passedByReference(sc) || (sc.top && IsConstructed(f.Type))
		return f, nil

	case ir.ArrayType:
		elem, err := p.resolveAlias(*t.ElementType)
		if err != nil {
			return nil, err
		}
		if attrs.String {
			if elem.Kind != ir.PrimitiveType || elem.PrimitiveSubtype != ir.Char {
				return nil, p.layoutError("string attribute on %s, which is not a char array", path)
			}
			return p.buildString(path, t.ElementCount, attrs, sc)
		}
		if attrs.Sized() {
			return p.buildArray(path, elem, t.ElementCount, attrs, sc)
		}
		e, err := p.buildElem(path, elem)
		if err != nil {
			return nil, err
		}
		return newField(p.fieldName(path), path, &Array{Elem: e, Bound: FixedBound, N: t.ElementCount}), nil

	case ir.IdentifierType:
		decl, ok := p.idx.Lookup(t.Identifier)
		if !ok {
			return nil, p.layoutError("unknown type %s", t.Identifier)
		}
		switch decl := decl.(type) {
		case *ir.Struct:
			return p.buildStruct(path, decl)
		case *ir.Union:
			return p.buildUnion(path, decl)
		}
	}
	return nil, p.layoutError("%s: unsupported type %s", path, t)
}

func (p *planner) buildElem(path names.Path, t ir.Type) (Type, error) {
	f, err := p.buildType(path, t, ir.Attributes{}, &scope{})
	if err != nil {
		return nil, err
	}
	if f.Size == Variable {
		return nil, p.layoutError("%s: array elements of type %s have variable size", path, f.Type)
	}
	if _, ok := f.Type.(*Pointer); ok {
		return nil, p.layoutError("%s: arrays of self-referential pointers are not supported", path)
	}
	return f.Type, nil
}

// maxBound resolves a max_is attribute. A literal is returned as is; a
// reference must name a sibling and yields a runtime maximum.
func (p *planner) maxBound(path names.Path, attrs ir.Attributes, sc *scope) (int, names.Path, error) {
	if attrs.MaxIs == nil {
		return 0, nil, nil
	}
	if !attrs.MaxIs.IsRef() {
		return attrs.MaxIs.Literal, nil, nil
	}
	ref := attrs.MaxIs.Ref
	if sc.top {
		if _, ok := p.op.Parameter(ref); ok {
			return 0, names.Path{ref}, nil
		}
	} else if sc.decl != nil {
		if _, ok := sc.decl.Member(ref); ok {
			return 0, sc.path.Append(ref), nil
		}
	}
	return 0, nil, &diag.MissingCompanionError{Operation: p.op.Name, Field: path.String(), Attribute: "max_is", Ref: ref}
}

func (p *planner) buildString(path names.Path, declared int, attrs ir.Attributes, sc *scope) (*Field, error) {
	max, maxRef, err := p.maxBound(path, attrs, sc)
	if err != nil {
		return nil, err
	}
	if max == 0 {
		max = declared
	}
	if max == 0 {
		max = p.platform.DefaultStringMax
	}
	f := newField(p.fieldName(path), path, &String{Max: max})
	f.MaxRef = maxRef
	p.finishVariable(f, path, attrs, sc)
	return f, nil
}

func (p *planner) buildArray(path names.Path, elem ir.Type, declared int, attrs ir.Attributes, sc *scope) (*Field, error) {
	e, err := p.buildElem(path, elem)
	if err != nil {
		return nil, err
	}
	max, maxRef, err := p.maxBound(path, attrs, sc)
	if err != nil {
		return nil, err
	}
	if max == 0 && maxRef == nil {
		max = declared
	}
	arr := &Array{Elem: e, Bound: MaxBound, N: max}
	f := newField(p.fieldName(path), path, arr)
	f.MaxRef = maxRef
	if ref := attrs.CountRef(); ref != "" {
		arr.Bound = CompanionBound
		attr := "size_is"
		if attrs.LengthIs != "" {
			attr = "length_is"
		}
		sc.refs = append(sc.refs, countRef{field: f, attr: attr, ref: ref})
		if attrs.SizeIs != "" && attrs.LengthIs != "" {
			sc.refs = append(sc.refs, countRef{field: f, attr: "size_is", ref: attrs.SizeIs, capacity: true})
		}
		p.outOfLine(f, attrs, sc)
		return f, nil
	}
	p.finishVariable(f, path, attrs, sc)
	return f, nil
}

// finishVariable either moves a top-level variable field out of line or
// gives it a synthesized companion.
func (p *planner) finishVariable(f *Field, path names.Path, attrs ir.Attributes, sc *scope) {
	if p.outOfLine(f, attrs, sc) {
		return
	}
	p.synthesize(f, path)
}

// outOfLine wraps f in a descriptor when the indirect attribute or the
// platform threshold asks for it.
func (p *planner) outOfLine(f *Field, attrs ir.Attributes, sc *scope) bool {
	if !sc.top || p.dir == Generic {
		return false
	}
	max := MaxSize(f.Type)
	threshold := p.platform.IndirectThreshold
	if !attrs.Indirect && (threshold == 0 || (max != Unbounded && max <= threshold)) {
		return false
	}
	f.Type = &Descriptor{Data: f.Type, WordSize: p.platform.WordSize}
	f.Size, _ = FixedSize(f.Type)
	return true
}

func (p *planner) synthesize(f *Field, path names.Path) {
	c := newField(p.names.Companion(path), nil, &Scalar{Subtype: ir.Uint32})
	c.Synthesized = true
	c.Counts = []*Field{f}
	f.Length = c
	p.companions = append(p.companions, c)
}

// link records companion as the count of f, or as its runtime capacity for
// a capacity reference found at path.
func (p *planner) link(f, companion *Field, ref countRef, path names.Path) error {
	s, ok := companion.Type.(*Scalar)
	if !ok || s.Subtype.IsFloat() || s.Subtype == ir.Bool {
		return p.layoutError("%s(%s) on %s: %s is not an integer", ref.attr, ref.ref, f.Name, ref.ref)
	}
	if ref.capacity {
		if f.MaxRef == nil {
			f.MaxRef = path
		}
		return nil
	}
	f.Length = companion
	companion.Counts = append(companion.Counts, f)
	return nil
}

// resolveParamRefs links arrays to the parameters counting them. A reply
// array counted by a request-only parameter carries a copy of it.
func (p *planner) resolveParamRefs(sc *scope) error {
	for _, ref := range sc.refs {
		c, ok := p.byParam[ref.ref]
		if !ok {
			param, exists := p.op.Parameter(ref.ref)
			if !exists {
				return &diag.MissingCompanionError{Operation: p.op.Name, Field: ref.field.Name, Attribute: ref.attr, Ref: ref.ref}
			}
			if p.dir != Out {
				return p.layoutError("%s(%s) on %s names a parameter that is not sent in this direction", ref.attr, ref.ref, ref.field.Name)
			}
			saved := p.param
			p.param = param
			f, err := p.build(names.Path{param.Name}, param.Type, param.Attributes, &scope{top: true})
			p.param = saved
			if err != nil {
				return err
			}
			f.Param = param.Name
			f.Pulled = true
			f.Indirect = false
			p.fields = append(p.fields, f)
			p.byParam[param.Name] = f
			c = f
		}
		if err := p.link(ref.field, c, ref, names.Path{ref.ref}); err != nil {
			return err
		}
	}
	return nil
}

func (p *planner) buildStruct(path names.Path, decl *ir.Struct) (*Field, error) {
	if _, ok := p.enclosing(decl.Name); ok {
		return nil, &diag.TypeResolutionError{Operation: p.op.Name, Chain: p.stackChain(decl.Name)}
	}
	s := &Struct{Name: decl.Name}
	p.stack = append(p.stack, s)
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	inner := &scope{decl: decl, path: path, members: map[string]*Field{}}
	var fixed, variable []*Field
	for _, m := range decl.Members {
		f, err := p.build(path.Append(m.Name), m.Type, m.Attributes, inner)
		if err != nil {
			return nil, err
		}
		inner.members[m.Name] = f
		if f.Size == Variable {
			variable = append(variable, f)
		} else {
			fixed = append(fixed, f)
		}
	}
	for _, ref := range inner.refs {
		c, ok := inner.members[ref.ref]
		if !ok {
			return nil, &diag.MissingCompanionError{Operation: p.op.Name, Field: ref.field.Name, Attribute: ref.attr, Ref: ref.ref}
		}
		if err := p.link(ref.field, c, ref, inner.path.Append(ref.ref)); err != nil {
			return nil, err
		}
	}
	s.Fields = append(fixed, variable...)
	return newField(p.fieldName(path), path, s), nil
}

func (p *planner) buildUnion(path names.Path, decl *ir.Union) (*Field, error) {
	u := &Union{
		Name:         decl.Name,
		Discriminant: newField(p.names.Field(names.Path{tagName}), nil, &Scalar{Subtype: decl.Discriminant}),
	}
	for _, c := range decl.Cases {
		uc := &Case{Labels: c.Labels, Default: c.Default}
		if c.Member != nil {
			cs := &scope{}
			f, err := p.build(path.Append(c.Member.Name), c.Member.Type, c.Member.Attributes, cs)
			if err != nil {
				return nil, err
			}
			if len(cs.refs) > 0 {
				ref := cs.refs[0]
				return nil, &diag.MissingCompanionError{Operation: p.op.Name, Field: ref.field.Name, Attribute: ref.attr, Ref: ref.ref}
			}
			uc.Payload = f
		}
		u.Cases = append(u.Cases, uc)
	}
	return newField(p.fieldName(path), path, u), nil
}
