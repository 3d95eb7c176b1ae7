// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package layout

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/config"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/diag"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/names"
)

func prim(s ir.PrimitiveSubtype) ir.Type { return ir.Primitive(s) }

func in(name string, t ir.Type) ir.Parameter {
	return ir.Parameter{Name: name, Type: t, Direction: ir.In}
}

func out(name string, t ir.Type) ir.Parameter {
	return ir.Parameter{Name: name, Type: t, Direction: ir.Out}
}

func withAttrs(p ir.Parameter, a ir.Attributes) ir.Parameter {
	p.Attributes = a
	return p
}

func maxIs(n int) *ir.Bound { return &ir.Bound{Literal: n} }

func library(decls ir.Declarations, ops ...ir.Operation) *ir.Library {
	return &ir.Library{
		Name:         "test",
		Declarations: decls,
		Interfaces:   []ir.Interface{{Name: "Svc", Operations: ops}},
	}
}

func planWith(t *testing.T, lib *ir.Library, platform config.Platform) (*OperationLayout, error) {
	t.Helper()
	idx, err := ir.NewIndex(lib)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	p := NewPlanner(idx, platform, names.NewCFactory())
	return p.PlanOperation("Svc", &lib.Interfaces[0].Operations[0])
}

func lp64() config.Platform {
	p, _ := config.Preset("lp64")
	return p
}

func mustPlan(t *testing.T, lib *ir.Library) *OperationLayout {
	t.Helper()
	l, err := planWith(t, lib, lp64())
	if err != nil {
		t.Fatalf("PlanOperation: %v", err)
	}
	return l
}

func fieldNames(ms *MessageStruct) []string {
	var out []string
	for _, f := range ms.Fields() {
		out = append(out, f.Name)
	}
	return out
}

type summary struct {
	Name   string
	Size   int
	Offset int
	Role   Role
}

func summarize(l *OperationLayout) [][]summary {
	var out [][]summary
	for _, ms := range l.Messages() {
		var fs []summary
		for _, f := range ms.Fields() {
			fs = append(fs, summary{f.Name, f.Size, f.Offset, f.Role})
		}
		out = append(out, fs)
	}
	return out
}

func TestCompanionPrecedesString(t *testing.T) {
	lib := library(ir.Declarations{}, ir.Operation{
		Name:       "Foo",
		Parameters: []ir.Parameter{in("x", prim(ir.Int32)), in("s", ir.StringT())},
	})
	l := mustPlan(t, lib)

	if diff := cmp.Diff([]string{"opcode", "x", "s_len", "pad0_", "s"}, fieldNames(l.In)); diff != "" {
		t.Errorf("request fields (-want +got):\n%s", diff)
	}
	s, _ := l.In.Field("s")
	sLen, _ := l.In.Field("s_len")
	if s.Length != sLen || !sLen.Synthesized {
		t.Errorf("s is not counted by the synthesized s_len")
	}
	if s.Offset != 16 || sLen.Offset != 8 {
		t.Errorf("got offsets s=%d s_len=%d, want 16 and 8", s.Offset, sLen.Offset)
	}
	if got := l.In.Size(); got != Unbounded {
		t.Errorf("request size = %d, want Unbounded", got)
	}
	if got, want := l.In.MaxSize(), 16+256; got != want {
		t.Errorf("request max size = %d, want %d", got, want)
	}
	if diff := cmp.Diff([]string{"exception", "pad0_"}, fieldNames(l.Out)); diff != "" {
		t.Errorf("reply fields (-want +got):\n%s", diff)
	}
	if got := l.Out.Size(); got != 16 {
		t.Errorf("reply size = %d, want 16", got)
	}
	body, _ := l.Generic.Field("body")
	if got := MaxCount(body.Type); got != 272 {
		t.Errorf("generic body holds %d bytes, want 272", got)
	}
	for _, ms := range l.Messages() {
		if !ms.Frozen() {
			t.Errorf("%s is not frozen", ms.Name)
		}
	}
	if l.In.Name != "svc_foo_in_msg" {
		t.Errorf("got message name %q", l.In.Name)
	}
}

func mixedLibrary() *ir.Library {
	rec := ir.Struct{
		Name: "Rec",
		Members: []ir.StructMember{
			{Name: "id", Type: prim(ir.Uint32)},
			{Name: "items", Type: ir.PointerTo(prim(ir.Uint32)), Attributes: ir.Attributes{MaxIs: maxIs(8)}},
		},
	}
	return library(ir.Declarations{Structs: []ir.Struct{rec}}, ir.Operation{
		Name: "Mixed",
		Parameters: []ir.Parameter{
			in("a", prim(ir.Uint8)),
			in("b", prim(ir.Uint64)),
			in("c", ir.ArrayOf(prim(ir.Uint8), 32)),
			in("d", ir.ArrayOf(prim(ir.Uint8), 16)),
			in("e", prim(ir.Uint16)),
			in("s", ir.StringT()),
			in("st", ir.Named("Rec")),
		},
	})
}

func TestSortOrder(t *testing.T) {
	l := mustPlan(t, mixedLibrary())
	want := []string{"opcode", "b", "s_len", "st_items_len", "e", "a", "d", "c", "st", "s"}
	if diff := cmp.Diff(want, fieldNames(l.In)); diff != "" {
		t.Errorf("request fields (-want +got):\n%s", diff)
	}
}

func TestSortFixpoint(t *testing.T) {
	l := mustPlan(t, mixedLibrary())
	for _, ms := range l.Messages() {
		fields := ms.Fields()
		for i := 0; i+1 < len(fields); i++ {
			if swapAfter(fields[i], fields[i+1], 8) {
				t.Errorf("%s: %s and %s are out of order", ms.Name, fields[i], fields[i+1])
			}
		}
	}
}

func TestPlanIsIdempotent(t *testing.T) {
	lib := mixedLibrary()
	first := summarize(mustPlan(t, lib))
	second := summarize(mustPlan(t, lib))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("layouts differ (-first +second):\n%s", diff)
	}
}

func TestUnboundedIffVariable(t *testing.T) {
	l := mustPlan(t, mixedLibrary())
	for _, ms := range l.Messages() {
		variable := false
		for _, f := range ms.Fields() {
			variable = variable || f.IsVariable()
		}
		if got := ms.Size() == Unbounded; got != variable {
			t.Errorf("%s: unbounded = %t, has variable field = %t", ms.Name, got, variable)
		}
	}
}

func TestStructWithVariableMember(t *testing.T) {
	l := mustPlan(t, mixedLibrary())
	st, _ := l.In.Field("st")
	s := st.Type.(*Struct)
	if _, ok := FixedSize(s); ok {
		t.Errorf("struct with a variable member has a fixed size")
	}
	if got, want := MaxSize(s), s.FixedPrefixSize()+8*4; got != want {
		t.Errorf("MaxSize = %d, want %d", got, want)
	}
	items := s.Fields[1]
	if items.Length == nil || items.Length.Name != "st_items_len" {
		t.Errorf("items is not counted by st_items_len: %+v", items.Length)
	}
}

func TestDescriptorAlignment(t *testing.T) {
	lib := library(ir.Declarations{}, ir.Operation{
		Name: "Put",
		Parameters: []ir.Parameter{
			withAttrs(in("name", ir.StringT()), ir.Attributes{Indirect: true}),
			out("a", ir.PointerTo(prim(ir.Uint64))),
			out("b", ir.PointerTo(prim(ir.Uint64))),
			withAttrs(out("data", ir.PointerTo(prim(ir.Uint8))), ir.Attributes{MaxIs: maxIs(100), Indirect: true}),
		},
	})
	l := mustPlan(t, lib)
	if diff := cmp.Diff([]string{"opcode", "pad0_", "name"}, fieldNames(l.In)); diff != "" {
		t.Errorf("request fields (-want +got):\n%s", diff)
	}
	name, _ := l.In.Field("name")
	data, _ := l.Out.Field("data")
	if name.Offset != 24 || data.Offset != 24 {
		t.Errorf("descriptors at %d and %d, want both at 24", name.Offset, data.Offset)
	}
	if data.Length != nil {
		t.Errorf("out-of-line data has a companion")
	}
	a, _ := l.Out.Field("a")
	if !a.Indirect {
		t.Errorf("returned scalar is not filled in place")
	}
}

func TestIndirectThreshold(t *testing.T) {
	lib := library(ir.Declarations{}, ir.Operation{
		Name: "Blob",
		Parameters: []ir.Parameter{
			withAttrs(in("small", ir.PointerTo(prim(ir.Uint8))), ir.Attributes{MaxIs: maxIs(16)}),
			withAttrs(in("big", ir.PointerTo(prim(ir.Uint8))), ir.Attributes{MaxIs: maxIs(4096)}),
		},
	})
	platform := lp64()
	platform.IndirectThreshold = 1024
	l, err := planWith(t, lib, platform)
	if err != nil {
		t.Fatal(err)
	}
	small, _ := l.In.Field("small")
	big, _ := l.In.Field("big")
	if _, ok := small.Type.(*Descriptor); ok {
		t.Errorf("small array sent out of line")
	}
	if _, ok := big.Type.(*Descriptor); !ok {
		t.Errorf("big array sent inline")
	}
}

func TestPulledCount(t *testing.T) {
	lib := library(ir.Declarations{}, ir.Operation{
		Name: "Read",
		Parameters: []ir.Parameter{
			in("n", prim(ir.Uint32)),
			withAttrs(out("buf", ir.PointerTo(prim(ir.Uint32))), ir.Attributes{SizeIs: "n", MaxIs: maxIs(64)}),
		},
	})
	l := mustPlan(t, lib)
	n, ok := l.Out.Field("n")
	if !ok || !n.Pulled {
		t.Fatalf("reply does not carry n: %v", fieldNames(l.Out))
	}
	buf, ok := l.Out.Field("buf")
	if !ok {
		t.Fatalf("reply has no buf: %v", fieldNames(l.Out))
	}
	if buf.Length != n {
		t.Errorf("buf is not counted by n")
	}
	if arr := buf.Type.(*Array); arr.Bound != CompanionBound || arr.N != 64 {
		t.Errorf("got %s, want a companion bound of 64", arr)
	}
}

func TestSizeIsBoundsLengthIs(t *testing.T) {
	lib := library(ir.Declarations{}, ir.Operation{
		Name: "Fill",
		Parameters: []ir.Parameter{
			in("capacity", prim(ir.Uint32)),
			in("n", prim(ir.Uint32)),
			withAttrs(in("arr", ir.PointerTo(prim(ir.Uint16))), ir.Attributes{SizeIs: "capacity", LengthIs: "n"}),
		},
	})
	l := mustPlan(t, lib)
	arr, ok := l.In.Field("arr")
	if !ok {
		t.Fatalf("request has no arr: %v", fieldNames(l.In))
	}
	n, _ := l.In.Field("n")
	if arr.Length != n {
		t.Errorf("arr is counted by %v, want n", arr.Length)
	}
	if diff := cmp.Diff(names.Path{"capacity"}, arr.MaxRef); diff != "" {
		t.Errorf("runtime maximum (-want +got):\n%s", diff)
	}
	if capacity, _ := l.In.Field("capacity"); capacity.IsCompanion() {
		t.Errorf("capacity was made a companion of %v", capacity.Counts)
	}
}

func TestTransmitAs(t *testing.T) {
	decls := ir.Declarations{Aliases: []ir.Alias{{Name: "Wire32", Type: prim(ir.Uint32)}}}
	lib := library(decls, ir.Operation{
		Name:       "Set",
		Parameters: []ir.Parameter{withAttrs(in("v", prim(ir.Uint64)), ir.Attributes{TransmitAs: "Wire32"})},
	})
	l := mustPlan(t, lib)
	v, _ := l.In.Field("v")
	if diff := cmp.Diff(&Scalar{Subtype: ir.Uint32}, v.Type); diff != "" {
		t.Errorf("wire type (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&Scalar{Subtype: ir.Uint64}, v.Presented); diff != "" {
		t.Errorf("presented type (-want +got):\n%s", diff)
	}
}

func TestSelfReference(t *testing.T) {
	list := ir.Struct{
		Name: "List",
		Members: []ir.StructMember{
			{Name: "value", Type: prim(ir.Uint32)},
			{Name: "next", Type: ir.PointerTo(ir.Named("List"))},
		},
	}
	lib := library(ir.Declarations{Structs: []ir.Struct{list}}, ir.Operation{
		Name:       "Push",
		Parameters: []ir.Parameter{in("l", ir.Named("List"))},
	})
	l := mustPlan(t, lib)
	f, _ := l.In.Field("l")
	s := f.Type.(*Struct)
	if !s.SelfRef {
		t.Errorf("List is not marked self-referential")
	}
	if f.Size != 4+8 {
		t.Errorf("got size %d, want 12", f.Size)
	}
}

func TestExceptionReply(t *testing.T) {
	decls := ir.Declarations{Structs: []ir.Struct{
		{Name: "NotFound", Members: []ir.StructMember{{Name: "code", Type: prim(ir.Int32)}}},
		{Name: "Denied", Members: []ir.StructMember{{Name: "uid", Type: prim(ir.Uint64)}}},
	}}
	lib := library(decls, ir.Operation{
		Name:       "Open",
		Parameters: []ir.Parameter{in("path", ir.StringT())},
		Raises:     []string{"NotFound", "Denied"},
	})
	l := mustPlan(t, lib)
	if diff := cmp.Diff([]string{"exception", "exception_payload"}, fieldNames(l.Exception)); diff != "" {
		t.Errorf("exception fields (-want +got):\n%s", diff)
	}
	payload, _ := l.Exception.Field("exception_payload")
	u := payload.Type.(*Union)
	if got := len(u.Cases); got != 2 {
		t.Fatalf("got %d cases, want 2", got)
	}
	if diff := cmp.Diff([]int64{2}, u.Cases[1].Labels); diff != "" {
		t.Errorf("Denied labels (-want +got):\n%s", diff)
	}
	if got, want := payload.Size, 4+8; got != want {
		t.Errorf("payload size = %d, want %d", got, want)
	}
}

func TestOnewayAndFlags(t *testing.T) {
	lib := library(ir.Declarations{}, ir.Operation{
		Name:       "Notify",
		Parameters: []ir.Parameter{in("v", prim(ir.Uint32))},
		Oneway:     true,
		NoOpcode:   true,
	})
	l := mustPlan(t, lib)
	if !l.Out.IsEmpty() || !l.Exception.IsEmpty() {
		t.Errorf("oneway operation has reply fields")
	}
	if diff := cmp.Diff([]string{"v", "pad0_"}, fieldNames(l.In)); diff != "" {
		t.Errorf("request fields (-want +got):\n%s", diff)
	}
}

func TestUnionFootprint(t *testing.T) {
	decls := ir.Declarations{Unions: []ir.Union{{
		Name:         "Value",
		Discriminant: ir.Uint8,
		Cases: []ir.UnionCase{
			{Labels: []int64{1}, Member: &ir.StructMember{Name: "i", Type: prim(ir.Int64)}},
			{Labels: []int64{2}, Member: &ir.StructMember{Name: "b", Type: prim(ir.Bool)}},
			{Default: true},
		},
	}}}
	lib := library(decls, ir.Operation{
		Name:       "Store",
		Parameters: []ir.Parameter{in("v", ir.Named("Value"))},
	})
	l := mustPlan(t, lib)
	v, _ := l.In.Field("v")
	if v.Size != 1+8 {
		t.Errorf("union size = %d, want 9", v.Size)
	}
}

func TestErrors(t *testing.T) {
	self := ir.Struct{Name: "Node", Members: []ir.StructMember{{Name: "next", Type: ir.Named("Node")}}}
	cycle := []ir.Alias{{Name: "A", Type: ir.Named("B")}, {Name: "B", Type: ir.Named("A")}}
	tests := []struct {
		name   string
		lib    *ir.Library
		target interface{}
		want   string
	}{
		{
			name: "missing companion",
			lib: library(ir.Declarations{}, ir.Operation{
				Name:       "Op",
				Parameters: []ir.Parameter{withAttrs(in("arr", ir.PointerTo(prim(ir.Uint8))), ir.Attributes{SizeIs: "n"})},
			}),
			target: new(*diag.MissingCompanionError),
			want:   "size_is(n) on arr",
		},
		{
			name: "dangling size_is next to length_is",
			lib: library(ir.Declarations{}, ir.Operation{
				Name: "Op",
				Parameters: []ir.Parameter{
					in("n", prim(ir.Uint32)),
					withAttrs(in("arr", ir.PointerTo(prim(ir.Uint8))), ir.Attributes{SizeIs: "nonexistent", LengthIs: "n"}),
				},
			}),
			target: new(*diag.MissingCompanionError),
			want:   "size_is(nonexistent) on arr",
		},
		{
			name: "alias cycle",
			lib: library(ir.Declarations{Aliases: cycle}, ir.Operation{
				Name:       "Op",
				Parameters: []ir.Parameter{in("v", ir.Named("A"))},
			}),
			target: new(*diag.TypeResolutionError),
			want:   "A -> B -> A",
		},
		{
			name: "struct contains itself",
			lib: library(ir.Declarations{Structs: []ir.Struct{self}}, ir.Operation{
				Name:       "Op",
				Parameters: []ir.Parameter{in("n", ir.Named("Node"))},
			}),
			target: new(*diag.TypeResolutionError),
			want:   "Node -> Node",
		},
		{
			name: "variable element",
			lib: library(ir.Declarations{}, ir.Operation{
				Name:       "Op",
				Parameters: []ir.Parameter{in("names", ir.ArrayOf(ir.StringT(), 4))},
			}),
			target: new(*diag.LayoutError),
			want:   "variable size",
		},
		{
			name: "count not sent",
			lib: library(ir.Declarations{}, ir.Operation{
				Name: "Op",
				Parameters: []ir.Parameter{
					withAttrs(in("arr", ir.PointerTo(prim(ir.Uint8))), ir.Attributes{SizeIs: "n"}),
					out("n", ir.PointerTo(prim(ir.Uint32))),
				},
			}),
			target: new(*diag.LayoutError),
			want:   "not sent in this direction",
		},
		{
			name: "fixed part too large",
			lib: library(ir.Declarations{}, ir.Operation{
				Name:       "Op",
				Parameters: []ir.Parameter{in("blob", ir.ArrayOf(prim(ir.Uint8), 1<<17))},
			}),
			target: new(*diag.LayoutError),
			want:   "exceeds max_message_bytes",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := planWith(t, test.lib, lp64())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.As(err, test.target) {
				t.Errorf("got %T, want %T", err, test.target)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("got %q, want it to contain %q", err, test.want)
			}
			if !diag.IsLayoutFailure(err) {
				t.Errorf("%v is not a layout failure", err)
			}
		})
	}
}
