// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const exampleIR = `{
  "name": "example",
  "declarations": {
    "structs": [
      {"name": "Point", "members": [
        {"name": "x", "type": {"kind": "primitive", "subtype": "int32"}, "attributes": {}},
        {"name": "y", "type": {"kind": "primitive", "subtype": "int32"}, "attributes": {}}
      ]}
    ],
    "aliases": [
      {"name": "Coord", "type": {"kind": "identifier", "identifier": "Point"}}
    ]
  },
  "interfaces": [
    {"name": "Derived", "bases": ["Base"], "operations": []},
    {"name": "Base", "id": 3, "operations": [
      {"name": "Put", "parameters": [
        {"name": "n", "direction": "in", "type": {"kind": "primitive", "subtype": "uint32"}, "attributes": {}},
        {"name": "name", "direction": "in", "type": {"kind": "string"}, "attributes": {"string": true, "max_is": 10}},
        {"name": "data", "direction": "in",
         "type": {"kind": "pointer", "element_type": {"kind": "primitive", "subtype": "uint8"}},
         "attributes": {"size_is": "n", "max_is": "n"}}
      ]}
    ]}
  ]
}`

func TestDecodeJSONIr(t *testing.T) {
	lib, err := ReadJSONIrContent([]byte(exampleIR))
	if err != nil {
		t.Fatal(err)
	}
	if lib.Name != "example" || len(lib.Interfaces) != 2 {
		t.Fatalf("unexpected library: %+v", lib)
	}
	base := lib.Interfaces[1]
	if base.ID == nil || *base.ID != 3 {
		t.Errorf("Base.ID = %v, want 3", base.ID)
	}
	params := base.Operations[0].Parameters
	want := []Attributes{
		{},
		{String: true, MaxIs: &Bound{Literal: 10}},
		{SizeIs: "n", MaxIs: &Bound{Ref: "n"}},
	}
	var got []Attributes
	for _, p := range params {
		got = append(got, p.Attributes)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attributes (-want +got):\n%s", diff)
	}
	if got := params[2].Type.String(); got != "uint8*" {
		t.Errorf("data type = %s, want uint8*", got)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := ReadJSONIrContent([]byte(`{"name": "x", "interfaces": [], "extra": 1}`))
	if err == nil {
		t.Fatalf("expected an error for an unknown field")
	}
}

func TestInterfacesInOrder(t *testing.T) {
	lib := Library{
		Name: "order",
		Interfaces: []Interface{
			{Name: "D", Bases: []string{"B", "C"}},
			{Name: "C", Bases: []string{"A"}},
			{Name: "B", Bases: []string{"A"}},
			{Name: "A"},
			{Name: "E"},
		},
	}
	idx, err := NewIndex(&lib)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, iface := range idx.InterfacesInOrder() {
		got = append(got, iface.Name)
	}
	want := []string{"A", "B", "C", "D", "E"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestNewIndexErrors(t *testing.T) {
	u8 := Primitive(Uint8)
	tests := []struct {
		name string
		lib  Library
		want string
	}{
		{
			name: "cycle",
			lib: Library{Interfaces: []Interface{
				{Name: "A", Bases: []string{"B"}},
				{Name: "B", Bases: []string{"A"}},
			}},
			want: "inheritance cycle",
		},
		{
			name: "unknown base",
			lib:  Library{Interfaces: []Interface{{Name: "A", Bases: []string{"Z"}}}},
			want: "unknown base interface Z",
		},
		{
			name: "unknown type",
			lib: Library{Interfaces: []Interface{{Name: "A", Operations: []Operation{{
				Name:       "Op",
				Parameters: []Parameter{{Name: "p", Direction: In, Type: Named("Nope")}},
			}}}}},
			want: "unknown type Nope",
		},
		{
			name: "bad direction",
			lib: Library{Interfaces: []Interface{{Name: "A", Operations: []Operation{{
				Name:       "Op",
				Parameters: []Parameter{{Name: "p", Direction: "sideways", Type: u8}},
			}}}}},
			want: "invalid direction",
		},
		{
			name: "duplicate declaration",
			lib: Library{Declarations: Declarations{
				Structs: []Struct{{Name: "S"}},
				Aliases: []Alias{{Name: "S", Type: u8}},
			}},
			want: "duplicate declaration S",
		},
		{
			name: "duplicate label",
			lib: Library{Declarations: Declarations{
				Unions: []Union{{Name: "U", Discriminant: Uint32, Cases: []UnionCase{
					{Labels: []int64{1}}, {Labels: []int64{1}},
				}}},
			}},
			want: "duplicate case label 1",
		},
		{
			name: "zero max",
			lib: Library{Interfaces: []Interface{{Name: "A", Operations: []Operation{{
				Name: "Op",
				Parameters: []Parameter{{
					Name: "s", Direction: In, Type: StringT(),
					Attributes: Attributes{String: true, MaxIs: &Bound{Literal: 0}},
				}},
			}}}}},
			want: "max_is must be positive",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewIndex(&test.lib)
			if err == nil {
				t.Fatalf("expected an error containing %q", test.want)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("got error %q, want it to contain %q", err, test.want)
			}
		})
	}
}

func TestCountRef(t *testing.T) {
	if got := (Attributes{SizeIs: "n", LengthIs: "len"}).CountRef(); got != "len" {
		t.Errorf("CountRef() = %q, want length_is to win", got)
	}
	if got := (Attributes{SizeIs: "n"}).CountRef(); got != "n" {
		t.Errorf("CountRef() = %q, want n", got)
	}
}
