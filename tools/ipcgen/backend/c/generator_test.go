// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package c

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/compiler"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/config"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/diag"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
)

func testLibrary() *ir.Library {
	return &ir.Library{
		Name: "geometry",
		Declarations: ir.Declarations{
			Structs: []ir.Struct{{
				Name: "Point",
				Members: []ir.StructMember{
					{Name: "x", Type: ir.Primitive(ir.Int32)},
					{Name: "y", Type: ir.Primitive(ir.Int32)},
				},
			}},
			Unions: []ir.Union{{
				Name:         "Shape",
				Discriminant: ir.Uint8,
				Cases: []ir.UnionCase{
					{Labels: []int64{1}, Member: &ir.StructMember{Name: "center", Type: ir.Named("Point")}},
					{Labels: []int64{2}, Member: &ir.StructMember{Name: "radius", Type: ir.Primitive(ir.Uint32)}},
				},
			}},
		},
		Interfaces: []ir.Interface{{
			Name: "Canvas",
			Operations: []ir.Operation{
				{
					Name: "Draw",
					Parameters: []ir.Parameter{
						{Name: "shape", Type: ir.Named("Shape"), Direction: ir.In},
						{Name: "label", Type: ir.StringT(), Direction: ir.In},
					},
				},
				{
					Name:       "Clear",
					Parameters: []ir.Parameter{{Name: "color", Type: ir.Primitive(ir.Uint32), Direction: ir.In}},
					Oneway:     true,
				},
			},
		}},
	}
}

func compileTestLibrary(t *testing.T) *compiler.Root {
	t.Helper()
	ctx := context.Background()
	cfg := config.Default()
	root, err := compiler.New(cfg, diag.NewReporter(ctx, cfg.Policy)).Compile(ctx, testLibrary())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return root
}

func TestGenerateFiles(t *testing.T) {
	dir := t.TempDir()
	paths, err := NewGenerator(nil).GenerateFiles(compileTestLibrary(t), dir, "geometry")
	if err != nil {
		t.Fatalf("GenerateFiles: %v", err)
	}
	want := []string{
		filepath.Join(dir, RuntimeHeader),
		filepath.Join(dir, "geometry.h"),
		filepath.Join(dir, "geometry.c"),
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("paths (-want +got):\n%s", diff)
	}
	read := func(name string) string {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		return string(b)
	}

	header := read("geometry.h")
	for _, s := range []string{
		"#ifndef GEOMETRY_IPCGEN_H_",
		`#include "ipcgen_runtime.h"`,
		"#define CANVAS_INTERFACE_NUMBER 1u",
		"#define CANVAS_DRAW_OPCODE 0x10001u",
		"#define CANVAS_CLEAR_OPCODE 0x10002u",
		"struct canvas_draw_args {",
		"  struct shape shape;",
		"  char* label;",
		"  uint64_t exception;",
		"struct canvas_draw_in_msg {",
		"  uint32_t opcode;",
		"} IPC_PACKED;",
		"int64_t canvas_draw_in_marshal(const struct canvas_draw_args* args, uint8_t* buf);",
		"int canvas_draw_in_unmarshal(struct canvas_draw_args* args, const uint8_t* buf, size_t size);",
		"    uint8_t raw[8];",
	} {
		if !strings.Contains(header, s) {
			t.Errorf("header lacks %q:\n%s", s, header)
		}
	}
	point := strings.Index(header, "struct point {")
	shape := strings.Index(header, "struct shape {")
	if point < 0 || shape < 0 || point > shape {
		t.Errorf("struct point is not declared before struct shape")
	}
	if strings.Contains(header, "canvas_clear_out_msg") {
		t.Errorf("empty reply of a oneway operation was declared")
	}

	source := read("geometry.c")
	for _, s := range []string{
		`#include "geometry.h"`,
		"int64_t canvas_draw_in_marshal(const struct canvas_draw_args* args, uint8_t* buf) {",
		"  IPC_PUT(cur, uint32_t, CANVAS_DRAW_OPCODE);",
		"    switch (args->shape.tag) {",
		"int canvas_clear_in_unmarshal(struct canvas_clear_args* args, const uint8_t* buf, size_t size) {",
	} {
		if !strings.Contains(source, s) {
			t.Errorf("source lacks %q:\n%s", s, source)
		}
	}

	runtime := read(RuntimeHeader)
	for _, macro := range []string{"IPC_PUT(", "IPC_GET(", "IPC_EXPECT(", "IPC_PUT_OOL_HEADER(", "IPC_GET_OOL(", "IPC_BIND_ARRAY(", "IPC_GET_STRING_ALLOC(", "IPC_GET_BYTES("} {
		if !strings.Contains(runtime, "#define "+macro) {
			t.Errorf("runtime lacks %s", macro)
		}
	}
}

func TestWriteFileIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "file.h")
	if err := WriteFileIfChanged(path, []byte("a")); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	if err := WriteFileIfChanged(path, []byte("a")); err != nil {
		t.Fatal(err)
	}
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !stat.ModTime().Equal(old) {
		t.Errorf("unchanged file was rewritten")
	}

	if err := WriteFileIfChanged(path, []byte("b")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "b" {
		t.Errorf("got %q, want %q", got, "b")
	}
}

func TestNewFormatter(t *testing.T) {
	f, err := NewFormatter("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.(identityFormatter); !ok {
		t.Errorf("empty command gave %T, want the identity formatter", f)
	}

	f, err = NewFormatter(`clang-format "--style={BasedOnStyle: google}"`, 1024)
	if err != nil {
		t.Fatal(err)
	}
	want := externalFormatter{path: "clang-format", args: []string{"--style={BasedOnStyle: google}"}, sizeLimit: 1024}
	if diff := cmp.Diff(want, f, cmp.AllowUnexported(externalFormatter{})); diff != "" {
		t.Errorf("formatter (-want +got):\n%s", diff)
	}

	big := []byte(strings.Repeat("x", 2048))
	out, err := f.Format(big)
	if err != nil || len(out) != len(big) {
		t.Errorf("source over the size limit was not passed through: %v", err)
	}

	if _, err := NewFormatter(`clang-format "--style`, 0); err == nil {
		t.Errorf("unterminated quote accepted")
	}
}
