// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/compiler"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/config"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/diag"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/marshal"
)

const calcIR = `{
  "name": "calc",
  "declarations": {},
  "interfaces": [
    {"name": "Calc", "operations": [
      {"name": "Add", "id": 5, "parameters": [
        {"name": "a", "direction": "in", "type": {"kind": "primitive", "subtype": "uint32"}, "attributes": {}},
        {"name": "b", "direction": "in", "type": {"kind": "primitive", "subtype": "uint32"}, "attributes": {}},
        {"name": "sum", "direction": "out", "type": {"kind": "primitive", "subtype": "uint32"}, "attributes": {}}
      ]},
      {"name": "Log", "parameters": [
        {"name": "line", "direction": "in", "type": {"kind": "string"}, "attributes": {"string": true, "max_is": 16}}
      ]}
    ]}
  ]
}`

func writeIR(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calc.json")
	if err := os.WriteFile(path, []byte(calcIR), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func compileCalc(t *testing.T) (*compiler.Root, *diag.Reporter) {
	t.Helper()
	in := inputFlags{irFile: writeIR(t)}
	root, r, err := in.compile(context.Background())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return root, r
}

func TestLoadConfig(t *testing.T) {
	in := inputFlags{platform: "ilp32"}
	cfg, err := in.loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	want, _ := config.Preset("ilp32")
	if diff := cmp.Diff(want, cfg.Platform); diff != "" {
		t.Errorf("platform (-want +got):\n%s", diff)
	}

	in = inputFlags{platform: "pdp11"}
	if _, err := in.loadConfig(); err == nil {
		t.Errorf("unknown preset accepted")
	}
}

func TestCompileRequiresIR(t *testing.T) {
	var in inputFlags
	if _, _, err := in.compile(context.Background()); err == nil {
		t.Errorf("compile without -ir succeeded")
	}
}

func TestWriteOpcodes(t *testing.T) {
	root, _ := compileCalc(t)
	var b strings.Builder
	if err := writeOpcodes(&b, root); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), b.String())
	}
	for i, want := range [][]string{
		{"Calc", "1"},
		{"Log", "0x10001", "CALC_LOG_OPCODE"},
		{"Add", "0x10005", "CALC_ADD_OPCODE", "explicit"},
	} {
		if diff := cmp.Diff(want, strings.Fields(lines[i])); diff != "" {
			t.Errorf("line %d (-want +got):\n%s", i, diff)
		}
	}
}

func TestWriteLayout(t *testing.T) {
	root, _ := compileCalc(t)
	var b strings.Builder
	c := &LayoutCommand{fields: true}
	if err := c.write(&b, root); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, s := range []string{"MESSAGE", "calc_add_in_msg", "16 B", "unbounded", "opcode"} {
		if !strings.Contains(out, s) {
			t.Errorf("layout output lacks %q:\n%s", s, out)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	root, r := compileCalc(t)
	if err := roundTrip(context.Background(), root, marshal.NewCodec(r)); err != nil {
		t.Errorf("roundTrip: %v", err)
	}
}

func TestGen(t *testing.T) {
	out := t.TempDir()
	g := &GenCommand{input: inputFlags{irFile: writeIR(t)}, outDir: out}
	if err := g.execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"calc.h", "calc.c", "ipcgen_runtime.h"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("%s was not generated: %v", name, err)
		}
	}

	g = &GenCommand{input: inputFlags{irFile: writeIR(t)}}
	if err := g.execute(context.Background()); err == nil {
		t.Errorf("gen without -out succeeded")
	}
}
