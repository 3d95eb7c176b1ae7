// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package c renders compiled libraries as a C header and source file.
package c

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/compiler"
)

//go:embed templates/*.tmpl
var templates embed.FS

// RuntimeHeader is the file name of the runtime helpers included by every
// generated header.
const RuntimeHeader = "ipcgen_runtime.h"

type Generator struct {
	tmpls     *template.Template
	formatter Formatter
}

func NewGenerator(formatter Formatter) *Generator {
	if formatter == nil {
		formatter = identityFormatter{}
	}
	gen := &Generator{
		tmpls:     template.New("c"),
		formatter: formatter,
	}
	gen.tmpls.Funcs(template.FuncMap{
		"hex": func(v uint32) string { return fmt.Sprintf("%#x", v) },
	})
	files, err := listTemplateFiles(templates)
	if err != nil {
		panic(err)
	}
	template.Must(gen.tmpls.ParseFS(templates, files...))
	return gen
}

func listTemplateFiles(tmplFS fs.FS) ([]string, error) {
	var tmpls []string
	err := fs.WalkDir(tmplFS, ".", func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if filepath.Ext(path) == ".tmpl" {
			tmpls = append(tmpls, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tmpls, nil
}

func (gen *Generator) ExecuteTemplate(tmpl string, data interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := gen.tmpls.ExecuteTemplate(buf, tmpl, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gen *Generator) GenerateFile(filename string, tmpl string, data interface{}) error {
	generated, err := gen.ExecuteTemplate(tmpl, data)
	if err != nil {
		return fmt.Errorf("generating %s: %w", filename, err)
	}
	formatted, err := gen.formatter.Format(generated)
	if err != nil {
		return fmt.Errorf("formatting %s: %w", filename, err)
	}
	return WriteFileIfChanged(filename, formatted)
}

// GenerateFiles writes base.h, base.c and the runtime header into dir and
// returns their paths.
func (gen *Generator) GenerateFiles(root *compiler.Root, dir, base string) ([]string, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	tree := newRoot(root, base+".h", RuntimeHeader)
	outputs := []struct {
		file, tmpl string
	}{
		{RuntimeHeader, "File:Runtime"},
		{base + ".h", "File:Header"},
		{base + ".c", "File:Source"},
	}
	var paths []string
	for _, o := range outputs {
		path := filepath.Join(dir, o.file)
		if err := gen.GenerateFile(path, o.tmpl, tree); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
