// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"

	"github.com/google/subcommands"

	c "go.fuchsia.dev/ipcgen/tools/ipcgen/backend/c"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/names"
	"go.fuchsia.dev/ipcgen/tools/lib/logger"
)

type GenCommand struct {
	input inputFlags
	// Directory the generated files are written to.
	outDir string
	// Base name of the generated header and source.
	basename string
	// Command line of a formatter the generated C is piped through.
	formatter string
	// Sources larger than this many bytes are not formatted; 0 is no limit.
	formatterLimit int
}

func (*GenCommand) Name() string {
	return "gen"
}

func (*GenCommand) Usage() string {
	return `
ipcgen gen -ir <library.json> -out <dir> [flags...]

flags:
`
}

func (*GenCommand) Synopsis() string {
	return "generates C marshaling code for a library"
}

func (g *GenCommand) SetFlags(f *flag.FlagSet) {
	g.input.register(f)
	f.StringVar(&g.outDir, "out", "", "directory to write the generated files to")
	f.StringVar(&g.basename, "basename", "", "base name of the generated .h and .c files; defaults to the library name")
	f.StringVar(&g.formatter, "formatter", "", "command line of a C formatter reading stdin, e.g. \"clang-format --style=google\"")
	f.IntVar(&g.formatterLimit, "formatter-size-limit", 0, "skip formatting of files larger than this many bytes")
}

func (g *GenCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return exitStatus(ctx, g.execute(ctx))
}

func (g *GenCommand) execute(ctx context.Context) error {
	if g.outDir == "" {
		return errors.New("-out is required")
	}
	formatter, err := c.NewFormatter(g.formatter, g.formatterLimit)
	if err != nil {
		return err
	}
	root, _, err := g.input.compile(ctx)
	if root == nil {
		return err
	}
	base := g.basename
	if base == "" {
		base = names.ToSnakeCase(root.Library)
	}
	paths, genErr := c.NewGenerator(formatter).GenerateFiles(root, g.outDir, base)
	for _, p := range paths {
		logger.Infof(ctx, "wrote %s", p)
	}
	if genErr != nil {
		return genErr
	}
	return err
}
