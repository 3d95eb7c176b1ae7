// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
	"github.com/kr/pretty"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/compiler"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/layout"
)

type LayoutCommand struct {
	input inputFlags
	// Whether to list the fields of every message.
	fields bool
	// Whether to dump the IR declaration of every operation.
	dump bool
}

func (*LayoutCommand) Name() string {
	return "layout"
}

func (*LayoutCommand) Usage() string {
	return `
ipcgen layout -ir <library.json> [flags...]

flags:
`
}

func (*LayoutCommand) Synopsis() string {
	return "prints the message layout of every operation"
}

func (c *LayoutCommand) SetFlags(f *flag.FlagSet) {
	c.input.register(f)
	f.BoolVar(&c.fields, "fields", false, "list the fields of every message in wire order")
	f.BoolVar(&c.dump, "dump", false, "dump the IR declaration of every operation")
}

func (c *LayoutCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	root, _, err := c.input.compile(ctx)
	if root != nil {
		if werr := c.write(os.Stdout, root); werr != nil && err == nil {
			err = werr
		}
	}
	return exitStatus(ctx, err)
}

func (c *LayoutCommand) write(w io.Writer, root *compiler.Root) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "MESSAGE\tSIZE\tMAX\tFIELDS\n")
	for _, iface := range root.Interfaces {
		for _, op := range iface.Operations {
			if c.dump {
				pretty.Fprintf(tw, "%# v\n", op.Decl)
			}
			for _, m := range op.Messages {
				ms := m.Struct
				if ms.IsEmpty() {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", ms.Name, byteSize(ms.Size()), byteSize(ms.MaxSize()), len(ms.Fields()))
				if !c.fields {
					continue
				}
				for _, f := range ms.Fields() {
					offset := "-"
					if f.Offset >= 0 {
						offset = fmt.Sprint(f.Offset)
					}
					fmt.Fprintf(tw, "  %s\t%s\t%s\t\n", f, offset, f.Role)
				}
			}
		}
	}
	return tw.Flush()
}

func byteSize(n int) string {
	if n == layout.Unbounded {
		return "unbounded"
	}
	return humanize.IBytes(uint64(n))
}
