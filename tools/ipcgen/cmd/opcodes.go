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

	"github.com/google/subcommands"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/compiler"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/opcode"
)

type OpcodesCommand struct {
	input inputFlags
}

func (*OpcodesCommand) Name() string {
	return "opcodes"
}

func (*OpcodesCommand) Usage() string {
	return `
ipcgen opcodes -ir <library.json> [flags...]

flags:
`
}

func (*OpcodesCommand) Synopsis() string {
	return "prints interface numbers and operation opcodes"
}

func (c *OpcodesCommand) SetFlags(f *flag.FlagSet) {
	c.input.register(f)
}

func (c *OpcodesCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	root, _, err := c.input.compile(ctx)
	if root != nil {
		if werr := writeOpcodes(os.Stdout, root); werr != nil && err == nil {
			err = werr
		}
	}
	return exitStatus(ctx, err)
}

// writeOpcodes lists each interface with its operations in id order.
func writeOpcodes(w io.Writer, root *compiler.Root) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, iface := range root.Interfaces {
		fmt.Fprintf(tw, "%s\t%d\t\t\n", iface.Name, iface.Number)
		names := make(map[string]string, len(iface.Operations))
		var as []opcode.Assignment
		for _, op := range iface.Operations {
			as = append(as, op.Assignment)
			names[op.Assignment.Operation] = op.OpcodeName
		}
		for _, a := range opcode.ByID(as) {
			explicit := ""
			if a.Explicit {
				explicit = "explicit"
			}
			fmt.Fprintf(tw, "  %s\t%#x\t%s\t%s\n", a.Operation, a.Opcode, names[a.Operation], explicit)
		}
	}
	return tw.Flush()
}
