// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"go.uber.org/multierr"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/compiler"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/diag"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/layout"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/marshal"
	"go.fuchsia.dev/ipcgen/tools/lib/logger"
)

type RoundTripCommand struct {
	input inputFlags
}

func (*RoundTripCommand) Name() string {
	return "roundtrip"
}

func (*RoundTripCommand) Usage() string {
	return `
ipcgen roundtrip -ir <library.json> [flags...]

flags:
`
}

func (*RoundTripCommand) Synopsis() string {
	return "encodes and decodes zero values through every message program"
}

func (c *RoundTripCommand) SetFlags(f *flag.FlagSet) {
	c.input.register(f)
}

func (c *RoundTripCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	root, r, err := c.input.compile(ctx)
	if root != nil {
		err = multierr.Append(err, roundTrip(ctx, root, marshal.NewCodec(r)))
	}
	return exitStatus(ctx, err)
}

// roundTrip encodes the zero arguments of every request and reply, decodes
// the result and checks that encoding the decoded values reproduces the
// same bytes.
func roundTrip(ctx context.Context, root *compiler.Root, codec *marshal.Codec) error {
	var errs error
	for _, iface := range root.Interfaces {
		for _, op := range iface.Operations {
			for _, m := range op.Messages {
				ms := m.Struct
				if ms.IsEmpty() || ms.Direction == layout.Generic {
					continue
				}
				n, err := roundTripMessage(codec, m)
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("%s: %w", ms.Name, err))
					continue
				}
				logger.Debugf(ctx, "%s: %d bytes", ms.Name, n)
			}
		}
	}
	return errs
}

func roundTripMessage(codec *marshal.Codec, m *compiler.Message) (int, error) {
	buf, err := codec.Encode(m.Marshal, marshal.ZeroValues(m.Struct))
	if err != nil {
		return 0, err
	}
	decoded := marshal.Values{}
	if err := codec.Decode(m.Unmarshal, buf, decoded); err != nil {
		return 0, err
	}
	again, err := codec.Encode(m.Marshal, decoded)
	if err != nil {
		return 0, err
	}
	if !bytes.Equal(buf, again) {
		return 0, &diag.ProtocolError{Message: m.Struct.Name, Reason: "re-encoding the decoded values changed the message"}
	}
	return len(buf), nil
}
