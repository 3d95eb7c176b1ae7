// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compiler drives the stages of ipcgen over one library: opcode
// allocation in topological interface order, parallel layout of the
// operations of each interface, and program construction.
package compiler

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/config"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/diag"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/layout"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/marshal"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/names"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/opcode"
	"go.fuchsia.dev/ipcgen/tools/lib/logger"
)

// Root is everything the backends need to render one library.
type Root struct {
	Library    string
	Platform   config.Platform
	Interfaces []*Interface
}

type Interface struct {
	Name       string
	Number     uint32
	Bases      []string
	Operations []*Operation
}

type Operation struct {
	Decl       *ir.Operation
	Assignment opcode.Assignment
	// OpcodeName is the constant holding the opcode in generated code.
	OpcodeName string
	Layout     *layout.OperationLayout
	Messages   []*Message
}

// Message pairs a frozen MessageStruct with the programs that write and
// read it.
type Message struct {
	Struct    *layout.MessageStruct
	Marshal   *marshal.Program
	Unmarshal *marshal.Program
}

// Compiler compiles libraries under one configuration.
type Compiler struct {
	cfg      config.Config
	reporter *diag.Reporter
	factory  func() names.Factory
}

// New returns a Compiler recording diagnostics with r.
func New(cfg config.Config, r *diag.Reporter) *Compiler {
	return &Compiler{
		cfg:      cfg,
		reporter: r,
		factory:  func() names.Factory { return names.NewCFactory() },
	}
}

// Compile lays out and numbers every operation of lib. A failing operation
// drops its interface from the result and compilation moves on, unless the
// policy makes every error fatal. The returned error combines everything the
// reporter recorded.
func (c *Compiler) Compile(ctx context.Context, lib *ir.Library) (*Root, error) {
	idx, err := ir.NewIndex(lib)
	if err != nil {
		return nil, err
	}
	root := &Root{Library: lib.Name, Platform: c.cfg.Platform}
	alloc := opcode.NewAllocator(idx, c.cfg.Platform.OpcodeShift, c.reporter)
	for _, iface := range idx.InterfacesInOrder() {
		as, err := alloc.Assign(iface)
		if err != nil {
			if c.cfg.Policy.AllErrorsFatal {
				return nil, c.reporter.Err()
			}
			logger.Warningf(ctx, "skipping interface %s: %s", iface.Name, err)
			continue
		}
		out, err := c.compileInterface(ctx, idx, iface, as, alloc.InterfaceNumber(iface))
		if err != nil {
			if c.cfg.Policy.AllErrorsFatal {
				return nil, c.reporter.Err()
			}
			logger.Warningf(ctx, "skipping interface %s: %s", iface.Name, err)
			continue
		}
		root.Interfaces = append(root.Interfaces, out)
	}
	return root, c.reporter.Err()
}

func (c *Compiler) compileInterface(ctx context.Context, idx *ir.Index, iface *ir.Interface, as []opcode.Assignment, number uint32) (*Interface, error) {
	layouts := make([]*layout.OperationLayout, len(iface.Operations))

	// Each goroutine owns its planner; the index is read-only.
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	errs := make([]error, len(iface.Operations))
	for i := range iface.Operations {
		i := i
		g.Go(func() error {
			op := &iface.Operations[i]
			p := layout.NewPlanner(idx, c.cfg.Platform, c.factory())
			l, err := p.PlanOperation(iface.Name, op)
			if err != nil {
				errs[i] = err
				return nil
			}
			layouts[i] = l
			logger.Debugf(ctx, "laid out %s.%s: request %s, reply %s", iface.Name, op.Name, sizeString(l.In), sizeString(l.Out))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			c.reporter.Error(err)
		}
	}
	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}

	opcodes := make(map[string]uint32, len(as))
	for _, a := range as {
		opcodes[a.Operation] = a.Opcode
	}
	m := marshal.NewMarshaler(opcodes)
	factory := c.factory()
	out := &Interface{Name: iface.Name, Number: number, Bases: iface.Bases}
	for i := range iface.Operations {
		op := &iface.Operations[i]
		o := &Operation{
			Decl:       op,
			Assignment: as[i],
			OpcodeName: factory.Opcode(iface.Name, op.Name),
			Layout:     layouts[i],
		}
		for _, ms := range layouts[i].Messages() {
			msg, err := buildMessage(m, op, ms)
			if err != nil {
				c.reporter.Error(err)
				return nil, err
			}
			o.Messages = append(o.Messages, msg)
		}
		out.Operations = append(out.Operations, o)
	}
	return out, nil
}

func buildMessage(m *marshal.Marshaler, op *ir.Operation, ms *layout.MessageStruct) (*Message, error) {
	send, err := m.Marshal(op, ms.Direction, ms)
	if err != nil {
		return nil, err
	}
	recv, err := m.Unmarshal(op, ms.Direction, ms)
	if err != nil {
		return nil, err
	}
	return &Message{Struct: ms, Marshal: send, Unmarshal: recv}, nil
}

func sizeString(ms *layout.MessageStruct) string {
	if ms.IsEmpty() {
		return "empty"
	}
	if ms.Size() == layout.Unbounded {
		if max := ms.MaxSize(); max != layout.Unbounded {
			return fmt.Sprintf("up to %d bytes", max)
		}
		return "unbounded"
	}
	return fmt.Sprintf("%d bytes", ms.Size())
}
