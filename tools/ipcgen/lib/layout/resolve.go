// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package layout

import (
	"fmt"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/diag"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
)

// resolveAlias follows alias declarations until t names a struct or union,
// or is not an identifier at all.
func (p *planner) resolveAlias(t ir.Type) (ir.Type, error) {
	var chain []string
	seen := map[string]bool{}
	for t.Kind == ir.IdentifierType {
		decl, ok := p.idx.Lookup(t.Identifier)
		if !ok {
			return t, &diag.LayoutError{
				Operation: p.op.Name,
				Reason:    fmt.Sprintf("unknown type %s", t.Identifier),
			}
		}
		alias, ok := decl.(*ir.Alias)
		if !ok {
			return t, nil
		}
		chain = append(chain, t.Identifier)
		if seen[t.Identifier] {
			return t, &diag.TypeResolutionError{Operation: p.op.Name, Chain: chain}
		}
		seen[t.Identifier] = true
		t = alias.Type
	}
	return t, nil
}

// wireType applies transmit_as. The presented type is nil when no
// conversion takes place.
func (p *planner) wireType(t ir.Type, attrs ir.Attributes) (wire, presented ir.Type, err error) {
	resolved, err := p.resolveAlias(t)
	if err != nil {
		return ir.Type{}, ir.Type{}, err
	}
	if attrs.TransmitAs == "" {
		return resolved, ir.Type{}, nil
	}
	target, err := p.resolveAlias(ir.Named(attrs.TransmitAs))
	if err != nil {
		return ir.Type{}, ir.Type{}, err
	}
	return target, resolved, nil
}

// pointee resolves the element of a pointer type.
func (p *planner) pointee(t ir.Type) (ir.Type, error) {
	return p.resolveAlias(*t.ElementType)
}

// isPrimitive reports whether t, with aliases followed, is a scalar.
func (p *planner) isPrimitive(t ir.Type) bool {
	r, err := p.resolveAlias(t)
	return err == nil && r.Kind == ir.PrimitiveType
}

// structDecl returns the struct a resolved identifier names, if any.
func (p *planner) structDecl(t ir.Type) (*ir.Struct, bool) {
	if t.Kind != ir.IdentifierType {
		return nil, false
	}
	decl, ok := p.idx.Lookup(t.Identifier)
	if !ok {
		return nil, false
	}
	s, ok := decl.(*ir.Struct)
	return s, ok
}

// enclosing returns the struct under construction with the given name.
func (p *planner) enclosing(name string) (*Struct, bool) {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].Name == name {
			return p.stack[i], true
		}
	}
	return nil, false
}

func (p *planner) stackChain(name string) []string {
	var chain []string
	for _, s := range p.stack {
		if s.Name == name || len(chain) > 0 {
			chain = append(chain, s.Name)
		}
	}
	return append(chain, name)
}
