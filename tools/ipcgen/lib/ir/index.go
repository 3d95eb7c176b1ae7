// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ir

import (
	"fmt"
	"strings"
)

// Index gives name-based access to a validated Library. It is read-only after
// construction and safe to share between goroutines.
type Index struct {
	Library *Library

	decls  map[string]Decl
	ifaces map[string]*Interface
	order  []*Interface
}

// NewIndex validates lib and indexes its declarations and interfaces.
//
// Validation covers what can be checked without layout: unique names, known
// types and bases, valid directions and an acyclic inheritance graph. Sibling
// references of size attributes are checked during layout, where they are
// reported against the operation.
func NewIndex(lib *Library) (*Index, error) {
	idx := &Index{
		Library: lib,
		decls:   make(map[string]Decl),
		ifaces:  make(map[string]*Interface),
	}
	add := func(d Decl) error {
		if d.GetName() == "" {
			return fmt.Errorf("declaration with empty name")
		}
		if _, ok := idx.decls[d.GetName()]; ok {
			return fmt.Errorf("duplicate declaration %s", d.GetName())
		}
		idx.decls[d.GetName()] = d
		return nil
	}
	decls := &lib.Declarations
	for i := range decls.Structs {
		if err := add(&decls.Structs[i]); err != nil {
			return nil, err
		}
	}
	for i := range decls.Unions {
		if err := add(&decls.Unions[i]); err != nil {
			return nil, err
		}
	}
	for i := range decls.Aliases {
		if err := add(&decls.Aliases[i]); err != nil {
			return nil, err
		}
	}
	for i := range lib.Interfaces {
		iface := &lib.Interfaces[i]
		if _, ok := idx.ifaces[iface.Name]; ok {
			return nil, fmt.Errorf("duplicate interface %s", iface.Name)
		}
		idx.ifaces[iface.Name] = iface
	}

	for _, d := range idx.decls {
		if err := idx.validateDecl(d); err != nil {
			return nil, err
		}
	}
	for i := range lib.Interfaces {
		if err := idx.validateInterface(&lib.Interfaces[i]); err != nil {
			return nil, err
		}
	}
	order, err := idx.sortInterfaces()
	if err != nil {
		return nil, err
	}
	idx.order = order
	return idx, nil
}

// Lookup returns the declaration with the given name.
func (idx *Index) Lookup(name string) (Decl, bool) {
	d, ok := idx.decls[name]
	return d, ok
}

// Interface returns the interface with the given name.
func (idx *Index) Interface(name string) (*Interface, bool) {
	iface, ok := idx.ifaces[name]
	return iface, ok
}

// InterfacesInOrder returns all interfaces topologically sorted so that every
// base precedes the interfaces derived from it. Interfaces with no ordering
// constraint between them keep their declaration order.
func (idx *Index) InterfacesInOrder() []*Interface {
	return idx.order
}

func (idx *Index) validateType(t Type, where string) error {
	switch t.Kind {
	case PrimitiveType:
		if !t.PrimitiveSubtype.IsValid() {
			return fmt.Errorf("%s: unknown primitive subtype %q", where, t.PrimitiveSubtype)
		}
	case PointerType:
		if t.ElementType == nil {
			return fmt.Errorf("%s: pointer without element type", where)
		}
		return idx.validateType(*t.ElementType, where)
	case ArrayType:
		if t.ElementType == nil {
			return fmt.Errorf("%s: array without element type", where)
		}
		if t.ElementCount <= 0 {
			return fmt.Errorf("%s: array element count must be positive, got %d", where, t.ElementCount)
		}
		return idx.validateType(*t.ElementType, where)
	case StringType:
	case IdentifierType:
		if _, ok := idx.decls[t.Identifier]; !ok {
			return fmt.Errorf("%s: unknown type %s", where, t.Identifier)
		}
	default:
		return fmt.Errorf("%s: unknown type kind %q", where, t.Kind)
	}
	return nil
}

func (idx *Index) validateAttributes(a Attributes, where string) error {
	if a.TransmitAs != "" {
		if _, ok := idx.decls[a.TransmitAs]; !ok {
			return fmt.Errorf("%s: transmit_as names unknown type %s", where, a.TransmitAs)
		}
	}
	if a.MaxIs != nil && !a.MaxIs.IsRef() && a.MaxIs.Literal <= 0 {
		return fmt.Errorf("%s: max_is must be positive, got %d", where, a.MaxIs.Literal)
	}
	return nil
}

func (idx *Index) validateDecl(d Decl) error {
	switch d := d.(type) {
	case *Struct:
		seen := make(map[string]struct{})
		for _, m := range d.Members {
			where := d.Name + "." + m.Name
			if _, ok := seen[m.Name]; ok {
				return fmt.Errorf("%s: duplicate member", where)
			}
			seen[m.Name] = struct{}{}
			if err := idx.validateType(m.Type, where); err != nil {
				return err
			}
			if err := idx.validateAttributes(m.Attributes, where); err != nil {
				return err
			}
		}
	case *Union:
		if !d.Discriminant.IsValid() || d.Discriminant.IsFloat() {
			return fmt.Errorf("%s: invalid discriminant type %q", d.Name, d.Discriminant)
		}
		labels := make(map[int64]struct{})
		defaults := 0
		for _, c := range d.Cases {
			if c.Default {
				defaults++
			}
			for _, l := range c.Labels {
				if _, ok := labels[l]; ok {
					return fmt.Errorf("%s: duplicate case label %d", d.Name, l)
				}
				labels[l] = struct{}{}
			}
			if c.Member != nil {
				where := d.Name + "." + c.Member.Name
				if err := idx.validateType(c.Member.Type, where); err != nil {
					return err
				}
				if err := idx.validateAttributes(c.Member.Attributes, where); err != nil {
					return err
				}
			}
		}
		if defaults > 1 {
			return fmt.Errorf("%s: more than one default case", d.Name)
		}
	case *Alias:
		return idx.validateType(d.Type, d.Name)
	}
	return nil
}

func (idx *Index) validateInterface(iface *Interface) error {
	for _, base := range iface.Bases {
		if _, ok := idx.ifaces[base]; !ok {
			return fmt.Errorf("interface %s: unknown base interface %s", iface.Name, base)
		}
	}
	ops := make(map[string]struct{})
	for _, op := range iface.Operations {
		if _, ok := ops[op.Name]; ok {
			return fmt.Errorf("interface %s: duplicate operation %s", iface.Name, op.Name)
		}
		ops[op.Name] = struct{}{}
		params := make(map[string]struct{})
		for _, p := range op.Parameters {
			where := iface.Name + "." + op.Name + "(" + p.Name + ")"
			if _, ok := params[p.Name]; ok {
				return fmt.Errorf("%s: duplicate parameter", where)
			}
			params[p.Name] = struct{}{}
			if !p.Direction.IsValid() {
				return fmt.Errorf("%s: invalid direction %q", where, p.Direction)
			}
			if err := idx.validateType(p.Type, where); err != nil {
				return err
			}
			if err := idx.validateAttributes(p.Attributes, where); err != nil {
				return err
			}
		}
		if op.Return != nil {
			if err := idx.validateType(*op.Return, iface.Name+"."+op.Name+" return"); err != nil {
				return err
			}
		}
		for _, raised := range op.Raises {
			if _, ok := idx.decls[raised]; !ok {
				return fmt.Errorf("%s.%s: raises unknown type %s", iface.Name, op.Name, raised)
			}
		}
	}
	return nil
}

// sortInterfaces orders interfaces with a depth-first walk over base edges.
func (idx *Index) sortInterfaces() ([]*Interface, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var order []*Interface
	var stack []string
	var visit func(iface *Interface) error
	visit = func(iface *Interface) error {
		switch state[iface.Name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("inheritance cycle: %s -> %s", strings.Join(stack, " -> "), iface.Name)
		}
		state[iface.Name] = visiting
		stack = append(stack, iface.Name)
		for _, base := range iface.Bases {
			if err := visit(idx.ifaces[base]); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[iface.Name] = done
		order = append(order, iface)
		return nil
	}
	for i := range idx.Library.Interfaces {
		if err := visit(&idx.Library.Interfaces[i]); err != nil {
			return nil, err
		}
	}
	return order, nil
}
