// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package opcode numbers interfaces and their operations.
//
// An interface without an explicit id is numbered one past the highest
// number among its bases. Interfaces sharing a number along an inheritance
// chain share one id space: a derived interface starts counting after the
// ranges used by its same-numbered bases, so its automatic ids never collide
// with theirs even when the two are compiled separately.
package opcode

import (
	"fmt"
	"sort"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/diag"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
)

// Assignment is the numbering of one operation.
type Assignment struct {
	Interface string
	Operation string
	Number    uint32
	ID        uint32
	Opcode    uint32
	Explicit  bool
}

// Allocator numbers the interfaces of one library. Results are memoized;
// an Allocator must not be shared between goroutines.
type Allocator struct {
	idx      *ir.Index
	shift    int
	reporter *diag.Reporter

	numbers     map[string]uint32
	assignments map[string][]Assignment
}

// NewAllocator returns an allocator encoding opcodes with the interface
// number above the low shift bits. Collisions are reported through r.
func NewAllocator(idx *ir.Index, shift int, r *diag.Reporter) *Allocator {
	return &Allocator{
		idx:         idx,
		shift:       shift,
		reporter:    r,
		numbers:     make(map[string]uint32),
		assignments: make(map[string][]Assignment),
	}
}

// InterfaceNumber returns the explicit id of iface, or one past the highest
// number among its bases, or 1 for a root interface.
func (a *Allocator) InterfaceNumber(iface *ir.Interface) uint32 {
	if n, ok := a.numbers[iface.Name]; ok {
		return n
	}
	var n uint32
	if iface.ID != nil {
		n = *iface.ID
	} else {
		for _, name := range iface.Bases {
			base, _ := a.idx.Interface(name)
			if bn := a.InterfaceNumber(base); bn > n {
				n = bn
			}
		}
		n++
	}
	a.numbers[iface.Name] = n
	return n
}

// sharedScope returns the interfaces reachable from iface through base edges
// that carry the same number, in depth-first order.
func (a *Allocator) sharedScope(iface *ir.Interface) []*ir.Interface {
	n := a.InterfaceNumber(iface)
	seen := map[string]bool{iface.Name: true}
	var scope []*ir.Interface
	var walk func(*ir.Interface)
	walk = func(i *ir.Interface) {
		for _, name := range i.Bases {
			if seen[name] {
				continue
			}
			seen[name] = true
			base, _ := a.idx.Interface(name)
			if a.InterfaceNumber(base) == n {
				scope = append(scope, base)
			}
			walk(base)
		}
	}
	walk(iface)
	return scope
}

func maxExplicit(iface *ir.Interface) uint32 {
	var max uint32
	for _, op := range iface.Operations {
		if op.ID != nil && *op.ID > max {
			max = *op.ID
		}
	}
	return max
}

type owner struct {
	iface, op string
}

func (o owner) String() string { return o.iface + "." + o.op }

// reserve collects the explicit ids of iface and its shared scope. Only
// collisions involving iface are reported; the others belong to a base and
// are reported when that base is numbered.
func (a *Allocator) reserve(iface *ir.Interface, scope []*ir.Interface) (map[uint32]owner, error) {
	reserved := make(map[uint32]owner)
	for _, i := range append(append([]*ir.Interface{}, scope...), iface) {
		for _, op := range i.Operations {
			if op.ID == nil {
				continue
			}
			cur := owner{i.Name, op.Name}
			prev, ok := reserved[*op.ID]
			if !ok {
				reserved[*op.ID] = cur
				continue
			}
			if i != iface {
				continue
			}
			err := &diag.CollisionError{Interface: iface.Name, First: prev.String(), Second: cur.String(), ID: *op.ID}
			if a.reporter.Collision(err) {
				return nil, err
			}
		}
	}
	return reserved, nil
}

// Assign numbers every operation of iface in declaration order. Collisions
// are recorded with the reporter; the returned error is the first fatal one.
func (a *Allocator) Assign(iface *ir.Interface) ([]Assignment, error) {
	if as, ok := a.assignments[iface.Name]; ok {
		return as, nil
	}
	number := a.InterfaceNumber(iface)
	scope := a.sharedScope(iface)
	reserved, err := a.reserve(iface, scope)
	if err != nil {
		return nil, err
	}

	var counter uint32
	for _, s := range scope {
		used := uint32(len(s.Operations))
		if m := maxExplicit(s); m > used {
			used = m
		}
		counter += used
	}

	var as []Assignment
	for _, op := range iface.Operations {
		asg := Assignment{Interface: iface.Name, Operation: op.Name, Number: number}
		if op.ID != nil {
			asg.ID = *op.ID
			asg.Explicit = true
		} else {
			counter++
			for {
				if _, ok := reserved[counter]; !ok {
					break
				}
				counter++
			}
			asg.ID = counter
		}
		opcode, cerr := a.encode(iface.Name, op.Name, number, asg.ID)
		if cerr != nil {
			a.reporter.Collision(cerr)
			return nil, cerr
		}
		asg.Opcode = opcode
		as = append(as, asg)
	}
	a.assignments[iface.Name] = as
	return as, nil
}

// encode packs the interface number above the id. A shift of zero leaves the
// id alone.
func (a *Allocator) encode(iface, op string, number, id uint32) (uint32, *diag.CollisionError) {
	if a.shift == 0 {
		return id, nil
	}
	if uint64(id) >= 1<<uint(a.shift) {
		return 0, &diag.CollisionError{
			Interface: iface,
			First:     op,
			ID:        id,
			Reason:    fmt.Sprintf("id %d does not fit in %d bits", id, a.shift),
		}
	}
	if uint64(number) >= 1<<uint(32-a.shift) {
		return 0, &diag.CollisionError{
			Interface: iface,
			First:     op,
			ID:        id,
			Reason:    fmt.Sprintf("interface number %d does not fit in %d bits", number, 32-a.shift),
		}
	}
	return number<<uint(a.shift) | id, nil
}

// OperationID returns the id of one operation of iface.
func (a *Allocator) OperationID(iface *ir.Interface, op string) (uint32, error) {
	asg, err := a.lookup(iface, op)
	return asg.ID, err
}

// Opcode returns the wire opcode of one operation of iface.
func (a *Allocator) Opcode(iface *ir.Interface, op string) (uint32, error) {
	asg, err := a.lookup(iface, op)
	return asg.Opcode, err
}

func (a *Allocator) lookup(iface *ir.Interface, op string) (Assignment, error) {
	as, err := a.Assign(iface)
	if err != nil {
		return Assignment{}, err
	}
	for _, asg := range as {
		if asg.Operation == op {
			return asg, nil
		}
	}
	return Assignment{}, fmt.Errorf("interface %s has no operation %s", iface.Name, op)
}

// ByID returns the assignments sorted by opcode, as a dispatch table lists
// them.
func ByID(as []Assignment) []Assignment {
	out := append([]Assignment{}, as...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Opcode < out[j].Opcode })
	return out
}
