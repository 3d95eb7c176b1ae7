// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package names

type NameChanger func(string) string

// NameContext tracks the identifiers a target language reserves.
type NameContext struct {
	reserved map[string]struct{}
	changer  NameChanger
}

func NewNameContext(changer NameChanger, reserved ...string) NameContext {
	c := NameContext{
		reserved: make(map[string]struct{}, len(reserved)),
		changer:  changer,
	}
	for _, name := range reserved {
		c.reserved[name] = struct{}{}
	}
	return c
}

func (c *NameContext) IsReserved(name string) bool {
	_, ok := c.reserved[name]
	return ok
}

func (c *NameContext) ChangeIfReserved(name string) string {
	if c.IsReserved(name) {
		return c.changer(name)
	}
	return name
}

// cReservedWords are the C keywords. Generated code reaches every field
// through args->, so its own locals need no reservation.
var cReservedWords = []string{
	"auto", "break", "case", "char", "const", "continue", "default", "do",
	"double", "else", "enum", "extern", "float", "for", "goto", "if",
	"inline", "int", "long", "register", "restrict", "return", "short",
	"signed", "sizeof", "static", "struct", "switch", "typedef", "union",
	"unsigned", "void", "volatile", "while", "_Bool", "_Complex",
}
