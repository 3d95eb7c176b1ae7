// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package diag defines the diagnostics reported while laying out and
// numbering operations, and the policy deciding which of them are fatal.
package diag

import (
	"fmt"
	"strings"
)

// TypeResolutionError reports a transmit_as or alias chain that loops, or a
// struct that contains itself by value.
type TypeResolutionError struct {
	Operation string
	Chain     []string
}

func (e *TypeResolutionError) Error() string {
	return fmt.Sprintf("%s: cannot resolve type: cycle %s", e.Operation, strings.Join(e.Chain, " -> "))
}

// MissingCompanionError reports a size_is, length_is or max_is reference that
// does not name an existing sibling.
type MissingCompanionError struct {
	Operation string
	Field     string
	Attribute string
	Ref       string
}

func (e *MissingCompanionError) Error() string {
	return fmt.Sprintf("%s: %s(%s) on %s does not name a parameter or member", e.Operation, e.Attribute, e.Ref, e.Field)
}

// LayoutError reports a message that cannot be laid out under the platform
// constraints.
type LayoutError struct {
	Operation string
	Message   string
	Reason    string
}

func (e *LayoutError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %s", e.Operation, e.Message, e.Reason)
}

// CollisionError reports two operations sharing an id within one numbering
// scope, or an id that does not fit the opcode encoding.
type CollisionError struct {
	Interface string
	First     string
	Second    string
	ID        uint32
	Reason    string
}

func (e *CollisionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: operation %s: %s", e.Interface, e.First, e.Reason)
	}
	return fmt.Sprintf("%s: operations %s and %s both use id %d", e.Interface, e.First, e.Second, e.ID)
}

// OverflowClamp is the warning raised when a runtime element count exceeds
// the declared maximum and is clamped.
type OverflowClamp struct {
	Field  string
	Length int
	Max    int
}

func (e *OverflowClamp) Error() string {
	return fmt.Sprintf("%s: length %d exceeds maximum %d, clamped", e.Field, e.Length, e.Max)
}

// ProtocolError reports malformed or unexpected data found while decoding
// a message. It is returned to the caller, never raised as a panic.
type ProtocolError struct {
	Message string
	Reason  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: protocol error: %s", e.Message, e.Reason)
}
