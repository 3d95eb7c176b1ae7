// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package diag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/config"
	"go.fuchsia.dev/ipcgen/tools/lib/color"
	"go.fuchsia.dev/ipcgen/tools/lib/logger"
)

func testContext(out *bytes.Buffer) context.Context {
	l := logger.NewLogger(logger.WarningLevel, color.NewColor(color.ColorNever), out, out, "")
	return logger.WithLogger(context.Background(), l)
}

func TestCollisionPolicy(t *testing.T) {
	dup := &CollisionError{Interface: "I", First: "A", Second: "B", ID: 3}
	tests := []struct {
		policy    config.CollisionPolicy
		wantFatal bool
	}{
		{config.CollisionsFatal, true},
		{config.CollisionsWarn, false},
	}
	for _, test := range tests {
		var out bytes.Buffer
		r := NewReporter(testContext(&out), config.Policy{Collisions: test.policy})
		if got := r.Collision(dup); got != test.wantFatal {
			t.Errorf("policy %s: Collision() = %v, want %v", test.policy, got, test.wantFatal)
		}
		if (r.Err() != nil) != test.wantFatal {
			t.Errorf("policy %s: Err() = %v", test.policy, r.Err())
		}
		if !strings.Contains(out.String(), "operations A and B both use id 3") {
			t.Errorf("policy %s: collision not logged: %q", test.policy, out.String())
		}
	}
}

func TestOverflowAlwaysFatal(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(testContext(&out), config.Policy{Collisions: config.CollisionsWarn})
	if !r.Collision(&CollisionError{Interface: "I", First: "A", Reason: "id 70000 does not fit"}) {
		t.Errorf("an id overflow must be fatal under any policy")
	}
}

func TestWarningsAsErrors(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(testContext(&out), config.Policy{WarnOnClamp: true, WarningsAsErrors: true})
	r.Clamp(&OverflowClamp{Field: "s", Length: 16, Max: 10})
	if r.Warnings() != 1 {
		t.Errorf("Warnings() = %d, want 1", r.Warnings())
	}
	var clamp *OverflowClamp
	if !errors.As(r.Err(), &clamp) || clamp.Max != 10 {
		t.Errorf("Err() = %v, want the clamp", r.Err())
	}
}

func TestClampSilencedByPolicy(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(testContext(&out), config.Policy{})
	r.Clamp(&OverflowClamp{Field: "s", Length: 16, Max: 10})
	if r.Warnings() != 0 || out.Len() != 0 {
		t.Errorf("clamp reported although warn_on_clamp is off: %q", out.String())
	}
}

func TestIsLayoutFailure(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(testContext(&out), config.Policy{})
	r.Error(&CollisionError{Interface: "I", First: "A", Second: "B"})
	if IsLayoutFailure(r.Err()) {
		t.Errorf("a collision is not a layout failure")
	}
	r.Error(fmt.Errorf("op: %w", &MissingCompanionError{Operation: "Op", Field: "data", Attribute: "size_is", Ref: "n"}))
	if !IsLayoutFailure(r.Err()) {
		t.Errorf("a wrapped MissingCompanionError is a layout failure")
	}
	if got := len(r.Errors()); got != 2 {
		t.Errorf("Errors() has %d entries, want 2", got)
	}
}
